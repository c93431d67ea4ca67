package main

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mash-protocol/ecusim/pkg/sensor"
	"github.com/mash-protocol/ecusim/pkg/subscription"
	"github.com/mash-protocol/ecusim/pkg/vehicle"
)

func newQuietVehicle(t *testing.T) (*vehicle.Vehicle, *subscription.Manager) {
	t.Helper()

	config := subscription.DefaultConfig()
	config.Sampler = newSampler(42)
	m := subscription.NewManagerWithConfig(config)
	v, err := vehicle.New(m, vehicle.DefaultOptions())
	require.NoError(t, err)
	t.Cleanup(func() {
		v.Close()
		m.Close()
	})
	return v, m
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestRunSimulationTicks(t *testing.T) {
	v, m := newQuietVehicle(t)

	var updates int
	m.OnUpdate(func(subscription.Update) { updates++ })

	err := runSimulation(context.Background(), v, time.Millisecond, 3, discardLogger())
	require.NoError(t, err)

	// Start-up plus three ticks, each refreshing four sensors for the
	// diagnostics ECU.
	assert.Equal(t, 4*int(sensor.CategoryCount), updates)

	diag, ok := m.ECU(v.Diagnostics())
	require.True(t, ok)
	assert.True(t, diag.On())
}

func TestRunSimulationStopsOnCancel(t *testing.T) {
	v, _ := newQuietVehicle(t)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	done := make(chan error, 1)
	go func() {
		done <- runSimulation(ctx, v, time.Hour, 0, discardLogger())
	}()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("runSimulation did not stop after cancel")
	}
}

func TestTickReadingsInRange(t *testing.T) {
	v, _ := newQuietVehicle(t)

	report, err := v.Tick()
	require.NoError(t, err)

	for c, value := range map[sensor.Category]float64{
		sensor.CategorySpeed:        report.Speed,
		sensor.CategoryTemperature:  report.Temperature,
		sensor.CategoryRadar:        report.Radar,
		sensor.CategoryBatteryLevel: report.BatteryLevel,
	} {
		d, _ := sensor.Describe(c)
		assert.True(t, d.Contains(value), "%s reading %v outside [%v, %v]", c, value, d.Min, d.Max)
	}
	assert.Len(t, report.Messages, 5)
}

func TestParseLevel(t *testing.T) {
	for in, want := range map[string]slog.Level{
		"debug": slog.LevelDebug,
		"INFO":  slog.LevelInfo,
		"warn":  slog.LevelWarn,
		"error": slog.LevelError,
	} {
		got, err := parseLevel(in)
		require.NoError(t, err)
		assert.Equal(t, want, got)
	}

	_, err := parseLevel("verbose")
	assert.Error(t, err)
}
