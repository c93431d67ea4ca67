package main

import (
	"context"
	"log/slog"
	"time"

	"github.com/mash-protocol/ecusim/pkg/sensor"
	"github.com/mash-protocol/ecusim/pkg/vehicle"
)

func newSampler(seed uint64) sensor.Sampler {
	return sensor.NewUniformSampler(seed)
}

// runSimulation performs the start-up sequence and then ticks until ctx is
// done or the tick budget is used up. A zero tick count runs forever.
func runSimulation(ctx context.Context, v *vehicle.Vehicle, interval time.Duration, ticks int, logger *slog.Logger) error {
	if err := v.SetAdaptiveMode(v.AdaptiveMode()); err != nil {
		return err
	}
	if err := v.StartDiagnostics(); err != nil {
		return err
	}
	v.DisplayStatus()

	if interval <= 0 {
		interval = time.Millisecond
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for n := 1; ticks == 0 || n <= ticks; n++ {
		select {
		case <-ctx.Done():
			logger.Info("simulation interrupted", "ticks", n-1)
			return nil
		case <-ticker.C:
		}

		report, err := v.Tick()
		if err != nil {
			return err
		}
		logger.Debug("tick complete",
			"tick", n,
			"speed", report.Speed,
			"temperature", report.Temperature,
			"radar", report.Radar,
			"battery", report.BatteryLevel,
			"warnings", report.Warnings())
	}

	logger.Info("simulation finished", "ticks", ticks)
	return nil
}
