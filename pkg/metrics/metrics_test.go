package metrics

import (
	"io"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCollectorRecords(t *testing.T) {
	reg := prometheus.NewRegistry()
	c, err := NewCollector(reg)
	require.NoError(t, err)

	c.SetSensorsLive("SPEED", 2)
	c.SetECUsLive(3)
	c.Broadcast("SPEED", 2)
	c.Broadcast("SPEED", 0)
	c.Expired(SideECU, 1)
	c.Expired(SideECU, 0)
	c.Subscription("subscribe", "OK")

	assert.Equal(t, 2.0, testutil.ToFloat64(c.sensorsLive.WithLabelValues("SPEED")))
	assert.Equal(t, 3.0, testutil.ToFloat64(c.ecusLive))
	assert.Equal(t, 2.0, testutil.ToFloat64(c.broadcasts.WithLabelValues("SPEED")))
	assert.Equal(t, 2.0, testutil.ToFloat64(c.tableUpdates.WithLabelValues("SPEED")))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.expired.WithLabelValues(SideECU)))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.subscriptions.WithLabelValues("subscribe", "OK")))
}

func TestCollectorDoubleRegisterFails(t *testing.T) {
	reg := prometheus.NewRegistry()
	_, err := NewCollector(reg)
	require.NoError(t, err)

	_, err = NewCollector(reg)
	assert.Error(t, err)
}

func TestNilCollectorIsSafe(t *testing.T) {
	var c *Collector
	c.SetSensorsLive("RADAR", 1)
	c.SetECUsLive(1)
	c.Broadcast("RADAR", 1)
	c.Expired(SideSensor, 1)
	c.Subscription("unsubscribe", "NOT_FOUND")
}

func TestHandlerServesMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	c, err := NewCollector(reg)
	require.NoError(t, err)
	c.SetECUsLive(2)

	srv := httptest.NewServer(Handler(reg))
	defer srv.Close()

	resp, err := srv.Client().Get(srv.URL)
	require.NoError(t, err)
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.True(t, strings.Contains(string(body), "ecusim_ecus_live 2"), string(body))
}
