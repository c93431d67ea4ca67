package subscription

import (
	"errors"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/mash-protocol/ecusim/pkg/ecu"
	"github.com/mash-protocol/ecusim/pkg/log"
	"github.com/mash-protocol/ecusim/pkg/sensor"
)

// eventSink collects events for assertions.
type eventSink struct {
	mu     sync.Mutex
	events []log.Event
}

func (s *eventSink) Log(event log.Event) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, event)
}

func (s *eventSink) messages(c log.Category) []string {
	s.mu.Lock()
	defer s.mu.Unlock()

	var msgs []string
	for _, e := range s.events {
		if e.Category == c {
			msgs = append(msgs, e.Message)
		}
	}
	return msgs
}

// fixedSampler returns a constant per category.
func fixedSampler(values map[sensor.Category]float64) sensor.Sampler {
	return sensor.SamplerFunc(func(c sensor.Category) float64 {
		return values[c]
	})
}

// mockSampler hands out scripted readings.
type mockSampler struct{ mock.Mock }

func (m *mockSampler) Sample(c sensor.Category) float64 {
	return m.Called(c).Get(0).(float64)
}

func newTestManager(t *testing.T, values map[sensor.Category]float64) (*Manager, *eventSink) {
	t.Helper()
	sink := &eventSink{}
	config := DefaultConfig()
	config.Logger = sink
	config.SessionID = "test-session"
	if values != nil {
		config.Sampler = fixedSampler(values)
	}
	return NewManagerWithConfig(config), sink
}

func TestCreateSensorInstancesPerCategory(t *testing.T) {
	m, sink := newTestManager(t, nil)

	s1, err := m.CreateSensor(sensor.CategorySpeed)
	require.NoError(t, err)
	s2, err := m.CreateSensor(sensor.CategorySpeed)
	require.NoError(t, err)
	r1, err := m.CreateSensor(sensor.CategoryRadar)
	require.NoError(t, err)

	assert.Equal(t, sensor.ID{Category: sensor.CategorySpeed, Instance: 1}, s1)
	assert.Equal(t, sensor.ID{Category: sensor.CategorySpeed, Instance: 2}, s2)
	assert.Equal(t, sensor.ID{Category: sensor.CategoryRadar, Instance: 1}, r1)

	counts := m.Counts()
	assert.Equal(t, 2, counts.Live(sensor.CategorySpeed))
	assert.Equal(t, 1, counts.Live(sensor.CategoryRadar))
	assert.Equal(t, 0, counts.Live(sensor.CategoryTemperature))
	assert.Equal(t, 3, counts.SensorsLive)

	assert.Len(t, sink.messages(log.CategoryLifecycle), 3)
}

func TestCreateECUGlobalIDs(t *testing.T) {
	m, _ := newTestManager(t, nil)

	acc, err := m.CreateECU(ecu.KindAdaptiveCruiseControl)
	require.NoError(t, err)
	diag, err := m.CreateECU(ecu.KindDiagnostics)
	require.NoError(t, err)
	acc2, err := m.CreateECU(ecu.KindAdaptiveCruiseControl)
	require.NoError(t, err)

	assert.Equal(t, ecu.ID(1), acc)
	assert.Equal(t, ecu.ID(2), diag)
	assert.Equal(t, ecu.ID(3), acc2)
	assert.Equal(t, 3, m.Counts().ECUs)

	e, ok := m.ECU(diag)
	require.True(t, ok)
	assert.Equal(t, "Diagnostic ECU", e.Name())

	// Every table partition exists from construction.
	table, err := m.Table(acc)
	require.NoError(t, err)
	assert.Len(t, table, int(sensor.CategoryCount))
	for _, c := range sensor.Categories() {
		assert.Empty(t, table[c])
	}
}

func TestCreateUnknown(t *testing.T) {
	m, _ := newTestManager(t, nil)

	_, err := m.CreateSensor(sensor.Category(9))
	assert.ErrorIs(t, err, ErrUnknownCategory)

	_, err = m.CreateECU(ecu.Kind(7))
	assert.ErrorIs(t, err, ErrUnknownKind)

	counts := m.Counts()
	assert.Equal(t, 0, counts.SensorsLive)
	assert.Equal(t, 0, counts.ECUs)
}

func TestSubscribeIsIdempotent(t *testing.T) {
	m, sink := newTestManager(t, nil)

	sid, _ := m.CreateSensor(sensor.CategorySpeed)
	eid, _ := m.CreateECU(ecu.KindAdaptiveCruiseControl)

	assert.Equal(t, StatusOK, m.Subscribe(eid, sid))
	assert.Equal(t, StatusAlreadySubscribed, m.Subscribe(eid, sid))

	subs, err := m.Subscribers(sid)
	require.NoError(t, err)
	assert.Len(t, subs, 1)

	ids, err := m.Subscriptions(eid)
	require.NoError(t, err)
	assert.Equal(t, []sensor.ID{sid}, ids)

	s, _ := m.Sensor(sid)
	assert.Equal(t, int32(2), s.Holds())

	msgs := sink.messages(log.CategorySubscription)
	require.Len(t, msgs, 2)
	assert.Equal(t, "A new ECU: Adaptive Cruise Control ECU subscribes to this Speed Sensor.", msgs[0])
	assert.Equal(t, "ECU Adaptive Cruise Control ECU is already subscribed.", msgs[1])
}

func TestSubscribeExpired(t *testing.T) {
	m, _ := newTestManager(t, nil)

	sid, _ := m.CreateSensor(sensor.CategoryRadar)
	eid, _ := m.CreateECU(ecu.KindDiagnostics)

	assert.Equal(t, StatusExpired, m.Subscribe(ecu.ID(99), sid))
	assert.Equal(t, StatusExpired, m.Subscribe(eid, sensor.ID{Category: sensor.CategoryRadar, Instance: 5}))

	subs, _ := m.Subscribers(sid)
	assert.Empty(t, subs)
}

func TestUnsubscribeTwiceIsNoOp(t *testing.T) {
	m, sink := newTestManager(t, nil)

	sid, _ := m.CreateSensor(sensor.CategoryTemperature)
	eid, _ := m.CreateECU(ecu.KindDiagnostics)
	require.Equal(t, StatusOK, m.Subscribe(eid, sid))

	assert.Equal(t, StatusOK, m.Unsubscribe(eid, sid))
	assert.Equal(t, StatusNotFound, m.Unsubscribe(eid, sid))

	subs, _ := m.Subscribers(sid)
	assert.Empty(t, subs)
	ids, _ := m.Subscriptions(eid)
	assert.Empty(t, ids)

	// The creator hold keeps the sensor alive.
	s, ok := m.Sensor(sid)
	require.True(t, ok)
	assert.Equal(t, int32(1), s.Holds())

	assert.Contains(t, sink.messages(log.CategorySubscription), "Diagnostic ECU was successfully detached.")
}

func TestUnsubscribeExpiredECU(t *testing.T) {
	m, _ := newTestManager(t, nil)

	sid, _ := m.CreateSensor(sensor.CategorySpeed)
	eid, _ := m.CreateECU(ecu.KindAdaptiveCruiseControl)
	require.Equal(t, StatusOK, m.Subscribe(eid, sid))
	require.NoError(t, m.ReleaseECU(eid))

	assert.Equal(t, StatusExpired, m.Unsubscribe(eid, sid))
}

func TestUnsubscribeSkipsExpiredBackReferences(t *testing.T) {
	m, _ := newTestManager(t, nil)

	sid, _ := m.CreateSensor(sensor.CategorySpeed)
	gone, _ := m.CreateECU(ecu.KindAdaptiveCruiseControl)
	kept, _ := m.CreateECU(ecu.KindDiagnostics)
	require.Equal(t, StatusOK, m.Subscribe(gone, sid))
	require.Equal(t, StatusOK, m.Subscribe(kept, sid))
	require.NoError(t, m.ReleaseECU(gone))

	assert.Equal(t, StatusOK, m.Unsubscribe(kept, sid))

	// The stale key stays; only the live one was removed.
	subs, _ := m.Subscribers(sid)
	require.Len(t, subs, 1)
	assert.Equal(t, uint32(gone), subs[0].ID)
	assert.True(t, m.Expired(subs[0]))
}

func TestBroadcastWritesLastReading(t *testing.T) {
	m, _ := newTestManager(t, map[sensor.Category]float64{
		sensor.CategoryTemperature: 42.5,
	})

	sid, _ := m.CreateSensor(sensor.CategoryTemperature)
	e1, _ := m.CreateECU(ecu.KindAdaptiveCruiseControl)
	e2, _ := m.CreateECU(ecu.KindDiagnostics)
	require.Equal(t, StatusOK, m.Subscribe(e1, sid))
	require.Equal(t, StatusOK, m.Subscribe(e2, sid))

	v, err := m.Sample(sid)
	require.NoError(t, err)
	assert.Equal(t, 42.5, v)

	n, err := m.Broadcast(sid)
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	for _, id := range []ecu.ID{e1, e2} {
		got, ok := m.ReadTable(id, sensor.CategoryTemperature, sid.Instance)
		require.True(t, ok)
		assert.Equal(t, 42.5, got)

		table, err := m.Table(id)
		require.NoError(t, err)
		assert.Len(t, table[sensor.CategoryTemperature], 1)
		assert.Empty(t, table[sensor.CategorySpeed])
	}
}

func TestBroadcastBeforeSampleWritesZero(t *testing.T) {
	m, _ := newTestManager(t, map[sensor.Category]float64{sensor.CategorySpeed: 10})

	sid, _ := m.CreateSensor(sensor.CategorySpeed)
	eid, _ := m.CreateECU(ecu.KindAdaptiveCruiseControl)
	m.Subscribe(eid, sid)

	_, err := m.Broadcast(sid)
	require.NoError(t, err)

	v, ok := m.ReadTable(eid, sensor.CategorySpeed, sid.Instance)
	assert.True(t, ok)
	assert.Equal(t, 0.0, v)
}

func TestBroadcastSkipsDestroyedECU(t *testing.T) {
	m, sink := newTestManager(t, map[sensor.Category]float64{sensor.CategoryRadar: 7})

	sid, _ := m.CreateSensor(sensor.CategoryRadar)
	gone, _ := m.CreateECU(ecu.KindAdaptiveCruiseControl)
	kept, _ := m.CreateECU(ecu.KindDiagnostics)
	m.Subscribe(gone, sid)
	m.Subscribe(kept, sid)

	require.NoError(t, m.ReleaseECU(gone))

	_, err := m.Sample(sid)
	require.NoError(t, err)
	n, err := m.Broadcast(sid)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	v, ok := m.ReadTable(kept, sensor.CategoryRadar, sid.Instance)
	require.True(t, ok)
	assert.Equal(t, 7.0, v)

	_, ok = m.ReadTable(gone, sensor.CategoryRadar, sid.Instance)
	assert.False(t, ok)

	assert.Contains(t, sink.messages(log.CategoryError), "ECU object no longer exists.")

	// Without pruning the stale key stays in place.
	subs, _ := m.Subscribers(sid)
	assert.Len(t, subs, 2)
}

func TestBroadcastPrunesExpired(t *testing.T) {
	config := DefaultConfig()
	config.PruneExpired = true
	m := NewManagerWithConfig(config)

	sid, _ := m.CreateSensor(sensor.CategoryRadar)
	gone, _ := m.CreateECU(ecu.KindAdaptiveCruiseControl)
	kept, _ := m.CreateECU(ecu.KindDiagnostics)
	m.Subscribe(gone, sid)
	m.Subscribe(kept, sid)
	require.NoError(t, m.ReleaseECU(gone))

	n, err := m.Broadcast(sid)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	subs, _ := m.Subscribers(sid)
	require.Len(t, subs, 1)
	assert.Equal(t, uint32(kept), subs[0].ID)
}

func TestBroadcastExpiredSensor(t *testing.T) {
	m, _ := newTestManager(t, nil)

	sid, _ := m.CreateSensor(sensor.CategorySpeed)
	require.NoError(t, m.ReleaseSensor(sid))

	_, err := m.Broadcast(sid)
	assert.ErrorIs(t, err, ErrSensorExpired)
	_, err = m.Sample(sid)
	assert.ErrorIs(t, err, ErrSensorExpired)
}

func TestDestroyOneOfThreeSpeedSensors(t *testing.T) {
	m, sink := newTestManager(t, nil)

	var ids []sensor.ID
	for i := 0; i < 3; i++ {
		id, err := m.CreateSensor(sensor.CategorySpeed)
		require.NoError(t, err)
		ids = append(ids, id)
	}

	require.NoError(t, m.ReleaseSensor(ids[1]))

	assert.Equal(t, 2, m.Counts().Live(sensor.CategorySpeed))
	assert.Equal(t, []sensor.ID{ids[0], ids[2]}, m.SensorIDs())

	// Instance numbers are never reused.
	next, err := m.CreateSensor(sensor.CategorySpeed)
	require.NoError(t, err)
	assert.Equal(t, uint32(4), next.Instance)

	found := false
	for _, msg := range sink.messages(log.CategoryLifecycle) {
		if msg == "Sensor of type Speed Sensor & ID = 2 is destroyed. Remaining count is 2" {
			found = true
		}
	}
	assert.True(t, found)
}

func TestFirstSpeedSensorSample(t *testing.T) {
	m := NewManager()

	sid, err := m.CreateSensor(sensor.CategorySpeed)
	require.NoError(t, err)
	assert.Equal(t, uint32(1), sid.Instance)
	eid, err := m.CreateECU(ecu.KindAdaptiveCruiseControl)
	require.NoError(t, err)
	require.Equal(t, StatusOK, m.Subscribe(eid, sid))

	v, err := m.Sample(sid)
	require.NoError(t, err)
	assert.GreaterOrEqual(t, v, 0.0)
	assert.LessOrEqual(t, v, 320.0)

	last, err := m.Last(sid)
	require.NoError(t, err)
	assert.Equal(t, v, last)

	n, err := m.Broadcast(sid)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	got, ok := m.ReadTable(eid, sensor.CategorySpeed, 1)
	require.True(t, ok)
	assert.Equal(t, v, got)
}

func TestRefreshUpdatesEveryOwnedSensor(t *testing.T) {
	values := map[sensor.Category]float64{
		sensor.CategorySpeed:        60,
		sensor.CategoryBatteryLevel: 15,
	}
	m, _ := newTestManager(t, values)

	speed, _ := m.CreateSensor(sensor.CategorySpeed)
	battery, _ := m.CreateSensor(sensor.CategoryBatteryLevel)
	diag, _ := m.CreateECU(ecu.KindDiagnostics)
	acc, _ := m.CreateECU(ecu.KindAdaptiveCruiseControl)
	m.Subscribe(diag, speed)
	m.Subscribe(diag, battery)
	m.Subscribe(acc, speed)

	n, err := m.Refresh(diag)
	require.NoError(t, err)
	assert.Equal(t, 3, n)

	v, ok := m.ReadTable(diag, sensor.CategorySpeed, 1)
	require.True(t, ok)
	assert.Equal(t, 60.0, v)
	v, ok = m.ReadTable(diag, sensor.CategoryBatteryLevel, 1)
	require.True(t, ok)
	assert.Equal(t, 15.0, v)

	// The other subscriber of the speed sensor sees the refresh too.
	v, ok = m.ReadTable(acc, sensor.CategorySpeed, 1)
	require.True(t, ok)
	assert.Equal(t, 60.0, v)
	_, ok = m.ReadTable(acc, sensor.CategoryBatteryLevel, 1)
	assert.False(t, ok)
}

func TestRefreshUsesFreshReadings(t *testing.T) {
	sampler := &mockSampler{}
	sampler.On("Sample", sensor.CategorySpeed).Return(1.0).Once()
	sampler.On("Sample", sensor.CategorySpeed).Return(2.0).Once()
	sampler.On("Sample", sensor.CategoryRadar).Return(3.0).Once()

	config := DefaultConfig()
	config.Sampler = sampler
	m := NewManagerWithConfig(config)

	speed, _ := m.CreateSensor(sensor.CategorySpeed)
	radar, _ := m.CreateSensor(sensor.CategoryRadar)
	diag, _ := m.CreateECU(ecu.KindDiagnostics)
	require.Equal(t, StatusOK, m.Subscribe(diag, speed))
	require.Equal(t, StatusOK, m.Subscribe(diag, radar))

	// Seed the table with an earlier reading.
	_, err := m.Sample(speed)
	require.NoError(t, err)
	_, err = m.Broadcast(speed)
	require.NoError(t, err)
	v, ok := m.ReadTable(diag, sensor.CategorySpeed, 1)
	require.True(t, ok)
	require.Equal(t, 1.0, v)
	_, ok = m.ReadTable(diag, sensor.CategoryRadar, 1)
	require.False(t, ok)

	n, err := m.Refresh(diag)
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	v, ok = m.ReadTable(diag, sensor.CategorySpeed, 1)
	require.True(t, ok)
	assert.Equal(t, 2.0, v)
	v, ok = m.ReadTable(diag, sensor.CategoryRadar, 1)
	require.True(t, ok)
	assert.Equal(t, 3.0, v)

	sampler.AssertExpectations(t)
}

func TestRefreshExpiredECU(t *testing.T) {
	m, _ := newTestManager(t, nil)

	_, err := m.Refresh(ecu.ID(3))
	assert.ErrorIs(t, err, ErrECUExpired)
	_, ok := m.ReadTable(ecu.ID(3), sensor.CategorySpeed, 1)
	assert.False(t, ok)
}

func TestSensorOutlivesCreatorWhileSubscribed(t *testing.T) {
	m, _ := newTestManager(t, nil)

	sid, _ := m.CreateSensor(sensor.CategoryBatteryLevel)
	eid, _ := m.CreateECU(ecu.KindDiagnostics)
	m.Subscribe(eid, sid)

	require.NoError(t, m.ReleaseSensor(sid))
	_, ok := m.Sensor(sid)
	assert.True(t, ok, "subscribed ECU still holds the sensor")
	assert.Equal(t, 1, m.Counts().Live(sensor.CategoryBatteryLevel))

	assert.ErrorIs(t, m.ReleaseSensor(sid), ErrAlreadyReleased)

	assert.Equal(t, StatusOK, m.Unsubscribe(eid, sid))
	_, ok = m.Sensor(sid)
	assert.False(t, ok)
	assert.Equal(t, 0, m.Counts().Live(sensor.CategoryBatteryLevel))

	assert.ErrorIs(t, m.ReleaseSensor(sid), ErrSensorExpired)
}

func TestReleaseECUDropsSensorHolds(t *testing.T) {
	m, _ := newTestManager(t, nil)

	sid, _ := m.CreateSensor(sensor.CategorySpeed)
	eid, _ := m.CreateECU(ecu.KindAdaptiveCruiseControl)
	m.Subscribe(eid, sid)
	require.NoError(t, m.ReleaseSensor(sid))

	require.NoError(t, m.ReleaseECU(eid))
	assert.ErrorIs(t, m.ReleaseECU(eid), ErrECUExpired)

	counts := m.Counts()
	assert.Equal(t, 0, counts.ECUs)
	assert.Equal(t, 0, counts.SensorsLive)
	assert.Empty(t, m.SensorIDs())
	assert.Empty(t, m.ECUIDs())
}

func TestOnUpdateCallback(t *testing.T) {
	m, _ := newTestManager(t, map[sensor.Category]float64{sensor.CategorySpeed: 33})

	var updates []Update
	m.OnUpdate(func(u Update) {
		updates = append(updates, u)
	})

	sid, _ := m.CreateSensor(sensor.CategorySpeed)
	eid, _ := m.CreateECU(ecu.KindAdaptiveCruiseControl)
	m.Subscribe(eid, sid)
	_, err := m.Refresh(eid)
	require.NoError(t, err)

	require.Len(t, updates, 1)
	assert.Equal(t, eid, updates[0].ECU)
	assert.Equal(t, "Adaptive Cruise Control ECU", updates[0].ECUName)
	assert.Equal(t, sid, updates[0].Sensor)
	assert.Equal(t, 33.0, updates[0].Value)
	assert.False(t, updates[0].Timestamp.IsZero())
}

func TestCloseReleasesEverything(t *testing.T) {
	m, _ := newTestManager(t, nil)

	sid, _ := m.CreateSensor(sensor.CategorySpeed)
	m.CreateSensor(sensor.CategoryRadar)
	eid, _ := m.CreateECU(ecu.KindAdaptiveCruiseControl)
	m.Subscribe(eid, sid)

	require.NoError(t, m.Close())
	require.NoError(t, m.Close())

	counts := m.Counts()
	assert.Equal(t, 0, counts.SensorsLive)
	assert.Equal(t, 0, counts.ECUs)

	_, err := m.CreateSensor(sensor.CategorySpeed)
	assert.ErrorIs(t, err, ErrManagerClosed)
	_, err = m.CreateECU(ecu.KindDiagnostics)
	assert.ErrorIs(t, err, ErrManagerClosed)
}

func TestEventsCarrySession(t *testing.T) {
	m, sink := newTestManager(t, nil)
	m.CreateSensor(sensor.CategorySpeed)

	require.NotEmpty(t, sink.events)
	for _, e := range sink.events {
		assert.Equal(t, "test-session", e.SessionID)
		assert.False(t, e.Timestamp.IsZero())
	}
	assert.Equal(t, "test-session", m.Recorder().Session())
}

func TestStatusString(t *testing.T) {
	tests := []struct {
		status Status
		want   string
	}{
		{StatusOK, "OK"},
		{StatusAlreadySubscribed, "ALREADY_SUBSCRIBED"},
		{StatusNotFound, "NOT_FOUND"},
		{StatusExpired, "EXPIRED"},
		{Status(99), "UNKNOWN"},
	}
	for _, tt := range tests {
		if got := tt.status.String(); got != tt.want {
			t.Errorf("Status(%d).String() = %q, want %q", tt.status, got, tt.want)
		}
	}
}

func TestErrorsWrap(t *testing.T) {
	m := NewManager()
	_, err := m.CreateSensor(sensor.Category(200))
	if !errors.Is(err, ErrUnknownCategory) {
		t.Fatalf("err = %v, want ErrUnknownCategory", err)
	}
	if !strings.Contains(err.Error(), "200") {
		t.Errorf("error %q should name the category value", err)
	}
}

func TestConcurrentOperations(t *testing.T) {
	m := NewManager()

	var sensors []sensor.ID
	for _, c := range sensor.Categories() {
		id, err := m.CreateSensor(c)
		require.NoError(t, err)
		sensors = append(sensors, id)
	}

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			eid, err := m.CreateECU(ecu.Kind(i % 2))
			if err != nil {
				t.Error(err)
				return
			}
			for round := 0; round < 20; round++ {
				for _, sid := range sensors {
					m.Subscribe(eid, sid)
					m.Sample(sid)
					m.Broadcast(sid)
				}
				m.Refresh(eid)
				m.Unsubscribe(eid, sensors[round%len(sensors)])
			}
			if i%2 == 0 {
				m.ReleaseECU(eid)
			}
		}(i)
	}
	wg.Wait()

	counts := m.Counts()
	assert.Equal(t, 4, counts.ECUs)
	assert.Equal(t, len(sensors), counts.SensorsLive)
	for _, c := range sensor.Categories() {
		assert.Equal(t, 1, counts.Live(c))
	}

	require.NoError(t, m.Close())
	assert.Equal(t, 0, m.Counts().SensorsLive)
}
