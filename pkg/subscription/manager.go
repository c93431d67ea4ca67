package subscription

import (
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/mash-protocol/ecusim/pkg/ecu"
	"github.com/mash-protocol/ecusim/pkg/log"
	"github.com/mash-protocol/ecusim/pkg/metrics"
	"github.com/mash-protocol/ecusim/pkg/sensor"
)

// Manager owns the sensors and ECUs of a simulation and routes readings
// between them.
type Manager struct {
	mu sync.RWMutex

	// Configuration
	config  Config
	sampler sensor.Sampler

	// Registry. A sensor stays here while it has holds; an ECU until it is
	// released.
	sensors map[sensor.ID]*sensor.Sensor
	ecus    map[ecu.ID]*ecu.ECU

	// held marks sensors whose creator hold has not been released.
	held map[sensor.ID]struct{}

	counters counters
	recorder *log.Recorder
	metrics  *metrics.Collector

	// Callbacks
	onUpdate func(Update)

	closed bool
}

// NewManager creates a manager with the default configuration.
func NewManager() *Manager {
	return NewManagerWithConfig(DefaultConfig())
}

// NewManagerWithConfig creates a manager with a custom configuration.
func NewManagerWithConfig(config Config) *Manager {
	sampler := config.Sampler
	if sampler == nil {
		sampler = sensor.NewUniformSampler(0)
	}

	return &Manager{
		config:   config,
		sampler:  sampler,
		sensors:  make(map[sensor.ID]*sensor.Sensor),
		ecus:     make(map[ecu.ID]*ecu.ECU),
		held:     make(map[sensor.ID]struct{}),
		recorder: log.NewRecorder(config.Logger, config.SessionID),
		metrics:  config.Metrics,
	}
}

// Recorder returns the event recorder shared with components built on the
// manager.
func (m *Manager) Recorder() *log.Recorder {
	return m.recorder
}

// OnUpdate sets the callback for table writes. It is invoked without any
// manager lock held.
func (m *Manager) OnUpdate(fn func(Update)) {
	m.mu.Lock()
	m.onUpdate = fn
	m.mu.Unlock()
}

// CreateSensor creates a sensor of the given category. The caller holds
// the creator reference until ReleaseSensor.
func (m *Manager) CreateSensor(category sensor.Category) (sensor.ID, error) {
	if !category.Valid() {
		return sensor.ID{}, fmt.Errorf("%w: %d", ErrUnknownCategory, uint8(category))
	}

	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return sensor.ID{}, ErrManagerClosed
	}

	id := sensor.ID{Category: category, Instance: m.counters.nextInstance(category)}
	s := sensor.New(id, m.sampler)
	s.Retain()
	_ = s.Activate()

	m.sensors[id] = s
	m.held[id] = struct{}{}
	live := m.counters.sensorCreated(category)
	m.mu.Unlock()

	m.metrics.SetSensorsLive(category.String(), live)
	m.recorder.Record(log.Event{
		Category: log.CategoryLifecycle,
		Message: fmt.Sprintf("New sensor created: type %s, id %d, %s count %d",
			s.Label(), id.Instance, s.Label(), live),
		Sensor: sensorRef(s),
		Live:   log.Int(live),
	})

	return id, nil
}

// CreateECU creates an ECU of the given kind.
func (m *Manager) CreateECU(kind ecu.Kind) (ecu.ID, error) {
	if !kind.Valid() {
		return 0, fmt.Errorf("%w: %d", ErrUnknownKind, uint8(kind))
	}

	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return 0, ErrManagerClosed
	}

	e := ecu.New(m.counters.nextECU(), kind)
	_ = e.Activate()
	m.ecus[e.ID()] = e
	live := m.counters.ecuCreated()
	m.mu.Unlock()

	m.metrics.SetECUsLive(live)
	m.recorder.Record(log.Event{
		Category: log.CategoryLifecycle,
		Message:  fmt.Sprintf("New ECU created: %s, id %d, ECU count %d", e.Name(), e.ID(), live),
		ECU:      ecuRef(e),
		Live:     log.Int(live),
	})

	return e.ID(), nil
}

// Subscribe subscribes an ECU to a sensor. Both directions of the relation
// are established together; a repeated call changes nothing.
func (m *Manager) Subscribe(ecuID ecu.ID, sensorID sensor.ID) Status {
	m.mu.Lock()
	e, s, status := m.pairLocked(ecuID, sensorID)
	if status == StatusOK && !e.AttachSensor(s) {
		status = StatusAlreadySubscribed
	}
	if status == StatusOK {
		s.AttachSubscriber(e.Key())
		s.Retain()
	}
	m.mu.Unlock()

	m.metrics.Subscription("subscribe", status.String())

	event := log.Event{
		Category: log.CategorySubscription,
		Status:   status.String(),
	}
	switch status {
	case StatusOK:
		event.Message = fmt.Sprintf("A new ECU: %s subscribes to this %s.", e.Name(), s.Label())
	case StatusAlreadySubscribed:
		event.Message = fmt.Sprintf("ECU %s is already subscribed.", e.Name())
	default:
		event.Message = expiredMessage(e, s)
	}
	if e != nil {
		event.ECU = ecuRef(e)
	}
	if s != nil {
		event.Sensor = sensorRef(s)
	}
	m.recorder.Record(event)

	return status
}

// Unsubscribe removes the subscription of an ECU to a sensor and drops the
// ECU's hold on the sensor. Expired back-references are skipped while
// searching. A repeated call reports StatusNotFound.
func (m *Manager) Unsubscribe(ecuID ecu.ID, sensorID sensor.ID) Status {
	var (
		destroyed *destruction
		skipped   int
		missing   bool
	)

	m.mu.Lock()
	e, ok := m.ecus[ecuID]
	status := StatusExpired
	var s *sensor.Sensor
	if ok {
		status = StatusNotFound
		if s, ok = e.DetachSensor(sensorID); ok {
			status = StatusOK
			var removed bool
			removed, skipped = s.DetachSubscriber(e.Key(), m.aliveLocked)
			missing = !removed
			if s.Release() == 0 {
				destroyed = m.destroySensorLocked(s)
			}
		}
	}
	m.mu.Unlock()

	m.metrics.Subscription("unsubscribe", status.String())
	m.metrics.Expired(metrics.SideECU, skipped)

	if missing {
		m.recorder.Record(log.Event{
			Category: log.CategoryError,
			Message: fmt.Sprintf("Could not find the ECU: %s with ID: %d to detach.",
				e.Name(), e.ID()),
			Sensor: sensorRef(s),
			ECU:    ecuRef(e),
		})
	}

	event := log.Event{
		Category: log.CategorySubscription,
		Status:   status.String(),
		Sensor:   &log.SensorRef{Category: sensorID.Category.String(), Instance: sensorID.Instance},
	}
	switch status {
	case StatusOK:
		event.Message = fmt.Sprintf("%s was successfully detached.", e.Name())
		event.Sensor = sensorRef(s)
	case StatusNotFound:
		event.Message = fmt.Sprintf("ECU %s is not subscribed to sensor %s.", e.Name(), sensorID)
	default:
		event.Message = "Couldn't detach ECU (expired)."
	}
	if e != nil {
		event.ECU = ecuRef(e)
	}
	m.recorder.Record(event)

	m.reportDestroyed(destroyed)
	return status
}

// Sample forces a new reading of a sensor and returns it.
func (m *Manager) Sample(id sensor.ID) (float64, error) {
	s, err := m.lookupSensor(id)
	if err != nil {
		return 0, err
	}
	return m.sample(s), nil
}

// Last returns the most recent reading of a sensor without resampling.
func (m *Manager) Last(id sensor.ID) (float64, error) {
	s, err := m.lookupSensor(id)
	if err != nil {
		return 0, err
	}
	return s.Last(), nil
}

// Read samples a sensor and returns the stored reading.
func (m *Manager) Read(id sensor.ID) (float64, error) {
	s, err := m.lookupSensor(id)
	if err != nil {
		return 0, err
	}
	m.sample(s)
	return s.Last(), nil
}

// Broadcast writes the sensor's last reading into the table of every live
// subscriber and returns the number of tables written. Expired subscribers
// are skipped.
func (m *Manager) Broadcast(id sensor.ID) (int, error) {
	s, err := m.lookupSensor(id)
	if err != nil {
		return 0, err
	}
	return m.broadcast(s), nil
}

// Refresh samples every sensor the ECU is subscribed to and broadcasts each
// reading to all subscribers of that sensor. It returns the total number of
// tables written.
func (m *Manager) Refresh(id ecu.ID) (int, error) {
	e, err := m.lookupECU(id)
	if err != nil {
		return 0, err
	}

	total := 0
	for _, s := range e.Sensors() {
		m.sample(s)
		total += m.broadcast(s)
	}
	return total, nil
}

// ReadTable returns the value an ECU holds for a sensor. The second result
// is false when the ECU is gone or that sensor never wrote to it.
func (m *Manager) ReadTable(id ecu.ID, category sensor.Category, instance uint32) (float64, bool) {
	e, err := m.lookupECU(id)
	if err != nil {
		return 0, false
	}
	return e.Read(category, instance)
}

// Table returns a copy of an ECU's value table.
func (m *Manager) Table(id ecu.ID) (ecu.Table, error) {
	e, err := m.lookupECU(id)
	if err != nil {
		return nil, err
	}
	return e.Table(), nil
}

// ReleaseSensor drops the creator hold on a sensor. The sensor is destroyed
// once no subscribed ECU holds it either.
func (m *Manager) ReleaseSensor(id sensor.ID) error {
	var destroyed *destruction

	m.mu.Lock()
	s, ok := m.sensors[id]
	if !ok {
		m.mu.Unlock()
		return ErrSensorExpired
	}
	if _, held := m.held[id]; !held {
		m.mu.Unlock()
		return ErrAlreadyReleased
	}
	delete(m.held, id)
	if s.Release() == 0 {
		destroyed = m.destroySensorLocked(s)
	}
	m.mu.Unlock()

	m.reportDestroyed(destroyed)
	return nil
}

// ReleaseECU destroys an ECU and drops its sensor holds. Sensors keep their
// back-reference to it, which is skipped as expired from then on.
func (m *Manager) ReleaseECU(id ecu.ID) error {
	m.mu.Lock()
	e, ok := m.ecus[id]
	if !ok {
		m.mu.Unlock()
		return ErrECUExpired
	}
	destroyed := m.destroyECULocked(e)
	m.mu.Unlock()

	m.reportDestroyed(destroyed...)
	return nil
}

// Close releases every ECU and every creator hold. Creating instances on a
// closed manager fails with ErrManagerClosed.
func (m *Manager) Close() error {
	var destroyed []*destruction

	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return nil
	}
	m.closed = true

	for _, id := range sortedECUIDs(m.ecus) {
		destroyed = append(destroyed, m.destroyECULocked(m.ecus[id])...)
	}
	for _, id := range sortedSensorIDs(m.held) {
		delete(m.held, id)
		s, ok := m.sensors[id]
		if ok && s.Release() == 0 {
			destroyed = append(destroyed, m.destroySensorLocked(s))
		}
	}
	m.mu.Unlock()

	m.reportDestroyed(destroyed...)
	return nil
}

// Counts returns a snapshot of the identity and live counters.
func (m *Manager) Counts() Counts {
	return m.counters.snapshot()
}

// Sensor returns a live sensor.
func (m *Manager) Sensor(id sensor.ID) (*sensor.Sensor, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.sensors[id]
	return s, ok
}

// ECU returns a live ECU.
func (m *Manager) ECU(id ecu.ID) (*ecu.ECU, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	e, ok := m.ecus[id]
	return e, ok
}

// SensorIDs returns the ids of all live sensors, ordered by category and
// instance.
func (m *Manager) SensorIDs() []sensor.ID {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return sortedSensorIDs(m.sensors)
}

// ECUIDs returns the ids of all live ECUs in ascending order.
func (m *Manager) ECUIDs() []ecu.ID {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return sortedECUIDs(m.ecus)
}

// Subscribers returns the back-references of a sensor, expired ones
// included.
func (m *Manager) Subscribers(id sensor.ID) ([]sensor.Subscriber, error) {
	s, err := m.lookupSensor(id)
	if err != nil {
		return nil, err
	}
	return s.Subscribers(), nil
}

// Subscriptions returns the sensors an ECU is subscribed to, ordered by
// category and instance.
func (m *Manager) Subscriptions(id ecu.ID) ([]sensor.ID, error) {
	e, err := m.lookupECU(id)
	if err != nil {
		return nil, err
	}

	sensors := e.Sensors()
	ids := make([]sensor.ID, 0, len(sensors))
	for _, s := range sensors {
		ids = append(ids, s.ID())
	}
	sortIDs(ids)
	return ids, nil
}

// Expired reports whether a back-reference no longer resolves to a live ECU.
func (m *Manager) Expired(sub sensor.Subscriber) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return !m.aliveLocked(sub)
}

func (m *Manager) sample(s *sensor.Sensor) float64 {
	v := s.Sample()
	m.recorder.Record(log.Event{
		Category: log.CategorySample,
		Message:  fmt.Sprintf("%s %d reads %.2f %s", s.Label(), s.Instance(), v, s.Descriptor().Unit),
		Sensor:   sensorRef(s),
		Value:    log.Float(v),
	})
	return v
}

// broadcast resolves the subscriber keys under the read lock and writes the
// tables after releasing it, so no sensor lock is held while an ECU is
// locked.
func (m *Manager) broadcast(s *sensor.Sensor) int {
	subs := s.Subscribers()
	value := s.Last()

	m.mu.RLock()
	targets := make([]*ecu.ECU, 0, len(subs))
	var expired []sensor.Subscriber
	for _, sub := range subs {
		if e, ok := m.resolveLocked(sub); ok {
			targets = append(targets, e)
		} else {
			expired = append(expired, sub)
		}
	}
	onUpdate := m.onUpdate
	m.mu.RUnlock()

	delivered := 0
	for _, e := range targets {
		if !e.Alive() {
			expired = append(expired, e.Key())
			continue
		}
		e.Update(s.ID(), value)
		delivered++

		m.recorder.Record(log.Event{
			Category: log.CategoryNotification,
			Message: fmt.Sprintf("Updated ECU: %s with Sensor type %s ID: %d",
				e.Name(), s.Label(), s.Instance()),
			Sensor: sensorRef(s),
			ECU:    ecuRef(e),
			Value:  log.Float(value),
		})
		if onUpdate != nil {
			onUpdate(Update{
				ECU:       e.ID(),
				ECUName:   e.Name(),
				Sensor:    s.ID(),
				Value:     value,
				Timestamp: time.Now(),
			})
		}
	}

	for _, sub := range expired {
		m.recorder.Record(log.Event{
			Category: log.CategoryError,
			Message:  "ECU object no longer exists.",
			Sensor:   sensorRef(s),
			ECU:      &log.ECURef{ID: sub.ID, Name: sub.Name},
			Status:   StatusExpired.String(),
		})
	}
	m.metrics.Expired(metrics.SideECU, len(expired))
	m.metrics.Broadcast(s.Category().String(), delivered)

	if m.config.PruneExpired && len(expired) > 0 {
		m.mu.RLock()
		s.PruneSubscribers(m.aliveLocked)
		m.mu.RUnlock()
	}

	return delivered
}

// pairLocked resolves both ends of a relation. Callers hold m.mu.
func (m *Manager) pairLocked(ecuID ecu.ID, sensorID sensor.ID) (*ecu.ECU, *sensor.Sensor, Status) {
	e, eok := m.ecus[ecuID]
	s, sok := m.sensors[sensorID]
	if m.closed || !eok || !sok {
		return e, s, StatusExpired
	}
	return e, s, StatusOK
}

// resolveLocked maps a back-reference to the live ECU it names. Callers hold
// m.mu.
func (m *Manager) resolveLocked(sub sensor.Subscriber) (*ecu.ECU, bool) {
	e, ok := m.ecus[ecu.ID(sub.ID)]
	if !ok || e.Name() != sub.Name {
		return nil, false
	}
	return e, true
}

func (m *Manager) aliveLocked(sub sensor.Subscriber) bool {
	_, ok := m.resolveLocked(sub)
	return ok
}

func (m *Manager) lookupSensor(id sensor.ID) (*sensor.Sensor, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	s, ok := m.sensors[id]
	if !ok {
		return nil, ErrSensorExpired
	}
	return s, nil
}

func (m *Manager) lookupECU(id ecu.ID) (*ecu.ECU, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	e, ok := m.ecus[id]
	if !ok {
		return nil, ErrECUExpired
	}
	return e, nil
}

// destruction records a destroyed instance for reporting after the lock is
// released.
type destruction struct {
	sensor *sensor.Sensor
	ecu    *ecu.ECU
	live   int
}

// destroySensorLocked removes a sensor whose last hold was released.
// Callers hold m.mu.
func (m *Manager) destroySensorLocked(s *sensor.Sensor) *destruction {
	if !s.Destroy() {
		return nil
	}
	delete(m.sensors, s.ID())
	delete(m.held, s.ID())
	return &destruction{sensor: s, live: m.counters.sensorDestroyed(s.Category())}
}

// destroyECULocked removes an ECU and drops its sensor holds. Callers hold
// m.mu.
func (m *Manager) destroyECULocked(e *ecu.ECU) []*destruction {
	if !e.Destroy() {
		return nil
	}
	delete(m.ecus, e.ID())

	result := []*destruction{{ecu: e, live: m.counters.ecuDestroyed()}}
	for _, s := range e.DetachAll() {
		if s.Release() == 0 {
			if d := m.destroySensorLocked(s); d != nil {
				result = append(result, d)
			}
		}
	}
	return result
}

func (m *Manager) reportDestroyed(destroyed ...*destruction) {
	for _, d := range destroyed {
		switch {
		case d == nil:
		case d.sensor != nil:
			m.metrics.SetSensorsLive(d.sensor.Category().String(), d.live)
			m.recorder.Record(log.Event{
				Category: log.CategoryLifecycle,
				Message: fmt.Sprintf("Sensor of type %s & ID = %d is destroyed. Remaining count is %d",
					d.sensor.Label(), d.sensor.Instance(), d.live),
				Sensor: sensorRef(d.sensor),
				Live:   log.Int(d.live),
			})
		case d.ecu != nil:
			m.metrics.SetECUsLive(d.live)
			m.recorder.Record(log.Event{
				Category: log.CategoryLifecycle,
				Message: fmt.Sprintf("ECU %s with ID %d is destroyed. Remaining count is %d",
					d.ecu.Name(), d.ecu.ID(), d.live),
				ECU:  ecuRef(d.ecu),
				Live: log.Int(d.live),
			})
		}
	}
}

func expiredMessage(e *ecu.ECU, s *sensor.Sensor) string {
	if e == nil {
		return "ECU object no longer exists."
	}
	if s == nil {
		return fmt.Sprintf("ECU %s cannot subscribe: sensor no longer exists.", e.Name())
	}
	return "Manager is closed."
}

func sensorRef(s *sensor.Sensor) *log.SensorRef {
	return &log.SensorRef{
		Category: s.Category().String(),
		Instance: s.Instance(),
		Label:    s.Label(),
	}
}

func ecuRef(e *ecu.ECU) *log.ECURef {
	return &log.ECURef{ID: uint32(e.ID()), Name: e.Name()}
}

func sortedSensorIDs[V any](set map[sensor.ID]V) []sensor.ID {
	ids := make([]sensor.ID, 0, len(set))
	for id := range set {
		ids = append(ids, id)
	}
	sortIDs(ids)
	return ids
}

func sortIDs(ids []sensor.ID) {
	sort.Slice(ids, func(i, j int) bool {
		if ids[i].Category != ids[j].Category {
			return ids[i].Category < ids[j].Category
		}
		return ids[i].Instance < ids[j].Instance
	})
}

func sortedECUIDs(set map[ecu.ID]*ecu.ECU) []ecu.ID {
	ids := make([]ecu.ID, 0, len(set))
	for id := range set {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}
