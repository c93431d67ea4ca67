// Package ecu implements the simulated electronic control units.
//
// An ECU strongly references the sensors it subscribed to and keeps a table
// of the most recent value per (sensor category, sensor instance). Table
// partitions for every category exist from construction; instance entries
// appear only once that sensor has written to the ECU.
package ecu

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/mash-protocol/ecusim/pkg/lifecycle"
	"github.com/mash-protocol/ecusim/pkg/sensor"
)

// ErrInvalidKind is returned when an ECU kind name or value is unknown.
var ErrInvalidKind = errors.New("invalid ECU kind")

// ID is the global ECU identifier, shared across all kinds.
type ID uint32

// Kind selects the ECU function.
type Kind uint8

const (
	// KindAdaptiveCruiseControl is the adaptive cruise control unit.
	KindAdaptiveCruiseControl Kind = 0

	// KindDiagnostics is the diagnostics unit.
	KindDiagnostics Kind = 1
)

// Valid returns true for a known kind.
func (k Kind) Valid() bool {
	return k <= KindDiagnostics
}

// String returns the kind name.
func (k Kind) String() string {
	switch k {
	case KindAdaptiveCruiseControl:
		return "ADAPTIVE_CRUISE_CONTROL"
	case KindDiagnostics:
		return "DIAGNOSTICS"
	default:
		return "UNKNOWN"
	}
}

// Name returns the display name used as part of the ECU identity.
func (k Kind) Name() string {
	switch k {
	case KindAdaptiveCruiseControl:
		return "Adaptive Cruise Control ECU"
	case KindDiagnostics:
		return "Diagnostic ECU"
	default:
		return "Unknown ECU"
	}
}

// ParseKind parses a kind name (case-insensitive, short forms allowed).
func ParseKind(s string) (Kind, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "acc", "adaptive", "adaptive_cruise_control", "adaptive-cruise-control", "cruise":
		return KindAdaptiveCruiseControl, nil
	case "diagnostics", "diagnostic", "diag":
		return KindDiagnostics, nil
	default:
		return 0, fmt.Errorf("%w: %q", ErrInvalidKind, s)
	}
}

// MarshalText implements encoding.TextMarshaler.
func (k Kind) MarshalText() ([]byte, error) {
	switch k {
	case KindAdaptiveCruiseControl:
		return []byte("acc"), nil
	case KindDiagnostics:
		return []byte("diagnostics"), nil
	default:
		return nil, fmt.Errorf("%w: %d", ErrInvalidKind, uint8(k))
	}
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (k *Kind) UnmarshalText(text []byte) error {
	parsed, err := ParseKind(string(text))
	if err != nil {
		return err
	}
	*k = parsed
	return nil
}

// Table is a copy of an ECU's value table.
type Table map[sensor.Category]map[uint32]float64

// Instances returns the instance numbers present for a category, sorted.
func (t Table) Instances(c sensor.Category) []uint32 {
	ids := make([]uint32, 0, len(t[c]))
	for id := range t[c] {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

// ECU is a simulated electronic control unit.
type ECU struct {
	lifecycle.Tracker

	mu sync.RWMutex

	id   ID
	kind Kind
	name string

	// table is indexed by category; inner maps by sensor instance.
	table [sensor.CategoryCount]map[uint32]float64

	// sensors holds strong references, unordered.
	sensors []*sensor.Sensor

	// on is set once the ECU has performed its function.
	on bool
}

// New creates an ECU. The name is derived from the kind.
func New(id ID, kind Kind) *ECU {
	e := &ECU{
		id:   id,
		kind: kind,
		name: kind.Name(),
	}
	for i := range e.table {
		e.table[i] = make(map[uint32]float64)
	}
	return e
}

// ID returns the global ECU id.
func (e *ECU) ID() ID {
	return e.id
}

// Kind returns the ECU kind.
func (e *ECU) Kind() Kind {
	return e.kind
}

// Name returns the ECU name.
func (e *ECU) Name() string {
	return e.name
}

// Key returns the non-owning reference sensors store for this ECU.
func (e *ECU) Key() sensor.Subscriber {
	return sensor.Subscriber{ID: uint32(e.id), Name: e.name}
}

// AttachSensor adds a strong reference to s unless a sensor with the same
// category and instance is already attached. Returns false for a duplicate.
func (e *ECU) AttachSensor(s *sensor.Sensor) bool {
	e.mu.Lock()
	defer e.mu.Unlock()

	for _, existing := range e.sensors {
		if existing.ID() == s.ID() {
			return false
		}
	}
	e.sensors = append(e.sensors, s)
	return true
}

// DetachSensor removes the sensor with the given id and returns it.
func (e *ECU) DetachSensor(id sensor.ID) (*sensor.Sensor, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()

	for i, existing := range e.sensors {
		if existing.ID() == id {
			last := len(e.sensors) - 1
			e.sensors[i] = e.sensors[last]
			e.sensors[last] = nil
			e.sensors = e.sensors[:last]
			return existing, true
		}
	}
	return nil, false
}

// DetachAll removes and returns every attached sensor.
func (e *ECU) DetachAll() []*sensor.Sensor {
	e.mu.Lock()
	defer e.mu.Unlock()

	detached := e.sensors
	e.sensors = nil
	return detached
}

// HasSensor returns true if the sensor is attached.
func (e *ECU) HasSensor(id sensor.ID) bool {
	e.mu.RLock()
	defer e.mu.RUnlock()

	for _, existing := range e.sensors {
		if existing.ID() == id {
			return true
		}
	}
	return false
}

// Sensors returns a copy of the attached sensors.
func (e *ECU) Sensors() []*sensor.Sensor {
	e.mu.RLock()
	defer e.mu.RUnlock()

	result := make([]*sensor.Sensor, len(e.sensors))
	copy(result, e.sensors)
	return result
}

// Update stores v as the most recent value for the sensor.
func (e *ECU) Update(id sensor.ID, v float64) {
	if !id.Category.Valid() {
		return
	}
	e.mu.Lock()
	e.table[id.Category][id.Instance] = v
	e.mu.Unlock()
}

// Read returns the stored value for a sensor, if that sensor ever wrote one.
func (e *ECU) Read(c sensor.Category, instance uint32) (float64, bool) {
	if !c.Valid() {
		return 0, false
	}
	e.mu.RLock()
	defer e.mu.RUnlock()

	v, ok := e.table[c][instance]
	return v, ok
}

// Table returns a copy of the value table. Every category is present.
func (e *ECU) Table() Table {
	e.mu.RLock()
	defer e.mu.RUnlock()

	t := make(Table, sensor.CategoryCount)
	for i, values := range e.table {
		cp := make(map[uint32]float64, len(values))
		for k, v := range values {
			cp[k] = v
		}
		t[sensor.Category(i)] = cp
	}
	return t
}

// SetOn records whether the ECU function is engaged.
func (e *ECU) SetOn(on bool) {
	e.mu.Lock()
	e.on = on
	e.mu.Unlock()
}

// On returns whether the ECU function is engaged.
func (e *ECU) On() bool {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.on
}
