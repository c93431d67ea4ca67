package subscription

import (
	"errors"
	"time"

	"github.com/mash-protocol/ecusim/pkg/ecu"
	"github.com/mash-protocol/ecusim/pkg/log"
	"github.com/mash-protocol/ecusim/pkg/metrics"
	"github.com/mash-protocol/ecusim/pkg/sensor"
)

// Manager errors.
var (
	ErrUnknownCategory = errors.New("unknown sensor category")
	ErrUnknownKind     = errors.New("unknown ECU kind")
	ErrSensorExpired   = errors.New("sensor no longer exists")
	ErrECUExpired      = errors.New("ECU no longer exists")
	ErrAlreadyReleased = errors.New("creator hold already released")
	ErrManagerClosed   = errors.New("manager is closed")
)

// Status is the outcome of a relation operation. None of the non-OK values
// are faults; the operation was a logged no-op.
type Status uint8

const (
	// StatusOK indicates the relation changed.
	StatusOK Status = iota

	// StatusAlreadySubscribed indicates the ECU was already subscribed.
	StatusAlreadySubscribed

	// StatusNotFound indicates there was no relation to detach.
	StatusNotFound

	// StatusExpired indicates one side no longer exists.
	StatusExpired
)

// String returns a human-readable status name.
func (s Status) String() string {
	switch s {
	case StatusOK:
		return "OK"
	case StatusAlreadySubscribed:
		return "ALREADY_SUBSCRIBED"
	case StatusNotFound:
		return "NOT_FOUND"
	case StatusExpired:
		return "EXPIRED"
	default:
		return "UNKNOWN"
	}
}

// Config holds manager configuration.
type Config struct {
	// Sampler produces sensor readings. Nil selects a time-seeded
	// UniformSampler.
	Sampler sensor.Sampler

	// Logger receives simulation events. Nil discards them.
	Logger log.Logger

	// SessionID is stamped on every event. Empty generates a UUID.
	SessionID string

	// Metrics receives counters. Nil disables metrics.
	Metrics *metrics.Collector

	// PruneExpired removes expired ECU keys from a sensor's subscriber set
	// during Broadcast. When false, expired keys stay and are skipped.
	PruneExpired bool
}

// DefaultConfig returns the default manager configuration.
func DefaultConfig() Config {
	return Config{
		PruneExpired: false,
	}
}

// Update describes one table write, delivered to the OnUpdate callback.
type Update struct {
	// ECU is the id of the ECU whose table was written.
	ECU ecu.ID

	// ECUName is the name of that ECU.
	ECUName string

	// Sensor identifies the reporting sensor.
	Sensor sensor.ID

	// Value is the reading written into the table.
	Value float64

	// Timestamp is when the write happened.
	Timestamp time.Time
}
