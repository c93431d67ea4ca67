package log

import "time"

// Event is one record of the simulation trace.
// CBOR encoding uses integer keys for compactness.
type Event struct {
	// Timestamp when the event occurred (nanosecond precision).
	Timestamp time.Time `cbor:"1,keyasint"`

	// SessionID identifies the simulation run (UUID).
	SessionID string `cbor:"2,keyasint"`

	// Category classifies the event.
	Category Category `cbor:"3,keyasint"`

	// Message is the human-readable text of the event.
	Message string `cbor:"4,keyasint"`

	// Sensor is the sensor involved, if any.
	Sensor *SensorRef `cbor:"5,keyasint,omitempty"`

	// ECU is the ECU involved, if any.
	ECU *ECURef `cbor:"6,keyasint,omitempty"`

	// Value carries a reading for sample and notification events.
	Value *float64 `cbor:"7,keyasint,omitempty"`

	// Status is the outcome of a subscription operation.
	Status string `cbor:"8,keyasint,omitempty"`

	// Live is the live instance count after a lifecycle event.
	Live *int `cbor:"9,keyasint,omitempty"`
}

// Category classifies the event type.
type Category uint8

const (
	// CategoryLifecycle records creation and destruction of sensors and ECUs.
	CategoryLifecycle Category = 0
	// CategorySubscription records attach and detach outcomes.
	CategorySubscription Category = 1
	// CategoryNotification records table updates pushed by sensors.
	CategoryNotification Category = 2
	// CategorySample records new sensor readings.
	CategorySample Category = 3
	// CategoryVehicle records vehicle-level status and mode changes.
	CategoryVehicle Category = 4
	// CategoryError records absorbed errors such as expired references.
	CategoryError Category = 5
)

// Categories returns all event categories in declaration order.
func Categories() []Category {
	return []Category{
		CategoryLifecycle,
		CategorySubscription,
		CategoryNotification,
		CategorySample,
		CategoryVehicle,
		CategoryError,
	}
}

// String returns the category name.
func (c Category) String() string {
	switch c {
	case CategoryLifecycle:
		return "LIFECYCLE"
	case CategorySubscription:
		return "SUBSCRIPTION"
	case CategoryNotification:
		return "NOTIFICATION"
	case CategorySample:
		return "SAMPLE"
	case CategoryVehicle:
		return "VEHICLE"
	case CategoryError:
		return "ERROR"
	default:
		return "UNKNOWN"
	}
}

// SensorRef identifies a sensor inside an event.
type SensorRef struct {
	// Category is the sensor category name (e.g. "SPEED").
	Category string `cbor:"1,keyasint"`

	// Instance is the per-category instance number.
	Instance uint32 `cbor:"2,keyasint"`

	// Label is the human-readable sensor type.
	Label string `cbor:"3,keyasint,omitempty"`
}

// ECURef identifies an ECU inside an event.
type ECURef struct {
	// ID is the global ECU id.
	ID uint32 `cbor:"1,keyasint"`

	// Name is the ECU name.
	Name string `cbor:"2,keyasint"`
}

// Float returns a pointer to v, for Event.Value.
func Float(v float64) *float64 {
	return &v
}

// Int returns a pointer to v, for Event.Live.
func Int(v int) *int {
	return &v
}
