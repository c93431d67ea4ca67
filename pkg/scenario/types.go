// Package scenario loads simulation scenarios from YAML files.
//
// A scenario describes the simulated vehicle, the run loop, the status
// thresholds and any sensors or ECUs created in addition to the vehicle's
// default set. Missing sections keep their defaults.
package scenario

import (
	"fmt"
	"time"

	"github.com/mash-protocol/ecusim/pkg/ecu"
	"github.com/mash-protocol/ecusim/pkg/sensor"
)

// Scenario is a complete simulation setup.
type Scenario struct {
	// Name is an optional label for the scenario.
	Name string `yaml:"name,omitempty"`

	// Vehicle describes the simulated car.
	Vehicle Vehicle `yaml:"vehicle"`

	// Simulation controls the run loop.
	Simulation Simulation `yaml:"simulation"`

	// Thresholds drive the status report warnings.
	Thresholds Thresholds `yaml:"thresholds"`

	// Sensors lists additional sensors to create.
	Sensors []SensorSpec `yaml:"sensors,omitempty"`

	// ECUs lists additional ECUs to create.
	ECUs []ECUSpec `yaml:"ecus,omitempty"`
}

// Vehicle describes the simulated car.
type Vehicle struct {
	Make         string `yaml:"make"`
	Model        string `yaml:"model"`
	AdaptiveMode bool   `yaml:"adaptive_mode"`
}

// Simulation controls the run loop.
type Simulation struct {
	// Interval is the pause between ticks.
	Interval time.Duration `yaml:"interval"`

	// Ticks is the number of ticks to run. Zero runs until interrupted.
	Ticks int `yaml:"ticks"`

	// Seed seeds the reading generator. Zero selects a time-based seed.
	Seed uint64 `yaml:"seed"`

	// PruneExpired removes expired ECU references during broadcasts.
	PruneExpired bool `yaml:"prune_expired"`
}

// Thresholds are the limits the status report checks readings against.
type Thresholds struct {
	MaxSpeed          float64 `yaml:"max_speed"`
	MaxTemperature    float64 `yaml:"max_temperature"`
	LowBattery        float64 `yaml:"low_battery"`
	SafeRadarDistance float64 `yaml:"safe_radar_distance"`
}

// SensorSpec requests Count extra sensors of a category.
type SensorSpec struct {
	Category sensor.Category `yaml:"category"`
	Count    int             `yaml:"count"`
}

// ECUSpec requests an extra ECU subscribed to every sensor of the listed
// categories.
type ECUSpec struct {
	Kind      ecu.Kind          `yaml:"kind"`
	Subscribe []sensor.Category `yaml:"subscribe,omitempty"`
}

// Default values.
const (
	DefaultMake     = "kia"
	DefaultModel    = "rio"
	DefaultInterval = 5 * time.Second

	DefaultMaxSpeed          = 50
	DefaultMaxTemperature    = 30
	DefaultLowBattery        = 20
	DefaultSafeRadarDistance = 5
)

// Default returns the built-in scenario.
func Default() *Scenario {
	return &Scenario{
		Vehicle: Vehicle{
			Make:         DefaultMake,
			Model:        DefaultModel,
			AdaptiveMode: true,
		},
		Simulation: Simulation{
			Interval: DefaultInterval,
		},
		Thresholds: DefaultThresholds(),
	}
}

// DefaultThresholds returns the built-in status thresholds.
func DefaultThresholds() Thresholds {
	return Thresholds{
		MaxSpeed:          DefaultMaxSpeed,
		MaxTemperature:    DefaultMaxTemperature,
		LowBattery:        DefaultLowBattery,
		SafeRadarDistance: DefaultSafeRadarDistance,
	}
}

// LoadError provides details about a scenario loading error.
type LoadError struct {
	// File is the path to the file that failed to load.
	File string

	// Message describes the error.
	Message string

	// Cause is the underlying error, if any.
	Cause error
}

func (e *LoadError) Error() string {
	msg := e.Message
	if e.File != "" {
		msg = e.File + ": " + msg
	}
	if e.Cause != nil {
		msg = fmt.Sprintf("%s: %v", msg, e.Cause)
	}
	return msg
}

func (e *LoadError) Unwrap() error {
	return e.Cause
}
