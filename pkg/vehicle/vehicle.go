// Package vehicle assembles a simulated car from sensors and ECUs.
//
// A Vehicle owns one sensor of every category and one ECU of every kind,
// plus any extra instances activated later. It samples its default sensors
// into a status snapshot, drives the diagnostics and adaptive cruise control
// functions and reports threshold warnings.
package vehicle

import (
	"errors"
	"fmt"
	"sync"

	"github.com/mash-protocol/ecusim/pkg/ecu"
	"github.com/mash-protocol/ecusim/pkg/log"
	"github.com/mash-protocol/ecusim/pkg/scenario"
	"github.com/mash-protocol/ecusim/pkg/sensor"
	"github.com/mash-protocol/ecusim/pkg/subscription"
)

// ErrClosed is returned by operations on a closed vehicle.
var ErrClosed = errors.New("vehicle is closed")

// Initial status values, before the first sensor update.
const (
	InitialSpeed        = 0
	InitialTemperature  = 25
	InitialRadar        = 0
	InitialBatteryLevel = 100
)

// Options configures a Vehicle.
type Options struct {
	Make         string
	Model        string
	AdaptiveMode bool

	// Thresholds drive the status report. Zero values select the defaults.
	Thresholds scenario.Thresholds

	// Sensors and ECUs are activated in addition to the default set.
	Sensors []scenario.SensorSpec
	ECUs    []scenario.ECUSpec
}

// DefaultOptions returns the options of the built-in scenario.
func DefaultOptions() Options {
	return OptionsFromScenario(scenario.Default())
}

// OptionsFromScenario converts a loaded scenario.
func OptionsFromScenario(sc *scenario.Scenario) Options {
	return Options{
		Make:         sc.Vehicle.Make,
		Model:        sc.Vehicle.Model,
		AdaptiveMode: sc.Vehicle.AdaptiveMode,
		Thresholds:   sc.Thresholds,
		Sensors:      sc.Sensors,
		ECUs:         sc.ECUs,
	}
}

// Vehicle is a simulated car.
type Vehicle struct {
	mu sync.Mutex

	manager  *subscription.Manager
	recorder *log.Recorder

	make       string
	model      string
	thresholds scenario.Thresholds

	// defaults are the sensors sampled into info.
	defaults [sensor.CategoryCount]sensor.ID

	// sensors and ecus are every instance the vehicle created.
	sensors []sensor.ID
	ecus    []ecu.ID

	acc  ecu.ID
	diag ecu.ID

	info     [sensor.CategoryCount]float64
	adaptive bool
	closed   bool
}

// New creates a vehicle on the manager, activates the extra instances from
// opts and initializes the status values.
func New(m *subscription.Manager, opts Options) (*Vehicle, error) {
	if opts.Make == "" {
		opts.Make = scenario.DefaultMake
	}
	if opts.Model == "" {
		opts.Model = scenario.DefaultModel
	}
	opts.Thresholds = withDefaults(opts.Thresholds)

	v := &Vehicle{
		manager:    m,
		recorder:   m.Recorder(),
		make:       opts.Make,
		model:      opts.Model,
		thresholds: opts.Thresholds,
	}

	v.record(fmt.Sprintf("A new %s is created", v.Name()))

	for _, c := range sensor.Categories() {
		id, err := v.ActivateSensor(c)
		if err != nil {
			v.Close()
			return nil, err
		}
		v.defaults[c] = id
	}

	var err error
	if v.acc, err = v.ActivateECU(ecu.KindAdaptiveCruiseControl); err != nil {
		v.Close()
		return nil, err
	}
	if v.diag, err = v.ActivateECU(ecu.KindDiagnostics); err != nil {
		v.Close()
		return nil, err
	}

	if err := v.activateExtras(opts); err != nil {
		v.Close()
		return nil, err
	}

	v.Init()
	v.mu.Lock()
	v.adaptive = opts.AdaptiveMode
	v.mu.Unlock()

	return v, nil
}

// Name returns "<make> <model>".
func (v *Vehicle) Name() string {
	return v.make + " " + v.model
}

// Init resets the status values to their initial readings.
func (v *Vehicle) Init() {
	v.record(fmt.Sprintf("Starting the Engine of %s vom vom vom", v.Name()))

	v.mu.Lock()
	v.info[sensor.CategorySpeed] = InitialSpeed
	v.info[sensor.CategoryTemperature] = InitialTemperature
	v.info[sensor.CategoryRadar] = InitialRadar
	v.info[sensor.CategoryBatteryLevel] = InitialBatteryLevel
	v.mu.Unlock()

	v.record(fmt.Sprintf("Speed of %s: %d", v.Name(), InitialSpeed))
	v.record(fmt.Sprintf("Temperature of %s: %d", v.Name(), InitialTemperature))
	v.record(fmt.Sprintf("Radar reading of %s: %d", v.Name(), InitialRadar))
	v.record(fmt.Sprintf("Battery level of %s: %d%%", v.Name(), InitialBatteryLevel))
}

// ActivateSensor creates an extra sensor owned by the vehicle.
func (v *Vehicle) ActivateSensor(c sensor.Category) (sensor.ID, error) {
	v.mu.Lock()
	defer v.mu.Unlock()

	if v.closed {
		return sensor.ID{}, ErrClosed
	}
	id, err := v.manager.CreateSensor(c)
	if err != nil {
		return sensor.ID{}, err
	}
	v.sensors = append(v.sensors, id)

	v.record(fmt.Sprintf("New Activated sensor: %s %d", id.Category, id.Instance))
	return id, nil
}

// ActivateECU creates an extra ECU owned by the vehicle.
func (v *Vehicle) ActivateECU(k ecu.Kind) (ecu.ID, error) {
	v.mu.Lock()
	defer v.mu.Unlock()

	if v.closed {
		return 0, ErrClosed
	}
	id, err := v.manager.CreateECU(k)
	if err != nil {
		return 0, err
	}
	v.ecus = append(v.ecus, id)

	v.record(fmt.Sprintf("New Activated ECU: %s", k.Name()))
	return id, nil
}

// UpdateSensorsData samples every default sensor into the status values.
func (v *Vehicle) UpdateSensorsData() error {
	var values [sensor.CategoryCount]float64
	for _, c := range sensor.Categories() {
		val, err := v.manager.Read(v.defaults[c])
		if err != nil {
			return fmt.Errorf("read %s: %w", v.defaults[c], err)
		}
		values[c] = val
	}

	v.mu.Lock()
	v.info = values
	v.mu.Unlock()

	v.record(fmt.Sprintf("Updated sensor data for %s: Speed: %.2f, Temperature: %.2f, Radar: %.2f, Battery Level: %.2f%%",
		v.Name(),
		values[sensor.CategorySpeed],
		values[sensor.CategoryTemperature],
		values[sensor.CategoryRadar],
		values[sensor.CategoryBatteryLevel]))
	return nil
}

// SetAdaptiveMode switches adaptive cruise control and performs the
// function of every adaptive cruise control ECU.
func (v *Vehicle) SetAdaptiveMode(on bool) error {
	v.mu.Lock()
	v.adaptive = on
	ecus := append([]ecu.ID(nil), v.ecus...)
	v.mu.Unlock()

	state := "disabled"
	if on {
		state = "enabled"
	}
	v.record("Setting adaptive mode to " + state)

	for _, id := range ecus {
		e, ok := v.manager.ECU(id)
		if !ok || e.Kind() != ecu.KindAdaptiveCruiseControl {
			continue
		}
		if err := v.Perform(id); err != nil {
			return err
		}
	}
	return nil
}

// AdaptiveMode reports whether adaptive cruise control is enabled.
func (v *Vehicle) AdaptiveMode() bool {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.adaptive
}

// StartDiagnostics subscribes the diagnostics ECU to every vehicle sensor
// and performs its function.
func (v *Vehicle) StartDiagnostics() error {
	v.mu.Lock()
	if v.closed {
		v.mu.Unlock()
		return ErrClosed
	}
	sensors := append([]sensor.ID(nil), v.sensors...)
	diag := v.diag
	v.mu.Unlock()

	for _, id := range sensors {
		v.manager.Subscribe(diag, id)
	}
	return v.Perform(diag)
}

// Perform runs the function of an ECU.
//
// The adaptive cruise control ECU follows the vehicle's adaptive mode. The
// diagnostics ECU turns on, refreshes every sensor it is subscribed to and
// then updates the vehicle status values.
func (v *Vehicle) Perform(id ecu.ID) error {
	e, ok := v.manager.ECU(id)
	if !ok {
		return subscription.ErrECUExpired
	}

	switch e.Kind() {
	case ecu.KindAdaptiveCruiseControl:
		on := v.AdaptiveMode()
		e.SetOn(on)
		if on {
			v.record("Adaptive Cruise Control MODE is ON")
		} else {
			v.record("Adaptive Cruise Control MODE is OFF")
		}
		return nil

	case ecu.KindDiagnostics:
		v.record("Diagnostics MODE is ON")
		e.SetOn(true)
		if _, err := v.manager.Refresh(id); err != nil {
			return err
		}
		return v.UpdateSensorsData()

	default:
		return fmt.Errorf("%w: %d", ecu.ErrInvalidKind, uint8(e.Kind()))
	}
}

// Value returns the current status value of a category.
func (v *Vehicle) Value(c sensor.Category) float64 {
	if !c.Valid() {
		return 0
	}
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.info[c]
}

// DefaultSensor returns the default sensor of a category.
func (v *Vehicle) DefaultSensor(c sensor.Category) sensor.ID {
	return v.defaults[c]
}

// Sensors returns every sensor the vehicle created, in creation order.
func (v *Vehicle) Sensors() []sensor.ID {
	v.mu.Lock()
	defer v.mu.Unlock()
	return append([]sensor.ID(nil), v.sensors...)
}

// ECUs returns every ECU the vehicle created, in creation order.
func (v *Vehicle) ECUs() []ecu.ID {
	v.mu.Lock()
	defer v.mu.Unlock()
	return append([]ecu.ID(nil), v.ecus...)
}

// AdaptiveCruiseControl returns the default adaptive cruise control ECU.
func (v *Vehicle) AdaptiveCruiseControl() ecu.ID {
	return v.acc
}

// Diagnostics returns the default diagnostics ECU.
func (v *Vehicle) Diagnostics() ecu.ID {
	return v.diag
}

// Close releases every ECU and then every sensor the vehicle created.
// Instances already released elsewhere are skipped.
func (v *Vehicle) Close() error {
	v.mu.Lock()
	if v.closed {
		v.mu.Unlock()
		return nil
	}
	v.closed = true
	ecus := v.ecus
	sensors := v.sensors
	v.mu.Unlock()

	var errs []error
	for _, id := range ecus {
		if err := v.manager.ReleaseECU(id); err != nil && !errors.Is(err, subscription.ErrECUExpired) {
			errs = append(errs, err)
		}
	}
	for _, id := range sensors {
		err := v.manager.ReleaseSensor(id)
		if err != nil && !errors.Is(err, subscription.ErrSensorExpired) &&
			!errors.Is(err, subscription.ErrAlreadyReleased) {
			errs = append(errs, err)
		}
	}

	v.record(fmt.Sprintf("%s is shut down", v.Name()))
	return errors.Join(errs...)
}

// activateExtras creates the scenario's additional sensors and ECUs. Extra
// ECUs subscribe to every vehicle sensor of their listed categories.
func (v *Vehicle) activateExtras(opts Options) error {
	for _, spec := range opts.Sensors {
		for i := 0; i < spec.Count; i++ {
			if _, err := v.ActivateSensor(spec.Category); err != nil {
				return err
			}
		}
	}

	for _, spec := range opts.ECUs {
		id, err := v.ActivateECU(spec.Kind)
		if err != nil {
			return err
		}
		for _, sid := range v.Sensors() {
			if containsCategory(spec.Subscribe, sid.Category) {
				v.manager.Subscribe(id, sid)
			}
		}
	}
	return nil
}

func (v *Vehicle) record(msg string) {
	v.recorder.Text(log.CategoryVehicle, msg)
}

func containsCategory(list []sensor.Category, c sensor.Category) bool {
	for _, item := range list {
		if item == c {
			return true
		}
	}
	return false
}

func withDefaults(t scenario.Thresholds) scenario.Thresholds {
	d := scenario.DefaultThresholds()
	if t.MaxSpeed == 0 {
		t.MaxSpeed = d.MaxSpeed
	}
	if t.MaxTemperature == 0 {
		t.MaxTemperature = d.MaxTemperature
	}
	if t.LowBattery == 0 {
		t.LowBattery = d.LowBattery
	}
	if t.SafeRadarDistance == 0 {
		t.SafeRadarDistance = d.SafeRadarDistance
	}
	return t
}
