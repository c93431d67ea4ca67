package vehicle

import (
	"github.com/mash-protocol/ecusim/pkg/log"
	"github.com/mash-protocol/ecusim/pkg/sensor"
)

// Report is a snapshot of the vehicle status checked against thresholds.
type Report struct {
	Vehicle string

	Speed        float64
	Temperature  float64
	Radar        float64
	BatteryLevel float64

	Overspeed     bool
	Overheating   bool
	LowBattery    bool
	CollisionRisk bool
	CruiseControl bool

	// Messages holds one line per check, in reporting order.
	Messages []string
}

// Status messages.
const (
	MsgOverspeed       = "Speed Exceeded please SLOW DOWN"
	MsgSpeedOK         = "Speed is within the allowed Range"
	MsgOverheating     = "Car is overheating please stop"
	MsgTemperatureOK   = "Temperature is within the allowed Range"
	MsgLowBattery      = "LOW BATTERY PLEASE GO TO THE NEAREST CHARGING STATION"
	MsgBatteryOK       = "Battery is Good"
	MsgCollisionRisk   = "Collision is predicted please Slow down"
	MsgNoCollision     = "NO collision Threats"
	MsgCruiseControlOn = "CRUISE CONTROL IS ON"
	MsgCruiseOff       = "CRUISE CONTROL IS OFF"
)

// Status evaluates the current status values.
func (v *Vehicle) Status() Report {
	v.mu.Lock()
	info := v.info
	adaptive := v.adaptive
	v.mu.Unlock()

	t := v.thresholds
	r := Report{
		Vehicle:       v.Name(),
		Speed:         info[sensor.CategorySpeed],
		Temperature:   info[sensor.CategoryTemperature],
		Radar:         info[sensor.CategoryRadar],
		BatteryLevel:  info[sensor.CategoryBatteryLevel],
		CruiseControl: adaptive,
	}
	r.Overspeed = r.Speed > t.MaxSpeed
	r.Overheating = r.Temperature > t.MaxTemperature
	r.LowBattery = r.BatteryLevel < t.LowBattery
	r.CollisionRisk = r.Radar < t.SafeRadarDistance

	r.Messages = []string{
		pick(r.Overspeed, MsgOverspeed, MsgSpeedOK),
		pick(r.Overheating, MsgOverheating, MsgTemperatureOK),
		pick(r.LowBattery, MsgLowBattery, MsgBatteryOK),
		pick(r.CollisionRisk, MsgCollisionRisk, MsgNoCollision),
		pick(r.CruiseControl, MsgCruiseControlOn, MsgCruiseOff),
	}
	return r
}

// Warnings returns true if any threshold check failed.
func (r Report) Warnings() bool {
	return r.Overspeed || r.Overheating || r.LowBattery || r.CollisionRisk
}

// DisplayStatus evaluates the status and records every message.
func (v *Vehicle) DisplayStatus() Report {
	r := v.Status()
	for _, msg := range r.Messages {
		v.recorder.Record(log.Event{
			Category: log.CategoryVehicle,
			Message:  msg,
		})
	}
	return r
}

func pick(cond bool, yes, no string) string {
	if cond {
		return yes
	}
	return no
}

// Tick runs one simulation step: update the status values, run diagnostics
// and display the status.
func (v *Vehicle) Tick() (Report, error) {
	if err := v.UpdateSensorsData(); err != nil {
		return Report{}, err
	}
	if err := v.StartDiagnostics(); err != nil {
		return Report{}, err
	}
	return v.DisplayStatus(), nil
}
