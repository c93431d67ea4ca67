package subscription

import (
	"sync/atomic"

	"github.com/mash-protocol/ecusim/pkg/ecu"
	"github.com/mash-protocol/ecusim/pkg/sensor"
)

// Counts is a snapshot of the identity and live counters.
type Counts struct {
	// Sensors is the live sensor count per category.
	Sensors [sensor.CategoryCount]int

	// Issued is the last instance number handed out per category.
	Issued [sensor.CategoryCount]uint32

	// SensorsLive is the live sensor count across all categories.
	SensorsLive int

	// ECUs is the live ECU count across all kinds.
	ECUs int

	// ECUsIssued is the last ECU id handed out.
	ECUsIssued uint32
}

// Live returns the live sensor count of a category.
func (c Counts) Live(category sensor.Category) int {
	if !category.Valid() {
		return 0
	}
	return c.Sensors[category]
}

// counters holds the identity generators and live counts.
type counters struct {
	next [sensor.CategoryCount]atomic.Uint32
	live [sensor.CategoryCount]atomic.Int64

	sensorsLive atomic.Int64

	ecuNext atomic.Uint32
	ecuLive atomic.Int64
}

// nextInstance issues the next instance number for a category.
func (c *counters) nextInstance(category sensor.Category) uint32 {
	return c.next[category].Add(1)
}

// nextECU issues the next global ECU id.
func (c *counters) nextECU() ecu.ID {
	return ecu.ID(c.ecuNext.Add(1))
}

// sensorCreated increments the live counts and returns the category count.
func (c *counters) sensorCreated(category sensor.Category) int {
	c.sensorsLive.Add(1)
	return int(c.live[category].Add(1))
}

// sensorDestroyed decrements the live counts and returns the category count.
func (c *counters) sensorDestroyed(category sensor.Category) int {
	decrement(&c.sensorsLive)
	return int(decrement(&c.live[category]))
}

// ecuCreated increments the live ECU count and returns it.
func (c *counters) ecuCreated() int {
	return int(c.ecuLive.Add(1))
}

// ecuDestroyed decrements the live ECU count and returns it.
func (c *counters) ecuDestroyed() int {
	return int(decrement(&c.ecuLive))
}

func (c *counters) snapshot() Counts {
	var s Counts
	for i := range c.live {
		s.Sensors[i] = int(c.live[i].Load())
		s.Issued[i] = c.next[i].Load()
	}
	s.SensorsLive = int(c.sensorsLive.Load())
	s.ECUs = int(c.ecuLive.Load())
	s.ECUsIssued = c.ecuNext.Load()
	return s
}

// decrement subtracts one, stopping at zero.
func decrement(v *atomic.Int64) int64 {
	for {
		cur := v.Load()
		if cur <= 0 {
			return 0
		}
		if v.CompareAndSwap(cur, cur-1) {
			return cur - 1
		}
	}
}
