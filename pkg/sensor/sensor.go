package sensor

import (
	"sync"
	"sync/atomic"

	"github.com/mash-protocol/ecusim/pkg/lifecycle"
)

// Subscriber is a non-owning reference to an ECU: its global id and name.
type Subscriber struct {
	ID   uint32
	Name string
}

// Sensor is a simulated sensor of any category.
type Sensor struct {
	lifecycle.Tracker

	mu sync.RWMutex

	id      ID
	desc    Descriptor
	sampler Sampler

	// last holds the most recent reading.
	last float64

	// subscribers is unordered; removal swaps with the last entry.
	subscribers []Subscriber

	// holds counts strong owners (creator plus subscribed ECUs).
	holds atomic.Int32
}

// New creates a sensor with the given identity. The category must be valid;
// the manager validates it before assigning an instance number.
func New(id ID, sampler Sampler) *Sensor {
	desc, _ := Describe(id.Category)
	return &Sensor{
		id:      id,
		desc:    desc,
		sampler: sampler,
	}
}

// ID returns the sensor identity.
func (s *Sensor) ID() ID {
	return s.id
}

// Category returns the sensor category.
func (s *Sensor) Category() Category {
	return s.id.Category
}

// Instance returns the per-category instance number.
func (s *Sensor) Instance() uint32 {
	return s.id.Instance
}

// Descriptor returns the category descriptor.
func (s *Sensor) Descriptor() Descriptor {
	return s.desc
}

// Label returns the human-readable sensor type.
func (s *Sensor) Label() string {
	return s.desc.Label
}

// Sample forces a new reading and stores it as the most recent one.
func (s *Sensor) Sample() float64 {
	v := s.desc.Clamp(s.sampler.Sample(s.id.Category))

	s.mu.Lock()
	s.last = v
	s.mu.Unlock()

	return v
}

// Last returns the most recent reading without resampling.
// It is 0 until the first sample.
func (s *Sensor) Last() float64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.last
}

// Read samples and then returns the most recent reading.
func (s *Sensor) Read() float64 {
	s.Sample()
	return s.Last()
}

// AttachSubscriber adds sub unless a subscriber with the same id and name is
// already present. Returns false for a duplicate.
func (s *Sensor) AttachSubscriber(sub Subscriber) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, existing := range s.subscribers {
		if existing == sub {
			return false
		}
	}
	s.subscribers = append(s.subscribers, sub)
	return true
}

// DetachSubscriber removes sub. Entries for which alive returns false are
// skipped without being matched; skipped reports how many were passed over.
// A nil alive treats every entry as live.
func (s *Sensor) DetachSubscriber(sub Subscriber, alive func(Subscriber) bool) (removed bool, skipped int) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for i, existing := range s.subscribers {
		if alive != nil && !alive(existing) {
			skipped++
			continue
		}
		if existing == sub {
			last := len(s.subscribers) - 1
			s.subscribers[i] = s.subscribers[last]
			s.subscribers = s.subscribers[:last]
			return true, skipped
		}
	}
	return false, skipped
}

// HasSubscriber returns true if sub is in the subscriber set.
func (s *Sensor) HasSubscriber(sub Subscriber) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, existing := range s.subscribers {
		if existing == sub {
			return true
		}
	}
	return false
}

// Subscribers returns a copy of the subscriber set.
func (s *Sensor) Subscribers() []Subscriber {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]Subscriber, len(s.subscribers))
	copy(result, s.subscribers)
	return result
}

// PruneSubscribers drops every subscriber for which alive returns false and
// returns how many were dropped.
func (s *Sensor) PruneSubscribers(alive func(Subscriber) bool) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	kept := s.subscribers[:0]
	for _, sub := range s.subscribers {
		if alive(sub) {
			kept = append(kept, sub)
		}
	}
	pruned := len(s.subscribers) - len(kept)
	for i := len(kept); i < len(s.subscribers); i++ {
		s.subscribers[i] = Subscriber{}
	}
	s.subscribers = kept
	return pruned
}

// Retain adds a strong hold and returns the new hold count.
func (s *Sensor) Retain() int32 {
	return s.holds.Add(1)
}

// Release drops a strong hold and returns the remaining count.
// It never goes below zero.
func (s *Sensor) Release() int32 {
	for {
		cur := s.holds.Load()
		if cur <= 0 {
			return 0
		}
		if s.holds.CompareAndSwap(cur, cur-1) {
			return cur - 1
		}
	}
}

// Holds returns the current strong hold count.
func (s *Sensor) Holds() int32 {
	return s.holds.Load()
}
