package sensor

import (
	"math/rand/v2"
	"sync"
	"time"
)

// Sampler produces raw sensor values for a category.
// Implementations must be safe for concurrent use.
type Sampler interface {
	Sample(c Category) float64
}

// SamplerFunc adapts a function to the Sampler interface.
type SamplerFunc func(c Category) float64

// Sample calls f(c).
func (f SamplerFunc) Sample(c Category) float64 {
	return f(c)
}

// UniformSampler draws values uniformly from each category's range.
type UniformSampler struct {
	mu  sync.Mutex
	rng *rand.Rand
}

// NewUniformSampler creates a UniformSampler. A zero seed selects a
// time-based seed.
func NewUniformSampler(seed uint64) *UniformSampler {
	if seed == 0 {
		seed = uint64(time.Now().UnixNano())
	}
	return &UniformSampler{
		rng: rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15)),
	}
}

// Sample returns a value in [Min, Max] of the category's descriptor.
// Unknown categories return 0.
func (u *UniformSampler) Sample(c Category) float64 {
	d, ok := Describe(c)
	if !ok {
		return 0
	}

	u.mu.Lock()
	f := u.rng.Float64()
	u.mu.Unlock()

	return d.Min + f*(d.Max-d.Min)
}

// Compile-time interface satisfaction checks.
var (
	_ Sampler = (*UniformSampler)(nil)
	_ Sampler = SamplerFunc(nil)
)
