// Package sensor implements the simulated vehicle sensors.
//
// A single Sensor type covers every sensor category. The category selects a
// Descriptor (value range, label, unit) instead of a distinct type per
// sensor kind.
//
// # Identity
//
// A sensor is identified by its category and an instance number. Instance
// numbers are assigned per category by the subscription manager, start at 1
// and are never reused.
//
// # Readings
//
// Readings come from a Sampler. Sample forces a new reading, Last returns
// the most recent one without resampling, and Read does both in order.
//
// # Subscribers
//
// A sensor keeps a set of non-owning subscriber keys (ECU id and name).
// It never owns the ECUs behind those keys; whether a key still resolves to
// a live ECU is decided by the caller through an alive callback.
package sensor
