package scenario

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"
)

// Parse parses a scenario from YAML bytes. Fields missing from the document
// keep the values of Default.
func Parse(data []byte) (*Scenario, error) {
	sc := Default()

	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(sc); err != nil && !errors.Is(err, io.EOF) {
		return nil, &LoadError{
			Message: "failed to parse YAML",
			Cause:   err,
		}
	}

	if err := sc.Validate(); err != nil {
		return nil, err
	}
	return sc, nil
}

// Load loads a scenario from a file.
func Load(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, &LoadError{
			File:    path,
			Message: "failed to read file",
			Cause:   err,
		}
	}

	sc, err := Parse(data)
	if err != nil {
		var le *LoadError
		if errors.As(err, &le) {
			le.File = path
			return nil, le
		}
		return nil, &LoadError{
			File:    path,
			Message: err.Error(),
		}
	}
	return sc, nil
}

// Validate checks the scenario for values the simulation cannot run with.
func (s *Scenario) Validate() error {
	if s.Vehicle.Make == "" || s.Vehicle.Model == "" {
		return &LoadError{Message: "vehicle make and model are required"}
	}
	if s.Simulation.Interval < 0 {
		return &LoadError{Message: "simulation interval must not be negative"}
	}
	if s.Simulation.Ticks < 0 {
		return &LoadError{Message: "simulation ticks must not be negative"}
	}

	for i, spec := range s.Sensors {
		if !spec.Category.Valid() {
			return &LoadError{Message: fmt.Sprintf("sensors[%d]: invalid category", i)}
		}
		if spec.Count < 1 {
			return &LoadError{Message: fmt.Sprintf("sensors[%d]: count must be at least 1", i)}
		}
	}
	for i, spec := range s.ECUs {
		if !spec.Kind.Valid() {
			return &LoadError{Message: fmt.Sprintf("ecus[%d]: invalid kind", i)}
		}
	}
	return nil
}
