package commands

import (
	"fmt"
	"time"

	"github.com/mash-protocol/ecusim/pkg/log"
)

// FilterOptions holds the raw flag values of the filter command. Empty
// fields do not restrict the output.
type FilterOptions struct {
	Output    string
	SessionID string
	TimeStart string
	TimeEnd   string
	Category  string
	Sensor    string
	ECUID     string
}

// buildFilter parses the options into a reader filter.
func buildFilter(opts FilterOptions) (log.Filter, error) {
	filter := log.Filter{SessionID: opts.SessionID}

	var err error
	if filter.TimeStart, err = parseTimeFlag("time-start", opts.TimeStart); err != nil {
		return log.Filter{}, err
	}
	if filter.TimeEnd, err = parseTimeFlag("time-end", opts.TimeEnd); err != nil {
		return log.Filter{}, err
	}

	if opts.Category != "" {
		c, err := ParseCategoryFlag(opts.Category)
		if err != nil {
			return log.Filter{}, err
		}
		filter.Category = &c
	}
	if opts.Sensor != "" {
		if filter.SensorCategory, filter.SensorInstance, err = parseSensorFlag(opts.Sensor); err != nil {
			return log.Filter{}, err
		}
	}
	if opts.ECUID != "" {
		id, err := ParseECUFlag(opts.ECUID)
		if err != nil {
			return log.Filter{}, err
		}
		filter.ECUID = &id
	}
	return filter, nil
}

func parseTimeFlag(name, value string) (*time.Time, error) {
	if value == "" {
		return nil, nil
	}
	t, err := time.Parse(time.RFC3339, value)
	if err != nil {
		return nil, fmt.Errorf("invalid %s format: %w", name, err)
	}
	return &t, nil
}

// RunFilter copies the events of path that match opts into opts.Output and
// returns how many were written.
func RunFilter(path string, opts FilterOptions) (int, error) {
	filter, err := buildFilter(opts)
	if err != nil {
		return 0, err
	}

	reader, err := log.NewFilteredReader(path, filter)
	if err != nil {
		return 0, fmt.Errorf("failed to open log file: %w", err)
	}
	defer reader.Close()

	out, err := log.NewFileLogger(opts.Output)
	if err != nil {
		return 0, fmt.Errorf("failed to create output logger: %w", err)
	}

	count := 0
	for event, err := range reader.Events() {
		if err != nil {
			out.Close()
			return count, fmt.Errorf("failed to read event: %w", err)
		}
		out.Log(event)
		count++
	}

	if err := out.Close(); err != nil {
		return count, fmt.Errorf("failed to write output: %w", err)
	}
	return count, nil
}
