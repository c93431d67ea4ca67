// Package commands implements the ecusim-log CLI commands.
package commands

import (
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/mash-protocol/ecusim/pkg/log"
	"github.com/mash-protocol/ecusim/pkg/sensor"
)

// timeLayout is the timestamp format used by view and export.
const timeLayout = "2006-01-02T15:04:05.000000Z"

// ViewFilter specifies criteria for filtering events in the view command.
type ViewFilter struct {
	Category *log.Category
	Sensor   string
	ECUID    *uint32
}

// filter converts the view criteria to a reader filter.
func (f ViewFilter) filter() (log.Filter, error) {
	lf := log.Filter{
		Category: f.Category,
		ECUID:    f.ECUID,
	}
	if f.Sensor != "" {
		cat, inst, err := parseSensorFlag(f.Sensor)
		if err != nil {
			return log.Filter{}, err
		}
		lf.SensorCategory = cat
		lf.SensorInstance = inst
	}
	return lf, nil
}

// formatEvent writes a human-readable representation of the event to w.
func formatEvent(w io.Writer, event log.Event) {
	// Header line: timestamp [session] CATEGORY message
	ts := event.Timestamp.UTC().Format(timeLayout)
	fmt.Fprintf(w, "%s [%s] %-12s %s\n", ts, shortenSessionID(event.SessionID),
		event.Category.String(), event.Message)

	if event.Sensor != nil {
		fmt.Fprintf(w, "  Sensor: %s:%d", event.Sensor.Category, event.Sensor.Instance)
		if event.Sensor.Label != "" {
			fmt.Fprintf(w, " (%s)", event.Sensor.Label)
		}
		fmt.Fprintln(w)
	}
	if event.ECU != nil {
		fmt.Fprintf(w, "  ECU: %d (%s)\n", event.ECU.ID, event.ECU.Name)
	}
	if event.Value != nil {
		fmt.Fprintf(w, "  Value: %.2f\n", *event.Value)
	}
	if event.Status != "" {
		fmt.Fprintf(w, "  Status: %s\n", event.Status)
	}
	if event.Live != nil {
		fmt.Fprintf(w, "  Live: %d\n", *event.Live)
	}
}

// shortenSessionID returns the first 8 characters of the session ID.
func shortenSessionID(id string) string {
	if len(id) >= 8 {
		return id[:8]
	}
	return id
}

// ParseCategoryFlag parses a category string from command-line flag (case-insensitive).
func ParseCategoryFlag(s string) (log.Category, error) {
	for _, c := range log.Categories() {
		if strings.EqualFold(s, c.String()) {
			return c, nil
		}
	}
	return 0, fmt.Errorf("invalid category: %s (must be lifecycle, subscription, notification, sample, vehicle, or error)", s)
}

// ParseECUFlag parses an ECU id from a command-line flag.
func ParseECUFlag(s string) (uint32, error) {
	id, err := strconv.ParseUint(s, 10, 32)
	if err != nil {
		return 0, fmt.Errorf("invalid ECU id: %s", s)
	}
	return uint32(id), nil
}

// parseSensorFlag parses "speed" or "speed:2" into a category name and an
// optional instance.
func parseSensorFlag(s string) (string, uint32, error) {
	if strings.Contains(s, ":") {
		id, err := sensor.ParseID(s)
		if err != nil {
			return "", 0, err
		}
		return id.Category.String(), id.Instance, nil
	}
	c, err := sensor.ParseCategory(s)
	if err != nil {
		return "", 0, err
	}
	return c.String(), 0, nil
}

// RunView executes the view command.
func RunView(path string, filter ViewFilter, output io.Writer) error {
	lf, err := filter.filter()
	if err != nil {
		return err
	}

	reader, err := log.NewFilteredReader(path, lf)
	if err != nil {
		return fmt.Errorf("failed to open log file: %w", err)
	}
	defer reader.Close()

	for {
		event, err := reader.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return fmt.Errorf("failed to read event: %w", err)
		}
		formatEvent(output, event)
	}

	return nil
}
