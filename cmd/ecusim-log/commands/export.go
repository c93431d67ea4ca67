package commands

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"slices"
	"strconv"

	"github.com/mash-protocol/ecusim/pkg/log"
)

// eventWriter writes exported events in one output format.
type eventWriter interface {
	write(event log.Event) error
	flush() error
}

var exportFormats = map[string]func(io.Writer) (eventWriter, error){
	"jsonl": newJSONLWriter,
	"csv":   newCSVWriter,
}

// ExportFormats returns the supported export format names.
func ExportFormats() []string {
	names := make([]string, 0, len(exportFormats))
	for name := range exportFormats {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}

// RunExport writes every event of the log file to output, or stdout when
// output is empty, in the given format.
func RunExport(path, format, output string) error {
	newWriter, ok := exportFormats[format]
	if !ok {
		return fmt.Errorf("unknown format: %s (supported: %v)", format, ExportFormats())
	}

	reader, err := log.NewReader(path)
	if err != nil {
		return fmt.Errorf("failed to open log file: %w", err)
	}
	defer reader.Close()

	var w io.Writer = os.Stdout
	if output != "" {
		f, err := os.Create(output)
		if err != nil {
			return fmt.Errorf("failed to create output file: %w", err)
		}
		defer f.Close()
		w = f
	}

	ew, err := newWriter(w)
	if err != nil {
		return err
	}
	for event, err := range reader.Events() {
		if err != nil {
			return fmt.Errorf("failed to read event: %w", err)
		}
		if err := ew.write(event); err != nil {
			return err
		}
	}
	return ew.flush()
}

// jsonEvent is the JSON shape of an exported event.
type jsonEvent struct {
	Timestamp string         `json:"timestamp"`
	SessionID string         `json:"session_id"`
	Category  string         `json:"category"`
	Message   string         `json:"message"`
	Sensor    *log.SensorRef `json:"sensor,omitempty"`
	ECU       *log.ECURef    `json:"ecu,omitempty"`
	Value     *float64       `json:"value,omitempty"`
	Status    string         `json:"status,omitempty"`
	Live      *int           `json:"live,omitempty"`
}

type jsonlWriter struct {
	enc *json.Encoder
}

func newJSONLWriter(w io.Writer) (eventWriter, error) {
	return &jsonlWriter{enc: json.NewEncoder(w)}, nil
}

func (j *jsonlWriter) write(event log.Event) error {
	err := j.enc.Encode(jsonEvent{
		Timestamp: event.Timestamp.UTC().Format(timeLayout),
		SessionID: event.SessionID,
		Category:  event.Category.String(),
		Message:   event.Message,
		Sensor:    event.Sensor,
		ECU:       event.ECU,
		Value:     event.Value,
		Status:    event.Status,
		Live:      event.Live,
	})
	if err != nil {
		return fmt.Errorf("failed to encode event: %w", err)
	}
	return nil
}

func (j *jsonlWriter) flush() error { return nil }

// csvColumns defines the CSV layout: header name and cell value per event.
var csvColumns = []struct {
	name string
	cell func(log.Event) string
}{
	{"timestamp", func(e log.Event) string { return e.Timestamp.UTC().Format(timeLayout) }},
	{"session_id", func(e log.Event) string { return e.SessionID }},
	{"category", func(e log.Event) string { return e.Category.String() }},
	{"sensor", func(e log.Event) string {
		if e.Sensor == nil {
			return ""
		}
		return fmt.Sprintf("%s:%d", e.Sensor.Category, e.Sensor.Instance)
	}},
	{"ecu_id", func(e log.Event) string {
		if e.ECU == nil {
			return ""
		}
		return strconv.FormatUint(uint64(e.ECU.ID), 10)
	}},
	{"ecu", func(e log.Event) string {
		if e.ECU == nil {
			return ""
		}
		return e.ECU.Name
	}},
	{"value", func(e log.Event) string {
		if e.Value == nil {
			return ""
		}
		return strconv.FormatFloat(*e.Value, 'f', -1, 64)
	}},
	{"status", func(e log.Event) string { return e.Status }},
	{"message", func(e log.Event) string { return e.Message }},
}

type csvWriter struct {
	cw  *csv.Writer
	row []string
}

func newCSVWriter(w io.Writer) (eventWriter, error) {
	c := &csvWriter{cw: csv.NewWriter(w), row: make([]string, len(csvColumns))}
	for i, col := range csvColumns {
		c.row[i] = col.name
	}
	if err := c.cw.Write(c.row); err != nil {
		return nil, fmt.Errorf("failed to write header: %w", err)
	}
	return c, nil
}

func (c *csvWriter) write(event log.Event) error {
	for i, col := range csvColumns {
		c.row[i] = col.cell(event)
	}
	if err := c.cw.Write(c.row); err != nil {
		return fmt.Errorf("failed to write row: %w", err)
	}
	return nil
}

func (c *csvWriter) flush() error {
	c.cw.Flush()
	return c.cw.Error()
}
