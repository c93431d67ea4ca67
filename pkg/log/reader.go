package log

import (
	"errors"
	"io"
	"iter"
	"os"
	"time"

	"github.com/fxamacker/cbor/v2"
)

// Filter selects events. Zero-valued fields match everything.
type Filter struct {
	SessionID string
	Category  *Category

	// SensorCategory is the category name as written in events, e.g. "SPEED".
	SensorCategory string
	SensorInstance uint32

	ECUID *uint32

	// TimeStart is inclusive, TimeEnd exclusive.
	TimeStart *time.Time
	TimeEnd   *time.Time
}

// Matches reports whether the event passes every criterion.
func (f Filter) Matches(event Event) bool {
	if f.SessionID != "" && event.SessionID != f.SessionID {
		return false
	}
	if f.Category != nil && event.Category != *f.Category {
		return false
	}
	return f.matchesSensor(event.Sensor) && f.matchesECU(event.ECU) && f.matchesTime(event.Timestamp)
}

func (f Filter) matchesSensor(ref *SensorRef) bool {
	if f.SensorCategory == "" && f.SensorInstance == 0 {
		return true
	}
	if ref == nil {
		return false
	}
	if f.SensorCategory != "" && ref.Category != f.SensorCategory {
		return false
	}
	return f.SensorInstance == 0 || ref.Instance == f.SensorInstance
}

func (f Filter) matchesECU(ref *ECURef) bool {
	if f.ECUID == nil {
		return true
	}
	return ref != nil && ref.ID == *f.ECUID
}

func (f Filter) matchesTime(ts time.Time) bool {
	if f.TimeStart != nil && ts.Before(*f.TimeStart) {
		return false
	}
	return f.TimeEnd == nil || ts.Before(*f.TimeEnd)
}

// Reader streams events from a CBOR event log.
type Reader struct {
	src     io.Reader
	decoder *cbor.Decoder
	filter  Filter
}

// NewReader opens a log file and reads every event in it.
func NewReader(path string) (*Reader, error) {
	return NewFilteredReader(path, Filter{})
}

// NewFilteredReader opens a log file and reads the events matching filter.
func NewFilteredReader(path string, filter Filter) (*Reader, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	return NewStreamReader(f, filter), nil
}

// NewStreamReader reads events from r. Close closes r if it is an io.Closer.
func NewStreamReader(r io.Reader, filter Filter) *Reader {
	return &Reader{src: r, decoder: NewDecoder(r), filter: filter}
}

// Next returns the next matching event, or io.EOF at the end of the log.
func (r *Reader) Next() (Event, error) {
	for {
		var event Event
		if err := r.decoder.Decode(&event); err != nil {
			return Event{}, err
		}
		if r.filter.Matches(event) {
			return event, nil
		}
	}
}

// Events iterates over the remaining matching events. Iteration stops at
// the end of the log; any other decode error is yielded once as the last
// element.
func (r *Reader) Events() iter.Seq2[Event, error] {
	return func(yield func(Event, error) bool) {
		for {
			event, err := r.Next()
			if errors.Is(err, io.EOF) {
				return
			}
			if !yield(event, err) || err != nil {
				return
			}
		}
	}
}

// Close releases the underlying source.
func (r *Reader) Close() error {
	if c, ok := r.src.(io.Closer); ok {
		return c.Close()
	}
	return nil
}
