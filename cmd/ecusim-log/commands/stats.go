package commands

import (
	"fmt"
	"io"
	"sort"
	"time"

	"github.com/mash-protocol/ecusim/pkg/log"
)

// Stats holds aggregate statistics about a log file.
type Stats struct {
	TotalEvents      int
	EventsByCategory map[log.Category]int
	Sessions         map[string]*SessionStats
	Sensors          map[string]*SensorStats
	ECUs             map[uint32]string
	Errors           int
	TimeRange        struct {
		Start time.Time
		End   time.Time
	}
}

// SessionStats holds statistics for a single simulation run.
type SessionStats struct {
	FirstSeen time.Time
	LastSeen  time.Time
	Events    int
}

// SensorStats holds reading statistics for one sensor.
type SensorStats struct {
	Samples int
	Min     float64
	Max     float64
	sum     float64
}

// Mean returns the average sampled value.
func (s *SensorStats) Mean() float64 {
	if s.Samples == 0 {
		return 0
	}
	return s.sum / float64(s.Samples)
}

// RunStats analyzes the log file and prints statistics.
func RunStats(path string, w io.Writer) error {
	reader, err := log.NewReader(path)
	if err != nil {
		return fmt.Errorf("failed to open log file: %w", err)
	}
	defer reader.Close()

	stats := &Stats{
		EventsByCategory: make(map[log.Category]int),
		Sessions:         make(map[string]*SessionStats),
		Sensors:          make(map[string]*SensorStats),
		ECUs:             make(map[uint32]string),
	}

	for event, err := range reader.Events() {
		if err != nil {
			return fmt.Errorf("failed to read event: %w", err)
		}
		stats.add(event)
	}

	printStats(w, stats)
	return nil
}

func (s *Stats) add(event log.Event) {
	s.TotalEvents++
	s.EventsByCategory[event.Category]++

	// Track time range
	if s.TimeRange.Start.IsZero() || event.Timestamp.Before(s.TimeRange.Start) {
		s.TimeRange.Start = event.Timestamp
	}
	if event.Timestamp.After(s.TimeRange.End) {
		s.TimeRange.End = event.Timestamp
	}

	session, ok := s.Sessions[event.SessionID]
	if !ok {
		session = &SessionStats{FirstSeen: event.Timestamp, LastSeen: event.Timestamp}
		s.Sessions[event.SessionID] = session
	}
	session.Events++
	if event.Timestamp.After(session.LastSeen) {
		session.LastSeen = event.Timestamp
	}

	if event.ECU != nil {
		s.ECUs[event.ECU.ID] = event.ECU.Name
	}

	// Readings come from sample events only; notifications repeat them.
	if event.Category == log.CategorySample && event.Sensor != nil && event.Value != nil {
		key := fmt.Sprintf("%s:%d", event.Sensor.Category, event.Sensor.Instance)
		ss, ok := s.Sensors[key]
		v := *event.Value
		if !ok {
			ss = &SensorStats{Min: v, Max: v}
			s.Sensors[key] = ss
		}
		ss.Samples++
		ss.sum += v
		ss.Min = min(ss.Min, v)
		ss.Max = max(ss.Max, v)
	}

	if event.Category == log.CategoryError {
		s.Errors++
	}
}

func printStats(w io.Writer, stats *Stats) {
	fmt.Fprintln(w, "=== ECU Simulation Log Statistics ===")
	fmt.Fprintln(w)

	// Time range
	if stats.TotalEvents > 0 {
		fmt.Fprintf(w, "Time Range: %s to %s\n",
			stats.TimeRange.Start.Format(time.RFC3339),
			stats.TimeRange.End.Format(time.RFC3339))
		fmt.Fprintf(w, "Duration:   %s\n", stats.TimeRange.End.Sub(stats.TimeRange.Start).Round(time.Second))
		fmt.Fprintln(w)
	}

	fmt.Fprintf(w, "Total Events: %d\n", stats.TotalEvents)
	fmt.Fprintln(w)

	fmt.Fprintln(w, "Events by Category:")
	for _, cat := range log.Categories() {
		if count := stats.EventsByCategory[cat]; count > 0 {
			fmt.Fprintf(w, "  %-14s %d\n", cat.String()+":", count)
		}
	}
	fmt.Fprintln(w)

	if len(stats.Sensors) > 0 {
		keys := make([]string, 0, len(stats.Sensors))
		for k := range stats.Sensors {
			keys = append(keys, k)
		}
		sort.Strings(keys)

		fmt.Fprintln(w, "Sensor Readings:")
		for _, k := range keys {
			ss := stats.Sensors[k]
			fmt.Fprintf(w, "  %-18s %d samples, min %.2f, max %.2f, mean %.2f\n",
				k, ss.Samples, ss.Min, ss.Max, ss.Mean())
		}
		fmt.Fprintln(w)
	}

	if len(stats.ECUs) > 0 {
		ids := make([]uint32, 0, len(stats.ECUs))
		for id := range stats.ECUs {
			ids = append(ids, id)
		}
		sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

		fmt.Fprintf(w, "ECUs: %d\n", len(ids))
		for _, id := range ids {
			fmt.Fprintf(w, "  [%d] %s\n", id, stats.ECUs[id])
		}
		fmt.Fprintln(w)
	}

	fmt.Fprintf(w, "Sessions: %d\n", len(stats.Sessions))
	if len(stats.Sessions) > 0 {
		type sessionInfo struct {
			id    string
			stats *SessionStats
		}
		sessions := make([]sessionInfo, 0, len(stats.Sessions))
		for id, ss := range stats.Sessions {
			sessions = append(sessions, sessionInfo{id, ss})
		}
		sort.Slice(sessions, func(i, j int) bool {
			return sessions[i].stats.FirstSeen.Before(sessions[j].stats.FirstSeen)
		})

		for _, s := range sessions {
			duration := s.stats.LastSeen.Sub(s.stats.FirstSeen).Round(time.Millisecond)
			fmt.Fprintf(w, "  [%s] %d events, duration %s\n", shortenSessionID(s.id), s.stats.Events, duration)
		}
	}

	if stats.Errors > 0 {
		fmt.Fprintln(w)
		fmt.Fprintf(w, "Errors: %d\n", stats.Errors)
	}
}
