package log

// Logger receives simulation events. Implementations must be safe for
// concurrent use and serialize their own output.
type Logger interface {
	Log(event Event)
}

// LoggerFunc adapts a function to the Logger interface.
type LoggerFunc func(Event)

// Log calls f(event).
func (f LoggerFunc) Log(event Event) {
	f(event)
}

// NoopLogger discards all events. The zero value is ready to use.
type NoopLogger struct{}

// Log discards the event.
func (NoopLogger) Log(Event) {}

// MultiLogger fans an event out to several sinks, typically a SlogAdapter
// for the console and a FileLogger for the event log.
type MultiLogger struct {
	sinks []Logger
}

// NewMultiLogger combines the given sinks. Nil sinks are dropped and nested
// MultiLoggers are flattened.
func NewMultiLogger(sinks ...Logger) *MultiLogger {
	m := &MultiLogger{}
	for _, s := range sinks {
		m.add(s)
	}
	return m
}

func (m *MultiLogger) add(s Logger) {
	switch s := s.(type) {
	case nil:
	case *MultiLogger:
		if s != nil {
			m.sinks = append(m.sinks, s.sinks...)
		}
	default:
		m.sinks = append(m.sinks, s)
	}
}

// Len returns the number of sinks.
func (m *MultiLogger) Len() int {
	return len(m.sinks)
}

// Log delivers the event to every sink in order.
func (m *MultiLogger) Log(event Event) {
	for _, s := range m.sinks {
		s.Log(event)
	}
}

var (
	_ Logger = LoggerFunc(nil)
	_ Logger = NoopLogger{}
	_ Logger = (*MultiLogger)(nil)
)
