package log

import (
	"time"

	"github.com/google/uuid"
)

// Recorder stamps events with a timestamp and a session id before handing
// them to a Logger. A nil *Recorder discards everything.
type Recorder struct {
	logger  Logger
	session string
	now     func() time.Time
}

// NewRecorder creates a Recorder. A nil logger discards events; an empty
// session gets a fresh UUID.
func NewRecorder(logger Logger, session string) *Recorder {
	if logger == nil {
		logger = NoopLogger{}
	}
	if session == "" {
		session = uuid.New().String()
	}
	return &Recorder{
		logger:  logger,
		session: session,
		now:     time.Now,
	}
}

// Session returns the session id stamped on every event.
func (r *Recorder) Session() string {
	if r == nil {
		return ""
	}
	return r.session
}

// Record fills in Timestamp (if zero) and SessionID and logs the event.
func (r *Recorder) Record(event Event) {
	if r == nil {
		return
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = r.now()
	}
	event.SessionID = r.session
	r.logger.Log(event)
}

// Text records a plain message.
func (r *Recorder) Text(c Category, msg string) {
	r.Record(Event{Category: c, Message: msg})
}
