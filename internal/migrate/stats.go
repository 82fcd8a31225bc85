package migrate

import (
	"sync/atomic"

	"github.com/rs/zerolog"
)

// Stats tracks running totals for a migration run. Counters only ever
// advance; the pipeline is single-threaded but the counters are atomic
// so progress can be read safely from a signal handler or test.
type Stats struct {
	fetched  atomic.Int64
	skipped  atomic.Int64
	sessions atomic.Int64
	events   atomic.Int64
	windows  atomic.Int64
}

// Fetched returns the number of visits returned by the source API.
func (s *Stats) Fetched() int64 { return s.fetched.Load() }

// Skipped returns the number of visits dropped as malformed or
// duplicated across a window boundary.
func (s *Stats) Skipped() int64 { return s.skipped.Load() }

// Sessions returns the number of session rows emitted.
func (s *Stats) Sessions() int64 { return s.sessions.Load() }

// Events returns the number of event rows emitted.
func (s *Stats) Events() int64 { return s.events.Load() }

// Windows returns the number of windows fully processed.
func (s *Stats) Windows() int64 { return s.windows.Load() }

func (s *Stats) addFetched(n int64)  { s.fetched.Add(n) }
func (s *Stats) addSkipped(n int64)  { s.skipped.Add(n) }
func (s *Stats) addSessions(n int64) { s.sessions.Add(n) }
func (s *Stats) addEvents(n int64)   { s.events.Add(n) }
func (s *Stats) addWindows(n int64)  { s.windows.Add(n) }

// MarshalZerologObject implements zerolog.LogObjectMarshaler so a run's
// stats can be logged as one structured field.
func (s *Stats) MarshalZerologObject(e *zerolog.Event) {
	e.Int64("fetched", s.Fetched()).
		Int64("skipped", s.Skipped()).
		Int64("sessions", s.Sessions()).
		Int64("events", s.Events()).
		Int64("windows", s.Windows())
}
