package migrate

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog"
)

// Phase identifies where in a run an event or failure occurred.
type Phase string

const (
	PhasePlanning     Phase = "planning"
	PhaseFetching     Phase = "fetching"
	PhaseTransforming Phase = "transforming"
	PhaseEmitting     Phase = "emitting"
	PhaseFinalizing   Phase = "finalizing"
)

// Source fetches the complete, de-paginated sequence of raw visit
// records for one window.
type Source[V any] interface {
	FetchWindow(ctx context.Context, w Window) ([]V, error)
}

// Transformer maps one raw visit onto one session record and its
// ordered event records. Returning a SkipRecordError drops the one
// visit without aborting the run; any other error is fatal.
type Transformer[V, S, E any] interface {
	Transform(v V) (S, []E, error)
}

// Sink consumes the transformed records. The pipeline guarantees WriteHeader
// is called first, WriteWindow once per window in ascending order with that
// window's sessions always ahead of its events, and exactly one of Finalize
// (success) or Discard (failure) last.
type Sink[S, E any] interface {
	WriteHeader(info RunInfo) error
	WriteWindow(w Window, sessions []S, events []E) error
	Finalize(stats *Stats) error
	Discard() error
}

// RunInfo is the metadata recorded in the output header.
type RunInfo struct {
	GeneratedAt time.Time
	WebsiteID   string
	Range       Range
	SourceURL   string
	SiteID      string
}

// Pipeline wires a source, a transformer and a sink into one
// sequential migration run. Windows are processed strictly in order:
// no window's fetch begins before the previous window's records have
// been transformed and emitted, which bounds peak memory to one
// window's worth of records and keeps output ordering deterministic.
//
// The type parameters are:
//   - V: raw visit type produced by the source
//   - S: session record type consumed by the sink
//   - E: event record type consumed by the sink
type Pipeline[V, S, E any] struct {
	Source    Source[V]
	Transform Transformer[V, S, E]
	Sink      Sink[S, E]

	Range      Range
	WindowDays int
	Info       RunInfo
	Log        zerolog.Logger
}

// Run executes the pipeline. On any fatal error the sink's partial
// output is discarded and a RunError naming the phase and window is
// returned; the sink is left finalized only on full success.
func (p *Pipeline[V, S, E]) Run(ctx context.Context) (*Stats, error) {
	stats := &Stats{}

	p.Log.Info().
		Stringer("range", p.Range).
		Int("days", p.Range.Days()).
		Int("window_days", p.WindowDays).
		Msg("starting migration")

	if err := p.Sink.WriteHeader(p.Info); err != nil {
		return stats, p.fail(PhasePlanning, Window{}, err)
	}

	for w := range p.Range.Windows(p.WindowDays) {
		if err := ctx.Err(); err != nil {
			return stats, p.fail(PhaseFetching, w, err)
		}

		visits, err := p.Source.FetchWindow(ctx, w)
		if err != nil {
			return stats, p.fail(PhaseFetching, w, err)
		}
		stats.addFetched(int64(len(visits)))

		sessions, events, err := p.transformWindow(w, visits, stats)
		if err != nil {
			return stats, p.fail(PhaseTransforming, w, err)
		}

		if err := p.Sink.WriteWindow(w, sessions, events); err != nil {
			return stats, p.fail(PhaseEmitting, w, err)
		}

		stats.addSessions(int64(len(sessions)))
		stats.addEvents(int64(len(events)))
		stats.addWindows(1)

		p.Log.Info().
			Stringer("window", w).
			Int("visits", len(visits)).
			Int("sessions", len(sessions)).
			Int("events", len(events)).
			Msg("window complete")
	}

	if err := p.Sink.Finalize(stats); err != nil {
		return stats, p.fail(PhaseFinalizing, Window{}, err)
	}

	return stats, nil
}

// transformWindow maps one window's visits, skipping malformed records.
func (p *Pipeline[V, S, E]) transformWindow(w Window, visits []V, stats *Stats) ([]S, []E, error) {
	var sessions []S
	var events []E

	for _, v := range visits {
		session, visitEvents, err := p.Transform.Transform(v)
		if err != nil {
			var skip *SkipRecordError
			if errors.As(err, &skip) {
				stats.addSkipped(1)
				p.Log.Warn().
					Stringer("window", w).
					Str("visit", skip.VisitID).
					Str("reason", skip.Reason).
					Msg("skipping visit")
				continue
			}
			return nil, nil, err
		}
		sessions = append(sessions, session)
		events = append(events, visitEvents...)
	}

	return sessions, events, nil
}

// fail discards the sink's partial output and wraps the cause. A
// partially written file must never be left looking complete.
func (p *Pipeline[V, S, E]) fail(phase Phase, w Window, err error) error {
	if derr := p.Sink.Discard(); derr != nil {
		p.Log.Warn().Err(derr).Msg("failed to discard partial output")
	}
	return &RunError{Phase: phase, Window: w, Err: err}
}
