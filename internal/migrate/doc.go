// Package migrate contains the core of the Matomo-to-Umami migration
// pipeline: date window planning, the sequential fetch-transform-emit
// run loop, the retry policy for the remote API, the error taxonomy and
// the run statistics.
//
// The pipeline is generic over the raw visit type and the target record
// types so tests can drive it with synthetic sources and sinks:
//
//	p := &migrate.Pipeline[matomo.Visit, umami.Session, umami.Event]{
//	    Source:     client,
//	    Transform:  transformer,
//	    Sink:       emitter,
//	    Range:      rng,
//	    WindowDays: 1,
//	    Info:       info,
//	    Log:        log,
//	}
//	stats, err := p.Run(ctx)
//
// A run either completes every window and finalizes the sink, or fails
// as a whole: fatal errors discard the partially written output and
// surface as a RunError carrying the phase and window where processing
// stopped. The only locally recovered conditions are transient network
// failures (bounded retry with backoff) and individual malformed visits
// (skipped with a warning and counted in Stats).
package migrate
