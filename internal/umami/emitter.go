package umami

import (
	"bufio"
	"fmt"
	"os"

	"github.com/rs/zerolog"

	"github.com/TobiasPankner/Matomo-to-Umami/internal/migrate"
)

// DefaultBatchSize is the maximum number of rows per INSERT statement
// when no batch size is configured.
const DefaultBatchSize = 1000

// Emitter serializes transformed records into one SQL output file. It
// exclusively owns the file for the run: the file is opened once by
// NewEmitter and closed on every exit path, either by Finalize on
// success or by Discard on failure. Discard also removes the partial
// file so an aborted run never leaves output that looks complete.
type Emitter struct {
	path      string
	f         *os.File
	w         *bufio.Writer
	batchSize int
	closed    bool
	log       zerolog.Logger
}

// NewEmitter creates the output file, truncating any previous content.
func NewEmitter(path string, batchSize int, log zerolog.Logger) (*Emitter, error) {
	if batchSize <= 0 {
		batchSize = DefaultBatchSize
	}
	f, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("create output file: %w", err)
	}
	return &Emitter{
		path:      path,
		f:         f,
		w:         bufio.NewWriter(f),
		batchSize: batchSize,
		log:       log,
	}, nil
}

// WriteHeader writes the leading comment block and opens the single
// transaction that wraps the whole import.
func (e *Emitter) WriteHeader(info migrate.RunInfo) error {
	_, err := fmt.Fprintf(e.w,
		"-- Generated SQL migration from Matomo to Umami\n"+
			"-- Generated on: %s\n"+
			"-- Website ID: %s\n"+
			"-- Date range: %s\n"+
			"-- Matomo URL: %s\n"+
			"-- Site ID: %s\n"+
			"\n"+
			"BEGIN;\n"+
			"\n"+
			"SET client_encoding = 'UTF8';\n"+
			"\n",
		info.GeneratedAt.UTC().Format("2006-01-02T15:04:05Z"),
		info.WebsiteID,
		info.Range,
		info.SourceURL,
		info.SiteID,
	)
	return err
}

// WriteWindow serializes one window's records. All of the window's
// session statements are written before any of its event statements,
// so every event's session reference resolves earlier in the stream
// even when batching splits the window's output.
func (e *Emitter) WriteWindow(w migrate.Window, sessions []Session, events []Event) error {
	if _, err := fmt.Fprintf(e.w, "-- Window: %s\n\n", w); err != nil {
		return err
	}
	for _, batch := range Chunk(sessions, e.batchSize) {
		if _, err := e.w.WriteString(SessionInsert(batch)); err != nil {
			return err
		}
		if _, err := e.w.WriteString("\n"); err != nil {
			return err
		}
	}
	for _, batch := range Chunk(events, e.batchSize) {
		if _, err := e.w.WriteString(EventInsert(batch)); err != nil {
			return err
		}
		if _, err := e.w.WriteString("\n"); err != nil {
			return err
		}
	}
	return nil
}

// Finalize commits the transaction, writes the trailing summary and
// closes the file.
func (e *Emitter) Finalize(stats *migrate.Stats) error {
	_, err := fmt.Fprintf(e.w,
		"COMMIT;\n"+
			"\n"+
			"-- Migration complete\n"+
			"-- Total sessions: %d\n"+
			"-- Total events: %d\n"+
			"-- Skipped visits: %d\n"+
			"-- Windows processed: %d\n",
		stats.Sessions(),
		stats.Events(),
		stats.Skipped(),
		stats.Windows(),
	)
	if err != nil {
		return err
	}
	if err := e.w.Flush(); err != nil {
		return err
	}
	// Mark closed only once the file is known to be complete on disk;
	// until then Discard must still remove it.
	if err := e.f.Close(); err != nil {
		return err
	}
	e.closed = true
	return nil
}

// Discard closes and removes the partial output file. Safe to call
// after Finalize, in which case the completed file is left in place.
func (e *Emitter) Discard() error {
	if e.closed {
		return nil
	}
	e.closed = true
	if err := e.f.Close(); err != nil {
		e.log.Warn().Err(err).Str("path", e.path).Msg("closing partial output")
	}
	if err := os.Remove(e.path); err != nil {
		return fmt.Errorf("remove partial output: %w", err)
	}
	e.log.Info().Str("path", e.path).Msg("discarded partial output")
	return nil
}

// Path returns the output file path.
func (e *Emitter) Path() string { return e.path }
