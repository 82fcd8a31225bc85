package migrate

import (
	"errors"
	"fmt"
	"time"
)

// InvalidRangeError reports a migration date range whose start falls
// after its end. It is returned before any network call is made.
type InvalidRangeError struct {
	Start time.Time
	End   time.Time
}

func (e *InvalidRangeError) Error() string {
	return fmt.Sprintf("invalid date range: start %s is after end %s",
		e.Start.Format(DateFormat), e.End.Format(DateFormat))
}

// AuthError reports an authentication failure against the Matomo API
// (HTTP 401/403 or an explicit token rejection in the response body).
// Authentication failures are fatal and never retried, and are kept
// distinct from FetchError so the invoker can tell the user to fix
// their token rather than their date range.
type AuthError struct {
	Status  int
	Message string
}

func (e *AuthError) Error() string {
	if e.Message != "" {
		return "authentication failed: " + e.Message
	}
	return fmt.Sprintf("authentication failed (status %d)", e.Status)
}

// FetchError reports a non-transient failure while fetching one window
// from the source API: a 4xx response, a malformed payload, or a
// transient failure that exhausted its retries. A FetchError aborts the
// entire run.
type FetchError struct {
	Window Window
	Status int // HTTP status, 0 when not applicable
	Err    error
}

func (e *FetchError) Error() string {
	msg := "fetch window " + e.Window.String()
	if e.Status != 0 {
		msg += fmt.Sprintf(": status %d", e.Status)
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *FetchError) Unwrap() error { return e.Err }

// TransientNetworkError marks a failure as locally recoverable:
// connection errors and 5xx responses. The retry machinery keeps
// retrying errors of this type; everything else fails fast.
type TransientNetworkError struct {
	Err error
}

func (e *TransientNetworkError) Error() string {
	return "transient network error: " + e.Err.Error()
}

func (e *TransientNetworkError) Unwrap() error { return e.Err }

// IsTransient reports whether err is (or wraps) a TransientNetworkError.
func IsTransient(err error) bool {
	var t *TransientNetworkError
	return errors.As(err, &t)
}

// SkipRecordError marks a single malformed source record. The pipeline
// logs a warning, counts the record as skipped and continues with the
// remaining records in the window; it never aborts the run.
type SkipRecordError struct {
	VisitID string
	Reason  string
}

func (e *SkipRecordError) Error() string {
	if e.VisitID == "" {
		return "skipping visit: " + e.Reason
	}
	return fmt.Sprintf("skipping visit %s: %s", e.VisitID, e.Reason)
}

// RunError is the terminal failure reported by a pipeline run: the
// phase and window where processing stopped, and the cause. By the time
// a RunError is returned the partially written output file has been
// discarded.
type RunError struct {
	Phase  Phase
	Window Window
	Err    error
}

func (e *RunError) Error() string {
	if e.Window.IsZero() {
		return fmt.Sprintf("%s: %v", e.Phase, e.Err)
	}
	return fmt.Sprintf("%s window %s: %v", e.Phase, e.Window, e.Err)
}

func (e *RunError) Unwrap() error { return e.Err }
