package matomo

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/goccy/go-json"
	"github.com/rs/zerolog"
	"golang.org/x/time/rate"

	"github.com/TobiasPankner/Matomo-to-Umami/internal/migrate"
)

// Default client tuning.
const (
	DefaultPageSize       = 500
	DefaultRequestTimeout = 60 * time.Second
)

// Config carries everything the client needs; it is passed in
// explicitly rather than read from ambient state so tests can point the
// client at a local server.
type Config struct {
	// BaseURL is the Matomo installation root, without trailing slash.
	BaseURL string

	// SiteID is the numeric Matomo site identifier, as a string.
	SiteID string

	// Token is the token_auth value for the Live API.
	Token string

	// PageSize is the filter_limit used per request. Defaults to
	// DefaultPageSize.
	PageSize int

	// Timeout applies per HTTP request, not per run.
	Timeout time.Duration

	// RequestsPerSecond paces requests against the source. Zero or
	// negative means unpaced.
	RequestsPerSecond float64

	// Retry is the policy for transient failures.
	Retry migrate.Retryer

	Log zerolog.Logger
}

// Client fetches raw visit records from the Matomo Live API. It keeps
// no state between windows beyond the site identifier, the token and
// the request pacer.
type Client struct {
	baseURL  string
	siteID   string
	token    string
	pageSize int
	http     *http.Client
	limiter  *rate.Limiter
	retry    migrate.Retryer
	log      zerolog.Logger
}

// NewClient builds a Client from cfg, applying defaults for unset
// tuning fields.
func NewClient(cfg Config) *Client {
	pageSize := cfg.PageSize
	if pageSize <= 0 {
		pageSize = DefaultPageSize
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = DefaultRequestTimeout
	}
	limit := rate.Inf
	if cfg.RequestsPerSecond > 0 {
		limit = rate.Limit(cfg.RequestsPerSecond)
	}
	return &Client{
		baseURL:  strings.TrimRight(cfg.BaseURL, "/"),
		siteID:   cfg.SiteID,
		token:    cfg.Token,
		pageSize: pageSize,
		http:     &http.Client{Timeout: timeout},
		limiter:  rate.NewLimiter(limit, 1),
		retry:    cfg.Retry,
		log:      cfg.Log,
	}
}

// FetchWindow returns the complete, de-paginated sequence of visits for
// one window, ordered as returned by the source. Pagination uses
// filter_offset/filter_limit and stops at the first short page.
//
// Transient failures (connection errors, 5xx) are retried with backoff;
// 401/403 return an AuthError; any other failure returns a FetchError
// carrying the offending window and status.
func (c *Client) FetchWindow(ctx context.Context, w migrate.Window) ([]Visit, error) {
	var all []Visit
	for offset := 0; ; offset += c.pageSize {
		page, err := c.fetchPage(ctx, w, offset)
		if err != nil {
			return nil, err
		}
		all = append(all, page...)
		if len(page) < c.pageSize {
			return all, nil
		}
	}
}

// fetchPage retrieves one page, retrying transient failures. Errors
// that survive the retry budget are escalated to a FetchError unless
// they are already classified (auth, fetch, cancellation).
func (c *Client) fetchPage(ctx context.Context, w migrate.Window, offset int) ([]Visit, error) {
	var visits []Visit

	attempt := 0
	err := c.retry.Do(ctx, func() error {
		attempt++
		if attempt > 1 {
			c.log.Warn().
				Stringer("window", w).
				Int("offset", offset).
				Int("attempt", attempt).
				Msg("retrying page fetch")
		}
		if err := c.limiter.Wait(ctx); err != nil {
			return err
		}
		page, err := c.doPage(ctx, w, offset)
		if err != nil {
			return err
		}
		visits = page
		return nil
	})
	if err != nil {
		var authErr *migrate.AuthError
		var fetchErr *migrate.FetchError
		if errors.As(err, &authErr) || errors.As(err, &fetchErr) ||
			errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return nil, err
		}
		return nil, &migrate.FetchError{Window: w, Err: err}
	}
	return visits, nil
}

// doPage performs a single request and classifies the outcome.
func (c *Client) doPage(ctx context.Context, w migrate.Window, offset int) ([]Visit, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.pageURL(w, offset), http.NoBody)
	if err != nil {
		return nil, &migrate.FetchError{Window: w, Err: err}
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, &migrate.TransientNetworkError{Err: err}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &migrate.TransientNetworkError{Err: err}
	}

	switch {
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return nil, &migrate.AuthError{Status: resp.StatusCode}
	case resp.StatusCode >= 500:
		return nil, &migrate.TransientNetworkError{
			Err: fmt.Errorf("server error: %s", resp.Status),
		}
	case resp.StatusCode != http.StatusOK:
		return nil, &migrate.FetchError{
			Window: w,
			Status: resp.StatusCode,
			Err:    errors.New(http.StatusText(resp.StatusCode)),
		}
	}

	return c.decodeVisits(w, body)
}

// apiError is Matomo's error envelope. Matomo reports most API-level
// failures, including bad tokens, with HTTP 200 and this shape.
type apiError struct {
	Result  string `json:"result"`
	Message string `json:"message"`
}

func (c *Client) decodeVisits(w migrate.Window, body []byte) ([]Visit, error) {
	var visits []Visit
	if err := json.Unmarshal(body, &visits); err == nil {
		return visits, nil
	}

	var envelope apiError
	if err := json.Unmarshal(body, &envelope); err == nil && envelope.Result == "error" {
		lower := strings.ToLower(envelope.Message)
		if strings.Contains(lower, "token_auth") || strings.Contains(lower, "authenticat") {
			return nil, &migrate.AuthError{Status: http.StatusOK, Message: envelope.Message}
		}
		return nil, &migrate.FetchError{Window: w, Err: errors.New(envelope.Message)}
	}

	return nil, &migrate.FetchError{Window: w, Err: errors.New("malformed payload")}
}

// pageURL builds the Live.getLastVisitsDetails request for one page of
// one window. The window is passed as a period=range date pair so a
// multi-day window still needs only one paginated request sequence.
func (c *Client) pageURL(w migrate.Window, offset int) string {
	params := url.Values{}
	params.Set("module", "API")
	params.Set("method", "Live.getLastVisitsDetails")
	params.Set("idSite", c.siteID)
	params.Set("period", "range")
	params.Set("date", w.From.Format(migrate.DateFormat)+","+w.To.Format(migrate.DateFormat))
	params.Set("format", "JSON")
	params.Set("token_auth", c.token)
	params.Set("filter_limit", strconv.Itoa(c.pageSize))
	params.Set("filter_offset", strconv.Itoa(offset))
	return c.baseURL + "/index.php?" + params.Encode()
}
