package matomo

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sync/atomic"
	"testing"
	"time"

	"github.com/goccy/go-json"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/TobiasPankner/Matomo-to-Umami/internal/migrate"
)

func testWindow(t *testing.T) migrate.Window {
	t.Helper()
	from, err := time.Parse(migrate.DateFormat, "2023-01-01")
	require.NoError(t, err)
	return migrate.Window{From: from, To: from}
}

func testClient(t *testing.T, url string, pageSize int) *Client {
	t.Helper()
	return NewClient(Config{
		BaseURL:  url,
		SiteID:   "1",
		Token:    "secret",
		PageSize: pageSize,
		Retry:    migrate.Retryer{MaxAttempts: 3, BaseDelay: time.Millisecond, MaxDelay: time.Millisecond},
		Log:      zerolog.Nop(),
	})
}

func visitJSON(ids ...int) string {
	out := "["
	for i, id := range ids {
		if i > 0 {
			out += ","
		}
		out += fmt.Sprintf(`{"idVisit":%d,"firstActionTimestamp":1672567200,"actionDetails":[]}`, id)
	}
	return out + "]"
}

func TestClientFetchWindowPaginates(t *testing.T) {
	t.Parallel()

	var queries []url.Values
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		queries = append(queries, q)
		switch q.Get("filter_offset") {
		case "0":
			fmt.Fprint(w, visitJSON(1, 2))
		default:
			fmt.Fprint(w, visitJSON(3)) // short page ends pagination
		}
	}))
	defer srv.Close()

	visits, err := testClient(t, srv.URL, 2).FetchWindow(context.Background(), testWindow(t))
	require.NoError(t, err)
	require.Len(t, visits, 3)

	require.Len(t, queries, 2)
	first := queries[0]
	require.Equal(t, "API", first.Get("module"))
	require.Equal(t, "Live.getLastVisitsDetails", first.Get("method"))
	require.Equal(t, "1", first.Get("idSite"))
	require.Equal(t, "range", first.Get("period"))
	require.Equal(t, "2023-01-01,2023-01-01", first.Get("date"))
	require.Equal(t, "secret", first.Get("token_auth"))
	require.Equal(t, "2", first.Get("filter_limit"))
	require.Equal(t, "0", first.Get("filter_offset"))
	require.Equal(t, "2", queries[1].Get("filter_offset"))
	require.Equal(t, ID("1"), visits[0].IDVisit)
	require.Equal(t, ID("3"), visits[2].IDVisit)
}

func TestClientRetriesServerErrors(t *testing.T) {
	t.Parallel()

	var calls atomic.Int64
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			http.Error(w, "upstream down", http.StatusBadGateway)
			return
		}
		fmt.Fprint(w, visitJSON(1))
	}))
	defer srv.Close()

	visits, err := testClient(t, srv.URL, 100).FetchWindow(context.Background(), testWindow(t))
	require.NoError(t, err)
	require.Len(t, visits, 1)
	require.Equal(t, int64(3), calls.Load())
}

func TestClientRetriesExhausted(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "upstream down", http.StatusInternalServerError)
	}))
	defer srv.Close()

	_, err := testClient(t, srv.URL, 100).FetchWindow(context.Background(), testWindow(t))
	require.Error(t, err)

	var fetchErr *migrate.FetchError
	require.ErrorAs(t, err, &fetchErr)
	require.Equal(t, "2023-01-01..2023-01-01", fetchErr.Window.String())
	require.True(t, migrate.IsTransient(err))
}

func TestClientAuthFailures(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		handler http.HandlerFunc
		message string
	}{
		{
			name: "http 401",
			handler: func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(http.StatusUnauthorized)
			},
		},
		{
			name: "http 403",
			handler: func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(http.StatusForbidden)
			},
		},
		{
			name: "error envelope with token message",
			handler: func(w http.ResponseWriter, r *http.Request) {
				fmt.Fprint(w, `{"result":"error","message":"You can't access this resource as the token_auth is invalid."}`)
			},
			message: "token_auth",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			srv := httptest.NewServer(tt.handler)
			defer srv.Close()

			_, err := testClient(t, srv.URL, 100).FetchWindow(context.Background(), testWindow(t))
			require.Error(t, err)

			var authErr *migrate.AuthError
			require.ErrorAs(t, err, &authErr)
			if tt.message != "" {
				require.Contains(t, authErr.Message, tt.message)
			}
		})
	}
}

func TestClientFetchFailures(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		handler http.HandlerFunc
		wantMsg string
	}{
		{
			name: "api error envelope",
			handler: func(w http.ResponseWriter, r *http.Request) {
				fmt.Fprint(w, `{"result":"error","message":"Date range is invalid."}`)
			},
			wantMsg: "Date range is invalid",
		},
		{
			name: "malformed payload",
			handler: func(w http.ResponseWriter, r *http.Request) {
				fmt.Fprint(w, `<html>not json</html>`)
			},
			wantMsg: "malformed payload",
		},
		{
			name: "not found",
			handler: func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(http.StatusNotFound)
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			srv := httptest.NewServer(tt.handler)
			defer srv.Close()

			_, err := testClient(t, srv.URL, 100).FetchWindow(context.Background(), testWindow(t))
			require.Error(t, err)

			var fetchErr *migrate.FetchError
			require.ErrorAs(t, err, &fetchErr)
			require.False(t, migrate.IsTransient(err))
			if tt.wantMsg != "" {
				require.Contains(t, err.Error(), tt.wantMsg)
			}
		})
	}
}

func TestClientConnectionErrorIsTransient(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	srv.Close() // nothing listening anymore

	_, err := testClient(t, srv.URL, 100).FetchWindow(context.Background(), testWindow(t))
	require.Error(t, err)
	require.True(t, migrate.IsTransient(err))
}

func TestIDUnmarshal(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		in   string
		want ID
	}{
		{name: "number", in: `{"idVisit":42}`, want: "42"},
		{name: "string", in: `{"idVisit":"42"}`, want: "42"},
		{name: "null", in: `{"idVisit":null}`, want: ""},
		{name: "absent", in: `{}`, want: ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			var v Visit
			require.NoError(t, json.Unmarshal([]byte(tt.in), &v))
			require.Equal(t, tt.want, v.IDVisit)
		})
	}
}
