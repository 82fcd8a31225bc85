package umami

import (
	"strconv"
	"strings"
	"time"
)

// timeFormat renders timestamps timezone-naive in UTC, matching the
// target schema's timestamp columns.
const timeFormat = "2006-01-02 15:04:05"

// quoteString returns a single-quoted SQL string literal. Single quotes
// are doubled and NUL bytes stripped; everything else passes through
// untouched.
func quoteString(s string) string {
	s = strings.ReplaceAll(s, "\x00", "")
	return "'" + strings.ReplaceAll(s, "'", "''") + "'"
}

// quote renders an optional column value: NULL for nil.
func quote(p *string) string {
	if p == nil {
		return "NULL"
	}
	return quoteString(*p)
}

func quoteTime(t time.Time) string {
	return "'" + t.UTC().Format(timeFormat) + "'"
}

// Chunk splits rows into sub-slices of at most size elements, so no
// single INSERT statement exceeds the configured batch size.
func Chunk[T any](rows []T, size int) [][]T {
	if len(rows) == 0 || size <= 0 {
		return nil
	}
	out := make([][]T, 0, (len(rows)+size-1)/size)
	for i := 0; i < len(rows); i += size {
		end := min(i+size, len(rows))
		out = append(out, rows[i:end])
	}
	return out
}

const sessionInsertPrefix = "INSERT INTO session " +
	"(session_id, website_id, browser, os, device, screen, language, country, region, city, distinct_id, created_at) VALUES"

// SessionInsert serializes rows as one multi-row INSERT statement.
func SessionInsert(rows []Session) string {
	var b strings.Builder
	b.WriteString(sessionInsertPrefix)
	for i, r := range rows {
		if i > 0 {
			b.WriteString(",")
		}
		b.WriteString("\n(")
		b.WriteString(quoteString(r.ID))
		b.WriteString(", ")
		b.WriteString(quoteString(r.WebsiteID))
		b.WriteString(", ")
		b.WriteString(quoteString(r.Browser))
		b.WriteString(", ")
		b.WriteString(quoteString(r.OS))
		b.WriteString(", ")
		b.WriteString(quoteString(r.Device))
		b.WriteString(", ")
		b.WriteString(quote(r.Screen))
		b.WriteString(", ")
		b.WriteString(quote(r.Language))
		b.WriteString(", ")
		b.WriteString(quote(r.Country))
		b.WriteString(", ")
		b.WriteString(quote(r.Region))
		b.WriteString(", ")
		b.WriteString(quote(r.City))
		b.WriteString(", NULL, ")
		b.WriteString(quoteTime(r.CreatedAt))
		b.WriteString(")")
	}
	b.WriteString(";\n")
	return b.String()
}

const eventInsertPrefix = "INSERT INTO website_event " +
	"(event_id, website_id, session_id, visit_id, created_at, url_path, url_query, referrer_path, referrer_query, referrer_domain, page_title, event_type, hostname) VALUES"

// EventInsert serializes rows as one multi-row INSERT statement.
func EventInsert(rows []Event) string {
	var b strings.Builder
	b.WriteString(eventInsertPrefix)
	for i, r := range rows {
		if i > 0 {
			b.WriteString(",")
		}
		b.WriteString("\n(")
		b.WriteString(quoteString(r.ID))
		b.WriteString(", ")
		b.WriteString(quoteString(r.WebsiteID))
		b.WriteString(", ")
		b.WriteString(quoteString(r.SessionID))
		b.WriteString(", ")
		b.WriteString(quoteString(r.VisitID))
		b.WriteString(", ")
		b.WriteString(quoteTime(r.CreatedAt))
		b.WriteString(", ")
		b.WriteString(quoteString(r.URLPath))
		b.WriteString(", ")
		b.WriteString(quote(r.URLQuery))
		b.WriteString(", ")
		b.WriteString(quote(r.ReferrerPath))
		b.WriteString(", ")
		b.WriteString(quote(r.ReferrerQuery))
		b.WriteString(", ")
		b.WriteString(quote(r.ReferrerDomain))
		b.WriteString(", ")
		b.WriteString(quote(r.PageTitle))
		b.WriteString(", ")
		b.WriteString(strconv.Itoa(r.EventType))
		b.WriteString(", ")
		b.WriteString(quote(r.Hostname))
		b.WriteString(")")
	}
	b.WriteString(";\n")
	return b.String()
}
