// Package umami holds the target side of the migration: the session
// and event record types matching Umami's Postgres schema, the
// transformer that maps raw Matomo visits onto them, and the emitter
// that serializes them into batched SQL.
package umami

import "time"

// Umami schema column length limits. Values are truncated, never
// rejected, to match the target tables.
const (
	maxCountryLen  = 2
	maxRegionLen   = 20
	maxCityLen     = 50
	maxScreenLen   = 11
	maxLanguageLen = 35
	maxAgentLen    = 20 // browser, os, device
	maxURLLen      = 500
	maxHostnameLen = 100
)

// EventTypePageView is the website_event.event_type value for page
// views, the only event type produced by this migration.
const EventTypePageView = 1

// Session is one row of the session table: the target representation
// of one Matomo visit. Optional columns are pointers; nil serializes to
// SQL NULL, never to an empty string.
type Session struct {
	ID        string
	WebsiteID string

	Browser string
	OS      string
	Device  string

	Screen   *string
	Language *string
	Country  *string
	Region   *string
	City     *string

	CreatedAt time.Time
}

// Event is one row of the website_event table: the target
// representation of one page-view action. SessionID always references
// a Session emitted ahead of the event in the output stream.
type Event struct {
	ID        string
	WebsiteID string
	SessionID string
	VisitID   string

	URLPath        string
	URLQuery       *string
	ReferrerPath   *string
	ReferrerQuery  *string
	ReferrerDomain *string
	PageTitle      *string
	Hostname       *string

	EventType int
	CreatedAt time.Time
}
