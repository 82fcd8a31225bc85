package umami

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/net/publicsuffix"

	"github.com/TobiasPankner/Matomo-to-Umami/internal/matomo"
	"github.com/TobiasPankner/Matomo-to-Umami/internal/migrate"
)

// Transformer maps raw Matomo visits onto Umami session and event
// records. It is stateful only to the extent of remembering which
// visit identifiers it has already transformed: a visit that straddles
// a window boundary is returned by the source for both windows, and
// emitting it twice would duplicate its deterministic identifiers.
type Transformer struct {
	websiteID string
	seen      map[string]struct{}
}

// NewTransformer creates a Transformer targeting the given Umami
// website identifier.
func NewTransformer(websiteID string) *Transformer {
	return &Transformer{
		websiteID: websiteID,
		seen:      make(map[string]struct{}),
	}
}

// Transform maps one visit onto exactly one Session and one Event per
// page-view action, in source order. A malformed visit (no identifier,
// no first-action timestamp) or a visit already transformed in an
// earlier window returns a SkipRecordError; the caller drops it and
// continues.
func (t *Transformer) Transform(v matomo.Visit) (Session, []Event, error) {
	id := string(v.IDVisit)
	if id == "" {
		return Session{}, nil, &migrate.SkipRecordError{Reason: "missing visit id"}
	}
	if v.FirstActionTimestamp <= 0 {
		return Session{}, nil, &migrate.SkipRecordError{VisitID: id, Reason: "missing first action timestamp"}
	}
	if _, dup := t.seen[id]; dup {
		return Session{}, nil, &migrate.SkipRecordError{VisitID: id, Reason: "duplicate visit id"}
	}
	t.seen[id] = struct{}{}

	session := Session{
		ID:        deterministicID("session_" + id),
		WebsiteID: t.websiteID,
		Browser:   normalizeBrowser(v.BrowserName),
		OS:        normalizeOS(v.OperatingSystemName, v.OperatingSystem),
		Device:    normalizeDevice(v.DeviceType),
		Screen:    strPtr(truncate(v.Resolution, maxScreenLen)),
		Language:  strPtr(truncate(v.LanguageCode, maxLanguageLen)),
		Country:   strPtr(truncate(strings.ToUpper(v.CountryCode), maxCountryLen)),
		Region:    strPtr(truncate(v.RegionCode, maxRegionLen)),
		City:      strPtr(truncate(v.City, maxCityLen)),
		CreatedAt: time.Unix(v.FirstActionTimestamp, 0).UTC(),
	}

	visitID := deterministicID("visit_" + id)
	referrer := classifyReferrer(v.ReferrerURL)

	var events []Event
	for _, a := range v.ActionDetails {
		if !a.IsPageView() || a.Timestamp <= 0 {
			continue
		}
		// Seed with the page-view ordinal, not the raw actionDetails
		// index, so interleaved non-page-view entries never shift the
		// identifiers of the views around them.
		path, query, hostname := splitActionURL(a.URL)
		events = append(events, Event{
			ID:             deterministicID(fmt.Sprintf("event_%s_%d_%d", id, len(events), a.Timestamp)),
			WebsiteID:      t.websiteID,
			SessionID:      session.ID,
			VisitID:        visitID,
			URLPath:        truncate(path, maxURLLen),
			URLQuery:       strPtr(truncate(query, maxURLLen)),
			ReferrerPath:   referrer.path,
			ReferrerQuery:  referrer.query,
			ReferrerDomain: referrer.domain,
			PageTitle:      strPtr(truncate(actionTitle(a), maxURLLen)),
			Hostname:       strPtr(truncate(hostname, maxHostnameLen)),
			EventType:      EventTypePageView,
			CreatedAt:      time.Unix(a.Timestamp, 0).UTC(),
		})
	}

	return session, events, nil
}

// deterministicID derives a stable UUID from a seed string, so
// re-running the migration over identical source data yields identical
// identifiers. Seeds are built from the source visit identity, never
// from window position.
func deterministicID(seed string) string {
	return uuid.NewMD5(uuid.NameSpaceOID, []byte(seed)).String()
}

func actionTitle(a matomo.Action) string {
	if a.PageTitle != "" {
		return a.PageTitle
	}
	return a.Title
}

// splitActionURL breaks an action URL into path, query and hostname.
// Unparseable URLs degrade to a raw path rather than failing the visit.
func splitActionURL(raw string) (path, query, hostname string) {
	if raw == "" {
		return "/", "", ""
	}
	u, err := url.Parse(raw)
	if err != nil {
		path, query, _ = strings.Cut(raw, "?")
		return path, query, ""
	}
	path = u.Path
	if path == "" {
		path = "/"
	}
	if u.Scheme == "http" || u.Scheme == "https" {
		hostname = u.Host
	}
	return path, u.RawQuery, hostname
}

type referrerInfo struct {
	domain *string
	path   *string
	query  *string
}

// classifyReferrer reduces a referrer URL to its registrable domain
// plus path and query. A direct visit (no referrer) yields NULLs across
// the board, never empty strings.
func classifyReferrer(raw string) referrerInfo {
	if raw == "" {
		return referrerInfo{}
	}
	u, err := url.Parse(raw)
	if err != nil || u.Host == "" {
		return referrerInfo{}
	}

	host := u.Hostname()
	domain, err := publicsuffix.EffectiveTLDPlusOne(host)
	if err != nil {
		// IP literals and bare TLDs have no registrable domain; keep
		// the host itself.
		domain = host
	}

	path := u.Path
	if path == "" {
		path = "/"
	}

	info := referrerInfo{
		domain: strPtr(truncate(domain, maxURLLen)),
		path:   strPtr(truncate(path, maxURLLen)),
	}
	if u.RawQuery != "" {
		info.query = strPtr(truncate("?"+u.RawQuery, maxURLLen))
	}
	return info
}
