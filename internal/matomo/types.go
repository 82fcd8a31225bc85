package matomo

import (
	"bytes"
	"fmt"

	"github.com/goccy/go-json"
)

// ID holds a Matomo identifier. The Live API is inconsistent about
// whether identifiers arrive as JSON numbers or strings, so ID accepts
// both and normalizes to a string.
type ID string

func (id *ID) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if len(b) == 0 || bytes.Equal(b, []byte("null")) {
		*id = ""
		return nil
	}
	if b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return fmt.Errorf("matomo id: %w", err)
		}
		*id = ID(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(b, &n); err != nil {
		return fmt.Errorf("matomo id: %w", err)
	}
	*id = ID(n.String())
	return nil
}

// Visit is one visitor's browsing episode as returned by
// Live.getLastVisitsDetails. Optional fields decode to their zero value
// when absent; the transformer checks presence once at entry and maps
// absent optional fields to SQL NULL.
type Visit struct {
	IDVisit              ID     `json:"idVisit"`
	VisitorID            string `json:"visitorId"`
	FirstActionTimestamp int64  `json:"firstActionTimestamp"`
	LastActionTimestamp  int64  `json:"lastActionTimestamp"`

	BrowserName     string `json:"browserName"`
	BrowserVersion  string `json:"browserVersion"`
	OperatingSystem string `json:"operatingSystem"`
	// OperatingSystemName is the coarse OS family; OperatingSystem
	// carries the versioned detail ("Windows 10").
	OperatingSystemName string `json:"operatingSystemName"`
	DeviceType          string `json:"deviceType"`
	Resolution          string `json:"resolution"`
	LanguageCode        string `json:"languageCode"`

	CountryCode string `json:"countryCode"`
	RegionCode  string `json:"regionCode"`
	City        string `json:"city"`

	ReferrerURL  string `json:"referrerUrl"`
	ReferrerType string `json:"referrerType"`

	ActionDetails []Action `json:"actionDetails"`
}

// Action is one entry of a visit's actionDetails array. Only entries
// with Type "action" are page views; other types (events, downloads,
// outlinks) are not part of this migration.
type Action struct {
	Type      string `json:"type"`
	URL       string `json:"url"`
	PageTitle string `json:"pageTitle"`
	Title     string `json:"title"`
	Timestamp int64  `json:"timestamp"`
}

// IsPageView reports whether the action is a page view.
func (a Action) IsPageView() bool { return a.Type == "action" }
