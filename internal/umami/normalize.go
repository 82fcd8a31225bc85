package umami

import "strings"

// Unknown is the sentinel for browser/OS/device values the source did
// not report. Unrecognized vendor strings pass through lowercased
// instead of failing.
const Unknown = "unknown"

// normalizeBrowser collapses Matomo browser names onto Umami's browser
// enumeration. Order matters: the first matching substring wins.
func normalizeBrowser(name string) string {
	b := strings.ToLower(strings.TrimSpace(name))
	switch {
	case b == "":
		return Unknown
	case strings.Contains(b, "chrome"):
		return "chrome"
	case strings.Contains(b, "edge"):
		return "edge-chromium"
	case strings.Contains(b, "firefox"):
		return "firefox"
	case strings.Contains(b, "opera"):
		return "opera"
	case strings.Contains(b, "mobile safari"):
		return "ios"
	case strings.Contains(b, "safari"):
		return "safari"
	case strings.Contains(b, "yandex"):
		return "yandexbrowser"
	case strings.Contains(b, "samsung"):
		return "samsung"
	case strings.Contains(b, "google search app"):
		return "chromium-webview"
	case strings.Contains(b, "silk"):
		return "silk"
	default:
		return truncate(b, maxAgentLen)
	}
}

// normalizeOS collapses Matomo OS names onto Umami's values. name is
// the coarse family ("Windows"); detail carries the version
// ("Windows 8.1"), which is needed because Umami distinguishes Windows
// generations but Matomo only exposes them in the detail field.
func normalizeOS(name, detail string) string {
	o := strings.ToLower(strings.TrimSpace(name))
	switch {
	case o == "":
		return Unknown
	case strings.Contains(o, "linux") || strings.Contains(o, "ubuntu"):
		return "Linux"
	case strings.Contains(o, "chrome"):
		return "Chrome OS"
	case strings.Contains(o, "windows"):
		return normalizeWindows(detail)
	case strings.Contains(o, "ios"):
		return "iOS"
	case strings.Contains(o, "mac"):
		return "Mac OS"
	case strings.Contains(o, "android"):
		return "Android OS"
	default:
		return truncate(o, maxAgentLen)
	}
}

func normalizeWindows(detail string) string {
	d := strings.ToLower(detail)
	switch {
	case strings.Contains(d, "windows 7"):
		return "Windows 7"
	case strings.Contains(d, "windows 8.1"):
		return "Windows 8.1"
	case strings.Contains(d, "windows 10"), strings.Contains(d, "windows 11"):
		// Umami buckets Windows 11 under Windows 10.
		return "Windows 10"
	default:
		return "windows"
	}
}

// normalizeDevice collapses Matomo device types onto Umami's device
// classes.
func normalizeDevice(device string) string {
	d := strings.ToLower(strings.TrimSpace(device))
	switch {
	case d == "":
		return Unknown
	case strings.Contains(d, "desktop"):
		return "desktop"
	case strings.Contains(d, "tablet"):
		return "tablet"
	case strings.Contains(d, "smartphone"), strings.Contains(d, "phablet"):
		return "mobile"
	default:
		return truncate(d, maxAgentLen)
	}
}

// truncate caps s at n characters, not bytes, matching varchar(n)
// semantics. Cutting mid-rune would put invalid UTF-8 into a file that
// declares client_encoding UTF8.
func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	count := 0
	for i := range s {
		if count == n {
			return s[:i]
		}
		count++
	}
	return s
}

// strPtr returns nil for empty strings so absent source fields become
// SQL NULL rather than empty strings.
func strPtr(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
