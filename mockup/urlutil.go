package mockup

import (
	"net/url"
	"strings"
)

// resolveAbsURL resolves href against base. Absolute hrefs pass through;
// a missing or unparseable base leaves relative hrefs unresolved ("").
func resolveAbsURL(base, href string) string {
	href = strings.TrimSpace(href)
	if href == "" {
		return ""
	}
	hu, err := url.Parse(href)
	if err != nil {
		return ""
	}
	if hu.IsAbs() || strings.HasPrefix(href, "data:") {
		return href
	}
	if strings.TrimSpace(base) == "" {
		return ""
	}
	bu, err := url.Parse(base)
	if err != nil || !bu.IsAbs() {
		return ""
	}
	return bu.ResolveReference(hu).String()
}

// normalizeBaseURL fills in a missing scheme so callers can hand over bare
// hosts like "example.com/page". Anything unparseable comes back unchanged.
func normalizeBaseURL(raw string) string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return ""
	}
	if strings.Contains(raw, "://") {
		return raw
	}
	if strings.HasPrefix(raw, "//") {
		return "https:" + raw
	}
	return "https://" + raw
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}
