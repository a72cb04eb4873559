package mockup

import "strings"

// Defaults for the host blocklists. ValidateURL rejects tracker hosts so a
// reconstructed page never embeds pixels or beacons; the stylesheet fetcher
// skips CDN and font hosts even when they pass the first-party check,
// because their sheets are framework/font boilerplate rather than the
// page's own design.
var (
	defaultTrackingDomains = []string{
		"doubleclick.net",
		"google-analytics.com",
		"googletagmanager.com",
		"googlesyndication.com",
		"adservice.google.com",
		"facebook.net",
		"scorecardresearch.com",
		"quantserve.com",
	}
	defaultTrackingPrefixes = []string{"pixel.", "beacon.", "track."}

	defaultExcludedCSSHosts = []string{
		"fonts.googleapis.com",
		"fonts.gstatic.com",
		"cdn.jsdelivr.net",
		"cdnjs.cloudflare.com",
		"unpkg.com",
	}
)

// hostInDomains reports whether host equals one of the domains or is a
// subdomain of one. The host is trimmed label by label so x.y.example.com
// matches an entry of example.com.
func hostInDomains(host string, domains []string) bool {
	host = strings.TrimSuffix(strings.ToLower(strings.TrimSpace(host)), ".")
	if host == "" || len(domains) == 0 {
		return false
	}
	labels := strings.Split(host, ".")
	for i := 0; i < len(labels); i++ {
		candidate := strings.Join(labels[i:], ".")
		for _, d := range domains {
			if candidate == strings.ToLower(d) {
				return true
			}
		}
	}
	return false
}

func hostHasPrefix(host string, prefixes []string) bool {
	host = strings.ToLower(strings.TrimSpace(host))
	for _, p := range prefixes {
		if strings.HasPrefix(host, strings.ToLower(p)) {
			return true
		}
	}
	return false
}

// sameSite reports whether two hosts belong to the same site: equal, or one
// is a subdomain of the other.
func sameSite(a, b string) bool {
	a = strings.TrimSuffix(strings.ToLower(strings.TrimSpace(a)), ".")
	b = strings.TrimSuffix(strings.ToLower(strings.TrimSpace(b)), ".")
	if a == "" || b == "" {
		return false
	}
	if a == b {
		return true
	}
	return strings.HasSuffix(a, "."+b) || strings.HasSuffix(b, "."+a)
}
