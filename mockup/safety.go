package mockup

import (
	"errors"
	"fmt"
	"net"
	"net/url"
	"strings"
)

// Classification results returned (wrapped) by ValidateURL.
var (
	ErrEmptyURL     = errors.New("empty url")
	ErrMalformedURL = errors.New("malformed url")
	ErrUnsafeScheme = errors.New("unsafe scheme")
	ErrPrivateHost  = errors.New("private or local host")
	ErrTrackingHost = errors.New("tracking host")
	ErrDataURI      = errors.New("unsafe data uri")
)

var privateBlocks []*net.IPNet

func init() {
	for _, cidr := range []string{
		"127.0.0.0/8",
		"10.0.0.0/8",
		"172.16.0.0/12",
		"192.168.0.0/16",
		"169.254.0.0/16",
		"fc00::/7",
		"::1/128",
	} {
		if _, block, err := net.ParseCIDR(cidr); err == nil {
			privateBlocks = append(privateBlocks, block)
		}
	}
}

var embeddableDataTypes = map[string]bool{
	"image/png":  true,
	"image/jpeg": true,
	"image/gif":  true,
	"image/webp": true,
}

// ValidateURL classifies a URL or data: URI as safe to fetch or embed. It
// returns the normalized form and a nil error when safe, or a zero string
// and an error wrapping one of the Err* sentinels naming the reason. It
// inspects only the text of the URL: hostname resolution is deliberately
// left to the stylesheet fetcher, since this runs on every image reference.
func ValidateURL(raw string, opts Options) (string, error) {
	opts = opts.withDefaults()
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "", ErrEmptyURL
	}
	if len(raw) >= 5 && strings.EqualFold(raw[:5], "data:") {
		return validateDataURI(raw, opts.MaxDataURIPayload)
	}

	u, err := url.Parse(raw)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrMalformedURL, err)
	}
	if !strings.EqualFold(u.Scheme, "https") {
		return "", fmt.Errorf("%w: %q", ErrUnsafeScheme, u.Scheme)
	}
	host := strings.ToLower(u.Hostname())
	if host == "" {
		return "", fmt.Errorf("%w: no host", ErrMalformedURL)
	}
	if host == "localhost" || strings.HasSuffix(host, ".localhost") {
		return "", fmt.Errorf("%w: %s", ErrPrivateHost, host)
	}
	if ip := net.ParseIP(host); ip != nil && isPrivateIP(ip) {
		return "", fmt.Errorf("%w: %s", ErrPrivateHost, host)
	}
	if hostInDomains(host, opts.TrackingDomains) {
		return "", fmt.Errorf("%w: %s", ErrTrackingHost, host)
	}
	if hostHasPrefix(host, opts.TrackingPrefixes) {
		return "", fmt.Errorf("%w: %s", ErrTrackingHost, host)
	}
	// url.Parse lowercases the scheme but not the host.
	u.Host = strings.ToLower(u.Host)
	return u.String(), nil
}

// validateDataURI accepts only raster image payloads of bounded size. SVG is
// excluded: it can carry script.
func validateDataURI(raw string, maxPayload int) (string, error) {
	comma := strings.Index(raw, ",")
	if comma < 0 {
		return "", fmt.Errorf("%w: missing comma", ErrDataURI)
	}
	header := raw[len("data:"):comma]
	mediaType := header
	if i := strings.Index(header, ";"); i >= 0 {
		mediaType = header[:i]
	}
	mediaType = strings.ToLower(strings.TrimSpace(mediaType))
	if !embeddableDataTypes[mediaType] {
		return "", fmt.Errorf("%w: media type %q", ErrDataURI, mediaType)
	}
	if payload := len(raw) - comma - 1; payload > maxPayload {
		return "", fmt.Errorf("%w: payload %d over limit", ErrDataURI, payload)
	}
	return raw, nil
}

func isPrivateIP(ip net.IP) bool {
	if ip.IsLoopback() || ip.IsLinkLocalUnicast() || ip.IsLinkLocalMulticast() || ip.IsUnspecified() {
		return true
	}
	for _, block := range privateBlocks {
		if block.Contains(ip) {
			return true
		}
	}
	return false
}
