// Package mockup reconstructs a visually faithful mockup of a scraped page
// from its HTML/CSS and a set of rewritten per-section markdown fragments.
// All entry points are pure, synchronous functions over in-memory text; the
// only component that touches the network is StylesheetFetcher.
package mockup

import (
	"time"

	"go.uber.org/zap"
)

// Options carries the tunable knobs shared across the pipeline. The zero
// value is fully usable: every function calls withDefaults before reading it.
type Options struct {
	// Logger receives degradation diagnostics. Nil discards them.
	Logger *zap.Logger

	// MaxDataURIPayload caps the encoded payload of an embeddable data: URI.
	MaxDataURIPayload int

	// MaxCascadeInput refuses cascade resolution above this HTML length.
	MaxCascadeInput int
	// MaxCascadeOutput drops the inlined document above this length.
	MaxCascadeOutput int
	// CascadeTimeout bounds wall-clock time spent resolving one document.
	CascadeTimeout time.Duration

	// ViewportWidth and ViewportHeight drive @media evaluation during
	// cascade resolution.
	ViewportWidth  int
	ViewportHeight int

	// MaxStylesheetFetches caps how many external stylesheets are fetched
	// for one page.
	MaxStylesheetFetches int
	// MaxStylesheetBytes truncates any single stylesheet body.
	MaxStylesheetBytes int64
	// MaxRedirects caps redirect hops per stylesheet fetch.
	MaxRedirects      int
	StylesheetTimeout time.Duration
	UserAgent         string
	// FetchValidator, when set, replaces the built-in host safety check run
	// before connecting and again at every redirect hop.
	FetchValidator func(rawURL string) error

	// TokenCap truncates each design-token map to its top-N values.
	TokenCap int
	// JaccardThreshold is the minimum alt/heading word similarity for an
	// orphan image to be assigned to a section.
	JaccardThreshold float64

	// MaxResponsiveCSS caps the combined ResponsiveCSS text length.
	MaxResponsiveCSS int

	// TrackingDomains and TrackingPrefixes override the built-in lists of
	// tracker hosts rejected by ValidateURL. Nil keeps the defaults.
	TrackingDomains  []string
	TrackingPrefixes []string
	// ExcludedCSSHosts are never fetched even when first-party (CDN and
	// font hosts). Nil keeps the defaults.
	ExcludedCSSHosts []string
}

func (o Options) withDefaults() Options {
	if o.Logger == nil {
		o.Logger = zap.NewNop()
	}
	if o.MaxDataURIPayload == 0 {
		o.MaxDataURIPayload = 500000
	}
	if o.MaxCascadeInput == 0 {
		o.MaxCascadeInput = 1000000
	}
	if o.MaxCascadeOutput == 0 {
		o.MaxCascadeOutput = 2000000
	}
	if o.CascadeTimeout == 0 {
		o.CascadeTimeout = 5 * time.Second
	}
	if o.ViewportWidth == 0 {
		o.ViewportWidth = 1280
	}
	if o.ViewportHeight == 0 {
		o.ViewportHeight = 800
	}
	if o.MaxStylesheetFetches == 0 {
		o.MaxStylesheetFetches = 3
	}
	if o.MaxStylesheetBytes == 0 {
		o.MaxStylesheetBytes = 2 << 20
	}
	if o.MaxRedirects == 0 {
		o.MaxRedirects = 3
	}
	if o.StylesheetTimeout == 0 {
		o.StylesheetTimeout = 5 * time.Second
	}
	if o.UserAgent == "" {
		o.UserAgent = "maquette/1.0"
	}
	if o.TokenCap == 0 {
		o.TokenCap = 50
	}
	if o.JaccardThreshold == 0 {
		o.JaccardThreshold = 0.5
	}
	if o.MaxResponsiveCSS == 0 {
		o.MaxResponsiveCSS = 100000
	}
	if o.TrackingDomains == nil {
		o.TrackingDomains = defaultTrackingDomains
	}
	if o.TrackingPrefixes == nil {
		o.TrackingPrefixes = defaultTrackingPrefixes
	}
	if o.ExcludedCSSHosts == nil {
		o.ExcludedCSSHosts = defaultExcludedCSSHosts
	}
	return o
}
