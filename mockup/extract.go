package mockup

import (
	"regexp"
	"strings"

	"go.uber.org/zap"
)

// ExtractedCSS carries every style layer pulled from one scraped page:
// raw block groups by kind, per-component property maps, design tokens and
// the cascade-inlined HTML.
type ExtractedCSS struct {
	CustomProperties string
	MediaQueries     string
	FontFaces        string
	LayoutRules      string
	Components       map[string]map[string]string
	Tokens           DesignTokens
	InlinedHTML      string
}

// ResponsiveCSS is the size-capped style subset that ships with a mockup.
type ResponsiveCSS struct {
	CustomProperties string
	MediaQueries     string
	FontFaces        string
}

var headingSelRe = regexp.MustCompile(`(?i)(?:^|[\s,>+~(])h[1-6]\b`)

// ExtractCSS splits a page's stylesheet into the ExtractedCSS layers and
// resolves the cascade into inline styles. Component property maps are
// last-write-wins in source order, mirroring how the cascade would flatten
// equal-specificity rules.
func ExtractCSS(htmlText, cssText string, opts Options) ExtractedCSS {
	opts = opts.withDefaults()
	ex := ExtractedCSS{Components: map[string]map[string]string{}}

	var roots, medias, fontFaces, layout []string
	for _, b := range SplitCSS(cssText) {
		switch b.Kind {
		case BlockRoot:
			roots = append(roots, b.Raw)
		case BlockMedia:
			medias = append(medias, b.Raw)
		case BlockFontFace:
			fontFaces = append(fontFaces, b.Raw)
		case BlockRule:
			prelude, body, ok := splitBlock(b.Raw)
			if !ok {
				continue
			}
			decls := textualDeclarations(body)
			if hasLayoutProp(decls) {
				layout = append(layout, b.Raw)
			}
			if name := componentFor(prelude); name != "" {
				props := ex.Components[name]
				if props == nil {
					props = map[string]string{}
					ex.Components[name] = props
				}
				for _, d := range decls {
					props[d[0]] = d[1]
				}
			}
		}
	}
	ex.CustomProperties = strings.Join(roots, "\n")
	ex.MediaQueries = strings.Join(medias, "\n")
	ex.FontFaces = strings.Join(fontFaces, "\n")
	ex.LayoutRules = strings.Join(layout, "\n")

	ex.InlinedHTML = ResolveCascade(htmlText, cssText, opts)
	ex.Tokens = ExtractTokens(ex.InlinedHTML, opts)
	return ex
}

// BuildResponsiveCSS copies the three shippable layers and enforces the
// size budget by dropping font-faces first, media queries second, and
// finally truncating the custom properties.
func BuildResponsiveCSS(ex ExtractedCSS, opts Options) ResponsiveCSS {
	opts = opts.withDefaults()
	out := ResponsiveCSS{
		CustomProperties: ex.CustomProperties,
		MediaQueries:     ex.MediaQueries,
		FontFaces:        ex.FontFaces,
	}
	max := opts.MaxResponsiveCSS
	if responsiveSize(out) <= max {
		return out
	}
	opts.Logger.Warn("responsive css over budget, dropping font-faces",
		zap.Int("size", responsiveSize(out)), zap.Int("budget", max))
	out.FontFaces = ""
	if responsiveSize(out) <= max {
		return out
	}
	opts.Logger.Warn("responsive css still over budget, dropping media queries",
		zap.Int("size", responsiveSize(out)), zap.Int("budget", max))
	out.MediaQueries = ""
	if responsiveSize(out) <= max {
		return out
	}
	opts.Logger.Warn("truncating custom properties to fit budget",
		zap.Int("size", responsiveSize(out)), zap.Int("budget", max))
	out.CustomProperties = out.CustomProperties[:max]
	return out
}

func responsiveSize(r ResponsiveCSS) int {
	return len(r.CustomProperties) + len(r.MediaQueries) + len(r.FontFaces)
}

// textualDeclarations splits a rule body into key/value pairs without CSS
// value semantics. Values that themselves contain semicolons (embedded data
// URIs) split apart here; the component maps tolerate that loss.
func textualDeclarations(body string) [][2]string {
	var out [][2]string
	for _, decl := range strings.Split(body, ";") {
		colon := strings.IndexByte(decl, ':')
		if colon <= 0 {
			continue
		}
		k := strings.ToLower(strings.TrimSpace(decl[:colon]))
		v := strings.TrimSpace(decl[colon+1:])
		if k == "" || v == "" {
			continue
		}
		out = append(out, [2]string{k, v})
	}
	return out
}

func hasLayoutProp(decls [][2]string) bool {
	for _, d := range decls {
		if isLayoutProp(d[0]) {
			return true
		}
	}
	return false
}

func isLayoutProp(k string) bool {
	switch k {
	case "display", "position", "gap", "width", "height", "max-width":
		return true
	}
	return strings.HasPrefix(k, "grid") || strings.HasPrefix(k, "flex")
}

// componentFor maps a selector list onto one of the four tracked component
// buckets, first keyword wins: button, card, heading, container.
func componentFor(selector string) string {
	s := strings.ToLower(selector)
	switch {
	case strings.Contains(s, "button") || strings.Contains(s, "btn"):
		return "button"
	case strings.Contains(s, "card"):
		return "card"
	case strings.Contains(s, "heading") || headingSelRe.MatchString(s):
		return "heading"
	case strings.Contains(s, "container") || strings.Contains(s, "wrapper"):
		return "container"
	}
	return ""
}
