package mockup

import (
	"regexp"
	"sort"
	"strings"

	"go.uber.org/zap"
	"golang.org/x/net/html"
)

// DesignTokens aggregates the recurring visual values found in a page's
// inline styles, each counted by frequency of appearance.
type DesignTokens struct {
	Colors       map[string]int
	FontFamilies map[string]int
	FontSizes    map[string]int
	BorderRadii  map[string]int
	Spacing      map[string]int
}

// The passes are purely textual. Each runs independently over every style
// attribute value, so one declaration can feed several maps.
var (
	hexTokenRe     = regexp.MustCompile(`#(?:[0-9a-fA-F]{6}|[0-9a-fA-F]{3})\b`)
	rgbTokenRe     = regexp.MustCompile(`(?i)rgba?\([^)]*\)`)
	fontFamilyRe   = regexp.MustCompile(`(?i)font-family\s*:\s*([^;]+)`)
	fontSizeRe     = regexp.MustCompile(`(?i)font-size\s*:\s*([^;]+)`)
	borderRadiusRe = regexp.MustCompile(`(?i)border-radius\s*:\s*([^;]+)`)
	spacingRe      = regexp.MustCompile(`(?i)(?:padding|margin)(?:-(?:top|right|bottom|left))?\s*:\s*([^;]+)`)
)

// ExtractTokens scans every inline style attribute of inlinedHTML and counts
// design values: colors (normalized to lowercase six-digit hex), the first
// font-family of any stack, font sizes, border radii and padding/margin
// operands. Each map is truncated to the Options.TokenCap most frequent
// entries, ties broken by value for determinism.
func ExtractTokens(inlinedHTML string, opts Options) DesignTokens {
	opts = opts.withDefaults()
	tokens := DesignTokens{
		Colors:       map[string]int{},
		FontFamilies: map[string]int{},
		FontSizes:    map[string]int{},
		BorderRadii:  map[string]int{},
		Spacing:      map[string]int{},
	}

	styles, err := collectStyleAttrs(inlinedHTML)
	if err != nil {
		opts.Logger.Warn("token extraction skipped, unparseable html", zap.Error(err))
		return tokens
	}
	for _, style := range styles {
		for _, m := range hexTokenRe.FindAllString(style, -1) {
			if hex := cssToHex(m); hex != "" {
				tokens.Colors[hex]++
			}
		}
		for _, m := range rgbTokenRe.FindAllString(style, -1) {
			if hex := cssToHex(m); hex != "" {
				tokens.Colors[hex]++
			}
		}
		for _, m := range fontFamilyRe.FindAllStringSubmatch(style, -1) {
			if fam := firstFontFamily(m[1]); fam != "" {
				tokens.FontFamilies[fam]++
			}
		}
		for _, m := range fontSizeRe.FindAllStringSubmatch(style, -1) {
			if v := strings.TrimSpace(m[1]); v != "" {
				tokens.FontSizes[v]++
			}
		}
		for _, m := range borderRadiusRe.FindAllStringSubmatch(style, -1) {
			if v := strings.TrimSpace(m[1]); v != "" {
				tokens.BorderRadii[v]++
			}
		}
		for _, m := range spacingRe.FindAllStringSubmatch(style, -1) {
			if v := strings.TrimSpace(m[1]); v != "" {
				tokens.Spacing[v]++
			}
		}
	}

	limit := opts.TokenCap
	tokens.Colors = topTokens(tokens.Colors, limit)
	tokens.FontFamilies = topTokens(tokens.FontFamilies, limit)
	tokens.FontSizes = topTokens(tokens.FontSizes, limit)
	tokens.BorderRadii = topTokens(tokens.BorderRadii, limit)
	tokens.Spacing = topTokens(tokens.Spacing, limit)
	return tokens
}

func collectStyleAttrs(htmlText string) ([]string, error) {
	if strings.TrimSpace(htmlText) == "" {
		return nil, nil
	}
	doc, err := html.Parse(strings.NewReader(htmlText))
	if err != nil {
		return nil, err
	}
	var styles []string
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode {
			if s := getAttr(n, "style"); s != "" {
				styles = append(styles, s)
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(doc)
	return styles, nil
}

// firstFontFamily returns the leading family of a comma-separated stack with
// surrounding quotes and whitespace stripped.
func firstFontFamily(list string) string {
	first := list
	if i := strings.IndexByte(list, ','); i >= 0 {
		first = list[:i]
	}
	first = strings.TrimSpace(first)
	first = strings.Trim(first, `"'`)
	return strings.TrimSpace(first)
}

// topTokens keeps the n highest-frequency entries, breaking count ties by
// ascending value so truncation is deterministic.
func topTokens(m map[string]int, n int) map[string]int {
	if n <= 0 || len(m) <= n {
		return m
	}
	type kv struct {
		val   string
		count int
	}
	ranked := make([]kv, 0, len(m))
	for v, c := range m {
		ranked = append(ranked, kv{v, c})
	}
	sort.Slice(ranked, func(i, j int) bool {
		if ranked[i].count != ranked[j].count {
			return ranked[i].count > ranked[j].count
		}
		return ranked[i].val < ranked[j].val
	})
	out := make(map[string]int, n)
	for _, e := range ranked[:n] {
		out[e.val] = e.count
	}
	return out
}
