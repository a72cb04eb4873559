package mockup

import (
	"bytes"
	"encoding/base64"
	"image"
	"net/url"
	"regexp"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"go.uber.org/zap"

	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"

	_ "golang.org/x/image/webp"
)

// Section is one externally produced content unit: the identifier of a
// skeleton placeholder and the markdown that fills it.
type Section struct {
	ID       string
	Markdown string
}

// PageImage is one image discovered in the scraped page or in section
// markdown. Identity is the validated URL; repeated discoveries merge into
// the same entry, filling gaps but never overwriting known metadata.
type PageImage struct {
	URL          string
	Alt          string
	Width        int
	Height       int
	Srcset       string
	IsBackground bool
	IsIcon       bool
	Sections     []string
}

// ImageRegistry indexes every discovered image by validated URL and records
// which sections own which images in first-appearance order. Entries are
// only ever added or enriched, never removed.
type ImageRegistry struct {
	images   map[string]*PageImage
	order    []string
	sections map[string][]string
}

var (
	bgImageURLRe = regexp.MustCompile(`(?i)background(?:-image)?\s*:[^;]*?url\(\s*['"]?([^'")]+)['"]?\s*\)`)
	mdImageRe    = regexp.MustCompile(`!\[([^\]]*)\]\(([^)\s]+)[^)]*\)`)
	atxHeadingRe = regexp.MustCompile(`(?m)^[ \t]{0,3}#{1,6}[ \t]+(.+)$`)
	wordRe       = regexp.MustCompile(`\w+`)
)

var iconAltKeywords = []string{"icon", "logo", "favicon", "badge", "arrow", "chevron"}

// BuildImageRegistry collects images from the scraped page and the section
// markdown, then assigns leftover page images to sections by alt/heading
// similarity. Invalid and unsafe URLs are dropped silently.
func BuildImageRegistry(htmlText string, sections []Section, pageURL string, opts Options) *ImageRegistry {
	opts = opts.withDefaults()
	reg := &ImageRegistry{
		images:   map[string]*PageImage{},
		sections: map[string][]string{},
	}
	base := normalizeBaseURL(pageURL)
	reg.collectHTMLImages(htmlText, base, opts)
	reg.collectMarkdownImages(sections, base, opts)
	reg.assignOrphans(sections, opts)
	return reg
}

// Image returns the entry for a validated URL, or nil.
func (r *ImageRegistry) Image(u string) *PageImage {
	return r.images[u]
}

// SectionImages returns the images owned by one section in first-appearance
// order. This is the only read path the assembler uses.
func (r *ImageRegistry) SectionImages(sectionID string) []*PageImage {
	urls := r.sections[sectionID]
	if len(urls) == 0 {
		return nil
	}
	out := make([]*PageImage, 0, len(urls))
	for _, u := range urls {
		if img := r.images[u]; img != nil {
			out = append(out, img)
		}
	}
	return out
}

// URLs returns every registered image URL in discovery order.
func (r *ImageRegistry) URLs() []string {
	out := make([]string, len(r.order))
	copy(out, r.order)
	return out
}

// Len reports the number of registered images.
func (r *ImageRegistry) Len() int {
	return len(r.images)
}

func (r *ImageRegistry) collectHTMLImages(htmlText, base string, opts Options) {
	if strings.TrimSpace(htmlText) == "" {
		return
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(htmlText))
	if err != nil {
		opts.Logger.Warn("image scan skipped, unparseable html", zap.Error(err))
		return
	}

	doc.Find("img").Each(func(_ int, sel *goquery.Selection) {
		src := strings.TrimSpace(sel.AttrOr("src", ""))
		if src == "" {
			src = firstNonEmpty(
				strings.TrimSpace(sel.AttrOr("data-src", "")),
				strings.TrimSpace(sel.AttrOr("data-original", "")),
				strings.TrimSpace(sel.AttrOr("data-lazy-src", "")),
			)
		}
		validated, ok := r.admit(src, base, opts)
		if !ok {
			return
		}
		alt := strings.TrimSpace(sel.AttrOr("alt", ""))
		w := parseDimension(sel.AttrOr("width", ""))
		h := parseDimension(sel.AttrOr("height", ""))
		if w == 0 && h == 0 && strings.HasPrefix(validated, "data:") {
			if pw, ph, ok := dataURIDimensions(validated); ok {
				w, h = pw, ph
			}
		}
		r.add(validated, alt, w, h, strings.TrimSpace(sel.AttrOr("srcset", "")),
			false, isIconLike(w, h, alt))
	})

	doc.Find("picture source").Each(func(_ int, sel *goquery.Selection) {
		srcset := strings.TrimSpace(sel.AttrOr("srcset", ""))
		if srcset == "" {
			return
		}
		first := srcset
		if i := strings.IndexByte(first, ','); i >= 0 {
			first = first[:i]
		}
		fields := strings.Fields(first)
		if len(fields) == 0 {
			return
		}
		if validated, ok := r.admit(fields[0], base, opts); ok {
			r.add(validated, "", 0, 0, srcset, false, false)
		}
	})

	doc.Find("div, section, header, footer, main, aside, article").Each(func(_ int, sel *goquery.Selection) {
		style := sel.AttrOr("style", "")
		if style == "" {
			return
		}
		m := bgImageURLRe.FindStringSubmatch(style)
		if m == nil {
			return
		}
		if validated, ok := r.admit(strings.TrimSpace(m[1]), base, opts); ok {
			r.add(validated, "", 0, 0, "", true, false)
		}
	})
}

func (r *ImageRegistry) collectMarkdownImages(sections []Section, base string, opts Options) {
	for _, section := range sections {
		for _, m := range mdImageRe.FindAllStringSubmatch(section.Markdown, -1) {
			validated, ok := r.admit(m[2], base, opts)
			if !ok {
				continue
			}
			r.add(validated, strings.TrimSpace(m[1]), 0, 0, "", false, false)
			r.own(section.ID, validated)
		}
	}
}

// assignOrphans gives each page image owned by no section to the single
// best-matching section by alt/heading word overlap. A score at or below
// the threshold, or a tie for best, leaves the image unassigned.
func (r *ImageRegistry) assignOrphans(sections []Section, opts Options) {
	if len(sections) == 0 {
		return
	}
	headings := make([]string, len(sections))
	for i, section := range sections {
		headings[i] = sectionHeadingText(section.Markdown)
	}
	for _, u := range r.order {
		img := r.images[u]
		if len(img.Sections) > 0 || img.Alt == "" {
			continue
		}
		altWords := wordSet(img.Alt)
		best, bestScore, tied := -1, 0.0, false
		for i := range sections {
			score := jaccard(altWords, wordSet(headings[i]))
			switch {
			case score > bestScore:
				best, bestScore, tied = i, score, false
			case score == bestScore && best >= 0:
				tied = true
			}
		}
		if best < 0 || tied || bestScore <= opts.JaccardThreshold {
			continue
		}
		if _, err := ValidateURL(img.URL, opts); err != nil {
			continue
		}
		opts.Logger.Debug("orphan image assigned",
			zap.String("url", img.URL),
			zap.String("section", sections[best].ID),
			zap.Float64("score", bestScore))
		r.own(sections[best].ID, u)
	}
}

// admit resolves a raw reference against the page base and runs it through
// the safety validator, logging and rejecting anything unusable.
func (r *ImageRegistry) admit(raw, base string, opts Options) (string, bool) {
	if raw == "" {
		return "", false
	}
	abs := resolveAbsURL(base, raw)
	if abs == "" {
		return "", false
	}
	validated, err := ValidateURL(abs, opts)
	if err != nil {
		opts.Logger.Debug("image dropped", zap.String("url", abs), zap.Error(err))
		return "", false
	}
	return validated, true
}

func (r *ImageRegistry) add(u, alt string, w, h int, srcset string, background, icon bool) {
	img, ok := r.images[u]
	if !ok {
		r.images[u] = &PageImage{
			URL: u, Alt: alt, Width: w, Height: h, Srcset: srcset,
			IsBackground: background, IsIcon: icon,
		}
		r.order = append(r.order, u)
		return
	}
	if img.Alt == "" {
		img.Alt = alt
	}
	if img.Width == 0 {
		img.Width = w
	}
	if img.Height == 0 {
		img.Height = h
	}
	if img.Srcset == "" {
		img.Srcset = srcset
	}
	img.IsBackground = img.IsBackground || background
	img.IsIcon = img.IsIcon || icon
}

func (r *ImageRegistry) own(sectionID, u string) {
	img := r.images[u]
	if img == nil {
		return
	}
	for _, s := range img.Sections {
		if s == sectionID {
			return
		}
	}
	img.Sections = append(img.Sections, sectionID)
	r.sections[sectionID] = append(r.sections[sectionID], u)
}

// isIconLike flags probable icons: small longer dimension or an icon-ish
// alt keyword. Advisory metadata only, never a filter.
func isIconLike(w, h int, alt string) bool {
	longer := w
	if h > longer {
		longer = h
	}
	if longer > 0 && longer <= 80 {
		return true
	}
	lower := strings.ToLower(alt)
	for _, kw := range iconAltKeywords {
		if strings.Contains(lower, kw) {
			return true
		}
	}
	return false
}

func parseDimension(s string) int {
	s = strings.TrimSuffix(strings.TrimSpace(s), "px")
	n, err := strconv.Atoi(s)
	if err != nil || n < 0 {
		return 0
	}
	return n
}

// dataURIDimensions decodes an embedded image far enough to read its header
// dimensions. png, jpeg, gif and webp are recognized.
func dataURIDimensions(uri string) (int, int, bool) {
	comma := strings.IndexByte(uri, ',')
	if comma < 0 {
		return 0, 0, false
	}
	meta, payload := uri[:comma], uri[comma+1:]
	var raw []byte
	if strings.Contains(meta, ";base64") {
		b, err := base64.StdEncoding.DecodeString(payload)
		if err != nil {
			if b, err = base64.RawStdEncoding.DecodeString(payload); err != nil {
				return 0, 0, false
			}
		}
		raw = b
	} else {
		s, err := url.PathUnescape(payload)
		if err != nil {
			return 0, 0, false
		}
		raw = []byte(s)
	}
	cfg, _, err := image.DecodeConfig(bytes.NewReader(raw))
	if err != nil {
		return 0, 0, false
	}
	return cfg.Width, cfg.Height, true
}

func sectionHeadingText(markdown string) string {
	var lines []string
	for _, m := range atxHeadingRe.FindAllStringSubmatch(markdown, -1) {
		lines = append(lines, strings.TrimRight(strings.TrimSpace(m[1]), "# "))
	}
	return strings.Join(lines, " ")
}

func wordSet(s string) map[string]struct{} {
	set := map[string]struct{}{}
	for _, w := range wordRe.FindAllString(strings.ToLower(s), -1) {
		set[w] = struct{}{}
	}
	return set
}

func jaccard(a, b map[string]struct{}) float64 {
	if len(a) == 0 || len(b) == 0 {
		return 0
	}
	inter := 0
	for w := range a {
		if _, ok := b[w]; ok {
			inter++
		}
	}
	union := len(a) + len(b) - inter
	if union == 0 {
		return 0
	}
	return float64(inter) / float64(union)
}
