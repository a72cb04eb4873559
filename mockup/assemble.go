package mockup

import (
	"bytes"
	"fmt"
	"html"
	"net/url"
	"regexp"
	"strings"

	"github.com/microcosm-cc/bluemonday"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
	"go.uber.org/zap"
)

// The rewriting below is regex-based. That only holds because the HTML it
// touches is this pipeline's own markdown rendering, already sanitized:
// attribute values are entity-escaped, so '>' always terminates a tag.
var (
	imgTagRe     = regexp.MustCompile(`(?i)<img\b[^>]*>`)
	srcAttrRe    = regexp.MustCompile(`(?i)\bsrc\s*=\s*"([^"]*)"`)
	widthAttrRe  = regexp.MustCompile(`(?i)\swidth\s*=`)
	heightAttrRe = regexp.MustCompile(`(?i)\sheight\s*=`)
	srcsetAttrRe = regexp.MustCompile(`(?i)\ssrcset\s*=`)
	slotTagRe    = regexp.MustCompile(`(?i)<(h[1-4]|p|a|button)(\s[^>]*)?>`)
)

// slotCounters threads slot numbering across sections so the whole document
// shares one headline, one subheadline and continuous heading/body/cta
// sequences.
type slotCounters struct {
	seenH1  bool
	seenH2  bool
	heading int
	body    int
	cta     int
}

// AssembleContent fills a placeholder skeleton with rendered section
// markdown. Sections whose {{id}} token is absent are skipped silently; each
// present token is replaced at its first occurrence, in caller order. With a
// nil registry the output degrades to sanitized markdown substituted at
// every occurrence: no image enhancement, no background injection, no slot
// tagging.
func AssembleContent(skeleton string, sections []Section, reg *ImageRegistry, opts Options) string {
	opts = opts.withDefaults()
	md := newMarkdownConverter()
	policy := newSectionPolicy(opts)

	if reg == nil {
		for _, section := range sections {
			ph := sectionPlaceholder(section.ID)
			if !strings.Contains(skeleton, ph) {
				continue
			}
			body := policy.Sanitize(renderMarkdown(md, section.Markdown, opts))
			skeleton = strings.ReplaceAll(skeleton, ph, body)
		}
		return skeleton
	}

	counters := slotCounters{}
	for _, section := range sections {
		ph := sectionPlaceholder(section.ID)
		if !strings.Contains(skeleton, ph) {
			opts.Logger.Debug("placeholder absent, section skipped", zap.String("section", section.ID))
			continue
		}
		owned := reg.SectionImages(section.ID)
		body := policy.Sanitize(renderMarkdown(md, section.Markdown, opts))
		body = enhanceImages(body, owned)
		body = prependBackgrounds(body, owned)
		body, counters = tagSlots(body, counters)
		skeleton = strings.Replace(skeleton, ph, body, 1)
	}
	return skeleton
}

func sectionPlaceholder(id string) string {
	return "{{" + id + "}}"
}

// newMarkdownConverter builds the restricted dialect: GFM only. Raw HTML
// stays disabled (goldmark's default omits raw blocks and inline HTML),
// which closes the markup-injection escape route.
func newMarkdownConverter() goldmark.Markdown {
	return goldmark.New(goldmark.WithExtensions(extension.GFM))
}

func renderMarkdown(md goldmark.Markdown, source string, opts Options) string {
	var buf bytes.Buffer
	if err := md.Convert([]byte(source), &buf); err != nil {
		opts.Logger.Warn("markdown conversion failed", zap.Error(err))
		return ""
	}
	return buf.String()
}

// newSectionPolicy is the defense-in-depth whitelist applied to rendered
// markdown before any tag rewriting. Embedded data URIs pass only when the
// safety validator accepts them.
func newSectionPolicy(opts Options) *bluemonday.Policy {
	p := bluemonday.NewPolicy()
	// Not AllowStandardURLs: that helper force-adds rel="nofollow" to anchors.
	p.RequireParseableURLs(true)
	p.AllowRelativeURLs(true)
	p.AllowURLSchemes("mailto", "http", "https")
	p.AllowElements(
		"h1", "h2", "h3", "h4", "h5", "h6",
		"p", "br", "hr", "ul", "ol", "li",
		"strong", "em", "del", "code", "pre", "blockquote",
		"table", "thead", "tbody", "tr", "th", "td",
	)
	p.AllowAttrs("href", "title").OnElements("a")
	p.AllowAttrs("src", "alt", "title", "width", "height").OnElements("img")
	p.AllowAttrs("align").OnElements("th", "td")
	maxPayload := opts.MaxDataURIPayload
	p.AllowURLSchemeWithCustomPolicy("data", func(u *url.URL) bool {
		_, err := validateDataURI(u.String(), maxPayload)
		return err == nil
	})
	return p
}

// enhanceImages adds missing width/height/srcset attributes to img tags
// whose src resolves to a section-owned registry entry. Relative srcs match
// an owned URL only when exactly one owned URL ends with them.
func enhanceImages(htmlText string, owned []*PageImage) string {
	if len(owned) == 0 || !strings.Contains(htmlText, "<img") {
		return htmlText
	}
	byURL := make(map[string]*PageImage, len(owned))
	for _, img := range owned {
		byURL[img.URL] = img
	}
	return imgTagRe.ReplaceAllStringFunc(htmlText, func(tag string) string {
		m := srcAttrRe.FindStringSubmatch(tag)
		if m == nil {
			return tag
		}
		src := html.UnescapeString(m[1])
		img := byURL[src]
		if img == nil {
			img = matchRelativeSrc(src, owned)
		}
		if img == nil {
			return tag
		}
		var add strings.Builder
		if img.Width > 0 && !widthAttrRe.MatchString(tag) {
			fmt.Fprintf(&add, ` width="%d"`, img.Width)
		}
		if img.Height > 0 && !heightAttrRe.MatchString(tag) {
			fmt.Fprintf(&add, ` height="%d"`, img.Height)
		}
		if img.Srcset != "" && !srcsetAttrRe.MatchString(tag) {
			fmt.Fprintf(&add, ` srcset="%s"`, html.EscapeString(img.Srcset))
		}
		if add.Len() == 0 {
			return tag
		}
		return insertBeforeClose(tag, add.String())
	})
}

// matchRelativeSrc maps a relative markdown src onto the owned entry whose
// absolute URL ends with it, but only when that mapping is unambiguous.
func matchRelativeSrc(src string, owned []*PageImage) *PageImage {
	if src == "" || strings.Contains(src, "://") || strings.HasPrefix(src, "data:") {
		return nil
	}
	trimmed := strings.TrimPrefix(src, ".")
	var found *PageImage
	for _, img := range owned {
		if strings.HasSuffix(img.URL, trimmed) {
			if found != nil {
				return nil
			}
			found = img
		}
	}
	return found
}

func insertBeforeClose(tag, insert string) string {
	body := strings.TrimSuffix(tag, ">")
	if strings.HasSuffix(body, "/") {
		return strings.TrimRight(body[:len(body)-1], " ") + insert + " />"
	}
	return body + insert + ">"
}

// prependBackgrounds emits one placeholder img per owned background image,
// in ownership order, ahead of the section body. The render adapter turns
// these into styled divs at display time.
func prependBackgrounds(htmlText string, owned []*PageImage) string {
	var tags strings.Builder
	for _, img := range owned {
		if !img.IsBackground {
			continue
		}
		alt := img.Alt
		if alt == "" {
			alt = "Background image"
		}
		fmt.Fprintf(&tags, `<img src="%s" alt="%s" data-bg-image="true"`,
			html.EscapeString(img.URL), html.EscapeString(alt))
		if img.Width > 0 {
			fmt.Fprintf(&tags, ` width="%d"`, img.Width)
		}
		if img.Height > 0 {
			fmt.Fprintf(&tags, ` height="%d"`, img.Height)
		}
		tags.WriteString(` style="width: 100%; max-width: 100%;">`)
		tags.WriteString("\n")
	}
	if tags.Len() == 0 {
		return htmlText
	}
	return tags.String() + htmlText
}

// tagSlots marks the semantic role of each content tag: the document's
// first h1 is the headline, its first h2 the subheadline, later h1-h4 share
// one heading counter, and paragraphs and links/buttons get their own
// sequences. Tags already carrying data-slot are left alone, so a second
// pass is a no-op.
func tagSlots(htmlText string, c slotCounters) (string, slotCounters) {
	out := slotTagRe.ReplaceAllStringFunc(htmlText, func(tag string) string {
		m := slotTagRe.FindStringSubmatch(tag)
		name := strings.ToLower(m[1])
		attrs := m[2]
		if strings.Contains(strings.ToLower(attrs), "data-slot") {
			return tag
		}
		var slot string
		switch name {
		case "h1":
			if !c.seenH1 {
				c.seenH1 = true
				slot = "headline"
			} else {
				c.heading++
				slot = fmt.Sprintf("heading-%d", c.heading)
			}
		case "h2":
			if !c.seenH2 {
				c.seenH2 = true
				slot = "subheadline"
			} else {
				c.heading++
				slot = fmt.Sprintf("heading-%d", c.heading)
			}
		case "h3", "h4":
			c.heading++
			slot = fmt.Sprintf("heading-%d", c.heading)
		case "p":
			c.body++
			slot = fmt.Sprintf("body-%d", c.body)
		case "a", "button":
			c.cta++
			slot = fmt.Sprintf("cta-%d", c.cta)
		default:
			return tag
		}
		return "<" + m[1] + ` data-slot="` + slot + `"` + attrs + ">"
	})
	return out, c
}
