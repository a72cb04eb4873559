package mockup

import (
	"fmt"
	"html"
	"regexp"
	"strconv"
	"strings"

	"go.uber.org/zap"
)

var (
	bgImgTagRe  = regexp.MustCompile(`(?i)<img\b[^>]*\bdata-bg-image\s*=\s*"true"[^>]*>`)
	heightValRe = regexp.MustCompile(`(?i)\bheight\s*=\s*"(\d+)"`)
)

const bgFallbackHeight = 300

// RenderBackgroundImages converts the assembler's background placeholder
// img tags into styled divs for display. Tags whose src fails re-validation
// stay untouched, and already-rendered output never changes again: running
// the adapter twice yields identical HTML.
func RenderBackgroundImages(htmlText string, opts Options) string {
	opts = opts.withDefaults()
	if !strings.Contains(htmlText, "data-bg-image") {
		return htmlText
	}
	return bgImgTagRe.ReplaceAllStringFunc(htmlText, func(tag string) string {
		if strings.Contains(tag, `data-bg-image-rendered="true"`) {
			return tag
		}
		m := srcAttrRe.FindStringSubmatch(tag)
		if m == nil {
			return tag
		}
		// The regex reads attribute text, so entities decode before use.
		src := html.UnescapeString(m[1])
		validated, err := ValidateURL(src, opts)
		if err != nil {
			opts.Logger.Debug("background image left unrendered",
				zap.String("src", src), zap.Error(err))
			return tag
		}
		height := bgFallbackHeight
		if hm := heightValRe.FindStringSubmatch(tag); hm != nil {
			if h, err := strconv.Atoi(hm[1]); err == nil && h > 0 {
				height = h
			}
		}
		// Single quotes are percent-encoded so the value cannot break out
		// of the CSS url() literal.
		esc := html.EscapeString(strings.ReplaceAll(validated, "'", "%27"))
		return fmt.Sprintf(`<div data-bg-image-rendered="true" style="background-image: url('%s'); background-size: cover; background-position: center; width: 100%%; min-height: %dpx;"></div>`,
			esc, height)
	})
}
