package mockup

import (
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/andybalholm/cascadia"
	cssast "github.com/aymerick/douceur/css"
	"github.com/aymerick/douceur/parser"
	"go.uber.org/zap"
	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

type propState struct {
	val       string
	spec      cascadia.Specificity
	order     int
	important bool
}

type cssDeclaration struct {
	property  string
	value     string
	important bool
}

type cssRule struct {
	selector     cascadia.Sel
	specificity  cascadia.Specificity
	declarations []cssDeclaration
	order        int
}

type stylesheet struct {
	rules []cssRule
}

// Elements that never render; their computed style is not materialized.
var skipInlineStyle = map[string]bool{
	"head": true, "style": true, "script": true, "noscript": true,
	"meta": true, "link": true, "title": true, "base": true,
}

// ResolveCascade parses htmlText, injects cssText as one extra <style> block
// at the end of <head>, computes every matching rule's final value per
// element (!important beats specificity beats source order, inline styles
// participate on top) and writes the result back as each element's style
// attribute. Original <style> tags stay in place. It performs no network
// I/O: @import and friends are never fetched. Exceeding any ceiling
// (input length, wall-clock budget, output length) returns "".
func ResolveCascade(htmlText, cssText string, opts Options) string {
	opts = opts.withDefaults()
	log := opts.Logger
	if len(htmlText) > opts.MaxCascadeInput {
		log.Warn("cascade refused: input over limit",
			zap.Int("len", len(htmlText)), zap.Int("limit", opts.MaxCascadeInput))
		return ""
	}
	if strings.TrimSpace(htmlText) == "" {
		return ""
	}
	deadline := time.Now().Add(opts.CascadeTimeout)

	doc, err := html.Parse(strings.NewReader(htmlText))
	if err != nil {
		log.Warn("cascade: html parse failed", zap.Error(err))
		return ""
	}
	injectStyleNode(doc, cssText)

	ss := collectStylesheet(doc, opts)
	if ss != nil {
		expired := false
		var walk func(*html.Node)
		walk = func(n *html.Node) {
			if expired {
				return
			}
			if time.Now().After(deadline) {
				expired = true
				return
			}
			if n.Type == html.ElementNode && !skipInlineStyle[strings.ToLower(n.Data)] {
				if props := computeStyleFor(n, ss); len(props) > 0 {
					setAttr(n, "style", serializeProps(props))
				}
			}
			for c := n.FirstChild; c != nil; c = c.NextSibling {
				walk(c)
			}
		}
		walk(doc)
		if expired {
			log.Warn("cascade abandoned: wall-clock budget exceeded",
				zap.Duration("budget", opts.CascadeTimeout))
			return ""
		}
	}

	var sb strings.Builder
	if err := html.Render(&sb, doc); err != nil {
		log.Warn("cascade: render failed", zap.Error(err))
		return ""
	}
	out := sb.String()
	if len(out) > opts.MaxCascadeOutput {
		log.Warn("cascade dropped: output over limit",
			zap.Int("len", len(out)), zap.Int("limit", opts.MaxCascadeOutput))
		return ""
	}
	return out
}

// injectStyleNode appends cssText as the last <style> child of <head>, so it
// lands just before </head> and after the page's own head styles. The parser
// synthesizes a head for fragments, so the fallback (first child of the
// document) only fires on exotic trees.
func injectStyleNode(doc *html.Node, cssText string) {
	if strings.TrimSpace(cssText) == "" {
		return
	}
	style := &html.Node{Type: html.ElementNode, DataAtom: atom.Style, Data: "style"}
	style.AppendChild(&html.Node{Type: html.TextNode, Data: cssText})
	if head := findElement(doc, "head"); head != nil {
		head.AppendChild(style)
		return
	}
	if doc.FirstChild != nil {
		doc.InsertBefore(style, doc.FirstChild)
	} else {
		doc.AppendChild(style)
	}
}

func findElement(n *html.Node, name string) *html.Node {
	if n.Type == html.ElementNode && strings.EqualFold(n.Data, name) {
		return n
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if found := findElement(c, name); found != nil {
			return found
		}
	}
	return nil
}

// collectStylesheet gathers the text of every <style> element in document
// order into one rule list with increasing source order.
func collectStylesheet(doc *html.Node, opts Options) *stylesheet {
	ss := &stylesheet{}
	order := 0
	var collect func(*html.Node)
	collect = func(n *html.Node) {
		if n.Type == html.ElementNode && strings.EqualFold(n.Data, "style") {
			if n.FirstChild != nil && n.FirstChild.Type == html.TextNode {
				if rs, ord := parseCSSText(n.FirstChild.Data, order, opts); len(rs) > 0 {
					ss.rules = append(ss.rules, rs...)
					order = ord
				}
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			collect(c)
		}
	}
	collect(doc)
	if len(ss.rules) == 0 {
		return nil
	}
	return ss
}

// parseCSSText converts CSS text into ordered, selector-parsed rules.
// @media bodies are included only when active for the configured viewport,
// @supports bodies are always included, @import is ignored (resolution never
// fetches), and pseudo-element selectors are skipped.
func parseCSSText(txt string, startOrder int, opts Options) ([]cssRule, int) {
	trimmed := strings.TrimSpace(txt)
	if trimmed == "" {
		return nil, startOrder
	}
	sheet, err := parser.Parse(trimmed)
	if err != nil {
		opts.Logger.Debug("css parse failed, fragment skipped", zap.Error(err))
		return nil, startOrder
	}

	rules := make([]cssRule, 0, len(sheet.Rules)*2)
	order := startOrder

	var walk func([]*cssast.Rule, int)
	walk = func(list []*cssast.Rule, depth int) {
		if depth >= 16 {
			return
		}
		for _, rule := range list {
			if rule == nil {
				continue
			}
			switch rule.Kind {
			case cssast.AtRule:
				switch strings.ToLower(strings.TrimSpace(rule.Name)) {
				case "@media":
					if mediaRuleActive(rule.Prelude, opts.ViewportWidth, opts.ViewportHeight) {
						walk(rule.Rules, depth+1)
					}
				case "@supports":
					walk(rule.Rules, depth+1)
				case "@import", "@charset", "@namespace":
					// never fetched, never applied
				default:
					if rule.EmbedsRules() {
						walk(rule.Rules, depth+1)
					}
				}
			case cssast.QualifiedRule:
				decls := convertDeclarations(rule.Declarations)
				if len(decls) == 0 || len(rule.Selectors) == 0 {
					continue
				}
				group, err := cascadia.ParseGroup(strings.Join(rule.Selectors, ","))
				if err != nil {
					opts.Logger.Debug("selector group skipped", zap.Error(err))
					continue
				}
				for _, sel := range group {
					if sel == nil || sel.PseudoElement() != "" {
						continue
					}
					rules = append(rules, cssRule{
						selector:     sel,
						specificity:  sel.Specificity(),
						declarations: cloneDecls(decls),
						order:        order,
					})
					order++
				}
			}
		}
	}

	walk(sheet.Rules, 0)
	return rules, order
}

func cloneDecls(src []cssDeclaration) []cssDeclaration {
	out := make([]cssDeclaration, len(src))
	copy(out, src)
	return out
}

func convertDeclarations(list []*cssast.Declaration) []cssDeclaration {
	if len(list) == 0 {
		return nil
	}
	out := make([]cssDeclaration, 0, len(list))
	for _, decl := range list {
		if decl == nil {
			continue
		}
		prop := strings.ToLower(strings.TrimSpace(decl.Property))
		if prop == "" {
			continue
		}
		val := strings.TrimSpace(decl.Value)
		if val == "" {
			continue
		}
		out = append(out, cssDeclaration{property: prop, value: val, important: decl.Important})
	}
	return out
}

// computeStyleFor resolves the final property map for one element: every
// matching rule's declarations fold in through applyDeclaration, then the
// element's own inline style participates with top specificity and an order
// beyond any sheet rule.
func computeStyleFor(n *html.Node, ss *stylesheet) map[string]string {
	if ss == nil || n == nil || n.Type != html.ElementNode {
		return nil
	}

	props := map[string]propState{}

	for _, rule := range ss.rules {
		if rule.selector == nil || !rule.selector.Match(n) {
			continue
		}
		for _, decl := range rule.declarations {
			applyDeclaration(props, decl, rule.specificity, rule.order)
		}
	}

	if inline := strings.TrimSpace(getAttr(n, "style")); inline != "" {
		// douceur commits a declaration only at ';' or '}', never at EOF.
		if !strings.HasSuffix(inline, ";") {
			inline += ";"
		}
		if decls, err := parser.ParseDeclarations(inline); err == nil {
			for i, d := range decls {
				if d == nil {
					continue
				}
				decl := cssDeclaration{
					property:  strings.ToLower(strings.TrimSpace(d.Property)),
					value:     strings.TrimSpace(d.Value),
					important: d.Important,
				}
				applyDeclaration(props, decl, cascadia.Specificity{1 << 12, 0, 0}, (1<<30)+i)
			}
		} else {
			for i, part := range strings.Split(inline, ";") {
				kv := strings.SplitN(part, ":", 2)
				if len(kv) != 2 {
					continue
				}
				value := strings.TrimSpace(kv[1])
				important := false
				if lower := strings.ToLower(value); strings.HasSuffix(lower, "!important") {
					important = true
					value = strings.TrimSpace(value[:len(value)-10])
				}
				decl := cssDeclaration{
					property:  strings.ToLower(strings.TrimSpace(kv[0])),
					value:     value,
					important: important,
				}
				applyDeclaration(props, decl, cascadia.Specificity{1 << 12, 0, 0}, (1<<30)+i)
			}
		}
	}

	if len(props) == 0 {
		return nil
	}
	out := make(map[string]string, len(props))
	for k, st := range props {
		out[k] = st.val
	}
	return out
}

func applyDeclaration(store map[string]propState, decl cssDeclaration, spec cascadia.Specificity, order int) {
	prop := strings.ToLower(strings.TrimSpace(decl.property))
	if prop == "" {
		return
	}
	value := strings.TrimSpace(decl.value)
	if value == "" {
		return
	}
	entry := propState{val: value, spec: spec, order: order, important: decl.important}
	if prev, ok := store[prop]; ok {
		if prev.important && !decl.important {
			return
		}
		if decl.important && !prev.important {
			store[prop] = entry
			return
		}
		if prev.spec.Less(spec) {
			store[prop] = entry
			return
		}
		if spec.Less(prev.spec) {
			return
		}
		if order >= prev.order {
			store[prop] = entry
		}
		return
	}
	store[prop] = entry
}

func serializeProps(props map[string]string) string {
	keys := make([]string, 0, len(props))
	for k := range props {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	var b strings.Builder
	for i, k := range keys {
		if i > 0 {
			b.WriteString("; ")
		}
		b.WriteString(k)
		b.WriteString(": ")
		b.WriteString(props[k])
	}
	return b.String()
}

func mediaRuleActive(prelude string, width, height int) bool {
	if strings.TrimSpace(prelude) == "" {
		return true
	}
	for _, raw := range strings.Split(prelude, ",") {
		query := strings.ToLower(strings.TrimSpace(raw))
		if query == "" {
			continue
		}
		mediaType := ""
		rest := query
		parts := strings.Fields(query)
		if len(parts) > 0 && !strings.HasPrefix(parts[0], "(") {
			mediaType = parts[0]
			rest = strings.TrimSpace(strings.TrimPrefix(query, parts[0]))
			if mediaType == "only" && len(parts) > 1 {
				mediaType = parts[1]
				rest = strings.TrimSpace(strings.TrimPrefix(rest, parts[1]))
			}
		}
		rest = strings.TrimSpace(strings.TrimPrefix(rest, "and"))

		switch mediaType {
		case "", "all", "screen":
			if evaluateMediaFeatures(rest, width, height) {
				return true
			}
		default:
			// print, speech and other non-screen device types never apply
		}
	}
	return false
}

func evaluateMediaFeatures(expr string, width, height int) bool {
	expr = strings.TrimSpace(expr)
	if expr == "" {
		return true
	}
	for _, clause := range strings.Split(expr, " and ") {
		c := strings.TrimSpace(clause)
		if c == "" {
			continue
		}
		if strings.HasPrefix(c, "(") && strings.HasSuffix(c, ")") {
			c = strings.TrimSpace(c[1 : len(c)-1])
		}
		parts := strings.SplitN(c, ":", 2)
		feature := strings.TrimSpace(parts[0])
		value := ""
		if len(parts) == 2 {
			value = strings.TrimSpace(parts[1])
		}

		switch feature {
		case "orientation":
			orientation := "portrait"
			if width > height {
				orientation = "landscape"
			}
			if value != "" && value != orientation {
				return false
			}
		case "min-width":
			if px, ok := cssLengthToPx(value, width); ok && width < px {
				return false
			}
		case "max-width":
			if px, ok := cssLengthToPx(value, width); ok && width > px {
				return false
			}
		case "min-height":
			if px, ok := cssLengthToPx(value, height); ok && height < px {
				return false
			}
		case "max-height":
			if px, ok := cssLengthToPx(value, height); ok && height > px {
				return false
			}
		default:
			// unsupported feature: assume it holds
		}
	}
	return true
}

func cssLengthToPx(val string, base int) (int, bool) {
	v := strings.ToLower(strings.TrimSpace(val))
	if v == "" {
		return 0, false
	}
	if strings.HasSuffix(v, "px") {
		if f, err := strconv.ParseFloat(strings.TrimSpace(v[:len(v)-2]), 64); err == nil {
			return int(f + 0.5), true
		}
		return 0, false
	}
	if strings.HasSuffix(v, "%") {
		if base <= 0 {
			return 0, false
		}
		if f, err := strconv.ParseFloat(strings.TrimSpace(v[:len(v)-1]), 64); err == nil {
			return int(float64(base) * f / 100.0), true
		}
		return 0, false
	}
	if strings.HasSuffix(v, "rem") {
		if f, err := strconv.ParseFloat(strings.TrimSpace(v[:len(v)-3]), 64); err == nil {
			return int(f*16.0 + 0.5), true
		}
		return 0, false
	}
	if strings.HasSuffix(v, "em") {
		if f, err := strconv.ParseFloat(strings.TrimSpace(v[:len(v)-2]), 64); err == nil {
			return int(f*16.0 + 0.5), true
		}
		return 0, false
	}
	if strings.HasSuffix(v, "vw") || strings.HasSuffix(v, "vh") {
		if base <= 0 {
			return 0, false
		}
		if f, err := strconv.ParseFloat(strings.TrimSpace(v[:len(v)-2]), 64); err == nil {
			return int(float64(base) * f / 100.0), true
		}
		return 0, false
	}
	if f, err := strconv.ParseFloat(v, 64); err == nil {
		return int(f + 0.5), true
	}
	return 0, false
}

func getAttr(n *html.Node, key string) string {
	for _, a := range n.Attr {
		if strings.EqualFold(a.Key, key) {
			return a.Val
		}
	}
	return ""
}

func setAttr(n *html.Node, key, val string) {
	for i := range n.Attr {
		if strings.EqualFold(n.Attr[i].Key, key) {
			n.Attr[i].Val = val
			return
		}
	}
	n.Attr = append(n.Attr, html.Attribute{Key: key, Val: val})
}
