package mockup

import (
	"regexp"
	"strings"
)

// scopePrefix marks animation names this package has already claimed, so
// scoping the same sheet twice never double-prefixes.
const scopePrefix = "scoped-"

var animDeclRe = regexp.MustCompile(`(?i)\banimation(?:-name)?\s*:`)

// ScopeCSS namespaces a stylesheet under the given selector so it can be
// embedded next to host-page CSS without leaking either way. Font-face
// blocks stay global, keyframes get collision-proof renamed names, :root
// blocks become namespace-local, media and supports conditions survive
// verbatim with their inner rules scoped recursively, and every plain
// selector is prefixed with the namespace as a descendant combinator.
func ScopeCSS(css, namespace string) string {
	if strings.TrimSpace(css) == "" || strings.TrimSpace(namespace) == "" {
		return css
	}
	// A rule may reference an animation defined later in source order, so
	// the full rename map is built before any rule is rewritten.
	renames := map[string]string{}
	collectKeyframeRenames(css, renames)
	return scopeBlocks(css, namespace, renames)
}

func collectKeyframeRenames(css string, renames map[string]string) {
	for _, b := range SplitCSS(css) {
		switch b.Kind {
		case BlockKeyframes:
			name := keyframesName(b.Raw)
			if name != "" && !strings.HasPrefix(name, scopePrefix) {
				renames[name] = scopePrefix + name
			}
		case BlockMedia, BlockSupports:
			if _, body, ok := splitBlock(b.Raw); ok {
				collectKeyframeRenames(body, renames)
			}
		}
	}
}

func scopeBlocks(css, namespace string, renames map[string]string) string {
	var parts []string
	for _, b := range SplitCSS(css) {
		switch b.Kind {
		case BlockFontFace:
			parts = append(parts, b.Raw)
		case BlockKeyframes:
			parts = append(parts, renameKeyframes(b.Raw, renames))
		case BlockRoot:
			parts = append(parts, rewriteRoot(b.Raw, namespace))
		case BlockMedia, BlockSupports:
			prelude, body, ok := splitBlock(b.Raw)
			if !ok {
				parts = append(parts, b.Raw)
				break
			}
			parts = append(parts, prelude+"{\n"+scopeBlocks(body, namespace, renames)+"\n}")
		default:
			parts = append(parts, scopeRule(b.Raw, namespace, renames))
		}
	}
	return strings.Join(parts, "\n")
}

// splitBlock cuts a raw block into its prelude (text before the first open
// brace) and body (text between the outermost braces).
func splitBlock(raw string) (prelude, body string, ok bool) {
	open := strings.IndexByte(raw, '{')
	close := strings.LastIndexByte(raw, '}')
	if open < 0 || close < open {
		return raw, "", false
	}
	return raw[:open], raw[open+1 : close], true
}

func keyframesName(raw string) string {
	prelude, _, ok := splitBlock(raw)
	if !ok {
		return ""
	}
	fields := strings.Fields(prelude)
	if len(fields) < 2 {
		return ""
	}
	return strings.Trim(fields[len(fields)-1], `"'`)
}

func renameKeyframes(raw string, renames map[string]string) string {
	name := keyframesName(raw)
	newName, ok := renames[name]
	if !ok {
		return raw
	}
	open := strings.IndexByte(raw, '{')
	prelude := raw[:open]
	at := strings.LastIndex(prelude, name)
	if at < 0 {
		return raw
	}
	return prelude[:at] + newName + prelude[at+len(name):] + raw[open:]
}

func rewriteRoot(raw, namespace string) string {
	open := strings.IndexByte(raw, '{')
	if open < 0 {
		return raw
	}
	return strings.Replace(raw[:open], ":root", namespace, 1) + raw[open:]
}

func scopeRule(raw, namespace string, renames map[string]string) string {
	prelude, body, ok := splitBlock(raw)
	if !ok {
		return raw
	}
	var scoped []string
	for _, sel := range splitTopLevelCommas(prelude) {
		sel = strings.TrimSpace(sel)
		if sel == "" {
			continue
		}
		scoped = append(scoped, namespace+" "+sel)
	}
	if len(scoped) == 0 {
		return raw
	}
	return strings.Join(scoped, ", ") + " {" + rewriteAnimationDecls(body, renames) + "}"
}

// splitTopLevelCommas splits a selector list on commas that sit outside any
// parenthesis or bracket nesting, so :is(a, b) and [attr="x,y"] survive.
func splitTopLevelCommas(s string) []string {
	var parts []string
	depth := 0
	start := 0
	for i := 0; i < len(s); i++ {
		switch s[i] {
		case '(', '[':
			depth++
		case ')', ']':
			if depth > 0 {
				depth--
			}
		case ',':
			if depth == 0 {
				parts = append(parts, s[start:i])
				start = i + 1
			}
		}
	}
	parts = append(parts, s[start:])
	return parts
}

// rewriteAnimationDecls applies the keyframe rename map to the value of
// every animation/animation-name declaration in a rule body. The match is
// textual: any name-token in the value equal to a renamed animation is
// rewritten, which can touch an unrelated value that shares the exact token.
func rewriteAnimationDecls(body string, renames map[string]string) string {
	if len(renames) == 0 {
		return body
	}
	locs := animDeclRe.FindAllStringIndex(body, -1)
	if locs == nil {
		return body
	}
	var sb strings.Builder
	prev := 0
	for _, loc := range locs {
		valEnd := strings.IndexByte(body[loc[1]:], ';')
		if valEnd < 0 {
			valEnd = len(body)
		} else {
			valEnd += loc[1]
		}
		if loc[1] < prev {
			continue
		}
		sb.WriteString(body[prev:loc[1]])
		sb.WriteString(rewriteNameTokens(body[loc[1]:valEnd], renames))
		prev = valEnd
	}
	sb.WriteString(body[prev:])
	return sb.String()
}

// rewriteNameTokens maps every CSS name token (letters, digits, hyphen,
// underscore) in span through renames, leaving all other text intact.
func rewriteNameTokens(span string, renames map[string]string) string {
	var sb strings.Builder
	i := 0
	for i < len(span) {
		if !isNameChar(span[i]) {
			sb.WriteByte(span[i])
			i++
			continue
		}
		j := i
		for j < len(span) && isNameChar(span[j]) {
			j++
		}
		tok := span[i:j]
		if to, ok := renames[tok]; ok {
			sb.WriteString(to)
		} else {
			sb.WriteString(tok)
		}
		i = j
	}
	return sb.String()
}

func isNameChar(c byte) bool {
	return c == '-' || c == '_' ||
		(c >= '0' && c <= '9') ||
		(c >= 'a' && c <= 'z') ||
		(c >= 'A' && c <= 'Z')
}
