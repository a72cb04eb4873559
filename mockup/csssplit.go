package mockup

import "strings"

// BlockKind classifies a top-level CSS block.
type BlockKind uint8

const (
	BlockRule BlockKind = iota
	BlockFontFace
	BlockKeyframes
	BlockMedia
	BlockSupports
	BlockRoot
)

func (k BlockKind) String() string {
	switch k {
	case BlockFontFace:
		return "font-face"
	case BlockKeyframes:
		return "keyframes"
	case BlockMedia:
		return "media"
	case BlockSupports:
		return "supports"
	case BlockRoot:
		return "root"
	default:
		return "rule"
	}
}

// CSSBlock is one top-level block, raw span covering its prelude through the
// matching closing brace.
type CSSBlock struct {
	Kind BlockKind
	Raw  string
}

// SplitCSS tokenizes a stylesheet into its top-level blocks in source order
// with a single brace-depth scan. Comments never affect depth, unknown
// at-rules (block or statement form) are dropped, a bare :root prelude
// classifies as BlockRoot, and an unmatched closing brace stops the scan
// with the blocks collected so far. It never fails.
func SplitCSS(css string) []CSSBlock {
	var blocks []CSSBlock
	i, n := 0, len(css)
scan:
	for i < n {
		for i < n {
			if isCSSSpace(css[i]) {
				i++
				continue
			}
			if strings.HasPrefix(css[i:], "/*") {
				end := strings.Index(css[i+2:], "*/")
				if end < 0 {
					break scan
				}
				i += 2 + end + 2
				continue
			}
			break
		}
		if i >= n {
			break
		}
		if css[i] == '}' {
			break // unmatched close at top level: keep the partial result
		}
		start := i
		j := i
		open := -1
	prelude:
		for j < n {
			if strings.HasPrefix(css[j:], "/*") {
				end := strings.Index(css[j+2:], "*/")
				if end < 0 {
					break scan
				}
				j += 2 + end + 2
				continue
			}
			switch css[j] {
			case '{':
				open = j
				break prelude
			case ';':
				break prelude
			case '}':
				break scan
			}
			j++
		}
		if open < 0 {
			// Statement at-rule (@import, @charset, ...) or stray text;
			// nothing a block consumer can use.
			i = j + 1
			continue
		}
		end := findMatchingBrace(css, open)
		if end < 0 {
			break // unterminated block
		}
		if kind, ok := classifyBlock(strings.TrimSpace(css[start:open])); ok {
			blocks = append(blocks, CSSBlock{Kind: kind, Raw: css[start : end+1]})
		}
		i = end + 1
	}
	return blocks
}

func classifyBlock(prelude string) (BlockKind, bool) {
	if strings.HasPrefix(prelude, "@") {
		kw := strings.ToLower(prelude[1:])
		for i := 0; i < len(kw); i++ {
			if isCSSSpace(kw[i]) || kw[i] == '(' {
				kw = kw[:i]
				break
			}
		}
		switch {
		case kw == "font-face":
			return BlockFontFace, true
		case strings.HasSuffix(kw, "keyframes"):
			// Suffix match keeps vendor-prefixed keyframes renameable.
			return BlockKeyframes, true
		case kw == "media":
			return BlockMedia, true
		case kw == "supports":
			return BlockSupports, true
		}
		return 0, false
	}
	if prelude == ":root" {
		return BlockRoot, true
	}
	return BlockRule, true
}

// findMatchingBrace returns the index of the '}' closing the '{' at open,
// or -1 when the block never closes. Braces inside comments do not count.
func findMatchingBrace(css string, open int) int {
	depth := 0
	for i := open; i < len(css); i++ {
		if strings.HasPrefix(css[i:], "/*") {
			end := strings.Index(css[i+2:], "*/")
			if end < 0 {
				return -1
			}
			i += 2 + end + 1
			continue
		}
		switch css[i] {
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				return i
			}
		}
	}
	return -1
}

func isCSSSpace(c byte) bool {
	return c == ' ' || c == '\t' || c == '\n' || c == '\r' || c == '\f'
}
