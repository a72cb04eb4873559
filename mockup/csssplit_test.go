package mockup

import "testing"

func TestSplitCSSKinds(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name string
		in   string
		want []BlockKind
	}{
		{
			"mixed_order",
			".a{color:red} @media (max-width:600px){.b{color:blue}} :root{--c:#fff} @font-face{src:url(a.woff2)} @keyframes spin{to{transform:rotate(1turn)}} @supports (display:grid){.g{display:grid}}",
			[]BlockKind{BlockRule, BlockMedia, BlockRoot, BlockFontFace, BlockKeyframes, BlockSupports},
		},
		{
			"unknown_block_at_rule_dropped",
			"@page { margin: 1cm; } .x{color:blue}",
			[]BlockKind{BlockRule},
		},
		{
			"statement_at_rules_dropped",
			"@import url(a.css); @charset \"utf-8\"; .x{color:red}",
			[]BlockKind{BlockRule},
		},
		{
			"vendor_prefixed_keyframes",
			"@-webkit-keyframes pulse {0%{opacity:0}}",
			[]BlockKind{BlockKeyframes},
		},
		{
			"root_with_companion_is_plain_rule",
			":root, body { margin: 0 }",
			[]BlockKind{BlockRule},
		},
		{
			"comment_brace_ignored",
			".a { /* } not a close */ color: red; } .b{color:blue}",
			[]BlockKind{BlockRule, BlockRule},
		},
		{
			"unmatched_close_stops_scan",
			".a{color:red} } .b{color:blue}",
			[]BlockKind{BlockRule},
		},
		{
			"unterminated_block_dropped",
			".a{color:red",
			nil,
		},
		{
			"empty",
			"   \n\t ",
			nil,
		},
	}
	for _, tc := range tests {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			got := SplitCSS(tc.in)
			if len(got) != len(tc.want) {
				t.Fatalf("SplitCSS(%q) produced %d blocks, expected %d", tc.in, len(got), len(tc.want))
			}
			for i := range got {
				if got[i].Kind != tc.want[i] {
					t.Fatalf("block %d kind = %s, expected %s", i, got[i].Kind, tc.want[i])
				}
			}
		})
	}
}

func TestSplitCSSFontFaceSpan(t *testing.T) {
	t.Parallel()
	css := "@font-face {\n  font-family: Custom;\n  src: url(/fonts/c.woff2);\n}"
	blocks := SplitCSS("  " + css + "\n")
	if len(blocks) != 1 {
		t.Fatalf("SplitCSS produced %d blocks, expected 1", len(blocks))
	}
	if blocks[0].Kind != BlockFontFace {
		t.Fatalf("kind = %s, expected font-face", blocks[0].Kind)
	}
	if blocks[0].Raw != css {
		t.Fatalf("raw span = %q, expected %q", blocks[0].Raw, css)
	}
}

func TestSplitCSSKeepsCommentInsideBlock(t *testing.T) {
	t.Parallel()
	css := ".a { /* keep me */ color: red; }"
	blocks := SplitCSS(css)
	if len(blocks) != 1 {
		t.Fatalf("SplitCSS produced %d blocks, expected 1", len(blocks))
	}
	if blocks[0].Raw != css {
		t.Fatalf("raw span = %q, expected comment preserved verbatim", blocks[0].Raw)
	}
}

func TestSplitCSSNestedDepth(t *testing.T) {
	t.Parallel()
	css := "@media screen { .a { color: red } .b { color: blue } } .after{margin:0}"
	blocks := SplitCSS(css)
	if len(blocks) != 2 {
		t.Fatalf("SplitCSS produced %d blocks, expected 2", len(blocks))
	}
	if blocks[0].Kind != BlockMedia || blocks[1].Kind != BlockRule {
		t.Fatalf("kinds = %s,%s, expected media,rule", blocks[0].Kind, blocks[1].Kind)
	}
	if blocks[0].Raw != "@media screen { .a { color: red } .b { color: blue } }" {
		t.Fatalf("media span wrong: %q", blocks[0].Raw)
	}
}
