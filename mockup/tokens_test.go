package mockup

import (
	"reflect"
	"testing"
)

func TestExtractTokensColorsShareCounter(t *testing.T) {
	t.Parallel()

	// Shorthand hex, full hex and rgb() all normalize to the same key.
	page := `<div style="color: #ABC">
		<p style="background: rgb(170, 187, 204)"></p>
		<span style="border-color: #aabbcc"></span>
	</div>`

	tokens := ExtractTokens(page, Options{})
	if got := tokens.Colors["#aabbcc"]; got != 3 {
		t.Fatalf("Colors[%q] = %d, expected 3", "#aabbcc", got)
	}
	if len(tokens.Colors) != 1 {
		t.Fatalf("Colors has %d entries, expected 1: %v", len(tokens.Colors), tokens.Colors)
	}
}

func TestExtractTokensMaps(t *testing.T) {
	t.Parallel()

	page := `<body>
		<h1 style="font-family: 'Helvetica Neue', Arial, sans-serif; font-size: 32px">A</h1>
		<p style="font-family: Georgia; font-size: 16px; margin: 0 auto">B</p>
		<p style="padding-top: 8px; border-radius: 4px">C</p>
		<button style="padding: 8px 16px; border-radius: 4px">D</button>
	</body>`

	tokens := ExtractTokens(page, Options{})

	wantFamilies := map[string]int{"Helvetica Neue": 1, "Georgia": 1}
	if !reflect.DeepEqual(tokens.FontFamilies, wantFamilies) {
		t.Fatalf("FontFamilies = %v, expected %v", tokens.FontFamilies, wantFamilies)
	}
	wantSizes := map[string]int{"32px": 1, "16px": 1}
	if !reflect.DeepEqual(tokens.FontSizes, wantSizes) {
		t.Fatalf("FontSizes = %v, expected %v", tokens.FontSizes, wantSizes)
	}
	wantRadii := map[string]int{"4px": 2}
	if !reflect.DeepEqual(tokens.BorderRadii, wantRadii) {
		t.Fatalf("BorderRadii = %v, expected %v", tokens.BorderRadii, wantRadii)
	}
	wantSpacing := map[string]int{"0 auto": 1, "8px": 1, "8px 16px": 1}
	if !reflect.DeepEqual(tokens.Spacing, wantSpacing) {
		t.Fatalf("Spacing = %v, expected %v", tokens.Spacing, wantSpacing)
	}
}

func TestExtractTokensIgnoresNonColors(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name  string
		style string
		want  map[string]int
	}{
		{"eight_digit_hex_skipped", `color: #aabbccdd`, map[string]int{}},
		{"four_digit_hex_skipped", `color: #abcd`, map[string]int{}},
		{"transparent_skipped", `background: transparent`, map[string]int{}},
		{"word_channels_zeroed", `color: rgb(red, green, blue)`, map[string]int{"#000000": 1}},
		{"two_channel_rgb_skipped", `color: rgb(1, 2)`, map[string]int{}},
		{"clamped_rgb", `color: rgb(300, -20, 128)`, map[string]int{"#ff0080": 1}},
		{"rgba_alpha_ignored", `color: rgba(0, 0, 0, 0.5)`, map[string]int{"#000000": 1}},
	}

	for _, tc := range tests {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			tokens := ExtractTokens(`<div style="`+tc.style+`"></div>`, Options{})
			if !reflect.DeepEqual(tokens.Colors, tc.want) {
				t.Fatalf("Colors for %q = %v, expected %v", tc.style, tokens.Colors, tc.want)
			}
		})
	}
}

func TestExtractTokensTopNTruncation(t *testing.T) {
	t.Parallel()

	page := `<div style="color:#111111;background:#111111;border-color:#111111">
		<p style="color:#222222;background:#222222"></p>
		<span style="color:#333333"></span>
	</div>`

	tokens := ExtractTokens(page, Options{TokenCap: 2})
	want := map[string]int{"#111111": 3, "#222222": 2}
	if !reflect.DeepEqual(tokens.Colors, want) {
		t.Fatalf("Colors = %v, expected %v", tokens.Colors, want)
	}
}

func TestExtractTokensTruncationTieBreak(t *testing.T) {
	t.Parallel()

	// Equal counts: the lexically smaller value survives.
	page := `<div style="color:#bbbbbb"><p style="color:#aaaaaa"></p></div>`

	tokens := ExtractTokens(page, Options{TokenCap: 1})
	want := map[string]int{"#aaaaaa": 1}
	if !reflect.DeepEqual(tokens.Colors, want) {
		t.Fatalf("Colors = %v, expected %v", tokens.Colors, want)
	}
}

func TestExtractTokensEmptyInput(t *testing.T) {
	t.Parallel()

	tokens := ExtractTokens("", Options{})
	if len(tokens.Colors)+len(tokens.FontFamilies)+len(tokens.FontSizes)+
		len(tokens.BorderRadii)+len(tokens.Spacing) != 0 {
		t.Fatalf("ExtractTokens(\"\") produced non-empty maps: %+v", tokens)
	}
}
