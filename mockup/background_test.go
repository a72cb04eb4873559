package mockup

import (
	"strings"
	"testing"
)

func TestRenderBackgroundImages(t *testing.T) {
	t.Parallel()

	in := `<img src="https://example.com/bg.jpg" alt="Backdrop" data-bg-image="true" height="480" style="width: 100%; max-width: 100%;">`

	got := RenderBackgroundImages(in, Options{})
	want := `<div data-bg-image-rendered="true" style="background-image: url('https://example.com/bg.jpg'); background-size: cover; background-position: center; width: 100%; min-height: 480px;"></div>`
	if got != want {
		t.Fatalf("RenderBackgroundImages() = %q, expected %q", got, want)
	}
}

func TestRenderBackgroundImagesFallbackHeight(t *testing.T) {
	t.Parallel()

	in := `<img src="https://example.com/bg.jpg" alt="Backdrop" data-bg-image="true">`

	got := RenderBackgroundImages(in, Options{})
	if !strings.Contains(got, "min-height: 300px;") {
		t.Fatalf("RenderBackgroundImages() = %q, expected 300px fallback height", got)
	}
}

func TestRenderBackgroundImagesInvalidSrcUntouched(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		in   string
	}{
		{"http_scheme", `<img src="http://example.com/bg.jpg" data-bg-image="true">`},
		{"private_host", `<img src="https://10.0.0.5/bg.jpg" data-bg-image="true">`},
		{"tracking_host", `<img src="https://ads.doubleclick.net/bg.jpg" data-bg-image="true">`},
		{"missing_src", `<img data-bg-image="true" alt="no src">`},
	}

	for _, tc := range tests {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			if got := RenderBackgroundImages(tc.in, Options{}); got != tc.in {
				t.Fatalf("RenderBackgroundImages(%q) = %q, expected input unchanged", tc.in, got)
			}
		})
	}
}

func TestRenderBackgroundImagesIgnoresRegularImgs(t *testing.T) {
	t.Parallel()

	in := `<img src="https://example.com/photo.jpg" alt="Photo"><p>text</p>`
	if got := RenderBackgroundImages(in, Options{}); got != in {
		t.Fatalf("RenderBackgroundImages() = %q, expected non-background imgs untouched", got)
	}
}

func TestRenderBackgroundImagesIsIdempotent(t *testing.T) {
	t.Parallel()

	in := `<div>
		<img src="https://example.com/bg.jpg" data-bg-image="true" height="200">
		<img src="http://bad.example.com/x.jpg" data-bg-image="true">
	</div>`

	once := RenderBackgroundImages(in, Options{})
	twice := RenderBackgroundImages(once, Options{})
	if once != twice {
		t.Fatalf("second render changed output:\nfirst:  %q\nsecond: %q", once, twice)
	}
	if !strings.Contains(once, `data-bg-image-rendered="true"`) {
		t.Fatalf("valid background not rendered: %q", once)
	}
	if !strings.Contains(once, `http://bad.example.com/x.jpg`) {
		t.Fatalf("invalid background should remain as img: %q", once)
	}
}

func TestRenderBackgroundImagesQuoteEscape(t *testing.T) {
	t.Parallel()

	in := `<img src="https://example.com/o'neil.jpg" data-bg-image="true">`

	got := RenderBackgroundImages(in, Options{})
	if strings.Contains(got, "'neil") {
		t.Fatalf("single quote leaked into url literal: %q", got)
	}
	if !strings.Contains(got, "%27neil") {
		t.Fatalf("expected percent-encoded quote: %q", got)
	}
}

func TestRenderBackgroundImagesEntityRoundTrip(t *testing.T) {
	t.Parallel()

	in := `<img src="https://example.com/bg.jpg?a=1&amp;b=2" data-bg-image="true">`

	got := RenderBackgroundImages(in, Options{})
	if !strings.Contains(got, "a=1&amp;b=2") {
		t.Fatalf("query ampersand lost: %q", got)
	}
	if strings.Contains(got, "&amp;amp;") {
		t.Fatalf("attribute value double-escaped: %q", got)
	}
}
