package mockup

import (
	"bytes"
	"encoding/base64"
	"image"
	"image/png"
	"testing"
)

func pngDataURI(t *testing.T, w, h int) string {
	t.Helper()
	var buf bytes.Buffer
	if err := png.Encode(&buf, image.NewRGBA(image.Rect(0, 0, w, h))); err != nil {
		t.Fatalf("png encode: %v", err)
	}
	return "data:image/png;base64," + base64.StdEncoding.EncodeToString(buf.Bytes())
}

func TestBuildImageRegistryHTMLPass(t *testing.T) {
	t.Parallel()

	page := `<html><body>
		<img src="/img/banner.jpg" alt="Banner" width="1200" height="400" srcset="/img/banner.jpg 1x, /img/banner@2x.jpg 2x">
		<img data-src="/img/lazy.png" alt="Lazy">
		<img src="https://pixel.tracker.com/x.png" alt="spy">
		<img src="https://10.0.0.5/internal.png" alt="private">
		<div style="background-image: url('/bg/hero.jpg')"></div>
		<section style="background: #fff url(bg2.png) no-repeat"></section>
	</body></html>`

	reg := BuildImageRegistry(page, nil, "https://example.com/page", Options{})

	if reg.Len() != 4 {
		t.Fatalf("Len() = %d, expected 4: %v", reg.Len(), reg.URLs())
	}

	banner := reg.Image("https://example.com/img/banner.jpg")
	if banner == nil {
		t.Fatal("banner not registered")
	}
	if banner.Alt != "Banner" || banner.Width != 1200 || banner.Height != 400 {
		t.Fatalf("banner = %+v, expected alt/width/height captured", banner)
	}
	if banner.Srcset == "" || banner.IsBackground || banner.IsIcon {
		t.Fatalf("banner = %+v, expected srcset set and no flags", banner)
	}

	if reg.Image("https://example.com/img/lazy.png") == nil {
		t.Fatal("lazy-load fallback src not registered")
	}

	for _, u := range []string{"https://pixel.tracker.com/x.png", "https://10.0.0.5/internal.png"} {
		if reg.Image(u) != nil {
			t.Fatalf("unsafe url %q was registered", u)
		}
	}

	bg := reg.Image("https://example.com/bg/hero.jpg")
	if bg == nil || !bg.IsBackground {
		t.Fatalf("background image = %+v, expected IsBackground", bg)
	}
	if bg2 := reg.Image("https://example.com/bg2.png"); bg2 == nil || !bg2.IsBackground {
		t.Fatalf("shorthand background image = %+v, expected IsBackground", bg2)
	}
}

func TestBuildImageRegistryPictureSource(t *testing.T) {
	t.Parallel()

	page := `<picture>
		<source srcset="https://example.com/a.webp 1x, https://example.com/b.webp 2x">
		<img src="https://example.com/fallback.png" alt="Scenery, wide shot">
	</picture>`

	reg := BuildImageRegistry(page, nil, "https://example.com/", Options{})

	first := reg.Image("https://example.com/a.webp")
	if first == nil {
		t.Fatal("first srcset candidate not registered")
	}
	if reg.Image("https://example.com/b.webp") != nil {
		t.Fatal("second srcset candidate should not be registered")
	}
	if reg.Image("https://example.com/fallback.png") == nil {
		t.Fatal("picture img fallback not registered")
	}
}

func TestBuildImageRegistryMergesMarkdownIntoHTMLEntry(t *testing.T) {
	t.Parallel()

	page := `<img src="https://example.com/shared.png" width="640" height="360">`
	sections := []Section{
		{ID: "about", Markdown: "# About\n\n![Team photo](https://example.com/shared.png)\n\n![Team photo](https://example.com/shared.png)"},
	}

	reg := BuildImageRegistry(page, sections, "https://example.com/", Options{})

	img := reg.Image("https://example.com/shared.png")
	if img == nil {
		t.Fatal("shared image not registered")
	}
	if img.Alt != "Team photo" {
		t.Fatalf("Alt = %q, expected markdown alt to fill the gap", img.Alt)
	}
	if img.Width != 640 || img.Height != 360 {
		t.Fatalf("dims = %dx%d, expected html dims kept", img.Width, img.Height)
	}
	owned := reg.SectionImages("about")
	if len(owned) != 1 || owned[0].URL != "https://example.com/shared.png" {
		t.Fatalf("SectionImages(about) = %v, expected the single shared image", owned)
	}
	if len(img.Sections) != 1 || img.Sections[0] != "about" {
		t.Fatalf("Sections = %v, expected single ownership after duplicate reference", img.Sections)
	}
}

func TestBuildImageRegistrySectionOrderPreserved(t *testing.T) {
	t.Parallel()

	sections := []Section{
		{ID: "gallery", Markdown: "![one](https://example.com/1.png)\n![two](https://example.com/2.png)\n![three](https://example.com/3.png)"},
	}

	reg := BuildImageRegistry("", sections, "", Options{})

	owned := reg.SectionImages("gallery")
	if len(owned) != 3 {
		t.Fatalf("SectionImages(gallery) has %d entries, expected 3", len(owned))
	}
	for i, want := range []string{"https://example.com/1.png", "https://example.com/2.png", "https://example.com/3.png"} {
		if owned[i].URL != want {
			t.Fatalf("SectionImages(gallery)[%d] = %q, expected %q", i, owned[i].URL, want)
		}
	}
}

func TestBuildImageRegistryOrphanAssignment(t *testing.T) {
	t.Parallel()

	sections := []Section{
		{ID: "sec_0", Markdown: "# Hello World\n\nGreetings."},
		{ID: "sec_1", Markdown: "# Pricing Plans\n\nNumbers."},
	}

	tests := []struct {
		name        string
		alt         string
		wantSection string
	}{
		{"exact_heading_match", "Hello World", "sec_0"},
		{"unrelated_alt", "Unrelated Text", ""},
		{"weak_overlap", "Hello Everyone Here Today", ""},
	}

	for _, tc := range tests {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			page := `<img src="https://example.com/orphan.png" alt="` + tc.alt + `">`
			reg := BuildImageRegistry(page, sections, "https://example.com/", Options{})
			img := reg.Image("https://example.com/orphan.png")
			if img == nil {
				t.Fatal("orphan image not registered")
			}
			if tc.wantSection == "" {
				if len(img.Sections) != 0 {
					t.Fatalf("Sections = %v, expected unassigned", img.Sections)
				}
				return
			}
			if len(img.Sections) != 1 || img.Sections[0] != tc.wantSection {
				t.Fatalf("Sections = %v, expected [%q]", img.Sections, tc.wantSection)
			}
			if owned := reg.SectionImages(tc.wantSection); len(owned) != 1 {
				t.Fatalf("SectionImages(%q) = %v, expected the orphan", tc.wantSection, owned)
			}
		})
	}
}

func TestBuildImageRegistryOrphanExactThresholdUnassigned(t *testing.T) {
	t.Parallel()

	// Two of four heading words match: score is exactly 0.5, not above it.
	sections := []Section{{ID: "s", Markdown: "# Hello World Extra Stuff"}}
	page := `<img src="https://example.com/o.png" alt="hello world">`

	reg := BuildImageRegistry(page, sections, "https://example.com/", Options{})
	if img := reg.Image("https://example.com/o.png"); len(img.Sections) != 0 {
		t.Fatalf("Sections = %v, expected unassigned at threshold", img.Sections)
	}
}

func TestBuildImageRegistryOrphanTieUnassigned(t *testing.T) {
	t.Parallel()

	sections := []Section{
		{ID: "a", Markdown: "# Hello World"},
		{ID: "b", Markdown: "# Hello World"},
	}
	page := `<img src="https://example.com/o.png" alt="Hello World">`

	reg := BuildImageRegistry(page, sections, "https://example.com/", Options{})
	if img := reg.Image("https://example.com/o.png"); len(img.Sections) != 0 {
		t.Fatalf("Sections = %v, expected tie to stay unassigned", img.Sections)
	}
}

func TestBuildImageRegistryIconHeuristic(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		tag  string
		url  string
		want bool
	}{
		{
			name: "small_dimension",
			tag:  `<img src="https://example.com/s.png" width="64" height="64" alt="social">`,
			url:  "https://example.com/s.png",
			want: true,
		},
		{
			name: "boundary_eighty",
			tag:  `<img src="https://example.com/b.png" width="80" height="20" alt="divider">`,
			url:  "https://example.com/b.png",
			want: true,
		},
		{
			name: "alt_keyword",
			tag:  `<img src="https://example.com/l.png" width="400" height="120" alt="Company Logo">`,
			url:  "https://example.com/l.png",
			want: true,
		},
		{
			name: "large_plain",
			tag:  `<img src="https://example.com/p.png" width="500" height="500" alt="Product shot">`,
			url:  "https://example.com/p.png",
			want: false,
		},
		{
			name: "unknown_dims_plain_alt",
			tag:  `<img src="https://example.com/u.png" alt="Landscape">`,
			url:  "https://example.com/u.png",
			want: false,
		},
	}

	for _, tc := range tests {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			reg := BuildImageRegistry(tc.tag, nil, "https://example.com/", Options{})
			img := reg.Image(tc.url)
			if img == nil {
				t.Fatalf("image %q not registered", tc.url)
			}
			if img.IsIcon != tc.want {
				t.Fatalf("IsIcon = %v, expected %v for %q", img.IsIcon, tc.want, tc.tag)
			}
		})
	}
}

func TestBuildImageRegistryDataURIProbe(t *testing.T) {
	t.Parallel()

	uri := pngDataURI(t, 3, 2)
	page := `<img src="` + uri + `" alt="inline">`

	reg := BuildImageRegistry(page, nil, "", Options{})
	img := reg.Image(uri)
	if img == nil {
		t.Fatal("data uri image not registered")
	}
	if img.Width != 3 || img.Height != 2 {
		t.Fatalf("probed dims = %dx%d, expected 3x2", img.Width, img.Height)
	}
	if !img.IsIcon {
		t.Fatalf("IsIcon = false, expected true for a 3x2 image")
	}
}

func TestBuildImageRegistryInvalidMarkdownURLDropped(t *testing.T) {
	t.Parallel()

	sections := []Section{
		{ID: "s", Markdown: "![bad](http://example.com/insecure.png)\n![good](https://example.com/ok.png)"},
	}

	reg := BuildImageRegistry("", sections, "", Options{})
	if reg.Image("http://example.com/insecure.png") != nil {
		t.Fatal("http image should have been dropped")
	}
	owned := reg.SectionImages("s")
	if len(owned) != 1 || owned[0].URL != "https://example.com/ok.png" {
		t.Fatalf("SectionImages(s) = %v, expected only the https image", owned)
	}
}
