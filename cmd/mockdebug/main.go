// mockdebug inspects what the mockup pipeline extracts from a page: CSS
// block counts, design tokens, the image registry and the scoped/responsive
// CSS sizes. It is a developer tool, not part of the library surface.
package main

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"maquette/internal/fetchcache"
	"maquette/mockup"
)

const maxPageBytes = 5 << 20

func main() {
	pflag.String("url", "", "page URL to analyze")
	pflag.String("file", "", "local HTML file to analyze instead of a URL")
	pflag.String("css", "", "local CSS file appended to the fetched stylesheets")
	pflag.String("namespace", ".mockup-scope", "selector the scoped CSS is namespaced under")
	pflag.Int("viewport-width", 1280, "viewport width for media query evaluation")
	pflag.Int("viewport-height", 800, "viewport height for media query evaluation")
	pflag.String("cache-dir", filepath.Join("cache", "css"), "stylesheet cache directory")
	pflag.Int64("cache-mb", 50, "stylesheet cache budget in MiB")
	pflag.Int("top", 10, "how many tokens to print per table")
	pflag.Parse()

	v := viper.New()
	_ = v.BindPFlags(pflag.CommandLine)
	v.SetEnvPrefix("MOCKDEBUG")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	logger, err := zap.NewDevelopment()
	if err != nil {
		fmt.Fprintln(os.Stderr, "logger:", err)
		os.Exit(1)
	}
	defer logger.Sync()

	pageURL := v.GetString("url")
	if args := pflag.Args(); pageURL == "" && len(args) > 0 {
		pageURL = args[0]
	}
	file := v.GetString("file")
	if pageURL == "" && file == "" {
		logger.Fatal("nothing to analyze: pass --url, --file or a positional URL")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 60*time.Second)
	defer cancel()

	var htmlText string
	switch {
	case file != "":
		b, err := os.ReadFile(file)
		if err != nil {
			logger.Fatal("read file", zap.String("file", file), zap.Error(err))
		}
		htmlText = string(b)
	default:
		htmlText = fetchPage(ctx, logger, pageURL)
	}

	opts := mockup.Options{
		Logger:         logger,
		ViewportWidth:  v.GetInt("viewport-width"),
		ViewportHeight: v.GetInt("viewport-height"),
	}

	cssText := loadStylesheets(ctx, logger, v, opts, htmlText, pageURL)
	if extra := v.GetString("css"); extra != "" {
		b, err := os.ReadFile(extra)
		if err != nil {
			logger.Fatal("read css", zap.String("file", extra), zap.Error(err))
		}
		cssText += "\n\n" + string(b)
	}

	ex := mockup.ExtractCSS(htmlText, cssText, opts)
	scoped := mockup.ScopeCSS(cssText, v.GetString("namespace"))
	responsive := mockup.BuildResponsiveCSS(ex, opts)
	reg := mockup.BuildImageRegistry(htmlText, nil, pageURL, opts)

	printBlockCounts(cssText)
	printTokens(ex.Tokens, v.GetInt("top"))
	printComponents(ex.Components)
	printRegistry(reg)

	fmt.Printf("\nsizes: inlined-html=%d scoped-css=%d responsive={roots=%d media=%d fonts=%d}\n",
		len(ex.InlinedHTML), len(scoped),
		len(responsive.CustomProperties), len(responsive.MediaQueries), len(responsive.FontFaces))
}

func fetchPage(ctx context.Context, logger *zap.Logger, pageURL string) string {
	if _, err := mockup.ValidateURL(pageURL, mockup.Options{Logger: logger}); err != nil {
		logger.Fatal("page url rejected", zap.String("url", pageURL), zap.Error(err))
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, pageURL, nil)
	if err != nil {
		logger.Fatal("build request", zap.Error(err))
	}
	req.Header.Set("User-Agent", "mockdebug/1.0")
	req.Header.Set("Accept", "text/html,application/xhtml+xml")
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		logger.Fatal("fetch page", zap.String("url", pageURL), zap.Error(err))
	}
	defer resp.Body.Close()
	b, err := io.ReadAll(io.LimitReader(resp.Body, maxPageBytes))
	if err != nil {
		logger.Fatal("read page", zap.Error(err))
	}
	logger.Info("page fetched", zap.String("url", pageURL), zap.Int("bytes", len(b)))
	return string(b)
}

// loadStylesheets serves the page's external CSS from the disk cache when
// possible, fetching and refilling it otherwise.
func loadStylesheets(ctx context.Context, logger *zap.Logger, v *viper.Viper, opts mockup.Options, htmlText, pageURL string) string {
	if pageURL == "" {
		return ""
	}
	cache, err := fetchcache.New(v.GetString("cache-dir"), v.GetInt64("cache-mb")<<20)
	if err != nil {
		logger.Warn("stylesheet cache disabled", zap.Error(err))
	} else if css, ok := cache.Get(pageURL); ok {
		logger.Info("stylesheets from cache", zap.String("url", pageURL), zap.Int("bytes", len(css)))
		return css
	}
	css := mockup.NewStylesheetFetcher(opts).FetchAll(ctx, htmlText, pageURL)
	logger.Info("stylesheets fetched", zap.String("url", pageURL), zap.Int("bytes", len(css)))
	if cache != nil {
		cache.Put(pageURL, css)
	}
	return css
}

func printBlockCounts(cssText string) {
	counts := map[string]int{}
	for _, b := range mockup.SplitCSS(cssText) {
		counts[b.Kind.String()]++
	}
	fmt.Println("\ncss blocks:")
	for _, kind := range []string{"rule", "media", "font-face", "keyframes", "supports", "root"} {
		fmt.Printf("  %-10s %d\n", kind, counts[kind])
	}
}

func printTokens(tokens mockup.DesignTokens, top int) {
	printTokenTable("colors", tokens.Colors, top)
	printTokenTable("font families", tokens.FontFamilies, top)
	printTokenTable("font sizes", tokens.FontSizes, top)
	printTokenTable("border radii", tokens.BorderRadii, top)
	printTokenTable("spacing", tokens.Spacing, top)
}

func printTokenTable(title string, m map[string]int, top int) {
	if len(m) == 0 {
		return
	}
	type kv struct {
		val   string
		count int
	}
	ranked := make([]kv, 0, len(m))
	for val, count := range m {
		ranked = append(ranked, kv{val, count})
	}
	sort.Slice(ranked, func(i, j int) bool {
		if ranked[i].count != ranked[j].count {
			return ranked[i].count > ranked[j].count
		}
		return ranked[i].val < ranked[j].val
	})
	if top > 0 && len(ranked) > top {
		ranked = ranked[:top]
	}
	fmt.Printf("\n%s:\n", title)
	for _, e := range ranked {
		fmt.Printf("  %4d  %s\n", e.count, e.val)
	}
}

func printComponents(components map[string]map[string]string) {
	if len(components) == 0 {
		return
	}
	names := make([]string, 0, len(components))
	for name := range components {
		names = append(names, name)
	}
	sort.Strings(names)
	fmt.Println("\ncomponents:")
	for _, name := range names {
		props := components[name]
		keys := make([]string, 0, len(props))
		for k := range props {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		fmt.Printf("  %s:\n", name)
		for _, k := range keys {
			fmt.Printf("    %s: %s\n", k, props[k])
		}
	}
}

func printRegistry(reg *mockup.ImageRegistry) {
	fmt.Printf("\nimages (%d):\n", reg.Len())
	for _, u := range reg.URLs() {
		img := reg.Image(u)
		flags := ""
		if img.IsBackground {
			flags += " bg"
		}
		if img.IsIcon {
			flags += " icon"
		}
		display := u
		if len(display) > 96 {
			display = display[:93] + "..."
		}
		fmt.Printf("  %dx%d%s alt=%q %s\n", img.Width, img.Height, flags, img.Alt, display)
	}
}
