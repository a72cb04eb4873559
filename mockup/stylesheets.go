package mockup

import (
	"bufio"
	"compress/flate"
	"compress/gzip"
	"compress/zlib"
	"context"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/net/html"
)

type pageHostKey struct{}

// StylesheetFetcher retrieves a page's first-party external stylesheets under
// SSRF controls. It is the only component in this package that performs
// network I/O; everything it produces feeds ResolveCascade as plain text.
type StylesheetFetcher struct {
	client   *http.Client
	opts     Options
	validate func(rawURL string) error
}

// NewStylesheetFetcher builds a fetcher whose redirect policy re-validates
// first-party-ness and host safety at every hop.
func NewStylesheetFetcher(opts Options) *StylesheetFetcher {
	opts = opts.withDefaults()
	f := &StylesheetFetcher{opts: opts}
	f.validate = opts.FetchValidator
	if f.validate == nil {
		f.validate = fetchHostSafety
	}
	f.client = &http.Client{
		Timeout: opts.StylesheetTimeout,
		CheckRedirect: func(req *http.Request, via []*http.Request) error {
			if len(via) > opts.MaxRedirects {
				return fmt.Errorf("too many redirects (%d)", len(via))
			}
			pageHost, _ := req.Context().Value(pageHostKey{}).(string)
			if err := f.hopCheck(req.URL.String(), pageHost); err != nil {
				return fmt.Errorf("redirect blocked: %w", err)
			}
			return nil
		},
	}
	return f
}

// FetchAll extracts the <link rel=stylesheet> hrefs from htmlText, resolves
// them against pageURL and fetches at most Options.MaxStylesheetFetches
// first-party sheets, concatenating their bodies. Every per-sheet failure is
// swallowed: a page's reconstruction never aborts over one stylesheet.
func (f *StylesheetFetcher) FetchAll(ctx context.Context, htmlText, pageURL string) string {
	log := f.opts.Logger
	pageURL = normalizeBaseURL(pageURL)
	pageHost := ""
	if pu, err := url.Parse(pageURL); err == nil {
		pageHost = strings.ToLower(pu.Hostname())
	}

	var parts []string
	attempts := 0
	seen := map[string]struct{}{}
	for _, href := range stylesheetHrefs(htmlText) {
		if attempts >= f.opts.MaxStylesheetFetches {
			break
		}
		abs := resolveAbsURL(pageURL, href)
		if abs == "" {
			continue
		}
		if _, dup := seen[abs]; dup {
			continue
		}
		seen[abs] = struct{}{}
		if err := f.hopCheck(abs, pageHost); err != nil {
			log.Debug("stylesheet skipped", zap.String("url", abs), zap.Error(err))
			continue
		}
		attempts++
		start := time.Now()
		body, err := f.fetchOne(ctx, abs, pageHost)
		if err != nil {
			log.Warn("stylesheet fetch failed", zap.String("url", abs), zap.Error(err))
			continue
		}
		log.Debug("stylesheet fetched",
			zap.String("url", abs), zap.Int("bytes", len(body)),
			zap.Duration("took", time.Since(start)))
		parts = append(parts, body)
	}
	return strings.Join(parts, "\n\n")
}

// hopCheck applies the per-URL fetch policy: first-party to the page, not on
// the CDN/font exclusion list, and safe per the host validator. It runs
// before the initial connect and again at every redirect hop.
func (f *StylesheetFetcher) hopCheck(rawURL, pageHost string) error {
	u, err := url.Parse(rawURL)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrMalformedURL, err)
	}
	host := strings.ToLower(u.Hostname())
	if pageHost != "" && !sameSite(host, pageHost) {
		return fmt.Errorf("host %q is not first-party to %q", host, pageHost)
	}
	if hostInDomains(host, f.opts.ExcludedCSSHosts) {
		return fmt.Errorf("host %q is on the stylesheet exclusion list", host)
	}
	return f.validate(rawURL)
}

func (f *StylesheetFetcher) fetchOne(ctx context.Context, absURL, pageHost string) (string, error) {
	ctx = context.WithValue(ctx, pageHostKey{}, pageHost)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, absURL, nil)
	if err != nil {
		return "", err
	}
	req.Header.Set("User-Agent", f.opts.UserAgent)
	req.Header.Set("Accept", "text/css,*/*;q=0.1")
	req.Header.Set("Accept-Encoding", "gzip, deflate")
	resp, err := f.client.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", fmt.Errorf("http %d", resp.StatusCode)
	}
	if resp.ContentLength > f.opts.MaxStylesheetBytes {
		return "", fmt.Errorf("content-length %d over limit %d", resp.ContentLength, f.opts.MaxStylesheetBytes)
	}
	rc := io.ReadCloser(resp.Body)
	switch strings.ToLower(strings.TrimSpace(resp.Header.Get("Content-Encoding"))) {
	case "gzip":
		gr, err := gzip.NewReader(resp.Body)
		if err != nil {
			return "", fmt.Errorf("gzip body: %w", err)
		}
		rc = gr
		defer gr.Close()
	case "deflate":
		// Sniff instead of trying zlib first: a failed zlib.NewReader has
		// already consumed its two header bytes, leaving the raw-deflate
		// fallback misaligned.
		br := bufio.NewReader(resp.Body)
		if hdr, perr := br.Peek(2); perr == nil && isZlibHeader(hdr) {
			zr, err := zlib.NewReader(br)
			if err != nil {
				return "", fmt.Errorf("zlib body: %w", err)
			}
			rc = zr
			defer zr.Close()
		} else {
			fr := flate.NewReader(br)
			rc = fr
			defer fr.Close()
		}
	}
	// Over-limit bodies truncate rather than fail.
	body, err := io.ReadAll(io.LimitReader(rc, f.opts.MaxStylesheetBytes))
	if err != nil {
		return "", err
	}
	return string(body), nil
}

// isZlibHeader reports whether hdr opens an RFC 1950 stream: compression
// method 8 and a CMF/FLG pair that is a multiple of 31.
func isZlibHeader(hdr []byte) bool {
	if len(hdr) < 2 {
		return false
	}
	return hdr[0]&0x0f == 8 && (uint16(hdr[0])<<8|uint16(hdr[1]))%31 == 0
}

// fetchHostSafety is the default pre-connect validator: https only, no
// literal private hosts, and no hostnames any of whose resolved addresses
// are private, loopback or link-local (DNS rebinding defense).
func fetchHostSafety(rawURL string) error {
	u, err := url.Parse(rawURL)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrMalformedURL, err)
	}
	if !strings.EqualFold(u.Scheme, "https") {
		return fmt.Errorf("%w: %q", ErrUnsafeScheme, u.Scheme)
	}
	host := strings.ToLower(u.Hostname())
	if host == "" {
		return fmt.Errorf("%w: no host", ErrMalformedURL)
	}
	if host == "localhost" || strings.HasSuffix(host, ".localhost") {
		return fmt.Errorf("%w: %s", ErrPrivateHost, host)
	}
	if ip := net.ParseIP(host); ip != nil {
		if isPrivateIP(ip) {
			return fmt.Errorf("%w: %s", ErrPrivateHost, host)
		}
		return nil
	}
	addrs, err := net.LookupHost(host)
	if err != nil {
		return fmt.Errorf("dns lookup %s: %w", host, err)
	}
	for _, a := range addrs {
		if ip := net.ParseIP(a); ip != nil && isPrivateIP(ip) {
			return fmt.Errorf("%w: %s resolves to %s", ErrPrivateHost, host, a)
		}
	}
	return nil
}

// stylesheetHrefs collects the href of every <link rel=stylesheet> in
// document order, skipping links typed as something other than text/css.
func stylesheetHrefs(htmlText string) []string {
	if strings.TrimSpace(htmlText) == "" {
		return nil
	}
	doc, err := html.Parse(strings.NewReader(htmlText))
	if err != nil {
		return nil
	}
	var links []string
	var collect func(*html.Node)
	collect = func(n *html.Node) {
		if n.Type == html.ElementNode && strings.EqualFold(n.Data, "link") {
			rel := strings.ToLower(strings.TrimSpace(getAttr(n, "rel")))
			if strings.Contains(rel, "stylesheet") {
				typ := strings.ToLower(strings.TrimSpace(getAttr(n, "type")))
				if typ == "" || typ == "text/css" {
					if href := strings.TrimSpace(getAttr(n, "href")); href != "" {
						links = append(links, href)
					}
				}
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			collect(c)
		}
	}
	collect(doc)
	return links
}
