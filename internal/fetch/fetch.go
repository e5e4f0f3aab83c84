// Package fetch retrieves HTML pages from allowlisted product lookup sites.
package fetch

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
)

// Page is a fetched HTML document.
type Page struct {
	HTML     string
	FinalURL string
	Domain   string
}

// PageFetcher retrieves a page by URL.
type PageFetcher interface {
	FetchPage(ctx context.Context, rawURL string) (*Page, error)
}

// RejectError reports a page that was not fetched or not accepted.
type RejectError struct {
	URL        string
	Reason     string
	StatusCode int
}

func (e *RejectError) Error() string {
	if e.StatusCode > 0 {
		return fmt.Sprintf("fetch: %s rejected: %s (status %d)", e.URL, e.Reason, e.StatusCode)
	}
	return fmt.Sprintf("fetch: %s rejected: %s", e.URL, e.Reason)
}

// Blocked reports whether the site refused the request in a way another
// fetch route might get around.
func (e *RejectError) Blocked() bool {
	switch e.StatusCode {
	case http.StatusForbidden, http.StatusTooManyRequests, http.StatusServiceUnavailable:
		return true
	}
	return false
}

const (
	defaultMaxBytes  = 2 * 1024 * 1024
	defaultUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36"
)

// Options configures an HTTPFetcher.
type Options struct {
	UserAgent string
	Timeout   time.Duration
	MaxBytes  int64
	Allowlist []string
	Limiter   *HostLimiter
}

// HTTPFetcher fetches pages directly over HTTP.
type HTTPFetcher struct {
	client    *http.Client
	opts      Options
	allowlist *Allowlist
	limiter   *HostLimiter
}

// NewHTTPFetcher creates an HTTPFetcher. A nil Allowlist uses
// DefaultAllowlist.
func NewHTTPFetcher(opts Options) *HTTPFetcher {
	if opts.Timeout == 0 {
		opts.Timeout = 10 * time.Second
	}
	if opts.MaxBytes <= 0 {
		opts.MaxBytes = defaultMaxBytes
	}
	if opts.UserAgent == "" {
		opts.UserAgent = defaultUserAgent
	}
	if opts.Allowlist == nil {
		opts.Allowlist = DefaultAllowlist
	}
	if opts.Limiter == nil {
		opts.Limiter = NewHostLimiter(0, 0)
	}

	allow := NewAllowlist(opts.Allowlist)
	return &HTTPFetcher{
		client: &http.Client{
			Timeout: opts.Timeout,
			Transport: &http.Transport{
				MaxIdleConnsPerHost: 10,
				MaxConnsPerHost:     20,
				IdleConnTimeout:     90 * time.Second,
			},
			CheckRedirect: func(req *http.Request, via []*http.Request) error {
				if len(via) >= 5 {
					return eris.New("fetch: too many redirects")
				}
				if !allow.Allows(req.URL.Host) {
					return &RejectError{URL: req.URL.String(), Reason: "redirect to disallowed host"}
				}
				return nil
			},
		},
		opts:      opts,
		allowlist: allow,
		limiter:   opts.Limiter,
	}
}

// Allows reports whether rawURL points at an allowlisted host.
func (f *HTTPFetcher) Allows(rawURL string) bool {
	u, err := url.Parse(rawURL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") {
		return false
	}
	return f.allowlist.Allows(u.Host)
}

func (f *HTTPFetcher) FetchPage(ctx context.Context, rawURL string) (*Page, error) {
	u, err := url.Parse(rawURL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") {
		return nil, &RejectError{URL: rawURL, Reason: "invalid url"}
	}
	if !f.allowlist.Allows(u.Host) {
		return nil, &RejectError{URL: rawURL, Reason: "host not allowlisted"}
	}

	lim := f.limiter.For(u.Host)
	if err := lim.Wait(ctx); err != nil {
		return nil, eris.Wrap(err, "fetch: rate limiter wait")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, eris.Wrap(err, "fetch: create request")
	}
	req.Header.Set("User-Agent", f.opts.UserAgent)
	req.Header.Set("Accept", "text/html,application/xhtml+xml;q=0.9,*/*;q=0.5")
	req.Header.Set("Accept-Language", "en,fr;q=0.8,nl;q=0.6")

	resp, err := f.client.Do(req)
	if err != nil {
		var rej *RejectError
		if errors.As(err, &rej) {
			return nil, rej
		}
		return nil, eris.Wrapf(err, "fetch: get %s", rawURL)
	}
	defer resp.Body.Close() //nolint:errcheck

	if resp.StatusCode == http.StatusTooManyRequests {
		lim.OnRateLimit()
	}
	if resp.StatusCode != http.StatusOK {
		return nil, &RejectError{URL: rawURL, Reason: "unexpected status", StatusCode: resp.StatusCode}
	}
	lim.OnSuccess()

	contentType := resp.Header.Get("Content-Type")
	if !strings.Contains(strings.ToLower(contentType), "text/html") {
		return nil, &RejectError{URL: rawURL, Reason: "content type " + contentType}
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, f.opts.MaxBytes+1))
	if err != nil {
		return nil, eris.Wrapf(err, "fetch: read %s", rawURL)
	}
	if int64(len(body)) > f.opts.MaxBytes {
		return nil, &RejectError{URL: rawURL, Reason: "page exceeds size limit"}
	}

	finalURL := resp.Request.URL.String()
	html, err := decodeHTML(body, contentType)
	if err != nil {
		zap.L().Debug("fetch: charset decode failed, using raw bytes",
			zap.String("url", finalURL),
			zap.Error(err),
		)
		html = string(body)
	}

	return &Page{
		HTML:     html,
		FinalURL: finalURL,
		Domain:   Domain(finalURL),
	}, nil
}
