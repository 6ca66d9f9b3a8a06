// Package fetcher performs outbound page requests with browser-like headers,
// per-attempt timeouts and bounded exponential-backoff retries.
package fetcher

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/use-agent/iframer/config"
	"github.com/use-agent/iframer/pace"
)

const chromeUA = "Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/131.0.0.0 Safari/537.36"

// Policy is the immutable retry/backoff configuration shared by every fetch.
type Policy struct {
	PageTimeout  time.Duration
	MaxAttempts  int
	BaseBackoff  time.Duration
	MaxBackoff   time.Duration
	MaxRedirects int

	// Referer is sent on every request; normally the target site root.
	Referer string
}

// Options tunes a single Fetch call. Zero fields take the Policy defaults.
type Options struct {
	Method       string        // GET (default) or HEAD
	Timeout      time.Duration // per attempt
	MaxAttempts  int
	NoRedirects  bool
	MaxRedirects int
	Headers      map[string]string
}

// Outcome is the success half of a fetch.
type Outcome struct {
	StatusCode int
	Body       []byte
	FinalURL   string
	Header     http.Header
}

// HTML returns the body as a string.
func (o *Outcome) HTML() string {
	return string(o.Body)
}

// Fetcher is safe for concurrent use; it holds no per-request state.
type Fetcher struct {
	client *http.Client
	policy Policy
	log    *slog.Logger
}

// New builds a Fetcher from config. referer is the target site root.
func New(cfg config.FetchConfig, referer string) *Fetcher {
	return NewWithClient(&http.Client{Transport: NewTransport(cfg.TLSFingerprint)}, Policy{
		PageTimeout:  cfg.PageTimeout,
		MaxAttempts:  cfg.MaxAttempts,
		BaseBackoff:  cfg.BaseBackoff,
		MaxBackoff:   cfg.MaxBackoff,
		MaxRedirects: cfg.MaxRedirects,
		Referer:      referer,
	})
}

// NewWithClient wraps an existing client. The client's CheckRedirect is
// replaced per call.
func NewWithClient(client *http.Client, policy Policy) *Fetcher {
	if policy.MaxAttempts <= 0 {
		policy.MaxAttempts = 3
	}
	if policy.PageTimeout <= 0 {
		policy.PageTimeout = 30 * time.Second
	}
	if policy.MaxRedirects <= 0 {
		policy.MaxRedirects = 5
	}
	return &Fetcher{
		client: client,
		policy: policy,
		log:    slog.With("component", "fetcher"),
	}
}

// Fetch requests rawURL, retrying network failures, timeouts and 5xx
// responses with exponential backoff. A 4xx response is returned at once as a
// KindHTTP error. A cancelled ctx stops retrying and yields KindCanceled.
func (f *Fetcher) Fetch(ctx context.Context, rawURL string, opts Options) (*Outcome, error) {
	opts = f.withDefaults(opts)

	var lastErr *Error
	for attempt := 1; attempt <= opts.MaxAttempts; attempt++ {
		if attempt > 1 {
			wait := f.backoff(attempt - 1)
			f.log.Debug("retrying fetch",
				"url", rawURL, "attempt", attempt, "backoff", wait, "error", lastErr.Err)
			if err := pace.Sleep(ctx, wait); err != nil {
				lastErr.Kind = KindCanceled
				lastErr.Err = err
				return nil, lastErr
			}
		}

		out, err := f.once(ctx, rawURL, opts)
		if err == nil {
			return out, nil
		}
		err.Attempts = attempt
		lastErr = err
		if !err.retryable() || ctx.Err() != nil {
			break
		}
	}
	if ctx.Err() != nil && lastErr.Kind != KindHTTP {
		lastErr.Kind = KindCanceled
	}
	return nil, lastErr
}

// Get is Fetch with a plain GET under the policy defaults.
func (f *Fetcher) Get(ctx context.Context, rawURL string) (*Outcome, error) {
	return f.Fetch(ctx, rawURL, Options{})
}

func (f *Fetcher) withDefaults(opts Options) Options {
	if opts.Method == "" {
		opts.Method = http.MethodGet
	}
	if opts.Timeout <= 0 {
		opts.Timeout = f.policy.PageTimeout
	}
	if opts.MaxAttempts <= 0 {
		opts.MaxAttempts = f.policy.MaxAttempts
	}
	if opts.MaxRedirects <= 0 {
		opts.MaxRedirects = f.policy.MaxRedirects
	}
	return opts
}

// backoff returns the sleep before retry n (1-based): base * 2^(n-1), capped.
func (f *Fetcher) backoff(n int) time.Duration {
	d := f.policy.BaseBackoff
	for i := 1; i < n; i++ {
		d *= 2
		if f.policy.MaxBackoff > 0 && d >= f.policy.MaxBackoff {
			return f.policy.MaxBackoff
		}
	}
	if f.policy.MaxBackoff > 0 && d > f.policy.MaxBackoff {
		return f.policy.MaxBackoff
	}
	return d
}

// once performs a single attempt under its own timeout.
func (f *Fetcher) once(ctx context.Context, rawURL string, opts Options) (*Outcome, *Error) {
	fail := func(kind Kind, status int, err error) *Error {
		return &Error{Kind: kind, Method: opts.Method, URL: rawURL, StatusCode: status, Err: err}
	}

	attemptCtx, cancel := context.WithTimeout(ctx, opts.Timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(attemptCtx, opts.Method, rawURL, nil)
	if err != nil {
		return nil, fail(KindRequest, 0, fmt.Errorf("build request: %w", err))
	}
	f.setHeaders(req, opts.Headers)

	client := *f.client
	client.CheckRedirect = func(_ *http.Request, via []*http.Request) error {
		if opts.NoRedirects {
			return http.ErrUseLastResponse
		}
		if len(via) > opts.MaxRedirects {
			return fmt.Errorf("stopped after %d redirects", opts.MaxRedirects)
		}
		return nil
	}

	resp, err := client.Do(req)
	if err != nil {
		return nil, fail(classify(ctx, attemptCtx, err), 0, err)
	}

	var body []byte
	if opts.Method != http.MethodHead {
		body, err = readBody(resp)
		if err != nil {
			return nil, fail(classify(ctx, attemptCtx, err), 0, err)
		}
	} else {
		resp.Body.Close()
	}

	if resp.StatusCode >= 400 {
		return nil, fail(KindHTTP, resp.StatusCode, fmt.Errorf("HTTP %d", resp.StatusCode))
	}

	return &Outcome{
		StatusCode: resp.StatusCode,
		Body:       body,
		FinalURL:   resp.Request.URL.String(),
		Header:     resp.Header,
	}, nil
}

func (f *Fetcher) setHeaders(req *http.Request, extra map[string]string) {
	req.Header.Set("User-Agent", chromeUA)
	req.Header.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,image/avif,image/webp,image/apng,*/*;q=0.8")
	req.Header.Set("Accept-Language", "en-US,en;q=0.9")
	req.Header.Set("Accept-Encoding", "gzip, deflate, br")
	req.Header.Set("Cache-Control", "no-cache")
	req.Header.Set("Pragma", "no-cache")
	if f.policy.Referer != "" {
		req.Header.Set("Referer", f.policy.Referer)
	}
	for k, v := range extra {
		req.Header.Set(k, v)
	}
}

// classify maps a transport error to a Kind. The attempt context's own
// deadline is a timeout; the caller's context ending is a cancellation.
func classify(parent, attempt context.Context, err error) Kind {
	if parent.Err() != nil {
		return KindCanceled
	}
	if errors.Is(attempt.Err(), context.DeadlineExceeded) || errors.Is(err, context.DeadlineExceeded) {
		return KindTimeout
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return KindTimeout
	}
	return KindNetwork
}
