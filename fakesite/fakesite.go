// Package fakesite serves a small imitation of the target game site over
// httptest, for end-to-end tests of the extraction pipeline.
package fakesite

import (
	"fmt"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/use-agent/iframer/config"
)

// Options describes the site content.
type Options struct {
	// Listings maps a listing path ("/new", "/c/action") to its pages of slugs.
	// Page 1 is served at the bare path, page n at path/n.
	Listings map[string][][]string

	// Playable slugs answer the constructed embed probe with 200.
	// When nil every slug is playable.
	Playable map[string]bool

	// Pages are extra raw HTML documents keyed by path.
	Pages map[string]string

	// Broken paths always answer 500.
	Broken map[string]bool
}

// Site is a running fake. Close is registered with t.Cleanup.
type Site struct {
	*httptest.Server
	opts Options

	mu   sync.Mutex
	hits map[string]int
}

// New starts a fake site.
func New(t testing.TB, opts Options) *Site {
	t.Helper()
	s := &Site{opts: opts, hits: make(map[string]int)}
	s.Server = httptest.NewServer(http.HandlerFunc(s.serve))
	t.Cleanup(s.Close)
	return s
}

// Config returns a configuration pointed at the fake, with every delay and
// backoff shrunk so tests run fast.
func (s *Site) Config() *config.Config {
	cfg := config.Load()
	cfg.Site.BaseURL = s.URL
	cfg.Site.EmbedTemplate = s.URL + "/en_US/{slug}/index.html"
	cfg.Fetch.TLSFingerprint = false
	cfg.Fetch.BaseBackoff = time.Millisecond
	cfg.Fetch.MaxBackoff = 2 * time.Millisecond
	cfg.Fetch.PageTimeout = 2 * time.Second
	cfg.Listing.PageDelay = 0
	cfg.Batch.ItemDelay = 0
	cfg.Batch.BatchDelay = 0
	cfg.RateLimit.Enabled = false
	return cfg
}

// Hits returns how many requests path has received.
func (s *Site) Hits(path string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.hits[path]
}

// EmbedURL is the constructed embed URL the fake answers for slug.
func (s *Site) EmbedURL(slug string) string {
	return s.URL + "/en_US/" + slug + "/index.html"
}

func (s *Site) serve(w http.ResponseWriter, r *http.Request) {
	path := r.URL.Path
	s.mu.Lock()
	s.hits[path]++
	s.mu.Unlock()

	if s.opts.Broken[path] {
		http.Error(w, "upstream exploded", http.StatusInternalServerError)
		return
	}
	if body, ok := s.opts.Pages[path]; ok {
		writeHTML(w, body)
		return
	}

	if slug, ok := strings.CutPrefix(path, "/en_US/"); ok {
		slug = strings.TrimSuffix(slug, "/index.html")
		if s.opts.Playable == nil || s.opts.Playable[slug] {
			writeHTML(w, "<!DOCTYPE html><html><body>playing "+slug+"</body></html>")
			return
		}
		http.NotFound(w, r)
		return
	}

	if slugs, ok := s.listingPage(path); ok {
		writeHTML(w, ListingHTML(slugs...))
		return
	}
	http.NotFound(w, r)
}

func (s *Site) listingPage(path string) ([]string, bool) {
	if pages, ok := s.opts.Listings[path]; ok {
		if len(pages) == 0 {
			return nil, true
		}
		return pages[0], true
	}
	i := strings.LastIndex(path, "/")
	if i <= 0 {
		return nil, false
	}
	n, err := strconv.Atoi(path[i+1:])
	if err != nil {
		return nil, false
	}
	pages, ok := s.opts.Listings[path[:i]]
	if !ok {
		return nil, false
	}
	if n < 1 || n > len(pages) {
		return nil, true
	}
	return pages[n-1], true
}

// ListingHTML renders a listing document linking to the given slugs.
func ListingHTML(slugs ...string) string {
	var b strings.Builder
	b.WriteString("<!DOCTYPE html><html><head><title>Games</title></head><body><div class=\"grid\">")
	for _, slug := range slugs {
		fmt.Fprintf(&b, `<div class="game-card"><a href="/game/%s">%s</a></div>`, slug, slug)
	}
	b.WriteString(`<a href="/game/loading">loading</a></div></body></html>`)
	return b.String()
}

// Slugs returns n slugs named prefix-0 .. prefix-(n-1).
func Slugs(prefix string, n int) []string {
	out := make([]string, n)
	for i := range out {
		out[i] = fmt.Sprintf("%s-%d", prefix, i)
	}
	return out
}

func writeHTML(w http.ResponseWriter, body string) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	_, _ = w.Write([]byte(body))
}
