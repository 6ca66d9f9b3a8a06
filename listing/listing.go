// Package listing walks the numbered pages of a category, tag or "new" listing
// and collects the item links found on them.
package listing

import (
	"context"
	"log/slog"
	"strings"

	"github.com/use-agent/iframer/config"
	"github.com/use-agent/iframer/extract"
	"github.com/use-agent/iframer/fetcher"
	"github.com/use-agent/iframer/pace"
	"github.com/use-agent/iframer/site"
)

// Fetcher is the subset of *fetcher.Fetcher the paginator needs.
type Fetcher interface {
	Fetch(ctx context.Context, rawURL string, opts fetcher.Options) (*fetcher.Outcome, error)
}

// Paginator is safe for concurrent use; each call keeps its own link set.
type Paginator struct {
	fetch Fetcher
	cfg   config.ListingConfig
	log   *slog.Logger
}

// New creates a Paginator.
func New(f Fetcher, cfg config.ListingConfig) *Paginator {
	if cfg.MaxPages <= 0 {
		cfg.MaxPages = 1
	}
	return &Paginator{
		fetch: f,
		cfg:   cfg,
		log:   slog.With("component", "listing"),
	}
}

// ListCandidates returns the deduplicated item links of a listing in discovery
// order. A URL with an explicit trailing page number yields that page only.
// Otherwise pages 1..MaxPages are walked, stopping at the first page that adds
// no new link. A failure on the first page is returned; a failure on a later
// page ends the walk with what was collected.
func (p *Paginator) ListCandidates(ctx context.Context, listingURL string) ([]string, error) {
	base, page, explicit := site.SplitPage(listingURL)
	if explicit {
		return p.SinglePage(ctx, base, page)
	}

	set := NewLinkSet()
	for n := 1; n <= p.cfg.MaxPages; n++ {
		if n > 1 {
			if err := pace.Sleep(ctx, p.cfg.PageDelay); err != nil {
				return nil, err
			}
		}

		links, err := p.SinglePage(ctx, base, n)
		if err != nil {
			if n == 1 || ctx.Err() != nil {
				return nil, err
			}
			p.log.Warn("listing page failed, stopping", "url", site.PageURL(base, n), "page", n, "error", err)
			break
		}

		added := set.AddAll(links)
		p.log.Debug("listing page scanned", "url", site.PageURL(base, n), "page", n, "found", len(links), "new", added)
		if added == 0 {
			break
		}
	}

	p.log.Info("listing walked", "url", listingURL, "links", set.Len())
	return set.Links(), nil
}

// SinglePage fetches page n of the listing whose bare URL is base and returns
// its item links. Bodies that are not HTML documents yield no links.
func (p *Paginator) SinglePage(ctx context.Context, base string, n int) ([]string, error) {
	pageURL := site.PageURL(base, n)
	out, err := p.fetch.Fetch(ctx, pageURL, fetcher.Options{})
	if err != nil {
		return nil, err
	}
	body := out.HTML()
	if !looksLikeHTML(body) {
		p.log.Debug("listing page is not an HTML document", "url", pageURL)
		return []string{}, nil
	}
	if out.FinalURL != "" {
		pageURL = out.FinalURL
	}
	return extract.GameLinks(body, pageURL), nil
}

func looksLikeHTML(body string) bool {
	head := body
	if len(head) > 1024 {
		head = head[:1024]
	}
	head = strings.ToLower(head)
	return strings.Contains(head, "<!doctype") || strings.Contains(head, "<html")
}
