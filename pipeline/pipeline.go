// Package pipeline is the extraction entry point. It classifies the source URL
// and dispatches to item resolution, listing pagination or generic iframe
// extraction, then slices and assembles the response.
package pipeline

import (
	"context"
	"errors"
	"log/slog"
	"net/url"
	"strings"

	"github.com/use-agent/iframer/batch"
	"github.com/use-agent/iframer/config"
	"github.com/use-agent/iframer/extract"
	"github.com/use-agent/iframer/fetcher"
	"github.com/use-agent/iframer/listing"
	"github.com/use-agent/iframer/models"
	"github.com/use-agent/iframer/resolver"
	"github.com/use-agent/iframer/site"
	"github.com/use-agent/iframer/snippet"
)

// ExtractFailedMessage is the error text of every failed extraction.
const ExtractFailedMessage = "Failed to extract iFrames"

// Fetcher fetches generic pages.
type Fetcher interface {
	Fetch(ctx context.Context, rawURL string, opts fetcher.Options) (*fetcher.Outcome, error)
}

// Resolver resolves a single item.
type Resolver interface {
	Resolve(ctx context.Context, slug string) (resolver.EmbedDescriptor, error)
}

// Lister reads listing pages.
type Lister interface {
	ListCandidates(ctx context.Context, listingURL string) ([]string, error)
	SinglePage(ctx context.Context, base string, n int) ([]string, error)
}

// BatchResolver resolves many items under a budget.
type BatchResolver interface {
	ResolveAll(ctx context.Context, links []string) ([]models.IframeResult, batch.Stats)
}

// Pipeline holds no per-request state and is safe for concurrent use.
type Pipeline struct {
	site              *site.Site
	fetch             Fetcher
	resolver          Resolver
	lister            Lister
	batch             BatchResolver
	fallbackThreshold int
	log               *slog.Logger
}

// New wires a Pipeline from its parts.
func New(s *site.Site, f Fetcher, r Resolver, l Lister, b BatchResolver, cfg config.ListingConfig) *Pipeline {
	return &Pipeline{
		site:              s,
		fetch:             f,
		resolver:          r,
		lister:            l,
		batch:             b,
		fallbackThreshold: cfg.FallbackThreshold,
		log:               slog.With("component", "pipeline"),
	}
}

// NewFromConfig builds the full production graph from configuration.
func NewFromConfig(cfg *config.Config) (*Pipeline, error) {
	s, err := site.New(cfg.Site)
	if err != nil {
		return nil, err
	}
	f := fetcher.New(cfg.Fetch, s.Root())
	r := resolver.New(f, s, cfg.Resolver)
	return New(s, f, r,
		listing.New(f, cfg.Listing),
		batch.New(r, batch.OptionsFrom(cfg.Batch)),
		cfg.Listing,
	), nil
}

// ParseSourceURL accepts only absolute http(s) URLs.
func ParseSourceURL(raw string) (*url.URL, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, models.NewAPIError(models.ErrCodeInvalidInput, "URL is required", nil)
	}
	u, err := url.Parse(raw)
	if err != nil || u.Host == "" || (u.Scheme != "http" && u.Scheme != "https") {
		return nil, models.NewAPIError(models.ErrCodeInvalidInput, "URL must be an absolute http(s) URL", err)
	}
	return u, nil
}

// Extract runs one extraction. Input errors come back as INVALID_INPUT
// APIErrors; upstream failures as UPSTREAM_FAILED or TIMEOUT.
func (p *Pipeline) Extract(ctx context.Context, req models.ExtractRequest) (*models.ExtractResponse, error) {
	u, err := ParseSourceURL(req.SourceURL)
	if err != nil {
		return nil, err
	}
	if req.Offset < 0 {
		return nil, models.NewAPIError(models.ErrCodeInvalidInput, "offset must not be negative", nil)
	}

	kind := p.site.Classify(u)
	log := p.log.With("url", u.String(), "branch", kind.String())

	var (
		results []models.IframeResult
		total   int
	)
	switch kind {
	case site.KindItem:
		results, total, err = p.item(ctx, u, req)
	case site.KindListing:
		if req.All {
			results, total, err = p.listingAll(ctx, u, req)
		} else {
			results, total, err = p.listingPage(ctx, u, req, log)
		}
	default:
		results, total, err = p.generic(ctx, u, req)
	}
	if err != nil {
		log.Warn("extraction failed", "error", err)
		return nil, upstreamError(err)
	}

	log.Info("extraction finished", "returned", len(results), "total", total, "offset", req.Offset)
	return models.NewExtractResponse(results, total, req.Offset), nil
}

func (p *Pipeline) item(ctx context.Context, u *url.URL, req models.ExtractRequest) ([]models.IframeResult, int, error) {
	const total = 1
	if lo, hi := req.Window(total); lo == hi {
		return nil, total, nil
	}
	d, err := p.resolver.Resolve(ctx, site.Slug(u.String()))
	if err != nil {
		return nil, 0, err
	}
	return []models.IframeResult{{
		Code:  snippet.Render(d),
		URL:   u.String(),
		Title: d.Title,
	}}, total, nil
}

func (p *Pipeline) listingAll(ctx context.Context, u *url.URL, req models.ExtractRequest) ([]models.IframeResult, int, error) {
	links, err := p.lister.ListCandidates(ctx, u.String())
	if err != nil {
		return nil, 0, err
	}
	return p.resolveWindow(ctx, links, req)
}

func (p *Pipeline) listingPage(ctx context.Context, u *url.URL, req models.ExtractRequest, log *slog.Logger) ([]models.IframeResult, int, error) {
	base, page, explicit := site.SplitPage(u.String())
	if !explicit {
		page = 1
	}

	links, err := p.lister.SinglePage(ctx, base, page)
	if explicit && ctx.Err() == nil && (err != nil || len(links) < p.fallbackThreshold) {
		// Numbered pages are often filled in client-side; the first page is
		// server-rendered.
		log.Info("sparse listing page, falling back to page 1", "page", page, "found", len(links), "error", err)
		links, err = p.lister.SinglePage(ctx, base, 1)
	}
	if err != nil {
		return nil, 0, err
	}
	return p.resolveWindow(ctx, links, req)
}

func (p *Pipeline) resolveWindow(ctx context.Context, links []string, req models.ExtractRequest) ([]models.IframeResult, int, error) {
	lo, hi := req.Window(len(links))
	if lo == hi {
		return nil, len(links), nil
	}
	results, _ := p.batch.ResolveAll(ctx, links[lo:hi])
	return results, len(links), nil
}

func (p *Pipeline) generic(ctx context.Context, u *url.URL, req models.ExtractRequest) ([]models.IframeResult, int, error) {
	out, err := p.fetch.Fetch(ctx, u.String(), fetcher.Options{})
	if err != nil {
		return nil, 0, err
	}
	pageURL := u.String()
	if out.FinalURL != "" {
		pageURL = out.FinalURL
	}

	frames := extract.CollectIframes(out.HTML(), pageURL)
	lo, hi := req.Window(len(frames))
	if lo == hi {
		return nil, len(frames), nil
	}

	title := extract.PageTitle(out.HTML(), pageURL)
	results := make([]models.IframeResult, 0, hi-lo)
	for _, f := range frames[lo:hi] {
		results = append(results, models.IframeResult{
			Code:  snippet.RenderGeneric(f),
			URL:   f.Src,
			Title: title,
		})
	}
	return results, len(frames), nil
}

// upstreamError wraps a component failure into the API error taxonomy.
func upstreamError(err error) error {
	var apiErr *models.APIError
	if errors.As(err, &apiErr) {
		return err
	}
	code := models.ErrCodeUpstreamFailed
	if fetcher.IsKind(err, fetcher.KindTimeout) || errors.Is(err, context.DeadlineExceeded) {
		code = models.ErrCodeTimeout
	}
	return models.NewAPIError(code, ExtractFailedMessage, err)
}
