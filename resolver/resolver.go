// Package resolver finds the playable embed URL of a single game through an
// ordered chain of stages. The first stage that yields a URL wins; the last
// stage always succeeds.
package resolver

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/use-agent/iframer/config"
	"github.com/use-agent/iframer/extract"
	"github.com/use-agent/iframer/fetcher"
	"github.com/use-agent/iframer/pace"
	"github.com/use-agent/iframer/site"
)

const (
	EmbedWidth  = "100%"
	EmbedHeight = "600"
)

// ErrEmptySlug is returned by Resolve for an empty slug.
var ErrEmptySlug = errors.New("resolver: empty slug")

// Stage names the step that produced a descriptor.
type Stage string

const (
	StageConstructed Stage = "constructed"
	StageRedirect    Stage = "redirect"
	StagePageData    Stage = "page-data"
	StageMarkup      Stage = "markup"
	StageFallback    Stage = "fallback"
)

// EmbedDescriptor is the resolved embed for one game.
type EmbedDescriptor struct {
	EmbedURL string
	Title    string
	Width    string
	Height   string
	Stage    Stage
}

// Fetcher is the subset of *fetcher.Fetcher the resolver needs.
type Fetcher interface {
	Fetch(ctx context.Context, rawURL string, opts fetcher.Options) (*fetcher.Outcome, error)
}

// Resolver is safe for concurrent use.
type Resolver struct {
	fetch Fetcher
	site  *site.Site
	cfg   config.ResolverConfig
	log   *slog.Logger
}

// New creates a Resolver.
func New(f Fetcher, s *site.Site, cfg config.ResolverConfig) *Resolver {
	return &Resolver{
		fetch: f,
		site:  s,
		cfg:   cfg,
		log:   slog.With("component", "resolver"),
	}
}

type stage struct {
	name Stage
	run  func(ctx context.Context, j *job) string
}

// Resolve returns the embed descriptor for slug. Stage failures are logged and
// skipped. When the per-item budget runs out the terminal fallback is returned.
// The only errors are ErrEmptySlug and the caller's own context error.
func (r *Resolver) Resolve(ctx context.Context, slug string) (EmbedDescriptor, error) {
	if slug == "" {
		return EmbedDescriptor{}, ErrEmptySlug
	}
	if err := ctx.Err(); err != nil {
		return EmbedDescriptor{}, err
	}

	budget := pace.NewBudget(r.cfg.ItemBudget)
	itemCtx, cancel := ctx, context.CancelFunc(func() {})
	if r.cfg.ItemBudget > 0 {
		itemCtx, cancel = context.WithTimeout(ctx, r.cfg.ItemBudget)
	}
	defer cancel()

	j := &job{r: r, slug: slug, budget: budget}
	stages := []stage{
		{StageConstructed, r.constructed},
		{StageRedirect, r.redirect},
		{StagePageData, r.pageData},
		{StageMarkup, r.markup},
	}

	for _, st := range stages {
		if budget.Exceeded() || itemCtx.Err() != nil {
			r.log.Debug("item budget exhausted", "slug", slug, "stage", st.name, "elapsed", budget.Elapsed())
			break
		}
		embed := st.run(itemCtx, j)
		if err := ctx.Err(); err != nil {
			return EmbedDescriptor{}, err
		}
		if embed != "" {
			r.log.Debug("embed resolved", "slug", slug, "stage", st.name, "elapsed", budget.Elapsed())
			return j.descriptor(embed, st.name), nil
		}
	}

	if err := ctx.Err(); err != nil {
		return EmbedDescriptor{}, err
	}
	r.log.Debug("embed fallback", "slug", slug, "elapsed", budget.Elapsed())
	return j.descriptor(r.site.GameURL(slug), StageFallback), nil
}

// job is the state of one Resolve call. The canonical page is fetched at most
// once and shared by the page-data and markup stages.
type job struct {
	r      *Resolver
	slug   string
	budget pace.Budget

	pageDone bool
	page     *fetcher.Outcome
	doc      *goquery.Document
}

func (j *job) descriptor(embed string, st Stage) EmbedDescriptor {
	return EmbedDescriptor{
		EmbedURL: embed,
		Title:    j.title(),
		Width:    EmbedWidth,
		Height:   EmbedHeight,
		Stage:    st,
	}
}

// title prefers the fetched page's own title over the slug-derived one.
func (j *job) title() string {
	if j.doc != nil {
		if t := pageTitle(j.doc, j.page); t != "" {
			return t
		}
	}
	return site.TitleFromSlug(j.slug)
}

func (j *job) gamePage(ctx context.Context) (*fetcher.Outcome, *goquery.Document) {
	if j.pageDone {
		return j.page, j.doc
	}
	j.pageDone = true

	pageURL := j.r.site.GameURL(j.slug)
	out, err := j.r.fetch.Fetch(ctx, pageURL, fetcher.Options{
		Timeout: j.budget.Cap(j.r.cfg.PageTimeout),
	})
	if err != nil {
		j.r.log.Debug("game page fetch failed", "slug", j.slug, "error", err)
		return nil, nil
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(out.HTML()))
	if err != nil {
		j.r.log.Debug("game page parse failed", "slug", j.slug, "error", err)
		return nil, nil
	}
	j.page, j.doc = out, doc
	return out, doc
}

// constructed probes the templated embed URL with a HEAD request.
func (r *Resolver) constructed(ctx context.Context, j *job) string {
	embed := r.site.EmbedURL(j.slug)
	out, err := r.fetch.Fetch(ctx, embed, fetcher.Options{
		Method:  http.MethodHead,
		Timeout: j.budget.Cap(r.cfg.ProbeTimeout),
	})
	if err != nil {
		r.log.Debug("constructed probe failed", "slug", j.slug, "url", embed, "error", err)
		return ""
	}
	if out.StatusCode != http.StatusOK {
		return ""
	}
	return embed
}

// redirect follows the site's embed redirector and takes the landing URL.
func (r *Resolver) redirect(ctx context.Context, j *job) string {
	start := r.site.RedirectURL(j.slug)
	out, err := r.fetch.Fetch(ctx, start, fetcher.Options{
		Timeout:      j.budget.Cap(r.cfg.RedirectTimeout),
		MaxRedirects: 3,
	})
	if err != nil {
		r.log.Debug("redirect probe failed", "slug", j.slug, "url", start, "error", err)
		return ""
	}
	if out.StatusCode != http.StatusOK || out.FinalURL == "" || out.FinalURL == start {
		return ""
	}
	if out.FinalURL == r.site.GameURL(j.slug) {
		// Redirected back to the landing page; not an embed.
		return ""
	}
	return out.FinalURL
}

func (r *Resolver) pageData(ctx context.Context, j *job) string {
	if _, doc := j.gamePage(ctx); doc != nil {
		return scanPageData(doc)
	}
	return ""
}

func (r *Resolver) markup(ctx context.Context, j *job) string {
	page, doc := j.gamePage(ctx)
	if doc == nil {
		return ""
	}
	return scanMarkup(doc, page.HTML(), r.site.GameURL(j.slug))
}

const ogTitleSel = `meta[property="og:title"]`

var (
	// " | CrazyGames", " - Play Online for Free", " 🕹️ Play on CrazyGames"
	reTitleSuffix = regexp.MustCompile(`(?i)\s*(?:[|\-–—]|🕹️)?\s*play\s+(?:on|online|now|for\s+free|free)\b.*$`)
)

func pageTitle(doc *goquery.Document, page *fetcher.Outcome) string {
	t := strings.TrimSpace(doc.Find(ogTitleSel).First().AttrOr("content", ""))
	if t == "" && page != nil {
		t = extract.PageTitle(page.HTML(), page.FinalURL)
	}
	return cleanTitle(t)
}

func cleanTitle(t string) string {
	if i := strings.Index(t, " | "); i > 0 {
		t = t[:i]
	}
	return strings.TrimSpace(reTitleSuffix.ReplaceAllString(t, ""))
}
