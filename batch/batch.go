// Package batch resolves a list of item links in fixed-size, strictly
// sequential batches under a wall-clock budget.
package batch

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/use-agent/iframer/config"
	"github.com/use-agent/iframer/models"
	"github.com/use-agent/iframer/pace"
	"github.com/use-agent/iframer/resolver"
	"github.com/use-agent/iframer/site"
	"github.com/use-agent/iframer/snippet"
)

// Resolver turns a slug into an embed descriptor.
type Resolver interface {
	Resolve(ctx context.Context, slug string) (resolver.EmbedDescriptor, error)
}

// Options controls pacing. Zero delays disable them; a zero Budget is unlimited.
type Options struct {
	BatchSize  int
	ItemDelay  time.Duration
	BatchDelay time.Duration
	Budget     time.Duration
}

// OptionsFrom maps the batch config section onto Options.
func OptionsFrom(cfg config.BatchConfig) Options {
	return Options{
		BatchSize:  cfg.Size,
		ItemDelay:  cfg.ItemDelay,
		BatchDelay: cfg.BatchDelay,
		Budget:     cfg.Budget,
	}
}

// Stats summarises one ResolveAll run.
type Stats struct {
	Batches   int
	Resolved  int
	Skipped   int
	Truncated bool
	Elapsed   time.Duration
}

// Processor is safe for concurrent use.
type Processor struct {
	res  Resolver
	opts Options
	log  *slog.Logger
}

// New creates a Processor. A non-positive batch size falls back to 3.
func New(r Resolver, opts Options) *Processor {
	if opts.BatchSize <= 0 {
		opts.BatchSize = 3
	}
	return &Processor{
		res:  r,
		opts: opts,
		log:  slog.With("component", "batch"),
	}
}

// Split partitions links into consecutive chunks of at most size elements.
func Split(links []string, size int) [][]string {
	if size <= 0 {
		size = 1
	}
	batches := make([][]string, 0, (len(links)+size-1)/size)
	for i := 0; i < len(links); i += size {
		batches = append(batches, links[i:min(i+size, len(links))])
	}
	return batches
}

// ResolveAll resolves links in order and returns one result per resolved link.
// Running out of budget or ctx ending truncates the results; it is never an
// error. Links without a slug, and items whose resolution fails or panics, are
// skipped.
func (p *Processor) ResolveAll(ctx context.Context, links []string) ([]models.IframeResult, Stats) {
	budget := pace.NewBudget(p.opts.Budget)
	results := make([]models.IframeResult, 0, len(links))
	var stats Stats

	batches := Split(links, p.opts.BatchSize)
	p.log.Info("batch run started", "links", len(links), "batches", len(batches), "budget", p.opts.Budget)

	finish := func(truncated bool) ([]models.IframeResult, Stats) {
		stats.Truncated = truncated
		stats.Elapsed = budget.Elapsed()
		p.log.Info("batch run finished",
			"batches", stats.Batches, "resolved", stats.Resolved, "skipped", stats.Skipped,
			"truncated", stats.Truncated, "elapsed", stats.Elapsed)
		return results, stats
	}

	for bi, b := range batches {
		if budget.Exceeded() || ctx.Err() != nil {
			return finish(true)
		}
		stats.Batches++
		p.log.Debug("batch started", "batch", bi+1, "of", len(batches), "elapsed", budget.Elapsed())

		for ii, link := range b {
			if budget.Exceeded() || ctx.Err() != nil {
				return finish(true)
			}

			res, err := p.resolveOne(ctx, link)
			if err != nil {
				stats.Skipped++
				p.log.Warn("item skipped", "url", link, "error", err)
				continue
			}
			results = append(results, res)
			stats.Resolved++

			if ii < len(b)-1 {
				_ = pace.Sleep(ctx, budget.Cap(p.opts.ItemDelay))
			}
		}

		if bi < len(batches)-1 {
			_ = pace.Sleep(ctx, budget.Cap(p.opts.BatchDelay))
		}
	}
	return finish(false)
}

func (p *Processor) resolveOne(ctx context.Context, link string) (res models.IframeResult, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic resolving %s: %v", link, r)
		}
	}()

	slug := site.Slug(link)
	if slug == "" {
		return res, fmt.Errorf("no slug in %s", link)
	}
	d, err := p.res.Resolve(ctx, slug)
	if err != nil {
		return res, err
	}
	return models.IframeResult{
		Code:  snippet.Render(d),
		URL:   link,
		Title: d.Title,
	}, nil
}
