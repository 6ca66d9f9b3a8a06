// Package site models the URL conventions of the game-hosting site that gets
// special treatment: item pages, listing pages and embed URL templates.
package site

import (
	"fmt"
	"net/url"
	"regexp"
	"strconv"
	"strings"

	"github.com/use-agent/iframer/config"
)

// Kind is the classification of an input URL.
type Kind int

const (
	KindOther   Kind = iota // not the target site, or an unrecognised path
	KindItem                // /game/<slug>
	KindListing             // /new, /c/<x>, /t/<x>, /category/...
)

func (k Kind) String() string {
	switch k {
	case KindItem:
		return "item"
	case KindListing:
		return "listing"
	default:
		return "other"
	}
}

// GamePathMarker is the path segment every item page URL carries.
const GamePathMarker = "/game/"

// LoadingPlaceholder marks skeleton links rendered before the real listing.
const LoadingPlaceholder = "/game/loading"

var (
	reSlug      = regexp.MustCompile(`/game/([^/?#]+)`)
	reNewPage   = regexp.MustCompile(`^/new/\d+$`)
	reTagOrCat  = regexp.MustCompile(`^/[tc]/[^/]+(?:/\d+)?$`)
	rePageTail  = regexp.MustCompile(`^(.+?)/(\d+)$`)
	reWordStart = regexp.MustCompile(`\b[a-z]`)
)

// Site is the immutable description of the target site.
type Site struct {
	base          *url.URL
	root          string
	embedTemplate string
}

// New validates cfg and builds a Site.
func New(cfg config.SiteConfig) (*Site, error) {
	base, err := url.Parse(strings.TrimRight(cfg.BaseURL, "/"))
	if err != nil || base.Host == "" {
		return nil, fmt.Errorf("site: invalid base URL %q", cfg.BaseURL)
	}
	if !strings.Contains(cfg.EmbedTemplate, "{slug}") {
		return nil, fmt.Errorf("site: embed template %q has no {slug}", cfg.EmbedTemplate)
	}
	return &Site{
		base:          base,
		root:          base.Scheme + "://" + base.Host,
		embedTemplate: cfg.EmbedTemplate,
	}, nil
}

// Root returns the site origin with a trailing slash, used as Referer.
func (s *Site) Root() string {
	return s.root + "/"
}

// Owns reports whether u is served by the target site. A leading "www." is
// ignored on both sides.
func (s *Site) Owns(u *url.URL) bool {
	return bareHost(u.Host) == bareHost(s.base.Host)
}

// Classify places u into exactly one branch, first match wins.
func (s *Site) Classify(u *url.URL) Kind {
	if !s.Owns(u) {
		return KindOther
	}
	if strings.HasPrefix(u.Path, GamePathMarker) && Slug(u.String()) != "" {
		return KindItem
	}
	if IsListingPath(u.Path) {
		return KindListing
	}
	return KindOther
}

// IsListingPath reports whether path is a category, tag or "new" listing, with
// or without a page-number suffix.
func IsListingPath(path string) bool {
	switch {
	case path == "/new", reNewPage.MatchString(path):
		return true
	case strings.Contains(path, "/category/"):
		return true
	case reTagOrCat.MatchString(path):
		return true
	}
	return false
}

// Slug returns the item identifier of an item URL, or "".
func Slug(rawURL string) string {
	m := reSlug.FindStringSubmatch(rawURL)
	if m == nil {
		return ""
	}
	return m[1]
}

// EmbedURL is the constructed, directly playable URL for slug.
func (s *Site) EmbedURL(slug string) string {
	return strings.ReplaceAll(s.embedTemplate, "{slug}", url.PathEscape(slug))
}

// RedirectURL is the site's embed redirector for slug.
func (s *Site) RedirectURL(slug string) string {
	return s.root + "/embed/" + url.PathEscape(slug)
}

// GameURL is the canonical item page for slug.
func (s *Site) GameURL(slug string) string {
	return s.root + GamePathMarker + url.PathEscape(slug)
}

// Absolute resolves a site-relative href against the site root.
func (s *Site) Absolute(href string) string {
	if strings.HasPrefix(href, "http://") || strings.HasPrefix(href, "https://") {
		return href
	}
	ref, err := url.Parse(href)
	if err != nil {
		return s.root + href
	}
	return s.base.ResolveReference(ref).String()
}

// TitleFromSlug turns "super-bike-racer" into "Super Bike Racer".
func TitleFromSlug(slug string) string {
	return reWordStart.ReplaceAllStringFunc(strings.ReplaceAll(slug, "-", " "), strings.ToUpper)
}

// SplitPage splits a trailing "/<n>" page number off rawURL. ok is false when
// there is none, in which case base is rawURL unchanged.
func SplitPage(rawURL string) (base string, page int, ok bool) {
	m := rePageTail.FindStringSubmatch(rawURL)
	if m == nil {
		return rawURL, 0, false
	}
	n, err := strconv.Atoi(m[2])
	if err != nil {
		return rawURL, 0, false
	}
	return m[1], n, true
}

// PageURL returns the URL of page n of a listing whose bare URL is base. Page 1
// is the bare URL itself.
func PageURL(base string, n int) string {
	if n <= 1 {
		return base
	}
	return strings.TrimRight(base, "/") + "/" + strconv.Itoa(n)
}

func bareHost(host string) string {
	host = strings.ToLower(host)
	return strings.TrimPrefix(host, "www.")
}
