package extract

import (
	"net/url"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/andybalholm/cascadia"

	"github.com/use-agent/iframer/site"
)

var (
	anchorSels = []cascadia.Selector{
		cascadia.MustCompile(`a[href*="/game/"]`),
		cascadia.MustCompile(".game-card a"),
		cascadia.MustCompile(".game-item a"),
		cascadia.MustCompile(".game-tile a"),
	}
	dataURLSel = cascadia.MustCompile("[data-game-url]")
	scriptSel  = cascadia.MustCompile("script")

	// "url": "...", "href":"...", "link" : "..."
	reScriptURL = regexp.MustCompile(`"(?:url|href|link)"\s*:\s*"([^"]+)"`)
)

// GameLinks collects candidate item links from html in discovery order:
// anchors and card links first, then data-game-url attributes, then JSON-like
// url/href/link fields inside inline scripts. Links are made absolute against
// baseURL and deduplicated. Loading placeholders are skipped.
func GameLinks(html, baseURL string) []string {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil
	}
	base, _ := url.Parse(baseURL)

	links := []string{}
	seen := make(map[string]struct{})
	add := func(href string) {
		href = strings.TrimSpace(href)
		if !strings.Contains(href, site.GamePathMarker) || strings.Contains(href, site.LoadingPlaceholder) {
			return
		}
		abs := resolve(base, href)
		if _, dup := seen[abs]; dup {
			return
		}
		seen[abs] = struct{}{}
		links = append(links, abs)
	}

	for _, sel := range anchorSels {
		doc.FindMatcher(sel).Each(func(_ int, s *goquery.Selection) {
			add(s.AttrOr("href", ""))
		})
	}
	doc.FindMatcher(dataURLSel).Each(func(_ int, s *goquery.Selection) {
		add(s.AttrOr("data-game-url", ""))
	})
	doc.FindMatcher(scriptSel).Each(func(_ int, s *goquery.Selection) {
		for _, m := range reScriptURL.FindAllStringSubmatch(s.Text(), -1) {
			add(unescapeJSON(m[1]))
		}
	})

	return links
}

// unescapeJSON undoes the escaping commonly found in serialized URLs.
func unescapeJSON(s string) string {
	s = strings.ReplaceAll(s, `\/`, `/`)
	s = strings.ReplaceAll(s, `\u002F`, `/`)
	return strings.ReplaceAll(s, `\u0026`, `&`)
}
