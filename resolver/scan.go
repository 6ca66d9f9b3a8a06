package resolver

import (
	"errors"
	"net/url"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/andybalholm/cascadia"
	"github.com/buger/jsonparser"

	"github.com/use-agent/iframer/extract"
)

// Field names searched in embedded page state, in priority order.
var embedFields = []string{"embedUrl", "gameUrl", "playUrl", "iframeUrl", "embed_url", "game_url"}

const maxJSONDepth = 32

var (
	jsonScriptSel = cascadia.MustCompile(`script#__NEXT_DATA__, script[type="application/json"], script[type="application/ld+json"]`)
	scriptSel     = cascadia.MustCompile("script")

	// window.__APOLLO_STATE__ = {...}, __INITIAL_DATA__ = {...}
	reStateAssign = regexp.MustCompile(`(?:window\.)?__[A-Za-z0-9_]+__\s*=\s*`)
)

// metaSels are social-preview tags that point at a player, in priority order.
var metaSels = []cascadia.Selector{
	cascadia.MustCompile(`meta[property="og:video:secure_url"]`),
	cascadia.MustCompile(`meta[property="og:video:url"]`),
	cascadia.MustCompile(`meta[property="og:video"]`),
	cascadia.MustCompile(`meta[name="twitter:player"], meta[property="twitter:player"]`),
}

type attrSel struct {
	sel  cascadia.Selector
	attr string
}

// containerSels are elements whose attributes carry the playable URL.
var containerSels = []attrSel{
	{cascadia.MustCompile("[data-embed-url]"), "data-embed-url"},
	{cascadia.MustCompile("[data-game-src]"), "data-game-src"},
	{cascadia.MustCompile(".game-container [data-src], #game-container [data-src], .game-frame [data-src], #game-frame [data-src]"), "data-src"},
}

// scriptPatterns are tried against inline script text in order; the first
// capture group (or the whole match if there is none) is the candidate.
var scriptPatterns = []*regexp.Regexp{
	regexp.MustCompile(`"(?:embedUrl|embed_url)"\s*:\s*"([^"]+)"`),
	regexp.MustCompile(`"(?:gameUrl|game_url|playUrl|iframeUrl)"\s*:\s*"([^"]+)"`),
	regexp.MustCompile(`(?:embedUrl|gameUrl|iframeSrc)\s*[=:]\s*['"]([^'"]+)['"]`),
	regexp.MustCompile(`https?://games\.[^"'\s<>\\]+/index\.html`),
}

var anchorSel = cascadia.MustCompile("a[href]")

var reEmbedHref = regexp.MustCompile(`/(?:embed|play)/|//games\.`)

// scanPageData looks for an embed URL inside structured state embedded in the
// page: JSON script blocks and __STATE__-style assignments.
func scanPageData(doc *goquery.Document) string {
	blobs := stateBlobs(doc)
	for _, field := range embedFields {
		for _, blob := range blobs {
			if v := findString(blob, field, 0); v != "" {
				return v
			}
		}
	}
	return ""
}

func stateBlobs(doc *goquery.Document) [][]byte {
	var blobs [][]byte
	doc.FindMatcher(jsonScriptSel).Each(func(_ int, s *goquery.Selection) {
		if text := strings.TrimSpace(s.Text()); text != "" {
			blobs = append(blobs, []byte(text))
		}
	})
	doc.FindMatcher(scriptSel).Each(func(_ int, s *goquery.Selection) {
		text := s.Text()
		for _, loc := range reStateAssign.FindAllStringIndex(text, -1) {
			if obj := balancedObject(text[loc[1]:]); obj != "" {
				blobs = append(blobs, []byte(obj))
			}
		}
	})
	return blobs
}

// balancedObject returns the leading {...} of s, honouring string literals, or
// "" if s does not start with a complete object.
func balancedObject(s string) string {
	if !strings.HasPrefix(s, "{") {
		return ""
	}
	depth := 0
	inString := false
	escaped := false
	for i := 0; i < len(s); i++ {
		c := s[i]
		switch {
		case escaped:
			escaped = false
		case inString && c == '\\':
			escaped = true
		case c == '"':
			inString = !inString
		case inString:
		case c == '{':
			depth++
		case c == '}':
			depth--
			if depth == 0 {
				return s[:i+1]
			}
		}
	}
	return ""
}

var errFound = errors.New("found")

// findString walks a JSON document depth-first and returns the first http(s)
// string stored under key.
func findString(data []byte, key string, depth int) string {
	if depth > maxJSONDepth {
		return ""
	}
	var found string
	visit := func(k []byte, value []byte, vt jsonparser.ValueType) bool {
		if k != nil && vt == jsonparser.String && string(k) == key {
			if s, err := jsonparser.ParseString(value); err == nil && isHTTP(s) {
				found = s
				return true
			}
		}
		if vt == jsonparser.Object || vt == jsonparser.Array {
			if s := findString(value, key, depth+1); s != "" {
				found = s
				return true
			}
		}
		return false
	}

	_, vt, _, err := jsonparser.Get(data)
	if err != nil {
		return ""
	}
	switch vt {
	case jsonparser.Object:
		_ = jsonparser.ObjectEach(data, func(k, v []byte, vt jsonparser.ValueType, _ int) error {
			if visit(k, v, vt) {
				return errFound
			}
			return nil
		})
	case jsonparser.Array:
		_, _ = jsonparser.ArrayEach(data, func(v []byte, vt jsonparser.ValueType, _ int, _ error) {
			if found == "" {
				visit(nil, v, vt)
			}
		})
	}
	return found
}

// scanMarkup runs the markup heuristics in order: player meta tags, URL-bearing
// containers, script patterns, the first iframe, and finally an embed-looking
// anchor. Relative candidates are resolved against pageURL.
func scanMarkup(doc *goquery.Document, rawHTML, pageURL string) string {
	base, _ := url.Parse(pageURL)
	accept := func(v string) string {
		v = strings.TrimSpace(v)
		if v == "" {
			return ""
		}
		if base != nil {
			if ref, err := url.Parse(v); err == nil {
				v = base.ResolveReference(ref).String()
			}
		}
		if !isHTTP(v) || v == pageURL {
			return ""
		}
		return v
	}

	for _, sel := range metaSels {
		if v := accept(doc.FindMatcher(sel).First().AttrOr("content", "")); v != "" {
			return v
		}
	}

	for _, c := range containerSels {
		if v := accept(doc.FindMatcher(c.sel).First().AttrOr(c.attr, "")); v != "" {
			return v
		}
	}

	var scripts []string
	doc.FindMatcher(scriptSel).Each(func(_ int, s *goquery.Selection) {
		scripts = append(scripts, s.Text())
	})
	for _, re := range scriptPatterns {
		for _, text := range scripts {
			m := re.FindStringSubmatch(text)
			if m == nil {
				continue
			}
			candidate := m[0]
			if len(m) > 1 {
				candidate = m[1]
			}
			if v := accept(unescape(candidate)); v != "" {
				return v
			}
		}
	}

	for frame := range extract.Iframes(rawHTML, pageURL) {
		if v := accept(frame.Src); v != "" {
			return v
		}
	}

	var anchor string
	doc.FindMatcher(anchorSel).EachWithBreak(func(_ int, s *goquery.Selection) bool {
		href := s.AttrOr("href", "")
		if !reEmbedHref.MatchString(href) {
			return true
		}
		anchor = accept(href)
		return anchor == ""
	})
	return anchor
}

func isHTTP(s string) bool {
	return strings.HasPrefix(s, "https://") || strings.HasPrefix(s, "http://")
}

func unescape(s string) string {
	s = strings.ReplaceAll(s, `\/`, `/`)
	s = strings.ReplaceAll(s, `\u002F`, `/`)
	return strings.ReplaceAll(s, `\u0026`, `&`)
}
