// Package extract pulls embeddable content and candidate item links out of raw
// HTML. Every function here is pure: the same input yields the same output.
package extract

import (
	"iter"
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/andybalholm/cascadia"
)

const (
	DefaultWidth  = "100%"
	DefaultHeight = "500px"
)

// Iframe is one <iframe> found on a page, with src made absolute.
type Iframe struct {
	Src    string
	Width  string
	Height string
}

var iframeSel = cascadia.MustCompile("iframe[src]")

// Iframes returns a lazy sequence over the iframes of html. Relative src values
// are resolved against baseURL. The sequence re-parses on every range, so it
// can be consumed any number of times.
func Iframes(html, baseURL string) iter.Seq[Iframe] {
	return func(yield func(Iframe) bool) {
		doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
		if err != nil {
			return
		}
		base, _ := url.Parse(baseURL)

		matches := doc.FindMatcher(iframeSel)
		for i := range matches.Length() {
			s := matches.Eq(i)
			src := strings.TrimSpace(s.AttrOr("src", ""))
			if src == "" {
				continue
			}
			frame := Iframe{
				Src:    resolve(base, src),
				Width:  attrOr(s, "width", DefaultWidth),
				Height: attrOr(s, "height", DefaultHeight),
			}
			if !yield(frame) {
				return
			}
		}
	}
}

// CollectIframes drains Iframes into a slice. The result is never nil.
func CollectIframes(html, baseURL string) []Iframe {
	out := []Iframe{}
	for f := range Iframes(html, baseURL) {
		out = append(out, f)
	}
	return out
}

func attrOr(s *goquery.Selection, name, fallback string) string {
	if v := strings.TrimSpace(s.AttrOr(name, "")); v != "" {
		return v
	}
	return fallback
}

// resolve joins ref onto base. With no usable base, ref is returned as-is.
func resolve(base *url.URL, ref string) string {
	if base == nil {
		return ref
	}
	u, err := url.Parse(ref)
	if err != nil {
		return ref
	}
	return base.ResolveReference(u).String()
}
