// Package snippet renders <iframe> markup for resolved embeds, for iframes
// lifted off generic pages, and for hand-authored parameters.
package snippet

import (
	"errors"
	"fmt"
	"html"
	"net/url"
	"strings"

	"github.com/use-agent/iframer/extract"
	"github.com/use-agent/iframer/resolver"
)

const embedAllow = "autoplay; fullscreen; focus-without-user-activation *;"

// Render is the markup for a resolved game embed.
func Render(d resolver.EmbedDescriptor) string {
	return fmt.Sprintf(`<iframe src="%s" width="%s" height="%s" scrolling="no" frameborder="0" allow="%s" allowfullscreen></iframe>`,
		esc(d.EmbedURL), esc(d.Width), esc(d.Height), embedAllow)
}

// RenderGeneric is the markup for an iframe found on an arbitrary page.
func RenderGeneric(f extract.Iframe) string {
	return fmt.Sprintf(`<iframe src="%s" width="%s" height="%s" scrolling="no" frameborder="0" allowfullscreen></iframe>`,
		esc(f.Src), esc(f.Width), esc(f.Height))
}

// Params are the inputs of a hand-authored snippet.
type Params struct {
	URL       string
	Width     string // default "100%"
	Height    string // default "500"
	Scrolling string // yes, no (default) or auto
	Border    string // none (default) or solid
}

var (
	ErrMissingURL = errors.New("snippet: url is required")
	ErrInvalidURL = errors.New("snippet: url must be an absolute http(s) URL")
)

// Generate renders a hand-authored snippet. Empty fields take their defaults.
func Generate(p Params) (string, error) {
	p.URL = strings.TrimSpace(p.URL)
	if p.URL == "" {
		return "", ErrMissingURL
	}
	if u, err := url.Parse(p.URL); err != nil || u.Host == "" || (u.Scheme != "http" && u.Scheme != "https") {
		return "", ErrInvalidURL
	}
	if p.Width == "" {
		p.Width = "100%"
	}
	if p.Height == "" {
		p.Height = "500"
	}

	switch p.Scrolling {
	case "":
		p.Scrolling = "no"
	case "yes", "no", "auto":
	default:
		return "", fmt.Errorf("snippet: scrolling must be yes, no or auto, got %q", p.Scrolling)
	}

	var style string
	switch p.Border {
	case "", "none":
		style = `style="border: none;"`
	case "solid":
		style = `style="border: 1px solid #ccc;"`
	default:
		return "", fmt.Errorf("snippet: border must be none or solid, got %q", p.Border)
	}

	return fmt.Sprintf(`<iframe src="%s" width="%s" height="%s" scrolling="%s" %s allowfullscreen></iframe>`,
		esc(p.URL), esc(p.Width), esc(p.Height), p.Scrolling, style), nil
}

func esc(s string) string {
	return html.EscapeString(s)
}
