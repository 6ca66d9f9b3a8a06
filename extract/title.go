package extract

import (
	nurl "net/url"
	"strings"

	readability "github.com/go-shiori/go-readability"
	"golang.org/x/net/html"
)

// PageTitle returns the document title of rawHTML. Readability's title is
// preferred since it strips site-name decoration; the raw <title> text is the
// fallback. Returns "" when neither is present.
func PageTitle(rawHTML, pageURL string) string {
	if u, err := nurl.Parse(pageURL); err == nil {
		if article, err := readability.FromReader(strings.NewReader(rawHTML), u); err == nil {
			if t := strings.TrimSpace(article.Title); t != "" {
				return t
			}
		}
	}
	return rawTitle(rawHTML)
}

// rawTitle returns the text of the first <title> element.
func rawTitle(rawHTML string) string {
	tokenizer := html.NewTokenizer(strings.NewReader(rawHTML))
	for {
		switch tokenizer.Next() {
		case html.ErrorToken:
			return ""
		case html.StartTagToken:
			tn, _ := tokenizer.TagName()
			if string(tn) != "title" {
				continue
			}
			if tokenizer.Next() == html.TextToken {
				return strings.TrimSpace(string(tokenizer.Text()))
			}
			return ""
		}
	}
}
