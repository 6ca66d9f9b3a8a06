package listing

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/use-agent/iframer/config"
	"github.com/use-agent/iframer/fetcher"
)

const root = "https://games.test"

// stubFetcher serves canned bodies keyed by URL and records every request.
type stubFetcher struct {
	mu    sync.Mutex
	pages map[string]string
	fail  map[string]error
	calls []string
}

func (s *stubFetcher) Fetch(_ context.Context, rawURL string, _ fetcher.Options) (*fetcher.Outcome, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls = append(s.calls, rawURL)
	if err, ok := s.fail[rawURL]; ok {
		return nil, err
	}
	body, ok := s.pages[rawURL]
	if !ok {
		return nil, &fetcher.Error{Kind: fetcher.KindHTTP, URL: rawURL, StatusCode: 404}
	}
	return &fetcher.Outcome{StatusCode: 200, Body: []byte(body), FinalURL: rawURL}, nil
}

func listingPage(slugs ...string) string {
	var b strings.Builder
	b.WriteString("<!DOCTYPE html><html><body>")
	for _, s := range slugs {
		fmt.Fprintf(&b, `<div class="game-card"><a href="/game/%s">%s</a></div>`, s, s)
	}
	b.WriteString("</body></html>")
	return b.String()
}

func links(slugs ...string) []string {
	out := make([]string, len(slugs))
	for i, s := range slugs {
		out[i] = root + "/game/" + s
	}
	return out
}

func newPaginator(f Fetcher, maxPages int) *Paginator {
	return New(f, config.ListingConfig{MaxPages: maxPages, PageDelay: time.Millisecond, FallbackThreshold: 5})
}

func TestListCandidates_StopsOnPageWithNothingNew(t *testing.T) {
	f := &stubFetcher{pages: map[string]string{
		root + "/new":   listingPage("a", "b", "c"),
		root + "/new/2": listingPage("c", "d", "e"),
		root + "/new/3": listingPage("a", "d"),
		root + "/new/4": listingPage("z"),
	}}

	got, err := newPaginator(f, 6).ListCandidates(context.Background(), root+"/new")
	require.NoError(t, err)
	assert.Equal(t, links("a", "b", "c", "d", "e"), got)
	assert.Equal(t, []string{root + "/new", root + "/new/2", root + "/new/3"}, f.calls)
}

func TestListCandidates_PageCap(t *testing.T) {
	f := &stubFetcher{pages: map[string]string{}}
	for n := 1; n <= 10; n++ {
		url := root + "/c/action"
		if n > 1 {
			url = fmt.Sprintf("%s/%d", url, n)
		}
		f.pages[url] = listingPage(fmt.Sprintf("g%d-1", n), fmt.Sprintf("g%d-2", n))
	}

	got, err := newPaginator(f, 4).ListCandidates(context.Background(), root+"/c/action")
	require.NoError(t, err)
	assert.Len(t, got, 8)
	assert.Len(t, f.calls, 4)
	assert.Equal(t, root+"/game/g1-1", got[0])
	assert.Equal(t, root+"/game/g4-2", got[7])
}

func TestListCandidates_ExplicitPage(t *testing.T) {
	f := &stubFetcher{pages: map[string]string{
		root + "/t/io/3": listingPage("x", "y"),
	}}

	got, err := newPaginator(f, 6).ListCandidates(context.Background(), root+"/t/io/3")
	require.NoError(t, err)
	assert.Equal(t, links("x", "y"), got)
	assert.Equal(t, []string{root + "/t/io/3"}, f.calls)
}

func TestListCandidates_FirstPageFailure(t *testing.T) {
	f := &stubFetcher{fail: map[string]error{
		root + "/new": &fetcher.Error{Kind: fetcher.KindNetwork, URL: root + "/new", Err: fmt.Errorf("refused")},
	}}

	_, err := newPaginator(f, 6).ListCandidates(context.Background(), root+"/new")
	require.Error(t, err)
	assert.True(t, fetcher.IsKind(err, fetcher.KindNetwork))
}

func TestListCandidates_LaterPageFailureKeepsCollected(t *testing.T) {
	f := &stubFetcher{
		pages: map[string]string{root + "/new": listingPage("a", "b")},
		fail: map[string]error{
			root + "/new/2": &fetcher.Error{Kind: fetcher.KindHTTP, URL: root + "/new/2", StatusCode: 503},
		},
	}

	got, err := newPaginator(f, 6).ListCandidates(context.Background(), root+"/new")
	require.NoError(t, err)
	assert.Equal(t, links("a", "b"), got)
}

func TestListCandidates_Cancelled(t *testing.T) {
	f := &stubFetcher{pages: map[string]string{
		root + "/new":   listingPage("a"),
		root + "/new/2": listingPage("b"),
	}}
	p := New(f, config.ListingConfig{MaxPages: 6, PageDelay: time.Hour})

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err := p.ListCandidates(ctx, root+"/new")
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestSinglePage_NonHTML(t *testing.T) {
	f := &stubFetcher{pages: map[string]string{
		root + "/new": `{"games":["/game/a"]}`,
	}}

	got, err := newPaginator(f, 6).SinglePage(context.Background(), root+"/new", 1)
	require.NoError(t, err)
	assert.NotNil(t, got)
	assert.Empty(t, got)
}

func TestLinkSet(t *testing.T) {
	s := NewLinkSet()
	assert.True(t, s.Add("b"))
	assert.True(t, s.Add("a"))
	assert.False(t, s.Add("b"))
	assert.Equal(t, 1, s.AddAll([]string{"a", "c", "b"}))
	assert.Equal(t, 3, s.Len())
	assert.Equal(t, []string{"b", "a", "c"}, s.Links())
	assert.NotNil(t, NewLinkSet().Links())
}
