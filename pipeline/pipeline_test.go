package pipeline

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/use-agent/iframer/fakesite"
	"github.com/use-agent/iframer/models"
)

func newPipeline(t *testing.T, fs *fakesite.Site) *Pipeline {
	t.Helper()
	cfg := fs.Config()
	cfg.Fetch.MaxAttempts = 2
	p, err := NewFromConfig(cfg)
	require.NoError(t, err)
	return p
}

func extractReq(url string, offset, limit int) models.ExtractRequest {
	return models.ExtractRequest{SourceURL: url, Offset: offset, Limit: limit}
}

func TestExtract_ItemPage(t *testing.T) {
	fs := fakesite.New(t, fakesite.Options{})
	p := newPipeline(t, fs)

	resp, err := p.Extract(context.Background(), extractReq(fs.URL+"/game/foo", 0, 60))
	require.NoError(t, err)
	require.Len(t, resp.Iframes, 1)
	require.NotNil(t, resp.Total)
	assert.Equal(t, 1, *resp.Total)
	assert.Contains(t, resp.Iframes[0].Code, fs.EmbedURL("foo"))
	assert.Equal(t, fs.URL+"/game/foo", resp.Iframes[0].URL)
	assert.Equal(t, "Foo", resp.Iframes[0].Title)
}

func TestExtract_ListingPageSlicesSinglePage(t *testing.T) {
	fs := fakesite.New(t, fakesite.Options{
		Listings: map[string][][]string{"/new": {fakesite.Slugs("g", 45), fakesite.Slugs("h", 10)}},
	})
	p := newPipeline(t, fs)

	resp, err := p.Extract(context.Background(), extractReq(fs.URL+"/new", 0, 20))
	require.NoError(t, err)
	require.NotNil(t, resp.Total)
	assert.Equal(t, 45, *resp.Total)
	assert.LessOrEqual(t, len(resp.Iframes), 20)
	assert.Equal(t, fs.URL+"/game/g-0", resp.Iframes[0].URL)
	assert.Zero(t, fs.Hits("/new/2"))
}

func TestExtract_ListingSliceIsStable(t *testing.T) {
	fs := fakesite.New(t, fakesite.Options{
		Listings: map[string][][]string{"/c/action": {fakesite.Slugs("g", 12)}},
	})
	p := newPipeline(t, fs)

	req := extractReq(fs.URL+"/c/action", 5, 4)
	first, err := p.Extract(context.Background(), req)
	require.NoError(t, err)
	second, err := p.Extract(context.Background(), req)
	require.NoError(t, err)

	assert.Equal(t, first, second)
	require.Len(t, first.Iframes, 4)
	assert.Equal(t, fs.URL+"/game/g-5", first.Iframes[0].URL)
	assert.Equal(t, fs.URL+"/game/g-8", first.Iframes[3].URL)
}

func TestExtract_ListingAllWalksPages(t *testing.T) {
	fs := fakesite.New(t, fakesite.Options{
		Listings: map[string][][]string{"/new": {
			fakesite.Slugs("a", 5),
			append(fakesite.Slugs("a", 2), fakesite.Slugs("b", 5)...),
			fakesite.Slugs("c", 3),
		}},
	})
	p := newPipeline(t, fs)

	req := models.ExtractRequest{SourceURL: fs.URL + "/new", Limit: models.Unbounded, All: true}
	resp, err := p.Extract(context.Background(), req)
	require.NoError(t, err)
	require.NotNil(t, resp.Total)
	assert.Equal(t, 13, *resp.Total)
	assert.Len(t, resp.Iframes, 13)
	assert.Equal(t, 1, fs.Hits("/new/4"))
	assert.Zero(t, fs.Hits("/new/5"))
}

func TestExtract_ListingAllRespectsPageCap(t *testing.T) {
	pages := make([][]string, 10)
	for i := range pages {
		pages[i] = fakesite.Slugs(string(rune('a'+i)), 2)
	}
	fs := fakesite.New(t, fakesite.Options{Listings: map[string][][]string{"/t/io": pages}})
	cfg := fs.Config()
	cfg.Listing.MaxPages = 6
	p, err := NewFromConfig(cfg)
	require.NoError(t, err)

	resp, err := p.Extract(context.Background(), models.ExtractRequest{
		SourceURL: fs.URL + "/t/io", Offset: 0, Limit: 3, All: true,
	})
	require.NoError(t, err)
	assert.Equal(t, 12, *resp.Total)
	assert.Len(t, resp.Iframes, 3)
	assert.Equal(t, 1, fs.Hits("/t/io/6"))
	assert.Zero(t, fs.Hits("/t/io/7"))
}

func TestExtract_SparseNumberedPageFallsBackToFirst(t *testing.T) {
	fs := fakesite.New(t, fakesite.Options{
		Listings: map[string][][]string{"/c/puzzle": {fakesite.Slugs("p", 8), fakesite.Slugs("q", 2)}},
	})
	p := newPipeline(t, fs)

	resp, err := p.Extract(context.Background(), extractReq(fs.URL+"/c/puzzle/2", 0, 60))
	require.NoError(t, err)
	assert.Equal(t, 8, *resp.Total)
	assert.Equal(t, fs.URL+"/game/p-0", resp.Iframes[0].URL)
	assert.Equal(t, 1, fs.Hits("/c/puzzle/2"))
	assert.Equal(t, 1, fs.Hits("/c/puzzle"))
}

func TestExtract_OffsetPastEnd(t *testing.T) {
	fs := fakesite.New(t, fakesite.Options{
		Listings: map[string][][]string{"/new": {fakesite.Slugs("g", 3)}},
	})
	p := newPipeline(t, fs)

	resp, err := p.Extract(context.Background(), extractReq(fs.URL+"/new", 10, 5))
	require.NoError(t, err)
	assert.Empty(t, resp.Iframes)
	require.NotNil(t, resp.Total)
	assert.Equal(t, 3, *resp.Total)
	assert.Nil(t, resp.TotalAvailable)
}

func TestExtract_GenericPage(t *testing.T) {
	fs := fakesite.New(t, fakesite.Options{Pages: map[string]string{
		"/blog/post": `<!DOCTYPE html><html><head><title>Embeds Galore</title></head><body>
			<iframe src="/player/1" width="640" height="360"></iframe>
			<iframe src="https://video.test/2"></iframe></body></html>`,
	}})
	p := newPipeline(t, fs)

	resp, err := p.Extract(context.Background(), extractReq(fs.URL+"/blog/post", 0, 60))
	require.NoError(t, err)
	require.Len(t, resp.Iframes, 2)
	assert.Equal(t, 2, *resp.Total)
	assert.Equal(t, fs.URL+"/player/1", resp.Iframes[0].URL)
	assert.Equal(t, `<iframe src="`+fs.URL+`/player/1" width="640" height="360" scrolling="no" frameborder="0" allowfullscreen></iframe>`, resp.Iframes[0].Code)
	assert.Equal(t, "Embeds Galore", resp.Iframes[0].Title)
}

func TestExtract_GenericPageWithoutIframes(t *testing.T) {
	fs := fakesite.New(t, fakesite.Options{Pages: map[string]string{
		"/about": `<!DOCTYPE html><html><body><p>nothing to embed</p></body></html>`,
	}})
	p := newPipeline(t, fs)

	resp, err := p.Extract(context.Background(), extractReq(fs.URL+"/about", 0, 60))
	require.NoError(t, err)
	assert.NotNil(t, resp.Iframes)
	assert.Empty(t, resp.Iframes)
	assert.Nil(t, resp.Total)
	require.NotNil(t, resp.TotalAvailable)
	assert.Zero(t, *resp.TotalAvailable)
}

func TestExtract_UpstreamFailure(t *testing.T) {
	fs := fakesite.New(t, fakesite.Options{Broken: map[string]bool{"/down": true, "/new": true}})
	p := newPipeline(t, fs)

	for _, path := range []string{"/down", "/new"} {
		resp, err := p.Extract(context.Background(), extractReq(fs.URL+path, 0, 60))
		require.Error(t, err, path)
		assert.Nil(t, resp)

		var apiErr *models.APIError
		require.True(t, errors.As(err, &apiErr))
		assert.Equal(t, models.ErrCodeUpstreamFailed, apiErr.Code)
		assert.Equal(t, ExtractFailedMessage, apiErr.Message)
		assert.Contains(t, apiErr.Details(), "500")
		assert.Equal(t, 2, fs.Hits(path), "retried up to MaxAttempts")
	}
}

func TestExtract_InvalidInput(t *testing.T) {
	fs := fakesite.New(t, fakesite.Options{})
	p := newPipeline(t, fs)

	for _, raw := range []string{"", "not a url", "ftp://x.test/file", "/relative/path"} {
		_, err := p.Extract(context.Background(), extractReq(raw, 0, 60))
		var apiErr *models.APIError
		require.True(t, errors.As(err, &apiErr), raw)
		assert.Equal(t, models.ErrCodeInvalidInput, apiErr.Code, raw)
	}
}
