package api

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/use-agent/iframer/api/middleware"
	"github.com/use-agent/iframer/config"
	"github.com/use-agent/iframer/fakesite"
	"github.com/use-agent/iframer/models"
	"github.com/use-agent/iframer/pipeline"
)

type testAPI struct {
	site   *fakesite.Site
	server *httptest.Server
}

func newTestAPI(t *testing.T, opts fakesite.Options, tweak func(*config.Config)) *testAPI {
	t.Helper()
	fs := fakesite.New(t, opts)
	cfg := fs.Config()
	cfg.Server.Mode = "test"
	cfg.Fetch.MaxAttempts = 2
	if tweak != nil {
		tweak(cfg)
	}
	p, err := pipeline.NewFromConfig(cfg)
	require.NoError(t, err)

	done := make(chan struct{})
	srv := httptest.NewServer(NewRouter(p, cfg, time.Now(), done))
	t.Cleanup(func() {
		srv.Close()
		close(done)
	})
	return &testAPI{site: fs, server: srv}
}

func (a *testAPI) get(t *testing.T, path string, q url.Values) (*http.Response, map[string]any) {
	t.Helper()
	u := a.server.URL + path
	if len(q) > 0 {
		u += "?" + q.Encode()
	}
	resp, err := http.Get(u)
	require.NoError(t, err)
	defer resp.Body.Close()

	var body map[string]any
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	return resp, body
}

func decodeExtract(t *testing.T, body map[string]any) models.ExtractResponse {
	t.Helper()
	raw, err := json.Marshal(body)
	require.NoError(t, err)
	var out models.ExtractResponse
	require.NoError(t, json.Unmarshal(raw, &out))
	return out
}

func TestExtract_ItemURL(t *testing.T) {
	a := newTestAPI(t, fakesite.Options{}, nil)

	resp, body := a.get(t, "/api/extract", url.Values{"url": {a.site.URL + "/game/foo"}})
	require.Equal(t, http.StatusOK, resp.StatusCode)

	out := decodeExtract(t, body)
	require.Len(t, out.Iframes, 1)
	assert.Equal(t, 1, *out.Total)
	assert.Equal(t, a.site.URL+"/game/foo", out.Iframes[0].URL)
	assert.Equal(t,
		`<iframe src="`+a.site.EmbedURL("foo")+`" width="100%" height="600" scrolling="no" frameborder="0" allow="autoplay; fullscreen; focus-without-user-activation *;" allowfullscreen></iframe>`,
		out.Iframes[0].Code)
}

func TestExtract_ListingDefaultLimit(t *testing.T) {
	a := newTestAPI(t, fakesite.Options{
		Listings: map[string][][]string{"/new": {fakesite.Slugs("g", 45)}},
	}, func(cfg *config.Config) { cfg.Server.DefaultLimit = 20 })

	resp, body := a.get(t, "/api/extract", url.Values{"url": {a.site.URL + "/new"}})
	require.Equal(t, http.StatusOK, resp.StatusCode)

	out := decodeExtract(t, body)
	assert.Equal(t, 45, *out.Total)
	assert.Len(t, out.Iframes, 20)
	assert.Equal(t, a.site.URL+"/game/g-19", out.Iframes[19].URL)
}

func TestExtract_AllWalksListing(t *testing.T) {
	a := newTestAPI(t, fakesite.Options{
		Listings: map[string][][]string{"/c/racing": {fakesite.Slugs("r", 5), fakesite.Slugs("s", 4)}},
	}, nil)

	resp, body := a.get(t, "/api/extract", url.Values{
		"url": {a.site.URL + "/c/racing"},
		"all": {"true"},
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)

	out := decodeExtract(t, body)
	assert.Equal(t, 9, *out.Total)
	assert.Len(t, out.Iframes, 9)
}

func TestExtract_GenericWithoutIframes(t *testing.T) {
	a := newTestAPI(t, fakesite.Options{Pages: map[string]string{
		"/plain": `<!DOCTYPE html><html><body>hello</body></html>`,
	}}, nil)

	resp, body := a.get(t, "/api/extract", url.Values{"url": {a.site.URL + "/plain"}})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, []any{}, body["iframes"])
	assert.Equal(t, float64(0), body["totalAvailable"])
	assert.NotContains(t, body, "total")
}

func TestExtract_UpstreamFailure(t *testing.T) {
	a := newTestAPI(t, fakesite.Options{Broken: map[string]bool{"/down": true}}, nil)

	resp, body := a.get(t, "/api/extract", url.Values{"url": {a.site.URL + "/down"}})
	assert.Equal(t, http.StatusInternalServerError, resp.StatusCode)
	assert.Equal(t, pipeline.ExtractFailedMessage, body["error"])
	assert.Contains(t, body["details"], "500")
	assert.NotContains(t, body, "iframes")
}

func TestExtract_BadInput(t *testing.T) {
	a := newTestAPI(t, fakesite.Options{}, nil)

	tests := []struct {
		name  string
		query url.Values
		want  string
	}{
		{"missing url", url.Values{}, "URL is required"},
		{"relative url", url.Values{"url": {"/game/foo"}}, "URL must be an absolute http(s) URL"},
		{"bad offset", url.Values{"url": {"https://x.test/"}, "offset": {"-1"}}, "offset must be a non-negative integer"},
		{"bad limit", url.Values{"url": {"https://x.test/"}, "limit": {"ten"}}, "limit must be a non-negative integer"},
		{"bad all", url.Values{"url": {"https://x.test/"}, "all": {"maybe"}}, "all must be true or false"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp, body := a.get(t, "/api/extract", tt.query)
			assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
			assert.Equal(t, tt.want, body["error"])
			assert.Equal(t, models.ErrCodeInvalidInput, body["code"])
		})
	}
}

func TestGenerate(t *testing.T) {
	a := newTestAPI(t, fakesite.Options{}, nil)

	resp, body := a.get(t, "/api/generate", url.Values{
		"url":    {"https://video.test/v/1"},
		"height": {"360"},
		"border": {"solid"},
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)

	out := decodeExtract(t, body)
	require.Len(t, out.Iframes, 1)
	assert.Equal(t, 1, *out.Total)
	assert.Equal(t, "https://video.test/v/1", out.Iframes[0].URL)
	assert.Equal(t,
		`<iframe src="https://video.test/v/1" width="100%" height="360" scrolling="no" style="border: 1px solid #ccc;" allowfullscreen></iframe>`,
		out.Iframes[0].Code)

	resp, body = a.get(t, "/api/generate", nil)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Equal(t, "URL is required", body["error"])

	resp, _ = a.get(t, "/api/generate", url.Values{"url": {"https://video.test/"}, "scrolling": {"sideways"}})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestHealth(t *testing.T) {
	a := newTestAPI(t, fakesite.Options{}, nil)

	resp, body := a.get(t, "/api/health", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "healthy", body["status"])
	assert.NotEmpty(t, body["version"])
}

func TestRateLimit(t *testing.T) {
	a := newTestAPI(t, fakesite.Options{}, func(cfg *config.Config) {
		cfg.RateLimit.Enabled = true
		cfg.RateLimit.RequestsPerSecond = 0.001
		cfg.RateLimit.Burst = 2
	})

	q := url.Values{"url": {"https://video.test/"}}
	for range 2 {
		resp, _ := a.get(t, "/api/generate", q)
		require.Equal(t, http.StatusOK, resp.StatusCode)
	}
	resp, body := a.get(t, "/api/generate", q)
	assert.Equal(t, http.StatusTooManyRequests, resp.StatusCode)
	assert.Equal(t, models.ErrCodeRateLimited, body["code"])

	// Health is not limited.
	resp, _ = a.get(t, "/api/health", nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestRequestID(t *testing.T) {
	a := newTestAPI(t, fakesite.Options{}, nil)

	resp, _ := a.get(t, "/api/health", nil)
	assert.Len(t, resp.Header.Get(middleware.RequestIDHeader), 36)

	req, err := http.NewRequest(http.MethodGet, a.server.URL+"/api/health", nil)
	require.NoError(t, err)
	req.Header.Set(middleware.RequestIDHeader, "trace-abc")
	resp, err = http.DefaultClient.Do(req)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, "trace-abc", resp.Header.Get(middleware.RequestIDHeader))
}
