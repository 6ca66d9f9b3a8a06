package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
)

// iframesResponse mirrors the iframer API success and error bodies.
type iframesResponse struct {
	Iframes []struct {
		Code  string `json:"code"`
		URL   string `json:"url"`
		Title string `json:"title"`
	} `json:"iframes"`
	Total          *int   `json:"total"`
	TotalAvailable *int   `json:"totalAvailable"`
	Error          string `json:"error"`
	Details        string `json:"details"`
	Code           string `json:"code"`
}

// apiClient calls the iframer HTTP API.
type apiClient struct {
	baseURL string
	http    *http.Client
}

func newAPIClient(baseURL string) *apiClient {
	return &apiClient{
		baseURL: strings.TrimRight(baseURL, "/"),
		// Listing walks with all=true take minutes.
		http: &http.Client{Timeout: 5 * time.Minute},
	}
}

func (c *apiClient) get(ctx context.Context, path string, q url.Values) (*iframesResponse, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path+"?"+q.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("API request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}
	var out iframesResponse
	if err := json.Unmarshal(body, &out); err != nil {
		return nil, fmt.Errorf("failed to parse response (HTTP %d): %w", resp.StatusCode, err)
	}
	if resp.StatusCode != http.StatusOK {
		msg := out.Error
		if msg == "" {
			msg = resp.Status
		}
		if out.Details != "" {
			msg += ": " + out.Details
		}
		return nil, fmt.Errorf("%s", msg)
	}
	return &out, nil
}

// format renders a result set as text, one block per iframe.
func format(r *iframesResponse) string {
	var b strings.Builder
	switch {
	case r.Total != nil:
		fmt.Fprintf(&b, "Returned %d of %d\n", len(r.Iframes), *r.Total)
	case r.TotalAvailable != nil:
		fmt.Fprintf(&b, "No iframes found (%d available)\n", *r.TotalAvailable)
	}
	for i, f := range r.Iframes {
		b.WriteString("\n")
		if f.Title != "" {
			fmt.Fprintf(&b, "%d. %s\n", i+1, f.Title)
		} else {
			fmt.Fprintf(&b, "%d.\n", i+1)
		}
		fmt.Fprintf(&b, "URL: %s\n%s\n", f.URL, f.Code)
	}
	return b.String()
}

func main() {
	apiURL := os.Getenv("IFRAMER_API_URL")
	if apiURL == "" {
		apiURL = "http://127.0.0.1:3000"
	}
	client := newAPIClient(apiURL)

	s := server.NewMCPServer(
		"iframer",
		"1.0.0",
		server.WithToolCapabilities(false),
	)

	extractTool := mcp.NewTool("extract_iframes",
		mcp.WithDescription("Extract embeddable <iframe> snippets from a URL. Game pages resolve to their playable embed; category and listing pages resolve every game they link to; any other page returns the iframes it contains."),
		mcp.WithString("url",
			mcp.Required(),
			mcp.Description("Absolute http(s) URL of the page to extract from"),
		),
		mcp.WithNumber("offset",
			mcp.Description("Index of the first result to return (default 0)"),
		),
		mcp.WithNumber("limit",
			mcp.Description("Maximum number of results to return (default 60)"),
		),
		mcp.WithBoolean("all",
			mcp.Description("Walk every page of a listing before slicing (slow)"),
		),
	)
	s.AddTool(extractTool, handleExtract(client))

	generateTool := mcp.NewTool("generate_iframe",
		mcp.WithDescription("Build an <iframe> snippet for a URL with the given dimensions and styling."),
		mcp.WithString("url",
			mcp.Required(),
			mcp.Description("Absolute http(s) URL to embed"),
		),
		mcp.WithString("width", mcp.Description("Width attribute (default 100%)")),
		mcp.WithString("height", mcp.Description("Height attribute (default 500)")),
		mcp.WithString("scrolling",
			mcp.Description("Scrolling attribute (default no)"),
			mcp.Enum("yes", "no", "auto"),
		),
		mcp.WithString("border",
			mcp.Description("Border style (default none)"),
			mcp.Enum("none", "solid"),
		),
	)
	s.AddTool(generateTool, handleGenerate(client))

	if err := server.ServeStdio(s); err != nil {
		fmt.Fprintf(os.Stderr, "server error: %v\n", err)
		os.Exit(1)
	}
}

func handleExtract(c *apiClient) server.ToolHandlerFunc {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		u, err := request.RequireString("url")
		if err != nil {
			return mcp.NewToolResultError("url is required"), nil
		}

		q := url.Values{"url": {u}}
		if offset := request.GetInt("offset", 0); offset > 0 {
			q.Set("offset", strconv.Itoa(offset))
		}
		if limit := request.GetInt("limit", 0); limit > 0 {
			q.Set("limit", strconv.Itoa(limit))
		}
		if request.GetBool("all", false) {
			q.Set("all", "true")
		}

		resp, err := c.get(ctx, "/api/extract", q)
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		return mcp.NewToolResultText(format(resp)), nil
	}
}

func handleGenerate(c *apiClient) server.ToolHandlerFunc {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		u, err := request.RequireString("url")
		if err != nil {
			return mcp.NewToolResultError("url is required"), nil
		}

		q := url.Values{"url": {u}}
		for _, key := range []string{"width", "height", "scrolling", "border"} {
			if v := request.GetString(key, ""); v != "" {
				q.Set(key, v)
			}
		}

		resp, err := c.get(ctx, "/api/generate", q)
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		return mcp.NewToolResultText(format(resp)), nil
	}
}
