package models

// IframeResult is one extracted or generated iframe.
type IframeResult struct {
	// Code is the serialized <iframe> tag.
	Code string `json:"code"`

	// URL is the page the iframe came from (item page or iframe src).
	URL string `json:"url"`

	// Title is a human-readable label; may be empty for generic pages.
	Title string `json:"title"`
}

// ExtractResponse is the success body of GET /api/extract.
//
// An empty first page is reported as {"iframes":[],"totalAvailable":0}; every
// other outcome carries "total".
type ExtractResponse struct {
	Iframes        []IframeResult `json:"iframes"`
	Total          *int           `json:"total,omitempty"`
	TotalAvailable *int           `json:"totalAvailable,omitempty"`
}

// NewExtractResponse builds the response for a result page. The empty-first-page
// shape is selected when results is empty and offset is 0; it still reports the
// candidate count so a budget-truncated first page is not mistaken for an empty
// listing.
func NewExtractResponse(results []IframeResult, total, offset int) *ExtractResponse {
	if results == nil {
		results = []IframeResult{}
	}
	if len(results) == 0 && offset == 0 {
		return &ExtractResponse{Iframes: results, TotalAvailable: &total}
	}
	return &ExtractResponse{Iframes: results, Total: &total}
}

// Count returns whichever total field is set.
func (r *ExtractResponse) Count() int {
	switch {
	case r.Total != nil:
		return *r.Total
	case r.TotalAvailable != nil:
		return *r.TotalAvailable
	default:
		return 0
	}
}

// HealthResponse is the response for GET /api/health.
type HealthResponse struct {
	Status  string `json:"status"`
	Uptime  string `json:"uptime"`
	Version string `json:"version"`
}
