package models

import "math"

// Unbounded is the Limit used when the caller asks for everything (all=true).
const Unbounded = math.MaxInt

// ExtractRequest is the parsed query of GET /api/extract.
type ExtractRequest struct {
	// SourceURL is the page to extract from. Required, absolute http(s).
	SourceURL string

	// Offset is the index of the first candidate to resolve. Default: 0.
	Offset int

	// Limit is the maximum number of candidates to resolve. Unbounded when All.
	Limit int

	// All walks every listing page before slicing.
	All bool
}

// Window returns the half-open range [lo, hi) of a slice of length n selected by
// Offset and Limit. An offset past the end yields an empty window.
func (r ExtractRequest) Window(n int) (lo, hi int) {
	lo = r.Offset
	if lo < 0 {
		lo = 0
	}
	if lo > n {
		lo = n
	}
	hi = n
	if r.Limit >= 0 && r.Limit < n-lo {
		hi = lo + r.Limit
	}
	return lo, hi
}

// GenerateRequest is the query of GET /api/generate.
type GenerateRequest struct {
	URL       string `form:"url" binding:"required,url"`
	Width     string `form:"width"`
	Height    string `form:"height"`
	Scrolling string `form:"scrolling" binding:"omitempty,oneof=yes no auto"`
	Border    string `form:"border" binding:"omitempty,oneof=none solid"`
}

// Defaults applies default values to unset fields.
func (r *GenerateRequest) Defaults() {
	if r.Width == "" {
		r.Width = "100%"
	}
	if r.Height == "" {
		r.Height = "500"
	}
	if r.Scrolling == "" {
		r.Scrolling = "no"
	}
	if r.Border == "" {
		r.Border = "none"
	}
}
