package handler

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/use-agent/iframer/api/middleware"
	"github.com/use-agent/iframer/models"
)

// Extractor runs one extraction.
type Extractor interface {
	Extract(ctx context.Context, req models.ExtractRequest) (*models.ExtractResponse, error)
}

// Extract returns a handler for GET /api/extract.
//
// Query: url (required), offset (default 0), limit (default defaultLimit),
// all (walk every listing page; lifts the limit).
func Extract(ex Extractor, defaultLimit int) gin.HandlerFunc {
	return func(c *gin.Context) {
		req, err := parseExtractQuery(c, defaultLimit)
		if err != nil {
			c.JSON(http.StatusBadRequest, models.ErrorResponse{
				Error: err.Error(),
				Code:  models.ErrCodeInvalidInput,
			})
			return
		}

		resp, err := ex.Extract(c.Request.Context(), req)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, resp)
	}
}

func parseExtractQuery(c *gin.Context, defaultLimit int) (models.ExtractRequest, error) {
	req := models.ExtractRequest{
		SourceURL: strings.TrimSpace(c.Query("url")),
		Limit:     defaultLimit,
	}
	if req.SourceURL == "" {
		return req, errors.New("URL is required")
	}

	var err error
	if v := c.Query("offset"); v != "" {
		if req.Offset, err = strconv.Atoi(v); err != nil || req.Offset < 0 {
			return req, errors.New("offset must be a non-negative integer")
		}
	}
	if v := c.Query("limit"); v != "" {
		if req.Limit, err = strconv.Atoi(v); err != nil || req.Limit < 0 {
			return req, errors.New("limit must be a non-negative integer")
		}
	}
	if v := c.Query("all"); v != "" {
		if req.All, err = strconv.ParseBool(v); err != nil {
			return req, errors.New("all must be true or false")
		}
	}
	if req.All {
		req.Limit = models.Unbounded
	}
	return req, nil
}

// respondError maps an APIError to its HTTP status and writes the error
// envelope. Anything that is not an APIError is an internal error.
func respondError(c *gin.Context, err error) {
	var apiErr *models.APIError
	if !errors.As(err, &apiErr) {
		apiErr = models.NewAPIError(models.ErrCodeInternal, "internal error", err)
	}

	status := mapErrorToStatus(apiErr)
	body := models.ErrorResponse{Error: apiErr.Message, Code: apiErr.Code}
	if status >= http.StatusInternalServerError {
		body.Details = apiErr.Details()
		middleware.Logger(c).Error("extraction error", "code", apiErr.Code, "error", err)
	}
	_ = c.Error(err)
	c.JSON(status, body)
}

// mapErrorToStatus translates error codes to HTTP status codes. Upstream
// failures and timeouts both surface as 500.
func mapErrorToStatus(e *models.APIError) int {
	switch e.Code {
	case models.ErrCodeInvalidInput:
		return http.StatusBadRequest
	case models.ErrCodeRateLimited:
		return http.StatusTooManyRequests
	default:
		return http.StatusInternalServerError
	}
}
