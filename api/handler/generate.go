package handler

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/use-agent/iframer/models"
	"github.com/use-agent/iframer/snippet"
)

// Generate returns a handler for GET /api/generate, which renders a
// hand-authored iframe snippet from query parameters.
func Generate() gin.HandlerFunc {
	return func(c *gin.Context) {
		if strings.TrimSpace(c.Query("url")) == "" {
			c.JSON(http.StatusBadRequest, models.ErrorResponse{
				Error: "URL is required",
				Code:  models.ErrCodeInvalidInput,
			})
			return
		}

		var req models.GenerateRequest
		if err := c.ShouldBindQuery(&req); err != nil {
			c.JSON(http.StatusBadRequest, models.ErrorResponse{
				Error: err.Error(),
				Code:  models.ErrCodeInvalidInput,
			})
			return
		}
		req.Defaults()

		code, err := snippet.Generate(snippet.Params{
			URL:       req.URL,
			Width:     req.Width,
			Height:    req.Height,
			Scrolling: req.Scrolling,
			Border:    req.Border,
		})
		if err != nil {
			c.JSON(http.StatusBadRequest, models.ErrorResponse{
				Error: err.Error(),
				Code:  models.ErrCodeInvalidInput,
			})
			return
		}

		total := 1
		c.JSON(http.StatusOK, models.ExtractResponse{
			Iframes: []models.IframeResult{{Code: code, URL: req.URL}},
			Total:   &total,
		})
	}
}
