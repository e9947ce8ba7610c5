package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/sma-ledger-api/internal/models"
	"github.com/noah-isme/sma-ledger-api/pkg/response"
)

type searchService interface {
	Search(ctx context.Context, query string) ([]models.Record, error)
}

// SearchHandler is the global student and teacher lookup.
type SearchHandler struct {
	search searchService
}

func NewSearchHandler(search searchService) *SearchHandler {
	return &SearchHandler{search: search}
}

// Search godoc
// @Summary Search students and teachers
// @Tags Search
// @Produce json
// @Param q query string true "Query"
// @Success 200 {object} response.Envelope
// @Router /search [get]
func (h *SearchHandler) Search(c *gin.Context) {
	records, err := h.search.Search(c.Request.Context(), c.Query("q"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, records, nil)
}
