package handlers

import (
	"github.com/gin-gonic/gin"

	appretrieval "github.com/tagwalker/tagwalker/internal/application/retrieval"
	"github.com/tagwalker/tagwalker/pkg/errors"
)

// SearchHandler implements POST /v1/memory/search (spec.md §6), the HTTP
// entry point into the Tag-Walker retrieval engine.
type SearchHandler struct {
	service *appretrieval.Service
}

func NewSearchHandler(service *appretrieval.Service) *SearchHandler {
	return &SearchHandler{service: service}
}

type searchRequest struct {
	Query       string `json:"query" binding:"required"`
	BudgetBytes int    `json:"budget_bytes"`
}

// Search handles POST /v1/memory/search.
func (h *SearchHandler) Search(c *gin.Context) {
	var req searchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, errors.InvalidParam("invalid search request body: "+err.Error()))
		return
	}

	result, err := h.service.Search(c.Request.Context(), req.Query, req.BudgetBytes)
	if err != nil {
		respondError(c, err)
		return
	}
	ok(c, result)
}
