package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	appingest "github.com/tagwalker/tagwalker/internal/application/ingest"
	"github.com/tagwalker/tagwalker/internal/domain/ingest"
	"github.com/tagwalker/tagwalker/pkg/errors"
)

// IngestHandler implements POST /v1/ingest (spec.md §6).
type IngestHandler struct {
	service *appingest.Service
}

func NewIngestHandler(service *appingest.Service) *IngestHandler {
	return &IngestHandler{service: service}
}

type ingestRequest struct {
	Content string   `json:"content" binding:"required"`
	Source  string   `json:"source" binding:"required"`
	Type    string   `json:"type"`
	Buckets []string `json:"buckets"`
	Tags    []string `json:"tags"`
}

type ingestResponse struct {
	Status  string `json:"status"`
	ID      string `json:"id"`
	Message string `json:"message"`
}

// Ingest handles POST /v1/ingest. On a persistence verification failure the
// response is a 500 per spec.md §6's INGEST_VERIFY_FAILED contract.
func (h *IngestHandler) Ingest(c *gin.Context) {
	var req ingestRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, errors.InvalidParam("invalid ingest request body: "+err.Error()))
		return
	}

	outcome, err := h.service.IngestFile(c.Request.Context(), []byte(req.Content), req.Source, ingest.ProvenanceInternal, time.Now())
	if err != nil {
		respondError(c, err)
		return
	}

	if outcome.Skipped {
		c.JSON(http.StatusOK, ingestResponse{Status: "skipped", Message: "content unchanged since last ingest"})
		return
	}

	c.JSON(http.StatusOK, ingestResponse{
		Status:  "success",
		ID:      string(outcome.Compound.ID),
		Message: "ingested",
	})
}
