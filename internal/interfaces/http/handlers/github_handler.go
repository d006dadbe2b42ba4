package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	appgithub "github.com/tagwalker/tagwalker/internal/application/github"
	"github.com/tagwalker/tagwalker/pkg/errors"
)

// GitHubHandler implements the /v1/github/repos surface (spec.md §6).
type GitHubHandler struct {
	service *appgithub.Service
}

func NewGitHubHandler(service *appgithub.Service) *GitHubHandler {
	return &GitHubHandler{service: service}
}

type registerRepoRequest struct {
	URL    string `json:"url" binding:"required"`
	Bucket string `json:"bucket"`
}

// RegisterRepo handles POST /v1/github/repos.
func (h *GitHubHandler) RegisterRepo(c *gin.Context) {
	var req registerRepoRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, errors.InvalidParam("invalid register-repo request body: "+err.Error()))
		return
	}

	repo, err := h.service.RegisterRepo(c.Request.Context(), req.URL, req.Bucket)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusAccepted, gin.H{"id": repo.ID, "status": "ingesting"})
}

// ListRepos handles GET /v1/github/repos.
func (h *GitHubHandler) ListRepos(c *gin.Context) {
	repos, err := h.service.ListRepos(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	ok(c, repos)
}

// SyncRepo handles POST /v1/github/repos/:id/sync.
func (h *GitHubHandler) SyncRepo(c *gin.Context) {
	id := c.Param("id")
	if err := h.service.SyncRepo(c.Request.Context(), id); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusAccepted, gin.H{"status": "syncing"})
}

// DeleteRepo handles DELETE /v1/github/repos/:id.
func (h *GitHubHandler) DeleteRepo(c *gin.Context) {
	id := c.Param("id")
	quarantined, err := h.service.DeleteRepo(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "removed", "quarantined_atoms": quarantined})
}

// RateLimit handles GET /v1/github/rate-limit.
func (h *GitHubHandler) RateLimit(c *gin.Context) {
	ok(c, h.service.RateLimit())
}
