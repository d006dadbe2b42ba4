package http

import (
	"github.com/gin-gonic/gin"

	"github.com/tagwalker/tagwalker/internal/infrastructure/monitoring/logging"
	"github.com/tagwalker/tagwalker/internal/interfaces/http/handlers"
	"github.com/tagwalker/tagwalker/internal/interfaces/http/middleware"
)

// RouterConfig aggregates every handler required to build the route tree
// named in spec.md §6.
type RouterConfig struct {
	IngestHandler *handlers.IngestHandler
	GitHubHandler *handlers.GitHubHandler
	SearchHandler *handlers.SearchHandler
	HealthHandler *handlers.HealthHandler
	Logger        logging.Logger
}

// NewRouter builds the gin.Engine that backs Server. gin.Engine implements
// http.Handler, so the result plugs directly into NewServer.
func NewRouter(cfg RouterConfig) *gin.Engine {
	if cfg.Logger == nil {
		cfg.Logger = logging.NewNopLogger()
	}

	gin.SetMode(gin.ReleaseMode)
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(middleware.CORS())
	r.Use(middleware.Logging(cfg.Logger))

	r.GET("/healthz", cfg.HealthHandler.Healthz)

	v1 := r.Group("/v1")
	{
		v1.POST("/ingest", cfg.IngestHandler.Ingest)
		v1.POST("/memory/search", cfg.SearchHandler.Search)

		gh := v1.Group("/github")
		{
			gh.POST("/repos", cfg.GitHubHandler.RegisterRepo)
			gh.GET("/repos", cfg.GitHubHandler.ListRepos)
			gh.POST("/repos/:id/sync", cfg.GitHubHandler.SyncRepo)
			gh.DELETE("/repos/:id", cfg.GitHubHandler.DeleteRepo)
			gh.GET("/rate-limit", cfg.GitHubHandler.RateLimit)
		}
	}

	return r
}
