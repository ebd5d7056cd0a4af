package handler

import (
	"time"

	"github.com/gin-gonic/gin"

	"github.com/kbforge/ragpipe/internal/middleware"
	"github.com/kbforge/ragpipe/internal/pkg/response"
)

type RouterDeps struct {
	Query         *QueryHandler
	Ingest        *IngestHandler
	Indexes       *IndexHandler
	IngestLimit   time.Duration
	AllowlistCORS []string
}

func RegisterRoutes(api *gin.RouterGroup, deps RouterDeps) {
	api.Use(middleware.RequestID())
	api.Use(middleware.CORS(deps.AllowlistCORS))

	api.GET("/health", func(c *gin.Context) {
		response.Success(c, gin.H{"status": "ok"})
	})

	api.POST("/query", deps.Query.Query)
	api.POST("/search", deps.Query.Search)
	api.POST("/summarize", deps.Query.Summarize)

	ingestGroup := api.Group("")
	ingestGroup.Use(middleware.RateLimit(deps.IngestLimit))
	ingestGroup.POST("/ingest", deps.Ingest.Ingest)

	api.GET("/indexes", deps.Indexes.List)
	api.DELETE("/indexes/:name", deps.Indexes.Delete)
}
