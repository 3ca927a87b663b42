package handler

import (
	"time"

	"github.com/gin-gonic/gin"

	"github.com/xxxsen/mrag/internal/middleware"
)

type RouterDeps struct {
	Ingest    *IngestHandler
	Chat      *ChatHandler
	JWTSecret []byte
	RateLimit time.Duration
}

func RegisterRoutes(api *gin.RouterGroup, deps RouterDeps) {
	api.GET("/health", Health)

	authGroup := api.Group("")
	authGroup.Use(middleware.JWTAuth(deps.JWTSecret))
	authGroup.Use(middleware.RateLimit(deps.RateLimit))
	authGroup.POST("/ingest/text", deps.Ingest.IngestText)
	authGroup.POST("/ingest/file", deps.Ingest.IngestFile)
	authGroup.POST("/chat", deps.Chat.Chat)
}
