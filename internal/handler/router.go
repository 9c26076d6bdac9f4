package handler

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/xxxsen/siteinsight/internal/middleware"
)

type RouterDeps struct {
	Insights      *InsightHandler
	APIToken      string
	RequestWindow time.Duration
}

func RegisterRoutes(api *gin.RouterGroup, deps RouterDeps) {
	api.GET("/health", Health)
	api.GET("/metrics", gin.WrapH(promhttp.Handler()))

	authGroup := api.Group("")
	authGroup.Use(middleware.BearerToken(deps.APIToken))
	authGroup.GET("/insights", deps.Insights.Get)

	limited := authGroup.Group("")
	limited.Use(middleware.RateLimit(deps.RequestWindow))
	limited.POST("/insights", deps.Insights.Ingest)
	limited.POST("/query", deps.Insights.Query)
}
