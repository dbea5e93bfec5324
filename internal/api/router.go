package api

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"

	"github.com/jengzang/coverage-backend-go/internal/config"
	"github.com/jengzang/coverage-backend-go/internal/handler"
	"github.com/jengzang/coverage-backend-go/internal/middleware"
)

// SetupRouter 设置路由
func SetupRouter(cfg *config.Config, h *handler.CoverageHandler, gatherer prometheus.Gatherer, log logrus.FieldLogger) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery(), middleware.Logger(log))

	// CORS 中间件
	r.Use(func(c *gin.Context) {
		c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
		c.Writer.Header().Set("Access-Control-Allow-Methods", "GET, OPTIONS")
		c.Writer.Header().Set("Access-Control-Allow-Headers", "Content-Type")

		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}

		c.Next()
	})

	// 健康检查
	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status":  "ok",
			"message": "Coverage Backend API is running",
		})
	})

	r.GET("/metrics", gin.WrapH(promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})))

	// API 路由组
	api := r.Group("/api/v1")
	{
		api.GET("/measurements", h.GetMeasurements)
		api.GET("/trips", h.GetTrips)
		api.GET("/trips/:tripId/path", h.GetTripPath)
		api.GET("/areas", h.GetAreas)
		api.GET("/areas.geojson", h.GetAreasGeoJSON)
		api.GET("/areas/:id", h.GetArea)
		api.GET("/correlations", h.GetCorrelations)

		// 图表接口
		charts := api.Group("/charts")
		{
			charts.GET("/distribution", h.GetDistribution)
			charts.GET("/series", h.GetSeries)
			charts.GET("/relation", h.GetRelation)
		}

		// 盲区检测接口，调用外部路线服务，按 IP 限流
		deadspots := api.Group("/deadspots", middleware.RateLimit(middleware.NewRateLimiter(cfg.RateLimit, time.Minute)))
		{
			deadspots.GET("", h.GetDeadSpots)
			deadspots.GET("/polyline", h.GetDeadSpotsOnPolyline)
		}
	}

	return r
}
