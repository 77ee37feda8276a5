package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// NewRouter wires the HTTP routes. metricsHandler may be nil.
func NewRouter(h *Handler, metricsHandler http.Handler, logger *zap.Logger) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)
	r := gin.New()
	r.Use(gin.Recovery(), Logger(logger))

	r.GET("/healthz", h.Health)
	if metricsHandler != nil {
		r.GET("/metrics", gin.WrapH(metricsHandler))
	}

	v1 := r.Group("/api/v1")
	{
		v1.GET("/candles", h.GetCandles)
		v1.GET("/sources", h.GetSources)
		v1.GET("/pairs", h.GetCatalogue)
	}
	return r
}
