package api

import (
	"context"
	"errors"
	"net/http"
	"strconv"

	"ForexFeed/internal/model"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// Provider is what the HTTP surface needs from the collector.
type Provider interface {
	Fetch(ctx context.Context, pair, timeframe string, count int, demoMode bool) (*model.CandleSeries, error)
	Status() []model.SourceStatus
	Pairs() []model.Pair
	MaxCount() int
}

const defaultCount = 100

// Handler serves candle series and source status.
type Handler struct {
	provider    Provider
	defaultDemo bool
	logger      *zap.Logger
}

// NewHandler creates a handler. defaultDemo applies when a request omits the demo parameter.
func NewHandler(p Provider, defaultDemo bool, logger *zap.Logger) *Handler {
	return &Handler{provider: p, defaultDemo: defaultDemo, logger: logger}
}

type errorResponse struct {
	Error string `json:"error"`
}

func sendError(c *gin.Context, status int, msg string) {
	c.AbortWithStatusJSON(status, errorResponse{Error: msg})
}

// GetCandles returns one candle series.
// GET /api/v1/candles?pair=EURUSD&timeframe=15m&count=100&demo=false
func (h *Handler) GetCandles(c *gin.Context) {
	pair := c.Query("pair")
	timeframe := c.DefaultQuery("timeframe", string(model.Timeframe1h))

	count := defaultCount
	if raw := c.Query("count"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil {
			sendError(c, http.StatusBadRequest, "count must be an integer")
			return
		}
		count = n
	}

	demo := h.defaultDemo
	if raw := c.Query("demo"); raw != "" {
		b, err := strconv.ParseBool(raw)
		if err != nil {
			sendError(c, http.StatusBadRequest, "demo must be a boolean")
			return
		}
		demo = b
	}

	series, err := h.provider.Fetch(c.Request.Context(), pair, timeframe, count, demo)
	switch {
	case err == nil:
		c.JSON(http.StatusOK, series)
	case errors.Is(err, model.ErrInvalidRequest):
		sendError(c, http.StatusBadRequest, err.Error())
	case errors.Is(err, model.ErrNoDataAvailable):
		h.logger.Warn("no data available", zap.String("pair", pair), zap.String("timeframe", timeframe), zap.Error(err))
		sendError(c, http.StatusServiceUnavailable, "no data available")
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		sendError(c, http.StatusGatewayTimeout, err.Error())
	default:
		h.logger.Error("fetch failed", zap.Error(err))
		sendError(c, http.StatusInternalServerError, "fetch failed")
	}
}

// GetSources reports every source with its quota state.
// GET /api/v1/sources
func (h *Handler) GetSources(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"sources": h.provider.Status()})
}

// GetCatalogue lists accepted pairs and timeframes.
// GET /api/v1/pairs
func (h *Handler) GetCatalogue(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"pairs":      h.provider.Pairs(),
		"timeframes": model.Timeframes(),
		"max_count":  h.provider.MaxCount(),
	})
}

func (h *Handler) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}
