package handler

import (
	"context"
	"database/sql"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
)

const (
	statusOK       = "ok"
	statusError    = "error"
	statusDisabled = "disabled"
)

// HealthHandler handles health check endpoints.
// Either dependency may be nil when its backend is not configured.
type HealthHandler struct {
	db  *sql.DB
	rdb *redis.Client
}

// NewHealthHandler creates a new HealthHandler
func NewHealthHandler(db *sql.DB, rdb *redis.Client) *HealthHandler {
	return &HealthHandler{
		db:  db,
		rdb: rdb,
	}
}

// RegisterRoutes registers health routes on the router root
func (h *HealthHandler) RegisterRoutes(r gin.IRoutes) {
	r.GET("/health", h.Health)
	r.GET("/ready", h.Ready)
}

// HealthResponse represents health check response
type HealthResponse struct {
	Status string `json:"status" example:"ok"`
}

// ReadyResponse represents readiness check response
type ReadyResponse struct {
	Status string `json:"status" example:"ok"`
	DB     string `json:"db" example:"disabled"`
	Redis  string `json:"redis" example:"ok"`
}

// Health godoc
// @Summary Health check
// @Description Returns server health status
// @Tags health
// @Produce json
// @Success 200 {object} HealthResponse
// @Router /health [get]
func (h *HealthHandler) Health(c *gin.Context) {
	c.JSON(http.StatusOK, HealthResponse{Status: statusOK})
}

// Ready godoc
// @Summary Readiness check
// @Description Returns readiness including Redis and proof archive connectivity
// @Tags health
// @Produce json
// @Success 200 {object} ReadyResponse
// @Failure 503 {object} ReadyResponse
// @Router /ready [get]
func (h *HealthHandler) Ready(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 3*time.Second)
	defer cancel()

	response := ReadyResponse{
		Status: statusOK,
		DB:     statusDisabled,
		Redis:  statusDisabled,
	}

	if h.db != nil {
		response.DB = probe(h.db.PingContext(ctx))
	}
	if h.rdb != nil {
		response.Redis = probe(h.rdb.Ping(ctx).Err())
	}

	statusCode := http.StatusOK
	if response.DB == statusError || response.Redis == statusError {
		response.Status = "degraded"
		statusCode = http.StatusServiceUnavailable
	}

	c.JSON(statusCode, response)
}

func probe(err error) string {
	if err != nil {
		return statusError
	}
	return statusOK
}
