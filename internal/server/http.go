package server

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/joseph-ayodele/receipts-compiler/internal/common"
)

// maxBodyBytes bounds a compile request body.
const maxBodyBytes = 1 << 20

// HealthCheck reports whether one dependency is reachable.
type HealthCheck func(ctx context.Context) error

// HTTPStatus maps a failure kind to the gateway's response status.
func HTTPStatus(kind common.Kind) int {
	switch kind {
	case common.KindUnauthenticated:
		return http.StatusUnauthorized
	case common.KindForbidden:
		return http.StatusForbidden
	case common.KindNoReceiptsAvailable:
		return http.StatusUnprocessableEntity
	case common.KindResolveFailure, common.KindPersistFailed:
		return http.StatusBadGateway
	case common.KindInvalidRequest:
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

// Handler wires the HTTP gateway routes.
type Handler struct {
	svc    *CompilationServer
	checks map[string]HealthCheck
	logger *slog.Logger
}

func NewHandler(svc *CompilationServer, checks map[string]HealthCheck, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{svc: svc, checks: checks, logger: logger}
}

// Router builds the gin engine.
func (h *Handler) Router() *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery(), h.requestID())
	r.GET("/healthz", h.health)
	r.POST("/v1/exports", h.createExport)
	return r
}

func (h *Handler) requestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		id := c.GetHeader("X-Request-ID")
		if id == "" {
			id = uuid.NewString()
		}
		c.Header("X-Request-ID", id)
		c.Request = c.Request.WithContext(common.WithRequestID(c.Request.Context(), id))
		c.Next()
		h.logger.Info("http.request",
			"req_id", id,
			"method", c.Request.Method,
			"path", c.FullPath(),
			"status", c.Writer.Status(),
			"elapsed_ms", time.Since(start).Milliseconds(),
		)
	}
}

func (h *Handler) createExport(c *gin.Context) {
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxBodyBytes)
	body, err := c.GetRawData()
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": string(common.KindInvalidRequest)})
		return
	}

	handle, err := h.svc.Compile(c.Request.Context(), body, bearerToken(c.GetHeader("Authorization")))
	if err != nil {
		kind := common.KindOf(err)
		c.JSON(HTTPStatus(kind), gin.H{"error": string(kind)})
		return
	}
	c.JSON(http.StatusOK, handle)
}

func (h *Handler) health(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 3*time.Second)
	defer cancel()

	status := http.StatusOK
	results := gin.H{}
	for name, check := range h.checks {
		if err := check(ctx); err != nil {
			h.logger.Warn("http.health.failed", "check", name, "error", err)
			results[name] = "down"
			status = http.StatusServiceUnavailable
			continue
		}
		results[name] = "ok"
	}
	state := "ok"
	if status != http.StatusOK {
		state = "degraded"
	}
	c.JSON(status, gin.H{"status": state, "checks": results})
}
