package handlers

import (
	"context"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/upb/classroom/services/audit"
	"github.com/upb/classroom/utils"
)

// HealthResponse represents the health check response
type HealthResponse struct {
	Status    string            `json:"status"`
	Timestamp string            `json:"timestamp"`
	Checks    map[string]string `json:"checks,omitempty"`
	Details   map[string]interface{}    `json:"details,omitempty"`
}

// DatabaseChecker is satisfied by postgres.DB
type DatabaseChecker interface {
	HealthCheck(ctx context.Context) error
}

// KeyStatus reports whether the issuer keys are cached
type KeyStatus interface {
	Loaded() bool
	Stats() map[string]interface{}
}

// AuditStatus is satisfied by audit.Service
type AuditStatus interface {
	GetStats() audit.Stats
}

// HealthHandler handles health-related HTTP requests
type HealthHandler struct {
	db     DatabaseChecker
	keys   KeyStatus
	audit  AuditStatus
	logger *zap.Logger
}

// NewHealthHandler creates a new HealthHandler. Any dependency may be nil;
// a nil auditor means the audit trail is disabled and does not affect readiness.
func NewHealthHandler(db DatabaseChecker, keys KeyStatus, auditor AuditStatus, logger *zap.Logger) *HealthHandler {
	return &HealthHandler{
		db:     db,
		keys:   keys,
		audit:  auditor,
		logger: logger,
	}
}

// HandleHealth handles GET /healthz.
// Returns 200 whenever the process is serving.
func (h *HealthHandler) HandleHealth(w http.ResponseWriter, r *http.Request) {
	_ = utils.WriteOK(w, HealthResponse{
		Status:    "healthy",
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	})
}

// HandleReadiness handles GET /readyz
func (h *HealthHandler) HandleReadiness(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	checks := make(map[string]string)
	allHealthy := true

	switch {
	case h.db == nil:
		checks["database"] = "not_configured"
		allHealthy = false
	default:
		if err := h.db.HealthCheck(ctx); err != nil {
			h.logger.Warn("database health check failed", zap.Error(err))
			checks["database"] = "unhealthy"
			allHealthy = false
		} else {
			checks["database"] = "healthy"
		}
	}

	details := make(map[string]interface{})

	switch {
	case h.keys == nil:
		checks["issuer_keys"] = "not_configured"
		allHealthy = false
	case !h.keys.Loaded():
		checks["issuer_keys"] = "not_loaded"
		details["issuer_keys"] = h.keys.Stats()
		allHealthy = false
	default:
		checks["issuer_keys"] = "loaded"
		details["issuer_keys"] = h.keys.Stats()
	}

	// audit is best effort and never gates readiness
	if h.audit == nil {
		checks["audit"] = "disabled"
	} else {
		stats := h.audit.GetStats()
		checks["audit"] = "running"
		if !stats.Started {
			checks["audit"] = "stopped"
		}
		details["audit"] = stats
	}

	status := "healthy"
	httpStatus := http.StatusOK
	if !allHealthy {
		status = "unhealthy"
		httpStatus = http.StatusServiceUnavailable
	}

	if err := utils.WriteJSON(w, httpStatus, utils.SuccessResponse{Data: HealthResponse{
		Status:    status,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		Checks:    checks,
		Details:   details,
	}}); err != nil {
		h.logger.Error("failed to write readiness response", zap.Error(err))
	}
}
