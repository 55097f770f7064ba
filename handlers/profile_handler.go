package handlers

import (
	"context"
	"net/http"
	"strconv"

	"go.uber.org/zap"

	"github.com/upb/classroom/middleware"
	"github.com/upb/classroom/models"
	"github.com/upb/classroom/services"
	"github.com/upb/classroom/utils"
)

const (
	defaultEventsLimit = 50
	maxEventsLimit     = 500
)

// EventLister reads the auth-event audit trail
type EventLister interface {
	ListRecent(ctx context.Context, limit int) ([]*models.AuthEvent, error)
}

// ProfileHandler serves endpoints for authenticated callers
type ProfileHandler struct {
	events EventLister
	logger *zap.Logger
}

// NewProfileHandler creates a new ProfileHandler
func NewProfileHandler(events EventLister, logger *zap.Logger) *ProfileHandler {
	return &ProfileHandler{events: events, logger: logger}
}

// HandleMe handles GET /api/v1/me
func (h *ProfileHandler) HandleMe(w http.ResponseWriter, r *http.Request) {
	claims := middleware.GetClaimsFromContext(r.Context())
	if claims == nil {
		_ = utils.WriteUnauthorized(w, "")
		return
	}

	_ = utils.WriteOK(w, map[string]interface{}{
		"profile": services.Profile{
			SubjectID: claims.SubjectID,
			Email:     claims.Email,
			Name:      claims.Name,
			RoleID:    claims.RoleID,
			RoleName:  claims.RoleName,
		},
		"tokenId":   claims.TokenID,
		"issuedAt":  claims.IssuedAt,
		"expiresAt": claims.ExpiresAt,
	})
}

// HandleListEvents handles GET /api/v1/auth/events?limit=
func (h *ProfileHandler) HandleListEvents(w http.ResponseWriter, r *http.Request) {
	limit := defaultEventsLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 1 || parsed > maxEventsLimit {
			_ = utils.WriteBadRequest(w, "limit must be between 1 and 500", map[string]interface{}{"limit": raw})
			return
		}
		limit = parsed
	}

	events, err := h.events.ListRecent(r.Context(), limit)
	if err != nil {
		HandleServiceError(w, services.WrapInternal("failed to list auth events", err), h.logger, false)
		return
	}
	if events == nil {
		events = []*models.AuthEvent{}
	}

	_ = utils.WriteOK(w, map[string]interface{}{
		"events": events,
		"count":  len(events),
	})
}
