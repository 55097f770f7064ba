package handlers

import (
	"context"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/upb/classroom/middleware"
	"github.com/upb/classroom/services"
	"github.com/upb/classroom/utils"
)

// maxLoginBodyBytes bounds the login request body
const maxLoginBodyBytes = 64 << 10

// LoginFlow runs one login attempt
type LoginFlow interface {
	Login(ctx context.Context, req services.LoginRequest) (*services.LoginResult, error)
}

// CookieSettings controls the session cookie set on login
type CookieSettings struct {
	Name   string
	Secure bool
}

// LoginRequestBody is the JSON body of POST /auth/login
type LoginRequestBody struct {
	Assertion string `json:"assertion" validate:"max=16384"`
}

// LoginResponse is returned when a session token was issued
type LoginResponse struct {
	Token     string           `json:"token"`
	ExpiresAt time.Time        `json:"expiresAt"`
	Profile   services.Profile `json:"profile"`
}

// AuthHandler serves the login and logout endpoints
type AuthHandler struct {
	login       LoginFlow
	cookie      CookieSettings
	exposeCause bool
	logger      *zap.Logger
}

// NewAuthHandler creates a new AuthHandler
func NewAuthHandler(login LoginFlow, cookie CookieSettings, exposeCause bool, logger *zap.Logger) *AuthHandler {
	return &AuthHandler{
		login:       login,
		cookie:      cookie,
		exposeCause: exposeCause,
		logger:      logger,
	}
}

// HandleLogin handles POST /auth/login
func (h *AuthHandler) HandleLogin(w http.ResponseWriter, r *http.Request) {
	utils.NoStore(w)

	var body LoginRequestBody
	if err := utils.DecodeJSON(r, &body, maxLoginBodyBytes); err != nil {
		HandleValidationError(w, err, h.logger)
		return
	}
	if err := utils.ValidateStruct(body); err != nil {
		HandleValidationError(w, err, h.logger)
		return
	}

	result, err := h.login.Login(r.Context(), services.LoginRequest{
		Assertion: body.Assertion,
		RequestID: middleware.GetRequestIDFromContext(r.Context()),
		IPAddress: r.RemoteAddr,
		UserAgent: r.UserAgent(),
	})
	if err != nil {
		HandleServiceError(w, err, h.logger, h.exposeCause)
		return
	}

	if h.cookie.Name != "" {
		http.SetCookie(w, &http.Cookie{
			Name:     h.cookie.Name,
			Value:    result.Token.Value,
			Path:     "/",
			Expires:  result.Token.ExpiresAt,
			MaxAge:   int(time.Until(result.Token.ExpiresAt).Seconds()),
			HttpOnly: true,
			Secure:   h.cookie.Secure,
			SameSite: http.SameSiteLaxMode,
		})
	}

	if err := utils.WriteJSON(w, http.StatusOK, LoginResponse{
		Token:     result.Token.Value,
		ExpiresAt: result.Token.ExpiresAt,
		Profile:   result.Profile,
	}); err != nil {
		h.logger.Error("failed to write login response", zap.Error(err))
	}
}

// HandleLogout handles POST /auth/logout.
// Tokens are stateless, so this only clears the cookie.
func (h *AuthHandler) HandleLogout(w http.ResponseWriter, r *http.Request) {
	if h.cookie.Name != "" {
		http.SetCookie(w, &http.Cookie{
			Name:     h.cookie.Name,
			Value:    "",
			Path:     "/",
			Expires:  time.Unix(0, 0),
			MaxAge:   -1,
			HttpOnly: true,
			Secure:   h.cookie.Secure,
			SameSite: http.SameSiteLaxMode,
		})
	}
	utils.WriteNoContent(w)
}
