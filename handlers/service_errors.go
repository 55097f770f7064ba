package handlers

import (
	"errors"
	"net/http"

	"go.uber.org/zap"

	"github.com/upb/classroom/services"
	"github.com/upb/classroom/utils"
)

// ErrorResponse is the body written for a failed request
type ErrorResponse struct {
	Error    string                 `json:"error"`
	Category string                 `json:"category,omitempty"`
	Message  string                 `json:"message,omitempty"`
	Details  map[string]interface{} `json:"details,omitempty"`
}

var statusByType = map[services.ErrorType]int{
	services.ErrorTypeInvalidAssertion: http.StatusUnauthorized,
	services.ErrorTypeAccountNotFound:  http.StatusForbidden,
	services.ErrorTypeValidation:       http.StatusBadRequest,
	services.ErrorTypeNotFound:         http.StatusNotFound,
	services.ErrorTypeConflict:         http.StatusConflict,
	services.ErrorTypeUnavailable:      http.StatusServiceUnavailable,
	services.ErrorTypeConfiguration:    http.StatusInternalServerError,
	services.ErrorTypeInternal:         http.StatusInternalServerError,
}

// StatusForError returns the HTTP status for a service error
func StatusForError(err error) int {
	if status, ok := statusByType[services.GetErrorType(err)]; ok {
		return status
	}
	return http.StatusInternalServerError
}

// HandleServiceError maps domain errors to HTTP responses.
// The wrapped cause is only echoed when exposeCause is set.
func HandleServiceError(w http.ResponseWriter, err error, logger *zap.Logger, exposeCause bool) {
	if err == nil {
		return
	}

	status := StatusForError(err)

	var domainErr *services.DomainError
	if !errors.As(err, &domainErr) {
		logger.Error("unhandled error type", zap.Error(err))
		domainErr = services.NewDomainError(services.ErrorTypeInternal, "An unexpected error occurred", err)
	}

	if status >= http.StatusInternalServerError {
		logger.Error("service error",
			zap.String("type", string(domainErr.Type)),
			zap.Error(err))
	} else {
		logger.Debug("handled service error",
			zap.String("type", string(domainErr.Type)),
			zap.Any("details", domainErr.Details))
	}

	source := services.GetErrorDetails(err)
	details := make(map[string]interface{}, len(source)+1)
	for k, v := range source {
		details[k] = v
	}
	if exposeCause && domainErr.Err != nil {
		details["cause"] = domainErr.Err.Error()
	}
	if len(details) == 0 {
		details = nil
	}

	if status == http.StatusUnauthorized {
		w.Header().Set("WWW-Authenticate", `Bearer realm="classroom"`)
	}

	if err := utils.WriteJSON(w, status, ErrorResponse{
		Error:    string(domainErr.Type),
		Category: string(services.CategoryOf(err)),
		Message:  domainErr.Message,
		Details:  details,
	}); err != nil {
		logger.Error("failed to write error response", zap.Error(err))
	}
}

// HandleValidationError handles validation errors from request parsing
func HandleValidationError(w http.ResponseWriter, err error, logger *zap.Logger) {
	if utils.IsValidationError(err) {
		details := make(map[string]interface{})
		for k, v := range utils.GetValidationFields(err) {
			details[k] = v
		}
		if err := utils.WriteBadRequest(w, "Validation failed", details); err != nil {
			logger.Error("failed to write validation error response", zap.Error(err))
		}
		return
	}

	if err := utils.WriteBadRequest(w, "Invalid request body", nil); err != nil {
		logger.Error("failed to write validation error response", zap.Error(err))
	}
}
