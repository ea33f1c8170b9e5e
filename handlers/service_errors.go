package handlers

import (
	"errors"
	"net/http"

	"github.com/upb/internship-placement/services"
	"github.com/upb/internship-placement/utils"
	"go.uber.org/zap"
)

// HandleServiceError maps domain errors to HTTP responses
func HandleServiceError(w http.ResponseWriter, err error, logger *zap.Logger) {
	if err == nil {
		return
	}

	details := services.GetErrorDetails(err)
	if len(details) == 0 {
		details = nil
	}

	var writeErr error
	switch {
	case services.IsNotFoundError(err):
		writeErr = utils.WriteNotFound(w, messageOf(err))

	case services.IsValidationError(err):
		writeErr = utils.WriteBadRequest(w, messageOf(err), details)

	case services.IsUnauthorizedError(err):
		writeErr = utils.WriteUnauthorized(w, messageOf(err))

	case services.IsForbiddenError(err):
		writeErr = utils.WriteForbidden(w, messageOf(err))

	case services.IsDuplicateError(err):
		writeErr = utils.WriteErrorCode(w, http.StatusConflict, string(services.ErrorTypeDuplicate), messageOf(err), details)

	case services.IsQuotaExceededError(err):
		writeErr = utils.WriteErrorCode(w, http.StatusForbidden, string(services.ErrorTypeQuotaExceeded), messageOf(err), details)

	case services.IsInvalidTransitionError(err):
		writeErr = utils.WriteErrorCode(w, http.StatusConflict, string(services.ErrorTypeInvalidTransition), messageOf(err), details)

	case services.IsInternalError(err):
		// Log internal errors but return generic message
		logger.Error("internal server error", zap.Error(err))
		writeErr = utils.WriteInternalServerError(w, "An internal error occurred")

	default:
		logger.Error("unhandled error type",
			zap.Error(err),
			zap.String("error_type", string(services.GetErrorType(err))))
		writeErr = utils.WriteInternalServerError(w, "An unexpected error occurred")
	}

	if writeErr != nil {
		logger.Error("failed to write error response", zap.Error(writeErr))
	}
}

// messageOf returns the client-facing message of a domain error
func messageOf(err error) string {
	var de *services.DomainError
	if errors.As(err, &de) {
		return de.Message
	}
	return err.Error()
}

// HandleBadRequest writes a 400 for a malformed request
func HandleBadRequest(w http.ResponseWriter, message string, logger *zap.Logger) {
	if err := utils.WriteBadRequest(w, message, nil); err != nil {
		logger.Error("failed to write bad request response", zap.Error(err))
	}
}
