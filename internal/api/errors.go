package api

import (
	"encoding/json"
	"net/http"

	"github.com/fairfund-scanner/internal/types"
)

// ErrorResponse represents an API error response.
type ErrorResponse struct {
	Error types.ServiceError `json:"error"`
}

// respondError sends an error response.
func respondError(w http.ResponseWriter, statusCode int, code, message string, details map[string]interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)

	response := ErrorResponse{
		Error: types.ServiceError{
			Code:    code,
			Message: message,
			Details: details,
		},
	}

	json.NewEncoder(w).Encode(response)
}

// respondJSON sends a JSON response.
func respondJSON(w http.ResponseWriter, statusCode int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)

	if data != nil {
		json.NewEncoder(w).Encode(data)
	}
}

// parseJSONBody parses JSON request body.
func parseJSONBody(r *http.Request, v interface{}) error {
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	return decoder.Decode(v)
}

// API-layer error codes
const (
	ErrCodeInternalError      = "INTERNAL_ERROR"
	ErrCodeServiceUnavailable = "SERVICE_UNAVAILABLE"
	ErrCodeRateLimited        = "RATE_LIMITED"
	ErrCodeConflict           = "CONFLICT"
)

// mapServiceError maps service errors to HTTP status codes.
func mapServiceError(err error) (int, string, string) {
	if serviceErr, ok := err.(*types.ServiceError); ok {
		switch serviceErr.Code {
		case types.ErrCodeInvalidInput, types.ErrCodeInvalidAmount, types.ErrCodeUnsupportedToken:
			return http.StatusBadRequest, serviceErr.Code, serviceErr.Message
		case types.ErrCodeProjectNotFound:
			return http.StatusNotFound, serviceErr.Code, serviceErr.Message
		case types.ErrCodeInsufficientBalance:
			return http.StatusUnprocessableEntity, serviceErr.Code, serviceErr.Message
		case types.ErrCodeWalletNotConnected, types.ErrCodeNotConfigured:
			return http.StatusServiceUnavailable, serviceErr.Code, serviceErr.Message
		case types.ErrCodeTxFailed:
			return http.StatusBadGateway, serviceErr.Code, serviceErr.Message
		default:
			return http.StatusInternalServerError, ErrCodeInternalError, "An internal error occurred"
		}
	}

	return http.StatusInternalServerError, ErrCodeInternalError, "An internal error occurred"
}
