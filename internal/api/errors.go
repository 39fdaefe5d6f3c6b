package api

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"solana-rent-reclaim/internal/closure"
	"solana-rent-reclaim/internal/dashboard"
	"solana-rent-reclaim/internal/domain"
	"solana-rent-reclaim/internal/storage"
)

// ErrorCode is the machine-readable error code of an API response.
type ErrorCode string

const (
	// Validation errors
	ErrorCodeInvalidRequest ErrorCode = "INVALID_REQUEST"
	ErrorCodeMalformedJSON  ErrorCode = "MALFORMED_JSON"
	ErrorCodeEmptySelection ErrorCode = "EMPTY_SELECTION"

	// Lookup errors
	ErrorCodeSessionNotFound ErrorCode = "SESSION_NOT_FOUND"
	ErrorCodeNotFound        ErrorCode = "NOT_FOUND"

	// Closure workflow conflicts
	ErrorCodeClosureInProgress  ErrorCode = "CLOSURE_IN_PROGRESS"
	ErrorCodeNoPendingSignature ErrorCode = "NO_PENDING_SIGNATURE"

	// Upstream errors
	ErrorCodeRPCUnavailable ErrorCode = "RPC_UNAVAILABLE"

	ErrorCodeInternalError ErrorCode = "INTERNAL_ERROR"
)

// HTTPStatusCode returns the status code sent with e.
func (e ErrorCode) HTTPStatusCode() int {
	switch e {
	case ErrorCodeInvalidRequest, ErrorCodeMalformedJSON, ErrorCodeEmptySelection:
		return http.StatusBadRequest
	case ErrorCodeSessionNotFound, ErrorCodeNotFound:
		return http.StatusNotFound
	case ErrorCodeClosureInProgress, ErrorCodeNoPendingSignature:
		return http.StatusConflict
	case ErrorCodeRPCUnavailable:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// ErrorDetail describes one error.
type ErrorDetail struct {
	Code    ErrorCode `json:"code"`
	Message string    `json:"message"`
}

// ErrorResponse is the body of every non-2xx response.
type ErrorResponse struct {
	Error     ErrorDetail `json:"error"`
	Timestamp time.Time   `json:"timestamp"`
	RequestID string      `json:"request_id,omitempty"`
}

// codeFor maps service errors to API codes.
func codeFor(err error) ErrorCode {
	switch {
	case errors.Is(err, dashboard.ErrSessionNotFound):
		return ErrorCodeSessionNotFound
	case errors.Is(err, domain.ErrEmptySelection):
		return ErrorCodeEmptySelection
	case errors.Is(err, domain.ErrInvalidInput), errors.Is(err, storage.ErrInvalidInput):
		return ErrorCodeInvalidRequest
	case errors.Is(err, domain.ErrNotFound), errors.Is(err, storage.ErrNotFound):
		return ErrorCodeNotFound
	case errors.Is(err, domain.ErrClosureInProgress):
		return ErrorCodeClosureInProgress
	case errors.Is(err, closure.ErrNoPendingSignature):
		return ErrorCodeNoPendingSignature
	case errors.Is(err, domain.ErrTransport):
		return ErrorCodeRPCUnavailable
	default:
		return ErrorCodeInternalError
	}
}

// abortWithError writes the error response for err and stops the chain.
func abortWithError(c *gin.Context, err error, log *zap.Logger) {
	abortWithCode(c, codeFor(err), err.Error(), log)
}

func abortWithCode(c *gin.Context, code ErrorCode, message string, log *zap.Logger) {
	status := code.HTTPStatusCode()
	if status >= http.StatusInternalServerError {
		log.Error("request failed", zap.String("code", string(code)), zap.String("error", message))
	}
	if code == ErrorCodeInternalError {
		message = "internal server error"
	}

	c.AbortWithStatusJSON(status, ErrorResponse{
		Error:     ErrorDetail{Code: code, Message: message},
		Timestamp: time.Now().UTC(),
		RequestID: c.GetString(requestIDKey),
	})
}
