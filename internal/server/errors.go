package server

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/crimson-sun/quip/internal/model"
	"github.com/crimson-sun/quip/internal/store"
)

// ErrorResponse is the HTTP form of an error.
type ErrorResponse struct {
	StatusCode int
	Code       string
	Message    string
}

// MapError maps prediction and store errors to HTTP responses.
func MapError(err error) ErrorResponse {
	switch {
	case errors.Is(err, model.ErrNotReady):
		return ErrorResponse{
			StatusCode: http.StatusServiceUnavailable,
			Code:       "NOT_READY",
			Message:    "model artifacts are not loaded",
		}
	case errors.Is(err, model.ErrMalformedBatchInput):
		return ErrorResponse{
			StatusCode: http.StatusBadRequest,
			Code:       "MALFORMED_BATCH_INPUT",
			Message:    err.Error(),
		}
	case errors.Is(err, model.ErrDimensionMismatch):
		return ErrorResponse{
			StatusCode: http.StatusInternalServerError,
			Code:       "MODEL_MISMATCH",
			Message:    "classifier does not accept the vectorizer output",
		}
	case errors.Is(err, store.ErrNotFound):
		return ErrorResponse{
			StatusCode: http.StatusNotFound,
			Code:       "NOT_FOUND",
			Message:    "download not found or expired",
		}
	default:
		return ErrorResponse{
			StatusCode: http.StatusInternalServerError,
			Code:       "INTERNAL_ERROR",
			Message:    "internal server error",
		}
	}
}

// HandleError sends the mapped response for err.
func HandleError(c *gin.Context, err error) {
	errResp := MapError(err)
	_ = c.Error(err)
	respondError(c, errResp.StatusCode, errResp.Code, errResp.Message)
}

// HandleInvalidRequest sends a 400 with message.
func HandleInvalidRequest(c *gin.Context, message string) {
	respondError(c, http.StatusBadRequest, "INVALID_REQUEST", message)
}
