package server

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	claimdomain "github.com/agrishield/claims/internal/claim/domain"
)

type ValidationError struct {
	Field   string `json:"field"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

type ValidationErrors struct {
	Errors []ValidationError `json:"errors"`
}

func (v ValidationErrors) Error() string {
	return "validation error"
}

type errorPayload struct {
	Type    string            `json:"type"`
	Message string            `json:"message"`
	Errors  []ValidationError `json:"errors,omitempty"`
}

type errorResponse struct {
	Error errorPayload `json:"error"`
}

var (
	ErrInternal           = errors.New("internal_error")
	ErrRateLimited        = errors.New("rate_limited")
	ErrServiceUnavailable = errors.New("service_unavailable")
)

func ErrorHandlingMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		if c.Writer.Written() {
			return
		}

		lastErr := c.Errors.Last()
		if lastErr == nil {
			return
		}

		status, payload := mapError(lastErr.Err)
		c.Header("Content-Type", "application/json")
		c.AbortWithStatusJSON(status, errorResponse{Error: payload})
	}
}

func AbortWithError(c *gin.Context, err error) {
	if err == nil {
		return
	}
	_ = c.Error(err)
	c.Abort()
}

func invalidRequestError() error {
	return newValidationError("request", "invalid_request", "invalid request")
}

func newValidationError(field, code, message string) error {
	return &ValidationErrors{
		Errors: []ValidationError{
			{
				Field:   field,
				Code:    code,
				Message: message,
			},
		},
	}
}

func mapError(err error) (int, errorPayload) {
	var validation *ValidationErrors
	if errors.As(err, &validation) {
		return http.StatusBadRequest, errorPayload{
			Type:    "validation_error",
			Message: "validation error",
			Errors:  validation.Errors,
		}
	}

	switch {
	case errors.Is(err, claimdomain.ErrClaimNotFound),
		errors.Is(err, gorm.ErrRecordNotFound):
		return http.StatusNotFound, errorPayload{
			Type:    "not_found",
			Message: "claim not found",
		}
	case errors.Is(err, claimdomain.ErrInvalidRequest):
		return http.StatusBadRequest, errorPayload{
			Type:    "invalid_request",
			Message: "invalid request",
		}
	case errors.Is(err, claimdomain.ErrAlreadyPaid):
		return http.StatusConflict, errorPayload{
			Type:    "not_eligible_for_payout",
			Message: "claim already has a successful payout",
		}
	case errors.Is(err, claimdomain.ErrClaimRejected):
		return http.StatusConflict, errorPayload{
			Type:    "not_eligible_for_payout",
			Message: "claim was rejected",
		}
	case errors.Is(err, claimdomain.ErrVerificationPending):
		return http.StatusConflict, errorPayload{
			Type:    "not_eligible_for_payout",
			Message: "claim verification is still pending",
		}
	case errors.Is(err, claimdomain.ErrNotEligibleForPayout):
		return http.StatusConflict, errorPayload{
			Type:    "not_eligible_for_payout",
			Message: "claim is not eligible for payout",
		}
	case errors.Is(err, claimdomain.ErrNotReprocessable):
		return http.StatusConflict, errorPayload{
			Type:    "not_reprocessable",
			Message: "claim already holds a verdict",
		}
	case errors.Is(err, claimdomain.ErrPayoutFailed):
		return http.StatusBadGateway, errorPayload{
			Type:    "payout_failed",
			Message: "payout gateway did not complete the payment; the attempt was recorded and may be retried",
		}
	case errors.Is(err, ErrRateLimited):
		return http.StatusTooManyRequests, errorPayload{
			Type:    "rate_limited",
			Message: "too many submissions, retry later",
		}
	case errors.Is(err, ErrServiceUnavailable):
		return http.StatusServiceUnavailable, errorPayload{
			Type:    "service_unavailable",
			Message: "service unavailable",
		}
	default:
		return http.StatusInternalServerError, errorPayload{
			Type:    "internal_error",
			Message: "internal error",
		}
	}
}

// classifyErrorForLog maps an error onto (type, code) labels for request
// logs.
func classifyErrorForLog(err error) (string, string) {
	status, payload := mapError(err)
	switch {
	case status >= 500:
		return "server_error", payload.Type
	case status >= 400:
		return "client_error", payload.Type
	default:
		return "none", payload.Type
	}
}
