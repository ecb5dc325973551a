package server

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"

	claimdomain "github.com/agrishield/claims/internal/claim/domain"
)

func TestMapError(t *testing.T) {
	cases := []struct {
		name     string
		err      error
		status   int
		codeType string
	}{
		{"not found", claimdomain.ErrClaimNotFound, http.StatusNotFound, "not_found"},
		{"invalid request", claimdomain.ErrInvalidRequest, http.StatusBadRequest, "invalid_request"},
		{"already paid", claimdomain.ErrAlreadyPaid, http.StatusConflict, "not_eligible_for_payout"},
		{"rejected", claimdomain.ErrClaimRejected, http.StatusConflict, "not_eligible_for_payout"},
		{"pending", claimdomain.ErrVerificationPending, http.StatusConflict, "not_eligible_for_payout"},
		{"not eligible", claimdomain.ErrNotEligibleForPayout, http.StatusConflict, "not_eligible_for_payout"},
		{"not reprocessable", claimdomain.ErrNotReprocessable, http.StatusConflict, "not_reprocessable"},
		{"payout failed", claimdomain.ErrPayoutFailed, http.StatusBadGateway, "payout_failed"},
		{"rate limited", ErrRateLimited, http.StatusTooManyRequests, "rate_limited"},
		{"unavailable", ErrServiceUnavailable, http.StatusServiceUnavailable, "service_unavailable"},
		{"unknown", errors.New("boom"), http.StatusInternalServerError, "internal_error"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			status, payload := mapError(tc.err)
			assert.Equal(t, tc.status, status)
			assert.Equal(t, tc.codeType, payload.Type)
		})
	}
}

func TestMapErrorValidation(t *testing.T) {
	status, payload := mapError(newValidationError("farmer_id", "required", "farmer_id is required"))
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Equal(t, "validation_error", payload.Type)
	if assert.Len(t, payload.Errors, 1) {
		assert.Equal(t, "farmer_id", payload.Errors[0].Field)
	}
}

func TestErrorHandlingMiddlewareWritesMappedResponse(t *testing.T) {
	gin.SetMode(gin.TestMode)
	engine := gin.New()
	engine.Use(ErrorHandlingMiddleware())
	engine.GET("/boom", func(c *gin.Context) {
		AbortWithError(c, claimdomain.ErrAlreadyPaid)
	})

	rec := httptest.NewRecorder()
	engine.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/boom", nil))

	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Contains(t, rec.Body.String(), "not_eligible_for_payout")
}

func TestClassifyErrorForLog(t *testing.T) {
	kind, code := classifyErrorForLog(claimdomain.ErrClaimNotFound)
	assert.Equal(t, "client_error", kind)
	assert.Equal(t, "not_found", code)

	kind, code = classifyErrorForLog(errors.New("boom"))
	assert.Equal(t, "server_error", kind)
	assert.Equal(t, "internal_error", code)
}
