package server

import (
	"net/http"
	"strings"

	"github.com/bwmarrin/snowflake"
	"github.com/gin-gonic/gin"

	claimdomain "github.com/agrishield/claims/internal/claim/domain"
)

type initiatePayoutRequest struct {
	Method string `json:"method"`
}

func (s *Server) InitiatePayout(c *gin.Context) {
	id, err := snowflake.ParseString(c.Param("id"))
	if err != nil {
		AbortWithError(c, newValidationError("id", "invalid_id", "invalid claim id"))
		return
	}

	var req initiatePayoutRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			AbortWithError(c, invalidRequestError())
			return
		}
	}

	resp, err := s.claimSvc.InitiatePayout(c.Request.Context(), claimdomain.InitiatePayoutRequest{
		ClaimID: id,
		Method:  strings.TrimSpace(req.Method),
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) ListPayouts(c *gin.Context) {
	id, err := snowflake.ParseString(c.Param("id"))
	if err != nil {
		AbortWithError(c, newValidationError("id", "invalid_id", "invalid claim id"))
		return
	}

	resp, err := s.claimSvc.ListPayouts(c.Request.Context(), claimdomain.ListPayoutsRequest{ClaimID: id})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp.Transactions})
}
