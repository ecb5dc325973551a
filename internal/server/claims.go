package server

import (
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/gin-gonic/gin"

	claimdomain "github.com/agrishield/claims/internal/claim/domain"
	obsmetrics "github.com/agrishield/claims/internal/observability/metrics"
	"github.com/agrishield/claims/pkg/db/pagination"
)

// maxEvidenceFileSize bounds one uploaded evidence file.
const maxEvidenceFileSize = 10 << 20

// SubmitClaim accepts a multipart claim submission with optional evidence
// files under the "evidence" field.
func (s *Server) SubmitClaim(c *gin.Context) {
	var req struct {
		FarmerID            string  `form:"farmer_id"`
		CropType            string  `form:"crop_type"`
		AffectedArea        float64 `form:"affected_area"`
		LandSize            float64 `form:"land_size"`
		ClaimAmount         float64 `form:"claim_amount"`
		IncidentDate        string  `form:"incident_date"`
		IncidentDescription string  `form:"incident_description"`
		SoilType            string  `form:"soil_type"`
		IrrigationType      string  `form:"irrigation_type"`
		FertilizerUsage     float64 `form:"fertilizer_usage"`
		SowingDate          string  `form:"sowing_date"`
	}
	if err := c.ShouldBind(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	farmerID, err := snowflake.ParseString(strings.TrimSpace(req.FarmerID))
	if err != nil || farmerID == 0 {
		AbortWithError(c, newValidationError("farmer_id", "invalid_farmer_id", "invalid farmer_id"))
		return
	}

	if !s.allowSubmit(c, farmerID) {
		return
	}

	incidentDate, err := parseOptionalDate(req.IncidentDate)
	if err != nil {
		AbortWithError(c, newValidationError("incident_date", "invalid_incident_date", "invalid incident_date"))
		return
	}
	sowingDate, err := parseOptionalDate(req.SowingDate)
	if err != nil {
		AbortWithError(c, newValidationError("sowing_date", "invalid_sowing_date", "invalid sowing_date"))
		return
	}

	files, err := s.readEvidenceFiles(c)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	resp, err := s.claimSvc.SubmitClaim(c.Request.Context(), claimdomain.SubmitClaimRequest{
		FarmerID:            farmerID,
		CropType:            req.CropType,
		AffectedArea:        req.AffectedArea,
		LandSize:            req.LandSize,
		ClaimAmount:         req.ClaimAmount,
		IncidentDate:        incidentDate,
		IncidentDescription: req.IncidentDescription,
		SoilType:            req.SoilType,
		IrrigationType:      req.IrrigationType,
		FertilizerUsage:     req.FertilizerUsage,
		SowingDate:          sowingDate,
		Evidence:            files,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{"data": resp})
}

func (s *Server) allowSubmit(c *gin.Context, farmerID snowflake.ID) bool {
	if !s.submitLimiter.Enabled() {
		return true
	}
	res, err := s.submitLimiter.AllowFarmer(c.Request.Context(), farmerID.String())
	if err != nil {
		// Fail open: a broken limiter must not block intake.
		return true
	}
	if !res.Allowed {
		obsmetrics.Pipeline().IncRateLimitDenied()
		if res.RetryAfter > 0 {
			c.Header("Retry-After", res.RetryAfter.Round(time.Second).String())
		}
		AbortWithError(c, ErrRateLimited)
		return false
	}
	return true
}

func (s *Server) readEvidenceFiles(c *gin.Context) ([]claimdomain.EvidenceFile, error) {
	form, err := c.MultipartForm()
	if err != nil {
		// Form submissions without files are fine.
		return nil, nil
	}

	headers := form.File["evidence"]
	files := make([]claimdomain.EvidenceFile, 0, len(headers))
	for _, header := range headers {
		if header.Size > maxEvidenceFileSize {
			return nil, newValidationError("evidence", "file_too_large", "evidence file exceeds size limit")
		}
		f, err := header.Open()
		if err != nil {
			return nil, err
		}
		content, err := io.ReadAll(io.LimitReader(f, maxEvidenceFileSize))
		f.Close()
		if err != nil {
			return nil, err
		}
		files = append(files, claimdomain.EvidenceFile{
			FileName: header.Filename,
			Content:  content,
		})
	}
	return files, nil
}

func (s *Server) GetClaim(c *gin.Context) {
	id, err := snowflake.ParseString(c.Param("id"))
	if err != nil {
		AbortWithError(c, newValidationError("id", "invalid_id", "invalid claim id"))
		return
	}

	resp, err := s.claimSvc.GetClaim(c.Request.Context(), claimdomain.GetClaimRequest{
		ID:              id,
		IncludeEvidence: true,
		IncludeHistory:  c.Query("include_history") == "true",
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) ListClaims(c *gin.Context) {
	var query struct {
		pagination.Pagination
		FarmerID string `form:"farmer_id"`
		Status   string `form:"status"`
		CropType string `form:"crop_type"`
	}
	if err := c.ShouldBindQuery(&query); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	filter := claimdomain.ClaimFilter{
		Status:   claimdomain.Status(strings.ToLower(strings.TrimSpace(query.Status))),
		CropType: strings.ToLower(strings.TrimSpace(query.CropType)),
	}
	if raw := strings.TrimSpace(query.FarmerID); raw != "" {
		farmerID, err := snowflake.ParseString(raw)
		if err != nil {
			AbortWithError(c, newValidationError("farmer_id", "invalid_farmer_id", "invalid farmer_id"))
			return
		}
		filter.FarmerID = farmerID
	}

	resp, err := s.claimSvc.ListClaims(c.Request.Context(), claimdomain.ListClaimsRequest{
		Filter:     filter,
		Pagination: query.Pagination,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"data":      resp.Claims,
		"page_info": resp.PageInfo,
	})
}

func (s *Server) ReprocessClaim(c *gin.Context) {
	id, err := snowflake.ParseString(c.Param("id"))
	if err != nil {
		AbortWithError(c, newValidationError("id", "invalid_id", "invalid claim id"))
		return
	}

	resp, err := s.claimSvc.ReprocessClaim(c.Request.Context(), id)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func parseOptionalDate(raw string) (*time.Time, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, nil
	}
	t, err := time.Parse("2006-01-02", raw)
	if err != nil {
		t, err = time.Parse(time.RFC3339, raw)
		if err != nil {
			return nil, err
		}
	}
	return &t, nil
}
