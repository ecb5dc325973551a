package server

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

func (s *Server) registerHealthRoutes() {
	s.engine.GET("/health", s.Health)
}

// Health reports the node and its external collaborators. Degraded
// collaborators do not fail the probe: the pipeline is designed to absorb
// their outages.
func (s *Server) Health(c *gin.Context) {
	status := gin.H{
		"status":   "ok",
		"database": "ok",
		"verifier": "ok",
	}

	if sqlDB, err := s.db.DB(); err != nil || sqlDB.PingContext(c.Request.Context()) != nil {
		status["database"] = "unreachable"
		status["status"] = "degraded"
		c.JSON(http.StatusServiceUnavailable, status)
		return
	}

	if err := s.verifier.Healthy(c.Request.Context()); err != nil {
		status["verifier"] = "unreachable"
		status["status"] = "degraded"
	}

	c.JSON(http.StatusOK, status)
}
