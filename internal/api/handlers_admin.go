package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// handleRunPayoutBatch triggers a platform-wide settlement run
func (s *Server) handleRunPayoutBatch(c *gin.Context) {
	batch, err := s.coordinator.PayoutAllPending(c.Request.Context(), nil)
	if err != nil {
		s.logger.Error("Payout batch failed", "error", err)
		errorResponse(c, http.StatusInternalServerError, "payout batch could not be processed")
		return
	}

	successResponse(c, batch)
}

// handleSchedulerStatus reports whether the background settlement loop is
// running and when it fires next
func (s *Server) handleSchedulerStatus(c *gin.Context) {
	if s.scheduler == nil {
		successResponse(c, gin.H{"enabled": false})
		return
	}

	status := s.scheduler.GetStatus()
	successResponse(c, gin.H{
		"enabled": true,
		"status":  status,
	})
}
