package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// handleListWorkerEarnings returns a worker's earnings, optionally filtered
// by status
func (s *Server) handleListWorkerEarnings(c *gin.Context) {
	status := c.Query("status")
	limit := parseIntQuery(c, "limit", 50)

	earnings, err := s.repo.ListWorkerEarnings(c.Request.Context(), c.Param("id"), status, limit)
	if err != nil {
		errorResponse(c, http.StatusInternalServerError, "failed to list earnings")
		return
	}

	successResponse(c, earnings)
}

// handleWorkerEarningsSummary returns pending/paid totals for a worker
func (s *Server) handleWorkerEarningsSummary(c *gin.Context) {
	summary, err := s.repo.GetWorkerEarningsSummary(c.Request.Context(), c.Param("id"))
	if err != nil {
		errorResponse(c, http.StatusInternalServerError, "failed to load earnings summary")
		return
	}

	successResponse(c, summary)
}

// handleListWorkerPayments returns a worker's payment history
func (s *Server) handleListWorkerPayments(c *gin.Context) {
	limit := parseIntQuery(c, "limit", 50)

	payments, err := s.repo.ListUserPayments(c.Request.Context(), c.Param("id"), limit)
	if err != nil {
		errorResponse(c, http.StatusInternalServerError, "failed to list payments")
		return
	}

	successResponse(c, payments)
}

// handleWorkerBulkPayout settles all pending earnings for one worker
func (s *Server) handleWorkerBulkPayout(c *gin.Context) {
	workerID := c.Param("id")

	batch, err := s.coordinator.PayoutAllPending(c.Request.Context(), &workerID)
	if err != nil {
		s.logger.Error("Worker bulk payout failed", "worker_id", workerID, "error", err)
		errorResponse(c, http.StatusInternalServerError, "bulk payout could not be processed")
		return
	}

	successResponse(c, batch)
}
