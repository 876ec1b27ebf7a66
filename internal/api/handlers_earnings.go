package api

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"gig-marketplace/internal/database"
	"gig-marketplace/internal/fees"
	"gig-marketplace/internal/payout"
)

// CreateEarningRequest is the admin payload for recording a new earning
type CreateEarningRequest struct {
	WorkerID    string  `json:"worker_id" binding:"required"`
	JobID       *string `json:"job_id,omitempty"`
	GrossAmount float64 `json:"gross_amount" binding:"required"`
}

// handleCreateEarning records a pending earning for a worker. The fee is
// computed and locked in here; payout time never recomputes it.
func (s *Server) handleCreateEarning(c *gin.Context) {
	var req CreateEarningRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		errorResponse(c, http.StatusBadRequest, "invalid request: "+err.Error())
		return
	}

	ctx := c.Request.Context()

	if _, err := s.repo.GetWorker(ctx, req.WorkerID); err != nil {
		if errors.Is(err, database.ErrNotFound) {
			errorResponse(c, http.StatusNotFound, "worker not found")
			return
		}
		errorResponse(c, http.StatusInternalServerError, "failed to load worker")
		return
	}

	// A job-linked earning requires the job to be finished and assigned to
	// the worker being credited
	if req.JobID != nil {
		job, err := s.repo.GetJob(ctx, *req.JobID)
		if err != nil {
			if errors.Is(err, database.ErrNotFound) {
				errorResponse(c, http.StatusNotFound, "job not found")
				return
			}
			errorResponse(c, http.StatusInternalServerError, "failed to load job")
			return
		}
		if job.Status != "completed" || job.WorkerID == nil || *job.WorkerID != req.WorkerID {
			errorResponse(c, http.StatusUnprocessableEntity, database.ErrJobNotCompleted.Error())
			return
		}
	}

	breakdown, err := s.feePolicy.Compute(req.GrossAmount)
	if err != nil {
		if errors.Is(err, fees.ErrInvalidAmount) {
			errorResponse(c, http.StatusUnprocessableEntity, err.Error())
			return
		}
		errorResponse(c, http.StatusInternalServerError, "fee computation failed")
		return
	}

	earning := &database.Earning{
		WorkerID:    req.WorkerID,
		JobID:       req.JobID,
		GrossAmount: breakdown.Gross,
		ServiceFee:  breakdown.Fee,
		NetAmount:   breakdown.Net,
	}
	if err := s.repo.CreateEarning(ctx, earning); err != nil {
		s.logger.Error("Failed to create earning", "worker_id", req.WorkerID, "error", err)
		errorResponse(c, http.StatusInternalServerError, "failed to create earning")
		return
	}

	s.eventBus.PublishEarningCreated(earning.ID, earning.WorkerID, earning.GrossAmount, earning.ServiceFee, earning.NetAmount)

	c.JSON(http.StatusCreated, gin.H{
		"success": true,
		"data":    earning,
	})
}

// handleGetEarning returns one earning
func (s *Server) handleGetEarning(c *gin.Context) {
	earning, err := s.repo.GetEarning(c.Request.Context(), c.Param("id"))
	if err != nil {
		if errors.Is(err, database.ErrNotFound) {
			errorResponse(c, http.StatusNotFound, "earning not found")
			return
		}
		errorResponse(c, http.StatusInternalServerError, "failed to load earning")
		return
	}

	successResponse(c, earning)
}

// handlePayoutEarning settles a single earning on demand
func (s *Server) handlePayoutEarning(c *gin.Context) {
	result, err := s.engine.PayoutEarning(c.Request.Context(), c.Param("id"))
	if err != nil {
		s.logger.Error("Payout failed on infrastructure", "earning_id", c.Param("id"), "error", err)
		errorResponse(c, http.StatusInternalServerError, "payout could not be processed")
		return
	}

	c.JSON(payoutStatusCode(result), gin.H{
		"success": result.Success || result.AlreadySettled,
		"data":    result,
	})
}

// payoutStatusCode maps a payout outcome to an HTTP status
func payoutStatusCode(result *payout.PayoutResult) int {
	if result.Success || result.AlreadySettled {
		return http.StatusOK
	}
	switch result.Category {
	case payout.CategoryNotFound:
		return http.StatusNotFound
	case payout.CategoryMissingDestination:
		return http.StatusUnprocessableEntity
	case payout.CategoryTransient:
		return http.StatusServiceUnavailable
	default:
		return http.StatusBadGateway
	}
}

// CancelEarningRequest carries the reason for an administrative cancellation
type CancelEarningRequest struct {
	Reason string `json:"reason" binding:"required"`
}

// handleCancelEarning cancels a pending earning. Paid earnings cannot be
// cancelled through this path.
func (s *Server) handleCancelEarning(c *gin.Context) {
	var req CancelEarningRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		errorResponse(c, http.StatusBadRequest, "invalid request: "+err.Error())
		return
	}

	ctx := c.Request.Context()
	earningID := c.Param("id")

	err := s.repo.TransitionEarningCancelled(ctx, earningID, req.Reason)
	if err != nil {
		switch {
		case errors.Is(err, database.ErrNotFound):
			errorResponse(c, http.StatusNotFound, "earning not found")
		case errors.Is(err, database.ErrAlreadyPaid):
			errorResponse(c, http.StatusConflict, "earning already paid, use the refund path")
		case errors.Is(err, database.ErrEarningCancelled):
			errorResponse(c, http.StatusConflict, "earning already cancelled")
		default:
			errorResponse(c, http.StatusInternalServerError, "failed to cancel earning")
		}
		return
	}

	earning, err := s.repo.GetEarning(ctx, earningID)
	if err == nil {
		s.eventBus.PublishEarningCancelled(earning.ID, earning.WorkerID, req.Reason)
	}

	successResponse(c, gin.H{"cancelled": true, "earning_id": earningID})
}

// handleGetEarningEvents returns the audit trail for an earning
func (s *Server) handleGetEarningEvents(c *gin.Context) {
	limit := parseIntQuery(c, "limit", 50)

	eventsList, err := s.repo.ListPayoutEvents(c.Request.Context(), c.Param("id"), limit)
	if err != nil {
		errorResponse(c, http.StatusInternalServerError, "failed to load events")
		return
	}

	successResponse(c, eventsList)
}

// handleListPendingEarnings returns pending earnings platform-wide (admin)
func (s *Server) handleListPendingEarnings(c *gin.Context) {
	limit := parseIntQuery(c, "limit", 100)

	pending, err := s.repo.ListPendingEarnings(c.Request.Context(), limit)
	if err != nil {
		errorResponse(c, http.StatusInternalServerError, "failed to list pending earnings")
		return
	}

	successResponse(c, pending)
}

// parseIntQuery reads an integer query parameter with a default
func parseIntQuery(c *gin.Context, name string, fallback int) int {
	raw := c.Query(name)
	if raw == "" {
		return fallback
	}
	v, err := strconv.Atoi(raw)
	if err != nil || v < 0 {
		return fallback
	}
	return v
}
