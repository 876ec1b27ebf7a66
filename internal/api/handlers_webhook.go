package api

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"

	"gig-marketplace/internal/database"
	"gig-marketplace/internal/gateway"
)

// handleStripeWebhook processes gateway callbacks. Reversals flip the
// matching payment record to refunded; account updates refresh the worker's
// payout destination. Earning status is never touched from here, that is the
// ledger's job.
func (s *Server) handleStripeWebhook(c *gin.Context) {
	payload, err := io.ReadAll(http.MaxBytesReader(c.Writer, c.Request.Body, 65536))
	if err != nil {
		errorResponse(c, http.StatusBadRequest, "failed to read payload")
		return
	}

	event, err := s.stripe.ParseWebhook(payload, c.GetHeader("Stripe-Signature"))
	if err != nil {
		s.logger.Warn("Rejected webhook", "error", err)
		errorResponse(c, http.StatusBadRequest, "invalid webhook")
		return
	}

	switch event.Type {
	case "transfer.reversed":
		s.handleTransferReversed(c, event)
	case "account.updated":
		s.handleAccountUpdated(c, event)
	default:
		s.logger.Debug("Ignoring webhook event", "type", event.Type)
		successResponse(c, gin.H{"received": true})
	}
}

func (s *Server) handleTransferReversed(c *gin.Context, event *gateway.WebhookEvent) {
	var transfer gateway.TransferData
	if err := json.Unmarshal(event.Data.Object, &transfer); err != nil {
		errorResponse(c, http.StatusBadRequest, "malformed transfer object")
		return
	}

	err := s.repo.UpdatePaymentStatusByExternalID(c.Request.Context(), transfer.ID, database.PaymentStatusRefunded)
	if err != nil {
		if errors.Is(err, database.ErrNotFound) {
			// Reversal for a transfer we never recorded. Acknowledge so
			// Stripe stops retrying, but leave a trace.
			s.logger.Warn("Reversal for unknown transfer", "transfer_id", transfer.ID)
			successResponse(c, gin.H{"received": true})
			return
		}
		errorResponse(c, http.StatusInternalServerError, "failed to record reversal")
		return
	}

	s.logger.Info("Payment marked refunded after transfer reversal", "transfer_id", transfer.ID)
	successResponse(c, gin.H{"received": true})
}

func (s *Server) handleAccountUpdated(c *gin.Context, event *gateway.WebhookEvent) {
	var account gateway.AccountData
	if err := json.Unmarshal(event.Data.Object, &account); err != nil {
		errorResponse(c, http.StatusBadRequest, "malformed account object")
		return
	}

	worker, err := s.repo.GetWorkerByPayoutAccount(c.Request.Context(), account.ID)
	if err != nil {
		if errors.Is(err, database.ErrNotFound) {
			successResponse(c, gin.H{"received": true})
			return
		}
		errorResponse(c, http.StatusInternalServerError, "failed to resolve account")
		return
	}

	err = s.repo.SetWorkerPayoutDestination(c.Request.Context(), worker.ID, account.ID, account.PayoutsEnabled)
	if err != nil {
		errorResponse(c, http.StatusInternalServerError, "failed to update payout destination")
		return
	}

	if s.destCache != nil {
		s.destCache.Invalidate(c.Request.Context(), worker.ID)
	}

	s.logger.Info("Payout destination updated from account webhook",
		"worker_id", worker.ID, "payouts_enabled", account.PayoutsEnabled)
	successResponse(c, gin.H{"received": true})
}
