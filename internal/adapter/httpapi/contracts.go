package httpapi

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/gigswap/gigswap-backend/internal/usecase/escrow"
)

// GetContract retrieves a contract. Only its parties may see it.
func (h *Handler) GetContract(c *gin.Context) {
	contractID, ok := h.pathID(c)
	if !ok {
		return
	}

	contract, err := h.contracts.GetByID(c.Request.Context(), contractID)
	if err != nil {
		h.renderError(c, err)
		return
	}

	userID := h.userID(c)
	if contract.PosterID != userID && contract.HelperID != userID {
		c.JSON(http.StatusForbidden, gin.H{"error": "not a party to this contract"})
		return
	}

	c.JSON(http.StatusOK, toContractResponse(contract))
}

// ListPayments lists a contract's ledger entries
func (h *Handler) ListPayments(c *gin.Context) {
	contractID, ok := h.pathID(c)
	if !ok {
		return
	}

	contract, err := h.contracts.GetByID(c.Request.Context(), contractID)
	if err != nil {
		h.renderError(c, err)
		return
	}

	userID := h.userID(c)
	if contract.PosterID != userID && contract.HelperID != userID {
		c.JSON(http.StatusForbidden, gin.H{"error": "not a party to this contract"})
		return
	}

	payments, err := h.payments.ListByContract(c.Request.Context(), contractID)
	if err != nil {
		h.renderError(c, err)
		return
	}

	out := make([]paymentResponse, 0, len(payments))
	for _, payment := range payments {
		out = append(out, toPaymentResponse(payment))
	}
	c.JSON(http.StatusOK, gin.H{"payments": out})
}

// RetryCharge re-runs charge creation for a contract stuck without one
func (h *Handler) RetryCharge(c *gin.Context) {
	contractID, ok := h.pathID(c)
	if !ok {
		return
	}

	contract, err := h.contracts.GetByID(c.Request.Context(), contractID)
	if err != nil {
		h.renderError(c, err)
		return
	}
	if contract.PosterID != h.userID(c) {
		c.JSON(http.StatusForbidden, gin.H{"error": "only the poster can retry the charge"})
		return
	}

	result, err := h.escrow.RetryCharge(c.Request.Context(), contractID)
	if err != nil {
		h.renderError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"charge_id": result.ChargeID, "client_handle": result.ClientHandle})
}

// ReleasePayout releases the escrowed payout to the helper
func (h *Handler) ReleasePayout(c *gin.Context) {
	contractID, ok := h.pathID(c)
	if !ok {
		return
	}

	contract, err := h.contracts.GetByID(c.Request.Context(), contractID)
	if err != nil {
		h.renderError(c, err)
		return
	}
	if contract.PosterID != h.userID(c) {
		c.JSON(http.StatusForbidden, gin.H{"error": "only the poster can release the payout"})
		return
	}

	payment, err := h.escrow.ReleasePayout(c.Request.Context(), contractID)
	if err != nil {
		h.renderError(c, err)
		return
	}

	h.log.Info("payout released",
		zap.String("contract_id", contractID.String()),
		zap.String("payment_id", payment.ID.String()))
	c.JSON(http.StatusOK, toPaymentResponse(payment))
}

type webhookRequest struct {
	Type string `json:"type" binding:"required"`
	Data struct {
		ID string `json:"id" binding:"required"`
	} `json:"data" binding:"required"`
}

// PaymentWebhook receives processor events. Always acknowledges events it
// recognizes even when they are duplicates; the processor retries anything
// not answered with 2xx.
func (h *Handler) PaymentWebhook(c *gin.Context) {
	var req webhookRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	err := h.escrow.HandleWebhook(c.Request.Context(), escrow.WebhookEvent{
		Type:         req.Type,
		ProcessorRef: req.Data.ID,
	})
	if err != nil {
		h.renderError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"received": true})
}
