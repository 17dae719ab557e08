package httpapi

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/gigswap/gigswap-backend/internal/domain"
)

// AutoConfirmBatch confirms every stale AWAITING_CONFIRMATION task past the
// hours threshold and reports the per-task outcome
func (h *Handler) AutoConfirmBatch(c *gin.Context) {
	hours := 48
	if raw := c.Query("hours"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed <= 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "hours must be a positive integer"})
			return
		}
		hours = parsed
	}

	results, err := h.lifecycle.AutoConfirmBatch(c.Request.Context(), hours)
	if err != nil {
		h.renderError(c, err)
		return
	}

	type resultResponse struct {
		TaskID string `json:"task_id"`
		OK     bool   `json:"ok"`
		Error  string `json:"error,omitempty"`
	}
	out := make([]resultResponse, 0, len(results))
	confirmed := 0
	for _, result := range results {
		resp := resultResponse{TaskID: result.TaskID.String(), OK: result.OK, Error: result.Error}
		if result.OK {
			confirmed++
		}
		out = append(out, resp)
	}

	h.log.Info("auto-confirm batch finished",
		zap.Int("total", len(results)),
		zap.Int("confirmed", confirmed))
	c.JSON(http.StatusOK, gin.H{"results": out})
}

type resolveRequest struct {
	Outcome string `json:"outcome" binding:"required"`
	Reason  string `json:"reason" binding:"required"`
}

// ResolveDispute settles a disputed task as COMPLETED or CANCELLED
func (h *Handler) ResolveDispute(c *gin.Context) {
	taskID, ok := h.pathID(c)
	if !ok {
		return
	}

	var req resolveRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	task, err := h.lifecycle.ResolveDispute(c.Request.Context(), taskID, h.userID(c),
		domain.TaskStatus(req.Outcome), req.Reason)
	if err != nil {
		h.renderError(c, err)
		return
	}

	c.JSON(http.StatusOK, toTaskResponse(task))
}

// LockTask freezes a task
func (h *Handler) LockTask(c *gin.Context) {
	taskID, ok := h.pathID(c)
	if !ok {
		return
	}

	var req reasonRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	task, err := h.moderation.LockTask(c.Request.Context(), h.userID(c), taskID, req.Reason)
	if err != nil {
		h.renderError(c, err)
		return
	}

	c.JSON(http.StatusOK, toTaskResponse(task))
}

// UnlockTask lifts a task freeze
func (h *Handler) UnlockTask(c *gin.Context) {
	taskID, ok := h.pathID(c)
	if !ok {
		return
	}

	var req reasonRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	task, err := h.moderation.UnlockTask(c.Request.Context(), h.userID(c), taskID, req.Reason)
	if err != nil {
		h.renderError(c, err)
		return
	}

	c.JSON(http.StatusOK, toTaskResponse(task))
}

// LockContract freezes a contract
func (h *Handler) LockContract(c *gin.Context) {
	contractID, ok := h.pathID(c)
	if !ok {
		return
	}

	var req reasonRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	contract, err := h.moderation.LockContract(c.Request.Context(), h.userID(c), contractID, req.Reason)
	if err != nil {
		h.renderError(c, err)
		return
	}

	c.JSON(http.StatusOK, toContractResponse(contract))
}

// UnlockContract lifts a contract freeze
func (h *Handler) UnlockContract(c *gin.Context) {
	contractID, ok := h.pathID(c)
	if !ok {
		return
	}

	var req reasonRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	contract, err := h.moderation.UnlockContract(c.Request.Context(), h.userID(c), contractID, req.Reason)
	if err != nil {
		h.renderError(c, err)
		return
	}

	c.JSON(http.StatusOK, toContractResponse(contract))
}

type refundRequest struct {
	Amount string `json:"amount"` // empty refunds the full charge
	Reason string `json:"reason" binding:"required"`
}

// TriggerRefund issues a moderator-initiated refund
func (h *Handler) TriggerRefund(c *gin.Context) {
	contractID, ok := h.pathID(c)
	if !ok {
		return
	}

	var req refundRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	var amount *decimal.Decimal
	if req.Amount != "" {
		parsed, err := parseAmount(req.Amount)
		if err != nil {
			h.renderError(c, err)
			return
		}
		amount = &parsed
	}

	payment, err := h.moderation.TriggerRefund(c.Request.Context(), h.userID(c), contractID, amount, req.Reason)
	if err != nil {
		h.renderError(c, err)
		return
	}

	c.JSON(http.StatusOK, toPaymentResponse(payment))
}
