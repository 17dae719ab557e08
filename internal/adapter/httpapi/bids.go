package httpapi

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/gigswap/gigswap-backend/internal/domain"
	"github.com/gigswap/gigswap-backend/internal/usecase/bidding"
)

type placeBidRequest struct {
	Amount string `json:"amount" binding:"required"`
	Note   string `json:"note"`
}

// PlaceBid places a bid on a task
func (h *Handler) PlaceBid(c *gin.Context) {
	taskID, ok := h.pathID(c)
	if !ok {
		return
	}

	var req placeBidRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	amount, err := parseAmount(req.Amount)
	if err != nil {
		h.renderError(c, err)
		return
	}

	bid, err := h.bidding.PlaceBid(c.Request.Context(), bidding.PlaceBidInput{
		HelperID: h.userID(c),
		TaskID:   taskID,
		Amount:   amount,
		Note:     req.Note,
	})
	if err != nil {
		h.renderError(c, err)
		return
	}

	h.log.Info("bid placed",
		zap.String("bid_id", bid.ID.String()),
		zap.String("task_id", taskID.String()))
	c.JSON(http.StatusCreated, toBidResponse(bid))
}

// ListBids lists a task's bids, scoped to what the viewer may see
func (h *Handler) ListBids(c *gin.Context) {
	taskID, ok := h.pathID(c)
	if !ok {
		return
	}

	sort := domain.BidSort{
		Field:      domain.BidSortField(c.Query("sort")),
		Descending: c.Query("order") == "desc",
	}

	bids, err := h.bidding.ListBids(c.Request.Context(), h.userID(c), taskID, sort)
	if err != nil {
		h.renderError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"bids": toBidResponses(bids)})
}

// WithdrawBid withdraws the caller's pending bid
func (h *Handler) WithdrawBid(c *gin.Context) {
	bidID, ok := h.pathID(c)
	if !ok {
		return
	}

	bid, err := h.bidding.WithdrawBid(c.Request.Context(), h.userID(c), bidID)
	if err != nil {
		h.renderError(c, err)
		return
	}

	c.JSON(http.StatusOK, toBidResponse(bid))
}

// AcceptBid accepts a bid and forms the contract
func (h *Handler) AcceptBid(c *gin.Context) {
	bidID, ok := h.pathID(c)
	if !ok {
		return
	}

	contract, err := h.formation.AcceptBid(c.Request.Context(), h.userID(c), bidID)
	if err != nil {
		h.renderError(c, err)
		return
	}

	h.log.Info("bid accepted",
		zap.String("bid_id", bidID.String()),
		zap.String("contract_id", contract.ID.String()))
	c.JSON(http.StatusCreated, toContractResponse(contract))
}
