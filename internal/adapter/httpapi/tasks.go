package httpapi

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/gigswap/gigswap-backend/internal/usecase/lifecycle"
)

type createTaskRequest struct {
	Title    string `json:"title" binding:"required"`
	Category string `json:"category" binding:"required"`
	Budget   string `json:"budget" binding:"required"`
}

// CreateTask posts a new task
func (h *Handler) CreateTask(c *gin.Context) {
	var req createTaskRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	budget, err := parseAmount(req.Budget)
	if err != nil {
		h.renderError(c, err)
		return
	}

	task, err := h.lifecycle.CreateTask(c.Request.Context(), lifecycle.CreateTaskInput{
		PosterID: h.userID(c),
		Title:    req.Title,
		Category: req.Category,
		Budget:   budget,
	})
	if err != nil {
		h.renderError(c, err)
		return
	}

	h.log.Info("task created", zap.String("task_id", task.ID.String()))
	c.JSON(http.StatusCreated, toTaskResponse(task))
}

// GetTask retrieves a task
func (h *Handler) GetTask(c *gin.Context) {
	taskID, ok := h.pathID(c)
	if !ok {
		return
	}

	task, err := h.tasks.GetByID(c.Request.Context(), taskID)
	if err != nil {
		h.renderError(c, err)
		return
	}

	c.JSON(http.StatusOK, toTaskResponse(task))
}

// GetTimeline retrieves a task's transition history
func (h *Handler) GetTimeline(c *gin.Context) {
	taskID, ok := h.pathID(c)
	if !ok {
		return
	}

	if _, err := h.tasks.GetByID(c.Request.Context(), taskID); err != nil {
		h.renderError(c, err)
		return
	}

	events, err := h.timeline.ListByTask(c.Request.Context(), taskID)
	if err != nil {
		h.renderError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"events": toTimelineResponse(events)})
}

type noteRequest struct {
	Note string `json:"note"`
}

type reasonRequest struct {
	Reason string `json:"reason"`
}

// OpenForBidding moves a task from OPEN to IN_BIDDING
func (h *Handler) OpenForBidding(c *gin.Context) {
	taskID, ok := h.pathID(c)
	if !ok {
		return
	}

	task, err := h.lifecycle.OpenForBidding(c.Request.Context(), taskID, h.userID(c))
	if err != nil {
		h.renderError(c, err)
		return
	}

	c.JSON(http.StatusOK, toTaskResponse(task))
}

// StartWork moves an assigned task to IN_PROGRESS
func (h *Handler) StartWork(c *gin.Context) {
	taskID, ok := h.pathID(c)
	if !ok {
		return
	}

	task, err := h.lifecycle.StartWork(c.Request.Context(), taskID, h.userID(c))
	if err != nil {
		h.renderError(c, err)
		return
	}

	c.JSON(http.StatusOK, toTaskResponse(task))
}

// CompleteWork moves a task to AWAITING_CONFIRMATION
func (h *Handler) CompleteWork(c *gin.Context) {
	taskID, ok := h.pathID(c)
	if !ok {
		return
	}

	var req noteRequest
	if !h.bindOptional(c, &req) {
		return
	}

	task, err := h.lifecycle.CompleteWork(c.Request.Context(), taskID, h.userID(c), req.Note)
	if err != nil {
		h.renderError(c, err)
		return
	}

	c.JSON(http.StatusOK, toTaskResponse(task))
}

// ConfirmCompletion confirms completion and triggers the payout
func (h *Handler) ConfirmCompletion(c *gin.Context) {
	taskID, ok := h.pathID(c)
	if !ok {
		return
	}

	var req noteRequest
	if !h.bindOptional(c, &req) {
		return
	}

	task, err := h.lifecycle.ConfirmCompletion(c.Request.Context(), taskID, h.userID(c), req.Note)
	if err != nil {
		h.renderError(c, err)
		return
	}

	c.JSON(http.StatusOK, toTaskResponse(task))
}

// CancelTask cancels a task
func (h *Handler) CancelTask(c *gin.Context) {
	taskID, ok := h.pathID(c)
	if !ok {
		return
	}

	var req reasonRequest
	if !h.bindOptional(c, &req) {
		return
	}

	task, err := h.lifecycle.Cancel(c.Request.Context(), taskID, h.userID(c), req.Reason)
	if err != nil {
		h.renderError(c, err)
		return
	}

	c.JSON(http.StatusOK, toTaskResponse(task))
}

// DisputeTask raises a dispute on a task
func (h *Handler) DisputeTask(c *gin.Context) {
	taskID, ok := h.pathID(c)
	if !ok {
		return
	}

	var req reasonRequest
	if !h.bindOptional(c, &req) {
		return
	}

	task, err := h.lifecycle.Dispute(c.Request.Context(), taskID, h.userID(c), req.Reason)
	if err != nil {
		h.renderError(c, err)
		return
	}

	c.JSON(http.StatusOK, toTaskResponse(task))
}
