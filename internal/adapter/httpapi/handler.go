package httpapi

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/gigswap/gigswap-backend/internal/domain"
	"github.com/gigswap/gigswap-backend/internal/usecase/bidding"
	"github.com/gigswap/gigswap-backend/internal/usecase/escrow"
	"github.com/gigswap/gigswap-backend/internal/usecase/lifecycle"
)

// LifecycleService drives task status transitions
type LifecycleService interface {
	CreateTask(ctx context.Context, input lifecycle.CreateTaskInput) (*domain.Task, error)
	OpenForBidding(ctx context.Context, taskID, posterID uuid.UUID) (*domain.Task, error)
	StartWork(ctx context.Context, taskID, helperID uuid.UUID) (*domain.Task, error)
	CompleteWork(ctx context.Context, taskID, helperID uuid.UUID, notes string) (*domain.Task, error)
	ConfirmCompletion(ctx context.Context, taskID, posterID uuid.UUID, notes string) (*domain.Task, error)
	Cancel(ctx context.Context, taskID, userID uuid.UUID, reason string) (*domain.Task, error)
	Dispute(ctx context.Context, taskID, userID uuid.UUID, reason string) (*domain.Task, error)
	ResolveDispute(ctx context.Context, taskID, operatorID uuid.UUID, outcome domain.TaskStatus, reason string) (*domain.Task, error)
	AutoConfirmBatch(ctx context.Context, hoursThreshold int) ([]lifecycle.BatchResult, error)
}

// BiddingService places, withdraws and lists bids
type BiddingService interface {
	PlaceBid(ctx context.Context, input bidding.PlaceBidInput) (*domain.Bid, error)
	WithdrawBid(ctx context.Context, helperID, bidID uuid.UUID) (*domain.Bid, error)
	ListBids(ctx context.Context, viewerID, taskID uuid.UUID, sort domain.BidSort) ([]*domain.Bid, error)
}

// FormationService turns an accepted bid into a contract
type FormationService interface {
	AcceptBid(ctx context.Context, posterID, bidID uuid.UUID) (*domain.Contract, error)
}

// EscrowService orchestrates payments against the external processor
type EscrowService interface {
	RetryCharge(ctx context.Context, contractID uuid.UUID) (*domain.ChargeResult, error)
	ReleasePayout(ctx context.Context, contractID uuid.UUID) (*domain.Payment, error)
	HandleWebhook(ctx context.Context, event escrow.WebhookEvent) error
}

// ModerationService applies administrative interventions
type ModerationService interface {
	LockTask(ctx context.Context, moderatorID, taskID uuid.UUID, reason string) (*domain.Task, error)
	UnlockTask(ctx context.Context, moderatorID, taskID uuid.UUID, reason string) (*domain.Task, error)
	LockContract(ctx context.Context, moderatorID, contractID uuid.UUID, reason string) (*domain.Contract, error)
	UnlockContract(ctx context.Context, moderatorID, contractID uuid.UUID, reason string) (*domain.Contract, error)
	TriggerRefund(ctx context.Context, moderatorID, contractID uuid.UUID, amount *decimal.Decimal, reason string) (*domain.Payment, error)
}

// Handler exposes the marketplace over HTTP
type Handler struct {
	lifecycle  LifecycleService
	bidding    BiddingService
	formation  FormationService
	escrow     EscrowService
	moderation ModerationService
	tasks      domain.TaskRepository
	contracts  domain.ContractRepository
	payments   domain.PaymentRepository
	timeline   domain.TimelineRepository
	opsToken   string
	log        *zap.Logger
}

// SetupHandlers registers all routes on the engine
func SetupHandlers(
	r *gin.Engine,
	lifecycleSvc LifecycleService,
	biddingSvc BiddingService,
	formationSvc FormationService,
	escrowSvc EscrowService,
	moderationSvc ModerationService,
	tasks domain.TaskRepository,
	contracts domain.ContractRepository,
	payments domain.PaymentRepository,
	timeline domain.TimelineRepository,
	opsToken string,
	logger *zap.Logger,
) {
	h := &Handler{
		lifecycle:  lifecycleSvc,
		bidding:    biddingSvc,
		formation:  formationSvc,
		escrow:     escrowSvc,
		moderation: moderationSvc,
		tasks:      tasks,
		contracts:  contracts,
		payments:   payments,
		timeline:   timeline,
		opsToken:   opsToken,
		log:        logger,
	}

	r.GET("/healthz", h.Health)
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))
	r.POST("/webhooks/payments", h.PaymentWebhook)

	v1 := r.Group("/v1", h.requireUser)
	{
		v1.POST("/tasks", h.CreateTask)
		v1.GET("/tasks/:id", h.GetTask)
		v1.GET("/tasks/:id/timeline", h.GetTimeline)
		v1.POST("/tasks/:id/open", h.OpenForBidding)
		v1.POST("/tasks/:id/start", h.StartWork)
		v1.POST("/tasks/:id/complete", h.CompleteWork)
		v1.POST("/tasks/:id/confirm", h.ConfirmCompletion)
		v1.POST("/tasks/:id/cancel", h.CancelTask)
		v1.POST("/tasks/:id/dispute", h.DisputeTask)

		v1.POST("/tasks/:id/bids", h.PlaceBid)
		v1.GET("/tasks/:id/bids", h.ListBids)
		v1.POST("/bids/:id/withdraw", h.WithdrawBid)
		v1.POST("/bids/:id/accept", h.AcceptBid)

		v1.GET("/contracts/:id", h.GetContract)
		v1.GET("/contracts/:id/payments", h.ListPayments)
		v1.POST("/contracts/:id/retry-charge", h.RetryCharge)
		v1.POST("/contracts/:id/release", h.ReleasePayout)
	}

	ops := r.Group("/ops", h.requireUser, h.requireOpsToken)
	{
		ops.POST("/auto-confirm", h.AutoConfirmBatch)
		ops.POST("/tasks/:id/resolve", h.ResolveDispute)
		ops.POST("/tasks/:id/lock", h.LockTask)
		ops.POST("/tasks/:id/unlock", h.UnlockTask)
		ops.POST("/contracts/:id/lock", h.LockContract)
		ops.POST("/contracts/:id/unlock", h.UnlockContract)
		ops.POST("/contracts/:id/refund", h.TriggerRefund)
	}
}

// Health reports service liveness
func (h *Handler) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

const userIDKey = "userID"

// requireUser resolves the acting user from the X-User-ID header set by the
// authenticating proxy in front of this service
func (h *Handler) requireUser(c *gin.Context) {
	raw := c.GetHeader("X-User-ID")
	if raw == "" {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "missing X-User-ID header"})
		return
	}
	userID, err := uuid.Parse(raw)
	if err != nil {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid X-User-ID header"})
		return
	}
	c.Set(userIDKey, userID)
	c.Next()
}

// requireOpsToken guards the operator surface with a shared bearer token
func (h *Handler) requireOpsToken(c *gin.Context) {
	if h.opsToken == "" || c.GetHeader("Authorization") != "Bearer "+h.opsToken {
		c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "invalid ops token"})
		return
	}
	c.Next()
}

func (h *Handler) userID(c *gin.Context) uuid.UUID {
	return c.MustGet(userIDKey).(uuid.UUID)
}

// bindOptional binds a JSON body when one is present. An empty body leaves
// the target at its zero value.
func (h *Handler) bindOptional(c *gin.Context, out interface{}) bool {
	if c.Request.ContentLength == 0 {
		return true
	}
	if err := c.ShouldBindJSON(out); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return false
	}
	return true
}

func (h *Handler) pathID(c *gin.Context) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid id"})
		return uuid.Nil, false
	}
	return id, true
}

// renderError maps the domain error taxonomy to HTTP status codes
func (h *Handler) renderError(c *gin.Context, err error) {
	var verr *domain.ValidationError
	if errors.As(err, &verr) {
		c.JSON(http.StatusBadRequest, gin.H{"error": verr.Error(), "field": verr.Field})
		return
	}

	var terr *domain.InvalidTransitionError
	if errors.As(err, &terr) {
		c.JSON(http.StatusConflict, gin.H{"error": terr.Error()})
		return
	}

	switch {
	case errors.Is(err, domain.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
	case errors.Is(err, domain.ErrForbidden):
		c.JSON(http.StatusForbidden, gin.H{"error": err.Error()})
	case errors.Is(err, domain.ErrConflict):
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
	case errors.Is(err, domain.ErrExternalService):
		h.log.Error("payment processor error", zap.Error(err))
		c.JSON(http.StatusBadGateway, gin.H{"error": "payment processor unavailable"})
	default:
		h.log.Error("internal error", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
	}
}
