package httpapi

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/gigswap/gigswap-backend/internal/domain"
)

type taskResponse struct {
	ID               string     `json:"id"`
	PosterID         string     `json:"poster_id"`
	Title            string     `json:"title"`
	Category         string     `json:"category"`
	Budget           string     `json:"budget"`
	Status           string     `json:"status"`
	AssignedHelperID *string    `json:"assigned_helper_id,omitempty"`
	Locked           bool       `json:"locked"`
	CreatedAt        time.Time  `json:"created_at"`
	UpdatedAt        time.Time  `json:"updated_at"`
}

func toTaskResponse(task *domain.Task) taskResponse {
	resp := taskResponse{
		ID:        task.ID.String(),
		PosterID:  task.PosterID.String(),
		Title:     task.Title,
		Category:  task.Category,
		Budget:    task.Budget.StringFixed(2),
		Status:    string(task.Status),
		Locked:    task.Locked,
		CreatedAt: task.CreatedAt,
		UpdatedAt: task.UpdatedAt,
	}
	if task.AssignedHelperID != nil {
		helperID := task.AssignedHelperID.String()
		resp.AssignedHelperID = &helperID
	}
	return resp
}

type bidResponse struct {
	ID        string    `json:"id"`
	TaskID    string    `json:"task_id"`
	HelperID  string    `json:"helper_id"`
	Amount    string    `json:"amount"`
	Note      string    `json:"note,omitempty"`
	Status    string    `json:"status"`
	CreatedAt time.Time `json:"created_at"`
}

func toBidResponse(bid *domain.Bid) bidResponse {
	return bidResponse{
		ID:        bid.ID.String(),
		TaskID:    bid.TaskID.String(),
		HelperID:  bid.HelperID.String(),
		Amount:    bid.Amount.StringFixed(2),
		Note:      bid.Note,
		Status:    string(bid.Status),
		CreatedAt: bid.CreatedAt,
	}
}

func toBidResponses(bids []*domain.Bid) []bidResponse {
	out := make([]bidResponse, 0, len(bids))
	for _, bid := range bids {
		out = append(out, toBidResponse(bid))
	}
	return out
}

type contractResponse struct {
	ID                 string     `json:"id"`
	TaskID             string     `json:"task_id"`
	PosterID           string     `json:"poster_id"`
	HelperID           string     `json:"helper_id"`
	AcceptedBidID      string     `json:"accepted_bid_id"`
	AgreedAmount       string     `json:"agreed_amount"`
	PaymentStatus      string     `json:"payment_status"`
	ChargeID           *string    `json:"charge_id,omitempty"`
	PayoutID           *string    `json:"payout_id,omitempty"`
	RefundID           *string    `json:"refund_id,omitempty"`
	PaymentCompletedAt *time.Time `json:"payment_completed_at,omitempty"`
	AutoReleaseAt      *time.Time `json:"auto_release_at,omitempty"`
	Locked             bool       `json:"locked"`
	Active             bool       `json:"active"`
	CreatedAt          time.Time  `json:"created_at"`
}

func toContractResponse(contract *domain.Contract) contractResponse {
	return contractResponse{
		ID:                 contract.ID.String(),
		TaskID:             contract.TaskID.String(),
		PosterID:           contract.PosterID.String(),
		HelperID:           contract.HelperID.String(),
		AcceptedBidID:      contract.AcceptedBidID.String(),
		AgreedAmount:       contract.AgreedAmount.StringFixed(2),
		PaymentStatus:      string(contract.PaymentStatus),
		ChargeID:           contract.ChargeID,
		PayoutID:           contract.PayoutID,
		RefundID:           contract.RefundID,
		PaymentCompletedAt: contract.PaymentCompletedAt,
		AutoReleaseAt:      contract.AutoReleaseAt,
		Locked:             contract.Locked,
		Active:             contract.Active,
		CreatedAt:          contract.CreatedAt,
	}
}

type paymentResponse struct {
	ID           string    `json:"id"`
	ContractID   string    `json:"contract_id"`
	Type         string    `json:"type"`
	Amount       string    `json:"amount"`
	Status       string    `json:"status"`
	ProcessorRef string    `json:"processor_ref"`
	Description  string    `json:"description,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
}

func toPaymentResponse(payment *domain.Payment) paymentResponse {
	return paymentResponse{
		ID:           payment.ID.String(),
		ContractID:   payment.ContractID.String(),
		Type:         string(payment.Type),
		Amount:       payment.Amount.StringFixed(2),
		Status:       string(payment.Status),
		ProcessorRef: payment.ProcessorRef,
		Description:  payment.Description,
		CreatedAt:    payment.CreatedAt,
	}
}

type timelineEventResponse struct {
	ID         string    `json:"id"`
	Event      string    `json:"event"`
	ActorID    *string   `json:"actor_id,omitempty"`
	FromStatus string    `json:"from_status"`
	ToStatus   string    `json:"to_status"`
	Note       string    `json:"note,omitempty"`
	CreatedAt  time.Time `json:"created_at"`
}

func toTimelineResponse(events []*domain.TimelineEvent) []timelineEventResponse {
	out := make([]timelineEventResponse, 0, len(events))
	for _, event := range events {
		resp := timelineEventResponse{
			ID:         event.ID.String(),
			Event:      event.Event,
			FromStatus: string(event.FromStatus),
			ToStatus:   string(event.ToStatus),
			Note:       event.Note,
			CreatedAt:  event.CreatedAt,
		}
		if event.ActorID != nil {
			actorID := event.ActorID.String()
			resp.ActorID = &actorID
		}
		out = append(out, resp)
	}
	return out
}

// parseAmount parses a positive decimal amount from a request body field
func parseAmount(raw string) (decimal.Decimal, error) {
	amount, err := decimal.NewFromString(raw)
	if err != nil {
		return decimal.Zero, domain.NewValidationError("amount", "must be a decimal number")
	}
	if amount.LessThanOrEqual(decimal.Zero) {
		return decimal.Zero, domain.NewValidationError("amount", "must be positive")
	}
	return amount, nil
}
