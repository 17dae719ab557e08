package lifecycle

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/gigswap/gigswap-backend/internal/domain"
)

// Releaser releases a contract's escrowed payout. Implemented by the escrow
// service.
type Releaser interface {
	ReleasePayout(ctx context.Context, contractID uuid.UUID) (*domain.Payment, error)
}

// CreateTaskInput represents the input for posting a task
type CreateTaskInput struct {
	PosterID uuid.UUID
	Title    string
	Category string
	Budget   decimal.Decimal
}

// Service validates and applies task status transitions, cooperating with
// the escrow service at completion. Every transition appends an immutable
// timeline event.
type Service struct {
	Tasks     domain.TaskRepository
	Contracts domain.ContractRepository
	Timeline  domain.TimelineRepository
	Escrow    Releaser

	ReleaseWindow time.Duration

	log *zap.Logger
}

// NewService creates a new lifecycle Service instance
func NewService(
	tasks domain.TaskRepository,
	contracts domain.ContractRepository,
	timeline domain.TimelineRepository,
	escrow Releaser,
	releaseWindow time.Duration,
	logger *zap.Logger,
) *Service {
	return &Service{
		Tasks:         tasks,
		Contracts:     contracts,
		Timeline:      timeline,
		Escrow:        escrow,
		ReleaseWindow: releaseWindow,
		log:           logger,
	}
}

// CreateTask posts a new task in OPEN state.
func (s *Service) CreateTask(ctx context.Context, input CreateTaskInput) (*domain.Task, error) {
	task := &domain.Task{
		ID:        uuid.New(),
		PosterID:  input.PosterID,
		Title:     input.Title,
		Category:  input.Category,
		Budget:    input.Budget,
		Status:    domain.TaskStatusOpen,
		CreatedAt: time.Now(),
		UpdatedAt: time.Now(),
	}
	if err := task.Validate(); err != nil {
		return nil, err
	}
	if err := s.Tasks.Create(ctx, task); err != nil {
		return nil, fmt.Errorf("create task: %w", err)
	}
	s.appendTimeline(ctx, task, "task_created", &input.PosterID, domain.TaskStatusOpen, "")
	return task, nil
}

// OpenForBidding moves an OPEN task into active bidding.
func (s *Service) OpenForBidding(ctx context.Context, taskID, posterID uuid.UUID) (*domain.Task, error) {
	return s.transition(ctx, taskID, domain.TaskStatusInBidding, "bidding_opened", &posterID, "",
		func(task *domain.Task) error {
			if task.PosterID != posterID {
				return fmt.Errorf("only the poster can open bidding: %w", domain.ErrForbidden)
			}
			return nil
		}, nil)
}

// StartWork moves an ASSIGNED task to IN_PROGRESS. Caller must be the
// assigned helper.
func (s *Service) StartWork(ctx context.Context, taskID, helperID uuid.UUID) (*domain.Task, error) {
	return s.transition(ctx, taskID, domain.TaskStatusInProgress, "work_started", &helperID, "",
		func(task *domain.Task) error {
			return requireAssignedHelper(task, helperID)
		}, nil)
}

// CompleteWork moves an IN_PROGRESS task to AWAITING_CONFIRMATION and starts
// the auto-release clock on the contract if it is not already running.
func (s *Service) CompleteWork(ctx context.Context, taskID, helperID uuid.UUID, notes string) (*domain.Task, error) {
	return s.transition(ctx, taskID, domain.TaskStatusAwaitingConfirmation, "work_completed", &helperID, notes,
		func(task *domain.Task) error {
			return requireAssignedHelper(task, helperID)
		},
		func(task *domain.Task) {
			contract, err := s.Contracts.GetByTaskID(ctx, task.ID)
			if err != nil {
				s.log.Warn("no contract for completed task", zap.String("task_id", task.ID.String()), zap.Error(err))
				return
			}
			if contract.AutoReleaseAt != nil {
				return
			}
			deadline := time.Now().Add(s.ReleaseWindow)
			contract.AutoReleaseAt = &deadline
			contract.UpdatedAt = time.Now()
			if err := s.Contracts.Update(ctx, contract); err != nil {
				s.log.Error("set auto-release deadline", zap.String("contract_id", contract.ID.String()), zap.Error(err))
			}
		})
}

// ConfirmCompletion moves an AWAITING_CONFIRMATION task to COMPLETED and
// triggers payout release. A release failure does not roll back the status
// change: the payout is retryable and the scheduler will pick it up.
func (s *Service) ConfirmCompletion(ctx context.Context, taskID, posterID uuid.UUID, notes string) (*domain.Task, error) {
	task, err := s.transition(ctx, taskID, domain.TaskStatusCompleted, "completion_confirmed", &posterID, notes,
		func(task *domain.Task) error {
			if task.PosterID != posterID {
				return fmt.Errorf("only the poster can confirm completion: %w", domain.ErrForbidden)
			}
			return nil
		}, nil)
	if err != nil {
		return nil, err
	}

	s.releaseForTask(ctx, task.ID)
	return task, nil
}

// Cancel moves a task to CANCELLED. Permitted only pre-IN_PROGRESS, by the
// poster or the assigned helper.
func (s *Service) Cancel(ctx context.Context, taskID, userID uuid.UUID, reason string) (*domain.Task, error) {
	return s.transition(ctx, taskID, domain.TaskStatusCancelled, "task_cancelled", &userID, reason,
		func(task *domain.Task) error {
			if task.PosterID == userID {
				return nil
			}
			if task.AssignedHelperID != nil && *task.AssignedHelperID == userID {
				return nil
			}
			return fmt.Errorf("only the poster or assigned helper can cancel: %w", domain.ErrForbidden)
		}, nil)
}

// Dispute moves an AWAITING_CONFIRMATION task to DISPUTED.
func (s *Service) Dispute(ctx context.Context, taskID, userID uuid.UUID, reason string) (*domain.Task, error) {
	return s.transition(ctx, taskID, domain.TaskStatusDisputed, "task_disputed", &userID, reason,
		func(task *domain.Task) error {
			if task.PosterID == userID {
				return nil
			}
			if task.AssignedHelperID != nil && *task.AssignedHelperID == userID {
				return nil
			}
			return fmt.Errorf("only the poster or assigned helper can dispute: %w", domain.ErrForbidden)
		}, nil)
}

// ResolveDispute settles a DISPUTED task as either COMPLETED or CANCELLED.
// Called by the moderation service; a COMPLETED outcome releases the payout.
func (s *Service) ResolveDispute(ctx context.Context, taskID, operatorID uuid.UUID, outcome domain.TaskStatus, reason string) (*domain.Task, error) {
	if outcome != domain.TaskStatusCompleted && outcome != domain.TaskStatusCancelled {
		return nil, domain.NewValidationError("outcome", "must be COMPLETED or CANCELLED")
	}

	task, err := s.transition(ctx, taskID, outcome, "dispute_resolved", &operatorID, reason, nil, nil)
	if err != nil {
		return nil, err
	}

	if outcome == domain.TaskStatusCompleted {
		s.releaseForTask(ctx, task.ID)
	}
	return task, nil
}

// AutoConfirm is the system-triggered equivalent of ConfirmCompletion,
// usable only when the task has sat in AWAITING_CONFIRMATION for at least
// hoursThreshold hours. The actor on the timeline event is nil.
func (s *Service) AutoConfirm(ctx context.Context, taskID uuid.UUID, hoursThreshold int) (*domain.Task, error) {
	task, err := s.Tasks.GetByID(ctx, taskID)
	if err != nil {
		return nil, fmt.Errorf("load task: %w", err)
	}

	if task.Status != domain.TaskStatusAwaitingConfirmation {
		return nil, &domain.InvalidTransitionError{Entity: "task", From: string(task.Status), To: string(domain.TaskStatusCompleted)}
	}
	if time.Since(task.UpdatedAt) < time.Duration(hoursThreshold)*time.Hour {
		return nil, fmt.Errorf("task updated %s ago, threshold is %dh: %w",
			time.Since(task.UpdatedAt).Round(time.Minute), hoursThreshold, domain.ErrConflict)
	}

	from := task.Status
	if err := task.Transition(domain.TaskStatusCompleted); err != nil {
		return nil, err
	}
	task.UpdatedAt = time.Now()
	if err := s.Tasks.Update(ctx, task); err != nil {
		return nil, fmt.Errorf("update task: %w", err)
	}
	s.appendTimeline(ctx, task, "auto_confirmed", nil, from, fmt.Sprintf("no confirmation within %dh", hoursThreshold))

	s.releaseForTask(ctx, task.ID)
	return task, nil
}

// BatchResult is the per-task outcome of an auto-confirm batch.
type BatchResult struct {
	TaskID uuid.UUID `json:"task_id"`
	OK     bool      `json:"ok"`
	Error  string    `json:"error,omitempty"`
}

// AutoConfirmBatch auto-confirms every stale AWAITING_CONFIRMATION task,
// isolating per-task failures. Used by the ops surface and the scheduler.
func (s *Service) AutoConfirmBatch(ctx context.Context, hoursThreshold int) ([]BatchResult, error) {
	if hoursThreshold <= 0 {
		return nil, domain.NewValidationError("hours", "must be positive")
	}

	cutoff := time.Now().Add(-time.Duration(hoursThreshold) * time.Hour)
	stale, err := s.Tasks.ListStaleAwaitingConfirmation(ctx, cutoff)
	if err != nil {
		return nil, fmt.Errorf("list stale tasks: %w", err)
	}

	results := make([]BatchResult, 0, len(stale))
	for _, task := range stale {
		if _, err := s.AutoConfirm(ctx, task.ID, hoursThreshold); err != nil {
			s.log.Warn("auto-confirm failed", zap.String("task_id", task.ID.String()), zap.Error(err))
			results = append(results, BatchResult{TaskID: task.ID, Error: err.Error()})
			continue
		}
		results = append(results, BatchResult{TaskID: task.ID, OK: true})
	}
	return results, nil
}

// transition loads the task, runs the authorization check, applies the
// status change, persists it and appends the timeline event. The postCommit
// hook runs after a successful update.
func (s *Service) transition(
	ctx context.Context,
	taskID uuid.UUID,
	next domain.TaskStatus,
	event string,
	actorID *uuid.UUID,
	note string,
	authorize func(*domain.Task) error,
	postCommit func(*domain.Task),
) (*domain.Task, error) {
	task, err := s.Tasks.GetByID(ctx, taskID)
	if err != nil {
		return nil, fmt.Errorf("load task: %w", err)
	}

	if authorize != nil {
		if err := authorize(task); err != nil {
			return nil, err
		}
	}

	from := task.Status
	if err := task.Transition(next); err != nil {
		return nil, err
	}
	task.UpdatedAt = time.Now()
	if err := s.Tasks.Update(ctx, task); err != nil {
		return nil, fmt.Errorf("update task: %w", err)
	}

	s.appendTimeline(ctx, task, event, actorID, from, note)

	if postCommit != nil {
		postCommit(task)
	}
	return task, nil
}

// releaseForTask triggers payout release for the task's contract. Failures
// are logged, never propagated: the payout stays retryable.
func (s *Service) releaseForTask(ctx context.Context, taskID uuid.UUID) {
	contract, err := s.Contracts.GetByTaskID(ctx, taskID)
	if err != nil {
		s.log.Warn("no contract for task, skipping payout", zap.String("task_id", taskID.String()), zap.Error(err))
		return
	}
	if _, err := s.Escrow.ReleasePayout(ctx, contract.ID); err != nil {
		s.log.Error("payout release failed, will be retried",
			zap.String("contract_id", contract.ID.String()), zap.Error(err))
	}
}

func (s *Service) appendTimeline(ctx context.Context, task *domain.Task, event string, actorID *uuid.UUID, from domain.TaskStatus, note string) {
	record := &domain.TimelineEvent{
		ID:         uuid.New(),
		TaskID:     task.ID,
		Event:      event,
		ActorID:    actorID,
		FromStatus: from,
		ToStatus:   task.Status,
		Note:       note,
		CreatedAt:  time.Now(),
	}
	if err := s.Timeline.Append(ctx, record); err != nil {
		s.log.Error("append timeline event", zap.String("task_id", task.ID.String()), zap.String("event", event), zap.Error(err))
	}
}

func requireAssignedHelper(task *domain.Task, helperID uuid.UUID) error {
	if task.AssignedHelperID == nil || *task.AssignedHelperID != helperID {
		return fmt.Errorf("caller is not the assigned helper: %w", domain.ErrForbidden)
	}
	return nil
}
