package postgres

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/google/uuid"

	"github.com/gigswap/gigswap-backend/internal/domain"
)

// timelineRepository implements domain.TimelineRepository
type timelineRepository struct {
	db *DB
}

// NewTimelineRepository creates a new timeline repository
func NewTimelineRepository(db *DB) domain.TimelineRepository {
	return &timelineRepository{db: db}
}

// Append records an immutable timeline event
func (r *timelineRepository) Append(ctx context.Context, event *domain.TimelineEvent) error {
	query := `
		INSERT INTO timeline_events (id, task_id, event, actor_id, from_status, to_status, note, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`

	_, err := r.db.ExecContext(ctx, query,
		event.ID,
		event.TaskID,
		event.Event,
		event.ActorID,
		string(event.FromStatus),
		string(event.ToStatus),
		event.Note,
		event.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to append timeline event: %w", err)
	}

	return nil
}

// ListByTask retrieves a task's timeline in chronological order
func (r *timelineRepository) ListByTask(ctx context.Context, taskID uuid.UUID) ([]*domain.TimelineEvent, error) {
	query := `
		SELECT id, task_id, event, actor_id, from_status, to_status, note, created_at
		FROM timeline_events
		WHERE task_id = $1
		ORDER BY created_at ASC
	`

	rows, err := r.db.QueryContext(ctx, query, taskID)
	if err != nil {
		return nil, fmt.Errorf("failed to list timeline events: %w", err)
	}
	defer rows.Close()

	var events []*domain.TimelineEvent
	for rows.Next() {
		var event domain.TimelineEvent
		var actorID sql.NullString

		err := rows.Scan(
			&event.ID,
			&event.TaskID,
			&event.Event,
			&actorID,
			&event.FromStatus,
			&event.ToStatus,
			&event.Note,
			&event.CreatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan timeline event: %w", err)
		}

		if actorID.Valid {
			actorUUID, err := uuid.Parse(actorID.String)
			if err != nil {
				return nil, fmt.Errorf("failed to parse actor_id: %w", err)
			}
			event.ActorID = &actorUUID
		}

		events = append(events, &event)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate timeline events: %w", err)
	}

	return events, nil
}

// auditRepository implements domain.AuditRepository
type auditRepository struct {
	db *DB
}

// NewAuditRepository creates a new audit log repository
func NewAuditRepository(db *DB) domain.AuditRepository {
	return &auditRepository{db: db}
}

// Record appends an audit entry
func (r *auditRepository) Record(ctx context.Context, entry *domain.AuditEntry) error {
	query := `
		INSERT INTO audit_entries (id, actor_id, action, entity_type, entity_id, before, after, reason, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`

	_, err := r.db.ExecContext(ctx, query,
		entry.ID,
		entry.ActorID,
		entry.Action,
		entry.EntityType,
		entry.EntityID,
		entry.Before,
		entry.After,
		entry.Reason,
		entry.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to record audit entry: %w", err)
	}

	return nil
}
