package db

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"

	"inboxinspire/internal/types"
)

const ownerColumns = `id, kind, user_id, email, title, goals_text, timezone, active,
	unsubscribed, deleted_at, personalities, schedules, send_limit_per_day,
	rotation_index, last_sent_at, streak_count, created_at, updated_at`

// OwnerRepository provides data access for the owners table. Users and goals
// share the table and are told apart by kind. Schedules and personalities are
// stored as JSONB arrays on the owner row.
type OwnerRepository struct {
	db DBTX
}

// NewOwnerRepository creates a new OwnerRepository backed by the given
// database connection (pool or transaction).
func NewOwnerRepository(db DBTX) *OwnerRepository {
	return &OwnerRepository{db: db}
}

// Get returns the owner, including soft-deleted rows so callers can tell
// "deleted" apart from "never existed".
func (r *OwnerRepository) Get(ctx context.Context, id string) (*types.Owner, error) {
	row := r.db.QueryRow(ctx,
		`SELECT `+ownerColumns+` FROM owners WHERE id = $1`,
		id,
	)
	o, err := scanOwner(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, types.NewAppError(types.ErrCodeNotFoundOwner, "owner not found", err)
		}
		return nil, types.NewAppError(types.ErrCodeInternalDB, "failed to get owner", err)
	}
	return o, nil
}

// ListActive returns every owner eligible for scheduling: active, subscribed
// and not deleted.
func (r *OwnerRepository) ListActive(ctx context.Context) ([]types.Owner, error) {
	rows, err := r.db.Query(ctx,
		`SELECT `+ownerColumns+`
		 FROM owners
		 WHERE active AND NOT unsubscribed AND deleted_at IS NULL
		 ORDER BY id`,
	)
	if err != nil {
		return nil, types.NewAppError(types.ErrCodeInternalDB, "failed to list active owners", err)
	}
	defer rows.Close()

	var out []types.Owner
	for rows.Next() {
		o, err := scanOwner(rows)
		if err != nil {
			return nil, types.NewAppError(types.ErrCodeInternalDB, "failed to scan owner", err)
		}
		out = append(out, *o)
	}
	if err := rows.Err(); err != nil {
		return nil, types.NewAppError(types.ErrCodeInternalDB, "error iterating owners", err)
	}
	return out, nil
}

// UpdateSchedules replaces the owner's schedule list if the row still carries
// expectedUpdatedAt. A row changed since it was read is reported as
// ErrCodeConflictConcurrent so the caller can re-read and reapply.
//
// SQL pattern:
//
//	UPDATE owners SET schedules = $2, ... WHERE id = $1 AND updated_at = $3
func (r *OwnerRepository) UpdateSchedules(ctx context.Context, ownerID string, schedules types.Schedules, expectedUpdatedAt time.Time) error {
	tag, err := r.db.Exec(ctx,
		`UPDATE owners SET schedules = $2, updated_at = NOW()
		 WHERE id = $1 AND deleted_at IS NULL AND updated_at = $3`,
		ownerID,
		schedules,
		expectedUpdatedAt,
	)
	if err != nil {
		return types.NewAppError(types.ErrCodeInternalDB, "failed to update schedules", err)
	}
	if tag.RowsAffected() > 0 {
		return nil
	}

	var exists bool
	err = r.db.QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM owners WHERE id = $1 AND deleted_at IS NULL)`,
		ownerID,
	).Scan(&exists)
	if err != nil {
		return types.NewAppError(types.ErrCodeInternalDB, "failed to check owner", err)
	}
	if !exists {
		return types.NewAppError(types.ErrCodeNotFoundOwner, "owner not found", nil)
	}
	return types.NewAppError(types.ErrCodeConflictConcurrent, "owner was modified concurrently", nil).
		WithDetails(map[string]any{"owner_id": ownerID})
}

// ClearSkipNext atomically resets skip_next on one schedule. It returns true
// only for the caller whose update actually flipped the flag, so two
// concurrent dispatches cannot both consume it.
func (r *OwnerRepository) ClearSkipNext(ctx context.Context, ownerID, scheduleID string) (bool, error) {
	tag, err := r.db.Exec(ctx,
		`UPDATE owners
		 SET schedules = (
		       SELECT jsonb_agg(
		                CASE WHEN s->>'id' = $2 THEN jsonb_set(s, '{skip_next}', 'false'::jsonb) ELSE s END
		                ORDER BY ord)
		       FROM jsonb_array_elements(schedules) WITH ORDINALITY AS t(s, ord)
		     ),
		     updated_at = NOW()
		 WHERE id = $1
		   AND EXISTS (
		         SELECT 1 FROM jsonb_array_elements(schedules) AS e(s)
		         WHERE s->>'id' = $2 AND COALESCE((s->>'skip_next')::boolean, false)
		       )`,
		ownerID,
		scheduleID,
	)
	if err != nil {
		return false, types.NewAppError(types.ErrCodeInternalDB, "failed to clear skip_next", err)
	}
	return tag.RowsAffected() > 0, nil
}

// UpdateSendState persists the rotation, last-sent and streak counters.
func (r *OwnerRepository) UpdateSendState(ctx context.Context, ownerID string, state types.SendState) error {
	tag, err := r.db.Exec(ctx,
		`UPDATE owners
		 SET rotation_index = $2, last_sent_at = $3, streak_count = $4, updated_at = NOW()
		 WHERE id = $1`,
		ownerID,
		state.RotationIndex,
		state.LastSentAt,
		state.StreakCount,
	)
	if err != nil {
		return types.NewAppError(types.ErrCodeInternalDB, "failed to update send state", err)
	}
	if tag.RowsAffected() == 0 {
		return types.NewAppError(types.ErrCodeNotFoundOwner, "owner not found", nil)
	}
	return nil
}

// Deactivate stops all scheduling for the owner without deleting it.
func (r *OwnerRepository) Deactivate(ctx context.Context, ownerID string) error {
	tag, err := r.db.Exec(ctx,
		`UPDATE owners SET active = false, updated_at = NOW() WHERE id = $1`,
		ownerID,
	)
	if err != nil {
		return types.NewAppError(types.ErrCodeInternalDB, "failed to deactivate owner", err)
	}
	if tag.RowsAffected() == 0 {
		return types.NewAppError(types.ErrCodeNotFoundOwner, "owner not found", nil)
	}
	return nil
}

// SoftDelete marks the owner deleted. Deleting an already deleted owner is a
// no-op.
func (r *OwnerRepository) SoftDelete(ctx context.Context, ownerID string) error {
	_, err := r.db.Exec(ctx,
		`UPDATE owners
		 SET deleted_at = NOW(), active = false, updated_at = NOW()
		 WHERE id = $1 AND deleted_at IS NULL`,
		ownerID,
	)
	if err != nil {
		return types.NewAppError(types.ErrCodeInternalDB, "failed to delete owner", err)
	}
	return nil
}

func scanOwner(row rowScanner) (*types.Owner, error) {
	var (
		o     types.Owner
		kind  string
		title *string
	)
	err := row.Scan(
		&o.ID,
		&kind,
		&o.UserID,
		&o.Email,
		&title,
		&o.GoalsText,
		&o.Timezone,
		&o.Active,
		&o.Unsubscribed,
		&o.DeletedAt,
		&o.Personalities,
		&o.Schedules,
		&o.SendLimitPerDay,
		&o.State.RotationIndex,
		&o.State.LastSentAt,
		&o.State.StreakCount,
		&o.CreatedAt,
		&o.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	o.Kind = types.OwnerKind(kind)
	o.Title = derefString(title)
	return &o, nil
}
