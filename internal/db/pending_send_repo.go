package db

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"inboxinspire/internal/types"
)

const pendingSendColumns = `id, owner_id, owner_kind, schedule_id, scheduled_for, status,
	retry_count, error_message, next_attempt_at, created_at, sent_at`

// PendingSendRepository is the Pending-Work Store. It persists one row per
// computed occurrence in pending_sends.
//
// The partial unique index pending_sends_active_occurrence on
// (owner_id, scheduled_for) WHERE status IN ('pending','sent') guarantees at
// most one live record per occurrence. Status transitions are conditional on
// status = 'pending', which makes them the only concurrency control the
// dispatch path needs.
type PendingSendRepository struct {
	db DBTX
}

// NewPendingSendRepository creates a new PendingSendRepository backed by the
// given database connection (pool or transaction).
func NewPendingSendRepository(db DBTX) *PendingSendRepository {
	return &PendingSendRepository{db: db}
}

// Insert creates a pending record. ID, Status and CreatedAt are filled in when
// empty. A second live record for the same (owner_id, scheduled_for) fails
// with ErrCodeConflictDuplicateOccurrence.
func (r *PendingSendRepository) Insert(ctx context.Context, p *types.PendingSend) error {
	if p.ID == "" {
		p.ID = uuid.NewString()
	}
	if p.Status == "" {
		p.Status = types.SendStatusPending
	}
	if p.CreatedAt.IsZero() {
		p.CreatedAt = time.Now().UTC()
	}
	p.ScheduledFor = p.ScheduledFor.UTC()

	_, err := r.db.Exec(ctx,
		`INSERT INTO pending_sends
		 (id, owner_id, owner_kind, schedule_id, scheduled_for, status,
		  retry_count, error_message, next_attempt_at, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
		p.ID,
		p.OwnerID,
		string(p.OwnerKind),
		p.ScheduleID,
		p.ScheduledFor,
		string(p.Status),
		p.RetryCount,
		nilIfEmpty(p.ErrorMessage),
		p.NextAttemptAt,
		p.CreatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return types.NewAppError(types.ErrCodeConflictDuplicateOccurrence,
				"an active record already exists for this occurrence", err).
				WithDetails(map[string]any{"owner_id": p.OwnerID, "scheduled_for": p.ScheduledFor})
		}
		return types.NewAppError(types.ErrCodeInternalDB, "failed to insert pending send", err)
	}
	return nil
}

// GetByID returns a single record.
func (r *PendingSendRepository) GetByID(ctx context.Context, id string) (*types.PendingSend, error) {
	row := r.db.QueryRow(ctx,
		`SELECT `+pendingSendColumns+` FROM pending_sends WHERE id = $1`,
		id,
	)
	p, err := scanPendingSend(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, types.NewAppError(types.ErrCodeNotFoundPendingSend, "pending send not found", err)
		}
		return nil, types.NewAppError(types.ErrCodeInternalDB, "failed to get pending send", err)
	}
	return p, nil
}

// FindActive returns the owner's records still in status pending, oldest
// first.
func (r *PendingSendRepository) FindActive(ctx context.Context, ownerID string) ([]types.PendingSend, error) {
	rows, err := r.db.Query(ctx,
		`SELECT `+pendingSendColumns+`
		 FROM pending_sends
		 WHERE owner_id = $1 AND status = 'pending'
		 ORDER BY scheduled_for ASC`,
		ownerID,
	)
	if err != nil {
		return nil, types.NewAppError(types.ErrCodeInternalDB, "failed to query active pending sends", err)
	}
	return collectPendingSends(rows)
}

// FindByStatus lists records in the given status, most recently scheduled
// first, for admin inspection.
func (r *PendingSendRepository) FindByStatus(ctx context.Context, status types.SendStatus, limit int) ([]types.PendingSend, error) {
	if !status.Valid() {
		return nil, types.NewAppError(types.ErrCodeValidationInvalidStatus, "unknown status "+string(status), nil)
	}
	if limit <= 0 || limit > 500 {
		limit = 100
	}
	rows, err := r.db.Query(ctx,
		`SELECT `+pendingSendColumns+`
		 FROM pending_sends
		 WHERE status = $1
		 ORDER BY scheduled_for DESC
		 LIMIT $2`,
		string(status),
		limit,
	)
	if err != nil {
		return nil, types.NewAppError(types.ErrCodeInternalDB, "failed to query pending sends by status", err)
	}
	return collectPendingSends(rows)
}

// Mark moves a pending record to a terminal status. It returns changed=false
// without error when the record is already terminal, so replays are no-ops.
// An unknown id is reported as ErrCodeNotFoundPendingSend.
//
// SQL pattern:
//
//	UPDATE pending_sends SET status = $2, ... WHERE id = $1 AND status = 'pending'
func (r *PendingSendRepository) Mark(ctx context.Context, id string, status types.SendStatus, errMsg string) (bool, error) {
	if !status.IsTerminal() {
		return false, types.NewAppError(types.ErrCodeValidationInvalidStatus,
			"mark requires a terminal status, got "+string(status), nil)
	}

	tag, err := r.db.Exec(ctx,
		`UPDATE pending_sends
		 SET status = $2,
		     error_message = $3,
		     next_attempt_at = NULL,
		     sent_at = CASE WHEN $2 = 'sent' THEN NOW() ELSE sent_at END
		 WHERE id = $1 AND status = 'pending'`,
		id,
		string(status),
		nilIfEmpty(errMsg),
	)
	if err != nil {
		return false, types.NewAppError(types.ErrCodeInternalDB, "failed to mark pending send", err)
	}
	if tag.RowsAffected() > 0 {
		return true, nil
	}

	var current string
	err = r.db.QueryRow(ctx, `SELECT status FROM pending_sends WHERE id = $1`, id).Scan(&current)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return false, types.NewAppError(types.ErrCodeNotFoundPendingSend, "pending send not found", err)
		}
		return false, types.NewAppError(types.ErrCodeInternalDB, "failed to read pending send status", err)
	}
	return false, nil
}

// Claim takes the delivery lease on a pending record until the given instant.
// It returns false when the record is terminal or another dispatch holds an
// unexpired lease, in which case the caller must not send.
func (r *PendingSendRepository) Claim(ctx context.Context, id string, now, until time.Time) (bool, error) {
	tag, err := r.db.Exec(ctx,
		`UPDATE pending_sends
		 SET claimed_until = $2
		 WHERE id = $1 AND status = 'pending'
		   AND (claimed_until IS NULL OR claimed_until < $3)`,
		id,
		until.UTC(),
		now.UTC(),
	)
	if err != nil {
		return false, types.NewAppError(types.ErrCodeInternalDB, "failed to claim pending send", err)
	}
	return tag.RowsAffected() > 0, nil
}

// Release drops the delivery lease so a later timer may dispatch the record.
func (r *PendingSendRepository) Release(ctx context.Context, id string) error {
	_, err := r.db.Exec(ctx,
		`UPDATE pending_sends SET claimed_until = NULL WHERE id = $1 AND status = 'pending'`,
		id,
	)
	if err != nil {
		return types.NewAppError(types.ErrCodeInternalDB, "failed to release pending send", err)
	}
	return nil
}

// Reschedule records a failed delivery attempt on the same record and sets
// the instant of the next attempt. The record must still be pending.
func (r *PendingSendRepository) Reschedule(ctx context.Context, id string, retryCount int, nextAttemptAt time.Time, errMsg string) error {
	tag, err := r.db.Exec(ctx,
		`UPDATE pending_sends
		 SET retry_count = $2, next_attempt_at = $3, error_message = $4, claimed_until = NULL
		 WHERE id = $1 AND status = 'pending'`,
		id,
		retryCount,
		nextAttemptAt.UTC(),
		nilIfEmpty(errMsg),
	)
	if err != nil {
		return types.NewAppError(types.ErrCodeInternalDB, "failed to reschedule pending send", err)
	}
	if tag.RowsAffected() == 0 {
		return types.NewAppError(types.ErrCodeConflictTerminalStatus, "pending send is no longer pending", nil).
			WithDetails(map[string]any{"pending_id": id})
	}
	return nil
}

// DeletePending removes every pending record of the owner. Terminal records
// are kept as history. Returns the number of rows deleted.
func (r *PendingSendRepository) DeletePending(ctx context.Context, ownerID string) (int64, error) {
	tag, err := r.db.Exec(ctx,
		`DELETE FROM pending_sends WHERE owner_id = $1 AND status = 'pending'`,
		ownerID,
	)
	if err != nil {
		return 0, types.NewAppError(types.ErrCodeInternalDB, "failed to delete pending sends", err)
	}
	return tag.RowsAffected(), nil
}

// CountSentSince counts records marked sent at or after since. An empty
// scheduleID counts across all of the owner's schedules.
func (r *PendingSendRepository) CountSentSince(ctx context.Context, ownerID, scheduleID string, since time.Time) (int, error) {
	var count int
	err := r.db.QueryRow(ctx,
		`SELECT COUNT(*)
		 FROM pending_sends
		 WHERE owner_id = $1
		   AND status = 'sent'
		   AND sent_at >= $2
		   AND ($3 = '' OR schedule_id = $3)`,
		ownerID,
		since.UTC(),
		scheduleID,
	).Scan(&count)
	if err != nil {
		return 0, types.NewAppError(types.ErrCodeInternalDB, "failed to count sent records", err)
	}
	return count, nil
}

// ExpireStale marks pending records scheduled before cutoff as skipped with
// reason expired. Returns the number of rows changed.
func (r *PendingSendRepository) ExpireStale(ctx context.Context, cutoff time.Time) (int64, error) {
	tag, err := r.db.Exec(ctx,
		`UPDATE pending_sends
		 SET status = 'skipped', error_message = $2, next_attempt_at = NULL
		 WHERE status = 'pending' AND COALESCE(next_attempt_at, scheduled_for) < $1`,
		cutoff.UTC(),
		types.SkipReasonExpired,
	)
	if err != nil {
		return 0, types.NewAppError(types.ErrCodeInternalDB, "failed to expire stale pending sends", err)
	}
	return tag.RowsAffected(), nil
}

func collectPendingSends(rows pgx.Rows) ([]types.PendingSend, error) {
	defer rows.Close()

	var out []types.PendingSend
	for rows.Next() {
		p, err := scanPendingSend(rows)
		if err != nil {
			return nil, types.NewAppError(types.ErrCodeInternalDB, "failed to scan pending send", err)
		}
		out = append(out, *p)
	}
	if err := rows.Err(); err != nil {
		return nil, types.NewAppError(types.ErrCodeInternalDB, "error iterating pending sends", err)
	}
	return out, nil
}

func scanPendingSend(row rowScanner) (*types.PendingSend, error) {
	var (
		p      types.PendingSend
		kind   string
		status string
		errMsg *string
	)
	err := row.Scan(
		&p.ID,
		&p.OwnerID,
		&kind,
		&p.ScheduleID,
		&p.ScheduledFor,
		&status,
		&p.RetryCount,
		&errMsg,
		&p.NextAttemptAt,
		&p.CreatedAt,
		&p.SentAt,
	)
	if err != nil {
		return nil, err
	}
	p.OwnerKind = types.OwnerKind(kind)
	p.Status = types.SendStatus(status)
	p.ErrorMessage = derefString(errMsg)
	p.ScheduledFor = p.ScheduledFor.UTC()
	return &p, nil
}
