package db

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/klauspost/compress/zstd"

	"inboxinspire/internal/types"
)

// ============================================================
// MessageHistoryRepository
// ============================================================

// MessageHistoryRepository records delivered messages in message_history.
type MessageHistoryRepository struct {
	db DBTX
}

// NewMessageHistoryRepository creates a new MessageHistoryRepository backed by
// the given database connection (pool or transaction).
func NewMessageHistoryRepository(db DBTX) *MessageHistoryRepository {
	return &MessageHistoryRepository{db: db}
}

// Insert appends a history row. ID and SentAt are filled in when empty.
func (r *MessageHistoryRepository) Insert(ctx context.Context, h *types.MessageHistory) error {
	if h.ID == "" {
		h.ID = uuid.NewString()
	}
	if h.SentAt.IsZero() {
		h.SentAt = time.Now().UTC()
	}

	_, err := r.db.Exec(ctx,
		`INSERT INTO message_history
		 (id, owner_id, schedule_id, pending_send_id, subject, body, personality,
		  used_fallback, provider_message_id, sent_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
		h.ID,
		h.OwnerID,
		h.ScheduleID,
		h.PendingSendID,
		h.Subject,
		h.Body,
		personalityColumn(h.Personality),
		h.UsedFallback,
		nilIfEmpty(h.ProviderMessageID),
		h.SentAt,
	)
	if err != nil {
		return types.NewAppError(types.ErrCodeInternalDB, "failed to insert message history", err)
	}
	return nil
}

// personalityColumn renders the message voice as JSON text. Messages sent
// without a personality store ''.
func personalityColumn(p types.Personality) string {
	if p == (types.Personality{}) {
		return ""
	}
	b, _ := json.Marshal(p)
	return string(b)
}

// ============================================================
// ScheduleVersionRepository
// ============================================================

// snapshotEncoder and snapshotDecoder are safe for concurrent EncodeAll and
// DecodeAll calls.
var (
	snapshotEncoder, _ = zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedDefault))
	snapshotDecoder, _ = zstd.NewReader(nil, zstd.WithDecoderConcurrency(0))
)

// ScheduleVersionRepository appends to the schedule_versions audit log. Each
// accepted schedule change stores the owner's full schedule list as
// zstd-compressed JSON.
type ScheduleVersionRepository struct {
	db DBTX
}

// NewScheduleVersionRepository creates a new ScheduleVersionRepository backed
// by the given database connection (pool or transaction).
func NewScheduleVersionRepository(db DBTX) *ScheduleVersionRepository {
	return &ScheduleVersionRepository{db: db}
}

// Append writes the next version for the owner and returns its number.
// Versions are assigned as MAX(version)+1; the primary key on
// (owner_id, version) rejects a concurrent writer with the same number.
func (r *ScheduleVersionRepository) Append(ctx context.Context, ownerID, reason string, schedules types.Schedules) (int, error) {
	snapshot, err := EncodeSnapshot(schedules)
	if err != nil {
		return 0, types.NewAppError(types.ErrCodeInternalSnapshot, "failed to encode schedule snapshot", err)
	}

	var version int
	err = r.db.QueryRow(ctx,
		`INSERT INTO schedule_versions (owner_id, version, reason, snapshot, created_at)
		 SELECT $1, COALESCE(MAX(version), 0) + 1, $2, $3, NOW()
		 FROM schedule_versions WHERE owner_id = $1
		 RETURNING version`,
		ownerID,
		reason,
		snapshot,
	).Scan(&version)
	if err != nil {
		if isUniqueViolation(err) {
			return 0, types.NewAppError(types.ErrCodeConflictConcurrent, "concurrent schedule version write", err)
		}
		return 0, types.NewAppError(types.ErrCodeInternalDB, "failed to append schedule version", err)
	}
	return version, nil
}

// Latest returns the newest version for the owner together with its decoded
// schedules.
func (r *ScheduleVersionRepository) Latest(ctx context.Context, ownerID string) (*types.ScheduleVersion, types.Schedules, error) {
	var v types.ScheduleVersion
	err := r.db.QueryRow(ctx,
		`SELECT owner_id, version, reason, snapshot, created_at
		 FROM schedule_versions
		 WHERE owner_id = $1
		 ORDER BY version DESC
		 LIMIT 1`,
		ownerID,
	).Scan(&v.OwnerID, &v.Version, &v.Reason, &v.Snapshot, &v.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil, types.NewAppError(types.ErrCodeNotFoundSchedule, "no schedule versions for owner", err)
		}
		return nil, nil, types.NewAppError(types.ErrCodeInternalDB, "failed to get schedule version", err)
	}

	schedules, err := DecodeSnapshot(v.Snapshot)
	if err != nil {
		return nil, nil, types.NewAppError(types.ErrCodeInternalSnapshot, "failed to decode schedule snapshot", err)
	}
	return &v, schedules, nil
}

// EncodeSnapshot serializes schedules to zstd-compressed JSON.
func EncodeSnapshot(schedules types.Schedules) ([]byte, error) {
	if schedules == nil {
		schedules = types.Schedules{}
	}
	raw, err := json.Marshal(schedules)
	if err != nil {
		return nil, fmt.Errorf("marshal schedules: %w", err)
	}
	return snapshotEncoder.EncodeAll(raw, make([]byte, 0, len(raw)/2)), nil
}

// DecodeSnapshot reverses EncodeSnapshot.
func DecodeSnapshot(data []byte) (types.Schedules, error) {
	raw, err := snapshotDecoder.DecodeAll(data, nil)
	if err != nil {
		return nil, fmt.Errorf("zstd decompression failed: %w", err)
	}
	var schedules types.Schedules
	if err := json.Unmarshal(raw, &schedules); err != nil {
		return nil, fmt.Errorf("unmarshal schedules: %w", err)
	}
	return schedules, nil
}
