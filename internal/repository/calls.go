package repository

import (
	"context"
	"errors"
	"log/slog"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/ks2178o2/callharbor/constants"
	"github.com/ks2178o2/callharbor/internal/common"
	"github.com/ks2178o2/callharbor/internal/entity"
)

type CallRecordRepository interface {
	GetByID(ctx context.Context, id uuid.UUID) (*entity.CallRecord, error)
	Create(ctx context.Context, userID uuid.UUID, customerName, audioFileURL string, jobID *uuid.UUID) (*entity.CallRecord, error)
	ListByJob(ctx context.Context, jobID uuid.UUID) ([]*entity.CallRecord, error)
	ListByIDs(ctx context.Context, ids []uuid.UUID) ([]*entity.CallRecord, error)
	SetTranscript(ctx context.Context, id uuid.UUID, transcript string) error
	SetCategorization(ctx context.Context, id uuid.UUID, category constants.CallCategory, callType constants.CallType, confidence float32, notes string, source entity.AnalysisSource) error
	ResetForRetranscription(ctx context.Context, id uuid.UUID) error
}

type ObjectionRepository interface {
	ListByCall(ctx context.Context, callRecordID uuid.UUID) ([]*entity.Objection, error)
	ListByCalls(ctx context.Context, callRecordIDs []uuid.UUID) ([]*entity.Objection, error)
	ReplaceForCall(ctx context.Context, callRecordID uuid.UUID, objections []*entity.Objection) error
	DeleteForCall(ctx context.Context, callRecordID uuid.UUID) error
}

type OvercomeDetailRepository interface {
	ListByCalls(ctx context.Context, callRecordIDs []uuid.UUID) ([]*entity.ObjectionOvercomeDetail, error)
	ReplaceForCall(ctx context.Context, callRecordID uuid.UUID, details []*entity.ObjectionOvercomeDetail) error
	DeleteForCall(ctx context.Context, callRecordID uuid.UUID) error
}

type callRecordRepo struct {
	pool   *pgxpool.Pool
	logger *slog.Logger
}

func NewCallRecordRepository(pool *pgxpool.Pool, logger *slog.Logger) CallRecordRepository {
	return &callRecordRepo{pool: pool, logger: logger}
}

const callColumns = `id, user_id, customer_name, transcript, audio_file_url,
	bulk_import_job_id, call_category, call_type, categorization_confidence,
	categorization_notes, categorization_source, created_at, updated_at`

func scanCall(row pgx.Row) (*entity.CallRecord, error) {
	var c entity.CallRecord
	err := row.Scan(&c.ID, &c.UserID, &c.CustomerName, &c.Transcript, &c.AudioFileURL,
		&c.BulkImportJobID, &c.CallCategory, &c.CallType, &c.CategorizationConfidence,
		&c.CategorizationNotes, &c.CategorizationSource, &c.CreatedAt, &c.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &c, nil
}

func (r *callRecordRepo) GetByID(ctx context.Context, id uuid.UUID) (*entity.CallRecord, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+callColumns+` FROM call_records WHERE id = $1`, id)
	c, err := scanCall(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, common.ErrNotFound
	}
	if err != nil {
		r.logger.Error("failed to get call record", "call_record_id", id, "error", err)
		return nil, err
	}
	return c, nil
}

func (r *callRecordRepo) Create(ctx context.Context, userID uuid.UUID, customerName, audioFileURL string, jobID *uuid.UUID) (*entity.CallRecord, error) {
	row := r.pool.QueryRow(ctx, `
		INSERT INTO call_records (id, user_id, customer_name, transcript, audio_file_url, bulk_import_job_id)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING `+callColumns,
		uuid.New(), userID, customerName, constants.TranscriptSentinel, audioFileURL, jobID)
	c, err := scanCall(row)
	if err != nil {
		r.logger.Error("failed to create call record", "user_id", userID, "error", err)
		return nil, err
	}
	r.logger.Info("call record created", "call_record_id", c.ID, "user_id", userID)
	return c, nil
}

func (r *callRecordRepo) ListByJob(ctx context.Context, jobID uuid.UUID) ([]*entity.CallRecord, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+callColumns+` FROM call_records
		WHERE bulk_import_job_id = $1
		ORDER BY created_at ASC`, jobID)
	if err != nil {
		r.logger.Error("failed to list call records by job", "job_id", jobID, "error", err)
		return nil, err
	}
	defer rows.Close()
	return collectCalls(rows)
}

// ListByIDs supports batch resolution of per-file details without N+1 queries.
func (r *callRecordRepo) ListByIDs(ctx context.Context, ids []uuid.UUID) ([]*entity.CallRecord, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	rows, err := r.pool.Query(ctx, `
		SELECT `+callColumns+` FROM call_records WHERE id = ANY($1)`, ids)
	if err != nil {
		r.logger.Error("failed to list call records by ids", "count", len(ids), "error", err)
		return nil, err
	}
	defer rows.Close()
	return collectCalls(rows)
}

func collectCalls(rows pgx.Rows) ([]*entity.CallRecord, error) {
	var out []*entity.CallRecord
	for rows.Next() {
		c, err := scanCall(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

func (r *callRecordRepo) SetTranscript(ctx context.Context, id uuid.UUID, transcript string) error {
	tag, err := r.pool.Exec(ctx, `
		UPDATE call_records SET transcript = $2, updated_at = now() WHERE id = $1`, id, transcript)
	if err != nil {
		r.logger.Error("failed to set transcript", "call_record_id", id, "error", err)
		return err
	}
	if tag.RowsAffected() == 0 {
		return common.ErrNotFound
	}
	return nil
}

// SetCategorization writes category, type, confidence, notes and provenance in
// one statement so the fields can never be observed half-set.
func (r *callRecordRepo) SetCategorization(ctx context.Context, id uuid.UUID, category constants.CallCategory, callType constants.CallType, confidence float32, notes string, source entity.AnalysisSource) error {
	tag, err := r.pool.Exec(ctx, `
		UPDATE call_records
		SET call_category = $2, call_type = $3, categorization_confidence = $4,
		    categorization_notes = $5, categorization_source = $6, updated_at = now()
		WHERE id = $1`, id, category, callType, confidence, notes, source)
	if err != nil {
		r.logger.Error("failed to set categorization", "call_record_id", id, "error", err)
		return err
	}
	if tag.RowsAffected() == 0 {
		return common.ErrNotFound
	}
	return nil
}

// ResetForRetranscription restores the processing sentinel and clears every
// analysis field ahead of a transcription replay.
func (r *callRecordRepo) ResetForRetranscription(ctx context.Context, id uuid.UUID) error {
	tag, err := r.pool.Exec(ctx, `
		UPDATE call_records
		SET transcript = $2, call_category = NULL, call_type = NULL,
		    categorization_confidence = NULL, categorization_notes = NULL,
		    categorization_source = NULL, updated_at = now()
		WHERE id = $1`, id, constants.TranscriptSentinel)
	if err != nil {
		r.logger.Error("failed to reset call record", "call_record_id", id, "error", err)
		return err
	}
	if tag.RowsAffected() == 0 {
		return common.ErrNotFound
	}
	r.logger.Info("call record reset for retranscription", "call_record_id", id)
	return nil
}
