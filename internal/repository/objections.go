package repository

import (
	"context"
	"log/slog"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/ks2178o2/callharbor/internal/entity"
)

type objectionRepo struct {
	pool   *pgxpool.Pool
	logger *slog.Logger
}

func NewObjectionRepository(pool *pgxpool.Pool, logger *slog.Logger) ObjectionRepository {
	return &objectionRepo{pool: pool, logger: logger}
}

const objectionColumns = `id, call_record_id, objection_type, objection_text,
	speaker, confidence, transcript_segment, source, created_at`

func scanObjection(row pgx.Row) (*entity.Objection, error) {
	var o entity.Objection
	err := row.Scan(&o.ID, &o.CallRecordID, &o.ObjectionType, &o.ObjectionText,
		&o.Speaker, &o.Confidence, &o.TranscriptSegment, &o.Source, &o.CreatedAt)
	if err != nil {
		return nil, err
	}
	return &o, nil
}

func (r *objectionRepo) ListByCall(ctx context.Context, callRecordID uuid.UUID) ([]*entity.Objection, error) {
	return r.ListByCalls(ctx, []uuid.UUID{callRecordID})
}

func (r *objectionRepo) ListByCalls(ctx context.Context, callRecordIDs []uuid.UUID) ([]*entity.Objection, error) {
	if len(callRecordIDs) == 0 {
		return nil, nil
	}
	rows, err := r.pool.Query(ctx, `
		SELECT `+objectionColumns+` FROM objections
		WHERE call_record_id = ANY($1)
		ORDER BY created_at ASC`, callRecordIDs)
	if err != nil {
		r.logger.Error("failed to list objections", "calls", len(callRecordIDs), "error", err)
		return nil, err
	}
	defer rows.Close()

	var out []*entity.Objection
	for rows.Next() {
		o, err := scanObjection(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, o)
	}
	return out, rows.Err()
}

// ReplaceForCall deletes every existing objection for the call and inserts the
// new set inside one transaction. Analysis is a full replace, never an
// accumulate across retries.
func (r *objectionRepo) ReplaceForCall(ctx context.Context, callRecordID uuid.UUID, objections []*entity.Objection) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		r.logger.Error("failed to begin objection replace", "call_record_id", callRecordID, "error", err)
		return err
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, `DELETE FROM objections WHERE call_record_id = $1`, callRecordID); err != nil {
		r.logger.Error("failed to delete prior objections", "call_record_id", callRecordID, "error", err)
		return err
	}
	for _, o := range objections {
		if o.ID == uuid.Nil {
			o.ID = uuid.New()
		}
		o.CallRecordID = callRecordID
		if _, err := tx.Exec(ctx, `
			INSERT INTO objections (id, call_record_id, objection_type, objection_text, speaker, confidence, transcript_segment, source)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
			o.ID, o.CallRecordID, o.ObjectionType, o.ObjectionText, o.Speaker, o.Confidence, o.TranscriptSegment, o.Source); err != nil {
			r.logger.Error("failed to insert objection", "call_record_id", callRecordID, "error", err)
			return err
		}
	}
	if err := tx.Commit(ctx); err != nil {
		return err
	}
	r.logger.Info("objections replaced", "call_record_id", callRecordID, "count", len(objections))
	return nil
}

func (r *objectionRepo) DeleteForCall(ctx context.Context, callRecordID uuid.UUID) error {
	_, err := r.pool.Exec(ctx, `DELETE FROM objections WHERE call_record_id = $1`, callRecordID)
	if err != nil {
		r.logger.Error("failed to delete objections", "call_record_id", callRecordID, "error", err)
	}
	return err
}

type overcomeDetailRepo struct {
	pool   *pgxpool.Pool
	logger *slog.Logger
}

func NewOvercomeDetailRepository(pool *pgxpool.Pool, logger *slog.Logger) OvercomeDetailRepository {
	return &overcomeDetailRepo{pool: pool, logger: logger}
}

const overcomeColumns = `id, call_record_id, objection_id, overcome_method,
	transcript_quote, speaker, confidence, created_at`

func (r *overcomeDetailRepo) ListByCalls(ctx context.Context, callRecordIDs []uuid.UUID) ([]*entity.ObjectionOvercomeDetail, error) {
	if len(callRecordIDs) == 0 {
		return nil, nil
	}
	rows, err := r.pool.Query(ctx, `
		SELECT `+overcomeColumns+` FROM objection_overcome_details
		WHERE call_record_id = ANY($1)
		ORDER BY created_at ASC`, callRecordIDs)
	if err != nil {
		r.logger.Error("failed to list overcome details", "calls", len(callRecordIDs), "error", err)
		return nil, err
	}
	defer rows.Close()

	var out []*entity.ObjectionOvercomeDetail
	for rows.Next() {
		var d entity.ObjectionOvercomeDetail
		if err := rows.Scan(&d.ID, &d.CallRecordID, &d.ObjectionID, &d.OvercomeMethod,
			&d.TranscriptQuote, &d.Speaker, &d.Confidence, &d.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, &d)
	}
	return out, rows.Err()
}

func (r *overcomeDetailRepo) ReplaceForCall(ctx context.Context, callRecordID uuid.UUID, details []*entity.ObjectionOvercomeDetail) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		r.logger.Error("failed to begin overcome replace", "call_record_id", callRecordID, "error", err)
		return err
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, `DELETE FROM objection_overcome_details WHERE call_record_id = $1`, callRecordID); err != nil {
		r.logger.Error("failed to delete prior overcome details", "call_record_id", callRecordID, "error", err)
		return err
	}
	for _, d := range details {
		if d.ID == uuid.Nil {
			d.ID = uuid.New()
		}
		d.CallRecordID = callRecordID
		if _, err := tx.Exec(ctx, `
			INSERT INTO objection_overcome_details (id, call_record_id, objection_id, overcome_method, transcript_quote, speaker, confidence)
			VALUES ($1, $2, $3, $4, $5, $6, $7)`,
			d.ID, d.CallRecordID, d.ObjectionID, d.OvercomeMethod, d.TranscriptQuote, d.Speaker, d.Confidence); err != nil {
			r.logger.Error("failed to insert overcome detail", "call_record_id", callRecordID, "error", err)
			return err
		}
	}
	if err := tx.Commit(ctx); err != nil {
		return err
	}
	r.logger.Info("overcome details replaced", "call_record_id", callRecordID, "count", len(details))
	return nil
}

func (r *overcomeDetailRepo) DeleteForCall(ctx context.Context, callRecordID uuid.UUID) error {
	_, err := r.pool.Exec(ctx, `DELETE FROM objection_overcome_details WHERE call_record_id = $1`, callRecordID)
	if err != nil {
		r.logger.Error("failed to delete overcome details", "call_record_id", callRecordID, "error", err)
	}
	return err
}
