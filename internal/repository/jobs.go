package repository

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/ks2178o2/callharbor/constants"
	"github.com/ks2178o2/callharbor/internal/common"
	"github.com/ks2178o2/callharbor/internal/entity"
)

type ImportJobRepository interface {
	Create(ctx context.Context, userID uuid.UUID, customerName, sourceURL, bucket string) (*entity.ImportJob, error)
	GetByID(ctx context.Context, id uuid.UUID) (*entity.ImportJob, error)
	SetStatus(ctx context.Context, id uuid.UUID, status constants.JobStatus) error
	SetFailed(ctx context.Context, id uuid.UUID, message string) error
	SetCompleted(ctx context.Context, id uuid.UUID) error
	SetTotals(ctx context.Context, id uuid.UUID, totalFiles int) error
	SetProgress(ctx context.Context, id uuid.UUID, processed, failed int) error
	SetDiagnostics(ctx context.Context, id uuid.UUID, d *entity.DiscoveryDiagnostics) error
	ListByUser(ctx context.Context, userID uuid.UUID, limit int) ([]*entity.ImportJob, error)
}

type importJobRepo struct {
	pool   *pgxpool.Pool
	logger *slog.Logger
}

func NewImportJobRepository(pool *pgxpool.Pool, logger *slog.Logger) ImportJobRepository {
	return &importJobRepo{pool: pool, logger: logger}
}

const jobColumns = `id, user_id, customer_name, source_url, bucket_name, status,
	total_files, processed_files, failed_files, error_message, diagnostics,
	created_at, updated_at, completed_at`

func scanJob(row pgx.Row) (*entity.ImportJob, error) {
	var j entity.ImportJob
	var diagRaw []byte
	err := row.Scan(&j.ID, &j.UserID, &j.CustomerName, &j.SourceURL, &j.BucketName,
		&j.Status, &j.TotalFiles, &j.ProcessedFiles, &j.FailedFiles, &j.ErrorMessage,
		&diagRaw, &j.CreatedAt, &j.UpdatedAt, &j.CompletedAt)
	if err != nil {
		return nil, err
	}
	if len(diagRaw) > 0 {
		var d entity.DiscoveryDiagnostics
		if err := json.Unmarshal(diagRaw, &d); err == nil {
			j.Diagnostics = &d
		}
	}
	return &j, nil
}

func (r *importJobRepo) Create(ctx context.Context, userID uuid.UUID, customerName, sourceURL, bucket string) (*entity.ImportJob, error) {
	row := r.pool.QueryRow(ctx, `
		INSERT INTO import_jobs (id, user_id, customer_name, source_url, bucket_name, status)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING `+jobColumns,
		uuid.New(), userID, customerName, sourceURL, bucket, constants.JobStatusPending)
	j, err := scanJob(row)
	if err != nil {
		r.logger.Error("failed to create import job", "user_id", userID, "source_url", sourceURL, "error", err)
		return nil, err
	}
	r.logger.Info("import job created", "job_id", j.ID, "user_id", userID, "source_url", sourceURL)
	return j, nil
}

func (r *importJobRepo) GetByID(ctx context.Context, id uuid.UUID) (*entity.ImportJob, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+jobColumns+` FROM import_jobs WHERE id = $1`, id)
	j, err := scanJob(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, common.ErrNotFound
	}
	if err != nil {
		r.logger.Error("failed to get import job", "job_id", id, "error", err)
		return nil, err
	}
	return j, nil
}

func (r *importJobRepo) SetStatus(ctx context.Context, id uuid.UUID, status constants.JobStatus) error {
	tag, err := r.pool.Exec(ctx, `
		UPDATE import_jobs SET status = $2, updated_at = now() WHERE id = $1`, id, status)
	if err != nil {
		r.logger.Error("failed to set job status", "job_id", id, "status", status, "error", err)
		return err
	}
	if tag.RowsAffected() == 0 {
		return common.ErrNotFound
	}
	return nil
}

func (r *importJobRepo) SetFailed(ctx context.Context, id uuid.UUID, message string) error {
	tag, err := r.pool.Exec(ctx, `
		UPDATE import_jobs
		SET status = $2, error_message = $3, updated_at = now()
		WHERE id = $1`, id, constants.JobStatusFailed, common.Truncate(message, 2000))
	if err != nil {
		r.logger.Error("failed to mark job failed", "job_id", id, "error", err)
		return err
	}
	if tag.RowsAffected() == 0 {
		return common.ErrNotFound
	}
	r.logger.Warn("import job failed", "job_id", id, "message", message)
	return nil
}

func (r *importJobRepo) SetCompleted(ctx context.Context, id uuid.UUID) error {
	tag, err := r.pool.Exec(ctx, `
		UPDATE import_jobs
		SET status = $2, completed_at = $3, updated_at = now()
		WHERE id = $1`, id, constants.JobStatusCompleted, time.Now().UTC())
	if err != nil {
		r.logger.Error("failed to mark job completed", "job_id", id, "error", err)
		return err
	}
	if tag.RowsAffected() == 0 {
		return common.ErrNotFound
	}
	r.logger.Info("import job completed", "job_id", id)
	return nil
}

func (r *importJobRepo) SetTotals(ctx context.Context, id uuid.UUID, totalFiles int) error {
	tag, err := r.pool.Exec(ctx, `
		UPDATE import_jobs SET total_files = $2, updated_at = now() WHERE id = $1`, id, totalFiles)
	if err != nil {
		r.logger.Error("failed to set job totals", "job_id", id, "error", err)
		return err
	}
	if tag.RowsAffected() == 0 {
		return common.ErrNotFound
	}
	return nil
}

func (r *importJobRepo) SetProgress(ctx context.Context, id uuid.UUID, processed, failed int) error {
	tag, err := r.pool.Exec(ctx, `
		UPDATE import_jobs
		SET processed_files = $2, failed_files = $3, updated_at = now()
		WHERE id = $1`, id, processed, failed)
	if err != nil {
		r.logger.Error("failed to set job progress", "job_id", id, "error", err)
		return err
	}
	if tag.RowsAffected() == 0 {
		return common.ErrNotFound
	}
	return nil
}

func (r *importJobRepo) SetDiagnostics(ctx context.Context, id uuid.UUID, d *entity.DiscoveryDiagnostics) error {
	raw, err := json.Marshal(d)
	if err != nil {
		return err
	}
	tag, err := r.pool.Exec(ctx, `
		UPDATE import_jobs SET diagnostics = $2, updated_at = now() WHERE id = $1`, id, raw)
	if err != nil {
		r.logger.Error("failed to set job diagnostics", "job_id", id, "error", err)
		return err
	}
	if tag.RowsAffected() == 0 {
		return common.ErrNotFound
	}
	return nil
}

func (r *importJobRepo) ListByUser(ctx context.Context, userID uuid.UUID, limit int) ([]*entity.ImportJob, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := r.pool.Query(ctx, `
		SELECT `+jobColumns+` FROM import_jobs
		WHERE user_id = $1
		ORDER BY created_at DESC
		LIMIT $2`, userID, limit)
	if err != nil {
		r.logger.Error("failed to list import jobs", "user_id", userID, "error", err)
		return nil, err
	}
	defer rows.Close()

	var out []*entity.ImportJob
	for rows.Next() {
		j, err := scanJob(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, j)
	}
	return out, rows.Err()
}
