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

type ImportFileRepository interface {
	GetByID(ctx context.Context, id uuid.UUID) (*entity.ImportFile, error)
	GetByJobAndURL(ctx context.Context, jobID uuid.UUID, url string) (*entity.ImportFile, error)
	Create(ctx context.Context, jobID uuid.UUID, fileName, originalURL string) (*entity.ImportFile, error)
	ListByJob(ctx context.Context, jobID uuid.UUID) ([]*entity.ImportFile, error)
	SetStatus(ctx context.Context, id uuid.UUID, status constants.FileStatus) error
	SetFailed(ctx context.Context, id uuid.UUID, message string) error
	SetUploaded(ctx context.Context, id uuid.UUID, storagePath string, size int64, format string) error
	LinkCallRecord(ctx context.Context, id, callRecordID uuid.UUID) error
}

type importFileRepo struct {
	pool   *pgxpool.Pool
	logger *slog.Logger
}

func NewImportFileRepository(pool *pgxpool.Pool, logger *slog.Logger) ImportFileRepository {
	return &importFileRepo{pool: pool, logger: logger}
}

const fileColumns = `id, job_id, file_name, original_url, storage_path, file_size,
	file_format, call_record_id, status, error_message, created_at, updated_at`

func scanFile(row pgx.Row) (*entity.ImportFile, error) {
	var f entity.ImportFile
	err := row.Scan(&f.ID, &f.JobID, &f.FileName, &f.OriginalURL, &f.StoragePath,
		&f.FileSize, &f.FileFormat, &f.CallRecordID, &f.Status, &f.ErrorMessage,
		&f.CreatedAt, &f.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &f, nil
}

func (r *importFileRepo) GetByID(ctx context.Context, id uuid.UUID) (*entity.ImportFile, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+fileColumns+` FROM import_files WHERE id = $1`, id)
	f, err := scanFile(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, common.ErrNotFound
	}
	if err != nil {
		r.logger.Error("failed to get import file", "file_id", id, "error", err)
		return nil, err
	}
	return f, nil
}

// GetByJobAndURL backs the (job_id, original_url) dedup invariant: retries of
// discovery must find the existing row instead of creating a duplicate.
func (r *importFileRepo) GetByJobAndURL(ctx context.Context, jobID uuid.UUID, url string) (*entity.ImportFile, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT `+fileColumns+` FROM import_files WHERE job_id = $1 AND original_url = $2`, jobID, url)
	f, err := scanFile(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, common.ErrNotFound
	}
	if err != nil {
		r.logger.Error("failed to get import file by url", "job_id", jobID, "error", err)
		return nil, err
	}
	return f, nil
}

func (r *importFileRepo) Create(ctx context.Context, jobID uuid.UUID, fileName, originalURL string) (*entity.ImportFile, error) {
	row := r.pool.QueryRow(ctx, `
		INSERT INTO import_files (id, job_id, file_name, original_url, status)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING `+fileColumns,
		uuid.New(), jobID, fileName, originalURL, constants.FileStatusPending)
	f, err := scanFile(row)
	if err != nil {
		r.logger.Error("failed to create import file", "job_id", jobID, "file_name", fileName, "error", err)
		return nil, err
	}
	return f, nil
}

func (r *importFileRepo) ListByJob(ctx context.Context, jobID uuid.UUID) ([]*entity.ImportFile, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+fileColumns+` FROM import_files
		WHERE job_id = $1
		ORDER BY created_at ASC`, jobID)
	if err != nil {
		r.logger.Error("failed to list import files", "job_id", jobID, "error", err)
		return nil, err
	}
	defer rows.Close()

	var out []*entity.ImportFile
	for rows.Next() {
		f, err := scanFile(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, f)
	}
	return out, rows.Err()
}

func (r *importFileRepo) SetStatus(ctx context.Context, id uuid.UUID, status constants.FileStatus) error {
	tag, err := r.pool.Exec(ctx, `
		UPDATE import_files SET status = $2, updated_at = now() WHERE id = $1`, id, status)
	if err != nil {
		r.logger.Error("failed to set file status", "file_id", id, "status", status, "error", err)
		return err
	}
	if tag.RowsAffected() == 0 {
		return common.ErrNotFound
	}
	return nil
}

func (r *importFileRepo) SetFailed(ctx context.Context, id uuid.UUID, message string) error {
	tag, err := r.pool.Exec(ctx, `
		UPDATE import_files
		SET status = $2, error_message = $3, updated_at = now()
		WHERE id = $1`, id, constants.FileStatusFailed, common.Truncate(message, 500))
	if err != nil {
		r.logger.Error("failed to mark file failed", "file_id", id, "error", err)
		return err
	}
	if tag.RowsAffected() == 0 {
		return common.ErrNotFound
	}
	return nil
}

func (r *importFileRepo) SetUploaded(ctx context.Context, id uuid.UUID, storagePath string, size int64, format string) error {
	tag, err := r.pool.Exec(ctx, `
		UPDATE import_files
		SET storage_path = $2, file_size = $3, file_format = $4, updated_at = now()
		WHERE id = $1`, id, storagePath, size, format)
	if err != nil {
		r.logger.Error("failed to set file upload metadata", "file_id", id, "error", err)
		return err
	}
	if tag.RowsAffected() == 0 {
		return common.ErrNotFound
	}
	return nil
}

func (r *importFileRepo) LinkCallRecord(ctx context.Context, id, callRecordID uuid.UUID) error {
	tag, err := r.pool.Exec(ctx, `
		UPDATE import_files SET call_record_id = $2, updated_at = now() WHERE id = $1`, id, callRecordID)
	if err != nil {
		r.logger.Error("failed to link call record", "file_id", id, "call_record_id", callRecordID, "error", err)
		return err
	}
	if tag.RowsAffected() == 0 {
		return common.ErrNotFound
	}
	return nil
}
