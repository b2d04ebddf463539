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

type SharingRepository interface {
	Create(ctx context.Context, req *entity.ContextSharingRequest) (*entity.ContextSharingRequest, error)
	GetByID(ctx context.Context, id uuid.UUID) (*entity.ContextSharingRequest, error)
	SetStatus(ctx context.Context, id uuid.UUID, status constants.SharingStatus, reason *string) error
	ListPendingForTarget(ctx context.Context, targetOrgID uuid.UUID) ([]*entity.ContextSharingRequest, error)
}

type sharingRepo struct {
	pool   *pgxpool.Pool
	logger *slog.Logger
}

func NewSharingRepository(pool *pgxpool.Pool, logger *slog.Logger) SharingRepository {
	return &sharingRepo{pool: pool, logger: logger}
}

const sharingColumns = `id, source_organization_id, target_organization_id, rag_feature,
	item_id, requested_by, sharing_type, status, rejection_reason, created_at, updated_at`

func scanSharing(row pgx.Row) (*entity.ContextSharingRequest, error) {
	var s entity.ContextSharingRequest
	err := row.Scan(&s.ID, &s.SourceOrganizationID, &s.TargetOrganizationID, &s.RAGFeature,
		&s.ItemID, &s.RequestedBy, &s.SharingType, &s.Status, &s.RejectionReason,
		&s.CreatedAt, &s.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &s, nil
}

func (r *sharingRepo) Create(ctx context.Context, req *entity.ContextSharingRequest) (*entity.ContextSharingRequest, error) {
	if req.ID == uuid.Nil {
		req.ID = uuid.New()
	}
	row := r.pool.QueryRow(ctx, `
		INSERT INTO context_sharing_requests
			(id, source_organization_id, target_organization_id, rag_feature, item_id, requested_by, sharing_type, status)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING `+sharingColumns,
		req.ID, req.SourceOrganizationID, req.TargetOrganizationID, req.RAGFeature,
		req.ItemID, req.RequestedBy, req.SharingType, constants.SharingStatusPending)
	s, err := scanSharing(row)
	if err != nil {
		r.logger.Error("failed to create sharing request", "source_org", req.SourceOrganizationID, "target_org", req.TargetOrganizationID, "error", err)
		return nil, err
	}
	return s, nil
}

func (r *sharingRepo) GetByID(ctx context.Context, id uuid.UUID) (*entity.ContextSharingRequest, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+sharingColumns+` FROM context_sharing_requests WHERE id = $1`, id)
	s, err := scanSharing(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, common.ErrNotFound
	}
	if err != nil {
		r.logger.Error("failed to get sharing request", "sharing_id", id, "error", err)
		return nil, err
	}
	return s, nil
}

func (r *sharingRepo) SetStatus(ctx context.Context, id uuid.UUID, status constants.SharingStatus, reason *string) error {
	tag, err := r.pool.Exec(ctx, `
		UPDATE context_sharing_requests
		SET status = $2, rejection_reason = $3, updated_at = now()
		WHERE id = $1`, id, status, reason)
	if err != nil {
		r.logger.Error("failed to set sharing status", "sharing_id", id, "status", status, "error", err)
		return err
	}
	if tag.RowsAffected() == 0 {
		return common.ErrNotFound
	}
	return nil
}

func (r *sharingRepo) ListPendingForTarget(ctx context.Context, targetOrgID uuid.UUID) ([]*entity.ContextSharingRequest, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+sharingColumns+` FROM context_sharing_requests
		WHERE target_organization_id = $1 AND status = $2
		ORDER BY created_at ASC`, targetOrgID, constants.SharingStatusPending)
	if err != nil {
		r.logger.Error("failed to list pending sharing requests", "target_org", targetOrgID, "error", err)
		return nil, err
	}
	defer rows.Close()

	var out []*entity.ContextSharingRequest
	for rows.Next() {
		s, err := scanSharing(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, rows.Err()
}
