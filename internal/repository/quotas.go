package repository

import (
	"context"
	"errors"
	"log/slog"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/ks2178o2/callharbor/internal/common"
	"github.com/ks2178o2/callharbor/internal/entity"
)

// Default limits applied when an organization's quota row is first created.
const (
	DefaultMaxContextItems    = 100
	DefaultMaxGlobalAccess    = 10
	DefaultMaxSharingRequests = 50
)

type QuotaRepository interface {
	// GetOrCreate fetches the quota row for an organization, creating the
	// default row on first access.
	GetOrCreate(ctx context.Context, orgID uuid.UUID) (*entity.OrganizationQuota, error)
	// Save persists the current counters; returns common.ErrNoRowsUpdated when
	// the row vanished underneath us.
	Save(ctx context.Context, q *entity.OrganizationQuota) error
}

type quotaRepo struct {
	pool   *pgxpool.Pool
	logger *slog.Logger
}

func NewQuotaRepository(pool *pgxpool.Pool, logger *slog.Logger) QuotaRepository {
	return &quotaRepo{pool: pool, logger: logger}
}

const quotaColumns = `organization_id, current_context_items, max_context_items,
	current_global_access_features, max_global_access_features,
	current_sharing_requests, max_sharing_requests, updated_at`

func scanQuota(row pgx.Row) (*entity.OrganizationQuota, error) {
	var q entity.OrganizationQuota
	err := row.Scan(&q.OrganizationID, &q.CurrentContextItems, &q.MaxContextItems,
		&q.CurrentGlobalAccess, &q.MaxGlobalAccess,
		&q.CurrentSharingRequests, &q.MaxSharingRequests, &q.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &q, nil
}

func (r *quotaRepo) GetOrCreate(ctx context.Context, orgID uuid.UUID) (*entity.OrganizationQuota, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+quotaColumns+` FROM organization_quotas WHERE organization_id = $1`, orgID)
	q, err := scanQuota(row)
	if err == nil {
		return q, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		r.logger.Error("failed to get quota", "org_id", orgID, "error", err)
		return nil, err
	}

	// First access: seed defaults. ON CONFLICT keeps concurrent first-access safe.
	row = r.pool.QueryRow(ctx, `
		INSERT INTO organization_quotas
			(organization_id, max_context_items, max_global_access_features, max_sharing_requests)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (organization_id) DO UPDATE SET updated_at = now()
		RETURNING `+quotaColumns,
		orgID, DefaultMaxContextItems, DefaultMaxGlobalAccess, DefaultMaxSharingRequests)
	q, err = scanQuota(row)
	if err != nil {
		r.logger.Error("failed to create default quota", "org_id", orgID, "error", err)
		return nil, err
	}
	r.logger.Info("default quota row created", "org_id", orgID)
	return q, nil
}

func (r *quotaRepo) Save(ctx context.Context, q *entity.OrganizationQuota) error {
	tag, err := r.pool.Exec(ctx, `
		UPDATE organization_quotas
		SET current_context_items = $2,
		    current_global_access_features = $3,
		    current_sharing_requests = $4,
		    updated_at = now()
		WHERE organization_id = $1`,
		q.OrganizationID, q.CurrentContextItems, q.CurrentGlobalAccess, q.CurrentSharingRequests)
	if err != nil {
		r.logger.Error("failed to save quota", "org_id", q.OrganizationID, "error", err)
		return err
	}
	if tag.RowsAffected() == 0 {
		r.logger.Error("quota save affected no rows", "org_id", q.OrganizationID)
		return common.ErrNoRowsUpdated
	}
	return nil
}
