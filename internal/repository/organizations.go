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

type OrganizationRepository interface {
	GetByID(ctx context.Context, id uuid.UUID) (*entity.Organization, error)
	ListChildren(ctx context.Context, parentID uuid.UUID) ([]*entity.Organization, error)
}

type RAGFeatureRepository interface {
	ListToggles(ctx context.Context, orgID uuid.UUID) ([]*entity.RAGFeatureToggle, error)
	ListEnabledToggles(ctx context.Context, orgID uuid.UUID) ([]*entity.RAGFeatureToggle, error)
	GetToggle(ctx context.Context, orgID uuid.UUID, feature string) (*entity.RAGFeatureToggle, error)
	GetCatalogEntry(ctx context.Context, feature string) (*entity.RAGFeatureCatalogEntry, error)
	ListCatalog(ctx context.Context) ([]*entity.RAGFeatureCatalogEntry, error)
}

type ContextItemRepository interface {
	GetByID(ctx context.Context, id uuid.UUID) (*entity.ContextItem, error)
	Create(ctx context.Context, item *entity.ContextItem) (*entity.ContextItem, error)
}

type organizationRepo struct {
	pool   *pgxpool.Pool
	logger *slog.Logger
}

func NewOrganizationRepository(pool *pgxpool.Pool, logger *slog.Logger) OrganizationRepository {
	return &organizationRepo{pool: pool, logger: logger}
}

func (r *organizationRepo) GetByID(ctx context.Context, id uuid.UUID) (*entity.Organization, error) {
	var o entity.Organization
	err := r.pool.QueryRow(ctx, `
		SELECT id, name, parent_organization_id, created_at
		FROM organizations WHERE id = $1`, id).
		Scan(&o.ID, &o.Name, &o.ParentOrganizationID, &o.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, common.ErrNotFound
	}
	if err != nil {
		r.logger.Error("failed to get organization", "org_id", id, "error", err)
		return nil, err
	}
	return &o, nil
}

func (r *organizationRepo) ListChildren(ctx context.Context, parentID uuid.UUID) ([]*entity.Organization, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, name, parent_organization_id, created_at
		FROM organizations WHERE parent_organization_id = $1
		ORDER BY name ASC`, parentID)
	if err != nil {
		r.logger.Error("failed to list child organizations", "parent_id", parentID, "error", err)
		return nil, err
	}
	defer rows.Close()

	var out []*entity.Organization
	for rows.Next() {
		var o entity.Organization
		if err := rows.Scan(&o.ID, &o.Name, &o.ParentOrganizationID, &o.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, &o)
	}
	return out, rows.Err()
}

type ragFeatureRepo struct {
	pool   *pgxpool.Pool
	logger *slog.Logger
}

func NewRAGFeatureRepository(pool *pgxpool.Pool, logger *slog.Logger) RAGFeatureRepository {
	return &ragFeatureRepo{pool: pool, logger: logger}
}

func (r *ragFeatureRepo) listToggles(ctx context.Context, orgID uuid.UUID, enabledOnly bool) ([]*entity.RAGFeatureToggle, error) {
	q := `SELECT organization_id, rag_feature, enabled, category
	      FROM rag_feature_toggles WHERE organization_id = $1`
	if enabledOnly {
		q += ` AND enabled = true`
	}
	rows, err := r.pool.Query(ctx, q, orgID)
	if err != nil {
		r.logger.Error("failed to list feature toggles", "org_id", orgID, "error", err)
		return nil, err
	}
	defer rows.Close()

	var out []*entity.RAGFeatureToggle
	for rows.Next() {
		var t entity.RAGFeatureToggle
		if err := rows.Scan(&t.OrganizationID, &t.RAGFeature, &t.Enabled, &t.Category); err != nil {
			return nil, err
		}
		out = append(out, &t)
	}
	return out, rows.Err()
}

func (r *ragFeatureRepo) ListToggles(ctx context.Context, orgID uuid.UUID) ([]*entity.RAGFeatureToggle, error) {
	return r.listToggles(ctx, orgID, false)
}

func (r *ragFeatureRepo) ListEnabledToggles(ctx context.Context, orgID uuid.UUID) ([]*entity.RAGFeatureToggle, error) {
	return r.listToggles(ctx, orgID, true)
}

func (r *ragFeatureRepo) GetToggle(ctx context.Context, orgID uuid.UUID, feature string) (*entity.RAGFeatureToggle, error) {
	var t entity.RAGFeatureToggle
	err := r.pool.QueryRow(ctx, `
		SELECT organization_id, rag_feature, enabled, category
		FROM rag_feature_toggles
		WHERE organization_id = $1 AND rag_feature = $2`, orgID, feature).
		Scan(&t.OrganizationID, &t.RAGFeature, &t.Enabled, &t.Category)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, common.ErrNotFound
	}
	if err != nil {
		r.logger.Error("failed to get feature toggle", "org_id", orgID, "feature", feature, "error", err)
		return nil, err
	}
	return &t, nil
}

func (r *ragFeatureRepo) GetCatalogEntry(ctx context.Context, feature string) (*entity.RAGFeatureCatalogEntry, error) {
	var e entity.RAGFeatureCatalogEntry
	err := r.pool.QueryRow(ctx, `
		SELECT rag_feature, name, description, category, default_enabled, allowed_roles
		FROM rag_feature_catalog WHERE rag_feature = $1`, feature).
		Scan(&e.RAGFeature, &e.Name, &e.Description, &e.Category, &e.DefaultEnabled, &e.AllowedRoles)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, common.ErrNotFound
	}
	if err != nil {
		r.logger.Error("failed to get catalog entry", "feature", feature, "error", err)
		return nil, err
	}
	return &e, nil
}

func (r *ragFeatureRepo) ListCatalog(ctx context.Context) ([]*entity.RAGFeatureCatalogEntry, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT rag_feature, name, description, category, default_enabled, allowed_roles
		FROM rag_feature_catalog ORDER BY rag_feature ASC`)
	if err != nil {
		r.logger.Error("failed to list feature catalog", "error", err)
		return nil, err
	}
	defer rows.Close()

	var out []*entity.RAGFeatureCatalogEntry
	for rows.Next() {
		var e entity.RAGFeatureCatalogEntry
		if err := rows.Scan(&e.RAGFeature, &e.Name, &e.Description, &e.Category, &e.DefaultEnabled, &e.AllowedRoles); err != nil {
			return nil, err
		}
		out = append(out, &e)
	}
	return out, rows.Err()
}

type contextItemRepo struct {
	pool   *pgxpool.Pool
	logger *slog.Logger
}

func NewContextItemRepository(pool *pgxpool.Pool, logger *slog.Logger) ContextItemRepository {
	return &contextItemRepo{pool: pool, logger: logger}
}

func (r *contextItemRepo) GetByID(ctx context.Context, id uuid.UUID) (*entity.ContextItem, error) {
	var it entity.ContextItem
	err := r.pool.QueryRow(ctx, `
		SELECT id, organization_id, rag_feature, title, content, created_by, shared_from, created_at
		FROM context_items WHERE id = $1`, id).
		Scan(&it.ID, &it.OrganizationID, &it.RAGFeature, &it.Title, &it.Content, &it.CreatedBy, &it.SharedFrom, &it.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, common.ErrNotFound
	}
	if err != nil {
		r.logger.Error("failed to get context item", "item_id", id, "error", err)
		return nil, err
	}
	return &it, nil
}

func (r *contextItemRepo) Create(ctx context.Context, item *entity.ContextItem) (*entity.ContextItem, error) {
	if item.ID == uuid.Nil {
		item.ID = uuid.New()
	}
	var out entity.ContextItem
	err := r.pool.QueryRow(ctx, `
		INSERT INTO context_items (id, organization_id, rag_feature, title, content, created_by, shared_from)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING id, organization_id, rag_feature, title, content, created_by, shared_from, created_at`,
		item.ID, item.OrganizationID, item.RAGFeature, item.Title, item.Content, item.CreatedBy, item.SharedFrom).
		Scan(&out.ID, &out.OrganizationID, &out.RAGFeature, &out.Title, &out.Content, &out.CreatedBy, &out.SharedFrom, &out.CreatedAt)
	if err != nil {
		r.logger.Error("failed to create context item", "org_id", item.OrganizationID, "error", err)
		return nil, err
	}
	return &out, nil
}
