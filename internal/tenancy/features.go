package tenancy

import (
	"context"
	"errors"
	"log/slog"

	"github.com/google/uuid"

	"github.com/ks2178o2/callharbor/internal/common"
	"github.com/ks2178o2/callharbor/internal/entity"
	"github.com/ks2178o2/callharbor/internal/repository"
)

// maxChainDepth bounds hierarchy walks; a chain longer than this is treated
// as corrupted data, not followed further.
const maxChainDepth = 20

// FeatureService resolves effective RAG feature state across the organization
// tree. Business-rule failures come back as structured results, not Go
// errors; errors are reserved for the persistence layer misbehaving.
type FeatureService struct {
	orgs     repository.OrganizationRepository
	features repository.RAGFeatureRepository
	logger   *slog.Logger
}

func NewFeatureService(orgs repository.OrganizationRepository, features repository.RAGFeatureRepository, logger *slog.Logger) *FeatureService {
	if logger == nil {
		logger = slog.Default()
	}
	return &FeatureService{orgs: orgs, features: features, logger: logger}
}

// EffectiveFeatures is the merged view of an organization's own toggles and
// the toggles inherited from its parent.
type EffectiveFeatures struct {
	OrganizationID uuid.UUID                  `json:"organization_id"`
	Features       []*entity.RAGFeatureToggle `json:"features"`
	OwnCount       int                        `json:"own_count"`
	InheritedCount int                        `json:"inherited_count"`
	TotalCount     int                        `json:"total_count"`
}

// CanEnableResult is the verdict of the top-down enablement gate.
type CanEnableResult struct {
	CanEnable bool   `json:"can_enable"`
	Reason    string `json:"reason,omitempty"`
}

// OverrideStatus describes where an organization's state for one feature
// comes from: an explicit row, inheritance, or nothing at all.
type OverrideStatus struct {
	RAGFeature    string     `json:"rag_feature"`
	Status        string     `json:"status"`
	Enabled       bool       `json:"enabled"`
	IsInherited   bool       `json:"is_inherited"`
	OverrideType  string     `json:"override_type,omitempty"`
	InheritedFrom *uuid.UUID `json:"inherited_from,omitempty"`
}

// InheritanceChain is the walk from an organization to its root, self first.
type InheritanceChain struct {
	Chain []*entity.Organization `json:"chain"`
	Depth int                    `json:"depth"`
}

// GetInheritedFeatures resolves one hop of inheritance: the enabled toggles
// of the organization's direct parent, tagged with their origin. An
// organization without a parent inherits nothing.
func (s *FeatureService) GetInheritedFeatures(ctx context.Context, orgID uuid.UUID) ([]*entity.RAGFeatureToggle, error) {
	org, err := s.orgs.GetByID(ctx, orgID)
	if err != nil {
		return nil, err
	}
	if org.ParentOrganizationID == nil {
		return nil, nil
	}
	parentID := *org.ParentOrganizationID

	toggles, err := s.features.ListEnabledToggles(ctx, parentID)
	if err != nil {
		return nil, err
	}
	out := make([]*entity.RAGFeatureToggle, 0, len(toggles))
	for _, t := range toggles {
		out = append(out, &entity.RAGFeatureToggle{
			OrganizationID: orgID,
			RAGFeature:     t.RAGFeature,
			Enabled:        t.Enabled,
			Category:       t.Category,
			IsInherited:    true,
			InheritedFrom:  &parentID,
		})
	}
	return out, nil
}

// GetEffectiveFeatures merges an organization's explicit toggles with its
// inherited ones. An explicit toggle always shadows an inherited toggle for
// the same feature key.
func (s *FeatureService) GetEffectiveFeatures(ctx context.Context, orgID uuid.UUID) (*EffectiveFeatures, error) {
	own, err := s.features.ListToggles(ctx, orgID)
	if err != nil {
		return nil, err
	}
	inherited, err := s.GetInheritedFeatures(ctx, orgID)
	if err != nil {
		return nil, err
	}

	merged := make([]*entity.RAGFeatureToggle, 0, len(own)+len(inherited))
	ownKeys := make(map[string]bool, len(own))
	for _, t := range own {
		t.IsInherited = false
		t.InheritedFrom = nil
		ownKeys[t.RAGFeature] = true
		merged = append(merged, t)
	}
	inheritedCount := 0
	for _, t := range inherited {
		if ownKeys[t.RAGFeature] {
			continue
		}
		inheritedCount++
		merged = append(merged, t)
	}

	return &EffectiveFeatures{
		OrganizationID: orgID,
		Features:       merged,
		OwnCount:       len(own),
		InheritedCount: inheritedCount,
		TotalCount:     len(merged),
	}, nil
}

// GetInheritanceChain walks the parent pointers from orgID to the root. The
// walk is depth-bounded so a corrupted cyclic hierarchy surfaces as a data
// error instead of an infinite loop.
func (s *FeatureService) GetInheritanceChain(ctx context.Context, orgID uuid.UUID) (*InheritanceChain, error) {
	var chain []*entity.Organization
	next := &orgID
	for next != nil {
		if len(chain) >= maxChainDepth {
			s.logger.Error("organization hierarchy exceeds depth bound", "org_id", orgID, "depth", len(chain))
			return nil, common.NewAppError("HIERARCHY_CORRUPT", "organization hierarchy exceeds maximum depth; possible cycle", common.ErrInternal)
		}
		org, err := s.orgs.GetByID(ctx, *next)
		if err != nil {
			return nil, err
		}
		chain = append(chain, org)
		next = org.ParentOrganizationID
	}
	return &InheritanceChain{Chain: chain, Depth: len(chain)}, nil
}

// CanEnableFeature applies the top-down enablement constraint: a child can
// never enable a feature its parent has not enabled. A root organization may
// enable anything in the catalog.
func (s *FeatureService) CanEnableFeature(ctx context.Context, orgID uuid.UUID, feature string) (*CanEnableResult, error) {
	if _, err := s.features.GetCatalogEntry(ctx, feature); err != nil {
		if errors.Is(err, common.ErrNotFound) {
			return &CanEnableResult{CanEnable: false, Reason: "feature does not exist"}, nil
		}
		return nil, err
	}

	org, err := s.orgs.GetByID(ctx, orgID)
	if err != nil {
		if errors.Is(err, common.ErrNotFound) {
			return &CanEnableResult{CanEnable: false, Reason: "organization not found"}, nil
		}
		return nil, err
	}
	if org.ParentOrganizationID == nil {
		return &CanEnableResult{CanEnable: true}, nil
	}

	parentToggle, err := s.features.GetToggle(ctx, *org.ParentOrganizationID, feature)
	if err != nil {
		if errors.Is(err, common.ErrNotFound) {
			return &CanEnableResult{CanEnable: false, Reason: "parent does not have feature"}, nil
		}
		return nil, err
	}
	if !parentToggle.Enabled {
		return &CanEnableResult{CanEnable: false, Reason: "parent has it disabled"}, nil
	}
	return &CanEnableResult{CanEnable: true}, nil
}

// GetOverrideStatus reports whether an organization's state for a feature is
// an explicit override, inherited from the parent, or not configured at all.
func (s *FeatureService) GetOverrideStatus(ctx context.Context, orgID uuid.UUID, feature string) (*OverrideStatus, error) {
	toggle, err := s.features.GetToggle(ctx, orgID, feature)
	if err == nil {
		status := "disabled"
		if toggle.Enabled {
			status = "enabled"
		}
		return &OverrideStatus{
			RAGFeature:   feature,
			Status:       status,
			Enabled:      toggle.Enabled,
			IsInherited:  false,
			OverrideType: "explicit",
		}, nil
	}
	if !errors.Is(err, common.ErrNotFound) {
		return nil, err
	}

	inherited, err := s.GetInheritedFeatures(ctx, orgID)
	if err != nil {
		return nil, err
	}
	for _, t := range inherited {
		if t.RAGFeature == feature {
			return &OverrideStatus{
				RAGFeature:    feature,
				Status:        "inherited",
				Enabled:       t.Enabled,
				IsInherited:   true,
				InheritedFrom: t.InheritedFrom,
			}, nil
		}
	}
	return &OverrideStatus{RAGFeature: feature, Status: "not_configured"}, nil
}
