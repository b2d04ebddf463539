package entity

import (
	"time"

	"github.com/google/uuid"
)

// Organization is one node in the tenant tree. ParentOrganizationID forms a
// parent chain that must terminate; walkers bound their depth anyway because
// corrupted data can introduce cycles.
type Organization struct {
	ID                   uuid.UUID  `json:"id"`
	Name                 string     `json:"name"`
	ParentOrganizationID *uuid.UUID `json:"parent_organization_id,omitempty"`
	CreatedAt            time.Time  `json:"created_at"`
}

// RAGFeatureToggle is an explicit per-organization feature setting. Presence of
// a row means "explicitly configured here"; absence defers to inheritance.
type RAGFeatureToggle struct {
	OrganizationID uuid.UUID  `json:"organization_id"`
	RAGFeature     string     `json:"rag_feature"`
	Enabled        bool       `json:"enabled"`
	Category       string     `json:"category"`
	IsInherited    bool       `json:"is_inherited"`
	InheritedFrom  *uuid.UUID `json:"inherited_from,omitempty"`
}

// RAGFeatureCatalogEntry is a global (not per-tenant) feature definition.
type RAGFeatureCatalogEntry struct {
	RAGFeature     string   `json:"rag_feature"`
	Name           string   `json:"name"`
	Description    string   `json:"description"`
	Category       string   `json:"category"`
	DefaultEnabled bool     `json:"default_enabled"`
	AllowedRoles   []string `json:"allowed_roles"`
}

// ContextItem is one knowledge-context entry owned by an organization.
type ContextItem struct {
	ID             uuid.UUID  `json:"id"`
	OrganizationID uuid.UUID  `json:"organization_id"`
	RAGFeature     string     `json:"rag_feature"`
	Title          string     `json:"title"`
	Content        string     `json:"content"`
	CreatedBy      uuid.UUID  `json:"created_by"`
	SharedFrom     *uuid.UUID `json:"shared_from,omitempty"`
	CreatedAt      time.Time  `json:"created_at"`
}
