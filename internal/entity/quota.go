package entity

import (
	"time"

	"github.com/google/uuid"
)

// QuotaType selects which counter pair a quota operation targets.
type QuotaType string

const (
	QuotaContextItems   QuotaType = "context_items"
	QuotaGlobalAccess   QuotaType = "global_access_features"
	QuotaSharingRequest QuotaType = "sharing_requests"
)

// ValidQuotaType reports whether t names a known counter.
func ValidQuotaType(t QuotaType) bool {
	switch t {
	case QuotaContextItems, QuotaGlobalAccess, QuotaSharingRequest:
		return true
	}
	return false
}

// OrganizationQuota tracks current/max usage pairs per organization.
// Current counters never go below zero and increments are checked against the
// max before commit.
type OrganizationQuota struct {
	OrganizationID           uuid.UUID `json:"organization_id"`
	CurrentContextItems      int       `json:"current_context_items"`
	MaxContextItems          int       `json:"max_context_items"`
	CurrentGlobalAccess      int       `json:"current_global_access_features"`
	MaxGlobalAccess          int       `json:"max_global_access_features"`
	CurrentSharingRequests   int       `json:"current_sharing_requests"`
	MaxSharingRequests       int       `json:"max_sharing_requests"`
	UpdatedAt                time.Time `json:"updated_at"`
}

// Current returns the current counter for the given quota type.
func (q *OrganizationQuota) Current(t QuotaType) int {
	switch t {
	case QuotaContextItems:
		return q.CurrentContextItems
	case QuotaGlobalAccess:
		return q.CurrentGlobalAccess
	case QuotaSharingRequest:
		return q.CurrentSharingRequests
	}
	return 0
}

// Max returns the limit for the given quota type.
func (q *OrganizationQuota) Max(t QuotaType) int {
	switch t {
	case QuotaContextItems:
		return q.MaxContextItems
	case QuotaGlobalAccess:
		return q.MaxGlobalAccess
	case QuotaSharingRequest:
		return q.MaxSharingRequests
	}
	return 0
}

// SetCurrent overwrites the current counter for the given quota type.
func (q *OrganizationQuota) SetCurrent(t QuotaType, v int) {
	switch t {
	case QuotaContextItems:
		q.CurrentContextItems = v
	case QuotaGlobalAccess:
		q.CurrentGlobalAccess = v
	case QuotaSharingRequest:
		q.CurrentSharingRequests = v
	}
}
