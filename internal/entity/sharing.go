package entity

import (
	"time"

	"github.com/google/uuid"

	"github.com/ks2178o2/callharbor/constants"
)

// SharingType distinguishes downward and upward propagation.
type SharingType string

const (
	SharingToChildren SharingType = "to_children"
	SharingToParent   SharingType = "to_parent"
)

// ContextSharingRequest is the pending-approval record for one proposed copy
// of a context item into another organization. Never re-opened once terminal.
type ContextSharingRequest struct {
	ID                   uuid.UUID               `json:"id"`
	SourceOrganizationID uuid.UUID               `json:"source_organization_id"`
	TargetOrganizationID uuid.UUID               `json:"target_organization_id"`
	RAGFeature           string                  `json:"rag_feature"`
	ItemID               uuid.UUID               `json:"item_id"`
	RequestedBy          uuid.UUID               `json:"requested_by"`
	SharingType          SharingType             `json:"sharing_type"`
	Status               constants.SharingStatus `json:"status"`
	RejectionReason      *string                 `json:"rejection_reason,omitempty"`
	CreatedAt            time.Time               `json:"created_at"`
	UpdatedAt            time.Time               `json:"updated_at"`
}
