package sharing

import (
	"context"
	"errors"
	"log/slog"

	"github.com/google/uuid"

	"github.com/ks2178o2/callharbor/constants"
	"github.com/ks2178o2/callharbor/internal/common"
	"github.com/ks2178o2/callharbor/internal/entity"
	"github.com/ks2178o2/callharbor/internal/repository"
)

// ShareResult reports the outcome of a share action. Business failures land
// in Error with Success=false; Go errors are reserved for the store.
type ShareResult struct {
	Success     bool        `json:"success"`
	SharedCount int         `json:"shared_count"`
	RequestIDs  []uuid.UUID `json:"request_ids,omitempty"`
	Error       string      `json:"error,omitempty"`
}

// ApprovalResult reports an approve/reject outcome. NewItemID is set only on
// a successful approval, pointing at the materialized copy.
type ApprovalResult struct {
	Success   bool       `json:"success"`
	NewItemID *uuid.UUID `json:"new_item_id,omitempty"`
	Error     string     `json:"error,omitempty"`
}

// Service propagates context items across the organization tree through a
// pending-approval workflow.
type Service struct {
	orgs    repository.OrganizationRepository
	items   repository.ContextItemRepository
	sharing repository.SharingRepository
	logger  *slog.Logger
}

func NewService(orgs repository.OrganizationRepository, items repository.ContextItemRepository, sharing repository.SharingRepository, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{orgs: orgs, items: items, sharing: sharing, logger: logger}
}

// ShareToChildren creates one pending request per direct child. A leaf
// organization shares to nobody and that is a success with shared_count 0.
func (s *Service) ShareToChildren(ctx context.Context, orgID, itemID uuid.UUID, feature string, actorID uuid.UUID) (*ShareResult, error) {
	if _, err := s.orgs.GetByID(ctx, orgID); err != nil {
		if errors.Is(err, common.ErrNotFound) {
			return &ShareResult{Success: false, Error: "organization not found"}, nil
		}
		return nil, err
	}
	children, err := s.orgs.ListChildren(ctx, orgID)
	if err != nil {
		return nil, err
	}

	result := &ShareResult{Success: true}
	for _, child := range children {
		req, err := s.sharing.Create(ctx, &entity.ContextSharingRequest{
			SourceOrganizationID: orgID,
			TargetOrganizationID: child.ID,
			RAGFeature:           feature,
			ItemID:               itemID,
			RequestedBy:          actorID,
			SharingType:          entity.SharingToChildren,
		})
		if err != nil {
			return nil, err
		}
		result.SharedCount++
		result.RequestIDs = append(result.RequestIDs, req.ID)
	}
	s.logger.Info("context item shared to children",
		"org_id", orgID, "item_id", itemID, "shared_count", result.SharedCount)
	return result, nil
}

// ShareToParent creates a pending request targeting the organization's
// parent. Unlike sharing downward, a missing parent is an error: there is
// nobody to share with.
func (s *Service) ShareToParent(ctx context.Context, orgID, itemID uuid.UUID, feature string, actorID uuid.UUID) (*ShareResult, error) {
	org, err := s.orgs.GetByID(ctx, orgID)
	if err != nil {
		if errors.Is(err, common.ErrNotFound) {
			return &ShareResult{Success: false, Error: "organization not found"}, nil
		}
		return nil, err
	}
	if org.ParentOrganizationID == nil {
		return &ShareResult{Success: false, Error: "No parent organization found"}, nil
	}

	req, err := s.sharing.Create(ctx, &entity.ContextSharingRequest{
		SourceOrganizationID: orgID,
		TargetOrganizationID: *org.ParentOrganizationID,
		RAGFeature:           feature,
		ItemID:               itemID,
		RequestedBy:          actorID,
		SharingType:          entity.SharingToParent,
	})
	if err != nil {
		return nil, err
	}
	s.logger.Info("context item shared to parent",
		"org_id", orgID, "parent_id", *org.ParentOrganizationID, "item_id", itemID)
	return &ShareResult{Success: true, SharedCount: 1, RequestIDs: []uuid.UUID{req.ID}}, nil
}

// ApproveSharedItem marks the request approved and materializes a copy of the
// original item in the target organization. A vanished original and a failed
// copy are distinct failures so operators can tell them apart.
func (s *Service) ApproveSharedItem(ctx context.Context, sharingID, actorID uuid.UUID) (*ApprovalResult, error) {
	req, err := s.sharing.GetByID(ctx, sharingID)
	if err != nil {
		if errors.Is(err, common.ErrNotFound) {
			return &ApprovalResult{Success: false, Error: "sharing request not found"}, nil
		}
		return nil, err
	}
	if req.Status != constants.SharingStatusPending {
		return &ApprovalResult{Success: false, Error: "sharing request is not pending"}, nil
	}

	original, err := s.items.GetByID(ctx, req.ItemID)
	if err != nil {
		if errors.Is(err, common.ErrNotFound) {
			return &ApprovalResult{Success: false, Error: "Original item not found"}, nil
		}
		return nil, err
	}

	if err := s.sharing.SetStatus(ctx, sharingID, constants.SharingStatusApproved, nil); err != nil {
		return nil, err
	}

	copyItem, err := s.items.Create(ctx, &entity.ContextItem{
		OrganizationID: req.TargetOrganizationID,
		RAGFeature:     original.RAGFeature,
		Title:          original.Title,
		Content:        original.Content,
		CreatedBy:      actorID,
		SharedFrom:     &req.SourceOrganizationID,
	})
	if err != nil {
		s.logger.Error("failed to materialize shared item copy",
			"sharing_id", sharingID, "item_id", req.ItemID, "error", err)
		return &ApprovalResult{Success: false, Error: "Failed to copy item"}, nil
	}

	s.logger.Info("sharing request approved",
		"sharing_id", sharingID, "new_item_id", copyItem.ID, "target_org", req.TargetOrganizationID)
	return &ApprovalResult{Success: true, NewItemID: &copyItem.ID}, nil
}

// RejectSharedItem marks the request rejected with an optional reason.
// Rejection is terminal and has no other side effects.
func (s *Service) RejectSharedItem(ctx context.Context, sharingID, actorID uuid.UUID, reason string) (*ApprovalResult, error) {
	req, err := s.sharing.GetByID(ctx, sharingID)
	if err != nil {
		if errors.Is(err, common.ErrNotFound) {
			return &ApprovalResult{Success: false, Error: "sharing request not found"}, nil
		}
		return nil, err
	}
	if req.Status != constants.SharingStatusPending {
		return &ApprovalResult{Success: false, Error: "sharing request is not pending"}, nil
	}

	var reasonPtr *string
	if reason != "" {
		reasonPtr = &reason
	}
	if err := s.sharing.SetStatus(ctx, sharingID, constants.SharingStatusRejected, reasonPtr); err != nil {
		return nil, err
	}
	s.logger.Info("sharing request rejected", "sharing_id", sharingID, "actor_id", actorID)
	return &ApprovalResult{Success: true}, nil
}

// GetPendingApprovals lists requests waiting on the given organization.
func (s *Service) GetPendingApprovals(ctx context.Context, orgID uuid.UUID) ([]*entity.ContextSharingRequest, error) {
	return s.sharing.ListPendingForTarget(ctx, orgID)
}
