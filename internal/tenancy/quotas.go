package tenancy

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"github.com/ks2178o2/callharbor/internal/common"
	"github.com/ks2178o2/callharbor/internal/entity"
	"github.com/ks2178o2/callharbor/internal/repository"
)

// QuotaOperation selects the direction of a quota mutation.
type QuotaOperation string

const (
	QuotaIncrement QuotaOperation = "increment"
	QuotaDecrement QuotaOperation = "decrement"
)

// QuotaCheckResult reports whether a proposed allocation fits under the
// organization's limit. Exceeding the limit is a business outcome, not an
// error.
type QuotaCheckResult struct {
	Success       bool             `json:"success"`
	QuotaExceeded bool             `json:"quota_exceeded"`
	QuotaType     entity.QuotaType `json:"quota_type"`
	Current       int              `json:"current"`
	Max           int              `json:"max"`
	Requested     int              `json:"requested"`
	Error         string           `json:"error,omitempty"`
}

// QuotaUpdateResult reports the counter value after a mutation.
type QuotaUpdateResult struct {
	Success       bool             `json:"success"`
	QuotaExceeded bool             `json:"quota_exceeded,omitempty"`
	QuotaType     entity.QuotaType `json:"quota_type,omitempty"`
	Current       int              `json:"current"`
	Error         string           `json:"error,omitempty"`
}

// QuotaService enforces per-organization usage limits. The quota row is
// auto-created with defaults on first access.
type QuotaService struct {
	quotas repository.QuotaRepository
	logger *slog.Logger
}

func NewQuotaService(quotas repository.QuotaRepository, logger *slog.Logger) *QuotaService {
	if logger == nil {
		logger = slog.Default()
	}
	return &QuotaService{quotas: quotas, logger: logger}
}

// CheckQuotaLimits verifies current + quantity <= max for the requested
// counter. It never clamps; a violation names the quota type so the caller
// can report it.
func (s *QuotaService) CheckQuotaLimits(ctx context.Context, orgID uuid.UUID, quotaType entity.QuotaType, quantity int) (*QuotaCheckResult, error) {
	if !entity.ValidQuotaType(quotaType) {
		return &QuotaCheckResult{Success: false, Error: fmt.Sprintf("unknown quota type %q", quotaType)}, nil
	}
	if quantity < 0 {
		return &QuotaCheckResult{Success: false, Error: "quantity must not be negative"}, nil
	}

	q, err := s.quotas.GetOrCreate(ctx, orgID)
	if err != nil {
		return nil, err
	}
	current, limit := q.Current(quotaType), q.Max(quotaType)
	if current+quantity > limit {
		s.logger.Info("quota check exceeded",
			"org_id", orgID, "quota_type", quotaType,
			"current", current, "max", limit, "requested", quantity)
		return &QuotaCheckResult{
			Success:       true,
			QuotaExceeded: true,
			QuotaType:     quotaType,
			Current:       current,
			Max:           limit,
			Requested:     quantity,
			Error:         fmt.Sprintf("quota exceeded for %s: %d + %d > %d", quotaType, current, quantity, limit),
		}, nil
	}
	return &QuotaCheckResult{
		Success:   true,
		QuotaType: quotaType,
		Current:   current,
		Max:       limit,
		Requested: quantity,
	}, nil
}

// UpdateQuotaUsage increments or decrements a counter. An increment that
// would pass the limit is rejected before anything is saved; decrements floor
// at zero and never drive a counter negative.
func (s *QuotaService) UpdateQuotaUsage(ctx context.Context, orgID uuid.UUID, quotaType entity.QuotaType, quantity int, op QuotaOperation) (*QuotaUpdateResult, error) {
	if !entity.ValidQuotaType(quotaType) {
		return &QuotaUpdateResult{Success: false, Error: fmt.Sprintf("unknown quota type %q", quotaType)}, nil
	}
	if quantity < 0 {
		return &QuotaUpdateResult{Success: false, Error: "quantity must not be negative"}, nil
	}
	if op != QuotaIncrement && op != QuotaDecrement {
		return &QuotaUpdateResult{Success: false, Error: fmt.Sprintf("unknown operation %q", op)}, nil
	}

	q, err := s.quotas.GetOrCreate(ctx, orgID)
	if err != nil {
		return nil, err
	}
	current := q.Current(quotaType)
	var next int
	if op == QuotaIncrement {
		limit := q.Max(quotaType)
		if current+quantity > limit {
			s.logger.Info("quota increment rejected",
				"org_id", orgID, "quota_type", quotaType,
				"current", current, "max", limit, "requested", quantity)
			return &QuotaUpdateResult{
				Success:       false,
				QuotaExceeded: true,
				QuotaType:     quotaType,
				Current:       current,
				Error:         fmt.Sprintf("%s for %s: %d + %d > %d", common.ErrQuotaExceeded, quotaType, current, quantity, limit),
			}, nil
		}
		next = current + quantity
	} else {
		next = max(0, current-quantity)
	}
	q.SetCurrent(quotaType, next)

	if err := s.quotas.Save(ctx, q); err != nil {
		return nil, err
	}
	s.logger.Info("quota usage updated",
		"org_id", orgID, "quota_type", quotaType, "operation", op,
		"previous", current, "current", next)
	return &QuotaUpdateResult{Success: true, QuotaType: quotaType, Current: next}, nil
}

// ResetQuotaUsage zeroes one counter, or all three when quotaType is empty.
func (s *QuotaService) ResetQuotaUsage(ctx context.Context, orgID uuid.UUID, quotaType entity.QuotaType) (*QuotaUpdateResult, error) {
	if quotaType != "" && !entity.ValidQuotaType(quotaType) {
		return &QuotaUpdateResult{Success: false, Error: fmt.Sprintf("unknown quota type %q", quotaType)}, nil
	}

	q, err := s.quotas.GetOrCreate(ctx, orgID)
	if err != nil {
		return nil, err
	}
	if quotaType == "" {
		q.CurrentContextItems = 0
		q.CurrentGlobalAccess = 0
		q.CurrentSharingRequests = 0
	} else {
		q.SetCurrent(quotaType, 0)
	}

	if err := s.quotas.Save(ctx, q); err != nil {
		return nil, err
	}
	s.logger.Info("quota usage reset", "org_id", orgID, "quota_type", quotaType)
	return &QuotaUpdateResult{Success: true, QuotaType: quotaType}, nil
}
