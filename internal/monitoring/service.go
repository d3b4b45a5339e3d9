// internal/monitoring/service.go
// Business logic for managing monitoring items

package monitoring

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// ErrItemLimitReached is returned when the user's plan item quota is exhausted
var ErrItemLimitReached = errors.New("monitoring item limit reached for current plan")

// ErrFrequencyNotAllowed is returned when the plan does not permit the requested tier
var ErrFrequencyNotAllowed = errors.New("check frequency not allowed on current plan")

// PlanGate is the subscription surface the service needs when items are
// created or retuned to a different tier.
type PlanGate interface {
	PermitsTier(ctx context.Context, userID int64, tier CheckFrequency) bool
	MaxItems(ctx context.Context, userID int64) int
}

// Service handles monitoring item lifecycle
type Service struct {
	repo Repository
	gate PlanGate
}

// NewService creates a new monitoring service
func NewService(repo Repository, gate PlanGate) *Service {
	return &Service{repo: repo, gate: gate}
}

// CreateItem validates the request against the user's plan and stores the item
func (s *Service) CreateItem(ctx context.Context, userID int64, req *CreateItemRequest) (*Item, error) {
	tier := CheckFrequency(req.CheckFrequency)
	if !s.gate.PermitsTier(ctx, userID, tier) {
		return nil, ErrFrequencyNotAllowed
	}

	existing, err := s.repo.ListByUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	if max := s.gate.MaxItems(ctx, userID); max > 0 && len(existing) >= max {
		return nil, ErrItemLimitReached
	}

	item := &Item{
		UserID:         userID,
		Value:          normalizeValue(req.Value, MonitorType(req.Type)),
		Type:           MonitorType(req.Type),
		CheckFrequency: tier,
		IsActive:       true,
	}

	if err := s.repo.Create(ctx, item); err != nil {
		return nil, err
	}

	return item, nil
}

// GetItem returns one item owned by the user
func (s *Service) GetItem(ctx context.Context, userID, itemID int64) (*Item, error) {
	return s.repo.GetByID(ctx, itemID, userID)
}

// ListItems returns all items owned by the user
func (s *Service) ListItems(ctx context.Context, userID int64) ([]*Item, error) {
	return s.repo.ListByUser(ctx, userID)
}

// UpdateItem applies a partial update to an item owned by the user
func (s *Service) UpdateItem(ctx context.Context, userID, itemID int64, req *UpdateItemRequest) (*Item, error) {
	item, err := s.repo.GetByID(ctx, itemID, userID)
	if err != nil {
		return nil, err
	}

	if req.CheckFrequency != nil {
		tier := CheckFrequency(*req.CheckFrequency)
		if !s.gate.PermitsTier(ctx, userID, tier) {
			return nil, ErrFrequencyNotAllowed
		}
		item.CheckFrequency = tier
	}
	if req.IsActive != nil {
		item.IsActive = *req.IsActive
	}

	if err := s.repo.Update(ctx, item); err != nil {
		return nil, err
	}

	return item, nil
}

// DeleteItem removes an item owned by the user
func (s *Service) DeleteItem(ctx context.Context, userID, itemID int64) error {
	return s.repo.Delete(ctx, itemID, userID)
}

// normalizeValue canonicalizes watch values so duplicate detection and
// lookups behave predictably.
func normalizeValue(value string, typ MonitorType) string {
	v := strings.TrimSpace(value)
	switch typ {
	case TypeEmail, TypeDomain, TypeUsername:
		return strings.ToLower(v)
	default:
		return v
	}
}

// GroupByType splits items into per-type groups so same-type items can share
// one bulk lookup. Order within a group follows the input order.
func GroupByType(items []*Item) map[MonitorType][]*Item {
	groups := make(map[MonitorType][]*Item)
	for _, item := range items {
		groups[item.Type] = append(groups[item.Type], item)
	}
	return groups
}

// Describe returns a short human-readable identity for log lines
func (i *Item) Describe() string {
	return fmt.Sprintf("item %d (%s %s, user %d)", i.ID, i.Type, i.Value, i.UserID)
}
