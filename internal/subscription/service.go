// internal/subscription/service.go
// Subscription gate: decides which frequency tiers and features a user may use.
// Plan lookups are cached in Redis so scheduler loops can gate cheaply.

package subscription

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/go-redis/redis/v8"

	"github.com/vigilhq/breachwatch-backend/internal/monitoring"
)

// Service answers entitlement questions about users
type Service struct {
	repo     Repository
	cache    *redis.Client // optional, may be nil
	cacheTTL time.Duration
}

// NewService creates a new subscription service
func NewService(repo Repository, cache *redis.Client, cacheTTL time.Duration) *Service {
	if cacheTTL == 0 {
		cacheTTL = 5 * time.Minute
	}
	return &Service{repo: repo, cache: cache, cacheTTL: cacheTTL}
}

// PermitsTier reports whether the user's plan allows the given check frequency.
// Fails closed: a user with no resolvable plan is not permitted any tier.
func (s *Service) PermitsTier(ctx context.Context, userID int64, tier monitoring.CheckFrequency) bool {
	plan, err := s.planFor(ctx, userID)
	if err != nil {
		if !errors.Is(err, ErrNoSubscription) {
			log.Printf("Subscription lookup failed for user %d: %v", userID, err)
		}
		return false
	}
	return plan.AllowsTier(tier)
}

// PermitsFeature reports whether the user's plan includes a named feature
func (s *Service) PermitsFeature(ctx context.Context, userID int64, feature string) bool {
	plan, err := s.planFor(ctx, userID)
	if err != nil {
		return false
	}
	return plan.AllowsFeature(feature)
}

// MaxItems returns the plan's monitoring item quota; 0 means no resolvable plan
func (s *Service) MaxItems(ctx context.Context, userID int64) int {
	plan, err := s.planFor(ctx, userID)
	if err != nil {
		return 0
	}
	return plan.MaxItems
}

// Invalidate drops a user's cached plan, e.g. after an upgrade
func (s *Service) Invalidate(ctx context.Context, userID int64) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Del(ctx, s.cacheKey(userID)).Err(); err != nil {
		log.Printf("Failed to invalidate plan cache for user %d: %v", userID, err)
	}
}

func (s *Service) planFor(ctx context.Context, userID int64) (*Plan, error) {
	if plan := s.fromCache(ctx, userID); plan != nil {
		return plan, nil
	}

	plan, err := s.repo.PlanForUser(ctx, userID)
	if err != nil {
		return nil, err
	}

	s.toCache(ctx, userID, plan)
	return plan, nil
}

func (s *Service) fromCache(ctx context.Context, userID int64) *Plan {
	if s.cache == nil {
		return nil
	}

	data, err := s.cache.Get(ctx, s.cacheKey(userID)).Bytes()
	if err != nil {
		return nil
	}

	var plan Plan
	if err := json.Unmarshal(data, &plan); err != nil {
		return nil
	}
	return &plan
}

func (s *Service) toCache(ctx context.Context, userID int64, plan *Plan) {
	if s.cache == nil {
		return
	}

	data, err := json.Marshal(plan)
	if err != nil {
		return
	}
	if err := s.cache.Set(ctx, s.cacheKey(userID), data, s.cacheTTL).Err(); err != nil {
		log.Printf("Failed to cache plan for user %d: %v", userID, err)
	}
}

func (s *Service) cacheKey(userID int64) string {
	return fmt.Sprintf("breachwatch:plan:%d", userID)
}
