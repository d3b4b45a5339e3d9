// internal/subscription/repository.go
// PostgreSQL access to plans and user subscriptions

package subscription

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"
)

// ErrNoSubscription is returned when a user has no active subscription
var ErrNoSubscription = errors.New("no active subscription")

// Repository reads subscription state
type Repository interface {
	PlanForUser(ctx context.Context, userID int64) (*Plan, error)
}

type postgresRepository struct {
	db *sqlx.DB
}

// NewPostgresRepository creates a new subscription repository
func NewPostgresRepository(db *sqlx.DB) Repository {
	return &postgresRepository{db: db}
}

// PlanForUser returns the plan backing the user's active subscription
func (r *postgresRepository) PlanForUser(ctx context.Context, userID int64) (*Plan, error) {
	var plan Plan
	query := `
		SELECT p.id, p.name, p.max_items, p.real_time_enabled, p.allowed_frequencies, p.created_at
		FROM plans p
		JOIN subscriptions s ON s.plan_id = p.id
		WHERE s.user_id = $1 AND s.status = 'active'
		ORDER BY s.created_at DESC
		LIMIT 1`

	err := r.db.GetContext(ctx, &plan, query, userID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNoSubscription
		}
		return nil, fmt.Errorf("failed to load plan for user %d: %w", userID, err)
	}

	return &plan, nil
}
