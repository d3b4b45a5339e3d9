// internal/monitoring/repository.go
// PostgreSQL persistence for monitoring items

package monitoring

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
)

// ErrItemNotFound is returned when an item does not exist or is not owned by the caller
var ErrItemNotFound = errors.New("monitoring item not found")

// Repository provides access to monitoring item storage
type Repository interface {
	Create(ctx context.Context, item *Item) error
	GetByID(ctx context.Context, id, userID int64) (*Item, error)
	ListByUser(ctx context.Context, userID int64) ([]*Item, error)
	Update(ctx context.Context, item *Item) error
	Delete(ctx context.Context, id, userID int64) error

	// Scheduler-facing queries
	ItemsNeedingCheck(ctx context.Context, tier CheckFrequency, limit int) ([]*Item, error)
	UsersWithDueItems(ctx context.Context, tier CheckFrequency, page, size int) ([]int64, error)
	DueItemsForUser(ctx context.Context, userID int64, tier CheckFrequency) ([]*Item, error)
	MarkChecked(ctx context.Context, itemID int64, checkedAt time.Time) error
	IncrementBreachCount(ctx context.Context, itemID int64, breaches, alerts int) error
}

type postgresRepository struct {
	db *sqlx.DB
}

// NewPostgresRepository creates a new monitoring repository
func NewPostgresRepository(db *sqlx.DB) Repository {
	return &postgresRepository{db: db}
}

func (r *postgresRepository) Create(ctx context.Context, item *Item) error {
	query := `
		INSERT INTO monitoring_items (user_id, value, type, check_frequency, is_active, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, NOW(), NOW())
		RETURNING id, created_at, updated_at`

	err := r.db.QueryRowContext(ctx, query,
		item.UserID, item.Value, item.Type, item.CheckFrequency, item.IsActive,
	).Scan(&item.ID, &item.CreatedAt, &item.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to create monitoring item: %w", err)
	}

	return nil
}

func (r *postgresRepository) GetByID(ctx context.Context, id, userID int64) (*Item, error) {
	var item Item
	query := `SELECT * FROM monitoring_items WHERE id = $1 AND user_id = $2`

	err := r.db.GetContext(ctx, &item, query, id, userID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrItemNotFound
		}
		return nil, fmt.Errorf("failed to get monitoring item: %w", err)
	}

	return &item, nil
}

func (r *postgresRepository) ListByUser(ctx context.Context, userID int64) ([]*Item, error) {
	items := []*Item{}
	query := `SELECT * FROM monitoring_items WHERE user_id = $1 ORDER BY created_at DESC`

	if err := r.db.SelectContext(ctx, &items, query, userID); err != nil {
		return nil, fmt.Errorf("failed to list monitoring items: %w", err)
	}

	return items, nil
}

func (r *postgresRepository) Update(ctx context.Context, item *Item) error {
	query := `
		UPDATE monitoring_items
		SET check_frequency = $1, is_active = $2, updated_at = NOW()
		WHERE id = $3 AND user_id = $4`

	result, err := r.db.ExecContext(ctx, query, item.CheckFrequency, item.IsActive, item.ID, item.UserID)
	if err != nil {
		return fmt.Errorf("failed to update monitoring item: %w", err)
	}

	rows, _ := result.RowsAffected()
	if rows == 0 {
		return ErrItemNotFound
	}

	return nil
}

func (r *postgresRepository) Delete(ctx context.Context, id, userID int64) error {
	result, err := r.db.ExecContext(ctx, `DELETE FROM monitoring_items WHERE id = $1 AND user_id = $2`, id, userID)
	if err != nil {
		return fmt.Errorf("failed to delete monitoring item: %w", err)
	}

	rows, _ := result.RowsAffected()
	if rows == 0 {
		return ErrItemNotFound
	}

	return nil
}

// ItemsNeedingCheck returns active items of the given tier whose last check
// is older than the tier interval, oldest first. Never-checked items sort first.
func (r *postgresRepository) ItemsNeedingCheck(ctx context.Context, tier CheckFrequency, limit int) ([]*Item, error) {
	items := []*Item{}
	query := `
		SELECT * FROM monitoring_items
		WHERE is_active = true
		  AND check_frequency = $1
		  AND (last_checked_at IS NULL OR last_checked_at < $2)
		ORDER BY last_checked_at ASC NULLS FIRST
		LIMIT $3`

	cutoff := time.Now().Add(-tier.Interval())
	if err := r.db.SelectContext(ctx, &items, query, tier, cutoff, limit); err != nil {
		return nil, fmt.Errorf("failed to query items needing check: %w", err)
	}

	return items, nil
}

// UsersWithDueItems returns one page of user ids owning at least one due item
// of the given tier. Ordered by user id so pages are stable within a cycle.
func (r *postgresRepository) UsersWithDueItems(ctx context.Context, tier CheckFrequency, page, size int) ([]int64, error) {
	userIDs := []int64{}
	query := `
		SELECT DISTINCT user_id FROM monitoring_items
		WHERE is_active = true
		  AND check_frequency = $1
		  AND (last_checked_at IS NULL OR last_checked_at < $2)
		ORDER BY user_id
		LIMIT $3 OFFSET $4`

	cutoff := time.Now().Add(-tier.Interval())
	if err := r.db.SelectContext(ctx, &userIDs, query, tier, cutoff, size, page*size); err != nil {
		return nil, fmt.Errorf("failed to query users with due items: %w", err)
	}

	return userIDs, nil
}

func (r *postgresRepository) DueItemsForUser(ctx context.Context, userID int64, tier CheckFrequency) ([]*Item, error) {
	items := []*Item{}
	query := `
		SELECT * FROM monitoring_items
		WHERE is_active = true
		  AND user_id = $1
		  AND check_frequency = $2
		  AND (last_checked_at IS NULL OR last_checked_at < $3)
		ORDER BY last_checked_at ASC NULLS FIRST`

	cutoff := time.Now().Add(-tier.Interval())
	if err := r.db.SelectContext(ctx, &items, query, userID, tier, cutoff); err != nil {
		return nil, fmt.Errorf("failed to query due items for user %d: %w", userID, err)
	}

	return items, nil
}

func (r *postgresRepository) MarkChecked(ctx context.Context, itemID int64, checkedAt time.Time) error {
	query := `UPDATE monitoring_items SET last_checked_at = $1, updated_at = NOW() WHERE id = $2`

	if _, err := r.db.ExecContext(ctx, query, checkedAt, itemID); err != nil {
		return fmt.Errorf("failed to mark item %d checked: %w", itemID, err)
	}

	return nil
}

func (r *postgresRepository) IncrementBreachCount(ctx context.Context, itemID int64, breaches, alerts int) error {
	query := `
		UPDATE monitoring_items
		SET breach_count = breach_count + $1, alert_count = alert_count + $2, updated_at = NOW()
		WHERE id = $3`

	if _, err := r.db.ExecContext(ctx, query, breaches, alerts, itemID); err != nil {
		return fmt.Errorf("failed to bump counters for item %d: %w", itemID, err)
	}

	return nil
}
