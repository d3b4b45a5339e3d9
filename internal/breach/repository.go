// internal/breach/repository.go
// PostgreSQL persistence for breach alerts

package breach

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"
)

// Repository stores and reads breach alerts
type Repository interface {
	CreateAlert(ctx context.Context, alert *Alert) error
	ListByUser(ctx context.Context, userID int64, limit int) ([]*Alert, error)
	MarkRead(ctx context.Context, alertID string, userID int64) error
}

type postgresRepository struct {
	db *sqlx.DB
}

// NewPostgresRepository creates a new alert repository
func NewPostgresRepository(db *sqlx.DB) Repository {
	return &postgresRepository{db: db}
}

func (r *postgresRepository) CreateAlert(ctx context.Context, alert *Alert) error {
	query := `
		INSERT INTO breach_alerts (id, user_id, item_id, breach_name, severity, details, is_read, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, false, NOW())
		RETURNING created_at`

	err := r.db.QueryRowContext(ctx, query,
		alert.ID, alert.UserID, alert.ItemID, alert.BreachName, alert.Severity, alert.Details,
	).Scan(&alert.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to create alert: %w", err)
	}

	return nil
}

func (r *postgresRepository) ListByUser(ctx context.Context, userID int64, limit int) ([]*Alert, error) {
	if limit <= 0 || limit > 200 {
		limit = 50
	}

	alerts := []*Alert{}
	query := `SELECT * FROM breach_alerts WHERE user_id = $1 ORDER BY created_at DESC LIMIT $2`

	if err := r.db.SelectContext(ctx, &alerts, query, userID, limit); err != nil {
		return nil, fmt.Errorf("failed to list alerts: %w", err)
	}

	return alerts, nil
}

func (r *postgresRepository) MarkRead(ctx context.Context, alertID string, userID int64) error {
	query := `UPDATE breach_alerts SET is_read = true WHERE id = $1 AND user_id = $2`

	if _, err := r.db.ExecContext(ctx, query, alertID, userID); err != nil {
		return fmt.Errorf("failed to mark alert read: %w", err)
	}

	return nil
}
