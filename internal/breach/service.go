// internal/breach/service.go
// Monitoring check executor: looks up watch values against the breach data
// source, persists alerts for new hits and pushes them to the owner.

package breach

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"

	"github.com/vigilhq/breachwatch-backend/internal/monitoring"
	"github.com/vigilhq/breachwatch-backend/internal/push"
)

// Checker performs the actual breach lookup for monitoring items.
// Both variants mutate item state (last-checked, counters) and raise
// alerts as a side effect; callers are expected to catch errors.
type Checker interface {
	CheckItem(ctx context.Context, item *monitoring.Item) error
	CheckItemsBulk(ctx context.Context, items []*monitoring.Item) error
}

// Service implements Checker against the HTTP breach API
type Service struct {
	lookup     LookupClient
	alerts     Repository
	items      monitoring.Repository
	dispatcher *push.Dispatcher
}

// NewService creates a new breach check service
func NewService(lookup LookupClient, alerts Repository, items monitoring.Repository, dispatcher *push.Dispatcher) *Service {
	return &Service{
		lookup:     lookup,
		alerts:     alerts,
		items:      items,
		dispatcher: dispatcher,
	}
}

// CheckItem looks up a single item and raises alerts for new hits
func (s *Service) CheckItem(ctx context.Context, item *monitoring.Item) error {
	records, err := s.lookup.Search(ctx, item.Value, string(item.Type))
	if err != nil {
		return fmt.Errorf("lookup failed for %s: %w", item.Describe(), err)
	}

	s.processRecords(ctx, item, records)
	return s.markChecked(ctx, item)
}

// CheckItemsBulk looks up many same-type items with one batch request.
// A failed batch returns an error so the caller can degrade to CheckItem.
func (s *Service) CheckItemsBulk(ctx context.Context, items []*monitoring.Item) error {
	if len(items) == 0 {
		return nil
	}

	// The scheduler groups by type before calling; sub-group anyway so a
	// mixed batch still resolves correctly.
	byType := monitoring.GroupByType(items)
	for typ, group := range byType {
		values := make([]string, 0, len(group))
		for _, item := range group {
			values = append(values, item.Value)
		}

		results, err := s.lookup.SearchBatch(ctx, values, string(typ))
		if err != nil {
			return fmt.Errorf("bulk lookup failed for %d %s items: %w", len(group), typ, err)
		}

		for _, item := range group {
			s.processRecords(ctx, item, results[item.Value])
			if err := s.markChecked(ctx, item); err != nil {
				log.Printf("Failed to mark %s checked: %v", item.Describe(), err)
			}
		}
	}

	return nil
}

// processRecords persists and pushes an alert per new breach record
func (s *Service) processRecords(ctx context.Context, item *monitoring.Item, records []Record) {
	newRecords := filterNew(item, records)
	if len(newRecords) == 0 {
		return
	}

	for _, record := range newRecords {
		alert := &Alert{
			ID:         uuid.NewString(),
			UserID:     item.UserID,
			ItemID:     item.ID,
			BreachName: record.BreachName,
			Severity:   severityFor(record),
			Details:    describeRecord(record),
		}

		if err := s.alerts.CreateAlert(ctx, alert); err != nil {
			log.Printf("Failed to persist alert for %s: %v", item.Describe(), err)
			continue
		}

		s.dispatcher.SendAlert(item.UserID, push.AlertPayload{
			AlertID:    alert.ID,
			ItemID:     item.ID,
			ItemValue:  item.Value,
			ItemType:   string(item.Type),
			BreachName: alert.BreachName,
			Severity:   alert.Severity,
			Details:    alert.Details,
		})
	}

	if err := s.items.IncrementBreachCount(ctx, item.ID, len(newRecords), len(newRecords)); err != nil {
		log.Printf("Failed to bump breach counters for %s: %v", item.Describe(), err)
	}
}

func (s *Service) markChecked(ctx context.Context, item *monitoring.Item) error {
	now := time.Now()
	if err := s.items.MarkChecked(ctx, item.ID, now); err != nil {
		return err
	}
	item.LastCheckedAt = &now
	return nil
}

// filterNew keeps records disclosed after the item's last check. A
// never-checked item reports everything on its first pass.
func filterNew(item *monitoring.Item, records []Record) []Record {
	if item.LastCheckedAt == nil {
		return records
	}

	var fresh []Record
	for _, r := range records {
		if r.BreachDate.After(*item.LastCheckedAt) {
			fresh = append(fresh, r)
		}
	}
	return fresh
}

func severityFor(record Record) string {
	if record.Severity != "" {
		return record.Severity
	}
	for _, dt := range record.DataTypes {
		if dt == "passwords" || dt == "credit_cards" {
			return SeverityCritical
		}
	}
	return SeverityMedium
}

func describeRecord(record Record) string {
	title := record.Title
	if title == "" {
		title = record.BreachName
	}
	return fmt.Sprintf("%s (%s, disclosed %s)", title, record.Domain, record.BreachDate.Format("2006-01-02"))
}
