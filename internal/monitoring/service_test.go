// internal/monitoring/service_test.go

package monitoring

import (
	"context"
	"errors"
	"testing"
	"time"
)

// memRepository is an in-memory Repository for service tests
type memRepository struct {
	items  map[int64]*Item
	nextID int64
}

func newMemRepository() *memRepository {
	return &memRepository{items: make(map[int64]*Item), nextID: 1}
}

func (m *memRepository) Create(ctx context.Context, item *Item) error {
	item.ID = m.nextID
	m.nextID++
	item.CreatedAt = time.Now()
	item.UpdatedAt = item.CreatedAt
	m.items[item.ID] = item
	return nil
}

func (m *memRepository) GetByID(ctx context.Context, id, userID int64) (*Item, error) {
	item, ok := m.items[id]
	if !ok || item.UserID != userID {
		return nil, ErrItemNotFound
	}
	return item, nil
}

func (m *memRepository) ListByUser(ctx context.Context, userID int64) ([]*Item, error) {
	var out []*Item
	for _, item := range m.items {
		if item.UserID == userID {
			out = append(out, item)
		}
	}
	return out, nil
}

func (m *memRepository) Update(ctx context.Context, item *Item) error {
	if _, ok := m.items[item.ID]; !ok {
		return ErrItemNotFound
	}
	m.items[item.ID] = item
	return nil
}

func (m *memRepository) Delete(ctx context.Context, id, userID int64) error {
	item, ok := m.items[id]
	if !ok || item.UserID != userID {
		return ErrItemNotFound
	}
	delete(m.items, id)
	return nil
}

func (m *memRepository) ItemsNeedingCheck(ctx context.Context, tier CheckFrequency, limit int) ([]*Item, error) {
	return nil, nil
}

func (m *memRepository) UsersWithDueItems(ctx context.Context, tier CheckFrequency, page, size int) ([]int64, error) {
	return nil, nil
}

func (m *memRepository) DueItemsForUser(ctx context.Context, userID int64, tier CheckFrequency) ([]*Item, error) {
	return nil, nil
}

func (m *memRepository) MarkChecked(ctx context.Context, itemID int64, checkedAt time.Time) error {
	return nil
}

func (m *memRepository) IncrementBreachCount(ctx context.Context, itemID int64, breaches, alerts int) error {
	return nil
}

// stubGate permits the listed tiers with a fixed quota
type stubGate struct {
	tiers map[CheckFrequency]bool
	max   int
}

func (g *stubGate) PermitsTier(ctx context.Context, userID int64, tier CheckFrequency) bool {
	return g.tiers[tier]
}

func (g *stubGate) MaxItems(ctx context.Context, userID int64) int {
	return g.max
}

func TestCreateItemRejectsDisallowedTier(t *testing.T) {
	s := NewService(newMemRepository(), &stubGate{tiers: map[CheckFrequency]bool{FrequencyWeekly: true}, max: 10})

	_, err := s.CreateItem(context.Background(), 1, &CreateItemRequest{
		Value:          "user@example.com",
		Type:           "EMAIL",
		CheckFrequency: "REAL_TIME",
	})
	if !errors.Is(err, ErrFrequencyNotAllowed) {
		t.Fatalf("expected ErrFrequencyNotAllowed, got %v", err)
	}
}

func TestCreateItemEnforcesQuota(t *testing.T) {
	gate := &stubGate{tiers: map[CheckFrequency]bool{FrequencyDaily: true}, max: 2}
	s := NewService(newMemRepository(), gate)

	for i := 0; i < 2; i++ {
		if _, err := s.CreateItem(context.Background(), 1, &CreateItemRequest{
			Value:          "example.com",
			Type:           "DOMAIN",
			CheckFrequency: "DAILY",
		}); err != nil {
			t.Fatalf("create %d failed: %v", i, err)
		}
	}

	_, err := s.CreateItem(context.Background(), 1, &CreateItemRequest{
		Value:          "third.com",
		Type:           "DOMAIN",
		CheckFrequency: "DAILY",
	})
	if !errors.Is(err, ErrItemLimitReached) {
		t.Fatalf("expected ErrItemLimitReached, got %v", err)
	}
}

func TestCreateItemNormalizesValue(t *testing.T) {
	s := NewService(newMemRepository(), &stubGate{tiers: map[CheckFrequency]bool{FrequencyDaily: true}, max: 10})

	item, err := s.CreateItem(context.Background(), 1, &CreateItemRequest{
		Value:          "  User@Example.COM ",
		Type:           "EMAIL",
		CheckFrequency: "DAILY",
	})
	if err != nil {
		t.Fatalf("create failed: %v", err)
	}
	if item.Value != "user@example.com" {
		t.Fatalf("expected normalized value, got %q", item.Value)
	}
}

func TestUpdateItemRechecksTierEntitlement(t *testing.T) {
	repo := newMemRepository()
	gate := &stubGate{tiers: map[CheckFrequency]bool{FrequencyDaily: true}, max: 10}
	s := NewService(repo, gate)

	item, err := s.CreateItem(context.Background(), 1, &CreateItemRequest{
		Value:          "example.com",
		Type:           "DOMAIN",
		CheckFrequency: "DAILY",
	})
	if err != nil {
		t.Fatalf("create failed: %v", err)
	}

	hourly := "HOURLY"
	_, err = s.UpdateItem(context.Background(), 1, item.ID, &UpdateItemRequest{CheckFrequency: &hourly})
	if !errors.Is(err, ErrFrequencyNotAllowed) {
		t.Fatalf("expected ErrFrequencyNotAllowed on retune, got %v", err)
	}
}

func TestGroupByType(t *testing.T) {
	items := []*Item{
		{ID: 1, Type: TypeEmail},
		{ID: 2, Type: TypeDomain},
		{ID: 3, Type: TypeEmail},
	}

	groups := GroupByType(items)
	if len(groups) != 2 {
		t.Fatalf("expected 2 groups, got %d", len(groups))
	}
	if len(groups[TypeEmail]) != 2 || groups[TypeEmail][0].ID != 1 || groups[TypeEmail][1].ID != 3 {
		t.Fatalf("unexpected email group %+v", groups[TypeEmail])
	}
	if len(groups[TypeDomain]) != 1 {
		t.Fatalf("unexpected domain group %+v", groups[TypeDomain])
	}
}
