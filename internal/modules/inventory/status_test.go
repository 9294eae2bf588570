package inventory

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func at(t time.Time) *time.Time { return &t }

func TestDeriveStatuses_Priority(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	past := now.Add(-time.Hour)
	soon := now.Add(3 * 24 * time.Hour)
	later := now.Add(30 * 24 * time.Hour)

	cases := []struct {
		name    string
		product Product
		want    []StatusLabel
	}{
		{"discontinued wins over everything", Product{Quantity: 0, ExpirationDate: at(past), Discontinued: true}, []StatusLabel{StatusDiscontinued}},
		{"out of stock wins over expired", Product{Quantity: 0, ExpirationDate: at(past)}, []StatusLabel{StatusOutOfStock}},
		{"negative quantity is out of stock", Product{Quantity: -1}, []StatusLabel{StatusOutOfStock}},
		{"expired", Product{Quantity: 2, ExpirationDate: at(past)}, []StatusLabel{StatusExpired}},
		{"expires exactly now", Product{Quantity: 20, ExpirationDate: at(now)}, []StatusLabel{StatusExpired}},
		{"placed", Product{Quantity: 20}, []StatusLabel{StatusPlaced}},
		{"placed far expiry", Product{Quantity: 20, ExpirationDate: at(later)}, []StatusLabel{StatusPlaced}},
		{"low stock", Product{Quantity: 4}, []StatusLabel{StatusPlaced, StatusLowStock}},
		{"five is not low", Product{Quantity: 5}, []StatusLabel{StatusPlaced}},
		{"expiring", Product{Quantity: 20, ExpirationDate: at(soon)}, []StatusLabel{StatusPlaced, StatusExpiring}},
		{"expiring at window edge", Product{Quantity: 20, ExpirationDate: at(now.Add(DefaultExpiringWindow))}, []StatusLabel{StatusPlaced, StatusExpiring}},
		{"low and expiring", Product{Quantity: 1, ExpirationDate: at(soon)}, []StatusLabel{StatusPlaced, StatusLowStock, StatusExpiring}},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			assert.Equal(t, c.want, DeriveStatuses(c.product, now))
		})
	}
}

func TestDeriveStatuses_DeterministicAndIdempotent(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	p := Product{Quantity: 3, ExpirationDate: at(now.Add(48 * time.Hour))}

	first := DeriveStatuses(p, now)
	p.Statuses = first
	second := DeriveStatuses(p, now)

	assert.Equal(t, first, second)
	assert.True(t, SameStatuses(first, second))
}

func TestStatusRules_Custom(t *testing.T) {
	now := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	rules := StatusRules{LowStockThreshold: 10, ExpiringWindow: 24 * time.Hour}
	p := Product{Quantity: 9, ExpirationDate: at(now.Add(48 * time.Hour))}

	assert.Equal(t, []StatusLabel{StatusPlaced, StatusLowStock}, rules.Derive(p, now))
}

func TestSameStatuses(t *testing.T) {
	assert.True(t, SameStatuses(
		[]StatusLabel{StatusExpiring, StatusPlaced},
		[]StatusLabel{StatusPlaced, StatusExpiring},
	))
	assert.True(t, SameStatuses(nil, []StatusLabel{}))
	assert.True(t, SameStatuses([]StatusLabel{StatusPlaced, StatusPlaced}, []StatusLabel{StatusPlaced}))
	assert.False(t, SameStatuses([]StatusLabel{StatusPlaced}, []StatusLabel{StatusPlaced, StatusLowStock}))
	assert.False(t, SameStatuses([]StatusLabel{"A"}, []StatusLabel{"B"}))
}
