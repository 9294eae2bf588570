package inventory

import (
	"sort"
	"time"
)

const (
	DefaultLowStockThreshold = 5
	DefaultExpiringWindow    = 7 * 24 * time.Hour
)

// statusOrder fixes the order labels are reported in.
var statusOrder = map[StatusLabel]int{
	StatusDiscontinued: 0,
	StatusOutOfStock:   1,
	StatusExpired:      2,
	StatusPlaced:       3,
	StatusLowStock:     4,
	StatusExpiring:     5,
}

// StatusRules parameterizes status derivation.
type StatusRules struct {
	LowStockThreshold int           // quantity strictly below this is LOW_STOCK
	ExpiringWindow    time.Duration // expiry within now+window is EXPIRING
}

func DefaultStatusRules() StatusRules {
	return StatusRules{
		LowStockThreshold: DefaultLowStockThreshold,
		ExpiringWindow:    DefaultExpiringWindow,
	}
}

// Derive maps a product's quantity, expiration date and discontinued flag to its
// display statuses. The first three rules are exclusive and checked in order:
// DISCONTINUED, OUT_OF_STOCK, EXPIRED. Otherwise PLACED is always present and
// LOW_STOCK / EXPIRING are added independently.
func (r StatusRules) Derive(p Product, now time.Time) []StatusLabel {
	switch {
	case p.Discontinued:
		return []StatusLabel{StatusDiscontinued}
	case p.Quantity <= 0:
		return []StatusLabel{StatusOutOfStock}
	case p.ExpirationDate != nil && !p.ExpirationDate.After(now):
		return []StatusLabel{StatusExpired}
	}

	statuses := []StatusLabel{StatusPlaced}
	if p.Quantity < r.LowStockThreshold {
		statuses = append(statuses, StatusLowStock)
	}
	if p.ExpirationDate != nil && !p.ExpirationDate.After(now.Add(r.ExpiringWindow)) {
		statuses = append(statuses, StatusExpiring)
	}
	return statuses
}

// DeriveStatuses applies the default rules.
func DeriveStatuses(p Product, now time.Time) []StatusLabel {
	return DefaultStatusRules().Derive(p, now)
}

// SameStatuses compares two label sets ignoring order and duplicates.
func SameStatuses(a, b []StatusLabel) bool {
	return equalSorted(normalize(a), normalize(b))
}

func normalize(labels []StatusLabel) []StatusLabel {
	seen := make(map[StatusLabel]bool, len(labels))
	out := make([]StatusLabel, 0, len(labels))
	for _, l := range labels {
		if !seen[l] {
			seen[l] = true
			out = append(out, l)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if ri, rj := rank(out[i]), rank(out[j]); ri != rj {
			return ri < rj
		}
		return out[i] < out[j]
	})
	return out
}

func rank(l StatusLabel) int {
	if r, ok := statusOrder[l]; ok {
		return r
	}
	return len(statusOrder)
}

func equalSorted(a, b []StatusLabel) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
