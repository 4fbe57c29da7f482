// Package persistence contains helpers shared by store implementations.
package persistence

import (
	"sort"

	"github.com/chazstevenson112/Steppr/internal/domain"
)

// SortLedger orders activities the way every ledger listing is returned:
// date descending, then createdAt descending, then id descending.
func SortLedger(activities []domain.Activity) {
	sort.SliceStable(activities, func(i, j int) bool {
		a, b := activities[i], activities[j]
		if !a.Date.Equal(b.Date) {
			return a.Date.After(b.Date)
		}
		if !a.CreatedAt.Equal(b.CreatedAt) {
			return a.CreatedAt.After(b.CreatedAt)
		}
		return a.ID > b.ID
	})
}

// Window returns the items in [offset, offset+limit), clamped to the slice.
func Window[T any](items []T, offset, limit int) []T {
	if offset < 0 {
		offset = 0
	}
	if offset >= len(items) || limit <= 0 {
		return []T{}
	}
	end := len(items)
	if limit < end-offset {
		end = offset + limit
	}
	out := make([]T, end-offset)
	copy(out, items[offset:end])
	return out
}
