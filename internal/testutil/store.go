package testutil

import (
	"context"
	"sort"
	"sync"

	ierr "github.com/flexprice/bookingpay/internal/errors"
	"github.com/flexprice/bookingpay/internal/types"
)

// FilterFunc is a generic filter function type
type FilterFunc[T any] func(ctx context.Context, item T, filter interface{}) bool

// SortFunc is a generic sort function type
type SortFunc[T any] func(i, j T) bool

// InMemoryStore implements a generic in-memory store. Items are copied on the
// way in and out so callers never share memory with the store. Writes made
// inside InMemoryTxClient.WithTx are undone when the unit of work fails.
type InMemoryStore[T any] struct {
	mu       sync.RWMutex
	items    map[string]T
	copyFn   func(T) T
	tenantFn func(T) string
}

// NewInMemoryStore creates a new InMemoryStore
func NewInMemoryStore[T any](copyFn func(T) T, tenantFn func(T) string) *InMemoryStore[T] {
	return &InMemoryStore[T]{
		items:    make(map[string]T),
		copyFn:   copyFn,
		tenantFn: tenantFn,
	}
}

func (s *InMemoryStore[T]) visible(ctx context.Context, item T) bool {
	tenantID := types.GetTenantID(ctx)
	return tenantID == "" || s.tenantFn(item) == tenantID
}

// Create adds a new item to the store
func (s *InMemoryStore[T]) Create(ctx context.Context, id string, item T) error {
	return s.CreateUnique(ctx, id, item, nil)
}

// CreateUnique adds a new item unless conflict reports a clash with an existing one,
// the in-memory counterpart of a unique index.
func (s *InMemoryStore[T]) CreateUnique(ctx context.Context, id string, item T, conflict func(existing T) bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.items[id]; exists {
		return ierr.NewError("item already exists").
			WithReportableDetails(map[string]any{"id": id}).
			Mark(ierr.ErrAlreadyExists)
	}
	if conflict != nil {
		for _, existing := range s.items {
			if conflict(existing) {
				return ierr.NewError("item violates a unique constraint").
					WithReportableDetails(map[string]any{"id": id}).
					Mark(ierr.ErrAlreadyExists)
			}
		}
	}

	s.items[id] = s.copyFn(item)
	RecordUndo(ctx, func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		delete(s.items, id)
	})
	return nil
}

// Get retrieves an item by ID
func (s *InMemoryStore[T]) Get(ctx context.Context, id string) (T, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if item, exists := s.items[id]; exists && s.visible(ctx, item) {
		return s.copyFn(item), nil
	}

	var zero T
	return zero, ierr.NewError("item not found").
		WithReportableDetails(map[string]any{"id": id}).
		Mark(ierr.ErrNotFound)
}

// Find returns the first item accepted by match
func (s *InMemoryStore[T]) Find(ctx context.Context, match func(T) bool) (T, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, item := range s.items {
		if s.visible(ctx, item) && match(item) {
			return s.copyFn(item), nil
		}
	}

	var zero T
	return zero, ierr.NewError("item not found").Mark(ierr.ErrNotFound)
}

// List retrieves items based on filter, paginated by qf when it has a limit
func (s *InMemoryStore[T]) List(ctx context.Context, filter interface{}, filterFn FilterFunc[T], sortFn SortFunc[T], qf *types.QueryFilter) ([]T, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]T, 0)
	for _, item := range s.items {
		if !s.visible(ctx, item) {
			continue
		}
		if filterFn == nil || filterFn(ctx, item, filter) {
			result = append(result, s.copyFn(item))
		}
	}

	if sortFn != nil {
		sort.SliceStable(result, func(i, j int) bool {
			return sortFn(result[i], result[j])
		})
	}

	if qf != nil && !qf.IsUnlimited() {
		start := qf.GetOffset()
		if start >= len(result) {
			return []T{}, nil
		}

		end := start + qf.GetLimit()
		if end > len(result) {
			end = len(result)
		}
		return result[start:end], nil
	}

	return result, nil
}

// Count returns the total number of items matching the filter
func (s *InMemoryStore[T]) Count(ctx context.Context, filter interface{}, filterFn FilterFunc[T]) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	count := 0
	for _, item := range s.items {
		if s.visible(ctx, item) && (filterFn == nil || filterFn(ctx, item, filter)) {
			count++
		}
	}

	return count, nil
}

// Update atomically rewrites an item when fn accepts it. fn receives a copy and
// returns the replacement and whether to write it. Undo is left to the caller
// since only the caller knows the inverse of its change.
func (s *InMemoryStore[T]) Update(ctx context.Context, id string, fn func(item T) (T, bool)) (before T, after T, ok bool, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	current, exists := s.items[id]
	if !exists || !s.visible(ctx, current) {
		return before, after, false, ierr.NewError("item not found").
			WithReportableDetails(map[string]any{"id": id}).
			Mark(ierr.ErrNotFound)
	}

	next, ok := fn(s.copyFn(current))
	if !ok {
		return s.copyFn(current), s.copyFn(current), false, nil
	}

	s.items[id] = s.copyFn(next)
	return s.copyFn(current), s.copyFn(next), true, nil
}

// Put replaces an item unconditionally, used by undo actions
func (s *InMemoryStore[T]) Put(id string, item T) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.items[id] = s.copyFn(item)
}

// PutIf replaces an item only while keep accepts the stored value
func (s *InMemoryStore[T]) PutIf(id string, item T, keep func(current T) bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if current, exists := s.items[id]; exists && keep(current) {
		s.items[id] = s.copyFn(item)
	}
}

// Delete removes an item from the store and returns it
func (s *InMemoryStore[T]) Delete(ctx context.Context, id string) (T, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	item, exists := s.items[id]
	if !exists || !s.visible(ctx, item) {
		var zero T
		return zero, ierr.NewError("item not found").
			WithReportableDetails(map[string]any{"id": id}).
			Mark(ierr.ErrNotFound)
	}

	delete(s.items, id)
	RecordUndo(ctx, func() {
		s.Put(id, item)
	})
	return s.copyFn(item), nil
}

// Clear removes all items from the store
func (s *InMemoryStore[T]) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.items = make(map[string]T)
}
