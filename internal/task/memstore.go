package task

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"slices"
	"strings"
	"sync"
	"time"
)

// Compile-time assertion that MemStore satisfies the Store interface.
var _ Store = (*MemStore)(nil)

// MemStore is a thread-safe, in-memory implementation of [Store].
// It is the default backend when no database is configured.
// The zero value is ready to use.
type MemStore struct {
	mu    sync.RWMutex
	tasks map[string]Task
}

// NewMemStore returns an initialised [MemStore].
func NewMemStore() *MemStore {
	return &MemStore{
		tasks: make(map[string]Task),
	}
}

// Add implements [Store.Add].
func (s *MemStore) Add(ctx context.Context, t Task) (Task, error) {
	if err := t.Validate(); err != nil {
		return Task{}, err
	}
	if t.ID == "" {
		id, err := generateID()
		if err != nil {
			return Task{}, fmt.Errorf("task: generate id: %w", err)
		}
		t.ID = id
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.tasks == nil {
		s.tasks = make(map[string]Task)
	}

	if _, exists := s.tasks[t.ID]; exists {
		return Task{}, ErrDuplicateID
	}

	now := time.Now().UTC()
	t.CreatedAt = now
	t.UpdatedAt = now
	s.tasks[t.ID] = t
	return t, nil
}

// Get implements [Store.Get].
func (s *MemStore) Get(ctx context.Context, id string) (Task, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	t, ok := s.tasks[id]
	if !ok {
		return Task{}, ErrNotFound
	}
	return t, nil
}

// List implements [Store.List].
func (s *MemStore) List(ctx context.Context) ([]Task, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]Task, 0, len(s.tasks))
	for _, t := range s.tasks {
		result = append(result, t)
	}
	slices.SortFunc(result, func(a, b Task) int {
		return strings.Compare(a.Title, b.Title)
	})
	return result, nil
}

// Update implements [Store.Update].
func (s *MemStore) Update(ctx context.Context, t Task) error {
	if err := t.Validate(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	old, ok := s.tasks[t.ID]
	if !ok {
		return ErrNotFound
	}

	t.CreatedAt = old.CreatedAt
	t.UpdatedAt = time.Now().UTC()
	s.tasks[t.ID] = t
	return nil
}

// Remove implements [Store.Remove].
func (s *MemStore) Remove(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.tasks[id]; !ok {
		return ErrNotFound
	}

	delete(s.tasks, id)
	return nil
}

// Upsert implements [Store.Upsert].
func (s *MemStore) Upsert(ctx context.Context, t Task) (Task, error) {
	if err := t.Validate(); err != nil {
		return Task{}, err
	}
	if t.ID == "" {
		id, err := generateID()
		if err != nil {
			return Task{}, fmt.Errorf("task: generate id: %w", err)
		}
		t.ID = id
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.tasks == nil {
		s.tasks = make(map[string]Task)
	}

	now := time.Now().UTC()
	if old, exists := s.tasks[t.ID]; exists {
		t.CreatedAt = old.CreatedAt
	} else {
		t.CreatedAt = now
	}
	t.UpdatedAt = now
	s.tasks[t.ID] = t
	return t, nil
}

// ─────────────────────────────────────────────────────────────────────────────
// Helpers
// ─────────────────────────────────────────────────────────────────────────────

// generateID produces a random 16-byte hex string using crypto/rand.
// The resulting string is 32 hex characters and is statistically unique.
func generateID() (string, error) {
	buf := make([]byte, 16)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return hex.EncodeToString(buf), nil
}
