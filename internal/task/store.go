package task

import (
	"context"
	"errors"
)

// ErrNotFound is returned by Get, Update and Remove when the requested task
// does not exist.
var ErrNotFound = errors.New("task not found")

// ErrDuplicateID is returned by Add when a task with the same ID already exists.
var ErrDuplicateID = errors.New("task with that ID already exists")

// Store manages the task catalog.
//
// Every write validates the task via [Task.Validate] so that API-created and
// YAML-authored tasks meet the same bar regardless of backend.
//
// All implementations must be safe for concurrent use.
type Store interface {
	// Add creates a new task. Returns the stored task with a generated ID if
	// the provided task's ID is empty, and with timestamps filled in.
	// Returns [ErrDuplicateID] if a task with the same non-empty ID exists.
	Add(ctx context.Context, t Task) (Task, error)

	// Get retrieves a task by ID.
	// Returns [ErrNotFound] when no task with that ID exists.
	Get(ctx context.Context, id string) (Task, error)

	// List returns all tasks ordered by title.
	List(ctx context.Context) ([]Task, error)

	// Update replaces an existing task. The task's ID must be non-empty.
	// CreatedAt is preserved from the stored task.
	// Returns [ErrNotFound] when no task with that ID exists.
	Update(ctx context.Context, t Task) error

	// Remove deletes a task by ID.
	// Returns [ErrNotFound] when no task with that ID exists.
	Remove(ctx context.Context, id string) error

	// Upsert creates or replaces a task, generating an ID if empty. Used by
	// the catalog importer so that re-importing the same files is idempotent.
	// Returns the stored task with timestamps filled in.
	Upsert(ctx context.Context, t Task) (Task, error)
}
