package task

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// Schema is the SQL DDL for the tasks table. Execute it via
// [PostgresStore.Migrate] or apply it manually during deployment.
const Schema = `
CREATE TABLE IF NOT EXISTS tasks (
    id          TEXT PRIMARY KEY,
    title       TEXT NOT NULL,
    description TEXT NOT NULL DEFAULT '',
    rubric      TEXT NOT NULL,
    vocabulary  JSONB NOT NULL DEFAULT '[]',
    interactive BOOLEAN NOT NULL DEFAULT FALSE,
    scenario    JSONB NOT NULL DEFAULT '{}',
    created_at  TIMESTAMPTZ NOT NULL DEFAULT now(),
    updated_at  TIMESTAMPTZ NOT NULL DEFAULT now()
);
CREATE INDEX IF NOT EXISTS idx_tasks_title ON tasks(title);
`

// DB is the database interface used by [PostgresStore]. Both *pgxpool.Pool
// and *pgx.Conn satisfy this interface.
type DB interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

// PostgresStore is a [Store] backed by a PostgreSQL database.
// It serialises vocabulary and scenario as JSONB.
type PostgresStore struct {
	db DB
}

// Compile-time interface check.
var _ Store = (*PostgresStore)(nil)

// NewPostgresStore creates a new [PostgresStore] that uses the given database
// connection or pool. The caller is responsible for calling
// [PostgresStore.Migrate] to ensure the schema exists before issuing queries.
func NewPostgresStore(db DB) *PostgresStore {
	return &PostgresStore{db: db}
}

// Migrate executes the [Schema] DDL against the database, creating the tasks
// table and index if they do not already exist.
func (s *PostgresStore) Migrate(ctx context.Context) error {
	_, err := s.db.Exec(ctx, Schema)
	if err != nil {
		return fmt.Errorf("task: migrate: %w", err)
	}
	return nil
}

// Add implements [Store.Add].
func (s *PostgresStore) Add(ctx context.Context, t Task) (Task, error) {
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

	vocabJSON, scenarioJSON, err := marshalFields(t)
	if err != nil {
		return Task{}, err
	}

	const query = `
		INSERT INTO tasks (
			id, title, description, rubric, vocabulary, interactive, scenario
		) VALUES ($1,$2,$3,$4,$5,$6,$7)
		RETURNING created_at, updated_at`

	err = s.db.QueryRow(ctx, query,
		t.ID, t.Title, t.Description, t.Rubric, vocabJSON, t.Interactive, scenarioJSON,
	).Scan(&t.CreatedAt, &t.UpdatedAt)
	if err != nil {
		if isDuplicateKeyError(err) {
			return Task{}, fmt.Errorf("task: add %q: %w", t.ID, ErrDuplicateID)
		}
		return Task{}, fmt.Errorf("task: add: %w", err)
	}
	return t, nil
}

// Get implements [Store.Get].
func (s *PostgresStore) Get(ctx context.Context, id string) (Task, error) {
	const query = `
		SELECT id, title, description, rubric, vocabulary, interactive, scenario,
		       created_at, updated_at
		FROM tasks
		WHERE id = $1`

	var t Task
	var vocabJSON, scenarioJSON []byte

	err := s.db.QueryRow(ctx, query, id).Scan(
		&t.ID, &t.Title, &t.Description, &t.Rubric, &vocabJSON, &t.Interactive, &scenarioJSON,
		&t.CreatedAt, &t.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Task{}, fmt.Errorf("task: get %q: %w", id, ErrNotFound)
		}
		return Task{}, fmt.Errorf("task: get %q: %w", id, err)
	}

	if err := unmarshalFields(&t, vocabJSON, scenarioJSON); err != nil {
		return Task{}, err
	}
	return t, nil
}

// List implements [Store.List].
func (s *PostgresStore) List(ctx context.Context) ([]Task, error) {
	const query = `
		SELECT id, title, description, rubric, vocabulary, interactive, scenario,
		       created_at, updated_at
		FROM tasks
		ORDER BY title`

	rows, err := s.db.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("task: list: %w", err)
	}
	defer rows.Close()

	var tasks []Task
	for rows.Next() {
		var t Task
		var vocabJSON, scenarioJSON []byte

		if err := rows.Scan(
			&t.ID, &t.Title, &t.Description, &t.Rubric, &vocabJSON, &t.Interactive, &scenarioJSON,
			&t.CreatedAt, &t.UpdatedAt,
		); err != nil {
			return nil, fmt.Errorf("task: list scan: %w", err)
		}

		if err := unmarshalFields(&t, vocabJSON, scenarioJSON); err != nil {
			return nil, err
		}
		tasks = append(tasks, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("task: list: %w", err)
	}
	return tasks, nil
}

// Update implements [Store.Update].
func (s *PostgresStore) Update(ctx context.Context, t Task) error {
	if err := t.Validate(); err != nil {
		return err
	}

	vocabJSON, scenarioJSON, err := marshalFields(t)
	if err != nil {
		return err
	}

	const query = `
		UPDATE tasks SET
			title = $2, description = $3, rubric = $4, vocabulary = $5,
			interactive = $6, scenario = $7, updated_at = now()
		WHERE id = $1
		RETURNING updated_at`

	var updatedAt time.Time
	err = s.db.QueryRow(ctx, query,
		t.ID, t.Title, t.Description, t.Rubric, vocabJSON, t.Interactive, scenarioJSON,
	).Scan(&updatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return fmt.Errorf("task: update %q: %w", t.ID, ErrNotFound)
		}
		return fmt.Errorf("task: update: %w", err)
	}
	return nil
}

// Remove implements [Store.Remove].
func (s *PostgresStore) Remove(ctx context.Context, id string) error {
	const query = `DELETE FROM tasks WHERE id = $1`
	tag, err := s.db.Exec(ctx, query, id)
	if err != nil {
		return fmt.Errorf("task: remove %q: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("task: remove %q: %w", id, ErrNotFound)
	}
	return nil
}

// Upsert implements [Store.Upsert].
func (s *PostgresStore) Upsert(ctx context.Context, t Task) (Task, error) {
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

	vocabJSON, scenarioJSON, err := marshalFields(t)
	if err != nil {
		return Task{}, err
	}

	const query = `
		INSERT INTO tasks (
			id, title, description, rubric, vocabulary, interactive, scenario
		) VALUES ($1,$2,$3,$4,$5,$6,$7)
		ON CONFLICT (id) DO UPDATE SET
			title = EXCLUDED.title,
			description = EXCLUDED.description,
			rubric = EXCLUDED.rubric,
			vocabulary = EXCLUDED.vocabulary,
			interactive = EXCLUDED.interactive,
			scenario = EXCLUDED.scenario,
			updated_at = now()
		RETURNING created_at, updated_at`

	err = s.db.QueryRow(ctx, query,
		t.ID, t.Title, t.Description, t.Rubric, vocabJSON, t.Interactive, scenarioJSON,
	).Scan(&t.CreatedAt, &t.UpdatedAt)
	if err != nil {
		return Task{}, fmt.Errorf("task: upsert: %w", err)
	}
	return t, nil
}

// marshalFields serialises the JSONB columns of a [Task].
func marshalFields(t Task) (vocabJSON, scenarioJSON []byte, err error) {
	vocabJSON, err = json.Marshal(emptySlice(t.Vocabulary))
	if err != nil {
		return nil, nil, fmt.Errorf("task: marshal vocabulary: %w", err)
	}
	scenarioJSON, err = json.Marshal(t.Scenario)
	if err != nil {
		return nil, nil, fmt.Errorf("task: marshal scenario: %w", err)
	}
	return vocabJSON, scenarioJSON, nil
}

// unmarshalFields deserialises the JSONB columns into the corresponding
// [Task] fields.
func unmarshalFields(t *Task, vocab, scenario []byte) error {
	if err := json.Unmarshal(vocab, &t.Vocabulary); err != nil {
		return fmt.Errorf("task: unmarshal vocabulary: %w", err)
	}
	if err := json.Unmarshal(scenario, &t.Scenario); err != nil {
		return fmt.Errorf("task: unmarshal scenario: %w", err)
	}
	return nil
}

// emptySlice returns s if non-nil, otherwise an empty non-nil slice. This
// ensures JSON marshalling produces "[]" instead of "null".
func emptySlice(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}

// isDuplicateKeyError checks whether a PostgreSQL error is a unique-violation
// (SQLSTATE 23505).
func isDuplicateKeyError(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "23505"
	}
	return false
}
