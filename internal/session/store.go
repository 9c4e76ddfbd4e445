// Package session tracks the lifecycle of practice-session runs.
//
// A session is created when a recording is uploaded (or a live scenario
// starts), moves to processing while the evidence pipeline runs, and ends in
// exactly one terminal state:
//
//	pending → processing → complete  (report attached)
//	                     → failed    (reason attached)
//	                     → discarded (cancelled, partial output dropped)
//
// A pending session may also fail or be discarded before processing starts.
//
// Sessions live in memory only. The [Janitor] keeps the store bounded by
// evicting finished sessions after a retention window; an optional
// [ReportArchiver] receives completed reports as they land.
//
// All store operations are safe for concurrent use.
package session

import (
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"sync"
	"time"

	"github.com/Metzpapa/bleai/pkg/types"
)

// ErrNotFound is returned when the requested session does not exist.
var ErrNotFound = errors.New("session not found")

// ErrInvalidTransition is returned when an operation would move a session
// to a state its current state does not allow.
var ErrInvalidTransition = errors.New("invalid session state transition")

// State is a session lifecycle state.
type State string

const (
	// StatePending means the session exists but processing has not started.
	StatePending State = "pending"

	// StateProcessing means the evidence pipeline is running.
	StateProcessing State = "processing"

	// StateComplete means processing finished and a report is attached.
	StateComplete State = "complete"

	// StateFailed means processing failed; the reason is on the record.
	StateFailed State = "failed"

	// StateDiscarded means the run was cancelled and partial output dropped.
	StateDiscarded State = "discarded"
)

// IsValid reports whether s is a recognised state.
func (s State) IsValid() bool {
	switch s {
	case StatePending, StateProcessing, StateComplete, StateFailed, StateDiscarded:
		return true
	}
	return false
}

// Terminal reports whether s is a final state.
func (s State) Terminal() bool {
	switch s {
	case StateComplete, StateFailed, StateDiscarded:
		return true
	}
	return false
}

// String returns the wire value of the state.
func (s State) String() string { return string(s) }

// Session is the record of one practice-session run.
type Session struct {
	// ID is a unique identifier, generated on creation.
	ID string

	// TaskID references the task being practiced.
	TaskID string

	// State is the current lifecycle state.
	State State

	// Stage names the pipeline phase currently running (e.g. "sheets",
	// "transcribing", "analyzing"). Empty before processing starts.
	Stage string

	// Fraction is the progress within the current stage, in [0, 1].
	// Never decreases while the stage is unchanged.
	Fraction float64

	// Report holds the analysis result once the session completes.
	Report *types.FeedbackReport

	// Error is the failure reason when State is StateFailed.
	Error string

	// Turns is the conversation log attached by the live relay for
	// interactive scenarios.
	Turns []types.ConversationTurn

	// CreatedAt and UpdatedAt are maintained by the store.
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Event is one progress notification delivered to session watchers.
type Event struct {
	State    State
	Stage    string
	Fraction float64
}

// ReportArchiver receives completed session reports for out-of-band
// recording. Implementations must be safe for concurrent use.
type ReportArchiver interface {
	SaveReport(sessionID, taskID string, report *types.FeedbackReport) error
}

// watchBuffer is the per-watcher event channel capacity. Watchers that fall
// further behind lose intermediate progress events.
const watchBuffer = 16

// Store is a thread-safe, in-memory session store.
// The zero value is ready to use.
type Store struct {
	mu        sync.RWMutex
	sessions  map[string]Session
	watchers  map[string]map[int]chan Event
	nextWatch int

	archive ReportArchiver
}

// Option configures a [Store].
type Option func(*Store)

// WithArchive installs an archiver that is handed every completed report.
// Archive failures are logged and never fail the session transition.
func WithArchive(a ReportArchiver) Option {
	return func(s *Store) { s.archive = a }
}

// NewStore returns an initialised [Store].
func NewStore(opts ...Option) *Store {
	s := &Store{
		sessions: make(map[string]Session),
		watchers: make(map[string]map[int]chan Event),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Create registers a new pending session for the given task and returns it.
func (s *Store) Create(taskID string) (Session, error) {
	id, err := generateID()
	if err != nil {
		return Session{}, fmt.Errorf("session: generate id: %w", err)
	}

	now := time.Now().UTC()
	sess := Session{
		ID:        id,
		TaskID:    taskID,
		State:     StatePending,
		CreatedAt: now,
		UpdatedAt: now,
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.sessions == nil {
		s.sessions = make(map[string]Session)
	}
	s.sessions[id] = sess
	return sess, nil
}

// Get retrieves a session by ID.
// Returns [ErrNotFound] when no session with that ID exists.
func (s *Store) Get(id string) (Session, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	sess, ok := s.sessions[id]
	if !ok {
		return Session{}, ErrNotFound
	}
	return sess, nil
}

// Start moves a pending session to processing.
func (s *Store) Start(id string) error {
	_, err := s.transition(id, StateProcessing, nil)
	return err
}

// SetProgress updates the stage and fraction of a processing session and
// notifies watchers. Within a stage the fraction never moves backwards;
// out-of-range fractions are clamped to [0, 1].
func (s *Store) SetProgress(id, stage string, fraction float64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess, ok := s.sessions[id]
	if !ok {
		return ErrNotFound
	}
	if sess.State != StateProcessing {
		return fmt.Errorf("session %q: progress on %s session: %w", id, sess.State, ErrInvalidTransition)
	}

	if fraction < 0 {
		fraction = 0
	}
	if fraction > 1 {
		fraction = 1
	}
	if stage == sess.Stage && fraction < sess.Fraction {
		fraction = sess.Fraction
	}

	sess.Stage = stage
	sess.Fraction = fraction
	sess.UpdatedAt = time.Now().UTC()
	s.sessions[id] = sess
	s.notifyLocked(id, sess)
	return nil
}

// AttachTurns stores the conversation log for an interactive session.
// The slice is copied. Turns cannot be attached once the session is finished.
func (s *Store) AttachTurns(id string, turns []types.ConversationTurn) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess, ok := s.sessions[id]
	if !ok {
		return ErrNotFound
	}
	if sess.State.Terminal() {
		return fmt.Errorf("session %q: attach turns on %s session: %w", id, sess.State, ErrInvalidTransition)
	}

	sess.Turns = slices.Clone(turns)
	sess.UpdatedAt = time.Now().UTC()
	s.sessions[id] = sess
	return nil
}

// Complete moves a processing session to complete with the given report and
// hands the report to the archiver, if one is configured.
func (s *Store) Complete(id string, report *types.FeedbackReport) error {
	sess, err := s.transition(id, StateComplete, func(sess *Session) {
		sess.Report = report
		sess.Fraction = 1
	})
	if err != nil {
		return err
	}

	if s.archive != nil {
		if err := s.archive.SaveReport(sess.ID, sess.TaskID, report); err != nil {
			slog.Warn("session: report archive failed",
				"session_id", sess.ID,
				"error", err,
			)
		}
	}
	return nil
}

// Fail moves a pending or processing session to failed with the given reason.
func (s *Store) Fail(id, reason string) error {
	_, err := s.transition(id, StateFailed, func(sess *Session) {
		sess.Error = reason
	})
	return err
}

// Discard moves a pending or processing session to discarded. Used when a
// run is cancelled; any partial output is dropped with it.
func (s *Store) Discard(id string) error {
	_, err := s.transition(id, StateDiscarded, nil)
	return err
}

// Watch subscribes to a session's progress. The returned channel first
// carries the session's current state, then every subsequent change. It is
// closed once the session reaches a terminal state; consumers should fetch
// the final record with [Store.Get] after the close. The cancel function
// releases the subscription and is safe to call multiple times.
//
// Watchers that stop draining the channel lose intermediate progress events
// rather than blocking the pipeline.
func (s *Store) Watch(id string) (<-chan Event, func(), error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess, ok := s.sessions[id]
	if !ok {
		return nil, nil, ErrNotFound
	}

	ch := make(chan Event, watchBuffer)
	ch <- Event{State: sess.State, Stage: sess.Stage, Fraction: sess.Fraction}

	if sess.State.Terminal() {
		close(ch)
		return ch, func() {}, nil
	}

	if s.watchers == nil {
		s.watchers = make(map[string]map[int]chan Event)
	}
	if s.watchers[id] == nil {
		s.watchers[id] = make(map[int]chan Event)
	}
	handle := s.nextWatch
	s.nextWatch++
	s.watchers[id][handle] = ch

	cancel := func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		if chans, ok := s.watchers[id]; ok {
			delete(chans, handle)
			if len(chans) == 0 {
				delete(s.watchers, id)
			}
		}
	}
	return ch, cancel, nil
}

// ─────────────────────────────────────────────────────────────────────────────
// Helpers
// ─────────────────────────────────────────────────────────────────────────────

// transition moves a session to state to, applying mutate (if non-nil) while
// the lock is held, and notifies watchers. Returns the updated record.
func (s *Store) transition(id string, to State, mutate func(*Session)) (Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess, ok := s.sessions[id]
	if !ok {
		return Session{}, ErrNotFound
	}
	if !canTransition(sess.State, to) {
		return Session{}, fmt.Errorf("session %q: cannot move from %s to %s: %w", id, sess.State, to, ErrInvalidTransition)
	}

	sess.State = to
	if mutate != nil {
		mutate(&sess)
	}
	sess.UpdatedAt = time.Now().UTC()
	s.sessions[id] = sess
	s.notifyLocked(id, sess)
	return sess, nil
}

// canTransition reports whether the state machine allows from → to.
func canTransition(from, to State) bool {
	switch from {
	case StatePending:
		return to == StateProcessing || to == StateFailed || to == StateDiscarded
	case StateProcessing:
		return to == StateComplete || to == StateFailed || to == StateDiscarded
	}
	return false
}

// notifyLocked fans the session's current state out to its watchers and, on
// a terminal state, closes and removes them. Must be called with s.mu held.
func (s *Store) notifyLocked(id string, sess Session) {
	ev := Event{State: sess.State, Stage: sess.Stage, Fraction: sess.Fraction}
	for _, ch := range s.watchers[id] {
		select {
		case ch <- ev:
		default:
			// Slow consumer; drop rather than block the pipeline.
		}
	}
	if sess.State.Terminal() {
		for _, ch := range s.watchers[id] {
			close(ch)
		}
		delete(s.watchers, id)
	}
}

// generateID produces a random 16-byte hex string using crypto/rand.
// The resulting string is 32 hex characters and is statistically unique.
func generateID() (string, error) {
	buf := make([]byte, 16)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return hex.EncodeToString(buf), nil
}
