// Package task manages the catalog of practice tasks for bleai.
//
// A task describes one exercise a user can record an attempt against: the
// instructions shown to the user, the rubric the analysis backend grades
// with, and the vocabulary terms the transcript corrector protects.
// Interactive tasks additionally carry a scenario that configures the
// simulated conversation partner for live practice sessions.
//
// Tasks come from two places:
//   - Authored YAML catalog files ([LoadCatalogFile], [ImportDir])
//   - The HTTP API, which creates them through a [Store]
//
// Two [Store] implementations are provided: an in-memory [MemStore] and a
// PostgreSQL-backed [PostgresStore]. The configuration selects one at startup.
// All store operations are safe for concurrent use.
package task

import "time"

// Task is the declarative format for a practice exercise. It doubles as the
// YAML catalog format and the JSON shape served by the HTTP API.
type Task struct {
	// ID is a unique identifier. Auto-generated if empty when added through
	// a store; catalog files must set it explicitly so re-imports stay stable.
	ID string `yaml:"id" json:"id"`

	// Title is the task's display name.
	Title string `yaml:"title" json:"title"`

	// Description is free-text guidance shown to the user before recording.
	Description string `yaml:"description" json:"description"`

	// Rubric is the grading guide handed to the analysis backend verbatim.
	Rubric string `yaml:"rubric" json:"rubric"`

	// Vocabulary lists domain terms (product names, people, jargon) the
	// transcript corrector protects against mis-transcription.
	Vocabulary []string `yaml:"vocabulary,omitempty" json:"vocabulary,omitempty"`

	// Interactive marks tasks practiced live against a simulated partner
	// instead of by uploading a recording.
	Interactive bool `yaml:"interactive,omitempty" json:"interactive,omitempty"`

	// Scenario configures the simulated partner. Required when Interactive
	// is set; ignored otherwise.
	Scenario Scenario `yaml:"scenario,omitempty" json:"scenario"`

	// CreatedAt and UpdatedAt are maintained by the store.
	CreatedAt time.Time `yaml:"-" json:"created_at"`
	UpdatedAt time.Time `yaml:"-" json:"updated_at"`
}

// Scenario describes the simulated conversation partner for an interactive
// task. Its fields map onto the realtime voice session configuration.
type Scenario struct {
	// Prompt is the system instruction given to the voice agent playing the
	// partner (e.g. "You are a skeptical CFO evaluating a software pitch.").
	Prompt string `yaml:"prompt" json:"prompt"`

	// Voice selects the agent voice preset. Provider-specific identifier;
	// empty means the provider default.
	Voice string `yaml:"voice,omitempty" json:"voice,omitempty"`
}
