// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package types

import "time"

// StageRecord is the open-ended key/value data for a single stage. Each
// stage has its own permitted key set, enforced by the stage data guard;
// absence of a key (not a null value) represents "unset".
type StageRecord map[string]any

// DigestEntry is one entry in a session's append-only decision digest.
// Entries are appended on stage approval and flagged superseded on rewind,
// never deleted.
type DigestEntry struct {
	// Stage is the stage whose approval produced this entry.
	Stage StageID `json:"stage" yaml:"stage"`

	// Decision is the approved stage's ringkasan, capped at 200 characters.
	Decision string `json:"decision" yaml:"decision"`

	// Timestamp records when the stage was approved.
	Timestamp time.Time `json:"timestamp" yaml:"timestamp"`

	// Superseded is set when a later rewind invalidated this entry's stage.
	Superseded bool `json:"superseded,omitempty" yaml:"superseded,omitempty"`
}

// PaperSession is the full state of one authored document. One session
// exists per conversation; every workflow operation reads the whole
// record, computes a new one, and writes it back as a unit.
type PaperSession struct {
	// ID is a ULID assigned at creation.
	ID string `json:"id" yaml:"id"`

	// OwnerID identifies the authenticated owner. Ownership checks are the
	// calling collaborator's responsibility.
	OwnerID string `json:"owner_id" yaml:"owner_id"`

	// ConversationID links the session to the chat conversation that
	// created it. Session creation is idempotent per conversation.
	ConversationID string `json:"conversation_id" yaml:"conversation_id"`

	// CurrentStage is the only stage mutable through edit operations.
	CurrentStage StageID `json:"current_stage" yaml:"current_stage"`

	// StageStatus is the workflow status of CurrentStage.
	StageStatus StageStatus `json:"stage_status" yaml:"stage_status"`

	// StageData maps stage id to that stage's sanitized record.
	StageData map[StageID]StageRecord `json:"stage_data" yaml:"stage_data"`

	// PaperMemoryDigest is the append-only log of approved stage decisions,
	// used as condensed memory of prior work.
	PaperMemoryDigest []DigestEntry `json:"paper_memory_digest" yaml:"paper_memory_digest"`

	// IsDirty signals that the current stage's validated content may be
	// stale. Cleared on approval.
	IsDirty bool `json:"is_dirty" yaml:"is_dirty"`

	// PaperTitle is the canonical title, copied from the judul stage's
	// selected title on approval.
	PaperTitle string `json:"paper_title,omitempty" yaml:"paper_title,omitempty"`

	// WorkingTitle is the provisional title shown while drafting.
	WorkingTitle string `json:"working_title,omitempty" yaml:"working_title,omitempty"`

	// InitialIdea is the free-text idea supplied at session creation.
	InitialIdea string `json:"initial_idea,omitempty" yaml:"initial_idea,omitempty"`

	// Archived hides the session from default listings without deleting it.
	Archived bool `json:"archived,omitempty" yaml:"archived,omitempty"`

	// CreatedAt and UpdatedAt track the session lifecycle.
	CreatedAt time.Time `json:"created_at" yaml:"created_at"`
	UpdatedAt time.Time `json:"updated_at" yaml:"updated_at"`

	// CompletedAt is set when the final stage is approved.
	CompletedAt *time.Time `json:"completed_at,omitempty" yaml:"completed_at,omitempty"`
}

// RewindRecord is the audit entry appended for every successful rewind.
// Records are never mutated.
type RewindRecord struct {
	// ID is a ULID assigned by the store.
	ID string `json:"id" yaml:"id"`

	// SessionID is the rewound session.
	SessionID string `json:"session_id" yaml:"session_id"`

	// FromStage is the stage the session was on before the rewind.
	FromStage StageID `json:"from_stage" yaml:"from_stage"`

	// ToStage is the rewind target, which becomes the new current stage.
	ToStage StageID `json:"to_stage" yaml:"to_stage"`

	// InvalidatedStages lists every stage from ToStage (inclusive) up to
	// but excluding FromStage, in catalog order.
	InvalidatedStages []StageID `json:"invalidated_stages" yaml:"invalidated_stages"`

	// InvalidatedArtifactIDs lists the artifacts invalidated by this
	// rewind. Invalidation is best-effort; IDs appear here even when an
	// individual invalidation write failed.
	InvalidatedArtifactIDs []string `json:"invalidated_artifact_ids,omitempty" yaml:"invalidated_artifact_ids,omitempty"`

	// Timestamp records when the rewind was applied.
	Timestamp time.Time `json:"timestamp" yaml:"timestamp"`
}

// SchemaAlert records a stage-data key that was stripped by the guard
// because it is not in the stage's whitelist. Alerts are observability
// for future schema promotion, not failures.
type SchemaAlert struct {
	ID        string    `json:"id" yaml:"id"`
	SessionID string    `json:"session_id" yaml:"session_id"`
	Stage     StageID   `json:"stage" yaml:"stage"`
	Key       string    `json:"key" yaml:"key"`
	CreatedAt time.Time `json:"created_at" yaml:"created_at"`
}

// Artifact is a generated document tied to a stage through that stage's
// artifactId field. The engine marks artifacts invalid on rewind; the
// documents themselves live in an external store.
type Artifact struct {
	// ID is the external artifact identifier as recorded in stage data.
	ID string `json:"id" yaml:"id"`

	// SessionID and Stage locate the stage that produced the artifact.
	SessionID string  `json:"session_id" yaml:"session_id"`
	Stage     StageID `json:"stage" yaml:"stage"`

	// InvalidatedAt is set when a rewind invalidated the producing stage.
	InvalidatedAt *time.Time `json:"invalidated_at,omitempty" yaml:"invalidated_at,omitempty"`

	// InvalidatedByRewindToStage is the rewind target that caused the
	// invalidation.
	InvalidatedByRewindToStage StageID `json:"invalidated_by_rewind_to_stage,omitempty" yaml:"invalidated_by_rewind_to_stage,omitempty"`

	CreatedAt time.Time `json:"created_at" yaml:"created_at"`
}
