// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package workflow

import (
	"context"

	"github.com/pdiddy/paper-engine/internal/outline"
	"github.com/pdiddy/paper-engine/internal/stage"
	"github.com/pdiddy/paper-engine/internal/store"
	"github.com/pdiddy/paper-engine/pkg/types"
)

// GetSession loads a session by id.
func (e *Engine) GetSession(ctx context.Context, sessionID string) (*types.PaperSession, error) {
	return e.store.GetSession(ctx, sessionID)
}

// GetSessionByConversation loads the session tied to a conversation.
func (e *Engine) GetSessionByConversation(ctx context.Context, conversationID string) (*types.PaperSession, error) {
	return e.store.GetSessionByConversation(ctx, conversationID)
}

// ListSessions returns an owner's sessions.
func (e *Engine) ListSessions(ctx context.Context, ownerID string, opts store.ListOptions) ([]*types.PaperSession, error) {
	return e.store.ListSessions(ctx, ownerID, opts)
}

// RewindHistory returns a session's rewind audit trail.
func (e *Engine) RewindHistory(ctx context.Context, sessionID string) ([]types.RewindRecord, error) {
	return e.store.RewindHistory(ctx, sessionID)
}

// OutlineSections returns a session's outline section list.
func (e *Engine) OutlineSections(ctx context.Context, sessionID string) ([]types.OutlineSection, error) {
	return e.store.OutlineSections(ctx, sessionID)
}

// DeleteSession removes a session and all dependent records.
func (e *Engine) DeleteSession(ctx context.Context, sessionID string) error {
	return e.store.DeleteSession(ctx, sessionID)
}

// SchemaAlerts returns the session's stripped-key alert trail.
func (e *Engine) SchemaAlerts(ctx context.Context, sessionID string) ([]types.SchemaAlert, error) {
	return e.store.SchemaAlerts(ctx, sessionID)
}

// StageSummary is one row of a session drill-down.
type StageSummary struct {
	Stage         types.StageID `json:"stage" yaml:"stage"`
	Current       bool          `json:"current,omitempty" yaml:"current,omitempty"`
	Validated     bool          `json:"validated" yaml:"validated"`
	ValidatedAt   string        `json:"validated_at,omitempty" yaml:"validated_at,omitempty"`
	Ringkasan     string        `json:"ringkasan,omitempty" yaml:"ringkasan,omitempty"`
	RevisionCount int           `json:"revision_count,omitempty" yaml:"revision_count,omitempty"`
	ArtifactCount int           `json:"artifact_count,omitempty" yaml:"artifact_count,omitempty"`
}

// Drilldown is the stage-by-stage view of one session.
type Drilldown struct {
	SessionID      string              `json:"session_id" yaml:"session_id"`
	PaperTitle     string              `json:"paper_title,omitempty" yaml:"paper_title,omitempty"`
	WorkingTitle   string              `json:"working_title,omitempty" yaml:"working_title,omitempty"`
	CurrentStage   types.StageID       `json:"current_stage" yaml:"current_stage"`
	StageStatus    types.StageStatus   `json:"stage_status" yaml:"stage_status"`
	IsDirty        bool                `json:"is_dirty,omitempty" yaml:"is_dirty,omitempty"`
	Stages         []StageSummary      `json:"stages" yaml:"stages"`
	Digest         []types.DigestEntry `json:"digest" yaml:"digest"`
	Rewinds        []types.RewindRecord `json:"rewinds,omitempty" yaml:"rewinds,omitempty"`
	Alerts         []types.SchemaAlert  `json:"alerts,omitempty" yaml:"alerts,omitempty"`
	OutlinePercent int                  `json:"outline_percent" yaml:"outline_percent"`
}

// GetDrilldown assembles the per-stage summary, digest, rewind history,
// artifact counts, and outline completeness for one session.
func (e *Engine) GetDrilldown(ctx context.Context, sessionID string) (*Drilldown, error) {
	sess, err := e.store.GetSession(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	rewinds, err := e.store.RewindHistory(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	artifacts, err := e.store.ArtifactCounts(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	sections, err := e.store.OutlineSections(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	alerts, err := e.store.SchemaAlerts(ctx, sessionID)
	if err != nil {
		return nil, err
	}

	d := &Drilldown{
		SessionID:      sess.ID,
		PaperTitle:     sess.PaperTitle,
		WorkingTitle:   sess.WorkingTitle,
		CurrentStage:   sess.CurrentStage,
		StageStatus:    sess.StageStatus,
		IsDirty:        sess.IsDirty,
		Digest:         sess.PaperMemoryDigest,
		Rewinds:        rewinds,
		Alerts:         alerts,
		OutlinePercent: outline.Completeness(sections),
	}

	for _, s := range stage.Catalog {
		rec := sess.StageData[s]
		validatedAt := validatedAtOf(rec)
		d.Stages = append(d.Stages, StageSummary{
			Stage:         s,
			Current:       s == sess.CurrentStage,
			Validated:     stageValid(rec),
			ValidatedAt:   validatedAt,
			Ringkasan:     ringkasanOf(rec),
			RevisionCount: intField(recValue(rec, "revisionCount")),
			ArtifactCount: artifacts[s],
		})
	}
	return d, nil
}

func recValue(rec types.StageRecord, key string) any {
	if rec == nil {
		return nil
	}
	return rec[key]
}
