// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package workflow

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/pdiddy/paper-engine/internal/outline"
	"github.com/pdiddy/paper-engine/internal/stage"
	"github.com/pdiddy/paper-engine/pkg/types"
)

// RewindToStage moves the session back to a previously validated stage,
// cascading invalidation forward: every stage from the target (inclusive)
// up to but excluding the current stage loses its validatedAt, its digest
// entries are flagged superseded, its auto-checked outline sections are
// reset, and its artifacts are invalidated best-effort. The target must
// be at most two catalog positions back and must itself have been
// validated.
func (e *Engine) RewindToStage(ctx context.Context, sessionID string, target types.StageID) (types.RewindRecord, error) {
	var rec types.RewindRecord

	sess, err := e.store.GetSession(ctx, sessionID)
	if err != nil {
		return rec, err
	}
	if sess.CurrentStage == types.StageCompleted {
		return rec, ErrSessionCompleted
	}

	targetIdx := stage.Index(target)
	if targetIdx < 0 {
		return rec, fmt.Errorf("%w: %s", ErrUnknownStage, target)
	}
	curIdx := stage.Index(sess.CurrentStage)
	distance := curIdx - targetIdx
	if distance <= 0 {
		return rec, fmt.Errorf("%w: %s is not before %s", ErrRewindTooFar, target, sess.CurrentStage)
	}
	if distance > maxRewindDistance {
		return rec, fmt.Errorf("%w: %s is %d stages behind %s, limit is %d",
			ErrRewindTooFar, target, distance, sess.CurrentStage, maxRewindDistance)
	}
	if validatedAtOf(sess.StageData[target]) == "" {
		return rec, fmt.Errorf("%w: %s", ErrRewindNotValidated, target)
	}

	now := e.now()

	// Stages in [target, current) are invalidated. The target itself
	// keeps its validatedAt: it is proven ground the session returns to,
	// though its digest entries, outline checks, and artifacts still
	// reset with the rest.
	invalidated := make([]types.StageID, 0, distance)
	invalidatedSet := make(map[types.StageID]bool, distance)
	for i := targetIdx; i < curIdx; i++ {
		s := stage.Catalog[i]
		invalidated = append(invalidated, s)
		invalidatedSet[s] = true
		if data := sess.StageData[s]; data != nil {
			data["invalidatedByRewind"] = true
			if s != target {
				delete(data, "validatedAt")
			}
		}
	}

	for i := range sess.PaperMemoryDigest {
		if invalidatedSet[sess.PaperMemoryDigest[i].Stage] {
			sess.PaperMemoryDigest[i].Superseded = true
		}
	}

	sections, err := e.store.OutlineSections(ctx, sess.ID)
	if err != nil {
		return rec, err
	}
	resetRes := outline.Reset(sections, invalidated)

	// Artifact invalidation is best-effort and not atomic with the
	// session transition: one failed write is logged and skipped, the
	// rest proceed.
	var artifactIDs []string
	for _, s := range invalidated {
		id, _ := sess.StageData[s]["artifactId"].(string)
		if id == "" {
			continue
		}
		artifactIDs = append(artifactIDs, id)
		if err := e.store.InvalidateArtifact(ctx, id, target, now); err != nil {
			e.log.Warn("artifact invalidation failed",
				zap.String("session_id", sess.ID),
				zap.String("artifact_id", id),
				zap.String("stage", string(s)),
				zap.Error(err))
		}
	}

	sess.CurrentStage = target
	sess.StageStatus = types.StatusDrafting
	sess.UpdatedAt = now

	rec = types.RewindRecord{
		SessionID:              sess.ID,
		FromStage:              stage.Catalog[curIdx],
		ToStage:                target,
		InvalidatedStages:      invalidated,
		InvalidatedArtifactIDs: artifactIDs,
		Timestamp:              now,
	}
	rec, err = e.store.SaveSessionWithRewind(ctx, sess, resetRes.Sections, rec)
	if err != nil {
		return rec, err
	}

	e.log.Info("session rewound",
		zap.String("session_id", sess.ID),
		zap.String("from", string(rec.FromStage)),
		zap.String("to", string(rec.ToStage)),
		zap.Int("invalidated_stages", len(invalidated)),
		zap.Int("outline_sections_reset", resetRes.Changed))
	return rec, nil
}
