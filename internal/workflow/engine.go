// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package workflow is the stage workflow engine: the state machine over
// (currentStage, stageStatus) that owns session state and emits
// invalidation side-effects to the outline tracker, the bibliography
// inputs, and external artifact records. Every operation reads the full
// session, computes the next state, and writes it back as one unit; the
// store serializes writers per session.
package workflow

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/pdiddy/paper-engine/internal/outline"
	"github.com/pdiddy/paper-engine/internal/stage"
	"github.com/pdiddy/paper-engine/internal/store"
	"github.com/pdiddy/paper-engine/pkg/types"
)

// Precondition errors. None of these leave any session mutation behind.
var (
	ErrUnknownStage       = errors.New("unknown stage")
	ErrWrongStage         = errors.New("stage is not the session's current stage")
	ErrWrongStatus        = errors.New("operation not allowed in current stage status")
	ErrPendingValidation  = errors.New("stage is pending validation and cannot be edited")
	ErrSessionCompleted   = errors.New("session is completed")
	ErrMissingRingkasan   = errors.New("stage has no ringkasan")
	ErrRewindTooFar       = errors.New("rewind target out of range")
	ErrRewindNotValidated = errors.New("rewind target was never validated")
	ErrBudgetExceeded     = errors.New("content budget exceeded")
	ErrEmptyBibliography  = errors.New("no references to compile")
)

// maxRewindDistance bounds backward navigation to two catalog positions.
const maxRewindDistance = 2

// digestDecisionMax caps the decision text copied into the digest.
const digestDecisionMax = 200

// Engine applies workflow operations to sessions in the store.
type Engine struct {
	store    *store.Store
	log      *zap.Logger
	cfg      types.WorkflowConfig
	guardCfg types.GuardConfig

	// now is swappable for tests.
	now func() time.Time
}

// NewEngine builds an engine over the store. A nil logger disables
// structured logging.
func NewEngine(st *store.Store, log *zap.Logger, cfg types.EngineConfig) *Engine {
	if log == nil {
		log = zap.NewNop()
	}
	return &Engine{
		store:    st,
		log:      log,
		cfg:      cfg.Workflow.WithDefaults(),
		guardCfg: cfg.Guard.WithDefaults(),
		now:      time.Now,
	}
}

// CreateSession creates (or returns) the session for a conversation.
func (e *Engine) CreateSession(ctx context.Context, ownerID, conversationID, initialIdea string) (*types.PaperSession, error) {
	return e.store.CreateSession(ctx, ownerID, conversationID, initialIdea)
}

// UpdateResult reports a stage data write.
type UpdateResult struct {
	// Warnings lists soft violations from the guard plus the missing-
	// ringkasan reminder. The write itself succeeded.
	Warnings []string
}

// UpdateStageData sanitizes and merges data into the current stage's
// record. Only the current stage is editable, and only while it is not
// pending validation. The merge is shallow; later fields win.
func (e *Engine) UpdateStageData(ctx context.Context, sessionID string, stg types.StageID, data map[string]any) (UpdateResult, error) {
	var res UpdateResult

	sess, err := e.store.GetSession(ctx, sessionID)
	if err != nil {
		return res, err
	}
	if err := e.editable(sess, stg); err != nil {
		return res, err
	}

	guarded := stage.Sanitize(stg, data, e.guardCfg)
	res.Warnings = guarded.Warnings

	rec := sess.StageData[stg]
	if rec == nil {
		rec = types.StageRecord{}
	}
	for k, v := range guarded.Data {
		rec[k] = v
	}
	sess.StageData[stg] = rec
	sess.UpdatedAt = e.now()

	if ringkasanOf(rec) == "" {
		res.Warnings = append(res.Warnings,
			"stage has no ringkasan yet: a decision summary is required before approval")
	}

	var alerts []types.SchemaAlert
	for _, key := range guarded.StrippedKeys {
		e.log.Info("stage data key stripped",
			zap.String("session_id", sess.ID),
			zap.String("stage", string(stg)),
			zap.String("key", key))
		alerts = append(alerts, types.SchemaAlert{
			SessionID: sess.ID,
			Stage:     stg,
			Key:       key,
			CreatedAt: e.now(),
		})
	}

	if err := e.store.SaveSessionWithAlerts(ctx, sess, alerts); err != nil {
		return res, err
	}

	// Register any artifact the collaborator attached to this stage so a
	// later rewind can invalidate it.
	if id, _ := rec["artifactId"].(string); id != "" {
		if err := e.store.RegisterArtifact(ctx, sess.ID, stg, id); err != nil {
			e.log.Warn("artifact registration failed",
				zap.String("session_id", sess.ID),
				zap.String("artifact_id", id),
				zap.Error(err))
		}
	}
	return res, nil
}

// SubmitForValidation moves the current stage from drafting (or revision)
// to pending_validation. The stage must carry a non-blank ringkasan.
func (e *Engine) SubmitForValidation(ctx context.Context, sessionID string) error {
	sess, err := e.store.GetSession(ctx, sessionID)
	if err != nil {
		return err
	}
	if sess.CurrentStage == types.StageCompleted {
		return ErrSessionCompleted
	}
	if sess.StageStatus == types.StatusPendingValidation {
		return fmt.Errorf("%w: already pending validation", ErrWrongStatus)
	}
	if ringkasanOf(sess.StageData[sess.CurrentStage]) == "" {
		return fmt.Errorf("%w: stage %s needs a ringkasan before submission", ErrMissingRingkasan, sess.CurrentStage)
	}

	sess.StageStatus = types.StatusPendingValidation
	sess.UpdatedAt = e.now()
	return e.store.PutSession(ctx, sess)
}

// ApproveStage validates the pending stage, propagates outline
// completion, appends the digest entry, and advances the session to the
// next stage in catalog order (or to completed).
func (e *Engine) ApproveStage(ctx context.Context, sessionID string) error {
	sess, err := e.store.GetSession(ctx, sessionID)
	if err != nil {
		return err
	}
	if sess.CurrentStage == types.StageCompleted {
		return ErrSessionCompleted
	}
	if sess.StageStatus != types.StatusPendingValidation {
		return fmt.Errorf("%w: stage %s is %s, not pending validation", ErrWrongStatus, sess.CurrentStage, sess.StageStatus)
	}

	cur := sess.CurrentStage
	rec := sess.StageData[cur]
	ringkasan := ringkasanOf(rec)
	if ringkasan == "" {
		return fmt.Errorf("%w: stage %s cannot be approved", ErrMissingRingkasan, cur)
	}

	if err := e.checkContentBudget(sess); err != nil {
		return err
	}

	now := e.now()
	if rec == nil {
		rec = types.StageRecord{}
	}
	rec["validatedAt"] = now.UTC().Format(time.RFC3339)
	delete(rec, "invalidatedByRewind")
	sess.StageData[cur] = rec

	sections, err := e.store.OutlineSections(ctx, sess.ID)
	if err != nil {
		return err
	}
	if cur == types.StageOutline {
		sections = seedSections(sections, rec)
	}
	propagated := outline.Propagate(sections, cur, now)

	sess.PaperMemoryDigest = append(sess.PaperMemoryDigest, types.DigestEntry{
		Stage:     cur,
		Decision:  truncateRunes(ringkasan, digestDecisionMax),
		Timestamp: now,
	})

	next := stage.Next(cur)
	if next == types.StageCompleted {
		sess.CurrentStage = types.StageCompleted
		sess.StageStatus = types.StatusApproved
		t := now
		sess.CompletedAt = &t
	} else {
		sess.CurrentStage = next
		sess.StageStatus = types.StatusDrafting
	}
	sess.IsDirty = false
	sess.UpdatedAt = now

	if cur == types.StageJudul {
		if title, _ := rec["judulTerpilih"].(string); strings.TrimSpace(title) != "" {
			sess.PaperTitle = strings.TrimSpace(title)
			sess.WorkingTitle = sess.PaperTitle
		}
	}

	if err := e.store.SaveSessionWithSections(ctx, sess, propagated.Sections); err != nil {
		return err
	}

	e.log.Info("stage approved",
		zap.String("session_id", sess.ID),
		zap.String("stage", string(cur)),
		zap.String("next_stage", string(sess.CurrentStage)),
		zap.Int("outline_sections_checked", propagated.Changed),
		zap.Int("outline_percent", propagated.Percent))
	return nil
}

// RequestRevision moves the current stage into revision from any status
// and increments its revision count. Stage data is kept.
func (e *Engine) RequestRevision(ctx context.Context, sessionID, feedback string) error {
	sess, err := e.store.GetSession(ctx, sessionID)
	if err != nil {
		return err
	}
	if sess.CurrentStage == types.StageCompleted {
		return ErrSessionCompleted
	}

	rec := sess.StageData[sess.CurrentStage]
	if rec == nil {
		rec = types.StageRecord{}
	}
	rec["revisionCount"] = intField(rec["revisionCount"]) + 1
	if feedback = strings.TrimSpace(feedback); feedback != "" {
		rec["catatanRevisi"] = feedback
	}
	sess.StageData[sess.CurrentStage] = rec

	sess.StageStatus = types.StatusRevision
	sess.UpdatedAt = e.now()
	return e.store.PutSession(ctx, sess)
}

// MarkStageAsDirty flags that the current stage's validated content may
// be stale. Idempotent; no status transition.
func (e *Engine) MarkStageAsDirty(ctx context.Context, sessionID string) error {
	sess, err := e.store.GetSession(ctx, sessionID)
	if err != nil {
		return err
	}
	if sess.IsDirty {
		return nil
	}
	sess.IsDirty = true
	sess.UpdatedAt = e.now()
	return e.store.PutSession(ctx, sess)
}

// CheckOutlineSection records a user's explicit status on one section.
// User-checked sections are immune to automatic propagation and reset.
func (e *Engine) CheckOutlineSection(ctx context.Context, sessionID, sectionID string, status types.SectionStatus) error {
	sections, err := e.store.OutlineSections(ctx, sessionID)
	if err != nil {
		return err
	}
	now := e.now()
	for _, sec := range sections {
		if sec.ID != sectionID {
			continue
		}
		sec.Status = status
		sec.CheckedBy = types.CheckedUser
		sec.CheckedAt = &now
		return e.store.UpsertOutlineSection(ctx, sec)
	}
	return fmt.Errorf("outline section %q not found", sectionID)
}

// editable enforces the stage-edit invariant: only the current stage is
// writable, and not while pending validation.
func (e *Engine) editable(sess *types.PaperSession, stg types.StageID) error {
	if !stage.IsValid(stg) {
		return fmt.Errorf("%w: %s", ErrUnknownStage, stg)
	}
	if sess.CurrentStage == types.StageCompleted {
		return ErrSessionCompleted
	}
	if stg != sess.CurrentStage {
		return fmt.Errorf("%w: editing %s while on %s", ErrWrongStage, stg, sess.CurrentStage)
	}
	if sess.StageStatus == types.StatusPendingValidation {
		return ErrPendingValidation
	}
	return nil
}

// checkContentBudget enforces the soft budget: when the outline stage
// recorded a totalWordCount, the word estimate from every stage's
// ringkasan may not exceed the budget times the tolerance.
func (e *Engine) checkContentBudget(sess *types.PaperSession) error {
	if !e.cfg.EnforceBudget {
		return nil
	}
	budget := numberField(sess.StageData[types.StageOutline]["totalWordCount"])
	if budget <= 0 {
		return nil
	}

	chars := 0
	for _, rec := range sess.StageData {
		chars += len([]rune(ringkasanOf(rec)))
	}
	estimate := float64(chars) / float64(e.cfg.CharsPerWord)
	limit := budget * e.cfg.BudgetTolerance
	if estimate > limit {
		return fmt.Errorf("%w: estimated %.0f words against a budget of %.0f (%.0f%% tolerance); trim stage summaries and retry",
			ErrBudgetExceeded, estimate, budget, (e.cfg.BudgetTolerance-1)*100+100)
	}
	return nil
}

// seedSections builds outline nodes from the approved outline stage's
// kerangka entries, keeping any sections that already exist. Each entry
// names a content stage (bab) and optional subsections (subbab).
func seedSections(existing []types.OutlineSection, rec types.StageRecord) []types.OutlineSection {
	have := make(map[string]bool, len(existing))
	for _, sec := range existing {
		have[sec.ID] = true
	}
	sections := existing

	items, _ := rec["kerangka"].([]any)
	for _, item := range items {
		entry, ok := item.(map[string]any)
		if !ok {
			continue
		}
		bab, _ := entry["bab"].(string)
		if bab == "" || !stage.IsValid(types.StageID(bab)) {
			continue
		}
		title, _ := entry["judul"].(string)
		if title == "" {
			title = bab
		}
		if !have[bab] {
			sections = append(sections, types.OutlineSection{ID: bab, Title: title})
			have[bab] = true
		}
		subbab, _ := entry["subbab"].([]any)
		for i, sub := range subbab {
			subTitle, ok := sub.(string)
			if !ok {
				continue
			}
			id := fmt.Sprintf("%s-%d", bab, i+1)
			if have[id] {
				continue
			}
			sections = append(sections, types.OutlineSection{ID: id, ParentID: bab, Title: subTitle})
			have[id] = true
		}
	}
	return sections
}

// ringkasanOf returns the stage's trimmed decision summary, or empty.
func ringkasanOf(rec types.StageRecord) string {
	if rec == nil {
		return ""
	}
	s, _ := rec["ringkasan"].(string)
	return strings.TrimSpace(s)
}

// validatedAtOf returns the stage's validation timestamp string, or empty.
func validatedAtOf(rec types.StageRecord) string {
	if rec == nil {
		return ""
	}
	s, _ := rec["validatedAt"].(string)
	return s
}

// intField reads a numeric stage-data field that may have round-tripped
// through JSON as a float, an int, or a string.
func intField(v any) int {
	switch n := v.(type) {
	case int:
		return n
	case int64:
		return int(n)
	case float64:
		return int(n)
	case string:
		i, _ := strconv.Atoi(n)
		return i
	default:
		return 0
	}
}

// numberField is intField for fractional values.
func numberField(v any) float64 {
	switch n := v.(type) {
	case int:
		return float64(n)
	case int64:
		return float64(n)
	case float64:
		return n
	case string:
		f, _ := strconv.ParseFloat(n, 64)
		return f
	default:
		return 0
	}
}

// truncateRunes caps s at limit runes.
func truncateRunes(s string, limit int) string {
	runes := []rune(s)
	if len(runes) <= limit {
		return s
	}
	return string(runes[:limit])
}
