// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package workflow

import (
	"context"
	"errors"
	"strings"
	"testing"

	"go.uber.org/zap"

	"github.com/pdiddy/paper-engine/internal/stage"
	"github.com/pdiddy/paper-engine/internal/store"
	"github.com/pdiddy/paper-engine/pkg/types"
)

func newTestEngine(t *testing.T) *Engine {
	t.Helper()
	st, err := store.NewStore(types.StoreConfig{DataDir: t.TempDir()})
	if err != nil {
		t.Fatalf("NewStore: %v", err)
	}
	t.Cleanup(func() { st.Close() })
	return NewEngine(st, zap.NewNop(), types.EngineConfig{})
}

func newTestSession(t *testing.T, e *Engine) *types.PaperSession {
	t.Helper()
	sess, err := e.CreateSession(context.Background(), "owner-1", "conv-"+t.Name(), "banjir rob pesisir")
	if err != nil {
		t.Fatalf("CreateSession: %v", err)
	}
	return sess
}

// approveCurrent drives the current stage through draft, submit, and
// approval with a minimal summary.
func approveCurrent(t *testing.T, e *Engine, sessionID string) {
	t.Helper()
	ctx := context.Background()
	sess, err := e.GetSession(ctx, sessionID)
	if err != nil {
		t.Fatalf("GetSession: %v", err)
	}
	if _, err := e.UpdateStageData(ctx, sessionID, sess.CurrentStage, map[string]any{
		"ringkasan": "keputusan tahap " + string(sess.CurrentStage),
	}); err != nil {
		t.Fatalf("UpdateStageData(%s): %v", sess.CurrentStage, err)
	}
	if err := e.SubmitForValidation(ctx, sessionID); err != nil {
		t.Fatalf("SubmitForValidation(%s): %v", sess.CurrentStage, err)
	}
	if err := e.ApproveStage(ctx, sessionID); err != nil {
		t.Fatalf("ApproveStage(%s): %v", sess.CurrentStage, err)
	}
}

func TestCreateSessionIdempotent(t *testing.T) {
	e := newTestEngine(t)
	ctx := context.Background()

	first, err := e.CreateSession(ctx, "owner-1", "conv-same", "ide awal")
	if err != nil {
		t.Fatalf("CreateSession: %v", err)
	}
	second, err := e.CreateSession(ctx, "owner-1", "conv-same", "ide lain")
	if err != nil {
		t.Fatalf("CreateSession (repeat): %v", err)
	}

	if first.ID != second.ID {
		t.Errorf("repeat create returned a new session: %s vs %s", first.ID, second.ID)
	}
	if second.InitialIdea != "ide awal" {
		t.Errorf("InitialIdea = %q, want the original idea kept", second.InitialIdea)
	}
	if first.CurrentStage != types.StageGagasan || first.StageStatus != types.StatusDrafting {
		t.Errorf("new session starts at %s/%s, want gagasan/drafting", first.CurrentStage, first.StageStatus)
	}
}

func TestUpdateStageDataStripsUnknownKeys(t *testing.T) {
	e := newTestEngine(t)
	sess := newTestSession(t, e)
	ctx := context.Background()

	res, err := e.UpdateStageData(ctx, sess.ID, types.StageGagasan, map[string]any{
		"ringkasan": "ide banjir rob",
		"bogusKey":  "should vanish",
	})
	if err != nil {
		t.Fatalf("UpdateStageData: %v", err)
	}

	found := false
	for _, w := range res.Warnings {
		if strings.Contains(w, "bogusKey") {
			found = true
		}
	}
	if !found {
		t.Errorf("no warning for stripped key, got %v", res.Warnings)
	}

	got, err := e.GetSession(ctx, sess.ID)
	if err != nil {
		t.Fatalf("GetSession: %v", err)
	}
	rec := got.StageData[types.StageGagasan]
	if _, ok := rec["bogusKey"]; ok {
		t.Error("stripped key was persisted")
	}
	if rec["ringkasan"] != "ide banjir rob" {
		t.Errorf("ringkasan = %v, want persisted value", rec["ringkasan"])
	}

	// The strip leaves an alert behind for observability.
	alerts, err := e.SchemaAlerts(ctx, sess.ID)
	if err != nil {
		t.Fatalf("SchemaAlerts: %v", err)
	}
	if len(alerts) != 1 || alerts[0].Key != "bogusKey" {
		t.Errorf("alerts = %+v, want a single bogusKey alert", alerts)
	}
}

func TestUpdateStageDataWrongStage(t *testing.T) {
	e := newTestEngine(t)
	sess := newTestSession(t, e)

	_, err := e.UpdateStageData(context.Background(), sess.ID, types.StageMetodologi, map[string]any{
		"ringkasan": "terlalu cepat",
	})
	if !errors.Is(err, ErrWrongStage) {
		t.Errorf("err = %v, want ErrWrongStage", err)
	}
}

func TestSubmitRequiresRingkasan(t *testing.T) {
	e := newTestEngine(t)
	sess := newTestSession(t, e)
	ctx := context.Background()

	err := e.SubmitForValidation(ctx, sess.ID)
	if !errors.Is(err, ErrMissingRingkasan) {
		t.Fatalf("err = %v, want ErrMissingRingkasan", err)
	}

	got, err := e.GetSession(ctx, sess.ID)
	if err != nil {
		t.Fatalf("GetSession: %v", err)
	}
	if got.StageStatus != types.StatusDrafting {
		t.Errorf("status = %s, rejected submission must not transition", got.StageStatus)
	}
}

func TestApproveAdvancesStage(t *testing.T) {
	e := newTestEngine(t)
	sess := newTestSession(t, e)
	ctx := context.Background()

	approveCurrent(t, e, sess.ID)

	got, err := e.GetSession(ctx, sess.ID)
	if err != nil {
		t.Fatalf("GetSession: %v", err)
	}
	if got.CurrentStage != types.StageTopik {
		t.Errorf("CurrentStage = %s, want topik", got.CurrentStage)
	}
	if got.StageStatus != types.StatusDrafting {
		t.Errorf("StageStatus = %s, want drafting", got.StageStatus)
	}
	if validatedAtOf(got.StageData[types.StageGagasan]) == "" {
		t.Error("approved stage has no validatedAt")
	}
	if len(got.PaperMemoryDigest) != 1 {
		t.Fatalf("digest has %d entries, want 1", len(got.PaperMemoryDigest))
	}
	entry := got.PaperMemoryDigest[0]
	if entry.Stage != types.StageGagasan || entry.Superseded {
		t.Errorf("digest entry = %+v, want live gagasan entry", entry)
	}
}

func TestApproveRequiresPendingValidation(t *testing.T) {
	e := newTestEngine(t)
	sess := newTestSession(t, e)

	err := e.ApproveStage(context.Background(), sess.ID)
	if !errors.Is(err, ErrWrongStatus) {
		t.Errorf("err = %v, want ErrWrongStatus", err)
	}
}

func TestApproveRequiresRingkasan(t *testing.T) {
	e := newTestEngine(t)
	sess := newTestSession(t, e)
	ctx := context.Background()

	// Force a pending record whose summary was lost so the approval-time
	// gate trips independently of the submission check.
	sess.StageStatus = types.StatusPendingValidation
	sess.StageData[sess.CurrentStage] = types.StageRecord{}
	if err := e.store.PutSession(ctx, sess); err != nil {
		t.Fatalf("PutSession: %v", err)
	}

	err := e.ApproveStage(ctx, sess.ID)
	if !errors.Is(err, ErrMissingRingkasan) {
		t.Errorf("err = %v, want ErrMissingRingkasan", err)
	}
	got, err := e.GetSession(ctx, sess.ID)
	if err != nil {
		t.Fatalf("GetSession: %v", err)
	}
	if got.CurrentStage != sess.CurrentStage || got.StageStatus != types.StatusPendingValidation {
		t.Errorf("session changed after failed approval: stage=%s status=%s", got.CurrentStage, got.StageStatus)
	}
}

func TestApproveJudulCopiesTitle(t *testing.T) {
	e := newTestEngine(t)
	sess := newTestSession(t, e)
	ctx := context.Background()

	approveCurrent(t, e, sess.ID) // gagasan
	approveCurrent(t, e, sess.ID) // topik

	if _, err := e.UpdateStageData(ctx, sess.ID, types.StageJudul, map[string]any{
		"ringkasan":     "judul dipilih",
		"judulTerpilih": "Mitigasi Banjir Rob di Pesisir Utara Jawa",
	}); err != nil {
		t.Fatalf("UpdateStageData: %v", err)
	}
	if err := e.SubmitForValidation(ctx, sess.ID); err != nil {
		t.Fatalf("SubmitForValidation: %v", err)
	}
	if err := e.ApproveStage(ctx, sess.ID); err != nil {
		t.Fatalf("ApproveStage: %v", err)
	}

	got, err := e.GetSession(ctx, sess.ID)
	if err != nil {
		t.Fatalf("GetSession: %v", err)
	}
	if got.PaperTitle != "Mitigasi Banjir Rob di Pesisir Utara Jawa" {
		t.Errorf("PaperTitle = %q, want the selected title", got.PaperTitle)
	}
	if got.WorkingTitle != got.PaperTitle {
		t.Errorf("WorkingTitle = %q, want synced with PaperTitle", got.WorkingTitle)
	}
	if got.CurrentStage != types.StageOutline {
		t.Errorf("CurrentStage = %s, want outline", got.CurrentStage)
	}
}

func TestApproveOutlineSeedsSections(t *testing.T) {
	e := newTestEngine(t)
	sess := newTestSession(t, e)
	ctx := context.Background()

	for i := 0; i < 3; i++ { // gagasan, topik, judul
		approveCurrent(t, e, sess.ID)
	}

	if _, err := e.UpdateStageData(ctx, sess.ID, types.StageOutline, map[string]any{
		"ringkasan": "kerangka lima bab",
		"kerangka": []any{
			map[string]any{
				"bab":    "pendahuluan",
				"judul":  "Pendahuluan",
				"subbab": []any{"Latar Belakang", "Rumusan Masalah"},
			},
			map[string]any{"bab": "metodologi", "judul": "Metodologi"},
		},
	}); err != nil {
		t.Fatalf("UpdateStageData: %v", err)
	}
	if err := e.SubmitForValidation(ctx, sess.ID); err != nil {
		t.Fatalf("SubmitForValidation: %v", err)
	}
	if err := e.ApproveStage(ctx, sess.ID); err != nil {
		t.Fatalf("ApproveStage: %v", err)
	}

	sections, err := e.OutlineSections(ctx, sess.ID)
	if err != nil {
		t.Fatalf("OutlineSections: %v", err)
	}
	if len(sections) != 4 {
		t.Fatalf("seeded %d sections, want 4", len(sections))
	}
	byID := map[string]types.OutlineSection{}
	for _, sec := range sections {
		byID[sec.ID] = sec
	}
	if sec, ok := byID["pendahuluan-2"]; !ok || sec.ParentID != "pendahuluan" || sec.Title != "Rumusan Masalah" {
		t.Errorf("pendahuluan-2 = %+v, want child of pendahuluan", sec)
	}
	if _, ok := byID["metodologi"]; !ok {
		t.Error("metodologi top-level section missing")
	}
}

func TestRequestRevisionIncrementsCount(t *testing.T) {
	e := newTestEngine(t)
	sess := newTestSession(t, e)
	ctx := context.Background()

	if _, err := e.UpdateStageData(ctx, sess.ID, types.StageGagasan, map[string]any{
		"ringkasan": "ide pertama",
	}); err != nil {
		t.Fatalf("UpdateStageData: %v", err)
	}
	if err := e.RequestRevision(ctx, sess.ID, "persempit fokusnya"); err != nil {
		t.Fatalf("RequestRevision: %v", err)
	}
	if err := e.RequestRevision(ctx, sess.ID, ""); err != nil {
		t.Fatalf("RequestRevision (second): %v", err)
	}

	got, err := e.GetSession(ctx, sess.ID)
	if err != nil {
		t.Fatalf("GetSession: %v", err)
	}
	rec := got.StageData[types.StageGagasan]
	if n := intField(rec["revisionCount"]); n != 2 {
		t.Errorf("revisionCount = %d, want 2", n)
	}
	if rec["catatanRevisi"] != "persempit fokusnya" {
		t.Errorf("catatanRevisi = %v, want the first feedback kept", rec["catatanRevisi"])
	}
	if got.StageStatus != types.StatusRevision {
		t.Errorf("status = %s, want revision", got.StageStatus)
	}
	if rec["ringkasan"] != "ide pertama" {
		t.Error("revision dropped existing stage data")
	}
}

func TestMarkStageAsDirty(t *testing.T) {
	e := newTestEngine(t)
	sess := newTestSession(t, e)
	ctx := context.Background()

	if err := e.MarkStageAsDirty(ctx, sess.ID); err != nil {
		t.Fatalf("MarkStageAsDirty: %v", err)
	}
	if err := e.MarkStageAsDirty(ctx, sess.ID); err != nil {
		t.Fatalf("MarkStageAsDirty (repeat): %v", err)
	}

	got, err := e.GetSession(ctx, sess.ID)
	if err != nil {
		t.Fatalf("GetSession: %v", err)
	}
	if !got.IsDirty {
		t.Error("IsDirty = false, want true")
	}

	// Approval clears the flag.
	approveCurrent(t, e, sess.ID)
	got, err = e.GetSession(ctx, sess.ID)
	if err != nil {
		t.Fatalf("GetSession: %v", err)
	}
	if got.IsDirty {
		t.Error("IsDirty still set after approval")
	}
}

func TestApproveEnforcesContentBudget(t *testing.T) {
	st, err := store.NewStore(types.StoreConfig{DataDir: t.TempDir()})
	if err != nil {
		t.Fatalf("NewStore: %v", err)
	}
	t.Cleanup(func() { st.Close() })
	e := NewEngine(st, zap.NewNop(), types.EngineConfig{
		Workflow: types.WorkflowConfig{EnforceBudget: true, CharsPerWord: 6, BudgetTolerance: 1.5},
	})
	sess := newTestSession(t, e)
	ctx := context.Background()

	// A tiny budget recorded on the outline stage.
	sess.StageData[types.StageOutline] = types.StageRecord{"totalWordCount": 10}
	sess.StageData[types.StageGagasan] = types.StageRecord{
		"ringkasan": strings.Repeat("kata enam ", 20),
	}
	if err := st.PutSession(ctx, sess); err != nil {
		t.Fatalf("PutSession: %v", err)
	}
	if err := e.SubmitForValidation(ctx, sess.ID); err != nil {
		t.Fatalf("SubmitForValidation: %v", err)
	}

	err = e.ApproveStage(ctx, sess.ID)
	if !errors.Is(err, ErrBudgetExceeded) {
		t.Fatalf("err = %v, want ErrBudgetExceeded", err)
	}

	got, err := e.GetSession(ctx, sess.ID)
	if err != nil {
		t.Fatalf("GetSession: %v", err)
	}
	if got.CurrentStage != types.StageGagasan || got.StageStatus != types.StatusPendingValidation {
		t.Errorf("session moved to %s/%s, rejected approval must not transition", got.CurrentStage, got.StageStatus)
	}
}

func TestGetDrilldown(t *testing.T) {
	e := newTestEngine(t)
	sess := newTestSession(t, e)
	ctx := context.Background()

	approveCurrent(t, e, sess.ID) // gagasan -> topik

	d, err := e.GetDrilldown(ctx, sess.ID)
	if err != nil {
		t.Fatalf("GetDrilldown: %v", err)
	}
	if d.CurrentStage != types.StageTopik {
		t.Errorf("CurrentStage = %s, want topik", d.CurrentStage)
	}
	if len(d.Stages) != 13 {
		t.Fatalf("drilldown has %d stage rows, want 13", len(d.Stages))
	}
	if !d.Stages[0].Validated || d.Stages[0].Stage != types.StageGagasan {
		t.Errorf("first row = %+v, want validated gagasan", d.Stages[0])
	}
	if !d.Stages[1].Current {
		t.Error("topik row not marked current")
	}
	if len(d.Digest) != 1 {
		t.Errorf("digest has %d entries, want 1", len(d.Digest))
	}
}

func TestCompletedSessionLocksOperations(t *testing.T) {
	e := newTestEngine(t)
	sess := newTestSession(t, e)
	ctx := context.Background()

	var visited []types.StageID
	for i := 0; i < 13; i++ {
		cur, err := e.GetSession(ctx, sess.ID)
		if err != nil {
			t.Fatalf("GetSession: %v", err)
		}
		visited = append(visited, cur.CurrentStage)
		approveCurrent(t, e, sess.ID)
	}
	// Approvals walk the catalog in order with no skips or repeats.
	for i, s := range stage.Catalog {
		if visited[i] != s {
			t.Fatalf("visited[%d] = %s, want %s", i, visited[i], s)
		}
	}

	got, err := e.GetSession(ctx, sess.ID)
	if err != nil {
		t.Fatalf("GetSession: %v", err)
	}
	if got.CurrentStage != types.StageCompleted || got.StageStatus != types.StatusApproved {
		t.Fatalf("session at %s/%s, want completed/approved", got.CurrentStage, got.StageStatus)
	}
	if got.CompletedAt == nil {
		t.Error("CompletedAt not set")
	}

	if _, err := e.UpdateStageData(ctx, sess.ID, types.StageFinalisasi, map[string]any{
		"ringkasan": "terlambat",
	}); !errors.Is(err, ErrSessionCompleted) {
		t.Errorf("UpdateStageData err = %v, want ErrSessionCompleted", err)
	}
	if err := e.SubmitForValidation(ctx, sess.ID); !errors.Is(err, ErrSessionCompleted) {
		t.Errorf("SubmitForValidation err = %v, want ErrSessionCompleted", err)
	}
	if err := e.RequestRevision(ctx, sess.ID, "x"); !errors.Is(err, ErrSessionCompleted) {
		t.Errorf("RequestRevision err = %v, want ErrSessionCompleted", err)
	}
}
