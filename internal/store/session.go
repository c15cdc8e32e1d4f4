// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/pdiddy/paper-engine/pkg/types"
)

// ErrNotFound is returned when a session does not exist.
var ErrNotFound = errors.New("session not found")

const sessionColumns = `id, owner_id, conversation_id, current_stage, stage_status,
	stage_data, digest, is_dirty, paper_title, working_title, initial_idea,
	archived, created_at, updated_at, completed_at`

// CreateSession creates a session for a conversation, or returns the
// existing one: creation is idempotent per conversation.
func (s *Store) CreateSession(ctx context.Context, ownerID, conversationID, initialIdea string) (*types.PaperSession, error) {
	if existing, err := s.GetSessionByConversation(ctx, conversationID); err == nil {
		return existing, nil
	} else if !errors.Is(err, ErrNotFound) {
		return nil, err
	}

	now := time.Now().UTC()
	sess := &types.PaperSession{
		ID:                s.newID(),
		OwnerID:           ownerID,
		ConversationID:    conversationID,
		CurrentStage:      types.StageGagasan,
		StageStatus:       types.StatusDrafting,
		StageData:         map[types.StageID]types.StageRecord{},
		PaperMemoryDigest: []types.DigestEntry{},
		InitialIdea:       initialIdea,
		CreatedAt:         now,
		UpdatedAt:         now,
	}

	dataJSON, digestJSON, err := marshalSession(sess)
	if err != nil {
		return nil, err
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO sessions (`+sessionColumns+`)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		sess.ID, sess.OwnerID, sess.ConversationID,
		string(sess.CurrentStage), string(sess.StageStatus),
		dataJSON, digestJSON, boolInt(sess.IsDirty),
		sess.PaperTitle, sess.WorkingTitle, sess.InitialIdea,
		boolInt(sess.Archived),
		formatTime(sess.CreatedAt), formatTime(sess.UpdatedAt), "",
	)
	if err != nil {
		return nil, fmt.Errorf("inserting session: %w", err)
	}
	return sess, nil
}

// GetSession loads a session by id.
func (s *Store) GetSession(ctx context.Context, id string) (*types.PaperSession, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+sessionColumns+` FROM sessions WHERE id = ?`, id)
	return scanSession(row)
}

// GetSessionByConversation loads the session tied to a conversation.
func (s *Store) GetSessionByConversation(ctx context.Context, conversationID string) (*types.PaperSession, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+sessionColumns+` FROM sessions WHERE conversation_id = ?`, conversationID)
	return scanSession(row)
}

// ListOptions filters and orders session listings.
type ListOptions struct {
	// Status filters by stage status when non-empty.
	Status types.StageStatus

	// IncludeArchived includes archived sessions.
	IncludeArchived bool

	// SortAsc orders by update time ascending; default is newest first.
	SortAsc bool
}

// ListSessions returns the owner's sessions, filtered and ordered.
func (s *Store) ListSessions(ctx context.Context, ownerID string, opts ListOptions) ([]*types.PaperSession, error) {
	query := `SELECT ` + sessionColumns + ` FROM sessions WHERE owner_id = ?`
	args := []any{ownerID}

	if opts.Status != "" {
		query += ` AND stage_status = ?`
		args = append(args, string(opts.Status))
	}
	if !opts.IncludeArchived {
		query += ` AND archived = 0`
	}
	if opts.SortAsc {
		query += ` ORDER BY updated_at ASC`
	} else {
		query += ` ORDER BY updated_at DESC`
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("listing sessions: %w", err)
	}
	defer rows.Close()

	var sessions []*types.PaperSession
	for rows.Next() {
		sess, err := scanSession(rows)
		if err != nil {
			return nil, err
		}
		sessions = append(sessions, sess)
	}
	return sessions, rows.Err()
}

// PutSession writes the full session row back.
func (s *Store) PutSession(ctx context.Context, sess *types.PaperSession) error {
	return s.putSession(ctx, s.db, sess)
}

type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

func (s *Store) putSession(ctx context.Context, db execer, sess *types.PaperSession) error {
	dataJSON, digestJSON, err := marshalSession(sess)
	if err != nil {
		return err
	}
	completedAt := ""
	if sess.CompletedAt != nil {
		completedAt = formatTime(*sess.CompletedAt)
	}

	res, err := db.ExecContext(ctx,
		`UPDATE sessions SET
			current_stage = ?, stage_status = ?, stage_data = ?, digest = ?,
			is_dirty = ?, paper_title = ?, working_title = ?, archived = ?,
			updated_at = ?, completed_at = ?
		 WHERE id = ?`,
		string(sess.CurrentStage), string(sess.StageStatus), dataJSON, digestJSON,
		boolInt(sess.IsDirty), sess.PaperTitle, sess.WorkingTitle, boolInt(sess.Archived),
		formatTime(sess.UpdatedAt), completedAt, sess.ID,
	)
	if err != nil {
		return fmt.Errorf("updating session: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return ErrNotFound
	}
	return nil
}

// SaveSessionWithAlerts writes the session and its schema alerts in one
// transaction.
func (s *Store) SaveSessionWithAlerts(ctx context.Context, sess *types.PaperSession, alerts []types.SchemaAlert) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	if err := s.putSession(ctx, tx, sess); err != nil {
		return err
	}
	for _, a := range alerts {
		id := a.ID
		if id == "" {
			id = s.newID()
		}
		_, err := tx.ExecContext(ctx,
			`INSERT INTO schema_alerts (id, session_id, stage, key, created_at)
			 VALUES (?, ?, ?, ?, ?)`,
			id, a.SessionID, string(a.Stage), a.Key, formatTime(a.CreatedAt),
		)
		if err != nil {
			return fmt.Errorf("inserting schema alert: %w", err)
		}
	}
	return tx.Commit()
}

// SaveSessionWithSections writes the session and replaces its outline
// sections in one transaction. Used on approval.
func (s *Store) SaveSessionWithSections(ctx context.Context, sess *types.PaperSession, sections []types.OutlineSection) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	if err := s.putSession(ctx, tx, sess); err != nil {
		return err
	}
	if err := s.replaceSections(ctx, tx, sess.ID, sections); err != nil {
		return err
	}
	return tx.Commit()
}

// DeleteSession removes a session and cascades to its outline sections,
// rewind records, artifacts, and alerts.
func (s *Store) DeleteSession(ctx context.Context, id string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	for _, stmt := range []string{
		`DELETE FROM outline_sections WHERE session_id = ?`,
		`DELETE FROM rewind_records WHERE session_id = ?`,
		`DELETE FROM artifacts WHERE session_id = ?`,
		`DELETE FROM schema_alerts WHERE session_id = ?`,
	} {
		if _, err := tx.ExecContext(ctx, stmt, id); err != nil {
			return fmt.Errorf("cascading delete: %w", err)
		}
	}

	res, err := tx.ExecContext(ctx, `DELETE FROM sessions WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("deleting session: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return ErrNotFound
	}
	return tx.Commit()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanSession(row rowScanner) (*types.PaperSession, error) {
	var (
		sess                             types.PaperSession
		currentStage, stageStatus        string
		dataJSON, digestJSON             string
		isDirty, archived                int
		createdAt, updatedAt, completedAt string
	)
	err := row.Scan(
		&sess.ID, &sess.OwnerID, &sess.ConversationID, &currentStage, &stageStatus,
		&dataJSON, &digestJSON, &isDirty, &sess.PaperTitle, &sess.WorkingTitle,
		&sess.InitialIdea, &archived, &createdAt, &updatedAt, &completedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scanning session: %w", err)
	}

	sess.CurrentStage = types.StageID(currentStage)
	sess.StageStatus = types.StageStatus(stageStatus)
	sess.IsDirty = isDirty != 0
	sess.Archived = archived != 0
	sess.CreatedAt = parseTime(createdAt)
	sess.UpdatedAt = parseTime(updatedAt)
	if completedAt != "" {
		t := parseTime(completedAt)
		sess.CompletedAt = &t
	}

	if err := json.Unmarshal([]byte(dataJSON), &sess.StageData); err != nil {
		return nil, fmt.Errorf("parsing stage data: %w", err)
	}
	if err := json.Unmarshal([]byte(digestJSON), &sess.PaperMemoryDigest); err != nil {
		return nil, fmt.Errorf("parsing digest: %w", err)
	}
	return &sess, nil
}

func marshalSession(sess *types.PaperSession) (dataJSON, digestJSON string, err error) {
	if sess.StageData == nil {
		sess.StageData = map[types.StageID]types.StageRecord{}
	}
	if sess.PaperMemoryDigest == nil {
		sess.PaperMemoryDigest = []types.DigestEntry{}
	}
	data, err := json.Marshal(sess.StageData)
	if err != nil {
		return "", "", fmt.Errorf("encoding stage data: %w", err)
	}
	digest, err := json.Marshal(sess.PaperMemoryDigest)
	if err != nil {
		return "", "", fmt.Errorf("encoding digest: %w", err)
	}
	return string(data), string(digest), nil
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
