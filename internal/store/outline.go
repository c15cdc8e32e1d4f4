// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/pdiddy/paper-engine/pkg/types"
)

// OutlineSections returns a session's outline sections, top-level nodes
// first, then children grouped by insertion order.
func (s *Store) OutlineSections(ctx context.Context, sessionID string) ([]types.OutlineSection, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, parent_id, title, status, checked_by, checked_at
		 FROM outline_sections WHERE session_id = ?
		 ORDER BY parent_id <> '', rowid`, sessionID)
	if err != nil {
		return nil, fmt.Errorf("querying outline sections: %w", err)
	}
	defer rows.Close()

	var sections []types.OutlineSection
	for rows.Next() {
		var (
			sec                          types.OutlineSection
			status, checkedBy, checkedAt string
		)
		if err := rows.Scan(&sec.ID, &sec.ParentID, &sec.Title, &status, &checkedBy, &checkedAt); err != nil {
			return nil, fmt.Errorf("scanning outline section: %w", err)
		}
		sec.SessionID = sessionID
		sec.Status = types.SectionStatus(status)
		sec.CheckedBy = types.CheckedBy(checkedBy)
		if checkedAt != "" {
			t := parseTime(checkedAt)
			sec.CheckedAt = &t
		}
		sections = append(sections, sec)
	}
	return sections, rows.Err()
}

// ReplaceOutlineSections swaps a session's full section list.
func (s *Store) ReplaceOutlineSections(ctx context.Context, sessionID string, sections []types.OutlineSection) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	if err := s.replaceSections(ctx, tx, sessionID, sections); err != nil {
		return err
	}
	return tx.Commit()
}

func (s *Store) replaceSections(ctx context.Context, tx *sql.Tx, sessionID string, sections []types.OutlineSection) error {
	if _, err := tx.ExecContext(ctx,
		`DELETE FROM outline_sections WHERE session_id = ?`, sessionID); err != nil {
		return fmt.Errorf("clearing outline sections: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO outline_sections (session_id, id, parent_id, title, status, checked_by, checked_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("preparing section insert: %w", err)
	}
	defer stmt.Close()

	for _, sec := range sections {
		checkedAt := ""
		if sec.CheckedAt != nil {
			checkedAt = formatTime(*sec.CheckedAt)
		}
		_, err := stmt.ExecContext(ctx,
			sessionID, sec.ID, sec.ParentID, sec.Title,
			string(sec.Status), string(sec.CheckedBy), checkedAt,
		)
		if err != nil {
			return fmt.Errorf("inserting section %s: %w", sec.ID, err)
		}
	}
	return nil
}

// UpsertOutlineSection writes one section, preserving the rest. Used when
// the user hand-checks a section.
func (s *Store) UpsertOutlineSection(ctx context.Context, sec types.OutlineSection) error {
	checkedAt := ""
	if sec.CheckedAt != nil {
		checkedAt = formatTime(*sec.CheckedAt)
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO outline_sections (session_id, id, parent_id, title, status, checked_by, checked_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(session_id, id) DO UPDATE SET
			parent_id=excluded.parent_id, title=excluded.title, status=excluded.status,
			checked_by=excluded.checked_by, checked_at=excluded.checked_at`,
		sec.SessionID, sec.ID, sec.ParentID, sec.Title,
		string(sec.Status), string(sec.CheckedBy), checkedAt,
	)
	if err != nil {
		return fmt.Errorf("upserting outline section: %w", err)
	}
	return nil
}
