// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package store

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/pdiddy/paper-engine/pkg/types"
)

// SaveSessionWithRewind writes the rewound session, replaces its outline
// sections, and appends the rewind record in one transaction. The record
// is assigned an ID and returned.
func (s *Store) SaveSessionWithRewind(ctx context.Context, sess *types.PaperSession, sections []types.OutlineSection, rec types.RewindRecord) (types.RewindRecord, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return rec, fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	if err := s.putSession(ctx, tx, sess); err != nil {
		return rec, err
	}
	if err := s.replaceSections(ctx, tx, sess.ID, sections); err != nil {
		return rec, err
	}

	rec.ID = s.newID()
	stagesJSON, err := json.Marshal(rec.InvalidatedStages)
	if err != nil {
		return rec, fmt.Errorf("encoding invalidated stages: %w", err)
	}
	artifactsJSON, err := json.Marshal(rec.InvalidatedArtifactIDs)
	if err != nil {
		return rec, fmt.Errorf("encoding invalidated artifacts: %w", err)
	}

	_, err = tx.ExecContext(ctx,
		`INSERT INTO rewind_records
			(id, session_id, from_stage, to_stage, invalidated_stages, invalidated_artifact_ids, timestamp)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		rec.ID, rec.SessionID, string(rec.FromStage), string(rec.ToStage),
		string(stagesJSON), string(artifactsJSON), formatTime(rec.Timestamp),
	)
	if err != nil {
		return rec, fmt.Errorf("inserting rewind record: %w", err)
	}
	return rec, tx.Commit()
}

// RewindHistory returns a session's rewind records, oldest first.
func (s *Store) RewindHistory(ctx context.Context, sessionID string) ([]types.RewindRecord, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, session_id, from_stage, to_stage, invalidated_stages,
			invalidated_artifact_ids, timestamp
		 FROM rewind_records WHERE session_id = ? ORDER BY id ASC`, sessionID)
	if err != nil {
		return nil, fmt.Errorf("querying rewind history: %w", err)
	}
	defer rows.Close()

	var records []types.RewindRecord
	for rows.Next() {
		var (
			rec                        types.RewindRecord
			fromStage, toStage         string
			stagesJSON, artifactsJSON  string
			ts                         string
		)
		if err := rows.Scan(&rec.ID, &rec.SessionID, &fromStage, &toStage,
			&stagesJSON, &artifactsJSON, &ts); err != nil {
			return nil, fmt.Errorf("scanning rewind record: %w", err)
		}
		rec.FromStage = types.StageID(fromStage)
		rec.ToStage = types.StageID(toStage)
		rec.Timestamp = parseTime(ts)
		if err := json.Unmarshal([]byte(stagesJSON), &rec.InvalidatedStages); err != nil {
			return nil, fmt.Errorf("parsing invalidated stages: %w", err)
		}
		if artifactsJSON != "" {
			if err := json.Unmarshal([]byte(artifactsJSON), &rec.InvalidatedArtifactIDs); err != nil {
				return nil, fmt.Errorf("parsing invalidated artifacts: %w", err)
			}
		}
		records = append(records, rec)
	}
	return records, rows.Err()
}
