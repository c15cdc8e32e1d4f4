// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package store

import (
	"context"
	"fmt"
	"time"

	"github.com/pdiddy/paper-engine/pkg/types"
)

// RegisterArtifact records an external artifact as produced by a stage.
// Re-registering the same id moves it to the new stage and clears any
// prior invalidation.
func (s *Store) RegisterArtifact(ctx context.Context, sessionID string, stg types.StageID, artifactID string) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO artifacts (id, session_id, stage, created_at)
		 VALUES (?, ?, ?, ?)
		 ON CONFLICT(id) DO UPDATE SET
			session_id=excluded.session_id, stage=excluded.stage,
			invalidated_at=NULL, invalidated_by_rewind_to=NULL`,
		artifactID, sessionID, string(stg), formatTime(time.Now()),
	)
	if err != nil {
		return fmt.Errorf("registering artifact: %w", err)
	}
	return nil
}

// InvalidateArtifact marks one artifact invalid as part of a rewind.
func (s *Store) InvalidateArtifact(ctx context.Context, artifactID string, toStage types.StageID, ts time.Time) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE artifacts SET invalidated_at = ?, invalidated_by_rewind_to = ?
		 WHERE id = ?`,
		formatTime(ts), string(toStage), artifactID,
	)
	if err != nil {
		return fmt.Errorf("invalidating artifact %s: %w", artifactID, err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("invalidating artifact %s: not registered", artifactID)
	}
	return nil
}

// ArtifactCounts returns the number of artifacts per stage for a session.
func (s *Store) ArtifactCounts(ctx context.Context, sessionID string) (map[types.StageID]int, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT stage, COUNT(*) FROM artifacts WHERE session_id = ? GROUP BY stage`, sessionID)
	if err != nil {
		return nil, fmt.Errorf("counting artifacts: %w", err)
	}
	defer rows.Close()

	counts := make(map[types.StageID]int)
	for rows.Next() {
		var stg string
		var n int
		if err := rows.Scan(&stg, &n); err != nil {
			return nil, fmt.Errorf("scanning artifact count: %w", err)
		}
		counts[types.StageID(stg)] = n
	}
	return counts, rows.Err()
}
