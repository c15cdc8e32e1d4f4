// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package store

import (
	"context"
	"fmt"

	"github.com/pdiddy/paper-engine/pkg/types"
)

// SchemaAlerts returns a session's stripped-key alert trail, oldest
// first. Alerts are written alongside the session save; see
// SaveSessionWithAlerts.
func (s *Store) SchemaAlerts(ctx context.Context, sessionID string) ([]types.SchemaAlert, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, session_id, stage, key, created_at
		 FROM schema_alerts WHERE session_id = ? ORDER BY id ASC`, sessionID)
	if err != nil {
		return nil, fmt.Errorf("listing schema alerts: %w", err)
	}
	defer rows.Close()

	var alerts []types.SchemaAlert
	for rows.Next() {
		var a types.SchemaAlert
		var stg, createdAt string
		if err := rows.Scan(&a.ID, &a.SessionID, &stg, &a.Key, &createdAt); err != nil {
			return nil, fmt.Errorf("scanning schema alert: %w", err)
		}
		a.Stage = types.StageID(stg)
		a.CreatedAt = parseTime(createdAt)
		alerts = append(alerts, a)
	}
	return alerts, rows.Err()
}
