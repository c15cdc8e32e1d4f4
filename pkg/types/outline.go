// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package types

import "time"

// SectionStatus is the completion status of an outline section. The zero
// value means unset.
type SectionStatus string

const (
	SectionComplete SectionStatus = "complete"
	SectionPartial  SectionStatus = "partial"
	SectionEmpty    SectionStatus = "empty"
)

// CheckedBy records who marked an outline section. Sections checked by
// the user are never overwritten by automatic propagation or reset.
type CheckedBy string

const (
	CheckedAuto CheckedBy = "auto"
	CheckedUser CheckedBy = "user"
)

// OutlineSection is a node in a session's two-level outline tree.
// Top-level nodes are keyed by stage id; children link to their parent via
// ParentID. Parent linkage is an id reference resolved by iterative lookup
// over the flat list, keeping the structure serializable.
type OutlineSection struct {
	// ID is the section identifier. Top-level sections use the stage id.
	ID string `json:"id" yaml:"id"`

	// SessionID is the owning session.
	SessionID string `json:"session_id,omitempty" yaml:"session_id,omitempty"`

	// ParentID links a child section to its parent. Empty for top-level
	// sections.
	ParentID string `json:"parent_id,omitempty" yaml:"parent_id,omitempty"`

	// Title is the section heading as drafted in the outline stage.
	Title string `json:"title" yaml:"title"`

	// Status is the completion status; empty means unset.
	Status SectionStatus `json:"status,omitempty" yaml:"status,omitempty"`

	// CheckedBy records whether the status was set automatically or by
	// the user.
	CheckedBy CheckedBy `json:"checked_by,omitempty" yaml:"checked_by,omitempty"`

	// CheckedAt is when the status was last set.
	CheckedAt *time.Time `json:"checked_at,omitempty" yaml:"checked_at,omitempty"`
}
