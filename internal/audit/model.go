// Package audit exposes the read side of the audit trail. Writes happen
// through shared.AuditLogger; this package answers "who touched this
// entity and when".
package audit

import "time"

// Entry is one row of the audit trail.
type Entry struct {
	ID       int64
	ActorID  int64
	Action   string
	Entity   string
	EntityID string
	Meta     map[string]any
	At       time.Time
}

// TimelineFilters narrows a timeline query. Zero values mean "any".
type TimelineFilters struct {
	Entity   string
	EntityID string
	ActorID  int64
	Action   string
	From     time.Time
	To       time.Time
	Page     int
	PageSize int
}

// PagingInfo describes the window a Result covers.
type PagingInfo struct {
	Page     int
	PageSize int
	HasNext  bool
}

// Result bundles timeline rows with paging information.
type Result struct {
	Rows   []Entry
	Paging PagingInfo
}
