package domain

import "time"

// WorkItem is the built-in journable shipped with the engine: a trackable
// unit of work with an author, an assignee and a large-text description.
// Other entity types enroll the same way — implement Journable and register
// a Descriptor.
type WorkItem struct {
	ID            int64      `json:"id"`
	Subject       string     `json:"subject"`
	Description   string     `json:"description"`
	StatusID      int64      `json:"status_id"`
	AuthorID      int64      `json:"author_id"`
	AssignedToID  *int64     `json:"assigned_to_id"`
	ResponsibleID *int64     `json:"responsible_id"`
	UpdatedAt     *time.Time `json:"updated_at"`
}

// WorkItemType is the registry key for work items.
const WorkItemType = "WorkItem"

func (w WorkItem) JournableID() int64 {
	return w.ID
}

func (w WorkItem) JournableType() string {
	return WorkItemType
}

func (w WorkItem) ActivityType() string {
	return "work_items"
}

func (w WorkItem) LastUpdatedAt() (time.Time, bool) {
	if w.UpdatedAt == nil {
		return time.Time{}, false
	}
	return *w.UpdatedAt, true
}

// WorkItemDescriptor declares how work items are journaled. Soft-deleted
// rows do not count as current state.
func WorkItemDescriptor() Descriptor {
	return Descriptor{
		Type:              WorkItemType,
		ContainerType:     WorkItemType,
		Table:             "work_items",
		DataTable:         "work_item_journals",
		Columns:           []string{"subject", "description", "status_id", "author_id", "assigned_to_id", "responsible_id"},
		TextColumns:       []string{"description"},
		SourceRestriction: "WHERE work_items.deleted_at IS NULL",
		TimestampColumns:  []string{"updated_at"},
	}
}
