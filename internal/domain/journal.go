package domain

import (
	"strings"
	"time"

	"github.com/guregu/null/v5"
)

// Journal is one immutable historical record of a journable's state.
// Versions start at 1 and increase strictly per (JournableType, JournableID).
type Journal struct {
	ID            int64     `json:"id"`
	JournableID   int64     `json:"journable_id"`
	JournableType string    `json:"journable_type"`
	Version       int64     `json:"version"`
	ActivityType  string    `json:"activity_type"`
	UserID        int64     `json:"user_id"`
	Notes         string    `json:"notes"`
	CreatedAt     time.Time `json:"created_at"`
}

// HasNotes reports whether the journal carries a non-blank free-form
// annotation. Whitespace-only notes count as empty.
func (j Journal) HasNotes() bool {
	return strings.TrimSpace(j.Notes) != ""
}

// AttachableJournal is one file-attachment reference captured in a snapshot.
type AttachableJournal struct {
	JournalID    int64  `json:"journal_id"`
	AttachmentID int64  `json:"attachment_id"`
	Filename     string `json:"filename"`
}

// CustomizableJournal is one non-empty custom-field value captured in a
// snapshot. Absence of a row is the "no value" signal; empty values are
// never stored.
type CustomizableJournal struct {
	JournalID     int64  `json:"journal_id"`
	CustomFieldID int64  `json:"custom_field_id"`
	Value         string `json:"value"`
}

// SnapshotData holds the denormalized attribute values captured for one
// journal. Values are read back as text so NULL stays distinguishable from
// the empty string.
type SnapshotData struct {
	JournalID int64                  `json:"journal_id"`
	Values    map[string]null.String `json:"values"`
}

// HistoryEntry bundles a journal with all of its snapshot rows. Consumed by
// the export surface and by diff rendering.
type HistoryEntry struct {
	Journal      Journal               `json:"journal"`
	Data         SnapshotData          `json:"data"`
	Attachments  []AttachableJournal   `json:"attachments"`
	CustomValues []CustomizableJournal `json:"custom_values"`
}
