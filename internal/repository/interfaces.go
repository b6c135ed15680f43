package repository

import (
	"context"
	"time"

	"github.com/openhistory/journalkit/internal/domain"
)

// JournalRepository defines the storage operations of the journaling engine.
type JournalRepository interface {
	// Create atomically allocates the next version and inserts a new journal
	// plus its snapshot rows, gated on detected changes or non-empty notes.
	// Returns nil when the gate decided against inserting.
	Create(ctx context.Context, desc domain.Descriptor, journable domain.Journable, userID int64, notes string) (*domain.Journal, error)
	// HasPendingChanges reports whether the journable's current state
	// differs from its latest recorded snapshot. Read-only.
	HasPendingChanges(ctx context.Context, desc domain.Descriptor, journable domain.Journable) (bool, error)

	LatestVersion(ctx context.Context, journableType string, journableID int64) (int64, error)
	ListJournals(ctx context.Context, journableType string, journableID int64) ([]domain.Journal, error)
	GetJournalByVersion(ctx context.Context, journableType string, journableID, version int64) (domain.Journal, error)
	GetSnapshotData(ctx context.Context, desc domain.Descriptor, journalID int64) (domain.SnapshotData, error)
	ListAttachableJournals(ctx context.Context, journalID int64) ([]domain.AttachableJournal, error)
	ListCustomizableJournals(ctx context.Context, journalID int64) ([]domain.CustomizableJournal, error)

	// TouchJournable advances the journable's update-timestamp columns with
	// a plain column write, leaving optimistic-lock counters alone.
	TouchJournable(ctx context.Context, desc domain.Descriptor, journableID int64, ts time.Time) error
	// ReassignUserReferences rewrites every user-reference column across all
	// registered snapshot tables from one user id to another.
	ReassignUserReferences(ctx context.Context, descs []domain.Descriptor, fromUserID, toUserID int64) error
	// ValidateDescriptors checks every registered descriptor against the
	// live schema, so misconfiguration surfaces at startup.
	ValidateDescriptors(ctx context.Context, descs []domain.Descriptor) error
}
