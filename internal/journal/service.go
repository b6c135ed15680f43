package journal

import (
	"context"
	"fmt"
	"log"

	"github.com/openhistory/journalkit/internal/domain"
	"github.com/openhistory/journalkit/internal/repository"
)

// Service is the write entry point of the journaling engine. It classifies
// the journable, delegates the atomic create to the repository and applies
// the post-write touch hook.
type Service struct {
	registry *domain.Registry
	repo     repository.JournalRepository
}

// NewService creates a new journal service.
func NewService(registry *domain.Registry, repo repository.JournalRepository) *Service {
	return &Service{registry: registry, repo: repo}
}

// IsJournaled reports whether the entity participates in journaling at all.
func (s *Service) IsJournaled(journable domain.Journable) bool {
	return s.registry.IsJournaled(journable)
}

// Record creates a new journal for the journable as the given user, with
// optional free-form notes. It returns nil without error when the entity
// type is not journaled or when nothing changed and no notes were supplied.
// When notes are supplied, the journable's update timestamps are advanced to
// the journal's creation time afterwards.
func (s *Service) Record(ctx context.Context, journable domain.Journable, userID int64, notes string) (*domain.Journal, error) {
	if !s.IsJournaled(journable) {
		return nil, nil
	}

	desc, _ := s.registry.Lookup(journable.JournableType())

	log.Printf("inserting new journal for %s #%d", desc.Type, journable.JournableID())

	journal, err := s.repo.Create(ctx, desc, journable, userID, notes)
	if err != nil {
		return nil, err
	}
	if journal == nil {
		return nil, nil
	}

	if journal.HasNotes() {
		if err := s.repo.TouchJournable(ctx, desc, journable.JournableID(), journal.CreatedAt); err != nil {
			return nil, fmt.Errorf("journal #%d created but touching the journable failed: %w", journal.ID, err)
		}
	}

	return journal, nil
}

// HasPendingChanges reports whether the journable's current state differs
// from its latest recorded snapshot. An entity with no history reports
// pending changes as soon as it has any non-empty journaled state, so the
// first Record call writes version 1.
func (s *Service) HasPendingChanges(ctx context.Context, journable domain.Journable) (bool, error) {
	if !s.IsJournaled(journable) {
		return false, nil
	}

	desc, _ := s.registry.Lookup(journable.JournableType())
	return s.repo.HasPendingChanges(ctx, desc, journable)
}

// History returns the journable's full journal trail, each version bundled
// with its snapshot rows, ordered by version.
func (s *Service) History(ctx context.Context, journableType string, journableID int64) ([]domain.HistoryEntry, error) {
	desc, ok := s.registry.Lookup(journableType)
	if !ok {
		return nil, fmt.Errorf("%s is not a journaled type", journableType)
	}

	journals, err := s.repo.ListJournals(ctx, journableType, journableID)
	if err != nil {
		return nil, err
	}

	entries := make([]domain.HistoryEntry, 0, len(journals))
	for _, j := range journals {
		entry, err := s.historyEntry(ctx, desc, j)
		if err != nil {
			return nil, err
		}
		entries = append(entries, entry)
	}

	return entries, nil
}

// Diff renders a unified diff between two recorded versions of a journable.
// A fromVersion of 0 diffs against the empty document.
func (s *Service) Diff(ctx context.Context, journableType string, journableID, fromVersion, toVersion int64) (string, error) {
	desc, ok := s.registry.Lookup(journableType)
	if !ok {
		return "", fmt.Errorf("%s is not a journaled type", journableType)
	}

	var base *domain.HistoryEntry
	if fromVersion > 0 {
		entry, err := s.versionEntry(ctx, desc, journableID, fromVersion)
		if err != nil {
			return "", err
		}
		base = &entry
	}

	target, err := s.versionEntry(ctx, desc, journableID, toVersion)
	if err != nil {
		return "", err
	}

	baseLabel := fmt.Sprintf("%s #%d v%d", journableType, journableID, fromVersion)
	targetLabel := fmt.Sprintf("%s #%d v%d", journableType, journableID, toVersion)

	return domain.DiffHistoryEntries(baseLabel, base, targetLabel, &target), nil
}

// ReassignAuthorship rewrites every user-reference column across all
// registered snapshot tables from one user id to another. Used when merging
// or anonymizing user accounts.
func (s *Service) ReassignAuthorship(ctx context.Context, fromUserID, toUserID int64) error {
	return s.repo.ReassignUserReferences(ctx, s.registry.Descriptors(), fromUserID, toUserID)
}

func (s *Service) versionEntry(ctx context.Context, desc domain.Descriptor, journableID, version int64) (domain.HistoryEntry, error) {
	j, err := s.repo.GetJournalByVersion(ctx, desc.Type, journableID, version)
	if err != nil {
		return domain.HistoryEntry{}, err
	}
	return s.historyEntry(ctx, desc, j)
}

func (s *Service) historyEntry(ctx context.Context, desc domain.Descriptor, j domain.Journal) (domain.HistoryEntry, error) {
	data, err := s.repo.GetSnapshotData(ctx, desc, j.ID)
	if err != nil {
		return domain.HistoryEntry{}, err
	}
	attachments, err := s.repo.ListAttachableJournals(ctx, j.ID)
	if err != nil {
		return domain.HistoryEntry{}, err
	}
	customValues, err := s.repo.ListCustomizableJournals(ctx, j.ID)
	if err != nil {
		return domain.HistoryEntry{}, err
	}

	return domain.HistoryEntry{
		Journal:      j,
		Data:         data,
		Attachments:  attachments,
		CustomValues: customValues,
	}, nil
}
