package repository

import (
	"strings"
	"testing"
	"time"

	"github.com/openhistory/journalkit/internal/domain"
)

func testDescriptor() domain.Descriptor {
	return domain.WorkItemDescriptor()
}

func TestBuildCreateJournalSQLWithoutNotes(t *testing.T) {
	ts := time.Date(2024, 3, 2, 10, 30, 0, 0, time.UTC)
	query, args := buildCreateJournalSQL(createParams{
		desc:         testDescriptor(),
		journableID:  7,
		activityType: "work_items",
		userID:       3,
		notes:        "",
		updatedAt:    &ts,
	})

	// Empty notes gate the insert on detected changes and back-date the
	// journal to the journable's own timestamp.
	if !strings.Contains(query, "WHERE EXISTS (SELECT 1 FROM changes)") {
		t.Fatalf("expected change gate in query:\n%s", query)
	}
	if strings.Contains(query, "now()") {
		t.Fatalf("back-dated insert must not use now():\n%s", query)
	}
	if !strings.Contains(query, "$4::timestamptz") {
		t.Fatalf("expected back-dating placeholder:\n%s", query)
	}

	expectedArgs := []any{int64(7), "WorkItem", "WorkItem", ts, "work_items", int64(3), ""}
	if len(args) != len(expectedArgs) {
		t.Fatalf("expected %d args, got %d: %v", len(expectedArgs), len(args), args)
	}
	for i, expected := range expectedArgs {
		if args[i] != expected {
			t.Fatalf("arg %d: expected %v, got %v", i, expected, args[i])
		}
	}
}

func TestBuildCreateJournalSQLWithNotes(t *testing.T) {
	ts := time.Date(2024, 3, 2, 10, 30, 0, 0, time.UTC)
	query, args := buildCreateJournalSQL(createParams{
		desc:         testDescriptor(),
		journableID:  7,
		activityType: "work_items",
		userID:       3,
		notes:        "annotation",
		updatedAt:    &ts,
	})

	// Notes always create a journal, stamped with now().
	if strings.Contains(query, "WHERE EXISTS (SELECT 1 FROM changes)") {
		t.Fatalf("notes must bypass the change gate:\n%s", query)
	}
	if !strings.Contains(query, "now()") {
		t.Fatalf("expected now() timestamp:\n%s", query)
	}

	expectedArgs := []any{int64(7), "WorkItem", "WorkItem", "work_items", int64(3), "annotation"}
	if len(args) != len(expectedArgs) {
		t.Fatalf("expected %d args, got %d: %v", len(expectedArgs), len(args), args)
	}
	for i, expected := range expectedArgs {
		if args[i] != expected {
			t.Fatalf("arg %d: expected %v, got %v", i, expected, args[i])
		}
	}
}

func TestBuildCreateJournalSQLWhitespaceNotesCountAsEmpty(t *testing.T) {
	ts := time.Date(2024, 3, 2, 10, 30, 0, 0, time.UTC)
	query, args := buildCreateJournalSQL(createParams{
		desc:         testDescriptor(),
		journableID:  7,
		activityType: "work_items",
		userID:       3,
		notes:        "   ",
		updatedAt:    &ts,
	})

	if !strings.Contains(query, "WHERE EXISTS (SELECT 1 FROM changes)") {
		t.Fatalf("whitespace-only notes must keep the change gate:\n%s", query)
	}
	if !strings.Contains(query, "$4::timestamptz") {
		t.Fatalf("whitespace-only notes must back-date the journal:\n%s", query)
	}
	if args[len(args)-1] != "   " {
		t.Fatalf("notes must be stored as given: %v", args)
	}
}

func TestBuildCreateJournalSQLVersionAllocation(t *testing.T) {
	query, _ := buildCreateJournalSQL(createParams{
		desc:         testDescriptor(),
		journableID:  7,
		activityType: "work_items",
		userID:       3,
	})

	if !strings.Contains(query, "COALESCE(max_journals.version, 0) + 1") {
		t.Fatalf("expected atomic version allocation:\n%s", query)
	}
	if !strings.Contains(query, "RIGHT OUTER JOIN\n  (SELECT 0 AS version) fallback") {
		t.Fatalf("expected version 0 fallback row:\n%s", query)
	}
}

func TestBuildCreateJournalSQLSnapshotColumnOrdering(t *testing.T) {
	query, _ := buildCreateJournalSQL(createParams{
		desc:         testDescriptor(),
		journableID:  7,
		activityType: "work_items",
		userID:       3,
	})

	// Sink and source must share the same ordering: scalars in declaration
	// order, then text columns, the latter read through normalization.
	sink := "subject, status_id, author_id, assigned_to_id, responsible_id, description"
	if !strings.Contains(query, sink) {
		t.Fatalf("expected sink column list %q:\n%s", sink, query)
	}
	source := `subject, status_id, author_id, assigned_to_id, responsible_id, REGEXP_REPLACE(COALESCE(description, ''), E'\\r\\n', E'\n', 'g')`
	if !strings.Contains(query, source) {
		t.Fatalf("expected normalized source column list:\n%s", query)
	}
}

func TestBuildCreateJournalSQLSourceRestriction(t *testing.T) {
	query, _ := buildCreateJournalSQL(createParams{
		desc:         testDescriptor(),
		journableID:  7,
		activityType: "work_items",
		userID:       3,
	})

	restricted := "(SELECT * FROM work_items WHERE work_items.deleted_at IS NULL) work_items"
	if strings.Count(query, restricted) != 2 {
		t.Fatalf("expected the source restriction in change detection and snapshot insert:\n%s", query)
	}
}

func TestBuildCreateJournalSQLSnapshotInsertsAreGated(t *testing.T) {
	query, _ := buildCreateJournalSQL(createParams{
		desc:         testDescriptor(),
		journableID:  7,
		activityType: "work_items",
		userID:       3,
		notes:        "annotation",
	})

	if got := strings.Count(query, "EXISTS (SELECT 1 FROM inserted_journal)"); got != 3 {
		t.Fatalf("expected all three snapshot inserts gated on the journal insert, got %d:\n%s", got, query)
	}
	if !strings.Contains(query, "custom_values.value != ''") {
		t.Fatalf("empty custom values must not be snapshotted:\n%s", query)
	}
}

func TestBuildPendingChangesSQL(t *testing.T) {
	query, args := buildPendingChangesSQL(testDescriptor(), 12)

	if !strings.Contains(query, "SELECT COUNT(*) FROM (") {
		t.Fatalf("expected a change count query:\n%s", query)
	}
	if strings.Contains(query, "INSERT") {
		t.Fatalf("pending change detection must be read-only:\n%s", query)
	}

	// All three change categories, joined.
	if got := strings.Count(query, "FULL JOIN"); got < 4 {
		// two joins combine the categories, two more sit inside the
		// attachment and custom-value sub-queries
		t.Fatalf("expected full joins across change categories, got %d:\n%s", got, query)
	}
	if !strings.Contains(query, "attachable_journals.attachment_id IS NULL AND attachments.id IS NOT NULL") {
		t.Fatalf("expected attachment symmetric difference:\n%s", query)
	}
	if !strings.Contains(query, "customizable_journals.value IS NULL AND custom_values.value IS NOT NULL AND custom_values.value != ''") {
		t.Fatalf("expected custom-value emptiness handling:\n%s", query)
	}

	expectedArgs := []any{int64(12), "WorkItem", "WorkItem"}
	if len(args) != len(expectedArgs) {
		t.Fatalf("expected %d args, got %d: %v", len(expectedArgs), len(args), args)
	}
	for i, expected := range expectedArgs {
		if args[i] != expected {
			t.Fatalf("arg %d: expected %v, got %v", i, expected, args[i])
		}
	}
}

func TestDataChangesConditionsPerColumnKind(t *testing.T) {
	query, _ := buildPendingChangesSQL(testDescriptor(), 12)

	// Scalar columns treat null/non-null flips as changes.
	scalar := "(work_items.status_id != work_item_journals.status_id) OR (work_items.status_id IS NULL AND work_item_journals.status_id IS NOT NULL) OR (work_items.status_id IS NOT NULL AND work_item_journals.status_id IS NULL)"
	if !strings.Contains(query, scalar) {
		t.Fatalf("expected scalar column condition:\n%s", query)
	}

	// Text columns compare in LF-normalized form.
	text := `REGEXP_REPLACE(COALESCE(work_items.description, ''), E'\\r\\n', E'\n', 'g') != REGEXP_REPLACE(COALESCE(work_item_journals.description, ''), E'\\r\\n', E'\n', 'g')`
	if !strings.Contains(query, text) {
		t.Fatalf("expected normalized text column condition:\n%s", query)
	}
}
