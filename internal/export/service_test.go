package export

import (
	"bytes"
	"context"
	"errors"
	"testing"
	"time"

	"github.com/guregu/null/v5"
	"github.com/xuri/excelize/v2"

	"github.com/openhistory/journalkit/internal/domain"
)

type stubHistorySource struct {
	entries []domain.HistoryEntry
	err     error
}

func (s *stubHistorySource) History(ctx context.Context, journableType string, journableID int64) ([]domain.HistoryEntry, error) {
	return s.entries, s.err
}

func TestWriteWorkbook(t *testing.T) {
	createdAt := time.Date(2024, 7, 1, 8, 0, 0, 0, time.UTC)
	source := &stubHistorySource{entries: []domain.HistoryEntry{
		{
			Journal: domain.Journal{ID: 1, Version: 1, UserID: 2, ActivityType: "work_items", Notes: "", CreatedAt: createdAt},
			Data: domain.SnapshotData{JournalID: 1, Values: map[string]null.String{
				"subject":     null.StringFrom("Initial subject"),
				"description": null.String{},
			}},
		},
		{
			Journal: domain.Journal{ID: 2, Version: 2, UserID: 2, ActivityType: "work_items", Notes: "changed it", CreatedAt: createdAt.Add(time.Hour)},
			Data: domain.SnapshotData{JournalID: 2, Values: map[string]null.String{
				"subject":     null.StringFrom("Edited subject"),
				"description": null.StringFrom("body"),
			}},
			Attachments: []domain.AttachableJournal{
				{JournalID: 2, AttachmentID: 7, Filename: "scan.pdf"},
			},
			CustomValues: []domain.CustomizableJournal{
				{JournalID: 2, CustomFieldID: 3, Value: "high"},
			},
		},
	}}

	service := NewService(source)

	var buf bytes.Buffer
	if err := service.WriteWorkbook(context.Background(), "WorkItem", 5, &buf); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	f, err := excelize.OpenReader(bytes.NewReader(buf.Bytes()))
	if err != nil {
		t.Fatalf("failed to reopen workbook: %v", err)
	}
	defer f.Close()

	version, err := f.GetCellValue(sheetJournals, "A2")
	if err != nil || version != "1" {
		t.Fatalf("unexpected first journal version %q (%v)", version, err)
	}
	notes, err := f.GetCellValue(sheetJournals, "E3")
	if err != nil || notes != "changed it" {
		t.Fatalf("unexpected notes cell %q (%v)", notes, err)
	}

	// Snapshot columns are sorted, so B=description, C=subject.
	header, err := f.GetCellValue(sheetSnapshots, "B1")
	if err != nil || header != "description" {
		t.Fatalf("unexpected snapshot header %q (%v)", header, err)
	}
	subject, err := f.GetCellValue(sheetSnapshots, "C3")
	if err != nil || subject != "Edited subject" {
		t.Fatalf("unexpected snapshot cell %q (%v)", subject, err)
	}

	filename, err := f.GetCellValue(sheetAttachments, "C2")
	if err != nil || filename != "scan.pdf" {
		t.Fatalf("unexpected attachment cell %q (%v)", filename, err)
	}
	customValue, err := f.GetCellValue(sheetCustomValues, "C2")
	if err != nil || customValue != "high" {
		t.Fatalf("unexpected custom value cell %q (%v)", customValue, err)
	}
}

func TestWriteWorkbookPropagatesSourceErrors(t *testing.T) {
	source := &stubHistorySource{err: errors.New("boom")}
	service := NewService(source)

	var buf bytes.Buffer
	if err := service.WriteWorkbook(context.Background(), "WorkItem", 5, &buf); err == nil {
		t.Fatalf("expected source error to propagate")
	}
}

func TestExportToFileUsesExportDirectory(t *testing.T) {
	source := &stubHistorySource{}
	dir := t.TempDir()
	service := NewService(source, WithExportDirectory(dir))

	path, err := service.ExportToFile(context.Background(), "WorkItem", 5)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if path == "" {
		t.Fatalf("expected a file path")
	}

	f, err := excelize.OpenFile(path)
	if err != nil {
		t.Fatalf("failed to open exported workbook: %v", err)
	}
	f.Close()
}
