package export

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/xuri/excelize/v2"

	"github.com/openhistory/journalkit/internal/domain"
)

// HistorySource yields a journable's full journal trail. Satisfied by the
// journal service.
type HistorySource interface {
	History(ctx context.Context, journableType string, journableID int64) ([]domain.HistoryEntry, error)
}

// Service renders journal histories to xlsx workbooks.
type Service struct {
	source    HistorySource
	exportDir string
}

type Option func(*Service)

// WithExportDirectory customizes where ExportToFile writes workbooks.
func WithExportDirectory(dir string) Option {
	return func(s *Service) {
		if strings.TrimSpace(dir) != "" {
			s.exportDir = filepath.Clean(dir)
		}
	}
}

// NewService creates a new export service.
func NewService(source HistorySource, opts ...Option) *Service {
	service := &Service{
		source:    source,
		exportDir: filepath.Join(os.TempDir(), "journalkit-exports"),
	}
	for _, opt := range opts {
		opt(service)
	}
	return service
}

// WriteWorkbook streams the journable's history as an xlsx workbook.
func (s *Service) WriteWorkbook(ctx context.Context, journableType string, journableID int64, w io.Writer) error {
	entries, err := s.source.History(ctx, journableType, journableID)
	if err != nil {
		return err
	}

	f, err := buildWorkbook(journableType, journableID, entries)
	if err != nil {
		return err
	}
	defer f.Close()

	if err := f.Write(w); err != nil {
		return fmt.Errorf("failed to write workbook: %w", err)
	}
	return nil
}

// ExportToFile writes the workbook under the export directory and returns
// its path.
func (s *Service) ExportToFile(ctx context.Context, journableType string, journableID int64) (string, error) {
	entries, err := s.source.History(ctx, journableType, journableID)
	if err != nil {
		return "", err
	}

	f, err := buildWorkbook(journableType, journableID, entries)
	if err != nil {
		return "", err
	}
	defer f.Close()

	if err := os.MkdirAll(s.exportDir, 0o755); err != nil {
		return "", fmt.Errorf("failed to create export directory: %w", err)
	}

	path := filepath.Join(s.exportDir, fmt.Sprintf("%s-%d-%s.xlsx", strings.ToLower(journableType), journableID, uuid.NewString()))
	if err := f.SaveAs(path); err != nil {
		return "", fmt.Errorf("failed to save workbook: %w", err)
	}
	return path, nil
}

const (
	sheetJournals     = "Journals"
	sheetSnapshots    = "Snapshots"
	sheetAttachments  = "Attachments"
	sheetCustomValues = "CustomValues"
)

func buildWorkbook(journableType string, journableID int64, entries []domain.HistoryEntry) (*excelize.File, error) {
	f := excelize.NewFile()
	f.SetSheetName("Sheet1", sheetJournals)
	for _, sheet := range []string{sheetSnapshots, sheetAttachments, sheetCustomValues} {
		if _, err := f.NewSheet(sheet); err != nil {
			f.Close()
			return nil, fmt.Errorf("failed to create sheet %s: %w", sheet, err)
		}
	}

	if err := writeRow(f, sheetJournals, 1, []any{"Version", "CreatedAt", "UserID", "ActivityType", "Notes"}); err != nil {
		f.Close()
		return nil, err
	}

	columns := snapshotColumns(entries)
	header := append([]any{"Version"}, toAnySlice(columns)...)
	if err := writeRow(f, sheetSnapshots, 1, header); err != nil {
		f.Close()
		return nil, err
	}
	if err := writeRow(f, sheetAttachments, 1, []any{"Version", "AttachmentID", "Filename"}); err != nil {
		f.Close()
		return nil, err
	}
	if err := writeRow(f, sheetCustomValues, 1, []any{"Version", "CustomFieldID", "Value"}); err != nil {
		f.Close()
		return nil, err
	}

	attachmentRow := 2
	customValueRow := 2
	for i, entry := range entries {
		row := i + 2
		j := entry.Journal
		if err := writeRow(f, sheetJournals, row, []any{j.Version, j.CreatedAt.UTC().Format(time.RFC3339), j.UserID, j.ActivityType, j.Notes}); err != nil {
			f.Close()
			return nil, err
		}

		snapshot := []any{j.Version}
		for _, column := range columns {
			value := entry.Data.Values[column]
			if value.Valid {
				snapshot = append(snapshot, value.String)
			} else {
				snapshot = append(snapshot, nil)
			}
		}
		if err := writeRow(f, sheetSnapshots, row, snapshot); err != nil {
			f.Close()
			return nil, err
		}

		for _, attachment := range entry.Attachments {
			if err := writeRow(f, sheetAttachments, attachmentRow, []any{j.Version, attachment.AttachmentID, attachment.Filename}); err != nil {
				f.Close()
				return nil, err
			}
			attachmentRow++
		}
		for _, customValue := range entry.CustomValues {
			if err := writeRow(f, sheetCustomValues, customValueRow, []any{j.Version, customValue.CustomFieldID, customValue.Value}); err != nil {
				f.Close()
				return nil, err
			}
			customValueRow++
		}
	}

	return f, nil
}

func snapshotColumns(entries []domain.HistoryEntry) []string {
	if len(entries) == 0 {
		return nil
	}
	columns := make([]string, 0, len(entries[0].Data.Values))
	for column := range entries[0].Data.Values {
		columns = append(columns, column)
	}
	sort.Strings(columns)
	return columns
}

func writeRow(f *excelize.File, sheet string, row int, values []any) error {
	cell, err := excelize.CoordinatesToCellName(1, row)
	if err != nil {
		return fmt.Errorf("failed to address row %d: %w", row, err)
	}
	if err := f.SetSheetRow(sheet, cell, &values); err != nil {
		return fmt.Errorf("failed to write row %d of %s: %w", row, sheet, err)
	}
	return nil
}

func toAnySlice(values []string) []any {
	out := make([]any, len(values))
	for i, value := range values {
		out[i] = value
	}
	return out
}
