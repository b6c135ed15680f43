package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/guregu/null/v5"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/openhistory/journalkit/internal/domain"
)

// userReferenceColumns are the snapshot columns rewritten when user accounts
// are merged or anonymized.
var userReferenceColumns = []string{"author_id", "user_id", "assigned_to_id", "responsible_id"}

// Querier is the minimal execution surface shared by pgxpool.Pool and
// pgx.Tx, so the repository can run inside or outside a caller's
// transaction.
type Querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// journalRepository implements JournalRepository against Postgres.
type journalRepository struct {
	q Querier
}

// NewJournalRepository creates a new journal repository.
func NewJournalRepository(q Querier) JournalRepository {
	return &journalRepository{q: q}
}

// newQueryBuilder returns a statement builder using Postgres placeholders.
func newQueryBuilder() sq.StatementBuilderType {
	return sq.StatementBuilder.PlaceholderFormat(sq.Dollar)
}

// Create runs the whole version allocation, change gate and snapshot
// materialization as one statement. QueryExecModeExec keeps the statement
// out of pgx's prepared-statement cache; the decision must be made against
// the true current row state.
func (r *journalRepository) Create(ctx context.Context, desc domain.Descriptor, journable domain.Journable, userID int64, notes string) (*domain.Journal, error) {
	params := createParams{
		desc:         desc,
		journableID:  journable.JournableID(),
		activityType: journable.ActivityType(),
		userID:       userID,
		notes:        notes,
	}
	if ts, ok := journable.LastUpdatedAt(); ok {
		params.updatedAt = &ts
	}

	query, args := buildCreateJournalSQL(params)

	row := r.q.QueryRow(ctx, query, append([]any{pgx.QueryExecModeExec}, args...)...)
	journal, err := scanJournal(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to create journal for %s #%d: %w", desc.Type, journable.JournableID(), err)
	}

	return &journal, nil
}

// HasPendingChanges counts surviving change rows against the latest journal.
func (r *journalRepository) HasPendingChanges(ctx context.Context, desc domain.Descriptor, journable domain.Journable) (bool, error) {
	query, args := buildPendingChangesSQL(desc, journable.JournableID())

	var count int64
	err := r.q.QueryRow(ctx, query, append([]any{pgx.QueryExecModeExec}, args...)...).Scan(&count)
	if err != nil {
		return false, fmt.Errorf("failed to detect pending changes for %s #%d: %w", desc.Type, journable.JournableID(), err)
	}

	return count > 0, nil
}

// LatestVersion returns the journable's highest recorded version, or 0.
func (r *journalRepository) LatestVersion(ctx context.Context, journableType string, journableID int64) (int64, error) {
	query, args, err := newQueryBuilder().
		Select("COALESCE(MAX(version), 0)").
		From("journals").
		Where(sq.Eq{"journable_type": journableType, "journable_id": journableID}).
		ToSql()
	if err != nil {
		return 0, fmt.Errorf("failed to build latest version query: %w", err)
	}

	var version int64
	if err := r.q.QueryRow(ctx, query, args...).Scan(&version); err != nil {
		return 0, fmt.Errorf("failed to get latest version for %s #%d: %w", journableType, journableID, err)
	}

	return version, nil
}

// ListJournals returns the journable's journals ordered by version.
func (r *journalRepository) ListJournals(ctx context.Context, journableType string, journableID int64) ([]domain.Journal, error) {
	query, args, err := newQueryBuilder().
		Select(journalColumns).
		From("journals").
		Where(sq.Eq{"journable_type": journableType, "journable_id": journableID}).
		OrderBy("version ASC").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to build journal list query: %w", err)
	}

	rows, err := r.q.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list journals for %s #%d: %w", journableType, journableID, err)
	}
	defer rows.Close()

	var journals []domain.Journal
	for rows.Next() {
		journal, err := scanJournal(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan journal row: %w", err)
		}
		journals = append(journals, journal)
	}

	return journals, rows.Err()
}

// GetJournalByVersion returns one journal by its per-journable version.
func (r *journalRepository) GetJournalByVersion(ctx context.Context, journableType string, journableID, version int64) (domain.Journal, error) {
	query, args, err := newQueryBuilder().
		Select(journalColumns).
		From("journals").
		Where(sq.Eq{"journable_type": journableType, "journable_id": journableID, "version": version}).
		ToSql()
	if err != nil {
		return domain.Journal{}, fmt.Errorf("failed to build journal query: %w", err)
	}

	journal, err := scanJournal(r.q.QueryRow(ctx, query, args...))
	if err != nil {
		return domain.Journal{}, fmt.Errorf("failed to get journal %s #%d v%d: %w", journableType, journableID, version, err)
	}

	return journal, nil
}

// GetSnapshotData reads one journal's snapshot row. Every column is cast to
// text so NULL stays distinguishable from the empty string regardless of the
// column's live type.
func (r *journalRepository) GetSnapshotData(ctx context.Context, desc domain.Descriptor, journalID int64) (domain.SnapshotData, error) {
	columns := desc.DataColumns()
	selects := make([]string, 0, len(columns)+1)
	selects = append(selects, "journal_id")
	for _, column := range columns {
		selects = append(selects, column+"::text")
	}

	query, args, err := newQueryBuilder().
		Select(selects...).
		From(desc.DataTable).
		Where(sq.Eq{"journal_id": journalID}).
		ToSql()
	if err != nil {
		return domain.SnapshotData{}, fmt.Errorf("failed to build snapshot query: %w", err)
	}

	targets := make([]any, 0, len(columns)+1)
	data := domain.SnapshotData{Values: make(map[string]null.String, len(columns))}
	targets = append(targets, &data.JournalID)
	values := make([]null.String, len(columns))
	for i := range values {
		targets = append(targets, &values[i])
	}

	if err := r.q.QueryRow(ctx, query, args...).Scan(targets...); err != nil {
		return domain.SnapshotData{}, fmt.Errorf("failed to get snapshot data for journal #%d: %w", journalID, err)
	}
	for i, column := range columns {
		data.Values[column] = values[i]
	}

	return data, nil
}

// ListAttachableJournals returns the attachment references captured for a
// journal.
func (r *journalRepository) ListAttachableJournals(ctx context.Context, journalID int64) ([]domain.AttachableJournal, error) {
	query, args, err := newQueryBuilder().
		Select("journal_id", "attachment_id", "filename").
		From("attachable_journals").
		Where(sq.Eq{"journal_id": journalID}).
		OrderBy("attachment_id ASC").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to build attachable journal query: %w", err)
	}

	rows, err := r.q.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list attachable journals for #%d: %w", journalID, err)
	}
	defer rows.Close()

	var attachables []domain.AttachableJournal
	for rows.Next() {
		var attachable domain.AttachableJournal
		if err := rows.Scan(&attachable.JournalID, &attachable.AttachmentID, &attachable.Filename); err != nil {
			return nil, fmt.Errorf("failed to scan attachable journal row: %w", err)
		}
		attachables = append(attachables, attachable)
	}

	return attachables, rows.Err()
}

// ListCustomizableJournals returns the custom values captured for a journal.
func (r *journalRepository) ListCustomizableJournals(ctx context.Context, journalID int64) ([]domain.CustomizableJournal, error) {
	query, args, err := newQueryBuilder().
		Select("journal_id", "custom_field_id", "value").
		From("customizable_journals").
		Where(sq.Eq{"journal_id": journalID}).
		OrderBy("custom_field_id ASC").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to build customizable journal query: %w", err)
	}

	rows, err := r.q.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list customizable journals for #%d: %w", journalID, err)
	}
	defer rows.Close()

	var customizables []domain.CustomizableJournal
	for rows.Next() {
		var customizable domain.CustomizableJournal
		if err := rows.Scan(&customizable.JournalID, &customizable.CustomFieldID, &customizable.Value); err != nil {
			return nil, fmt.Errorf("failed to scan customizable journal row: %w", err)
		}
		customizables = append(customizables, customizable)
	}

	return customizables, rows.Err()
}

// TouchJournable writes the journal's creation time into the journable's
// update-timestamp columns. A bare column update on purpose: no lock-version
// bump, no validation side effects.
func (r *journalRepository) TouchJournable(ctx context.Context, desc domain.Descriptor, journableID int64, ts time.Time) error {
	if len(desc.TimestampColumns) == 0 {
		return nil
	}

	update := newQueryBuilder().Update(desc.Table)
	for _, column := range desc.TimestampColumns {
		update = update.Set(column, ts)
	}

	query, args, err := update.Where(sq.Eq{"id": journableID}).ToSql()
	if err != nil {
		return fmt.Errorf("failed to build touch query: %w", err)
	}

	if _, err := r.q.Exec(ctx, query, args...); err != nil {
		return fmt.Errorf("failed to touch %s #%d: %w", desc.Type, journableID, err)
	}

	return nil
}

// ReassignUserReferences rewrites user-reference columns in every registered
// snapshot table. Administrative batch; each table updates independently.
func (r *journalRepository) ReassignUserReferences(ctx context.Context, descs []domain.Descriptor, fromUserID, toUserID int64) error {
	for _, desc := range descs {
		for _, column := range userReferenceColumns {
			if !containsColumn(desc.Columns, column) {
				continue
			}

			query, args, err := newQueryBuilder().
				Update(desc.DataTable).
				Set(column, toUserID).
				Where(sq.Eq{column: fromUserID}).
				ToSql()
			if err != nil {
				return fmt.Errorf("failed to build reassign query for %s.%s: %w", desc.DataTable, column, err)
			}

			if _, err := r.q.Exec(ctx, query, args...); err != nil {
				return fmt.Errorf("failed to reassign %s.%s from user #%d: %w", desc.DataTable, column, fromUserID, err)
			}
		}
	}

	return nil
}

// ValidateDescriptors verifies that every journaled column exists in the
// live table and that the data table can hold the snapshot, so a descriptor
// claiming unknown columns fails at startup instead of at write time.
func (r *journalRepository) ValidateDescriptors(ctx context.Context, descs []domain.Descriptor) error {
	for _, desc := range descs {
		liveColumns, err := r.tableColumns(ctx, desc.Table)
		if err != nil {
			return err
		}
		dataColumns, err := r.tableColumns(ctx, desc.DataTable)
		if err != nil {
			return err
		}

		for _, column := range desc.Columns {
			if _, ok := liveColumns[column]; !ok {
				return fmt.Errorf("descriptor %s journals column %s which does not exist in %s", desc.Type, column, desc.Table)
			}
			if _, ok := dataColumns[column]; !ok {
				return fmt.Errorf("descriptor %s has no column %s in data table %s", desc.Type, column, desc.DataTable)
			}
		}
		if _, ok := dataColumns["journal_id"]; !ok {
			return fmt.Errorf("data table %s is missing the journal_id column", desc.DataTable)
		}
		for _, column := range desc.TimestampColumns {
			if _, ok := liveColumns[column]; !ok {
				return fmt.Errorf("descriptor %s touches column %s which does not exist in %s", desc.Type, column, desc.Table)
			}
		}
	}

	return nil
}

func (r *journalRepository) tableColumns(ctx context.Context, table string) (map[string]struct{}, error) {
	query, args, err := newQueryBuilder().
		Select("column_name").
		From("information_schema.columns").
		Where(sq.Eq{"table_name": table}).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to build column lookup: %w", err)
	}

	rows, err := r.q.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to look up columns of %s: %w", table, err)
	}
	defer rows.Close()

	columns := map[string]struct{}{}
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, fmt.Errorf("failed to scan column name: %w", err)
		}
		columns[name] = struct{}{}
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if len(columns) == 0 {
		return nil, fmt.Errorf("table %s does not exist", table)
	}

	return columns, nil
}

func scanJournal(row pgx.Row) (domain.Journal, error) {
	var journal domain.Journal
	err := row.Scan(
		&journal.ID,
		&journal.JournableID,
		&journal.JournableType,
		&journal.Version,
		&journal.ActivityType,
		&journal.UserID,
		&journal.Notes,
		&journal.CreatedAt,
	)
	return journal, err
}

func containsColumn(columns []string, name string) bool {
	for _, column := range columns {
		if column == name {
			return true
		}
	}
	return false
}
