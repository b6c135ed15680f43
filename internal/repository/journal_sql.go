package repository

import (
	"fmt"
	"strings"
	"time"

	"github.com/openhistory/journalkit/internal/domain"
)

// journalColumns is the column list returned for every journal row.
const journalColumns = "id, journable_id, journable_type, version, activity_type, user_id, notes, created_at"

// sqlArgs collects positional parameters while SQL text is assembled.
// add returns the placeholder for the appended value, so the same value can
// be registered once and spliced anywhere.
type sqlArgs struct {
	values []any
}

func (a *sqlArgs) add(value any) string {
	a.values = append(a.values, value)
	return fmt.Sprintf("$%d", len(a.values))
}

// createParams carries everything the conditional insert needs.
type createParams struct {
	desc         domain.Descriptor
	journableID  int64
	activityType string
	userID       int64
	notes        string
	// updatedAt back-dates the journal when set and notes are empty.
	updatedAt *time.Time
}

// buildCreateJournalSQL assembles the single atomic statement that computes
// the latest version, decides whether a new journal is due, inserts it and
// materializes its snapshot rows. Concurrent callers observe the whole chain
// as one operation, so two of them can never allocate the same version or
// both skip insertion off a stale read.
func buildCreateJournalSQL(params createParams) (string, []any) {
	args := &sqlArgs{}

	journableID := args.add(params.journableID)
	journableType := args.add(params.desc.Type)
	containerType := args.add(params.desc.ContainerType)

	blankNotes := strings.TrimSpace(params.notes) == ""

	condition := ""
	if blankNotes {
		condition = "WHERE EXISTS (SELECT 1 FROM changes)"
	}

	timestamp := "now()"
	if blankNotes && params.updatedAt != nil {
		timestamp = args.add(*params.updatedAt) + "::timestamptz"
	}

	insertJournal := fmt.Sprintf(`INSERT INTO journals (
  journable_id,
  journable_type,
  version,
  activity_type,
  user_id,
  notes,
  created_at
)
SELECT
  %s::bigint,
  %s::text,
  COALESCE(max_journals.version, 0) + 1,
  %s::text,
  %s::bigint,
  %s::text,
  %s
FROM max_journals
%s
RETURNING %s`,
		journableID,
		journableType,
		args.add(params.activityType),
		args.add(params.userID),
		args.add(params.notes),
		timestamp,
		condition,
		journalColumns,
	)

	sinkColumns := params.desc.DataColumns()
	sourceColumns := make([]string, 0, len(sinkColumns))
	for _, column := range sinkColumns {
		if params.desc.IsTextColumn(column) {
			sourceColumns = append(sourceColumns, normalizeNewlinesSQL(column))
		} else {
			sourceColumns = append(sourceColumns, column)
		}
	}

	insertData := fmt.Sprintf(`INSERT INTO %s (
  journal_id,
  %s
)
SELECT
  (SELECT id FROM inserted_journal),
  %s
FROM %s
WHERE
  EXISTS (SELECT 1 FROM inserted_journal)
  AND %s.id = %s`,
		params.desc.DataTable,
		strings.Join(sinkColumns, ", "),
		strings.Join(sourceColumns, ", "),
		restrictedSource(params.desc),
		params.desc.Table,
		journableID,
	)

	insertAttachable := fmt.Sprintf(`INSERT INTO attachable_journals (
  journal_id,
  attachment_id,
  filename
)
SELECT
  (SELECT id FROM inserted_journal),
  attachments.id,
  attachments.file
FROM attachments
WHERE
  EXISTS (SELECT 1 FROM inserted_journal)
  AND attachments.container_id = %s
  AND attachments.container_type = %s`,
		journableID,
		containerType,
	)

	insertCustomizable := fmt.Sprintf(`INSERT INTO customizable_journals (
  journal_id,
  custom_field_id,
  value
)
SELECT
  (SELECT id FROM inserted_journal),
  custom_values.custom_field_id,
  %s
FROM custom_values
WHERE
  EXISTS (SELECT 1 FROM inserted_journal)
  AND custom_values.customized_id = %s
  AND custom_values.customized_type = %s
  AND custom_values.value IS NOT NULL
  AND custom_values.value != ''`,
		normalizeNewlinesSQL("custom_values.value"),
		journableID,
		containerType,
	)

	sql := fmt.Sprintf(`WITH max_journals AS (
%s
), changes AS (
%s
), inserted_journal AS (
%s
), insert_data AS (
%s
), insert_attachable AS (
%s
), insert_customizable AS (
%s
)
SELECT %s FROM inserted_journal`,
		maxJournalsSQL(journableID, journableType),
		changesSQL(params.desc, journableID, containerType),
		insertJournal,
		insertData,
		insertAttachable,
		insertCustomizable,
		journalColumns,
	)

	return sql, args.values
}

// buildPendingChangesSQL assembles the read-only variant: the same change
// detection joined against the latest journal, reduced to a row count.
func buildPendingChangesSQL(desc domain.Descriptor, id int64) (string, []any) {
	args := &sqlArgs{}

	journableID := args.add(id)
	journableType := args.add(desc.Type)
	containerType := args.add(desc.ContainerType)

	sql := fmt.Sprintf(`WITH max_journals AS (
%s
)
SELECT COUNT(*) FROM (
%s
) changes`,
		maxJournalsSQL(journableID, journableType),
		changesSQL(desc, journableID, containerType),
	)

	return sql, args.values
}

// maxJournalsSQL selects the journable's single most recent journal. The
// right outer join against a synthetic version 0 guarantees one row even for
// an entity with no history, so the first journal allocates version 1 and a
// fresh entity still registers its non-empty state as pending changes.
func maxJournalsSQL(journableID, journableType string) string {
	return fmt.Sprintf(`SELECT
  %[1]s::bigint AS journable_id,
  %[2]s::text AS journable_type,
  COALESCE(journals.version, fallback.version) AS version,
  COALESCE(journals.id, 0) AS id
FROM journals
RIGHT OUTER JOIN
  (SELECT 0 AS version) fallback
ON
  journals.journable_id = %[1]s
  AND journals.journable_type = %[2]s
  AND journals.version IN (SELECT MAX(version) FROM journals WHERE journable_id = %[1]s AND journable_type = %[2]s)`,
		journableID, journableType)
}

// changesSQL full-joins the three change categories. Any surviving row means
// the entity differs from its latest snapshot.
func changesSQL(desc domain.Descriptor, journableID, containerType string) string {
	return fmt.Sprintf(`SELECT
  *
FROM
  (%s) data_changes
FULL JOIN
  (%s) customizable_changes
ON
  customizable_changes.journable_id = data_changes.journable_id
FULL JOIN
  (%s) attachable_changes
ON
  attachable_changes.journable_id = data_changes.journable_id`,
		dataChangesSQL(desc, journableID),
		customizableChangesSQL(journableID, containerType),
		attachableChangesSQL(journableID, containerType),
	)
}

// dataChangesSQL compares the live row against the latest snapshot column by
// column. Scalar columns treat a null/non-null flip as a change; text
// columns compare in LF-normalized form.
func dataChangesSQL(desc domain.Descriptor, journableID string) string {
	conditions := make([]string, 0, len(desc.Columns))
	for _, column := range desc.ScalarColumns() {
		conditions = append(conditions, fmt.Sprintf(
			"(%[1]s.%[3]s != %[2]s.%[3]s) OR (%[1]s.%[3]s IS NULL AND %[2]s.%[3]s IS NOT NULL) OR (%[1]s.%[3]s IS NOT NULL AND %[2]s.%[3]s IS NULL)",
			desc.Table, desc.DataTable, column,
		))
	}
	for _, column := range desc.Columns {
		if !desc.IsTextColumn(column) {
			continue
		}
		conditions = append(conditions, fmt.Sprintf(
			"%s != %s",
			normalizeNewlinesSQL(desc.Table+"."+column),
			normalizeNewlinesSQL(desc.DataTable+"."+column),
		))
	}

	return fmt.Sprintf(`SELECT
  %[1]s.id AS journable_id
FROM
  %[2]s
LEFT JOIN
  (SELECT max_journals.journable_id AS journable_id, %[3]s.* FROM max_journals
   JOIN %[3]s ON %[3]s.journal_id = max_journals.id) %[3]s
ON
  %[1]s.id = %[3]s.journable_id
WHERE
  %[1]s.id = %[4]s AND (%[5]s)`,
		desc.Table,
		restrictedSource(desc),
		desc.DataTable,
		journableID,
		strings.Join(conditions, " OR "),
	)
}

// attachableChangesSQL detects a symmetric difference between the live
// attachment set and the latest snapshot's attachment set.
func attachableChangesSQL(journableID, containerType string) string {
	return fmt.Sprintf(`SELECT
  max_journals.journable_id
FROM
  max_journals
LEFT OUTER JOIN
  attachable_journals
ON
  attachable_journals.journal_id = max_journals.id
FULL JOIN
  (SELECT *
   FROM attachments
   WHERE attachments.container_id = %s AND attachments.container_type = %s) attachments
ON
  attachments.id = attachable_journals.attachment_id
WHERE
  (attachments.id IS NULL AND attachable_journals.attachment_id IS NOT NULL)
  OR (attachable_journals.attachment_id IS NULL AND attachments.id IS NOT NULL)`,
		journableID, containerType)
}

// customizableChangesSQL detects custom-field value changes, with an
// empty-string live value counting as absent and both sides compared in
// LF-normalized form.
func customizableChangesSQL(journableID, containerType string) string {
	return fmt.Sprintf(`SELECT
  max_journals.journable_id
FROM
  max_journals
LEFT OUTER JOIN
  customizable_journals
ON
  customizable_journals.journal_id = max_journals.id
FULL JOIN
  (SELECT *
   FROM custom_values
   WHERE custom_values.customized_id = %s AND custom_values.customized_type = %s) custom_values
ON
  custom_values.custom_field_id = customizable_journals.custom_field_id
WHERE
  (custom_values.value IS NULL AND customizable_journals.value IS NOT NULL)
  OR (customizable_journals.value IS NULL AND custom_values.value IS NOT NULL AND custom_values.value != '')
  OR (%s != %s)`,
		journableID, containerType,
		normalizeNewlinesSQL("customizable_journals.value"),
		normalizeNewlinesSQL("custom_values.value"),
	)
}

// restrictedSource wraps the live table in a subselect carrying the
// descriptor's optional source restriction, aliased back to the table name
// so column references stay uniform.
func restrictedSource(desc domain.Descriptor) string {
	if desc.SourceRestriction == "" {
		return fmt.Sprintf("(SELECT * FROM %s) %s", desc.Table, desc.Table)
	}
	return fmt.Sprintf("(SELECT * FROM %s %s) %s", desc.Table, desc.SourceRestriction, desc.Table)
}

// normalizeNewlinesSQL renders a column read through CRLF normalization,
// with NULL collapsing to the empty string for comparison purposes.
func normalizeNewlinesSQL(column string) string {
	return fmt.Sprintf(`REGEXP_REPLACE(COALESCE(%s, ''), E'\\r\\n', E'\n', 'g')`, column)
}
