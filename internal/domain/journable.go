package domain

import (
	"fmt"
	"sort"
	"strings"
	"time"
)

// Journable is the capability an entity type implements to participate in
// journaling. The engine never inspects the entity beyond this contract;
// all state diffing happens against the live tables named by the type's
// Descriptor.
type Journable interface {
	// JournableID is the surrogate key of the entity row.
	JournableID() int64
	// JournableType matches the Descriptor registered for the entity type
	// and is stored on every journal row.
	JournableType() string
	// ActivityType tags journals for downstream activity listing.
	ActivityType() string
	// LastUpdatedAt returns the entity's own last-modified timestamp, if it
	// tracks one. Used to back-date journals created without notes.
	LastUpdatedAt() (time.Time, bool)
}

// Descriptor declares how one entity type is journaled: which live table
// holds its state, which snapshot table receives copies, which columns are
// journaled and which of those are large-text columns requiring newline
// normalization.
type Descriptor struct {
	// Type is the journable type key, e.g. "WorkItem".
	Type string
	// ContainerType scopes attachment and custom-value rows to the entity,
	// matching attachments.container_type / custom_values.customized_type.
	ContainerType string
	// Table is the live entity table.
	Table string
	// DataTable is the append-only snapshot table, one row per journal.
	DataTable string
	// Columns lists the journaled column names in declaration order.
	Columns []string
	// TextColumns is the subset of Columns holding large text. These are
	// compared and stored in CRLF-normalized form.
	TextColumns []string
	// SourceRestriction is an optional SQL fragment appended to the live
	// table subselect, narrowing which rows count as current state
	// (e.g. "WHERE work_items.deleted_at IS NULL").
	SourceRestriction string
	// TimestampColumns are the update-timestamp columns advanced by the
	// post-write touch hook.
	TimestampColumns []string
}

// Validate checks the descriptor's internal consistency. Live-schema
// validation against information_schema is the repository's job.
func (d Descriptor) Validate() error {
	if d.Type == "" {
		return fmt.Errorf("descriptor is missing a type key")
	}
	if d.Table == "" || d.DataTable == "" {
		return fmt.Errorf("descriptor %s must name a live table and a data table", d.Type)
	}
	if len(d.Columns) == 0 {
		return fmt.Errorf("descriptor %s journals no columns", d.Type)
	}
	seen := make(map[string]struct{}, len(d.Columns))
	for _, column := range d.Columns {
		if column == "" {
			return fmt.Errorf("descriptor %s contains an empty column name", d.Type)
		}
		if _, dup := seen[column]; dup {
			return fmt.Errorf("descriptor %s journals column %s twice", d.Type, column)
		}
		seen[column] = struct{}{}
	}
	for _, column := range d.TextColumns {
		if _, ok := seen[column]; !ok {
			return fmt.Errorf("descriptor %s declares text column %s outside its journaled columns", d.Type, column)
		}
	}
	return nil
}

// IsTextColumn reports whether the named column is journaled as large text.
func (d Descriptor) IsTextColumn(name string) bool {
	for _, column := range d.TextColumns {
		if column == name {
			return true
		}
	}
	return false
}

// ScalarColumns returns the journaled columns that are not text columns,
// preserving declaration order.
func (d Descriptor) ScalarColumns() []string {
	columns := make([]string, 0, len(d.Columns))
	for _, column := range d.Columns {
		if !d.IsTextColumn(column) {
			columns = append(columns, column)
		}
	}
	return columns
}

// DataColumns returns the snapshot column ordering shared by the sink and
// source sides of the snapshot insert: scalar columns in declaration order,
// then text columns.
func (d Descriptor) DataColumns() []string {
	ordered := d.ScalarColumns()
	for _, column := range d.Columns {
		if d.IsTextColumn(column) {
			ordered = append(ordered, column)
		}
	}
	return ordered
}

// Registry maps journable type keys to their descriptors. It is populated
// once at startup; lookups are read-only afterwards.
type Registry struct {
	descriptors map[string]Descriptor
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{descriptors: map[string]Descriptor{}}
}

// Register adds a descriptor, rejecting duplicates and inconsistent
// declarations up front so misconfiguration surfaces at startup rather than
// at write time.
func (r *Registry) Register(desc Descriptor) error {
	if err := desc.Validate(); err != nil {
		return err
	}
	if _, exists := r.descriptors[desc.Type]; exists {
		return fmt.Errorf("journable type %s registered twice", desc.Type)
	}
	r.descriptors[desc.Type] = desc
	return nil
}

// Lookup returns the descriptor for a journable type.
func (r *Registry) Lookup(journableType string) (Descriptor, bool) {
	desc, ok := r.descriptors[journableType]
	return desc, ok
}

// IsJournaled reports whether the journable's type participates in
// journaling at all.
func (r *Registry) IsJournaled(journable Journable) bool {
	if journable == nil {
		return false
	}
	_, ok := r.descriptors[journable.JournableType()]
	return ok
}

// Descriptors returns all registered descriptors ordered by type key.
func (r *Registry) Descriptors() []Descriptor {
	keys := make([]string, 0, len(r.descriptors))
	for key := range r.descriptors {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	descs := make([]Descriptor, 0, len(keys))
	for _, key := range keys {
		descs = append(descs, r.descriptors[key])
	}
	return descs
}

// NormalizeNewlines converts CRLF sequences to bare LF. Upstream editors
// introduce CRLF line endings that are not meaningful changes, so text
// columns and custom values are compared and stored in this canonical form.
func NormalizeNewlines(value string) string {
	return strings.ReplaceAll(value, "\r\n", "\n")
}
