package domain

import (
	"fmt"
	"strings"

	"github.com/hashicorp/go-set/v2"
)

// AssociationSnapshot is one member of a many-valued association as captured
// in a journal: the referenced entity id plus the associated label or value.
type AssociationSnapshot struct {
	ReferencedID int64
	Value        string
}

// ValueChange is an [old, new] pair for one referenced entity. A nil side
// means the reference was absent in that snapshot.
type ValueChange struct {
	Old *string
	New *string
}

// AssociationChanges compares a predecessor and a current view of a
// many-valued association and returns additions, removals and modifications
// keyed by "<association>_<referencedID>". Members sharing a referenced id
// are combined into one comma-joined value before comparison; modifications
// compare the values with surrounding whitespace stripped.
func AssociationChanges(association string, current, predecessor []AssociationSnapshot) map[string]ValueChange {
	ids := set.New[int64](len(current) + len(predecessor))
	for _, snapshot := range current {
		ids.Insert(snapshot.ReferencedID)
	}
	for _, snapshot := range predecessor {
		ids.Insert(snapshot.ReferencedID)
	}

	changes := make(map[string]ValueChange)
	for _, id := range ids.Slice() {
		oldValue := combineValues(predecessor, id)
		newValue := combineValues(current, id)

		switch {
		case added(oldValue, newValue), removed(oldValue, newValue), modified(oldValue, newValue):
			changes[fmt.Sprintf("%s_%d", association, id)] = ValueChange{Old: oldValue, New: newValue}
		}
	}
	return changes
}

// combineValues joins the values of every snapshot member referencing id,
// or returns nil when none do.
func combineValues(snapshots []AssociationSnapshot, id int64) *string {
	var values []string
	for _, snapshot := range snapshots {
		if snapshot.ReferencedID == id {
			values = append(values, snapshot.Value)
		}
	}
	if len(values) == 0 {
		return nil
	}
	joined := strings.Join(values, ",")
	return &joined
}

func added(oldValue, newValue *string) bool {
	return oldValue == nil && present(newValue)
}

func removed(oldValue, newValue *string) bool {
	return present(oldValue) && newValue == nil
}

func modified(oldValue, newValue *string) bool {
	return present(oldValue) && present(newValue) &&
		strings.TrimSpace(*oldValue) != strings.TrimSpace(*newValue)
}

func present(value *string) bool {
	return value != nil && strings.TrimSpace(*value) != ""
}
