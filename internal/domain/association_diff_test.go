package domain

import "testing"

func TestAssociationChangesAddedRemovedChanged(t *testing.T) {
	predecessor := []AssociationSnapshot{
		{ReferencedID: 1, Value: "keep"},
		{ReferencedID: 2, Value: "drop"},
		{ReferencedID: 3, Value: "before"},
	}
	current := []AssociationSnapshot{
		{ReferencedID: 1, Value: "keep"},
		{ReferencedID: 3, Value: "after"},
		{ReferencedID: 4, Value: "new"},
	}

	changes := AssociationChanges("relation", current, predecessor)

	if len(changes) != 3 {
		t.Fatalf("expected 3 changes, got %d: %v", len(changes), changes)
	}

	removed, ok := changes["relation_2"]
	if !ok || removed.Old == nil || *removed.Old != "drop" || removed.New != nil {
		t.Fatalf("unexpected removal entry: %+v", removed)
	}

	changed, ok := changes["relation_3"]
	if !ok || changed.Old == nil || changed.New == nil || *changed.Old != "before" || *changed.New != "after" {
		t.Fatalf("unexpected modification entry: %+v", changed)
	}

	added, ok := changes["relation_4"]
	if !ok || added.Old != nil || added.New == nil || *added.New != "new" {
		t.Fatalf("unexpected addition entry: %+v", added)
	}

	if _, ok := changes["relation_1"]; ok {
		t.Fatalf("unchanged member must not be reported")
	}
}

func TestAssociationChangesStripsBeforeComparing(t *testing.T) {
	predecessor := []AssociationSnapshot{{ReferencedID: 1, Value: "  value  "}}
	current := []AssociationSnapshot{{ReferencedID: 1, Value: "value"}}

	if changes := AssociationChanges("relation", current, predecessor); len(changes) != 0 {
		t.Fatalf("whitespace-only difference must not be a change: %v", changes)
	}
}

func TestAssociationChangesCombinesMembersByID(t *testing.T) {
	predecessor := []AssociationSnapshot{
		{ReferencedID: 5, Value: "a"},
	}
	current := []AssociationSnapshot{
		{ReferencedID: 5, Value: "a"},
		{ReferencedID: 5, Value: "b"},
	}

	changes := AssociationChanges("relation", current, predecessor)

	change, ok := changes["relation_5"]
	if !ok {
		t.Fatalf("expected a modification for id 5: %v", changes)
	}
	if change.Old == nil || *change.Old != "a" {
		t.Fatalf("unexpected old value: %+v", change)
	}
	if change.New == nil || *change.New != "a,b" {
		t.Fatalf("expected combined new value a,b, got %+v", change)
	}
}

func TestAssociationChangesBlankValuesAreAbsent(t *testing.T) {
	predecessor := []AssociationSnapshot{}
	current := []AssociationSnapshot{{ReferencedID: 7, Value: "   "}}

	if changes := AssociationChanges("relation", current, predecessor); len(changes) != 0 {
		t.Fatalf("blank value must not count as an addition: %v", changes)
	}
}

func TestAssociationChangesEmptyInputs(t *testing.T) {
	if changes := AssociationChanges("relation", nil, nil); len(changes) != 0 {
		t.Fatalf("expected no changes for empty snapshots, got %v", changes)
	}
}
