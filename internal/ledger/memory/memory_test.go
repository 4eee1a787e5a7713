package memory

import (
	"context"
	"testing"
)

func TestUpsertTagsIdempotent(t *testing.T) {
	ctx := context.Background()
	l := New("Chemicals", "Pharma")

	added, err := l.UpsertTags(ctx, []string{"Solvents", "Pharma", "Solvents", " ", "Polymers"})
	if err != nil {
		t.Fatalf("upsert: %v", err)
	}
	if len(added) != 2 || added[0] != "Solvents" || added[1] != "Polymers" {
		t.Fatalf("unexpected added tags: %v", added)
	}

	// Re-sending the same tags must not create duplicate rows.
	added, err = l.UpsertTags(ctx, []string{"Solvents", "Polymers"})
	if err != nil {
		t.Fatalf("upsert again: %v", err)
	}
	if len(added) != 0 {
		t.Fatalf("expected no new rows, got %v", added)
	}

	rows := l.Rows()
	if len(rows) != 4 {
		t.Fatalf("expected 4 rows, got %d", len(rows))
	}
	// Ids are assigned sequentially by insert position, exactly once per name.
	for i, r := range rows {
		if r.ID != i+1 {
			t.Fatalf("row %d has id %d", i, r.ID)
		}
	}
}

func TestListTags(t *testing.T) {
	l := New("Chemicals")
	tags, err := l.ListTags(context.Background())
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(tags) != 1 || tags[0] != "Chemicals" {
		t.Fatalf("unexpected tags: %v", tags)
	}
}
