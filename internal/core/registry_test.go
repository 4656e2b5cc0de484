package core

import (
	"context"
	"testing"
)

func TestRegistry_ListOrder(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	names := []string{"first", "second", "third"}
	for _, name := range names {
		if _, err := svc.Import(ctx, name, "", []string{"a"}, Rows(nil)); err != nil {
			t.Fatalf("Import %q failed: %v", name, err)
		}
	}

	datasets, err := svc.List(ctx, false)
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if len(datasets) != 3 {
		t.Fatalf("got %d datasets, want 3", len(datasets))
	}
	// Most recent first.
	for i, want := range []string{"third", "second", "first"} {
		if datasets[i].Name != want {
			t.Errorf("datasets[%d].Name = %q, want %q", i, datasets[i].Name, want)
		}
	}
}

func TestRegistry_MultipleImportsRetained(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	a, err := svc.Import(ctx, "a", "", []string{"x"}, Rows([][]string{{"1"}}))
	if err != nil {
		t.Fatalf("Import a failed: %v", err)
	}
	b, err := svc.Import(ctx, "b", "", []string{"x"}, Rows([][]string{{"2"}}))
	if err != nil {
		t.Fatalf("Import b failed: %v", err)
	}
	if a.ID == b.ID {
		t.Fatalf("both imports produced dataset id %d", a.ID)
	}

	for _, ds := range []Dataset{a, b} {
		got, err := svc.Get(ctx, ds.ID)
		if err != nil {
			t.Fatalf("Get(%d) failed: %v", ds.ID, err)
		}
		if got.Name != ds.Name {
			t.Errorf("Get(%d).Name = %q, want %q", ds.ID, got.Name, ds.Name)
		}
	}
}

func TestRegistry_Delete(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	ds, err := svc.Import(ctx, "victim", "", []string{"a", "b"},
		Rows([][]string{{"1", "2"}}))
	if err != nil {
		t.Fatalf("Import failed: %v", err)
	}

	if err := svc.Delete(ctx, ds.ID); err != nil {
		t.Fatalf("Delete failed: %v", err)
	}

	if _, err := svc.Get(ctx, ds.ID); !IsNotFound(err) {
		t.Errorf("Get after delete = %v, want not found", err)
	}
	for _, table := range []string{"dataset", "column_name", "cell", "column_visibility", "dataset_flag"} {
		if got := countTable(t, svc, table); got != 0 {
			t.Errorf("%s rows after delete = %d, want 0", table, got)
		}
	}
}

func TestRegistry_DeleteMissingIsNoop(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	if _, err := svc.Import(ctx, "keep", "", []string{"a"}, Rows([][]string{{"1"}})); err != nil {
		t.Fatalf("Import failed: %v", err)
	}

	if err := svc.Delete(ctx, 424242); err != nil {
		t.Fatalf("Delete of missing id = %v, want nil", err)
	}
	if got := countTable(t, svc, "dataset"); got != 1 {
		t.Errorf("dataset rows = %d, want 1", got)
	}
}

func TestRegistry_SoftDelete(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	ds, err := svc.Import(ctx, "hidden", "", []string{"a"}, Rows([][]string{{"1"}}))
	if err != nil {
		t.Fatalf("Import failed: %v", err)
	}

	if err := svc.SoftDelete(ctx, ds.ID); err != nil {
		t.Fatalf("SoftDelete failed: %v", err)
	}

	visible, err := svc.List(ctx, false)
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if len(visible) != 0 {
		t.Errorf("visible datasets = %d, want 0", len(visible))
	}

	all, err := svc.List(ctx, true)
	if err != nil {
		t.Fatalf("List(includeDeleted) failed: %v", err)
	}
	if len(all) != 1 {
		t.Fatalf("all datasets = %d, want 1", len(all))
	}
	if all[0].DeletedAt == nil {
		t.Error("DeletedAt not set after soft delete")
	}

	// Data survives a soft delete.
	page, err := svc.QueryPage(ctx, ds.ID, 0, 50)
	if err != nil {
		t.Fatalf("QueryPage after soft delete failed: %v", err)
	}
	if len(page.Rows) != 1 {
		t.Errorf("rows = %d, want 1", len(page.Rows))
	}
}

func TestRegistry_Rename(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	ds, err := svc.Import(ctx, "before", "", []string{"a"}, Rows(nil))
	if err != nil {
		t.Fatalf("Import failed: %v", err)
	}

	if err := svc.Rename(ctx, ds.ID, "after"); err != nil {
		t.Fatalf("Rename failed: %v", err)
	}

	got, err := svc.Get(ctx, ds.ID)
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if got.Name != "after" {
		t.Errorf("Name = %q, want %q", got.Name, "after")
	}

	if err := svc.Rename(ctx, 999, "nope"); !IsNotFound(err) {
		t.Errorf("Rename of missing id = %v, want not found", err)
	}
}

func TestRegistry_ColumnVisibilityRoundTrip(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	ds, err := svc.Import(ctx, "vis", "", []string{"a", "b", "c"}, Rows(nil))
	if err != nil {
		t.Fatalf("Import failed: %v", err)
	}

	want := map[int64]bool{0: true, 1: false, 2: true}
	if err := svc.SaveColumnVisibility(ctx, ds.ID, want); err != nil {
		t.Fatalf("SaveColumnVisibility failed: %v", err)
	}

	got, err := svc.ColumnVisibility(ctx, ds.ID)
	if err != nil {
		t.Fatalf("ColumnVisibility failed: %v", err)
	}
	if len(got) != len(want) {
		t.Fatalf("got %d entries, want %d", len(got), len(want))
	}
	for colIdx, visible := range want {
		if got[colIdx] != visible {
			t.Errorf("col %d = %v, want %v", colIdx, got[colIdx], visible)
		}
	}

	// Saving again replaces, not appends.
	if err := svc.SaveColumnVisibility(ctx, ds.ID, map[int64]bool{1: true}); err != nil {
		t.Fatalf("second SaveColumnVisibility failed: %v", err)
	}
	got, err = svc.ColumnVisibility(ctx, ds.ID)
	if err != nil {
		t.Fatalf("ColumnVisibility failed: %v", err)
	}
	if len(got) != 1 {
		t.Errorf("got %d entries after replace, want 1", len(got))
	}

	if err := svc.SaveColumnVisibility(ctx, 999, map[int64]bool{0: true}); !IsNotFound(err) {
		t.Errorf("SaveColumnVisibility on missing dataset = %v, want not found", err)
	}
}

func TestRegistry_FlagRoundTrip(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	a, err := svc.Import(ctx, "flagged", "", []string{"x"}, Rows(nil))
	if err != nil {
		t.Fatalf("Import failed: %v", err)
	}
	b, err := svc.Import(ctx, "plain", "", []string{"x"}, Rows(nil))
	if err != nil {
		t.Fatalf("Import failed: %v", err)
	}

	if err := svc.SetFlag(ctx, a.ID, true); err != nil {
		t.Fatalf("SetFlag failed: %v", err)
	}

	flags, err := svc.Flags(ctx)
	if err != nil {
		t.Fatalf("Flags failed: %v", err)
	}
	if !flags[a.ID] {
		t.Errorf("dataset %d not flagged", a.ID)
	}
	if _, ok := flags[b.ID]; ok {
		t.Errorf("dataset %d has a flag entry without one being set", b.ID)
	}

	// Setting again replaces the stored value.
	if err := svc.SetFlag(ctx, a.ID, false); err != nil {
		t.Fatalf("second SetFlag failed: %v", err)
	}
	flags, err = svc.Flags(ctx)
	if err != nil {
		t.Fatalf("Flags failed: %v", err)
	}
	if flags[a.ID] {
		t.Errorf("dataset %d still flagged after clearing", a.ID)
	}

	if err := svc.SetFlag(ctx, 999, true); !IsNotFound(err) {
		t.Errorf("SetFlag on missing dataset = %v, want not found", err)
	}
}

func TestRegistry_DeleteRemovesFlag(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	ds, err := svc.Import(ctx, "tagged", "", []string{"x"}, Rows(nil))
	if err != nil {
		t.Fatalf("Import failed: %v", err)
	}
	if err := svc.SetFlag(ctx, ds.ID, true); err != nil {
		t.Fatalf("SetFlag failed: %v", err)
	}

	if err := svc.Delete(ctx, ds.ID); err != nil {
		t.Fatalf("Delete failed: %v", err)
	}
	if got := countTable(t, svc, "dataset_flag"); got != 0 {
		t.Errorf("dataset_flag rows after delete = %d, want 0", got)
	}
}

func TestEvents_CommitAndDelete(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	events, cancel := svc.Subscribe()
	defer cancel()

	ds, err := svc.Import(ctx, "observed", "", []string{"a"}, Rows(nil))
	if err != nil {
		t.Fatalf("Import failed: %v", err)
	}

	ev := <-events
	if ev.Type != EventDatasetCommitted {
		t.Errorf("event type = %q, want %q", ev.Type, EventDatasetCommitted)
	}
	if ev.Dataset.ID != ds.ID {
		t.Errorf("event dataset id = %d, want %d", ev.Dataset.ID, ds.ID)
	}

	if err := svc.Delete(ctx, ds.ID); err != nil {
		t.Fatalf("Delete failed: %v", err)
	}

	ev = <-events
	if ev.Type != EventDatasetDeleted {
		t.Errorf("event type = %q, want %q", ev.Type, EventDatasetDeleted)
	}
	if ev.Dataset.ID != ds.ID {
		t.Errorf("event dataset id = %d, want %d", ev.Dataset.ID, ds.ID)
	}
}
