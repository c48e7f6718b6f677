package encounter

import (
	"context"
	"errors"
	"testing"
	"time"
)

// storeUnderTest exercises the Store contract shared by every backend.
func storeUnderTest(t *testing.T, s Store) {
	t.Helper()
	ctx := context.Background()

	if _, err := s.Get(ctx, "missing"); !errors.Is(err, ErrNotFound) {
		t.Errorf("get missing: got %v, want ErrNotFound", err)
	}
	if err := s.Delete(ctx, "missing"); !errors.Is(err, ErrNotFound) {
		t.Errorf("delete missing: got %v, want ErrNotFound", err)
	}

	base := time.Date(2025, 3, 1, 8, 0, 0, 0, time.UTC)
	older := &Encounter{
		AppointmentID: "a1", RecordID: "r1", Status: StatusBooked, Version: 1,
		CreatedAt: base, UpdatedAt: base,
		PatientInfo: PatientIdentity{PatientName: "John Doe"},
		Wounds:      []Wound{NewWound("1")},
	}
	newer := &Encounter{
		AppointmentID: "a2", RecordID: "r2", Status: StatusBooked, Version: 1,
		CreatedAt: base.Add(time.Hour), UpdatedAt: base.Add(time.Hour),
		Wounds:    []Wound{},
	}

	if err := s.Put(ctx, older); err != nil {
		t.Fatalf("put: %v", err)
	}
	if err := s.Put(ctx, newer); err != nil {
		t.Fatalf("put: %v", err)
	}

	got, err := s.Get(ctx, "a1")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.PatientInfo.PatientName != "John Doe" || len(got.Wounds) != 1 {
		t.Errorf("round trip lost data: %+v", got)
	}

	// mutating the returned copy must not leak into the store
	got.Wounds[0].Location = "changed"
	again, err := s.Get(ctx, "a1")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if again.Wounds[0].Location == "changed" {
		t.Error("store returns aliased state")
	}

	// overwrite replaces the stored record
	older.Version = 2
	if err := s.Put(ctx, older); err != nil {
		t.Fatalf("overwrite: %v", err)
	}
	got, err = s.Get(ctx, "a1")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.Version != 2 {
		t.Errorf("overwrite lost: version = %d", got.Version)
	}

	list, err := s.List(ctx)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(list) != 2 {
		t.Fatalf("list = %d entries, want 2", len(list))
	}
	if list[0].AppointmentID != "a2" || list[1].AppointmentID != "a1" {
		t.Errorf("list order = %s, %s; want newest created first",
			list[0].AppointmentID, list[1].AppointmentID)
	}

	if err := s.Delete(ctx, "a1"); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, err := s.Get(ctx, "a1"); !errors.Is(err, ErrNotFound) {
		t.Errorf("get after delete: got %v, want ErrNotFound", err)
	}
}

func TestMemoryStore(t *testing.T) {
	storeUnderTest(t, NewMemoryStore())
}

func TestFSStore(t *testing.T) {
	s, err := NewFSStore(t.TempDir())
	if err != nil {
		t.Fatalf("new store: %v", err)
	}
	storeUnderTest(t, s)
}

func TestFSStoreRejectsUnsafeIDs(t *testing.T) {
	s, err := NewFSStore(t.TempDir())
	if err != nil {
		t.Fatalf("new store: %v", err)
	}
	ctx := context.Background()
	for _, id := range []string{"", "../escape", "a/b", `a\b`} {
		if _, err := s.Get(ctx, id); err == nil || errors.Is(err, ErrNotFound) {
			t.Errorf("id %q accepted", id)
		}
	}
}
