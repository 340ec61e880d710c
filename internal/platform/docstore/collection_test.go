package docstore

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"
)

type entry struct {
	ID        string `json:"id"`
	PatientID string `json:"patientId"`
	Note      string `json:"note"`
	CreatedAt string `json:"createdAt"`
	UpdatedAt string `json:"updatedAt"`
}

var entryAccessors = Accessors[entry]{
	ID:        func(e *entry) string { return e.ID },
	CreatedAt: func(e *entry) string { return e.CreatedAt },
	Stamp: func(e *entry, c, u string) {
		e.CreatedAt = c
		e.UpdatedAt = u
	},
}

type stepClock struct {
	t time.Time
}

func (c *stepClock) now() time.Time {
	c.t = c.t.Add(time.Minute)
	return c.t
}

func newEntries(t *testing.T) (*Collection[entry], *Memory) {
	t.Helper()
	mem := NewMemory()
	clock := &stepClock{t: time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)}
	docs := NewDocuments(mem, zerolog.Nop())
	return NewCollection(docs, MedicalRecords, entryAccessors, clock.now), mem
}

func TestFormatTime(t *testing.T) {
	loc := time.FixedZone("CET", 3600)
	got := FormatTime(time.Date(2024, 3, 1, 10, 30, 0, 5e6, loc))
	if got != "2024-03-01T09:30:00.005Z" {
		t.Errorf("unexpected timestamp %q", got)
	}
}

func TestCollection_UpsertRoundTrip(t *testing.T) {
	c, _ := newEntries(t)
	ctx := context.Background()

	e := entry{ID: "r1", PatientID: "2024-001", Note: "first"}
	if err := c.Upsert(ctx, &e); err != nil {
		t.Fatalf("Upsert: %v", err)
	}
	if e.CreatedAt == "" || e.CreatedAt != e.UpdatedAt {
		t.Fatalf("new entity should get equal timestamps, got %q / %q", e.CreatedAt, e.UpdatedAt)
	}
	created := e.CreatedAt

	e.Note = "second"
	e.CreatedAt = "1999-01-01T00:00:00.000Z"
	if err := c.Upsert(ctx, &e); err != nil {
		t.Fatalf("Upsert: %v", err)
	}

	all, err := c.All(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(all) != 1 {
		t.Fatalf("repeated upsert must not duplicate, got %d", len(all))
	}
	if all[0].Note != "second" {
		t.Errorf("expected replaced note, got %q", all[0].Note)
	}
	if all[0].CreatedAt != created {
		t.Errorf("createdAt changed from %q to %q", created, all[0].CreatedAt)
	}
	if all[0].UpdatedAt == created {
		t.Error("updatedAt should be refreshed")
	}
}

func TestCollection_FilterKeepsInsertionOrder(t *testing.T) {
	c, _ := newEntries(t)
	ctx := context.Background()

	for _, e := range []entry{
		{ID: "a", PatientID: "P1"},
		{ID: "b", PatientID: "P2"},
		{ID: "c", PatientID: "P1"},
		{ID: "d", PatientID: "P10"},
	} {
		e := e
		if err := c.Upsert(ctx, &e); err != nil {
			t.Fatal(err)
		}
	}

	got, err := c.Filter(ctx, func(e *entry) bool { return e.PatientID == "P1" })
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 2 || got[0].ID != "a" || got[1].ID != "c" {
		t.Errorf("unexpected filter result %+v", got)
	}

	n, err := c.Count(ctx, func(e *entry) bool { return e.PatientID == "P1" })
	if err != nil || n != 2 {
		t.Errorf("Count = %d, %v", n, err)
	}
}

func TestCollection_GetAndModify(t *testing.T) {
	c, _ := newEntries(t)
	ctx := context.Background()

	if _, err := c.Get(ctx, "missing"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	if _, err := c.Modify(ctx, "missing", func(*entry) error { return nil }); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}

	e := entry{ID: "r1", Note: "old"}
	if err := c.Upsert(ctx, &e); err != nil {
		t.Fatal(err)
	}

	updated, err := c.Modify(ctx, "r1", func(v *entry) error {
		v.Note = "new"
		return nil
	})
	if err != nil {
		t.Fatalf("Modify: %v", err)
	}
	if updated.Note != "new" || updated.CreatedAt != e.CreatedAt || updated.UpdatedAt == e.UpdatedAt {
		t.Errorf("unexpected modified entity %+v", updated)
	}

	got, err := c.Get(ctx, "r1")
	if err != nil {
		t.Fatal(err)
	}
	if got.Note != "new" {
		t.Errorf("expected persisted modification, got %+v", got)
	}
}

func TestCollection_Insert(t *testing.T) {
	c, _ := newEntries(t)
	ctx := context.Background()

	build := func(existing []entry) (entry, error) {
		if len(existing) >= 2 {
			return entry{}, errors.New("full")
		}
		return entry{ID: string(rune('a' + len(existing)))}, nil
	}

	for _, want := range []string{"a", "b"} {
		got, err := c.Insert(ctx, build)
		if err != nil {
			t.Fatalf("Insert: %v", err)
		}
		if got.ID != want || got.CreatedAt == "" {
			t.Errorf("unexpected inserted entity %+v", got)
		}
	}
	if _, err := c.Insert(ctx, build); err == nil {
		t.Fatal("expected build error")
	}
	all, _ := c.All(ctx)
	if len(all) != 2 {
		t.Errorf("failed insert must not write, have %d", len(all))
	}
}

func TestCollection_Delete(t *testing.T) {
	c, mem := newEntries(t)
	ctx := context.Background()

	for _, id := range []string{"a", "b", "c"} {
		e := entry{ID: id, PatientID: "P1"}
		if err := c.Upsert(ctx, &e); err != nil {
			t.Fatal(err)
		}
	}

	before, _ := mem.Get(ctx, MedicalRecords)
	if err := c.Delete(ctx, "zzz"); err != nil {
		t.Fatalf("deleting an absent id should be a no-op, got %v", err)
	}
	after, _ := mem.Get(ctx, MedicalRecords)
	if string(before) != string(after) {
		t.Error("no-op delete rewrote the collection")
	}

	if err := c.Delete(ctx, "b"); err != nil {
		t.Fatal(err)
	}
	all, _ := c.All(ctx)
	if len(all) != 2 || all[0].ID != "a" || all[1].ID != "c" {
		t.Errorf("unexpected contents after delete %+v", all)
	}

	n, err := c.DeleteWhere(ctx, func(e *entry) bool { return e.PatientID == "P1" })
	if err != nil || n != 2 {
		t.Errorf("DeleteWhere = %d, %v", n, err)
	}
	all, _ = c.All(ctx)
	if all == nil || len(all) != 0 {
		t.Errorf("expected empty non-nil slice, got %#v", all)
	}
	raw, _ := mem.Get(ctx, MedicalRecords)
	if string(raw) != "[]" {
		t.Errorf("expected [] on disk, got %s", raw)
	}
}

func TestParseTime(t *testing.T) {
	tests := []struct {
		in   string
		want time.Time
	}{
		{"2024-03-01T09:30:00.005Z", time.Date(2024, 3, 1, 9, 30, 0, 5e6, time.UTC)},
		{"2024-03-01T09:30:00Z", time.Date(2024, 3, 1, 9, 30, 0, 0, time.UTC)},
		{"2024-03-01T09:30", time.Date(2024, 3, 1, 9, 30, 0, 0, time.UTC)},
		{"2024-03-01", time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)},
	}
	for _, tt := range tests {
		got, err := ParseTime(tt.in)
		if err != nil {
			t.Errorf("ParseTime(%q): %v", tt.in, err)
			continue
		}
		if !got.Equal(tt.want) {
			t.Errorf("ParseTime(%q) = %s, want %s", tt.in, got, tt.want)
		}
	}
	if _, err := ParseTime("next tuesday"); err == nil {
		t.Error("expected error for free text")
	}
}
