package ledger

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/starford/readwise2anki/internal/apperr"
	"github.com/starford/readwise2anki/internal/reconcile"
)

func testDB(t *testing.T) *DB {
	t.Helper()
	db, err := Open(filepath.Join(t.TempDir(), "state", "ledger.db"))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func TestSchemaCreation(t *testing.T) {
	db := testDB(t)
	var count int
	if err := db.conn.QueryRow(`SELECT count(*) FROM runs`).Scan(&count); err != nil {
		t.Fatalf("runs table missing: %v", err)
	}
}

func TestRecordAndRecent(t *testing.T) {
	db := testDB(t)
	ctx := context.Background()
	base := time.Date(2024, 5, 1, 8, 0, 0, 0, time.UTC)

	id, err := db.Record(ctx, Run{
		StartedAt:        base,
		FinishedAt:       base.Add(time.Minute),
		Deck:             "D",
		Mode:             ModeCache,
		Status:           StatusOK,
		SnapshotChecksum: "abc",
		Report:           reconcile.Report{NotesAdded: 3, NotesSkipped: 1},
	})
	if err != nil {
		t.Fatalf("Record: %v", err)
	}
	if id == "" {
		t.Fatal("no id generated")
	}
	if _, err := db.Record(ctx, Run{StartedAt: base.Add(time.Hour), FinishedAt: base.Add(time.Hour), Deck: "D", Mode: ModeFull, Status: StatusFailed, Error: "boom"}); err != nil {
		t.Fatalf("Record: %v", err)
	}

	runs, err := db.Recent(ctx, 10)
	if err != nil {
		t.Fatalf("Recent: %v", err)
	}
	if len(runs) != 2 {
		t.Fatalf("runs = %d, want 2", len(runs))
	}
	if runs[0].Status != StatusFailed || runs[0].Error != "boom" {
		t.Errorf("newest run = %+v", runs[0])
	}
	old := runs[1]
	if old.ID != id || old.Report.NotesAdded != 3 || old.SnapshotChecksum != "abc" || old.Mode != ModeCache {
		t.Errorf("stored run = %+v", old)
	}
	if !old.StartedAt.Equal(base) || !old.FinishedAt.Equal(base.Add(time.Minute)) {
		t.Errorf("times = %v / %v", old.StartedAt, old.FinishedAt)
	}
}

func TestRecent_Limit(t *testing.T) {
	db := testDB(t)
	ctx := context.Background()
	for i := range 5 {
		ts := time.Unix(int64(1700000000+i), 0)
		if _, err := db.Record(ctx, Run{StartedAt: ts, FinishedAt: ts, Deck: "D", Mode: ModeFull, Status: StatusOK}); err != nil {
			t.Fatal(err)
		}
	}
	runs, err := db.Recent(ctx, 2)
	if err != nil {
		t.Fatal(err)
	}
	if len(runs) != 2 || runs[0].StartedAt.Unix() != 1700000004 {
		t.Errorf("runs = %+v", runs)
	}
}

func TestLastSuccessful(t *testing.T) {
	db := testDB(t)
	ctx := context.Background()

	if _, err := db.LastSuccessful(ctx, "D"); !errors.Is(err, apperr.ErrNotFound) {
		t.Fatalf("err = %v, want ErrNotFound", err)
	}

	t1 := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	t2 := t1.Add(24 * time.Hour)
	t3 := t2.Add(24 * time.Hour)
	for _, r := range []Run{
		{StartedAt: t1, FinishedAt: t1, Deck: "D", Mode: ModeFull, Status: StatusOK},
		{StartedAt: t2, FinishedAt: t2, Deck: "D", Mode: ModeIncremental, Status: StatusOK},
		{StartedAt: t3, FinishedAt: t3, Deck: "D", Mode: ModeIncremental, Status: StatusFailed},
		{StartedAt: t3, FinishedAt: t3, Deck: "Other", Mode: ModeFull, Status: StatusOK},
	} {
		if _, err := db.Record(ctx, r); err != nil {
			t.Fatal(err)
		}
	}

	last, err := db.LastSuccessful(ctx, "D")
	if err != nil {
		t.Fatalf("LastSuccessful: %v", err)
	}
	if !last.StartedAt.Equal(t2) {
		t.Errorf("started_at = %v, want %v", last.StartedAt, t2)
	}
}

func TestLastSuccessful_IgnoresCachedAndPartialRuns(t *testing.T) {
	db := testDB(t)
	ctx := context.Background()

	t1 := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	t2 := t1.Add(time.Hour)
	t3 := t2.Add(time.Hour)
	for _, r := range []Run{
		{StartedAt: t1, FinishedAt: t1, Deck: "D", Mode: ModeFull, Status: StatusOK},
		{StartedAt: t2, FinishedAt: t2, Deck: "D", Mode: ModeCache, Status: StatusOK},
		{StartedAt: t3, FinishedAt: t3, Deck: "D", Mode: ModeIncremental, Status: StatusPartial},
	} {
		if _, err := db.Record(ctx, r); err != nil {
			t.Fatal(err)
		}
	}

	last, err := db.LastSuccessful(ctx, "D")
	if err != nil {
		t.Fatalf("LastSuccessful: %v", err)
	}
	if !last.StartedAt.Equal(t1) {
		t.Errorf("started_at = %v, want the full run at %v", last.StartedAt, t1)
	}
}
