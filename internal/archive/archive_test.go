package archive_test

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/engramd/engram/internal/archive"
)

func openArchive(t *testing.T) *archive.Archive {
	t.Helper()
	a, err := archive.Open(filepath.Join(t.TempDir(), "archive.db"))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { _ = a.Close() })
	return a
}

func TestIndexAndSearch(t *testing.T) {
	t.Parallel()

	a := openArchive(t)
	ctx := context.Background()
	now := time.Now().UTC()

	turns := []struct{ id, user, assistant string }{
		{"t1", "write me a poem about the ocean", "waves roll in and out"},
		{"t2", "write me a poem about the mountain", "stone and snow stand tall"},
		{"t3", "explain why dogs bark", "dogs bark to communicate"},
	}
	for i, turn := range turns {
		err := a.IndexTurn(ctx, turn.id, "S1", turn.user, turn.assistant, now.Add(time.Duration(i)*time.Second))
		if err != nil {
			t.Fatalf("IndexTurn(%s): %v", turn.id, err)
		}
	}

	got, err := a.Search(ctx, "poem", 10)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("got %d matches for poem, want 2", len(got))
	}
	for _, e := range got {
		if e.ID == "t3" {
			t.Error("dog turn matched a poem search")
		}
	}

	n, err := a.Len(ctx)
	if err != nil {
		t.Fatalf("Len: %v", err)
	}
	if n != 3 {
		t.Errorf("Len = %d, want 3", n)
	}
}

func TestBySession_ChronologicalOrder(t *testing.T) {
	t.Parallel()

	a := openArchive(t)
	ctx := context.Background()
	base := time.Now().UTC()

	for i, id := range []string{"a", "b", "c"} {
		if err := a.IndexTurn(ctx, id, "S1", "q"+id, "r"+id, base.Add(time.Duration(i)*time.Minute)); err != nil {
			t.Fatal(err)
		}
	}
	if err := a.IndexTurn(ctx, "other", "S2", "other q", "other r", base); err != nil {
		t.Fatal(err)
	}

	got, err := a.BySession(ctx, "S1", 0)
	if err != nil {
		t.Fatalf("BySession: %v", err)
	}
	if len(got) != 3 {
		t.Fatalf("got %d turns, want 3", len(got))
	}
	for i, want := range []string{"a", "b", "c"} {
		if got[i].ID != want {
			t.Errorf("turn[%d] = %s, want %s", i, got[i].ID, want)
		}
	}
}

func TestIndexTurn_ReplaceIsIdempotent(t *testing.T) {
	t.Parallel()

	a := openArchive(t)
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		if err := a.IndexTurn(ctx, "dup", "S1", "same question", "same answer", time.Now().UTC()); err != nil {
			t.Fatal(err)
		}
	}

	n, err := a.Len(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if n != 1 {
		t.Errorf("Len = %d after duplicate index, want 1", n)
	}
}

func TestOpen_Reopen(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "archive.db")
	first, err := archive.Open(path)
	if err != nil {
		t.Fatal(err)
	}
	if err := first.IndexTurn(context.Background(), "t1", "S1", "q", "r", time.Now().UTC()); err != nil {
		t.Fatal(err)
	}
	if err := first.Close(); err != nil {
		t.Fatal(err)
	}

	second, err := archive.Open(path)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer func() { _ = second.Close() }()

	n, err := second.Len(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if n != 1 {
		t.Errorf("Len = %d after reopen, want 1", n)
	}
}
