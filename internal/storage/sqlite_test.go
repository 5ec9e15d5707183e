package storage

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/hyperjump/redline/internal/models"
)

func newTestStore(t *testing.T) *SQLiteStorage {
	t.Helper()
	store, err := NewSQLiteStorage(filepath.Join(t.TempDir(), "db", "revisions.db"))
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func TestSQLiteStorage_CreateAndGet(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	rev := &models.Revision{
		Artifact:     "a.docx",
		Instruction:  "Change the fee to 250 USD",
		SourceDigest: "sha256:abc",
		Proposals:    2,
		Applied:      1,
	}
	if err := store.CreateRevision(ctx, rev); err != nil {
		t.Fatal(err)
	}
	if rev.ID == "" {
		t.Error("ID should be assigned")
	}
	if rev.CreatedAt.IsZero() {
		t.Error("CreatedAt should be set")
	}

	got, err := store.GetRevisionByArtifact(ctx, "a.docx")
	if err != nil {
		t.Fatal(err)
	}
	if got.ID != rev.ID || got.Instruction != rev.Instruction || got.Proposals != 2 || got.Applied != 1 {
		t.Errorf("got %+v", got)
	}
	if got.SourceDigest != "sha256:abc" {
		t.Errorf("SourceDigest = %q", got.SourceDigest)
	}
}

func TestSQLiteStorage_NotFound(t *testing.T) {
	store := newTestStore(t)
	_, err := store.GetRevisionByArtifact(context.Background(), "missing.docx")
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestSQLiteStorage_RequiresArtifact(t *testing.T) {
	store := newTestStore(t)
	if err := store.CreateRevision(context.Background(), &models.Revision{Instruction: "x"}); err == nil {
		t.Error("expected error for empty artifact")
	}
}

func TestSQLiteStorage_DuplicateArtifact(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	if err := store.CreateRevision(ctx, &models.Revision{Artifact: "a.docx", Instruction: "x"}); err != nil {
		t.Fatal(err)
	}
	if err := store.CreateRevision(ctx, &models.Revision{Artifact: "a.docx", Instruction: "y"}); err == nil {
		t.Error("expected error for duplicate artifact")
	}
}

func TestSQLiteStorage_ListAndCount(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	for i, name := range []string{"a.docx", "b.docx", "c.docx"} {
		rev := &models.Revision{
			Artifact:    name,
			Instruction: "x",
			CreatedAt:   base.Add(time.Duration(i) * time.Hour),
		}
		if err := store.CreateRevision(ctx, rev); err != nil {
			t.Fatal(err)
		}
	}

	n, err := store.CountRevisions(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if n != 3 {
		t.Errorf("CountRevisions = %d, want 3", n)
	}

	list, err := store.ListRevisions(ctx, 0, 2)
	if err != nil {
		t.Fatal(err)
	}
	if len(list) != 2 {
		t.Fatalf("expected 2 revisions, got %d", len(list))
	}
	if list[0].Artifact != "c.docx" || list[1].Artifact != "b.docx" {
		t.Errorf("expected newest first, got %s, %s", list[0].Artifact, list[1].Artifact)
	}

	list, err = store.ListRevisions(ctx, 2, 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(list) != 1 || list[0].Artifact != "a.docx" {
		t.Errorf("offset page: got %+v", list)
	}

	list, err = store.ListRevisions(ctx, 10, 10)
	if err != nil {
		t.Fatal(err)
	}
	if list == nil || len(list) != 0 {
		t.Errorf("expected empty non-nil page, got %#v", list)
	}
}

func TestSQLiteStorage_Reopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "revisions.db")
	ctx := context.Background()

	store, err := NewSQLiteStorage(path)
	if err != nil {
		t.Fatal(err)
	}
	if err := store.CreateRevision(ctx, &models.Revision{Artifact: "a.docx", Instruction: "x"}); err != nil {
		t.Fatal(err)
	}
	_ = store.Close()

	store, err = NewSQLiteStorage(path)
	if err != nil {
		t.Fatal(err)
	}
	defer store.Close()
	n, err := store.CountRevisions(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if n != 1 {
		t.Errorf("expected catalog to survive reopen, got %d rows", n)
	}
}
