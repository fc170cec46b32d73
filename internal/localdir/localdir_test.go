package localdir

import (
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/lehigh-university-libraries/drafter/internal/models"
)

func setup(t *testing.T) (*Storage, string) {
	t.Helper()
	root := t.TempDir()
	base := time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)

	for i, name := range []string{"b-second", "済 done", "a-third"} {
		dir := filepath.Join(root, "batch", name)
		if err := os.MkdirAll(dir, 0o755); err != nil {
			t.Fatal(err)
		}
		for _, f := range []string{"J1_front.jpg", "notes.txt", "D1_disc.PNG"} {
			if err := os.WriteFile(filepath.Join(dir, f), []byte("img:"+f), 0o644); err != nil {
				t.Fatal(err)
			}
		}
		mod := base.Add(time.Duration(i) * time.Hour)
		if err := os.Chtimes(dir, mod, mod); err != nil {
			t.Fatal(err)
		}
	}

	s, err := New(root)
	if err != nil {
		t.Fatalf("Failed to create storage: %v", err)
	}
	return s, root
}

func TestListChildFolders(t *testing.T) {
	s, root := setup(t)
	ctx := context.Background()

	for _, ref := range []string{"batch", filepath.Join(root, "batch")} {
		id, err := s.ResolveFolder(ctx, ref)
		if err != nil {
			t.Fatalf("Unexpected error for %s: %v", ref, err)
		}
		if id != "batch" {
			t.Errorf("Expected batch, got %s", id)
		}
	}

	folders, err := s.ListChildFolders(ctx, "batch")
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	var names []string
	for _, f := range folders {
		names = append(names, f.Name)
	}
	expected := []string{"b-second", "済 done", "a-third"}
	if len(names) != 3 || names[0] != expected[0] || names[1] != expected[1] || names[2] != expected[2] {
		t.Errorf("Expected %v, got %v", expected, names)
	}
	if folders[0].ID != "batch/b-second" {
		t.Errorf("Unexpected ID %s", folders[0].ID)
	}
}

func TestListImagesAndFetch(t *testing.T) {
	s, _ := setup(t)
	ctx := context.Background()

	refs, err := s.ListImages(ctx, "batch/a-third")
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if len(refs) != 2 {
		t.Fatalf("Expected 2 images, got %v", refs)
	}

	data, err := s.FetchBytes(ctx, refs[0].FileID)
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if string(data) != "img:"+refs[0].Name {
		t.Errorf("Unexpected content %q", data)
	}

	rc, contentType, err := s.OpenStream(ctx, "batch/a-third/J1_front.jpg")
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	body, _ := io.ReadAll(rc)
	rc.Close()
	if contentType != "image/jpeg" || string(body) != "img:J1_front.jpg" {
		t.Errorf("Unexpected stream %s %q", contentType, body)
	}

	if _, err := s.FetchBytes(ctx, "batch/a-third/missing.jpg"); !errors.Is(err, models.ErrNotFound) {
		t.Errorf("Expected ErrNotFound, got %v", err)
	}
}

func TestResolveRejectsEscapes(t *testing.T) {
	s, _ := setup(t)
	ctx := context.Background()

	if _, err := s.ResolveFolder(ctx, "/etc"); !errors.Is(err, ErrOutsideRoot) {
		t.Errorf("Expected ErrOutsideRoot, got %v", err)
	}
	// Relative escapes are clamped to the root.
	if _, err := s.FetchBytes(ctx, "../../etc/passwd"); !errors.Is(err, models.ErrNotFound) {
		t.Errorf("Expected clamped lookup to miss, got %v", err)
	}
	if _, err := s.ResolveFolder(ctx, "nope"); !errors.Is(err, models.ErrNotFound) {
		t.Errorf("Expected ErrNotFound, got %v", err)
	}
}

func TestRename(t *testing.T) {
	s, root := setup(t)
	ctx := context.Background()

	if err := s.Rename(ctx, "batch/a-third", "済 a-third"); err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if _, err := os.Stat(filepath.Join(root, "batch", "済 a-third")); err != nil {
		t.Errorf("Expected renamed folder: %v", err)
	}
	if err := s.Rename(ctx, "batch/b-second", "../x"); err == nil {
		t.Error("Expected error for name with separator")
	}
}

func TestPublicURL(t *testing.T) {
	s := &Storage{BaseURL: "http://localhost:8888/api/images/"}
	got := s.PublicURL("batch/済 done/J1 a.jpg")
	expected := "http://localhost:8888/api/images/batch/%E6%B8%88%20done/J1%20a.jpg"
	if got != expected {
		t.Errorf("Expected %s, got %s", expected, got)
	}
}
