package organizer_test

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"kura/internal/catalog"
	"kura/internal/classify"
	"kura/internal/logging"
	"kura/internal/organizer"
)

func newOrganizer(t *testing.T) (*organizer.Organizer, string) {
	t.Helper()
	root := filepath.Join(t.TempDir(), "library")
	return organizer.New(root, classify.New(classify.DefaultPolicy()), logging.NewNop()), root
}

func mustExist(t *testing.T, path string) {
	t.Helper()
	if _, err := os.Stat(path); err != nil {
		t.Fatalf("expected %s to exist: %v", path, err)
	}
}

func mustNotExist(t *testing.T, path string) {
	t.Helper()
	if _, err := os.Stat(path); !os.IsNotExist(err) {
		t.Fatalf("expected %s to be absent, stat err=%v", path, err)
	}
}

func TestResolveFolderGenreBranch(t *testing.T) {
	org, root := newOrganizer(t)
	entry := catalog.Entry{ID: catalog.Int64(1), Title: "Sample!!", KindCode: catalog.Int(1), Genres: "Comedy"}

	dir, err := org.ResolveFolder(entry)
	if err != nil {
		t.Fatalf("ResolveFolder: %v", err)
	}
	want := filepath.Join(root, "Anime", "Comedy")
	if dir != want {
		t.Fatalf("dir = %q, want %q", dir, want)
	}
	mustExist(t, dir)
	mustNotExist(t, filepath.Join(dir, organizer.MarkerName))

	again, err := org.ResolveFolder(entry)
	if err != nil || again != dir {
		t.Fatalf("second ResolveFolder = %q, %v", again, err)
	}
}

func TestResolveFolderSensitiveBranchStampsMarker(t *testing.T) {
	org, root := newOrganizer(t)
	entry := catalog.Entry{Title: "Mother-Son Bonds", Genres: "hentai, drama", KindCode: catalog.Int(8)}

	dir, err := org.ResolveFolder(entry)
	if err != nil {
		t.Fatalf("ResolveFolder: %v", err)
	}
	want := filepath.Join(root, "Manga", organizer.SensitiveDir, "mother-son")
	if dir != want {
		t.Fatalf("dir = %q, want %q", dir, want)
	}
	info, err := os.Stat(filepath.Join(dir, organizer.MarkerName))
	if err != nil {
		t.Fatalf("marker missing: %v", err)
	}
	if info.Size() != 0 {
		t.Fatalf("marker should be empty, size=%d", info.Size())
	}
}

func TestResolveFolderConcurrentCallsShareOneMarker(t *testing.T) {
	org, _ := newOrganizer(t)
	entry := catalog.Entry{Title: "Hentai Party"}

	var wg sync.WaitGroup
	dirs := make([]string, 8)
	errs := make([]error, 8)
	for i := range dirs {
		wg.Add(1)
		go func() {
			defer wg.Done()
			dirs[i], errs[i] = org.ResolveFolder(entry)
		}()
	}
	wg.Wait()
	for i := range dirs {
		if errs[i] != nil {
			t.Fatalf("call %d: %v", i, errs[i])
		}
		if dirs[i] != dirs[0] {
			t.Fatalf("call %d resolved %q, want %q", i, dirs[i], dirs[0])
		}
	}
	entries, err := os.ReadDir(dirs[0])
	if err != nil {
		t.Fatalf("read dir: %v", err)
	}
	if len(entries) != 1 || entries[0].Name() != organizer.MarkerName {
		t.Fatalf("expected exactly one marker, got %v", entries)
	}
}

func TestPrimaryGenre(t *testing.T) {
	tests := []struct {
		genres string
		want   string
	}{
		{"Action,Drama", "Action"},
		{" ; Slice of Life | Drama", "Slice of Life"},
		{"Sci-Fi/Fantasy, Drama", "Sci-FiFantasy"},
		{"", "Unknown"},
		{" , ; ", "Unknown"},
		{"Sensitive", "Unknown"},
	}
	for _, tt := range tests {
		if got := organizer.PrimaryGenre(tt.genres); got != tt.want {
			t.Fatalf("PrimaryGenre(%q) = %q, want %q", tt.genres, got, tt.want)
		}
	}
}

func TestListFoldersCountsImages(t *testing.T) {
	org, root := newOrganizer(t)

	folders, err := org.ListFolders()
	if err != nil || len(folders) != 0 {
		t.Fatalf("empty library: folders=%v err=%v", folders, err)
	}

	comedy, err := org.ResolveFolder(catalog.Entry{Genres: "Comedy", KindCode: catalog.Int(1)})
	if err != nil {
		t.Fatal(err)
	}
	sensitive, err := org.ResolveFolder(catalog.Entry{Title: "Mother-Son Bonds", Genres: "hentai"})
	if err != nil {
		t.Fatal(err)
	}
	for _, name := range []string{"a.jpg", "b.PNG", "c.webp", "notes.txt"} {
		if err := os.WriteFile(filepath.Join(comedy, name), []byte("x"), 0o644); err != nil {
			t.Fatal(err)
		}
	}
	if err := os.Mkdir(filepath.Join(comedy, "nested.jpg"), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(sensitive, "d.jpeg"), []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}

	folders, err = org.ListFolders()
	if err != nil {
		t.Fatalf("ListFolders: %v", err)
	}
	want := []organizer.Folder{
		{Path: filepath.Join(root, "Anime", "Comedy"), Name: "Comedy", Kind: classify.KindAnime, ImageCount: 3},
		{Path: filepath.Join(root, "Anime", organizer.SensitiveDir, "mother-son"), Name: "mother-son", Kind: classify.KindAnime, Sensitive: true, ImageCount: 1},
	}
	if len(folders) != len(want) {
		t.Fatalf("folders = %+v", folders)
	}
	for i := range want {
		if folders[i] != want[i] {
			t.Fatalf("folder[%d] = %+v, want %+v", i, folders[i], want[i])
		}
	}
	if total := organizer.TotalImages(folders); total != 4 {
		t.Fatalf("TotalImages = %d, want 4", total)
	}
}

func TestCleanupRemovesMarkerOnlyFoldersButNeverRoot(t *testing.T) {
	org, root := newOrganizer(t)

	sensitive, err := org.ResolveFolder(catalog.Entry{Title: "Hentai Party"})
	if err != nil {
		t.Fatal(err)
	}
	kept, err := org.ResolveFolder(catalog.Entry{Genres: "Drama", KindCode: catalog.Int(9)})
	if err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(kept, "cover.jpg"), []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}

	result := org.Cleanup(context.Background())
	if len(result.Errors) != 0 {
		t.Fatalf("cleanup errors: %+v", result.Errors)
	}
	mustNotExist(t, sensitive)
	mustNotExist(t, filepath.Join(root, "Anime"))
	mustExist(t, filepath.Join(kept, "cover.jpg"))
	mustExist(t, root)

	if err := os.Remove(filepath.Join(kept, "cover.jpg")); err != nil {
		t.Fatal(err)
	}
	result = org.Cleanup(context.Background())
	if len(result.Errors) != 0 {
		t.Fatalf("cleanup errors: %+v", result.Errors)
	}
	mustNotExist(t, filepath.Join(root, "Manga"))
	mustExist(t, root)
}

func TestCleanupMissingRoot(t *testing.T) {
	org, _ := newOrganizer(t)
	result := org.Cleanup(context.Background())
	if len(result.Removed) != 0 || len(result.Errors) != 0 {
		t.Fatalf("unexpected result %+v", result)
	}
}

func TestAuditAndRepair(t *testing.T) {
	org, _ := newOrganizer(t)
	dir, err := org.ResolveFolder(catalog.Entry{Title: "Hentai Party"})
	if err != nil {
		t.Fatal(err)
	}
	missing, err := org.Audit()
	if err != nil || len(missing) != 0 {
		t.Fatalf("healthy audit: %v, %v", missing, err)
	}

	if err := os.Remove(filepath.Join(dir, organizer.MarkerName)); err != nil {
		t.Fatal(err)
	}
	missing, err = org.Audit()
	if err != nil || len(missing) != 1 || missing[0] != dir {
		t.Fatalf("audit = %v, %v", missing, err)
	}
	written, err := org.Repair(missing)
	if err != nil || written != 1 {
		t.Fatalf("repair = %d, %v", written, err)
	}
	mustExist(t, filepath.Join(dir, organizer.MarkerName))
}
