package organizer

import (
	"os"
	"path/filepath"
	"sort"
	"strings"

	"kura/internal/classify"
)

// Folder is a scanned library leaf.
type Folder struct {
	Path       string
	Name       string
	Kind       classify.Kind
	Sensitive  bool
	ImageCount int
}

var imageExtensions = map[string]struct{}{
	".jpg":  {},
	".jpeg": {},
	".png":  {},
	".gif":  {},
	".webp": {},
	".bmp":  {},
}

// IsImageName reports whether name carries a recognized image extension.
func IsImageName(name string) bool {
	_, ok := imageExtensions[strings.ToLower(filepath.Ext(name))]
	return ok
}

// ListFolders scans both branches and returns every leaf sorted by path.
// Missing branches are skipped.
func (o *Organizer) ListFolders() ([]Folder, error) {
	var folders []Folder
	for _, kind := range classify.Kinds() {
		branch := filepath.Join(o.root, kind.String())
		children, err := readDirs(branch)
		if err != nil {
			return nil, err
		}
		for _, name := range children {
			leaf := filepath.Join(branch, name)
			if name != SensitiveDir {
				count, err := countImages(leaf)
				if err != nil {
					return nil, err
				}
				folders = append(folders, Folder{Path: leaf, Name: name, Kind: kind, ImageCount: count})
				continue
			}
			subs, err := readDirs(leaf)
			if err != nil {
				return nil, err
			}
			for _, sub := range subs {
				subPath := filepath.Join(leaf, sub)
				count, err := countImages(subPath)
				if err != nil {
					return nil, err
				}
				folders = append(folders, Folder{Path: subPath, Name: sub, Kind: kind, Sensitive: true, ImageCount: count})
			}
		}
	}
	sort.Slice(folders, func(i, j int) bool { return folders[i].Path < folders[j].Path })
	return folders, nil
}

// TotalImages sums the image counts of folders.
func TotalImages(folders []Folder) int {
	total := 0
	for _, f := range folders {
		total += f.ImageCount
	}
	return total
}

func readDirs(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}
	names := make([]string, 0, len(entries))
	for _, entry := range entries {
		if entry.IsDir() {
			names = append(names, entry.Name())
		}
	}
	return names, nil
}

func countImages(dir string) (int, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return 0, nil
		}
		return 0, err
	}
	count := 0
	for _, entry := range entries {
		if entry.Type().IsRegular() && IsImageName(entry.Name()) {
			count++
		}
	}
	return count, nil
}
