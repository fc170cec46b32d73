// Package localdir serves batches from a directory tree on local disk. File
// IDs are slash separated paths relative to the root.
package localdir

import (
	"context"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strings"

	"github.com/lehigh-university-libraries/drafter/internal/images"
	"github.com/lehigh-university-libraries/drafter/internal/models"
)

// DefaultImageRoute is where the HTTP server streams images from.
const DefaultImageRoute = "/api/images/"

var ErrOutsideRoot = errors.New("path escapes storage root")

type Storage struct {
	root string
	// BaseURL prefixes file IDs in PublicURL.
	BaseURL string
}

func New(root string) (*Storage, error) {
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve root %s: %w", root, err)
	}
	info, err := os.Stat(abs)
	if err != nil {
		return nil, fmt.Errorf("failed to open root %s: %w", root, err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("root %s is not a directory", root)
	}
	return &Storage{root: abs, BaseURL: DefaultImageRoute}, nil
}

// resolve maps a file ID to a path on disk.
func (s *Storage) resolve(id string) (string, error) {
	full := filepath.Join(s.root, filepath.FromSlash(path.Clean("/"+id)))
	rel, err := filepath.Rel(s.root, full)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", fmt.Errorf("%w: %s", ErrOutsideRoot, id)
	}
	return full, nil
}

func (s *Storage) id(full string) string {
	rel, _ := filepath.Rel(s.root, full)
	return filepath.ToSlash(rel)
}

// ResolveFolder accepts a path relative to the root, or an absolute path inside it.
func (s *Storage) ResolveFolder(ctx context.Context, ref string) (string, error) {
	ref = strings.TrimSpace(ref)
	if filepath.IsAbs(ref) {
		rel, err := filepath.Rel(s.root, ref)
		if err != nil || strings.HasPrefix(rel, "..") {
			return "", fmt.Errorf("%w: %s", ErrOutsideRoot, ref)
		}
		ref = filepath.ToSlash(rel)
	}

	full, err := s.resolve(ref)
	if err != nil {
		return "", err
	}
	info, err := os.Stat(full)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return "", fmt.Errorf("folder %s: %w", ref, models.ErrNotFound)
		}
		return "", fmt.Errorf("failed to stat %s: %w", ref, err)
	}
	if !info.IsDir() {
		return "", fmt.Errorf("%s is not a folder", ref)
	}
	return s.id(full), nil
}

// ListChildFolders returns subdirectories ordered by modification time, then name.
func (s *Storage) ListChildFolders(ctx context.Context, parentID string) ([]models.Folder, error) {
	dir, err := s.resolve(parentID)
	if err != nil {
		return nil, err
	}
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to list folders: %w", err)
	}

	type folder struct {
		models.Folder
		mod int64
	}
	var found []folder
	for _, e := range entries {
		if !e.IsDir() || strings.HasPrefix(e.Name(), ".") {
			continue
		}
		info, err := e.Info()
		if err != nil {
			return nil, fmt.Errorf("failed to stat %s: %w", e.Name(), err)
		}
		found = append(found, folder{
			Folder: models.Folder{ID: s.id(filepath.Join(dir, e.Name())), Name: e.Name()},
			mod:    info.ModTime().UnixNano(),
		})
	}
	sort.SliceStable(found, func(i, j int) bool {
		if found[i].mod != found[j].mod {
			return found[i].mod < found[j].mod
		}
		return found[i].Name < found[j].Name
	})

	out := make([]models.Folder, len(found))
	for i, f := range found {
		out[i] = f.Folder
	}
	return out, nil
}

// ListImages returns image files directly inside folderID, by name.
func (s *Storage) ListImages(ctx context.Context, folderID string) ([]models.ImageRef, error) {
	dir, err := s.resolve(folderID)
	if err != nil {
		return nil, err
	}
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to list images: %w", err)
	}

	var out []models.ImageRef
	for _, e := range entries {
		if e.IsDir() || !images.IsImageName(e.Name()) {
			continue
		}
		out = append(out, models.ImageRef{
			FileID: s.id(filepath.Join(dir, e.Name())),
			Name:   e.Name(),
		})
	}
	return out, nil
}

func (s *Storage) FetchBytes(ctx context.Context, fileID string) ([]byte, error) {
	full, err := s.resolve(fileID)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(full)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", fileID, notFound(err))
	}
	return data, nil
}

func (s *Storage) OpenStream(ctx context.Context, fileID string) (io.ReadCloser, string, error) {
	full, err := s.resolve(fileID)
	if err != nil {
		return nil, "", err
	}
	f, err := os.Open(full)
	if err != nil {
		return nil, "", fmt.Errorf("failed to open %s: %w", fileID, notFound(err))
	}
	contentType := mime.TypeByExtension(strings.ToLower(filepath.Ext(full)))
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	return f, contentType, nil
}

// Rename renames a file or folder in place.
func (s *Storage) Rename(ctx context.Context, fileID, newName string) error {
	if newName == "" || strings.ContainsAny(newName, `/\`) {
		return fmt.Errorf("invalid name %q", newName)
	}
	full, err := s.resolve(fileID)
	if err != nil {
		return err
	}
	if full == s.root {
		return fmt.Errorf("cannot rename storage root")
	}
	if err := os.Rename(full, filepath.Join(filepath.Dir(full), newName)); err != nil {
		return fmt.Errorf("failed to rename %s: %w", fileID, notFound(err))
	}
	return nil
}

// PublicURL points at the image route of the local server.
func (s *Storage) PublicURL(fileID string) string {
	parts := strings.Split(fileID, "/")
	for i, p := range parts {
		parts[i] = url.PathEscape(p)
	}
	return s.BaseURL + strings.Join(parts, "/")
}

func notFound(err error) error {
	if errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("%w: %v", models.ErrNotFound, err)
	}
	return err
}
