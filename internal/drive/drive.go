// Package drive implements batch storage on Google Drive and the edit form
// lookups on Google Sheets.
package drive

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"regexp"
	"strings"

	"github.com/lehigh-university-libraries/drafter/internal/models"
	"google.golang.org/api/drive/v3"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"
)

const (
	folderMimeType = "application/vnd.google-apps.folder"
	pageSize       = 1000
)

// DirectURL is the direct download form of a Drive file link.
const DirectURL = "https://drive.google.com/uc?export=download&id="

var (
	ErrInvalidFolderRef = errors.New("invalid Drive folder reference")
	ErrNotAFolder       = errors.New("Drive file is not a folder")
)

var (
	foldersPath = regexp.MustCompile(`/folders/([A-Za-z0-9_-]+)`)
	bareID      = regexp.MustCompile(`^[A-Za-z0-9_-]+$`)
)

type Storage struct {
	files *drive.Service
}

// New builds a Drive client from the given options.
func New(ctx context.Context, opts ...option.ClientOption) (*Storage, error) {
	srv, err := drive.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create drive client: %w", err)
	}
	return &Storage{files: srv}, nil
}

// NewFromCredentials authenticates with a service account key file.
func NewFromCredentials(ctx context.Context, credentialsFile string) (*Storage, error) {
	return New(ctx,
		option.WithCredentialsFile(credentialsFile),
		option.WithScopes(drive.DriveScope),
	)
}

// ParseFolderRef extracts a folder ID from a folder URL or returns a bare ID unchanged.
func ParseFolderRef(ref string) (string, error) {
	ref = strings.TrimSpace(ref)
	if m := foldersPath.FindStringSubmatch(ref); m != nil {
		return m[1], nil
	}
	if u, err := url.Parse(ref); err == nil && u.Host != "" {
		if id := u.Query().Get("id"); bareID.MatchString(id) {
			return id, nil
		}
		return "", fmt.Errorf("%w: %s", ErrInvalidFolderRef, ref)
	}
	if bareID.MatchString(ref) {
		return ref, nil
	}
	return "", fmt.Errorf("%w: %s", ErrInvalidFolderRef, ref)
}

// ResolveFolder turns a folder URL or ID into a folder ID and checks that it exists.
func (s *Storage) ResolveFolder(ctx context.Context, ref string) (string, error) {
	id, err := ParseFolderRef(ref)
	if err != nil {
		return "", err
	}

	f, err := s.files.Files.Get(id).
		Fields("id, name, mimeType").
		SupportsAllDrives(true).
		Context(ctx).
		Do()
	if err != nil {
		return "", fmt.Errorf("failed to look up folder %s: %w", id, wrapNotFound(err))
	}
	if f.MimeType != folderMimeType {
		return "", fmt.Errorf("%w: %s", ErrNotAFolder, id)
	}
	slog.Debug("Resolved source folder", "folder_id", id, "name", f.Name)
	return id, nil
}

// ListChildFolders returns the direct subfolders of parentID, oldest first.
func (s *Storage) ListChildFolders(ctx context.Context, parentID string) ([]models.Folder, error) {
	q := fmt.Sprintf("'%s' in parents and mimeType = '%s' and trashed = false", escape(parentID), folderMimeType)
	files, err := s.list(ctx, q, "createdTime")
	if err != nil {
		return nil, fmt.Errorf("failed to list folders: %w", err)
	}

	out := make([]models.Folder, 0, len(files))
	for _, f := range files {
		out = append(out, models.Folder{ID: f.Id, Name: f.Name})
	}
	return out, nil
}

// ListImages returns the image files inside folderID in listing order.
func (s *Storage) ListImages(ctx context.Context, folderID string) ([]models.ImageRef, error) {
	q := fmt.Sprintf("'%s' in parents and mimeType contains 'image/' and trashed = false", escape(folderID))
	files, err := s.list(ctx, q, "name")
	if err != nil {
		return nil, fmt.Errorf("failed to list images: %w", err)
	}

	out := make([]models.ImageRef, 0, len(files))
	for _, f := range files {
		out = append(out, models.ImageRef{FileID: f.Id, Name: f.Name})
	}
	return out, nil
}

func (s *Storage) list(ctx context.Context, q, orderBy string) ([]*drive.File, error) {
	var out []*drive.File
	pageToken := ""
	for {
		call := s.files.Files.List().
			Q(q).
			OrderBy(orderBy).
			Fields("nextPageToken, files(id, name)").
			PageSize(pageSize).
			SupportsAllDrives(true).
			IncludeItemsFromAllDrives(true).
			Context(ctx)
		if pageToken != "" {
			call = call.PageToken(pageToken)
		}
		res, err := call.Do()
		if err != nil {
			return nil, err
		}
		out = append(out, res.Files...)
		if res.NextPageToken == "" {
			return out, nil
		}
		pageToken = res.NextPageToken
	}
}

// FetchBytes downloads a whole file.
func (s *Storage) FetchBytes(ctx context.Context, fileID string) ([]byte, error) {
	body, _, err := s.OpenStream(ctx, fileID)
	if err != nil {
		return nil, err
	}
	defer body.Close()

	data, err := io.ReadAll(body)
	if err != nil {
		return nil, fmt.Errorf("failed to read file %s: %w", fileID, err)
	}
	return data, nil
}

// OpenStream opens a file's content. The caller closes the stream.
func (s *Storage) OpenStream(ctx context.Context, fileID string) (io.ReadCloser, string, error) {
	resp, err := s.files.Files.Get(fileID).
		SupportsAllDrives(true).
		Context(ctx).
		Download()
	if err != nil {
		return nil, "", fmt.Errorf("failed to download file %s: %w", fileID, wrapNotFound(err))
	}
	contentType := resp.Header.Get("Content-Type")
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	return resp.Body, contentType, nil
}

// Rename changes a file or folder name.
func (s *Storage) Rename(ctx context.Context, fileID, newName string) error {
	_, err := s.files.Files.Update(fileID, &drive.File{Name: newName}).
		SupportsAllDrives(true).
		Fields("id, name").
		Context(ctx).
		Do()
	if err != nil {
		return fmt.Errorf("failed to rename %s: %w", fileID, wrapNotFound(err))
	}
	return nil
}

// PublicURL is the direct download link of a file shared by link.
func (s *Storage) PublicURL(fileID string) string {
	return DirectURL + url.QueryEscape(fileID)
}

func escape(id string) string {
	return strings.ReplaceAll(id, `'`, `\'`)
}

func wrapNotFound(err error) error {
	var apiErr *googleapi.Error
	if errors.As(err, &apiErr) && apiErr.Code == http.StatusNotFound {
		return fmt.Errorf("%w: %v", models.ErrNotFound, err)
	}
	return err
}
