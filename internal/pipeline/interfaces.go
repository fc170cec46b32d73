package pipeline

import (
	"context"
	"io"

	"github.com/lehigh-university-libraries/drafter/internal/models"
)

// Storage is the folder tree the photos live in.
type Storage interface {
	// ResolveFolder turns a user supplied reference (URL, ID or path) into a folder ID.
	ResolveFolder(ctx context.Context, ref string) (string, error)
	// ListChildFolders returns the direct child folders in creation order.
	ListChildFolders(ctx context.Context, parentID string) ([]models.Folder, error)
	// ListImages returns the image files directly inside a folder.
	ListImages(ctx context.Context, folderID string) ([]models.ImageRef, error)
	FetchBytes(ctx context.Context, fileID string) ([]byte, error)
	// OpenStream returns the file content and its content type.
	OpenStream(ctx context.Context, fileID string) (io.ReadCloser, string, error)
	Rename(ctx context.Context, folderID, newName string) error
}

// URLResolver is implemented by storage that can hand out directly
// downloadable links, used when no Publisher is configured.
type URLResolver interface {
	PublicURL(fileID string) string
}

// Oracle identifies an item from its photos.
type Oracle interface {
	Analyze(ctx context.Context, images [][]byte, exclude *models.Analysis) (*models.Analysis, error)
}

// Publisher re-hosts an image and returns its durable URL.
type Publisher interface {
	Publish(ctx context.Context, image []byte, name string) (string, error)
}

// LabelReserver hands out label sequence ranges that never overlap for one source tree.
type LabelReserver interface {
	Reserve(ctx context.Context, tree string, processed, n int) (int, error)
}
