package pipeline

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/lehigh-university-libraries/drafter/internal/models"
)

type fakeStorage struct {
	mu         sync.Mutex
	root       string
	resolveErr error
	listErr    error
	listPanic  string
	folders    []models.Folder
	files      map[string][]string // folder ID -> file names
	fetchErr   map[string]error    // file ID -> error
	renameErr  error
	renamed    map[string]string
	fetched    []string
}

func newFakeStorage(folders ...models.Folder) *fakeStorage {
	return &fakeStorage{
		root:     "root",
		folders:  folders,
		files:    map[string][]string{},
		fetchErr: map[string]error{},
		renamed:  map[string]string{},
	}
}

func (f *fakeStorage) ResolveFolder(ctx context.Context, ref string) (string, error) {
	if f.resolveErr != nil {
		return "", f.resolveErr
	}
	return f.root, nil
}

func (f *fakeStorage) ListChildFolders(ctx context.Context, parentID string) ([]models.Folder, error) {
	if f.listPanic != "" {
		panic(f.listPanic)
	}
	if f.listErr != nil {
		return nil, f.listErr
	}
	return f.folders, nil
}

func (f *fakeStorage) ListImages(ctx context.Context, folderID string) ([]models.ImageRef, error) {
	var out []models.ImageRef
	for _, name := range f.files[folderID] {
		out = append(out, models.ImageRef{FileID: folderID + "/" + name, Name: name})
	}
	return out, nil
}

func (f *fakeStorage) FetchBytes(ctx context.Context, fileID string) ([]byte, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.fetched = append(f.fetched, fileID)
	if err := f.fetchErr[fileID]; err != nil {
		return nil, err
	}
	return []byte("data:" + fileID), nil
}

func (f *fakeStorage) OpenStream(ctx context.Context, fileID string) (io.ReadCloser, string, error) {
	b, err := f.FetchBytes(ctx, fileID)
	if err != nil {
		return nil, "", err
	}
	return io.NopCloser(bytes.NewReader(b)), "image/jpeg", nil
}

func (f *fakeStorage) Rename(ctx context.Context, folderID, newName string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.renameErr != nil {
		return f.renameErr
	}
	f.renamed[folderID] = newName
	return nil
}

// linkStorage adds direct links to fakeStorage.
type linkStorage struct {
	*fakeStorage
}

func (l linkStorage) PublicURL(fileID string) string {
	return "https://files.example/" + fileID
}

type fakeOracle struct {
	mu       sync.Mutex
	calls    int
	excludes []*models.Analysis
	sizes    []int
	// fail returns an error for any payload containing this marker.
	fail  string
	block chan struct{}
}

func (o *fakeOracle) Analyze(ctx context.Context, images [][]byte, exclude *models.Analysis) (*models.Analysis, error) {
	if o.block != nil {
		<-o.block
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	o.mu.Lock()
	o.calls++
	o.excludes = append(o.excludes, exclude)
	o.sizes = append(o.sizes, len(images))
	call := o.calls
	o.mu.Unlock()

	first := string(images[0])
	if o.fail != "" {
		for _, img := range images {
			if strings.Contains(string(img), o.fail) {
				return nil, errors.New("oracle could not identify " + first)
			}
		}
	}
	return &models.Analysis{
		Title:  fmt.Sprintf("Title %d", call),
		Artist: strings.TrimPrefix(first, "data:"),
	}, nil
}

type fakePublisher struct {
	names []string
	err   error
}

func (p *fakePublisher) Publish(ctx context.Context, image []byte, name string) (string, error) {
	if p.err != nil {
		return "", p.err
	}
	p.names = append(p.names, name)
	return "https://pics.example/" + name, nil
}

type fakeLedger struct {
	next  int
	calls []int
}

func (l *fakeLedger) Reserve(ctx context.Context, tree string, processed, n int) (int, error) {
	l.calls = append(l.calls, processed)
	base := l.next
	if processed > base {
		base = processed
	}
	l.next = base + n
	return base, nil
}
