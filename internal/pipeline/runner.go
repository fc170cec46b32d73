// Package pipeline runs batch submissions: folder discovery, label
// assignment, per-item analysis and the operator review actions.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/lehigh-university-libraries/drafter/internal/images"
	"github.com/lehigh-university-libraries/drafter/internal/labels"
	"github.com/lehigh-university-libraries/drafter/internal/models"
	"github.com/lehigh-university-libraries/drafter/internal/storage"
)

const (
	// DefaultProcessedMarker is prefixed to a folder name once its item is saved.
	DefaultProcessedMarker = "済"
	// DefaultMaxAnalysisImages bounds the oracle payload.
	DefaultMaxAnalysisImages = 3
)

// ErrMarkFailed is returned by SaveItem when the item was saved but its
// source folder could not be renamed.
var ErrMarkFailed = errors.New("failed to mark source folder as processed")

// ErrEmptySource is returned by SubmitBatch when no source folder is given.
var ErrEmptySource = errors.New("source folder is required")

// Options configures a Runner. Storage, Oracle and Sessions are required.
type Options struct {
	Storage           Storage
	Oracle            Oracle
	Publisher         Publisher
	Ledger            LabelReserver
	Sessions          *storage.SessionStore
	LabelPrefix       string
	ProcessedMarker   string
	MaxAnalysisImages int
	Now               func() time.Time
}

type Runner struct {
	storage   Storage
	oracle    Oracle
	publisher Publisher
	ledger    LabelReserver
	sessions  *storage.SessionStore

	labelPrefix string
	marker      string
	maxImages   int
	now         func() time.Time

	inflight sync.Map
	wg       sync.WaitGroup
}

func New(opts Options) *Runner {
	r := &Runner{
		storage:     opts.Storage,
		oracle:      opts.Oracle,
		publisher:   opts.Publisher,
		ledger:      opts.Ledger,
		sessions:    opts.Sessions,
		labelPrefix: opts.LabelPrefix,
		marker:      opts.ProcessedMarker,
		maxImages:   opts.MaxAnalysisImages,
		now:         opts.Now,
	}
	if r.sessions == nil {
		r.sessions = storage.New()
	}
	if r.marker == "" {
		r.marker = DefaultProcessedMarker
	}
	if r.maxImages <= 0 {
		r.maxImages = DefaultMaxAnalysisImages
	}
	if r.now == nil {
		r.now = time.Now
	}
	return r
}

// SubmitBatch registers a new session and processes it in the background.
// The returned session is live; use Session for a consistent snapshot.
func (r *Runner) SubmitBatch(ctx context.Context, source string) (*models.Session, error) {
	source = strings.TrimSpace(source)
	if source == "" {
		return nil, ErrEmptySource
	}
	session := models.NewSession(uuid.NewString(), source)
	r.sessions.Set(session.ID, session)

	slog.Info("Batch submitted", "session_id", session.ID, "source", source)

	// The batch outlives the request that submitted it.
	bg := context.WithoutCancel(ctx)
	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		r.Run(bg, session)
	}()
	return session, nil
}

// Wait blocks until every submitted batch has finished.
func (r *Runner) Wait() {
	r.wg.Wait()
}

// Run discovers the items of a session and processes them one at a time.
func (r *Runner) Run(ctx context.Context, session *models.Session) {
	log := slog.With("session_id", session.ID)
	defer func() {
		if p := recover(); p != nil {
			log.Error("Batch aborted by panic", "panic", p)
			session.Abort(fmt.Errorf("internal error: %v", p))
		}
	}()

	items, err := r.discover(ctx, session.Source)
	if err != nil {
		log.Error("Discovery failed", "source", session.Source, "err", err)
		session.Abort(err)
		return
	}
	session.SetItems(items)
	log.Info("Discovery complete", "items", len(items))

	for i, item := range items {
		log.Info("Processing item", "item_id", item.ID, "label", item.Label, "progress", fmt.Sprintf("%d/%d", i+1, len(items)))
		r.processItem(ctx, session, item.ID, item.FolderID, item.Label)
	}

	session.Complete()
	log.Info("Batch complete")
}

// IsProcessed reports whether a folder name carries the processed marker.
func (r *Runner) IsProcessed(name string) bool {
	return strings.Contains(name, r.marker)
}

func (r *Runner) discover(ctx context.Context, source string) ([]*models.Item, error) {
	parentID, err := r.storage.ResolveFolder(ctx, source)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve source folder: %w", err)
	}

	folders, err := r.storage.ListChildFolders(ctx, parentID)
	if err != nil {
		return nil, fmt.Errorf("failed to list folders: %w", err)
	}

	var pending []models.Folder
	processed := 0
	for _, f := range folders {
		if r.IsProcessed(f.Name) {
			processed++
			continue
		}
		pending = append(pending, f)
	}
	if len(pending) == 0 {
		return nil, models.ErrNoUnprocessedFolders
	}

	base := processed
	if r.ledger != nil {
		base, err = r.ledger.Reserve(ctx, parentID, processed, len(pending))
		if err != nil {
			return nil, fmt.Errorf("failed to reserve labels: %w", err)
		}
	}

	assigned := labels.Generate(r.labelPrefix, base, len(pending), r.now())
	items := make([]*models.Item, 0, len(pending))
	for i, f := range pending {
		items = append(items, &models.Item{
			ID:         uuid.NewString(),
			FolderID:   f.ID,
			FolderName: f.Name,
			Label:      assigned[i],
			Status:     models.ItemPending,
		})
	}
	return items, nil
}

// processItem runs one item to success or error. Failures never escape.
func (r *Runner) processItem(ctx context.Context, session *models.Session, itemID, folderID, label string) {
	log := slog.With("session_id", session.ID, "item_id", itemID)

	defer func() {
		if p := recover(); p != nil {
			r.fail(session, itemID, fmt.Errorf("internal error: %v", p))
		}
	}()

	ordered, err := r.listImages(ctx, folderID)
	if err != nil {
		r.fail(session, itemID, err)
		return
	}
	r.setImages(session, itemID, ordered)

	analysis, err := r.analyze(ctx, ordered, nil)
	if err != nil {
		r.fail(session, itemID, err)
		return
	}

	urls, err := r.publish(ctx, label, ordered)
	if err != nil {
		r.fail(session, itemID, err)
		return
	}

	if err := session.UpdateItem(itemID, func(item *models.Item) error {
		return item.Succeed(analysis, urls)
	}); err != nil {
		log.Error("Unable to record analysis", "err", err)
		return
	}
	log.Info("Item analyzed", "title", analysis.Title, "artist", analysis.Artist, "images", len(ordered))
}

func (r *Runner) fail(session *models.Session, itemID string, cause error) {
	slog.Warn("Item failed", "session_id", session.ID, "item_id", itemID, "err", cause)
	if err := session.UpdateItem(itemID, func(item *models.Item) error {
		return item.Fail(cause)
	}); err != nil {
		slog.Error("Unable to record item failure", "session_id", session.ID, "item_id", itemID, "err", err)
	}
}

func (r *Runner) listImages(ctx context.Context, folderID string) ([]models.ImageRef, error) {
	refs, err := r.storage.ListImages(ctx, folderID)
	if err != nil {
		return nil, fmt.Errorf("failed to list images: %w", err)
	}
	return images.Sort(refs), nil
}

// analyze selects, fetches and submits the analysis subset.
func (r *Runner) analyze(ctx context.Context, ordered []models.ImageRef, exclude *models.Analysis) (*models.Analysis, error) {
	subset, err := images.SelectForAnalysis(ordered)
	if err != nil {
		return nil, err
	}
	if len(subset) > r.maxImages {
		subset = subset[:r.maxImages]
	}

	data := make([][]byte, 0, len(subset))
	for _, ref := range subset {
		b, err := r.storage.FetchBytes(ctx, ref.FileID)
		if err != nil {
			return nil, fmt.Errorf("failed to download %s: %w", ref.Name, err)
		}
		data = append(data, b)
	}

	return r.oracle.Analyze(ctx, data, exclude)
}

// publish resolves the externally reachable URL of every image, in order.
func (r *Runner) publish(ctx context.Context, label string, ordered []models.ImageRef) ([]string, error) {
	urls := make([]string, 0, len(ordered))
	if r.publisher == nil {
		resolver, ok := r.storage.(URLResolver)
		if !ok {
			return nil, nil
		}
		for _, ref := range ordered {
			urls = append(urls, resolver.PublicURL(ref.FileID))
		}
		return urls, nil
	}

	for _, ref := range ordered {
		b, err := r.storage.FetchBytes(ctx, ref.FileID)
		if err != nil {
			return nil, fmt.Errorf("failed to download %s: %w", ref.Name, err)
		}
		url, err := r.publisher.Publish(ctx, b, label+"_"+ref.Name)
		if err != nil {
			return nil, fmt.Errorf("failed to publish %s: %w", ref.Name, err)
		}
		urls = append(urls, url)
	}
	return urls, nil
}

// Reanalyze asks the oracle again for one item, passing the previous answer
// as an exclusion hint. Only one re-analysis per item runs at a time.
func (r *Runner) Reanalyze(ctx context.Context, sessionID, itemID string) (*models.Analysis, error) {
	session, ok := r.sessions.Get(sessionID)
	if !ok {
		return nil, fmt.Errorf("session %s: %w", sessionID, models.ErrNotFound)
	}

	if _, busy := r.inflight.LoadOrStore(itemID, struct{}{}); busy {
		return nil, models.ErrAnalysisInFlight
	}
	defer r.inflight.Delete(itemID)

	var (
		prior   *models.Analysis
		ordered []models.ImageRef
		urls    []string
		label   string
		folder  string
	)
	err := session.UpdateItem(itemID, func(item *models.Item) error {
		var err error
		if prior, err = item.Research(); err != nil {
			return err
		}
		ordered = append([]models.ImageRef(nil), item.Images...)
		urls = append([]string(nil), item.PublishedURLs...)
		label = item.Label
		folder = item.FolderID
		return nil
	})
	if err != nil {
		return nil, err
	}

	log := slog.With("session_id", sessionID, "item_id", itemID)
	log.Info("Re-analyzing item", "label", label, "has_hint", prior != nil)

	analysis, err := r.reanalyze(ctx, session, itemID, folder, label, ordered, urls, prior)
	if err != nil {
		// A caller that gave up leaves the previous answer in place.
		if ctx.Err() != nil && prior != nil {
			log.Warn("Re-analysis abandoned, restoring previous analysis", "err", err)
			r.restore(session, itemID, prior, urls)
			return nil, err
		}
		r.fail(session, itemID, err)
		return nil, err
	}
	return analysis, nil
}

func (r *Runner) restore(session *models.Session, itemID string, prior *models.Analysis, urls []string) {
	if err := session.UpdateItem(itemID, func(item *models.Item) error {
		return item.Succeed(prior, urls)
	}); err != nil {
		slog.Error("Unable to restore item", "session_id", session.ID, "item_id", itemID, "err", err)
	}
}

func (r *Runner) setImages(session *models.Session, itemID string, ordered []models.ImageRef) {
	if err := session.UpdateItem(itemID, func(item *models.Item) error {
		item.Images = ordered
		return nil
	}); err != nil {
		slog.Error("Unable to record item images", "session_id", session.ID, "item_id", itemID, "err", err)
	}
}

func (r *Runner) reanalyze(ctx context.Context, session *models.Session, itemID, folderID, label string, ordered []models.ImageRef, urls []string, prior *models.Analysis) (result *models.Analysis, err error) {
	defer func() {
		if p := recover(); p != nil {
			err = fmt.Errorf("internal error: %v", p)
		}
	}()

	if len(ordered) == 0 {
		ordered, err = r.listImages(ctx, folderID)
		if err != nil {
			return nil, err
		}
		r.setImages(session, itemID, ordered)
	}

	analysis, err := r.analyze(ctx, ordered, prior)
	if err != nil {
		return nil, err
	}

	if len(urls) != len(ordered) {
		urls, err = r.publish(ctx, label, ordered)
		if err != nil {
			return nil, err
		}
	}

	if err := session.UpdateItem(itemID, func(item *models.Item) error {
		return item.Succeed(analysis, urls)
	}); err != nil {
		return nil, err
	}
	return analysis, nil
}

// SaveItem applies operator edits and moves a successful item to saved, then
// renames its source folder so later discovery skips it.
func (r *Runner) SaveItem(ctx context.Context, sessionID, itemID string, edits models.UserEdits) error {
	session, ok := r.sessions.Get(sessionID)
	if !ok {
		return fmt.Errorf("session %s: %w", sessionID, models.ErrNotFound)
	}

	var folderID, folderName string
	err := session.UpdateItem(itemID, func(item *models.Item) error {
		if edits.Version != 0 && edits.Version != item.Version {
			return fmt.Errorf("%w: have version %d, got %d", models.ErrStaleVersion, item.Version, edits.Version)
		}
		if err := item.Transition(models.ItemSaved); err != nil {
			return err
		}
		e := edits
		e.Version = item.Version
		item.Edits = &e
		folderID, folderName = item.FolderID, item.FolderName
		return nil
	})
	if err != nil {
		return err
	}

	slog.Info("Item saved", "session_id", sessionID, "item_id", itemID, "title", edits.Title, "price", edits.Price)

	newName := r.marker + " " + folderName
	if err := r.storage.Rename(ctx, folderID, newName); err != nil {
		slog.Error("Unable to rename source folder", "session_id", sessionID, "item_id", itemID, "folder", folderName, "err", err)
		return fmt.Errorf("%w %q: %v", ErrMarkFailed, folderName, err)
	}
	return nil
}

// Session returns a snapshot of a session.
func (r *Runner) Session(sessionID string) (*models.Session, error) {
	session, ok := r.sessions.Get(sessionID)
	if !ok {
		return nil, fmt.Errorf("session %s: %w", sessionID, models.ErrNotFound)
	}
	return session.Snapshot(), nil
}

// Sessions returns snapshots of every session, oldest first.
func (r *Runner) Sessions() []*models.Session {
	all := r.sessions.List()
	out := make([]*models.Session, 0, len(all))
	for _, s := range all {
		out = append(out, s.Snapshot())
	}
	return out
}

// OpenImage streams an image straight from storage for display.
func (r *Runner) OpenImage(ctx context.Context, fileID string) (io.ReadCloser, string, error) {
	return r.storage.OpenStream(ctx, fileID)
}
