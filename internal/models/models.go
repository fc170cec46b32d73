package models

import (
	"errors"
	"fmt"
	"sync"
	"time"
)

// ItemStatus is the review state of a single item.
type ItemStatus string

const (
	ItemPending     ItemStatus = "pending"
	ItemResearching ItemStatus = "researching"
	ItemSuccess     ItemStatus = "success"
	ItemError       ItemStatus = "error"
	ItemSaved       ItemStatus = "saved"
)

// SessionStatus is the aggregate state of a batch.
type SessionStatus string

const (
	SessionProcessing SessionStatus = "processing"
	SessionCompleted  SessionStatus = "completed"
	SessionError      SessionStatus = "error"
)

var (
	ErrNotFound             = errors.New("not found")
	ErrInvalidTransition    = errors.New("invalid status transition")
	ErrStaleVersion         = errors.New("item was modified since it was loaded")
	ErrAnalysisInFlight     = errors.New("analysis already in progress")
	ErrNoUnprocessedFolders = errors.New("no unprocessed folders found")
)

// transitions lists every allowed edge of the item state machine.
var transitions = map[ItemStatus][]ItemStatus{
	ItemPending:     {ItemSuccess, ItemError},
	ItemSuccess:     {ItemResearching, ItemSaved},
	ItemResearching: {ItemSuccess, ItemError},
	ItemError:       {ItemResearching},
}

// CanTransition reports whether an item may move from one status to another.
func CanTransition(from, to ItemStatus) bool {
	for _, s := range transitions[from] {
		if s == to {
			return true
		}
	}
	return false
}

// Folder is a child folder of the batch source.
type Folder struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// ImageRef points at one image file inside an item folder.
type ImageRef struct {
	FileID string `json:"file_id"`
	Name   string `json:"name"`
}

// Analysis is the structured metadata returned by the analysis oracle.
type Analysis struct {
	Title          string   `json:"title"`
	Artist         string   `json:"artist"`
	Type           string   `json:"type"`
	Genre          string   `json:"genre"`
	Style          string   `json:"style"`
	RecordLabel    string   `json:"record_label"`
	CatalogNumber  string   `json:"catalog_number"`
	Format         string   `json:"format"`
	Country        string   `json:"country"`
	Released       string   `json:"released"`
	Tracklist      []string `json:"tracklist"`
	IsFirstEdition bool     `json:"is_first_edition"`
	HasBonus       bool     `json:"has_bonus"`
	EditionNotes   string   `json:"edition_notes,omitempty"`
	DiscogsURL     string   `json:"discogs_url,omitempty"`
	MPN            string   `json:"mpn,omitempty"`
}

// UserEdits are the operator overrides captured when an item is saved.
// Version, when non-zero, must match the item's current version.
type UserEdits struct {
	Title     string `json:"title"`
	Price     string `json:"price"`
	Shipping  string `json:"shipping"`
	Condition string `json:"condition,omitempty"`
	Category  string `json:"category,omitempty"`
	Comment   string `json:"comment,omitempty"`
	Version   uint64 `json:"version,omitempty"`
}

// Item is one source folder moving through discovery, analysis, review and export.
type Item struct {
	ID            string     `json:"id"`
	FolderID      string     `json:"folder_id"`
	FolderName    string     `json:"folder_name"`
	Label         string     `json:"label"`
	Status        ItemStatus `json:"status"`
	Version       uint64     `json:"version"`
	Images        []ImageRef `json:"images,omitempty"`
	Analysis      *Analysis  `json:"analysis,omitempty"`
	PublishedURLs []string   `json:"published_urls,omitempty"`
	Edits         *UserEdits `json:"edits,omitempty"`
	Error         string     `json:"error,omitempty"`
}

// Transition moves the item along one edge of the state machine and bumps its version.
func (i *Item) Transition(to ItemStatus) error {
	if !CanTransition(i.Status, to) {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, i.Status, to)
	}
	i.Status = to
	i.Version++
	return nil
}

// Fail moves the item to error and records the reason. Analysis is dropped.
func (i *Item) Fail(err error) error {
	if err := i.Transition(ItemError); err != nil {
		return err
	}
	i.Analysis = nil
	i.Error = err.Error()
	return nil
}

// Research moves the item to researching and hands back the analysis it
// held, which is no longer visible on the item.
func (i *Item) Research() (*Analysis, error) {
	if err := i.Transition(ItemResearching); err != nil {
		return nil, err
	}
	prior := i.Analysis
	i.Analysis = nil
	i.Error = ""
	return prior, nil
}

// Succeed records an analysis result and moves the item to success.
func (i *Item) Succeed(analysis *Analysis, urls []string) error {
	if err := i.Transition(ItemSuccess); err != nil {
		return err
	}
	i.Analysis = analysis
	i.PublishedURLs = urls
	i.Error = ""
	return nil
}

// Clone returns a deep copy of the item.
func (i *Item) Clone() *Item {
	c := *i
	c.Images = append([]ImageRef(nil), i.Images...)
	c.PublishedURLs = append([]string(nil), i.PublishedURLs...)
	if i.Analysis != nil {
		a := *i.Analysis
		a.Tracklist = append([]string(nil), i.Analysis.Tracklist...)
		c.Analysis = &a
	}
	if i.Edits != nil {
		e := *i.Edits
		c.Edits = &e
	}
	return &c
}

// Session is one batch submission and its items.
type Session struct {
	ID          string        `json:"id"`
	Source      string        `json:"source"`
	Status      SessionStatus `json:"status"`
	Items       []*Item       `json:"items"`
	Error       string        `json:"error,omitempty"`
	CreatedAt   time.Time     `json:"created_at"`
	CompletedAt *time.Time    `json:"completed_at,omitempty"`

	mu sync.Mutex
}

// NewSession returns an empty session in the processing state.
func NewSession(id, source string) *Session {
	return &Session{
		ID:        id,
		Source:    source,
		Status:    SessionProcessing,
		Items:     []*Item{},
		CreatedAt: time.Now(),
	}
}

// SetItems replaces the item list once discovery completes.
func (s *Session) SetItems(items []*Item) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Items = items
}

// Complete marks the session completed.
func (s *Session) Complete() {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := time.Now()
	s.Status = SessionCompleted
	s.CompletedAt = &now
}

// Abort marks the session failed with a session-level reason.
func (s *Session) Abort(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := time.Now()
	s.Status = SessionError
	s.Error = err.Error()
	s.CompletedAt = &now
}

// UpdateItem runs fn against the item with the given ID while holding the session lock.
func (s *Session) UpdateItem(itemID string, fn func(*Item) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, item := range s.Items {
		if item.ID == itemID {
			return fn(item)
		}
	}
	return fmt.Errorf("item %s: %w", itemID, ErrNotFound)
}

// Item returns a copy of the item with the given ID.
func (s *Session) Item(itemID string) (*Item, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, item := range s.Items {
		if item.ID == itemID {
			return item.Clone(), true
		}
	}
	return nil, false
}

// Snapshot returns a deep copy that is safe to read while the pipeline keeps running.
func (s *Session) Snapshot() *Session {
	s.mu.Lock()
	defer s.mu.Unlock()
	c := &Session{
		ID:        s.ID,
		Source:    s.Source,
		Status:    s.Status,
		Items:     make([]*Item, 0, len(s.Items)),
		Error:     s.Error,
		CreatedAt: s.CreatedAt,
	}
	if s.CompletedAt != nil {
		t := *s.CompletedAt
		c.CompletedAt = &t
	}
	for _, item := range s.Items {
		c.Items = append(c.Items, item.Clone())
	}
	return c
}

// Category maps a store category name to its code.
type Category struct {
	Name string `json:"name" yaml:"name"`
	ID   string `json:"id" yaml:"id"`
}
