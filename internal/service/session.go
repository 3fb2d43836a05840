package service

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"cleaning-manager/internal/model"
)

// SessionState tracks how far a session got through sign-in and loading.
type SessionState int

const (
	StateUnauthenticated SessionState = iota
	StateAuthenticating
	StateLoading
	StateReady
	StateAuthFailed
	StateClosed
)

func (s SessionState) String() string {
	switch s {
	case StateUnauthenticated:
		return "unauthenticated"
	case StateAuthenticating:
		return "authenticating"
	case StateLoading:
		return "loading"
	case StateReady:
		return "ready"
	case StateAuthFailed:
		return "auth-failed"
	case StateClosed:
		return "closed"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

var (
	ErrSessionNotReady = errors.New("session is not ready")
	ErrSessionStarted  = errors.New("session already started")
)

// SessionConfig is shared by every session a manager opens.
type SessionConfig struct {
	AppID        string
	Seed         model.Catalog
	Location     *time.Location
	SyncDelay    time.Duration
	StoreTimeout time.Duration
	// Now defaults to time.Now.
	Now func() time.Time
}

func (c SessionConfig) now() time.Time {
	now := time.Now
	if c.Now != nil {
		now = c.Now
	}
	t := now()
	if c.Location != nil {
		t = t.In(c.Location)
	}
	return t
}

func (c SessionConfig) storeTimeout() time.Duration {
	if c.StoreTimeout <= 0 {
		return defaultStoreTimeout
	}
	return c.StoreTimeout
}

// Session is the checklist state of one signed-in user: the live catalog,
// its history and the sync controller writing it back. Catalog changes are
// applied in memory first and persisted afterwards; a failed write is logged
// and never undoes the change.
type Session struct {
	cfg   SessionConfig
	store DocumentStore

	mu       sync.Mutex
	state    SessionState
	identity string
	catalog  model.Catalog
	syncer   *SyncController
	archive  *ArchiveManager
}

func NewSession(store DocumentStore, cfg SessionConfig) *Session {
	return &Session{cfg: cfg, store: store}
}

// Start signs in and loads the catalog and history. Authentication failure
// leaves the session in StateAuthFailed for good.
func (s *Session) Start(ctx context.Context, provider IdentityProvider, cred Credential) error {
	s.mu.Lock()
	if s.state != StateUnauthenticated {
		s.mu.Unlock()
		return ErrSessionStarted
	}
	s.state = StateAuthenticating
	s.mu.Unlock()

	authCtx, cancel := context.WithTimeout(ctx, s.cfg.storeTimeout())
	identity, err := provider.Authenticate(authCtx, cred)
	cancel()
	if err != nil {
		s.mu.Lock()
		if s.state != StateClosed {
			s.state = StateAuthFailed
		}
		s.mu.Unlock()
		log.Printf("authenticate: %v", err)
		return err
	}

	s.mu.Lock()
	if s.state == StateClosed {
		s.mu.Unlock()
		return ErrSessionNotReady
	}
	s.identity = identity
	s.state = StateLoading
	s.mu.Unlock()

	syncer := NewSyncController(s.store, CatalogPath(s.cfg.AppID, identity), s.cfg.SyncDelay, s.cfg.StoreTimeout, s.cfg.Now)
	catalog := syncer.Initialize(ctx, s.cfg.Seed)

	archive := NewArchiveManager(s.store, s.cfg.AppID, identity)
	loadCtx, cancel := context.WithTimeout(ctx, s.cfg.storeTimeout())
	if err := archive.LoadHistory(loadCtx); err != nil {
		log.Printf("%v", err)
	}
	cancel()

	s.mu.Lock()
	if s.state == StateClosed {
		s.mu.Unlock()
		syncer.Close()
		return ErrSessionNotReady
	}
	s.catalog = catalog
	s.syncer = syncer
	s.archive = archive
	s.state = StateReady
	s.mu.Unlock()

	log.Printf("[info] session ready identity=%s categories=%d history=%d", identity, catalog.Len(), len(archive.Records()))
	return nil
}

func (s *Session) State() SessionState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

func (s *Session) Identity() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.identity
}

// Catalog returns the current snapshot.
func (s *Session) Catalog() model.Catalog {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.catalog
}

// Syncing reports whether a save is in flight. It never gates changes.
func (s *Session) Syncing() bool {
	s.mu.Lock()
	syncer := s.syncer
	s.mu.Unlock()
	return syncer != nil && syncer.Syncing()
}

// Toggle flips task id in category.
func (s *Session) Toggle(category string, id int64) (bool, error) {
	return s.mutate(func(c model.Catalog) (model.Catalog, bool) {
		return c.Toggle(category, id)
	})
}

// AddTask appends a task with text to category.
func (s *Session) AddTask(category, text string) (model.Task, error) {
	var added model.Task
	var addErr error
	_, err := s.mutate(func(c model.Catalog) (model.Catalog, bool) {
		next, task, err := c.Add(category, text, s.cfg.now())
		if err != nil {
			addErr = err
			return c, false
		}
		added = task
		return next, true
	})
	if err != nil {
		return model.Task{}, err
	}
	if addErr != nil {
		return model.Task{}, addErr
	}
	return added, nil
}

// RemoveTask deletes task id from category.
func (s *Session) RemoveTask(category string, id int64) (bool, error) {
	return s.mutate(func(c model.Catalog) (model.Catalog, bool) {
		return c.Remove(category, id)
	})
}

// ResetAll clears every completion mark.
func (s *Session) ResetAll() error {
	_, err := s.mutate(func(c model.Catalog) (model.Catalog, bool) {
		return c.ResetAll(), true
	})
	return err
}

// mutate swaps in the catalog fn builds and queues it for saving while the
// lock is held, so saves are queued in the same order as the changes.
func (s *Session) mutate(fn func(model.Catalog) (model.Catalog, bool)) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != StateReady {
		return false, ErrSessionNotReady
	}
	next, changed := fn(s.catalog)
	if !changed {
		return false, nil
	}
	s.catalog = next
	s.syncer.Persist(next)
	return true, nil
}

// Archive stores a snapshot of the current catalog for this month.
// A store failure is logged and returned; history is left untouched.
func (s *Session) Archive(ctx context.Context) (model.HistoryRecord, error) {
	s.mu.Lock()
	if s.state != StateReady {
		s.mu.Unlock()
		return model.HistoryRecord{}, ErrSessionNotReady
	}
	catalog := s.catalog
	archive := s.archive
	s.mu.Unlock()

	ctx, cancel := context.WithTimeout(ctx, s.cfg.storeTimeout())
	defer cancel()
	record, err := archive.Archive(ctx, catalog, s.cfg.now())
	if err != nil {
		log.Printf("%v", err)
		return model.HistoryRecord{}, err
	}
	log.Printf("[info] archived %s identity=%s progress=%d", record.Date, s.Identity(), record.Progress)
	return record, nil
}

// DeleteRecord removes a history record. A store failure is logged and returned.
func (s *Session) DeleteRecord(ctx context.Context, timestamp int64, dateLabel string) error {
	archive, err := s.readyArchive()
	if err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(ctx, s.cfg.storeTimeout())
	defer cancel()
	if err := archive.DeleteRecord(ctx, timestamp, dateLabel); err != nil {
		log.Printf("%v", err)
		return err
	}
	log.Printf("[info] deleted history %s identity=%s", dateLabel, s.Identity())
	return nil
}

// History returns archived records newest first.
func (s *Session) History() []model.HistoryRecord {
	archive, err := s.readyArchive()
	if err != nil {
		return nil
	}
	return archive.Records()
}

// FindRecord looks up a cached record by timestamp.
func (s *Session) FindRecord(timestamp int64) (model.HistoryRecord, bool) {
	archive, err := s.readyArchive()
	if err != nil {
		return model.HistoryRecord{}, false
	}
	return archive.Find(timestamp)
}

// ToggleDetail expands or collapses one history record.
func (s *Session) ToggleDetail(timestamp int64) (bool, error) {
	archive, err := s.readyArchive()
	if err != nil {
		return false, err
	}
	return archive.ToggleDetail(timestamp), nil
}

// ExpandedRecord returns the timestamp of the expanded record, if any.
func (s *Session) ExpandedRecord() (int64, bool) {
	archive, err := s.readyArchive()
	if err != nil {
		return 0, false
	}
	return archive.Expanded()
}

// Close flushes pending saves and ends the session for good.
func (s *Session) Close() {
	s.mu.Lock()
	syncer := s.syncer
	s.state = StateClosed
	s.mu.Unlock()
	if syncer != nil {
		syncer.Close()
	}
}

func (s *Session) readyArchive() (*ArchiveManager, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != StateReady {
		return nil, ErrSessionNotReady
	}
	return s.archive, nil
}
