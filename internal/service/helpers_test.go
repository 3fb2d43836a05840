package service

import (
	"context"
	"encoding/json"
	"errors"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"cleaning-manager/internal/model"
	"cleaning-manager/internal/repository"
)

const testAppID = "cleaning-test"

var errStoreDown = errors.New("store unavailable")

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := repository.NewDB(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			sqlDB.Close()
		}
	})
	return db
}

func newTestStore(t *testing.T) *repository.DocumentRepository {
	t.Helper()
	return repository.NewDocumentRepository(newTestDB(t))
}

func testSeed() model.Catalog {
	return model.NewCatalog(
		model.Category{Name: "안방", Tasks: []model.Task{
			{ID: 1, Text: "안방 침대 및 청소"},
			{ID: 2, Text: "안방 책장 정리"},
		}},
		model.Category{Name: "주방", Tasks: []model.Task{
			{ID: 22, Text: "식탁 위 수납"},
			{ID: 23, Text: "싱크대 위"},
			{ID: 24, Text: "싱크대 수납"},
			{ID: 25, Text: "오븐 장 1,2,3,4"},
			{ID: 26, Text: "냉장고장1,2"},
			{ID: 27, Text: "아일랜드장"},
			{ID: 28, Text: "다용도실"},
		}},
		model.Category{Name: "욕실", Tasks: []model.Task{
			{ID: 33, Text: "안방 욕실"},
		}},
	)
}

// flakyStore wraps a store and fails the selected operations. With hang set,
// writes and deletes block until their context ends.
type flakyStore struct {
	DocumentStore

	mu         sync.Mutex
	failGet    bool
	failSet    bool
	failDelete bool
	failList   bool
	hang       bool
	sets       int
}

func (s *flakyStore) GetDocument(ctx context.Context, path string, out any) error {
	s.mu.Lock()
	fail := s.failGet
	s.mu.Unlock()
	if fail {
		return errStoreDown
	}
	return s.DocumentStore.GetDocument(ctx, path, out)
}

func (s *flakyStore) SetDocument(ctx context.Context, path string, value any) error {
	s.mu.Lock()
	s.sets++
	fail, hang := s.failSet, s.hang
	s.mu.Unlock()
	if hang {
		<-ctx.Done()
		return ctx.Err()
	}
	if fail {
		return errStoreDown
	}
	return s.DocumentStore.SetDocument(ctx, path, value)
}

func (s *flakyStore) DeleteDocument(ctx context.Context, path string) error {
	s.mu.Lock()
	fail, hang := s.failDelete, s.hang
	s.mu.Unlock()
	if hang {
		<-ctx.Done()
		return ctx.Err()
	}
	if fail {
		return errStoreDown
	}
	return s.DocumentStore.DeleteDocument(ctx, path)
}

func (s *flakyStore) ListDocuments(ctx context.Context, collection string) ([]json.RawMessage, error) {
	s.mu.Lock()
	fail := s.failList
	s.mu.Unlock()
	if fail {
		return nil, errStoreDown
	}
	return s.DocumentStore.ListDocuments(ctx, collection)
}

func (s *flakyStore) setCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.sets
}

// staticIdentity always signs in as the same identity, or fails with err.
type staticIdentity struct {
	identity string
	err      error
}

func (p staticIdentity) Authenticate(context.Context, Credential) (string, error) {
	return p.identity, p.err
}

// fixedClock returns a settable time.
type fixedClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fixedClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fixedClock) Set(t time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = t
}

func readCatalog(t *testing.T, store DocumentStore, identity string) model.CatalogDocument {
	t.Helper()
	var doc model.CatalogDocument
	require.NoError(t, store.GetDocument(context.Background(), CatalogPath(testAppID, identity), &doc))
	return doc
}
