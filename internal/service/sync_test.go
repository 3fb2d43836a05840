package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"cleaning-manager/internal/model"
	"cleaning-manager/internal/repository"
)

func TestSyncController_InitializeSeedsMissingCatalog(t *testing.T) {
	store := newTestStore(t)
	path := CatalogPath(testAppID, "u1")
	c := NewSyncController(store, path, time.Millisecond, time.Second, nil)
	defer c.Close()

	got := c.Initialize(context.Background(), testSeed())
	assert.Equal(t, testSeed().Categories(), got.Categories())

	doc := readCatalog(t, store, "u1")
	assert.Equal(t, testSeed().Names(), doc.Categories.Names())
	assert.Zero(t, doc.LastUpdated, "the seed write carries no update time")
}

func TestSyncController_InitializeAdoptsStoredCatalog(t *testing.T) {
	store := newTestStore(t)
	path := CatalogPath(testAppID, "u1")
	stored, _ := testSeed().Toggle("주방", 22)
	require.NoError(t, store.SetDocument(context.Background(), path, model.CatalogDocument{Categories: stored, LastUpdated: 5}))

	c := NewSyncController(store, path, time.Millisecond, time.Second, nil)
	defer c.Close()

	got := c.Initialize(context.Background(), testSeed())
	assert.Equal(t, stored.Categories(), got.Categories())
}

func TestSyncController_InitializeReadFailureKeepsSeedUnwritten(t *testing.T) {
	base := newTestStore(t)
	store := &flakyStore{DocumentStore: base, failGet: true}
	path := CatalogPath(testAppID, "u1")
	c := NewSyncController(store, path, time.Millisecond, time.Second, nil)
	defer c.Close()

	got := c.Initialize(context.Background(), testSeed())
	assert.Equal(t, testSeed().Names(), got.Names())
	assert.Zero(t, store.setCount())

	var doc model.CatalogDocument
	assert.ErrorIs(t, base.GetDocument(context.Background(), path, &doc), repository.ErrNotFound)
}

func TestSyncController_PersistWritesInOrder(t *testing.T) {
	store := newTestStore(t)
	clock := &fixedClock{now: time.UnixMilli(1_710_000_000_000)}
	c := NewSyncController(store, CatalogPath(testAppID, "u1"), time.Millisecond, time.Second, clock.Now)

	catalog := testSeed()
	for _, id := range []int64{22, 23, 24, 22} {
		catalog, _ = catalog.Toggle("주방", id)
		c.Persist(catalog)
	}
	c.Close()

	doc := readCatalog(t, store, "u1")
	assert.Equal(t, catalog.Categories(), doc.Categories.Categories())
	assert.Equal(t, clock.Now().UnixMilli(), doc.LastUpdated)
}

func TestSyncController_SyncingIndicator(t *testing.T) {
	store := newTestStore(t)
	c := NewSyncController(store, CatalogPath(testAppID, "u1"), 20*time.Millisecond, time.Second, nil)
	defer c.Close()

	assert.False(t, c.Syncing())
	c.Persist(testSeed())
	assert.True(t, c.Syncing())
	assert.Eventually(t, func() bool { return !c.Syncing() }, 2*time.Second, 5*time.Millisecond)
}

func TestSyncController_FailedWriteIsDropped(t *testing.T) {
	store := &flakyStore{DocumentStore: newTestStore(t), failSet: true}
	c := NewSyncController(store, CatalogPath(testAppID, "u1"), time.Millisecond, time.Second, nil)

	c.Persist(testSeed())
	c.Persist(testSeed().ResetAll())
	assert.Eventually(t, func() bool { return !c.Syncing() }, 2*time.Second, 5*time.Millisecond)
	c.Close()

	assert.Equal(t, 2, store.setCount(), "each change is one write attempt, no retries")
}

func TestSyncController_PersistAfterCloseIsIgnored(t *testing.T) {
	store := &flakyStore{DocumentStore: newTestStore(t)}
	c := NewSyncController(store, CatalogPath(testAppID, "u1"), time.Millisecond, time.Second, nil)
	c.Close()
	c.Close()

	c.Persist(testSeed())
	assert.Zero(t, store.setCount())
}
