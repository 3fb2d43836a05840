package service

import (
	"context"
	"errors"
	"log"
	"sync"
	"time"

	"cleaning-manager/internal/model"
	"cleaning-manager/internal/repository"
)

// defaultStoreTimeout bounds a single store call when no timeout is configured.
const defaultStoreTimeout = 10 * time.Second

// SyncController mirrors the in-memory catalog to the store.
//
// Persist never blocks: catalogs are queued and written in order by a single
// goroutine, so the store sees writes for one identity in mutation order.
// Failed writes are logged and dropped. Syncing reports whether a write is
// queued or finished less than the indicator delay ago; it is only a hint
// for the UI.
type SyncController struct {
	store   DocumentStore
	path    string
	delay   time.Duration
	timeout time.Duration
	now     func() time.Time

	wake chan struct{}
	stop chan struct{}
	done chan struct{}

	mu      sync.Mutex
	queue   []model.Catalog
	pending int
	syncing bool
	closed  bool
}

func NewSyncController(store DocumentStore, path string, delay, timeout time.Duration, now func() time.Time) *SyncController {
	if now == nil {
		now = time.Now
	}
	if timeout <= 0 {
		timeout = defaultStoreTimeout
	}
	c := &SyncController{
		store:   store,
		path:    path,
		delay:   delay,
		timeout: timeout,
		now:     now,
		wake:    make(chan struct{}, 1),
		stop:    make(chan struct{}),
		done:    make(chan struct{}),
	}
	go c.run()
	return c
}

// Initialize loads the stored catalog. When none exists the seed is written
// and adopted; this is the only place the catalog document is created.
// Any other read error keeps the seed in memory without writing it.
func (c *SyncController) Initialize(ctx context.Context, seed model.Catalog) model.Catalog {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	var doc model.CatalogDocument
	err := c.store.GetDocument(ctx, c.path, &doc)
	switch {
	case err == nil:
		return doc.Categories
	case errors.Is(err, repository.ErrNotFound):
		if err := c.store.SetDocument(ctx, c.path, model.CatalogDocument{Categories: seed}); err != nil {
			log.Printf("seed catalog: %v", err)
		} else {
			log.Printf("[info] seeded catalog path=%s", c.path)
		}
		return seed.Clone()
	default:
		log.Printf("load catalog: %v", err)
		return seed.Clone()
	}
}

// Persist queues a full overwrite of the stored catalog.
func (c *SyncController) Persist(catalog model.Catalog) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		log.Printf("save catalog %s: sync controller closed", c.path)
		return
	}
	c.queue = append(c.queue, catalog)
	c.pending++
	c.syncing = true
	select {
	case c.wake <- struct{}{}:
	default:
	}
}

func (c *SyncController) Syncing() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.syncing
}

// Close writes whatever is still queued and stops the writer.
func (c *SyncController) Close() {
	c.mu.Lock()
	if !c.closed {
		c.closed = true
		close(c.stop)
	}
	c.mu.Unlock()
	<-c.done
}

func (c *SyncController) run() {
	defer close(c.done)
	for {
		select {
		case <-c.wake:
			c.drain()
		case <-c.stop:
			c.drain()
			return
		}
	}
}

func (c *SyncController) drain() {
	for {
		c.mu.Lock()
		if len(c.queue) == 0 {
			c.mu.Unlock()
			return
		}
		next := c.queue[0]
		c.queue = c.queue[1:]
		c.mu.Unlock()

		c.write(next)
	}
}

func (c *SyncController) write(catalog model.Catalog) {
	ctx, cancel := context.WithTimeout(context.Background(), c.timeout)
	defer cancel()

	doc := model.CatalogDocument{Categories: catalog, LastUpdated: c.now().UnixMilli()}
	if err := c.store.SetDocument(ctx, c.path, doc); err != nil {
		log.Printf("save catalog %s: %v", c.path, err)
	}
	c.finish()
}

func (c *SyncController) finish() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.pending--
	if c.pending > 0 {
		return
	}
	time.AfterFunc(c.delay, func() {
		c.mu.Lock()
		defer c.mu.Unlock()
		if c.pending == 0 {
			c.syncing = false
		}
	})
}
