package service

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"sync"
	"time"

	"cleaning-manager/internal/model"
)

// ArchiveManager keeps the monthly history of one identity.
type ArchiveManager struct {
	store    DocumentStore
	appID    string
	identity string

	mu          sync.Mutex
	records     []model.HistoryRecord
	expanded    int64
	hasExpanded bool
}

func NewArchiveManager(store DocumentStore, appID, identity string) *ArchiveManager {
	return &ArchiveManager{store: store, appID: appID, identity: identity}
}

// Archive snapshots catalog as the record for now's month, overwriting any
// earlier record of that month. The cached history changes only once the
// store accepted the record.
func (m *ArchiveManager) Archive(ctx context.Context, catalog model.Catalog, now time.Time) (model.HistoryRecord, error) {
	record := model.NewHistoryRecord(catalog, now)
	if err := m.store.SetDocument(ctx, HistoryPath(m.appID, m.identity, record.Date), record); err != nil {
		return model.HistoryRecord{}, fmt.Errorf("archive %s: %w", record.Date, err)
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	next := make([]model.HistoryRecord, 0, len(m.records)+1)
	replaced := false
	for _, existing := range m.records {
		if existing.Date == record.Date {
			next = append(next, record)
			replaced = true
			continue
		}
		next = append(next, existing)
	}
	if !replaced {
		next = append([]model.HistoryRecord{record}, next...)
	}
	model.SortHistory(next)
	m.records = next
	return record, nil
}

// LoadHistory replaces the cached history with what the store holds.
// Documents that cannot be decoded are skipped.
func (m *ArchiveManager) LoadHistory(ctx context.Context) error {
	bodies, err := m.store.ListDocuments(ctx, HistoryCollection(m.appID, m.identity))
	if err != nil {
		return fmt.Errorf("load history: %w", err)
	}
	records := make([]model.HistoryRecord, 0, len(bodies))
	for _, body := range bodies {
		var record model.HistoryRecord
		if err := json.Unmarshal(body, &record); err != nil {
			log.Printf("decode history record: %v", err)
			continue
		}
		records = append(records, record)
	}
	model.SortHistory(records)

	m.mu.Lock()
	m.records = records
	m.mu.Unlock()
	return nil
}

// DeleteRecord removes the stored record for dateLabel and then every cached
// record carrying timestamp.
func (m *ArchiveManager) DeleteRecord(ctx context.Context, timestamp int64, dateLabel string) error {
	if err := m.store.DeleteDocument(ctx, HistoryPath(m.appID, m.identity, dateLabel)); err != nil {
		return fmt.Errorf("delete record %s: %w", dateLabel, err)
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	next := make([]model.HistoryRecord, 0, len(m.records))
	for _, record := range m.records {
		if record.Timestamp != timestamp {
			next = append(next, record)
		}
	}
	m.records = next
	if m.hasExpanded && m.expanded == timestamp {
		m.hasExpanded = false
	}
	return nil
}

// Records returns the cached history, newest first.
func (m *ArchiveManager) Records() []model.HistoryRecord {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]model.HistoryRecord, len(m.records))
	copy(out, m.records)
	return out
}

// Find returns the cached record with timestamp.
func (m *ArchiveManager) Find(timestamp int64) (model.HistoryRecord, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, record := range m.records {
		if record.Timestamp == timestamp {
			return record, true
		}
	}
	return model.HistoryRecord{}, false
}

// ToggleDetail expands the record with timestamp, or collapses it when it is
// already the expanded one. It reports whether the record is now expanded.
func (m *ArchiveManager) ToggleDetail(timestamp int64) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.hasExpanded && m.expanded == timestamp {
		m.hasExpanded = false
		return false
	}
	m.expanded = timestamp
	m.hasExpanded = true
	return true
}

// Expanded returns the timestamp of the expanded record, if any.
func (m *ArchiveManager) Expanded() (int64, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.expanded, m.hasExpanded
}
