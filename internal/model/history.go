package model

import (
	"fmt"
	"sort"
	"time"
)

// HistoryRecord is a frozen monthly snapshot of the catalog.
// Date is the month label and doubles as the stored document key.
type HistoryRecord struct {
	Date      string  `json:"date" yaml:"date"`
	Timestamp int64   `json:"timestamp" yaml:"timestamp"`
	Data      Catalog `json:"data" yaml:"data"`
	Progress  int     `json:"progress" yaml:"progress"`
}

// NewHistoryRecord snapshots catalog at now. now should already be in the
// user's time zone since the label is taken from its calendar month.
func NewHistoryRecord(catalog Catalog, now time.Time) HistoryRecord {
	data := catalog.Clone()
	return HistoryRecord{
		Date:      DateLabel(now),
		Timestamp: now.UnixMilli(),
		Data:      data,
		Progress:  data.Progress(),
	}
}

// DateLabel formats the month label, e.g. "2024.03월".
func DateLabel(t time.Time) string {
	return fmt.Sprintf("%d.%02d월", t.Year(), int(t.Month()))
}

// SortHistory orders records newest first.
func SortHistory(records []HistoryRecord) {
	sort.SliceStable(records, func(i, j int) bool {
		return records[i].Timestamp > records[j].Timestamp
	})
}

// CatalogDocument is the stored shape of the current catalog.
type CatalogDocument struct {
	Categories  Catalog `json:"categories" yaml:"categories"`
	LastUpdated int64   `json:"lastUpdated,omitempty" yaml:"lastUpdated,omitempty"`
}
