package service

import (
	"context"
	"encoding/json"
	"path"
)

// DocumentStore is the persistence the checklist needs: whole-document get,
// upsert and delete plus listing a collection. Missing documents are reported
// with repository.ErrNotFound.
type DocumentStore interface {
	GetDocument(ctx context.Context, path string, out any) error
	SetDocument(ctx context.Context, path string, value any) error
	DeleteDocument(ctx context.Context, path string) error
	ListDocuments(ctx context.Context, collection string) ([]json.RawMessage, error)
}

// CatalogPath is where a user's current checklist lives.
func CatalogPath(appID, identity string) string {
	return path.Join("artifacts", appID, "users", identity, "settings", "currentTasks")
}

// HistoryCollection holds one document per archived month.
func HistoryCollection(appID, identity string) string {
	return path.Join("artifacts", appID, "users", identity, "history")
}

func HistoryPath(appID, identity, dateLabel string) string {
	return path.Join(HistoryCollection(appID, identity), dateLabel)
}
