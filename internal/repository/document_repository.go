package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"cleaning-manager/internal/model"
)

// ErrNotFound is returned when no document exists at a path.
var ErrNotFound = errors.New("document not found")

// DocumentRepository stores whole JSON documents addressed by path.
// Writes are upserts that replace the entire document.
type DocumentRepository struct {
	db *gorm.DB
}

func NewDocumentRepository(db *gorm.DB) *DocumentRepository {
	return &DocumentRepository{db: db}
}

// GetDocument decodes the document at path into out.
func (r *DocumentRepository) GetDocument(ctx context.Context, path string, out any) error {
	var doc model.Document
	err := r.db.WithContext(ctx).Where("path = ?", path).First(&doc).Error
	switch {
	case err == nil:
	case errors.Is(err, gorm.ErrRecordNotFound):
		return fmt.Errorf("get %s: %w", path, ErrNotFound)
	default:
		return fmt.Errorf("get %s: %w", path, err)
	}
	if err := json.Unmarshal([]byte(doc.Body), out); err != nil {
		return fmt.Errorf("decode %s: %w", path, err)
	}
	return nil
}

// SetDocument encodes value and overwrites the document at path.
func (r *DocumentRepository) SetDocument(ctx context.Context, path string, value any) error {
	body, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("encode %s: %w", path, err)
	}
	doc := model.Document{
		Path:       path,
		Collection: CollectionOf(path),
		Body:       string(body),
	}
	err = r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "path"}},
		DoUpdates: clause.AssignmentColumns([]string{"collection", "body", "updated_at"}),
	}).Create(&doc).Error
	if err != nil {
		return fmt.Errorf("set %s: %w", path, err)
	}
	return nil
}

// DeleteDocument removes the document at path. Deleting a missing document is not an error.
func (r *DocumentRepository) DeleteDocument(ctx context.Context, path string) error {
	if err := r.db.WithContext(ctx).Where("path = ?", path).Delete(&model.Document{}).Error; err != nil {
		return fmt.Errorf("delete %s: %w", path, err)
	}
	return nil
}

// ListDocuments returns the raw bodies of every document directly under collection.
func (r *DocumentRepository) ListDocuments(ctx context.Context, collection string) ([]json.RawMessage, error) {
	var docs []model.Document
	if err := r.db.WithContext(ctx).Where("collection = ?", strings.TrimSuffix(collection, "/")).
		Order("path ASC").
		Find(&docs).Error; err != nil {
		return nil, fmt.Errorf("list %s: %w", collection, err)
	}
	bodies := make([]json.RawMessage, 0, len(docs))
	for _, doc := range docs {
		bodies = append(bodies, json.RawMessage(doc.Body))
	}
	return bodies, nil
}

// CollectionOf returns path without its last segment.
func CollectionOf(path string) string {
	path = strings.TrimSuffix(path, "/")
	i := strings.LastIndex(path, "/")
	if i < 0 {
		return ""
	}
	return path[:i]
}
