package model

import "time"

// Document is one stored JSON document addressed by a slash separated path.
// Collection is the path without its last segment so siblings can be listed.
type Document struct {
	Path       string `gorm:"primaryKey"`
	Collection string `gorm:"index"`
	Body       string
	CreatedAt  time.Time
	UpdatedAt  time.Time
}
