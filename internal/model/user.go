package model

import "time"

// User stores Telegram user metadata. UID is the user's own identity; Identity,
// when set, is the shared checklist the user joined with a share code.
type User struct {
	ID         uint   `gorm:"primaryKey"`
	UID        string `gorm:"uniqueIndex"`
	Identity   string `gorm:"index"`
	TelegramID int64  `gorm:"uniqueIndex"`
	FirstName  string
	LastName   string
	Username   string
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// ChecklistID is the identity whose stored documents the user reads and writes.
func (u User) ChecklistID() string {
	if u.Identity != "" {
		return u.Identity
	}
	return u.UID
}
