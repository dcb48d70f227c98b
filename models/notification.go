package models

import "time"

type Notification struct {
	ID         string    `gorm:"primaryKey;size:36" json:"id"`
	SenderID   *string   `gorm:"size:64" json:"sender_id,omitempty"` // nil for system notifications
	ReceiverID string    `gorm:"size:64;index;not null" json:"receiver_id"`
	Title      string    `gorm:"not null" json:"title"`
	Content    string    `gorm:"type:text" json:"content"`
	CreatedAt  time.Time `json:"created_at"`
}
