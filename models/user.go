package models

import (
	"time"
)

// User is a local snapshot of the account owned by the profile service.
// Populated by the profile sync worker; read by matchmaking.
type User struct {
	ID          string    `gorm:"primaryKey;size:64" json:"id"`
	Username    string    `gorm:"index;not null" json:"username"`
	DisplayName string    `json:"display_name"`
	Email       string    `json:"email,omitempty"`
	IsBanned    bool      `json:"is_banned" gorm:"default:false"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}
