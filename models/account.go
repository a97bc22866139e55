package models

import "time"

// Account is one row per Telegram user. Created lazily on first
// interaction, never deleted. Balance is virtual stars and is kept
// non-negative by the storage layer.
type Account struct {
	ID            int64     `gorm:"primaryKey;autoIncrement:false" json:"id"` // Telegram user ID
	Balance       int64     `gorm:"not null;default:0" json:"balance"`
	CooldownUntil time.Time `json:"cooldown_until"`
	Spent         int64     `gorm:"not null;default:0" json:"spent"`  // lifetime, monotonic
	Earned        int64     `gorm:"not null;default:0" json:"earned"` // lifetime, monotonic
	Plays         int64     `gorm:"not null;default:0" json:"plays"`
	Banned        bool      `gorm:"default:false" json:"banned"`

	Timestamps
}

// Timestamps adds GORM auto-times
type Timestamps struct {
	CreatedAt time.Time `json:"created_at" gorm:"autoCreateTime"`
	UpdatedAt time.Time `json:"updated_at" gorm:"autoUpdateTime"`
}
