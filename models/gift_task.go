package models

import "time"

// GiftStatus indicates where a gift task is in its lifecycle.
// Transitions are monotonic: pending → processing → sent | failed.
type GiftStatus string

const (
	GiftStatusPending    GiftStatus = "pending"
	GiftStatusProcessing GiftStatus = "processing"
	GiftStatusSent       GiftStatus = "sent"
	GiftStatusFailed     GiftStatus = "failed"
)

// GiftTask is one queued gift purchase, written by the session layer on
// a win and drained by the gift worker process. ClaimedAt is set when a
// worker marks the row processing; the reclaim sweep returns rows with
// an expired claim back to pending.
type GiftTask struct {
	ID          uint       `gorm:"primaryKey" json:"id"`
	UserID      int64      `gorm:"index;not null" json:"user_id"`
	AmountStars int64      `gorm:"not null" json:"amount_stars"`
	Premium     bool       `gorm:"default:false" json:"premium"`
	Status      GiftStatus `gorm:"not null;default:'pending';index" json:"status"`
	ClaimedAt   *time.Time `json:"claimed_at,omitempty"`
	CreatedAt   time.Time  `json:"created_at" gorm:"autoCreateTime"`
}

// TableName keeps the table shared with the original worker schema.
func (GiftTask) TableName() string {
	return "pending_gifts"
}
