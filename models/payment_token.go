package models

import "time"

// UsedPaymentToken records a consumed payment-request nonce. A second
// confirmation carrying the same nonce is rejected instead of starting
// another session or crediting twice.
type UsedPaymentToken struct {
	Nonce     string    `gorm:"primaryKey" json:"nonce"`
	UserID    int64     `gorm:"index" json:"user_id"`
	CreatedAt time.Time `json:"created_at" gorm:"autoCreateTime"`
}
