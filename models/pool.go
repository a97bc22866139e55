package models

// PoolKeyStars is the shared real-currency pool. Failed gift tasks
// refund into it so the economic total stays conserved.
const PoolKeyStars = "bot_stars"

// PoolEntry is a shared counter keyed by name. Value is clamped at 0.
type PoolEntry struct {
	Key   string `gorm:"primaryKey" json:"key"`
	Value int64  `gorm:"not null;default:0" json:"value"`
}

// TableName keeps the table shared with the original worker schema.
func (PoolEntry) TableName() string {
	return "bot_state"
}
