package models

// ReferralThreshold is how many plays the referred account must finish
// before the inviter is credited, and ReferralBonus is what the inviter
// gets. The credit happens exactly once, on the transition to Rewarded.
const (
	ReferralThreshold = 5
	ReferralBonus     = 3
)

// Referral tracks a referred account → inviter relationship.
// At most one row per referred account; immutable once Rewarded.
type Referral struct {
	ReferredID int64 `gorm:"primaryKey;autoIncrement:false" json:"referred_id"`
	InviterID  int64 `gorm:"index;not null" json:"inviter_id"`
	Plays      int   `gorm:"not null;default:0" json:"plays"`
	Rewarded   bool  `gorm:"default:false" json:"rewarded"`

	Timestamps
}
