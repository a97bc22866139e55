package storage

import (
	"context"
	"errors"
	"time"

	"dice-gift-bot/models"
)

// Sentinel errors surfaced by Store implementations. Everything that is
// not one of these is treated as a backend outage and wrapped in
// ErrStorageUnavailable.
var (
	ErrStorageUnavailable  = errors.New("storage unavailable")
	ErrInsufficientBalance = errors.New("insufficient balance")
	ErrTokenUsed           = errors.New("payment token already used")
	ErrNotFound            = errors.New("not found")
)

// Store is the persistence boundary for the whole core. Production uses
// the GORM/Postgres implementation wrapped in a Fallback that degrades
// ledger and referral operations to an in-memory mirror; tests use the
// in-memory implementation directly.
type Store interface {
	// Accounts / ledger
	EnsureAccount(ctx context.Context, id int64) (*models.Account, error)
	GetAccount(ctx context.Context, id int64) (*models.Account, error)
	AdjustBalance(ctx context.Context, id, delta int64) (int64, error) // clamped at 0
	DebitBalance(ctx context.Context, id, amount int64) error          // fails closed
	SetBalance(ctx context.Context, id, value int64) error
	AddSpent(ctx context.Context, id, amount int64) error
	AddEarned(ctx context.Context, id, amount int64) error
	AddPlay(ctx context.Context, id int64) error
	SetCooldown(ctx context.Context, id int64, until time.Time) error
	SetBanned(ctx context.Context, id int64, banned bool) error
	CountAccounts(ctx context.Context) (int64, error)

	// Referrals
	CreateReferral(ctx context.Context, referredID, inviterID int64) (bool, error)
	GetReferral(ctx context.Context, referredID int64) (*models.Referral, error)
	IncrementReferralPlays(ctx context.Context, referredID int64) (*models.Referral, error)
	MarkReferralRewarded(ctx context.Context, referredID int64, threshold int) (bool, error)

	// Gift queue
	EnqueueGiftTask(ctx context.Context, task *models.GiftTask) error
	ClaimGiftTasks(ctx context.Context, batch int) ([]models.GiftTask, error)
	MarkTaskSent(ctx context.Context, id uint) (bool, error)
	MarkTaskFailed(ctx context.Context, id uint) (bool, error)
	ReclaimStuckTasks(ctx context.Context, olderThan time.Duration) (int64, error)

	// Shared pool
	AdjustPool(ctx context.Context, key string, delta int64) (int64, error)
	GetPool(ctx context.Context, key string) (int64, error)

	// Payment tokens
	ConsumeToken(ctx context.Context, nonce string, userID int64) error
}
