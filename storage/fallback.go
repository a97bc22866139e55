package storage

import (
	"context"
	"errors"
	"log"
	"time"

	"dice-gift-bot/models"
)

// Fallback routes ledger and referral operations to the durable store
// and replays them on an ephemeral mirror when the backend is down.
// Degraded mode is best effort: state written while degraded is lost on
// restart. Queue, pool and token operations never fall back: the gift
// queue is the only cross-process coordination point and must stay
// durable, and a non-durable replay guard would be no guard at all.
type Fallback struct {
	durable Store
	mirror  Store
}

func NewFallback(durable, mirror Store) *Fallback {
	return &Fallback{durable: durable, mirror: mirror}
}

func degraded(op string, err error) {
	log.Printf("⚠️ [STORAGE] %s failed, using in-memory mirror: %v", op, err)
}

// --- Accounts / ledger (degradable) ---

func (f *Fallback) EnsureAccount(ctx context.Context, id int64) (*models.Account, error) {
	account, err := f.durable.EnsureAccount(ctx, id)
	if errors.Is(err, ErrStorageUnavailable) {
		degraded("EnsureAccount", err)
		return f.mirror.EnsureAccount(ctx, id)
	}
	return account, err
}

func (f *Fallback) GetAccount(ctx context.Context, id int64) (*models.Account, error) {
	account, err := f.durable.GetAccount(ctx, id)
	if errors.Is(err, ErrStorageUnavailable) {
		degraded("GetAccount", err)
		return f.mirror.GetAccount(ctx, id)
	}
	return account, err
}

func (f *Fallback) AdjustBalance(ctx context.Context, id, delta int64) (int64, error) {
	balance, err := f.durable.AdjustBalance(ctx, id, delta)
	if errors.Is(err, ErrStorageUnavailable) {
		degraded("AdjustBalance", err)
		f.mirror.EnsureAccount(ctx, id)
		return f.mirror.AdjustBalance(ctx, id, delta)
	}
	return balance, err
}

func (f *Fallback) DebitBalance(ctx context.Context, id, amount int64) error {
	err := f.durable.DebitBalance(ctx, id, amount)
	if errors.Is(err, ErrStorageUnavailable) {
		degraded("DebitBalance", err)
		f.mirror.EnsureAccount(ctx, id)
		return f.mirror.DebitBalance(ctx, id, amount)
	}
	return err
}

func (f *Fallback) SetBalance(ctx context.Context, id, value int64) error {
	err := f.durable.SetBalance(ctx, id, value)
	if errors.Is(err, ErrStorageUnavailable) {
		degraded("SetBalance", err)
		f.mirror.EnsureAccount(ctx, id)
		return f.mirror.SetBalance(ctx, id, value)
	}
	return err
}

func (f *Fallback) AddSpent(ctx context.Context, id, amount int64) error {
	err := f.durable.AddSpent(ctx, id, amount)
	if errors.Is(err, ErrStorageUnavailable) {
		degraded("AddSpent", err)
		f.mirror.EnsureAccount(ctx, id)
		return f.mirror.AddSpent(ctx, id, amount)
	}
	return err
}

func (f *Fallback) AddEarned(ctx context.Context, id, amount int64) error {
	err := f.durable.AddEarned(ctx, id, amount)
	if errors.Is(err, ErrStorageUnavailable) {
		degraded("AddEarned", err)
		f.mirror.EnsureAccount(ctx, id)
		return f.mirror.AddEarned(ctx, id, amount)
	}
	return err
}

func (f *Fallback) AddPlay(ctx context.Context, id int64) error {
	err := f.durable.AddPlay(ctx, id)
	if errors.Is(err, ErrStorageUnavailable) {
		degraded("AddPlay", err)
		f.mirror.EnsureAccount(ctx, id)
		return f.mirror.AddPlay(ctx, id)
	}
	return err
}

func (f *Fallback) SetCooldown(ctx context.Context, id int64, until time.Time) error {
	err := f.durable.SetCooldown(ctx, id, until)
	if errors.Is(err, ErrStorageUnavailable) {
		degraded("SetCooldown", err)
		f.mirror.EnsureAccount(ctx, id)
		return f.mirror.SetCooldown(ctx, id, until)
	}
	return err
}

func (f *Fallback) SetBanned(ctx context.Context, id int64, banned bool) error {
	err := f.durable.SetBanned(ctx, id, banned)
	if errors.Is(err, ErrStorageUnavailable) {
		degraded("SetBanned", err)
		f.mirror.EnsureAccount(ctx, id)
		return f.mirror.SetBanned(ctx, id, banned)
	}
	return err
}

func (f *Fallback) CountAccounts(ctx context.Context) (int64, error) {
	count, err := f.durable.CountAccounts(ctx)
	if errors.Is(err, ErrStorageUnavailable) {
		degraded("CountAccounts", err)
		return f.mirror.CountAccounts(ctx)
	}
	return count, err
}

// --- Referrals (degradable) ---

func (f *Fallback) CreateReferral(ctx context.Context, referredID, inviterID int64) (bool, error) {
	created, err := f.durable.CreateReferral(ctx, referredID, inviterID)
	if errors.Is(err, ErrStorageUnavailable) {
		degraded("CreateReferral", err)
		return f.mirror.CreateReferral(ctx, referredID, inviterID)
	}
	return created, err
}

func (f *Fallback) GetReferral(ctx context.Context, referredID int64) (*models.Referral, error) {
	referral, err := f.durable.GetReferral(ctx, referredID)
	if errors.Is(err, ErrStorageUnavailable) {
		degraded("GetReferral", err)
		return f.mirror.GetReferral(ctx, referredID)
	}
	return referral, err
}

func (f *Fallback) IncrementReferralPlays(ctx context.Context, referredID int64) (*models.Referral, error) {
	referral, err := f.durable.IncrementReferralPlays(ctx, referredID)
	if errors.Is(err, ErrStorageUnavailable) {
		degraded("IncrementReferralPlays", err)
		return f.mirror.IncrementReferralPlays(ctx, referredID)
	}
	return referral, err
}

func (f *Fallback) MarkReferralRewarded(ctx context.Context, referredID int64, threshold int) (bool, error) {
	claimed, err := f.durable.MarkReferralRewarded(ctx, referredID, threshold)
	if errors.Is(err, ErrStorageUnavailable) {
		degraded("MarkReferralRewarded", err)
		return f.mirror.MarkReferralRewarded(ctx, referredID, threshold)
	}
	return claimed, err
}

// --- Durable-only passthrough ---

func (f *Fallback) EnqueueGiftTask(ctx context.Context, task *models.GiftTask) error {
	return f.durable.EnqueueGiftTask(ctx, task)
}

func (f *Fallback) ClaimGiftTasks(ctx context.Context, batch int) ([]models.GiftTask, error) {
	return f.durable.ClaimGiftTasks(ctx, batch)
}

func (f *Fallback) MarkTaskSent(ctx context.Context, id uint) (bool, error) {
	return f.durable.MarkTaskSent(ctx, id)
}

func (f *Fallback) MarkTaskFailed(ctx context.Context, id uint) (bool, error) {
	return f.durable.MarkTaskFailed(ctx, id)
}

func (f *Fallback) ReclaimStuckTasks(ctx context.Context, olderThan time.Duration) (int64, error) {
	return f.durable.ReclaimStuckTasks(ctx, olderThan)
}

func (f *Fallback) AdjustPool(ctx context.Context, key string, delta int64) (int64, error) {
	return f.durable.AdjustPool(ctx, key, delta)
}

func (f *Fallback) GetPool(ctx context.Context, key string) (int64, error) {
	return f.durable.GetPool(ctx, key)
}

func (f *Fallback) ConsumeToken(ctx context.Context, nonce string, userID int64) error {
	return f.durable.ConsumeToken(ctx, nonce, userID)
}
