package services

import (
	"context"
	"errors"
	"time"

	"dice-gift-bot/models"
	"dice-gift-bot/storage"
)

// LedgerService owns the per-account star balance plus lifetime
// spent/earned counters and the free-tier cooldown. All mutations go
// through the injected store, which keeps balances non-negative.
type LedgerService struct {
	Store storage.Store
}

func NewLedgerService(store storage.Store) *LedgerService {
	return &LedgerService{Store: store}
}

// EnsureAccount creates the account on first contact. Idempotent.
func (s *LedgerService) EnsureAccount(ctx context.Context, id int64) (*models.Account, error) {
	return s.Store.EnsureAccount(ctx, id)
}

func (s *LedgerService) GetAccount(ctx context.Context, id int64) (*models.Account, error) {
	return s.Store.GetAccount(ctx, id)
}

// AdjustBalance applies delta and returns the new balance, clamped at
// 0. Session debits do not use this; they go through Debit, which
// refuses to overdraw.
func (s *LedgerService) AdjustBalance(ctx context.Context, id, delta int64) (int64, error) {
	return s.Store.AdjustBalance(ctx, id, delta)
}

// Debit subtracts amount or fails with storage.ErrInsufficientBalance.
func (s *LedgerService) Debit(ctx context.Context, id, amount int64) error {
	if amount == 0 {
		return nil
	}
	return s.Store.DebitBalance(ctx, id, amount)
}

func (s *LedgerService) SetBalance(ctx context.Context, id, value int64) error {
	return s.Store.SetBalance(ctx, id, value)
}

func (s *LedgerService) RecordSpent(ctx context.Context, id, amount int64) error {
	if amount <= 0 {
		return nil
	}
	return s.Store.AddSpent(ctx, id, amount)
}

func (s *LedgerService) RecordEarned(ctx context.Context, id, amount int64) error {
	if amount <= 0 {
		return nil
	}
	return s.Store.AddEarned(ctx, id, amount)
}

func (s *LedgerService) RecordPlay(ctx context.Context, id int64) error {
	return s.Store.AddPlay(ctx, id)
}

// Cooldown returns how long until the account may use the free tier
// again. Zero means it is available now.
func (s *LedgerService) Cooldown(ctx context.Context, id int64) (time.Duration, error) {
	account, err := s.Store.GetAccount(ctx, id)
	if err != nil {
		return 0, err
	}
	remaining := time.Until(account.CooldownUntil)
	if remaining < 0 {
		remaining = 0
	}
	return remaining, nil
}

func (s *LedgerService) SetCooldown(ctx context.Context, id int64, until time.Time) error {
	return s.Store.SetCooldown(ctx, id, until)
}

func (s *LedgerService) SetBanned(ctx context.Context, id int64, banned bool) error {
	if _, err := s.Store.EnsureAccount(ctx, id); err != nil {
		return err
	}
	return s.Store.SetBanned(ctx, id, banned)
}

// IsBanned reports whether the account may start sessions. Unknown
// accounts are not banned.
func (s *LedgerService) IsBanned(ctx context.Context, id int64) (bool, error) {
	account, err := s.Store.GetAccount(ctx, id)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return false, nil
		}
		return false, err
	}
	return account.Banned, nil
}
