package services

import (
	"context"
	"errors"
	"log"

	"dice-gift-bot/models"
	"dice-gift-bot/storage"
)

// ReferralService drives the Visited → Counting → Rewarded state
// machine. The inviter is credited on the Counting→Rewarded edge only,
// which the store claims exclusively, so racing plays cannot pay twice.
type ReferralService struct {
	Store  storage.Store
	Ledger *LedgerService
}

func NewReferralService(store storage.Store, ledger *LedgerService) *ReferralService {
	return &ReferralService{Store: store, Ledger: ledger}
}

// RegisterVisit records the referred → inviter link on the first
// qualifying visit. Returns false when a link already exists (or the
// user tried to refer themselves).
func (s *ReferralService) RegisterVisit(ctx context.Context, referredID, inviterID int64) (bool, error) {
	if referredID == inviterID {
		return false, nil
	}
	if _, err := s.Ledger.EnsureAccount(ctx, inviterID); err != nil {
		return false, err
	}
	created, err := s.Store.CreateReferral(ctx, referredID, inviterID)
	if err != nil {
		return false, err
	}
	if created {
		log.Printf("🔗 [REFERRAL] %d referred by %d", referredID, inviterID)
	}
	return created, nil
}

// OnPlay bumps the referred account's play counter. Once the counter
// reaches the threshold the link turns Rewarded and the inviter is
// credited exactly once. No link or an already-rewarded link is a no-op.
func (s *ReferralService) OnPlay(ctx context.Context, referredID int64) error {
	referral, err := s.Store.IncrementReferralPlays(ctx, referredID)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil
		}
		return err
	}
	if referral.Rewarded || referral.Plays < models.ReferralThreshold {
		return nil
	}

	claimed, err := s.Store.MarkReferralRewarded(ctx, referredID, models.ReferralThreshold)
	if err != nil {
		return err
	}
	if !claimed {
		return nil // another play won the edge
	}

	if _, err := s.Ledger.AdjustBalance(ctx, referral.InviterID, models.ReferralBonus); err != nil {
		return err
	}
	if err := s.Ledger.RecordEarned(ctx, referral.InviterID, models.ReferralBonus); err != nil {
		return err
	}
	log.Printf("🎁 [REFERRAL] inviter %d credited +%d for %d reaching %d plays",
		referral.InviterID, models.ReferralBonus, referredID, models.ReferralThreshold)
	return nil
}
