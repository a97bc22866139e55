package services

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"dice-gift-bot/models"
)

const (
	// HitThreshold is the minimum die value counted as a hit (1..6).
	HitThreshold = 4

	// FreeCooldown is the reuse interval of the zero-cost tier.
	FreeCooldown = time.Hour

	defaultPaceDelay      = 500 * time.Millisecond
	defaultAnimationFloor = 4 * time.Second
)

// ErrBusy means a session is already running in the conversation.
var ErrBusy = errors.New("session already running in this chat")

// CooldownActiveError is returned when the free tier is used before its
// reuse interval has passed.
type CooldownActiveError struct {
	Remaining time.Duration
}

func (e *CooldownActiveError) Error() string {
	return fmt.Sprintf("cooldown active for another %s", e.Remaining.Round(time.Second))
}

// DiceEmitter produces one randomized event (a die roll delivered to
// the conversation) and returns its value. The transport layer supplies
// the real implementation; tests use fakes.
type DiceEmitter func(ctx context.Context) (int, error)

// SessionRequest describes one throw-sequence to run.
type SessionRequest struct {
	ChatID    int64
	UserID    int64
	Throws    int
	Tier      models.Tier
	PaidStars int64 // >0 when resumed from an out-of-band payment

	// Prepare, when set, runs once the chat lock is held and before any
	// charge. An error abandons the session with nothing consumed. Paid
	// resumes burn their single-use token here, so a Busy rejection
	// leaves the token intact for a retry.
	Prepare func(ctx context.Context) error
}

// Roll is one emitted event and its classification.
type Roll struct {
	Value int
	Hit   bool
}

// SessionResult is the classified outcome of a session. A session with
// no rolls at all (every emission failed) is a loss and the caller gets
// an explicit empty Rolls slice to report it.
type SessionResult struct {
	Win      bool
	Rolls    []Roll
	Throws   int
	GiftTask *models.GiftTask // set on win
}

// SessionService serializes throw-sequences per conversation and
// drives the randomized outcome. It is the only concurrency guard in
// the system: two begins on the same chat yield exactly one session
// and one ErrBusy, whoever the accounts involved are.
type SessionService struct {
	Ledger   *LedgerService
	Referral *ReferralService
	Queue    *QueueService

	// Pacing knobs, defaulted by NewSessionService. The floor keeps the
	// perceived animation time consistent even when emissions fail.
	PaceDelay      time.Duration
	AnimationFloor time.Duration

	mu   sync.Mutex
	busy map[int64]struct{}
}

func NewSessionService(ledger *LedgerService, referral *ReferralService, queue *QueueService) *SessionService {
	return &SessionService{
		Ledger:         ledger,
		Referral:       referral,
		Queue:          queue,
		PaceDelay:      defaultPaceDelay,
		AnimationFloor: defaultAnimationFloor,
		busy:           make(map[int64]struct{}),
	}
}

func (s *SessionService) acquire(chatID int64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, running := s.busy[chatID]; running {
		return false
	}
	s.busy[chatID] = struct{}{}
	return true
}

func (s *SessionService) release(chatID int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.busy, chatID)
}

// Begin runs a full session: lock the chat, charge the ledger, emit the
// dice, classify, and settle. Only the lock step is hard-failing;
// individual emission failures are skipped.
func (s *SessionService) Begin(ctx context.Context, req SessionRequest, emit DiceEmitter) (*SessionResult, error) {
	if req.Throws < 1 {
		return nil, fmt.Errorf("invalid throw count %d", req.Throws)
	}
	if !s.acquire(req.ChatID) {
		return nil, ErrBusy
	}
	defer s.release(req.ChatID)

	if req.Prepare != nil {
		if err := req.Prepare(ctx); err != nil {
			return nil, err
		}
	}

	if _, err := s.Ledger.EnsureAccount(ctx, req.UserID); err != nil {
		return nil, err
	}
	if err := s.charge(ctx, req); err != nil {
		return nil, err
	}

	result := s.emitAll(ctx, req, emit)

	if err := s.settle(ctx, req, result); err != nil {
		return result, err
	}
	return result, nil
}

// charge debits the session cost, or checks and rearms the free-tier
// cooldown. Sessions resumed from a confirmed payment were already paid
// out-of-band and are not charged again.
func (s *SessionService) charge(ctx context.Context, req SessionRequest) error {
	if req.PaidStars > 0 {
		return nil
	}
	if req.Tier == models.TierFree {
		remaining, err := s.Ledger.Cooldown(ctx, req.UserID)
		if err != nil {
			return err
		}
		if remaining > 0 {
			return &CooldownActiveError{Remaining: remaining}
		}
		return s.Ledger.SetCooldown(ctx, req.UserID, time.Now().Add(FreeCooldown))
	}

	cost := req.Tier.UnitCost() * int64(req.Throws)
	if err := s.Ledger.Debit(ctx, req.UserID, cost); err != nil {
		return err
	}
	return s.Ledger.RecordSpent(ctx, req.UserID, cost)
}

func (s *SessionService) emitAll(ctx context.Context, req SessionRequest, emit DiceEmitter) *SessionResult {
	result := &SessionResult{Throws: req.Throws}
	var firstEmit time.Time

	for i := 0; i < req.Throws; i++ {
		if i > 0 {
			sleepCtx(ctx, s.PaceDelay)
		}
		value, err := emit(ctx)
		if err != nil {
			log.Printf("⚠️ [SESSION] chat %d throw %d/%d not delivered: %v",
				req.ChatID, i+1, req.Throws, err)
			continue
		}
		if firstEmit.IsZero() {
			firstEmit = time.Now()
		}
		result.Rolls = append(result.Rolls, Roll{Value: value, Hit: value >= HitThreshold})
	}

	// Hold until the animation floor has passed since the first die,
	// however long emission itself took.
	if !firstEmit.IsZero() {
		if wait := s.AnimationFloor - time.Since(firstEmit); wait > 0 {
			sleepCtx(ctx, wait)
		}
	}

	result.Win = len(result.Rolls) > 0
	for _, roll := range result.Rolls {
		if !roll.Hit {
			result.Win = false
			break
		}
	}
	return result
}

// settle runs the post-outcome bookkeeping: play counters, referral
// progress, and on a win the queued gift plus earned counter.
func (s *SessionService) settle(ctx context.Context, req SessionRequest, result *SessionResult) error {
	if err := s.Ledger.RecordPlay(ctx, req.UserID); err != nil {
		return err
	}
	if err := s.Referral.OnPlay(ctx, req.UserID); err != nil {
		return err
	}
	if !result.Win {
		return nil
	}

	reward := req.Tier.RewardStars()
	task, err := s.Queue.Enqueue(ctx, req.UserID, reward, req.Tier == models.TierPremium)
	if err != nil {
		return err
	}
	result.GiftTask = task
	if err := s.Ledger.RecordEarned(ctx, req.UserID, reward); err != nil {
		return err
	}
	log.Printf("🏆 [SESSION] chat %d user %d won, gift task %d queued (%d⭐)",
		req.ChatID, req.UserID, task.ID, reward)
	return nil
}

func sleepCtx(ctx context.Context, d time.Duration) {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
	case <-timer.C:
	}
}
