package storage

import (
	"context"
	"sort"
	"sync"
	"time"

	"dice-gift-bot/models"
)

// MemStore is the ephemeral in-memory implementation of Store. It backs
// the degraded mode entered when the database is unreachable, and it is
// what most tests run against. Everything is guarded by one mutex; the
// semantics (clamping, fail-closed debits, monotonic statuses,
// exactly-once reward edges) match the GORM store.
type MemStore struct {
	mu        sync.Mutex
	accounts  map[int64]*models.Account
	referrals map[int64]*models.Referral
	tasks     map[uint]*models.GiftTask
	pool      map[string]int64
	tokens    map[string]int64
	nextTask  uint
}

func NewMemStore() *MemStore {
	return &MemStore{
		accounts:  make(map[int64]*models.Account),
		referrals: make(map[int64]*models.Referral),
		tasks:     make(map[uint]*models.GiftTask),
		pool:      make(map[string]int64),
		tokens:    make(map[string]int64),
		nextTask:  1,
	}
}

// --- Accounts / ledger ---

func (s *MemStore) EnsureAccount(ctx context.Context, id int64) (*models.Account, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	account := s.ensureLocked(id)
	copied := *account
	return &copied, nil
}

func (s *MemStore) ensureLocked(id int64) *models.Account {
	account, ok := s.accounts[id]
	if !ok {
		account = &models.Account{ID: id}
		account.CreatedAt = time.Now()
		s.accounts[id] = account
	}
	return account
}

func (s *MemStore) GetAccount(ctx context.Context, id int64) (*models.Account, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	account, ok := s.accounts[id]
	if !ok {
		return nil, ErrNotFound
	}
	copied := *account
	return &copied, nil
}

func (s *MemStore) AdjustBalance(ctx context.Context, id, delta int64) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	account, ok := s.accounts[id]
	if !ok {
		return 0, ErrNotFound
	}
	account.Balance += delta
	if account.Balance < 0 {
		account.Balance = 0
	}
	return account.Balance, nil
}

func (s *MemStore) DebitBalance(ctx context.Context, id, amount int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	account, ok := s.accounts[id]
	if !ok || account.Balance < amount {
		return ErrInsufficientBalance
	}
	account.Balance -= amount
	return nil
}

func (s *MemStore) SetBalance(ctx context.Context, id, value int64) error {
	if value < 0 {
		value = 0
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	account, ok := s.accounts[id]
	if !ok {
		return ErrNotFound
	}
	account.Balance = value
	return nil
}

func (s *MemStore) AddSpent(ctx context.Context, id, amount int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	account, ok := s.accounts[id]
	if !ok {
		return ErrNotFound
	}
	account.Spent += amount
	return nil
}

func (s *MemStore) AddEarned(ctx context.Context, id, amount int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	account, ok := s.accounts[id]
	if !ok {
		return ErrNotFound
	}
	account.Earned += amount
	return nil
}

func (s *MemStore) AddPlay(ctx context.Context, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	account, ok := s.accounts[id]
	if !ok {
		return ErrNotFound
	}
	account.Plays++
	return nil
}

func (s *MemStore) SetCooldown(ctx context.Context, id int64, until time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	account, ok := s.accounts[id]
	if !ok {
		return ErrNotFound
	}
	account.CooldownUntil = until
	return nil
}

func (s *MemStore) SetBanned(ctx context.Context, id int64, banned bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	account, ok := s.accounts[id]
	if !ok {
		return ErrNotFound
	}
	account.Banned = banned
	return nil
}

func (s *MemStore) CountAccounts(ctx context.Context) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return int64(len(s.accounts)), nil
}

// --- Referrals ---

func (s *MemStore) CreateReferral(ctx context.Context, referredID, inviterID int64) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.referrals[referredID]; ok {
		return false, nil
	}
	referral := &models.Referral{ReferredID: referredID, InviterID: inviterID}
	referral.CreatedAt = time.Now()
	s.referrals[referredID] = referral
	return true, nil
}

func (s *MemStore) GetReferral(ctx context.Context, referredID int64) (*models.Referral, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	referral, ok := s.referrals[referredID]
	if !ok {
		return nil, ErrNotFound
	}
	copied := *referral
	return &copied, nil
}

func (s *MemStore) IncrementReferralPlays(ctx context.Context, referredID int64) (*models.Referral, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	referral, ok := s.referrals[referredID]
	if !ok {
		return nil, ErrNotFound
	}
	if !referral.Rewarded && referral.Plays < models.ReferralThreshold {
		referral.Plays++
	}
	copied := *referral
	return &copied, nil
}

func (s *MemStore) MarkReferralRewarded(ctx context.Context, referredID int64, threshold int) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	referral, ok := s.referrals[referredID]
	if !ok || referral.Rewarded || referral.Plays < threshold {
		return false, nil
	}
	referral.Rewarded = true
	return true, nil
}

// --- Gift queue ---

func (s *MemStore) EnqueueGiftTask(ctx context.Context, task *models.GiftTask) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	task.ID = s.nextTask
	s.nextTask++
	task.Status = models.GiftStatusPending
	task.CreatedAt = time.Now()
	copied := *task
	s.tasks[task.ID] = &copied
	return nil
}

func (s *MemStore) ClaimGiftTasks(ctx context.Context, batch int) ([]models.GiftTask, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var pending []*models.GiftTask
	for _, task := range s.tasks {
		if task.Status == models.GiftStatusPending {
			pending = append(pending, task)
		}
	}
	sort.Slice(pending, func(i, j int) bool {
		if pending[i].CreatedAt.Equal(pending[j].CreatedAt) {
			return pending[i].ID < pending[j].ID
		}
		return pending[i].CreatedAt.Before(pending[j].CreatedAt)
	})
	if len(pending) > batch {
		pending = pending[:batch]
	}
	now := time.Now()
	claimed := make([]models.GiftTask, 0, len(pending))
	for _, task := range pending {
		task.Status = models.GiftStatusProcessing
		task.ClaimedAt = &now
		claimed = append(claimed, *task)
	}
	return claimed, nil
}

func (s *MemStore) MarkTaskSent(ctx context.Context, id uint) (bool, error) {
	return s.finishTask(id, models.GiftStatusSent)
}

func (s *MemStore) MarkTaskFailed(ctx context.Context, id uint) (bool, error) {
	return s.finishTask(id, models.GiftStatusFailed)
}

func (s *MemStore) finishTask(id uint, status models.GiftStatus) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	task, ok := s.tasks[id]
	if !ok || task.Status != models.GiftStatusProcessing {
		return false, nil
	}
	task.Status = status
	return true, nil
}

func (s *MemStore) ReclaimStuckTasks(ctx context.Context, olderThan time.Duration) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	cutoff := time.Now().Add(-olderThan)
	var reclaimed int64
	for _, task := range s.tasks {
		if task.Status == models.GiftStatusProcessing && task.ClaimedAt != nil && task.ClaimedAt.Before(cutoff) {
			task.Status = models.GiftStatusPending
			task.ClaimedAt = nil
			reclaimed++
		}
	}
	return reclaimed, nil
}

// --- Shared pool ---

func (s *MemStore) AdjustPool(ctx context.Context, key string, delta int64) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	value := s.pool[key] + delta
	if value < 0 {
		value = 0
	}
	s.pool[key] = value
	return value, nil
}

func (s *MemStore) GetPool(ctx context.Context, key string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.pool[key], nil
}

// --- Payment tokens ---

func (s *MemStore) ConsumeToken(ctx context.Context, nonce string, userID int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.tokens[nonce]; ok {
		return ErrTokenUsed
	}
	s.tokens[nonce] = userID
	return nil
}

// GetTask returns a copy of a task by ID, for inspection in tests and
// admin views.
func (s *MemStore) GetTask(id uint) (*models.GiftTask, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	task, ok := s.tasks[id]
	if !ok {
		return nil, false
	}
	copied := *task
	return &copied, true
}
