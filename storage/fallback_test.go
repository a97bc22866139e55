package storage

import (
	"context"
	"fmt"
	"testing"
	"time"

	"dice-gift-bot/models"

	"github.com/stretchr/testify/require"
)

// downStore fails every call the way a dead database does.
type downStore struct{}

func (downStore) fail() error { return fmt.Errorf("%w: connection refused", ErrStorageUnavailable) }

func (d downStore) EnsureAccount(ctx context.Context, id int64) (*models.Account, error) {
	return nil, d.fail()
}
func (d downStore) GetAccount(ctx context.Context, id int64) (*models.Account, error) {
	return nil, d.fail()
}
func (d downStore) AdjustBalance(ctx context.Context, id, delta int64) (int64, error) {
	return 0, d.fail()
}
func (d downStore) DebitBalance(ctx context.Context, id, amount int64) error { return d.fail() }
func (d downStore) SetBalance(ctx context.Context, id, value int64) error    { return d.fail() }
func (d downStore) AddSpent(ctx context.Context, id, amount int64) error     { return d.fail() }
func (d downStore) AddEarned(ctx context.Context, id, amount int64) error    { return d.fail() }
func (d downStore) AddPlay(ctx context.Context, id int64) error              { return d.fail() }
func (d downStore) SetCooldown(ctx context.Context, id int64, until time.Time) error {
	return d.fail()
}
func (d downStore) SetBanned(ctx context.Context, id int64, banned bool) error { return d.fail() }
func (d downStore) CountAccounts(ctx context.Context) (int64, error)           { return 0, d.fail() }
func (d downStore) CreateReferral(ctx context.Context, referredID, inviterID int64) (bool, error) {
	return false, d.fail()
}
func (d downStore) GetReferral(ctx context.Context, referredID int64) (*models.Referral, error) {
	return nil, d.fail()
}
func (d downStore) IncrementReferralPlays(ctx context.Context, referredID int64) (*models.Referral, error) {
	return nil, d.fail()
}
func (d downStore) MarkReferralRewarded(ctx context.Context, referredID int64, threshold int) (bool, error) {
	return false, d.fail()
}
func (d downStore) EnqueueGiftTask(ctx context.Context, task *models.GiftTask) error {
	return d.fail()
}
func (d downStore) ClaimGiftTasks(ctx context.Context, batch int) ([]models.GiftTask, error) {
	return nil, d.fail()
}
func (d downStore) MarkTaskSent(ctx context.Context, id uint) (bool, error)   { return false, d.fail() }
func (d downStore) MarkTaskFailed(ctx context.Context, id uint) (bool, error) { return false, d.fail() }
func (d downStore) ReclaimStuckTasks(ctx context.Context, olderThan time.Duration) (int64, error) {
	return 0, d.fail()
}
func (d downStore) AdjustPool(ctx context.Context, key string, delta int64) (int64, error) {
	return 0, d.fail()
}
func (d downStore) GetPool(ctx context.Context, key string) (int64, error) { return 0, d.fail() }
func (d downStore) ConsumeToken(ctx context.Context, nonce string, userID int64) error {
	return d.fail()
}

func TestFallbackDegradesLedgerOps(t *testing.T) {
	fallback := NewFallback(downStore{}, NewMemStore())
	ctx := context.Background()

	account, err := fallback.EnsureAccount(ctx, 42)
	require.NoError(t, err)
	require.Equal(t, int64(42), account.ID)

	balance, err := fallback.AdjustBalance(ctx, 42, 10)
	require.NoError(t, err)
	require.Equal(t, int64(10), balance)

	require.NoError(t, fallback.DebitBalance(ctx, 42, 3))
	account, err = fallback.GetAccount(ctx, 42)
	require.NoError(t, err)
	require.Equal(t, int64(7), account.Balance)
}

func TestFallbackDegradesReferralOps(t *testing.T) {
	fallback := NewFallback(downStore{}, NewMemStore())
	ctx := context.Background()

	created, err := fallback.CreateReferral(ctx, 100, 200)
	require.NoError(t, err)
	require.True(t, created)

	referral, err := fallback.IncrementReferralPlays(ctx, 100)
	require.NoError(t, err)
	require.Equal(t, 1, referral.Plays)
}

func TestFallbackNeverDegradesDurableOnlyOps(t *testing.T) {
	fallback := NewFallback(downStore{}, NewMemStore())
	ctx := context.Background()

	err := fallback.EnqueueGiftTask(ctx, &models.GiftTask{UserID: 42, AmountStars: 15})
	require.ErrorIs(t, err, ErrStorageUnavailable)

	_, err = fallback.ClaimGiftTasks(ctx, 5)
	require.ErrorIs(t, err, ErrStorageUnavailable)

	_, err = fallback.AdjustPool(ctx, models.PoolKeyStars, 10)
	require.ErrorIs(t, err, ErrStorageUnavailable)

	err = fallback.ConsumeToken(ctx, "nonce", 42)
	require.ErrorIs(t, err, ErrStorageUnavailable)
}

func TestFallbackPrefersDurableWhenHealthy(t *testing.T) {
	durable := NewMemStore()
	mirror := NewMemStore()
	fallback := NewFallback(durable, mirror)
	ctx := context.Background()

	_, err := fallback.EnsureAccount(ctx, 42)
	require.NoError(t, err)

	_, err = durable.GetAccount(ctx, 42)
	require.NoError(t, err)
	_, err = mirror.GetAccount(ctx, 42)
	require.ErrorIs(t, err, ErrNotFound, "healthy path must not touch the mirror")
}
