package storage

import (
	"context"
	"sync"
	"testing"

	"dice-gift-bot/models"

	"github.com/stretchr/testify/require"
)

func TestMemStoreClaimOrderAndBatch(t *testing.T) {
	store := NewMemStore()
	ctx := context.Background()

	for i := 0; i < 7; i++ {
		require.NoError(t, store.EnqueueGiftTask(ctx, &models.GiftTask{UserID: int64(i), AmountStars: 15}))
	}

	first, err := store.ClaimGiftTasks(ctx, 5)
	require.NoError(t, err)
	require.Len(t, first, 5)
	for _, task := range first {
		require.Equal(t, models.GiftStatusProcessing, task.Status)
		require.NotNil(t, task.ClaimedAt)
	}

	second, err := store.ClaimGiftTasks(ctx, 5)
	require.NoError(t, err)
	require.Len(t, second, 2, "claimed rows must not be handed out twice")

	third, err := store.ClaimGiftTasks(ctx, 5)
	require.NoError(t, err)
	require.Empty(t, third)
}

func TestMemStoreConcurrentClaimsNeverOverlap(t *testing.T) {
	store := NewMemStore()
	ctx := context.Background()

	const total = 40
	for i := 0; i < total; i++ {
		require.NoError(t, store.EnqueueGiftTask(ctx, &models.GiftTask{UserID: int64(i), AmountStars: 15}))
	}

	var mu sync.Mutex
	seen := make(map[uint]int)
	var wg sync.WaitGroup
	for w := 0; w < 4; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				tasks, err := store.ClaimGiftTasks(ctx, 5)
				require.NoError(t, err)
				if len(tasks) == 0 {
					return
				}
				mu.Lock()
				for _, task := range tasks {
					seen[task.ID]++
				}
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	require.Len(t, seen, total)
	for id, claims := range seen {
		require.Equal(t, 1, claims, "task %d claimed by more than one worker", id)
	}
}

func TestMemStoreBalanceNeverNegative(t *testing.T) {
	store := NewMemStore()
	ctx := context.Background()

	_, err := store.EnsureAccount(ctx, 1)
	require.NoError(t, err)

	deltas := []int64{5, -3, -10, 4, -100, 2}
	for _, delta := range deltas {
		balance, err := store.AdjustBalance(ctx, 1, delta)
		require.NoError(t, err)
		require.GreaterOrEqual(t, balance, int64(0))
	}
}
