package workers

import (
	"context"
	"errors"
	"testing"
	"time"

	"dice-gift-bot/models"
	"dice-gift-bot/services"
	"dice-gift-bot/storage"

	"github.com/stretchr/testify/require"
)

type fakeVendor struct {
	catalog map[int64]*Gift
	sendErr error
	sent    []int64
}

func (v *fakeVendor) FindByPrice(ctx context.Context, stars int64) (*Gift, error) {
	return v.catalog[stars], nil
}

func (v *fakeVendor) Send(ctx context.Context, userID int64, gift *Gift) error {
	if v.sendErr != nil {
		return v.sendErr
	}
	v.sent = append(v.sent, userID)
	return nil
}

func newWorkerFixture(t *testing.T, vendor *fakeVendor) (*GiftWorker, *services.QueueService, *storage.MemStore) {
	t.Helper()
	store := storage.NewMemStore()
	queue := services.NewQueueService(store)
	return NewGiftWorker(queue, vendor), queue, store
}

func claimOne(t *testing.T, queue *services.QueueService) *models.GiftTask {
	t.Helper()
	tasks, err := queue.Claim(context.Background(), BatchSize)
	require.NoError(t, err)
	require.Len(t, tasks, 1)
	return &tasks[0]
}

func TestProcessTaskDeliversAndMarksSent(t *testing.T) {
	vendor := &fakeVendor{catalog: map[int64]*Gift{15: {ID: "g15", Stars: 15}}}
	worker, queue, store := newWorkerFixture(t, vendor)
	ctx := context.Background()

	_, err := queue.Enqueue(ctx, 42, 15, false)
	require.NoError(t, err)

	worker.ProcessTask(ctx, claimOne(t, queue))

	require.Equal(t, []int64{42}, vendor.sent)
	stored, ok := store.GetTask(1)
	require.True(t, ok)
	require.Equal(t, models.GiftStatusSent, stored.Status)

	pool, err := queue.Pool(ctx)
	require.NoError(t, err)
	require.Equal(t, int64(0), pool, "a delivered gift must not touch the pool")
}

func TestNoCatalogMatchFailsAndRefunds(t *testing.T) {
	vendor := &fakeVendor{catalog: map[int64]*Gift{}}
	worker, queue, store := newWorkerFixture(t, vendor)
	ctx := context.Background()

	_, err := queue.Enqueue(ctx, 42, 25, true)
	require.NoError(t, err)

	task := claimOne(t, queue)
	worker.ProcessTask(ctx, task)

	stored, ok := store.GetTask(task.ID)
	require.True(t, ok)
	require.Equal(t, models.GiftStatusFailed, stored.Status)

	pool, err := queue.Pool(ctx)
	require.NoError(t, err)
	require.Equal(t, int64(25), pool)

	// Reprocessing a finalized task must not refund again.
	worker.ProcessTask(ctx, task)
	pool, err = queue.Pool(ctx)
	require.NoError(t, err)
	require.Equal(t, int64(25), pool)
}

func TestSendFailureRefundsOnce(t *testing.T) {
	vendor := &fakeVendor{
		catalog: map[int64]*Gift{15: {ID: "g15", Stars: 15}},
		sendErr: errors.New("delivery rejected"),
	}
	worker, queue, store := newWorkerFixture(t, vendor)
	ctx := context.Background()

	_, err := queue.Enqueue(ctx, 42, 15, false)
	require.NoError(t, err)

	task := claimOne(t, queue)
	worker.ProcessTask(ctx, task)

	stored, ok := store.GetTask(task.ID)
	require.True(t, ok)
	require.Equal(t, models.GiftStatusFailed, stored.Status)
	require.Empty(t, vendor.sent)

	pool, err := queue.Pool(ctx)
	require.NoError(t, err)
	require.Equal(t, int64(15), pool)
}

func TestFailedTaskIsClaimableAgainAfterReclaim(t *testing.T) {
	vendor := &fakeVendor{catalog: map[int64]*Gift{15: {ID: "g15", Stars: 15}}}
	worker, queue, _ := newWorkerFixture(t, vendor)
	ctx := context.Background()

	_, err := queue.Enqueue(ctx, 42, 15, false)
	require.NoError(t, err)

	// Claim but never finalize, simulating a crashed worker.
	claimOne(t, queue)

	reclaimed, err := queue.Reclaim(ctx, 0)
	require.NoError(t, err)
	require.Equal(t, int64(1), reclaimed)

	worker.ProcessTask(ctx, claimOne(t, queue))
	require.Equal(t, []int64{42}, vendor.sent)
}

func TestRunStopsOnCancel(t *testing.T) {
	vendor := &fakeVendor{catalog: map[int64]*Gift{}}
	worker, _, _ := newWorkerFixture(t, vendor)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	done := make(chan struct{})
	go func() {
		worker.Run(ctx)
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("worker did not stop after cancellation")
	}
}
