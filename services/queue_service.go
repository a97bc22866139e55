package services

import (
	"context"
	"log"
	"time"

	"dice-gift-bot/models"
	"dice-gift-bot/storage"
)

// QueueService fronts the durable gift queue. Enqueue happens in the
// bot process on a win; claim/finish happen in worker processes. Fail
// is the only place that issues the compensating pool credit, and it
// does so only when it actually won the processing→failed edge, so a
// failed task refunds the pool exactly once.
type QueueService struct {
	Store storage.Store
}

func NewQueueService(store storage.Store) *QueueService {
	return &QueueService{Store: store}
}

// Enqueue appends a pending gift task for the beneficiary.
func (s *QueueService) Enqueue(ctx context.Context, userID, amountStars int64, premium bool) (*models.GiftTask, error) {
	task := &models.GiftTask{
		UserID:      userID,
		AmountStars: amountStars,
		Premium:     premium,
	}
	if err := s.Store.EnqueueGiftTask(ctx, task); err != nil {
		return nil, err
	}
	return task, nil
}

// Claim hands out up to batch pending tasks, marked processing. Rows
// already locked by a concurrent worker are skipped, never shared.
func (s *QueueService) Claim(ctx context.Context, batch int) ([]models.GiftTask, error) {
	return s.Store.ClaimGiftTasks(ctx, batch)
}

// Finish marks a processing task sent.
func (s *QueueService) Finish(ctx context.Context, task *models.GiftTask) error {
	done, err := s.Store.MarkTaskSent(ctx, task.ID)
	if err != nil {
		return err
	}
	if !done {
		log.Printf("⚠️ [QUEUE] task %d already finalized, sent not recorded", task.ID)
	}
	return nil
}

// Fail marks a processing task failed and refunds its stars into the
// shared pool so the economic total is conserved.
func (s *QueueService) Fail(ctx context.Context, task *models.GiftTask, reason string) error {
	failed, err := s.Store.MarkTaskFailed(ctx, task.ID)
	if err != nil {
		return err
	}
	if !failed {
		log.Printf("⚠️ [QUEUE] task %d already finalized, skipping refund", task.ID)
		return nil
	}
	log.Printf("❌ [QUEUE] task %d failed: %s", task.ID, reason)
	value, err := s.Store.AdjustPool(ctx, models.PoolKeyStars, task.AmountStars)
	if err != nil {
		return err
	}
	log.Printf("💫 [QUEUE] refunded %d⭐ to pool (now %d)", task.AmountStars, value)
	return nil
}

// Reclaim returns expired processing claims to pending. A worker that
// crashed between claim and completion loses its batch after the lease.
func (s *QueueService) Reclaim(ctx context.Context, lease time.Duration) (int64, error) {
	return s.Store.ReclaimStuckTasks(ctx, lease)
}

// Pool returns the shared star pool balance.
func (s *QueueService) Pool(ctx context.Context) (int64, error) {
	return s.Store.GetPool(ctx, models.PoolKeyStars)
}

// TopUpPool adds delta stars to the shared pool (admin operation).
func (s *QueueService) TopUpPool(ctx context.Context, delta int64) (int64, error) {
	return s.Store.AdjustPool(ctx, models.PoolKeyStars, delta)
}
