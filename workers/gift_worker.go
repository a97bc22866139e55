package workers

import (
	"context"
	"fmt"
	"log"
	"time"

	"dice-gift-bot/models"
	"dice-gift-bot/services"
)

const (
	// BatchSize is how many tasks one iteration claims.
	BatchSize = 5

	idlePollInterval = 3 * time.Second
	batchPause       = 1 * time.Second
	errorBackoff     = 5 * time.Second
)

// Gift is one purchasable unit from the external catalog.
type Gift struct {
	ID    string
	Stars int64
}

// GiftVendor is the external catalog + delivery boundary. FindByPrice
// returns nil without error when no unit matches the price.
type GiftVendor interface {
	FindByPrice(ctx context.Context, stars int64) (*Gift, error)
	Send(ctx context.Context, userID int64, gift *Gift) error
}

// GiftWorker drains the shared gift queue. Any number of worker
// processes can run concurrently; the claim discipline hands each task
// to exactly one of them at a time. A task whose gift cannot be found,
// bought or delivered is failed and its stars refunded to the pool.
type GiftWorker struct {
	Queue  *services.QueueService
	Vendor GiftVendor
}

func NewGiftWorker(queue *services.QueueService, vendor GiftVendor) *GiftWorker {
	return &GiftWorker{Queue: queue, Vendor: vendor}
}

// Run polls the queue until ctx is cancelled.
func (w *GiftWorker) Run(ctx context.Context) {
	log.Println("Starting gift worker...")
	for {
		if ctx.Err() != nil {
			log.Println("Gift worker stopped.")
			return
		}

		tasks, err := w.Queue.Claim(ctx, BatchSize)
		if err != nil {
			log.Printf("❌ [WORKER] claim failed: %v", err)
			sleepCtx(ctx, errorBackoff)
			continue
		}
		if len(tasks) == 0 {
			sleepCtx(ctx, idlePollInterval)
			continue
		}

		log.Printf("📥 [WORKER] claimed %d gift task(s)", len(tasks))
		for i := range tasks {
			w.ProcessTask(ctx, &tasks[i])
		}

		sleepCtx(ctx, batchPause)
	}
}

// ProcessTask attempts one acquisition+delivery and finalizes the task
// either way. Errors never propagate to the user; the failed→refund
// path is the resolution.
func (w *GiftWorker) ProcessTask(ctx context.Context, task *models.GiftTask) {
	log.Printf("🎁 [WORKER] task %d → user %d (%d⭐) premium=%v",
		task.ID, task.UserID, task.AmountStars, task.Premium)

	if err := w.deliver(ctx, task); err != nil {
		if failErr := w.Queue.Fail(ctx, task, err.Error()); failErr != nil {
			log.Printf("❌ [WORKER] refund failed for task %d: %v", task.ID, failErr)
		}
		return
	}

	if err := w.Queue.Finish(ctx, task); err != nil {
		log.Printf("❌ [WORKER] could not mark task %d sent: %v", task.ID, err)
		return
	}
	log.Printf("✅ [WORKER] task %d sent", task.ID)
}

func (w *GiftWorker) deliver(ctx context.Context, task *models.GiftTask) error {
	gift, err := w.Vendor.FindByPrice(ctx, task.AmountStars)
	if err != nil {
		return fmt.Errorf("catalog lookup: %w", err)
	}
	if gift == nil {
		return fmt.Errorf("no gift priced at %d⭐", task.AmountStars)
	}
	if err := w.Vendor.Send(ctx, task.UserID, gift); err != nil {
		return fmt.Errorf("send gift %s: %w", gift.ID, err)
	}
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
