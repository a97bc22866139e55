package workers

import (
	"context"
	"log"
	"time"

	"dice-gift-bot/services"

	"github.com/go-co-op/gocron/v2"
)

// ClaimLease is how long a processing claim stays valid. A worker that
// crashes mid-batch loses its rows back to pending after this.
const ClaimLease = 5 * time.Minute

// StartReclaimSweep schedules a periodic sweep that returns expired
// processing claims to pending. Returns the scheduler so the caller can
// shut it down.
func StartReclaimSweep(ctx context.Context, queue *services.QueueService, interval time.Duration) (gocron.Scheduler, error) {
	sched, err := gocron.NewScheduler()
	if err != nil {
		return nil, err
	}

	_, err = sched.NewJob(
		gocron.DurationJob(interval),
		gocron.NewTask(func() {
			reclaimed, err := queue.Reclaim(ctx, ClaimLease)
			if err != nil {
				log.Printf("[Reclaim] DB error: %v", err)
				return
			}
			if reclaimed > 0 {
				log.Printf("♻️ [Reclaim] returned %d stuck task(s) to pending", reclaimed)
			}
		}),
	)
	if err != nil {
		return nil, err
	}

	sched.Start()
	return sched, nil
}
