package scheduler

import (
	"context"
	"log"
	"time"

	"github.com/robfig/cron/v3"
)

// Scheduler drives the periodic evaluation tick. One cron entry fires every
// minute — time triggers match on the exact minute, so a coarser tick would
// silently miss them. SkipIfStillRunning serializes ticks: a slow pass delays
// the next tick instead of racing it.
//
// The home lister and enqueue function are injected so tests can drive ticks
// without wall-clock timers or a live queue.
type Scheduler struct {
	cron      *cron.Cron
	listHomes func(ctx context.Context) ([]string, error)
	enqueue   func(homeID string) error
}

// NewScheduler creates a scheduler; nothing runs until Start
func NewScheduler(listHomes func(ctx context.Context) ([]string, error), enqueue func(homeID string) error) *Scheduler {
	return &Scheduler{
		cron:      cron.New(cron.WithChain(cron.SkipIfStillRunning(cron.DefaultLogger))),
		listHomes: listHomes,
		enqueue:   enqueue,
	}
}

// Start registers the tick and starts the cron loop
func (s *Scheduler) Start() error {
	if _, err := s.cron.AddFunc("* * * * *", s.Tick); err != nil {
		return err
	}
	s.cron.Start()
	log.Println("SCHEDULER: started, evaluating every minute")
	return nil
}

// Stop prevents further ticks and waits for a running tick to finish
func (s *Scheduler) Stop() {
	ctx := s.cron.Stop()
	<-ctx.Done()
	log.Println("SCHEDULER: stopped")
}

// Tick fans evaluation out across homes: sequential per home (one task per
// home per tick), parallel across homes (queue workers). A failed tick is
// logged and dropped; the next minute's tick carries on.
func (s *Scheduler) Tick() {
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Second)
	defer cancel()

	homes, err := s.listHomes(ctx)
	if err != nil {
		log.Printf("SCHEDULER: failed to list homes, skipping tick: %v", err)
		return
	}
	for _, homeID := range homes {
		if err := s.enqueue(homeID); err != nil {
			log.Printf("SCHEDULER: failed to enqueue evaluation for home %s: %v", homeID, err)
		}
	}
}
