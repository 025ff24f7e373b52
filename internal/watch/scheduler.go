package watch

import (
	"context"
	"log"
	"time"
)

// RenewalScheduler re-registers the Gmail watch before it expires.
type RenewalScheduler struct {
	registrar *Registrar
	interval  time.Duration
	stopChan  chan struct{}
}

func NewRenewalScheduler(registrar *Registrar, interval time.Duration) *RenewalScheduler {
	if interval <= 0 {
		interval = 24 * time.Hour
	}
	return &RenewalScheduler{
		registrar: registrar,
		interval:  interval,
		stopChan:  make(chan struct{}),
	}
}

// Run renews immediately and then on every tick until ctx is done or Stop
// is called.
func (s *RenewalScheduler) Run(ctx context.Context) error {
	log.Printf("[WatchScheduler] Starting watch renewal (interval: %s)", s.interval)

	s.renew(ctx)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			s.renew(ctx)
		case <-s.stopChan:
			log.Println("[WatchScheduler] Scheduler stopped")
			return nil
		case <-ctx.Done():
			log.Println("[WatchScheduler] Scheduler stopped")
			return nil
		}
	}
}

func (s *RenewalScheduler) Stop() {
	close(s.stopChan)
}

func (s *RenewalScheduler) renew(ctx context.Context) {
	resp, err := s.registrar.RegisterWatch(ctx)
	if err != nil {
		log.Printf("[WatchScheduler] Error renewing watch: %v", err)
		return
	}
	log.Printf("[WatchScheduler] Watch renewed, expires %s", resp.Expiration.Format(time.RFC3339))
}
