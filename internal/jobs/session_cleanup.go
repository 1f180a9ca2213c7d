package jobs

import (
	"context"
	"log"
	"sync"
	"time"

	"github.com/asemyonov/jarvis/internal/store"
)

// SessionCleanupJob purges expired auth sessions on a fixed interval so
// revoked and stale tokens don't accumulate in the sessions table.
type SessionCleanupJob struct {
	store    *store.Store
	logger   *log.Logger
	interval time.Duration
	stopCh   chan struct{}
	wg       sync.WaitGroup
}

// NewSessionCleanupJob creates the cleanup job. A zero interval defaults to
// one hour.
func NewSessionCleanupJob(s *store.Store, logger *log.Logger, interval time.Duration) *SessionCleanupJob {
	if interval == 0 {
		interval = 1 * time.Hour
	}
	return &SessionCleanupJob{
		store:    s,
		logger:   logger,
		interval: interval,
		stopCh:   make(chan struct{}),
	}
}

// Start begins the background job.
func (j *SessionCleanupJob) Start() {
	j.wg.Add(1)
	go j.run()
	j.logger.Printf("SessionCleanupJob: started (interval=%v)", j.interval)
}

// Stop gracefully stops the background job.
func (j *SessionCleanupJob) Stop() {
	close(j.stopCh)
	j.wg.Wait()
	j.logger.Println("SessionCleanupJob: stopped")
}

func (j *SessionCleanupJob) run() {
	defer j.wg.Done()

	// Run immediately on start
	j.purge()

	ticker := time.NewTicker(j.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			j.purge()
		case <-j.stopCh:
			return
		}
	}
}

func (j *SessionCleanupJob) purge() {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	removed, err := j.store.PurgeExpiredSessions(ctx)
	if err != nil {
		j.logger.Printf("SessionCleanupJob: purge failed: %v", err)
		return
	}
	if removed > 0 {
		j.logger.Printf("SessionCleanupJob: purged %d expired sessions", removed)
	}
}
