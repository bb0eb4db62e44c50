package jobs

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
)

const cleanupTimeout = 30 * time.Second

type SessionReaper interface {
	ReapExpired(ctx context.Context) (int64, error)
}

type HistoryPruner interface {
	Prune(ctx context.Context, retention time.Duration) (int64, error)
}

// CleanupJob reaps expired sessions on a fixed interval. It only runs between
// Start and Stop.
type CleanupJob struct {
	sessions  SessionReaper
	history   HistoryPruner
	retention time.Duration
	interval  time.Duration
	done      chan struct{}
	stopOnce  sync.Once
	wg        sync.WaitGroup
}

func NewCleanupJob(
	sessions SessionReaper,
	history HistoryPruner,
	retention time.Duration,
	interval time.Duration,
) *CleanupJob {
	return &CleanupJob{
		sessions:  sessions,
		history:   history,
		retention: retention,
		interval:  interval,
		done:      make(chan struct{}),
	}
}

func (j *CleanupJob) Start() {
	j.wg.Add(1)
	go j.run()
	log.Info().Dur("interval", j.interval).Msg("cleanup job started")
}

// Stop ends the loop and waits for an in-flight pass to finish.
func (j *CleanupJob) Stop() {
	j.stopOnce.Do(func() {
		close(j.done)
		j.wg.Wait()
		log.Info().Msg("cleanup job stopped")
	})
}

func (j *CleanupJob) run() {
	defer j.wg.Done()

	ticker := time.NewTicker(j.interval)
	defer ticker.Stop()

	j.cleanup()

	for {
		select {
		case <-j.done:
			return
		case <-ticker.C:
			j.cleanup()
		}
	}
}

func (j *CleanupJob) cleanup() {
	ctx, cancel := context.WithTimeout(context.Background(), cleanupTimeout)
	defer cancel()

	j.RunOnce(ctx)
}

// RunOnce performs a single cleanup pass.
func (j *CleanupJob) RunOnce(ctx context.Context) {
	if j.sessions != nil {
		j.runCleanup(ctx, "expired sessions", j.sessions.ReapExpired)
	}
	if j.history != nil && j.retention > 0 {
		j.runCleanup(ctx, "pairing history", func(ctx context.Context) (int64, error) {
			return j.history.Prune(ctx, j.retention)
		})
	}
}

func (j *CleanupJob) runCleanup(ctx context.Context, name string, fn func(context.Context) (int64, error)) {
	count, err := fn(ctx)
	if err != nil {
		log.Error().Err(err).Msgf("failed to cleanup %s", name)
	} else if count > 0 {
		log.Info().Int64("count", count).Msgf("cleaned up %s", name)
	}
}
