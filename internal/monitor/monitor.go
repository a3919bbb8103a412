// Package monitor polls the relational database for eligible studies and
// dispatches each new one to the pipeline exactly once per session.
package monitor

import (
	"context"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"dictascribe/internal/config"
	"dictascribe/internal/statusstore"
)

// pollErrorBackoff is the pause after a failed eligibility query before
// the next attempt.
const pollErrorBackoff = 5 * time.Second

// EligibleFinder is the slice of the relational store the monitor needs.
type EligibleFinder interface {
	FindEligibleStudies(ctx context.Context, statusCode int) ([]string, error)
}

// Processor runs the pipeline for one study.
type Processor interface {
	Process(ctx context.Context, studyKey string) error
}

// ConfigSource yields the current configuration; the manager's hot
// reload makes poll interval changes take effect on the next cycle.
type ConfigSource interface {
	GetConfig() *config.Config
}

// Stats is a point-in-time snapshot for the control socket.
type Stats struct {
	Attempted int
	Processed int
	Failed    int
	StartedAt time.Time
	LastPoll  time.Time
}

type Monitor struct {
	finder    EligibleFinder
	status    statusstore.Store
	processor Processor
	cfg       ConfigSource
	log       *logrus.Entry

	mu        sync.Mutex
	attempted map[string]struct{}
	stats     Stats
}

func New(finder EligibleFinder, status statusstore.Store, processor Processor, cfg ConfigSource, log *logrus.Entry) *Monitor {
	return &Monitor{
		finder:    finder,
		status:    status,
		processor: processor,
		cfg:       cfg,
		log:       log,
		attempted: make(map[string]struct{}),
	}
}

// Run polls until ctx is cancelled. A study already dispatched runs to
// completion; cancellation is honored between studies and between polls.
func (m *Monitor) Run(ctx context.Context) error {
	m.mu.Lock()
	m.stats.StartedAt = time.Now()
	m.mu.Unlock()

	cfg := m.cfg.GetConfig()
	m.log.WithFields(logrus.Fields{
		"poll_interval":   cfg.Monitor.PollInterval,
		"eligible_status": cfg.Monitor.EligibleStatus,
	}).Info("database monitoring started")

	if err := m.seedAttempted(ctx, cfg.Monitor.RetryErrored); err != nil {
		m.log.WithError(err).Warn("could not seed attempted set from status store")
	}

	for {
		if ctx.Err() != nil {
			m.log.Info("database monitoring stopped")
			return nil
		}

		cfg = m.cfg.GetConfig()
		if err := m.poll(ctx, cfg.Monitor.EligibleStatus); err != nil {
			m.log.WithError(err).Error("eligibility query failed")
			if !sleep(ctx, pollErrorBackoff) {
				return nil
			}
			continue
		}

		if !sleep(ctx, cfg.Monitor.PollInterval) {
			m.log.Info("database monitoring stopped")
			return nil
		}
	}
}

func (m *Monitor) poll(ctx context.Context, eligibleStatus int) error {
	keys, err := m.finder.FindEligibleStudies(ctx, eligibleStatus)
	if err != nil {
		return err
	}

	m.mu.Lock()
	m.stats.LastPoll = time.Now()
	m.mu.Unlock()

	for _, key := range keys {
		if ctx.Err() != nil {
			return nil
		}
		if !m.markAttempted(key) {
			m.log.WithField("study_key", key).Debug("study already attempted this session, skipping")
			continue
		}

		m.log.WithField("study_key", key).Info("new eligible study found")
		if err := m.status.UpsertStatus(ctx, key, statusstore.StatusUpdate{
			Status: statusstore.StatusReceived,
		}); err != nil {
			m.log.WithField("study_key", key).WithError(err).Error("failed to record received status")
		}

		// The dispatched study must finish even if the monitor is asked
		// to stop while it runs.
		if err := m.processor.Process(context.WithoutCancel(ctx), key); err != nil {
			m.log.WithField("study_key", key).WithError(err).Error("study processing failed")
			m.bumpStats(func(s *Stats) { s.Failed++ })
		} else {
			m.bumpStats(func(s *Stats) { s.Processed++ })
		}
	}
	return nil
}

// seedAttempted restores session dedup across restarts: studies that
// already hold a status are not retried, except errored studies when
// retryErrored is set.
func (m *Monitor) seedAttempted(ctx context.Context, retryErrored bool) error {
	statuses, err := m.status.ListStatuses(ctx)
	if err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, st := range statuses {
		if retryErrored && st.Status == statusstore.StatusError {
			continue
		}
		m.attempted[st.StudyKey] = struct{}{}
	}
	m.stats.Attempted = len(m.attempted)
	m.log.WithField("count", len(m.attempted)).Info("seeded attempted study set")
	return nil
}

// markAttempted reports whether the key was new.
func (m *Monitor) markAttempted(key string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.attempted[key]; ok {
		return false
	}
	m.attempted[key] = struct{}{}
	m.stats.Attempted = len(m.attempted)
	return true
}

func (m *Monitor) bumpStats(fn func(*Stats)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	fn(&m.stats)
}

// Snapshot returns current counters for the control socket.
func (m *Monitor) Snapshot() Stats {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.stats
}

// sleep waits for d or cancellation; false means cancelled.
func sleep(ctx context.Context, d time.Duration) bool {
	select {
	case <-ctx.Done():
		return false
	case <-time.After(d):
		return true
	}
}
