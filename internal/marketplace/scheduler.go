package marketplace

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rotaclub/rota/internal/monitoring"
	"github.com/rs/zerolog/log"
)

const expiryJob = "ad_expiry"

// Scheduler runs the ad expiry sweep on a cron schedule
type Scheduler struct {
	service    *Service
	schedule   string
	cron       *cron.Cron
	entryID    cron.EntryID
	ctx        context.Context
	cancel     context.CancelFunc
	running    bool
	mu         sync.Mutex
	lastRun    time.Time
	lastResult int64
	lastErr    error
}

// NewScheduler creates an expiry scheduler. Schedule accepts standard cron
// expressions and descriptors such as "@every 15m".
func NewScheduler(service *Service, schedule string) *Scheduler {
	if schedule == "" {
		schedule = "@every 15m"
	}
	return &Scheduler{
		service:  service,
		schedule: schedule,
		cron:     cron.New(cron.WithLocation(time.UTC)),
	}
}

// Start registers the sweep and starts the cron runner
func (s *Scheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.running {
		return fmt.Errorf("scheduler already running")
	}

	s.ctx, s.cancel = context.WithCancel(ctx)
	id, err := s.cron.AddFunc(s.schedule, func() {
		if _, err := s.RunNow(s.ctx); err != nil {
			log.Error().Err(err).Str("job", expiryJob).Msg("Ad expiry sweep failed")
		}
	})
	if err != nil {
		s.cancel()
		return fmt.Errorf("invalid expiry schedule %q: %w", s.schedule, err)
	}
	s.entryID = id
	s.cron.Start()
	s.running = true

	log.Info().Str("schedule", s.schedule).Msg("Ad expiry scheduler started")
	return nil
}

// Stop stops the runner and waits for a sweep in progress
func (s *Scheduler) Stop() {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return
	}
	s.running = false
	s.cron.Remove(s.entryID)
	s.mu.Unlock()

	<-s.cron.Stop().Done()
	s.cancel()
	log.Info().Msg("Ad expiry scheduler stopped")
}

// IsRunning returns whether the scheduler is running
func (s *Scheduler) IsRunning() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.running
}

// RunNow expires due ads immediately and records the outcome
func (s *Scheduler) RunNow(ctx context.Context) (int64, error) {
	start := time.Now()
	n, err := s.service.ExpireDue(ctx)
	monitoring.RecordJobRun(expiryJob, time.Since(start), err)

	s.mu.Lock()
	s.lastRun = start.UTC()
	s.lastResult = n
	s.lastErr = err
	s.mu.Unlock()

	return n, err
}

// SchedulerStatus represents the current status of the scheduler
type SchedulerStatus struct {
	Running     bool       `json:"running"`
	Schedule    string     `json:"schedule"`
	LastRun     *time.Time `json:"last_run,omitempty"`
	LastExpired int64      `json:"last_expired"`
	LastError   string     `json:"last_error,omitempty"`
	NextRun     *time.Time `json:"next_run,omitempty"`
}

// GetStatus returns the current status of the scheduler
func (s *Scheduler) GetStatus() *SchedulerStatus {
	s.mu.Lock()
	defer s.mu.Unlock()

	status := &SchedulerStatus{
		Running:     s.running,
		Schedule:    s.schedule,
		LastExpired: s.lastResult,
	}
	if !s.lastRun.IsZero() {
		lastRun := s.lastRun
		status.LastRun = &lastRun
	}
	if s.lastErr != nil {
		status.LastError = s.lastErr.Error()
	}
	if s.running {
		if next := s.cron.Entry(s.entryID).Next; !next.IsZero() {
			status.NextRun = &next
		}
	}
	return status
}
