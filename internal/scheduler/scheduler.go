package scheduler

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"dontcare/internal/config"
	"dontcare/internal/database"
	"dontcare/internal/logger"
	"dontcare/internal/market"
	"dontcare/internal/news"
)

// JobStatus is the outcome of the most recent run
type JobStatus string

const (
	JobStatusPending   JobStatus = "pending"
	JobStatusRunning   JobStatus = "running"
	JobStatusCompleted JobStatus = "completed"
	JobStatusFailed    JobStatus = "failed"
)

// Job tracks one scheduled task and its last outcome
type Job struct {
	Name        string    `json:"name"`
	Schedule    string    `json:"schedule"`
	LastRunTime time.Time `json:"last_run_time"`
	Status      JobStatus `json:"status"`
	Error       string    `json:"error,omitempty"`
}

// JobFunc is the work a job performs
type JobFunc func(ctx context.Context) error

// Scheduler runs the background jobs: market cache warmup, periodic
// news crawls, and expired-session cleanup.
type Scheduler struct {
	cron *cron.Cron
	jobs map[string]*Job
	mu   sync.RWMutex
}

// New creates an empty scheduler
func New() *Scheduler {
	return &Scheduler{
		cron: cron.New(),
		jobs: make(map[string]*Job),
	}
}

// AddJob registers fn under the given cron spec
func (s *Scheduler) AddJob(name, schedule string, fn JobFunc) error {
	job := &Job{Name: name, Schedule: schedule, Status: JobStatusPending}

	_, err := s.cron.AddFunc(schedule, func() {
		s.run(job, fn)
	})
	if err != nil {
		return fmt.Errorf("failed to add cron job %s: %w", name, err)
	}

	s.mu.Lock()
	s.jobs[name] = job
	s.mu.Unlock()
	return nil
}

// Start begins running the registered jobs
func (s *Scheduler) Start() {
	s.cron.Start()
	logger.WithField("jobs", len(s.jobs)).Info("Scheduler started")
}

// Stop stops scheduling and waits for running jobs to finish
func (s *Scheduler) Stop() {
	<-s.cron.Stop().Done()
	logger.Info("Scheduler stopped")
}

// Jobs returns a snapshot of the registered jobs
func (s *Scheduler) Jobs() []Job {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]Job, 0, len(s.jobs))
	for _, job := range s.jobs {
		out = append(out, *job)
	}
	return out
}

func (s *Scheduler) run(job *Job, fn JobFunc) {
	s.mu.Lock()
	job.Status = JobStatusRunning
	job.LastRunTime = time.Now()
	s.mu.Unlock()

	start := time.Now()
	err := fn(context.Background())

	s.mu.Lock()
	defer s.mu.Unlock()
	if err != nil {
		job.Status = JobStatusFailed
		job.Error = err.Error()
		logger.WithError(err).WithField("job", job.Name).Error("Scheduled job failed")
		return
	}
	job.Status = JobStatusCompleted
	job.Error = ""
	logger.WithFields(map[string]interface{}{
		"job":      job.Name,
		"duration": time.Since(start).String(),
	}).Info("Scheduled job completed")
}

// Deps are the services the standard job set operates on. DB may be
// nil; DB-backed jobs are skipped then.
type Deps struct {
	DB     *database.DB
	Market *market.Service
	News   *news.Service
}

// Setup registers the standard job set from the configuration
func Setup(cfg config.SchedulerConfig, deps Deps) (*Scheduler, error) {
	s := New()

	if cfg.MarketWarmupSpec != "" && deps.Market != nil {
		if err := s.AddJob("market_warmup", cfg.MarketWarmupSpec, MarketWarmupJob(deps.Market)); err != nil {
			return nil, err
		}
	}
	if cfg.NewsCrawlSpec != "" && deps.News != nil {
		queries := cfg.NewsQueries
		if len(queries) == 0 {
			queries = []string{news.DefaultQuery}
		}
		if err := s.AddJob("news_crawl", cfg.NewsCrawlSpec, NewsCrawlJob(deps.News, queries)); err != nil {
			return nil, err
		}
	}
	if cfg.SessionCleanupSpec != "" && deps.DB != nil {
		if err := s.AddJob("session_cleanup", cfg.SessionCleanupSpec, SessionCleanupJob(deps.DB)); err != nil {
			return nil, err
		}
	}

	return s, nil
}

// MarketWarmupJob primes the quote cache so the first request after a
// TTL expiry does not pay the upstream latency.
func MarketWarmupJob(svc *market.Service) JobFunc {
	return func(ctx context.Context) error {
		ctx, cancel := context.WithTimeout(ctx, 5*time.Minute)
		defer cancel()

		if _, err := svc.GetDashboard(ctx); err != nil {
			return fmt.Errorf("market warmup: %w", err)
		}
		return nil
	}
}

// NewsCrawlJob crawls each configured query in sequence. One failing
// query does not stop the rest.
func NewsCrawlJob(svc *news.Service, queries []string) JobFunc {
	return func(ctx context.Context) error {
		ctx, cancel := context.WithTimeout(ctx, 10*time.Minute)
		defer cancel()

		var lastErr error
		for _, query := range queries {
			result, err := svc.Crawl(ctx, news.CrawlOptions{
				Query:         query,
				Display:       20,
				Sort:          news.SortByDate,
				ExtractImages: true,
			})
			if err != nil {
				logger.WithError(err).WithField("query", query).Warn("Scheduled crawl failed")
				lastErr = err
				continue
			}
			logger.WithFields(map[string]interface{}{
				"query": query,
				"saved": result.SavedCount,
			}).Info("Scheduled crawl finished")
		}
		return lastErr
	}
}

// SessionCleanupJob removes expired refresh sessions
func SessionCleanupJob(db *database.DB) JobFunc {
	return func(ctx context.Context) error {
		ctx, cancel := context.WithTimeout(ctx, time.Minute)
		defer cancel()

		deleted, err := db.DeleteExpiredSessions(ctx)
		if err != nil {
			return fmt.Errorf("session cleanup: %w", err)
		}
		if deleted > 0 {
			logger.WithField("deleted", deleted).Info("Expired sessions removed")
		}
		return nil
	}
}
