package jobs

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/maltedev/wholesale-finder/internal/models"
	"github.com/maltedev/wholesale-finder/internal/queue"
	"github.com/maltedev/wholesale-finder/internal/wholesale"
)

var (
	ErrJobNotFound = errors.New("job not found")
	ErrEmptyTitle  = errors.New("title is required")
)

type Status string

const (
	StatusPending   Status = "pending"
	StatusRunning   Status = "running"
	StatusCompleted Status = "completed"
	StatusFailed    Status = "failed"
)

const listLimit = 100

// Finder is the wholesale lookup a job runs.
type Finder interface {
	FindWholesaleEquivalent(ctx context.Context, title string, maxResults int) []*models.RankedResult
}

// Job represents an asynchronous wholesale lookup
type Job struct {
	ID          string                 `json:"id"`
	Title       string                 `json:"title"`
	MaxResults  int                    `json:"max_results"`
	RetailPrice float64                `json:"retail_price,omitempty"`
	Status      Status                 `json:"status"`
	Results     []*models.RankedResult `json:"results,omitempty"`
	Comparison  *wholesale.Comparison  `json:"comparison,omitempty"`
	CreatedAt   time.Time              `json:"created_at"`
	StartedAt   *time.Time             `json:"started_at,omitempty"`
	CompletedAt *time.Time             `json:"completed_at,omitempty"`
	Error       string                 `json:"error,omitempty"`
}

// Stats represents job statistics
type Stats struct {
	TotalJobs     int     `json:"total_jobs"`
	PendingJobs   int     `json:"pending_jobs"`
	RunningJobs   int     `json:"running_jobs"`
	CompletedJobs int     `json:"completed_jobs"`
	FailedJobs    int     `json:"failed_jobs"`
	TotalResults  int     `json:"total_results"`
	QueueSize     int     `json:"queue_size"`
	SuccessRate   float64 `json:"success_rate"`
}

// Manager keeps jobs in memory and feeds them to a single worker.
type Manager struct {
	queue  queue.Queue
	finder Finder
	logger *slog.Logger

	mu    sync.RWMutex
	jobs  map[string]*Job
	order []string
	now   func() time.Time
}

func NewManager(q queue.Queue, finder Finder, logger *slog.Logger) *Manager {
	return &Manager{
		queue:  q,
		finder: finder,
		logger: logger.With("component", "job_manager"),
		jobs:   make(map[string]*Job),
		now:    time.Now,
	}
}

// CreateJob registers a lookup and queues it for the worker.
func (m *Manager) CreateJob(ctx context.Context, title string, maxResults int, retailPrice float64) (*Job, error) {
	title = strings.TrimSpace(title)
	if title == "" {
		return nil, ErrEmptyTitle
	}
	if maxResults <= 0 {
		maxResults = wholesale.DefaultMaxResults
	}

	job := &Job{
		ID:          uuid.New().String(),
		Title:       title,
		MaxResults:  maxResults,
		RetailPrice: retailPrice,
		Status:      StatusPending,
		CreatedAt:   m.now(),
	}

	m.mu.Lock()
	m.jobs[job.ID] = job
	m.order = append(m.order, job.ID)
	m.mu.Unlock()

	err := m.queue.Push(&queue.Task{
		ID:          job.ID,
		Title:       title,
		MaxResults:  maxResults,
		RetailPrice: retailPrice,
		CreatedAt:   job.CreatedAt,
	})
	if err != nil {
		m.remove(job.ID)
		return nil, fmt.Errorf("failed to queue job: %w", err)
	}

	m.logger.Info("job created", "id", job.ID, "title", title)
	return m.snapshot(job), nil
}

// GetJob retrieves a job by ID
func (m *Manager) GetJob(_ context.Context, jobID string) (*Job, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	job, ok := m.jobs[jobID]
	if !ok {
		return nil, ErrJobNotFound
	}
	return m.snapshot(job), nil
}

// ListJobs returns the most recent jobs first.
func (m *Manager) ListJobs(_ context.Context) []*Job {
	m.mu.RLock()
	defer m.mu.RUnlock()

	jobs := make([]*Job, 0, min(len(m.order), listLimit))
	for i := len(m.order) - 1; i >= 0 && len(jobs) < listLimit; i-- {
		jobs = append(jobs, m.snapshot(m.jobs[m.order[i]]))
	}
	return jobs
}

func (m *Manager) GetStats(_ context.Context) *Stats {
	m.mu.RLock()
	defer m.mu.RUnlock()

	stats := &Stats{TotalJobs: len(m.jobs), QueueSize: m.queue.Size()}
	for _, job := range m.jobs {
		switch job.Status {
		case StatusPending:
			stats.PendingJobs++
		case StatusRunning:
			stats.RunningJobs++
		case StatusCompleted:
			stats.CompletedJobs++
		case StatusFailed:
			stats.FailedJobs++
		}
		stats.TotalResults += len(job.Results)
	}

	if finished := stats.CompletedJobs + stats.FailedJobs; finished > 0 {
		stats.SuccessRate = float64(stats.CompletedJobs) / float64(finished) * 100
	}
	return stats
}

func (m *Manager) update(jobID string, fn func(*Job)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if job, ok := m.jobs[jobID]; ok {
		fn(job)
	}
}

func (m *Manager) remove(jobID string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.jobs, jobID)
	for i, id := range m.order {
		if id == jobID {
			m.order = append(m.order[:i], m.order[i+1:]...)
			break
		}
	}
}

// snapshot copies a job so callers never share state with the worker.
// Callers must hold m.mu.
func (m *Manager) snapshot(job *Job) *Job {
	cp := *job
	if job.Results != nil {
		cp.Results = append([]*models.RankedResult(nil), job.Results...)
	}
	return &cp
}
