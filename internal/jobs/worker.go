package jobs

import (
	"context"
	"errors"
	"fmt"

	"github.com/maltedev/wholesale-finder/internal/models"
	"github.com/maltedev/wholesale-finder/internal/queue"
	"github.com/maltedev/wholesale-finder/internal/wholesale"
)

// StartWorker drains the queue one job at a time until ctx is done or the
// queue is closed.
func (m *Manager) StartWorker(ctx context.Context) {
	m.logger.Info("job worker started")

	for {
		task, err := m.queue.Pop(ctx)
		if err != nil {
			if errors.Is(err, queue.ErrQueueClosed) || ctx.Err() != nil {
				m.logger.Info("job worker stopping")
				return
			}
			m.logger.Error("failed to pop task", "error", err)
			continue
		}

		m.processTask(ctx, task)
	}
}

func (m *Manager) processTask(ctx context.Context, task *queue.Task) {
	m.logger.Info("processing job", "id", task.ID, "title", task.Title)

	started := m.now()
	m.update(task.ID, func(j *Job) {
		j.Status = StatusRunning
		j.StartedAt = &started
	})

	comparison, results, err := m.run(ctx, task)

	finished := m.now()
	m.update(task.ID, func(j *Job) {
		j.CompletedAt = &finished
		j.Results = results
		j.Comparison = comparison
		if err != nil {
			j.Status = StatusFailed
			j.Error = err.Error()
			return
		}
		j.Status = StatusCompleted
	})

	if err != nil {
		m.logger.Error("job failed", "id", task.ID, "error", err)
		return
	}
	m.logger.Info("job completed", "id", task.ID, "results", len(results))
}

func (m *Manager) run(ctx context.Context, task *queue.Task) (comparison *wholesale.Comparison, results []*models.RankedResult, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("job panicked: %v", r)
		}
	}()

	results = m.finder.FindWholesaleEquivalent(ctx, task.Title, task.MaxResults)
	if ctx.Err() != nil {
		return nil, results, fmt.Errorf("job interrupted: %w", ctx.Err())
	}

	if task.RetailPrice > 0 {
		comparison, err = wholesale.Compare(task.RetailPrice, results)
		if err != nil {
			return nil, results, fmt.Errorf("failed to compare margins: %w", err)
		}
	}
	return comparison, results, nil
}
