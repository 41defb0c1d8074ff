// Package scheduler runs the periodic overdue-task sweep: any task past its
// due date and not Done earns its assignee a single task_overdue
// notification per process lifetime. The dedup set is in-memory only; a
// restart may re-notify, which is acceptable under at-least-once delivery.
package scheduler

import (
	"context"
	"fmt"
	"log"
	"os"
	"strconv"
	"sync"
	"time"

	"github.com/taskboard-dev/taskboard/db"
	"github.com/taskboard-dev/taskboard/internal/models"
	"github.com/taskboard-dev/taskboard/internal/notify"
	"github.com/taskboard-dev/taskboard/internal/types"
)

const defaultSweepMinutes = 10

type Scheduler struct {
	fanout   *notify.Fanout
	interval time.Duration

	mu       sync.Mutex
	notified map[uint]bool // task IDs already reported this run

	ctx    context.Context
	cancel context.CancelFunc
}

// NewScheduler builds a sweep scheduler. The interval comes from
// OVERDUE_SWEEP_MINUTES, defaulting to 10 minutes.
func NewScheduler(fanout *notify.Fanout) *Scheduler {
	ctx, cancel := context.WithCancel(context.Background())

	minutes := defaultSweepMinutes

	if raw := os.Getenv("OVERDUE_SWEEP_MINUTES"); raw != "" {
		parsed, err := strconv.Atoi(raw)

		if err != nil || parsed <= 0 {
			log.Printf("Invalid OVERDUE_SWEEP_MINUTES %q, using %d", raw, defaultSweepMinutes)
		} else {
			minutes = parsed
		}
	}

	return &Scheduler{
		fanout:   fanout,
		interval: time.Duration(minutes) * time.Minute,
		notified: make(map[uint]bool),
		ctx:      ctx,
		cancel:   cancel,
	}
}

// Start runs an immediate sweep, then sweeps on the configured interval
// until Stop is called.
func (s *Scheduler) Start() {
	log.Printf("Starting overdue sweep every %v", s.interval)

	go func() {
		s.Sweep()

		ticker := time.NewTicker(s.interval)
		defer ticker.Stop()

		for {
			select {
			case <-s.ctx.Done():
				return
			case <-ticker.C:
				s.Sweep()
			}
		}
	}()
}

// Stop cancels the sweep loop.
func (s *Scheduler) Stop() {
	log.Println("Stopping overdue sweep")
	s.cancel()
}

// Sweep scans for newly overdue tasks and notifies their assignees.
func (s *Scheduler) Sweep() {
	var tasks []models.Task

	err := db.DB.
		Where("due_date IS NOT NULL AND due_date < ? AND status <> ? AND assignee_id IS NOT NULL", time.Now(), "Done").
		Find(&tasks).Error

	if err != nil {
		log.Printf("Overdue sweep query failed: %v", err)
		return
	}

	for _, task := range tasks {
		if !s.markNotified(task.ID) {
			continue
		}

		err := s.fanout.Notify(
			*task.AssigneeID,
			types.NotifyTaskOverdue,
			"Task overdue",
			fmt.Sprintf("Task %q is past its due date.", task.Title),
			types.TaskRef{TaskID: task.ID, ProjectID: task.ProjectID})

		if err != nil {
			log.Printf("Failed to notify assignee of overdue task %d: %v", task.ID, err)
		}
	}
}

// markNotified records the task as reported and reports whether this call
// was the first to do so.
func (s *Scheduler) markNotified(taskID uint) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.notified[taskID] {
		return false
	}

	s.notified[taskID] = true
	return true
}
