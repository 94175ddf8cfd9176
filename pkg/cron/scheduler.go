package cron

import (
	"fmt"
	"log/slog"
	"os/exec"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	cronv3 "github.com/robfig/cron/v3"
)

// DeliveryFunc announces a finished job's output through a chat channel.
// output is the trimmed combined stdout/stderr of the command.
type DeliveryFunc func(delivery *DeliveryConfig, jobName, output string) error

// Scheduler owns the runner and the persisted job list.
type Scheduler struct {
	mu      sync.Mutex
	runner  *cronv3.Cron
	store   *fileStore
	jobs    map[string]*Job
	entries map[string]cronv3.EntryID
	deliver DeliveryFunc
	logger  *slog.Logger
}

// NewScheduler loads persisted jobs from dir. Jobs whose run time already
// passed are left in the store with their recorded status; they are not
// re-fired.
func NewScheduler(dir string, logger *slog.Logger) (*Scheduler, error) {
	store := newFileStore(dir)
	jobs, err := store.load()
	if err != nil {
		return nil, err
	}

	s := &Scheduler{
		runner:  cronv3.New(),
		store:   store,
		jobs:    jobs,
		entries: make(map[string]cronv3.EntryID),
		logger:  logger.With("component", "scheduler"),
	}

	now := time.Now()
	for _, job := range jobs {
		if job.Status == StatusScheduled && job.RunAt.After(now) {
			s.entries[job.ID] = s.runner.Schedule(onceAt{at: job.RunAt}, cronv3.FuncJob(s.runFunc(job.ID)))
		}
	}
	return s, nil
}

// SetDeliveryFunc installs the channel announcement hook. Must be called
// before Start.
func (s *Scheduler) SetDeliveryFunc(f DeliveryFunc) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.deliver = f
}

// Start launches the runner goroutine.
func (s *Scheduler) Start() { s.runner.Start() }

// Stop halts the runner and waits for in-flight jobs.
func (s *Scheduler) Stop() {
	<-s.runner.Stop().Done()
}

// AddOnceAt schedules command to run once at runAt.
func (s *Scheduler) AddOnceAt(runAt time.Time, command string) (*Job, error) {
	if command == "" {
		return nil, fmt.Errorf("command is empty")
	}
	if !runAt.After(time.Now()) {
		return nil, fmt.Errorf("run time %s is in the past", runAt.Format(time.RFC3339))
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	job := &Job{
		ID:        uuid.NewString(),
		Name:      "job " + time.Now().Format("20060102-150405"),
		RunAt:     runAt,
		Command:   command,
		Status:    StatusScheduled,
		CreatedAt: time.Now(),
	}
	s.jobs[job.ID] = job
	if err := s.store.save(s.jobs); err != nil {
		delete(s.jobs, job.ID)
		return nil, err
	}

	s.entries[job.ID] = s.runner.Schedule(onceAt{at: runAt}, cronv3.FuncJob(s.runFunc(job.ID)))
	copied := *job
	return &copied, nil
}

// Update applies a patch to an existing job.
func (s *Scheduler) Update(id string, patch JobPatch) (*Job, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	job, ok := s.jobs[id]
	if !ok {
		return nil, fmt.Errorf("job %s not found", id)
	}
	if patch.Name != nil {
		job.Name = *patch.Name
	}
	if patch.Delivery != nil {
		job.Delivery = patch.Delivery
	}
	if err := s.store.save(s.jobs); err != nil {
		return nil, err
	}
	copied := *job
	return &copied, nil
}

// Jobs returns a snapshot of all known jobs.
func (s *Scheduler) Jobs() []Job {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Job, 0, len(s.jobs))
	for _, j := range s.jobs {
		out = append(out, *j)
	}
	return out
}

func (s *Scheduler) runFunc(id string) func() {
	return func() {
		s.mu.Lock()
		job, ok := s.jobs[id]
		if !ok {
			s.mu.Unlock()
			return
		}
		command := job.Command
		name := job.Name
		delivery := job.Delivery
		deliver := s.deliver
		s.mu.Unlock()

		out, err := exec.Command("sh", "-c", command).CombinedOutput()
		output := strings.TrimSpace(string(out))

		status := StatusDone
		if err != nil {
			status = StatusError
			s.logger.Warn("job command failed", "job_id", id, "error", err)
		}

		if deliver != nil && delivery != nil {
			if derr := deliver(delivery, name, output); derr != nil {
				s.logger.Warn("job delivery failed", "job_id", id, "error", derr)
				if !delivery.BestEffort {
					status = StatusError
				}
			}
		}

		s.mu.Lock()
		defer s.mu.Unlock()
		if job, ok := s.jobs[id]; ok {
			job.Status = status
			delete(s.entries, id)
			if err := s.store.save(s.jobs); err != nil {
				s.logger.Warn("job store save failed", "job_id", id, "error", err)
			}
		}
	}
}

// onceAt fires exactly once. After the run time has passed, Next returns the
// zero time, which tells the runner to drop the entry.
type onceAt struct {
	at time.Time
}

func (o onceAt) Next(t time.Time) time.Time {
	if t.Before(o.at) {
		return o.at
	}
	return time.Time{}
}
