// Package cron schedules one-shot jobs created from chat reminders. Jobs are
// persisted as JSON under <workspace>/cron so a restart can report what was
// scheduled, and executed by a robfig/cron runner with a single-fire schedule.
package cron

import "time"

// Job statuses.
const (
	StatusScheduled = "scheduled"
	StatusDone      = "done"
	StatusError     = "error"
)

// DeliveryConfig tells the runner where to announce a job's output.
type DeliveryConfig struct {
	Mode       string `json:"mode"`
	Channel    string `json:"channel"`
	To         string `json:"to"`
	BestEffort bool   `json:"bestEffort"`
}

// Job is one scheduled unit of work.
type Job struct {
	ID        string          `json:"id"`
	Name      string          `json:"name"`
	RunAt     time.Time       `json:"runAt"`
	Command   string          `json:"command"`
	Delivery  *DeliveryConfig `json:"delivery,omitempty"`
	Status    string          `json:"status"`
	CreatedAt time.Time       `json:"createdAt"`
}

// JobPatch is a partial update applied through Update. Nil fields are left
// unchanged.
type JobPatch struct {
	Name     *string
	Delivery *DeliveryConfig
}
