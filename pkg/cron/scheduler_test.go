package cron

import (
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestScheduler(t *testing.T) *Scheduler {
	t.Helper()
	s, err := NewScheduler(t.TempDir(), slog.Default())
	require.NoError(t, err)
	return s
}

func TestAddOnceAtPersistsJob(t *testing.T) {
	dir := t.TempDir()
	s, err := NewScheduler(dir, slog.Default())
	require.NoError(t, err)

	runAt := time.Now().Add(time.Hour)
	job, err := s.AddOnceAt(runAt, "echo 'hi'")
	require.NoError(t, err)
	assert.NotEmpty(t, job.ID)
	assert.Equal(t, StatusScheduled, job.Status)
	assert.WithinDuration(t, runAt, job.RunAt, time.Second)

	// A new scheduler over the same dir sees the job.
	s2, err := NewScheduler(dir, slog.Default())
	require.NoError(t, err)
	jobs := s2.Jobs()
	require.Len(t, jobs, 1)
	assert.Equal(t, job.ID, jobs[0].ID)
}

func TestAddOnceAtRejectsPastAndEmpty(t *testing.T) {
	s := newTestScheduler(t)

	_, err := s.AddOnceAt(time.Now().Add(-time.Minute), "echo hi")
	assert.Error(t, err)

	_, err = s.AddOnceAt(time.Now().Add(time.Minute), "")
	assert.Error(t, err)
}

func TestUpdatePatchesNameAndDelivery(t *testing.T) {
	s := newTestScheduler(t)
	job, err := s.AddOnceAt(time.Now().Add(time.Hour), "echo hi")
	require.NoError(t, err)

	name := "PB chat reminder: stretch"
	updated, err := s.Update(job.ID, JobPatch{
		Name: &name,
		Delivery: &DeliveryConfig{
			Mode: "announce", Channel: "pocketbase", To: "thread-1", BestEffort: true,
		},
	})
	require.NoError(t, err)
	assert.Equal(t, name, updated.Name)
	require.NotNil(t, updated.Delivery)
	assert.Equal(t, "pocketbase", updated.Delivery.Channel)
	assert.Equal(t, "thread-1", updated.Delivery.To)

	_, err = s.Update("nope", JobPatch{Name: &name})
	assert.Error(t, err)
}

func TestJobFiresAndDelivers(t *testing.T) {
	s := newTestScheduler(t)

	var mu sync.Mutex
	var gotOutput, gotTo string
	done := make(chan struct{})
	s.SetDeliveryFunc(func(d *DeliveryConfig, name, output string) error {
		mu.Lock()
		gotOutput, gotTo = output, d.To
		mu.Unlock()
		close(done)
		return nil
	})

	job, err := s.AddOnceAt(time.Now().Add(1100*time.Millisecond), "echo 'reminder text'")
	require.NoError(t, err)
	_, err = s.Update(job.ID, JobPatch{
		Delivery: &DeliveryConfig{Mode: "announce", Channel: "pocketbase", To: "t1", BestEffort: true},
	})
	require.NoError(t, err)

	s.Start()
	defer s.Stop()

	select {
	case <-done:
	case <-time.After(10 * time.Second):
		t.Fatal("job never fired")
	}

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, "reminder text", gotOutput)
	assert.Equal(t, "t1", gotTo)
}

func TestRestoredJobFires(t *testing.T) {
	dir := t.TempDir()
	s, err := NewScheduler(dir, slog.Default())
	require.NoError(t, err)
	job, err := s.AddOnceAt(time.Now().Add(1200*time.Millisecond), "echo 'restored'")
	require.NoError(t, err)
	_, err = s.Update(job.ID, JobPatch{
		Delivery: &DeliveryConfig{Mode: "announce", Channel: "pocketbase", To: "t1", BestEffort: true},
	})
	require.NoError(t, err)

	// A fresh scheduler over the same dir re-arms the pending job.
	s2, err := NewScheduler(dir, slog.Default())
	require.NoError(t, err)

	var mu sync.Mutex
	var gotOutput string
	done := make(chan struct{})
	s2.SetDeliveryFunc(func(d *DeliveryConfig, name, output string) error {
		mu.Lock()
		gotOutput = output
		mu.Unlock()
		close(done)
		return nil
	})
	s2.Start()
	defer s2.Stop()

	select {
	case <-done:
	case <-time.After(10 * time.Second):
		t.Fatal("restored job never fired")
	}
	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, "restored", gotOutput)
}

func TestOnceAtSchedule(t *testing.T) {
	at := time.Date(2026, 8, 24, 12, 0, 0, 0, time.UTC)
	sched := onceAt{at: at}

	assert.Equal(t, at, sched.Next(at.Add(-time.Minute)))
	assert.True(t, sched.Next(at).IsZero())
	assert.True(t, sched.Next(at.Add(time.Minute)).IsZero())
}
