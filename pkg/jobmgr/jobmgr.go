// Package jobmgr runs named background jobs with cancellation, lifecycle
// callbacks and in-memory tracking of what is running.
//
// Typical usage:
//
//	jm := jobmgr.NewManager(ctx, func(ev jobmgr.Event) {
//	    logger.Debug("job", zap.Stringer("event", ev))
//	})
//
//	err := jm.StartAsync("interaction:123", func(ctx context.Context) error {
//	    // do work until ctx is cancelled
//	    return nil
//	})
//
//	// on shutdown
//	jm.StopAll()
//	jm.Wait()
//
// Jobs run in their own goroutines and are removed when they return.
package jobmgr

import (
	"context"
	"fmt"
	"slices"
	"strings"
	"sync"
)

// EventKind is a job lifecycle stage.
type EventKind string

const (
	EventRunning EventKind = "running"
	EventDone    EventKind = "done"
	EventError   EventKind = "error"
)

// Event is delivered to the Reporter. Err is set for EventError.
type Event struct {
	Kind EventKind
	Name string
	Err  error
}

// String renders the event as "running:get", "done:get" or
// "error:get:failed to connect".
func (e Event) String() string {
	if e.Err != nil {
		return string(e.Kind) + ":" + e.Name + ":" + e.Err.Error()
	}
	return string(e.Kind) + ":" + e.Name
}

// Reporter receives lifecycle events. It is called from job goroutines.
type Reporter func(Event)

type job struct {
	name   string
	cancel context.CancelFunc
}

// Manager starts, stops and tracks jobs. It is safe for concurrent use.
type Manager struct {
	base     context.Context
	reporter Reporter

	mu   sync.Mutex
	jobs map[string]*job
	wg   sync.WaitGroup
}

// NewManager creates a Manager whose jobs derive their context from base.
// reporter may be nil.
func NewManager(base context.Context, reporter Reporter) *Manager {
	if base == nil {
		base = context.Background()
	}
	return &Manager{
		base:     base,
		reporter: reporter,
		jobs:     make(map[string]*job),
	}
}

// StartSync runs a job in the calling goroutine and blocks until it returns.
// The job is listed while it runs.
func (m *Manager) StartSync(name string, runner func(ctx context.Context) error) error {
	j, ctx, err := m.register(name)
	if err != nil {
		return err
	}
	return m.run(j, ctx, runner)
}

// StartAsync runs a job in a new goroutine and returns immediately. It fails
// if a job with the same name is running.
func (m *Manager) StartAsync(name string, runner func(ctx context.Context) error) error {
	j, ctx, err := m.register(name)
	if err != nil {
		return err
	}
	m.wg.Add(1)
	go func() {
		defer m.wg.Done()
		_ = m.run(j, ctx, runner)
	}()
	return nil
}

func (m *Manager) register(name string) (*job, context.Context, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, exists := m.jobs[name]; exists {
		return nil, nil, fmt.Errorf("job '%s' is already running", name)
	}
	ctx, cancel := context.WithCancel(m.base)
	j := &job{name: name, cancel: cancel}
	m.jobs[name] = j
	return j, ctx, nil
}

func (m *Manager) run(j *job, ctx context.Context, runner func(context.Context) error) error {
	defer m.remove(j)
	m.report(Event{Kind: EventRunning, Name: j.name})
	err := runner(ctx)
	if err != nil {
		m.report(Event{Kind: EventError, Name: j.name, Err: err})
	} else {
		m.report(Event{Kind: EventDone, Name: j.name})
	}
	return err
}

// remove drops j unless a newer job has taken its name.
func (m *Manager) remove(j *job) {
	j.cancel()
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.jobs[j.name] == j {
		delete(m.jobs, j.name)
	}
}

// Stop cancels a running job by name.
func (m *Manager) Stop(name string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	j, ok := m.jobs[name]
	if !ok {
		return fmt.Errorf("job '%s' not running", name)
	}
	j.cancel()
	delete(m.jobs, name)
	return nil
}

// StopAll cancels every running job.
func (m *Manager) StopAll() {
	m.mu.Lock()
	defer m.mu.Unlock()
	for name, j := range m.jobs {
		j.cancel()
		delete(m.jobs, name)
	}
}

// Wait blocks until every job started with StartAsync has returned.
func (m *Manager) Wait() { m.wg.Wait() }

// List returns the names of running jobs, sorted.
func (m *Manager) List() []string {
	m.mu.Lock()
	out := make([]string, 0, len(m.jobs))
	for name := range m.jobs {
		out = append(out, name)
	}
	m.mu.Unlock()
	slices.Sort(out)
	return out
}

// Status returns a human-readable summary, e.g. "Running jobs: a, b".
func (m *Manager) Status() string {
	active := m.List()
	if len(active) == 0 {
		return "No jobs are running."
	}
	return fmt.Sprintf("Running jobs: %s", strings.Join(active, ", "))
}

func (m *Manager) report(ev Event) {
	if m.reporter != nil {
		m.reporter(ev)
	}
}
