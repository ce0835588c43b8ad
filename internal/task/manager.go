// Package task tracks background generation runs for the HTTP layer. The
// manager holds at most one live task; starting a new run cancels the
// previous one and its event stream.
package task

import (
	"context"
	"sync"

	"github.com/google/uuid"

	"beatcut/internal/config"
	"beatcut/internal/pipeline"
)

// Status is a task's lifecycle state.
type Status string

const (
	StatusProcessing Status = "processing"
	StatusCompleted  Status = "completed"
	StatusError      Status = "error"
)

// queueSize buffers enough events that a slow SSE consumer does not stall
// the pipeline under normal runs.
const queueSize = 256

// RunFunc executes a generation run, emitting progress on events. The
// channel stays open until the function returns.
type RunFunc func(ctx context.Context, cfg *config.Config, events chan<- pipeline.Event) error

// Task is one tracked generation run. Events is closed when the run
// finishes; the closed channel is the consumer's end-of-stream signal.
type Task struct {
	ID         string
	OutputPath string
	Events     <-chan pipeline.Event

	mu      sync.Mutex
	status  Status
	message string
}

// Status returns the task's current state and, for failed tasks, the error
// message.
func (t *Task) Status() (Status, string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.status, t.message
}

func (t *Task) setStatus(s Status, msg string) {
	t.mu.Lock()
	t.status = s
	t.message = msg
	t.mu.Unlock()
}

// Manager runs generation tasks one at a time.
type Manager struct {
	run RunFunc

	mu      sync.Mutex
	current *Task
	cancel  context.CancelFunc
}

// NewManager returns a Manager that executes runs with run; a nil run uses
// the real pipeline.
func NewManager(run RunFunc) *Manager {
	if run == nil {
		run = defaultRun
	}
	return &Manager{run: run}
}

func defaultRun(ctx context.Context, cfg *config.Config, events chan<- pipeline.Event) error {
	return pipeline.New(events).Run(ctx, cfg)
}

// Start launches a new generation run and returns its task. Any previous
// run is cancelled; its consumers see the stream close.
func (m *Manager) Start(cfg *config.Config) *Task {
	events := make(chan pipeline.Event, queueSize)
	ctx, cancel := context.WithCancel(context.Background())
	t := &Task{
		ID:         uuid.NewString(),
		OutputPath: cfg.FinalOutput,
		Events:     events,
		status:     StatusProcessing,
	}

	m.mu.Lock()
	if m.cancel != nil {
		m.cancel()
	}
	m.current = t
	m.cancel = cancel
	m.mu.Unlock()

	go func() {
		defer close(events)
		defer cancel()

		err := m.run(ctx, cfg, events)
		if err != nil {
			t.setStatus(StatusError, err.Error())
			select {
			case events <- pipeline.Event{
				Kind:    pipeline.KindStageDone,
				Stage:   pipeline.StageError,
				Message: err.Error(),
			}:
			case <-ctx.Done():
			}
			return
		}
		t.setStatus(StatusCompleted, "")
		select {
		case events <- pipeline.Event{
			Kind:    pipeline.KindStageDone,
			Stage:   pipeline.StageDone,
			Message: "generation complete",
			Percent: 100,
		}:
		case <-ctx.Done():
		}
	}()
	return t
}

// Get returns the task with the given id, or nil if it is not the live one.
func (m *Manager) Get(id string) *Task {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.current != nil && m.current.ID == id {
		return m.current
	}
	return nil
}
