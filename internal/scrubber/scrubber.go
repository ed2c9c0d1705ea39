// Package scrubber drives the correction pipeline: a run loop that
// periodically pulls fresh play history, asks the suggestion providers
// for corrections, and resolves them into applied edits or pending
// queue entries. One cycle is in flight at a time.
package scrubber

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/charmbracelet/log"

	"github.com/llehouerou/scrubber/internal/events"
	"github.com/llehouerou/scrubber/internal/provider"
	"github.com/llehouerou/scrubber/internal/scrobble"
	"github.com/llehouerou/scrubber/internal/source"
	"github.com/llehouerou/scrubber/internal/state"
	"github.com/llehouerou/scrubber/internal/storage"
)

// Status is the run loop's externally visible state.
type Status string

const (
	StatusStopped  Status = "stopped"
	StatusStarting Status = "starting"
	StatusRunning  Status = "running"
	StatusSleeping Status = "sleeping"
	StatusStopping Status = "stopping"
	// StatusError is terminal: the loop halted on an unrecoverable
	// failure and needs a fresh Start.
	StatusError Status = "error"
)

// ErrAlreadyRunning is returned by Start when the loop is active.
var ErrAlreadyRunning = errors.New("scrubber already running")

// EditSubmitter submits one scrobble edit to the service.
type EditSubmitter interface {
	SubmitEdit(ctx context.Context, edit scrobble.Edit) error
}

// RetryQueue holds edits whose submission failed, for retry on later
// cycles. state.Manager satisfies it.
type RetryQueue interface {
	AddFailedEdit(edit scrobble.Edit, errMsg string) error
	GetFailedEdits() ([]state.FailedEdit, error)
	DeleteFailedEdit(id int64) error
	UpdateFailedEditAttempt(id int64, errMsg string) error
}

// Config holds run loop settings.
type Config struct {
	// Interval between cycles. Default 5 minutes.
	Interval time.Duration
	// BatchSize bounds how many tracks one batch processes. The anchor
	// is persisted after each completed batch. Default 50.
	BatchSize int
	// EditTimeout bounds a single edit submission. Default 30 seconds.
	EditTimeout time.Duration
	// DryRun reports what would change without submitting edits.
	DryRun bool
}

func (c Config) withDefaults() Config {
	if c.Interval <= 0 {
		c.Interval = 5 * time.Minute
	}
	if c.BatchSize <= 0 {
		c.BatchSize = 50
	}
	if c.EditTimeout <= 0 {
		c.EditTimeout = 30 * time.Second
	}
	return c
}

// Deps are the orchestrator's collaborators.
type Deps struct {
	Store     storage.Store
	Source    source.Source
	Provider  provider.Provider
	Submitter EditSubmitter
	// Retries is optional; without it failed edits are only reported.
	Retries RetryQueue
	// Hub is optional; without it events are dropped.
	Hub    *events.Hub
	Logger *log.Logger
}

// Scrubber owns the run loop.
type Scrubber struct {
	cfg       Config
	store     storage.Store
	src       source.Source
	provider  provider.Provider
	submitter EditSubmitter
	retries   RetryQueue
	hub       *events.Hub
	logger    *log.Logger

	mu     sync.Mutex
	status Status
	cancel context.CancelFunc
	done   chan struct{}
	wake   chan struct{}
}

// New creates a stopped scrubber.
func New(cfg Config, deps Deps) *Scrubber {
	logger := deps.Logger
	if logger == nil {
		logger = log.Default()
	}
	return &Scrubber{
		cfg:       cfg.withDefaults(),
		store:     deps.Store,
		src:       deps.Source,
		provider:  deps.Provider,
		submitter: deps.Submitter,
		retries:   deps.Retries,
		hub:       deps.Hub,
		logger:    logger,
		status:    StatusStopped,
		wake:      make(chan struct{}, 1),
	}
}

// Status returns the loop's current state.
func (s *Scrubber) Status() Status {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.status
}

func (s *Scrubber) setStatus(st Status) {
	s.mu.Lock()
	s.status = st
	s.mu.Unlock()
}

// Start launches the run loop. It returns once the loop is accepted;
// processing happens in the background.
func (s *Scrubber) Start() error {
	s.mu.Lock()
	if s.status != StatusStopped && s.status != StatusError {
		s.mu.Unlock()
		return ErrAlreadyRunning
	}
	ctx, cancel := context.WithCancel(context.Background())
	s.cancel = cancel
	s.done = make(chan struct{})
	s.status = StatusStarting
	s.mu.Unlock()

	go s.run(ctx)
	return nil
}

// Stop cancels the run loop and waits for it to finish the current
// cycle.
func (s *Scrubber) Stop() {
	s.mu.Lock()
	if s.cancel == nil || s.status == StatusStopped || s.status == StatusError {
		s.mu.Unlock()
		return
	}
	s.status = StatusStopping
	cancel, done := s.cancel, s.done
	s.mu.Unlock()

	cancel()
	<-done
}

// ProcessNow wakes a sleeping loop for an immediate cycle. The signal
// is buffered: sent while a cycle runs, the next cycle starts without
// sleeping.
func (s *Scrubber) ProcessNow() {
	select {
	case s.wake <- struct{}{}:
	default:
	}
}

// SetAnchor moves the processing anchor, forward or backward. Moving
// it backward deliberately reprocesses history.
func (s *Scrubber) SetAnchor(anchor int64) error {
	if err := s.saveAnchor(anchor); err != nil {
		return err
	}
	s.publish(events.New(events.KindAnchorUpdated, "anchor set").WithAnchor(anchor))
	return nil
}

func (s *Scrubber) run(ctx context.Context) {
	defer close(s.done)

	s.publish(events.New(events.KindStarted, "scrubber started"))

	for {
		s.setStatus(StatusRunning)
		err := s.cycle(ctx)
		switch {
		case err == nil:
		case errors.Is(err, context.Canceled):
			s.finish()
			return
		case isFatal(err):
			s.publish(events.New(events.KindError, "scrubber halted").WithError(err))
			s.logger.Error("scrubber halted", "err", err)
			s.setStatus(StatusError)
			return
		default:
			s.publish(events.New(events.KindError, "cycle failed").WithError(err))
			s.logger.Warn("cycle failed", "err", err)
		}

		s.setStatus(StatusSleeping)
		s.publish(events.New(events.KindSleeping, "sleeping until next cycle"))

		select {
		case <-ctx.Done():
			s.finish()
			return
		case <-time.After(s.cfg.Interval):
		case <-s.wake:
		}
	}
}

func (s *Scrubber) finish() {
	s.publish(events.New(events.KindStopped, "scrubber stopped"))
	s.setStatus(StatusStopped)
}

func (s *Scrubber) publish(e events.Event) {
	if s.hub != nil {
		s.hub.Publish(e)
	}
}

// fatalError marks an error the run loop cannot recover from.
type fatalError struct {
	err error
}

func (e *fatalError) Error() string { return e.err.Error() }
func (e *fatalError) Unwrap() error { return e.err }

func isFatal(err error) bool {
	var fe *fatalError
	return errors.As(err, &fe)
}
