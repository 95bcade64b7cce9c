// Package buildsession owns the per-pipeline build state machine: what is
// persisted on each transition and how the download countdown is driven.
package buildsession

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"apkdash/internal/api"
	"apkdash/internal/record"
)

// State is the controller's position in the build lifecycle. Only progress,
// result and error are ever persisted; idle is the absence of a record and
// submitting never outlives the Submit call.
type State string

const (
	StateIdle       State = "idle"
	StateSubmitting State = "submitting"
	StateProgress   State = "progress"
	StateResult     State = "result"
	StateError      State = "error"
)

// ErrBuildInFlight rejects a submission while one is already running. At
// most one build per pipeline may be in flight, so the server never sees
// duplicate jobs and no second countdown can start.
var ErrBuildInFlight = errors.New("buildsession: build already in progress")

// InterruptedMessage is shown when a restart finds a progress record: the
// build cannot be resumed because no server-side handle survives a restart.
const InterruptedMessage = "Previous build was interrupted. Please start a new build."

// View receives the UI transitions the controller decides on.
type View interface {
	ShowProgress()
	ShowResult(downloadURL string, remainingSeconds int)
	UpdateCountdown(remainingSeconds int)
	ExpireResult()
	ShowError(message string)
	Reset()
}

// Store is the subset of the record store the controller needs.
type Store interface {
	Save(record.Pipeline, *record.BuildRecord) error
	Clear(record.Pipeline) error
}

// SubmitFunc issues the pipeline's build request and blocks until the
// server answers.
type SubmitFunc func(ctx context.Context, in Input) (*api.BuildResult, error)

// Controller runs one pipeline's state machine. The two pipelines get
// independent instances, so nothing leaks between them.
type Controller struct {
	pipeline record.Pipeline
	store    Store
	submit   SubmitFunc
	view     View
	log      *slog.Logger

	now          func() time.Time
	tickInterval time.Duration

	mu              sync.Mutex
	state           State
	gen             uint64
	cancelCountdown context.CancelFunc
	countdownDone   sync.WaitGroup
}

func NewController(pipeline record.Pipeline, store Store, submit SubmitFunc, view View, log *slog.Logger) *Controller {
	return &Controller{
		pipeline:     pipeline,
		store:        store,
		submit:       submit,
		view:         view,
		log:          log.With("component", "buildsession", "pipeline", pipeline),
		now:          time.Now,
		tickInterval: time.Second,
		state:        StateIdle,
	}
}

// State returns the controller's current state.
func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Submit validates in, persists a progress record, issues the build request
// and applies the outcome. While a submission is in flight further Submit
// calls return ErrBuildInFlight and change nothing. An outcome arriving
// after the submission has been superseded (retry, new submit) is dropped.
func (c *Controller) Submit(ctx context.Context, in Input) error {
	if err := in.Validate(); err != nil {
		return err
	}

	c.mu.Lock()
	if c.state == StateSubmitting || c.state == StateProgress {
		c.mu.Unlock()
		return ErrBuildInFlight
	}
	c.stopCountdownLocked()
	c.gen++
	gen := c.gen
	c.state = StateSubmitting
	c.mu.Unlock()

	if err := c.store.Save(c.pipeline, &record.BuildRecord{Status: record.StatusProgress}); err != nil {
		c.log.Error("save progress record", "err", err)
	}
	c.view.ShowProgress()

	c.mu.Lock()
	if c.gen == gen {
		c.state = StateProgress
	}
	c.mu.Unlock()

	result, err := c.submit(ctx, in)

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.gen != gen {
		c.log.Info("dropping outcome of superseded build")
		return nil
	}

	if err != nil {
		message := userMessage(err)
		c.state = StateError
		if saveErr := c.store.Save(c.pipeline, &record.BuildRecord{Status: record.StatusError, Message: message}); saveErr != nil {
			c.log.Error("save error record", "err", saveErr)
		}
		c.view.ShowError(message)
		return err
	}

	expiresIn := result.ExpiresIn
	if expiresIn <= 0 {
		expiresIn = record.DefaultExpiresIn
	}
	c.state = StateResult
	if saveErr := c.store.Save(c.pipeline, &record.BuildRecord{
		Status:      record.StatusResult,
		DownloadURL: result.DownloadURL,
		ExpiresIn:   expiresIn,
	}); saveErr != nil {
		c.log.Error("save result record", "err", saveErr)
	}
	c.view.ShowResult(result.DownloadURL, expiresIn)
	c.startCountdownLocked(expiresIn, gen)
	return nil
}

// Retry clears the persisted record and returns the form to idle. It also
// supersedes any in-flight build of this pipeline.
func (c *Controller) Retry() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.stopCountdownLocked()
	c.gen++
	if err := c.store.Clear(c.pipeline); err != nil {
		c.log.Error("clear record", "err", err)
	}
	c.state = StateIdle
	c.view.Reset()
}

// RestoreResult re-renders a recovered result with the window that is still
// left and continues (not restarts) its countdown. The persisted record is
// kept; it is cleared when the countdown reaches zero.
func (c *Controller) RestoreResult(downloadURL string, remainingSeconds int) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.stopCountdownLocked()
	c.gen++
	c.state = StateResult
	c.view.ShowResult(downloadURL, remainingSeconds)
	c.startCountdownLocked(remainingSeconds, c.gen)
}

// RestoreError re-renders a recovered error record and clears it.
func (c *Controller) RestoreError(message string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.gen++
	c.state = StateError
	c.view.ShowError(message)
	if err := c.store.Clear(c.pipeline); err != nil {
		c.log.Error("clear record", "err", err)
	}
}

// RestoreInterrupted reports a build that was in progress when the previous
// process ended and clears its record.
func (c *Controller) RestoreInterrupted() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.gen++
	c.state = StateError
	c.view.ShowError(InterruptedMessage)
	if err := c.store.Clear(c.pipeline); err != nil {
		c.log.Error("clear record", "err", err)
	}
}

// Wait blocks until any running countdown goroutine has exited. Tests and
// shutdown use it.
func (c *Controller) Wait() {
	c.countdownDone.Wait()
}

func (c *Controller) startCountdownLocked(seconds int, gen uint64) {
	cd := NewCountdown(c.now(), seconds)
	ctx, cancel := context.WithCancel(context.Background())
	c.cancelCountdown = cancel

	c.countdownDone.Add(1)
	go func() {
		defer c.countdownDone.Done()
		c.runCountdown(ctx, cd, gen)
	}()
}

func (c *Controller) stopCountdownLocked() {
	if c.cancelCountdown != nil {
		c.cancelCountdown()
		c.cancelCountdown = nil
	}
}

func (c *Controller) runCountdown(ctx context.Context, cd *Countdown, gen uint64) {
	ticker := time.NewTicker(c.tickInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if done := c.applyTick(cd, gen); done {
				return
			}
		}
	}
}

// applyTick advances the displayed countdown by one tick. A tick from a
// superseded build is dropped: it reports done so the stale goroutine
// stops.
func (c *Controller) applyTick(cd *Countdown, gen uint64) (done bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if gen != c.gen || c.state != StateResult {
		return true
	}

	remaining := cd.Remaining(c.now())
	if remaining <= 0 {
		// The window lapsed. Not an error: invalidate the link, drop the
		// record, reopen the form.
		c.view.ExpireResult()
		if err := c.store.Clear(c.pipeline); err != nil {
			c.log.Error("clear record", "err", err)
		}
		c.state = StateIdle
		return true
	}

	c.view.UpdateCountdown(remaining)
	return false
}

func userMessage(err error) string {
	var apiErr *api.Error
	if errors.As(err, &apiErr) {
		return apiErr.Message
	}
	return "Could not reach the build server. Please try again."
}
