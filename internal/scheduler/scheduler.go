// Package scheduler drives the commit pipeline unattended: a background
// timer diffs a watched folder against the last uploaded state and publishes
// the delta as one commit per tick.
package scheduler

import (
	"context"
	"fmt"
	"path"
	"path/filepath"
	"sync"
	"time"

	"hubsync/internal/fs"
	"hubsync/internal/hub"
)

// Pusher publishes one commit. Satisfied by *hub.CommitService.
type Pusher interface {
	CommitFiles(ctx context.Context, req *hub.CommitRequest) (*hub.CommitResult, error)
}

// Config describes what to watch and how often to push.
type Config struct {
	// Folder is the local directory to watch.
	Folder string
	// PathInRepo is the destination sub-path additions are published under.
	PathInRepo string
	// Every is the tick interval.
	Every time.Duration
	// AllowPatterns/IgnorePatterns are glob filters applied to relative
	// paths. VCS metadata is always excluded.
	AllowPatterns  []string
	IgnorePatterns []string
	// NumThreads bounds upload concurrency per commit. Zero means the
	// pipeline default.
	NumThreads int
}

// Result is the outcome of the most recent push attempt. A failing push does
// not stop the timer; its error surfaces here.
type Result struct {
	StartedAt  time.Time
	FinishedAt time.Time
	Uploaded   int
	Commit     *hub.CommitResult
	Err        error
}

// Scheduler owns one watch loop. Lifecycle is explicit: Start launches the
// timer goroutine, Stop halts it and performs one best-effort final push,
// Join waits for the loop to exit.
type Scheduler struct {
	pusher  Pusher
	fsmgr   hub.FilesystemManager
	filter  *fs.PathFilter
	history hub.History // may be nil
	logger  hub.Logger
	clock   hub.Clock
	cfg     Config

	// mu guards lastSeen and the whole list+filter+diff phase, so a manual
	// trigger cannot race a timer tick while the delta is built, and all
	// state reads and writes are serialized.
	mu       sync.Mutex
	lastSeen map[string]time.Time

	// pushMu serializes pushes end to end. A tick that fires while a push
	// is still uploading is skipped rather than overlapped.
	pushMu sync.Mutex

	resultMu sync.Mutex
	last     *Result

	// lifeMu guards started/stopped so Stop and Join return promptly on a
	// scheduler that was never started.
	lifeMu  sync.Mutex
	started bool
	stopped bool

	startOnce sync.Once
	stopOnce  sync.Once
	stopCh    chan struct{}
	doneCh    chan struct{}
}

// defaultEvery is the tick interval used when the config leaves Every unset.
const defaultEvery = 5 * time.Minute

// New creates a Scheduler. history may be nil to disable push logging.
func New(pusher Pusher, fsmgr hub.FilesystemManager, history hub.History, logger hub.Logger, clock hub.Clock, cfg Config) *Scheduler {
	if cfg.Every <= 0 {
		cfg.Every = defaultEvery
	}
	return &Scheduler{
		pusher:   pusher,
		fsmgr:    fsmgr,
		filter:   fs.NewPathFilter(cfg.AllowPatterns, cfg.IgnorePatterns),
		history:  history,
		logger:   logger,
		clock:    clock,
		cfg:      cfg,
		lastSeen: make(map[string]time.Time),
		stopCh:   make(chan struct{}),
		doneCh:   make(chan struct{}),
	}
}

// Start launches the timer loop. Calling Start more than once, or after
// Stop, is a no-op.
func (s *Scheduler) Start() {
	s.startOnce.Do(func() {
		s.lifeMu.Lock()
		if s.stopped {
			s.lifeMu.Unlock()
			return
		}
		s.started = true
		s.lifeMu.Unlock()

		go s.loop()
		s.logger.Info("scheduler started",
			"folder", s.cfg.Folder, "every", s.cfg.Every.String())
	})
}

// loop is the dedicated timer goroutine. It never performs network I/O
// itself: each tick delegates the push to a separate goroutine so the timer
// keeps firing on schedule even while an upload is in flight.
func (s *Scheduler) loop() {
	defer close(s.doneCh)
	ticker := time.NewTicker(s.cfg.Every)
	defer ticker.Stop()

	for {
		select {
		case <-s.stopCh:
			return
		case <-ticker.C:
			go func() {
				if err := s.push(context.Background(), "ScheduledPush", false); err != nil {
					s.logger.Error("scheduled push failed", "error", err)
				}
			}()
		}
	}
}

// Stop halts the timer, waits for the loop to exit, and performs one
// best-effort final push. Safe to call multiple times, and returns
// immediately on a scheduler that was never started.
func (s *Scheduler) Stop() {
	s.stopOnce.Do(func() {
		s.lifeMu.Lock()
		s.stopped = true
		started := s.started
		s.lifeMu.Unlock()

		close(s.stopCh)
		if !started {
			// No loop ever ran: nothing to wait for, nothing to flush.
			close(s.doneCh)
			return
		}
		<-s.doneCh
		if err := s.push(context.Background(), "FinalPush", true); err != nil {
			s.logger.Error("final push failed", "error", err)
		}
		s.logger.Info("scheduler stopped")
	})
}

// Join blocks until the timer loop has exited. On a scheduler that was never
// started it returns immediately.
func (s *Scheduler) Join() {
	s.lifeMu.Lock()
	started, stopped := s.started, s.stopped
	s.lifeMu.Unlock()
	if !started && !stopped {
		return
	}
	<-s.doneCh
}

// TriggerPush runs one push immediately, waiting for any in-flight push to
// finish first.
func (s *Scheduler) TriggerPush(ctx context.Context) error {
	return s.push(ctx, "Push", true)
}

// LastResult returns the outcome of the most recent completed push attempt,
// or nil if none has run.
func (s *Scheduler) LastResult() *Result {
	s.resultMu.Lock()
	defer s.resultMu.Unlock()
	return s.last
}

// push builds the delta and publishes it. When wait is false (timer ticks)
// and another push is still running, the tick is skipped.
func (s *Scheduler) push(ctx context.Context, operation string, wait bool) error {
	if wait {
		s.pushMu.Lock()
	} else if !s.pushMu.TryLock() {
		s.logger.Debug("push already in flight, skipping tick")
		return nil
	}
	defer s.pushMu.Unlock()

	delta, err := s.buildDelta()
	if err != nil {
		return s.record(operation, s.clock.Now(), 0, err)
	}
	if len(delta) == 0 {
		// Nothing changed: the tick is a no-op, no network calls.
		s.logger.Debug("no changes detected")
		return nil
	}

	startedAt := s.clock.Now()
	var historyID int64
	if s.history != nil {
		id, err := s.history.Begin(operation, startedAt)
		if err != nil {
			return fmt.Errorf("recording push start: %w", err)
		}
		historyID = id
	}

	req := &hub.CommitRequest{
		Summary:    fmt.Sprintf("Scheduled commit (%d file(s))", len(delta)),
		NumThreads: s.cfg.NumThreads,
	}
	for _, f := range delta {
		req.Operations = append(req.Operations, hub.AddOperation(
			filepath.Join(s.cfg.Folder, filepath.FromSlash(f.RelPath)),
			path.Join(s.cfg.PathInRepo, f.RelPath),
		))
	}

	commit, pushErr := s.pusher.CommitFiles(ctx, req)
	finishedAt := s.clock.Now()

	if pushErr == nil {
		s.markUploaded(delta)
		s.logger.Info("push complete", "operation", operation, "files", len(delta))
	}

	if s.history != nil {
		status, errMsg := "success", ""
		uploaded := int64(len(delta))
		if pushErr != nil {
			status, errMsg, uploaded = "error", pushErr.Error(), 0
		}
		if err := s.history.Finish(historyID, finishedAt, status, uploaded, errMsg); err != nil {
			s.logger.Warn("recording push finish failed", "error", err)
		}
	}

	s.resultMu.Lock()
	s.last = &Result{
		StartedAt:  startedAt,
		FinishedAt: finishedAt,
		Uploaded:   len(delta),
		Commit:     commit,
		Err:        pushErr,
	}
	s.resultMu.Unlock()

	return pushErr
}

// buildDelta lists the watched folder in deterministic order, applies the
// filters, and keeps files whose mtime is new or changed since the last
// successful push. The mtimes returned are the ones observed at listing
// time.
func (s *Scheduler) buildDelta() ([]hub.FileInfo, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	files, err := s.fsmgr.ListFiles(s.cfg.Folder)
	if err != nil {
		return nil, fmt.Errorf("listing watched folder: %w", err)
	}

	var delta []hub.FileInfo
	for _, f := range files {
		if !s.filter.Match(f.RelPath) {
			continue
		}
		last, seen := s.lastSeen[f.RelPath]
		if !seen || f.ModTime.After(last) {
			delta = append(delta, f)
		}
	}
	return delta, nil
}

// markUploaded records the listing-time mtime of every pushed file. A file
// modified again while mid-upload is marked with the listing-time mtime even
// though its latest content was not the content sent; the next tick picks
// the newer write up.
func (s *Scheduler) markUploaded(delta []hub.FileInfo) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, f := range delta {
		s.lastSeen[f.RelPath] = f.ModTime
	}
}

// record stores a failed attempt that never reached the pipeline.
func (s *Scheduler) record(operation string, at time.Time, uploaded int, err error) error {
	s.resultMu.Lock()
	s.last = &Result{StartedAt: at, FinishedAt: at, Uploaded: uploaded, Err: err}
	s.resultMu.Unlock()
	if err != nil {
		s.logger.Error("push failed", "operation", operation, "error", err)
	}
	return err
}
