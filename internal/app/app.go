// Package app is the application layer between the CLI and the commit
// pipeline: it wires all dependencies from config and exposes the high-level
// operations the commands need.
package app

import (
	"context"
	"fmt"
	"os"
	"path"
	"path/filepath"
	"time"

	"hubsync/internal/api"
	"hubsync/internal/auth"
	"hubsync/internal/config"
	"hubsync/internal/fs"
	"hubsync/internal/history"
	"hubsync/internal/hub"
	"hubsync/internal/scheduler"
)

// App owns a fully wired pipeline. The caller must call Close when done.
type App struct {
	cfg     *config.Config
	fsmgr   hub.FilesystemManager
	service *hub.CommitService
	history hub.History
	logger  hub.Logger
	clock   hub.Clock
	logFile *os.File
}

// NewApp creates a fully wired App from the given config.
func NewApp(cfg *config.Config) (*App, error) {
	if cfg.Endpoint == "" {
		return nil, fmt.Errorf("no endpoint configured")
	}
	if cfg.RepoID == "" {
		return nil, fmt.Errorf("no repository configured")
	}

	logger, logFile, err := newLogger(cfg.LogDir)
	if err != nil {
		return nil, fmt.Errorf("creating logger: %w", err)
	}

	token, err := auth.ResolveToken(cfg.TokenPath)
	if err != nil {
		logFile.Close()
		return nil, fmt.Errorf("resolving token: %w", err)
	}

	hist, err := history.NewHistoryFromConfig(cfg.History)
	if err != nil {
		logFile.Close()
		return nil, fmt.Errorf("creating history: %w", err)
	}

	client := api.New(api.Config{
		Endpoint: cfg.Endpoint,
		RepoID:   cfg.RepoID,
		RepoType: cfg.RepoType,
		Revision: cfg.Revision,
		Token:    token,
		Logger:   logger,
	})

	fsmgr := fs.NewOSFilesystemManager()
	service := hub.NewCommitService(client, fsmgr, logger)

	return &App{
		cfg:     cfg,
		fsmgr:   fsmgr,
		service: service,
		history: hist,
		logger:  logger,
		clock:   hub.RealClock{},
		logFile: logFile,
	}, nil
}

// Push publishes one commit built from the given local path (file or
// directory) and the requested deletions, recording the attempt in history.
// Returns the commit result and the number of files added.
func (a *App) Push(ctx context.Context, localPath, destPath, summary, parentCommit string, deletions []string, createPR bool) (*hub.CommitResult, int, error) {
	req := &hub.CommitRequest{
		Summary:      summary,
		CreatePR:     createPR,
		ParentCommit: parentCommit,
		NumThreads:   a.cfg.NumThreads,
	}

	added := 0
	if localPath != "" {
		abs, err := filepath.Abs(localPath)
		if err != nil {
			return nil, 0, fmt.Errorf("resolving path: %w", err)
		}
		info, err := os.Stat(abs)
		if err != nil {
			return nil, 0, fmt.Errorf("stat path: %w", err)
		}

		if info.IsDir() {
			filter := fs.NewPathFilter(a.cfg.Watch.Allow, a.cfg.Watch.Ignore)
			files, err := a.fsmgr.ListFiles(abs)
			if err != nil {
				return nil, 0, fmt.Errorf("listing folder: %w", err)
			}
			for _, f := range files {
				if !filter.Match(f.RelPath) {
					continue
				}
				req.Operations = append(req.Operations, hub.AddOperation(
					filepath.Join(abs, filepath.FromSlash(f.RelPath)),
					path.Join(destPath, f.RelPath),
				))
				added++
			}
		} else {
			req.Operations = append(req.Operations, hub.AddOperation(
				abs, path.Join(destPath, filepath.Base(abs))))
			added++
		}
	}
	for _, del := range deletions {
		req.Operations = append(req.Operations, hub.DeleteOperation(del))
	}

	startedAt := a.clock.Now()
	id, err := a.history.Begin("Push", startedAt)
	if err != nil {
		return nil, 0, fmt.Errorf("recording push start: %w", err)
	}

	result, pushErr := a.service.CommitFiles(ctx, req)

	status, errMsg, uploaded := "success", "", int64(added)
	if pushErr != nil {
		status, errMsg, uploaded = "error", pushErr.Error(), 0
	}
	if err := a.history.Finish(id, a.clock.Now(), status, uploaded, errMsg); err != nil {
		a.logger.Warn("recording push finish failed", "error", err)
	}

	if pushErr != nil {
		return nil, 0, pushErr
	}
	return result, added, nil
}

// NewScheduler builds a CommitScheduler from the watch section of the
// config.
func (a *App) NewScheduler() (*scheduler.Scheduler, error) {
	if a.cfg.Watch.Folder == "" {
		return nil, fmt.Errorf("no watch folder configured")
	}
	if a.cfg.Watch.EveryMinutes <= 0 {
		return nil, fmt.Errorf("watch interval must be positive")
	}

	return scheduler.New(a.service, a.fsmgr, a.history, a.logger, a.clock, scheduler.Config{
		Folder:         a.cfg.Watch.Folder,
		PathInRepo:     a.cfg.Watch.PathInRepo,
		Every:          time.Duration(a.cfg.Watch.EveryMinutes * float64(time.Minute)),
		AllowPatterns:  a.cfg.Watch.Allow,
		IgnorePatterns: a.cfg.Watch.Ignore,
		NumThreads:     a.cfg.NumThreads,
	}), nil
}

// History returns the most recent push records.
func (a *App) History(limit int) ([]hub.PushRecord, error) {
	return a.history.List(limit)
}

// Close releases all resources.
func (a *App) Close() error {
	var firstErr error
	if err := a.history.Close(); err != nil {
		firstErr = fmt.Errorf("closing history: %w", err)
	}
	if a.logFile != nil {
		a.logFile.Close()
	}
	return firstErr
}
