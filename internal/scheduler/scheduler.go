// Package scheduler triggers repeated sync runs on a cron schedule or when a
// watched file changes.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/robfig/cron/v3"

	"schoolsync/internal/logger"
)

// DefaultDebounce collapses bursts of file events into one run.
const DefaultDebounce = 500 * time.Millisecond

// ErrEmptySchedule is returned when no cron expression is given.
var ErrEmptySchedule = errors.New("cron expression is required")

// RunFunc performs one sync run.
type RunFunc func(ctx context.Context) error

// cronLogger adapts Logger to cron.Logger.
type cronLogger struct {
	log *logger.Logger
}

func (l cronLogger) Info(msg string, keysAndValues ...any) {
	l.log.Debug("cron: "+msg, keysAndValues...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...any) {
	l.log.Error("cron: "+msg, append(keysAndValues, "error", err)...)
}

// RunCron runs fn on every tick of expr until ctx is cancelled. A tick that
// fires while the previous run is still going is skipped. When runNow is set
// fn also runs once immediately. RunCron returns after in-flight runs finish.
func RunCron(ctx context.Context, expr string, runNow bool, fn RunFunc, log *logger.Logger) error {
	if expr == "" {
		return ErrEmptySchedule
	}

	if log == nil {
		log = logger.Discard()
	}

	cl := cronLogger{log: log}
	c := cron.New(cron.WithChain(cron.Recover(cl), cron.SkipIfStillRunning(cl)))

	job := cron.FuncJob(func() {
		if ctx.Err() != nil {
			return
		}

		if err := fn(ctx); err != nil {
			log.Error("scheduled run failed", "error", err)
		}
	})

	id, err := c.AddJob(expr, job)
	if err != nil {
		return fmt.Errorf("invalid cron expression %q: %w", expr, err)
	}

	c.Start()
	log.Info("Scheduler started", "cron", expr)

	if runNow {
		// Through the wrapped chain so it cannot overlap the first tick.
		c.Entry(id).WrappedJob.Run()
	}

	<-ctx.Done()

	<-c.Stop().Done()
	log.Info("Scheduler stopped")

	return nil
}

// Watch runs fn whenever path is written or created, debounced by debounce.
// The parent directory is watched so editors that replace the file are seen.
// Runs never overlap. Watch returns after ctx is cancelled and the last run ends.
func Watch(ctx context.Context, path string, debounce time.Duration, fn RunFunc, log *logger.Logger) error {
	if log == nil {
		log = logger.Discard()
	}

	if debounce <= 0 {
		debounce = DefaultDebounce
	}

	absPath, err := filepath.Abs(path)
	if err != nil {
		return fmt.Errorf("bad path %q: %w", path, err)
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create watcher: %w", err)
	}
	defer watcher.Close()

	if err := watcher.Add(filepath.Dir(absPath)); err != nil {
		return fmt.Errorf("watch %s: %w", filepath.Dir(absPath), err)
	}

	log.Info("Watching", "path", absPath)

	var (
		timer *time.Timer
		wg    sync.WaitGroup
		runMu sync.Mutex
	)

	schedule := func() {
		if timer != nil && timer.Stop() {
			wg.Done()
		}

		wg.Add(1)

		timer = time.AfterFunc(debounce, func() {
			defer wg.Done()

			runMu.Lock()
			defer runMu.Unlock()

			if ctx.Err() != nil {
				return
			}

			log.Info("File changed, running", "path", absPath)

			if err := fn(ctx); err != nil {
				log.Error("watch run failed", "error", err)
			}
		})
	}

	defer func() {
		if timer != nil && timer.Stop() {
			wg.Done()
		}

		wg.Wait()
	}()

	for {
		select {
		case <-ctx.Done():
			return nil
		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}

			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) {
				continue
			}

			if p, _ := filepath.Abs(event.Name); p != absPath {
				continue
			}

			schedule()
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}

			log.Warn("watcher error", "error", err)
		}
	}
}
