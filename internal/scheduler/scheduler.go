// Package scheduler runs the periodic reconciliation pass that advances all
// users' progress against wall-clock time: expiring stale windows, sending
// due tasks and emitting the one-time end-of-program prompt.
package scheduler

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/robfig/cron/v3"

	"github.com/ldi/marathon/internal/db"
	"github.com/ldi/marathon/internal/engine"
	"github.com/ldi/marathon/internal/transport"
	"github.com/ldi/marathon/pkg/models"
)

const (
	// DefaultTickInterval matches the original deployment: seconds-scale
	// polling against minute-precision deadlines.
	DefaultTickInterval = 5 * time.Second
	// lockLease bounds how long a crashed instance can starve the others.
	lockLease = time.Minute
)

type Scheduler struct {
	store    *db.DB
	notifier transport.Notifier
	log      *slog.Logger
	clock    engine.Clock
	interval time.Duration

	// instanceID identifies this process in the cross-instance lease.
	instanceID string

	// tickMu serializes overlapping tick invocations within the process:
	// a slow tick still running when the next interval fires makes the new
	// invocation a no-op.
	tickMu sync.Mutex

	cron *cron.Cron
}

type Options struct {
	Interval time.Duration
	Clock    engine.Clock
	Logger   *slog.Logger
}

func New(store *db.DB, notifier transport.Notifier, opts Options) *Scheduler {
	if opts.Interval <= 0 {
		opts.Interval = DefaultTickInterval
	}
	if opts.Clock == nil {
		opts.Clock = time.Now
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	return &Scheduler{
		store:      store,
		notifier:   notifier,
		log:        opts.Logger,
		clock:      opts.Clock,
		interval:   opts.Interval,
		instanceID: uuid.NewString(),
	}
}

// Start schedules the periodic tick and fires one eagerly to catch up after
// downtime.
func (s *Scheduler) Start(ctx context.Context) error {
	s.cron = cron.New()
	_, err := s.cron.AddFunc("@every "+s.interval.String(), func() {
		if err := s.Tick(ctx); err != nil {
			s.log.Error("tick failed", "error", err)
		}
	})
	if err != nil {
		return err
	}
	s.cron.Start()

	go func() {
		if err := s.Tick(ctx); err != nil {
			s.log.Error("startup tick failed", "error", err)
		}
	}()
	return nil
}

// Stop halts the periodic trigger; a tick already running completes.
func (s *Scheduler) Stop() {
	if s.cron != nil {
		<-s.cron.Stop().Done()
	}
}

func (s *Scheduler) now() time.Time {
	return s.clock().UTC().Truncate(time.Second)
}

// Tick executes one reconciliation pass. At most one tick runs at a time
// across the whole deployment: a local mutex serializes in-process overlap
// and a store-level lease excludes other instances. Per-user failures are
// logged and never abort the remaining users; state is persisted after each
// per-user step so a crashed tick resumes exactly where state says, even
// from another process.
func (s *Scheduler) Tick(ctx context.Context) error {
	if !s.tickMu.TryLock() {
		return nil
	}
	defer s.tickMu.Unlock()

	now := s.now()

	got, err := s.store.TryAcquireTickLock(ctx, s.instanceID, now, lockLease)
	if err != nil {
		return err
	}
	if !got {
		return nil
	}
	defer func() {
		if err := s.store.ReleaseTickLock(ctx, s.instanceID); err != nil {
			s.log.Warn("failed to release tick lock", "error", err)
		}
	}()

	// Settings and catalog size are read once per tick; every per-user
	// decision below compares against the same sampled now.
	settings, err := s.store.GetSettings(ctx)
	if err != nil {
		return err
	}
	taskCount, err := s.store.CountPosts(ctx)
	if err != nil {
		return err
	}
	var lastPost *models.Post
	if taskCount > 0 {
		lastPost, err = s.store.GetPostByPosition(ctx, taskCount)
		if err != nil {
			return err
		}
	}

	progresses, err := s.store.ListOnboardedProgress(ctx)
	if err != nil {
		return err
	}

	for _, prog := range progresses {
		if err := s.processUser(ctx, prog, settings, taskCount, lastPost, now); err != nil {
			s.log.Error("failed to process user", "user_id", prog.UserID, "error", err)
		}
	}
	return nil
}

func (s *Scheduler) processUser(ctx context.Context, prog *models.Progress, settings *models.Settings, taskCount int, lastPost *models.Post, now time.Time) error {
	if err := s.expireActiveWindow(ctx, prog, now); err != nil {
		return err
	}
	if err := s.sendSummaryPrompt(ctx, prog, taskCount, lastPost, now); err != nil {
		return err
	}
	return s.sendDueTask(ctx, prog, settings, taskCount, now)
}

// expireActiveWindow clears the progress view of an elapsed response
// window. The run itself is not touched: its own until already encodes
// closure.
func (s *Scheduler) expireActiveWindow(ctx context.Context, prog *models.Progress, now time.Time) error {
	if prog.ActiveUntil == nil || now.Before(*prog.ActiveUntil) {
		return nil
	}
	prog.ActivePostID = nil
	prog.ActiveStartedAt = nil
	prog.ActiveUntil = nil
	return s.store.UpdateProgress(ctx, prog)
}

// sendSummaryPrompt fires the end-of-program prompt exactly once: only
// after the pointer has passed the last task and that task's most recent
// run has expired. The persisted flag is the sole dedup mechanism, so a
// re-run of the tick after it is set is a no-op.
func (s *Scheduler) sendSummaryPrompt(ctx context.Context, prog *models.Progress, taskCount int, lastPost *models.Post, now time.Time) error {
	if lastPost == nil || prog.SummaryPromptSent || prog.NextPosition <= taskCount {
		return nil
	}

	lastRun, err := s.store.LatestRunForPost(ctx, prog.UserID, lastPost.ID)
	if err != nil {
		return err
	}
	if lastRun == nil || lastRun.Open(now) {
		return nil
	}

	user, err := s.store.GetUser(ctx, prog.UserID)
	if err != nil {
		return err
	}
	if user == nil {
		return nil
	}

	if err := s.notifier.NotifyCompletion(ctx, user); err != nil {
		// Flag stays clear so the prompt is retried next tick.
		s.log.Warn("failed to send completion prompt", "user_id", prog.UserID, "error", err)
		return nil
	}
	prog.SummaryPromptSent = true
	return s.store.UpdateProgress(ctx, prog)
}

// sendDueTask delivers the task at the catalog pointer once next_send_at
// has passed. A catalog gap freezes the pointer and retries next interval;
// a delivery failure leaves the pointer, cadence and pending reference
// untouched for retry; a still active previous task is silently superseded
// and a stale pending one is replaced on successful delivery.
func (s *Scheduler) sendDueTask(ctx context.Context, prog *models.Progress, settings *models.Settings, taskCount int, now time.Time) error {
	if !prog.Due(taskCount, now) {
		return nil
	}

	post, err := s.store.GetPostByPosition(ctx, prog.NextPosition)
	if err != nil {
		return err
	}
	if post == nil {
		// Gap in the catalog. Advancing here would silently skip a task,
		// so freeze the pointer and retry after one interval.
		s.log.Info("catalog gap, retrying later",
			"user_id", prog.UserID, "position", prog.NextPosition, "task_count", taskCount)
		prog.NextSendAt = engine.FloorToMinute(now).Add(settings.SendInterval())
		return s.store.UpdateProgress(ctx, prog)
	}

	// Supersede a still-running previous task. Only the active view is
	// cleared here; a stale pending reference survives until the new
	// delivery succeeds and overwrites it.
	if prog.ActivePostID != nil {
		prog.ActivePostID = nil
		prog.ActiveStartedAt = nil
		prog.ActiveUntil = nil
		if err := s.store.UpdateProgress(ctx, prog); err != nil {
			return err
		}
	}

	user, err := s.store.GetUser(ctx, prog.UserID)
	if err != nil {
		return err
	}
	if user == nil {
		s.log.Warn("no user for progress record", "user_id", prog.UserID)
		return nil
	}

	if err := s.notifier.NotifyTask(ctx, user, post); err != nil {
		// Pointer and cadence stay unchanged so this task is retried on a
		// later tick instead of silently skipping the user.
		s.log.Warn("failed to send task", "user_id", prog.UserID, "post_id", post.ID, "error", err)
		return nil
	}

	s.log.Info("sent due task",
		"user_id", prog.UserID, "position", prog.NextPosition, "post_id", post.ID, "next_send_at", prog.NextSendAt)

	prog.PendingPostID = &post.ID
	prog.NextPosition++
	prog.NextSendAt = engine.FloorToMinute(now).Add(settings.SendInterval())
	return s.store.UpdateProgress(ctx, prog)
}
