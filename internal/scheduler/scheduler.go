package scheduler

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"skwatch/internal/config"
	"skwatch/internal/datastore"
)

// settingCheckInterval persists an operator-adjusted interval across restarts.
const settingCheckInterval = "check_interval_minutes"

// Dispatcher delivers pending findings to the operator channel.
type Dispatcher interface {
	DispatchPending(ctx context.Context) error
}

// Scheduler owns the periodic check loop. All checks flow through a single
// priority queue with one consumer, so exactly one portal operation is in
// flight at any time.
type Scheduler struct {
	cfg           config.SchedulerConfig
	store         *datastore.DB
	checker       *Checker
	dispatcher    Dispatcher
	queue         *JobQueue
	heartbeatPath string
	logger        zerolog.Logger

	// onCategoryDone is invoked after a single-category job so the UI that
	// requested it can refresh. May be nil.
	onCategoryDone func(categoryKey string, result CheckResult)

	intervalCh chan time.Duration
	cancel     context.CancelFunc
	wg         sync.WaitGroup
}

// NewScheduler creates the scheduler. dispatcher may be nil when no operator
// channel is configured; findings then stay pending until one comes up.
func NewScheduler(
	cfg config.SchedulerConfig,
	store *datastore.DB,
	checker *Checker,
	dispatcher Dispatcher,
	heartbeatPath string,
	logger zerolog.Logger,
) *Scheduler {
	return &Scheduler{
		cfg:           cfg,
		store:         store,
		checker:       checker,
		dispatcher:    dispatcher,
		queue:         NewJobQueue(),
		heartbeatPath: heartbeatPath,
		intervalCh:    make(chan time.Duration, 1),
		logger:        logger.With().Str("component", "Scheduler").Logger(),
	}
}

// SetCategoryDoneCallback registers a hook fired after single-category jobs.
// Must be called before Start.
func (s *Scheduler) SetCategoryDoneCallback(fn func(categoryKey string, result CheckResult)) {
	s.onCategoryDone = fn
}

// Start launches the producer and consumer goroutines and enqueues the
// startup sweep at top priority.
func (s *Scheduler) Start(ctx context.Context) {
	ctx, s.cancel = context.WithCancel(ctx)

	s.queue.Push(Job{Kind: JobFull, Priority: PriorityStartup, Reason: "startup"})

	s.wg.Add(2)
	go s.produceTicks(ctx)
	go s.consume(ctx)
	s.logger.Info().Dur("interval", s.currentInterval()).Msg("Scheduler started")
}

// Stop cancels the loops and waits for the in-flight job to finish.
func (s *Scheduler) Stop() {
	if s.cancel != nil {
		s.cancel()
	}
	s.wg.Wait()
	s.logger.Info().Msg("Scheduler stopped")
}

// TriggerFull enqueues an operator-requested full sweep.
func (s *Scheduler) TriggerFull(reason string) {
	s.queue.Push(Job{Kind: JobFull, Priority: PriorityManual, Reason: reason})
}

// TriggerCategory enqueues an operator-requested single-category check.
func (s *Scheduler) TriggerCategory(categoryKey, reason string) {
	s.queue.Push(Job{Kind: JobCategory, CategoryKey: categoryKey, Priority: PriorityManual, Reason: reason})
}

// UpdateInterval changes the periodic interval at runtime and persists it.
func (s *Scheduler) UpdateInterval(minutes int) error {
	if minutes < 1 {
		return fmt.Errorf("interval must be at least 1 minute, got %d", minutes)
	}
	if err := s.store.SettingsSet(settingCheckInterval, strconv.Itoa(minutes)); err != nil {
		return err
	}
	select {
	case s.intervalCh <- time.Duration(minutes) * time.Minute:
	default:
		// A pending update is simply replaced by draining first.
		select {
		case <-s.intervalCh:
		default:
		}
		s.intervalCh <- time.Duration(minutes) * time.Minute
	}
	s.logger.Info().Int("minutes", minutes).Msg("Check interval updated")
	return nil
}

// currentInterval resolves the effective interval: persisted override first,
// config default otherwise.
func (s *Scheduler) currentInterval() time.Duration {
	if text, ok, err := s.store.SettingsGet(settingCheckInterval); err == nil && ok {
		if minutes, err := strconv.Atoi(text); err == nil && minutes >= 1 {
			return time.Duration(minutes) * time.Minute
		}
	}
	return time.Duration(s.cfg.CheckIntervalMinutes) * time.Minute
}

func (s *Scheduler) produceTicks(ctx context.Context) {
	defer s.wg.Done()

	ticker := time.NewTicker(s.currentInterval())
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case interval := <-s.intervalCh:
			ticker.Reset(interval)
		case <-ticker.C:
			s.queue.Push(Job{Kind: JobFull, Priority: PriorityPeriodic, Reason: "periodic"})
		}
	}
}

func (s *Scheduler) consume(ctx context.Context) {
	defer s.wg.Done()

	for {
		job, err := s.queue.Pop(ctx)
		if err != nil {
			return
		}
		switch job.Kind {
		case JobFull:
			s.runFull(ctx, job)
		case JobCategory:
			s.runCategory(ctx, job)
		default:
			s.logger.Error().Str("kind", string(job.Kind)).Msg("Unknown job kind")
		}
	}
}

// runFull checks every enabled category in order, closes the run record and
// dispatches whatever findings accumulated.
func (s *Scheduler) runFull(ctx context.Context, job Job) {
	started := time.Now().UTC()
	sessionID := uuid.New().String()
	logger := s.logger.With().Str("session_id", sessionID).Logger()

	runID, err := s.store.StartRun("full", started)
	if err != nil {
		logger.Error().Err(err).Msg("Failed to open run record")
		return
	}
	logger.Info().Str("reason", job.Reason).Int64("run", runID).Msg("Full check started")

	categories, err := s.store.EnabledCategories()
	if err != nil {
		logger.Error().Err(err).Msg("Failed to load categories")
		s.finishRun(runID, 0, 1, 0)
		return
	}

	var okCount, errCount, findings int
	for _, category := range categories {
		if ctx.Err() != nil {
			break
		}
		result := s.checker.CheckCategory(ctx, category)
		findings += result.Findings
		errCount += result.Errors
		if result.Errors == 0 {
			okCount++
		}
	}

	s.finishRun(runID, okCount, errCount, findings)
	s.dispatch(ctx)
	s.touchHeartbeat()

	logger.Info().
		Int64("run", runID).
		Int("ok", okCount).
		Int("errors", errCount).
		Int("findings", findings).
		Dur("elapsed", time.Since(started)).
		Msg("Full check finished")
}

// runCategory checks a single category and fires the completion callback.
func (s *Scheduler) runCategory(ctx context.Context, job Job) {
	started := time.Now().UTC()
	runID, err := s.store.StartRun("category:"+job.CategoryKey, started)
	if err != nil {
		s.logger.Error().Err(err).Msg("Failed to open run record")
		return
	}

	category, err := s.store.Category(job.CategoryKey)
	if err != nil {
		s.logger.Error().Err(err).Str("category", job.CategoryKey).Msg("Unknown category")
		s.finishRun(runID, 0, 1, 0)
		return
	}

	result := s.checker.CheckCategory(ctx, *category)
	okCount := 0
	if result.Errors == 0 {
		okCount = 1
	}
	s.finishRun(runID, okCount, result.Errors, result.Findings)
	s.dispatch(ctx)

	if s.onCategoryDone != nil {
		s.onCategoryDone(job.CategoryKey, result)
	}
}

func (s *Scheduler) finishRun(runID int64, ok, errCount, findings int) {
	if err := s.store.FinishRun(runID, ok, errCount, findings, time.Now().UTC()); err != nil {
		s.logger.Error().Err(err).Int64("run", runID).Msg("Failed to close run record")
	}
}

func (s *Scheduler) dispatch(ctx context.Context) {
	if s.dispatcher == nil {
		return
	}
	if err := s.dispatcher.DispatchPending(ctx); err != nil {
		s.logger.Error().Err(err).Msg("Failed to dispatch pending findings")
	}
}

// touchHeartbeat stamps the liveness file external monitoring watches.
func (s *Scheduler) touchHeartbeat() {
	if s.heartbeatPath == "" {
		return
	}
	if err := os.MkdirAll(filepath.Dir(s.heartbeatPath), 0755); err != nil {
		s.logger.Warn().Err(err).Msg("Failed to create heartbeat directory")
		return
	}
	stamp := time.Now().UTC().Format(time.RFC3339) + "\n"
	if err := os.WriteFile(s.heartbeatPath, []byte(stamp), 0644); err != nil {
		s.logger.Warn().Err(err).Msg("Failed to write heartbeat")
	}
}
