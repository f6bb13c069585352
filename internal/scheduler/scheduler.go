package scheduler

import (
	"context"
	"fmt"
	"log"
	"strings"
	"sync"
	"time"

	"EconDash/internal/accumulator"
	"EconDash/internal/model"
	"EconDash/internal/notifier"
	"EconDash/internal/recorder"

	"github.com/robfig/cron/v3"
)

// Sender delivers a message, retrying on failure.
type Sender interface {
	SendWithRetry(ctx context.Context, text string, maxRetries int) error
}

// IndexSource lists the current global stock indices.
type IndexSource interface {
	Indices(ctx context.Context) ([]model.IndexQuote, error)
}

// Scheduler manages the cron tasks and answers chat commands.
type Scheduler struct {
	Cron        *cron.Cron
	Accumulator *accumulator.Accumulator
	Series      []model.SeriesSpec
	Indices     IndexSource
	Notifier    Sender // nil disables notifications
	Recorder    recorder.Recorder
	Ctx         context.Context

	// refreshing guards against overlapping refresh runs.
	refreshing sync.Mutex
}

// NewScheduler creates a new Scheduler.
func NewScheduler(ctx context.Context, acc *accumulator.Accumulator, series []model.SeriesSpec, idx IndexSource, sender Sender, rec recorder.Recorder) *Scheduler {
	if rec == nil {
		rec = recorder.NewNoopRecorder()
	}
	return &Scheduler{
		Cron:        cron.New(cron.WithSeconds()),
		Accumulator: acc,
		Series:      series,
		Indices:     idx,
		Notifier:    sender,
		Recorder:    rec,
		Ctx:         ctx,
	}
}

// RegisterAll registers the refresh and indices tasks. An empty spec leaves
// that task unscheduled.
func (s *Scheduler) RegisterAll(refreshCron, indicesCron string) error {
	if refreshCron != "" {
		if _, err := s.Cron.AddFunc(refreshCron, s.refreshTask); err != nil {
			return fmt.Errorf("register refresh task: %w", err)
		}
	}
	if indicesCron != "" && s.Indices != nil {
		if _, err := s.Cron.AddFunc(indicesCron, s.indicesTask); err != nil {
			return fmt.Errorf("register indices task: %w", err)
		}
	}
	return nil
}

// Start starts the cron scheduler.
func (s *Scheduler) Start() {
	s.Cron.Start()
	log.Println("[INFO] scheduler started")
}

// Stop stops the cron scheduler and waits for running tasks.
func (s *Scheduler) Stop() {
	<-s.Cron.Stop().Done()
	log.Println("[INFO] scheduler stopped")
}

// RefreshNow accumulates every configured series and returns the results.
// A refresh already in progress makes it return nil immediately.
func (s *Scheduler) RefreshNow() []accumulator.Result {
	if !s.refreshing.TryLock() {
		log.Println("[WARN] refresh already running, skipping")
		return nil
	}
	defer s.refreshing.Unlock()

	log.Printf("[INFO] refreshing %d series", len(s.Series))
	results := s.Accumulator.RefreshAll(s.Ctx, s.Series)
	for _, r := range results {
		if r.Err != nil {
			log.Printf("[WARN] %s: %s: %v", r.Name, r.Status, r.Err)
			continue
		}
		log.Printf("[INFO] %s: %s, %d new rows, %d total", r.Name, r.Status, r.Fetched, len(r.Table))
	}
	return results
}

func (s *Scheduler) refreshTask() {
	results := s.RefreshNow()
	if results == nil {
		return
	}
	s.trySend(notifier.FormatDigest(results, time.Now()))
}

// SnapshotIndices fetches the indices list and records it.
func (s *Scheduler) SnapshotIndices() ([]model.IndexQuote, error) {
	quotes, err := s.Indices.Indices(s.Ctx)
	if err != nil {
		return quotes, err
	}
	if err := s.Recorder.RecordIndexQuotes(quotes); err != nil {
		log.Printf("[ERROR] record index quotes: %v", err)
	}
	return quotes, nil
}

func (s *Scheduler) indicesTask() {
	log.Println("[INFO] running indices snapshot")
	quotes, err := s.SnapshotIndices()
	if err != nil {
		log.Printf("[WARN] indices snapshot: %v", err)
		return
	}
	log.Printf("[INFO] recorded %d index quotes", len(quotes))
}

// HandleCommand processes a user command and returns a reply.
func (s *Scheduler) HandleCommand(command string) string {
	fields := strings.Fields(command)
	if len(fields) == 0 {
		return s.help()
	}
	// Telegram appends the bot name in groups: /series@econdash_bot
	cmd, _, _ := strings.Cut(fields[0], "@")

	switch cmd {
	case "/list", "/start", "/help":
		return notifier.FormatSeriesList(s.Series)
	case "/series":
		if len(fields) < 2 {
			return "Usage: /series &lt;name&gt;"
		}
		spec, ok := s.findSeries(fields[1])
		if !ok {
			return fmt.Sprintf("Unknown series %q\n\n%s", fields[1], notifier.FormatSeriesList(s.Series))
		}
		res := s.Accumulator.Refresh(s.Ctx, spec)
		return notifier.FormatSeries(spec, res.Table)
	case "/indices":
		if s.Indices == nil {
			return "Stock indices are not configured"
		}
		quotes, err := s.SnapshotIndices()
		if err != nil {
			log.Printf("[WARN] indices command: %v", err)
		}
		return notifier.FormatIndices(quotes, model.IndicesLimit)
	case "/refresh":
		results := s.RefreshNow()
		if results == nil {
			return "A refresh is already running"
		}
		return notifier.FormatDigest(results, time.Now())
	default:
		return s.help()
	}
}

func (s *Scheduler) help() string {
	return "Available commands:\n• /list\n• /series &lt;name&gt;\n• /indices\n• /refresh"
}

func (s *Scheduler) findSeries(name string) (model.SeriesSpec, bool) {
	for _, spec := range s.Series {
		if spec.Name == name {
			return spec, true
		}
	}
	return model.SeriesSpec{}, false
}

func (s *Scheduler) trySend(text string) {
	if s.Notifier == nil {
		return
	}
	if err := s.Notifier.SendWithRetry(s.Ctx, text, 3); err != nil {
		log.Printf("[ERROR] send notification: %v", err)
	}
}
