// File: internal/usecase/reading_uc.go
package usecase

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"arcana-reading-server/internal/config"
	"arcana-reading-server/internal/domain"
	"arcana-reading-server/internal/domain/event"
	"arcana-reading-server/internal/domain/model"
	"arcana-reading-server/internal/domain/ports/adapter"
	"arcana-reading-server/internal/domain/ports/repository"
	"arcana-reading-server/internal/infra/metrics"
)

// Compile-time check
var _ ReadingUseCase = (*readingUC)(nil)

// StartRequest is everything a client supplies to begin a reading.
type StartRequest struct {
	Question   string
	Category   string
	SpreadType string
	Items      []model.CardItem
}

type ReadingUseCase interface {
	// Start creates a job for the session and begins processing it on its
	// own goroutine. The returned job id is server-generated.
	Start(ctx context.Context, sessionID string, req StartRequest) (string, error)

	// Cancel requests cooperative cancellation. It returns false when the
	// job is unknown or already finished; that is not an error.
	Cancel(jobID string) bool

	Progress(ctx context.Context, jobID string) (model.Progress, error)
	Find(ctx context.Context, jobID string) (*model.ReadingJob, error)
}

// cancelFlag is the per-job cancellation handle. It is a cooperative
// signal: the job loop observes it only between steps, never mid-call.
type cancelFlag struct {
	ch   chan struct{}
	once sync.Once
}

func newCancelFlag() *cancelFlag { return &cancelFlag{ch: make(chan struct{})} }

func (f *cancelFlag) signal() { f.once.Do(func() { close(f.ch) }) }

func (f *cancelFlag) signalled() bool {
	select {
	case <-f.ch:
		return true
	default:
		return false
	}
}

type readingUC struct {
	jobs repository.JobRepository
	ai   adapter.InterpreterAdapter
	sink adapter.EventSink
	cfg  config.PipelineConfig
	log  *zerolog.Logger

	mu      sync.Mutex
	cancels map[string]*cancelFlag
	active  map[string]string // sessionID -> most recent processing jobID
}

func NewReadingUseCase(jobs repository.JobRepository, ai adapter.InterpreterAdapter, sink adapter.EventSink, cfg config.PipelineConfig, logger *zerolog.Logger) *readingUC {
	ucLog := logger.With().Str("component", "ReadingUC").Logger()
	return &readingUC{
		jobs:    jobs,
		ai:      ai,
		sink:    sink,
		cfg:     cfg,
		log:     &ucLog,
		cancels: make(map[string]*cancelFlag),
		active:  make(map[string]string),
	}
}

func (u *readingUC) Start(ctx context.Context, sessionID string, req StartRequest) (string, error) {
	if len(req.Items) == 0 {
		return "", domain.ErrNoItems
	}

	job := u.jobs.Create(ctx, sessionID, req.Question, req.Category, req.SpreadType, req.Items)
	flag := newCancelFlag()

	u.mu.Lock()
	if u.cfg.Supersede {
		if prev, ok := u.active[sessionID]; ok {
			if pf := u.cancels[prev]; pf != nil {
				pf.signal()
			}
		}
	}
	u.cancels[job.ID] = flag
	u.active[sessionID] = job.ID
	u.mu.Unlock()

	u.log.Info().Str("job_id", job.ID).Str("session_id", sessionID).
		Int("cards", len(job.Items)).Str("spread", job.SpreadType).Msg("reading started")

	go u.run(job, flag)
	return job.ID, nil
}

func (u *readingUC) Cancel(jobID string) bool {
	u.mu.Lock()
	flag, ok := u.cancels[jobID]
	u.mu.Unlock()
	if !ok {
		return false
	}
	flag.signal()
	return true
}

func (u *readingUC) Progress(ctx context.Context, jobID string) (model.Progress, error) {
	return u.jobs.Progress(ctx, jobID)
}

func (u *readingUC) Find(ctx context.Context, jobID string) (*model.ReadingJob, error) {
	return u.jobs.Find(ctx, jobID)
}

func (u *readingUC) dropHandle(job *model.ReadingJob) {
	u.mu.Lock()
	delete(u.cancels, job.ID)
	if u.active[job.SessionID] == job.ID {
		delete(u.active, job.SessionID)
	}
	u.mu.Unlock()
}

// run drives one job from processing to a terminal state. It is the only
// writer for the job and emits every event in order from this goroutine.
func (u *readingUC) run(job *model.ReadingJob, flag *cancelFlag) {
	defer u.dropHandle(job)

	ctx := context.Background()
	log := u.log.With().Str("job_id", job.ID).Str("session_id", job.SessionID).Logger()
	start := time.Now()
	n := len(job.Items)

	for i, card := range job.Items {
		// Cancellation checkpoint: observed only between steps.
		if flag.signalled() {
			u.cancel(ctx, job, &log)
			return
		}

		prog, err := u.jobs.Progress(ctx, job.ID)
		if err != nil {
			u.fail(ctx, job, &log, fmt.Errorf("progress lookup: %w", err))
			return
		}
		u.sink.Deliver(job.SessionID, event.ItemProcessing{
			JobID:     job.ID,
			ItemIndex: i,
			Label:     card.Name,
			Progress:  prog,
		})

		text, usedFallback := u.interpretCard(ctx, job, card, &log)
		res := model.ItemResult{
			ItemIndex:    i,
			Text:         text,
			UsedFallback: usedFallback,
			CompletedAt:  time.Now(),
		}
		if err := u.jobs.AppendItemResult(ctx, job.ID, res); err != nil {
			u.fail(ctx, job, &log, fmt.Errorf("append result %d: %w", i, err))
			return
		}
		prog, err = u.jobs.Progress(ctx, job.ID)
		if err != nil {
			u.fail(ctx, job, &log, fmt.Errorf("progress lookup: %w", err))
			return
		}
		u.sink.Deliver(job.SessionID, event.ItemResult{
			JobID:        job.ID,
			ItemIndex:    i,
			Text:         text,
			UsedFallback: usedFallback,
			Progress:     prog,
		})

		if i < n-1 {
			// UX pacing, not a correctness requirement. A cancel signal
			// cuts the sleep short; it takes effect at the next checkpoint.
			select {
			case <-time.After(u.cfg.Pacing):
			case <-flag.ch:
			}
		}
	}

	finalResult := ""
	if n > 1 {
		if flag.signalled() {
			u.cancel(ctx, job, &log)
			return
		}
		u.sink.Deliver(job.SessionID, event.FinalProcessing{JobID: job.ID})
		finalResult = u.summarize(ctx, job, &log)
	}

	if err := u.jobs.Complete(ctx, job.ID, finalResult); err != nil {
		u.fail(ctx, job, &log, fmt.Errorf("complete: %w", err))
		return
	}
	elapsed := time.Since(start)
	u.sink.Deliver(job.SessionID, event.JobCompleted{
		JobID:                 job.ID,
		FinalResult:           finalResult,
		TotalProcessingTimeMs: elapsed.Milliseconds(),
	})
	metrics.IncReadingJob(string(model.JobStatusCompleted))
	log.Info().Dur("duration", elapsed).Int("cards", n).Msg("reading completed")
}

// interpretCard races the generation call against the per-card deadline.
// Losing the race does not cancel the in-flight call; a late result is
// received on the buffered channel and discarded.
func (u *readingUC) interpretCard(ctx context.Context, job *model.ReadingJob, card model.CardItem, log *zerolog.Logger) (string, bool) {
	rc := adapter.ReadingContext{Question: job.Question, Category: job.Category, SpreadType: job.SpreadType}
	type outcome struct {
		text string
		err  error
	}
	ch := make(chan outcome, 1)
	callStart := time.Now()
	go func() {
		text, err := u.ai.InterpretCard(ctx, card, rc)
		ch <- outcome{text: text, err: err}
	}()

	select {
	case out := <-ch:
		latency := time.Since(callStart)
		if out.err != nil {
			log.Warn().Err(out.err).Str("card", card.Name).Msg("card generation failed; using fallback")
			metrics.ObserveItemLatency("item", latency.Milliseconds(), true)
			return card.FallbackText(), true
		}
		metrics.ObserveItemLatency("item", latency.Milliseconds(), false)
		return out.text, false
	case <-time.After(u.cfg.ItemTimeout):
		log.Warn().Str("card", card.Name).Dur("timeout", u.cfg.ItemTimeout).Msg("card generation timed out; using fallback")
		metrics.ObserveItemLatency("item", u.cfg.ItemTimeout.Milliseconds(), true)
		return card.FallbackText(), true
	}
}

// summarize races the aggregation call against its own longer deadline and
// falls back to a deterministic summary on timeout or error. Aggregation
// failure never fails the job.
func (u *readingUC) summarize(ctx context.Context, job *model.ReadingJob, log *zerolog.Logger) string {
	stored, err := u.jobs.Find(ctx, job.ID)
	if err != nil {
		log.Warn().Err(err).Msg("job vanished before summary; using fallback")
		return fallbackSummary(job.Items, nil)
	}
	texts := make([]string, 0, len(stored.ItemResults))
	for _, r := range stored.ItemResults {
		texts = append(texts, r.Text)
	}

	rc := adapter.ReadingContext{Question: job.Question, Category: job.Category, SpreadType: job.SpreadType}
	type outcome struct {
		text string
		err  error
	}
	ch := make(chan outcome, 1)
	callStart := time.Now()
	go func() {
		text, err := u.ai.SummarizeReading(ctx, job.Items, texts, rc)
		ch <- outcome{text: text, err: err}
	}()

	select {
	case out := <-ch:
		latency := time.Since(callStart)
		if out.err != nil {
			log.Warn().Err(out.err).Msg("summary generation failed; using fallback")
			metrics.ObserveItemLatency("summary", latency.Milliseconds(), true)
			return fallbackSummary(job.Items, texts)
		}
		metrics.ObserveItemLatency("summary", latency.Milliseconds(), false)
		return out.text
	case <-time.After(u.cfg.SummaryTimeout):
		log.Warn().Dur("timeout", u.cfg.SummaryTimeout).Msg("summary generation timed out; using fallback")
		metrics.ObserveItemLatency("summary", u.cfg.SummaryTimeout.Milliseconds(), true)
		return fallbackSummary(job.Items, texts)
	}
}

func (u *readingUC) cancel(ctx context.Context, job *model.ReadingJob, log *zerolog.Logger) {
	_ = u.jobs.Cancel(ctx, job.ID)
	u.sink.Deliver(job.SessionID, event.JobCancelled{JobID: job.ID})
	metrics.IncReadingJob(string(model.JobStatusCancelled))
	log.Info().Msg("reading cancelled")
}

func (u *readingUC) fail(ctx context.Context, job *model.ReadingJob, log *zerolog.Logger, err error) {
	_ = u.jobs.Fail(ctx, job.ID, err.Error())
	u.sink.Deliver(job.SessionID, event.JobFailed{JobID: job.ID, Reason: err.Error(), CanRetry: true})
	metrics.IncReadingJob(string(model.JobStatusFailed))
	log.Error().Err(err).Msg("reading failed")
}

// fallbackSummary is the deterministic substitute for the overall reading
// when aggregation is unavailable.
func fallbackSummary(cards []model.CardItem, texts []string) string {
	names := make([]string, 0, len(cards))
	for _, c := range cards {
		name := c.Name
		if c.Reversed {
			name += " (reversed)"
		}
		names = append(names, name)
	}
	var b strings.Builder
	fmt.Fprintf(&b, "Your reading drew %s.", strings.Join(names, ", "))
	if len(texts) > 0 {
		b.WriteString(" Taken together, the cards suggest: ")
		b.WriteString(strings.Join(texts, " "))
	}
	return b.String()
}
