package gateway

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"arcana-reading-server/internal/config"
	"arcana-reading-server/internal/domain/event"
	"arcana-reading-server/internal/domain/model"
	"arcana-reading-server/internal/domain/ports/adapter"
	"arcana-reading-server/internal/infra/store"
	"arcana-reading-server/internal/usecase"
)

// ---- Fakes ----

type fakeConn struct {
	mu   sync.Mutex
	sent []Envelope
}

func (c *fakeConn) Send(env Envelope) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.sent = append(c.sent, env)
	return true
}

func (c *fakeConn) Close() {}

func (c *fakeConn) envelopes() []Envelope {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]Envelope(nil), c.sent...)
}

func (c *fakeConn) lastOf(t *testing.T, typ event.Type) Envelope {
	t.Helper()
	for _, env := range c.envelopes() {
		if env.Type == typ {
			return env
		}
	}
	t.Fatalf("no %s envelope; got %+v", typ, c.envelopes())
	return Envelope{}
}

type fakeReadings struct {
	mu         sync.Mutex
	started    []usecase.StartRequest
	startedFor []string
	cancelOK   bool
	cancelled  []string
}

func (f *fakeReadings) Start(ctx context.Context, sessionID string, req usecase.StartRequest) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.started = append(f.started, req)
	f.startedFor = append(f.startedFor, sessionID)
	return fmt.Sprintf("job-%d", len(f.started)), nil
}

func (f *fakeReadings) Cancel(jobID string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.cancelled = append(f.cancelled, jobID)
	return f.cancelOK
}

func (f *fakeReadings) Progress(ctx context.Context, jobID string) (model.Progress, error) {
	return model.Progress{}, nil
}

func (f *fakeReadings) Find(ctx context.Context, jobID string) (*model.ReadingJob, error) {
	return nil, nil
}

type fakeAnalyzer struct {
	mu           sync.Mutex
	bootstrapped []string
	insights     []model.Insight
}

func (f *fakeAnalyzer) Bootstrap(sessionID string, userContext map[string]any) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.bootstrapped = append(f.bootstrapped, sessionID)
}

func (f *fakeAnalyzer) AnalyzeBatch(sessionID string, events []model.InteractionEvent) []model.Insight {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.insights
}

type fakeLimiter struct{ allow bool }

func (f *fakeLimiter) Allow(ctx context.Context, key string, limit int, window time.Duration) (bool, error) {
	return f.allow, nil
}

func newTestGateway(readings usecase.ReadingUseCase, analyzer *fakeAnalyzer, limiter Limiter) *Gateway {
	logger := zerolog.Nop()
	g := New(analyzer, limiter, 10, time.Minute, &logger)
	g.Bind(readings)
	return g
}

func send(g *Gateway, c Conn, msgType string, data any) {
	raw, _ := json.Marshal(data)
	frame, _ := json.Marshal(inboundMessage{Type: msgType, Data: raw})
	g.HandleMessage(c, frame)
}

// ---- Tests ----

func TestSessionStartRegistersAndBootstraps(t *testing.T) {
	analyzer := &fakeAnalyzer{}
	g := newTestGateway(&fakeReadings{}, analyzer, nil)
	c := &fakeConn{}

	send(g, c, "session:start", sessionStartPayload{UserContext: map[string]any{"lang": "en"}})

	env := c.lastOf(t, event.TypeSessionInitialized)
	if env.SessionID == "" {
		t.Fatal("session_initialized missing session id")
	}
	if len(analyzer.bootstrapped) != 1 || analyzer.bootstrapped[0] != env.SessionID {
		t.Fatalf("analyzer bootstrap: %v", analyzer.bootstrapped)
	}

	// Outbound delivery reaches the registered connection.
	g.Deliver(env.SessionID, event.JobStarted{JobID: "j"})
	if len(c.envelopes()) != 2 {
		t.Fatalf("delivery did not reach connection: %+v", c.envelopes())
	}
}

func TestSecondSessionStartReplacesMapping(t *testing.T) {
	g := newTestGateway(&fakeReadings{}, &fakeAnalyzer{}, nil)
	c := &fakeConn{}

	send(g, c, "session:start", sessionStartPayload{})
	first := c.lastOf(t, event.TypeSessionInitialized).SessionID
	send(g, c, "session:start", sessionStartPayload{})

	before := len(c.envelopes())
	// Events for the replaced session are now undeliverable.
	g.Deliver(first, event.JobStarted{JobID: "j"})
	if len(c.envelopes()) != before {
		t.Fatal("replaced session still receives events")
	}
}

func TestJobStartRequiresRegisteredSession(t *testing.T) {
	readings := &fakeReadings{}
	g := newTestGateway(readings, &fakeAnalyzer{}, nil)
	c := &fakeConn{}

	send(g, c, "job:start", jobStartPayload{SessionID: "made-up", Items: []model.CardItem{{Name: "The Fool"}}})

	env := c.lastOf(t, event.TypeError)
	if env.Data.(event.Error).Code != "unknown_session" {
		t.Fatalf("error code: %+v", env.Data)
	}
	if len(readings.started) != 0 {
		t.Fatal("job started despite unknown session")
	}
}

func TestJobStartDelegatesAndAcks(t *testing.T) {
	readings := &fakeReadings{}
	g := newTestGateway(readings, &fakeAnalyzer{}, nil)
	c := &fakeConn{}

	send(g, c, "session:start", sessionStartPayload{})
	sessionID := c.lastOf(t, event.TypeSessionInitialized).SessionID
	send(g, c, "job:start", jobStartPayload{
		SessionID: sessionID, Question: "q", SpreadType: "three_card",
		Items: []model.CardItem{{Name: "The Fool"}},
	})

	env := c.lastOf(t, event.TypeJobStarted)
	if env.JobID != "job-1" {
		t.Fatalf("job id: %q", env.JobID)
	}
	if len(readings.startedFor) != 1 || readings.startedFor[0] != sessionID {
		t.Fatalf("started for: %v", readings.startedFor)
	}
}

func TestJobCancelAck(t *testing.T) {
	readings := &fakeReadings{cancelOK: true}
	g := newTestGateway(readings, &fakeAnalyzer{}, nil)
	c := &fakeConn{}

	send(g, c, "job:cancel", jobCancelPayload{JobID: "job-9"})

	env := c.lastOf(t, event.TypeJobCancelAck)
	if !env.Data.(event.JobCancelAck).Cancelled {
		t.Fatal("ack should report cancelled=true")
	}
	if len(readings.cancelled) != 1 || readings.cancelled[0] != "job-9" {
		t.Fatalf("cancelled: %v", readings.cancelled)
	}
}

func TestDeliverWithoutConnectionDrops(t *testing.T) {
	g := newTestGateway(&fakeReadings{}, &fakeAnalyzer{}, nil)
	// Must not panic or block.
	g.Deliver("nobody-home", event.JobCompleted{JobID: "j"})
}

func TestUnknownCommandReportsError(t *testing.T) {
	g := newTestGateway(&fakeReadings{}, &fakeAnalyzer{}, nil)
	c := &fakeConn{}
	send(g, c, "job:reverse-time", struct{}{})
	env := c.lastOf(t, event.TypeError)
	if env.Data.(event.Error).Code != "unknown_command" {
		t.Fatalf("error code: %+v", env.Data)
	}
}

func TestInteractionBatchYieldsInsights(t *testing.T) {
	analyzer := &fakeAnalyzer{insights: []model.Insight{{Signal: "emotion", Value: "hopeful", Confidence: 0.6}}}
	g := newTestGateway(&fakeReadings{}, analyzer, nil)
	c := &fakeConn{}

	send(g, c, "session:start", sessionStartPayload{})
	send(g, c, "interaction:event", interactionPayload{Events: []model.InteractionEvent{{Kind: "key", AtMs: 1}}})

	env := c.lastOf(t, event.TypeInsight)
	if env.Data.(event.Insight).Insight.Value != "hopeful" {
		t.Fatalf("insight: %+v", env.Data)
	}
}

func TestInteractionBatchRateLimited(t *testing.T) {
	analyzer := &fakeAnalyzer{insights: []model.Insight{{Signal: "emotion", Value: "hopeful"}}}
	g := newTestGateway(&fakeReadings{}, analyzer, &fakeLimiter{allow: false})
	c := &fakeConn{}

	send(g, c, "session:start", sessionStartPayload{})
	before := len(c.envelopes())
	send(g, c, "interaction:event", interactionPayload{Events: []model.InteractionEvent{{Kind: "key", AtMs: 1}}})

	if len(c.envelopes()) != before {
		t.Fatal("rate-limited batch still produced insights")
	}
}

// End to end through the real orchestrator: disconnecting mid-job drops
// events but the job still reaches a terminal state in the store.
func TestDisconnectLeavesJobRunning(t *testing.T) {
	logger := zerolog.Nop()
	repo := store.NewMemoryJobRepo()
	analyzer := &fakeAnalyzer{}
	g := New(analyzer, nil, 10, time.Minute, &logger)
	readings := usecase.NewReadingUseCase(repo, slowInterpreter{}, g, config.PipelineConfig{
		ItemTimeout:    time.Second,
		SummaryTimeout: time.Second,
		Pacing:         time.Millisecond,
	}, &logger)
	g.Bind(readings)

	c := &fakeConn{}
	send(g, c, "session:start", sessionStartPayload{})
	sessionID := c.lastOf(t, event.TypeSessionInitialized).SessionID
	send(g, c, "job:start", jobStartPayload{
		SessionID: sessionID,
		Items:     []model.CardItem{{Position: 0, Name: "The Fool", Meaning: "beginnings"}},
	})
	jobID := c.lastOf(t, event.TypeJobStarted).JobID

	g.Disconnect(c)

	deadline := time.Now().Add(5 * time.Second)
	for {
		job, err := repo.Find(context.Background(), jobID)
		if err != nil {
			t.Fatalf("find: %v", err)
		}
		if job.Status.Terminal() {
			if job.Status != model.JobStatusCompleted {
				t.Fatalf("job status %s, want completed", job.Status)
			}
			break
		}
		if time.Now().After(deadline) {
			t.Fatal("job never reached a terminal state after disconnect")
		}
		time.Sleep(5 * time.Millisecond)
	}
}

type slowInterpreter struct{}

func (slowInterpreter) InterpretCard(ctx context.Context, card model.CardItem, rc adapter.ReadingContext) (string, error) {
	time.Sleep(20 * time.Millisecond)
	return "text", nil
}

func (slowInterpreter) SummarizeReading(ctx context.Context, cards []model.CardItem, texts []string, rc adapter.ReadingContext) (string, error) {
	return "summary", nil
}
