// File: internal/infra/gateway/gateway.go
package gateway

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"arcana-reading-server/internal/domain/event"
	"arcana-reading-server/internal/domain/model"
	"arcana-reading-server/internal/domain/ports/adapter"
	"arcana-reading-server/internal/infra/metrics"
	"arcana-reading-server/internal/usecase"
)

// Conn is one live client connection. Send must not block the caller;
// it reports false when the message could not be queued.
type Conn interface {
	Send(env Envelope) bool
	Close()
}

// Limiter caps interaction-event batches per session. A nil limiter on the
// gateway disables limiting.
type Limiter interface {
	Allow(ctx context.Context, key string, limit int, window time.Duration) (bool, error)
}

// Gateway is the single place where inbound commands become use-case calls
// and outbound events find their connection. It keeps the session↔conn
// registry; both directions are updated under one mutex.
type Gateway struct {
	mu        sync.Mutex
	bySession map[string]Conn
	byConn    map[Conn]string

	readings  usecase.ReadingUseCase
	analyzer  adapter.InteractionAnalyzer
	limiter   Limiter
	rateLimit int
	rateWin   time.Duration
	log       *zerolog.Logger

	handlers map[string]func(*Gateway, Conn, json.RawMessage)
}

// Compile-time check: the gateway is the event sink for job goroutines.
var _ adapter.EventSink = (*Gateway)(nil)

func New(analyzer adapter.InteractionAnalyzer, limiter Limiter, rateLimit int, rateWindow time.Duration, logger *zerolog.Logger) *Gateway {
	gwLog := logger.With().Str("component", "Gateway").Logger()
	g := &Gateway{
		bySession: make(map[string]Conn),
		byConn:    make(map[Conn]string),
		analyzer:  analyzer,
		limiter:   limiter,
		rateLimit: rateLimit,
		rateWin:   rateWindow,
		log:       &gwLog,
	}
	g.handlers = map[string]func(*Gateway, Conn, json.RawMessage){
		"session:start":     (*Gateway).handleSessionStart,
		"job:start":         (*Gateway).handleJobStart,
		"job:cancel":        (*Gateway).handleJobCancel,
		"interaction:event": (*Gateway).handleInteraction,
	}
	return g
}

// Bind attaches the reading use case after construction; the use case needs
// the gateway as its event sink, so the two are wired in two steps.
func (g *Gateway) Bind(readings usecase.ReadingUseCase) { g.readings = readings }

// Deliver routes an outbound event to the session's connection. With no
// registered connection the event is dropped; the job keeps running.
func (g *Gateway) Deliver(sessionID string, ev event.Event) {
	g.mu.Lock()
	c := g.bySession[sessionID]
	g.mu.Unlock()
	if c == nil {
		metrics.IncDropped("no_connection")
		return
	}
	if !c.Send(envelope(sessionID, ev)) {
		metrics.IncDropped("slow_client")
	}
}

type inboundMessage struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data"`
}

// HandleMessage dispatches one inbound frame from a connection.
func (g *Gateway) HandleMessage(c Conn, raw []byte) {
	var msg inboundMessage
	if err := json.Unmarshal(raw, &msg); err != nil {
		c.Send(envelope("", event.Error{Code: "bad_message", Message: "malformed message"}))
		return
	}
	h, ok := g.handlers[msg.Type]
	if !ok {
		c.Send(envelope("", event.Error{Code: "unknown_command", Message: "unknown command: " + msg.Type}))
		return
	}
	h(g, c, msg.Data)
}

// Disconnect removes both registry entries for the connection. Jobs owned
// by the session keep running; their events become undeliverable.
func (g *Gateway) Disconnect(c Conn) {
	g.mu.Lock()
	sessionID, ok := g.byConn[c]
	if ok {
		delete(g.byConn, c)
		if g.bySession[sessionID] == c {
			delete(g.bySession, sessionID)
		}
	}
	g.mu.Unlock()
	if ok {
		g.log.Debug().Str("session_id", sessionID).Msg("connection unregistered")
	}
}

func (g *Gateway) sessionOf(c Conn) (string, bool) {
	g.mu.Lock()
	defer g.mu.Unlock()
	s, ok := g.byConn[c]
	return s, ok
}

// --- inbound commands ---

type sessionStartPayload struct {
	UserContext map[string]any `json:"userContext"`
}

func (g *Gateway) handleSessionStart(c Conn, data json.RawMessage) {
	var p sessionStartPayload
	_ = json.Unmarshal(data, &p)

	sessionID := uuid.NewString()
	g.mu.Lock()
	// A second start on the same connection silently replaces the mapping.
	if prev, ok := g.byConn[c]; ok {
		delete(g.bySession, prev)
	}
	g.bySession[sessionID] = c
	g.byConn[c] = sessionID
	g.mu.Unlock()

	g.analyzer.Bootstrap(sessionID, p.UserContext)
	g.log.Info().Str("session_id", sessionID).Msg("session initialized")
	c.Send(envelope(sessionID, event.SessionInitialized{SessionID: sessionID}))
}

type jobStartPayload struct {
	SessionID  string           `json:"sessionId"`
	Question   string           `json:"question"`
	Category   string           `json:"category"`
	SpreadType string           `json:"spreadType"`
	Items      []model.CardItem `json:"items"`
}

func (g *Gateway) handleJobStart(c Conn, data json.RawMessage) {
	var p jobStartPayload
	if err := json.Unmarshal(data, &p); err != nil {
		c.Send(envelope("", event.Error{Code: "bad_message", Message: "malformed job:start payload"}))
		return
	}

	g.mu.Lock()
	registered := g.bySession[p.SessionID] == c && c != nil
	g.mu.Unlock()
	if !registered {
		c.Send(envelope(p.SessionID, event.Error{Code: "unknown_session", Message: "session is not registered to this connection"}))
		return
	}

	jobID, err := g.readings.Start(context.Background(), p.SessionID, usecase.StartRequest{
		Question:   p.Question,
		Category:   p.Category,
		SpreadType: p.SpreadType,
		Items:      p.Items,
	})
	if err != nil {
		c.Send(envelope(p.SessionID, event.Error{Code: "job_rejected", Message: err.Error()}))
		return
	}
	c.Send(envelope(p.SessionID, event.JobStarted{JobID: jobID}))
}

type jobCancelPayload struct {
	JobID string `json:"jobId"`
}

func (g *Gateway) handleJobCancel(c Conn, data json.RawMessage) {
	var p jobCancelPayload
	if err := json.Unmarshal(data, &p); err != nil || p.JobID == "" {
		c.Send(envelope("", event.Error{Code: "bad_message", Message: "malformed job:cancel payload"}))
		return
	}
	sessionID, _ := g.sessionOf(c)
	cancelled := g.readings.Cancel(p.JobID)
	if !cancelled {
		g.log.Debug().Str("job_id", p.JobID).Msg("cancel requested for finished job")
	}
	c.Send(envelope(sessionID, event.JobCancelAck{JobID: p.JobID, Cancelled: cancelled}))
}

type interactionPayload struct {
	Events []model.InteractionEvent `json:"events"`
}

func (g *Gateway) handleInteraction(c Conn, data json.RawMessage) {
	sessionID, ok := g.sessionOf(c)
	if !ok {
		// No session yet; nothing to key the batch on.
		return
	}
	if g.limiter != nil {
		allowed, err := g.limiter.Allow(context.Background(), sessionEventKey(sessionID), g.rateLimit, g.rateWin)
		if err == nil && !allowed {
			metrics.IncBatchLimited()
			return
		}
		// A limiter error never blocks the batch.
	}
	var p interactionPayload
	if err := json.Unmarshal(data, &p); err != nil {
		return
	}
	for _, ins := range g.analyzer.AnalyzeBatch(sessionID, p.Events) {
		metrics.IncInsights()
		g.Deliver(sessionID, event.Insight{Insight: ins})
	}
}

func sessionEventKey(sessionID string) string {
	return "interaction_rate:" + sessionID
}
