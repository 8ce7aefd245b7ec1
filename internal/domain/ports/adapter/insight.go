package adapter

import "arcana-reading-server/internal/domain/model"

// InteractionAnalyzer is the port for the real-time ingestion collaborator.
// It is push-based: each batch yields zero or more insights, and failures
// are swallowed inside the implementation (a bad batch just produces none).
type InteractionAnalyzer interface {
	// Bootstrap is called once when a session starts. Implementations may
	// use it to reset per-session state; it must not fail.
	Bootstrap(sessionID string, userContext map[string]any)

	AnalyzeBatch(sessionID string, events []model.InteractionEvent) []model.Insight
}
