// File: internal/infra/adapters/insight/analyzer.go
package insight

import (
	"github.com/rs/zerolog"

	"arcana-reading-server/internal/domain/model"
	"arcana-reading-server/internal/domain/ports/adapter"
)

// Compile-time check
var _ adapter.InteractionAnalyzer = (*Analyzer)(nil)

// Analyzer derives typing-pattern and emotion signals from raw interaction
// batches. It is stateless per batch and never fails: a batch it cannot
// read simply produces no insights.
type Analyzer struct {
	log *zerolog.Logger
}

func NewAnalyzer(logger *zerolog.Logger) *Analyzer {
	aLog := logger.With().Str("component", "InsightAnalyzer").Logger()
	return &Analyzer{log: &aLog}
}

func (a *Analyzer) Bootstrap(sessionID string, userContext map[string]any) {
	a.log.Debug().Str("session_id", sessionID).Int("context_keys", len(userContext)).Msg("session bootstrapped")
}

// Cadence and revision thresholds tuned against typical question-typing
// behavior in the web client.
const (
	rapidCadenceMs    = 150
	hesitantCadenceMs = 800
	revisionShare     = 0.3
	idleGapMs         = 5000
	maxInsights       = 3
)

func (a *Analyzer) AnalyzeBatch(sessionID string, events []model.InteractionEvent) []model.Insight {
	if len(events) == 0 {
		return nil
	}

	var (
		keyTimes   []int64
		backspaces int
		keys       int
		longestGap int64
		lastAt     int64 = -1
	)
	for _, ev := range events {
		if lastAt >= 0 && ev.AtMs > lastAt && ev.AtMs-lastAt > longestGap {
			longestGap = ev.AtMs - lastAt
		}
		lastAt = ev.AtMs
		switch ev.Kind {
		case "key":
			keys++
			keyTimes = append(keyTimes, ev.AtMs)
		case "backspace":
			backspaces++
		}
	}

	var out []model.Insight
	if len(keyTimes) >= 3 {
		var total int64
		for i := 1; i < len(keyTimes); i++ {
			d := keyTimes[i] - keyTimes[i-1]
			if d < 0 {
				d = 0
			}
			total += d
		}
		mean := total / int64(len(keyTimes)-1)
		switch {
		case mean <= rapidCadenceMs:
			out = append(out, model.Insight{Signal: "typing_pattern", Value: "confident", Confidence: 0.7})
		case mean >= hesitantCadenceMs:
			out = append(out, model.Insight{Signal: "typing_pattern", Value: "hesitant", Confidence: 0.7})
		}
	}
	if keys > 0 && float64(backspaces)/float64(keys+backspaces) > revisionShare {
		out = append(out, model.Insight{Signal: "emotion", Value: "second_guessing", Confidence: 0.6})
	}
	if longestGap >= idleGapMs {
		out = append(out, model.Insight{Signal: "focus", Value: "contemplative", Confidence: 0.5})
	}
	if len(out) > maxInsights {
		out = out[:maxInsights]
	}
	return out
}
