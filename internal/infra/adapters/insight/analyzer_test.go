package insight

import (
	"testing"

	"github.com/rs/zerolog"

	"arcana-reading-server/internal/domain/model"
)

func newTestAnalyzer() *Analyzer {
	logger := zerolog.Nop()
	return NewAnalyzer(&logger)
}

func keysAt(times ...int64) []model.InteractionEvent {
	out := make([]model.InteractionEvent, 0, len(times))
	for _, at := range times {
		out = append(out, model.InteractionEvent{Kind: "key", AtMs: at})
	}
	return out
}

func hasInsight(insights []model.Insight, signal, value string) bool {
	for _, ins := range insights {
		if ins.Signal == signal && ins.Value == value {
			return true
		}
	}
	return false
}

func TestEmptyBatchYieldsNothing(t *testing.T) {
	a := newTestAnalyzer()
	if got := a.AnalyzeBatch("sess-1", nil); got != nil {
		t.Fatalf("empty batch produced %v", got)
	}
}

func TestHesitantCadence(t *testing.T) {
	a := newTestAnalyzer()
	got := a.AnalyzeBatch("sess-1", keysAt(0, 1000, 2100, 3300))
	if !hasInsight(got, "typing_pattern", "hesitant") {
		t.Fatalf("slow cadence not detected: %v", got)
	}
}

func TestConfidentCadence(t *testing.T) {
	a := newTestAnalyzer()
	got := a.AnalyzeBatch("sess-1", keysAt(0, 80, 170, 250, 340))
	if !hasInsight(got, "typing_pattern", "confident") {
		t.Fatalf("rapid cadence not detected: %v", got)
	}
}

func TestModerateCadenceIsSilent(t *testing.T) {
	a := newTestAnalyzer()
	got := a.AnalyzeBatch("sess-1", keysAt(0, 400, 800, 1200))
	if hasInsight(got, "typing_pattern", "hesitant") || hasInsight(got, "typing_pattern", "confident") {
		t.Fatalf("moderate cadence misclassified: %v", got)
	}
}

func TestHeavyRevisionSignalsSecondGuessing(t *testing.T) {
	a := newTestAnalyzer()
	events := []model.InteractionEvent{
		{Kind: "key", AtMs: 0},
		{Kind: "key", AtMs: 300},
		{Kind: "backspace", AtMs: 600},
		{Kind: "backspace", AtMs: 900},
		{Kind: "key", AtMs: 1200},
	}
	got := a.AnalyzeBatch("sess-1", events)
	if !hasInsight(got, "emotion", "second_guessing") {
		t.Fatalf("revision share not detected: %v", got)
	}
}

func TestLongIdleGapSignalsContemplation(t *testing.T) {
	a := newTestAnalyzer()
	events := []model.InteractionEvent{
		{Kind: "key", AtMs: 0},
		{Kind: "idle", AtMs: 7000},
		{Kind: "key", AtMs: 7200},
	}
	got := a.AnalyzeBatch("sess-1", events)
	if !hasInsight(got, "focus", "contemplative") {
		t.Fatalf("idle gap not detected: %v", got)
	}
}

func TestUnknownKindsIgnored(t *testing.T) {
	a := newTestAnalyzer()
	events := []model.InteractionEvent{
		{Kind: "pointer", AtMs: 0},
		{Kind: "gesture", AtMs: 50},
	}
	if got := a.AnalyzeBatch("sess-1", events); len(got) != 0 {
		t.Fatalf("unknown kinds produced insights: %v", got)
	}
}
