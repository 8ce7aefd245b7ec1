package model

// InteractionEvent is one low-level client interaction sample (keystroke,
// deletion, pointer move, idle ping). Batches arrive through the gateway
// and are only ever read by the analyzer; unknown kinds are ignored.
type InteractionEvent struct {
	Kind string `json:"kind"` // key | backspace | pointer | idle
	AtMs int64  `json:"atMs"` // client-relative milliseconds
}

// Insight is a derived signal produced from an interaction batch.
type Insight struct {
	Signal     string  `json:"signal"` // typing_pattern | emotion | focus
	Value      string  `json:"value"`
	Confidence float64 `json:"confidence"`
}
