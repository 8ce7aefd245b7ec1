package model

import (
	"fmt"
	"strings"
	"time"
)

type JobStatus string

const (
	JobStatusProcessing JobStatus = "processing"
	JobStatusCompleted  JobStatus = "completed"
	JobStatusFailed     JobStatus = "failed"
	JobStatusCancelled  JobStatus = "cancelled"
)

// Terminal reports whether a status is absorbing.
func (s JobStatus) Terminal() bool {
	switch s {
	case JobStatusCompleted, JobStatusFailed, JobStatusCancelled:
		return true
	default:
		return false
	}
}

// CardItem is one unit of work within a reading: a drawn card at a fixed
// spread position. Name and Meaning come from static card data.
type CardItem struct {
	Position int    `json:"position"`
	Name     string `json:"name"`
	Meaning  string `json:"meaning"`
	Reversed bool   `json:"reversed"`
}

// FallbackText builds the deterministic substitute interpretation used when
// the generation call times out or errors. It depends only on static card
// data so retries produce identical output.
func (c CardItem) FallbackText() string {
	name := c.Name
	if c.Reversed {
		name += " (reversed)"
	}
	meaning := strings.TrimSpace(c.Meaning)
	if meaning == "" {
		return fmt.Sprintf("%s holds its counsel for now; sit with the card and return to it later.", name)
	}
	return fmt.Sprintf("%s: %s", name, meaning)
}

// ItemResult is one completed card interpretation. Results are append-only
// and always form a prefix of the job's items in index order.
type ItemResult struct {
	ItemIndex    int       `json:"itemIndex"`
	Text         string    `json:"text"`
	UsedFallback bool      `json:"usedFallback"`
	CompletedAt  time.Time `json:"completedAt"`
}

// ReadingJob is one run of the progressive pipeline over a fixed, ordered
// draw of cards. The job id and the owning connection session id are
// distinct identifier spaces.
type ReadingJob struct {
	ID         string
	SessionID  string
	Question   string
	Category   string
	SpreadType string
	Items      []CardItem

	Status      JobStatus
	ItemResults []ItemResult
	FinalResult string
	FailReason  string

	CreatedAt          time.Time
	UpdatedAt          time.Time
	CompletedAt        *time.Time
	ProcessingDuration time.Duration
}

// Progress is the client-facing view of how far a job has advanced. Total
// counts one extra step for the final summary when the reading has more
// than one card.
type Progress struct {
	Current    int       `json:"current"`
	Total      int       `json:"total"`
	Percentage int       `json:"percentage"`
	Status     JobStatus `json:"status"`
}

// ProgressSnapshot derives the current progress from job state.
func (j *ReadingJob) ProgressSnapshot() Progress {
	total := len(j.Items)
	if len(j.Items) > 1 {
		total++
	}
	current := len(j.ItemResults)
	if j.Status == JobStatusCompleted && j.FinalResult != "" {
		current++
	}
	pct := 0
	if total > 0 {
		pct = current * 100 / total
	}
	return Progress{Current: current, Total: total, Percentage: pct, Status: j.Status}
}
