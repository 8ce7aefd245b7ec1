// Package event defines the outbound messages a reading job or the
// interaction analyzer can emit toward a connected client. Each message is
// a distinct type carrying its own payload; routing uses the type tag
// rather than inspecting payload fields.
package event

import "arcana-reading-server/internal/domain/model"

type Type string

const (
	TypeSessionInitialized Type = "session_initialized"
	TypeJobStarted         Type = "job_started"
	TypeItemProcessing     Type = "job_item_processing"
	TypeItemResult         Type = "job_item_result"
	TypeFinalProcessing    Type = "job_final_processing"
	TypeJobCompleted       Type = "job_completed"
	TypeJobFailed          Type = "job_failed"
	TypeJobCancelled       Type = "job_cancelled"
	TypeJobCancelAck       Type = "job_cancel_ack"
	TypeInsight            Type = "insight"
	TypeError              Type = "error"
)

// Event is the closed set of outbound messages. JobRef is empty for
// session-scoped events such as insights.
type Event interface {
	EventType() Type
	JobRef() string
}

type SessionInitialized struct {
	SessionID string `json:"sessionId"`
}

func (SessionInitialized) EventType() Type { return TypeSessionInitialized }
func (SessionInitialized) JobRef() string  { return "" }

type JobStarted struct {
	JobID string `json:"jobId"`
}

func (e JobStarted) EventType() Type { return TypeJobStarted }
func (e JobStarted) JobRef() string  { return e.JobID }

// ItemProcessing announces that generation for one card is about to start,
// so the client can render a pending state before any text exists.
type ItemProcessing struct {
	JobID     string         `json:"-"`
	ItemIndex int            `json:"itemIndex"`
	Label     string         `json:"label"`
	Progress  model.Progress `json:"progress"`
}

func (e ItemProcessing) EventType() Type { return TypeItemProcessing }
func (e ItemProcessing) JobRef() string  { return e.JobID }

type ItemResult struct {
	JobID        string         `json:"-"`
	ItemIndex    int            `json:"itemIndex"`
	Text         string         `json:"text"`
	UsedFallback bool           `json:"usedFallback"`
	Progress     model.Progress `json:"progress"`
}

func (e ItemResult) EventType() Type { return TypeItemResult }
func (e ItemResult) JobRef() string  { return e.JobID }

type FinalProcessing struct {
	JobID string `json:"-"`
}

func (e FinalProcessing) EventType() Type { return TypeFinalProcessing }
func (e FinalProcessing) JobRef() string  { return e.JobID }

type JobCompleted struct {
	JobID                 string `json:"-"`
	FinalResult           string `json:"finalResult,omitempty"`
	TotalProcessingTimeMs int64  `json:"totalProcessingTimeMs"`
}

func (e JobCompleted) EventType() Type { return TypeJobCompleted }
func (e JobCompleted) JobRef() string  { return e.JobID }

type JobFailed struct {
	JobID    string `json:"-"`
	Reason   string `json:"reason"`
	CanRetry bool   `json:"canRetry"`
}

func (e JobFailed) EventType() Type { return TypeJobFailed }
func (e JobFailed) JobRef() string  { return e.JobID }

type JobCancelled struct {
	JobID string `json:"-"`
}

func (e JobCancelled) EventType() Type { return TypeJobCancelled }
func (e JobCancelled) JobRef() string  { return e.JobID }

// JobCancelAck answers a cancel command immediately; Cancelled=false means
// the job had already reached a terminal state.
type JobCancelAck struct {
	JobID     string `json:"-"`
	Cancelled bool   `json:"cancelled"`
}

func (e JobCancelAck) EventType() Type { return TypeJobCancelAck }
func (e JobCancelAck) JobRef() string  { return e.JobID }

type Insight struct {
	Insight model.Insight `json:"insight"`
}

func (Insight) EventType() Type { return TypeInsight }
func (Insight) JobRef() string  { return "" }

// Error surfaces a caller mistake (unknown session, malformed command)
// back to the requester.
type Error struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func (Error) EventType() Type { return TypeError }
func (Error) JobRef() string  { return "" }
