package carousel

import "time"

// EventType - 진행 이벤트 종류
type EventType string

const (
	EventRunStarted        EventType = "run_started"
	EventStageStarted      EventType = "stage_started"
	EventStageCompleted    EventType = "stage_completed"
	EventFallbackTriggered EventType = "fallback_triggered"
	EventRunFailed         EventType = "run_failed"
	EventRunCompleted      EventType = "run_completed"
)

const (
	StageBagAnalysis = "bag_analysis"
	StageFrame1      = "frame1"
	StageFrame2      = "frame2"
	StageFrame3      = "frame3"
	StageFrame4      = "frame4"
)

// Event - 파이프라인 진행 상황
type Event struct {
	Type     EventType `json:"type"`
	RunID    string    `json:"runId"`
	Stage    string    `json:"stage,omitempty"`
	Frame    int       `json:"frame,omitempty"`
	Provider string    `json:"provider,omitempty"`
	Message  string    `json:"message,omitempty"`
	Time     time.Time `json:"time"`
}

// Reporter receives progress events. Implementations must not block for long.
type Reporter interface {
	Report(Event)
}

// ReporterFunc adapts a function to Reporter.
type ReporterFunc func(Event)

func (f ReporterFunc) Report(e Event) { f(e) }

type nopReporter struct{}

func (nopReporter) Report(Event) {}
