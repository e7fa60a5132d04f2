// Package events provides the in-process job event bus.
package events

import "time"

// EventType represents different event types
type EventType string

const (
	// JobRejected is emitted when a trigger arrives while a job is running.
	JobRejected EventType = "JOB_REJECTED"
	// JobStarted is emitted once the lock is held and the request is built.
	JobStarted EventType = "JOB_STARTED"
	// JobFinished is emitted after the terminal notification and lock release.
	JobFinished EventType = "JOB_FINISHED"
	// JobArchived is emitted when the output directory was uploaded.
	JobArchived EventType = "JOB_ARCHIVED"
)

// AllTypes lists every event type the bus carries.
var AllTypes = []EventType{JobRejected, JobStarted, JobFinished, JobArchived}

// Event represents a system event with typed data
type Event struct {
	Type      EventType              `json:"type"`
	Timestamp time.Time              `json:"timestamp"`
	Data      map[string]interface{} `json:"data"`
	Module    string                 `json:"module"`
}

// EventData is implemented by the typed payloads.
type EventData interface {
	EventType() EventType
}

// JobRejectedData contains data for JobRejected events
type JobRejectedData struct {
	Trigger   string `json:"trigger"`
	ChannelID string `json:"channel_id,omitempty"`
	UserID    string `json:"user_id,omitempty"`
}

// EventType returns the event type for JobRejectedData
func (d *JobRejectedData) EventType() EventType { return JobRejected }

// JobStartedData contains data for JobStarted events
type JobStartedData struct {
	RequestID string    `json:"request_id"`
	Trigger   string    `json:"trigger"`
	OutputDir string    `json:"output_dir"`
	StartedAt time.Time `json:"started_at"`
}

// EventType returns the event type for JobStartedData
func (d *JobStartedData) EventType() EventType { return JobStarted }

// JobFinishedData contains data for JobFinished events
type JobFinishedData struct {
	RequestID  string `json:"request_id"`
	Trigger    string `json:"trigger"`
	Result     string `json:"result"`
	Category   string `json:"category,omitempty"`
	ExitCode   int    `json:"exit_code"`
	DurationMs int64  `json:"duration_ms"`
	Delivered  bool   `json:"delivered"`
}

// EventType returns the event type for JobFinishedData
func (d *JobFinishedData) EventType() EventType { return JobFinished }

// JobArchivedData contains data for JobArchived events
type JobArchivedData struct {
	RequestID string `json:"request_id"`
	Key       string `json:"key"`
	SizeBytes int64  `json:"size_bytes"`
}

// EventType returns the event type for JobArchivedData
func (d *JobArchivedData) EventType() EventType { return JobArchived }
