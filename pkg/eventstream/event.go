// Package eventstream defines the transport-neutral events docqa emits and
// the publishers that deliver them.
package eventstream

import (
	"time"

	"github.com/google/uuid"
)

const (
	// SchemaVersionV1 is the first version of the event payload schema.
	SchemaVersionV1 = 1

	// EventTypeIndexBuilt is emitted after an ingestion run persists an index.
	EventTypeIndexBuilt = "docqa.index.built"

	// EventTypeQuestionAnswered is emitted after an answer is returned.
	EventTypeQuestionAnswered = "docqa.question.answered"
)

// Event is the envelope shared by every event type.
type Event struct {
	SchemaVersion int       `json:"schema_version"`
	EventType     string    `json:"event_type"`
	EventID       string    `json:"event_id"`
	EmittedAt     time.Time `json:"emitted_at"`
	Payload       any       `json:"payload"`
}

// NewEvent stamps payload with a fresh ID and the current time.
func NewEvent(eventType string, payload any) *Event {
	return &Event{
		SchemaVersion: SchemaVersionV1,
		EventType:     eventType,
		EventID:       uuid.NewString(),
		EmittedAt:     time.Now().UTC(),
		Payload:       payload,
	}
}

// IndexBuiltPayload summarizes a finished ingestion run.
type IndexBuiltPayload struct {
	DocumentsRoot string   `json:"documents_root"`
	Documents     int      `json:"documents"`
	Chunks        int      `json:"chunks"`
	SkippedFiles  []string `json:"skipped_files,omitempty"`
	VectorStore   string   `json:"vector_store"`
	DurationMs    int64    `json:"duration_ms"`
}

// SourceRef identifies the origin of a retrieved chunk.
type SourceRef struct {
	Source string `json:"source"`
	Page   *int   `json:"page,omitempty"`
}

// QuestionAnsweredPayload describes one answered question.
type QuestionAnsweredPayload struct {
	Question   string      `json:"question"`
	Sources    []SourceRef `json:"sources"`
	DurationMs int64       `json:"duration_ms"`
}
