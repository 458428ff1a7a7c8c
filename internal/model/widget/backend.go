package widget

import "encoding/json"

// ChatRequest is the body of POST /chat.
type ChatRequest struct {
	Message string `json:"message"`
}

// ChatResponse carries the backend reply. Both fields may be absent.
type ChatResponse struct {
	Reply   string `json:"reply,omitempty"`
	Emotion string `json:"emotion,omitempty"`
}

// JournalRequest is the body of POST /journal.
type JournalRequest struct {
	Entry string `json:"entry"`
}

// JournalAck is what the backend echoes after persisting an entry. Only the
// status is read, and only for logging; the rest stays raw.
type JournalAck struct {
	Status string          `json:"status,omitempty"`
	Entry  json.RawMessage `json:"entry,omitempty"`
}

// SummaryView is the GET /summary snapshot. Fields are kept as raw JSON so any
// value the backend sends can be rendered as-is; a nil field was absent.
type SummaryView struct {
	MoodSummary json.RawMessage `json:"mood_summary,omitempty"`
	Entries     json.RawMessage `json:"entries,omitempty"`
}

// WellnessView is the GET /wellness snapshot. A truthy Status replaces the
// score line entirely.
type WellnessView struct {
	Status         json.RawMessage `json:"status,omitempty"`
	WellnessScore  json.RawMessage `json:"wellness_score,omitempty"`
	LonelinessRisk json.RawMessage `json:"loneliness_risk,omitempty"`
}
