package widget

// Snapshot is a copy of every region of the widget at one instant.
type Snapshot struct {
	Transcript  []TranscriptEntry `json:"transcript"`
	ScrollIndex int               `json:"scrollIndex"`
	Input       string            `json:"input"`
	Journal     string            `json:"journal"`
	Summary     string            `json:"summary"`
	Wellness    string            `json:"wellness"`
	Notice      string            `json:"notice,omitempty"`
}

// EventKind names what changed in the view.
type EventKind string

const (
	EventTranscript EventKind = "transcript"
	EventInput      EventKind = "input"
	EventJournal    EventKind = "journal"
	EventSummary    EventKind = "summary"
	EventWellness   EventKind = "wellness"
	EventNotice     EventKind = "notice"
	EventSpeech     EventKind = "speech"
)

// Event is published to subscribers whenever a region changes.
type Event struct {
	Kind  EventKind        `json:"kind"`
	Entry *TranscriptEntry `json:"entry,omitempty"`
	Text  string           `json:"text,omitempty"`
}
