package widget

import (
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/zhouzirui/soulmate-widget/internal/model/widget"
)

const subscriberBuffer = 64

// View holds every region of the widget. The transcript only grows; the other
// regions are overwritten in place. Each change is published to subscribers.
type View struct {
	mu         sync.Mutex
	transcript []widget.TranscriptEntry
	input      string
	journal    string
	summary    string
	wellness   string
	notice     string

	subs   map[int]chan widget.Event
	nextID int
}

// NewView returns an empty view.
func NewView() *View {
	return &View{subs: make(map[int]chan widget.Event)}
}

// Append adds a transcript line and scrolls to it.
func (v *View) Append(speaker widget.Speaker, text string) widget.TranscriptEntry {
	entry := widget.TranscriptEntry{
		ID:        uuid.NewString(),
		Speaker:   speaker,
		Text:      text,
		CreatedAt: time.Now(),
	}

	v.mu.Lock()
	v.transcript = append(v.transcript, entry)
	v.publishLocked(widget.Event{Kind: widget.EventTranscript, Entry: &entry})
	v.mu.Unlock()
	return entry
}

// SetInput overwrites the chat input field.
func (v *View) SetInput(text string) { v.set(&v.input, widget.EventInput, text) }

// SetJournal overwrites the journal field.
func (v *View) SetJournal(text string) { v.set(&v.journal, widget.EventJournal, text) }

// SetSummary overwrites the summary region.
func (v *View) SetSummary(text string) { v.set(&v.summary, widget.EventSummary, text) }

// SetWellness overwrites the wellness region.
func (v *View) SetWellness(text string) { v.set(&v.wellness, widget.EventWellness, text) }

// Notify shows a notice the page has to acknowledge.
func (v *View) Notify(text string) { v.set(&v.notice, widget.EventNotice, text) }

// AnnounceSpeech tells subscribers a synthesized clip is ready.
func (v *View) AnnounceSpeech(name string) {
	v.mu.Lock()
	v.publishLocked(widget.Event{Kind: widget.EventSpeech, Text: name})
	v.mu.Unlock()
}

// Input returns the chat input field.
func (v *View) Input() string {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.input
}

// Journal returns the journal field.
func (v *View) Journal() string {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.journal
}

// Snapshot copies the whole view.
func (v *View) Snapshot() widget.Snapshot {
	v.mu.Lock()
	defer v.mu.Unlock()

	transcript := make([]widget.TranscriptEntry, len(v.transcript))
	copy(transcript, v.transcript)
	return widget.Snapshot{
		Transcript:  transcript,
		ScrollIndex: len(transcript) - 1,
		Input:       v.input,
		Journal:     v.journal,
		Summary:     v.summary,
		Wellness:    v.wellness,
		Notice:      v.notice,
	}
}

// Subscribe registers for change events. Slow subscribers miss events rather
// than stall the view; cancel must be called to release the channel.
func (v *View) Subscribe() (<-chan widget.Event, func()) {
	ch := make(chan widget.Event, subscriberBuffer)

	v.mu.Lock()
	id := v.nextID
	v.nextID++
	v.subs[id] = ch
	v.mu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			v.mu.Lock()
			delete(v.subs, id)
			v.mu.Unlock()
			close(ch)
		})
	}
}

func (v *View) set(field *string, kind widget.EventKind, text string) {
	v.mu.Lock()
	*field = text
	v.publishLocked(widget.Event{Kind: kind, Text: text})
	v.mu.Unlock()
}

func (v *View) publishLocked(ev widget.Event) {
	for _, ch := range v.subs {
		select {
		case ch <- ev:
		default:
		}
	}
}
