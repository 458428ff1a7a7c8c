package widget

import "time"

// Speaker identifies who produced a transcript line.
type Speaker string

const (
	User Speaker = "User"
	Bot  Speaker = "Bot"
)

// TranscriptEntry is one rendered line of the chat view. Entries are only
// ever appended.
type TranscriptEntry struct {
	ID        string    `json:"id"`
	Speaker   Speaker   `json:"speaker"`
	Text      string    `json:"text"`
	CreatedAt time.Time `json:"createdAt"`
}

// Line renders the entry the way the transcript displays it.
func (e TranscriptEntry) Line() string {
	return string(e.Speaker) + ": " + e.Text
}
