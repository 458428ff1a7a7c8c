package speech

import "time"

// ASRResponse 语音识别响应
type ASRResponse struct {
	SessionID  string    `json:"sessionId"`
	Text       string    `json:"text"`
	Confidence float64   `json:"confidence"`
	Duration   int64     `json:"duration"` // milliseconds
	RequestID  string    `json:"requestId,omitempty"`
	CreatedAt  time.Time `json:"createdAt"`
}

// TTSResponse 语音合成响应
type TTSResponse struct {
	SessionID string    `json:"sessionId"`
	AudioData []byte    `json:"-"`
	Duration  int64     `json:"duration"` // milliseconds
	Format    string    `json:"format"`
	RequestID string    `json:"requestId,omitempty"`
	CreatedAt time.Time `json:"createdAt"`
}

// Utterance is one spoken line waiting in, or delivered from, the speech queue.
type Utterance struct {
	ID       string    `json:"id"`
	Text     string    `json:"text"`
	Emotion  string    `json:"emotion,omitempty"`
	Audio    string    `json:"audio,omitempty"` // spool file name once delivered
	CacheHit bool      `json:"cacheHit,omitempty"`
	QueuedAt time.Time `json:"queuedAt"`
}
