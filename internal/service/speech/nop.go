package speech

import (
	"context"
	"time"

	"github.com/zhouzirui/soulmate-widget/internal/model/speech"
)

// Nop 不发声的语音输出
type Nop struct{}

// Speak 丢弃文本
func (Nop) Speak(string) {}

// StaticRecognizer 不联网，总是返回固定文本。Text 为空时表现为没有听到内容，
// Err 非空时直接返回该错误。
type StaticRecognizer struct {
	Text string
	Err  error
}

// Transcribe 返回预设结果
func (r StaticRecognizer) Transcribe(ctx context.Context, req *speech.ASRRequest) (*speech.ASRResponse, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if r.Err != nil {
		return nil, r.Err
	}
	return &speech.ASRResponse{
		SessionID:  req.SessionID,
		Text:       r.Text,
		Confidence: estimateConfidence(r.Text),
		CreatedAt:  time.Now(),
	}, nil
}
