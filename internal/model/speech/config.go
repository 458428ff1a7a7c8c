package speech

import "time"

// SpeechConfig 语音服务配置
type SpeechConfig struct {
	// 火山引擎凭证
	AppID          string `json:"appId"`
	AccessToken    string `json:"accessToken"`
	ConcurrentMode bool   `json:"concurrentMode"` // ASR并发版（false为小时版）

	ASRLanguage string `json:"asrLanguage"`

	TTSVoice    string  `json:"ttsVoice"`
	TTSSpeed    float32 `json:"ttsSpeed"`
	TTSVolume   float32 `json:"ttsVolume"`
	TTSLanguage string  `json:"ttsLanguage"`
	TTSFormat   string  `json:"ttsFormat"`

	// Timeout 限制单次合成或识别的总时长
	Timeout time.Duration `json:"timeout"`
}
