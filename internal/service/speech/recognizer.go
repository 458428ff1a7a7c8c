package speech

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"github.com/zhouzirui/soulmate-widget/internal/logging"
	"github.com/zhouzirui/soulmate-widget/internal/model/speech"
)

const (
	asrEndpoint = "wss://openspeech.bytedance.com/api/v3/sauc/bigmodel_nostream"

	// DefaultLocale 语音输入默认识别语言
	DefaultLocale = "en-US"

	// 16kHz 16bit 单声道，每包约 200ms
	asrChunkSize = 6400
)

// ErrNoAudio 上传的音频为空
var ErrNoAudio = errors.New("no audio data to send")

// Recognizer 火山引擎 ASR websocket 客户端。每次 Transcribe 都是一次新的识别会话。
type Recognizer struct {
	config        *speech.SpeechConfig
	dialer        *websocket.Dialer
	endpoint      string
	chunkInterval time.Duration
	logger        zerolog.Logger
}

type asrUtterance struct {
	Text     string `json:"text"`
	Definite bool   `json:"definite"`
}

type asrServerMessage struct {
	Code     int    `json:"code"`
	Message  string `json:"message"`
	Sequence int    `json:"sequence"`
	Result   struct {
		Text       string         `json:"text"`
		Utterances []asrUtterance `json:"utterances,omitempty"`
	} `json:"result,omitempty"`
	AudioInfo struct {
		Duration int64 `json:"duration"`
	} `json:"audio_info,omitempty"`
}

type asrRequest struct {
	User struct {
		UID string `json:"uid,omitempty"`
	} `json:"user,omitempty"`
	Audio struct {
		Language string `json:"language,omitempty"`
		Format   string `json:"format"`
		Codec    string `json:"codec,omitempty"`
		Rate     int    `json:"rate,omitempty"`
		Bits     int    `json:"bits,omitempty"`
		Channel  int    `json:"channel,omitempty"`
	} `json:"audio"`
	Request struct {
		ModelName      string `json:"model_name"`
		EnableITN      bool   `json:"enable_itn,omitempty"`
		EnablePunc     bool   `json:"enable_punc,omitempty"`
		ShowUtterances bool   `json:"show_utterances,omitempty"`
		ResultType     string `json:"result_type,omitempty"`
		EndWindowSize  int    `json:"end_window_size,omitempty"`
	} `json:"request"`
}

// NewRecognizer 创建 ASR 客户端
func NewRecognizer(config *speech.SpeechConfig, logger zerolog.Logger) *Recognizer {
	return &Recognizer{
		config:        config,
		dialer:        &websocket.Dialer{HandshakeTimeout: 30 * time.Second},
		endpoint:      asrEndpoint,
		chunkInterval: 200 * time.Millisecond,
		logger:        logging.Component(logger, "asr"),
	}
}

// Transcribe 上传一段录音并返回最终识别文本
func (c *Recognizer) Transcribe(ctx context.Context, req *speech.ASRRequest) (*speech.ASRResponse, error) {
	appID, token, err := resolveCredentials(c.config)
	if err != nil {
		return nil, err
	}
	if req.AudioData == nil {
		return nil, ErrNoAudio
	}

	// 先读完音频，空录音不建连
	audio, err := io.ReadAll(req.AudioData)
	if err != nil {
		return nil, fmt.Errorf("read audio: %w", err)
	}
	if len(audio) == 0 {
		return nil, ErrNoAudio
	}

	if c.config.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.config.Timeout)
		defer cancel()
	}

	sessionID := strings.TrimSpace(req.SessionID)
	if sessionID == "" {
		sessionID = uuid.NewString()
	}

	resourceID := "volc.bigasr.sauc.duration"
	if c.config.ConcurrentMode {
		resourceID = "volc.bigasr.sauc.concurrent"
	}

	header := http.Header{}
	header.Set("X-Api-App-Key", appID)
	header.Set("X-Api-Access-Key", token)
	header.Set("X-Api-Resource-Id", resourceID)
	header.Set("X-Api-Connect-Id", sessionID)

	conn, resp, err := c.dialer.DialContext(ctx, c.endpoint, header)
	if err != nil {
		return nil, fmt.Errorf("connect asr websocket: %w", err)
	}
	defer conn.Close()

	if resp != nil {
		if logid := resp.Header.Get("X-Tt-Logid"); logid != "" {
			c.logger.Debug().Str("logid", logid).Str("session", sessionID).Msg("asr connected")
		}
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	stop := context.AfterFunc(ctx, func() { conn.Close() })
	defer stop()

	if err := c.writeRequest(conn, c.buildRequest(req, sessionID)); err != nil {
		return nil, err
	}

	// 发送与接收并发进行，服务端提前报错时可以停止发送
	sendErr := make(chan error, 1)
	go func() {
		sendErr <- c.sendAudio(ctx, conn, audio)
	}()

	result, err := c.receive(ctx, conn, sessionID)
	if err != nil {
		// 服务端报错后连接随即关闭，发送侧的写错误只是连带结果
		select {
		case serr := <-sendErr:
			if serr != nil {
				c.logger.Debug().Err(serr).Str("session", sessionID).Msg("audio upload aborted")
			}
		default:
		}
		return nil, err
	}
	return result, nil
}

func (c *Recognizer) buildRequest(req *speech.ASRRequest, sessionID string) *asrRequest {
	body := &asrRequest{}
	body.User.UID = sessionID

	body.Audio.Format = req.Format
	if body.Audio.Format == "" {
		body.Audio.Format = "wav"
	}

	body.Audio.Language = strings.TrimSpace(req.Language)
	if body.Audio.Language == "" {
		body.Audio.Language = strings.TrimSpace(c.config.ASRLanguage)
	}
	if body.Audio.Language == "" {
		body.Audio.Language = DefaultLocale
	}

	body.Audio.Codec = "raw"
	body.Audio.Rate = 16000
	body.Audio.Bits = 16
	body.Audio.Channel = 1

	body.Request.ModelName = "bigmodel"
	body.Request.EnableITN = true
	body.Request.EnablePunc = true
	body.Request.ShowUtterances = true
	body.Request.ResultType = "full"
	body.Request.EndWindowSize = 800
	return body
}

func (c *Recognizer) writeRequest(conn *websocket.Conn, body *asrRequest) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("marshal asr request: %w", err)
	}
	compressed, err := compress(payload, GzipCompression)
	if err != nil {
		return fmt.Errorf("compress asr request: %w", err)
	}
	frame, err := NewFullClientRequest(compressed, GzipCompression).MarshalBinary()
	if err != nil {
		return fmt.Errorf("encode asr request: %w", err)
	}
	if err := conn.WriteMessage(websocket.BinaryMessage, frame); err != nil {
		return fmt.Errorf("send asr request: %w", err)
	}
	return nil
}

func (c *Recognizer) sendAudio(ctx context.Context, conn *websocket.Conn, audio []byte) error {
	// 首帧占用序号 1
	sequence := int32(2)

	for i := 0; i < len(audio); i += asrChunkSize {
		end := min(i+asrChunkSize, len(audio))
		last := end >= len(audio)

		chunk, err := compress(audio[i:end], GzipCompression)
		if err != nil {
			return fmt.Errorf("compress audio chunk: %w", err)
		}
		frame, err := NewAudioRequest(chunk, sequence, last, GzipCompression).MarshalBinary()
		if err != nil {
			return fmt.Errorf("encode audio chunk: %w", err)
		}
		if err := conn.WriteMessage(websocket.BinaryMessage, frame); err != nil {
			return fmt.Errorf("write audio chunk: %w", err)
		}
		sequence++

		if last || c.chunkInterval <= 0 {
			continue
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(c.chunkInterval):
		}
	}
	return nil
}

func (c *Recognizer) receive(ctx context.Context, conn *websocket.Conn, sessionID string) (*speech.ASRResponse, error) {
	var (
		text     string
		duration int64
	)

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			return nil, fmt.Errorf("read asr response: %w", err)
		}

		msg, err := ParseFrame(data)
		if err != nil {
			return nil, fmt.Errorf("decode asr frame: %w", err)
		}

		switch msg.Type {
		case ErrorMessage:
			payload, _ := msg.DecodedPayload()
			return nil, fmt.Errorf("asr error %d: %s", msg.ErrorCode, string(payload))

		case FullServerResponse:
			payload, err := msg.DecodedPayload()
			if err != nil {
				return nil, fmt.Errorf("decompress asr payload: %w", err)
			}

			var serverResp asrServerMessage
			if err := json.Unmarshal(payload, &serverResp); err != nil {
				c.logger.Warn().Err(err).Msg("unparseable asr payload")
				continue
			}
			if serverResp.Code != 0 && serverResp.Code != 20000000 {
				return nil, fmt.Errorf("asr api error %d: %s", serverResp.Code, serverResp.Message)
			}

			candidate := serverResp.Result.Text
			if candidate == "" {
				candidate = joinUtterances(serverResp.Result.Utterances)
			}
			if candidate != "" {
				text = candidate
			}
			if serverResp.AudioInfo.Duration > 0 {
				duration = serverResp.AudioInfo.Duration
			}

			if msg.IsLast() || serverResp.Sequence < 0 {
				return &speech.ASRResponse{
					SessionID:  sessionID,
					Text:       text,
					Confidence: estimateConfidence(text),
					Duration:   duration,
					RequestID:  sessionID,
					CreatedAt:  time.Now(),
				}, nil
			}
		}
	}
}

func joinUtterances(utterances []asrUtterance) string {
	parts := make([]string, 0, len(utterances))
	for _, u := range utterances {
		if t := strings.TrimSpace(u.Text); t != "" {
			parts = append(parts, t)
		}
	}
	return strings.Join(parts, " ")
}

func estimateConfidence(text string) float64 {
	if strings.TrimSpace(text) == "" {
		return 0
	}
	return 0.95
}
