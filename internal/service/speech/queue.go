package speech

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/zhouzirui/soulmate-widget/internal/logging"
	"github.com/zhouzirui/soulmate-widget/internal/model/speech"
)

// Renderer 把一段文本变成可播放的文件
type Renderer interface {
	Render(ctx context.Context, req *speech.TTSRequest) (SpoolResult, error)
}

// QueueOptions 队列的合成参数
type QueueOptions struct {
	Voice    string
	Language string
	Format   string
	Speed    float32
	Volume   float32
	// Emotion 为 false 时不根据文本推断情绪
	Emotion bool
}

// Queue 语音输出队列。Speak 只负责入队，单个 worker 按先后顺序逐条合成并播放，
// 上一条播完之前后续条目一直排队。
type Queue struct {
	renderer Renderer
	player   Player
	opts     QueueOptions
	logger   zerolog.Logger

	mu          sync.Mutex
	items       []speech.Utterance
	busy        bool
	closed      bool
	onDelivered func(speech.Utterance)

	wake chan struct{}
}

// NewQueue 创建队列；player 为 nil 时只落盘不播放
func NewQueue(renderer Renderer, player Player, opts QueueOptions, logger zerolog.Logger) *Queue {
	if opts.Format == "" {
		opts.Format = "mp3"
	}
	return &Queue{
		renderer: renderer,
		player:   player,
		opts:     opts,
		logger:   logging.Component(logger, "speech-queue"),
		wake:     make(chan struct{}, 1),
	}
}

// OnDelivered 注册每条语音完成后的回调，在 worker goroutine 中调用
func (q *Queue) OnDelivered(fn func(speech.Utterance)) {
	q.mu.Lock()
	q.onDelivered = fn
	q.mu.Unlock()
}

// Speak 入队，不等待合成
func (q *Queue) Speak(text string) {
	if strings.TrimSpace(text) == "" {
		return
	}

	u := speech.Utterance{ID: uuid.NewString(), Text: text, QueuedAt: time.Now()}

	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		q.logger.Debug().Msg("queue closed, dropping utterance")
		return
	}
	q.items = append(q.items, u)
	q.mu.Unlock()

	select {
	case q.wake <- struct{}{}:
	default:
	}
}

// Pending 尚未完成的条目数，包括正在处理的一条
func (q *Queue) Pending() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	n := len(q.items)
	if q.busy {
		n++
	}
	return n
}

// Run 处理队列直到 ctx 取消，剩余条目被丢弃
func (q *Queue) Run(ctx context.Context) error {
	defer func() {
		q.mu.Lock()
		q.closed = true
		dropped := len(q.items)
		q.items = nil
		q.mu.Unlock()
		if dropped > 0 {
			q.logger.Info().Int("dropped", dropped).Msg("speech queue stopped")
		}
	}()

	for {
		u, ok := q.next()
		if !ok {
			select {
			case <-ctx.Done():
				return nil
			case <-q.wake:
				continue
			}
		}

		q.deliver(ctx, u)

		q.mu.Lock()
		q.busy = false
		q.mu.Unlock()

		if ctx.Err() != nil {
			return nil
		}
	}
}

func (q *Queue) next() (speech.Utterance, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if len(q.items) == 0 {
		return speech.Utterance{}, false
	}
	u := q.items[0]
	q.items[0] = speech.Utterance{}
	q.items = q.items[1:]
	q.busy = true
	return u, true
}

func (q *Queue) deliver(ctx context.Context, u speech.Utterance) {
	req := &speech.TTSRequest{
		SessionID: u.ID,
		Text:      u.Text,
		Voice:     q.opts.Voice,
		Speed:     q.opts.Speed,
		Volume:    q.opts.Volume,
		Format:    q.opts.Format,
		Language:  q.opts.Language,
	}
	if q.opts.Emotion {
		req.Emotion, req.EmotionScale = EmotionFor(q.opts.Voice, u.Text)
	}

	res, err := q.renderer.Render(ctx, req)
	if err != nil {
		q.logger.Error().Err(err).Str("utterance", u.ID).Msg("speech synthesis failed")
		return
	}

	u.Emotion = req.Emotion
	u.Audio = res.Name
	u.CacheHit = res.CacheHit
	q.logger.Debug().Str("utterance", u.ID).Str("file", res.Name).Bool("cache_hit", res.CacheHit).Msg("speech ready")

	q.mu.Lock()
	fn := q.onDelivered
	q.mu.Unlock()
	if fn != nil {
		fn(u)
	}

	if q.player != nil {
		if err := q.player.Play(ctx, res.Path); err != nil && ctx.Err() == nil {
			q.logger.Warn().Err(err).Str("file", res.Name).Msg("speech playback failed")
		}
	}
}
