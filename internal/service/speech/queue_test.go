package speech

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zhouzirui/soulmate-widget/internal/model/speech"
)

type fakeTTS struct {
	calls atomic.Int32
	gate  chan struct{}
	err   error

	mu       sync.Mutex
	requests []speech.TTSRequest
}

func (f *fakeTTS) Synthesize(ctx context.Context, req *speech.TTSRequest) (*speech.TTSResponse, error) {
	f.calls.Add(1)
	f.mu.Lock()
	f.requests = append(f.requests, *req)
	f.mu.Unlock()
	if f.gate != nil {
		select {
		case <-f.gate:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if f.err != nil {
		return nil, f.err
	}
	return &speech.TTSResponse{AudioData: []byte("audio:" + req.Text), Format: "mp3"}, nil
}

func (f *fakeTTS) seen() []speech.TTSRequest {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]speech.TTSRequest(nil), f.requests...)
}

func TestSpoolRenderWritesOnceAndHitsCache(t *testing.T) {
	tts := &fakeTTS{}
	spool, err := NewSpool(t.TempDir(), tts, zerolog.Nop())
	require.NoError(t, err)

	req := &speech.TTSRequest{Text: "hello (Mood: 😐 Neutral)", Format: "mp3"}
	first, err := spool.Render(context.Background(), req)
	require.NoError(t, err)
	assert.False(t, first.CacheHit)
	assert.Regexp(t, `^[0-9a-f]{64}\.mp3$`, first.Name)

	data, err := os.ReadFile(first.Path)
	require.NoError(t, err)
	assert.Equal(t, "audio:hello (Mood: 😐 Neutral)", string(data))

	second, err := spool.Render(context.Background(), req)
	require.NoError(t, err)
	assert.True(t, second.CacheHit)
	assert.Equal(t, first.Name, second.Name)
	assert.Equal(t, int32(1), tts.calls.Load())

	f, _, err := spool.Open(first.Name)
	require.NoError(t, err)
	f.Close()

	leftovers, err := filepath.Glob(filepath.Join(spool.Dir(), "*.tmp-*"))
	require.NoError(t, err)
	assert.Empty(t, leftovers)
}

func TestSpoolCollapsesConcurrentRenders(t *testing.T) {
	tts := &fakeTTS{gate: make(chan struct{})}
	spool, err := NewSpool(t.TempDir(), tts, zerolog.Nop())
	require.NoError(t, err)

	var wg sync.WaitGroup
	for i := 0; i < 5; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := spool.Render(context.Background(), &speech.TTSRequest{Text: "same"})
			assert.NoError(t, err)
		}()
	}

	require.Eventually(t, func() bool { return tts.calls.Load() == 1 }, time.Second, 5*time.Millisecond)
	time.Sleep(20 * time.Millisecond)
	close(tts.gate)
	wg.Wait()

	assert.Equal(t, int32(1), tts.calls.Load())
}

func TestSpoolOpenRejectsForeignNames(t *testing.T) {
	spool, err := NewSpool(t.TempDir(), &fakeTTS{}, zerolog.Nop())
	require.NoError(t, err)

	for _, name := range []string{"../config.yaml", "abc.mp3", ""} {
		_, _, err := spool.Open(name)
		assert.ErrorIs(t, err, ErrBadSpoolName, name)
	}
}

type recordingPlayer struct {
	mu    sync.Mutex
	paths []string
	gate  chan struct{}
}

func (p *recordingPlayer) Play(ctx context.Context, path string) error {
	p.mu.Lock()
	p.paths = append(p.paths, path)
	p.mu.Unlock()
	if p.gate != nil {
		select {
		case <-p.gate:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return nil
}

func (p *recordingPlayer) played() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.paths)
}

func TestQueueSpeaksInOrderOneAtATime(t *testing.T) {
	tts := &fakeTTS{}
	spool, err := NewSpool(t.TempDir(), tts, zerolog.Nop())
	require.NoError(t, err)

	player := &recordingPlayer{gate: make(chan struct{})}
	queue := NewQueue(spool, player, QueueOptions{Voice: "en_female_skye_emo_v2_mars_bigtts", Emotion: true}, zerolog.Nop())

	delivered := make(chan speech.Utterance, 3)
	queue.OnDelivered(func(u speech.Utterance) { delivered <- u })

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- queue.Run(ctx) }()

	queue.Speak("first")
	queue.Speak("   ")
	queue.Speak("Don't worry, I'm here with you.")
	queue.Speak("third")

	first := <-delivered
	assert.Equal(t, "first", first.Text)
	assert.NotEmpty(t, first.Audio)

	// 第一条仍在播放，后续条目保持排队
	time.Sleep(20 * time.Millisecond)
	assert.Equal(t, 1, player.played())
	assert.Equal(t, 3, queue.Pending())

	close(player.gate)
	second := <-delivered
	third := <-delivered
	assert.Equal(t, "Don't worry, I'm here with you.", second.Text)
	assert.Equal(t, "comfort", second.Emotion)
	assert.Equal(t, "third", third.Text)

	requests := tts.seen()
	require.Len(t, requests, 3)
	assert.Equal(t, "comfort", requests[1].Emotion)
	assert.Empty(t, requests[0].Emotion)

	cancel()
	require.NoError(t, <-done)
	queue.Speak("after shutdown")
	assert.Equal(t, 0, queue.Pending())
}

func TestQueueSurvivesSynthesisFailure(t *testing.T) {
	tts := &fakeTTS{err: errors.New("quota exceeded")}
	spool, err := NewSpool(t.TempDir(), tts, zerolog.Nop())
	require.NoError(t, err)

	queue := NewQueue(spool, nil, QueueOptions{}, zerolog.Nop())
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go queue.Run(ctx)

	queue.Speak("one")
	queue.Speak("two")

	require.Eventually(t, func() bool { return tts.calls.Load() == 2 && queue.Pending() == 0 }, time.Second, 5*time.Millisecond)
}

func TestComputeEmotionParameters(t *testing.T) {
	label, scale := EmotionFor("en_male_glen_emo_v2_mars_bigtts", "Wow!!! That is incredible news")
	assert.Equal(t, "excited", label)
	assert.GreaterOrEqual(t, scale, float32(1.5))

	label, _ = EmotionFor("en_male_adam", "Wow!!! That is incredible news")
	assert.Empty(t, label, "voice without emotion support")

	label, _ = EmotionFor("en_male_glen_emo_v2_mars_bigtts", "The meeting is at noon.")
	assert.Empty(t, label, "neutral text")
}
