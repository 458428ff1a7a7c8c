package speech

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/singleflight"

	"github.com/zhouzirui/soulmate-widget/internal/logging"
	"github.com/zhouzirui/soulmate-widget/internal/model/speech"
)

// ErrBadSpoolName 文件名不是 spool 生成的格式
var ErrBadSpoolName = errors.New("invalid spool file name")

var spoolName = regexp.MustCompile(`^[0-9a-f]{64}\.(mp3|wav|ogg_opus|pcm|aac)$`)

// TTS 语音合成能力
type TTS interface {
	Synthesize(ctx context.Context, req *speech.TTSRequest) (*speech.TTSResponse, error)
}

// SpoolResult 一次渲染的结果
type SpoolResult struct {
	Name     string
	Path     string
	CacheHit bool
}

// Spool 把合成结果按内容寻址写入目录。可被多个调用方共享，并发的相同请求只合成一次；
// 宿主里只有队列的单个 worker 调用它，此时去重只靠磁盘缓存命中。
type Spool struct {
	dir    string
	tts    TTS
	logger zerolog.Logger

	sf singleflight.Group
}

// NewSpool 创建 spool 目录
func NewSpool(dir string, tts TTS, logger zerolog.Logger) (*Spool, error) {
	if strings.TrimSpace(dir) == "" {
		dir = "./cache/speech"
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create spool dir: %w", err)
	}
	return &Spool{
		dir:    dir,
		tts:    tts,
		logger: logging.Component(logger, "spool"),
	}, nil
}

// Dir 返回 spool 目录
func (s *Spool) Dir() string { return s.dir }

// Render 合成并落盘，命中缓存时不再请求 TTS
func (s *Spool) Render(ctx context.Context, req *speech.TTSRequest) (SpoolResult, error) {
	if strings.TrimSpace(req.Text) == "" {
		return SpoolResult{}, ErrEmptyText
	}

	key := cacheKey(req)
	name := key + "." + extensionFromFormat(req.Format)
	path := filepath.Join(s.dir, name)

	if fileExists(path) {
		return SpoolResult{Name: name, Path: path, CacheHit: true}, nil
	}

	v, err, _ := s.sf.Do(key, func() (any, error) {
		if fileExists(path) {
			return SpoolResult{Name: name, Path: path, CacheHit: true}, nil
		}

		resp, err := s.tts.Synthesize(ctx, req)
		if err != nil {
			return SpoolResult{}, err
		}

		tmp, err := os.CreateTemp(s.dir, name+".tmp-*")
		if err != nil {
			return SpoolResult{}, fmt.Errorf("create spool temp: %w", err)
		}
		if _, err := tmp.Write(resp.AudioData); err != nil {
			tmp.Close()
			os.Remove(tmp.Name())
			return SpoolResult{}, fmt.Errorf("write spool temp: %w", err)
		}
		if err := tmp.Close(); err != nil {
			os.Remove(tmp.Name())
			return SpoolResult{}, fmt.Errorf("close spool temp: %w", err)
		}
		if err := os.Rename(tmp.Name(), path); err != nil {
			os.Remove(tmp.Name())
			return SpoolResult{}, fmt.Errorf("publish spool file: %w", err)
		}

		s.logger.Debug().Str("file", name).Int("bytes", len(resp.AudioData)).Msg("speech spooled")
		return SpoolResult{Name: name, Path: path}, nil
	})
	if err != nil {
		return SpoolResult{}, err
	}
	return v.(SpoolResult), nil
}

// Open 打开一个已生成的文件
func (s *Spool) Open(name string) (*os.File, time.Time, error) {
	if !spoolName.MatchString(name) {
		return nil, time.Time{}, ErrBadSpoolName
	}
	f, err := os.Open(filepath.Join(s.dir, name))
	if err != nil {
		return nil, time.Time{}, err
	}
	st, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, time.Time{}, err
	}
	return f, st.ModTime(), nil
}

func cacheKey(req *speech.TTSRequest) string {
	raw := strings.Join([]string{
		req.Voice,
		req.Language,
		req.Format,
		fmt.Sprintf("%.3f|%.3f", req.Speed, req.Volume),
		req.Emotion,
		fmt.Sprintf("%.2f", req.EmotionScale),
		req.Text,
	}, "|")
	sum := sha256.Sum256([]byte(raw))
	return hex.EncodeToString(sum[:])
}

func extensionFromFormat(f string) string {
	switch strings.ToLower(strings.TrimSpace(f)) {
	case "wav":
		return "wav"
	case "ogg_opus":
		return "ogg_opus"
	case "pcm":
		return "pcm"
	case "aac":
		return "aac"
	default:
		return "mp3"
	}
}

func fileExists(path string) bool {
	st, err := os.Stat(path)
	if err != nil {
		return false
	}
	return !st.IsDir() && st.Size() > 0
}
