package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/zhouzirui/soulmate-widget/internal/model/speech"
)

// DefaultBackendURL 是远端 SoulMate 后端的构建期地址。
const DefaultBackendURL = "https://soulmate-agi.onrender.com"

// Config 聚合整个组件宿主的配置项。
type Config struct {
	Server  ServerConfig  `yaml:"server"`
	Backend BackendConfig `yaml:"backend"`
	Speech  SpeechConfig  `yaml:"speech"`
	Voice   VoiceConfig   `yaml:"voice"`
	Log     LogConfig     `yaml:"log"`
}

// ServerConfig 描述控制面 HTTP 服务配置。
type ServerConfig struct {
	Addr              string   `yaml:"addr"`
	ReadHeaderTimeout Duration `yaml:"read_header_timeout"`
}

// BackendConfig 描述远端后端的访问方式。
type BackendConfig struct {
	BaseURL string `yaml:"base_url"`
	// Timeout 为 0 表示不设超时，请求可能一直挂起。
	Timeout Duration `yaml:"timeout"`
}

// SpeechConfig 描述语音服务相关配置
type SpeechConfig struct {
	AppID          string   `yaml:"app_id"`
	AccessToken    string   `yaml:"access_token"`
	ConcurrentMode bool     `yaml:"concurrent_mode"`
	ASRLanguage    string   `yaml:"asr_language"`
	TTSVoice       string   `yaml:"tts_voice"`
	TTSSpeed       float32  `yaml:"tts_speed"`
	TTSVolume      float32  `yaml:"tts_volume"`
	TTSLanguage    string   `yaml:"tts_language"`
	TTSFormat      string   `yaml:"tts_format"`
	Timeout        Duration `yaml:"timeout"`
	SpoolDir       string   `yaml:"spool_dir"`
	PlayCommand    string   `yaml:"play_command"`
}

// VoiceConfig 描述语音输入会话的默认参数。
type VoiceConfig struct {
	Locale string `yaml:"locale"`
}

// LogConfig 描述日志输出。
type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"` // console or json
}

// Enabled 表示是否提供了必需的语音凭证。
func (c SpeechConfig) Enabled() bool {
	return strings.TrimSpace(c.AppID) != "" && strings.TrimSpace(c.AccessToken) != ""
}

// Client 转换为语音客户端使用的配置
func (c SpeechConfig) Client() *speech.SpeechConfig {
	return &speech.SpeechConfig{
		AppID:          c.AppID,
		AccessToken:    c.AccessToken,
		ConcurrentMode: c.ConcurrentMode,
		ASRLanguage:    c.ASRLanguage,
		TTSVoice:       c.TTSVoice,
		TTSSpeed:       c.TTSSpeed,
		TTSVolume:      c.TTSVolume,
		TTSLanguage:    c.TTSLanguage,
		TTSFormat:      c.TTSFormat,
		Timeout:        c.Timeout.ToDuration(),
	}
}

// Default returns the configuration used when neither a file nor the
// environment says otherwise.
func Default() Config {
	return Config{
		Server: ServerConfig{
			Addr:              ":8080",
			ReadHeaderTimeout: Duration(5 * time.Second),
		},
		Backend: BackendConfig{
			BaseURL: DefaultBackendURL,
		},
		Speech: SpeechConfig{
			ASRLanguage: "en-US",
			TTSVoice:    "en_female_amy_jupiter_bigtts",
			TTSSpeed:    1.0,
			TTSVolume:   1.0,
			TTSLanguage: "en-US",
			TTSFormat:   "mp3",
			Timeout:     Duration(30 * time.Second),
			SpoolDir:    "./cache/speech",
		},
		Voice: VoiceConfig{
			Locale: "en-US",
		},
		Log: LogConfig{
			Level:  "info",
			Format: "console",
		},
	}
}

// Load 依次应用默认值、可选的 YAML 文件和环境变量。path 为空或文件不存在时跳过文件。
func Load(path string) (*Config, error) {
	cfg := Default()

	if path = strings.TrimSpace(path); path != "" {
		data, err := os.ReadFile(path)
		switch {
		case errors.Is(err, fs.ErrNotExist):
		case err != nil:
			return nil, fmt.Errorf("read config %s: %w", path, err)
		default:
			if err := yaml.Unmarshal(data, &cfg); err != nil {
				return nil, fmt.Errorf("parse config %s: %w", path, err)
			}
		}
	}

	if err := applyEnv(&cfg); err != nil {
		return nil, err
	}

	if err := cfg.normalize(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func applyEnv(cfg *Config) error {
	addr, err := loadServerAddr(cfg.Server.Addr)
	if err != nil {
		return err
	}
	cfg.Server.Addr = addr

	cfg.Backend.BaseURL = getEnvOrDefault("SOULMATE_BACKEND_URL", cfg.Backend.BaseURL)
	if timeout, err := parseOptionalDurationEnv("BACKEND_TIMEOUT"); err != nil {
		return err
	} else if timeout != nil {
		cfg.Backend.Timeout = Duration(*timeout)
	}

	cfg.Log.Level = getEnvOrDefault("LOG_LEVEL", cfg.Log.Level)
	cfg.Log.Format = getEnvOrDefault("LOG_FORMAT", cfg.Log.Format)
	cfg.Voice.Locale = getEnvOrDefault("VOICE_LOCALE", cfg.Voice.Locale)

	return applySpeechEnv(&cfg.Speech)
}

// loadServerAddr 解析监听地址，允许 "8080"、":8080" 或 "127.0.0.1:8080"。
func loadServerAddr(current string) (string, error) {
	port := strings.TrimSpace(os.Getenv("PORT"))
	if port == "" {
		return current, nil
	}

	if strings.Contains(port, ":") {
		return port, nil
	}

	if strings.Contains(port, " ") {
		return "", fmt.Errorf("invalid PORT value: %q", port)
	}

	return ":" + port, nil
}

func applySpeechEnv(sc *SpeechConfig) error {
	if timeout, err := parseOptionalIntEnv("SPEECH_TIMEOUT"); err != nil {
		return err
	} else if timeout != nil {
		sc.Timeout = Duration(time.Duration(*timeout) * time.Second)
	}

	if speed, err := parseOptionalFloat32Env("SPEECH_TTS_SPEED"); err != nil {
		return err
	} else if speed != nil {
		sc.TTSSpeed = *speed
	}

	if volume, err := parseOptionalFloat32Env("SPEECH_TTS_VOLUME"); err != nil {
		return err
	} else if volume != nil {
		sc.TTSVolume = *volume
	}

	concurrent, err := parseBoolEnv("SPEECH_CONCURRENT_MODE", sc.ConcurrentMode)
	if err != nil {
		return err
	}
	sc.ConcurrentMode = concurrent

	sc.AppID = getEnvOrDefault("SPEECH_APP_ID", sc.AppID)
	sc.AccessToken = getEnvOrDefault("SPEECH_ACCESS_TOKEN", sc.AccessToken)
	if sc.AccessToken == "" {
		// 兼容旧变量名
		sc.AccessToken = strings.TrimSpace(os.Getenv("SPEECH_API_KEY"))
	}

	sc.ASRLanguage = getEnvOrDefault("SPEECH_ASR_LANGUAGE", sc.ASRLanguage)
	sc.TTSVoice = getEnvOrDefault("SPEECH_TTS_VOICE", sc.TTSVoice)
	sc.TTSLanguage = getEnvOrDefault("SPEECH_TTS_LANGUAGE", sc.TTSLanguage)
	sc.TTSFormat = getEnvOrDefault("SPEECH_TTS_FORMAT", sc.TTSFormat)
	sc.SpoolDir = getEnvOrDefault("SPEECH_SPOOL_DIR", sc.SpoolDir)
	sc.PlayCommand = getEnvOrDefault("SPEECH_PLAY_COMMAND", sc.PlayCommand)
	return nil
}

func (c *Config) normalize() error {
	c.Backend.BaseURL = strings.TrimRight(strings.TrimSpace(c.Backend.BaseURL), "/")
	if c.Backend.BaseURL == "" {
		c.Backend.BaseURL = DefaultBackendURL
	}
	if !strings.HasPrefix(c.Backend.BaseURL, "http://") && !strings.HasPrefix(c.Backend.BaseURL, "https://") {
		return fmt.Errorf("invalid backend base url %q: scheme must be http or https", c.Backend.BaseURL)
	}
	if c.Backend.Timeout < 0 {
		c.Backend.Timeout = 0
	}

	if c.Server.Addr == "" {
		c.Server.Addr = ":8080"
	}
	if c.Server.ReadHeaderTimeout.ToDuration() <= 0 {
		c.Server.ReadHeaderTimeout = Duration(5 * time.Second)
	}

	if c.Speech.TTSSpeed <= 0 {
		c.Speech.TTSSpeed = 1.0
	}
	if c.Speech.TTSVolume <= 0 {
		c.Speech.TTSVolume = 1.0
	}
	if c.Speech.Timeout.ToDuration() <= 0 {
		c.Speech.Timeout = Duration(30 * time.Second)
	}
	if c.Speech.TTSFormat == "" {
		c.Speech.TTSFormat = "mp3"
	}
	if c.Speech.SpoolDir == "" {
		c.Speech.SpoolDir = "./cache/speech"
	}

	if c.Voice.Locale == "" {
		c.Voice.Locale = "en-US"
	}
	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
	switch c.Log.Format {
	case "", "console":
		c.Log.Format = "console"
	case "json":
	default:
		return fmt.Errorf("invalid log format %q: want console or json", c.Log.Format)
	}
	return nil
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := strings.TrimSpace(os.Getenv(key)); value != "" {
		return value
	}
	return defaultValue
}

func parseBoolEnv(key string, defaultValue bool) (bool, error) {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return defaultValue, nil
	}

	val, err := strconv.ParseBool(raw)
	if err != nil {
		return false, fmt.Errorf("invalid %s value %q: %w", key, raw, err)
	}
	return val, nil
}

func parseOptionalIntEnv(key string) (*int, error) {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return nil, nil
	}

	val, err := strconv.Atoi(value)
	if err != nil {
		return nil, fmt.Errorf("invalid %s value %q: %w", key, value, err)
	}
	return &val, nil
}

func parseOptionalFloat32Env(key string) (*float32, error) {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return nil, nil
	}

	val, err := strconv.ParseFloat(value, 32)
	if err != nil {
		return nil, fmt.Errorf("invalid %s value %q: %w", key, value, err)
	}
	result := float32(val)
	return &result, nil
}

// parseOptionalDurationEnv 接受 "30s" 形式或纯数字秒数。
func parseOptionalDurationEnv(key string) (*time.Duration, error) {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return nil, nil
	}

	if secs, err := strconv.Atoi(value); err == nil {
		d := time.Duration(secs) * time.Second
		return &d, nil
	}

	d, err := time.ParseDuration(value)
	if err != nil {
		return nil, fmt.Errorf("invalid %s value %q: %w", key, value, err)
	}
	return &d, nil
}
