package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"

	"github.com/zhouzirui/soulmate-widget/internal/config"
	"github.com/zhouzirui/soulmate-widget/internal/logging"
	speechmodel "github.com/zhouzirui/soulmate-widget/internal/model/speech"
	"github.com/zhouzirui/soulmate-widget/internal/service/speech"
)

func main() {
	configPath := flag.String("config", "config.yaml", "可选的 YAML 配置文件")
	mode := flag.String("mode", "", "测试模式: asr 或 tts")
	audioPath := flag.String("audio", "", "ASR 输入音频文件路径")
	text := flag.String("text", "", "TTS 输入文本")
	outputPath := flag.String("out", "", "TTS 输出音频文件路径 (默认根据格式自动生成)")
	format := flag.String("format", "", "音频格式 (ASR: 输入格式; TTS: 输出格式)")
	language := flag.String("lang", "", "语言代码，默认使用配置中的语言")
	voice := flag.String("voice", "", "TTS 声音 ID，默认使用配置中的 TTSVoice")
	session := flag.String("session", "", "自定义 sessionID，留空则自动生成")
	timeout := flag.Duration("timeout", 45*time.Second, "请求超时时间")

	flag.Parse()

	envErr := godotenv.Load()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fallback := zerolog.New(os.Stderr)
		fallback.Fatal().Err(err).Msg("配置加载失败")
	}
	logger := logging.New(cfg.Log)
	if envErr != nil {
		logger.Warn().Err(envErr).Msg("无法加载 .env，改用系统环境变量")
	}

	if !cfg.Speech.Enabled() {
		logger.Fatal().Msg("语音服务未启用，请先在环境变量中配置 SPEECH_APP_ID 和 SPEECH_ACCESS_TOKEN")
	}

	if *mode != "asr" && *mode != "tts" {
		flag.Usage()
		logger.Fatal().Msg("请通过 -mode=asr 或 -mode=tts 指定测试模式")
	}

	sessionID := *session
	if sessionID == "" {
		sessionID = fmt.Sprintf("manual-%d", time.Now().UnixNano())
	}

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	var runErr error
	switch *mode {
	case "asr":
		rec := speech.NewRecognizer(cfg.Speech.Client(), logger)
		runErr = runASR(ctx, rec, cfg, logger, sessionID, *audioPath, *format, *language)
	case "tts":
		syn := speech.NewSynthesizer(cfg.Speech.Client(), logger)
		runErr = runTTS(ctx, syn, cfg, logger, sessionID, *text, *voice, *format, *language, *outputPath)
	}
	if runErr != nil {
		cancel()
		logger.Fatal().Err(runErr).Str("mode", *mode).Msg("测试失败")
	}
}

func runASR(ctx context.Context, rec *speech.Recognizer, cfg *config.Config, logger zerolog.Logger, sessionID, audioPath, format, language string) error {
	if audioPath == "" {
		return fmt.Errorf("ASR 模式需要通过 -audio 指定音频文件路径")
	}

	file, err := os.Open(audioPath)
	if err != nil {
		return fmt.Errorf("打开音频文件失败: %w", err)
	}
	defer file.Close()

	if format == "" {
		format = strings.TrimPrefix(strings.ToLower(filepath.Ext(audioPath)), ".")
		if format == "" {
			format = "wav"
		}
	}

	if language == "" {
		language = cfg.Voice.Locale
	}

	req := &speechmodel.ASRRequest{
		SessionID: sessionID,
		AudioData: file,
		Format:    format,
		Language:  language,
	}

	logger.Info().Str("session", sessionID).Str("format", format).Str("language", language).Msg("开始进行 ASR 测试")

	resp, err := rec.Transcribe(ctx, req)
	if err != nil {
		return fmt.Errorf("ASR 调用失败: %w", err)
	}

	logger.Info().
		Str("text", resp.Text).
		Float64("confidence", resp.Confidence).
		Int64("duration_ms", resp.Duration).
		Msg("ASR 识别成功")
	return nil
}

func runTTS(ctx context.Context, syn *speech.Synthesizer, cfg *config.Config, logger zerolog.Logger, sessionID, text, voice, format, language, outputPath string) error {
	if strings.TrimSpace(text) == "" {
		return fmt.Errorf("TTS 模式需要通过 -text 提供待合成文本")
	}

	if voice == "" {
		voice = cfg.Speech.TTSVoice
	}
	if language == "" {
		language = cfg.Speech.TTSLanguage
	}
	if format == "" {
		format = cfg.Speech.TTSFormat
	}
	if outputPath == "" {
		outputPath = fmt.Sprintf("tts-output-%d.%s", time.Now().Unix(), format)
	}

	emotion, scale := speech.EmotionFor(voice, text)
	req := &speechmodel.TTSRequest{
		SessionID:    sessionID,
		Text:         text,
		Voice:        voice,
		Speed:        cfg.Speech.TTSSpeed,
		Volume:       cfg.Speech.TTSVolume,
		Format:       format,
		Language:     language,
		Emotion:      emotion,
		EmotionScale: scale,
	}

	logger.Info().Str("session", sessionID).Str("voice", voice).Str("format", format).Str("emotion", emotion).Msg("开始进行 TTS 测试")

	resp, err := syn.Synthesize(ctx, req)
	if err != nil {
		return fmt.Errorf("TTS 调用失败: %w", err)
	}

	if err := os.WriteFile(outputPath, resp.AudioData, 0o644); err != nil {
		return fmt.Errorf("写入音频文件失败: %w", err)
	}

	logger.Info().Str("out", outputPath).Int64("duration_ms", resp.Duration).Msg("TTS 合成成功")
	return nil
}
