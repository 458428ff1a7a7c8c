package main

import (
	"context"
	"errors"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/zhouzirui/soulmate-widget/internal/backend"
	"github.com/zhouzirui/soulmate-widget/internal/config"
	"github.com/zhouzirui/soulmate-widget/internal/handler"
	speechhandler "github.com/zhouzirui/soulmate-widget/internal/handler/speech"
	"github.com/zhouzirui/soulmate-widget/internal/logging"
	speechmodel "github.com/zhouzirui/soulmate-widget/internal/model/speech"
	"github.com/zhouzirui/soulmate-widget/internal/service/speech"
	widgetsvc "github.com/zhouzirui/soulmate-widget/internal/service/widget"
)

func main() {
	configPath := flag.String("config", "config.yaml", "optional YAML config file")
	flag.Parse()

	envErr := godotenv.Load()

	cfg, err := config.Load(*configPath)
	if err != nil {
		// logger is not configured yet
		fallback := zerolog.New(os.Stderr)
		fallback.Fatal().Err(err).Msg("failed to load configuration")
	}

	logger := logging.New(cfg.Log)
	if envErr != nil {
		logger.Debug().Err(envErr).Msg("no .env file, using process environment only")
	}

	if err := run(cfg, logger); err != nil {
		logger.Fatal().Err(err).Msg("widget host stopped with error")
	}
}

func run(cfg *config.Config, logger zerolog.Logger) error {
	sigCtx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// 网络操作只在宿主退出时取消，不跟随单个 HTTP 请求
	opsCtx, cancelOps := context.WithCancel(context.Background())
	defer cancelOps()

	view := widgetsvc.NewView()
	client := backend.NewClient(backend.Config{
		BaseURL: cfg.Backend.BaseURL,
		Timeout: cfg.Backend.Timeout.ToDuration(),
	}, logger)

	opts := []widgetsvc.Option{widgetsvc.WithLocale(cfg.Voice.Locale)}
	deps := handler.Deps{Logger: logger}
	health := speechhandler.Health{Status: "healthy", Service: "speech", Output: "disabled", Input: "disabled"}

	var queue *speech.Queue
	if cfg.Speech.Enabled() {
		clientCfg := cfg.Speech.Client()

		spool, err := speech.NewSpool(cfg.Speech.SpoolDir, speech.NewSynthesizer(clientCfg, logger), logger)
		if err != nil {
			return err
		}

		var player speech.Player
		if p := speech.NewCommandPlayer(cfg.Speech.PlayCommand); p != nil {
			player = p
		}

		queue = speech.NewQueue(spool, player, speech.QueueOptions{
			Voice:    cfg.Speech.TTSVoice,
			Language: cfg.Speech.TTSLanguage,
			Format:   cfg.Speech.TTSFormat,
			Speed:    cfg.Speech.TTSSpeed,
			Volume:   cfg.Speech.TTSVolume,
			Emotion:  true,
		}, logger)
		queue.OnDelivered(func(u speechmodel.Utterance) { view.AnnounceSpeech(u.Audio) })

		opts = append(opts,
			widgetsvc.WithSpeech(queue),
			widgetsvc.WithVoice(speech.NewRecognizer(clientCfg, logger)),
		)
		deps.Audio = spool
		health.Output, health.Input = "volcengine", "volcengine"
		logger.Info().Str("voice", cfg.Speech.TTSVoice).Str("spool", spool.Dir()).Msg("speech enabled")
	} else {
		logger.Info().Msg("speech credentials not configured, speech output and voice input disabled")
	}

	ctrl := widgetsvc.New(opsCtx, client, view, logger, opts...)
	deps.Controller = ctrl
	deps.SpeechState = func() speechhandler.Health {
		h := health
		if queue != nil {
			h.Pending = queue.Pending()
		}
		return h
	}

	srv := &http.Server{
		Addr:              cfg.Server.Addr,
		Handler:           handler.NewRouter(deps),
		ReadHeaderTimeout: cfg.Server.ReadHeaderTimeout.ToDuration(),
		IdleTimeout:       120 * time.Second,
	}

	g, gctx := errgroup.WithContext(sigCtx)

	g.Go(func() error {
		logger.Info().Str("addr", srv.Addr).Str("backend", cfg.Backend.BaseURL).Msg("widget host listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	if queue != nil {
		g.Go(func() error { return queue.Run(gctx) })
	}

	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		err := srv.Shutdown(shutdownCtx)

		cancelOps()
		ctrl.Wait()
		logger.Info().Msg("widget host stopped")
		return err
	})

	return g.Wait()
}
