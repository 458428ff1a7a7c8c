// Package widget drives the companion widget: it renders the transcript and
// display regions and talks to the SoulMate backend on behalf of the controls.
package widget

import (
	"context"
	"errors"
	"strings"
	"sync"

	"github.com/rs/zerolog"

	"github.com/zhouzirui/soulmate-widget/internal/logging"
	speechmodel "github.com/zhouzirui/soulmate-widget/internal/model/speech"
	"github.com/zhouzirui/soulmate-widget/internal/model/widget"
	"github.com/zhouzirui/soulmate-widget/internal/service/speech"
)

var (
	// ErrNoInput is returned when recognition produced no usable text.
	ErrNoInput = errors.New("no input recognized")
	// ErrVoiceUnavailable is returned when no recognizer is configured.
	ErrVoiceUnavailable = errors.New("voice input unavailable")
)

// Backend is the remote SoulMate API.
type Backend interface {
	Chat(ctx context.Context, message string) (widget.ChatResponse, error)
	SaveJournal(ctx context.Context, entry string) (widget.JournalAck, error)
	Summary(ctx context.Context) (widget.SummaryView, error)
	Wellness(ctx context.Context) (widget.WellnessView, error)
}

// SpeechOutput queues text to be spoken. It must not block.
type SpeechOutput interface {
	Speak(text string)
}

// VoiceInput turns one recorded clip into text.
type VoiceInput interface {
	Transcribe(ctx context.Context, req *speechmodel.ASRRequest) (*speechmodel.ASRResponse, error)
}

// Notifier shows a notice the user has to acknowledge.
type Notifier interface {
	Notify(text string)
}

// Option customizes a Controller.
type Option func(*Controller)

// WithSpeech sets the speech output. Defaults to silence.
func WithSpeech(s SpeechOutput) Option { return func(c *Controller) { c.speech = s } }

// WithVoice sets the voice input.
func WithVoice(v VoiceInput) Option { return func(c *Controller) { c.voice = v } }

// WithNotifier routes notices somewhere other than the view.
func WithNotifier(n Notifier) Option { return func(c *Controller) { c.notifier = n } }

// WithLocale sets the recognition locale. Defaults to en-US.
func WithLocale(locale string) Option { return func(c *Controller) { c.locale = locale } }

// Controller implements the widget's controls on top of an injected view.
// Network operations run on the base context and are independent of each other
// and of the caller: a later action never cancels an earlier one.
type Controller struct {
	ctx      context.Context
	backend  Backend
	view     *View
	speech   SpeechOutput
	voice    VoiceInput
	notifier Notifier
	locale   string
	logger   zerolog.Logger

	inflight sync.WaitGroup
}

// New builds a controller. Cancelling base aborts every in-flight operation.
func New(base context.Context, backend Backend, view *View, logger zerolog.Logger, opts ...Option) *Controller {
	c := &Controller{
		ctx:     base,
		backend: backend,
		view:    view,
		speech:  speech.Nop{},
		locale:  speech.DefaultLocale,
		logger:  logging.Component(logger, "widget"),
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.notifier == nil {
		c.notifier = view
	}
	return c
}

// View returns the controller's view.
func (c *Controller) View() *View { return c.view }

// Wait blocks until every started operation has finished.
func (c *Controller) Wait() { c.inflight.Wait() }

// record renders a transcript line. Bot lines are also handed to speech output.
func (c *Controller) record(speaker widget.Speaker, text string) widget.TranscriptEntry {
	entry := c.view.Append(speaker, text)
	if speaker == widget.Bot {
		c.speech.Speak(text)
	}
	return entry
}

// SetInput overwrites the chat input field.
func (c *Controller) SetInput(text string) { c.view.SetInput(text) }

// SetJournal overwrites the journal field.
func (c *Controller) SetJournal(text string) { c.view.SetJournal(text) }

// SendInput sends whatever is in the chat input field.
func (c *Controller) SendInput() *Task[widget.ChatResponse] {
	return c.Send(c.view.Input())
}

// Send posts a chat message. Blank text does nothing and returns nil.
// Whatever happens on the network, exactly one bot line is recorded.
func (c *Controller) Send(text string) *Task[widget.ChatResponse] {
	message := strings.TrimSpace(text)
	if message == "" {
		return nil
	}

	c.record(widget.User, message)
	c.view.SetInput("")

	return track(c, func() (widget.ChatResponse, error) {
		resp, err := c.backend.Chat(c.ctx, message)
		if err != nil {
			c.logger.Error().Err(err).Msg("chat request failed")
			c.record(widget.Bot, ConnectionFailure)
			return widget.ChatResponse{}, err
		}
		c.record(widget.Bot, BotLine(resp))
		return resp, nil
	})
}

// StartVoiceInput runs one recognition session over clip. The first non-empty
// result fills the chat input and is sent right away. Failures are only logged.
func (c *Controller) StartVoiceInput(clip *speechmodel.ASRRequest) *Task[string] {
	return track(c, func() (string, error) {
		if c.voice == nil {
			c.logger.Warn().Msg("voice input requested but no recognizer is configured")
			return "", ErrVoiceUnavailable
		}
		if clip == nil {
			c.logger.Warn().Msg("voice input started without a clip")
			return "", ErrNoInput
		}

		req := *clip
		if req.Language == "" {
			req.Language = c.locale
		}

		resp, err := c.voice.Transcribe(c.ctx, &req)
		if err != nil {
			c.logger.Warn().Err(err).Msg("voice recognition failed")
			return "", err
		}

		text := strings.TrimSpace(resp.Text)
		if text == "" {
			c.logger.Info().Str("session", resp.SessionID).Msg("voice recognition heard nothing")
			return "", ErrNoInput
		}

		c.view.SetInput(resp.Text)
		if sent := c.Send(resp.Text); sent != nil {
			sent.Wait()
		}
		return resp.Text, nil
	})
}

// SaveJournal posts the journal field. Blank entries do nothing and return nil.
// The field is cleared only after the backend accepted it.
func (c *Controller) SaveJournal() *Task[widget.JournalAck] {
	entry := strings.TrimSpace(c.view.Journal())
	if entry == "" {
		return nil
	}

	return track(c, func() (widget.JournalAck, error) {
		ack, err := c.backend.SaveJournal(c.ctx, entry)
		if err != nil {
			c.logger.Error().Err(err).Msg("journal save failed")
			c.notifier.Notify(JournalFailed)
			return widget.JournalAck{}, err
		}
		c.logger.Info().Str("status", ack.Status).Msg("journal saved")
		c.notifier.Notify(JournalSaved)
		c.view.SetJournal("")
		return ack, nil
	})
}

// GetSummary refreshes the summary region.
func (c *Controller) GetSummary() *Task[widget.SummaryView] {
	return track(c, func() (widget.SummaryView, error) {
		summary, err := c.backend.Summary(c.ctx)
		if err != nil {
			c.logger.Error().Err(err).Msg("summary request failed")
			c.view.SetSummary(SummaryFailed)
			return widget.SummaryView{}, err
		}
		c.view.SetSummary(SummaryLine(summary))
		return summary, nil
	})
}

// GetWellness refreshes the wellness region.
func (c *Controller) GetWellness() *Task[widget.WellnessView] {
	return track(c, func() (widget.WellnessView, error) {
		wellness, err := c.backend.Wellness(c.ctx)
		if err != nil {
			c.logger.Error().Err(err).Msg("wellness request failed")
			c.view.SetWellness(WellnessFailed)
			return widget.WellnessView{}, err
		}
		c.view.SetWellness(WellnessLine(wellness))
		return wellness, nil
	})
}

func track[T any](c *Controller, fn func() (T, error)) *Task[T] {
	c.inflight.Add(1)
	return startTask(func() (T, error) {
		defer c.inflight.Done()
		return fn()
	})
}
