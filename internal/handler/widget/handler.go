// Package widget exposes the widget controls over HTTP. Controls answer 202
// right away; their outcome shows up in the view.
package widget

import (
	"bytes"
	"io"
	"net/http"
	"path/filepath"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"github.com/zhouzirui/soulmate-widget/internal/logging"
	"github.com/zhouzirui/soulmate-widget/internal/model/speech"
	widgetsvc "github.com/zhouzirui/soulmate-widget/internal/service/widget"
	"github.com/zhouzirui/soulmate-widget/pkg/utils"
)

const maxClipBytes = 32 << 20

// Handler serves the widget controls.
type Handler struct {
	ctrl   *widgetsvc.Controller
	logger zerolog.Logger
}

type textBody struct {
	Text *string `json:"text"`
}

type controlResult struct {
	Status string `json:"status"`
}

var (
	accepted = controlResult{Status: "accepted"}
	ignored  = controlResult{Status: "ignored"}
)

// New creates the handler.
func New(ctrl *widgetsvc.Controller, logger zerolog.Logger) *Handler {
	return &Handler{ctrl: ctrl, logger: logging.Component(logger, "widget-http")}
}

// RegisterRoutes mounts the controls on r.
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Get("/view", h.handleView)
	r.Put("/input", h.handleSetInput)
	r.Put("/journal", h.handleSetJournal)

	r.Post("/send", h.handleSend)
	r.Post("/voice", h.handleVoice)
	r.Post("/journal/save", h.handleSaveJournal)
	r.Post("/summary", h.handleSummary)
	r.Post("/wellness", h.handleWellness)
}

func (h *Handler) handleView(w http.ResponseWriter, _ *http.Request) {
	utils.RespondJSON(w, http.StatusOK, h.ctrl.View().Snapshot())
}

func (h *Handler) handleSetInput(w http.ResponseWriter, r *http.Request) {
	text, ok := h.decodeText(w, r)
	if !ok {
		return
	}
	h.ctrl.SetInput(text)
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) handleSetJournal(w http.ResponseWriter, r *http.Request) {
	text, ok := h.decodeText(w, r)
	if !ok {
		return
	}
	h.ctrl.SetJournal(text)
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) handleSend(w http.ResponseWriter, r *http.Request) {
	var body textBody
	if err := utils.DecodeJSON(r, &body); err != nil {
		utils.RespondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if body.Text != nil {
		h.ctrl.SetInput(*body.Text)
	}

	if task := h.ctrl.SendInput(); task == nil {
		utils.RespondJSON(w, http.StatusAccepted, ignored)
		return
	}
	utils.RespondJSON(w, http.StatusAccepted, accepted)
}

func (h *Handler) handleVoice(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxClipBytes)
	if err := r.ParseMultipartForm(maxClipBytes); err != nil {
		utils.RespondError(w, http.StatusBadRequest, "failed to parse multipart form: "+err.Error())
		return
	}
	defer r.MultipartForm.RemoveAll()

	file, header, err := r.FormFile("audio")
	if err != nil {
		utils.RespondError(w, http.StatusBadRequest, "audio file is required")
		return
	}
	defer file.Close()

	// 识别在请求返回后才运行，上传的临时文件届时已被删除
	audio, err := io.ReadAll(file)
	if err != nil {
		utils.RespondError(w, http.StatusBadRequest, "failed to read audio")
		return
	}

	h.logger.Debug().Str("file", header.Filename).Int("bytes", len(audio)).Msg("voice clip received")
	h.ctrl.StartVoiceInput(&speech.ASRRequest{
		SessionID: r.FormValue("sessionId"),
		AudioData: bytes.NewReader(audio),
		Format:    inferAudioFormat(header.Filename),
		Language:  strings.TrimSpace(r.FormValue("language")),
	})
	utils.RespondJSON(w, http.StatusAccepted, accepted)
}

func (h *Handler) handleSaveJournal(w http.ResponseWriter, _ *http.Request) {
	if task := h.ctrl.SaveJournal(); task == nil {
		utils.RespondJSON(w, http.StatusAccepted, ignored)
		return
	}
	utils.RespondJSON(w, http.StatusAccepted, accepted)
}

func (h *Handler) handleSummary(w http.ResponseWriter, _ *http.Request) {
	h.ctrl.GetSummary()
	utils.RespondJSON(w, http.StatusAccepted, accepted)
}

func (h *Handler) handleWellness(w http.ResponseWriter, _ *http.Request) {
	h.ctrl.GetWellness()
	utils.RespondJSON(w, http.StatusAccepted, accepted)
}

func (h *Handler) decodeText(w http.ResponseWriter, r *http.Request) (string, bool) {
	var body textBody
	if err := utils.DecodeJSON(r, &body); err != nil {
		utils.RespondError(w, http.StatusBadRequest, "invalid request body")
		return "", false
	}
	if body.Text == nil {
		utils.RespondError(w, http.StatusBadRequest, "text is required")
		return "", false
	}
	return *body.Text, true
}

// inferAudioFormat 从文件名推断音频格式
func inferAudioFormat(filename string) string {
	switch strings.ToLower(filepath.Ext(filename)) {
	case ".mp3":
		return "mp3"
	case ".ogg", ".opus":
		return "ogg"
	case ".pcm":
		return "pcm"
	default:
		return "wav"
	}
}
