package speech

import (
	"errors"
	"io/fs"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"github.com/zhouzirui/soulmate-widget/internal/logging"
	speechsvc "github.com/zhouzirui/soulmate-widget/internal/service/speech"
	"github.com/zhouzirui/soulmate-widget/pkg/utils"
)

// AudioStore 已合成音频的存放处
type AudioStore interface {
	Open(name string) (*os.File, time.Time, error)
}

// Health 语音能力的当前状态
type Health struct {
	Status  string `json:"status"`
	Service string `json:"service"`
	Output  string `json:"output"`
	Input   string `json:"input"`
	Pending int    `json:"pending"`
}

// Handler 语音相关的HTTP处理器
type Handler struct {
	store  AudioStore
	health func() Health
	logger zerolog.Logger
}

// New 创建语音处理器；store 为 nil 时音频端点返回 404
func New(store AudioStore, health func() Health, logger zerolog.Logger) *Handler {
	return &Handler{
		store:  store,
		health: health,
		logger: logging.Component(logger, "speech-http"),
	}
}

// RegisterRoutes 注册语音相关的路由
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Route("/speech", func(speechRouter chi.Router) {
		speechRouter.Get("/audio/{name}", h.handleAudio)
		speechRouter.Get("/health", h.handleHealth)
	})
}

// handleAudio 返回一段已合成的语音
func (h *Handler) handleAudio(w http.ResponseWriter, r *http.Request) {
	if h.store == nil {
		utils.RespondError(w, http.StatusNotFound, "speech output disabled")
		return
	}

	name := chi.URLParam(r, "name")
	f, modTime, err := h.store.Open(name)
	switch {
	case errors.Is(err, speechsvc.ErrBadSpoolName):
		utils.RespondError(w, http.StatusBadRequest, "invalid audio name")
		return
	case errors.Is(err, fs.ErrNotExist):
		utils.RespondError(w, http.StatusNotFound, "audio not found")
		return
	case err != nil:
		h.logger.Error().Err(err).Str("file", name).Msg("failed to open audio")
		utils.RespondError(w, http.StatusInternalServerError, "failed to open audio")
		return
	}
	defer f.Close()

	w.Header().Set("Content-Type", contentType(name))
	w.Header().Set("Cache-Control", "public, max-age=86400, immutable")
	http.ServeContent(w, r, name, modTime, f)
}

// handleHealth 健康检查端点
func (h *Handler) handleHealth(w http.ResponseWriter, _ *http.Request) {
	status := Health{Status: "healthy", Service: "speech", Output: "disabled", Input: "disabled"}
	if h.health != nil {
		status = h.health()
	}
	utils.RespondJSON(w, http.StatusOK, status)
}

func contentType(name string) string {
	switch filepath.Ext(name) {
	case ".wav":
		return "audio/wav"
	case ".aac":
		return "audio/aac"
	case ".ogg_opus":
		return "audio/ogg"
	case ".pcm":
		return "application/octet-stream"
	default:
		return "audio/mpeg"
	}
}
