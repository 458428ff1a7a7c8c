package stream

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"github.com/zhouzirui/soulmate-widget/internal/logging"
	"github.com/zhouzirui/soulmate-widget/internal/model/widget"
	"github.com/zhouzirui/soulmate-widget/pkg/utils"
)

const defaultHeartbeat = 15 * time.Second

// Source is anything that publishes view events.
type Source interface {
	Subscribe() (<-chan widget.Event, func())
	Snapshot() widget.Snapshot
}

// Handler streams view changes to the page as Server-Sent Events.
type Handler struct {
	source    Source
	heartbeat time.Duration
	logger    zerolog.Logger
}

// New creates a new stream handler
func New(source Source, logger zerolog.Logger) *Handler {
	return &Handler{
		source:    source,
		heartbeat: defaultHeartbeat,
		logger:    logging.Component(logger, "stream"),
	}
}

// RegisterRoutes mounts GET /events.
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Get("/events", h.handleEvents)
}

// handleEvents sends the current snapshot first, then every change until the
// client goes away.
func (h *Handler) handleEvents(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		utils.RespondError(w, http.StatusInternalServerError, "streaming unsupported")
		return
	}

	events, cancel := h.source.Subscribe()
	defer cancel()

	utils.SetupSSEHeaders(w)
	w.WriteHeader(http.StatusOK)

	if err := utils.SendSSEEvent(w, flusher, "snapshot", h.source.Snapshot()); err != nil {
		return
	}

	ticker := time.NewTicker(h.heartbeat)
	defer ticker.Stop()

	h.logger.Debug().Msg("event stream opened")
	defer h.logger.Debug().Msg("event stream closed")

	for {
		select {
		case <-r.Context().Done():
			return
		case ev, ok := <-events:
			if !ok {
				return
			}
			if err := utils.SendSSEEvent(w, flusher, string(ev.Kind), ev); err != nil {
				return
			}
		case <-ticker.C:
			if err := utils.SendSSEComment(w, flusher, "heartbeat"); err != nil {
				return
			}
		}
	}
}
