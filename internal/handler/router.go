package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"

	"github.com/zhouzirui/soulmate-widget/internal/handler/speech"
	"github.com/zhouzirui/soulmate-widget/internal/handler/stream"
	"github.com/zhouzirui/soulmate-widget/internal/handler/widget"
	"github.com/zhouzirui/soulmate-widget/internal/logging"
	middlewarePkg "github.com/zhouzirui/soulmate-widget/internal/middleware"
	widgetsvc "github.com/zhouzirui/soulmate-widget/internal/service/widget"
	"github.com/zhouzirui/soulmate-widget/pkg/utils"
)

// Deps are the services the control surface is built on.
type Deps struct {
	Controller  *widgetsvc.Controller
	Audio       speech.AudioStore
	SpeechState func() speech.Health
	Logger      zerolog.Logger
}

// NewRouter wires HTTP routes to core services.
func NewRouter(deps Deps) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middlewarePkg.RequestLogger(logging.Component(deps.Logger, "http")))
	r.Use(middleware.Recoverer)
	r.Use(middlewarePkg.CORS)

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		utils.RespondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	r.Route("/api", func(api chi.Router) {
		widget.New(deps.Controller, deps.Logger).RegisterRoutes(api)
		stream.New(deps.Controller.View(), deps.Logger).RegisterRoutes(api)
		speech.New(deps.Audio, deps.SpeechState, deps.Logger).RegisterRoutes(api)
	})

	return r
}
