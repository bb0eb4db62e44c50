package server

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"

	"github.com/homehub/cast-server-go/internal/audio"
	"github.com/homehub/cast-server-go/internal/audit"
	"github.com/homehub/cast-server-go/internal/channel"
	"github.com/homehub/cast-server-go/internal/config"
	"github.com/homehub/cast-server-go/internal/handler"
	"github.com/homehub/cast-server-go/internal/ice"
	"github.com/homehub/cast-server-go/internal/middleware"
	"github.com/homehub/cast-server-go/internal/service"
	"github.com/homehub/cast-server-go/internal/sse"
)

type Deps struct {
	Version        string
	SessionService *service.SessionService
	Relay          *audio.Relay
	Broker         *sse.Broker
	Recorder       *audit.Recorder
	Channel        *channel.Handler
	ICE            ice.Config
	PairLimiter    service.Limiter
	PairLimit      int
}

func NewRouter(d Deps) http.Handler {
	sessionHandler := handler.NewSessionHandler(d.SessionService, d.Version)
	audioHandler := handler.NewAudioHandler(d.Relay, d.SessionService)
	eventsHandler := handler.NewEventsHandler(d.Broker, d.SessionService)
	iceHandler := handler.NewICEHandler(d.ICE)
	pairingsHandler := handler.NewPairingsHandler(d.Recorder)

	pairLimit := middleware.NewRateLimitMiddleware(d.PairLimiter, d.PairLimit, config.PairRateLimitWindow, "pair")
	bodyLimit := middleware.NewBodyLimitMiddleware(0)

	r := chi.NewRouter()

	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(middleware.RequestLogger)
	r.Use(chimiddleware.Recoverer)

	r.Get("/healthz", handler.Healthz)
	r.Get("/version", handler.Version(d.Version))

	r.Route("/v1/cast", func(r chi.Router) {
		// Long-lived streams stay outside the request timeout.
		r.Get("/ws/{sessionID}", d.Channel.Connect)
		r.Get("/session/{sessionID}/events", eventsHandler.ServeHTTP)

		r.Group(func(r chi.Router) {
			r.Use(chimiddleware.Timeout(config.ServerRequestTimeout))
			r.Use(middleware.SecurityHeaders)
			r.Use(bodyLimit.Handler)

			sessionHandler.Routes(r, pairLimit.Handler)
			audioHandler.Routes(r)
			r.Get("/ice", iceHandler.ServeHTTP)
			r.Get("/pairings", pairingsHandler.ServeHTTP)
		})
	})

	return r
}
