package httpapi

import (
	"net/http"
	"time"

	"github.com/DoyleJ11/lol-trivia-backend/internal/ws"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"
)

func SetupRoutes(d Deps) http.Handler {
	if d.Logger == nil {
		d.Logger = zap.NewNop()
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(requestLogger(d.Logger))

	r.Get("/healthz", Healthz(d))

	r.Route("/portal", func(r chi.Router) {
		r.Get("/site", PortalSite(d))
		r.Post("/select-summoner", SelectSummoner(d))
		r.Post("/logout", Logout(d))
		r.Post("/play-{mode}", Play(d))
	})

	r.Route("/lobby/{id}", func(r chi.Router) {
		r.Get("/site", LobbySite(d))
		r.Post("/join", JoinLobby(d))
		r.Post("/ready", Ready(d))
		r.Post("/lock-answer", LockAnswer(d))
		r.Get("/updates", Updates(d))
		r.Post("/updates", Updates(d))
		r.Get("/ws", ws.Handler(d.Hub, d.Logger))
	})
	return r
}

// requestLogger logs one line per request. Long polls are logged at debug.
func requestLogger(log *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			next.ServeHTTP(ww, r)

			lvl := zap.InfoLevel
			if chi.RouteContext(r.Context()).RoutePattern() == "/lobby/{id}/updates" {
				lvl = zap.DebugLevel
			}
			if ce := log.Check(lvl, "http request"); ce != nil {
				ce.Write(
					zap.String("method", r.Method),
					zap.String("path", r.URL.Path),
					zap.Int("status", ww.Status()),
					zap.Duration("duration", time.Since(start)),
					zap.String("request_id", middleware.GetReqID(r.Context())),
				)
			}
		})
	}
}
