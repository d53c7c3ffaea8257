package routes

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/Dosada05/tournament-ops/handlers"
	"github.com/Dosada05/tournament-ops/middleware"
	"github.com/Dosada05/tournament-ops/services"
)

type Handlers struct {
	Auth       *handlers.AuthHandler
	Tournament *handlers.TournamentHandler
	Player     *handlers.PlayerHandler
	Match      *handlers.MatchHandler
	WebSocket  *handlers.WebSocketHandler
}

func SetupRoutes(router chi.Router, h Handlers, authService services.AuthService, allowedOrigins []string, logger *slog.Logger) {
	router.Use(chiMiddleware.RequestID)
	router.Use(chiMiddleware.RealIP)
	router.Use(chiMiddleware.Logger)
	router.Use(chiMiddleware.Recoverer)
	router.Use(cors.Handler(cors.Options{
		AllowedOrigins:   allowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	router.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("OK"))
	})
	router.Handle("/metrics", promhttp.Handler())

	// The websocket stays outside the timeout middleware.
	router.Get("/ws", h.WebSocket.ServeWs)

	router.Group(func(r chi.Router) {
		r.Use(chiMiddleware.Timeout(30 * time.Second))

		r.Post("/auth/token", h.Auth.TokenHandler)

		r.Get("/standings", h.Tournament.StandingsHandler)
		r.Get("/schedule", h.Tournament.ScheduleHandler)
		r.Get("/bracket", h.Tournament.BracketHandler)
		r.Get("/overview", h.Tournament.OverviewHandler)
		r.Get("/export.xlsx", h.Tournament.ExportHandler)
		r.Get("/matches/group", h.Match.GroupMatchesHandler)

		r.Route("/players", func(r chi.Router) {
			r.Get("/", h.Player.ListHandler)
			r.Get("/withdrawn", h.Player.WithdrawnHandler)
			r.Get("/{playerID}", h.Player.GetHandler)
			r.Get("/{playerID}/history", h.Player.HistoryHandler)

			r.Group(func(r chi.Router) {
				r.Use(middleware.Authenticate(authService, logger))
				r.Use(middleware.Authorize(services.RoleOrganizer))
				r.Post("/", h.Player.RegisterHandler)
				r.Post("/{playerID}/check-in", h.Player.CheckInHandler)
				r.Post("/{playerID}/withdraw", h.Player.WithdrawHandler)
				r.Post("/{playerID}/replace", h.Player.ReplaceHandler)
			})
		})

		r.Group(func(r chi.Router) {
			r.Use(middleware.Authenticate(authService, logger))
			r.Use(middleware.Authorize(services.RoleOrganizer))

			r.Post("/groups/generate", h.Tournament.GenerateGroupsHandler)
			r.Post("/groups/simulate", h.Tournament.SimulateGroupsHandler)
			r.Post("/knockout/generate", h.Tournament.GenerateKnockoutHandler)
			r.Post("/knockout/resolve", h.Tournament.ResolveKnockoutHandler)
			r.Post("/results", h.Match.ReportResultHandler)
			r.Post("/results/sync", h.Tournament.SyncResultsHandler)
		})
	})
}
