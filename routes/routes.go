package routes

import (
	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/siamcircuit/tournament-ops/handlers"
	"github.com/siamcircuit/tournament-ops/middleware"
)

// SetupRoutes собирает весь HTTP-контракт сервиса. Сдача результатов и
// регистрация публичные, подтверждения и модерация — только админ.
func SetupRoutes(
	router *chi.Mux,
	auth *middleware.Auth,
	authHandler *handlers.AuthHandler,
	matchHandler *handlers.MatchHandler,
	teamHandler *handlers.TeamHandler,
	playerHandler *handlers.PlayerHandler,
	substitutionHandler *handlers.SubstitutionHandler,
	bracketHandler *handlers.BracketHandler,
	webSocketHandler *handlers.WebSocketHandler,
) {
	router.Use(chiMiddleware.RequestID)
	router.Use(chiMiddleware.Logger)
	router.Use(chiMiddleware.Recoverer)
	router.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: false,
		MaxAge:           300,
	}))

	router.Post("/auth/login", authHandler.LoginHandler)

	router.Get("/bracket", bracketHandler.GetBracketHandler)
	router.Get("/ws/bracket", webSocketHandler.ServeWs)

	router.Route("/matches", func(r chi.Router) {
		r.Get("/upcoming", matchHandler.ListUpcomingHandler)
		r.Get("/awaiting-proof", matchHandler.ListAwaitingChannelHandler)
		r.Get("/by-channel/{channelID}", matchHandler.GetByResultChannelHandler)

		r.Post("/result", matchHandler.SubmitResultHandler)
		r.Post("/proof", matchHandler.SubmitProofHandler)
		r.Post("/result-channel", matchHandler.BindResultChannelHandler)

		// Назначение времени и подтверждение результата — только админ.
		r.Group(func(r chi.Router) {
			r.Use(auth.Authenticate)
			r.Use(auth.Authorize("admin"))

			r.Post("/schedule", matchHandler.BindScheduleHandler)
			r.Post("/{matchID}/confirm", matchHandler.ConfirmResultHandler)
		})
	})

	router.Route("/teams", func(r chi.Router) {
		r.Post("/", teamHandler.RegisterHandler)
		r.Get("/", teamHandler.ListHandler)
		r.Get("/{teamID}", teamHandler.GetHandler)
		r.Post("/{teamID}/logo", teamHandler.UploadLogoHandler)

		r.Group(func(r chi.Router) {
			r.Use(auth.Authenticate)
			r.Use(auth.Authorize("admin"))

			r.Post("/{teamID}/sync-participant", teamHandler.SyncParticipantHandler)
		})
	})

	router.Route("/players", func(r chi.Router) {
		r.Post("/", playerHandler.RegisterHandler)
		r.Post("/{playerID}/eligibility-doc", playerHandler.UploadEligibilityDocHandler)

		r.Group(func(r chi.Router) {
			r.Use(auth.Authenticate)
			r.Use(auth.Authorize("admin"))

			r.Get("/pending", playerHandler.ListPendingHandler)
			r.Post("/{playerID}/approve", playerHandler.ApproveHandler)
			r.Post("/{playerID}/reject", playerHandler.RejectHandler)
		})
	})

	router.Route("/substitutions", func(r chi.Router) {
		r.Post("/", substitutionHandler.SubmitHandler)

		r.Group(func(r chi.Router) {
			r.Use(auth.Authenticate)
			r.Use(auth.Authorize("admin"))

			r.Post("/{substitutionID}/approve", substitutionHandler.ApproveHandler)
			r.Post("/{substitutionID}/reject", substitutionHandler.RejectHandler)
		})
	})
}
