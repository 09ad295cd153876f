package router

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"momolearn-backend/internal/handlers"
	"momolearn-backend/internal/middleware"
	"momolearn-backend/internal/websocket"
)

func New(
	sessionAuth *middleware.SessionAuth,
	authLimiter *middleware.RateLimiter,
	authHandler *handlers.AuthHandler,
	userHandler *handlers.UserHandler,
	courseHandler *handlers.CourseHandler,
	studySetHandler *handlers.StudySetHandler,
	attemptHandler *handlers.AttemptHandler,
	uploadHandler *handlers.UploadHandler,
	eventsHandler *handlers.EventsHandler,
	wsHub *websocket.Hub,
	frontendURL string,
	log *zap.Logger,
) http.Handler {
	r := chi.NewRouter()

	// Global middleware
	r.Use(chimiddleware.Recoverer)
	r.Use(chimiddleware.RealIP)
	r.Use(middleware.RequestID)
	r.Use(middleware.AccessLog(log))
	r.Use(middleware.Metrics)
	r.Use(middleware.CORS(frontendURL))

	// Health check
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"status":"ok"}`))
	})
	r.Method(http.MethodGet, "/metrics", promhttp.Handler())

	// ──── Auth Routes (public, rate limited per IP) ────
	r.Route("/auth", func(r chi.Router) {
		r.Use(authLimiter.Middleware)
		r.Post("/register", authHandler.Register)
		r.Post("/login", authHandler.Login)
		r.Post("/logout", authHandler.Logout)
		r.Get("/me", authHandler.Me)
	})

	// ──── Status event socket (ticket in query) ────
	r.Get("/ws", wsHub.HandleWebSocket)

	// ──── Per-user Routes ────
	r.Route("/users/{userId}", func(r chi.Router) {
		r.Use(sessionAuth.Middleware)

		r.Get("/", userHandler.Get)
		r.Put("/", userHandler.Update)
		r.Delete("/", userHandler.Delete)

		r.Get("/stats", attemptHandler.Stats)
		r.Post("/questions/{questionId}/attempts", attemptHandler.Record)

		r.Route("/courses", func(r chi.Router) {
			r.Get("/", courseHandler.List)
			r.Post("/", courseHandler.Create)

			r.Route("/{courseId}", func(r chi.Router) {
				r.Get("/", courseHandler.Get)
				r.Put("/", courseHandler.Update)
				r.Delete("/", courseHandler.Delete)

				r.Get("/sets", studySetHandler.ListByCourse)
				r.Post("/sets", studySetHandler.Create)
				r.Get("/sets/{setId}", studySetHandler.GetInCourse)
				r.Delete("/sets/{setId}", studySetHandler.DeleteInCourse)
			})
		})

		r.Route("/sets/{setId}", func(r chi.Router) {
			r.Get("/", studySetHandler.Get)
			r.Post("/generate", studySetHandler.Generate)
			r.Get("/questions", studySetHandler.Questions)
		})

		r.Post("/uploads", uploadHandler.Upload)
		r.Delete("/uploads/{uploadId}", uploadHandler.Delete)

		r.Get("/events/ticket", eventsHandler.Ticket)
	})

	return r
}
