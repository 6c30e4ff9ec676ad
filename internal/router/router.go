package router

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"

	"palace-backend/internal/handlers"
	"palace-backend/internal/middleware"
	"palace-backend/internal/websocket"
)

func New(
	jwtAuth *middleware.JWTAuth,
	authHandler *handlers.AuthHandler,
	sessionHandler *handlers.SessionHandler,
	trackHandler *handlers.TrackHandler,
	analysisHandler *handlers.AnalysisHandler,
	practiceHandler *handlers.PracticeHandler,
	wsHub *websocket.Hub,
	frontendURL string,
) http.Handler {
	r := chi.NewRouter()

	// Global middleware
	r.Use(chimiddleware.Logger)
	r.Use(chimiddleware.Recoverer)
	r.Use(chimiddleware.RealIP)
	r.Use(middleware.RequestID)
	r.Use(middleware.CORS(frontendURL))

	// Auth rate limiter (10 req/min per IP); analysis is Gemini-backed and
	// gets its own tighter budget.
	authLimiter := middleware.NewRateLimiter(10, time.Minute)
	analysisLimiter := middleware.NewRateLimiter(20, time.Minute)

	// Health check
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"status":"ok"}`))
	})

	r.Route("/api/v1", func(r chi.Router) {

		// ──── Auth Routes (public) ────
		r.Route("/auth", func(r chi.Router) {
			r.Use(authLimiter.Middleware)
			r.Post("/register", authHandler.Register)
			r.Post("/login", authHandler.Login)
			r.Post("/refresh", authHandler.Refresh)

			// Logout requires auth
			r.Group(func(r chi.Router) {
				r.Use(jwtAuth.Middleware)
				r.Post("/logout", authHandler.Logout)
			})
		})

		// ──── Session Lifecycle Routes ────
		r.Route("/sessions", func(r chi.Router) {
			r.Use(jwtAuth.Middleware)
			r.Post("/start", sessionHandler.Start)
			r.Get("/", sessionHandler.List)
			r.Get("/active", sessionHandler.Active)
			r.Put("/save", sessionHandler.Save)
			r.Post("/end", sessionHandler.End)
			r.Put("/state", sessionHandler.UpdateState)
			r.Get("/{id}", sessionHandler.Load)
			r.Delete("/{id}", sessionHandler.Delete)
			r.Post("/{id}/share", sessionHandler.Share)
			r.Post("/{id}/archive", sessionHandler.Archive)
			r.Post("/{id}/summary", sessionHandler.RequestSummary)

			// ──── Event Tracking Routes ────
			r.Route("/track", func(r chi.Router) {
				r.Post("/tab-open", trackHandler.TabOpen)
				r.Post("/tab-close", trackHandler.TabClose)
				r.Post("/verse", trackHandler.VerseAccess)
				r.Post("/principle", trackHandler.PrincipleInteraction)
				r.Post("/assistant", trackHandler.AssistantInteraction)
				r.Post("/note", trackHandler.Note)
			})
		})

		// ──── Recorder State Routes ────
		r.Route("/recorder", func(r chi.Router) {
			r.Use(jwtAuth.Middleware)
			r.Get("/prompt", trackHandler.PromptState)
			r.Post("/prompt/dismiss", trackHandler.DismissPrompt)
			r.Get("/pending-writes", trackHandler.PendingWrites)
		})

		// ──── Analysis Routes ────
		r.Route("/analysis", func(r chi.Router) {
			r.Use(jwtAuth.Middleware)
			r.Use(analysisLimiter.Middleware)
			r.Post("/verse", analysisHandler.AnalyzeVerse)
		})

		// ──── Practice Routes ────
		r.Route("/practice", func(r chi.Router) {
			r.Use(jwtAuth.Middleware)
			r.Route("/verses", func(r chi.Router) {
				r.Post("/", practiceHandler.CreateVerse)
				r.Get("/", practiceHandler.ListVerses)
				r.Delete("/{id}", practiceHandler.DeleteVerse)
				r.Post("/{id}/attempts", practiceHandler.SubmitAttempt)
				r.Get("/{id}/attempts", practiceHandler.ListAttempts)
			})
		})

		// ──── WebSocket ────
		r.Get("/ws", wsHub.HandleWebSocket)
	})

	return r
}
