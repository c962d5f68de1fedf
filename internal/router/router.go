package router

import (
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/quizdrive/quizdrive-backend/internal/config"
	"github.com/quizdrive/quizdrive-backend/internal/handler"
	"github.com/quizdrive/quizdrive-backend/internal/middleware"
	"github.com/quizdrive/quizdrive-backend/internal/response"
	"github.com/quizdrive/quizdrive-backend/internal/service"
)

// Handlers groups all handler instances for route setup.
type Handlers struct {
	Auth   *handler.AuthHandler
	Exam   *handler.ExamHandler
	Portal *handler.PortalHandler
	WS     *handler.WSHandler
	Live   *handler.LiveHandler
}

// SetupRouter configures all Gin route groups with appropriate middlewares.
func SetupRouter(
	authService *service.AuthService,
	handlers *Handlers,
	cfg *config.Config,
) *gin.Engine {
	gin.SetMode(cfg.GinMode)
	router := gin.Default()

	// ─── CORS ──────────────────────────────────────────────────────────
	// If AllowedOrigins is set in config, restrict to that list;
	// otherwise allow all (*) so dev works without extra config.
	corsConfig := cors.DefaultConfig()
	if len(cfg.AllowedOrigins) > 0 {
		corsConfig.AllowOrigins = cfg.AllowedOrigins
	} else {
		corsConfig.AllowAllOrigins = true
	}
	corsConfig.AllowMethods = []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"}
	corsConfig.AllowHeaders = []string{"Origin", "Content-Type", "Authorization", "X-Request-ID"}
	corsConfig.ExposeHeaders = []string{"X-Request-ID"}
	corsConfig.MaxAge = 12 * time.Hour
	router.Use(cors.New(corsConfig))

	// Apply request ID middleware globally so every response includes metadata.
	router.Use(response.RequestIDMiddleware())

	// Apply brotli middleware globally.
	router.Use(middleware.Brotli())

	// Health check.
	router.GET("/health", func(c *gin.Context) {
		response.Success(c, http.StatusOK, gin.H{"status": "ok"})
	})

	// Rate limiter for session opening and registration (30 per minute per IP).
	portalLimiter := middleware.NewRateLimiter(30, time.Minute)

	// ─── 1. Auth Group (Public) ────────────────────────────────────────
	auth := router.Group("/api/v1/auth")
	{
		auth.POST("/organizer/login", handlers.Auth.OrganizerLogin)
		auth.GET("/organizer/me", middleware.RequireOrganizerJWT(authService), handlers.Auth.GetOrganizerProfile)
	}

	// ─── 2. Portal Group (Participant) ─────────────────────────────────
	// Opening and registering are unauthenticated; the session-scoped token
	// issued at registration guards everything after.
	portalAPI := router.Group("/api/v1/portal")
	{
		portalAPI.POST("/exams/:exam_id/sessions", portalLimiter.Middleware(), handlers.Portal.OpenSession)
		portalAPI.POST("/sessions/:session_id/register", portalLimiter.Middleware(), handlers.Portal.Register)

		scoped := portalAPI.Group("")
		scoped.Use(middleware.RequireParticipantJWT(authService))
		{
			scoped.POST("/sessions/:session_id/begin", handlers.Portal.Begin)
			scoped.GET("/sessions/:session_id/paper", handlers.Portal.GetPaper)
			scoped.GET("/sessions/:session_id/state", handlers.Portal.GetState)
		}
	}

	// ─── 3. WebSocket Group ────────────────────────────────────────────
	ws := router.Group("/ws/v1")
	{
		ws.GET("/portal/sessions/:session_id/stream",
			middleware.RequireParticipantWSAuth(authService),
			handlers.WS.SessionStream,
		)
		// Live viewing is registration-free and read-only.
		ws.GET("/live/exams/:exam_id/stream", handlers.Live.LiveStream)
	}

	// ─── 4. Organizer Group (JWT) ──────────────────────────────────────
	organizerAPI := router.Group("/api/v1/organizer")
	organizerAPI.Use(middleware.RequireOrganizerJWT(authService))
	{
		organizerAPI.GET("/exams", handlers.Exam.ListExams)
		organizerAPI.POST("/exams", handlers.Exam.CreateExam)
		organizerAPI.GET("/exams/:exam_id", handlers.Exam.GetExam)
		organizerAPI.PUT("/exams/:exam_id/questions", handlers.Exam.ReplaceQuestions)
		organizerAPI.PUT("/exams/:exam_id/allow-list", handlers.Exam.UpdateAllowList)
		organizerAPI.POST("/exams/:exam_id/publish", handlers.Exam.PublishExam)
		organizerAPI.GET("/exams/:exam_id/results", handlers.Exam.ListResults)
		organizerAPI.GET("/exams/:exam_id/results/feed", handlers.Exam.ResultsFeedSSE)
	}

	return router
}
