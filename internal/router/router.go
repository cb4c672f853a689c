package router

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/stemsi/exstem-authoring/internal/config"
	"github.com/stemsi/exstem-authoring/internal/handler"
	"github.com/stemsi/exstem-authoring/internal/middleware"
	"github.com/stemsi/exstem-authoring/internal/model"
	"github.com/stemsi/exstem-authoring/internal/response"
	"github.com/stemsi/exstem-authoring/internal/service"
)

// Handlers groups all handler instances for route setup.
type Handlers struct {
	Draft *handler.DraftHandler
	Bulk  *handler.BulkHandler
	WS    *handler.WSHandler

	// Health reports per-store status for /health. Nil reports "ok".
	Health func(ctx context.Context) (map[string]string, bool)
}

// SetupRouter configures all Gin route groups with appropriate middlewares.
func SetupRouter(
	authService *service.AuthService,
	drafts middleware.DraftOwnerChecker,
	parseLimiter *middleware.RateLimiter,
	handlers *Handlers,
	cfg *config.Config,
) *gin.Engine {
	gin.SetMode(cfg.GinMode)
	router := gin.Default()
	router.MaxMultipartMemory = 8 << 20

	// ─── CORS ──────────────────────────────────────────────────────────
	// If AllowedOrigins is set in config, restrict to that list;
	// otherwise allow all (*) so dev works without extra config.
	corsConfig := cors.DefaultConfig()
	if len(cfg.AllowedOrigins) > 0 {
		corsConfig.AllowOrigins = cfg.AllowedOrigins
	} else {
		corsConfig.AllowAllOrigins = true
	}
	corsConfig.AllowMethods = []string{"GET", "POST", "PATCH", "DELETE", "OPTIONS"}
	corsConfig.AllowHeaders = []string{"Origin", "Content-Type", "Authorization", "X-Request-ID"}
	corsConfig.ExposeHeaders = []string{"X-Request-ID"}
	corsConfig.MaxAge = 12 * time.Hour
	router.Use(cors.New(corsConfig))

	// Apply request ID middleware globally so every response includes metadata.
	router.Use(response.RequestIDMiddleware())
	router.Use(middleware.Brotli())

	// Health check.
	router.GET("/health", func(c *gin.Context) {
		if handlers.Health == nil {
			response.Success(c, http.StatusOK, gin.H{"status": "ok"})
			return
		}
		stores, healthy := handlers.Health(c.Request.Context())
		if !healthy {
			response.Success(c, http.StatusServiceUnavailable, gin.H{"status": "degraded", "stores": stores})
			return
		}
		response.Success(c, http.StatusOK, gin.H{"status": "ok", "stores": stores})
	})

	// ─── 1. Authoring Group (JWT + RBAC) ───────────────────────────────
	authoring := router.Group("/api/v1/authoring")
	authoring.Use(middleware.RequireAuthorJWT(authService), middleware.NoStore())

	write := middleware.RequirePermission(model.PermissionProblemsWrite)
	owner := middleware.RequireDraftOwner(drafts)
	{
		// Opening a draft runs the parser, so it is rate limited per author.
		authoring.POST("/drafts", write, parseLimiter.Middleware(), handlers.Draft.OpenDraft)
		authoring.POST("/drafts/archive", write, parseLimiter.Middleware(), handlers.Draft.OpenArchiveDraft)

		session := authoring.Group("/drafts/:id", write, owner)
		{
			session.GET("", handlers.Draft.GetDraft)
			session.PATCH("", handlers.Draft.UpdateDraft)
			session.DELETE("", handlers.Draft.CloseDraft)
			session.POST("/format", handlers.Draft.FormatDescription)
			session.POST("/transform", handlers.Draft.TransformDraft)
			session.POST("/archive", handlers.Draft.AttachArchive)
			session.POST("/testcases", handlers.Draft.UploadTestcases)
			session.PATCH("/testcases/:name", handlers.Draft.UpdateTestcase)
			session.DELETE("/testcases/:name", handlers.Draft.RemoveTestcase)
			session.GET("/validation", handlers.Draft.ValidateTestcases)
			session.POST("/submit", handlers.Draft.SubmitDraft)
		}

		bulkPerm := middleware.RequirePermission(model.PermissionProblemsBulk)
		authoring.POST("/bulk", bulkPerm, handlers.Bulk.CreateBulk)
		authoring.GET("/bulk/runs", bulkPerm, handlers.Bulk.ListRuns)
		authoring.GET("/bulk/runs/:id", bulkPerm, handlers.Bulk.GetRun)
	}

	// ─── 2. WebSocket Group (Token Query Auth) ─────────────────────────
	ws := router.Group("/ws/v1/authoring")
	ws.Use(
		middleware.RequireAuthorWSAuth(authService),
		middleware.RequirePermission(model.PermissionProblemsBulk),
	)
	{
		ws.GET("/bulk/:id/stream", handlers.WS.BulkRunStream)
	}

	return router
}
