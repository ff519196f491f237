package api

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/shubham-gupta-2717/EcoFarming-sub000/internal/api/handlers"
	"github.com/shubham-gupta-2717/EcoFarming-sub000/internal/api/middleware"
	"github.com/shubham-gupta-2717/EcoFarming-sub000/internal/auth"
	"github.com/shubham-gupta-2717/EcoFarming-sub000/internal/catalog"
	"github.com/shubham-gupta-2717/EcoFarming-sub000/internal/config"
	"github.com/shubham-gupta-2717/EcoFarming-sub000/internal/models"
	"github.com/shubham-gupta-2717/EcoFarming-sub000/internal/services"
)

// Services are the engine operations the public API exposes.
type Services struct {
	Missions    services.IMissionService
	Streaks     services.IStreakService
	Activity    services.IActivityService
	Badges      services.IBadgeService
	Dashboard   services.IDashboardService
	Leaderboard services.ILeaderboardService
	Fraud       services.IFraudService
	Catalog     *catalog.Catalog
}

// Limiters are the rate limiters applied to the public API. The caller owns their lifetime.
type Limiters struct {
	General *middleware.RateLimiter
	Upload  *middleware.RateLimiter
}

// requestLogger logs one line per request.
func requestLogger(logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		fields := []zap.Field{
			zap.String("method", c.Request.Method),
			zap.String("path", c.FullPath()),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("latency", time.Since(start)),
			zap.String("client", c.ClientIP()),
		}
		if len(c.Errors) > 0 {
			fields = append(fields, zap.String("errors", c.Errors.String()))
		}
		if c.Writer.Status() >= http.StatusInternalServerError {
			logger.Error("Request failed", fields...)
			return
		}
		logger.Info("Request", fields...)
	}
}

// SetupRouter configures and returns the main Gin engine.
func SetupRouter(cfg *config.Config, svc Services, limiters Limiters, logger *zap.Logger) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery(), requestLogger(logger))
	r.Use(middleware.CORSMiddleware(cfg.CorsAllowedOrigin))
	r.MaxMultipartMemory = int64(cfg.ImageMaxSizeMB+1) << 20

	missionHandler := handlers.NewRestMissionHandler(svc.Missions, svc.Catalog, int64(cfg.ImageMaxSizeMB)<<20)
	engagementHandler := handlers.NewRestEngagementHandler(svc.Streaks, svc.Activity, svc.Badges, svc.Dashboard, svc.Leaderboard)
	adminHandler := handlers.NewRestAdminHandler(svc.Missions, svc.Fraud)

	v1 := r.Group("/v1")
	{
		v1.GET("/ping", func(c *gin.Context) {
			c.String(http.StatusOK, "pong")
		})

		// Authenticated Routes
		authRequired := v1.Group("/")
		authRequired.Use(middleware.AuthMiddleware(cfg.JwtSecret), limiters.General.Limit())
		{
			authRequired.POST("/missions/assign", missionHandler.Assign)
			authRequired.GET("/missions", missionHandler.List)
			authRequired.GET("/missions/:id", missionHandler.Get)
			authRequired.POST("/missions/:id/submit", limiters.Upload.Limit(), missionHandler.Submit)
			authRequired.DELETE("/missions/:id", missionHandler.Delete)
			authRequired.GET("/pipelines/:crop", missionHandler.GetPipeline)

			authRequired.POST("/streak/checkin", engagementHandler.CheckIn)
			authRequired.POST("/activity/:kind", engagementHandler.RecordActivity)
			authRequired.GET("/badges", engagementHandler.GetBadges)
			authRequired.GET("/dashboard", engagementHandler.GetDashboard)
			authRequired.GET("/leaderboard", engagementHandler.GetLeaderboard)
		}

		// Admin Routes. Institutions may only assign missions.
		adminRequired := v1.Group("/admin")
		adminRequired.Use(middleware.AuthMiddleware(cfg.JwtSecret), limiters.General.Limit())
		{
			adminRequired.POST("/missions", middleware.RoleMiddleware(models.RoleAdmin, models.RoleInstitution), adminHandler.AssignTo)

			adminOnly := adminRequired.Group("/", middleware.AdminMiddleware())
			adminOnly.GET("/missions/pending", adminHandler.Pending)
			adminOnly.POST("/missions/:id/approve", adminHandler.Approve)
			adminOnly.POST("/missions/:id/reject", adminHandler.Reject)
			adminOnly.GET("/fraud/:userId", adminHandler.FraudReport)
			adminOnly.POST("/fraud/:userId/flag", adminHandler.Flag)
		}
	}

	return r
}

// HealthChecker reports whether a dependency is reachable.
type HealthChecker func(ctx context.Context) error

// SetupServiceRouter configures the internal service API. When cfg.ServiceApiKeyHash is set,
// callers must present the matching X-Service-Key.
func SetupServiceRouter(cfg *config.Config, health HealthChecker, shutdownChan chan<- struct{}, logger *zap.Logger) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery(), requestLogger(logger))

	r.POST("/api", func(c *gin.Context) {
		if cfg.ServiceApiKeyHash != "" && !auth.CheckServiceKey(c.GetHeader("X-Service-Key"), cfg.ServiceApiKeyHash) {
			c.JSON(http.StatusUnauthorized, gin.H{"success": false, "error": "Invalid service key"})
			return
		}

		var req struct {
			Method string `json:"method"`
		}
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": "Invalid request format"})
			return
		}

		switch req.Method {
		case "shutdown":
			logger.Info("Received shutdown command via Service API")
			c.JSON(http.StatusOK, gin.H{"success": true, "result": "Shutdown initiated"})
			select {
			case shutdownChan <- struct{}{}:
			default:
				logger.Warn("Shutdown already signaled")
			}
		case "health":
			ctx, cancel := context.WithTimeout(c.Request.Context(), 5*time.Second)
			defer cancel()
			if err := health(ctx); err != nil {
				c.JSON(http.StatusServiceUnavailable, gin.H{"success": false, "error": err.Error()})
				return
			}
			c.JSON(http.StatusOK, gin.H{"success": true, "result": "ok"})
		default:
			c.JSON(http.StatusNotFound, gin.H{"success": false, "error": "Unknown service method: " + req.Method})
		}
	})
	return r
}
