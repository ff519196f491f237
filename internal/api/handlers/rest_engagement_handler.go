package handlers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/shubham-gupta-2717/EcoFarming-sub000/internal/api/middleware"
	"github.com/shubham-gupta-2717/EcoFarming-sub000/internal/services"
	"github.com/shubham-gupta-2717/EcoFarming-sub000/internal/store"
)

// RestEngagementHandler serves streaks, activity counters, badges, the dashboard and leaderboards.
type RestEngagementHandler struct {
	streakService      services.IStreakService
	activityService    services.IActivityService
	badgeService       services.IBadgeService
	dashboardService   services.IDashboardService
	leaderboardService services.ILeaderboardService
}

func NewRestEngagementHandler(
	streakService services.IStreakService,
	activityService services.IActivityService,
	badgeService services.IBadgeService,
	dashboardService services.IDashboardService,
	leaderboardService services.ILeaderboardService,
) *RestEngagementHandler {
	return &RestEngagementHandler{
		streakService:      streakService,
		activityService:    activityService,
		badgeService:       badgeService,
		dashboardService:   dashboardService,
		leaderboardService: leaderboardService,
	}
}

// CheckIn handles POST /v1/streak/checkin
func (h *RestEngagementHandler) CheckIn(c *gin.Context) {
	res, err := h.streakService.CheckIn(c.Request.Context(), middleware.UserID(c))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

type ActivityRequest struct {
	Value int `json:"value"`
}

// RecordActivity handles POST /v1/activity/:kind
func (h *RestEngagementHandler) RecordActivity(c *gin.Context) {
	var req ActivityRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			badRequest(c, "Invalid request body")
			return
		}
	}
	kind := services.ActivityKind(c.Param("kind"))
	if err := h.activityService.Record(c.Request.Context(), middleware.UserID(c), kind, req.Value); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true})
}

// GetBadges handles GET /v1/badges
func (h *RestEngagementHandler) GetBadges(c *gin.Context) {
	summary, err := h.badgeService.GetBadges(c.Request.Context(), middleware.UserID(c))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, summary)
}

// GetDashboard handles GET /v1/dashboard
func (h *RestEngagementHandler) GetDashboard(c *gin.Context) {
	d, err := h.dashboardService.GetDashboard(c.Request.Context(), middleware.UserID(c))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, d)
}

// GetLeaderboard handles GET /v1/leaderboard?scope=&value=&limit=
func (h *RestEngagementHandler) GetLeaderboard(c *gin.Context) {
	limit := 0
	if raw := c.Query("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			badRequest(c, "limit must be a positive integer")
			return
		}
		limit = n
	}
	scope := store.Scope(c.Query("scope"))
	if scope == "global" {
		scope = store.ScopeGlobal
	}
	board, err := h.leaderboardService.GetLeaderboard(c.Request.Context(), scope, c.Query("value"), limit)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, board)
}
