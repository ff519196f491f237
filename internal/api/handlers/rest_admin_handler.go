package handlers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/shubham-gupta-2717/EcoFarming-sub000/internal/api/middleware"
	"github.com/shubham-gupta-2717/EcoFarming-sub000/internal/models"
	"github.com/shubham-gupta-2717/EcoFarming-sub000/internal/services"
)

const defaultPendingLimit = 50

// RestAdminHandler serves review, institutional assignment and fraud routes.
type RestAdminHandler struct {
	missionService services.IMissionService
	fraudService   services.IFraudService
}

func NewRestAdminHandler(missionService services.IMissionService, fraudService services.IFraudService) *RestAdminHandler {
	return &RestAdminHandler{missionService: missionService, fraudService: fraudService}
}

// Pending handles GET /v1/admin/missions/pending
func (h *RestAdminHandler) Pending(c *gin.Context) {
	limit := defaultPendingLimit
	if raw := c.Query("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			badRequest(c, "limit must be a positive integer")
			return
		}
		limit = n
	}
	missions, err := h.missionService.Pending(c.Request.Context(), limit)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"missions": missions, "count": len(missions)})
}

type ReviewRequest struct {
	Reason string `json:"reason"`
}

// Approve handles POST /v1/admin/missions/:id/approve
func (h *RestAdminHandler) Approve(c *gin.Context) {
	var req ReviewRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			badRequest(c, "Invalid request body")
			return
		}
	}
	m, err := h.missionService.Approve(c.Request.Context(), c.Param("id"), middleware.UserID(c), req.Reason)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, m)
}

// Reject handles POST /v1/admin/missions/:id/reject
func (h *RestAdminHandler) Reject(c *gin.Context) {
	var req ReviewRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.Reason == "" {
		badRequest(c, "A rejection reason is required")
		return
	}
	m, err := h.missionService.Reject(c.Request.Context(), c.Param("id"), middleware.UserID(c), req.Reason)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, m)
}

type AssignToRequest struct {
	UserID  string              `json:"userId" binding:"required"`
	Crop    string              `json:"crop"`
	Mission models.MissionDraft `json:"mission"`
}

// AssignTo handles POST /v1/admin/missions
func (h *RestAdminHandler) AssignTo(c *gin.Context) {
	var req AssignToRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "Invalid request: userId and mission.title are required")
		return
	}
	m, err := h.missionService.AssignTo(c.Request.Context(), middleware.UserID(c), req.UserID, req.Crop, req.Mission)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, m)
}

// FraudReport handles GET /v1/admin/fraud/:userId
func (h *RestAdminHandler) FraudReport(c *gin.Context) {
	report, err := h.fraudService.Report(c.Request.Context(), c.Param("userId"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, report)
}

type FlagRequest struct {
	Reason   string          `json:"reason" binding:"required"`
	Severity models.Severity `json:"severity"`
}

// Flag handles POST /v1/admin/fraud/:userId/flag
func (h *RestAdminHandler) Flag(c *gin.Context) {
	var req FlagRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "A flag reason is required")
		return
	}
	report, err := h.fraudService.Flag(c.Request.Context(), c.Param("userId"), req.Reason, req.Severity)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, report)
}
