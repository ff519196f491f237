package handlers

import (
	"io"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/shubham-gupta-2717/EcoFarming-sub000/internal/api/middleware"
	"github.com/shubham-gupta-2717/EcoFarming-sub000/internal/catalog"
	"github.com/shubham-gupta-2717/EcoFarming-sub000/internal/models"
	"github.com/shubham-gupta-2717/EcoFarming-sub000/internal/services"
)

// RestMissionHandler serves the farmer-facing mission routes.
type RestMissionHandler struct {
	missionService services.IMissionService
	catalog        *catalog.Catalog
	maxImageBytes  int64
}

func NewRestMissionHandler(missionService services.IMissionService, cat *catalog.Catalog, maxImageBytes int64) *RestMissionHandler {
	return &RestMissionHandler{missionService: missionService, catalog: cat, maxImageBytes: maxImageBytes}
}

type AssignRequest struct {
	Crop    string               `json:"crop" binding:"required"`
	Mission *models.MissionDraft `json:"mission"`
}

// Assign handles POST /v1/missions/assign
func (h *RestMissionHandler) Assign(c *gin.Context) {
	var req AssignRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "Invalid request: crop is required")
		return
	}
	m, err := h.missionService.Assign(c.Request.Context(), middleware.UserID(c), req.Crop, req.Mission)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, m)
}

// List handles GET /v1/missions?status=&crop=
func (h *RestMissionHandler) List(c *gin.Context) {
	f := models.MissionFilter{UserID: middleware.UserID(c), Crop: c.Query("crop")}
	if raw := c.Query("status"); raw != "" {
		for _, s := range strings.Split(raw, ",") {
			status := models.MissionStatus(strings.ToUpper(strings.TrimSpace(s)))
			if !status.Valid() {
				badRequest(c, "Invalid status: "+s)
				return
			}
			f.Statuses = append(f.Statuses, status)
		}
	}
	missions, err := h.missionService.List(c.Request.Context(), f)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"missions": missions, "count": len(missions)})
}

// Get handles GET /v1/missions/:id
func (h *RestMissionHandler) Get(c *gin.Context) {
	m, err := h.missionService.Get(c.Request.Context(), c.Param("id"), middleware.UserID(c), middleware.Role(c))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, m)
}

// Submit handles POST /v1/missions/:id/submit (multipart: image, note)
func (h *RestMissionHandler) Submit(c *gin.Context) {
	fh, err := c.FormFile("image")
	if err != nil {
		badRequest(c, "Proof image is required")
		return
	}
	f, err := fh.Open()
	if err != nil {
		badRequest(c, "Unreadable proof image")
		return
	}
	defer f.Close()
	// One byte past the limit is enough for the service to refuse it.
	image, err := io.ReadAll(io.LimitReader(f, h.maxImageBytes+1))
	if err != nil {
		badRequest(c, "Unreadable proof image")
		return
	}

	m, err := h.missionService.Submit(c.Request.Context(), middleware.UserID(c), c.Param("id"), image, c.PostForm("note"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusAccepted, m)
}

// Delete handles DELETE /v1/missions/:id
func (h *RestMissionHandler) Delete(c *gin.Context) {
	if err := h.missionService.Delete(c.Request.Context(), c.Param("id"), middleware.UserID(c), middleware.Role(c)); err != nil {
		respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// GetPipeline handles GET /v1/pipelines/:crop
func (h *RestMissionHandler) GetPipeline(c *gin.Context) {
	name, stages, ok := h.catalog.Pipeline(c.Param("crop"))
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "No pipeline for crop " + c.Param("crop")})
		return
	}
	c.JSON(http.StatusOK, gin.H{"crop": name, "stages": stages})
}
