package handlers

import (
	"github.com/gin-gonic/gin"

	"github.com/yungbote/bloomie-backend/internal/http/response"
	"github.com/yungbote/bloomie-backend/internal/services"
)

type RoadmapHandler struct {
	roadmaps services.RoadmapService
}

func NewRoadmapHandler(roadmaps services.RoadmapService) *RoadmapHandler {
	return &RoadmapHandler{roadmaps: roadmaps}
}

// GET /api/children/:child_id/roadmap
func (h *RoadmapHandler) GetRoadmap(c *gin.Context) {
	childID, ok := childIDParam(c)
	if !ok {
		return
	}
	buckets, err := h.roadmaps.GetRoadmap(c.Request.Context(), childID)
	if err != nil {
		respondErr(c, err)
		return
	}
	response.RespondOK(c, gin.H{"child_id": childID, "buckets": buckets})
}
