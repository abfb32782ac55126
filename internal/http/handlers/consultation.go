package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/yungbote/bloomie-backend/internal/http/response"
	"github.com/yungbote/bloomie-backend/internal/services"
)

type ConsultationHandler struct {
	consultations services.ConsultationService
}

func NewConsultationHandler(consultations services.ConsultationService) *ConsultationHandler {
	return &ConsultationHandler{consultations: consultations}
}

type messageRequest struct {
	Text     string `json:"text"`
	ImageURL string `json:"image_url"`
}

// POST /api/children/:child_id/consultations
func (h *ConsultationHandler) StartConsultation(c *gin.Context) {
	childID, ok := childIDParam(c)
	if !ok {
		return
	}
	var req messageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid_request", err)
		return
	}
	out, err := h.consultations.Start(c.Request.Context(), childID, req.Text, req.ImageURL)
	if err != nil {
		respondErr(c, err)
		return
	}
	response.RespondCreated(c, out)
}

// POST /api/consultations/:id/messages
func (h *ConsultationHandler) SendMessage(c *gin.Context) {
	id, ok := uuidParam(c, "id", "invalid_session_id")
	if !ok {
		return
	}
	var req messageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid_request", err)
		return
	}
	out, err := h.consultations.Send(c.Request.Context(), id, req.Text, req.ImageURL)
	if err != nil {
		respondErr(c, err)
		return
	}
	response.RespondOK(c, out)
}

// POST /api/consultations/:id/complete
func (h *ConsultationHandler) CompleteConsultation(c *gin.Context) {
	id, ok := uuidParam(c, "id", "invalid_session_id")
	if !ok {
		return
	}
	out, err := h.consultations.Complete(c.Request.Context(), id)
	if err != nil {
		respondErr(c, err)
		return
	}
	response.RespondOK(c, out)
}

// GET /api/consultations/:id
func (h *ConsultationHandler) GetConsultation(c *gin.Context) {
	id, ok := uuidParam(c, "id", "invalid_session_id")
	if !ok {
		return
	}
	sess, err := h.consultations.Get(c.Request.Context(), id)
	if err != nil {
		respondErr(c, err)
		return
	}
	response.RespondOK(c, gin.H{"session": sess})
}

// DELETE /api/consultations/:id
func (h *ConsultationHandler) AbandonConsultation(c *gin.Context) {
	id, ok := uuidParam(c, "id", "invalid_session_id")
	if !ok {
		return
	}
	if err := h.consultations.Abandon(c.Request.Context(), id); err != nil {
		respondErr(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}
