package handlers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/yungbote/bloomie-backend/internal/http/response"
	"github.com/yungbote/bloomie-backend/internal/services"
)

type CheckInHandler struct {
	checkIns services.CheckInService
}

func NewCheckInHandler(checkIns services.CheckInService) *CheckInHandler {
	return &CheckInHandler{checkIns: checkIns}
}

type startCheckInRequest struct {
	Type    string `json:"type"`
	Concern string `json:"concern"`
}

// POST /api/children/:child_id/checkins
func (h *CheckInHandler) StartCheckIn(c *gin.Context) {
	childID, ok := childIDParam(c)
	if !ok {
		return
	}
	var req startCheckInRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid_request", err)
		return
	}
	sess, err := h.checkIns.Start(c.Request.Context(), childID, req.Type, req.Concern)
	if err != nil {
		respondErr(c, err)
		return
	}
	response.RespondCreated(c, gin.H{"session": sess})
}

type answerRequest struct {
	Answer string `json:"answer"`
}

// PUT /api/checkins/:id/answers/:index
func (h *CheckInHandler) AnswerQuestion(c *gin.Context) {
	id, ok := uuidParam(c, "id", "invalid_session_id")
	if !ok {
		return
	}
	index, err := strconv.Atoi(c.Param("index"))
	if err != nil {
		badRequest(c, "invalid_question_index", err)
		return
	}
	var req answerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid_request", err)
		return
	}
	sess, err := h.checkIns.Answer(c.Request.Context(), id, index, req.Answer)
	if err != nil {
		respondErr(c, err)
		return
	}
	response.RespondOK(c, gin.H{"session": sess})
}

type concernRequest struct {
	Concern string `json:"concern"`
}

// PUT /api/checkins/:id/concern
func (h *CheckInHandler) DescribeConcern(c *gin.Context) {
	id, ok := uuidParam(c, "id", "invalid_session_id")
	if !ok {
		return
	}
	var req concernRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid_request", err)
		return
	}
	sess, err := h.checkIns.DescribeConcern(c.Request.Context(), id, req.Concern)
	if err != nil {
		respondErr(c, err)
		return
	}
	response.RespondOK(c, gin.H{"session": sess})
}

// POST /api/checkins/:id/submit
func (h *CheckInHandler) SubmitCheckIn(c *gin.Context) {
	id, ok := uuidParam(c, "id", "invalid_session_id")
	if !ok {
		return
	}
	entry, err := h.checkIns.Submit(c.Request.Context(), id)
	if err != nil {
		respondErr(c, err)
		return
	}
	response.RespondCreated(c, gin.H{"entry": entry})
}

// GET /api/checkins/:id
func (h *CheckInHandler) GetCheckIn(c *gin.Context) {
	id, ok := uuidParam(c, "id", "invalid_session_id")
	if !ok {
		return
	}
	sess, err := h.checkIns.Get(c.Request.Context(), id)
	if err != nil {
		respondErr(c, err)
		return
	}
	response.RespondOK(c, gin.H{"session": sess})
}

// DELETE /api/checkins/:id
func (h *CheckInHandler) AbandonCheckIn(c *gin.Context) {
	id, ok := uuidParam(c, "id", "invalid_session_id")
	if !ok {
		return
	}
	if err := h.checkIns.Abandon(c.Request.Context(), id); err != nil {
		respondErr(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}
