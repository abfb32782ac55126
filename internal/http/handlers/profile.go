package handlers

import (
	"errors"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/yungbote/bloomie-backend/internal/http/response"
	"github.com/yungbote/bloomie-backend/internal/platform/logger"
	"github.com/yungbote/bloomie-backend/internal/services"
)

const (
	defaultListLimit = 50
	maxListLimit     = 500
)

type ProfileHandler struct {
	log      *logger.Logger
	profiles services.ProfileService
}

func NewProfileHandler(log *logger.Logger, profiles services.ProfileService) *ProfileHandler {
	return &ProfileHandler{log: log.With("handler", "ProfileHandler"), profiles: profiles}
}

// POST /api/children/:child_id/genetic-report
func (h *ProfileHandler) IngestGeneticReport(c *gin.Context) {
	childID, ok := childIDParam(c)
	if !ok {
		return
	}
	var report services.GeneticReport
	if err := c.ShouldBindJSON(&report); err != nil {
		badRequest(c, "invalid_request", err)
		return
	}
	if report.ChildID != "" && strings.TrimSpace(report.ChildID) != childID {
		badRequest(c, "child_id_mismatch", errors.New("report child_id does not match the path"))
		return
	}
	report.ChildID = childID

	res, err := h.profiles.IngestGeneticReport(c.Request.Context(), report)
	var initErr *services.InitialEntryError
	if err != nil && !errors.As(err, &initErr) {
		respondErr(c, err)
		return
	}
	payload := gin.H{"trait_set": res.TraitSet, "initial_entry": res.InitialEntry}
	if initErr != nil {
		// The trait set is stored; the client retries the initial check-in on its own.
		h.log.Warn("initial entry not created", "child_id", childID, "error", initErr)
		payload["initial_entry_error"] = toAPIError(initErr.Err).Code
	}
	response.RespondCreated(c, payload)
}

// GET /api/children/:child_id/traits
func (h *ProfileHandler) GetTraits(c *gin.Context) {
	childID, ok := childIDParam(c)
	if !ok {
		return
	}
	ts, err := h.profiles.GetTraitSet(c.Request.Context(), childID)
	if err != nil {
		respondErr(c, err)
		return
	}
	response.RespondOK(c, gin.H{"trait_set": ts})
}

// GET /api/children/:child_id/entries?limit=
func (h *ProfileHandler) ListEntries(c *gin.Context) {
	childID, ok := childIDParam(c)
	if !ok {
		return
	}
	limit, ok := listLimit(c)
	if !ok {
		return
	}
	entries, err := h.profiles.ListEntries(c.Request.Context(), childID, limit)
	if err != nil {
		respondErr(c, err)
		return
	}
	response.RespondOK(c, gin.H{"entries": entries})
}

// GET /api/children/:child_id/medical-logs?limit=&trait=&days=
func (h *ProfileHandler) ListMedicalLogs(c *gin.Context) {
	childID, ok := childIDParam(c)
	if !ok {
		return
	}
	if trait := strings.TrimSpace(c.Query("trait")); trait != "" {
		days, ok := queryInt(c, "days", 30)
		if !ok {
			return
		}
		logs, err := h.profiles.ListMedicalLogsByTrait(c.Request.Context(), childID, trait, days)
		if err != nil {
			respondErr(c, err)
			return
		}
		response.RespondOK(c, gin.H{"medical_logs": logs})
		return
	}
	limit, ok := listLimit(c)
	if !ok {
		return
	}
	logs, err := h.profiles.ListMedicalLogs(c.Request.Context(), childID, limit)
	if err != nil {
		respondErr(c, err)
		return
	}
	response.RespondOK(c, gin.H{"medical_logs": logs})
}

// GET /api/children/:child_id/medical-logs/:log_id
func (h *ProfileHandler) GetMedicalLog(c *gin.Context) {
	childID, ok := childIDParam(c)
	if !ok {
		return
	}
	id, ok := uuidParam(c, "log_id", "invalid_log_id")
	if !ok {
		return
	}
	row, err := h.profiles.GetMedicalLog(c.Request.Context(), childID, id)
	if err != nil {
		respondErr(c, err)
		return
	}
	response.RespondOK(c, gin.H{"medical_log": row})
}

// GET /api/children/:child_id/immunity
func (h *ProfileHandler) ImmunityDashboard(c *gin.Context) {
	childID, ok := childIDParam(c)
	if !ok {
		return
	}
	d, err := h.profiles.ImmunityDashboard(c.Request.Context(), childID)
	if err != nil {
		respondErr(c, err)
		return
	}
	response.RespondOK(c, d)
}

func listLimit(c *gin.Context) (int, bool) {
	limit, ok := queryInt(c, "limit", defaultListLimit)
	if !ok {
		return 0, false
	}
	if limit == 0 {
		limit = defaultListLimit
	}
	if limit > maxListLimit {
		limit = maxListLimit
	}
	return limit, true
}
