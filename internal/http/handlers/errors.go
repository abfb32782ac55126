package handlers

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/yungbote/bloomie-backend/internal/http/response"
	"github.com/yungbote/bloomie-backend/internal/platform/apierr"
	"github.com/yungbote/bloomie-backend/internal/services"
)

// toAPIError maps service sentinels onto HTTP statuses and stable codes.
func toAPIError(err error) *apierr.Error {
	if ae, ok := apierr.As(err); ok {
		return ae
	}
	switch {
	case errors.Is(err, services.ErrInvalidGeneticData):
		return apierr.New(http.StatusUnprocessableEntity, "invalid_genetic_data", err)
	case errors.Is(err, services.ErrSessionConflict):
		return apierr.New(http.StatusConflict, "session_conflict", err)
	case errors.Is(err, services.ErrValidation):
		return apierr.New(http.StatusBadRequest, "validation_failed", err)
	case errors.Is(err, services.ErrGenerationFailed):
		return apierr.New(http.StatusBadGateway, "generation_failed", errors.New("could not generate a response right now, please try again"))
	case errors.Is(err, services.ErrSessionExpired):
		return apierr.New(http.StatusGone, "session_expired", err)
	case errors.Is(err, services.ErrKnowledgeUnavailable):
		return apierr.New(http.StatusServiceUnavailable, "knowledge_unavailable", err)
	case errors.Is(err, services.ErrNotFound):
		return apierr.New(http.StatusNotFound, "not_found", err)
	case errors.Is(err, context.Canceled):
		return apierr.New(499, "request_cancelled", err)
	}
	return apierr.New(http.StatusInternalServerError, "internal_error", errors.New("internal error"))
}

func respondErr(c *gin.Context, err error) {
	response.RespondAPIError(c, toAPIError(err))
}

func badRequest(c *gin.Context, code string, err error) {
	response.RespondError(c, http.StatusBadRequest, code, err)
}
