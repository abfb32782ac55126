package app

import (
	"github.com/gin-gonic/gin"

	"github.com/yungbote/bloomie-backend/internal/http"
	httpH "github.com/yungbote/bloomie-backend/internal/http/handlers"
	"github.com/yungbote/bloomie-backend/internal/observability"
	"github.com/yungbote/bloomie-backend/internal/platform/logger"
)

type Handlers struct {
	Health       *httpH.HealthHandler
	CheckIn      *httpH.CheckInHandler
	Consultation *httpH.ConsultationHandler
	Profile      *httpH.ProfileHandler
	Roadmap      *httpH.RoadmapHandler
	Knowledge    *httpH.KnowledgeHandler
}

func wireHandlers(log *logger.Logger, services Services) Handlers {
	log.Info("Wiring handlers...")
	return Handlers{
		Health:       httpH.NewHealthHandler(),
		CheckIn:      httpH.NewCheckInHandler(services.CheckIns),
		Consultation: httpH.NewConsultationHandler(services.Consultations),
		Profile:      httpH.NewProfileHandler(log, services.Profiles),
		Roadmap:      httpH.NewRoadmapHandler(services.Roadmaps),
		Knowledge:    httpH.NewKnowledgeHandler(services.Knowledge),
	}
}

func wireRouter(log *logger.Logger, cfg Config, metrics *observability.Metrics, handlers Handlers) *gin.Engine {
	serviceName := ""
	if cfg.OtelEnabled {
		serviceName = cfg.OtelServiceName
	}
	return http.NewRouter(http.RouterConfig{
		Log:                 log,
		Metrics:             metrics,
		ServiceName:         serviceName,
		CORSOrigins:         cfg.CORSOrigins,
		HealthHandler:       handlers.Health,
		CheckInHandler:      handlers.CheckIn,
		ConsultationHandler: handlers.Consultation,
		ProfileHandler:      handlers.Profile,
		RoadmapHandler:      handlers.Roadmap,
		KnowledgeHandler:    handlers.Knowledge,
	})
}
