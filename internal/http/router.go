package http

import (
	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"

	httpH "github.com/yungbote/bloomie-backend/internal/http/handlers"
	httpMW "github.com/yungbote/bloomie-backend/internal/http/middleware"
	"github.com/yungbote/bloomie-backend/internal/observability"
	"github.com/yungbote/bloomie-backend/internal/platform/logger"
)

type RouterConfig struct {
	Log         *logger.Logger
	Metrics     *observability.Metrics
	ServiceName string
	CORSOrigins []string

	HealthHandler       *httpH.HealthHandler
	CheckInHandler      *httpH.CheckInHandler
	ConsultationHandler *httpH.ConsultationHandler
	ProfileHandler      *httpH.ProfileHandler
	RoadmapHandler      *httpH.RoadmapHandler
	KnowledgeHandler    *httpH.KnowledgeHandler
}

func NewRouter(cfg RouterConfig) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	if cfg.ServiceName != "" {
		r.Use(otelgin.Middleware(cfg.ServiceName))
	}
	r.Use(httpMW.AttachTraceContext())
	r.Use(httpMW.AttachRequestContext())
	if cfg.Log != nil {
		r.Use(httpMW.RequestLogger(cfg.Log))
	}
	r.Use(httpMW.Metrics(cfg.Metrics))
	r.Use(httpMW.CORS(cfg.CORSOrigins...))

	// Health
	if cfg.HealthHandler != nil {
		r.GET("/healthcheck", cfg.HealthHandler.HealthCheck)
	}
	if cfg.Metrics != nil {
		r.GET("/metrics", gin.WrapF(cfg.Metrics.WriteHTTP))
	}

	api := r.Group("/api")
	children := api.Group("/children/:child_id")

	// Genetic profile
	if cfg.ProfileHandler != nil {
		children.POST("/genetic-report", cfg.ProfileHandler.IngestGeneticReport)
		children.GET("/traits", cfg.ProfileHandler.GetTraits)
		children.GET("/entries", cfg.ProfileHandler.ListEntries)
		children.GET("/medical-logs", cfg.ProfileHandler.ListMedicalLogs)
		children.GET("/medical-logs/:log_id", cfg.ProfileHandler.GetMedicalLog)
		children.GET("/immunity", cfg.ProfileHandler.ImmunityDashboard)
	}

	// Roadmap
	if cfg.RoadmapHandler != nil {
		children.GET("/roadmap", cfg.RoadmapHandler.GetRoadmap)
	}

	// Check-ins
	if cfg.CheckInHandler != nil {
		children.POST("/checkins", cfg.CheckInHandler.StartCheckIn)
		api.GET("/checkins/:id", cfg.CheckInHandler.GetCheckIn)
		api.DELETE("/checkins/:id", cfg.CheckInHandler.AbandonCheckIn)
		api.PUT("/checkins/:id/answers/:index", cfg.CheckInHandler.AnswerQuestion)
		api.PUT("/checkins/:id/concern", cfg.CheckInHandler.DescribeConcern)
		api.POST("/checkins/:id/submit", cfg.CheckInHandler.SubmitCheckIn)
	}

	// Consultations
	if cfg.ConsultationHandler != nil {
		children.POST("/consultations", cfg.ConsultationHandler.StartConsultation)
		api.GET("/consultations/:id", cfg.ConsultationHandler.GetConsultation)
		api.DELETE("/consultations/:id", cfg.ConsultationHandler.AbandonConsultation)
		api.POST("/consultations/:id/messages", cfg.ConsultationHandler.SendMessage)
		api.POST("/consultations/:id/complete", cfg.ConsultationHandler.CompleteConsultation)
	}

	// Knowledge retrieval
	if cfg.KnowledgeHandler != nil {
		knowledge := api.Group("/knowledge")
		knowledge.GET("/status", cfg.KnowledgeHandler.Status)
		knowledge.GET("/search", cfg.KnowledgeHandler.SearchQuery)
		knowledge.POST("/search", cfg.KnowledgeHandler.Search)
		knowledge.POST("/load", cfg.KnowledgeHandler.Load)
	}

	return r
}
