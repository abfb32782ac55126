package app

import (
	"fmt"

	"github.com/yungbote/bloomie-backend/internal/knowledge"
	"github.com/yungbote/bloomie-backend/internal/platform/logger"
	"github.com/yungbote/bloomie-backend/internal/services"
)

type Services struct {
	Generative     services.GenerativeCapability
	Matcher        services.TraitMatcher
	Detector       services.TopicDetector
	Recommendation services.RecommendationGenerator
	MedicalLogs    services.MedicalLogGenerator
	Knowledge      services.KnowledgeRetriever

	CheckIns      services.CheckInService
	Consultations services.ConsultationService
	Profiles      services.ProfileService
	Roadmaps      services.RoadmapService

	Sweeper *services.SessionSweeper
}

func wireServices(log *logger.Logger, cfg Config, kb *knowledge.Base, reposet Repos, clients Clients) (Services, error) {
	log.Info("Wiring services...")
	engine := cfg.Engine()

	gen := services.NewGenerative(services.NewOpenAIBackend(clients.OpenaiClient), log, engine.GenerationTimeout)

	matcher, err := services.NewTraitMatcher(kb)
	if err != nil {
		return Services{}, fmt.Errorf("init trait matcher: %w", err)
	}
	detector, err := services.NewTopicDetector(kb)
	if err != nil {
		return Services{}, fmt.Errorf("init topic detector: %w", err)
	}
	var embedder services.Embedder
	if clients.VectorStore != nil {
		embedder = clients.OpenaiClient
	}
	retriever := services.NewKnowledgeRetriever(log, kb, embedder, clients.VectorStore, cfg.KnowledgeMinScore)
	recommendation := services.NewRecommendationGenerator(log, gen, kb, retriever)
	medicalLogs := services.NewMedicalLogGenerator(log, gen)
	selector := services.NewQuestionSelector(kb, engine.MaxCheckInQuestions)

	checkIns := services.NewCheckInService(
		log,
		engine,
		reposet.TraitSet,
		reposet.LogEntry,
		selector,
		recommendation,
		clients.SlotLocker,
	)
	consultations := services.NewConsultationService(
		log,
		engine,
		reposet.TraitSet,
		reposet.MedicalLog,
		gen,
		detector,
		medicalLogs,
		clients.SlotLocker,
	)
	profiles := services.NewProfileService(
		log,
		kb,
		matcher,
		reposet.TraitSet,
		reposet.LogEntry,
		reposet.MedicalLog,
		checkIns,
	)
	roadmaps := services.NewRoadmapService(
		log,
		reposet.TraitSet,
		reposet.MilestoneCache,
		services.NewMilestoneComputer(kb),
	)

	return Services{
		Generative:     gen,
		Matcher:        matcher,
		Detector:       detector,
		Recommendation: recommendation,
		MedicalLogs:    medicalLogs,
		Knowledge:      retriever,
		CheckIns:       checkIns,
		Consultations:  consultations,
		Profiles:       profiles,
		Roadmaps:       roadmaps,
		Sweeper:        services.NewSessionSweeper(log, engine.SweepInterval, checkIns, consultations),
	}, nil
}
