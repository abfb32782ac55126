package app

import (
	"fmt"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"

	"github.com/yungbote/bloomie-backend/internal/data/db"
	"github.com/yungbote/bloomie-backend/internal/observability"
	"github.com/yungbote/bloomie-backend/internal/platform/qdrant"
	"github.com/yungbote/bloomie-backend/internal/services"
)

const (
	DBDriverPostgres = "postgres"
	DBDriverSQLite   = "sqlite"
)

type Config struct {
	LogMode string `env:"LOG_MODE" envDefault:"development"`
	Port    string `env:"PORT" envDefault:"8080"`

	CORSOrigins     []string      `env:"CORS_ORIGINS" envSeparator:","`
	ShutdownTimeout time.Duration `env:"SHUTDOWN_TIMEOUT" envDefault:"15s"`

	DBDriver   string `env:"DB_DRIVER" envDefault:"postgres"`
	SQLitePath string `env:"SQLITE_PATH"`

	PostgresHost     string `env:"POSTGRES_HOST" envDefault:"localhost"`
	PostgresPort     string `env:"POSTGRES_PORT" envDefault:"5432"`
	PostgresUser     string `env:"POSTGRES_USER" envDefault:"postgres"`
	PostgresPassword string `env:"POSTGRES_PASSWORD"`
	PostgresName     string `env:"POSTGRES_NAME" envDefault:"bloomie"`
	PostgresSSLMode  string `env:"POSTGRES_SSLMODE" envDefault:"disable"`

	// Empty REDIS_ADDR keeps session slots in process memory (single replica).
	RedisAddr     string `env:"REDIS_ADDR"`
	RedisPassword string `env:"REDIS_PASSWORD"`
	RedisDB       int    `env:"REDIS_DB" envDefault:"0"`
	RedisPrefix   string `env:"REDIS_SLOT_PREFIX" envDefault:"bloomie:slot"`

	KnowledgeDir string `env:"KNOWLEDGE_DIR"`

	// Empty QDRANT_URL disables knowledge retrieval.
	QdrantURL             string  `env:"QDRANT_URL"`
	QdrantCollection      string  `env:"QDRANT_COLLECTION" envDefault:"bloomie_knowledge"`
	QdrantNamespacePrefix string  `env:"QDRANT_NAMESPACE_PREFIX" envDefault:"bloomie"`
	QdrantVectorDim       int     `env:"QDRANT_VECTOR_DIM" envDefault:"1536"`
	KnowledgeMinScore     float64 `env:"KNOWLEDGE_MIN_SCORE" envDefault:"0.3"`
	KnowledgeAutoLoad     bool    `env:"KNOWLEDGE_AUTO_LOAD" envDefault:"true"`

	CheckInTTL           time.Duration `env:"CHECKIN_SESSION_TTL" envDefault:"30m"`
	ConsultationTTL      time.Duration `env:"CONSULTATION_SESSION_TTL" envDefault:"45m"`
	GenerationTimeout    time.Duration `env:"GENERATION_TIMEOUT" envDefault:"90s"`
	SweepInterval        time.Duration `env:"SESSION_SWEEP_INTERVAL" envDefault:"1m"`
	RecentEntryWindow    int           `env:"RECENT_ENTRY_WINDOW" envDefault:"3"`
	MaxCheckInQuestions  int           `env:"MAX_CHECKIN_QUESTIONS" envDefault:"5"`
	ConsultationMaxTurns int           `env:"CONSULTATION_MAX_TURNS" envDefault:"40"`

	OtelEnabled     bool              `env:"OTEL_ENABLED" envDefault:"false"`
	OtelServiceName string            `env:"OTEL_SERVICE_NAME" envDefault:"bloomie"`
	OtelEnvironment string            `env:"OTEL_ENVIRONMENT" envDefault:"development"`
	OtelVersion     string            `env:"OTEL_SERVICE_VERSION"`
	OtelEndpoint    string            `env:"OTEL_EXPORTER_OTLP_ENDPOINT"`
	OtelHeaders     map[string]string `env:"OTEL_EXPORTER_OTLP_HEADERS" envSeparator:"," envKeyValSeparator:"="`
	OtelInsecure    bool              `env:"OTEL_EXPORTER_OTLP_INSECURE" envDefault:"false"`
	OtelSampleRatio float64           `env:"OTEL_TRACES_SAMPLER_RATIO" envDefault:"1"`
}

func LoadConfig() (Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("parse env: %w", err)
	}
	cfg.DBDriver = strings.ToLower(strings.TrimSpace(cfg.DBDriver))
	if cfg.DBDriver == "" {
		cfg.DBDriver = DBDriverPostgres
	}
	switch cfg.DBDriver {
	case DBDriverPostgres, DBDriverSQLite:
	default:
		return Config{}, fmt.Errorf("DB_DRIVER %q: want %s or %s", cfg.DBDriver, DBDriverPostgres, DBDriverSQLite)
	}
	if cfg.RecentEntryWindow < 1 || cfg.MaxCheckInQuestions < 1 || cfg.ConsultationMaxTurns < 2 {
		return Config{}, fmt.Errorf("RECENT_ENTRY_WINDOW, MAX_CHECKIN_QUESTIONS must be >= 1 and CONSULTATION_MAX_TURNS >= 2")
	}
	if cfg.KnowledgeMinScore < 0 || cfg.KnowledgeMinScore > 1 {
		return Config{}, fmt.Errorf("KNOWLEDGE_MIN_SCORE %v: want a value in [0,1]", cfg.KnowledgeMinScore)
	}
	return cfg, nil
}

func (c Config) Engine() services.EngineConfig {
	return services.EngineConfig{
		CheckInTTL:           c.CheckInTTL,
		ConsultationTTL:      c.ConsultationTTL,
		GenerationTimeout:    c.GenerationTimeout,
		SweepInterval:        c.SweepInterval,
		RecentEntryWindow:    c.RecentEntryWindow,
		MaxCheckInQuestions:  c.MaxCheckInQuestions,
		ConsultationMaxTurns: c.ConsultationMaxTurns,
	}
}

func (c Config) Qdrant() qdrant.Config {
	return qdrant.Config{
		URL:             c.QdrantURL,
		Collection:      c.QdrantCollection,
		NamespacePrefix: c.QdrantNamespacePrefix,
		VectorDim:       c.QdrantVectorDim,
	}
}

func (c Config) Postgres() db.PostgresConfig {
	return db.PostgresConfig{
		Host:     c.PostgresHost,
		Port:     c.PostgresPort,
		User:     c.PostgresUser,
		Password: c.PostgresPassword,
		Name:     c.PostgresName,
		SSLMode:  c.PostgresSSLMode,
	}
}

func (c Config) Otel() observability.OtelConfig {
	return observability.OtelConfig{
		Enabled:     c.OtelEnabled,
		ServiceName: c.OtelServiceName,
		Environment: c.OtelEnvironment,
		Version:     c.OtelVersion,
		Endpoint:    c.OtelEndpoint,
		Headers:     c.OtelHeaders,
		Insecure:    c.OtelInsecure,
		SampleRatio: c.OtelSampleRatio,
	}
}
