package app

import (
	"context"
	"fmt"
	"strings"

	"github.com/yungbote/bloomie-backend/internal/clients/redis"
	"github.com/yungbote/bloomie-backend/internal/platform/logger"
	"github.com/yungbote/bloomie-backend/internal/platform/openai"
	"github.com/yungbote/bloomie-backend/internal/platform/qdrant"
	"github.com/yungbote/bloomie-backend/internal/platform/slotlock"
)

type Clients struct {
	OpenaiClient openai.Client
	SlotLocker   slotlock.Locker
	// Nil when QDRANT_URL is unset.
	VectorStore  qdrant.VectorStore

	closeRedis func() error
}

func wireClients(ctx context.Context, log *logger.Logger, cfg Config) (Clients, error) {
	log.Info("Wiring clients...")

	openaiClient, err := openai.NewClient(log)
	if err != nil {
		return Clients{}, fmt.Errorf("init openai client: %w", err)
	}
	out := Clients{OpenaiClient: openaiClient}

	// Qdrant (knowledge retrieval)
	if strings.TrimSpace(cfg.QdrantURL) != "" {
		vs, err := qdrant.NewVectorStore(ctx, log, cfg.Qdrant())
		if err != nil {
			return Clients{}, fmt.Errorf("init qdrant vector store: %w", err)
		}
		out.VectorStore = vs
	} else {
		log.Warn("QDRANT_URL not set; knowledge retrieval disabled")
	}

	// Redis session slots (shared across replicas)
	if strings.TrimSpace(cfg.RedisAddr) != "" {
		locker, closeFn, err := redis.NewSlotLocker(log, redis.Config{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
			Prefix:   cfg.RedisPrefix,
		})
		if err != nil {
			return Clients{}, fmt.Errorf("init redis slot locker: %w", err)
		}
		out.SlotLocker = locker
		out.closeRedis = closeFn
		return out, nil
	}
	log.Warn("REDIS_ADDR not set; session slots are process-local")
	out.SlotLocker = slotlock.NewMemory()
	return out, nil
}

func (c *Clients) Close() {
	if c == nil {
		return
	}
	if c.closeRedis != nil {
		_ = c.closeRedis()
		c.closeRedis = nil
	}
}
