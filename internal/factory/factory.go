package factory

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"

	"go-flying-image/internal/capability"
	"go-flying-image/internal/config"
	"go-flying-image/internal/logger"
	"go-flying-image/internal/storage"
)

const probeTimeout = 5 * time.Second

// StorageFactory creates key-value backends for the history store
type StorageFactory interface {
	// CreateStore returns the backend and a function releasing it
	CreateStore(ctx context.Context, backend string) (storage.KeyValueStore, func() error, error)
}

// TransformerFactory creates transformation backends
type TransformerFactory interface {
	CreateTransformer(ctx context.Context, kind string) (capability.Transformer, error)
}

func noopClose() error { return nil }

// storageFactory implements StorageFactory
type storageFactory struct {
	cfg *config.Config
}

// NewStorageFactory creates a new storage factory
func NewStorageFactory(cfg *config.Config) StorageFactory {
	return &storageFactory{cfg: cfg}
}

// CreateStore creates a backend based on the specified type. Unreachable
// remote backends are reported but not fatal; history then shows a sync error.
func (f *storageFactory) CreateStore(ctx context.Context, backend string) (storage.KeyValueStore, func() error, error) {
	switch backend {
	case config.HistoryBackendMemory:
		return storage.NewMemoryStore(), noopClose, nil

	case config.HistoryBackendRedis:
		client := redis.NewClient(&redis.Options{
			Addr:     f.cfg.Redis.Addr,
			Password: f.cfg.Redis.Password,
			DB:       f.cfg.Redis.DB,
		})

		probeCtx, cancel := context.WithTimeout(ctx, probeTimeout)
		defer cancel()
		if err := client.Ping(probeCtx).Err(); err != nil {
			logger.WithFields(logrus.Fields{
				"addr":  f.cfg.Redis.Addr,
				"error": err.Error(),
			}).Warn("Redis not reachable at startup")
		}
		return storage.NewRedisStore(client, f.cfg.Redis.KeyPrefix), client.Close, nil

	case config.HistoryBackendAzure:
		store, err := storage.NewAzureBlobStore(f.cfg.Azure.AccountName, f.cfg.Azure.AccountKey, f.cfg.Azure.Container)
		if err != nil {
			return nil, nil, err
		}

		probeCtx, cancel := context.WithTimeout(ctx, probeTimeout)
		defer cancel()
		if err := store.EnsureContainer(probeCtx); err != nil {
			logger.WithFields(logrus.Fields{
				"container": f.cfg.Azure.Container,
				"error":     err.Error(),
			}).Warn("Azure container not available at startup")
		}
		return store, noopClose, nil

	default:
		return nil, nil, fmt.Errorf("unsupported storage type: %s", backend)
	}
}

// transformerFactory implements TransformerFactory
type transformerFactory struct {
	cfg      *config.Config
	platform *capability.PlatformClient
}

// NewTransformerFactory creates a transformer factory. The platform client
// is shared with billing.
func NewTransformerFactory(cfg *config.Config, platform *capability.PlatformClient) TransformerFactory {
	return &transformerFactory{cfg: cfg, platform: platform}
}

func (f *transformerFactory) CreateTransformer(ctx context.Context, kind string) (capability.Transformer, error) {
	switch kind {
	case config.TransformerPlatform:
		if f.platform == nil {
			return nil, fmt.Errorf("platform client is not configured")
		}
		return f.platform, nil
	case config.TransformerGemini:
		return capability.NewGeminiTransformer(ctx, f.cfg.Gemini.APIKey)
	default:
		return nil, fmt.Errorf("unsupported transformer type: %s", kind)
	}
}

// ComponentFactory combines all factories
type ComponentFactory struct {
	StorageFactory     StorageFactory
	TransformerFactory TransformerFactory
}

// NewComponentFactory creates a new component factory
func NewComponentFactory(cfg *config.Config, platform *capability.PlatformClient) *ComponentFactory {
	return &ComponentFactory{
		StorageFactory:     NewStorageFactory(cfg),
		TransformerFactory: NewTransformerFactory(cfg, platform),
	}
}
