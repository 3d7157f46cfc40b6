// Package factory monta os repositórios e a infraestrutura compartilhada
// (fila, limiter, locker) de acordo com a configuração.
package factory

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	dbfs "github.com/open-apime/evomanager/db"
	"github.com/open-apime/evomanager/internal/config"
	"github.com/open-apime/evomanager/internal/pkg/locker"
	locker_memory "github.com/open-apime/evomanager/internal/pkg/locker/memory"
	locker_redis "github.com/open-apime/evomanager/internal/pkg/locker/redis"
	"github.com/open-apime/evomanager/internal/pkg/queue"
	queue_memory "github.com/open-apime/evomanager/internal/pkg/queue/memory"
	queue_redis "github.com/open-apime/evomanager/internal/pkg/queue/redis"
	"github.com/open-apime/evomanager/internal/pkg/ratelimiter"
	limiter_memory "github.com/open-apime/evomanager/internal/pkg/ratelimiter/memory"
	limiter_redis "github.com/open-apime/evomanager/internal/pkg/ratelimiter/redis"
	"github.com/open-apime/evomanager/internal/storage"
	"github.com/open-apime/evomanager/internal/storage/migrate"
	"github.com/open-apime/evomanager/internal/storage/postgres"
	storage_redis "github.com/open-apime/evomanager/internal/storage/redis"
	"github.com/open-apime/evomanager/internal/storage/sqlite"
)

type Repositories struct {
	Client      storage.ClientRepository
	Catalog     storage.GlobalIntegrationRepository
	Integration storage.IntegrationRepository
	Instance    storage.InstanceRepository
	RedisClient *storage_redis.Client // nil quando Redis está desabilitado
	EventQueue  queue.Queue
	RateLimiter ratelimiter.Limiter
	Locker      locker.Locker
	// Checks alimenta o /api/healthz.
	Checks map[string]func(context.Context) error

	closers []func() error
}

// Close libera conexões na ordem inversa de abertura.
func (r *Repositories) Close() error {
	var errs []error
	for i := len(r.closers) - 1; i >= 0; i-- {
		if err := r.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func NewRepositories(cfg config.Config, log *zap.Logger) (*Repositories, error) {
	log.Info("inicializando repositórios",
		zap.String("driver", cfg.Storage.Driver),
	)

	repos := &Repositories{Checks: map[string]func(context.Context) error{}}

	if cfg.Redis.Enabled {
		log.Info("inicializando Redis...")
		storeRedis, err := storage_redis.New(cfg.Redis, log)
		if err != nil {
			log.Error("erro ao conectar com Redis", zap.Error(err))
			return nil, err
		}

		rdb := storeRedis.RDB()
		repos.RedisClient = storeRedis
		repos.Checks["redis"] = storeRedis.Ping
		repos.EventQueue = queue_redis.NewQueue(rdb, "evolution:events", cfg.Webhook.QueueSize)
		repos.RateLimiter = limiter_redis.NewLimiter(rdb)
		repos.Locker = locker_redis.NewLocker(rdb, "lock:")
		repos.closers = append(repos.closers, storeRedis.Close)
		log.Info("Redis conectado, fila, limiter e locker configurados")
	} else {
		log.Info("usando implementações em memória (Redis desabilitado)")
		memQueue := queue_memory.NewQueue(cfg.Webhook.QueueSize)
		memLimiter := limiter_memory.NewLimiter()
		repos.EventQueue = memQueue
		repos.RateLimiter = memLimiter
		repos.Locker = locker_memory.NewLocker()
		repos.closers = append(repos.closers, memQueue.Close, func() error {
			memLimiter.Stop()
			return nil
		})
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	switch cfg.Storage.Driver {
	case "sqlite", "":
		log.Debug("criando conexão com SQLite")
		db, err := sqlite.New(cfg.Storage.DataDir, log)
		if err != nil {
			log.Error("erro ao conectar com SQLite", zap.Error(err))
			_ = repos.Close()
			return nil, err
		}
		repos.closers = append(repos.closers, db.Close)
		repos.Checks["database"] = db.Ping

		if cfg.Storage.AutoMigrate {
			opts := migrate.Options{MigrationsDir: "migrations/sqlite", SeedsDir: "seeds/sqlite", WithSeeds: true}
			if err := migrate.SQLite(ctx, db.Conn, dbfs.FS, opts, log); err != nil {
				_ = repos.Close()
				return nil, err
			}
		}

		repos.Client = sqlite.NewClientRepository(db)
		repos.Catalog = sqlite.NewGlobalIntegrationRepository(db, cfg.Secrets.EncryptionKey)
		repos.Integration = sqlite.NewIntegrationRepository(db)
		repos.Instance = sqlite.NewInstanceRepository(db)
		log.Info("repositórios SQLite criados com sucesso", zap.String("data_dir", cfg.Storage.DataDir))
		return repos, nil

	case "postgres":
		log.Debug("criando conexão com PostgreSQL")
		db, err := postgres.New(cfg.DB, log)
		if err != nil {
			log.Error("erro ao conectar com PostgreSQL", zap.Error(err))
			_ = repos.Close()
			return nil, err
		}
		repos.closers = append(repos.closers, func() error {
			db.Close()
			return nil
		})
		repos.Checks["database"] = db.Ping

		if cfg.Storage.AutoMigrate {
			opts := migrate.Options{MigrationsDir: "migrations/postgres", SeedsDir: "seeds/postgres", WithSeeds: true}
			if err := migrate.Postgres(ctx, db.Pool, dbfs.FS, opts, log); err != nil {
				_ = repos.Close()
				return nil, err
			}
		}

		repos.Client = postgres.NewClientRepository(db)
		repos.Catalog = postgres.NewGlobalIntegrationRepository(db, cfg.Secrets.EncryptionKey)
		repos.Integration = postgres.NewIntegrationRepository(db)
		repos.Instance = postgres.NewInstanceRepository(db)
		log.Info("repositórios PostgreSQL criados com sucesso")
		return repos, nil

	default:
		log.Error("driver de storage desconhecido",
			zap.String("driver", cfg.Storage.Driver),
		)
		_ = repos.Close()
		return nil, &ErrUnknownDriver{Driver: cfg.Storage.Driver}
	}
}

type ErrUnknownDriver struct {
	Driver string
}

func (e *ErrUnknownDriver) Error() string {
	return "storage: driver desconhecido: " + e.Driver
}
