package redis

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/open-apime/evomanager/internal/config"
)

const connectTimeout = 5 * time.Second

// Client é compartilhado pela fila de eventos, pelo rate limiter e pelo
// locker de ativação.
type Client struct {
	rdb *redis.Client
}

func New(cfg config.RedisConfig, log *zap.Logger) (*Client, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:       cfg.Addr,
		Password:   cfg.Password,
		DB:         cfg.DB,
		ClientName: "evomanager",
	})

	ctx, cancel := context.WithTimeout(context.Background(), connectTimeout)
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("redis %s (db %d): %w", cfg.Addr, cfg.DB, err)
	}

	log.Info("redis: conectado", zap.String("addr", cfg.Addr), zap.Int("db", cfg.DB))
	return &Client{rdb: rdb}, nil
}

// Ping alimenta o health check.
func (c *Client) Ping(ctx context.Context) error { return c.rdb.Ping(ctx).Err() }

func (c *Client) Close() error { return c.rdb.Close() }

func (c *Client) RDB() *redis.Client { return c.rdb }
