package config

import (
	"errors"
	"fmt"
	"io/fs"
	"log"
	"time"

	"github.com/caarlos0/env/v10"
	"github.com/joho/godotenv"
)

type Config struct {
	App         AppConfig
	DB          DatabaseConfig
	Redis       RedisConfig
	JWT         JWTConfig
	Log         LogConfig
	Storage     StorageConfig
	RateLimit   RateLimitConfig
	IPRateLimit IPRateLimitConfig
	Evolution   EvolutionConfig
	Webhook     WebhookConfig
	Activation  ActivationConfig
	Secrets     SecretsConfig
}

type StorageConfig struct {
	Driver  string `env:"DB_DRIVER" envDefault:"sqlite"`
	DataDir string `env:"DATA_DIR" envDefault:"/app/data"`
	// AutoMigrate aplica as migrations embutidas na inicialização da API.
	AutoMigrate bool `env:"DB_AUTO_MIGRATE" envDefault:"true"`
}

type AppConfig struct {
	Env     string `env:"APP_ENV" envDefault:"development"`
	Port    string `env:"PORT" envDefault:"8080"`
	BaseURL string `env:"APP_BASE_URL" envDefault:"http://localhost:8080"`
}

type DatabaseConfig struct {
	URL      string `env:"DATABASE_URL"`
	Host     string `env:"DB_HOST" envDefault:"localhost"`
	Port     int    `env:"DB_PORT" envDefault:"5432"`
	User     string `env:"DB_USER" envDefault:"postgres"`
	Password string `env:"DB_PASSWORD" envDefault:"postgres"`
	Name     string `env:"DB_NAME" envDefault:"postgres"`
	SSLMode  string `env:"DB_SSLMODE" envDefault:"disable"`
}

// DSN retorna a string de conexão em formato aceito pelo pgxpool.
func (cfg DatabaseConfig) DSN() string {
	if cfg.URL != "" {
		return cfg.URL
	}
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		cfg.Host, cfg.Port, cfg.User, cfg.Password, cfg.Name, cfg.SSLMode,
	)
}

type RedisConfig struct {
	Addr     string `env:"REDIS_ADDR" envDefault:"localhost:6379"`
	Password string `env:"REDIS_PASSWORD" envDefault:""`
	DB       int    `env:"REDIS_DB" envDefault:"0"`
	Enabled  bool   `env:"REDIS_ENABLED" envDefault:"false"`
}

type RateLimitConfig struct {
	Enabled       bool   `env:"RATE_LIMIT_ENABLED" envDefault:"true"`
	Requests      int    `env:"RATE_LIMIT_REQUESTS" envDefault:"300"`
	WindowSeconds int    `env:"RATE_LIMIT_WINDOW_SECONDS" envDefault:"60"`
	Prefix        string `env:"RATE_LIMIT_PREFIX" envDefault:"api"`
}

type IPRateLimitConfig struct {
	Enabled        bool `env:"IP_RATE_LIMIT_ENABLED" envDefault:"true"`
	Requests       int  `env:"IP_RATE_LIMIT_REQUESTS" envDefault:"600"`
	WindowSeconds  int  `env:"IP_RATE_LIMIT_WINDOW_SECONDS" envDefault:"60"`
	SkipPrivateIPs bool `env:"IP_RATE_LIMIT_SKIP_PRIVATE_IPS" envDefault:"true"`
}

type JWTConfig struct {
	Secret string `env:"JWT_SECRET,required"`
}

type LogConfig struct {
	Level string `env:"LOG_LEVEL" envDefault:"debug"`
}

// EvolutionConfig aponta para o backend de gerenciamento de containers.
// Quando o catálogo (global_integrations) tiver URL/API key, eles prevalecem.
type EvolutionConfig struct {
	BackendURL          string  `env:"EVOLUTION_BACKEND_URL" envDefault:"http://localhost:3000"`
	APIKey              string  `env:"EVOLUTION_API_KEY"`
	TimeoutSeconds      int     `env:"EVOLUTION_TIMEOUT_SECONDS" envDefault:"10"`
	RetryMax            int     `env:"EVOLUTION_RETRY_MAX" envDefault:"2"`
	RateLimit           float64 `env:"EVOLUTION_RATE_LIMIT" envDefault:"20"`
	RateBurst           int     `env:"EVOLUTION_RATE_BURST" envDefault:"40"`
	ConnectingHeuristic bool    `env:"EVOLUTION_CONNECTING_HEURISTIC" envDefault:"true"`
}

func (cfg EvolutionConfig) Timeout() time.Duration {
	if cfg.TimeoutSeconds <= 0 {
		return 10 * time.Second
	}
	return time.Duration(cfg.TimeoutSeconds) * time.Second
}

type WebhookConfig struct {
	Workers            int `env:"WEBHOOK_WORKERS" envDefault:"4"`
	QueueSize          int `env:"WEBHOOK_QUEUE_SIZE" envDefault:"10000"`
	TestTimeoutSeconds int `env:"WEBHOOK_TEST_TIMEOUT_SECONDS" envDefault:"10"`
	// TestAllowPrivate libera o teste de webhook para destinos em rede
	// interna. Só para desenvolvimento local.
	TestAllowPrivate bool `env:"WEBHOOK_TEST_ALLOW_PRIVATE" envDefault:"false"`
}

type ActivationConfig struct {
	LockTTLSeconds int `env:"ACTIVATION_LOCK_TTL_SECONDS" envDefault:"120"`
}

type SecretsConfig struct {
	EncryptionKey string `env:"SECRETS_ENCRYPTION_KEY" envDefault:"evomanager-secret-key-change-in-production"`
}

// Load carrega as configurações da aplicação.
func Load() Config {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		log.Printf("config: não foi possível ler .env: %v", err)
	}

	cfg := Config{}
	if err := env.Parse(&cfg); err != nil {
		log.Fatalf("config: não foi possível carregar variáveis: %v", err)
	}
	return cfg
}
