package main

import (
	"context"
	"flag"
	"log"
	"time"

	"go.uber.org/zap"

	dbfs "github.com/open-apime/evomanager/db"
	"github.com/open-apime/evomanager/internal/config"
	"github.com/open-apime/evomanager/internal/logger"
	"github.com/open-apime/evomanager/internal/storage/migrate"
	"github.com/open-apime/evomanager/internal/storage/postgres"
	"github.com/open-apime/evomanager/internal/storage/sqlite"
)

func main() {
	withSeeds := flag.Bool("with-seeds", false, "Executar seeds após as migrations")
	flag.Parse()

	cfg := config.Load()

	logr, err := logger.New(cfg.App.Env, cfg.Log.Level)
	if err != nil {
		log.Fatalf("logger: %v", err)
	}
	defer logr.Sync()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	switch cfg.Storage.Driver {
	case "sqlite", "":
		db, err := sqlite.New(cfg.Storage.DataDir, logr)
		if err != nil {
			logr.Fatal("migrate: falha ao abrir SQLite", zap.Error(err))
		}
		defer db.Close()

		opts := migrate.Options{MigrationsDir: "migrations/sqlite", SeedsDir: "seeds/sqlite", WithSeeds: *withSeeds}
		if err := migrate.SQLite(ctx, db.Conn, dbfs.FS, opts, logr); err != nil {
			logr.Fatal("migrate: falha nas migrations SQLite", zap.Error(err))
		}

	case "postgres":
		db, err := postgres.New(cfg.DB, logr)
		if err != nil {
			logr.Fatal("migrate: falha ao conectar no PostgreSQL", zap.Error(err))
		}
		defer db.Close()

		opts := migrate.Options{MigrationsDir: "migrations/postgres", SeedsDir: "seeds/postgres", WithSeeds: *withSeeds}
		if err := migrate.Postgres(ctx, db.Pool, dbfs.FS, opts, logr); err != nil {
			logr.Fatal("migrate: falha nas migrations PostgreSQL", zap.Error(err))
		}

	default:
		logr.Fatal("migrate: driver desconhecido", zap.String("driver", cfg.Storage.Driver))
	}

	logr.Info("migrate: concluído", zap.String("driver", cfg.Storage.Driver))
}
