// Package migrate aplica migrations .up.sql e seeds a partir de um fs.FS,
// registrando as versões aplicadas em schema_migrations.
package migrate

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io/fs"
	"path"
	"sort"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"
)

type Options struct {
	MigrationsDir string
	SeedsDir      string
	WithSeeds     bool
}

func SQLite(ctx context.Context, db *sql.DB, fsys fs.FS, opts Options, log *zap.Logger) error {
	if _, err := db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS schema_migrations (
			version TEXT PRIMARY KEY,
			applied_at TEXT NOT NULL DEFAULT (datetime('now'))
		)
	`); err != nil {
		return fmt.Errorf("preparar schema_migrations: %w", err)
	}

	files, err := listSQLFiles(fsys, opts.MigrationsDir, ".up.sql")
	if err != nil {
		return fmt.Errorf("listar migrations: %w", err)
	}
	if len(files) == 0 {
		log.Warn("migrate: nenhum arquivo .up.sql encontrado", zap.String("dir", opts.MigrationsDir))
	}

	for _, file := range files {
		version := path.Base(file)
		var count int
		if err := db.QueryRowContext(ctx, `SELECT COUNT(*) FROM schema_migrations WHERE version = ?`, version).Scan(&count); err != nil {
			return fmt.Errorf("verificar %s: %w", version, err)
		}
		if count > 0 {
			continue
		}

		log.Info("migrate: aplicando", zap.String("version", version))
		stmt, err := fs.ReadFile(fsys, file)
		if err != nil {
			return fmt.Errorf("ler %s: %w", version, err)
		}
		if err := execSQLiteBatch(ctx, db, string(stmt)); err != nil {
			return fmt.Errorf("executar %s: %w", version, err)
		}
		if _, err := db.ExecContext(ctx, `INSERT INTO schema_migrations (version) VALUES (?)`, version); err != nil {
			return fmt.Errorf("registrar %s: %w", version, err)
		}
	}

	if !opts.WithSeeds {
		return nil
	}

	seeds, err := listSQLFiles(fsys, opts.SeedsDir, ".sql")
	if err != nil {
		return fmt.Errorf("listar seeds: %w", err)
	}
	for _, file := range seeds {
		stmt, err := fs.ReadFile(fsys, file)
		if err != nil {
			return fmt.Errorf("ler seed %s: %w", file, err)
		}
		if err := execSQLiteBatch(ctx, db, string(stmt)); err != nil {
			return fmt.Errorf("executar seed %s: %w", file, err)
		}
		log.Info("migrate: seed aplicado", zap.String("seed", path.Base(file)))
	}
	return nil
}

func execSQLiteBatch(ctx context.Context, db *sql.DB, statements string) error {
	for _, stmt := range strings.Split(statements, ";") {
		stmt = strings.TrimSpace(stmt)
		if stmt == "" {
			continue
		}
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return err
		}
	}
	return nil
}

func Postgres(ctx context.Context, pool *pgxpool.Pool, fsys fs.FS, opts Options, log *zap.Logger) error {
	if _, err := pool.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS schema_migrations (
			version TEXT PRIMARY KEY,
			applied_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)
	`); err != nil {
		return fmt.Errorf("preparar schema_migrations: %w", err)
	}

	files, err := listSQLFiles(fsys, opts.MigrationsDir, ".up.sql")
	if err != nil {
		return fmt.Errorf("listar migrations: %w", err)
	}
	if len(files) == 0 {
		log.Warn("migrate: nenhum arquivo .up.sql encontrado", zap.String("dir", opts.MigrationsDir))
	}

	for _, file := range files {
		version := path.Base(file)
		var exists bool
		if err := pool.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM schema_migrations WHERE version = $1)`, version).Scan(&exists); err != nil {
			return fmt.Errorf("verificar %s: %w", version, err)
		}
		if exists {
			continue
		}

		log.Info("migrate: aplicando", zap.String("version", version))
		stmt, err := fs.ReadFile(fsys, file)
		if err != nil {
			return fmt.Errorf("ler %s: %w", version, err)
		}
		if _, err := execPostgres(ctx, pool, string(stmt)); err != nil {
			return fmt.Errorf("executar %s: %w", version, err)
		}
		if _, err := pool.Exec(ctx, `INSERT INTO schema_migrations (version) VALUES ($1)`, version); err != nil {
			return fmt.Errorf("registrar %s: %w", version, err)
		}
	}

	if !opts.WithSeeds {
		return nil
	}

	seeds, err := listSQLFiles(fsys, opts.SeedsDir, ".sql")
	if err != nil {
		return fmt.Errorf("listar seeds: %w", err)
	}
	for _, file := range seeds {
		stmt, err := fs.ReadFile(fsys, file)
		if err != nil {
			return fmt.Errorf("ler seed %s: %w", file, err)
		}
		rows, err := execPostgres(ctx, pool, string(stmt))
		if err != nil {
			return fmt.Errorf("executar seed %s: %w", file, err)
		}
		log.Info("migrate: seed aplicado", zap.String("seed", path.Base(file)), zap.Int64("rows", rows))
	}
	return nil
}

func execPostgres(ctx context.Context, pool *pgxpool.Pool, statement string) (int64, error) {
	stmt := strings.TrimSpace(statement)
	if stmt == "" {
		return 0, nil
	}
	ctxExec, cancel := context.WithTimeout(ctx, 2*time.Minute)
	defer cancel()
	result, err := pool.Exec(ctxExec, stmt)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected(), nil
}

func listSQLFiles(fsys fs.FS, dir, suffix string) ([]string, error) {
	entries, err := fs.ReadDir(fsys, dir)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil
		}
		return nil, err
	}
	var files []string
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), suffix) {
			continue
		}
		files = append(files, path.Join(dir, entry.Name()))
	}
	sort.Strings(files)
	return files, nil
}
