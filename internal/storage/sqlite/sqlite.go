package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"net/url"
	"os"
	"path/filepath"

	_ "github.com/mattn/go-sqlite3"
	"go.uber.org/zap"
)

const fileName = "evomanager.db"

type DB struct {
	Conn *sql.DB
	log  *zap.Logger
}

// New abre (ou cria) o banco em dataDir.
func New(dataDir string, log *zap.Logger) (*DB, error) {
	if err := os.MkdirAll(dataDir, 0o755); err != nil {
		return nil, fmt.Errorf("sqlite: diretório %s: %w", dataDir, err)
	}
	return Open(filepath.Join(dataDir, fileName), log)
}

// Open abre path com foreign keys e WAL. As transações de remoção em
// cascata dependem das foreign keys ligadas.
func Open(path string, log *zap.Logger) (*DB, error) {
	params := url.Values{}
	params.Set("_foreign_keys", "on")
	params.Set("_journal_mode", "WAL")
	params.Set("_busy_timeout", "5000")
	params.Set("_txlock", "immediate")

	conn, err := sql.Open("sqlite3", "file:"+path+"?"+params.Encode())
	if err != nil {
		return nil, fmt.Errorf("sqlite: abrir %s: %w", path, err)
	}

	// Uma conexão só: o SQLite serializa escritas de qualquer forma.
	conn.SetMaxOpenConns(1)
	conn.SetMaxIdleConns(1)

	if err := conn.PingContext(context.Background()); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("sqlite: ping %s: %w", path, err)
	}

	log.Info("sqlite: banco aberto", zap.String("path", path))
	return &DB{Conn: conn, log: log}, nil
}

func (db *DB) Ping(ctx context.Context) error { return db.Conn.PingContext(ctx) }

func (db *DB) Close() error {
	if db.Conn == nil {
		return nil
	}
	return db.Conn.Close()
}
