package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"
)

// querier é satisfeito tanto por *sql.DB quanto por *sql.Tx.
type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

func parseTime(s string) time.Time {
	t, _ := time.Parse(time.RFC3339Nano, s)
	return t
}

func parseTimePtr(s sql.NullString) *time.Time {
	if !s.Valid || s.String == "" {
		return nil
	}
	t, err := time.Parse(time.RFC3339Nano, s.String)
	if err != nil {
		return nil
	}
	return &t
}

func formatTimePtr(t *time.Time) *string {
	if t == nil {
		return nil
	}
	s := formatTime(*t)
	return &s
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

func encodeConfig(cfg map[string]any) (*string, error) {
	if len(cfg) == 0 {
		return nil, nil
	}
	b, err := json.Marshal(cfg)
	if err != nil {
		return nil, err
	}
	s := string(b)
	return &s, nil
}

func decodeConfig(s sql.NullString) map[string]any {
	if !s.Valid || s.String == "" {
		return nil
	}
	var cfg map[string]any
	if err := json.Unmarshal([]byte(s.String), &cfg); err != nil {
		return nil
	}
	return cfg
}
