package sqlite

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/open-apime/evomanager/internal/storage/model"
)

type clientRepo struct {
	db *DB
}

func NewClientRepository(db *DB) *clientRepo {
	return &clientRepo{db: db}
}

func (r *clientRepo) Create(ctx context.Context, c model.Client) (model.Client, error) {
	if c.ID == "" {
		c.ID = uuid.New().String()
	}
	c.CreatedAt = time.Now().UTC()

	_, err := r.db.Conn.ExecContext(ctx,
		`INSERT INTO clients (id, name, created_at) VALUES (?, ?, ?)`,
		c.ID, c.Name, formatTime(c.CreatedAt),
	)
	if err != nil {
		return model.Client{}, mapError(err)
	}
	return c, nil
}

func (r *clientRepo) GetByID(ctx context.Context, id string) (model.Client, error) {
	var c model.Client
	var createdAt string
	err := r.db.Conn.QueryRowContext(ctx,
		`SELECT id, name, created_at FROM clients WHERE id = ?`, id,
	).Scan(&c.ID, &c.Name, &createdAt)
	if err != nil {
		return model.Client{}, mapError(err)
	}
	c.CreatedAt = parseTime(createdAt)
	return c, nil
}
