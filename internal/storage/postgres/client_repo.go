package postgres

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
	c.CreatedAt = time.Now()

	err := r.db.Pool.QueryRow(ctx,
		`INSERT INTO clients (id, name, created_at) VALUES ($1, $2, $3) RETURNING created_at`,
		c.ID, c.Name, c.CreatedAt,
	).Scan(&c.CreatedAt)
	if err != nil {
		return model.Client{}, mapError(err)
	}
	return c, nil
}

func (r *clientRepo) GetByID(ctx context.Context, id string) (model.Client, error) {
	var c model.Client
	err := r.db.Pool.QueryRow(ctx,
		`SELECT id, name, created_at FROM clients WHERE id = $1`, id,
	).Scan(&c.ID, &c.Name, &c.CreatedAt)
	if err != nil {
		return model.Client{}, mapError(err)
	}
	return c, nil
}
