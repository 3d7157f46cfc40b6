package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/open-apime/evomanager/internal/pkg/crypto"
	"github.com/open-apime/evomanager/internal/storage/model"
)

type globalIntegrationRepo struct {
	db        *DB
	secretKey string
}

func NewGlobalIntegrationRepository(db *DB, secretKey string) *globalIntegrationRepo {
	return &globalIntegrationRepo{db: db, secretKey: secretKey}
}

const globalIntegrationColumns = `id, type, name, description, backend_url, api_key_enc, is_active, created_at, updated_at`

func (r *globalIntegrationRepo) Create(ctx context.Context, gi model.GlobalIntegration) (model.GlobalIntegration, error) {
	if gi.ID == "" {
		gi.ID = uuid.New().String()
	}
	now := time.Now()
	gi.CreatedAt = now
	gi.UpdatedAt = now

	enc, err := crypto.EncryptString(gi.APIKey, r.secretKey)
	if err != nil {
		return model.GlobalIntegration{}, fmt.Errorf("cifrar api key: %w", err)
	}

	_, err = r.db.Pool.Exec(ctx, `
		INSERT INTO global_integrations (`+globalIntegrationColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`, gi.ID, string(gi.Type), gi.Name, gi.Description, gi.BackendURL, enc, gi.IsActive, gi.CreatedAt, gi.UpdatedAt)
	if err != nil {
		return model.GlobalIntegration{}, mapError(err)
	}
	return gi, nil
}

func (r *globalIntegrationRepo) GetByType(ctx context.Context, t model.IntegrationType) (model.GlobalIntegration, error) {
	row := r.db.Pool.QueryRow(ctx,
		`SELECT `+globalIntegrationColumns+` FROM global_integrations WHERE type = $1`, string(t))
	return r.scan(row)
}

func (r *globalIntegrationRepo) List(ctx context.Context) ([]model.GlobalIntegration, error) {
	rows, err := r.db.Pool.Query(ctx,
		`SELECT `+globalIntegrationColumns+` FROM global_integrations ORDER BY type`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var list []model.GlobalIntegration
	for rows.Next() {
		gi, err := r.scan(rows)
		if err != nil {
			return nil, err
		}
		list = append(list, gi)
	}
	return list, rows.Err()
}

func (r *globalIntegrationRepo) Update(ctx context.Context, gi model.GlobalIntegration) (model.GlobalIntegration, error) {
	enc, err := crypto.EncryptString(gi.APIKey, r.secretKey)
	if err != nil {
		return model.GlobalIntegration{}, fmt.Errorf("cifrar api key: %w", err)
	}

	row := r.db.Pool.QueryRow(ctx, `
		UPDATE global_integrations
		SET name = $1, description = $2, backend_url = $3, api_key_enc = $4, is_active = $5, updated_at = NOW()
		WHERE type = $6
		RETURNING `+globalIntegrationColumns,
		gi.Name, gi.Description, gi.BackendURL, enc, gi.IsActive, string(gi.Type),
	)
	return r.scan(row)
}

func (r *globalIntegrationRepo) scan(row pgx.Row) (model.GlobalIntegration, error) {
	var gi model.GlobalIntegration
	var enc []byte

	if err := row.Scan(&gi.ID, &gi.Type, &gi.Name, &gi.Description, &gi.BackendURL, &enc, &gi.IsActive, &gi.CreatedAt, &gi.UpdatedAt); err != nil {
		return model.GlobalIntegration{}, mapError(err)
	}

	key, err := crypto.DecryptString(enc, r.secretKey)
	if err != nil {
		return model.GlobalIntegration{}, fmt.Errorf("decifrar api key de %s: %w", gi.Type, err)
	}
	gi.APIKey = key
	return gi, nil
}
