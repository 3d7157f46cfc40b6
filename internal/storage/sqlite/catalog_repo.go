package sqlite

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/open-apime/evomanager/internal/pkg/crypto"
	"github.com/open-apime/evomanager/internal/storage/model"
)

type globalIntegrationRepo struct {
	db        *DB
	secretKey string
}

// NewGlobalIntegrationRepository cria o repositório do catálogo. A API key é
// persistida cifrada com secretKey.
func NewGlobalIntegrationRepository(db *DB, secretKey string) *globalIntegrationRepo {
	return &globalIntegrationRepo{db: db, secretKey: secretKey}
}

const globalIntegrationColumns = `id, type, name, description, backend_url, api_key_enc, is_active, created_at, updated_at`

func (r *globalIntegrationRepo) Create(ctx context.Context, gi model.GlobalIntegration) (model.GlobalIntegration, error) {
	if gi.ID == "" {
		gi.ID = uuid.New().String()
	}
	now := time.Now().UTC()
	gi.CreatedAt = now
	gi.UpdatedAt = now

	enc, err := crypto.EncryptString(gi.APIKey, r.secretKey)
	if err != nil {
		return model.GlobalIntegration{}, fmt.Errorf("cifrar api key: %w", err)
	}

	_, err = r.db.Conn.ExecContext(ctx, `
		INSERT INTO global_integrations (`+globalIntegrationColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		gi.ID, string(gi.Type), gi.Name, gi.Description, gi.BackendURL, enc, boolToInt(gi.IsActive),
		formatTime(gi.CreatedAt), formatTime(gi.UpdatedAt),
	)
	if err != nil {
		return model.GlobalIntegration{}, mapError(err)
	}
	return gi, nil
}

func (r *globalIntegrationRepo) GetByType(ctx context.Context, t model.IntegrationType) (model.GlobalIntegration, error) {
	row := r.db.Conn.QueryRowContext(ctx,
		`SELECT `+globalIntegrationColumns+` FROM global_integrations WHERE type = ?`, string(t))
	return r.scan(row)
}

func (r *globalIntegrationRepo) List(ctx context.Context) ([]model.GlobalIntegration, error) {
	rows, err := r.db.Conn.QueryContext(ctx,
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
	gi.UpdatedAt = time.Now().UTC()

	enc, err := crypto.EncryptString(gi.APIKey, r.secretKey)
	if err != nil {
		return model.GlobalIntegration{}, fmt.Errorf("cifrar api key: %w", err)
	}

	result, err := r.db.Conn.ExecContext(ctx, `
		UPDATE global_integrations
		SET name = ?, description = ?, backend_url = ?, api_key_enc = ?, is_active = ?, updated_at = ?
		WHERE type = ?
	`,
		gi.Name, gi.Description, gi.BackendURL, enc, boolToInt(gi.IsActive), formatTime(gi.UpdatedAt), string(gi.Type),
	)
	if err != nil {
		return model.GlobalIntegration{}, mapError(err)
	}
	if err := affected(result); err != nil {
		return model.GlobalIntegration{}, err
	}
	return r.GetByType(ctx, gi.Type)
}

type scanner interface {
	Scan(dest ...any) error
}

func (r *globalIntegrationRepo) scan(row scanner) (model.GlobalIntegration, error) {
	var gi model.GlobalIntegration
	var enc []byte
	var active int
	var createdAt, updatedAt string

	if err := row.Scan(&gi.ID, &gi.Type, &gi.Name, &gi.Description, &gi.BackendURL, &enc, &active, &createdAt, &updatedAt); err != nil {
		return model.GlobalIntegration{}, mapError(err)
	}

	key, err := crypto.DecryptString(enc, r.secretKey)
	if err != nil {
		return model.GlobalIntegration{}, fmt.Errorf("decifrar api key de %s: %w", gi.Type, err)
	}
	gi.APIKey = key
	gi.IsActive = active == 1
	gi.CreatedAt = parseTime(createdAt)
	gi.UpdatedAt = parseTime(updatedAt)
	return gi, nil
}
