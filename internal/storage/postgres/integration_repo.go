package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"go.uber.org/zap"

	"github.com/open-apime/evomanager/internal/storage"
	"github.com/open-apime/evomanager/internal/storage/model"
)

// querier é satisfeito por *pgxpool.Pool e pgx.Tx.
type querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

type integrationRepo struct {
	db *DB
}

func NewIntegrationRepository(db *DB) *integrationRepo {
	return &integrationRepo{db: db}
}

const clientIntegrationColumns = `id, client_id, type, is_active, name, description, config, created_at, updated_at`

const evolutionIntegrationColumns = `id, client_integration_id, container_name, host_port, evolution_api_url, manager_url, container_status, last_deployed_at, last_health_check, created_at, updated_at`

func (r *integrationRepo) GetClientIntegration(ctx context.Context, clientID string, t model.IntegrationType) (model.ClientIntegration, error) {
	row := r.db.Pool.QueryRow(ctx,
		`SELECT `+clientIntegrationColumns+` FROM client_integrations WHERE client_id = $1 AND type = $2`,
		clientID, string(t),
	)
	ci, err := scanClientIntegration(row)
	if err != nil {
		return model.ClientIntegration{}, err
	}
	if err := r.attachEvolution(ctx, &ci); err != nil {
		return model.ClientIntegration{}, err
	}
	return ci, nil
}

func (r *integrationRepo) ListClientIntegrations(ctx context.Context, clientID string) ([]model.ClientIntegration, error) {
	rows, err := r.db.Pool.Query(ctx,
		`SELECT `+clientIntegrationColumns+` FROM client_integrations WHERE client_id = $1 ORDER BY created_at`,
		clientID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var list []model.ClientIntegration
	for rows.Next() {
		ci, err := scanClientIntegration(rows)
		if err != nil {
			return nil, err
		}
		list = append(list, ci)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	for i := range list {
		if err := r.attachEvolution(ctx, &list[i]); err != nil {
			return nil, err
		}
	}
	return list, nil
}

func (r *integrationRepo) attachEvolution(ctx context.Context, ci *model.ClientIntegration) error {
	ei, err := r.GetEvolutionIntegration(ctx, ci.ID)
	if errors.Is(err, storage.ErrNotFound) {
		return nil
	}
	if err != nil {
		return err
	}
	ci.Evolution = &ei
	return nil
}

func (r *integrationRepo) GetEvolutionIntegration(ctx context.Context, clientIntegrationID string) (model.EvolutionIntegration, error) {
	row := r.db.Pool.QueryRow(ctx,
		`SELECT `+evolutionIntegrationColumns+` FROM evolution_api_integrations WHERE client_integration_id = $1`,
		clientIntegrationID,
	)
	return scanEvolutionIntegration(row)
}

func (r *integrationRepo) UpdateContainerStatus(ctx context.Context, evolutionID string, status model.ContainerStatus, healthCheckedAt *time.Time) error {
	tag, err := r.db.Pool.Exec(ctx, `
		UPDATE evolution_api_integrations
		SET container_status = $1, last_health_check = COALESCE($2, last_health_check), updated_at = NOW()
		WHERE id = $3
	`, string(status), healthCheckedAt, evolutionID)
	if err != nil {
		return err
	}
	return affected(tag)
}

func (r *integrationRepo) WithTx(ctx context.Context, fn func(tx storage.IntegrationTx) error) error {
	pgTx, err := r.db.Pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("postgres: iniciar transação: %w", err)
	}

	if err := fn(&integrationTx{tx: pgTx}); err != nil {
		if rbErr := pgTx.Rollback(ctx); rbErr != nil && !errors.Is(rbErr, pgx.ErrTxClosed) {
			r.db.log.Warn("postgres: erro no rollback", zap.Error(rbErr))
		}
		return err
	}

	if err := pgTx.Commit(ctx); err != nil {
		return fmt.Errorf("postgres: commit: %w", err)
	}
	return nil
}

type integrationTx struct {
	tx pgx.Tx
}

func (t *integrationTx) UpsertClientIntegration(ctx context.Context, ci model.ClientIntegration) (model.ClientIntegration, error) {
	if ci.ID == "" {
		ci.ID = uuid.New().String()
	}

	cfg, err := encodeConfig(ci.Config)
	if err != nil {
		return model.ClientIntegration{}, fmt.Errorf("serializar config: %w", err)
	}

	row := t.tx.QueryRow(ctx, `
		INSERT INTO client_integrations (id, client_id, type, is_active, name, description, config)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (client_id, type) DO UPDATE SET
			is_active = EXCLUDED.is_active,
			name = EXCLUDED.name,
			description = EXCLUDED.description,
			config = EXCLUDED.config,
			updated_at = NOW()
		RETURNING `+clientIntegrationColumns,
		ci.ID, ci.ClientID, string(ci.Type), ci.IsActive, ci.Name, ci.Description, cfg,
	)
	return scanClientIntegration(row)
}

func (t *integrationTx) UpsertEvolutionIntegration(ctx context.Context, ei model.EvolutionIntegration) (model.EvolutionIntegration, error) {
	if ei.ID == "" {
		ei.ID = uuid.New().String()
	}

	row := t.tx.QueryRow(ctx, `
		INSERT INTO evolution_api_integrations (id, client_integration_id, container_name, host_port, evolution_api_url, manager_url, container_status, last_deployed_at, last_health_check)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (client_integration_id) DO UPDATE SET
			container_name = EXCLUDED.container_name,
			host_port = EXCLUDED.host_port,
			evolution_api_url = EXCLUDED.evolution_api_url,
			manager_url = EXCLUDED.manager_url,
			container_status = EXCLUDED.container_status,
			last_deployed_at = EXCLUDED.last_deployed_at,
			updated_at = NOW()
		RETURNING `+evolutionIntegrationColumns,
		ei.ID, ei.ClientIntegrationID, ei.ContainerName, ei.HostPort, ei.EvolutionAPIURL, ei.ManagerURL,
		string(ei.ContainerStatus), ei.LastDeployedAt, ei.LastHealthCheck,
	)
	return scanEvolutionIntegration(row)
}

// LockActiveIntegration segura a linha até o fim da transação, impedindo que
// uma desativação concorrente remova a integração no meio da escrita.
func (t *integrationTx) LockActiveIntegration(ctx context.Context, clientIntegrationID string) error {
	var active bool
	err := t.tx.QueryRow(ctx,
		`SELECT is_active FROM client_integrations WHERE id = $1 FOR UPDATE`, clientIntegrationID,
	).Scan(&active)
	if errors.Is(err, pgx.ErrNoRows) || (err == nil && !active) {
		return storage.ErrIntegrationInactive
	}
	return err
}

func (t *integrationTx) CreateInstance(ctx context.Context, inst model.EvolutionInstance) (model.EvolutionInstance, error) {
	return createInstance(ctx, t.tx, inst)
}

func (t *integrationTx) DeleteInstancesByIntegration(ctx context.Context, evolutionID string) error {
	_, err := t.tx.Exec(ctx, `DELETE FROM evolution_api_instances WHERE evolution_integration_id = $1`, evolutionID)
	return err
}

func (t *integrationTx) DeleteEvolutionIntegration(ctx context.Context, evolutionID string) error {
	tag, err := t.tx.Exec(ctx, `DELETE FROM evolution_api_integrations WHERE id = $1`, evolutionID)
	if err != nil {
		return err
	}
	return affected(tag)
}

func (t *integrationTx) DeleteClientIntegration(ctx context.Context, clientIntegrationID string) error {
	tag, err := t.tx.Exec(ctx, `DELETE FROM client_integrations WHERE id = $1`, clientIntegrationID)
	if err != nil {
		return err
	}
	return affected(tag)
}

func encodeConfig(cfg map[string]any) ([]byte, error) {
	if len(cfg) == 0 {
		return nil, nil
	}
	return json.Marshal(cfg)
}

func scanClientIntegration(row pgx.Row) (model.ClientIntegration, error) {
	var ci model.ClientIntegration
	var cfg []byte

	if err := row.Scan(&ci.ID, &ci.ClientID, &ci.Type, &ci.IsActive, &ci.Name, &ci.Description, &cfg, &ci.CreatedAt, &ci.UpdatedAt); err != nil {
		return model.ClientIntegration{}, mapError(err)
	}
	if len(cfg) > 0 {
		if err := json.Unmarshal(cfg, &ci.Config); err != nil {
			return model.ClientIntegration{}, fmt.Errorf("config inválida em %s: %w", ci.ID, err)
		}
	}
	return ci, nil
}

func scanEvolutionIntegration(row pgx.Row) (model.EvolutionIntegration, error) {
	var ei model.EvolutionIntegration
	if err := row.Scan(
		&ei.ID, &ei.ClientIntegrationID, &ei.ContainerName, &ei.HostPort, &ei.EvolutionAPIURL, &ei.ManagerURL,
		&ei.ContainerStatus, &ei.LastDeployedAt, &ei.LastHealthCheck, &ei.CreatedAt, &ei.UpdatedAt,
	); err != nil {
		return model.EvolutionIntegration{}, mapError(err)
	}
	return ei, nil
}
