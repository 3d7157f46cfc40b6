package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/open-apime/evomanager/internal/storage"
	"github.com/open-apime/evomanager/internal/storage/model"
)

type integrationRepo struct {
	db *DB
}

func NewIntegrationRepository(db *DB) *integrationRepo {
	return &integrationRepo{db: db}
}

const clientIntegrationColumns = `id, client_id, type, is_active, name, description, config, created_at, updated_at`

const evolutionIntegrationColumns = `id, client_integration_id, container_name, host_port, evolution_api_url, manager_url, container_status, last_deployed_at, last_health_check, created_at, updated_at`

func (r *integrationRepo) GetClientIntegration(ctx context.Context, clientID string, t model.IntegrationType) (model.ClientIntegration, error) {
	row := r.db.Conn.QueryRowContext(ctx,
		`SELECT `+clientIntegrationColumns+` FROM client_integrations WHERE client_id = ? AND type = ?`,
		clientID, string(t),
	)
	ci, err := scanClientIntegration(row)
	if err != nil {
		return model.ClientIntegration{}, err
	}

	ei, err := r.GetEvolutionIntegration(ctx, ci.ID)
	switch {
	case err == nil:
		ci.Evolution = &ei
	case err != storage.ErrNotFound:
		return model.ClientIntegration{}, err
	}
	return ci, nil
}

func (r *integrationRepo) ListClientIntegrations(ctx context.Context, clientID string) ([]model.ClientIntegration, error) {
	rows, err := r.db.Conn.QueryContext(ctx,
		`SELECT `+clientIntegrationColumns+` FROM client_integrations WHERE client_id = ? ORDER BY created_at`,
		clientID,
	)
	if err != nil {
		return nil, err
	}

	var list []model.ClientIntegration
	for rows.Next() {
		ci, err := scanClientIntegration(rows)
		if err != nil {
			rows.Close()
			return nil, err
		}
		list = append(list, ci)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, err
	}

	// Uma única conexão: as subconsultas só podem rodar após fechar o cursor.
	for i := range list {
		ei, err := r.GetEvolutionIntegration(ctx, list[i].ID)
		if err == nil {
			list[i].Evolution = &ei
		} else if err != storage.ErrNotFound {
			return nil, err
		}
	}
	return list, nil
}

func (r *integrationRepo) GetEvolutionIntegration(ctx context.Context, clientIntegrationID string) (model.EvolutionIntegration, error) {
	row := r.db.Conn.QueryRowContext(ctx,
		`SELECT `+evolutionIntegrationColumns+` FROM evolution_api_integrations WHERE client_integration_id = ?`,
		clientIntegrationID,
	)
	return scanEvolutionIntegration(row)
}

func (r *integrationRepo) UpdateContainerStatus(ctx context.Context, evolutionID string, status model.ContainerStatus, healthCheckedAt *time.Time) error {
	result, err := r.db.Conn.ExecContext(ctx, `
		UPDATE evolution_api_integrations
		SET container_status = ?, last_health_check = COALESCE(?, last_health_check), updated_at = ?
		WHERE id = ?
	`, string(status), formatTimePtr(healthCheckedAt), formatTime(time.Now()), evolutionID)
	if err != nil {
		return err
	}
	return affected(result)
}

func (r *integrationRepo) WithTx(ctx context.Context, fn func(tx storage.IntegrationTx) error) error {
	sqlTx, err := r.db.Conn.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("sqlite: iniciar transação: %w", err)
	}

	if err := fn(&integrationTx{tx: sqlTx}); err != nil {
		if rbErr := sqlTx.Rollback(); rbErr != nil {
			r.db.log.Warn("sqlite: erro no rollback", zap.Error(rbErr))
		}
		return err
	}

	if err := sqlTx.Commit(); err != nil {
		return fmt.Errorf("sqlite: commit: %w", err)
	}
	return nil
}

type integrationTx struct {
	tx *sql.Tx
}

func (t *integrationTx) UpsertClientIntegration(ctx context.Context, ci model.ClientIntegration) (model.ClientIntegration, error) {
	if ci.ID == "" {
		ci.ID = uuid.New().String()
	}
	now := time.Now().UTC()

	cfg, err := encodeConfig(ci.Config)
	if err != nil {
		return model.ClientIntegration{}, fmt.Errorf("serializar config: %w", err)
	}

	_, err = t.tx.ExecContext(ctx, `
		INSERT INTO client_integrations (`+clientIntegrationColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (client_id, type) DO UPDATE SET
			is_active = excluded.is_active,
			name = excluded.name,
			description = excluded.description,
			config = excluded.config,
			updated_at = excluded.updated_at
	`,
		ci.ID, ci.ClientID, string(ci.Type), boolToInt(ci.IsActive), ci.Name, ci.Description, cfg,
		formatTime(now), formatTime(now),
	)
	if err != nil {
		return model.ClientIntegration{}, mapError(err)
	}

	row := t.tx.QueryRowContext(ctx,
		`SELECT `+clientIntegrationColumns+` FROM client_integrations WHERE client_id = ? AND type = ?`,
		ci.ClientID, string(ci.Type),
	)
	return scanClientIntegration(row)
}

func (t *integrationTx) UpsertEvolutionIntegration(ctx context.Context, ei model.EvolutionIntegration) (model.EvolutionIntegration, error) {
	if ei.ID == "" {
		ei.ID = uuid.New().String()
	}
	now := time.Now().UTC()

	_, err := t.tx.ExecContext(ctx, `
		INSERT INTO evolution_api_integrations (`+evolutionIntegrationColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (client_integration_id) DO UPDATE SET
			container_name = excluded.container_name,
			host_port = excluded.host_port,
			evolution_api_url = excluded.evolution_api_url,
			manager_url = excluded.manager_url,
			container_status = excluded.container_status,
			last_deployed_at = excluded.last_deployed_at,
			updated_at = excluded.updated_at
	`,
		ei.ID, ei.ClientIntegrationID, ei.ContainerName, ei.HostPort, ei.EvolutionAPIURL, ei.ManagerURL,
		string(ei.ContainerStatus), formatTimePtr(ei.LastDeployedAt), formatTimePtr(ei.LastHealthCheck),
		formatTime(now), formatTime(now),
	)
	if err != nil {
		return model.EvolutionIntegration{}, mapError(err)
	}

	row := t.tx.QueryRowContext(ctx,
		`SELECT `+evolutionIntegrationColumns+` FROM evolution_api_integrations WHERE client_integration_id = ?`,
		ei.ClientIntegrationID,
	)
	return scanEvolutionIntegration(row)
}

// LockActiveIntegration não precisa de FOR UPDATE: com uma única conexão a
// transação já é serializada.
func (t *integrationTx) LockActiveIntegration(ctx context.Context, clientIntegrationID string) error {
	var active int
	err := t.tx.QueryRowContext(ctx,
		`SELECT is_active FROM client_integrations WHERE id = ?`, clientIntegrationID,
	).Scan(&active)
	if err == sql.ErrNoRows || (err == nil && active != 1) {
		return storage.ErrIntegrationInactive
	}
	return err
}

func (t *integrationTx) CreateInstance(ctx context.Context, inst model.EvolutionInstance) (model.EvolutionInstance, error) {
	return createInstance(ctx, t.tx, inst)
}

func (t *integrationTx) DeleteInstancesByIntegration(ctx context.Context, evolutionID string) error {
	_, err := t.tx.ExecContext(ctx, `DELETE FROM evolution_api_instances WHERE evolution_integration_id = ?`, evolutionID)
	return err
}

func (t *integrationTx) DeleteEvolutionIntegration(ctx context.Context, evolutionID string) error {
	result, err := t.tx.ExecContext(ctx, `DELETE FROM evolution_api_integrations WHERE id = ?`, evolutionID)
	if err != nil {
		return err
	}
	return affected(result)
}

func (t *integrationTx) DeleteClientIntegration(ctx context.Context, clientIntegrationID string) error {
	result, err := t.tx.ExecContext(ctx, `DELETE FROM client_integrations WHERE id = ?`, clientIntegrationID)
	if err != nil {
		return err
	}
	return affected(result)
}

func scanClientIntegration(row scanner) (model.ClientIntegration, error) {
	var ci model.ClientIntegration
	var active int
	var cfg sql.NullString
	var createdAt, updatedAt string

	if err := row.Scan(&ci.ID, &ci.ClientID, &ci.Type, &active, &ci.Name, &ci.Description, &cfg, &createdAt, &updatedAt); err != nil {
		return model.ClientIntegration{}, mapError(err)
	}
	ci.IsActive = active == 1
	ci.Config = decodeConfig(cfg)
	ci.CreatedAt = parseTime(createdAt)
	ci.UpdatedAt = parseTime(updatedAt)
	return ci, nil
}

func scanEvolutionIntegration(row scanner) (model.EvolutionIntegration, error) {
	var ei model.EvolutionIntegration
	var deployedAt, healthAt sql.NullString
	var createdAt, updatedAt string

	if err := row.Scan(
		&ei.ID, &ei.ClientIntegrationID, &ei.ContainerName, &ei.HostPort, &ei.EvolutionAPIURL, &ei.ManagerURL,
		&ei.ContainerStatus, &deployedAt, &healthAt, &createdAt, &updatedAt,
	); err != nil {
		return model.EvolutionIntegration{}, mapError(err)
	}
	ei.LastDeployedAt = parseTimePtr(deployedAt)
	ei.LastHealthCheck = parseTimePtr(healthAt)
	ei.CreatedAt = parseTime(createdAt)
	ei.UpdatedAt = parseTime(updatedAt)
	return ei, nil
}
