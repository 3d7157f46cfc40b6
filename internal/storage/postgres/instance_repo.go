package postgres

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/open-apime/evomanager/internal/storage/model"
)

type instanceRepo struct {
	db *DB
}

func NewInstanceRepository(db *DB) *instanceRepo {
	return &instanceRepo{db: db}
}

const instanceColumns = `id, evolution_integration_id, instance_name, phone_number, status, last_connected, last_message_at, created_at, updated_at`

func createInstance(ctx context.Context, q querier, inst model.EvolutionInstance) (model.EvolutionInstance, error) {
	if inst.ID == "" {
		inst.ID = uuid.New().String()
	}
	if inst.Status == "" {
		inst.Status = model.InstanceStatusDisconnected
	}

	row := q.QueryRow(ctx, `
		INSERT INTO evolution_api_instances (id, evolution_integration_id, instance_name, phone_number, status, last_connected, last_message_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING `+instanceColumns,
		inst.ID, inst.EvolutionIntegrationID, inst.InstanceName, inst.PhoneNumber, string(inst.Status),
		inst.LastConnected, inst.LastMessageAt,
	)
	return scanInstance(row)
}

func (r *instanceRepo) GetByName(ctx context.Context, evolutionID, instanceName string) (model.EvolutionInstance, error) {
	row := r.db.Pool.QueryRow(ctx,
		`SELECT `+instanceColumns+` FROM evolution_api_instances WHERE evolution_integration_id = $1 AND instance_name = $2`,
		evolutionID, instanceName,
	)
	return scanInstance(row)
}

func (r *instanceRepo) ListByIntegration(ctx context.Context, evolutionID string) ([]model.EvolutionInstance, error) {
	rows, err := r.db.Pool.Query(ctx,
		`SELECT `+instanceColumns+` FROM evolution_api_instances WHERE evolution_integration_id = $1 ORDER BY created_at`,
		evolutionID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var list []model.EvolutionInstance
	for rows.Next() {
		inst, err := scanInstance(rows)
		if err != nil {
			return nil, err
		}
		list = append(list, inst)
	}
	return list, rows.Err()
}

func (r *instanceRepo) UpdateStatus(ctx context.Context, id string, status model.InstanceStatus, lastConnected *time.Time) error {
	tag, err := r.db.Pool.Exec(ctx, `
		UPDATE evolution_api_instances
		SET status = $1, last_connected = COALESCE($2, last_connected), updated_at = NOW()
		WHERE id = $3
	`, string(status), lastConnected, id)
	if err != nil {
		return err
	}
	return affected(tag)
}

func (r *instanceRepo) UpdatePhoneNumber(ctx context.Context, id, phoneNumber string) error {
	tag, err := r.db.Pool.Exec(ctx,
		`UPDATE evolution_api_instances SET phone_number = $1, updated_at = NOW() WHERE id = $2`,
		phoneNumber, id,
	)
	if err != nil {
		return err
	}
	return affected(tag)
}

func (r *instanceRepo) TouchLastMessage(ctx context.Context, id string, at time.Time) error {
	tag, err := r.db.Pool.Exec(ctx,
		`UPDATE evolution_api_instances SET last_message_at = $1, updated_at = NOW() WHERE id = $2`,
		at, id,
	)
	if err != nil {
		return err
	}
	return affected(tag)
}

func (r *instanceRepo) Delete(ctx context.Context, id string) error {
	tag, err := r.db.Pool.Exec(ctx, `DELETE FROM evolution_api_instances WHERE id = $1`, id)
	if err != nil {
		return err
	}
	return affected(tag)
}

func scanInstance(row pgx.Row) (model.EvolutionInstance, error) {
	var inst model.EvolutionInstance
	if err := row.Scan(
		&inst.ID, &inst.EvolutionIntegrationID, &inst.InstanceName, &inst.PhoneNumber, &inst.Status,
		&inst.LastConnected, &inst.LastMessageAt, &inst.CreatedAt, &inst.UpdatedAt,
	); err != nil {
		return model.EvolutionInstance{}, mapError(err)
	}
	return inst, nil
}
