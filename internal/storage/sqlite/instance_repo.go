package sqlite

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"

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
	now := time.Now().UTC()
	inst.CreatedAt = now
	inst.UpdatedAt = now

	_, err := q.ExecContext(ctx, `
		INSERT INTO evolution_api_instances (`+instanceColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		inst.ID, inst.EvolutionIntegrationID, inst.InstanceName, inst.PhoneNumber, string(inst.Status),
		formatTimePtr(inst.LastConnected), formatTimePtr(inst.LastMessageAt),
		formatTime(inst.CreatedAt), formatTime(inst.UpdatedAt),
	)
	if err != nil {
		return model.EvolutionInstance{}, mapError(err)
	}
	return inst, nil
}

func (r *instanceRepo) GetByName(ctx context.Context, evolutionID, instanceName string) (model.EvolutionInstance, error) {
	row := r.db.Conn.QueryRowContext(ctx,
		`SELECT `+instanceColumns+` FROM evolution_api_instances WHERE evolution_integration_id = ? AND instance_name = ?`,
		evolutionID, instanceName,
	)
	return scanInstance(row)
}

func (r *instanceRepo) ListByIntegration(ctx context.Context, evolutionID string) ([]model.EvolutionInstance, error) {
	rows, err := r.db.Conn.QueryContext(ctx,
		`SELECT `+instanceColumns+` FROM evolution_api_instances WHERE evolution_integration_id = ? ORDER BY created_at`,
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
	result, err := r.db.Conn.ExecContext(ctx, `
		UPDATE evolution_api_instances
		SET status = ?, last_connected = COALESCE(?, last_connected), updated_at = ?
		WHERE id = ?
	`, string(status), formatTimePtr(lastConnected), formatTime(time.Now()), id)
	if err != nil {
		return err
	}
	return affected(result)
}

func (r *instanceRepo) UpdatePhoneNumber(ctx context.Context, id, phoneNumber string) error {
	result, err := r.db.Conn.ExecContext(ctx,
		`UPDATE evolution_api_instances SET phone_number = ?, updated_at = ? WHERE id = ?`,
		phoneNumber, formatTime(time.Now()), id,
	)
	if err != nil {
		return err
	}
	return affected(result)
}

func (r *instanceRepo) TouchLastMessage(ctx context.Context, id string, at time.Time) error {
	result, err := r.db.Conn.ExecContext(ctx,
		`UPDATE evolution_api_instances SET last_message_at = ?, updated_at = ? WHERE id = ?`,
		formatTime(at), formatTime(time.Now()), id,
	)
	if err != nil {
		return err
	}
	return affected(result)
}

func (r *instanceRepo) Delete(ctx context.Context, id string) error {
	result, err := r.db.Conn.ExecContext(ctx, `DELETE FROM evolution_api_instances WHERE id = ?`, id)
	if err != nil {
		return err
	}
	return affected(result)
}

func scanInstance(row scanner) (model.EvolutionInstance, error) {
	var inst model.EvolutionInstance
	var lastConnected, lastMessage sql.NullString
	var createdAt, updatedAt string

	if err := row.Scan(
		&inst.ID, &inst.EvolutionIntegrationID, &inst.InstanceName, &inst.PhoneNumber, &inst.Status,
		&lastConnected, &lastMessage, &createdAt, &updatedAt,
	); err != nil {
		return model.EvolutionInstance{}, mapError(err)
	}
	inst.LastConnected = parseTimePtr(lastConnected)
	inst.LastMessageAt = parseTimePtr(lastMessage)
	inst.CreatedAt = parseTime(createdAt)
	inst.UpdatedAt = parseTime(updatedAt)
	return inst, nil
}
