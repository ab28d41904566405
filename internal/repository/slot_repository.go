package repository

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/Freeeeeet/felanocare/internal/model"
	"github.com/Freeeeeet/felanocare/internal/repository/base"
	"github.com/Freeeeeet/felanocare/internal/store"
)

const slotColumns = `id, owner_id, to_char(slot_date, 'YYYY-MM-DD'), to_char(start_time, 'HH24:MI'),
	to_char(end_time, 'HH24:MI'), booked, canceled, patient_id, created_at`

// SlotRepository - слоты в PostgreSQL. Уведомления об изменениях приходят
// через триггер pg_notify и Listener в общий хаб.
type SlotRepository struct {
	*base.Repository
	hub *store.Hub
}

func NewSlotRepository(pool *pgxpool.Pool, hub *store.Hub) *SlotRepository {
	return &SlotRepository{
		Repository: base.NewRepository(pool),
		hub:        hub,
	}
}

// Insert создаёт новый слот
func (r *SlotRepository) Insert(ctx context.Context, slot *model.Slot) error {
	query := `
		INSERT INTO slots (id, owner_id, slot_date, start_time, end_time, booked, canceled, patient_id)
		VALUES ($1, $2, $3::date, $4::time, $5::time, $6, $7, $8)
		RETURNING created_at
	`

	id := uuid.NewString()
	err := r.QueryRow(
		ctx, query,
		id,
		slot.OwnerID,
		slot.Date,
		slot.StartTime,
		slot.EndTime,
		slot.Booked,
		slot.Canceled,
		slot.PatientID,
	).Scan(&slot.CreatedAt)

	if err != nil {
		return fmt.Errorf("insert slot: %w", err)
	}

	slot.ID = id
	return nil
}

// Get получает слот по ID
func (r *SlotRepository) Get(ctx context.Context, slotID string) (*model.Slot, error) {
	query := `SELECT ` + slotColumns + ` FROM slots WHERE id = $1`

	slot, err := scanSlot(r.QueryRow(ctx, query, slotID))
	if err != nil {
		if base.IsNotFound(err) {
			return nil, store.ErrNotFound
		}
		return nil, fmt.Errorf("get slot by id: %w", err)
	}

	return slot, nil
}

// UpdateIf применяет обновление одним UPDATE с условием в WHERE: проверка и запись
// выполняются атомарно на стороне БД
func (r *SlotRepository) UpdateIf(ctx context.Context, slotID string, cond store.Condition, upd store.Update) (*model.Slot, error) {
	query := `
		UPDATE slots
		SET booked     = COALESCE($2::boolean, booked),
		    canceled   = COALESCE($3::boolean, canceled),
		    patient_id = CASE
		                     WHEN $4::boolean THEN NULL
		                     WHEN $5::text IS NOT NULL THEN $5::text
		                     ELSE patient_id
		                 END
		WHERE id = $1
		  AND ($6::text IS NULL OR owner_id = $6::text)
		  AND ($7::text IS NULL OR patient_id = $7::text)
		  AND ($8::boolean IS NULL OR booked = $8::boolean)
		  AND ($9::boolean IS NULL OR canceled = $9::boolean)
		RETURNING ` + slotColumns

	slot, err := scanSlot(r.QueryRow(
		ctx, query,
		slotID,
		upd.Booked,
		upd.Canceled,
		upd.ClearPatient,
		upd.PatientID,
		base.NullString(cond.OwnerID),
		base.NullString(cond.PatientID),
		cond.Booked,
		cond.Canceled,
	))
	if err == nil {
		return slot, nil
	}
	if !base.IsNotFound(err) {
		return nil, fmt.Errorf("update slot: %w", err)
	}

	// ни одна строка не обновилась: слота нет или условие не выполнено
	exists, err := r.Exists(ctx, `SELECT 1 FROM slots WHERE id = $1`, slotID)
	if err != nil {
		return nil, fmt.Errorf("check slot exists: %w", err)
	}
	if !exists {
		return nil, store.ErrNotFound
	}
	return nil, store.ErrConditionFailed
}

// Query выбирает слоты по фильтру
func (r *SlotRepository) Query(ctx context.Context, f store.Filter) ([]*model.Slot, error) {
	var (
		where []string
		args  []any
	)
	add := func(cond string, v any) {
		args = append(args, v)
		where = append(where, fmt.Sprintf(cond, len(args)))
	}

	if f.OwnerID != "" {
		add("owner_id = $%d", f.OwnerID)
	}
	if f.PatientID != "" {
		add("patient_id = $%d", f.PatientID)
	}
	if f.Date != "" {
		add("slot_date = $%d::date", f.Date)
	}
	if f.DateFrom != "" {
		add("slot_date >= $%d::date", f.DateFrom)
	}
	if f.DateBefore != "" {
		add("slot_date < $%d::date", f.DateBefore)
	}
	if f.Booked != nil {
		add("booked = $%d", *f.Booked)
	}
	if f.Canceled != nil {
		add("canceled = $%d", *f.Canceled)
	}

	var sb strings.Builder
	sb.WriteString(`SELECT ` + slotColumns + ` FROM slots`)
	if len(where) > 0 {
		sb.WriteString(" WHERE ")
		sb.WriteString(strings.Join(where, " AND "))
	}
	if f.Order == store.OrderDesc {
		sb.WriteString(" ORDER BY slot_date DESC, start_time DESC, id DESC")
	} else {
		sb.WriteString(" ORDER BY slot_date, start_time, id")
	}
	if f.Limit > 0 {
		args = append(args, f.Limit)
		fmt.Fprintf(&sb, " LIMIT $%d", len(args))
	}

	rows, err := r.Repository.Query(ctx, sb.String(), args...)
	if err != nil {
		return nil, fmt.Errorf("query slots: %w", err)
	}
	defer rows.Close()

	slots := make([]*model.Slot, 0)
	for rows.Next() {
		slot, err := scanSlot(rows)
		if err != nil {
			return nil, fmt.Errorf("scan slot: %w", err)
		}
		slots = append(slots, slot)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate slots: %w", err)
	}

	return slots, nil
}

// Watch подписывается на уведомления, которые Listener получает из канала slot_changes
func (r *SlotRepository) Watch(_ context.Context, ownerID string) (store.Subscription, error) {
	return r.hub.Subscribe(ownerID), nil
}

func (r *SlotRepository) Ping(ctx context.Context) error {
	return r.Pool().Ping(ctx)
}

func scanSlot(row pgx.Row) (*model.Slot, error) {
	var slot model.Slot
	err := row.Scan(
		&slot.ID,
		&slot.OwnerID,
		&slot.Date,
		&slot.StartTime,
		&slot.EndTime,
		&slot.Booked,
		&slot.Canceled,
		&slot.PatientID,
		&slot.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &slot, nil
}
