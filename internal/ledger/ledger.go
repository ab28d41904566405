// Package ledger - реестр свободного времени специалистов: публикация слотов,
// атомарная бронь, отмена брони, отзыв слота и живые запросы к расписанию.
package ledger

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/Freeeeeet/felanocare/internal/events"
	"github.com/Freeeeeet/felanocare/internal/identity"
	"github.com/Freeeeeet/felanocare/internal/metrics"
	"github.com/Freeeeeet/felanocare/internal/model"
	"github.com/Freeeeeet/felanocare/internal/store"
)

const publishTimeout = 5 * time.Second

// Ledger хранит единственный источник правды о доступности слотов
type Ledger struct {
	slots   store.SlotStore
	events  events.Publisher
	metrics *metrics.Metrics
	logger  *zap.Logger
	tracer  trace.Tracer
	now     func() time.Time
}

func New(slots store.SlotStore, publisher events.Publisher, m *metrics.Metrics, logger *zap.Logger) *Ledger {
	if publisher == nil {
		publisher = events.Nop{}
	}
	if m == nil {
		m = metrics.NewUnregistered()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Ledger{
		slots:   slots,
		events:  publisher,
		metrics: m,
		logger:  logger,
		tracer:  otel.Tracer("ledger"),
		now:     time.Now,
	}
}

// PublishSlot создаёт свободный слот специалиста. Пересечения не проверяются.
func (l *Ledger) PublishSlot(ctx context.Context, sess identity.Session, ownerID, date, startTime, endTime string) (*model.Slot, error) {
	ctx, span := l.tracer.Start(ctx, "ledger.publish_slot", trace.WithAttributes(
		attribute.String("owner_id", ownerID),
		attribute.String("date", date),
	))
	defer span.End()

	if !sess.Is(ownerID, model.RoleProfessional) {
		return nil, fmt.Errorf("publish slot: %w", ErrUnauthorized)
	}
	if err := ValidateSlot(date, startTime, endTime); err != nil {
		return nil, err
	}

	slot := &model.Slot{
		OwnerID:   ownerID,
		Date:      date,
		StartTime: startTime,
		EndTime:   endTime,
	}
	if err := l.slots.Insert(ctx, slot); err != nil {
		fail(span, err)
		return nil, storeErr("publish slot", err)
	}

	l.metrics.SlotsPublished.Inc()
	l.logger.Info("Slot published",
		zap.String("slot_id", slot.ID),
		zap.String("owner_id", ownerID),
		zap.String("date", date),
		zap.String("start", startTime),
		zap.String("end", endTime))
	l.emit(ctx, events.SlotPublished, slot, sess.UserID)

	return slot, nil
}

// ClaimSlot бронирует слот одной условной записью: из конкурирующих вызовов
// успешен ровно один.
func (l *Ledger) ClaimSlot(ctx context.Context, sess identity.Session, slotID, patientID string) error {
	ctx, span := l.tracer.Start(ctx, "ledger.claim_slot", trace.WithAttributes(
		attribute.String("slot_id", slotID),
		attribute.String("patient_id", patientID),
	))
	defer span.End()

	if !sess.Is(patientID, model.RolePatient) {
		return fmt.Errorf("claim slot: %w", ErrUnauthorized)
	}

	slot, err := l.slots.UpdateIf(ctx, slotID,
		store.Condition{Booked: store.Bool(false), Canceled: store.Bool(false)},
		store.Update{Booked: store.Bool(true), PatientID: store.String(patientID)},
	)
	switch {
	case err == nil:
	case errors.Is(err, store.ErrNotFound):
		l.metrics.SlotClaims.WithLabelValues(metrics.ResultNotFound).Inc()
		return fmt.Errorf("claim slot %s: %w", slotID, ErrNotFound)
	case errors.Is(err, store.ErrConditionFailed):
		l.metrics.SlotClaims.WithLabelValues(metrics.ResultUnavailable).Inc()
		// чтение только уточняет причину отказа, запись уже не выполнялась
		if cur, gerr := l.slots.Get(ctx, slotID); gerr == nil && cur.Canceled {
			return fmt.Errorf("claim slot %s: %w", slotID, ErrSlotWithdrawn)
		}
		return fmt.Errorf("claim slot %s: %w", slotID, ErrSlotUnavailable)
	default:
		l.metrics.SlotClaims.WithLabelValues(metrics.ResultError).Inc()
		fail(span, err)
		return storeErr("claim slot", err)
	}

	l.metrics.SlotClaims.WithLabelValues(metrics.ResultOK).Inc()
	l.logger.Info("Slot claimed",
		zap.String("slot_id", slotID),
		zap.String("owner_id", slot.OwnerID),
		zap.String("patient_id", patientID))
	l.emit(ctx, events.SlotClaimed, slot, sess.UserID)

	return nil
}

// ReleaseSlot возвращает забронированный слот в свободные. Пациент снимает только
// свою бронь, специалист - любую бронь на своём слоте. Повторная отмена - не ошибка.
func (l *Ledger) ReleaseSlot(ctx context.Context, sess identity.Session, slotID string) error {
	ctx, span := l.tracer.Start(ctx, "ledger.release_slot", trace.WithAttributes(
		attribute.String("slot_id", slotID),
		attribute.String("actor_id", sess.UserID),
	))
	defer span.End()

	if !sess.Valid() {
		return fmt.Errorf("release slot: %w", ErrUnauthorized)
	}

	cond := store.Condition{Booked: store.Bool(true), Canceled: store.Bool(false)}
	if sess.IsPatient() {
		cond.PatientID = sess.UserID
	} else {
		cond.OwnerID = sess.UserID
	}

	before, err := l.slots.Get(ctx, slotID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return fmt.Errorf("release slot %s: %w", slotID, ErrNotFound)
		}
		fail(span, err)
		return storeErr("release slot", err)
	}
	if before.PatientID == nil {
		return l.classifyRelease(ctx, sess, slotID)
	}
	// запись привязана к пациенту из чтения: если бронь сменила владельца,
	// условие не выполнится и событие не назовёт чужого пациента
	if cond.PatientID == "" {
		cond.PatientID = *before.PatientID
	}

	slot, err := l.slots.UpdateIf(ctx, slotID, cond,
		store.Update{Booked: store.Bool(false), ClearPatient: true})
	switch {
	case err == nil:
	case errors.Is(err, store.ErrNotFound):
		return fmt.Errorf("release slot %s: %w", slotID, ErrNotFound)
	case errors.Is(err, store.ErrConditionFailed):
		return l.classifyRelease(ctx, sess, slotID)
	default:
		fail(span, err)
		return storeErr("release slot", err)
	}

	patientID := cond.PatientID

	l.metrics.SlotReleases.Inc()
	l.logger.Info("Slot released",
		zap.String("slot_id", slotID),
		zap.String("owner_id", slot.OwnerID),
		zap.String("patient_id", patientID),
		zap.String("actor_id", sess.UserID),
		zap.String("actor_role", string(sess.Role)))

	released := slot.Clone()
	released.PatientID = &patientID
	l.emit(ctx, events.SlotReleased, released, sess.UserID)

	return nil
}

// classifyRelease разбирает отказ условной записи при отмене брони
func (l *Ledger) classifyRelease(ctx context.Context, sess identity.Session, slotID string) error {
	cur, err := l.slots.Get(ctx, slotID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return fmt.Errorf("release slot %s: %w", slotID, ErrNotFound)
		}
		return storeErr("release slot", err)
	}

	switch {
	case sess.IsProfessional() && cur.OwnerID != sess.UserID:
		return fmt.Errorf("release slot %s: %w", slotID, ErrUnauthorized)
	case cur.Canceled:
		return fmt.Errorf("release slot %s: %w", slotID, ErrSlotWithdrawn)
	case !cur.Booked:
		return nil
	case sess.IsPatient() && !cur.HeldBy(sess.UserID):
		return fmt.Errorf("release slot %s: %w", slotID, ErrUnauthorized)
	default:
		// состояние изменилось между записью и чтением
		return fmt.Errorf("release slot %s: %w", slotID, ErrSlotUnavailable)
	}
}

// WithdrawSlot отзывает слот независимо от брони. Отзыв необратим и идемпотентен.
func (l *Ledger) WithdrawSlot(ctx context.Context, sess identity.Session, ownerID, slotID string) error {
	ctx, span := l.tracer.Start(ctx, "ledger.withdraw_slot", trace.WithAttributes(
		attribute.String("slot_id", slotID),
		attribute.String("owner_id", ownerID),
	))
	defer span.End()

	if !sess.Is(ownerID, model.RoleProfessional) {
		return fmt.Errorf("withdraw slot: %w", ErrUnauthorized)
	}

	slot, err := l.slots.UpdateIf(ctx, slotID,
		store.Condition{OwnerID: ownerID, Canceled: store.Bool(false)},
		store.Update{Canceled: store.Bool(true)},
	)
	switch {
	case err == nil:
	case errors.Is(err, store.ErrNotFound):
		return fmt.Errorf("withdraw slot %s: %w", slotID, ErrNotFound)
	case errors.Is(err, store.ErrConditionFailed):
		cur, gerr := l.slots.Get(ctx, slotID)
		if gerr != nil {
			if errors.Is(gerr, store.ErrNotFound) {
				return fmt.Errorf("withdraw slot %s: %w", slotID, ErrNotFound)
			}
			return storeErr("withdraw slot", gerr)
		}
		if cur.OwnerID != ownerID {
			return fmt.Errorf("withdraw slot %s: %w", slotID, ErrUnauthorized)
		}
		// уже отозван
		return nil
	default:
		fail(span, err)
		return storeErr("withdraw slot", err)
	}

	l.metrics.SlotWithdrawals.Inc()
	l.logger.Info("Slot withdrawn",
		zap.String("slot_id", slotID),
		zap.String("owner_id", ownerID),
		zap.Bool("was_booked", slot.Booked))
	l.emit(ctx, events.SlotWithdrawn, slot, sess.UserID)

	return nil
}

// ValidateSlot проверяет формат даты и времени и что конец позже начала
func ValidateSlot(date, startTime, endTime string) error {
	if err := ValidateDate(date); err != nil {
		return err
	}
	if strings.TrimSpace(startTime) == "" {
		return &ValidationError{Field: "start_time", Reason: "required"}
	}
	if _, err := time.Parse(model.TimeLayout, startTime); err != nil {
		return &ValidationError{Field: "start_time", Reason: "expected HH:MM"}
	}
	if strings.TrimSpace(endTime) == "" {
		return &ValidationError{Field: "end_time", Reason: "required"}
	}
	if _, err := time.Parse(model.TimeLayout, endTime); err != nil {
		return &ValidationError{Field: "end_time", Reason: "expected HH:MM"}
	}
	if endTime <= startTime {
		return &ValidationError{Field: "end_time", Reason: "must be after start_time"}
	}
	return nil
}

// ValidateDate проверяет дату в формате YYYY-MM-DD
func ValidateDate(date string) error {
	if strings.TrimSpace(date) == "" {
		return &ValidationError{Field: "date", Reason: "required"}
	}
	if _, err := time.Parse(model.DateLayout, date); err != nil {
		return &ValidationError{Field: "date", Reason: "expected YYYY-MM-DD"}
	}
	return nil
}

// emit публикует событие в фоне; ошибка доставки только логируется
func (l *Ledger) emit(ctx context.Context, typ events.Type, slot *model.Slot, actorID string) {
	e := events.SlotEvent{
		Type:       typ,
		SlotID:     slot.ID,
		OwnerID:    slot.OwnerID,
		ActorID:    actorID,
		Date:       slot.Date,
		StartTime:  slot.StartTime,
		OccurredAt: l.now().UTC(),
	}
	if slot.PatientID != nil {
		e.PatientID = *slot.PatientID
	}

	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), publishTimeout)
	go func() {
		defer cancel()
		if err := l.events.Publish(ctx, e); err != nil {
			l.metrics.EventsPublished.WithLabelValues(metrics.ResultError).Inc()
			l.logger.Warn("Failed to publish slot event",
				zap.String("type", string(e.Type)),
				zap.String("slot_id", e.SlotID),
				zap.Error(err))
			return
		}
		l.metrics.EventsPublished.WithLabelValues(metrics.ResultOK).Inc()
	}()
}

func fail(span trace.Span, err error) {
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
}
