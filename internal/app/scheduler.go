package app

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"github.com/Freeeeeet/felanocare/internal/ledger"
)

const sweepTimeout = time.Minute

var cronParser = cron.NewParser(
	cron.SecondOptional | cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor,
)

// Auditor пересчитывает сводку по реестру
type Auditor interface {
	Audit(ctx context.Context) (*ledger.Audit, error)
}

// Scheduler управляет фоновыми задачами
type Scheduler struct {
	cron    *cron.Cron
	auditor Auditor
	logger  *zap.Logger
}

// NewScheduler создаёт планировщик с проверкой реестра по расписанию spec
func NewScheduler(auditor Auditor, spec string, logger *zap.Logger) (*Scheduler, error) {
	s := &Scheduler{
		cron:    cron.New(cron.WithParser(cronParser), cron.WithChain(cron.Recover(cron.DefaultLogger))),
		auditor: auditor,
		logger:  logger,
	}

	if _, err := s.cron.AddFunc(spec, s.sweep); err != nil {
		return nil, fmt.Errorf("schedule ledger sweep %q: %w", spec, err)
	}

	return s, nil
}

// Start запускает фоновые задачи; первая проверка выполняется сразу
func (s *Scheduler) Start() {
	s.logger.Info("Starting background scheduler")
	go s.sweep()
	s.cron.Start()
}

// Stop останавливает планировщик и ждёт завершения текущей задачи
func (s *Scheduler) Stop() {
	s.logger.Info("Stopping background scheduler")
	<-s.cron.Stop().Done()
}

// sweep ищет двойные брони и обновляет метрики статусов
func (s *Scheduler) sweep() {
	ctx, cancel := context.WithTimeout(context.Background(), sweepTimeout)
	defer cancel()

	audit, err := s.auditor.Audit(ctx)
	if err != nil {
		s.logger.Error("Ledger sweep failed", zap.Error(err))
		return
	}

	s.logger.Info("Ledger sweep completed",
		zap.Int("available", audit.ByStatus["available"]),
		zap.Int("booked", audit.ByStatus["booked"]),
		zap.Int("canceled", audit.ByStatus["canceled"]),
		zap.Int("duplicates", len(audit.Duplicates)))
}
