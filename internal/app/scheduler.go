package app

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

// AggregateRefresher пересчитывает рейтинги предложений по отзывам
type AggregateRefresher interface {
	RefreshAggregates(ctx context.Context) (int64, error)
}

// Job фоновая задача, возвращает число затронутых записей
type Job func(ctx context.Context) (int64, error)

// Scheduler фоновые задачи по cron-расписанию
type Scheduler struct {
	cron       *cron.Cron
	offers     AggregateRefresher
	jobTimeout time.Duration
	logger     *zap.Logger
}

func NewScheduler(spec string, offers AggregateRefresher, logger *zap.Logger) (*Scheduler, error) {
	s := &Scheduler{
		cron:       cron.New(cron.WithLocation(time.UTC)),
		offers:     offers,
		jobTimeout: time.Minute,
		logger:     logger,
	}
	if err := s.AddJob("offer aggregates refresh", spec, offers.RefreshAggregates); err != nil {
		return nil, err
	}
	return s, nil
}

// AddJob регистрирует задачу. Вызывать до Run.
func (s *Scheduler) AddJob(name, spec string, job Job) error {
	if _, err := s.cron.AddFunc(spec, func() { s.runJob(name, job) }); err != nil {
		return fmt.Errorf("schedule %s %q: %w", name, spec, err)
	}
	return nil
}

// Run запускает задачи и блокируется до отмены ctx, затем ждёт текущие
func (s *Scheduler) Run(ctx context.Context) error {
	s.logger.Info("Starting background scheduler", zap.Int("jobs", len(s.cron.Entries())))

	// Рейтинги пересчитываем сразу при старте
	s.runJob("offer aggregates refresh", s.offers.RefreshAggregates)

	s.cron.Start()
	<-ctx.Done()

	s.logger.Info("Stopping background scheduler")
	<-s.cron.Stop().Done()
	return nil
}

func (s *Scheduler) runJob(name string, job Job) {
	ctx, cancel := context.WithTimeout(context.Background(), s.jobTimeout)
	defer cancel()

	n, err := job(ctx)
	if err != nil {
		s.logger.Error("Background job failed", zap.String("job", name), zap.Error(err))
		return
	}
	s.logger.Info("Background job done", zap.String("job", name), zap.Int64("affected", n))
}
