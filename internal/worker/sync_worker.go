package worker

import (
	"context"
	"time"

	"todoList/internal/logger"

	"github.com/cenkalti/backoff/v4"
	"go.uber.org/zap"
)

type Synchronizer interface {
	IsDirty() bool
	Synchronize(ctx context.Context) error
}

// SyncWorker периодически повторяет синхронизацию, пока локальный список отличается от серверного.
// После неудачи следующая попытка откладывается по экспоненте, но не дольше maxBackoff.
type SyncWorker struct {
	target   Synchronizer
	interval time.Duration
	backoff  *backoff.ExponentialBackOff
}

func NewSyncWorker(target Synchronizer, interval *time.Duration, maxBackoff *time.Duration) *SyncWorker {
	var intervalToSet time.Duration
	if interval == nil || *interval <= 0 {
		intervalToSet = 30 * time.Second
	} else {
		intervalToSet = *interval
	}

	var maxToSet time.Duration
	if maxBackoff == nil || *maxBackoff <= 0 {
		maxToSet = 10 * time.Minute
	} else {
		maxToSet = *maxBackoff
	}

	b := backoff.NewExponentialBackOff()
	b.InitialInterval = min(intervalToSet, 5*time.Second)
	b.MaxInterval = maxToSet
	b.MaxElapsedTime = 0
	b.Reset()

	return &SyncWorker{
		target:   target,
		interval: intervalToSet,
		backoff:  b,
	}
}

func (w *SyncWorker) Start(ctx context.Context) {
	timer := time.NewTimer(w.interval)
	defer timer.Stop()

	for {
		select {
		case <-timer.C:
			timer.Reset(w.Check(ctx))
		case <-ctx.Done():
			logger.Info("Worker: Фоновая синхронизация останавливается")
			return
		}
	}
}

// Check выполняет одну попытку синхронизации и возвращает задержку до следующей.
func (w *SyncWorker) Check(ctx context.Context) time.Duration {
	if !w.target.IsDirty() {
		w.backoff.Reset()
		return w.interval
	}

	start := time.Now()
	logger.Info("Worker: Фоновая синхронизация списка", zap.Time("started_at", start))

	if err := w.target.Synchronize(ctx); err != nil {
		next := w.backoff.NextBackOff()
		if next == backoff.Stop || next > w.backoff.MaxInterval {
			next = w.backoff.MaxInterval
		}
		logger.Warn("Worker: Синхронизация не удалась",
			zap.Error(err),
			zap.Duration("retry_in", next))
		return next
	}

	w.backoff.Reset()
	logger.Info("Worker: Завершение синхронизации", zap.Duration("ms", time.Since(start)))
	return w.interval
}
