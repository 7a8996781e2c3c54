package jobs

import (
	"context"
	"time"

	"github.com/sitepass/sitepass-backend/internal/logger"
	"github.com/sitepass/sitepass-backend/internal/services"
	"github.com/sitepass/sitepass-backend/internal/utils"
)

// NotifyDispatchWorker drains the notification queue on a short interval.
type NotifyDispatchWorker struct {
	log      *logger.Logger
	notifier services.NotificationService
	interval time.Duration
	batch    int
}

func NewNotifyDispatchWorker(notifier services.NotificationService, baseLog *logger.Logger) *NotifyDispatchWorker {
	log := baseLog.With("component", "NotifyDispatchWorker")
	return &NotifyDispatchWorker{
		log:      log,
		notifier: notifier,
		interval: time.Duration(utils.GetEnvAsInt("NOTIFY_DISPATCH_INTERVAL_SEC", 30, log)) * time.Second,
		batch:    utils.GetEnvAsInt("NOTIFY_DISPATCH_BATCH", 50, log),
	}
}

func (w *NotifyDispatchWorker) Start(ctx context.Context) {
	go func() {
		ticker := time.NewTicker(w.interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				func() {
					defer func() {
						if r := recover(); r != nil {
							w.log.Error("Notification dispatch panic", "panic", r)
						}
					}()
					sent, err := w.notifier.DispatchBatch(ctx, w.batch)
					if err != nil {
						w.log.Error("notification dispatch failed", "error", err)
						return
					}
					if sent > 0 {
						w.log.Info("dispatched notifications", "count", sent)
					}
				}()
			}
		}
	}()
}
