package jobs

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/sitepass/sitepass-backend/internal/logger"
	"github.com/sitepass/sitepass-backend/internal/repos"
	"github.com/sitepass/sitepass-backend/internal/services"
	"github.com/sitepass/sitepass-backend/internal/types"
	"github.com/sitepass/sitepass-backend/internal/utils"
)

// Scheduler fires the calendar-driven jobs. Site-scoped jobs (promotion,
// reminders, deadline warnings, expiry, reconciliation) run on each site's
// local clock; the health and heartbeat sweeps are global. Every firing is
// keyed so a job runs at most once per site and date even across scheduler
// restarts within the same process.
type Scheduler struct {
	log       *logger.Logger
	sites     repos.SiteRepo
	tickets   repos.WorkTicketRepo
	dailies   repos.DailyTicketRepo
	dtWorkers repos.DailyTicketWorkerRepo
	grants    repos.AccessGrantRepo
	access    services.AccessService
	notifier  services.NotificationService
	training  services.TrainingService
	reconcile services.ReconcileService
	health    services.HealthService

	tickInterval time.Duration
	deadlineSoon time.Duration

	mu      sync.Mutex
	lastRun map[string]struct{}
}

func NewScheduler(
	sites repos.SiteRepo,
	tickets repos.WorkTicketRepo,
	dailies repos.DailyTicketRepo,
	dtWorkers repos.DailyTicketWorkerRepo,
	grants repos.AccessGrantRepo,
	access services.AccessService,
	notifier services.NotificationService,
	training services.TrainingService,
	reconcile services.ReconcileService,
	health services.HealthService,
	baseLog *logger.Logger,
) *Scheduler {
	log := baseLog.With("component", "Scheduler")
	return &Scheduler{
		log:          log,
		sites:        sites,
		tickets:      tickets,
		dailies:      dailies,
		dtWorkers:    dtWorkers,
		grants:       grants,
		access:       access,
		notifier:     notifier,
		training:     training,
		reconcile:    reconcile,
		health:       health,
		tickInterval: time.Duration(utils.GetEnvAsInt("SCHEDULER_TICK_SEC", 30, log)) * time.Second,
		deadlineSoon: time.Duration(utils.GetEnvAsInt("DEADLINE_SOON_HOURS", 2, log)) * time.Hour,
		lastRun:      map[string]struct{}{},
	}
}

func (s *Scheduler) Start(ctx context.Context) {
	go func() {
		ticker := time.NewTicker(s.tickInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				func() {
					defer func() {
						if r := recover(); r != nil {
							s.log.Error("Scheduler tick panic", "panic", r)
						}
					}()
					s.tick(ctx, time.Now())
				}()
			}
		}
	}()
}

func (s *Scheduler) tick(ctx context.Context, now time.Time) {
	sites, err := s.sites.ListActive(ctx, nil)
	if err != nil {
		s.log.Error("failed to list sites", "error", err)
		return
	}

	for _, site := range sites {
		local := now.In(site.Location())
		date := local.Format("2006-01-02")

		s.runOnceAfter(local, 0, 5, fmt.Sprintf("promote:%s:%s", site.ID, date), func() {
			s.promoteDailyTickets(ctx, site, date)
		})
		s.runOnceAfter(local, 5, 30, fmt.Sprintf("remind:%s:%s", site.ID, date), func() {
			s.sendReminders(ctx, site, date)
		})
		s.runOnceAfter(local, local.Hour(), 0, fmt.Sprintf("deadline:%s:%s:%02d", site.ID, date, local.Hour()), func() {
			s.warnDeadlineSoon(ctx, site, date, local)
		})
		s.runOnceAfter(local, 23, 59, fmt.Sprintf("expire:%s:%s", site.ID, date), func() {
			s.expireDailyTickets(ctx, site, date)
		})

		s.runOnceAfter(local, 2, 0, fmt.Sprintf("reconcile_l1:%s:%s", site.ID, date), func() {
			if n, err := s.reconcile.RunL1(ctx, site, now); err != nil {
				s.log.Error("L1 reconciliation failed", "site_id", site.ID, "error", err)
			} else if n > 0 {
				s.log.Warn("L1 reconciliation raised alerts", "site_id", site.ID, "count", n)
			}
		})
		s.runOnceAfter(local, 3, 0, fmt.Sprintf("reconcile_l2:%s:%s", site.ID, date), func() {
			if n, err := s.reconcile.RunL2(ctx, site, now); err != nil {
				s.log.Error("L2 reconciliation failed", "site_id", site.ID, "error", err)
			} else if n > 0 {
				s.log.Warn("L2 reconciliation raised alerts", "site_id", site.ID, "count", n)
			}
		})
	}

	healthKey := "health:" + now.Truncate(10*time.Minute).Format("2006-01-02T15:04")
	s.runKeyed(healthKey, func() {
		if _, err := s.health.Sweep(ctx); err != nil {
			s.log.Error("health sweep failed", "error", err)
		}
	})

	heartbeatKey := "heartbeat:" + now.Truncate(time.Minute).Format("2006-01-02T15:04")
	s.runKeyed(heartbeatKey, func() {
		paused, failed, err := s.training.SweepHeartbeats(ctx, 200)
		if err != nil {
			s.log.Error("heartbeat sweep failed", "error", err)
			return
		}
		if paused > 0 || failed > 0 {
			s.log.Info("heartbeat sweep", "paused", paused, "failed", failed)
		}
	})
}

// runOnceAfter fires fn once per key, as soon as the local clock has passed
// hh:mm.
func (s *Scheduler) runOnceAfter(local time.Time, hh, mm int, key string, fn func()) {
	if local.Hour() < hh || (local.Hour() == hh && local.Minute() < mm) {
		return
	}
	s.runKeyed(key, fn)
}

func (s *Scheduler) runKeyed(key string, fn func()) {
	s.mu.Lock()
	if _, done := s.lastRun[key]; done {
		s.mu.Unlock()
		return
	}
	s.lastRun[key] = struct{}{}
	// Drop stale keys so the map does not grow without bound.
	if len(s.lastRun) > 100000 {
		s.lastRun = map[string]struct{}{key: {}}
	}
	s.mu.Unlock()
	fn()
}

// promoteDailyTickets moves today's PUBLISHED daily tickets to IN_PROGRESS
// shortly after midnight site time.
func (s *Scheduler) promoteDailyTickets(ctx context.Context, site *types.Site, date string) {
	dailies, _, err := s.dailies.List(ctx, nil, repos.DailyTicketFilter{
		SiteIDs:  []uuid.UUID{site.ID},
		Status:   types.DailyTicketStatusPublished,
		DateFrom: date,
		DateTo:   date,
	})
	if err != nil {
		s.log.Error("promotion query failed", "site_id", site.ID, "error", err)
		return
	}
	promoted := 0
	for _, dt := range dailies {
		moved, err := s.dailies.UpdateStatusIf(ctx, nil, dt.ID,
			[]string{types.DailyTicketStatusPublished}, types.DailyTicketStatusInProgress)
		if err != nil {
			s.log.Error("promotion failed", "daily_ticket_id", dt.ID, "error", err)
			continue
		}
		if moved {
			promoted++
		}
	}
	if promoted > 0 {
		s.log.Info("promoted daily tickets", "site_id", site.ID, "count", promoted)
	}
}

// sendReminders nudges workers who have not started training yet. A worker is
// re-notified at most once per day.
func (s *Scheduler) sendReminders(ctx context.Context, site *types.Site, date string) {
	dailies := s.openDailies(ctx, site, date)
	for _, dt := range dailies {
		ticket, err := s.tickets.GetByID(ctx, nil, dt.TicketID)
		if err != nil || ticket == nil || !ticket.DailyReminderEnabled {
			continue
		}
		pending, err := s.dtWorkers.ListPendingTraining(ctx, nil, dt.ID,
			[]string{types.TrainingStatusNotStarted})
		if err != nil {
			s.log.Error("reminder query failed", "daily_ticket_id", dt.ID, "error", err)
			continue
		}
		for _, dtw := range pending {
			if dtw.LastNotifyAt != nil && time.Since(*dtw.LastNotifyAt) < 24*time.Hour {
				continue
			}
			sid := site.ID
			wid := dtw.WorkerID
			enqueued, err := s.notifier.Enqueue(ctx, nil, services.Notification{
				SiteID:   &sid,
				WorkerID: &wid,
				Kind:     types.NotifyKindTrainingReminder,
				Priority: types.NotifyPriorityHigh,
				Title:    "Training reminder",
				Body:     fmt.Sprintf("You have %d safety videos to finish before today's deadline.", dtw.TotalVideoCount-dtw.CompletedVideoCount),
				Data: map[string]string{
					"daily_ticket_id": dt.ID.String(),
					"date":            date,
				},
				DedupKey: fmt.Sprintf("%s:%s:%s:%s", dtw.WorkerID, types.NotifyKindTrainingReminder, dt.ID, date),
			})
			if err != nil {
				s.log.Error("reminder enqueue failed", "worker_id", dtw.WorkerID, "error", err)
				continue
			}
			if !enqueued {
				continue
			}
			if err := s.dtWorkers.UpdateFields(ctx, nil, dtw.ID, map[string]interface{}{
				"last_notify_at": time.Now(),
				"notify_count":   dtw.NotifyCount + 1,
			}); err != nil {
				s.log.Error("reminder bookkeeping failed", "worker_id", dtw.WorkerID, "error", err)
			}
		}
	}
}

// warnDeadlineSoon fires when the training deadline is at most two hours out.
// Urgent priority bypasses quiet hours.
func (s *Scheduler) warnDeadlineSoon(ctx context.Context, site *types.Site, date string, local time.Time) {
	dailies := s.openDailies(ctx, site, date)
	for _, dt := range dailies {
		deadline, err := utils.CombineDateClock(dt.Date, dt.TrainingDeadline, site.Location())
		if err != nil {
			continue
		}
		until := deadline.Sub(local)
		if until <= 0 || until > s.deadlineSoon {
			continue
		}
		pending, err := s.dtWorkers.ListPendingTraining(ctx, nil, dt.ID,
			[]string{types.TrainingStatusNotStarted, types.TrainingStatusInLearning})
		if err != nil {
			continue
		}
		for _, dtw := range pending {
			sid := site.ID
			wid := dtw.WorkerID
			if _, err := s.notifier.Enqueue(ctx, nil, services.Notification{
				SiteID:   &sid,
				WorkerID: &wid,
				Kind:     types.NotifyKindDeadlineSoon,
				Priority: types.NotifyPriorityUrgent,
				Title:    "Training deadline approaching",
				Body:     fmt.Sprintf("Your training deadline is %s. Unfinished training blocks site access.", dt.TrainingDeadline),
				Data: map[string]string{
					"daily_ticket_id": dt.ID.String(),
					"deadline":        dt.TrainingDeadline,
				},
				DedupKey: fmt.Sprintf("%s:%s:%s:%s", dtw.WorkerID, types.NotifyKindDeadlineSoon, dt.ID, date),
			}); err != nil {
				s.log.Error("deadline warning enqueue failed", "worker_id", dtw.WorkerID, "error", err)
			}
		}
	}
}

// expireDailyTickets closes out the day: open daily tickets become EXPIRED
// and any grant still live is revoked.
func (s *Scheduler) expireDailyTickets(ctx context.Context, site *types.Site, date string) {
	dailies := s.openDailies(ctx, site, date)
	for _, dt := range dailies {
		moved, err := s.dailies.UpdateStatusIf(ctx, nil, dt.ID, []string{
			types.DailyTicketStatusPublished,
			types.DailyTicketStatusInProgress,
		}, types.DailyTicketStatusExpired)
		if err != nil {
			s.log.Error("expiry failed", "daily_ticket_id", dt.ID, "error", err)
			continue
		}
		if !moved {
			continue
		}
		grants, err := s.grants.ListByDailyTicket(ctx, nil, dt.ID, []string{
			types.GrantStatusPendingSync,
			types.GrantStatusSynced,
			types.GrantStatusSyncFailed,
		})
		if err != nil {
			s.log.Error("expiry grant query failed", "daily_ticket_id", dt.ID, "error", err)
			continue
		}
		if n, err := s.access.RevokeGrants(ctx, nil, grants, types.RevokeReasonExpired); err != nil {
			s.log.Error("expiry revocation failed", "daily_ticket_id", dt.ID, "error", err)
		} else if n > 0 {
			s.log.Info("expired daily ticket", "daily_ticket_id", dt.ID, "grants_revoked", n)
		}
	}
}

func (s *Scheduler) openDailies(ctx context.Context, site *types.Site, date string) []*types.DailyTicket {
	dailies, _, err := s.dailies.List(ctx, nil, repos.DailyTicketFilter{
		SiteIDs:  []uuid.UUID{site.ID},
		DateFrom: date,
		DateTo:   date,
	})
	if err != nil {
		s.log.Error("daily ticket query failed", "site_id", site.ID, "error", err)
		return nil
	}
	out := dailies[:0]
	for _, dt := range dailies {
		if !dt.IsTerminal() {
			out = append(out, dt)
		}
	}
	return out
}
