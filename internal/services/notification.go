package services

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	goredis "github.com/redis/go-redis/v9"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/sitepass/sitepass-backend/internal/adapters/wechatpush"
	"github.com/sitepass/sitepass-backend/internal/logger"
	"github.com/sitepass/sitepass-backend/internal/repos"
	"github.com/sitepass/sitepass-backend/internal/types"
	"github.com/sitepass/sitepass-backend/internal/utils"
)

const (
	notifyQueueKey    = "notify:queue"
	notifyDeferredKey = "notify:deferred"
	notifyDedupPrefix = "notify:dedup:"
)

// Notification is one outbound message request. DedupKey collapses repeats
// within the dedup TTL; empty means no dedup.
type Notification struct {
	SiteID   *uuid.UUID
	WorkerID *uuid.UUID
	UserID   *uuid.UUID
	Kind     string
	Priority int
	Title    string
	Body     string
	Data     map[string]string
	DedupKey string
}

type NotificationService interface {
	Enqueue(ctx context.Context, tx *gorm.DB, n Notification) (bool, error)
	DispatchBatch(ctx context.Context, max int) (int, error)
	ListForWorker(ctx context.Context, workerID uuid.UUID, limit, offset int) ([]*types.NotificationLog, int64, error)
	MarkRead(ctx context.Context, id, workerID uuid.UUID) (bool, error)
}

type notificationService struct {
	log         *logger.Logger
	rdb         *goredis.Client
	repo        repos.NotificationLogRepo
	workers     repos.WorkerRepo
	sites       repos.SiteRepo
	push        wechatpush.Client
	dedupTTL    time.Duration
	quietFrom   int
	quietTo     int
	maxAttempts int
}

func NewNotificationService(
	rdb *goredis.Client,
	repo repos.NotificationLogRepo,
	workers repos.WorkerRepo,
	sites repos.SiteRepo,
	push wechatpush.Client,
	baseLog *logger.Logger,
) NotificationService {
	log := baseLog.With("service", "NotificationService")
	return &notificationService{
		log:         log,
		rdb:         rdb,
		repo:        repo,
		workers:     workers,
		sites:       sites,
		push:        push,
		dedupTTL:    time.Duration(utils.GetEnvAsInt("NOTIFY_DEDUP_TTL_SEC", 3600, log)) * time.Second,
		quietFrom:   utils.GetEnvAsInt("NOTIFY_QUIET_OPEN_HOUR", 7, log),
		quietTo:     utils.GetEnvAsInt("NOTIFY_QUIET_CLOSE_HOUR", 21, log),
		maxAttempts: utils.GetEnvAsInt("NOTIFY_MAX_ATTEMPTS", 5, log),
	}
}

// Enqueue writes the log row and pushes the id onto the priority queue. The
// queue score is priority*1e9 + enqueue unix time, so more urgent messages
// drain first and ties resolve in arrival order. Returns false when the dedup
// key suppressed the message.
func (s *notificationService) Enqueue(ctx context.Context, tx *gorm.DB, n Notification) (bool, error) {
	if n.Priority <= 0 {
		n.Priority = types.NotifyPriorityNormal
	}
	if n.DedupKey != "" {
		ok, err := s.rdb.SetNX(ctx, notifyDedupPrefix+n.DedupKey, 1, s.dedupTTL).Result()
		if err != nil {
			// Redis being down must not block the business transaction.
			s.log.Warn("Dedup check failed, enqueueing anyway", "error", err)
		} else if !ok {
			return false, nil
		}
	}

	payload := datatypes.JSON("{}")
	if len(n.Data) > 0 {
		if b, err := json.Marshal(n.Data); err == nil {
			payload = datatypes.JSON(b)
		}
	}
	row := &types.NotificationLog{
		ID:       uuid.New(),
		SiteID:   n.SiteID,
		WorkerID: n.WorkerID,
		UserID:   n.UserID,
		Kind:     n.Kind,
		Priority: n.Priority,
		Title:    n.Title,
		Body:     n.Body,
		Payload:  payload,
		DedupKey: n.DedupKey,
		Status:   types.NotifyStatusPending,
	}
	if err := s.repo.Create(ctx, tx, []*types.NotificationLog{row}); err != nil {
		return false, err
	}

	score := float64(n.Priority)*1e9 + float64(time.Now().Unix())
	if err := s.rdb.ZAdd(ctx, notifyQueueKey, goredis.Z{Score: score, Member: row.ID.String()}).Err(); err != nil {
		// Row stays PENDING; the dispatcher's DB fallback is the sweep
		// requeueing on next start. Log and move on.
		s.log.Warn("Queue push failed", "id", row.ID, "error", err)
	}
	return true, nil
}

// DispatchBatch drains up to max queued messages. Non-urgent messages outside
// quiet hours are parked on the deferred set scored by their site's next
// opening time.
func (s *notificationService) DispatchBatch(ctx context.Context, max int) (int, error) {
	if err := s.promoteDeferred(ctx); err != nil {
		s.log.Warn("Deferred promotion failed", "error", err)
	}

	ids, err := s.rdb.ZRange(ctx, notifyQueueKey, 0, int64(max-1)).Result()
	if err != nil {
		return 0, err
	}
	sent := 0
	for _, idStr := range ids {
		s.rdb.ZRem(ctx, notifyQueueKey, idStr)
		id, err := uuid.Parse(idStr)
		if err != nil {
			continue
		}
		row, err := s.repo.GetByID(ctx, nil, id)
		if err != nil || row == nil || row.Status != types.NotifyStatusPending {
			continue
		}

		if row.Priority > types.NotifyPriorityUrgent {
			if wait, until := s.quietDeferral(ctx, row); wait {
				s.rdb.ZAdd(ctx, notifyDeferredKey, goredis.Z{Score: float64(until.Unix()), Member: idStr})
				continue
			}
		}

		if err := s.deliver(ctx, row); err != nil {
			attempts := row.AttemptCount + 1
			updates := map[string]interface{}{
				"attempt_count": attempts,
				"last_error":    err.Error(),
			}
			if attempts >= s.maxAttempts {
				updates["status"] = types.NotifyStatusFailed
			} else {
				score := float64(row.Priority)*1e9 + float64(time.Now().Unix())
				s.rdb.ZAdd(ctx, notifyQueueKey, goredis.Z{Score: score, Member: idStr})
			}
			if uerr := s.repo.UpdateFields(ctx, nil, row.ID, updates); uerr != nil {
				s.log.Error("Notification bookkeeping failed", "id", row.ID, "error", uerr)
			}
			continue
		}

		now := time.Now()
		if err := s.repo.UpdateFields(ctx, nil, row.ID, map[string]interface{}{
			"status":        types.NotifyStatusSent,
			"attempt_count": row.AttemptCount + 1,
			"sent_at":       now,
		}); err != nil {
			s.log.Error("Notification bookkeeping failed", "id", row.ID, "error", err)
		}
		sent++
	}
	return sent, nil
}

func (s *notificationService) promoteDeferred(ctx context.Context) error {
	now := fmt.Sprintf("%d", time.Now().Unix())
	ids, err := s.rdb.ZRangeByScore(ctx, notifyDeferredKey, &goredis.ZRangeBy{Min: "-inf", Max: now}).Result()
	if err != nil {
		return err
	}
	for _, idStr := range ids {
		s.rdb.ZRem(ctx, notifyDeferredKey, idStr)
		id, err := uuid.Parse(idStr)
		if err != nil {
			continue
		}
		row, err := s.repo.GetByID(ctx, nil, id)
		if err != nil || row == nil {
			continue
		}
		score := float64(row.Priority)*1e9 + float64(time.Now().Unix())
		s.rdb.ZAdd(ctx, notifyQueueKey, goredis.Z{Score: score, Member: idStr})
	}
	return nil
}

// quietDeferral reports whether the row must wait for the site's quiet-hours
// window to open, and until when.
func (s *notificationService) quietDeferral(ctx context.Context, row *types.NotificationLog) (bool, time.Time) {
	loc := time.UTC
	if row.SiteID != nil {
		if site, err := s.sites.GetByID(ctx, nil, *row.SiteID); err == nil && site != nil {
			loc = site.Location()
		}
	}
	now := time.Now().In(loc)
	h := now.Hour()
	if h >= s.quietFrom && h < s.quietTo {
		return false, time.Time{}
	}
	next := time.Date(now.Year(), now.Month(), now.Day(), s.quietFrom, 0, 0, 0, loc)
	if h >= s.quietTo {
		next = next.AddDate(0, 0, 1)
	}
	return true, next
}

func (s *notificationService) deliver(ctx context.Context, row *types.NotificationLog) error {
	if row.WorkerID == nil {
		// Operator-facing rows stay in the log; there is no push channel for
		// admin principals yet.
		return nil
	}
	w, err := s.workers.GetByID(ctx, nil, *row.WorkerID)
	if err != nil {
		return err
	}
	if w == nil || w.WechatOpenID == "" {
		return fmt.Errorf("worker %s has no bound wechat account", row.WorkerID)
	}
	var data map[string]string
	if len(row.Payload) > 0 {
		_ = json.Unmarshal(row.Payload, &data)
	}
	return s.push.Send(ctx, wechatpush.Message{
		OpenID:   w.WechatOpenID,
		Template: row.Kind,
		Title:    row.Title,
		Body:     row.Body,
		Data:     data,
	})
}

func (s *notificationService) ListForWorker(ctx context.Context, workerID uuid.UUID, limit, offset int) ([]*types.NotificationLog, int64, error) {
	return s.repo.ListByWorker(ctx, nil, workerID, limit, offset)
}

func (s *notificationService) MarkRead(ctx context.Context, id, workerID uuid.UUID) (bool, error) {
	return s.repo.MarkRead(ctx, nil, id, workerID)
}
