package services

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/sitepass/sitepass-backend/internal/apperr"
	"github.com/sitepass/sitepass-backend/internal/logger"
	"github.com/sitepass/sitepass-backend/internal/repos"
	"github.com/sitepass/sitepass-backend/internal/types"
)

// VideoTask is one video the worker must watch today, with their progress.
type VideoTask struct {
	VideoID         uuid.UUID  `json:"video_id"`
	Title           string     `json:"title"`
	DurationSec     int        `json:"duration_sec"`
	RequiredPercent float64    `json:"required_percent"`
	SessionID       *uuid.UUID `json:"session_id,omitempty"`
	SessionStatus   string     `json:"session_status"`
	ValidWatchSec   int        `json:"valid_watch_sec"`
	LastPosition    int        `json:"last_position"`
}

// WorkerTask is one daily ticket the worker is on today.
type WorkerTask struct {
	DailyTicketID    uuid.UUID   `json:"daily_ticket_id"`
	Date             string      `json:"date"`
	Status           string      `json:"status"`
	AccessStart      string      `json:"access_start"`
	AccessEnd        string      `json:"access_end"`
	TrainingDeadline string      `json:"training_deadline"`
	TrainingStatus   string      `json:"training_status"`
	Authorized       bool        `json:"authorized"`
	TotalVideos      int         `json:"total_videos"`
	CompletedVideos  int         `json:"completed_videos"`
	Videos           []VideoTask `json:"videos"`
}

// WorkerTaskService builds the worker's mini-program home view from the
// frozen daily snapshots, so mid-day ticket edits never change what a worker
// already sees.
type WorkerTaskService interface {
	TodayTasks(ctx context.Context, workerID uuid.UUID) ([]*WorkerTask, error)
}

type workerTaskService struct {
	log       *logger.Logger
	workers   repos.WorkerRepo
	sites     repos.SiteRepo
	dailies   repos.DailyTicketRepo
	dtWorkers repos.DailyTicketWorkerRepo
	snapshots repos.DailyTicketSnapshotRepo
	sessions  repos.TrainingSessionRepo
}

func NewWorkerTaskService(
	workers repos.WorkerRepo,
	sites repos.SiteRepo,
	dailies repos.DailyTicketRepo,
	dtWorkers repos.DailyTicketWorkerRepo,
	snapshots repos.DailyTicketSnapshotRepo,
	sessions repos.TrainingSessionRepo,
	baseLog *logger.Logger,
) WorkerTaskService {
	return &workerTaskService{
		log:       baseLog.With("service", "WorkerTaskService"),
		workers:   workers,
		sites:     sites,
		dailies:   dailies,
		dtWorkers: dtWorkers,
		snapshots: snapshots,
		sessions:  sessions,
	}
}

func (s *workerTaskService) TodayTasks(ctx context.Context, workerID uuid.UUID) ([]*WorkerTask, error) {
	worker, err := s.workers.GetByID(ctx, nil, workerID)
	if err != nil {
		return nil, err
	}
	if worker == nil {
		return nil, apperr.New(apperr.CodeNotFound, "worker not found")
	}

	site, err := s.sites.GetByID(ctx, nil, worker.SiteID)
	if err != nil {
		return nil, err
	}
	loc := time.UTC
	if site != nil {
		loc = site.Location()
	}
	today := time.Now().In(loc).Format("2006-01-02")

	dailies, _, err := s.dailies.List(ctx, nil, repos.DailyTicketFilter{
		SiteIDs:  []uuid.UUID{worker.SiteID},
		DateFrom: today,
		DateTo:   today,
	})
	if err != nil {
		return nil, err
	}

	var out []*WorkerTask
	for _, dt := range dailies {
		if dt.IsTerminal() {
			continue
		}
		dtw, err := s.dtWorkers.Get(ctx, nil, dt.ID, workerID)
		if err != nil {
			return nil, err
		}
		if dtw == nil || dtw.Status != "ACTIVE" {
			continue
		}
		task, err := s.buildTask(ctx, dt, dtw)
		if err != nil {
			return nil, err
		}
		out = append(out, task)
	}
	return out, nil
}

func (s *workerTaskService) buildTask(ctx context.Context, dt *types.DailyTicket, dtw *types.DailyTicketWorker) (*WorkerTask, error) {
	task := &WorkerTask{
		DailyTicketID:    dt.ID,
		Date:             dt.Date.Format("2006-01-02"),
		Status:           dt.Status,
		AccessStart:      dt.AccessStart,
		AccessEnd:        dt.AccessEnd,
		TrainingDeadline: dt.TrainingDeadline,
		TrainingStatus:   dtw.TrainingStatus,
		Authorized:       dtw.Authorized,
		TotalVideos:      dtw.TotalVideoCount,
		CompletedVideos:  dtw.CompletedVideoCount,
	}

	snapshots, err := s.snapshots.ListByDailyTicket(ctx, nil, dt.ID, types.SnapshotKindVideo)
	if err != nil {
		return nil, err
	}
	sessions, err := s.sessions.ListByWorker(ctx, nil, dt.ID, dtw.WorkerID)
	if err != nil {
		return nil, err
	}
	sessionByVideo := make(map[uuid.UUID]*types.TrainingSession, len(sessions))
	for _, sess := range sessions {
		sessionByVideo[sess.VideoID] = sess
	}

	for _, snap := range snapshots {
		meta, err := snap.VideoMeta()
		if err != nil {
			s.log.Warn("unreadable video snapshot", "snapshot_id", snap.ID, "error", err)
		}
		vt := VideoTask{
			VideoID:         snap.EntityID,
			Title:           snap.EntityName,
			DurationSec:     meta.DurationSec,
			RequiredPercent: meta.RequiredPercent,
			SessionStatus:   types.SessionStatusNotStarted,
		}
		if sess, ok := sessionByVideo[snap.EntityID]; ok {
			id := sess.ID
			vt.SessionID = &id
			vt.SessionStatus = sess.Status
			vt.ValidWatchSec = sess.ValidWatchSec
			vt.LastPosition = sess.LastPosition
		}
		task.Videos = append(task.Videos, vt)
	}
	return task, nil
}
