package services

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/sitepass/sitepass-backend/internal/adapters/faceverify"
	"github.com/sitepass/sitepass-backend/internal/apperr"
	"github.com/sitepass/sitepass-backend/internal/logger"
	"github.com/sitepass/sitepass-backend/internal/repos"
	"github.com/sitepass/sitepass-backend/internal/types"
	"github.com/sitepass/sitepass-backend/internal/utils"
)

// SessionView is what the client sees of a session. The token is only handed
// out by StartSession and must accompany every later call.
type SessionView struct {
	SessionID     uuid.UUID `json:"session_id"`
	SessionToken  string    `json:"session_token,omitempty"`
	Status        string    `json:"status"`
	ValidWatchSec int       `json:"valid_watch_sec"`
	LastPosition  int       `json:"last_position"`
	NeedVerify    bool      `json:"need_verify"`
	FailureReason string    `json:"failure_reason,omitempty"`
}

type TrainingService interface {
	StartSession(ctx context.Context, workerID, dailyTicketID, videoID uuid.UUID) (*SessionView, error)
	Progress(ctx context.Context, sessionID uuid.UUID, token string, report HeartbeatReport) (*SessionView, error)
	Verify(ctx context.Context, sessionID uuid.UUID, token string, photoBase64 string) (*SessionView, error)
	Complete(ctx context.Context, sessionID uuid.UUID, token string) (*SessionView, error)
	SweepHeartbeats(ctx context.Context, limit int) (paused, failed int, err error)
}

type trainingService struct {
	log       *logger.Logger
	db        *gorm.DB
	sessions  repos.TrainingSessionRepo
	dailies   repos.DailyTicketRepo
	dtWorkers repos.DailyTicketWorkerRepo
	videos    repos.TrainingVideoRepo
	members   repos.WorkTicketMemberRepo
	sites     repos.SiteRepo
	faces     faceverify.Client
	workers   repos.WorkerRepo
	access    AccessService
	notifier  NotificationService
	cfg       ProgressConfig
	checkFails int
}

func NewTrainingService(
	db *gorm.DB,
	sessions repos.TrainingSessionRepo,
	dailies repos.DailyTicketRepo,
	dtWorkers repos.DailyTicketWorkerRepo,
	videos repos.TrainingVideoRepo,
	members repos.WorkTicketMemberRepo,
	sites repos.SiteRepo,
	workers repos.WorkerRepo,
	faces faceverify.Client,
	access AccessService,
	notifier NotificationService,
	baseLog *logger.Logger,
) TrainingService {
	log := baseLog.With("service", "TrainingService")
	return &trainingService{
		log:        log,
		db:         db,
		sessions:   sessions,
		dailies:    dailies,
		dtWorkers:  dtWorkers,
		videos:     videos,
		members:    members,
		sites:      sites,
		workers:    workers,
		faces:      faces,
		access:     access,
		notifier:   notifier,
		cfg:        LoadProgressConfig(log),
		checkFails: utils.GetEnvAsInt("TRAINING_CONSECUTIVE_CHECK_LIMIT", 2, log),
	}
}

// StartSession creates the session lazily and returns the stored state so an
// interrupted client resumes where it left off.
func (s *trainingService) StartSession(ctx context.Context, workerID, dailyTicketID, videoID uuid.UUID) (*SessionView, error) {
	dt, err := s.dailies.GetByID(ctx, nil, dailyTicketID)
	if err != nil {
		return nil, err
	}
	if dt == nil {
		return nil, apperr.New(apperr.CodeNotFound, "daily ticket not found")
	}
	if dt.Status != types.DailyTicketStatusPublished && dt.Status != types.DailyTicketStatusInProgress {
		return nil, apperr.New(apperr.CodeTicketExpired, "daily ticket is not open for training")
	}

	dtw, err := s.dtWorkers.Get(ctx, nil, dailyTicketID, workerID)
	if err != nil {
		return nil, err
	}
	if dtw == nil || dtw.Status != "ACTIVE" {
		return nil, apperr.New(apperr.CodePermissionDenied, "worker is not on this daily ticket")
	}
	if dtw.TrainingStatus == types.TrainingStatusFailed {
		return nil, apperr.New(apperr.CodeTrainingFailed, "training already failed for today")
	}

	// Only videos mandated by the parent ticket count toward completion.
	videoRows, err := s.members.ListVideos(ctx, nil, dt.TicketID)
	if err != nil {
		return nil, err
	}
	inTicket := false
	for _, v := range videoRows {
		if v.VideoID == videoID && v.Status == types.JoinStatusActive {
			inTicket = true
			break
		}
	}
	if !inTicket {
		return nil, apperr.New(apperr.CodeVideoNotInTicket, "video is not part of this ticket")
	}

	now := time.Now()
	session := &types.TrainingSession{
		ID:            uuid.New(),
		DailyTicketID: dailyTicketID,
		WorkerID:      workerID,
		VideoID:       videoID,
		SiteID:        dt.SiteID,
		Status:        types.SessionStatusInLearning,
		SessionToken:  uuid.New().String(),
		StartedAt:     &now,
		VideoState:    types.VideoStatePlaying,
	}
	inserted, err := s.sessions.CreateIgnoreConflict(ctx, nil, session)
	if err != nil {
		return nil, err
	}
	if !inserted {
		session, err = s.sessions.Get(ctx, nil, dailyTicketID, workerID, videoID)
		if err != nil {
			return nil, err
		}
		if session == nil {
			return nil, fmt.Errorf("session vanished after conflict")
		}
		if session.Status == types.SessionStatusNotStarted {
			if err := s.sessions.UpdateFields(ctx, nil, session.ID, map[string]interface{}{
				"status":     types.SessionStatusInLearning,
				"started_at": now,
			}); err != nil {
				return nil, err
			}
			session.Status = types.SessionStatusInLearning
		}
	} else if dtw.TrainingStatus == types.TrainingStatusNotStarted {
		if err := s.dtWorkers.UpdateFields(ctx, nil, dtw.ID, map[string]interface{}{
			"training_status": types.TrainingStatusInLearning,
		}); err != nil {
			return nil, err
		}
	}

	return &SessionView{
		SessionID:     session.ID,
		SessionToken:  session.SessionToken,
		Status:        session.Status,
		ValidWatchSec: session.ValidWatchSec,
		LastPosition:  session.LastPosition,
		FailureReason: session.FailureReason,
	}, nil
}

func (s *trainingService) loadSession(ctx context.Context, sessionID uuid.UUID, token string) (*types.TrainingSession, error) {
	session, err := s.sessions.GetByID(ctx, nil, sessionID)
	if err != nil {
		return nil, err
	}
	if session == nil {
		return nil, apperr.New(apperr.CodeNotFound, "session not found")
	}
	if session.SessionToken != token {
		return nil, apperr.New(apperr.CodeSessionTokenInvalid, "session token mismatch")
	}
	return session, nil
}

// Progress validates one heartbeat, persists the counters and reports whether
// a presence check is now required.
func (s *trainingService) Progress(ctx context.Context, sessionID uuid.UUID, token string, report HeartbeatReport) (*SessionView, error) {
	session, err := s.loadSession(ctx, sessionID, token)
	if err != nil {
		return nil, err
	}
	if session.IsTerminal() {
		if session.Status == types.SessionStatusCompleted {
			return nil, apperr.New(apperr.CodeTrainingAlreadyCompleted, "session already completed")
		}
		return nil, apperr.New(apperr.CodeTrainingFailed, "session already failed")
	}
	if session.Status == types.SessionStatusWaitingVerify {
		return &SessionView{
			SessionID:     session.ID,
			Status:        session.Status,
			ValidWatchSec: session.ValidWatchSec,
			LastPosition:  session.LastPosition,
			NeedVerify:    true,
		}, nil
	}

	video, err := s.videos.GetByID(ctx, nil, session.VideoID)
	if err != nil {
		return nil, err
	}
	if video == nil {
		return nil, apperr.New(apperr.CodeNotFound, "video not found")
	}

	ApplyHeartbeat(session, report, video.DurationSec, s.cfg)

	needVerify := false
	if !session.IsTerminal() && CheckDue(session, time.Now(), s.cfg) {
		session.Status = types.SessionStatusWaitingVerify
		needVerify = true
	}

	updates := map[string]interface{}{
		"valid_watch_sec":        session.ValidWatchSec,
		"total_watch_sec":        session.TotalWatchSec,
		"last_position":          session.LastPosition,
		"last_heartbeat_ts":      session.LastHeartbeatTs,
		"suspicious_event_count": session.SuspiciousEventCount,
		"video_state":            session.VideoState,
		"status":                 session.Status,
	}
	if session.Status == types.SessionStatusFailed {
		updates["failure_reason"] = session.FailureReason
		now := time.Now()
		updates["ended_at"] = now
	}
	if err := s.sessions.UpdateFields(ctx, nil, session.ID, updates); err != nil {
		return nil, err
	}

	if session.Status == types.SessionStatusFailed {
		if err := s.failParent(ctx, session); err != nil {
			s.log.Error("Failed to propagate session failure", "session_id", session.ID, "error", err)
		}
	} else if session.Status == types.SessionStatusInLearning {
		if SessionComplete(session, video.DurationSec, s.requiredPercent(ctx, session, video), s.cfg) {
			if err := s.completeSession(ctx, session); err != nil {
				return nil, err
			}
		}
	}

	return &SessionView{
		SessionID:     session.ID,
		Status:        session.Status,
		ValidWatchSec: session.ValidWatchSec,
		LastPosition:  session.LastPosition,
		NeedVerify:    needVerify,
		FailureReason: session.FailureReason,
	}, nil
}

func (s *trainingService) requiredPercent(ctx context.Context, session *types.TrainingSession, video *types.TrainingVideo) float64 {
	dt, err := s.dailies.GetByID(ctx, nil, session.DailyTicketID)
	if err == nil && dt != nil {
		rows, err := s.members.ListVideos(ctx, nil, dt.TicketID)
		if err == nil {
			for _, row := range rows {
				if row.VideoID == video.ID && row.RequiredWatchPercent > 0 {
					return row.RequiredWatchPercent
				}
			}
		}
	}
	if video.RequiredWatchPercent > 0 {
		return video.RequiredWatchPercent
	}
	return 0.95
}

// Verify applies a face-verify verdict to a WAITING_VERIFY session. An
// adapter error is returned to the client without counting as a failed check.
func (s *trainingService) Verify(ctx context.Context, sessionID uuid.UUID, token string, photoBase64 string) (*SessionView, error) {
	session, err := s.loadSession(ctx, sessionID, token)
	if err != nil {
		return nil, err
	}
	if session.IsTerminal() {
		return nil, apperr.New(apperr.CodeTrainingFailed, "session is closed")
	}
	if session.Status != types.SessionStatusWaitingVerify {
		return nil, apperr.New(apperr.CodeValidationError, "session is not awaiting verification")
	}

	worker, err := s.workers.GetByID(ctx, nil, session.WorkerID)
	if err != nil {
		return nil, err
	}
	faceID := ""
	if worker != nil {
		faceID = worker.FaceID
	}
	result, err := s.faces.Verify(ctx, faceID, photoBase64)
	if err != nil {
		// Vendor trouble is not a failed check.
		return nil, apperr.New(apperr.CodeFaceVerifyFailed, "face verification unavailable, try again")
	}

	now := time.Now()
	updates := map[string]interface{}{
		"last_check_at": now,
	}
	if result.Passed {
		session.RandomCheckPassed++
		session.ConsecutiveCheckFailures = 0
		session.Status = types.SessionStatusInLearning
		updates["random_check_passed"] = session.RandomCheckPassed
		updates["consecutive_check_failures"] = 0
		updates["status"] = session.Status
	} else {
		session.RandomCheckFailed++
		session.ConsecutiveCheckFailures++
		updates["random_check_failed"] = session.RandomCheckFailed
		updates["consecutive_check_failures"] = session.ConsecutiveCheckFailures
		if session.ConsecutiveCheckFailures >= s.checkFails {
			session.Status = types.SessionStatusFailed
			session.FailureReason = types.FailureConsecutiveCheckFailures
			updates["status"] = session.Status
			updates["failure_reason"] = session.FailureReason
			updates["ended_at"] = now
		} else {
			session.Status = types.SessionStatusInLearning
			updates["status"] = session.Status
		}
	}
	if err := s.sessions.UpdateFields(ctx, nil, session.ID, updates); err != nil {
		return nil, err
	}
	if session.Status == types.SessionStatusFailed {
		if err := s.failParent(ctx, session); err != nil {
			s.log.Error("Failed to propagate session failure", "session_id", session.ID, "error", err)
		}
	}

	return &SessionView{
		SessionID:     session.ID,
		Status:        session.Status,
		ValidWatchSec: session.ValidWatchSec,
		LastPosition:  session.LastPosition,
		FailureReason: session.FailureReason,
	}, nil
}

// Complete re-checks the completion conditions and returns the final verdict.
func (s *trainingService) Complete(ctx context.Context, sessionID uuid.UUID, token string) (*SessionView, error) {
	session, err := s.loadSession(ctx, sessionID, token)
	if err != nil {
		return nil, err
	}
	if session.Status == types.SessionStatusCompleted {
		return &SessionView{SessionID: session.ID, Status: session.Status, ValidWatchSec: session.ValidWatchSec, LastPosition: session.LastPosition}, nil
	}
	if session.Status == types.SessionStatusFailed {
		return nil, apperr.New(apperr.CodeTrainingFailed, "session failed")
	}

	video, err := s.videos.GetByID(ctx, nil, session.VideoID)
	if err != nil {
		return nil, err
	}
	if video == nil {
		return nil, apperr.New(apperr.CodeNotFound, "video not found")
	}
	if !SessionComplete(session, video.DurationSec, s.requiredPercent(ctx, session, video), s.cfg) {
		return nil, apperr.New(apperr.CodeValidationError, "watch requirements not met")
	}
	if err := s.completeSession(ctx, session); err != nil {
		return nil, err
	}
	return &SessionView{SessionID: session.ID, Status: session.Status, ValidWatchSec: session.ValidWatchSec, LastPosition: session.LastPosition}, nil
}

// completeSession marks the session COMPLETED, advances the parent's counter
// and issues grants when the worker's last video finishes. All inside one
// transaction so the counter never drifts from the session states.
func (s *trainingService) completeSession(ctx context.Context, session *types.TrainingSession) error {
	now := time.Now()
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := s.sessions.UpdateFields(ctx, tx, session.ID, map[string]interface{}{
			"status":   types.SessionStatusCompleted,
			"ended_at": now,
		}); err != nil {
			return err
		}
		session.Status = types.SessionStatusCompleted
		session.EndedAt = &now

		dtw, err := s.dtWorkers.Get(ctx, tx, session.DailyTicketID, session.WorkerID)
		if err != nil {
			return err
		}
		if dtw == nil {
			return fmt.Errorf("daily ticket worker missing for session %s", session.ID)
		}
		completed := dtw.CompletedVideoCount + 1
		if completed > dtw.TotalVideoCount {
			completed = dtw.TotalVideoCount
		}
		updates := map[string]interface{}{
			"completed_video_count": completed,
		}
		finished := completed >= dtw.TotalVideoCount && dtw.TotalVideoCount > 0
		if finished {
			updates["training_status"] = types.TrainingStatusCompleted
			updates["authorized"] = true
		} else if dtw.TrainingStatus == types.TrainingStatusNotStarted {
			updates["training_status"] = types.TrainingStatusInLearning
		}
		if err := s.dtWorkers.UpdateFields(ctx, tx, dtw.ID, updates); err != nil {
			return err
		}

		if finished {
			dt, err := s.dailies.GetByID(ctx, tx, session.DailyTicketID)
			if err != nil {
				return err
			}
			if dt == nil {
				return fmt.Errorf("daily ticket missing for session %s", session.ID)
			}
			site, err := s.sites.GetByID(ctx, tx, dt.SiteID)
			if err != nil {
				return err
			}
			if _, err := s.access.IssueGrantsForWorker(ctx, tx, dt, session.WorkerID, site); err != nil {
				return err
			}
		}
		return nil
	})
}

// failParent marks the worker's day FAILED and notifies them.
func (s *trainingService) failParent(ctx context.Context, session *types.TrainingSession) error {
	dtw, err := s.dtWorkers.Get(ctx, nil, session.DailyTicketID, session.WorkerID)
	if err != nil || dtw == nil {
		return err
	}
	if err := s.dtWorkers.UpdateFields(ctx, nil, dtw.ID, map[string]interface{}{
		"training_status": types.TrainingStatusFailed,
	}); err != nil {
		return err
	}
	wid := session.WorkerID
	_, err = s.notifier.Enqueue(ctx, nil, Notification{
		SiteID:   &session.SiteID,
		WorkerID: &wid,
		Kind:     types.NotifyKindTrainingFailed,
		Priority: types.NotifyPriorityHigh,
		Title:    "Training failed",
		Body:     "Today's safety training was marked as failed. Contact your site administrator.",
		DedupKey: fmt.Sprintf("%s:%s:%s", wid, types.NotifyKindTrainingFailed, session.DailyTicketID),
	})
	return err
}

// SweepHeartbeats force-pauses sessions silent past the pause threshold and
// fails those silent past the fail threshold.
func (s *trainingService) SweepHeartbeats(ctx context.Context, limit int) (int, int, error) {
	now := time.Now().Unix()
	paused, failed := 0, 0

	stale, err := s.sessions.ListStaleHeartbeats(ctx, nil, now-s.cfg.HeartbeatPauseSec, limit)
	if err != nil {
		return 0, 0, err
	}
	for _, session := range stale {
		silence := now - *session.LastHeartbeatTs
		if silence > s.cfg.HeartbeatFailSec {
			endedAt := time.Now()
			if err := s.sessions.UpdateFields(ctx, nil, session.ID, map[string]interface{}{
				"status":         types.SessionStatusFailed,
				"failure_reason": types.FailureHeartbeatTimeout,
				"ended_at":       endedAt,
			}); err != nil {
				s.log.Error("Heartbeat fail transition failed", "session_id", session.ID, "error", err)
				continue
			}
			session.Status = types.SessionStatusFailed
			if err := s.failParent(ctx, session); err != nil {
				s.log.Error("Failed to propagate heartbeat timeout", "session_id", session.ID, "error", err)
			}
			failed++
		} else if session.VideoState != types.VideoStatePaused {
			if err := s.sessions.UpdateFields(ctx, nil, session.ID, map[string]interface{}{
				"video_state": types.VideoStatePaused,
			}); err != nil {
				s.log.Error("Heartbeat pause transition failed", "session_id", session.ID, "error", err)
				continue
			}
			paused++
		}
	}
	return paused, failed, nil
}
