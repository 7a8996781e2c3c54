package services

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/sitepass/sitepass-backend/internal/apperr"
	"github.com/sitepass/sitepass-backend/internal/logger"
	"github.com/sitepass/sitepass-backend/internal/repos"
	"github.com/sitepass/sitepass-backend/internal/tenant"
	"github.com/sitepass/sitepass-backend/internal/types"
)

// TicketEdit is the full set of changes a PATCH may carry. Nil pointers and
// empty slices mean "unchanged".
type TicketEdit struct {
	Remark                  *string
	NotifyOnPublish         *bool
	DailyReminderEnabled    *bool
	DefaultAccessStart      *string
	DefaultAccessEnd        *string
	DefaultTrainingDeadline *string
	AddWorkerIDs            []uuid.UUID
	RemoveWorkerIDs         []uuid.UUID
	AddAreaIDs              []uuid.UUID
	RemoveAreaIDs           []uuid.UUID
	AddVideoIDs             []uuid.UUID
	RemoveVideoIDs          []uuid.UUID
}

// CompensatorService admits or rejects ticket edits and fans out the
// compensating effects that keep daily tickets, sessions and grants aligned
// with the new intent. A rejected edit has no partial effect.
type CompensatorService interface {
	Apply(ctx context.Context, tctx tenant.Context, ticketID uuid.UUID, edit TicketEdit, requestID, ip string) error
	ChangeDailyWindow(ctx context.Context, tctx tenant.Context, dailyTicketID uuid.UUID, accessStart, accessEnd, trainingDeadline string, requestID, ip string) error
}

type compensatorService struct {
	log       *logger.Logger
	db        *gorm.DB
	tickets   repos.WorkTicketRepo
	members   repos.WorkTicketMemberRepo
	dailies   repos.DailyTicketRepo
	dtWorkers repos.DailyTicketWorkerRepo
	snapshots repos.DailyTicketSnapshotRepo
	sessions  repos.TrainingSessionRepo
	grants    repos.AccessGrantRepo
	workers   repos.WorkerRepo
	areas     repos.WorkAreaRepo
	videos    repos.TrainingVideoRepo
	sites     repos.SiteRepo
	access    AccessService
	audit     AuditService
}

func NewCompensatorService(
	db *gorm.DB,
	tickets repos.WorkTicketRepo,
	members repos.WorkTicketMemberRepo,
	dailies repos.DailyTicketRepo,
	dtWorkers repos.DailyTicketWorkerRepo,
	snapshots repos.DailyTicketSnapshotRepo,
	sessions repos.TrainingSessionRepo,
	grants repos.AccessGrantRepo,
	workers repos.WorkerRepo,
	areas repos.WorkAreaRepo,
	videos repos.TrainingVideoRepo,
	sites repos.SiteRepo,
	access AccessService,
	audit AuditService,
	baseLog *logger.Logger,
) CompensatorService {
	return &compensatorService{
		log:       baseLog.With("service", "CompensatorService"),
		db:        db,
		tickets:   tickets,
		members:   members,
		dailies:   dailies,
		dtWorkers: dtWorkers,
		snapshots: snapshots,
		sessions:  sessions,
		grants:    grants,
		workers:   workers,
		areas:     areas,
		videos:    videos,
		sites:     sites,
		access:    access,
		audit:     audit,
	}
}

func (s *compensatorService) Apply(ctx context.Context, tctx tenant.Context, ticketID uuid.UUID, edit TicketEdit, requestID, ip string) error {
	ticket, err := s.tickets.GetByID(ctx, nil, ticketID)
	if err != nil {
		return err
	}
	if ticket == nil {
		return apperr.New(apperr.CodeTicketNotFound, "work ticket not found")
	}
	if !tctx.CanAccessSite(ticket.SiteID) {
		return apperr.ErrForbidden
	}
	if ticket.Status == types.TicketStatusCancelled || ticket.Status == types.TicketStatusClosed {
		return apperr.New(apperr.CodeTicketCancelled, "ticket is closed")
	}
	if len(edit.RemoveVideoIDs) > 0 {
		return apperr.ChangeForbidden(apperr.FieldError{
			Field: "remove_video_ids", Message: "videos can never be removed from a ticket", Code: "VIDEO_REMOVAL_FORBIDDEN",
		})
	}

	site, err := s.sites.GetByID(ctx, nil, ticket.SiteID)
	if err != nil {
		return err
	}
	loc := time.UTC
	if site != nil {
		loc = site.Location()
	}
	today := time.Now().In(loc).Format("2006-01-02")

	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		openDailies, err := s.dailies.ListOpenUnderTicket(ctx, tx, ticketID, today)
		if err != nil {
			return err
		}
		todayDaily := findDailyByDate(openDailies, today)

		if err := s.admit(ctx, tx, ticket, edit, todayDaily); err != nil {
			auditErr := s.audit.Record(ctx, tx, AuditEntry{
				SiteID:       &ticket.SiteID,
				OperatorID:   &tctx.UserID,
				Action:       types.AuditActionUpdate,
				ResourceType: "work_ticket",
				ResourceID:   ticket.ID.String(),
				IP:           ip,
				RequestID:    requestID,
				Err:          err,
			})
			if auditErr != nil {
				return auditErr
			}
			return err
		}

		diff := types.AuditDiff{}

		if err := s.applyScalarEdits(ctx, tx, ticket, edit, &diff, openDailies); err != nil {
			return err
		}
		if err := s.applyWorkerEdits(ctx, tx, tctx, ticket, edit, &diff, openDailies, requestID, ip); err != nil {
			return err
		}
		if err := s.applyAreaEdits(ctx, tx, tctx, ticket, edit, &diff, openDailies, site, requestID, ip); err != nil {
			return err
		}
		if err := s.applyVideoEdits(ctx, tx, tctx, ticket, edit, &diff, openDailies, requestID, ip); err != nil {
			return err
		}

		return s.audit.Record(ctx, tx, AuditEntry{
			SiteID:       &ticket.SiteID,
			OperatorID:   &tctx.UserID,
			Action:       types.AuditActionUpdate,
			ResourceType: "work_ticket",
			ResourceID:   ticket.ID.String(),
			New:          diff.JSON(),
			IP:           ip,
			RequestID:    requestID,
		})
	})
}

func findDailyByDate(dailies []*types.DailyTicket, date string) *types.DailyTicket {
	for _, dt := range dailies {
		if dt.Date.Format("2006-01-02") == date {
			return dt
		}
	}
	return nil
}

// admit enforces the admissibility rules. Worker removal is blocked once the
// worker completed today's training; area removal is blocked while a live
// grant for the area exists today; adding areas or videos is blocked once
// anyone started training today. Rejections carry field errors naming the
// offending ids.
func (s *compensatorService) admit(ctx context.Context, tx *gorm.DB, ticket *types.WorkTicket, edit TicketEdit, todayDaily *types.DailyTicket) error {
	var fields []apperr.FieldError

	if todayDaily != nil {
		if len(edit.RemoveAreaIDs) > 0 {
			live, err := s.grants.ListByDailyTicket(ctx, tx, todayDaily.ID,
				[]string{types.GrantStatusSynced, types.GrantStatusPendingSync})
			if err != nil {
				return err
			}
			granted := map[uuid.UUID]bool{}
			for _, g := range live {
				granted[g.AreaID] = true
			}
			for _, aid := range edit.RemoveAreaIDs {
				if granted[aid] {
					fields = append(fields, apperr.FieldError{
						Field:   "remove_area_ids",
						Message: fmt.Sprintf("area %s already has authorizations today", aid),
						Code:    "AREA_HAS_GRANT_TODAY",
					})
				}
			}
		}

		for _, wid := range edit.RemoveWorkerIDs {
			dtw, err := s.dtWorkers.Get(ctx, tx, todayDaily.ID, wid)
			if err != nil {
				return err
			}
			if dtw != nil && dtw.TrainingStatus == types.TrainingStatusCompleted {
				fields = append(fields, apperr.FieldError{
					Field:   "remove_worker_ids",
					Message: fmt.Sprintf("worker %s already completed training today", wid),
					Code:    "WORKER_COMPLETED_TODAY",
				})
			}
		}

		if len(edit.AddAreaIDs) > 0 || len(edit.AddVideoIDs) > 0 {
			started, err := s.trainingStarted(ctx, tx, todayDaily.ID)
			if err != nil {
				return err
			}
			if started {
				if len(edit.AddAreaIDs) > 0 {
					fields = append(fields, apperr.FieldError{
						Field: "add_area_ids", Message: "training already started today", Code: "TRAINING_STARTED_TODAY",
					})
				}
				if len(edit.AddVideoIDs) > 0 {
					fields = append(fields, apperr.FieldError{
						Field: "add_video_ids", Message: "training already started today", Code: "TRAINING_STARTED_TODAY",
					})
				}
			}
		}
	}

	if len(fields) > 0 {
		return apperr.ChangeForbidden(fields...)
	}
	return nil
}

func (s *compensatorService) trainingStarted(ctx context.Context, tx *gorm.DB, dailyTicketID uuid.UUID) (bool, error) {
	counts, err := s.dtWorkers.CountByTrainingStatus(ctx, tx, dailyTicketID)
	if err != nil {
		return false, err
	}
	for status, n := range counts {
		if status != types.TrainingStatusNotStarted && n > 0 {
			return true, nil
		}
	}
	return false, nil
}

// applyScalarEdits covers remark, notify flags and default windows. Default
// window changes propagate to future daily tickets only; today's stays as
// materialized.
func (s *compensatorService) applyScalarEdits(ctx context.Context, tx *gorm.DB, ticket *types.WorkTicket, edit TicketEdit, diff *types.AuditDiff, openDailies []*types.DailyTicket) error {
	updates := map[string]interface{}{}
	if edit.Remark != nil {
		updates["remark"] = *edit.Remark
	}
	if edit.NotifyOnPublish != nil {
		updates["notify_on_publish"] = *edit.NotifyOnPublish
	}
	if edit.DailyReminderEnabled != nil {
		updates["daily_reminder_enabled"] = *edit.DailyReminderEnabled
	}

	windowChanged := edit.DefaultAccessStart != nil || edit.DefaultAccessEnd != nil || edit.DefaultTrainingDeadline != nil
	if windowChanged {
		diff.OldWindow = fmt.Sprintf("%s-%s", ticket.DefaultAccessStart, ticket.DefaultAccessEnd)
		if edit.DefaultAccessStart != nil {
			updates["default_access_start"] = *edit.DefaultAccessStart
			ticket.DefaultAccessStart = *edit.DefaultAccessStart
		}
		if edit.DefaultAccessEnd != nil {
			updates["default_access_end"] = *edit.DefaultAccessEnd
			ticket.DefaultAccessEnd = *edit.DefaultAccessEnd
		}
		if edit.DefaultTrainingDeadline != nil {
			updates["default_training_deadline"] = *edit.DefaultTrainingDeadline
			ticket.DefaultTrainingDeadline = *edit.DefaultTrainingDeadline
		}
		diff.NewWindow = fmt.Sprintf("%s-%s", ticket.DefaultAccessStart, ticket.DefaultAccessEnd)
	}

	if len(updates) > 0 {
		updates["updated_at"] = time.Now()
		if err := s.tickets.UpdateFields(ctx, tx, ticket.ID, updates); err != nil {
			return err
		}
	}

	if windowChanged {
		site, err := s.sites.GetByID(ctx, tx, ticket.SiteID)
		if err != nil {
			return err
		}
		loc := time.UTC
		if site != nil {
			loc = site.Location()
		}
		today := time.Now().In(loc).Format("2006-01-02")
		for _, dt := range openDailies {
			if dt.Date.Format("2006-01-02") == today {
				continue
			}
			dtUpdates := map[string]interface{}{
				"access_start": ticket.DefaultAccessStart,
				"access_end":   ticket.DefaultAccessEnd,
			}
			if edit.DefaultTrainingDeadline != nil {
				dtUpdates["training_deadline"] = ticket.DefaultTrainingDeadline
			}
			if err := s.dailies.UpdateFields(ctx, tx, dt.ID, dtUpdates); err != nil {
				return err
			}
			dt.AccessStart = ticket.DefaultAccessStart
			dt.AccessEnd = ticket.DefaultAccessEnd
			if err := s.retimeGrants(ctx, tx, dt, loc); err != nil {
				return err
			}
		}
	}
	return nil
}

// retimeGrants recomputes the window of every SYNCED grant under the daily
// ticket and queues it for re-push.
func (s *compensatorService) retimeGrants(ctx context.Context, tx *gorm.DB, dt *types.DailyTicket, loc *time.Location) error {
	from, to, err := s.access.GrantWindow(dt, loc)
	if err != nil {
		return err
	}
	synced, err := s.grants.ListByDailyTicket(ctx, tx, dt.ID, []string{types.GrantStatusSynced, types.GrantStatusPendingSync, types.GrantStatusSyncFailed})
	if err != nil {
		return err
	}
	for _, g := range synced {
		updates := map[string]interface{}{
			"valid_from": from,
			"valid_to":   to,
		}
		if g.Status == types.GrantStatusSynced {
			updates["status"] = types.GrantStatusPendingSync
		}
		if err := s.grants.UpdateFields(ctx, tx, g.ID, updates); err != nil {
			return err
		}
	}
	return nil
}

func (s *compensatorService) applyWorkerEdits(ctx context.Context, tx *gorm.DB, tctx tenant.Context, ticket *types.WorkTicket, edit TicketEdit, diff *types.AuditDiff, openDailies []*types.DailyTicket, requestID, ip string) error {
	for _, wid := range edit.AddWorkerIDs {
		worker, err := s.workers.GetByID(ctx, tx, wid)
		if err != nil {
			return err
		}
		if worker == nil {
			return apperr.New(apperr.CodeNotFound, fmt.Sprintf("worker %s not found", wid))
		}

		reactivated, err := s.members.ReactivateWorker(ctx, tx, ticket.ID, wid, tctx.UserID)
		if err != nil {
			return err
		}
		if !reactivated {
			if err := s.members.AddWorkers(ctx, tx, []*types.WorkTicketWorker{{
				ID:       uuid.New(),
				TicketID: ticket.ID,
				WorkerID: wid,
				SiteID:   ticket.SiteID,
				Status:   types.JoinStatusActive,
				AddedAt:  time.Now(),
				AddedBy:  tctx.UserID,
			}}); err != nil {
				return err
			}
		}
		diff.Added = append(diff.Added, types.IDRef{ID: wid, Name: worker.Name})

		for _, dt := range openDailies {
			videoRows, err := s.members.ListVideos(ctx, tx, ticket.ID)
			if err != nil {
				return err
			}
			total := 0
			for _, v := range videoRows {
				if v.Status == types.JoinStatusActive {
					total++
				}
			}
			if err := s.dtWorkers.CreateIgnoreConflicts(ctx, tx, []*types.DailyTicketWorker{{
				ID:              uuid.New(),
				DailyTicketID:   dt.ID,
				WorkerID:        wid,
				SiteID:          dt.SiteID,
				TotalVideoCount: total,
				TrainingStatus:  types.TrainingStatusNotStarted,
				Status:          "ACTIVE",
			}}); err != nil {
				return err
			}
			if err := s.snapshots.Create(ctx, tx, []*types.DailyTicketSnapshot{{
				ID:            uuid.New(),
				DailyTicketID: dt.ID,
				SiteID:        dt.SiteID,
				Kind:          types.SnapshotKindWorker,
				EntityID:      worker.ID,
				EntityName:    worker.Name,
				Meta: types.MarshalMeta(types.WorkerMeta{
					IDNo:    worker.IDNo,
					Phone:   worker.Phone,
					JobType: worker.JobType,
				}),
			}}); err != nil {
				return err
			}
		}
	}

	for _, wid := range edit.RemoveWorkerIDs {
		removed, err := s.members.RemoveWorker(ctx, tx, ticket.ID, wid, tctx.UserID)
		if err != nil {
			return err
		}
		if !removed {
			continue
		}
		diff.Removed = append(diff.Removed, types.IDRef{ID: wid})

		for _, dt := range openDailies {
			dtw, err := s.dtWorkers.Get(ctx, tx, dt.ID, wid)
			if err != nil {
				return err
			}
			if dtw != nil && dtw.Status == "ACTIVE" {
				if err := s.dtWorkers.UpdateFields(ctx, tx, dtw.ID, map[string]interface{}{
					"status": "REMOVED",
				}); err != nil {
					return err
				}
			}

			grants, err := s.grants.ListByDailyTicketWorker(ctx, tx, dt.ID, wid)
			if err != nil {
				return err
			}
			if err := s.revokeAndAudit(ctx, tx, tctx, ticket, grants, types.RevokeReasonWorkerRemoved, requestID, ip); err != nil {
				return err
			}
		}
	}
	return nil
}

func (s *compensatorService) applyAreaEdits(ctx context.Context, tx *gorm.DB, tctx tenant.Context, ticket *types.WorkTicket, edit TicketEdit, diff *types.AuditDiff, openDailies []*types.DailyTicket, site *types.Site, requestID, ip string) error {
	loc := time.UTC
	if site != nil {
		loc = site.Location()
	}

	for _, aid := range edit.AddAreaIDs {
		area, err := s.areas.GetByID(ctx, tx, aid)
		if err != nil {
			return err
		}
		if area == nil {
			return apperr.New(apperr.CodeNotFound, fmt.Sprintf("area %s not found", aid))
		}
		if err := s.members.AddAreas(ctx, tx, []*types.WorkTicketArea{{
			ID:       uuid.New(),
			TicketID: ticket.ID,
			AreaID:   aid,
			SiteID:   ticket.SiteID,
			Status:   types.JoinStatusActive,
			AddedAt:  time.Now(),
			AddedBy:  tctx.UserID,
		}}); err != nil {
			return err
		}
		diff.Added = append(diff.Added, types.IDRef{ID: aid, Name: area.Name})

		// Workers who already finished training get the new area's grant
		// immediately.
		for _, dt := range openDailies {
			if err := s.snapshots.Create(ctx, tx, []*types.DailyTicketSnapshot{{
				ID:            uuid.New(),
				DailyTicketID: dt.ID,
				SiteID:        dt.SiteID,
				Kind:          types.SnapshotKindArea,
				EntityID:      area.ID,
				EntityName:    area.Name,
				Meta:          types.MarshalMeta(types.AreaMeta{AccessGroupID: area.AccessGroupID}),
			}}); err != nil {
				return err
			}

			dtws, err := s.dtWorkers.ListByDailyTicket(ctx, tx, dt.ID)
			if err != nil {
				return err
			}
			from, to, err := s.access.GrantWindow(dt, loc)
			if err != nil {
				return err
			}
			for _, dtw := range dtws {
				if dtw.Status != "ACTIVE" || dtw.TrainingStatus != types.TrainingStatusCompleted {
					continue
				}
				if err := s.grants.CreateIgnoreConflicts(ctx, tx, []*types.AccessGrant{{
					ID:            uuid.New(),
					DailyTicketID: dt.ID,
					WorkerID:      dtw.WorkerID,
					AreaID:        aid,
					SiteID:        dt.SiteID,
					ValidFrom:     from,
					ValidTo:       to,
					Status:        types.GrantStatusPendingSync,
				}}); err != nil {
					return err
				}
			}
		}
	}

	for _, aid := range edit.RemoveAreaIDs {
		removed, err := s.members.RemoveArea(ctx, tx, ticket.ID, aid, tctx.UserID)
		if err != nil {
			return err
		}
		if !removed {
			continue
		}
		diff.Removed = append(diff.Removed, types.IDRef{ID: aid})

		for _, dt := range openDailies {
			grants, err := s.grants.ListByDailyTicket(ctx, tx, dt.ID, []string{types.GrantStatusSynced, types.GrantStatusPendingSync, types.GrantStatusSyncFailed})
			if err != nil {
				return err
			}
			var areaGrants []*types.AccessGrant
			for _, g := range grants {
				if g.AreaID == aid {
					areaGrants = append(areaGrants, g)
				}
			}
			if err := s.revokeAndAudit(ctx, tx, tctx, ticket, areaGrants, types.RevokeReasonAreaRemoved, requestID, ip); err != nil {
				return err
			}
		}
	}
	return nil
}

// applyVideoEdits adds mandated videos. Every open daily ticket's workers get
// a bigger denominator; anyone already done is reopened and loses their
// grants until they watch the new video.
func (s *compensatorService) applyVideoEdits(ctx context.Context, tx *gorm.DB, tctx tenant.Context, ticket *types.WorkTicket, edit TicketEdit, diff *types.AuditDiff, openDailies []*types.DailyTicket, requestID, ip string) error {
	for _, vid := range edit.AddVideoIDs {
		video, err := s.videos.GetByID(ctx, tx, vid)
		if err != nil {
			return err
		}
		if video == nil {
			return apperr.New(apperr.CodeNotFound, fmt.Sprintf("video %s not found", vid))
		}
		if err := s.members.AddVideos(ctx, tx, []*types.WorkTicketVideo{{
			ID:                   uuid.New(),
			TicketID:             ticket.ID,
			VideoID:              vid,
			SiteID:               ticket.SiteID,
			RequiredWatchPercent: video.RequiredWatchPercent,
			Status:               types.JoinStatusActive,
			AddedAt:              time.Now(),
			AddedBy:              tctx.UserID,
		}}); err != nil {
			return err
		}
		diff.Added = append(diff.Added, types.IDRef{ID: vid, Name: video.Title})

		for _, dt := range openDailies {
			if err := s.snapshots.Create(ctx, tx, []*types.DailyTicketSnapshot{{
				ID:            uuid.New(),
				DailyTicketID: dt.ID,
				SiteID:        dt.SiteID,
				Kind:          types.SnapshotKindVideo,
				EntityID:      video.ID,
				EntityName:    video.Title,
				Meta: types.MarshalMeta(types.VideoMeta{
					DurationSec:     video.DurationSec,
					RequiredPercent: video.RequiredWatchPercent,
				}),
			}}); err != nil {
				return err
			}

			dtws, err := s.dtWorkers.ListByDailyTicket(ctx, tx, dt.ID)
			if err != nil {
				return err
			}
			for _, dtw := range dtws {
				if dtw.Status != "ACTIVE" {
					continue
				}
				updates := map[string]interface{}{
					"total_video_count": dtw.TotalVideoCount + 1,
					"authorized":        false,
				}
				if dtw.TrainingStatus == types.TrainingStatusCompleted {
					updates["training_status"] = types.TrainingStatusInLearning

					grants, err := s.grants.ListByDailyTicketWorker(ctx, tx, dt.ID, dtw.WorkerID)
					if err != nil {
						return err
					}
					if err := s.revokeAndAudit(ctx, tx, tctx, ticket, grants, types.RevokeReasonTrainingReopened, requestID, ip); err != nil {
						return err
					}
				}
				if err := s.dtWorkers.UpdateFields(ctx, tx, dtw.ID, updates); err != nil {
					return err
				}
			}
		}
	}
	return nil
}

// revokeAndAudit revokes each grant and writes a subordinate audit row under
// the originating request id.
func (s *compensatorService) revokeAndAudit(ctx context.Context, tx *gorm.DB, tctx tenant.Context, ticket *types.WorkTicket, grants []*types.AccessGrant, reason, requestID, ip string) error {
	for _, g := range grants {
		if g.Status == types.GrantStatusRevoked {
			continue
		}
		ok, err := s.grants.RevokeIfActive(ctx, tx, g.ID, reason)
		if err != nil {
			return err
		}
		if !ok {
			continue
		}
		if err := s.audit.Record(ctx, tx, AuditEntry{
			SiteID:       &ticket.SiteID,
			OperatorID:   &tctx.UserID,
			Action:       types.AuditActionRevoke,
			ResourceType: "access_grant",
			ResourceID:   g.ID.String(),
			Reason:       reason,
			IP:           ip,
			RequestID:    requestID,
		}); err != nil {
			return err
		}
	}
	return nil
}

// ChangeDailyWindow edits one daily ticket's window in place, retiming its
// grants. Admitted even day-of.
func (s *compensatorService) ChangeDailyWindow(ctx context.Context, tctx tenant.Context, dailyTicketID uuid.UUID, accessStart, accessEnd, trainingDeadline string, requestID, ip string) error {
	dt, err := s.dailies.GetByID(ctx, nil, dailyTicketID)
	if err != nil {
		return err
	}
	if dt == nil {
		return apperr.New(apperr.CodeNotFound, "daily ticket not found")
	}
	if !tctx.CanAccessSite(dt.SiteID) {
		return apperr.ErrForbidden
	}
	if dt.IsTerminal() {
		return apperr.New(apperr.CodeTicketExpired, "daily ticket is closed")
	}

	site, err := s.sites.GetByID(ctx, nil, dt.SiteID)
	if err != nil {
		return err
	}
	loc := time.UTC
	if site != nil {
		loc = site.Location()
	}

	oldWindow := fmt.Sprintf("%s-%s", dt.AccessStart, dt.AccessEnd)
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		updates := map[string]interface{}{}
		if accessStart != "" {
			updates["access_start"] = accessStart
			dt.AccessStart = accessStart
		}
		if accessEnd != "" {
			updates["access_end"] = accessEnd
			dt.AccessEnd = accessEnd
		}
		if trainingDeadline != "" {
			updates["training_deadline"] = trainingDeadline
			dt.TrainingDeadline = trainingDeadline
		}
		if len(updates) == 0 {
			return nil
		}
		if err := s.dailies.UpdateFields(ctx, tx, dt.ID, updates); err != nil {
			return err
		}
		if err := s.retimeGrants(ctx, tx, dt, loc); err != nil {
			return err
		}

		diff := types.AuditDiff{
			OldWindow: oldWindow,
			NewWindow: fmt.Sprintf("%s-%s", dt.AccessStart, dt.AccessEnd),
		}
		return s.audit.Record(ctx, tx, AuditEntry{
			SiteID:       &dt.SiteID,
			OperatorID:   &tctx.UserID,
			Action:       types.AuditActionUpdate,
			ResourceType: "daily_ticket",
			ResourceID:   dt.ID.String(),
			New:          diff.JSON(),
			IP:           ip,
			RequestID:    requestID,
		})
	})
}
