package services

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/sitepass/sitepass-backend/internal/apperr"
	"github.com/sitepass/sitepass-backend/internal/logger"
	"github.com/sitepass/sitepass-backend/internal/repos"
	"github.com/sitepass/sitepass-backend/internal/tenant"
	"github.com/sitepass/sitepass-backend/internal/types"
	"github.com/sitepass/sitepass-backend/internal/utils"
)

// CreateTicketInput is the full authoring payload. Members can be empty at
// creation; publishing requires at least one worker, area and video.
type CreateTicketInput struct {
	SiteID                  uuid.UUID
	ContractorID            uuid.UUID
	Title                   string
	Remark                  string
	StartDate               string
	EndDate                 string
	DefaultAccessStart      string
	DefaultAccessEnd        string
	DefaultTrainingDeadline string
	NotifyOnPublish         *bool
	DailyReminderEnabled    *bool
	WorkerIDs               []uuid.UUID
	AreaIDs                 []uuid.UUID
	VideoIDs                []uuid.UUID
}

// TicketDetail is a ticket with its current membership.
type TicketDetail struct {
	Ticket  *types.WorkTicket         `json:"ticket"`
	Workers []*types.WorkTicketWorker `json:"workers"`
	Areas   []*types.WorkTicketArea   `json:"areas"`
	Videos  []*types.WorkTicketVideo  `json:"videos"`
}

type TicketService interface {
	Create(ctx context.Context, tctx tenant.Context, input CreateTicketInput, requestID, ip string) (*types.WorkTicket, error)
	Publish(ctx context.Context, tctx tenant.Context, ticketID uuid.UUID, requestID, ip string) (int, error)
	Cancel(ctx context.Context, tctx tenant.Context, ticketID uuid.UUID, reason, requestID, ip string) error
	Close(ctx context.Context, tctx tenant.Context, ticketID uuid.UUID, requestID, ip string) error
	Get(ctx context.Context, tctx tenant.Context, ticketID uuid.UUID) (*TicketDetail, error)
	List(ctx context.Context, tctx tenant.Context, filter repos.WorkTicketFilter) ([]*types.WorkTicket, int64, error)
	ListDailyTickets(ctx context.Context, tctx tenant.Context, filter repos.DailyTicketFilter) ([]*types.DailyTicket, int64, error)
}

type ticketService struct {
	log          *logger.Logger
	db           *gorm.DB
	tickets      repos.WorkTicketRepo
	members      repos.WorkTicketMemberRepo
	dailies      repos.DailyTicketRepo
	grants       repos.AccessGrantRepo
	workers      repos.WorkerRepo
	areas        repos.WorkAreaRepo
	videos       repos.TrainingVideoRepo
	sites        repos.SiteRepo
	materializer MaterializerService
	access       AccessService
	audit        AuditService
}

func NewTicketService(
	db *gorm.DB,
	tickets repos.WorkTicketRepo,
	members repos.WorkTicketMemberRepo,
	dailies repos.DailyTicketRepo,
	grants repos.AccessGrantRepo,
	workers repos.WorkerRepo,
	areas repos.WorkAreaRepo,
	videos repos.TrainingVideoRepo,
	sites repos.SiteRepo,
	materializer MaterializerService,
	access AccessService,
	audit AuditService,
	baseLog *logger.Logger,
) TicketService {
	return &ticketService{
		log:          baseLog.With("service", "TicketService"),
		db:           db,
		tickets:      tickets,
		members:      members,
		dailies:      dailies,
		grants:       grants,
		workers:      workers,
		areas:        areas,
		videos:       videos,
		sites:        sites,
		materializer: materializer,
		access:       access,
		audit:        audit,
	}
}

func (s *ticketService) Create(ctx context.Context, tctx tenant.Context, input CreateTicketInput, requestID, ip string) (*types.WorkTicket, error) {
	if !tctx.CanAccessSite(input.SiteID) {
		return nil, apperr.ErrForbidden
	}

	site, err := s.sites.GetByID(ctx, nil, input.SiteID)
	if err != nil {
		return nil, err
	}
	if site == nil {
		return nil, apperr.New(apperr.CodeNotFound, "site not found")
	}

	ticket, err := s.buildTicket(tctx, site, input)
	if err != nil {
		return nil, err
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if _, err := s.tickets.Create(ctx, tx, []*types.WorkTicket{ticket}); err != nil {
			return err
		}
		if err := s.attachMembers(ctx, tx, tctx, ticket, input); err != nil {
			return err
		}
		snapshot, _ := json.Marshal(ticket)
		return s.audit.Record(ctx, tx, AuditEntry{
			SiteID:       &ticket.SiteID,
			OperatorID:   &tctx.UserID,
			Action:       types.AuditActionCreate,
			ResourceType: "work_ticket",
			ResourceID:   ticket.ID.String(),
			New:          datatypes.JSON(snapshot),
			IP:           ip,
			RequestID:    requestID,
		})
	})
	if err != nil {
		return nil, err
	}
	return ticket, nil
}

func (s *ticketService) buildTicket(tctx tenant.Context, site *types.Site, input CreateTicketInput) (*types.WorkTicket, error) {
	var fields []apperr.FieldError
	if input.Title == "" {
		fields = append(fields, apperr.FieldError{Field: "title", Message: "title is required", Code: "REQUIRED"})
	}
	start, err := time.Parse("2006-01-02", input.StartDate)
	if err != nil {
		fields = append(fields, apperr.FieldError{Field: "start_date", Message: "invalid date", Code: "INVALID_DATE"})
	}
	end, err := time.Parse("2006-01-02", input.EndDate)
	if err != nil {
		fields = append(fields, apperr.FieldError{Field: "end_date", Message: "invalid date", Code: "INVALID_DATE"})
	}
	if len(fields) == 0 && end.Before(start) {
		fields = append(fields, apperr.FieldError{Field: "end_date", Message: "end date before start date", Code: "INVALID_RANGE"})
	}

	accessStart := input.DefaultAccessStart
	if accessStart == "" {
		accessStart = site.DefaultAccessStart
	}
	accessEnd := input.DefaultAccessEnd
	if accessEnd == "" {
		accessEnd = site.DefaultAccessEnd
	}
	deadline := input.DefaultTrainingDeadline
	if deadline == "" {
		deadline = site.DefaultTrainingDeadline
	}
	for _, clock := range []struct {
		field string
		value string
	}{
		{"default_access_start", accessStart},
		{"default_access_end", accessEnd},
		{"default_training_deadline", deadline},
	} {
		if _, _, _, err := utils.ParseClock(clock.value); err != nil {
			fields = append(fields, apperr.FieldError{Field: clock.field, Message: "expected HH:MM:SS", Code: "INVALID_CLOCK"})
		}
	}
	if len(fields) > 0 {
		return nil, apperr.Validation("invalid ticket", fields...)
	}

	ticket := &types.WorkTicket{
		ID:                      uuid.New(),
		SiteID:                  input.SiteID,
		ContractorID:            input.ContractorID,
		Title:                   input.Title,
		Remark:                  input.Remark,
		StartDate:               start,
		EndDate:                 end,
		DefaultAccessStart:      accessStart,
		DefaultAccessEnd:        accessEnd,
		DefaultTrainingDeadline: deadline,
		NotifyOnPublish:         true,
		DailyReminderEnabled:    true,
		Status:                  types.TicketStatusDraft,
		CreatedBy:               tctx.UserID,
	}
	if input.NotifyOnPublish != nil {
		ticket.NotifyOnPublish = *input.NotifyOnPublish
	}
	if input.DailyReminderEnabled != nil {
		ticket.DailyReminderEnabled = *input.DailyReminderEnabled
	}
	return ticket, nil
}

func (s *ticketService) attachMembers(ctx context.Context, tx *gorm.DB, tctx tenant.Context, ticket *types.WorkTicket, input CreateTicketInput) error {
	now := time.Now()

	workerRows := make([]*types.WorkTicketWorker, 0, len(input.WorkerIDs))
	for _, wid := range input.WorkerIDs {
		workerRows = append(workerRows, &types.WorkTicketWorker{
			ID:       uuid.New(),
			TicketID: ticket.ID,
			WorkerID: wid,
			SiteID:   ticket.SiteID,
			Status:   types.JoinStatusActive,
			AddedAt:  now,
			AddedBy:  tctx.UserID,
		})
	}
	if err := s.members.AddWorkers(ctx, tx, workerRows); err != nil {
		return err
	}

	areaRows := make([]*types.WorkTicketArea, 0, len(input.AreaIDs))
	for _, aid := range input.AreaIDs {
		areaRows = append(areaRows, &types.WorkTicketArea{
			ID:       uuid.New(),
			TicketID: ticket.ID,
			AreaID:   aid,
			SiteID:   ticket.SiteID,
			Status:   types.JoinStatusActive,
			AddedAt:  now,
			AddedBy:  tctx.UserID,
		})
	}
	if err := s.members.AddAreas(ctx, tx, areaRows); err != nil {
		return err
	}

	videoRows := make([]*types.WorkTicketVideo, 0, len(input.VideoIDs))
	for _, vid := range input.VideoIDs {
		video, err := s.videos.GetByID(ctx, tx, vid)
		if err != nil {
			return err
		}
		if video == nil {
			return apperr.New(apperr.CodeNotFound, fmt.Sprintf("video %s not found", vid))
		}
		videoRows = append(videoRows, &types.WorkTicketVideo{
			ID:                   uuid.New(),
			TicketID:             ticket.ID,
			VideoID:              vid,
			SiteID:               ticket.SiteID,
			RequiredWatchPercent: video.RequiredWatchPercent,
			Status:               types.JoinStatusActive,
			AddedAt:              now,
			AddedBy:              tctx.UserID,
		})
	}
	return s.members.AddVideos(ctx, tx, videoRows)
}

// Publish moves a DRAFT ticket to ACTIVE and materializes every day in its
// range. Returns the number of daily tickets created.
func (s *ticketService) Publish(ctx context.Context, tctx tenant.Context, ticketID uuid.UUID, requestID, ip string) (int, error) {
	ticket, err := s.tickets.GetByID(ctx, nil, ticketID)
	if err != nil {
		return 0, err
	}
	if ticket == nil {
		return 0, apperr.New(apperr.CodeTicketNotFound, "work ticket not found")
	}
	if !tctx.CanAccessSite(ticket.SiteID) {
		return 0, apperr.ErrForbidden
	}
	if ticket.Status != types.TicketStatusDraft {
		return 0, apperr.New(apperr.CodeValidationError, "only draft tickets can be published")
	}
	if err := s.publishable(ctx, ticket); err != nil {
		return 0, err
	}

	created := 0
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := s.tickets.UpdateFields(ctx, tx, ticket.ID, map[string]interface{}{
			"status":     types.TicketStatusActive,
			"updated_at": time.Now(),
		}); err != nil {
			return err
		}
		ticket.Status = types.TicketStatusActive

		n, err := s.materializer.Materialize(ctx, tx, ticket)
		if err != nil {
			return err
		}
		created = n

		return s.audit.Record(ctx, tx, AuditEntry{
			SiteID:       &ticket.SiteID,
			OperatorID:   &tctx.UserID,
			Action:       types.AuditActionPublish,
			ResourceType: "work_ticket",
			ResourceID:   ticket.ID.String(),
			IP:           ip,
			RequestID:    requestID,
		})
	})
	if err != nil {
		return 0, err
	}
	s.log.Info("ticket published", "ticket_id", ticket.ID, "daily_tickets", created)
	return created, nil
}

func (s *ticketService) publishable(ctx context.Context, ticket *types.WorkTicket) error {
	workers, err := s.members.ListActiveWorkers(ctx, nil, ticket.ID)
	if err != nil {
		return err
	}
	areas, err := s.members.ListActiveAreas(ctx, nil, ticket.ID)
	if err != nil {
		return err
	}
	videos, err := s.members.ListVideos(ctx, nil, ticket.ID)
	if err != nil {
		return err
	}
	var fields []apperr.FieldError
	if len(workers) == 0 {
		fields = append(fields, apperr.FieldError{Field: "worker_ids", Message: "at least one worker required", Code: "EMPTY"})
	}
	if len(areas) == 0 {
		fields = append(fields, apperr.FieldError{Field: "area_ids", Message: "at least one area required", Code: "EMPTY"})
	}
	if len(videos) == 0 {
		fields = append(fields, apperr.FieldError{Field: "video_ids", Message: "at least one video required", Code: "EMPTY"})
	}
	if len(fields) > 0 {
		return apperr.Validation("ticket not publishable", fields...)
	}
	return nil
}

func (s *ticketService) Cancel(ctx context.Context, tctx tenant.Context, ticketID uuid.UUID, reason, requestID, ip string) error {
	return s.terminate(ctx, tctx, ticketID, types.TicketStatusCancelled, reason, requestID, ip)
}

func (s *ticketService) Close(ctx context.Context, tctx tenant.Context, ticketID uuid.UUID, requestID, ip string) error {
	return s.terminate(ctx, tctx, ticketID, types.TicketStatusClosed, "", requestID, ip)
}

// terminate cancels or closes a ticket: open daily tickets move to the same
// terminal status and every live grant under them is revoked.
func (s *ticketService) terminate(ctx context.Context, tctx tenant.Context, ticketID uuid.UUID, toStatus, reason, requestID, ip string) error {
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
		return apperr.New(apperr.CodeTicketCancelled, "ticket already terminated")
	}

	revokeReason := types.RevokeReasonTicketClosed
	dailyStatus := types.DailyTicketStatusClosed
	action := types.AuditActionClose
	if toStatus == types.TicketStatusCancelled {
		revokeReason = types.RevokeReasonTicketCancelled
		dailyStatus = types.DailyTicketStatusCancelled
		action = types.AuditActionCancel
	}

	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := s.tickets.UpdateFields(ctx, tx, ticket.ID, map[string]interface{}{
			"status":     toStatus,
			"updated_at": time.Now(),
		}); err != nil {
			return err
		}

		openDailies, err := s.dailies.ListOpenUnderTicket(ctx, tx, ticket.ID, "")
		if err != nil {
			return err
		}
		dailyIDs := make([]uuid.UUID, 0, len(openDailies))
		for _, dt := range openDailies {
			moved, err := s.dailies.UpdateStatusIf(ctx, tx, dt.ID, []string{
				types.DailyTicketStatusDraft,
				types.DailyTicketStatusPublished,
				types.DailyTicketStatusInProgress,
			}, dailyStatus)
			if err != nil {
				return err
			}
			if moved {
				dailyIDs = append(dailyIDs, dt.ID)
			}
		}

		grants, err := s.grants.ListUnderDailyTickets(ctx, tx, dailyIDs, []string{
			types.GrantStatusPendingSync,
			types.GrantStatusSynced,
			types.GrantStatusSyncFailed,
		})
		if err != nil {
			return err
		}
		revoked, err := s.access.RevokeGrants(ctx, tx, grants, revokeReason)
		if err != nil {
			return err
		}
		s.log.Info("ticket terminated",
			"ticket_id", ticket.ID, "status", toStatus,
			"daily_tickets", len(dailyIDs), "grants_revoked", revoked)

		return s.audit.Record(ctx, tx, AuditEntry{
			SiteID:       &ticket.SiteID,
			OperatorID:   &tctx.UserID,
			Action:       action,
			ResourceType: "work_ticket",
			ResourceID:   ticket.ID.String(),
			Reason:       reason,
			IP:           ip,
			RequestID:    requestID,
		})
	})
}

func (s *ticketService) Get(ctx context.Context, tctx tenant.Context, ticketID uuid.UUID) (*TicketDetail, error) {
	ticket, err := s.tickets.GetByID(ctx, nil, ticketID)
	if err != nil {
		return nil, err
	}
	if ticket == nil {
		return nil, apperr.New(apperr.CodeTicketNotFound, "work ticket not found")
	}
	if !tctx.CanAccessSite(ticket.SiteID) {
		return nil, apperr.ErrForbidden
	}

	workers, err := s.members.ListActiveWorkers(ctx, nil, ticket.ID)
	if err != nil {
		return nil, err
	}
	areas, err := s.members.ListActiveAreas(ctx, nil, ticket.ID)
	if err != nil {
		return nil, err
	}
	videos, err := s.members.ListVideos(ctx, nil, ticket.ID)
	if err != nil {
		return nil, err
	}
	return &TicketDetail{Ticket: ticket, Workers: workers, Areas: areas, Videos: videos}, nil
}

func (s *ticketService) List(ctx context.Context, tctx tenant.Context, filter repos.WorkTicketFilter) ([]*types.WorkTicket, int64, error) {
	if scope := tctx.SiteFilter(); scope != nil {
		filter.SiteIDs = scope
	}
	return s.tickets.List(ctx, nil, filter)
}

func (s *ticketService) ListDailyTickets(ctx context.Context, tctx tenant.Context, filter repos.DailyTicketFilter) ([]*types.DailyTicket, int64, error) {
	if scope := tctx.SiteFilter(); scope != nil {
		filter.SiteIDs = scope
	}
	return s.dailies.List(ctx, nil, filter)
}
