package services

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/sitepass/sitepass-backend/internal/logger"
	"github.com/sitepass/sitepass-backend/internal/repos"
	"github.com/sitepass/sitepass-backend/internal/types"
)

// MaterializerService expands a published work ticket into per-day daily
// tickets with frozen snapshots and per-worker progress rows. Re-running it
// for an already-materialized date is a no-op.
type MaterializerService interface {
	Materialize(ctx context.Context, tx *gorm.DB, ticket *types.WorkTicket) (int, error)
	MaterializeDate(ctx context.Context, tx *gorm.DB, ticket *types.WorkTicket, date time.Time) (*types.DailyTicket, bool, error)
}

type materializerService struct {
	log       *logger.Logger
	db        *gorm.DB
	tickets   repos.WorkTicketRepo
	members   repos.WorkTicketMemberRepo
	dailies   repos.DailyTicketRepo
	dtWorkers repos.DailyTicketWorkerRepo
	snapshots repos.DailyTicketSnapshotRepo
	workers   repos.WorkerRepo
	areas     repos.WorkAreaRepo
	videos    repos.TrainingVideoRepo
	notifier  NotificationService
}

func NewMaterializerService(
	db *gorm.DB,
	tickets repos.WorkTicketRepo,
	members repos.WorkTicketMemberRepo,
	dailies repos.DailyTicketRepo,
	dtWorkers repos.DailyTicketWorkerRepo,
	snapshots repos.DailyTicketSnapshotRepo,
	workers repos.WorkerRepo,
	areas repos.WorkAreaRepo,
	videos repos.TrainingVideoRepo,
	notifier NotificationService,
	baseLog *logger.Logger,
) MaterializerService {
	return &materializerService{
		log:       baseLog.With("service", "MaterializerService"),
		db:        db,
		tickets:   tickets,
		members:   members,
		dailies:   dailies,
		dtWorkers: dtWorkers,
		snapshots: snapshots,
		workers:   workers,
		areas:     areas,
		videos:    videos,
		notifier:  notifier,
	}
}

// Materialize produces every daily ticket in the ticket's date range inside
// one transaction. Returns the number of newly created daily tickets.
func (s *materializerService) Materialize(ctx context.Context, tx *gorm.DB, ticket *types.WorkTicket) (int, error) {
	transaction := tx
	if transaction == nil {
		transaction = s.db
	}

	created := 0
	err := transaction.WithContext(ctx).Transaction(func(txx *gorm.DB) error {
		for d := ticket.StartDate; !d.After(ticket.EndDate); d = d.AddDate(0, 0, 1) {
			_, inserted, err := s.MaterializeDate(ctx, txx, ticket, d)
			if err != nil {
				return err
			}
			if inserted {
				created++
			}
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	s.log.Info("Ticket materialized", "ticket_id", ticket.ID, "daily_tickets_created", created)
	return created, nil
}

// MaterializeDate creates one daily ticket plus its snapshots and worker rows.
// The (ticket, date) unique key absorbs concurrent invocations; only the
// inserting caller writes snapshots.
func (s *materializerService) MaterializeDate(ctx context.Context, tx *gorm.DB, ticket *types.WorkTicket, date time.Time) (*types.DailyTicket, bool, error) {
	workerRows, err := s.members.ListActiveWorkers(ctx, tx, ticket.ID)
	if err != nil {
		return nil, false, err
	}
	areaRows, err := s.members.ListActiveAreas(ctx, tx, ticket.ID)
	if err != nil {
		return nil, false, err
	}
	videoRows, err := s.members.ListVideos(ctx, tx, ticket.ID)
	if err != nil {
		return nil, false, err
	}
	activeVideos := make([]*types.WorkTicketVideo, 0, len(videoRows))
	for _, v := range videoRows {
		if v.Status == types.JoinStatusActive {
			activeVideos = append(activeVideos, v)
		}
	}

	dt := &types.DailyTicket{
		ID:               uuid.New(),
		TicketID:         ticket.ID,
		SiteID:           ticket.SiteID,
		Date:             date,
		AccessStart:      ticket.DefaultAccessStart,
		AccessEnd:        ticket.DefaultAccessEnd,
		TrainingDeadline: ticket.DefaultTrainingDeadline,
		Status:           types.DailyTicketStatusPublished,
	}
	inserted, err := s.dailies.CreateIgnoreConflict(ctx, tx, dt)
	if err != nil {
		return nil, false, err
	}
	if !inserted {
		existing, err := s.dailies.GetByTicketAndDate(ctx, tx, ticket.ID, date.Format("2006-01-02"))
		if err != nil {
			return nil, false, err
		}
		return existing, false, nil
	}

	if err := s.snapshotParticipants(ctx, tx, dt, workerRows, areaRows, activeVideos); err != nil {
		return nil, false, err
	}

	dtwRows := make([]*types.DailyTicketWorker, 0, len(workerRows))
	for _, w := range workerRows {
		dtwRows = append(dtwRows, &types.DailyTicketWorker{
			ID:              uuid.New(),
			DailyTicketID:   dt.ID,
			WorkerID:        w.WorkerID,
			SiteID:          dt.SiteID,
			TotalVideoCount: len(activeVideos),
			TrainingStatus:  types.TrainingStatusNotStarted,
			Status:          "ACTIVE",
		})
	}
	if err := s.dtWorkers.CreateIgnoreConflicts(ctx, tx, dtwRows); err != nil {
		return nil, false, err
	}

	if ticket.NotifyOnPublish {
		for _, w := range workerRows {
			wid := w.WorkerID
			_, err := s.notifier.Enqueue(ctx, tx, Notification{
				SiteID:   &dt.SiteID,
				WorkerID: &wid,
				Kind:     types.NotifyKindTrainingTask,
				Priority: types.NotifyPriorityNormal,
				Title:    ticket.Title,
				Body:     fmt.Sprintf("You have training to complete before work on %s.", date.Format("2006-01-02")),
				DedupKey: fmt.Sprintf("%s:%s:%s:%s", wid, types.NotifyKindTrainingTask, dt.ID, date.Format("2006-01-02")),
			})
			if err != nil {
				return nil, false, err
			}
		}
	}

	return dt, true, nil
}

func (s *materializerService) snapshotParticipants(
	ctx context.Context,
	tx *gorm.DB,
	dt *types.DailyTicket,
	workerRows []*types.WorkTicketWorker,
	areaRows []*types.WorkTicketArea,
	videoRows []*types.WorkTicketVideo,
) error {
	workerIDs := make([]uuid.UUID, 0, len(workerRows))
	for _, w := range workerRows {
		workerIDs = append(workerIDs, w.WorkerID)
	}
	areaIDs := make([]uuid.UUID, 0, len(areaRows))
	for _, a := range areaRows {
		areaIDs = append(areaIDs, a.AreaID)
	}
	videoIDs := make([]uuid.UUID, 0, len(videoRows))
	for _, v := range videoRows {
		videoIDs = append(videoIDs, v.VideoID)
	}

	workers, err := s.workers.GetByIDs(ctx, tx, workerIDs)
	if err != nil {
		return err
	}
	areas, err := s.areas.GetByIDs(ctx, tx, areaIDs)
	if err != nil {
		return err
	}
	videos, err := s.videos.GetByIDs(ctx, tx, videoIDs)
	if err != nil {
		return err
	}

	requiredPercent := make(map[uuid.UUID]float64, len(videoRows))
	for _, v := range videoRows {
		requiredPercent[v.VideoID] = v.RequiredWatchPercent
	}

	rows := make([]*types.DailyTicketSnapshot, 0, len(workers)+len(areas)+len(videos))
	for _, w := range workers {
		rows = append(rows, &types.DailyTicketSnapshot{
			ID:            uuid.New(),
			DailyTicketID: dt.ID,
			SiteID:        dt.SiteID,
			Kind:          types.SnapshotKindWorker,
			EntityID:      w.ID,
			EntityName:    w.Name,
			Meta: types.MarshalMeta(types.WorkerMeta{
				IDNo:    w.IDNo,
				Phone:   w.Phone,
				JobType: w.JobType,
			}),
		})
	}
	for _, a := range areas {
		rows = append(rows, &types.DailyTicketSnapshot{
			ID:            uuid.New(),
			DailyTicketID: dt.ID,
			SiteID:        dt.SiteID,
			Kind:          types.SnapshotKindArea,
			EntityID:      a.ID,
			EntityName:    a.Name,
			Meta: types.MarshalMeta(types.AreaMeta{
				AccessGroupID: a.AccessGroupID,
			}),
		})
	}
	for _, v := range videos {
		rp := requiredPercent[v.ID]
		if rp == 0 {
			rp = v.RequiredWatchPercent
		}
		rows = append(rows, &types.DailyTicketSnapshot{
			ID:            uuid.New(),
			DailyTicketID: dt.ID,
			SiteID:        dt.SiteID,
			Kind:          types.SnapshotKindVideo,
			EntityID:      v.ID,
			EntityName:    v.Title,
			Meta: types.MarshalMeta(types.VideoMeta{
				DurationSec:     v.DurationSec,
				RequiredPercent: rp,
			}),
		})
	}
	return s.snapshots.Create(ctx, tx, rows)
}
