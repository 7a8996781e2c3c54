package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/sitepass/sitepass-backend/internal/adapters/accessctrl"
	"github.com/sitepass/sitepass-backend/internal/logger"
	"github.com/sitepass/sitepass-backend/internal/repos"
	"github.com/sitepass/sitepass-backend/internal/types"
	"github.com/sitepass/sitepass-backend/internal/utils"
)

// AccessVerdict is the outcome of an access check: PASS, or DENY with one of
// the enumerated reason codes.
type AccessVerdict struct {
	Result     string
	ReasonCode string
	GrantID    *uuid.UUID
}

// IncomingEvent is a vendor-reported pass/deny event before resolution.
type IncomingEvent struct {
	SiteID           uuid.UUID
	VendorEventID    string
	DeviceID         string
	DeviceName       string
	WorkerExternalID string
	FaceID           string
	IDNo             string
	AreaID           *uuid.UUID
	EventTime        time.Time
	Direction        string
	Result           string
	ReasonCode       string
	ReasonMessage    string
	Confidence       *float64
}

type AccessService interface {
	IssueGrantsForWorker(ctx context.Context, tx *gorm.DB, dt *types.DailyTicket, workerID uuid.UUID, site *types.Site) ([]*types.AccessGrant, error)
	RevokeGrants(ctx context.Context, tx *gorm.DB, grants []*types.AccessGrant, reason string) (int, error)
	HandlePushResult(ctx context.Context, grant *types.AccessGrant, result *accessctrl.GrantResult, pushErr error) error
	ExpireGrants(ctx context.Context, now time.Time, limit int) (int, error)
	CheckAccess(ctx context.Context, workerID, areaID uuid.UUID, at time.Time) (*AccessVerdict, error)
	IngestEvent(ctx context.Context, ev IncomingEvent) (inserted bool, err error)
	GrantWindow(dt *types.DailyTicket, loc *time.Location) (time.Time, time.Time, error)
}

type accessService struct {
	log       *logger.Logger
	db        *gorm.DB
	grants    repos.AccessGrantRepo
	events    repos.AccessEventRepo
	dailies   repos.DailyTicketRepo
	dtWorkers repos.DailyTicketWorkerRepo
	members   repos.WorkTicketMemberRepo
	workers   repos.WorkerRepo
	areas     repos.WorkAreaRepo
	sites     repos.SiteRepo
	vendor    accessctrl.Client
}

func NewAccessService(
	db *gorm.DB,
	grants repos.AccessGrantRepo,
	events repos.AccessEventRepo,
	dailies repos.DailyTicketRepo,
	dtWorkers repos.DailyTicketWorkerRepo,
	members repos.WorkTicketMemberRepo,
	workers repos.WorkerRepo,
	areas repos.WorkAreaRepo,
	sites repos.SiteRepo,
	vendor accessctrl.Client,
	baseLog *logger.Logger,
) AccessService {
	return &accessService{
		log:       baseLog.With("service", "AccessService"),
		db:        db,
		grants:    grants,
		events:    events,
		dailies:   dailies,
		dtWorkers: dtWorkers,
		members:   members,
		workers:   workers,
		areas:     areas,
		sites:     sites,
		vendor:    vendor,
	}
}

// GrantWindow anchors the daily ticket's wall-clock window on its date in the
// site zone. A window whose end would land on or before its start is taken to
// cross midnight and clamps to 23:59:59 of the date.
func (s *accessService) GrantWindow(dt *types.DailyTicket, loc *time.Location) (time.Time, time.Time, error) {
	from, err := utils.CombineDateClock(dt.Date, dt.AccessStart, loc)
	if err != nil {
		return time.Time{}, time.Time{}, err
	}
	to, err := utils.CombineDateClock(dt.Date, dt.AccessEnd, loc)
	if err != nil {
		return time.Time{}, time.Time{}, err
	}
	if !to.After(from) {
		to = utils.EndOfDay(dt.Date, loc)
	}
	return from, to, nil
}

// IssueGrantsForWorker creates PENDING_SYNC grants for every active area on
// the daily ticket's parent ticket. The unique (daily ticket, worker, area)
// key makes the call idempotent; the 60-second sweep picks the rows up for
// the vendor push.
func (s *accessService) IssueGrantsForWorker(ctx context.Context, tx *gorm.DB, dt *types.DailyTicket, workerID uuid.UUID, site *types.Site) ([]*types.AccessGrant, error) {
	areaRows, err := s.members.ListActiveAreas(ctx, tx, dt.TicketID)
	if err != nil {
		return nil, err
	}
	if len(areaRows) == 0 {
		return nil, nil
	}

	loc := time.UTC
	if site != nil {
		loc = site.Location()
	}
	from, to, err := s.GrantWindow(dt, loc)
	if err != nil {
		return nil, err
	}

	rows := make([]*types.AccessGrant, 0, len(areaRows))
	for _, a := range areaRows {
		rows = append(rows, &types.AccessGrant{
			ID:            uuid.New(),
			DailyTicketID: dt.ID,
			WorkerID:      workerID,
			AreaID:        a.AreaID,
			SiteID:        dt.SiteID,
			ValidFrom:     from,
			ValidTo:       to,
			Status:        types.GrantStatusPendingSync,
		})
	}
	if err := s.grants.CreateIgnoreConflicts(ctx, tx, rows); err != nil {
		return nil, err
	}
	return rows, nil
}

// RevokeGrants flips every non-revoked grant in the list. Vendor deletion for
// previously SYNCED grants is confirmed asynchronously by the sweep.
func (s *accessService) RevokeGrants(ctx context.Context, tx *gorm.DB, grants []*types.AccessGrant, reason string) (int, error) {
	revoked := 0
	for _, g := range grants {
		if g.Status == types.GrantStatusRevoked {
			continue
		}
		ok, err := s.grants.RevokeIfActive(ctx, tx, g.ID, reason)
		if err != nil {
			return revoked, err
		}
		if ok {
			revoked++
		}
	}
	return revoked, nil
}

// HandlePushResult applies a vendor push outcome to the grant row. Conflict
// means the vendor already holds the grant and counts as success. The attempt
// counter and last_sync_at move on every outcome.
func (s *accessService) HandlePushResult(ctx context.Context, grant *types.AccessGrant, result *accessctrl.GrantResult, pushErr error) error {
	now := time.Now()
	updates := map[string]interface{}{
		"sync_attempt_count": grant.SyncAttemptCount + 1,
		"last_sync_at":       now,
	}
	switch {
	case pushErr == nil:
		updates["status"] = types.GrantStatusSynced
		updates["sync_error_msg"] = ""
		if result != nil {
			updates["vendor_ref"] = result.VendorRef
		}
	case errors.Is(pushErr, accessctrl.ErrConflict):
		updates["status"] = types.GrantStatusSynced
		updates["sync_error_msg"] = ""
		if grant.VendorRef == "" {
			updates["vendor_ref"] = grant.ID.String()
		}
	default:
		updates["status"] = types.GrantStatusSyncFailed
		updates["sync_error_msg"] = pushErr.Error()
	}
	return s.grants.UpdateFields(ctx, nil, grant.ID, updates)
}

// ExpireGrants revokes grants whose window has closed without pushing them.
func (s *accessService) ExpireGrants(ctx context.Context, now time.Time, limit int) (int, error) {
	rows, err := s.grants.ListExpired(ctx, nil, now, limit)
	if err != nil {
		return 0, err
	}
	return s.RevokeGrants(ctx, nil, rows, types.RevokeReasonExpired)
}

// CheckAccess resolves a worker/area/time triple to a verdict using the same
// reason codes the vendor reports.
func (s *accessService) CheckAccess(ctx context.Context, workerID, areaID uuid.UUID, at time.Time) (*AccessVerdict, error) {
	worker, err := s.workers.GetByID(ctx, nil, workerID)
	if err != nil {
		return nil, err
	}
	if worker == nil || !worker.IsBound {
		return &AccessVerdict{Result: types.EventResultDeny, ReasonCode: types.ReasonIdentityNotBound}, nil
	}

	site, err := s.sites.GetByID(ctx, nil, worker.SiteID)
	if err != nil {
		return nil, err
	}
	loc := time.UTC
	if site != nil {
		loc = site.Location()
	}
	today := at.In(loc).Format("2006-01-02")

	dailies, _, err := s.dailies.List(ctx, nil, repos.DailyTicketFilter{
		SiteIDs:  []uuid.UUID{worker.SiteID},
		DateFrom: today,
		DateTo:   today,
	})
	if err != nil {
		return nil, err
	}

	var memberships []*types.DailyTicketWorker
	for _, dt := range dailies {
		if dt.IsTerminal() {
			continue
		}
		dtw, err := s.dtWorkers.Get(ctx, nil, dt.ID, workerID)
		if err != nil {
			return nil, err
		}
		if dtw != nil && dtw.Status == "ACTIVE" {
			memberships = append(memberships, dtw)
		}
	}
	if len(memberships) == 0 {
		return &AccessVerdict{Result: types.EventResultDeny, ReasonCode: types.ReasonNotInTicket}, nil
	}

	trainingDone := false
	for _, m := range memberships {
		if m.TrainingStatus == types.TrainingStatusCompleted {
			trainingDone = true
			break
		}
	}
	if !trainingDone {
		return &AccessVerdict{Result: types.EventResultDeny, ReasonCode: types.ReasonTrainingIncomplete}, nil
	}

	var areaGrant *types.AccessGrant
	pending := false
	for _, m := range memberships {
		grants, err := s.grants.ListByDailyTicketWorker(ctx, nil, m.DailyTicketID, workerID)
		if err != nil {
			return nil, err
		}
		for _, g := range grants {
			if g.AreaID != areaID {
				continue
			}
			switch g.Status {
			case types.GrantStatusSynced:
				areaGrant = g
			case types.GrantStatusPendingSync, types.GrantStatusSyncFailed:
				pending = true
			}
		}
	}
	if areaGrant == nil {
		if pending {
			return &AccessVerdict{Result: types.EventResultDeny, ReasonCode: types.ReasonSyncPending}, nil
		}
		return &AccessVerdict{Result: types.EventResultDeny, ReasonCode: types.ReasonAreaNotAllowed}, nil
	}
	if at.Before(areaGrant.ValidFrom) || at.After(areaGrant.ValidTo) {
		return &AccessVerdict{Result: types.EventResultDeny, ReasonCode: types.ReasonOutOfTimeWindow, GrantID: &areaGrant.ID}, nil
	}
	return &AccessVerdict{Result: types.EventResultPass, GrantID: &areaGrant.ID}, nil
}

// IngestEvent resolves the worker, computes the dedup key and inserts the
// event. A duplicate is reported, not re-stored.
func (s *accessService) IngestEvent(ctx context.Context, ev IncomingEvent) (bool, error) {
	if ev.Result == types.EventResultDeny && ev.ReasonCode == "" {
		return false, fmt.Errorf("deny event requires a reason code")
	}

	var workerID *uuid.UUID
	if ev.WorkerExternalID != "" {
		if id, err := uuid.Parse(ev.WorkerExternalID); err == nil {
			if w, err := s.workers.GetByID(ctx, nil, id); err == nil && w != nil {
				workerID = &w.ID
			}
		}
	}
	if workerID == nil && ev.FaceID != "" {
		if w, err := s.workers.GetByFaceID(ctx, nil, ev.FaceID); err == nil && w != nil {
			id := w.ID
			workerID = &id
		}
	}
	if workerID == nil && ev.IDNo != "" {
		if w, err := s.workers.GetByIDNo(ctx, nil, ev.IDNo); err == nil && w != nil {
			id := w.ID
			workerID = &id
		}
	}

	dedup := ev.VendorEventID
	if dedup == "" {
		wid := "unknown"
		if workerID != nil {
			wid = workerID.String()
		}
		dedup = strings.Join([]string{
			ev.DeviceID, wid, ev.EventTime.UTC().Format(time.RFC3339), ev.Direction,
		}, "|")
	}

	row := &types.AccessEvent{
		ID:            uuid.New(),
		SiteID:        ev.SiteID,
		VendorEventID: ev.VendorEventID,
		DedupKey:      dedup,
		DeviceID:      ev.DeviceID,
		DeviceName:    ev.DeviceName,
		WorkerID:      workerID,
		AreaID:        ev.AreaID,
		FaceID:        ev.FaceID,
		EventTime:     ev.EventTime,
		Direction:     ev.Direction,
		Result:        ev.Result,
		ReasonCode:    ev.ReasonCode,
		ReasonMessage: ev.ReasonMessage,
		Confidence:    ev.Confidence,
	}
	return s.events.CreateIgnoreConflict(ctx, nil, row)
}
