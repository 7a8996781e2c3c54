package services

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	goredis "github.com/redis/go-redis/v9"
	"gorm.io/datatypes"

	"github.com/sitepass/sitepass-backend/internal/adapters/accessctrl"
	"github.com/sitepass/sitepass-backend/internal/logger"
	"github.com/sitepass/sitepass-backend/internal/repos"
	"github.com/sitepass/sitepass-backend/internal/types"
	"github.com/sitepass/sitepass-backend/internal/utils"
)

const (
	reconcileReportPrefix = "reconcile:"
	reconcileReportTTL    = 7 * 24 * time.Hour
)

// DriftEntry is one grant that disagrees between our database and the vendor.
type DriftEntry struct {
	GrantID       string `json:"grant_id,omitempty"`
	VendorRef     string `json:"vendor_ref,omitempty"`
	WorkerID      string `json:"worker_id,omitempty"`
	AreaID        string `json:"area_id,omitempty"`
	AccessGroupID string `json:"access_group_id,omitempty"`
}

// DriftReport is the stored result of one L2 run for one site.
type DriftReport struct {
	SiteID          uuid.UUID    `json:"site_id"`
	Date            string       `json:"date"`
	RanAt           time.Time    `json:"ran_at"`
	SyncedCount     int          `json:"synced_count"`
	VendorCount     int          `json:"vendor_count"`
	MissingInVendor []DriftEntry `json:"missing_in_vendor"`
	ExtraInVendor   []DriftEntry `json:"extra_in_vendor"`
}

// ReconcileService runs the two nightly consistency sweeps, one site at a
// time on the site's own clock. L1 finds grants stuck in the sync pipeline;
// L2 compares our SYNCED set against what the vendor actually holds. Both
// raise alerts and never mutate grants.
type ReconcileService interface {
	RunL1(ctx context.Context, site *types.Site, now time.Time) (int, error)
	RunL2(ctx context.Context, site *types.Site, now time.Time) (int, error)
	Report(ctx context.Context, siteID uuid.UUID, date string) (*DriftReport, error)
}

type reconcileService struct {
	log        *logger.Logger
	rdb        *goredis.Client
	grants     repos.AccessGrantRepo
	alerts     repos.AlertRepo
	areas      repos.WorkAreaRepo
	vendor     accessctrl.Client
	stuckAfter time.Duration
}

func NewReconcileService(
	rdb *goredis.Client,
	grants repos.AccessGrantRepo,
	alerts repos.AlertRepo,
	areas repos.WorkAreaRepo,
	vendor accessctrl.Client,
	baseLog *logger.Logger,
) ReconcileService {
	log := baseLog.With("service", "ReconcileService")
	return &reconcileService{
		log:        log,
		rdb:        rdb,
		grants:     grants,
		alerts:     alerts,
		areas:      areas,
		vendor:     vendor,
		stuckAfter: time.Duration(utils.GetEnvAsInt("RECONCILE_STUCK_AFTER_MIN", 10, log)) * time.Minute,
	}
}

// RunL1 raises an alert when the site has grants sitting unsynced past the
// threshold. More than ten stuck grants escalates the priority.
func (s *reconcileService) RunL1(ctx context.Context, site *types.Site, now time.Time) (int, error) {
	stuck, err := s.grants.ListStuck(ctx, nil, site.ID, now.Add(-s.stuckAfter), now)
	if err != nil {
		return 0, err
	}
	if len(stuck) == 0 {
		return 0, nil
	}

	priority := types.AlertPriorityMedium
	if len(stuck) > 10 {
		priority = types.AlertPriorityHigh
	}
	ids := make([]string, 0, len(stuck))
	for _, g := range stuck {
		ids = append(ids, g.ID.String())
	}
	details, _ := json.Marshal(map[string]interface{}{
		"stuck_count": len(stuck),
		"grant_ids":   ids,
	})

	date := now.In(site.Location()).Format("2006-01-02")
	sid := site.ID
	created, err := s.alerts.CreateUnlessOpen(ctx, nil, &types.Alert{
		ID:       uuid.New(),
		SiteID:   &sid,
		Type:     types.AlertTypeSyncStuck,
		Priority: priority,
		Status:   types.AlertStatusUnacknowledged,
		Title:    fmt.Sprintf("%d access grants stuck in sync", len(stuck)),
		Details:  datatypes.JSON(details),
		DedupKey: fmt.Sprintf("sync_stuck:%s:%s", site.ID, date),
	})
	if err != nil {
		return 0, err
	}
	if !created {
		return 0, nil
	}
	s.log.Warn("stuck grants detected", "site_id", site.ID, "count", len(stuck), "priority", priority)
	return 1, nil
}

// RunL2 compares the site's SYNCED set against the vendor's effective grants,
// area by area. Findings are stored as a report and surfaced as an
// ACCESS_MISMATCH alert; nothing is auto-healed.
func (s *reconcileService) RunL2(ctx context.Context, site *types.Site, now time.Time) (int, error) {
	if !s.vendor.SupportsQuery() {
		s.log.Debug("vendor does not support grant enumeration, skipping drift check")
		return 0, nil
	}

	report, err := s.driftForSite(ctx, site, now)
	if err != nil {
		return 0, err
	}
	if err := s.storeReport(ctx, report); err != nil {
		s.log.Warn("failed to store drift report", "site_id", site.ID, "error", err)
	}
	if len(report.MissingInVendor) == 0 && len(report.ExtraInVendor) == 0 {
		return 0, nil
	}

	details, _ := json.Marshal(report)
	sid := site.ID
	created, err := s.alerts.CreateUnlessOpen(ctx, nil, &types.Alert{
		ID:       uuid.New(),
		SiteID:   &sid,
		Type:     types.AlertTypeAccessMismatch,
		Priority: types.AlertPriorityHigh,
		Status:   types.AlertStatusUnacknowledged,
		Title: fmt.Sprintf("access drift: %d missing, %d extra at vendor",
			len(report.MissingInVendor), len(report.ExtraInVendor)),
		Details:  datatypes.JSON(details),
		DedupKey: fmt.Sprintf("access_mismatch:%s:%s", site.ID, report.Date),
	})
	if err != nil {
		return 0, err
	}
	if !created {
		return 0, nil
	}
	return 1, nil
}

func (s *reconcileService) driftForSite(ctx context.Context, site *types.Site, now time.Time) (*DriftReport, error) {
	report := &DriftReport{
		SiteID: site.ID,
		Date:   now.In(site.Location()).Format("2006-01-02"),
		RanAt:  now,
	}

	synced, err := s.grants.ListSyncedBySite(ctx, nil, site.ID)
	if err != nil {
		return nil, err
	}
	report.SyncedCount = len(synced)

	areas, err := s.areas.ListBySite(ctx, nil, site.ID)
	if err != nil {
		return nil, err
	}
	areaByGroup := map[string]uuid.UUID{}
	vendorSide := map[string]accessctrl.EffectiveGrant{}
	for _, area := range areas {
		if area.AccessGroupID == "" {
			continue
		}
		areaByGroup[area.AccessGroupID] = area.ID
		effective, err := s.vendor.QueryEffectiveGrants(ctx, area.AccessGroupID)
		if err != nil {
			return nil, err
		}
		for _, eg := range effective {
			key := eg.VendorRef
			if key == "" {
				key = eg.GrantID
			}
			vendorSide[key] = eg
		}
	}
	report.VendorCount = len(vendorSide)

	for _, g := range synced {
		key := g.VendorRef
		if key == "" {
			key = g.ID.String()
		}
		if _, ok := vendorSide[key]; ok {
			delete(vendorSide, key)
			continue
		}
		report.MissingInVendor = append(report.MissingInVendor, DriftEntry{
			GrantID:   g.ID.String(),
			VendorRef: g.VendorRef,
			WorkerID:  g.WorkerID.String(),
			AreaID:    g.AreaID.String(),
		})
	}
	for key, eg := range vendorSide {
		entry := DriftEntry{
			VendorRef:     key,
			GrantID:       eg.GrantID,
			AccessGroupID: eg.AccessGroupID,
		}
		if areaID, ok := areaByGroup[eg.AccessGroupID]; ok {
			entry.AreaID = areaID.String()
		}
		report.ExtraInVendor = append(report.ExtraInVendor, entry)
	}
	return report, nil
}

func (s *reconcileService) storeReport(ctx context.Context, report *DriftReport) error {
	payload, err := json.Marshal(report)
	if err != nil {
		return err
	}
	key := fmt.Sprintf("%s%s:%s", reconcileReportPrefix, report.SiteID, report.Date)
	return s.rdb.Set(ctx, key, payload, reconcileReportTTL).Err()
}

// Report returns the stored L2 result for a site and date, or nil when no run
// has been recorded.
func (s *reconcileService) Report(ctx context.Context, siteID uuid.UUID, date string) (*DriftReport, error) {
	key := fmt.Sprintf("%s%s:%s", reconcileReportPrefix, siteID, date)
	raw, err := s.rdb.Get(ctx, key).Bytes()
	if err == goredis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var report DriftReport
	if err := json.Unmarshal(raw, &report); err != nil {
		return nil, err
	}
	return &report, nil
}
