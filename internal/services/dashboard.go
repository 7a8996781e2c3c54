package services

import (
	"context"
	"crypto/sha1"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
	goredis "github.com/redis/go-redis/v9"

	"github.com/sitepass/sitepass-backend/internal/logger"
	"github.com/sitepass/sitepass-backend/internal/repos"
	"github.com/sitepass/sitepass-backend/internal/tenant"
	"github.com/sitepass/sitepass-backend/internal/types"
	"github.com/sitepass/sitepass-backend/internal/utils"
)

const dashboardCachePrefix = "dashboard:"

// SiteDashboard is one site's operational picture for one date.
type SiteDashboard struct {
	SiteID           uuid.UUID `json:"site_id"`
	SiteName         string    `json:"site_name"`
	Date             string    `json:"date"`
	DailyTickets     int       `json:"daily_tickets"`
	ActiveWorkers    int64     `json:"active_workers"`
	NotStarted       int64     `json:"not_started"`
	InLearning       int64     `json:"in_learning"`
	Completed        int64     `json:"completed"`
	Failed           int64     `json:"failed"`
	CompletionRate   float64   `json:"completion_rate"`
	GrantsPending    int       `json:"grants_pending"`
	GrantsSynced     int       `json:"grants_synced"`
	GrantsFailed     int       `json:"grants_failed"`
	GrantsRevoked    int       `json:"grants_revoked"`
	AccessPassCount  int64     `json:"access_pass_count"`
	AccessDenyCount  int64     `json:"access_deny_count"`
	OpenAlerts       int64     `json:"open_alerts"`
}

// DashboardService aggregates the per-site counters the admin console shows.
// Results are cached briefly; the numbers tolerate a minute of staleness.
type DashboardService interface {
	Overview(ctx context.Context, tctx tenant.Context, date string) ([]*SiteDashboard, error)
}

type dashboardService struct {
	log       *logger.Logger
	rdb       *goredis.Client
	sites     repos.SiteRepo
	dailies   repos.DailyTicketRepo
	dtWorkers repos.DailyTicketWorkerRepo
	grants    repos.AccessGrantRepo
	events    repos.AccessEventRepo
	alerts    repos.AlertRepo
	cacheTTL  time.Duration
}

func NewDashboardService(
	rdb *goredis.Client,
	sites repos.SiteRepo,
	dailies repos.DailyTicketRepo,
	dtWorkers repos.DailyTicketWorkerRepo,
	grants repos.AccessGrantRepo,
	events repos.AccessEventRepo,
	alerts repos.AlertRepo,
	baseLog *logger.Logger,
) DashboardService {
	log := baseLog.With("service", "DashboardService")
	return &dashboardService{
		log:       log,
		rdb:       rdb,
		sites:     sites,
		dailies:   dailies,
		dtWorkers: dtWorkers,
		grants:    grants,
		events:    events,
		alerts:    alerts,
		cacheTTL:  time.Duration(utils.GetEnvAsInt("DASHBOARD_CACHE_TTL_SEC", 60, log)) * time.Second,
	}
}

func (s *dashboardService) Overview(ctx context.Context, tctx tenant.Context, date string) ([]*SiteDashboard, error) {
	if date == "" {
		date = time.Now().Format("2006-01-02")
	}
	cacheKey := s.cacheKey(tctx, date)
	if raw, err := s.rdb.Get(ctx, cacheKey).Bytes(); err == nil {
		var cached []*SiteDashboard
		if json.Unmarshal(raw, &cached) == nil {
			return cached, nil
		}
	}

	sites, err := s.sites.ListActive(ctx, nil)
	if err != nil {
		return nil, err
	}

	var out []*SiteDashboard
	for _, site := range sites {
		if !tctx.CanAccessSite(site.ID) {
			continue
		}
		board, err := s.buildSite(ctx, site, date)
		if err != nil {
			return nil, err
		}
		out = append(out, board)
	}

	if payload, err := json.Marshal(out); err == nil {
		if err := s.rdb.Set(ctx, cacheKey, payload, s.cacheTTL).Err(); err != nil {
			s.log.Warn("failed to cache dashboard", "error", err)
		}
	}
	return out, nil
}

// cacheKey scopes the cache to what the caller is allowed to see, so a
// contractor admin never reads a sys admin's cached rows.
func (s *dashboardService) cacheKey(tctx tenant.Context, date string) string {
	scope := "all"
	if ids := tctx.SiteFilter(); ids != nil {
		sorted := make([]string, 0, len(ids))
		for _, id := range ids {
			sorted = append(sorted, id.String())
		}
		sort.Strings(sorted)
		sum := sha1.Sum([]byte(fmt.Sprint(sorted)))
		scope = hex.EncodeToString(sum[:8])
	}
	return fmt.Sprintf("%s%s:%s:%s", dashboardCachePrefix, tctx.Role, scope, date)
}

func (s *dashboardService) buildSite(ctx context.Context, site *types.Site, date string) (*SiteDashboard, error) {
	board := &SiteDashboard{SiteID: site.ID, SiteName: site.Name, Date: date}

	dailies, _, err := s.dailies.List(ctx, nil, repos.DailyTicketFilter{
		SiteIDs:  []uuid.UUID{site.ID},
		DateFrom: date,
		DateTo:   date,
	})
	if err != nil {
		return nil, err
	}
	board.DailyTickets = len(dailies)

	dailyIDs := make([]uuid.UUID, 0, len(dailies))
	for _, dt := range dailies {
		dailyIDs = append(dailyIDs, dt.ID)
		counts, err := s.dtWorkers.CountByTrainingStatus(ctx, nil, dt.ID)
		if err != nil {
			return nil, err
		}
		board.NotStarted += counts[types.TrainingStatusNotStarted]
		board.InLearning += counts[types.TrainingStatusInLearning]
		board.Completed += counts[types.TrainingStatusCompleted]
		board.Failed += counts[types.TrainingStatusFailed]
	}
	board.ActiveWorkers = board.NotStarted + board.InLearning + board.Completed + board.Failed
	if board.ActiveWorkers > 0 {
		board.CompletionRate = float64(board.Completed) / float64(board.ActiveWorkers)
	}

	grants, err := s.grants.ListUnderDailyTickets(ctx, nil, dailyIDs, nil)
	if err != nil {
		return nil, err
	}
	for _, g := range grants {
		switch g.Status {
		case types.GrantStatusPendingSync:
			board.GrantsPending++
		case types.GrantStatusSynced:
			board.GrantsSynced++
		case types.GrantStatusSyncFailed:
			board.GrantsFailed++
		case types.GrantStatusRevoked:
			board.GrantsRevoked++
		}
	}

	_, passes, err := s.events.List(ctx, nil, repos.AccessEventFilter{
		SiteIDs:  []uuid.UUID{site.ID},
		Result:   types.EventResultPass,
		DateFrom: date + " 00:00:00",
		DateTo:   date + " 23:59:59",
		Limit:    1,
	})
	if err != nil {
		return nil, err
	}
	board.AccessPassCount = passes

	_, denies, err := s.events.List(ctx, nil, repos.AccessEventFilter{
		SiteIDs:  []uuid.UUID{site.ID},
		Result:   types.EventResultDeny,
		DateFrom: date + " 00:00:00",
		DateTo:   date + " 23:59:59",
		Limit:    1,
	})
	if err != nil {
		return nil, err
	}
	board.AccessDenyCount = denies

	_, openAlerts, err := s.alerts.List(ctx, nil, repos.AlertFilter{
		SiteIDs: []uuid.UUID{site.ID},
		Status:  types.AlertStatusUnacknowledged,
		Limit:   1,
	})
	if err != nil {
		return nil, err
	}
	board.OpenAlerts = openAlerts

	return board, nil
}
