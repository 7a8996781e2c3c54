package services

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/sitepass/sitepass-backend/internal/apperr"
	"github.com/sitepass/sitepass-backend/internal/logger"
	"github.com/sitepass/sitepass-backend/internal/repos"
	"github.com/sitepass/sitepass-backend/internal/tenant"
	"github.com/sitepass/sitepass-backend/internal/types"
)

type AlertService interface {
	List(ctx context.Context, tctx tenant.Context, filter repos.AlertFilter) ([]*types.Alert, int64, error)
	Acknowledge(ctx context.Context, tctx tenant.Context, alertID uuid.UUID, requestID, ip string) error
	Resolve(ctx context.Context, tctx tenant.Context, alertID uuid.UUID, note, requestID, ip string) error
}

type alertService struct {
	log    *logger.Logger
	db     *gorm.DB
	alerts repos.AlertRepo
	audit  AuditService
}

func NewAlertService(
	db *gorm.DB,
	alerts repos.AlertRepo,
	audit AuditService,
	baseLog *logger.Logger,
) AlertService {
	return &alertService{
		log:    baseLog.With("service", "AlertService"),
		db:     db,
		alerts: alerts,
		audit:  audit,
	}
}

func (s *alertService) List(ctx context.Context, tctx tenant.Context, filter repos.AlertFilter) ([]*types.Alert, int64, error) {
	if scope := tctx.SiteFilter(); scope != nil {
		filter.SiteIDs = scope
	}
	return s.alerts.List(ctx, nil, filter)
}

func (s *alertService) Acknowledge(ctx context.Context, tctx tenant.Context, alertID uuid.UUID, requestID, ip string) error {
	return s.transition(ctx, tctx, alertID, types.AuditActionAcknowledge, "", requestID, ip)
}

func (s *alertService) Resolve(ctx context.Context, tctx tenant.Context, alertID uuid.UUID, note, requestID, ip string) error {
	return s.transition(ctx, tctx, alertID, types.AuditActionResolve, note, requestID, ip)
}

func (s *alertService) transition(ctx context.Context, tctx tenant.Context, alertID uuid.UUID, action, note, requestID, ip string) error {
	alert, err := s.alerts.GetByID(ctx, nil, alertID)
	if err != nil {
		return err
	}
	if alert == nil {
		return apperr.ErrNotFound
	}
	if alert.SiteID != nil {
		if !tctx.CanAccessSite(*alert.SiteID) {
			return apperr.ErrForbidden
		}
	} else if !tctx.IsSysAdmin() {
		return apperr.ErrForbidden
	}

	now := time.Now()
	updates := map[string]interface{}{}
	switch action {
	case types.AuditActionAcknowledge:
		if alert.Status != types.AlertStatusUnacknowledged {
			return apperr.Validation("alert is not open")
		}
		updates["status"] = types.AlertStatusAcknowledged
		updates["acknowledged_by"] = tctx.UserID
		updates["acknowledged_at"] = now
	case types.AuditActionResolve:
		if alert.Status == types.AlertStatusResolved {
			return apperr.Validation("alert already resolved")
		}
		updates["status"] = types.AlertStatusResolved
		updates["resolved_by"] = tctx.UserID
		updates["resolved_at"] = now
	}

	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := s.alerts.UpdateFields(ctx, tx, alertID, updates); err != nil {
			return err
		}
		return s.audit.Record(ctx, tx, AuditEntry{
			SiteID:       alert.SiteID,
			OperatorID:   &tctx.UserID,
			Action:       action,
			ResourceType: "alert",
			ResourceID:   alertID.String(),
			Reason:       note,
			IP:           ip,
			RequestID:    requestID,
		})
	})
}
