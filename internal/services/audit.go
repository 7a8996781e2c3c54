package services

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/sitepass/sitepass-backend/internal/logger"
	"github.com/sitepass/sitepass-backend/internal/repos"
	"github.com/sitepass/sitepass-backend/internal/types"
)

// AuditEntry is one mutation to record. Record never fails the caller's
// transaction for bookkeeping reasons alone; an audit write error is returned
// so the transaction rolls back, keeping the trail gap-free.
type AuditEntry struct {
	SiteID       *uuid.UUID
	OperatorID   *uuid.UUID
	OperatorName string
	Action       string
	ResourceType string
	ResourceID   string
	Old          datatypes.JSON
	New          datatypes.JSON
	Reason       string
	IP           string
	RequestID    string
	Err          error
}

type AuditService interface {
	Record(ctx context.Context, tx *gorm.DB, entry AuditEntry) error
	List(ctx context.Context, tx *gorm.DB, filter repos.AuditLogFilter) ([]*types.AuditLog, int64, error)
}

type auditService struct {
	log  *logger.Logger
	repo repos.AuditLogRepo
}

func NewAuditService(repo repos.AuditLogRepo, baseLog *logger.Logger) AuditService {
	return &auditService{
		log:  baseLog.With("service", "AuditService"),
		repo: repo,
	}
}

func (s *auditService) Record(ctx context.Context, tx *gorm.DB, entry AuditEntry) error {
	row := &types.AuditLog{
		ID:           uuid.New(),
		SiteID:       entry.SiteID,
		OperatorID:   entry.OperatorID,
		OperatorName: entry.OperatorName,
		Action:       entry.Action,
		ResourceType: entry.ResourceType,
		ResourceID:   entry.ResourceID,
		Old:          entry.Old,
		New:          entry.New,
		Reason:       entry.Reason,
		IP:           entry.IP,
		RequestID:    entry.RequestID,
		IsSuccess:    entry.Err == nil,
	}
	if entry.Err != nil {
		row.ErrorMessage = entry.Err.Error()
	}
	return s.repo.Create(ctx, tx, []*types.AuditLog{row})
}

func (s *auditService) List(ctx context.Context, tx *gorm.DB, filter repos.AuditLogFilter) ([]*types.AuditLog, int64, error) {
	return s.repo.List(ctx, tx, filter)
}
