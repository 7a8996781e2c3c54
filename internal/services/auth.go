package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"

	"github.com/sitepass/sitepass-backend/internal/adapters/faceverify"
	"github.com/sitepass/sitepass-backend/internal/adapters/realname"
	"github.com/sitepass/sitepass-backend/internal/adapters/wechatauth"
	"github.com/sitepass/sitepass-backend/internal/apperr"
	"github.com/sitepass/sitepass-backend/internal/logger"
	"github.com/sitepass/sitepass-backend/internal/repos"
	"github.com/sitepass/sitepass-backend/internal/tenant"
	"github.com/sitepass/sitepass-backend/internal/types"
	"github.com/sitepass/sitepass-backend/internal/utils"
)

// Claims is the JWT payload. Site scope travels in the token so request
// handling never needs a user lookup.
type Claims struct {
	Role         string   `json:"role"`
	ContractorID string   `json:"contractor_id,omitempty"`
	SiteIDs      []string `json:"site_ids,omitempty"`
	jwt.RegisteredClaims
}

// LoginResult is a signed token plus the identity it represents.
type LoginResult struct {
	Token     string         `json:"token"`
	ExpiresAt time.Time      `json:"expires_at"`
	UserID    uuid.UUID      `json:"user_id"`
	Role      string         `json:"role"`
	Worker    *types.Worker  `json:"worker,omitempty"`
	User      *types.SysUser `json:"user,omitempty"`
}

// BindWorkerInput is the mini-program onboarding payload.
type BindWorkerInput struct {
	Code        string
	Name        string
	IDNo        string
	PhotoBase64 string
}

type AuthService interface {
	Login(ctx context.Context, username, password, requestID, ip string) (*LoginResult, error)
	WechatLogin(ctx context.Context, code string) (*LoginResult, error)
	BindWorker(ctx context.Context, input BindWorkerInput, requestID, ip string) (*LoginResult, error)
	ParseToken(tokenStr string) (tenant.Context, error)
}

type authService struct {
	log      *logger.Logger
	db       *gorm.DB
	users    repos.SysUserRepo
	workers  repos.WorkerRepo
	wxauth   wechatauth.Client
	realname realname.Client
	faces    faceverify.Client
	audit    AuditService
	secret   []byte
	tokenTTL time.Duration
}

func NewAuthService(
	db *gorm.DB,
	users repos.SysUserRepo,
	workers repos.WorkerRepo,
	wxauth wechatauth.Client,
	realnameClient realname.Client,
	faces faceverify.Client,
	audit AuditService,
	baseLog *logger.Logger,
) AuthService {
	log := baseLog.With("service", "AuthService")
	secret := utils.GetEnv("JWT_SECRET", "", log)
	if secret == "" {
		log.Warn("JWT_SECRET is empty, tokens are forgeable")
	}
	ttlHours := utils.GetEnvAsInt("JWT_TTL_HOURS", 24, log)
	return &authService{
		log:      log,
		db:       db,
		users:    users,
		workers:  workers,
		wxauth:   wxauth,
		realname: realnameClient,
		faces:    faces,
		audit:    audit,
		secret:   []byte(secret),
		tokenTTL: time.Duration(ttlHours) * time.Hour,
	}
}

func (s *authService) Login(ctx context.Context, username, password, requestID, ip string) (*LoginResult, error) {
	user, err := s.users.GetByUsername(ctx, nil, username)
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, apperr.New(apperr.CodeUserNotFound, "user not found")
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		auditErr := s.audit.Record(ctx, nil, AuditEntry{
			SiteID:       user.SiteID,
			OperatorID:   &user.ID,
			OperatorName: user.Username,
			Action:       types.AuditActionLogin,
			ResourceType: "sys_user",
			ResourceID:   user.ID.String(),
			IP:           ip,
			RequestID:    requestID,
			Err:          fmt.Errorf("password mismatch"),
		})
		if auditErr != nil {
			s.log.Error("failed to record login failure", "error", auditErr)
		}
		return nil, apperr.New(apperr.CodePasswordIncorrect, "incorrect password")
	}
	if !user.IsActive {
		return nil, apperr.New(apperr.CodeUserLocked, "account disabled")
	}

	var siteIDs []string
	if user.SiteID != nil {
		siteIDs = append(siteIDs, user.SiteID.String())
	}
	var contractorID string
	if user.ContractorID != nil {
		contractorID = user.ContractorID.String()
	}
	token, expiresAt, err := s.sign(user.ID, user.Role, contractorID, siteIDs)
	if err != nil {
		return nil, err
	}

	if err := s.audit.Record(ctx, nil, AuditEntry{
		SiteID:       user.SiteID,
		OperatorID:   &user.ID,
		OperatorName: user.Username,
		Action:       types.AuditActionLogin,
		ResourceType: "sys_user",
		ResourceID:   user.ID.String(),
		IP:           ip,
		RequestID:    requestID,
	}); err != nil {
		s.log.Error("failed to record login", "error", err)
	}

	user.PasswordHash = ""
	return &LoginResult{
		Token:     token,
		ExpiresAt: expiresAt,
		UserID:    user.ID,
		Role:      user.Role,
		User:      user,
	}, nil
}

// WechatLogin authenticates an already-bound worker by their mini-program
// code. Unbound workers get CodeBindFailed and go through onboarding instead.
func (s *authService) WechatLogin(ctx context.Context, code string) (*LoginResult, error) {
	openID, err := s.wxauth.CodeToSession(ctx, code)
	if err != nil {
		return nil, apperr.New(apperr.CodeWechatAuthFailed, "wechat authentication failed")
	}
	worker, err := s.workers.GetByWechatOpenID(ctx, nil, openID)
	if err != nil {
		return nil, err
	}
	if worker == nil || !worker.IsBound {
		return nil, apperr.New(apperr.CodeBindFailed, "worker not bound yet")
	}
	if !worker.IsActive {
		return nil, apperr.New(apperr.CodeUserLocked, "worker disabled")
	}

	token, expiresAt, err := s.sign(worker.ID, types.RoleWorker, "", nil)
	if err != nil {
		return nil, err
	}
	return &LoginResult{
		Token:     token,
		ExpiresAt: expiresAt,
		UserID:    worker.ID,
		Role:      types.RoleWorker,
		Worker:    worker,
	}, nil
}

// BindWorker runs the onboarding chain: wechat identity, real-name check,
// face enrollment, then the binding write. The worker row must already exist;
// operators register workers, the mini program only claims them.
func (s *authService) BindWorker(ctx context.Context, input BindWorkerInput, requestID, ip string) (*LoginResult, error) {
	openID, err := s.wxauth.CodeToSession(ctx, input.Code)
	if err != nil {
		return nil, apperr.New(apperr.CodeWechatAuthFailed, "wechat authentication failed")
	}

	verified, err := s.realname.Verify(ctx, input.Name, input.IDNo)
	if err != nil {
		return nil, apperr.New(apperr.CodeBindFailed, "real-name service unavailable")
	}
	if !verified {
		return nil, apperr.New(apperr.CodeWorkerNotFoundInRealname, "real-name verification failed")
	}

	worker, err := s.workers.GetByIDNo(ctx, nil, input.IDNo)
	if err != nil {
		return nil, err
	}
	if worker == nil {
		return nil, apperr.New(apperr.CodeNotFound, "worker not registered, contact your site operator")
	}
	if worker.IsBound && worker.WechatOpenID != openID {
		return nil, apperr.New(apperr.CodeWorkerAlreadyBound, "worker already bound to another account")
	}

	faceID, err := s.faces.Enroll(ctx, input.IDNo, input.PhotoBase64)
	if err != nil {
		return nil, apperr.New(apperr.CodeBindFailed, "face enrollment failed")
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := s.workers.UpdateFields(ctx, tx, worker.ID, map[string]interface{}{
			"wechat_open_id": openID,
			"face_id":        faceID,
			"is_bound":       true,
			"updated_at":     time.Now(),
		}); err != nil {
			return err
		}
		return s.audit.Record(ctx, tx, AuditEntry{
			OperatorID:   &worker.ID,
			OperatorName: worker.Name,
			Action:       types.AuditActionUpdate,
			ResourceType: "worker",
			ResourceID:   worker.ID.String(),
			Reason:       "wechat binding",
			IP:           ip,
			RequestID:    requestID,
		})
	})
	if err != nil {
		return nil, err
	}
	worker.WechatOpenID = openID
	worker.FaceID = faceID
	worker.IsBound = true

	token, expiresAt, err := s.sign(worker.ID, types.RoleWorker, "", nil)
	if err != nil {
		return nil, err
	}
	s.log.Info("worker bound", "worker_id", worker.ID)
	return &LoginResult{
		Token:     token,
		ExpiresAt: expiresAt,
		UserID:    worker.ID,
		Role:      types.RoleWorker,
		Worker:    worker,
	}, nil
}

func (s *authService) sign(userID uuid.UUID, role, contractorID string, siteIDs []string) (string, time.Time, error) {
	expiresAt := time.Now().Add(s.tokenTTL)
	claims := Claims{
		Role:         role,
		ContractorID: contractorID,
		SiteIDs:      siteIDs,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   userID.String(),
			IssuedAt:  jwt.NewNumericDate(time.Now()),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		},
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
	if err != nil {
		return "", time.Time{}, err
	}
	return token, expiresAt, nil
}

func (s *authService) ParseToken(tokenStr string) (tenant.Context, error) {
	var claims Claims
	token, err := jwt.ParseWithClaims(tokenStr, &claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return s.secret, nil
	})
	if err != nil || !token.Valid {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return tenant.Context{}, apperr.New(apperr.CodeTokenExpired, "token expired")
		}
		return tenant.Context{}, apperr.New(apperr.CodeTokenInvalid, "invalid token")
	}

	userID, err := uuid.Parse(claims.Subject)
	if err != nil {
		return tenant.Context{}, apperr.New(apperr.CodeTokenInvalid, "invalid token subject")
	}
	tctx := tenant.Context{UserID: userID, Role: claims.Role}
	if claims.ContractorID != "" {
		if cid, err := uuid.Parse(claims.ContractorID); err == nil {
			tctx.ContractorID = &cid
		}
	}
	for _, raw := range claims.SiteIDs {
		if sid, err := uuid.Parse(raw); err == nil {
			tctx.AccessibleSites = append(tctx.AccessibleSites, sid)
		}
	}
	return tctx, nil
}
