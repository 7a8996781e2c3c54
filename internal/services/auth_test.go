package services

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/sitepass/sitepass-backend/internal/adapters/faceverify"
	"github.com/sitepass/sitepass-backend/internal/adapters/realname"
	"github.com/sitepass/sitepass-backend/internal/adapters/wechatauth"
	"github.com/sitepass/sitepass-backend/internal/apperr"
	"github.com/sitepass/sitepass-backend/internal/types"
)

func newAuthForTest(t *testing.T, env *testEnv) AuthService {
	t.Helper()
	t.Setenv("JWT_SECRET", "test-secret")
	return NewAuthService(env.db,
		env.users,
		env.workers,
		wechatauth.NewMockClient(env.log),
		realname.NewMockClient(env.log),
		faceverify.NewMockClient(env.log),
		env.audit,
		env.log,
	)
}

func seedSysUser(t *testing.T, env *testEnv, username, password, role string, siteID *uuid.UUID) *types.SysUser {
	t.Helper()
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.MinCost)
	if err != nil {
		t.Fatalf("bcrypt: %v", err)
	}
	u := &types.SysUser{
		ID:           uuid.New(),
		Username:     username,
		PasswordHash: string(hash),
		Role:         role,
		SiteID:       siteID,
		IsActive:     true,
	}
	if _, err := env.users.Create(context.Background(), nil, []*types.SysUser{u}); err != nil {
		t.Fatalf("seed sys user: %v", err)
	}
	return u
}

func TestLoginAndParseTokenRoundTrip(t *testing.T) {
	env := newTestEnv(t)
	auth := newAuthForTest(t, env)
	ctx := context.Background()

	site := env.seedSite(t)
	user := seedSysUser(t, env, "foreman", "s3cret", types.RoleContractorAdmin, &site.ID)

	res, err := auth.Login(ctx, "foreman", "s3cret", "req-1", "127.0.0.1")
	if err != nil {
		t.Fatalf("Login: %v", err)
	}
	if res.Token == "" {
		t.Fatal("empty token")
	}
	if res.UserID != user.ID {
		t.Errorf("UserID = %s, want %s", res.UserID, user.ID)
	}
	if res.User == nil || res.User.PasswordHash != "" {
		t.Error("password hash must never leave the service")
	}

	tctx, err := auth.ParseToken(res.Token)
	if err != nil {
		t.Fatalf("ParseToken: %v", err)
	}
	if tctx.UserID != user.ID {
		t.Errorf("tctx.UserID = %s, want %s", tctx.UserID, user.ID)
	}
	if tctx.Role != types.RoleContractorAdmin {
		t.Errorf("tctx.Role = %s, want %s", tctx.Role, types.RoleContractorAdmin)
	}
	if len(tctx.AccessibleSites) != 1 || tctx.AccessibleSites[0] != site.ID {
		t.Errorf("AccessibleSites = %v, want [%s]", tctx.AccessibleSites, site.ID)
	}
}

func TestLoginRejectsWrongPassword(t *testing.T) {
	env := newTestEnv(t)
	auth := newAuthForTest(t, env)

	seedSysUser(t, env, "foreman", "s3cret", types.RoleSysAdmin, nil)

	_, err := auth.Login(context.Background(), "foreman", "wrong", "req-2", "127.0.0.1")
	if code := apperr.CodeOf(err); code != apperr.CodePasswordIncorrect {
		t.Fatalf("code = %d, want %d", code, apperr.CodePasswordIncorrect)
	}
}

func TestLoginUnknownUser(t *testing.T) {
	env := newTestEnv(t)
	auth := newAuthForTest(t, env)

	_, err := auth.Login(context.Background(), "ghost", "whatever", "req-3", "127.0.0.1")
	if code := apperr.CodeOf(err); code != apperr.CodeUserNotFound {
		t.Fatalf("code = %d, want %d", code, apperr.CodeUserNotFound)
	}
}

func TestParseTokenRejectsGarbage(t *testing.T) {
	env := newTestEnv(t)
	auth := newAuthForTest(t, env)

	_, err := auth.ParseToken("not-a-token")
	if code := apperr.CodeOf(err); code != apperr.CodeTokenInvalid {
		t.Fatalf("code = %d, want %d", code, apperr.CodeTokenInvalid)
	}
}
