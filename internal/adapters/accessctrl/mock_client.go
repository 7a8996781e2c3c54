package accessctrl

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/sitepass/sitepass-backend/internal/logger"
)

// MockClient is an in-process vendor used in development and tests. It keeps
// grants in memory and mirrors the real vendor's idempotency behavior:
// pushing an existing grant returns ErrConflict, revoking a missing one
// returns ErrNotFound.
type MockClient struct {
	log *logger.Logger

	mu     sync.Mutex
	grants map[string]EffectiveGrant

	// FailPushes makes the next N pushes fail. Lets tests drive the retry
	// ladder.
	FailPushes int
}

func NewMockClient(log *logger.Logger) *MockClient {
	return &MockClient{
		log:    log.With("adapter", "AccessCtrlMock"),
		grants: make(map[string]EffectiveGrant),
	}
}

func (m *MockClient) SupportsQuery() bool { return true }

func (m *MockClient) PushGrant(ctx context.Context, req GrantRequest) (*GrantResult, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.FailPushes > 0 {
		m.FailPushes--
		return nil, fmt.Errorf("accessctrl: simulated vendor failure")
	}
	if _, ok := m.grants[req.GrantID]; ok {
		return nil, ErrConflict
	}
	ref := "mock-" + req.GrantID
	m.grants[req.GrantID] = EffectiveGrant{
		VendorRef:     ref,
		GrantID:       req.GrantID,
		FaceID:        req.FaceID,
		AccessGroupID: req.AccessGroupID,
		ValidTo:       req.ValidTo,
	}
	return &GrantResult{VendorRef: ref}, nil
}

func (m *MockClient) RevokeGrant(ctx context.Context, grantID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.grants[grantID]; !ok {
		return ErrNotFound
	}
	delete(m.grants, grantID)
	return nil
}

func (m *MockClient) QueryEffectiveGrants(ctx context.Context, accessGroupID string) ([]EffectiveGrant, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []EffectiveGrant
	for _, g := range m.grants {
		if accessGroupID == "" || g.AccessGroupID == accessGroupID {
			if g.ValidTo.After(time.Now()) {
				out = append(out, g)
			}
		}
	}
	return out, nil
}

// SeedGrant injects a vendor-side grant directly. Drift tests use it to
// fabricate extra_in_vendor entries.
func (m *MockClient) SeedGrant(g EffectiveGrant) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.grants[g.GrantID] = g
}
