package accessctrl

import (
	"context"
	"errors"
	"time"
)

// ErrConflict means the vendor already holds a grant under the same
// idempotency key. Callers treat it as success.
var ErrConflict = errors.New("accessctrl: grant already exists")

// ErrNotFound means the vendor has no record of the grant. Revocation treats
// it as success.
var ErrNotFound = errors.New("accessctrl: grant not found")

// GrantRequest carries everything the vendor needs to open a door. GrantID
// doubles as the idempotency key, so retries of the same grant never create
// duplicates vendor-side.
type GrantRequest struct {
	GrantID       string
	WorkerName    string
	WorkerIDNo    string
	FaceID        string
	AccessGroupID string
	ValidFrom     time.Time
	ValidTo       time.Time
}

type GrantResult struct {
	VendorRef string
}

// EffectiveGrant is one active authorization as reported by the vendor.
type EffectiveGrant struct {
	VendorRef     string
	GrantID       string
	FaceID        string
	AccessGroupID string
	ValidTo       time.Time
}

// Client is the access-control vendor surface. Not every vendor can enumerate
// its active grants; SupportsQuery gates drift reconciliation.
type Client interface {
	PushGrant(ctx context.Context, req GrantRequest) (*GrantResult, error)
	RevokeGrant(ctx context.Context, grantID string) error
	QueryEffectiveGrants(ctx context.Context, accessGroupID string) ([]EffectiveGrant, error)
	SupportsQuery() bool
}
