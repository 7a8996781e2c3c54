package realname

import "context"

// Client checks a worker's legal name against their national ID number with
// the government real-name service.
type Client interface {
	Verify(ctx context.Context, name, idNo string) (bool, error)
}
