package realname

import (
	"context"

	"github.com/sitepass/sitepass-backend/internal/logger"
)

// MockClient accepts any non-empty name and an 18-character ID number, the
// format used by resident identity cards.
type MockClient struct {
	log *logger.Logger
}

func NewMockClient(log *logger.Logger) *MockClient {
	return &MockClient{log: log.With("adapter", "RealNameMock")}
}

func (m *MockClient) Verify(ctx context.Context, name, idNo string) (bool, error) {
	return name != "" && len(idNo) == 18, nil
}
