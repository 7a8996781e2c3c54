package wechatauth

import (
	"context"
	"fmt"

	"github.com/sitepass/sitepass-backend/internal/logger"
)

// MockClient maps codes to deterministic openids for tests and local runs.
type MockClient struct {
	log *logger.Logger
}

func NewMockClient(log *logger.Logger) *MockClient {
	return &MockClient{log: log.With("adapter", "WechatAuthMock")}
}

func (m *MockClient) CodeToSession(ctx context.Context, code string) (string, error) {
	if code == "" {
		return "", fmt.Errorf("wechatauth: empty code")
	}
	return "mock-openid-" + code, nil
}
