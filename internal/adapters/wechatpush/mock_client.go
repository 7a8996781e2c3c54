package wechatpush

import (
	"context"
	"fmt"
	"sync"

	"github.com/sitepass/sitepass-backend/internal/logger"
)

// MockClient records sends instead of calling WeChat. Development deployments
// run with this so notification flow stays observable without credentials.
type MockClient struct {
	log *logger.Logger

	mu       sync.Mutex
	Sent     []Message
	FailNext int
}

func NewMockClient(log *logger.Logger) *MockClient {
	return &MockClient{log: log.With("adapter", "WechatPushMock")}
}

func (m *MockClient) Send(ctx context.Context, msg Message) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.FailNext > 0 {
		m.FailNext--
		return fmt.Errorf("wechatpush: simulated send failure")
	}
	if msg.OpenID == "" {
		return fmt.Errorf("wechatpush: open id required")
	}
	m.Sent = append(m.Sent, msg)
	m.log.Debug("Mock push recorded", "open_id", msg.OpenID, "template", msg.Template)
	return nil
}

// SentCount is safe to call concurrently with Send.
func (m *MockClient) SentCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.Sent)
}
