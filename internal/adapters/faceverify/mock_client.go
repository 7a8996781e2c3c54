package faceverify

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/uuid"

	"github.com/sitepass/sitepass-backend/internal/logger"
)

// MockClient passes every verification by default. Tests flip FailNext to
// exercise check-failure paths.
type MockClient struct {
	log *logger.Logger

	mu       sync.Mutex
	enrolled map[string]string
	FailNext int
}

func NewMockClient(log *logger.Logger) *MockClient {
	return &MockClient{
		log:      log.With("adapter", "FaceVerifyMock"),
		enrolled: make(map[string]string),
	}
}

func (m *MockClient) Enroll(ctx context.Context, workerIDNo string, photoBase64 string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if workerIDNo == "" {
		return "", fmt.Errorf("faceverify: id number required")
	}
	faceID := "face-" + uuid.New().String()
	m.enrolled[faceID] = workerIDNo
	return faceID, nil
}

func (m *MockClient) Verify(ctx context.Context, faceID string, photoBase64 string) (*VerifyResult, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.FailNext > 0 {
		m.FailNext--
		return &VerifyResult{Passed: false, Confidence: 0.21}, nil
	}
	return &VerifyResult{Passed: true, Confidence: 0.97}, nil
}
