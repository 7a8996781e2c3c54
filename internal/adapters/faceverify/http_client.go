package faceverify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/sitepass/sitepass-backend/internal/logger"
	"github.com/sitepass/sitepass-backend/internal/utils"
)

type httpClient struct {
	log    *logger.Logger
	base   string
	apiKey string
	client *http.Client
}

func NewHTTPClient(log *logger.Logger) Client {
	base := utils.GetEnv("FACE_VENDOR_BASE_URL", "http://localhost:9002", log)
	apiKey := utils.GetEnv("FACE_VENDOR_API_KEY", "", log)
	timeoutSec := utils.GetEnvAsInt("FACE_VENDOR_TIMEOUT_SEC", 10, log)
	return &httpClient{
		log:    log.With("adapter", "FaceVerifyHTTP"),
		base:   base,
		apiKey: apiKey,
		client: &http.Client{Timeout: time.Duration(timeoutSec) * time.Second},
	}
}

func (c *httpClient) Enroll(ctx context.Context, workerIDNo string, photoBase64 string) (string, error) {
	var out struct {
		FaceID string `json:"face_id"`
	}
	if err := c.post(ctx, "/api/v1/faces", map[string]string{
		"id_no": workerIDNo,
		"photo": photoBase64,
	}, &out); err != nil {
		return "", err
	}
	return out.FaceID, nil
}

func (c *httpClient) Verify(ctx context.Context, faceID string, photoBase64 string) (*VerifyResult, error) {
	var out struct {
		Passed     bool    `json:"passed"`
		Confidence float64 `json:"confidence"`
	}
	if err := c.post(ctx, "/api/v1/faces/verify", map[string]string{
		"face_id": faceID,
		"photo":   photoBase64,
	}, &out); err != nil {
		return nil, err
	}
	return &VerifyResult{Passed: out.Passed, Confidence: out.Confidence}, nil
}

func (c *httpClient) post(ctx context.Context, path string, body interface{}, out interface{}) error {
	var buf bytes.Buffer
	if err := json.NewEncoder(&buf).Encode(body); err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.base+path, &buf)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}
	resp, err := c.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("faceverify: %s status %d", path, resp.StatusCode)
	}
	return json.NewDecoder(resp.Body).Decode(out)
}
