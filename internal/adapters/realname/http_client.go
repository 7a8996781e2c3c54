package realname

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
	base := utils.GetEnv("REALNAME_VENDOR_BASE_URL", "http://localhost:9003", log)
	apiKey := utils.GetEnv("REALNAME_VENDOR_API_KEY", "", log)
	timeoutSec := utils.GetEnvAsInt("REALNAME_VENDOR_TIMEOUT_SEC", 10, log)
	return &httpClient{
		log:    log.With("adapter", "RealNameHTTP"),
		base:   base,
		apiKey: apiKey,
		client: &http.Client{Timeout: time.Duration(timeoutSec) * time.Second},
	}
}

func (c *httpClient) Verify(ctx context.Context, name, idNo string) (bool, error) {
	var buf bytes.Buffer
	if err := json.NewEncoder(&buf).Encode(map[string]string{
		"name":  name,
		"id_no": idNo,
	}); err != nil {
		return false, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.base+"/api/v1/verify", &buf)
	if err != nil {
		return false, err
	}
	req.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}
	resp, err := c.client.Do(req)
	if err != nil {
		return false, err
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return false, fmt.Errorf("realname: verify status %d", resp.StatusCode)
	}
	var out struct {
		Matched bool `json:"matched"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return false, err
	}
	return out.Matched, nil
}
