package accessctrl

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
	log     *logger.Logger
	base    string
	apiKey  string
	client  *http.Client
	canQuery bool
}

func NewHTTPClient(log *logger.Logger) Client {
	base := utils.GetEnv("ACCESS_VENDOR_BASE_URL", "http://localhost:9001", log)
	apiKey := utils.GetEnv("ACCESS_VENDOR_API_KEY", "", log)
	timeoutSec := utils.GetEnvAsInt("ACCESS_VENDOR_TIMEOUT_SEC", 10, log)
	canQuery := utils.GetEnvAsBool("ACCESS_VENDOR_SUPPORTS_QUERY", true, log)
	return &httpClient{
		log:      log.With("adapter", "AccessCtrlHTTP"),
		base:     base,
		apiKey:   apiKey,
		client:   &http.Client{Timeout: time.Duration(timeoutSec) * time.Second},
		canQuery: canQuery,
	}
}

func (c *httpClient) SupportsQuery() bool { return c.canQuery }

func (c *httpClient) PushGrant(ctx context.Context, req GrantRequest) (*GrantResult, error) {
	body := map[string]interface{}{
		"external_id":     req.GrantID,
		"person_name":     req.WorkerName,
		"person_id_no":    req.WorkerIDNo,
		"face_id":         req.FaceID,
		"access_group_id": req.AccessGroupID,
		"valid_from":      req.ValidFrom.Format(time.RFC3339),
		"valid_to":        req.ValidTo.Format(time.RFC3339),
	}
	var out struct {
		VendorRef string `json:"vendor_ref"`
	}
	status, err := c.do(ctx, http.MethodPost, "/api/v1/grants", req.GrantID, body, &out)
	if err != nil {
		return nil, err
	}
	switch {
	case status == http.StatusConflict:
		return nil, ErrConflict
	case status >= 200 && status < 300:
		return &GrantResult{VendorRef: out.VendorRef}, nil
	default:
		return nil, fmt.Errorf("accessctrl: push grant status %d", status)
	}
}

func (c *httpClient) RevokeGrant(ctx context.Context, grantID string) error {
	status, err := c.do(ctx, http.MethodDelete, "/api/v1/grants/"+grantID, grantID, nil, nil)
	if err != nil {
		return err
	}
	switch {
	case status == http.StatusNotFound:
		return ErrNotFound
	case status >= 200 && status < 300:
		return nil
	default:
		return fmt.Errorf("accessctrl: revoke grant status %d", status)
	}
}

func (c *httpClient) QueryEffectiveGrants(ctx context.Context, accessGroupID string) ([]EffectiveGrant, error) {
	if !c.canQuery {
		return nil, fmt.Errorf("accessctrl: vendor does not support grant query")
	}
	var out struct {
		Grants []struct {
			VendorRef     string    `json:"vendor_ref"`
			ExternalID    string    `json:"external_id"`
			FaceID        string    `json:"face_id"`
			AccessGroupID string    `json:"access_group_id"`
			ValidTo       time.Time `json:"valid_to"`
		} `json:"grants"`
	}
	status, err := c.do(ctx, http.MethodGet, "/api/v1/grants?access_group_id="+accessGroupID, "", nil, &out)
	if err != nil {
		return nil, err
	}
	if status < 200 || status >= 300 {
		return nil, fmt.Errorf("accessctrl: query grants status %d", status)
	}
	grants := make([]EffectiveGrant, 0, len(out.Grants))
	for _, g := range out.Grants {
		grants = append(grants, EffectiveGrant{
			VendorRef:     g.VendorRef,
			GrantID:       g.ExternalID,
			FaceID:        g.FaceID,
			AccessGroupID: g.AccessGroupID,
			ValidTo:       g.ValidTo,
		})
	}
	return grants, nil
}

func (c *httpClient) do(ctx context.Context, method, path, idempotencyKey string, body interface{}, out interface{}) (int, error) {
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			return 0, err
		}
	}
	req, err := http.NewRequestWithContext(ctx, method, c.base+path, &buf)
	if err != nil {
		return 0, err
	}
	req.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}
	if idempotencyKey != "" {
		req.Header.Set("Idempotency-Key", idempotencyKey)
	}
	resp, err := c.client.Do(req)
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()
	if out != nil && resp.StatusCode >= 200 && resp.StatusCode < 300 {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return resp.StatusCode, err
		}
	}
	return resp.StatusCode, nil
}
