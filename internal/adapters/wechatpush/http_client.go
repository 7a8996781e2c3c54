package wechatpush

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/sitepass/sitepass-backend/internal/logger"
	"github.com/sitepass/sitepass-backend/internal/utils"
)

type httpClient struct {
	log       *logger.Logger
	base      string
	appID     string
	appSecret string
	client    *http.Client

	mu          sync.Mutex
	accessToken string
	tokenExpiry time.Time
}

func NewHTTPClient(log *logger.Logger) Client {
	base := utils.GetEnv("WECHAT_API_BASE_URL", "https://api.weixin.qq.com", log)
	appID := utils.GetEnv("WECHAT_APP_ID", "", log)
	appSecret := utils.GetEnv("WECHAT_APP_SECRET", "", log)
	timeoutSec := utils.GetEnvAsInt("WECHAT_TIMEOUT_SEC", 10, log)
	return &httpClient{
		log:       log.With("adapter", "WechatPushHTTP"),
		base:      base,
		appID:     appID,
		appSecret: appSecret,
		client:    &http.Client{Timeout: time.Duration(timeoutSec) * time.Second},
	}
}

func (c *httpClient) Send(ctx context.Context, msg Message) error {
	token, err := c.token(ctx)
	if err != nil {
		return err
	}

	data := make(map[string]map[string]string, len(msg.Data))
	for k, v := range msg.Data {
		data[k] = map[string]string{"value": v}
	}
	body := map[string]interface{}{
		"touser":      msg.OpenID,
		"template_id": msg.Template,
		"data":        data,
	}
	var buf bytes.Buffer
	if err := json.NewEncoder(&buf).Encode(body); err != nil {
		return err
	}

	url := fmt.Sprintf("%s/cgi-bin/message/template/send?access_token=%s", c.base, token)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, &buf)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := c.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	var out struct {
		ErrCode int    `json:"errcode"`
		ErrMsg  string `json:"errmsg"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return err
	}
	if out.ErrCode != 0 {
		return fmt.Errorf("wechatpush: send errcode %d: %s", out.ErrCode, out.ErrMsg)
	}
	return nil
}

func (c *httpClient) token(ctx context.Context) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.accessToken != "" && time.Now().Before(c.tokenExpiry) {
		return c.accessToken, nil
	}

	url := fmt.Sprintf("%s/cgi-bin/token?grant_type=client_credential&appid=%s&secret=%s", c.base, c.appID, c.appSecret)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return "", err
	}
	resp, err := c.client.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	var out struct {
		AccessToken string `json:"access_token"`
		ExpiresIn   int    `json:"expires_in"`
		ErrCode     int    `json:"errcode"`
		ErrMsg      string `json:"errmsg"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", err
	}
	if out.ErrCode != 0 || out.AccessToken == "" {
		return "", fmt.Errorf("wechatpush: token errcode %d: %s", out.ErrCode, out.ErrMsg)
	}
	// Refresh one minute early.
	c.accessToken = out.AccessToken
	c.tokenExpiry = time.Now().Add(time.Duration(out.ExpiresIn-60) * time.Second)
	return c.accessToken, nil
}
