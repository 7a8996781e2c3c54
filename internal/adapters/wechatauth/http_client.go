package wechatauth

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
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
}

func NewHTTPClient(log *logger.Logger) Client {
	base := utils.GetEnv("WECHAT_API_BASE_URL", "https://api.weixin.qq.com", log)
	appID := utils.GetEnv("WECHAT_APP_ID", "", log)
	appSecret := utils.GetEnv("WECHAT_APP_SECRET", "", log)
	timeoutSec := utils.GetEnvAsInt("WECHAT_TIMEOUT_SEC", 10, log)
	return &httpClient{
		log:       log.With("adapter", "WechatAuthHTTP"),
		base:      base,
		appID:     appID,
		appSecret: appSecret,
		client:    &http.Client{Timeout: time.Duration(timeoutSec) * time.Second},
	}
}

func (c *httpClient) CodeToSession(ctx context.Context, code string) (string, error) {
	url := fmt.Sprintf("%s/sns/jscode2session?appid=%s&secret=%s&js_code=%s&grant_type=authorization_code",
		c.base, c.appID, c.appSecret, code)
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
		OpenID  string `json:"openid"`
		ErrCode int    `json:"errcode"`
		ErrMsg  string `json:"errmsg"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", err
	}
	if out.ErrCode != 0 || out.OpenID == "" {
		return "", fmt.Errorf("wechatauth: jscode2session errcode %d: %s", out.ErrCode, out.ErrMsg)
	}
	return out.OpenID, nil
}
