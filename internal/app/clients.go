package app

import (
	goredis "github.com/redis/go-redis/v9"

	"github.com/sitepass/sitepass-backend/internal/adapters/accessctrl"
	"github.com/sitepass/sitepass-backend/internal/adapters/faceverify"
	"github.com/sitepass/sitepass-backend/internal/adapters/realname"
	"github.com/sitepass/sitepass-backend/internal/adapters/wechatauth"
	"github.com/sitepass/sitepass-backend/internal/adapters/wechatpush"
	redisclient "github.com/sitepass/sitepass-backend/internal/clients/redis"
	"github.com/sitepass/sitepass-backend/internal/logger"
)

type Clients struct {
	Redis      *goredis.Client
	Vendor     accessctrl.Client
	FaceVerify faceverify.Client
	RealName   realname.Client
	WechatAuth wechatauth.Client
	WechatPush wechatpush.Client
}

// wireClients picks mock or HTTP adapters per config. Mock is the default so
// the service runs end to end without any vendor credentials.
func wireClients(cfg Config, log *logger.Logger) (Clients, error) {
	log.Info("Wiring clients...", "vendor_mode", cfg.VendorMode, "wechat_mode", cfg.WechatMode)

	rdb, err := redisclient.NewClient(log)
	if err != nil {
		return Clients{}, err
	}

	c := Clients{Redis: rdb}
	if cfg.VendorMode == "http" {
		c.Vendor = accessctrl.NewHTTPClient(log)
		c.FaceVerify = faceverify.NewHTTPClient(log)
		c.RealName = realname.NewHTTPClient(log)
	} else {
		c.Vendor = accessctrl.NewMockClient(log)
		c.FaceVerify = faceverify.NewMockClient(log)
		c.RealName = realname.NewMockClient(log)
	}
	if cfg.WechatMode == "http" {
		c.WechatAuth = wechatauth.NewHTTPClient(log)
		c.WechatPush = wechatpush.NewHTTPClient(log)
	} else {
		c.WechatAuth = wechatauth.NewMockClient(log)
		c.WechatPush = wechatpush.NewMockClient(log)
	}
	return c, nil
}
