package app

import (
	"github.com/sitepass/sitepass-backend/internal/logger"
	"github.com/sitepass/sitepass-backend/internal/utils"
)

// Config holds the process-level settings. Component thresholds (retry
// ladders, sweep caps, quiet hours) stay with the components that own them and
// are read from env in their constructors.
type Config struct {
	Port        string
	Environment string
	Version     string
	VendorMode  string
	WechatMode  string
}

func LoadConfig(log *logger.Logger) Config {
	return Config{
		Port:        utils.GetEnv("PORT", "8080", log),
		Environment: utils.GetEnv("APP_ENV", "development", log),
		Version:     utils.GetEnv("APP_VERSION", "dev", log),
		VendorMode:  utils.GetEnv("VENDOR_ADAPTER_MODE", "mock", log),
		WechatMode:  utils.GetEnv("WECHAT_ADAPTER_MODE", "mock", log),
	}
}
