package config

import (
	"log"
	"time"

	"github.com/kelseyhightower/envconfig"
)

// AppConfig описывает конфигурацию бота.
type AppConfig struct {
	AppEnv      string `envconfig:"APP_ENV" default:"dev"`
	MetricsAddr string `envconfig:"METRICS_ADDR" default:":9090"`

	Telegram struct {
		Token              string `envconfig:"TG_BOT_TOKEN"`
		PollTimeoutSeconds int    `envconfig:"POLL_TIMEOUT_SECONDS" default:"300"`
	} `envconfig:""`

	Eshop struct {
		BaseURL        string        `envconfig:"ESHOP_BASE_URL" default:"https://eshop-prices.com/"`
		RequestTimeout time.Duration `envconfig:"ESHOP_REQUEST_TIMEOUT" default:"30s"`
	} `envconfig:""`

	State struct {
		Backend string `envconfig:"STATE_BACKEND" default:"file"`
		Dir     string `envconfig:"STATE_DIR" default:"./state"`
	} `envconfig:""`

	PGDSN string `envconfig:"PG_DSN"`

	RedisAddr string `envconfig:"REDIS_ADDR"`

	Schedule struct {
		PromoIntervalHours int `envconfig:"PROMO_INTERVAL_HOURS" default:"12"`
		CacheTTLHours      int `envconfig:"CACHE_TTL_HOURS" default:"12"`
	} `envconfig:""`
}

// PollTimeout возвращает таймаут long poll как Duration.
func (c AppConfig) PollTimeout() time.Duration {
	return time.Duration(c.Telegram.PollTimeoutSeconds) * time.Second
}

// PromoInterval возвращает период проверки промо-акций.
func (c AppConfig) PromoInterval() time.Duration {
	return time.Duration(c.Schedule.PromoIntervalHours) * time.Hour
}

// CacheTTL возвращает срок жизни записи кэша без скидки.
func (c AppConfig) CacheTTL() time.Duration {
	return time.Duration(c.Schedule.CacheTTLHours) * time.Hour
}

// Load загружает конфиг из окружения.
func Load() AppConfig {
	var cfg AppConfig
	if err := envconfig.Process("", &cfg); err != nil {
		log.Fatalf("не удалось загрузить конфиг: %v", err)
	}
	return cfg
}
