package config

import (
	"errors"
	"fmt"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"

	apiclientConfig "github.com/iurnickita/shopdash/internal/apiclient/config"
	handlerConfig "github.com/iurnickita/shopdash/internal/handler/config"
	loggerConfig "github.com/iurnickita/shopdash/internal/logger/config"
	serviceConfig "github.com/iurnickita/shopdash/internal/service/config"
	storeConfig "github.com/iurnickita/shopdash/internal/store/config"
	tokenConfig "github.com/iurnickita/shopdash/internal/token/config"
)

var errNoSecret = errors.New("TOKEN_SECRET is required")

type Config struct {
	Handler   handlerConfig.Config
	Service   serviceConfig.Config
	Store     storeConfig.Config
	Logger    loggerConfig.Config
	APIClient apiclientConfig.Config
	Token     tokenConfig.Config
}

// GetConfig читает .env (если есть) и переменные окружения
func GetConfig() (Config, error) {
	_ = godotenv.Load()

	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return Config{}, fmt.Errorf("parsing config: %w", err)
	}
	if err := cfg.validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (cfg Config) validate() error {
	if cfg.Token.Secret == "" {
		return errNoSecret
	}
	if _, err := cfg.APIClient.BaseURL(); err != nil {
		return err
	}
	switch cfg.Service.AnalyticsSource {
	case serviceConfig.SourceSample, serviceConfig.SourceRemote:
	case serviceConfig.SourcePostgres:
		if cfg.Store.DBDsn == "" {
			return fmt.Errorf("ANALYTICS_SOURCE=%s: DATABASE_DSN is required", cfg.Service.AnalyticsSource)
		}
	default:
		return fmt.Errorf("unknown ANALYTICS_SOURCE %q", cfg.Service.AnalyticsSource)
	}
	return nil
}
