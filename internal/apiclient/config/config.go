package config

import (
	"errors"
	"strings"
	"time"
)

const (
	EnvDevelopment = "development"
	EnvProduction  = "production"

	DevelopmentURL = "http://localhost:5001/api"
)

var ErrNoBaseURL = errors.New("API_URL is required in production")

type Config struct {
	Env     string        `envconfig:"APP_ENV" default:"development"`
	URL     string        `envconfig:"API_URL"`
	Timeout time.Duration `envconfig:"API_TIMEOUT" default:"15s"`
}

// BaseURL выбирает адрес API по окружению
func (c Config) BaseURL() (string, error) {
	if strings.EqualFold(c.Env, EnvProduction) {
		if c.URL == "" {
			return "", ErrNoBaseURL
		}
		return strings.TrimRight(c.URL, "/"), nil
	}
	if c.URL != "" {
		return strings.TrimRight(c.URL, "/"), nil
	}
	return DevelopmentURL, nil
}
