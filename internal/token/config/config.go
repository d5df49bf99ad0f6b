package config

import "time"

type Config struct {
	Secret string        `envconfig:"TOKEN_SECRET" required:"true"`
	Issuer string        `envconfig:"TOKEN_ISSUER" default:"shopdash"`
	TTL    time.Duration `envconfig:"TOKEN_TTL" default:"1m"`
}
