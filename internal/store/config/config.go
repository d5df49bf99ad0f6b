package config

type Config struct {
	DBDsn string `envconfig:"DATABASE_DSN"`
}
