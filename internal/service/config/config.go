package config

const (
	SourceSample   = "sample"
	SourceRemote   = "remote"
	SourcePostgres = "postgres"
)

type Config struct {
	AnalyticsSource string `envconfig:"ANALYTICS_SOURCE" default:"sample"`
	TopLimit        int    `envconfig:"ANALYTICS_TOP_LIMIT" default:"5"`
	SeedSample      bool   `envconfig:"ANALYTICS_SEED_SAMPLE" default:"false"`
}
