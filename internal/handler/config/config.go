package config

type Config struct {
	ServerAddr string `envconfig:"SERVER_ADDR" default:":8080"`
}
