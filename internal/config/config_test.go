package config

import (
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	apiclientConfig "github.com/iurnickita/shopdash/internal/apiclient/config"
)

func TestGetConfig(t *testing.T) {
	t.Setenv("TOKEN_SECRET", "secret")
	t.Setenv("SERVER_ADDR", ":9090")
	t.Setenv("API_TIMEOUT", "3s")

	cfg, err := GetConfig()
	require.NoError(t, err)
	require.Equal(t, ":9090", cfg.Handler.ServerAddr)
	require.Equal(t, 3*time.Second, cfg.APIClient.Timeout)
	require.Equal(t, apiclientConfig.EnvDevelopment, cfg.APIClient.Env)
	require.Equal(t, "sample", cfg.Service.AnalyticsSource)
	require.Equal(t, 5, cfg.Service.TopLimit)
	require.Equal(t, "info", cfg.Logger.LogLevel)
	require.Equal(t, "shopdash", cfg.Token.Issuer)
	require.Equal(t, time.Minute, cfg.Token.TTL)
}

func TestGetConfigErrors(t *testing.T) {
	tests := []struct {
		name  string
		env   map[string]string
		unset bool
		want  error
	}{
		{
			name:  "token secret not set",
			env:   map[string]string{},
			unset: true,
		},
		{
			// envconfig required пропускает заданную, но пустую переменную
			name: "empty token secret",
			env:  map[string]string{"TOKEN_SECRET": ""},
			want: errNoSecret,
		},
		{
			name: "production without url",
			env:  map[string]string{"TOKEN_SECRET": "s", "APP_ENV": "production"},
		},
		{
			name: "postgres without dsn",
			env:  map[string]string{"TOKEN_SECRET": "s", "ANALYTICS_SOURCE": "postgres"},
		},
		{
			name: "unknown source",
			env:  map[string]string{"TOKEN_SECRET": "s", "ANALYTICS_SOURCE": "csv"},
		},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			t.Setenv("TOKEN_SECRET", "")
			for k, v := range test.env {
				t.Setenv(k, v)
			}
			if test.unset {
				require.NoError(t, os.Unsetenv("TOKEN_SECRET"))
			}
			_, err := GetConfig()
			require.Error(t, err)
			if test.want != nil {
				require.ErrorIs(t, err, test.want)
			}
			if test.unset {
				// отсутствие переменной ловит сам envconfig
				require.NotErrorIs(t, err, errNoSecret)
			}
		})
	}
}
