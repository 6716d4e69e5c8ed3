package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	require.Equal(t, "development", cfg.Environment)
	require.Equal(t, 4000, cfg.ServerPort)
	require.Equal(t, StoreSQLite, cfg.StoreDriver)
	require.Equal(t, 24*time.Hour, cfg.JWTExpiry)
	require.Equal(t, int64(5<<20), cfg.UploadMaxBytes)
	require.Equal(t, "eu-north-1", cfg.AWSRegion)
	require.Equal(t, []string{"http://localhost:5173", "http://localhost:3000"}, cfg.CORSAllowedOrigins)
	require.NotEmpty(t, cfg.JWTSecret)
	require.Empty(t, cfg.RedisURL)
	require.Empty(t, cfg.TrustedProxies)
}

func TestLoadFromEnv(t *testing.T) {
	t.Setenv("SERVER_PORT", "9090")
	t.Setenv("STORE_DRIVER", "postgres")
	t.Setenv("DATABASE_URL", "postgres://catalog@localhost/catalog?sslmode=disable")
	t.Setenv("CORS_ALLOWED_ORIGINS", "https://shop.example.com,https://admin.example.com")
	t.Setenv("STATS_INTERVAL", "30s")
	t.Setenv("LOGIN_RATE_LIMIT", "3")
	t.Setenv("TRUSTED_PROXIES", "10.0.0.0/8,192.168.1.5")

	cfg, err := Load()
	require.NoError(t, err)
	require.Equal(t, 9090, cfg.ServerPort)
	require.Equal(t, []string{"https://shop.example.com", "https://admin.example.com"}, cfg.CORSAllowedOrigins)
	require.Equal(t, 30*time.Second, cfg.StatsInterval)
	require.Equal(t, 3, cfg.LoginRateLimit)
	require.Equal(t, []string{"10.0.0.0/8", "192.168.1.5"}, cfg.TrustedProxies)

	db := cfg.Database()
	require.Equal(t, StorePostgres, db.Driver)
	require.Equal(t, cfg.DatabaseURL, db.URL)
}

func TestLoadRejects(t *testing.T) {
	tests := []struct {
		name string
		env  map[string]string
	}{
		{"unknown driver", map[string]string{"STORE_DRIVER": "mongo"}},
		{"postgres without url", map[string]string{"STORE_DRIVER": "postgres"}},
		{"zero upload limit", map[string]string{"UPLOAD_MAX_BYTES": "0"}},
		{"negative login limit", map[string]string{"LOGIN_RATE_LIMIT": "-1"}},
		{"production without secret", map[string]string{"ENVIRONMENT": "production"}},
		{"malformed duration", map[string]string{"JWT_EXPIRY": "soon"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for k, v := range tt.env {
				t.Setenv(k, v)
			}
			_, err := Load()
			require.Error(t, err)
		})
	}
}

func TestProductionWithSecret(t *testing.T) {
	t.Setenv("ENVIRONMENT", "production")
	t.Setenv("JWT_SECRET", "a-long-production-secret")

	cfg, err := Load()
	require.NoError(t, err)
	require.True(t, cfg.IsProduction())
}
