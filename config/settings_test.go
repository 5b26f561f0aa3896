package config

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	s, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, "8080", s.Server.Port)
	assert.Equal(t, "3306", s.Database.Port)
	assert.False(t, s.Redis.Enabled)
	assert.Equal(t, 5*time.Minute, s.Redis.CacheTTL)
	assert.Equal(t, 4, s.Scoring.ReEvaluationWorkers)
	assert.Equal(t, "scoring_reevaluation_batch", s.Scoring.BatchLockName)
	assert.Equal(t, 30*time.Second, s.Scoring.ItemTimeout)
	assert.Equal(t, 6, s.Scoring.TimelineMonths)
	assert.False(t, s.IsProduction())
}

func TestLoadEnvironmentOverrides(t *testing.T) {
	t.Setenv("ENVIRONMENT", "Production")
	t.Setenv("DB_HOST", "db.internal")
	t.Setenv("JWT_SECRET", "s3cret")
	t.Setenv("REDIS_ENABLED", "true")
	t.Setenv("ANALYTICS_CACHE_TTL", "2m")
	t.Setenv("REEVALUATION_WORKERS", "0")
	t.Setenv("REEVALUATION_ITEM_TIMEOUT", "45s")

	s, err := Load("")
	require.NoError(t, err)

	assert.True(t, s.IsProduction())
	assert.Equal(t, "db.internal", s.Database.Host)
	assert.Equal(t, "s3cret", s.Auth.JWTSecret)
	assert.True(t, s.Redis.Enabled)
	assert.Equal(t, 2*time.Minute, s.Redis.CacheTTL)
	assert.Equal(t, 1, s.Scoring.ReEvaluationWorkers)
	assert.Equal(t, 45*time.Second, s.Scoring.ItemTimeout)
}

func TestLoadConfigFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "scoring.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
server:
  port: "9090"
database:
  database: challenge
  username: scorer
scoring:
  timeline_months: 12
`), 0o600))
	t.Setenv("SERVER_PORT", "7070")

	s, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "7070", s.Server.Port, "environment wins over the file")
	assert.Equal(t, 12, s.Scoring.TimelineMonths)
	assert.Contains(t, s.Database.DSN(), "scorer:@tcp(127.0.0.1:3306)/challenge?")
	assert.Contains(t, s.Database.DSN(), "parseTime=True")

	_, err = Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

func TestNewRedis(t *testing.T) {
	mr := miniredis.RunT(t)

	client, err := NewRedis(context.Background(), RedisSettings{Address: mr.Addr()})
	require.NoError(t, err)
	defer client.Close()
	assert.NoError(t, client.Set(context.Background(), "k", "v", 0).Err())

	addr := mr.Addr()
	mr.Close()
	_, err = NewRedis(context.Background(), RedisSettings{Address: addr})
	assert.Error(t, err)
}
