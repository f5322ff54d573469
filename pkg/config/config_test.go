package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm/logger"
)

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("SYNC_INTERVAL", "")
	t.Setenv("OFFLINE_STORE", "memory")

	cfg, err := Load("crm-api")
	require.NoError(t, err)

	assert.Equal(t, "crm-api", cfg.ServiceName)
	assert.Equal(t, "8080", cfg.Server.Port)
	assert.Equal(t, 5*time.Minute, cfg.Sync.Interval)
	assert.Equal(t, "memory", cfg.Sync.Store)
	assert.Equal(t, 15*time.Second, cfg.Twenty.Timeout)
}

func TestLoad_Overrides(t *testing.T) {
	t.Setenv("OFFLINE_STORE", "redis")
	t.Setenv("SYNC_INTERVAL", "90s")
	t.Setenv("SYNC_COMPANY_ID", "42")
	t.Setenv("DB_LOG_LEVEL", "silent")
	t.Setenv("ENCRYPTION_KEY", "k")

	cfg, err := Load("lead-sync")
	require.NoError(t, err)

	assert.Equal(t, 90*time.Second, cfg.Sync.Interval)
	assert.Equal(t, uint(42), cfg.Sync.CompanyID)
	assert.Equal(t, logger.Silent, cfg.DB.LogLevel)
	assert.Equal(t, "k", cfg.EncryptionKey)
}

func TestLoad_RejectsUnknownStore(t *testing.T) {
	t.Setenv("OFFLINE_STORE", "indexeddb")

	_, err := Load("lead-sync")
	require.Error(t, err)
}

func TestGetDSN(t *testing.T) {
	c := DBConfig{Host: "db", Port: "5432", User: "u", Password: "p", DBName: "crm", SSLMode: "disable"}
	assert.Equal(t, "host=db port=5432 user=u password=p dbname=crm sslmode=disable", c.GetDSN())
}

func TestLoad_ReportsMalformedValues(t *testing.T) {
	t.Setenv("OFFLINE_STORE", "memory")
	t.Setenv("SYNC_INTERVAL", "often")
	t.Setenv("REDIS_DB", "-1")

	_, err := Load("lead-sync")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "SYNC_INTERVAL")
	assert.Contains(t, err.Error(), "REDIS_DB")
}

func TestGetDSN_PrefersURL(t *testing.T) {
	c := DBConfig{URL: "postgres://u:p@db/crm", Host: "ignored"}
	assert.Equal(t, "postgres://u:p@db/crm", c.GetDSN())
}
