package config

import (
	"strings"
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setRequired(t *testing.T) {
	t.Setenv("DB_DSN", "file::memory:")
	t.Setenv("JWT_SECRET", "secret")
	t.Setenv("CREDENTIAL_KEY", strings.Repeat("ab", 32))
}

func TestDefaults(t *testing.T) {
	setRequired(t)

	cfg, err := FromViper(viper.New())
	require.NoError(t, err)

	assert.Equal(t, "8080", cfg.AppPort)
	assert.Equal(t, "postgres", cfg.DBDriver)
	assert.Equal(t, 10080, cfg.JWTExpiresMin)
	assert.Equal(t, "memory", cfg.LockBackend)
	assert.Equal(t, 5*time.Minute, cfg.LockTTL)
	assert.Equal(t, 2*time.Minute, cfg.LedgerTimeout)
	assert.Equal(t, uint64(2000000), cfg.LedgerGasLimit)
	assert.Equal(t, "http://127.0.0.1:8545", cfg.LedgerRPCURL)
	assert.Len(t, cfg.CredentialKey, 32)
}

func TestEnvironmentOverrides(t *testing.T) {
	setRequired(t)
	t.Setenv("DB_DRIVER", "SQLITE")
	t.Setenv("LOCK_BACKEND", "redis")
	t.Setenv("LOCK_TTL", "10m")
	t.Setenv("LEDGER_TIMEOUT", "30s")
	t.Setenv("LEDGER_CHAIN_ID", "1337")
	t.Setenv("CREDENTIAL_KEY", "0123456789abcdef0123456789abcdef")

	cfg, err := FromViper(viper.New())
	require.NoError(t, err)

	assert.Equal(t, "sqlite", cfg.DBDriver)
	assert.Equal(t, "redis", cfg.LockBackend)
	assert.Equal(t, 30*time.Second, cfg.LedgerTimeout)
	assert.Equal(t, int64(1337), cfg.LedgerChainID)
	assert.Equal(t, []byte("0123456789abcdef0123456789abcdef"), cfg.CredentialKey)
}

func TestMissingRequired(t *testing.T) {
	t.Setenv("DB_DSN", "")
	t.Setenv("JWT_SECRET", "secret")
	t.Setenv("CREDENTIAL_KEY", strings.Repeat("ab", 32))

	_, err := FromViper(viper.New())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "DB_DSN")
}

func TestBadCredentialKey(t *testing.T) {
	setRequired(t)
	t.Setenv("CREDENTIAL_KEY", "short")

	_, err := FromViper(viper.New())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "CREDENTIAL_KEY")
}

func TestRedisLockTTLMustExceedLedgerTimeout(t *testing.T) {
	setRequired(t)
	t.Setenv("LOCK_BACKEND", "redis")
	t.Setenv("LOCK_TTL", "1m")
	t.Setenv("LEDGER_TIMEOUT", "2m")

	_, err := FromViper(viper.New())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "LOCK_TTL")
}
