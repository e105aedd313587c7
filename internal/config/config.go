package config

import (
	"encoding/hex"
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

type Config struct {
	AppPort     string
	CORSOrigins string

	DBDriver string
	DBDSN    string

	JWTSecret     string
	JWTExpiresMin int
	// CredentialKey seals wallet signing keys at rest.
	CredentialKey []byte

	RedisAddr     string
	RedisPassword string
	RedisDB       int

	LockBackend string
	LockTTL     time.Duration

	LedgerRPCURL           string
	LedgerChainID          int64
	LedgerContractArtifact string
	LedgerTimeout          time.Duration
	LedgerGasLimit         uint64

	LogLevel  string
	LogFormat string

	GoogleClientID  string
	GoogleSecret    string
	GoogleRedirect  string
	FrontendBaseURL string
}

// Load reads .env when present, then the process environment.
func Load() (Config, error) {
	_ = godotenv.Load()
	return FromViper(viper.New())
}

// FromViper resolves the configuration from v with environment overrides applied.
func FromViper(v *viper.Viper) (Config, error) {
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()
	setDefaults(v)

	cfg := Config{
		AppPort:                v.GetString("APP_PORT"),
		CORSOrigins:            v.GetString("CORS_ORIGINS"),
		DBDriver:               strings.ToLower(v.GetString("DB_DRIVER")),
		DBDSN:                  v.GetString("DB_DSN"),
		JWTSecret:              v.GetString("JWT_SECRET"),
		JWTExpiresMin:          v.GetInt("JWT_EXPIRES_MIN"),
		RedisAddr:              v.GetString("REDIS_ADDR"),
		RedisPassword:          v.GetString("REDIS_PASSWORD"),
		RedisDB:                v.GetInt("REDIS_DB"),
		LockBackend:            strings.ToLower(v.GetString("LOCK_BACKEND")),
		LockTTL:                v.GetDuration("LOCK_TTL"),
		LedgerRPCURL:           v.GetString("LEDGER_RPC_URL"),
		LedgerChainID:          v.GetInt64("LEDGER_CHAIN_ID"),
		LedgerContractArtifact: v.GetString("LEDGER_CONTRACT_ARTIFACT"),
		LedgerTimeout:          v.GetDuration("LEDGER_TIMEOUT"),
		LedgerGasLimit:         v.GetUint64("LEDGER_GAS_LIMIT"),
		LogLevel:               v.GetString("LOG_LEVEL"),
		LogFormat:              v.GetString("LOG_FORMAT"),
		GoogleClientID:         v.GetString("GOOGLE_CLIENT_ID"),
		GoogleSecret:           v.GetString("GOOGLE_CLIENT_SECRET"),
		GoogleRedirect:         v.GetString("GOOGLE_REDIRECT_URL"),
		FrontendBaseURL:        v.GetString("FRONTEND_BASE_URL"),
	}

	key, err := parseCredentialKey(v.GetString("CREDENTIAL_KEY"))
	if err != nil {
		return Config{}, err
	}
	cfg.CredentialKey = key

	if err := cfg.validate(); err != nil {
		return Config{}, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("APP_PORT", "8080")
	v.SetDefault("CORS_ORIGINS", "http://127.0.0.1:3000, http://localhost:3000")
	v.SetDefault("DB_DRIVER", "postgres")
	v.SetDefault("JWT_EXPIRES_MIN", 10080)
	v.SetDefault("REDIS_ADDR", "localhost:6379")
	v.SetDefault("REDIS_DB", 0)
	v.SetDefault("LOCK_BACKEND", "memory")
	v.SetDefault("LOCK_TTL", "5m")
	v.SetDefault("LEDGER_RPC_URL", "http://127.0.0.1:8545")
	v.SetDefault("LEDGER_CHAIN_ID", 0)
	v.SetDefault("LEDGER_CONTRACT_ARTIFACT", "contracts/FreelanceContract.json")
	v.SetDefault("LEDGER_TIMEOUT", "2m")
	v.SetDefault("LEDGER_GAS_LIMIT", 2000000)
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("LOG_FORMAT", "json")
	v.SetDefault("FRONTEND_BASE_URL", "http://localhost:3000")
}

func (c Config) validate() error {
	if c.DBDSN == "" {
		return fmt.Errorf("missing env: DB_DSN")
	}
	if c.JWTSecret == "" {
		return fmt.Errorf("missing env: JWT_SECRET")
	}
	switch c.DBDriver {
	case "postgres", "sqlite":
	default:
		return fmt.Errorf("DB_DRIVER must be postgres or sqlite, got %q", c.DBDriver)
	}
	switch c.LockBackend {
	case "memory", "redis":
	default:
		return fmt.Errorf("LOCK_BACKEND must be memory or redis, got %q", c.LockBackend)
	}
	if c.LedgerTimeout <= 0 {
		return fmt.Errorf("LEDGER_TIMEOUT must be positive")
	}
	if c.LockBackend == "redis" && c.LockTTL <= c.LedgerTimeout {
		return fmt.Errorf("LOCK_TTL (%s) must exceed LEDGER_TIMEOUT (%s)", c.LockTTL, c.LedgerTimeout)
	}
	return nil
}

// parseCredentialKey accepts 32 raw bytes or 64 hex characters.
func parseCredentialKey(raw string) ([]byte, error) {
	raw = strings.TrimSpace(raw)
	switch {
	case raw == "":
		return nil, fmt.Errorf("missing env: CREDENTIAL_KEY")
	case len(raw) == 64:
		b, err := hex.DecodeString(raw)
		if err != nil {
			return nil, fmt.Errorf("CREDENTIAL_KEY: %w", err)
		}
		return b, nil
	case len(raw) == 32:
		return []byte(raw), nil
	default:
		return nil, fmt.Errorf("CREDENTIAL_KEY must be 32 bytes or 64 hex characters")
	}
}
