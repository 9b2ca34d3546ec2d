package app

import "time"

// Config contains all runtime configuration loaded from environment variables.
type Config struct {
	HTTPAddr  string
	LogLevel  string
	LogFormat string

	ReadHeaderTimeout time.Duration
	ReadTimeout       time.Duration
	WriteTimeout      time.Duration
	IdleTimeout       time.Duration
	MaxHeaderBytes    int

	DatabaseURL string
	DBMaxConns  int32
	DBMinConns  int32

	// If true, embedded migrations run at startup before serving.
	DBMigrate bool

	// If true, /readyz returns 503 unless the DB is configured and reachable.
	ReadinessRequireDB bool

	// Security policy:
	// If true, SOLE_TOKEN_HMAC_KEY MUST be set (>= 32 bytes) and session-token
	// hashing must be HMAC-based.
	RequireTokenHMAC bool

	// DevUsers seeds the in-memory identity verifier when no DB is configured.
	// Format: "alice:password1,bob:password2".
	DevUsers []string
}

// LoadConfig loads Config from environment variables with defaults.
func LoadConfig() Config {
	return Config{
		HTTPAddr:  EnvString("SOLE_HTTP_ADDR", "0.0.0.0:8080"),
		LogLevel:  EnvString("SOLE_LOG_LEVEL", "info"),
		LogFormat: EnvString("SOLE_LOG_FORMAT", "json"),

		ReadHeaderTimeout: EnvDuration("SOLE_HTTP_READ_HEADER_TIMEOUT", 5*time.Second),
		ReadTimeout:       EnvDuration("SOLE_HTTP_READ_TIMEOUT", 15*time.Second),
		WriteTimeout:      EnvDuration("SOLE_HTTP_WRITE_TIMEOUT", 15*time.Second),
		IdleTimeout:       EnvDuration("SOLE_HTTP_IDLE_TIMEOUT", 60*time.Second),

		MaxHeaderBytes: EnvInt("SOLE_HTTP_MAX_HEADER_BYTES", 1<<20),

		DatabaseURL: EnvString("SOLE_DATABASE_URL", ""),
		DBMaxConns:  EnvInt32("SOLE_DB_MAX_CONNS", 10),
		DBMinConns:  EnvInt32("SOLE_DB_MIN_CONNS", 0),
		DBMigrate:   EnvBool("SOLE_DB_MIGRATE", false),

		ReadinessRequireDB: EnvBool("SOLE_READINESS_REQUIRE_DB", false),

		RequireTokenHMAC: EnvBool("SOLE_REQUIRE_TOKEN_HMAC", false),

		DevUsers: EnvCSV("SOLE_DEV_USERS", nil),
	}
}
