package app

import (
	"time"

	"github.com/icuxika/deepseek-api-open-platform-simulation/cmd/internal/oauth"
)

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

	// If true:
	// - /readyz returns 503 unless DB is configured and reachable.
	ReadinessRequireDB bool

	JWTSecret string
	JWTIssuer string
	JWTTTL    time.Duration

	Gitee  oauth.Config
	GitHub oauth.Config

	// CORSOrigins lists the browser origins allowed to call the API.
	// Empty means CORS headers are not emitted.
	CORSOrigins []string
}

// LoadConfig loads Config from environment variables with defaults.
func LoadConfig() Config {
	return Config{
		HTTPAddr:  EnvString("DSP_HTTP_ADDR", "0.0.0.0:8080"),
		LogLevel:  EnvString("DSP_LOG_LEVEL", "info"),
		LogFormat: EnvString("DSP_LOG_FORMAT", "json"),

		ReadHeaderTimeout: EnvDuration("DSP_HTTP_READ_HEADER_TIMEOUT", 5*time.Second),
		ReadTimeout:       EnvDuration("DSP_HTTP_READ_TIMEOUT", 15*time.Second),
		WriteTimeout:      EnvDuration("DSP_HTTP_WRITE_TIMEOUT", 15*time.Second),
		IdleTimeout:       EnvDuration("DSP_HTTP_IDLE_TIMEOUT", 60*time.Second),

		MaxHeaderBytes: EnvInt("DSP_HTTP_MAX_HEADER_BYTES", 1<<20),

		DatabaseURL: EnvString("DSP_DATABASE_URL", ""),
		DBMaxConns:  EnvInt32("DSP_DB_MAX_CONNS", 10),
		DBMinConns:  EnvInt32("DSP_DB_MIN_CONNS", 0),

		ReadinessRequireDB: EnvBool("DSP_READINESS_REQUIRE_DB", false),

		JWTSecret: EnvString("DSP_JWT_SECRET", ""),
		JWTIssuer: EnvString("DSP_JWT_ISSUER", "deepseek-platform"),
		JWTTTL:    EnvDuration("DSP_JWT_TTL", 24*time.Hour),

		Gitee: oauth.Config{
			ClientID:     EnvString("DSP_OAUTH_GITEE_CLIENT_ID", ""),
			ClientSecret: EnvString("DSP_OAUTH_GITEE_CLIENT_SECRET", ""),
			RedirectURI:  EnvString("DSP_OAUTH_GITEE_REDIRECT_URI", ""),
		},
		GitHub: oauth.Config{
			ClientID:     EnvString("DSP_OAUTH_GITHUB_CLIENT_ID", ""),
			ClientSecret: EnvString("DSP_OAUTH_GITHUB_CLIENT_SECRET", ""),
			RedirectURI:  EnvString("DSP_OAUTH_GITHUB_REDIRECT_URI", ""),
		},

		CORSOrigins: EnvStrings("DSP_CORS_ORIGINS", nil),
	}
}
