package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
)

type Config struct {
	App           AppConfig
	DB            DBConfig
	Redis         RedisConfig
	JWT           JWTConfig
	Password      PasswordConfig
	AuthRateLimit AuthRateLimitConfig
	FeatureFlags  FeatureFlagsConfig
	Scheduler     SchedulerConfig
	Google        GoogleConfig
	Razorpay      RazorpayConfig
	Sendgrid      SendgridConfig
	CORS          CORSConfig
}

func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process(EnvPrefix, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	if err := cfg.DB.ensureDSN(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

type AppConfig struct {
	Env          string `envconfig:"POSTPILOT_APP_ENV" required:"true"`
	Port         string `envconfig:"POSTPILOT_APP_PORT" required:"true"`
	MetricsPort  string `envconfig:"POSTPILOT_METRICS_PORT" default:"9100"`
	LogLevel     string `envconfig:"POSTPILOT_LOG_LEVEL" default:"info"`
	LogWarnStack bool   `envconfig:"POSTPILOT_LOG_WARN_STACK" default:"false"`
}

func (a AppConfig) IsDev() bool {
	return strings.EqualFold(a.Env, AppEnvDev)
}

func (a AppConfig) IsProd() bool {
	return strings.EqualFold(a.Env, AppEnvProd)
}

type DBConfig struct {
	DSN    string `envconfig:"POSTPILOT_DB_DSN"`
	Driver string `envconfig:"POSTPILOT_DB_DRIVER" default:"postgres"`

	LegacyHost     string `envconfig:"POSTPILOT_DB_HOST"`
	LegacyPort     int    `envconfig:"POSTPILOT_DB_PORT" default:"5432"`
	LegacyUser     string `envconfig:"POSTPILOT_DB_USER"`
	LegacyPassword string `envconfig:"POSTPILOT_DB_PASSWORD"`
	LegacyName     string `envconfig:"POSTPILOT_DB_NAME"`
	LegacySSLMode  string `envconfig:"POSTPILOT_DB_SSLMODE" default:"disable"`

	MaxOpenConns    int           `envconfig:"POSTPILOT_DB_MAX_OPEN_CONNS" default:"20"`
	MaxIdleConns    int           `envconfig:"POSTPILOT_DB_MAX_IDLE_CONNS" default:"10"`
	ConnMaxLifetime time.Duration `envconfig:"POSTPILOT_DB_CONN_MAX_LIFETIME" default:"1h"`
	ConnMaxIdleTime time.Duration `envconfig:"POSTPILOT_DB_CONN_MAX_IDLE_TIME" default:"10m"`
}

type RedisConfig struct {
	URL          string        `envconfig:"POSTPILOT_REDIS_URL" required:"true"`
	Address      string        `envconfig:"POSTPILOT_REDIS_ADDR"`
	Password     string        `envconfig:"POSTPILOT_REDIS_PASSWORD"`
	DB           int           `envconfig:"POSTPILOT_REDIS_DB" default:"0"`
	PoolSize     int           `envconfig:"POSTPILOT_REDIS_POOL_SIZE" default:"10"`
	MinIdleConns int           `envconfig:"POSTPILOT_REDIS_MIN_IDLE_CONNS" default:"2"`
	DialTimeout  time.Duration `envconfig:"POSTPILOT_REDIS_DIAL_TIMEOUT" default:"5s"`
	ReadTimeout  time.Duration `envconfig:"POSTPILOT_REDIS_READ_TIMEOUT" default:"5s"`
	WriteTimeout time.Duration `envconfig:"POSTPILOT_REDIS_WRITE_TIMEOUT" default:"5s"`
}

type JWTConfig struct {
	Secret                 string `envconfig:"POSTPILOT_JWT_SECRET" required:"true"`
	Issuer                 string `envconfig:"POSTPILOT_JWT_ISSUER" required:"true"`
	ExpirationMinutes      int    `envconfig:"POSTPILOT_JWT_EXPIRATION_MINUTES" required:"true"`
	RefreshTokenTTLMinutes int    `envconfig:"POSTPILOT_REFRESH_TOKEN_TTL_MINUTES" default:"43200"`
}

// RefreshTokenTTL returns the refresh token TTL configured in minutes.
func (j JWTConfig) RefreshTokenTTL() time.Duration {
	if j.RefreshTokenTTLMinutes <= 0 {
		return 0
	}
	return time.Duration(j.RefreshTokenTTLMinutes) * time.Minute
}

type PasswordConfig struct {
	ArgonMemoryKB    int `envconfig:"POSTPILOT_ARGON_MEMORY_KB" default:"65536"`
	ArgonTime        int `envconfig:"POSTPILOT_ARGON_TIME" default:"3"`
	ArgonParallelism int `envconfig:"POSTPILOT_ARGON_PARALLELISM" default:"2"`
	ArgonSaltLen     int `envconfig:"POSTPILOT_ARGON_SALT_LEN" default:"16"`
	ArgonKeyLen      int `envconfig:"POSTPILOT_ARGON_KEY_LEN" default:"32"`
}

type AuthRateLimitConfig struct {
	LoginWindow        time.Duration `envconfig:"POSTPILOT_AUTH_RATE_LIMIT_LOGIN_WINDOW" default:"1m"`
	LoginEmailLimit    int           `envconfig:"POSTPILOT_AUTH_RATE_LIMIT_LOGIN_EMAIL_LIMIT" default:"5"`
	LoginIPLimit       int           `envconfig:"POSTPILOT_AUTH_RATE_LIMIT_LOGIN_IP_LIMIT" default:"20"`
	RegisterWindow     time.Duration `envconfig:"POSTPILOT_AUTH_RATE_LIMIT_REGISTER_WINDOW" default:"5m"`
	RegisterEmailLimit int           `envconfig:"POSTPILOT_AUTH_RATE_LIMIT_REGISTER_EMAIL_LIMIT" default:"3"`
	RegisterIPLimit    int           `envconfig:"POSTPILOT_AUTH_RATE_LIMIT_REGISTER_IP_LIMIT" default:"20"`
}

type FeatureFlagsConfig struct {
	AutoMigrate bool `envconfig:"POSTPILOT_AUTO_MIGRATE" default:"false"`
}

// SchedulerConfig drives the dispatcher worker.
type SchedulerConfig struct {
	// Timezone is the IANA zone all HH:MM schedules are interpreted in.
	Timezone        string        `envconfig:"POSTPILOT_SCHEDULER_TIMEZONE" default:"Asia/Kolkata"`
	PollInterval    time.Duration `envconfig:"POSTPILOT_SCHEDULER_POLL_INTERVAL" default:"1m"`
	LookAheadWindow time.Duration `envconfig:"POSTPILOT_SCHEDULER_LOOKAHEAD_WINDOW" default:"2h"`
	DedupeTTL       time.Duration `envconfig:"POSTPILOT_SCHEDULER_DEDUPE_TTL" default:"10m"`
	TrialDays       int           `envconfig:"POSTPILOT_TRIAL_DAYS" default:"14"`
}

type GoogleConfig struct {
	OAuthClientID     string `envconfig:"POSTPILOT_GOOGLE_OAUTH_CLIENT_ID"`
	OAuthClientSecret string `envconfig:"POSTPILOT_GOOGLE_OAUTH_CLIENT_SECRET"`
	OAuthRedirectURL  string `envconfig:"POSTPILOT_GOOGLE_OAUTH_REDIRECT_URL"`
	BusinessAPIBase   string `envconfig:"POSTPILOT_GOOGLE_BUSINESS_API_BASE" default:"https://mybusiness.googleapis.com/v4"`
}

type RazorpayConfig struct {
	KeyID         string `envconfig:"POSTPILOT_RAZORPAY_KEY_ID"`
	KeySecret     string `envconfig:"POSTPILOT_RAZORPAY_KEY_SECRET"`
	WebhookSecret string `envconfig:"POSTPILOT_RAZORPAY_WEBHOOK_SECRET"`
}

type SendgridConfig struct {
	APIKey      string `envconfig:"POSTPILOT_SENDGRID_API_KEY"`
	DefaultFrom string `envconfig:"POSTPILOT_SENDGRID_FROM_EMAIL"`
}

type CORSConfig struct {
	AllowedOrigins []string `envconfig:"POSTPILOT_CORS_ALLOWED_ORIGINS" default:"http://localhost:3000"`
}

func (db *DBConfig) ensureDSN() error {
	if db.DSN != "" {
		return nil
	}

	missing := []string{}
	legacyValues := map[string]string{
		EnvDBHost: db.LegacyHost,
		EnvDBUser: db.LegacyUser,
		EnvDBName: db.LegacyName,
	}
	for _, env := range legacyDBEnvVars {
		if legacyValues[env] == "" {
			missing = append(missing, env)
		}
	}

	if len(missing) > 0 {
		return fmt.Errorf("either %s or %s are required", EnvDBDSN, strings.Join(missing, ", "))
	}

	userInfo := url.User(db.LegacyUser)
	if db.LegacyPassword != "" {
		userInfo = url.UserPassword(db.LegacyUser, db.LegacyPassword)
	}

	u := &url.URL{
		Scheme: "postgres",
		User:   userInfo,
		Host:   fmt.Sprintf("%s:%d", db.LegacyHost, db.LegacyPort),
		Path:   db.LegacyName,
	}

	if db.LegacySSLMode != "" {
		q := u.Query()
		q.Set("sslmode", db.LegacySSLMode)
		u.RawQuery = q.Encode()
	}

	db.DSN = u.String()
	return nil
}
