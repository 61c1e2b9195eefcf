package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
)

type Config struct {
	App          AppConfig
	Service      ServiceConfig
	DB           DBConfig
	Redis        RedisConfig
	GroupDeals   GroupDealsConfig
	FeatureFlags FeatureFlagsConfig
	GCP          GCPConfig
	PubSub       PubSubConfig
	Outbox       OutboxConfig
	Sweep        SweepConfig
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
	Env          string `envconfig:"MONKE_APP_ENV" required:"true"`
	Port         string `envconfig:"MONKE_APP_PORT" required:"true"`
	LogLevel     string `envconfig:"MONKE_LOG_LEVEL" default:"info"`
	LogWarnStack bool   `envconfig:"MONKE_LOG_WARN_STACK" default:"false"`
}

func (a AppConfig) IsDev() bool {
	return strings.EqualFold(a.Env, AppEnvDev)
}

func (a AppConfig) IsProd() bool {
	return strings.EqualFold(a.Env, AppEnvProd)
}

type ServiceConfig struct {
	Kind string `envconfig:"MONKE_SERVICE_KIND" default:"api"`
}

type DBConfig struct {
	DSN    string `envconfig:"MONKE_DB_DSN"`
	Driver string `envconfig:"MONKE_DB_DRIVER" default:"postgres"`

	LegacyHost     string `envconfig:"MONKE_DB_HOST"`
	LegacyPort     int    `envconfig:"MONKE_DB_PORT" default:"5432"`
	LegacyUser     string `envconfig:"MONKE_DB_USER"`
	LegacyPassword string `envconfig:"MONKE_DB_PASSWORD"`
	LegacyName     string `envconfig:"MONKE_DB_NAME"`
	LegacySSLMode  string `envconfig:"MONKE_DB_SSLMODE" default:"disable"`

	MaxOpenConns    int           `envconfig:"MONKE_DB_MAX_OPEN_CONNS" default:"20"`
	MaxIdleConns    int           `envconfig:"MONKE_DB_MAX_IDLE_CONNS" default:"10"`
	ConnMaxLifetime time.Duration `envconfig:"MONKE_DB_CONN_MAX_LIFETIME" default:"1h"`
	ConnMaxIdleTime time.Duration `envconfig:"MONKE_DB_CONN_MAX_IDLE_TIME" default:"10m"`
}

type RedisConfig struct {
	URL          string        `envconfig:"MONKE_REDIS_URL" required:"true"`
	Address      string        `envconfig:"MONKE_REDIS_ADDR"`
	Password     string        `envconfig:"MONKE_REDIS_PASSWORD"`
	DB           int           `envconfig:"MONKE_REDIS_DB" default:"0"`
	PoolSize     int           `envconfig:"MONKE_REDIS_POOL_SIZE" default:"10"`
	MinIdleConns int           `envconfig:"MONKE_REDIS_MIN_IDLE_CONNS" default:"2"`
	DialTimeout  time.Duration `envconfig:"MONKE_REDIS_DIAL_TIMEOUT" default:"5s"`
	ReadTimeout  time.Duration `envconfig:"MONKE_REDIS_READ_TIMEOUT" default:"5s"`
	WriteTimeout time.Duration `envconfig:"MONKE_REDIS_WRITE_TIMEOUT" default:"5s"`
}

// GroupDealsConfig tunes the group deal engine. The momentum values are
// product constants surfaced as env knobs; keep the defaults unless product
// says otherwise.
type GroupDealsConfig struct {
	MinParticipantsDefault int           `envconfig:"MONKE_GROUP_MIN_PARTICIPANTS" default:"2"`
	MomentumWindowRatio    float64       `envconfig:"MONKE_GROUP_MOMENTUM_WINDOW_RATIO" default:"0.25"`
	MomentumBonusPoints    int           `envconfig:"MONKE_GROUP_MOMENTUM_BONUS_POINTS" default:"2"`
	LockWaitTimeout        time.Duration `envconfig:"MONKE_GROUP_LOCK_WAIT_TIMEOUT" default:"5s"`
	DefaultGroupTTL        time.Duration `envconfig:"MONKE_GROUP_DEFAULT_TTL" default:"72h"`
}

type FeatureFlagsConfig struct {
	AutoMigrate bool `envconfig:"MONKE_AUTO_MIGRATE" default:"false"`
}

type GCPConfig struct {
	ProjectID              string `envconfig:"MONKE_GCP_PROJECT_ID" required:"true"`
	CredentialsJSON        string `envconfig:"MONKE_GCP_CREDENTIALS_JSON"`
	ApplicationCredentials string `envconfig:"MONKE_GOOGLE_APPLICATION_CREDENTIALS"`
}

type PubSubConfig struct {
	DomainTopic        string `envconfig:"MONKE_PUBSUB_DOMAIN_TOPIC" required:"true"`
	DomainSubscription string `envconfig:"MONKE_PUBSUB_DOMAIN_SUBSCRIPTION" required:"true"`
}

type OutboxConfig struct {
	BatchSize      int           `envconfig:"MONKE_OUTBOX_PUBLISH_BATCH_SIZE" default:"50"`
	PollIntervalMS int           `envconfig:"MONKE_OUTBOX_PUBLISH_POLL_MS" default:"500"`
	MaxAttempts    int           `envconfig:"MONKE_OUTBOX_MAX_ATTEMPTS" default:"10"`
	IdempotencyTTL time.Duration `envconfig:"MONKE_OUTBOX_IDEMPOTENCY_TTL" default:"24h"`
}

// SweepConfig drives the expiry sweep worker cadence.
type SweepConfig struct {
	Interval  time.Duration `envconfig:"MONKE_SWEEP_INTERVAL" default:"1m"`
	BatchSize int           `envconfig:"MONKE_SWEEP_BATCH_SIZE" default:"100"`
	LockTTL   time.Duration `envconfig:"MONKE_SWEEP_LOCK_TTL" default:"5m"`
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
