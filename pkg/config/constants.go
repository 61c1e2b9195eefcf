package config

// EnvPrefix is passed to envconfig; individual fields carry explicit names so
// the prefix only matters for fields without tags.
const EnvPrefix = "MONKE"

const (
	AppEnvDev  = "dev"
	AppEnvProd = "production"
)

// Environment variable names referenced outside struct tags (tests, error
// messages).
const (
	EnvAppEnv       = "MONKE_APP_ENV"
	EnvPort         = "MONKE_APP_PORT"
	EnvDBDSN        = "MONKE_DB_DSN"
	EnvDBHost       = "MONKE_DB_HOST"
	EnvDBUser       = "MONKE_DB_USER"
	EnvDBName       = "MONKE_DB_NAME"
	EnvRedisURL     = "MONKE_REDIS_URL"
	EnvGCPProjectID = "MONKE_GCP_PROJECT_ID"

	EnvPubSubDomainTopic = "MONKE_PUBSUB_DOMAIN_TOPIC"
	EnvPubSubDomainSub   = "MONKE_PUBSUB_DOMAIN_SUBSCRIPTION"
)

var legacyDBEnvVars = []string{EnvDBHost, EnvDBUser, EnvDBName}
