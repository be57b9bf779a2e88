package config

// EnvPrefix is the envconfig prefix applied to all variables.
const EnvPrefix = "POSTPILOT"

const (
	AppEnvDev  = "dev"
	AppEnvProd = "prod"
)

const (
	EnvDBDSN  = "POSTPILOT_DB_DSN"
	EnvDBHost = "POSTPILOT_DB_HOST"
	EnvDBUser = "POSTPILOT_DB_USER"
	EnvDBName = "POSTPILOT_DB_NAME"
)

var legacyDBEnvVars = []string{EnvDBHost, EnvDBUser, EnvDBName}
