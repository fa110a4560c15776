package config

import "os"

// Secrets are also accepted from the environment so they stay out of
// process listings and config files.
const (
	EnvBotToken       = "RELAY_BOT_TOKEN"
	EnvMasterPassword = "RELAY_MASTER_PASSWORD"
	EnvAdminSecret    = "RELAY_ADMIN_SECRET"
	EnvDatabaseDSN    = "RELAY_DATABASE_DSN"
)

func parseEnv(config *Config) {
	setString(&config.BotToken, os.Getenv(EnvBotToken))
	setString(&config.MasterPassword, os.Getenv(EnvMasterPassword))
	setString(&config.AdminSecret, os.Getenv(EnvAdminSecret))
	setString(&config.DatabaseDSN, os.Getenv(EnvDatabaseDSN))
}
