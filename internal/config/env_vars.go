package config

import "os"

const (
	envPrefix         = "BFF"
	configFileEnvVar  = "BFF_CONFIG_FILE"
	envFileEnvVar     = "BFF_ENV_FILE"
	defaultConfigFile = "main-config.toml"
	defaultEnvFile    = ".env"
)

func GetEnv(envVar, defaultValue string) string {
	value := os.Getenv(envVar)
	if value == "" {
		return defaultValue
	}
	return value
}
