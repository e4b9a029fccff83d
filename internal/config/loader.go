package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	bfferrors "github.com/jrsteele09/go-oidc-bff/internal/errors"
	"github.com/spf13/viper"
)

// LoaderConfig holds optional file overrides for Load
type LoaderConfig struct {
	ConfigFile string // explicit config file; a missing explicit file is an error
	EnvFile    string // explicit .env file
}

// LoaderOption is a functional option for Load.
type LoaderOption func(*LoaderConfig)

// WithConfigFile sets an explicit config file path.
func WithConfigFile(path string) LoaderOption {
	return func(lc *LoaderConfig) { lc.ConfigFile = path }
}

// WithEnvFile sets an explicit .env file path.
func WithEnvFile(path string) LoaderOption {
	return func(lc *LoaderConfig) { lc.EnvFile = path }
}

// Load reads the configuration file (TOML, YAML or JSON by extension), then a .env file,
// then BFF_* environment variables, applies defaults and validates the result.
func Load(opts ...LoaderOption) (Config, error) {
	settings, err := LoadSettings(opts...)
	if err != nil {
		return nil, err
	}
	return New(settings), nil
}

// LoadSettings is Load without the Config wrapper
func LoadSettings(opts ...LoaderOption) (Settings, error) {
	var lc LoaderConfig
	for _, opt := range opts {
		opt(&lc)
	}

	explicitConfig := lc.ConfigFile != "" || os.Getenv(configFileEnvVar) != ""
	if lc.ConfigFile == "" {
		lc.ConfigFile = GetEnv(configFileEnvVar, defaultConfigFile)
	}
	explicitEnv := lc.EnvFile != "" || os.Getenv(envFileEnvVar) != ""
	if lc.EnvFile == "" {
		lc.EnvFile = GetEnv(envFileEnvVar, defaultEnvFile)
	}

	// .env values become process env vars; existing env vars win
	if err := godotenv.Load(lc.EnvFile); err != nil && (explicitEnv || !os.IsNotExist(err)) {
		return Settings{}, bfferrors.Wrapf(err, "failed to load env file %s", lc.EnvFile)
	}

	v := viper.New()
	for key, value := range Defaults() {
		v.SetDefault(key, value)
	}
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	// required keys have no default, bind them so AutomaticEnv sees them on Unmarshal
	for _, key := range requiredKeys {
		if err := v.BindEnv(key); err != nil {
			return Settings{}, bfferrors.Wrapf(err, "failed to bind env for %s", key)
		}
	}

	if _, err := os.Stat(lc.ConfigFile); err == nil {
		v.SetConfigFile(lc.ConfigFile)
		if err := v.ReadInConfig(); err != nil {
			return Settings{}, bfferrors.Wrapf(err, "failed to read config file %s", lc.ConfigFile)
		}
	} else if explicitConfig {
		return Settings{}, bfferrors.Wrapf(err, "config file %s", lc.ConfigFile)
	}

	var settings Settings
	if err := v.Unmarshal(&settings); err != nil {
		return Settings{}, bfferrors.Wrapf(err, "failed to unmarshal config")
	}

	if err := Validate(settings); err != nil {
		return Settings{}, err
	}
	return settings, nil
}

var requiredKeys = []string{
	"this_server_url",
	"cookie_name",
	"cookie_domain",
	"secret_cookie_hex_key",
	"requesting_client_url",
	"issuer_url",
	"client",
	"client_secret",
}

// Validate checks the struct tags on Settings and reports every failing field
func Validate(settings Settings) error {
	validate := validator.New(validator.WithRequiredStructEnabled())
	if err := validate.Struct(settings); err != nil {
		var fieldErrs validator.ValidationErrors
		if bfferrors.As(err, &fieldErrs) {
			msgs := make([]string, 0, len(fieldErrs))
			for _, fe := range fieldErrs {
				msgs = append(msgs, fmt.Sprintf("%s failed %q", fe.Field(), fe.Tag()))
			}
			return fmt.Errorf("%w: %s", bfferrors.ErrInvalidConfig, strings.Join(msgs, ", "))
		}
		return bfferrors.Wrapf(err, "config validation")
	}
	return nil
}
