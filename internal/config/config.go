package config

import "time"

// Config is the full, immutable configuration surface of the gateway.
// It is built once at startup and shared read-only by every request.
type Config interface {
	EnvConfig
	CorsConfig
	CookieConfig
	ProviderConfig
	SessionConfig
	ListenerConfig
}

type EnvConfig interface {
	GetAppName() string
	GetMachineName() string
	GetContainerName() string
	GetProviderName() string
	GetHeartbeatLogging() bool
	GetHeartbeatInterval() time.Duration
	GetLogLevel() string
	GetLogFormat() string
}

type CorsConfig interface {
	GetAllowedOrigins() AllowedOrigins
	GetAllowedMethods() string
	GetAllowedHeaders() string
}

type CookieConfig interface {
	GetCookieName() string
	GetCookieDomain() string
	GetCookieKeyHex() string
	GetCookieContentSecurity() string
	GetSessionTTL() time.Duration
}

type ProviderConfig interface {
	GetIssuerURL() string
	GetClientID() string
	GetClientSecret() string
	GetThisServerURL() string
	GetRedirectURL() string
	GetRequestingClientURL() string
	GetLogoutURL() string
	GetProviderTimeout() time.Duration
}

type SessionConfig interface {
	GetSessionStore() string
	GetRedisAddress() string
	GetEarlyRefreshSkew() time.Duration
	GetUserDetailsFailWhenNotAuthenticated() bool
	GetDefaultUsername() string
	GetDefaultUserID() string
}

type ListenerConfig interface {
	GetListenAddr() string
	GetWorkers() int
	GetKeepAlive() time.Duration
	GetClientRequestTimeout() time.Duration
	GetClientDisconnectTimeout() time.Duration
	GetMaxConnections() int
}

type mainConfig struct {
	Cors
	settings Settings
}

var _ Config = mainConfig{}

// New wraps already validated settings in the Config interface
func New(settings Settings) Config {
	return mainConfig{
		Cors:     Cors{origins: AllowedOrigins{settings.RequestingClientURL: nullValue{}}},
		settings: settings,
	}
}
