package config

import (
	"fmt"
	"net"
	"runtime"
	"strconv"
	"strings"
	"time"
)

const (
	appName = "OIDC BFF"

	// sessionTTL is the sliding lifetime of both the cookie and the stored record
	sessionTTL = 7 * 24 * time.Hour
	// providerTimeout bounds every outbound call to the identity provider
	providerTimeout = 10 * time.Second

	CookieContentPrivate = "private"
	CookieContentSigned  = "signed"

	SessionStoreRedis  = "redis"
	SessionStoreMemory = "memory"
)

// Settings mirrors the configuration file. Keys match the file/env names.
type Settings struct {
	ThisServerURL       string `mapstructure:"this_server_url" validate:"required,url"`
	CookieName          string `mapstructure:"cookie_name" validate:"required"`
	CookieDomain        string `mapstructure:"cookie_domain" validate:"required"`
	SecretCookieHexKey  string `mapstructure:"secret_cookie_hex_key" validate:"required,hexadecimal,len=128"`
	RequestingClientURL string `mapstructure:"requesting_client_url" validate:"required,url"`
	IssuerURL           string `mapstructure:"issuer_url" validate:"required,url"`
	LogoutURL           string `mapstructure:"logout_url" validate:"omitempty,url"`
	Client              string `mapstructure:"client" validate:"required"`
	ClientSecret        string `mapstructure:"client_secret" validate:"required"`

	ListenAddress               string `mapstructure:"listen_address" validate:"required"`
	ListenPort                  int    `mapstructure:"listen_port" validate:"gt=0,lt=65536"`
	Workers                     int    `mapstructure:"workers" validate:"gte=0"`
	SessionStore                string `mapstructure:"session_store" validate:"oneof=redis memory"`
	RedisAddress                string `mapstructure:"redis_address" validate:"required_if=SessionStore redis"`
	HeartbeatLogging            bool   `mapstructure:"heartbeat_logging"`
	HeartbeatIntervalHours      int    `mapstructure:"heartbeat_interval_hours" validate:"gt=0"`
	MachineName                 string `mapstructure:"machine_name"`
	ContainerName               string `mapstructure:"container_name"`
	Provider                    string `mapstructure:"provider"`
	KeepAliveTimeSecs           int    `mapstructure:"keep_alive_time_secs" validate:"gte=0"`
	ClientRequestTimeoutSecs    int    `mapstructure:"client_request_timeout_secs" validate:"gte=0"`
	ClientDisconnectTimeoutSecs int    `mapstructure:"client_disconnect_timeout_secs" validate:"gte=0"`
	MaxConnections              int    `mapstructure:"max_connections" validate:"gte=0"`
	EarlyRefreshSkewSecs        int64  `mapstructure:"early_refresh_skew_secs" validate:"gte=0"`

	UserDetailsFailWhenNotAuthenticated bool   `mapstructure:"user_details_fail_when_not_authenticated"`
	DefaultUsername                     string `mapstructure:"default_username"`
	DefaultUserID                       string `mapstructure:"default_user_id"`

	CookieContentSecurity string `mapstructure:"cookie_content_security" validate:"oneof=private signed"`
	LogLevel              string `mapstructure:"log_level" validate:"oneof=trace debug info warn error"`
	LogFormat             string `mapstructure:"log_format" validate:"oneof=console json"`
}

// Defaults returns the value used for every optional key that the file leaves out
func Defaults() map[string]any {
	return map[string]any{
		"listen_address":                           "0.0.0.0",
		"listen_port":                              3090,
		"workers":                                  runtime.NumCPU(),
		"session_store":                            SessionStoreRedis,
		"redis_address":                            "redis://127.0.0.1:6379",
		"heartbeat_logging":                        false,
		"heartbeat_interval_hours":                 12,
		"machine_name":                             "machine",
		"container_name":                           "container",
		"provider":                                 "provider",
		"keep_alive_time_secs":                     75,
		"client_request_timeout_secs":              30,
		"client_disconnect_timeout_secs":           5,
		"max_connections":                          25000,
		"early_refresh_skew_secs":                  120,
		"user_details_fail_when_not_authenticated": true,
		"default_username":                         "0",
		"default_user_id":                          "0",
		"cookie_content_security":                  CookieContentPrivate,
		"log_level":                                "info",
		"log_format":                               "console",
		"logout_url":                               "",
	}
}

func (s Settings) String() string {
	// Secrets are never printed
	return fmt.Sprintf("this_server_url=%s requesting_client_url=%s issuer_url=%s client=%s cookie_name=%s cookie_domain=%s listen=%s session_store=%s early_refresh_skew_secs=%d",
		s.ThisServerURL, s.RequestingClientURL, s.IssuerURL, s.Client, s.CookieName, s.CookieDomain,
		net.JoinHostPort(s.ListenAddress, strconv.Itoa(s.ListenPort)), s.SessionStore, s.EarlyRefreshSkewSecs)
}

func (c mainConfig) GetAppName() string { return appName }
func (c mainConfig) GetMachineName() string { return c.settings.MachineName }
func (c mainConfig) GetContainerName() string { return c.settings.ContainerName }
func (c mainConfig) GetProviderName() string { return c.settings.Provider }
func (c mainConfig) GetHeartbeatLogging() bool { return c.settings.HeartbeatLogging }
func (c mainConfig) GetLogLevel() string { return c.settings.LogLevel }
func (c mainConfig) GetLogFormat() string { return c.settings.LogFormat }
func (c mainConfig) GetCookieName() string { return c.settings.CookieName }
func (c mainConfig) GetCookieDomain() string { return c.settings.CookieDomain }
func (c mainConfig) GetCookieKeyHex() string { return c.settings.SecretCookieHexKey }
func (c mainConfig) GetCookieContentSecurity() string { return c.settings.CookieContentSecurity }
func (c mainConfig) GetSessionTTL() time.Duration { return sessionTTL }
func (c mainConfig) GetIssuerURL() string { return c.settings.IssuerURL }
func (c mainConfig) GetClientID() string { return c.settings.Client }
func (c mainConfig) GetClientSecret() string { return c.settings.ClientSecret }
func (c mainConfig) GetRequestingClientURL() string { return c.settings.RequestingClientURL }
func (c mainConfig) GetLogoutURL() string { return c.settings.LogoutURL }
func (c mainConfig) GetProviderTimeout() time.Duration { return providerTimeout }
func (c mainConfig) GetSessionStore() string { return c.settings.SessionStore }
func (c mainConfig) GetRedisAddress() string { return c.settings.RedisAddress }
func (c mainConfig) GetDefaultUsername() string { return c.settings.DefaultUsername }
func (c mainConfig) GetDefaultUserID() string { return c.settings.DefaultUserID }
func (c mainConfig) GetWorkers() int { return c.settings.Workers }
func (c mainConfig) GetMaxConnections() int { return c.settings.MaxConnections }
func (c mainConfig) GetThisServerURL() string { return strings.TrimSuffix(c.settings.ThisServerURL, "/") }
func (c mainConfig) GetRedirectURL() string { return c.GetThisServerURL() + "/callback" }
func (c mainConfig) GetListenAddr() string {
	return net.JoinHostPort(c.settings.ListenAddress, strconv.Itoa(c.settings.ListenPort))
}

func (c mainConfig) GetHeartbeatInterval() time.Duration {
	return time.Duration(c.settings.HeartbeatIntervalHours) * time.Hour
}

func (c mainConfig) GetEarlyRefreshSkew() time.Duration {
	return time.Duration(c.settings.EarlyRefreshSkewSecs) * time.Second
}

func (c mainConfig) GetUserDetailsFailWhenNotAuthenticated() bool {
	return c.settings.UserDetailsFailWhenNotAuthenticated
}

func (c mainConfig) GetKeepAlive() time.Duration {
	return time.Duration(c.settings.KeepAliveTimeSecs) * time.Second
}

func (c mainConfig) GetClientRequestTimeout() time.Duration {
	return time.Duration(c.settings.ClientRequestTimeoutSecs) * time.Second
}

func (c mainConfig) GetClientDisconnectTimeout() time.Duration {
	return time.Duration(c.settings.ClientDisconnectTimeoutSecs) * time.Second
}
