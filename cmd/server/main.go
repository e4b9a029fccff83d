package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"runtime"
	"runtime/debug"
	"syscall"
	"time"

	"github.com/common-nighthawk/go-figure"
	"github.com/hashicorp/go-multierror"
	"github.com/jrsteele09/go-oidc-bff/authflow"
	"github.com/jrsteele09/go-oidc-bff/cookie"
	"github.com/jrsteele09/go-oidc-bff/idp"
	"github.com/jrsteele09/go-oidc-bff/internal/config"
	"github.com/jrsteele09/go-oidc-bff/internal/logging"
	"github.com/jrsteele09/go-oidc-bff/internal/metrics"
	"github.com/jrsteele09/go-oidc-bff/server"
	"github.com/jrsteele09/go-oidc-bff/sessions"
	"github.com/rs/zerolog/log"
	"golang.org/x/net/netutil"
)

const memorySweepInterval = time.Minute

func main() {
	configFile := flag.String("config", "", "path to the configuration file (toml, yaml or json)")
	envFile := flag.String("env", "", "path to a .env file")
	flag.Parse()

	if err := run(*configFile, *envFile); err != nil {
		log.Fatal().Err(err).Msg("Error running server")
	}
	log.Info().Msg("Server stopped")
}

func run(configFile, envFile string) (returnError error) {
	defer func() {
		if r := recover(); r != nil {
			log.Error().Interface("panic", r).Bytes("stack", debug.Stack()).Msg("Recovered from panic")
			returnError = errors.New("panic recovered")
		}
	}()

	var opts []config.LoaderOption
	if configFile != "" {
		opts = append(opts, config.WithConfigFile(configFile))
	}
	if envFile != "" {
		opts = append(opts, config.WithEnvFile(envFile))
	}
	c, err := config.Load(opts...)
	if err != nil {
		return fmt.Errorf("config.Load: %w", err)
	}

	logging.Setup(c.GetLogLevel(), c.GetLogFormat())
	displayAppname(c.GetAppName())
	if workers := c.GetWorkers(); workers > 0 {
		runtime.GOMAXPROCS(workers)
	}

	ctx, cancel := context.WithTimeout(context.Background(), c.GetProviderTimeout())
	defer cancel()

	provider, err := idp.NewOIDCClient(ctx, idp.Config{
		IssuerURL:    c.GetIssuerURL(),
		ClientID:     c.GetClientID(),
		ClientSecret: c.GetClientSecret(),
		RedirectURL:  c.GetRedirectURL(),
		Timeout:      c.GetProviderTimeout(),
	})
	if err != nil {
		return fmt.Errorf("idp.NewOIDCClient: %w", err)
	}

	repo, err := newSessionRepo(ctx, c)
	if err != nil {
		return err
	}

	codec, err := cookie.NewCodec(c.GetCookieContentSecurity(), c.GetCookieKeyHex())
	if err != nil {
		_ = repo.Close()
		return fmt.Errorf("cookie.NewCodec: %w", err)
	}

	m := metrics.New()
	flow, err := authflow.New(provider, authflow.Config{
		ClientAppURL:                   c.GetRequestingClientURL(),
		LogoutURL:                      c.GetLogoutURL(),
		EarlyRefreshSkew:               c.GetEarlyRefreshSkew(),
		FailDetailsWhenUnauthenticated: c.GetUserDetailsFailWhenNotAuthenticated(),
		DefaultUsername:                c.GetDefaultUsername(),
		DefaultUserID:                  c.GetDefaultUserID(),
	}, authflow.WithMetrics(m))
	if err != nil {
		_ = repo.Close()
		return fmt.Errorf("authflow.New: %w", err)
	}

	handler, err := server.New(c, server.Deps{
		Flow:    flow,
		Repo:    repo,
		Cookies: cookie.NewManager(c.GetCookieName(), c.GetCookieDomain(), c.GetSessionTTL(), codec),
		Metrics: m,
	})
	if err != nil {
		_ = repo.Close()
		return fmt.Errorf("server.New: %w", err)
	}

	httpServer := &http.Server{
		Addr:              c.GetListenAddr(),
		Handler:           handler,
		ReadHeaderTimeout: c.GetClientRequestTimeout(),
		ReadTimeout:       c.GetClientRequestTimeout(),
		IdleTimeout:       c.GetKeepAlive(),
	}

	listener, err := net.Listen("tcp", httpServer.Addr)
	if err != nil {
		_ = repo.Close()
		return fmt.Errorf("net.Listen: %w", err)
	}
	if limit := c.GetMaxConnections(); limit > 0 {
		listener = netutil.LimitListener(listener, limit)
	}

	serveErr := make(chan error, 1)
	go func() { serveErr <- serve(httpServer, listener) }()

	stopHeartbeat := make(chan struct{})
	if c.GetHeartbeatLogging() {
		go heartbeat(c, stopHeartbeat)
	}

	select {
	case returnError = <-serveErr:
	case <-waitForStopSignal():
	}
	close(stopHeartbeat)

	var result *multierror.Error
	if returnError != nil {
		result = multierror.Append(result, returnError)
	}
	if err := shutdown(httpServer, c.GetClientDisconnectTimeout()); err != nil {
		result = multierror.Append(result, err)
	}
	if err := repo.Close(); err != nil {
		result = multierror.Append(result, fmt.Errorf("session store close: %w", err))
	}
	return result.ErrorOrNil()
}

func newSessionRepo(ctx context.Context, c config.Config) (sessions.Repo, error) {
	switch c.GetSessionStore() {
	case config.SessionStoreRedis:
		repo, err := sessions.NewRedisRepo(ctx, c.GetRedisAddress())
		if err != nil {
			return nil, fmt.Errorf("sessions.NewRedisRepo: %w", err)
		}
		return repo, nil
	default:
		log.Warn().Msg("Using in-memory session store, sessions are lost on restart")
		return sessions.NewInMemoryRepo(sessions.WithSweepInterval(memorySweepInterval)), nil
	}
}

func serve(server *http.Server, listener net.Listener) error {
	log.Info().Str("addr", server.Addr).Msg("Server listening")
	if err := server.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("server.Serve %w", err)
	}
	return nil
}

func heartbeat(c config.Config, stop <-chan struct{}) {
	ticker := time.NewTicker(c.GetHeartbeatInterval())
	defer ticker.Stop()
	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			log.Info().
				Str("machine", c.GetMachineName()).
				Str("container", c.GetContainerName()).
				Str("provider", c.GetProviderName()).
				Msg("Heartbeat")
		}
	}
}

func waitForStopSignal() <-chan os.Signal {
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
	return stop
}

func shutdown(server *http.Server, timeout time.Duration) error {
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		return fmt.Errorf("server.Shutdown: %w", err)
	}
	return nil
}

func displayAppname(appname string) {
	myFigure := figure.NewFigure(appname, "cybermedium", true)
	myFigure.Print()
	fmt.Println()
}
