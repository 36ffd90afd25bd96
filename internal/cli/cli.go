// Package cli holds the plumbing shared by the htrcquery, getdocs and
// identify commands: common flags, configuration loading, logger, cache and
// metrics setup, and signal-aware execution.
package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/Sternrassler/htrc-client/internal/config"
	"github.com/Sternrassler/htrc-client/pkg/cache"
	"github.com/Sternrassler/htrc-client/pkg/client"
	"github.com/Sternrassler/htrc-client/pkg/dataapi"
	"github.com/Sternrassler/htrc-client/pkg/logging"
	"github.com/Sternrassler/htrc-client/pkg/metrics"
	"github.com/Sternrassler/htrc-client/pkg/ratelimit"
	"github.com/Sternrassler/htrc-client/pkg/solr"
)

// ErrInterrupted reports that the run was cancelled by SIGINT or SIGTERM.
var ErrInterrupted = errors.New("interrupted")

// Options are the flags every command accepts.
type Options struct {
	ConfigPath  string
	LogLevel    string
	LogPretty   bool
	MetricsAddr string
}

// AddCommonFlags registers the shared flags on cmd.
func AddCommonFlags(cmd *cobra.Command, o *Options) {
	flags := cmd.PersistentFlags()
	flags.StringVar(&o.ConfigPath, "config", "", "config file (default ~/.htrc/config.toml)")
	flags.StringVar(&o.LogLevel, "log-level", "", "log level: debug, info, warn, error")
	flags.BoolVar(&o.LogPretty, "log-pretty", true, "human-readable log output")
	flags.StringVar(&o.MetricsAddr, "metrics-addr", "", "serve Prometheus metrics on this address while running")
}

// Env is the runtime shared by one command invocation.
type Env struct {
	Config config.Config
	RunID  string
	Logger zerolog.Logger

	httpClient *client.Client
	redis      *redis.Client
	metrics    *metrics.Server
}

// Setup loads the configuration, applies flag overrides and initializes
// logging, the optional Redis cache and the optional metrics endpoint.
func Setup(ctx context.Context, cmd *cobra.Command, o *Options) (*Env, error) {
	cfg, err := config.Load(o.ConfigPath)
	if err != nil {
		return nil, err
	}

	flags := cmd.Flags()
	if flags.Changed("log-level") {
		cfg.Log.Level = o.LogLevel
	}
	if flags.Changed("log-pretty") {
		cfg.Log.Pretty = o.LogPretty
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	env := &Env{
		Config: cfg,
		RunID:  logging.NewRunID(),
	}
	logging.Setup(logging.Config{
		Level:  logging.LogLevel(cfg.Log.Level),
		Pretty: cfg.Log.Pretty,
		Output: cmd.ErrOrStderr(),
		RunID:  env.RunID,
	})
	env.Logger = logging.NewLogger(cmd.Name())

	if cfg.Path != "" {
		env.Logger.Debug().Str("path", cfg.Path).Msg("Loaded configuration")
	}

	httpCfg := cfg.HTTPClient()
	if cfg.Cache.RedisAddr != "" {
		rdb := redis.NewClient(&redis.Options{Addr: cfg.Cache.RedisAddr, DB: cfg.Cache.DB})
		if err := rdb.Ping(ctx).Err(); err != nil {
			env.Logger.Warn().Err(err).Str("addr", cfg.Cache.RedisAddr).Msg("Redis unavailable; running without cache")
			rdb.Close()
		} else {
			env.redis = rdb
			httpCfg.Cache = cache.NewManager(rdb)
		}
	}
	httpCfg.Component = "solr-client"

	env.httpClient, err = client.New(httpCfg)
	if err != nil {
		env.Close()
		return nil, err
	}

	if o.MetricsAddr != "" {
		env.metrics, err = metrics.Serve(ctx, o.MetricsAddr)
		if err != nil {
			env.Close()
			return nil, err
		}
		env.Logger.Info().Str("addr", env.metrics.Addr()).Msg("Serving metrics")
	}

	return env, nil
}

// Solr returns a search proxy client.
func (e *Env) Solr() (*solr.Client, error) {
	return solr.New(e.httpClient, e.Config.SolrClient())
}

// DataAPI returns a Data API client. Aggregates are never cached.
func (e *Env) DataAPI(ctx context.Context) (*dataapi.Client, error) {
	return dataapi.New(ctx, e.Config.DataAPIClient(), e.Config.HTTPClient())
}

// Limiter returns the configured fetch limiter.
func (e *Env) Limiter() (*ratelimit.Limiter, error) {
	return ratelimit.New(e.Config.Limiter())
}

// Close releases the cache connection and stops the metrics server.
func (e *Env) Close() error {
	var errs []error
	if e.metrics != nil {
		errs = append(errs, e.metrics.Close())
	}
	if e.redis != nil {
		errs = append(errs, e.redis.Close())
	}
	return errors.Join(errs...)
}

// Interrupted maps a cancellation of ctx to ErrInterrupted and returns any
// other error unchanged.
func Interrupted(ctx context.Context, err error) error {
	if err == nil {
		return nil
	}
	if ctx.Err() != nil && (errors.Is(err, context.Canceled) || errors.Is(err, ctx.Err())) {
		return fmt.Errorf("%w: %v", ErrInterrupted, err)
	}
	return err
}

// Execute runs cmd with a context cancelled by SIGINT or SIGTERM and returns
// the process exit code.
func Execute(cmd *cobra.Command) int {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cmd.SilenceUsage = true
	cmd.SilenceErrors = true
	return ExitCode(cmd.ErrOrStderr(), Interrupted(ctx, cmd.ExecuteContext(ctx)))
}

// ExitCode reports err and converts it to an exit status: 0 for success and
// interruption, 1 otherwise.
func ExitCode(stderr io.Writer, err error) int {
	switch {
	case err == nil:
		return 0
	case errors.Is(err, ErrInterrupted):
		fmt.Fprintln(stderr)
		return 0
	default:
		log.Error().Err(err).Msg("Command failed")
		return 1
	}
}
