// Package commands implements the ghkit subcommands.
package commands

import (
	"context"
	"fmt"
	"os"

	"github.com/Sternrassler/ghkit/pkg/client"
	"github.com/Sternrassler/ghkit/pkg/logging"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/viper"
	"golang.org/x/term"
)

// DefaultUserAgent identifies the CLI when no user agent is configured.
const DefaultUserAgent = "ghkit/0.1.0"

// setupLogging configures the global logger from the log-level and verbose
// settings. Logs are human readable when stderr is a terminal; verbose
// forces debug level.
func setupLogging() error {
	level, err := logging.ParseLevel(viper.GetString("log-level"))
	if err != nil {
		return err
	}

	cfg := logging.DefaultConfig()
	cfg.Level = level
	cfg.Pretty = term.IsTerminal(int(os.Stderr.Fd()))
	if viper.GetBool("verbose") {
		cfg.Level = logging.LevelDebug
	}
	logging.Setup(cfg)
	return nil
}

// clientConfig builds the client configuration from flags, environment and
// config file.
func clientConfig() client.Config {
	userAgent := viper.GetString("user-agent")
	if userAgent == "" {
		userAgent = DefaultUserAgent
	}

	cfg := client.DefaultConfig(userAgent)
	if api := viper.GetString("api"); api != "" {
		cfg.BaseURL = api
	}
	cfg.Token = viper.GetString("token")
	if viper.IsSet("requests-per-second") {
		cfg.RequestsPerSecond = viper.GetFloat64("requests-per-second")
	}
	if viper.IsSet("rate-limit-buffer") {
		cfg.RateLimitBuffer = viper.GetInt("rate-limit-buffer")
	}
	cfg.AutoPaginate = viper.GetBool("auto-paginate")
	cfg.PerPage = viper.GetInt("per-page")
	return cfg
}

// openClient creates a GitHub client. When a redis address is configured the
// client shares rate limit state and caches responses there.
func openClient(ctx context.Context) (*client.Client, func(), error) {
	if err := setupLogging(); err != nil {
		return nil, nil, err
	}

	cfg := clientConfig()

	redisClient, err := openRedis(ctx)
	if err != nil {
		return nil, nil, err
	}
	cfg.Redis = redisClient

	c, err := client.New(cfg)
	if err != nil {
		if redisClient != nil {
			redisClient.Close()
		}
		return nil, nil, fmt.Errorf("create client: %w", err)
	}

	cleanup := func() {
		c.Close()
		if redisClient != nil {
			redisClient.Close()
		}
	}
	return c, cleanup, nil
}

// openRedis connects to the configured redis address. It returns nil
// without error when none is configured.
func openRedis(ctx context.Context) (*redis.Client, error) {
	addr := viper.GetString("redis")
	if addr == "" {
		return nil, nil
	}

	redisClient := redis.NewClient(&redis.Options{Addr: addr})
	if err := redisClient.Ping(ctx).Err(); err != nil {
		redisClient.Close()
		return nil, fmt.Errorf("connect to redis at %s: %w", addr, err)
	}
	return redisClient, nil
}
