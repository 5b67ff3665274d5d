package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/Sternrassler/ghkit/cmd/ghkit/commands"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

var rootCmd = &cobra.Command{
	Use:   "ghkit",
	Short: "GitHub REST API toolkit",
	Long: `A command-line client for the GitHub REST API.

ghkit follows Link header pagination, tracks the rate limit budget of
every resource and revalidates cached responses with ETags so unchanged
pages do not count against the limit.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	cobra.OnInitialize(initConfig)

	// Global flags
	rootCmd.PersistentFlags().StringP("config", "c", "", "config file (default is $HOME/.ghkit/config.yml)")
	rootCmd.PersistentFlags().StringP("api", "a", "", "API base URL (default https://api.github.com)")
	rootCmd.PersistentFlags().StringP("token", "t", "", "authentication token")
	rootCmd.PersistentFlags().String("user-agent", commands.DefaultUserAgent, "User-Agent sent with every request")
	rootCmd.PersistentFlags().String("redis", "", "redis address for shared rate limit state and caching")
	rootCmd.PersistentFlags().Float64("requests-per-second", 10, "client-side request pacing (0 = unlimited)")
	rootCmd.PersistentFlags().Int("rate-limit-buffer", 0, "hold back requests while remaining <= buffer (negative disables)")
	rootCmd.PersistentFlags().Int("per-page", 0, "default page size for paginated calls")
	rootCmd.PersistentFlags().Bool("auto-paginate", false, "fetch every page by default")
	rootCmd.PersistentFlags().String("output", "table", "output format (table, json, yaml)")
	rootCmd.PersistentFlags().String("log-level", "warn", "log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().BoolP("verbose", "v", false, "verbose output")

	// Bind flags to viper
	for _, name := range []string{
		"config", "api", "token", "user-agent", "redis", "requests-per-second",
		"rate-limit-buffer", "per-page", "auto-paginate", "output", "log-level", "verbose",
	} {
		_ = viper.BindPFlag(name, rootCmd.PersistentFlags().Lookup(name))
	}

	// GITHUB_TOKEN is honoured alongside GHKIT_TOKEN
	_ = viper.BindEnv("token", "GHKIT_TOKEN", "GITHUB_TOKEN")

	// Add commands
	rootCmd.AddCommand(commands.NewVersionCommand(version, commit, date))
	rootCmd.AddCommand(commands.NewGetCommand())
	rootCmd.AddCommand(commands.NewRateLimitCommand())
	rootCmd.AddCommand(commands.NewServeCommand())
	rootCmd.AddCommand(commands.NewCacheCommand())
}

func initConfig() {
	cfgFile := viper.GetString("config")

	if cfgFile != "" {
		// Use config file from the flag
		viper.SetConfigFile(cfgFile)
	} else {
		home, err := os.UserHomeDir()
		if err != nil {
			fmt.Fprintln(os.Stderr, err)
			os.Exit(1)
		}

		// Search config in ~/.ghkit/config.yml
		viper.AddConfigPath(filepath.Join(home, ".ghkit"))
		viper.SetConfigType("yml")
		viper.SetConfigName("config")
	}

	// Read in environment variables that match, e.g. GHKIT_REDIS
	viper.SetEnvPrefix("GHKIT")
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	viper.AutomaticEnv()

	// If a config file is found, read it in
	if err := viper.ReadInConfig(); err == nil {
		if viper.GetBool("verbose") {
			fmt.Fprintln(os.Stderr, "Using config file:", viper.ConfigFileUsed())
		}
	}
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
