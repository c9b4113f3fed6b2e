package main

import (
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/lucasew/seqcache/internal/app"
	"github.com/lucasew/seqcache/internal/config"
	"github.com/lucasew/seqcache/internal/errutil"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

var rootCmd = &cobra.Command{
	Use:   "seqcache",
	Short: "Preloads, plays and distributes frame sequences",
	Long: `seqcache loads directories of numbered frames into memory, plays them
back at a fixed frame rate and packs them into bundles that can be served
and fetched by content hash.`,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		setupLogging(viper.GetBool("debug"))
	},
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		if _, printErr := fmt.Fprintln(os.Stderr, err); printErr != nil {
			errutil.ReportError(printErr, "Failed to print error to stderr")
		}
		os.Exit(1)
	}
}

func init() {
	cobra.OnInitialize(initConfig)

	flags := rootCmd.PersistentFlags()
	flags.String("config", "", "Settings file (YAML)")
	flags.String("sequences-root", "", "Sequences directory, overrides the settings file")
	flags.String("cache-dir", "./cache", "Directory holding bundles and the catalog")
	flags.StringSlice("upstream", []string{}, "Upstream seqcache servers bundles are fetched from")
	flags.String("ca-cert", "", "Extra CA certificate for upstreams")
	flags.Bool("debug", false, "Enable debug logs")

	mustBindPFlag("config", flags.Lookup("config"))
	mustBindPFlag("sequences-root", flags.Lookup("sequences-root"))
	mustBindPFlag("cache-dir", flags.Lookup("cache-dir"))
	mustBindPFlag("upstream", flags.Lookup("upstream"))
	mustBindPFlag("ca-cert", flags.Lookup("ca-cert"))
	mustBindPFlag("debug", flags.Lookup("debug"))
}

func initConfig() {
	viper.SetEnvPrefix("SEQCACHE")
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	viper.AutomaticEnv()
}

func mustBindPFlag(key string, flag *pflag.Flag) {
	if err := viper.BindPFlag(key, flag); err != nil {
		panic(fmt.Sprintf("failed to bind flag %s: %v", key, err))
	}
}

func setupLogging(debug bool) {
	level := slog.LevelInfo
	if debug {
		level = slog.LevelDebug
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})))
}

// loadSettings reads the settings file, if any, and applies flag overrides.
// debug_logs in the file also turns debug logging on.
func loadSettings() (config.Settings, error) {
	s := config.Default()
	if path := viper.GetString("config"); path != "" {
		loaded, err := config.Load(path)
		if err != nil {
			return config.Settings{}, err
		}
		s = loaded
	}
	if root := viper.GetString("sequences-root"); root != "" {
		s.SequencesRoot = root
	}
	if s.DebugLogs {
		setupLogging(true)
	}
	return s, nil
}

func storeConfig() app.Config {
	return app.Config{
		CacheDir:         viper.GetString("cache-dir"),
		MaxCacheSize:     viper.GetInt64("max-cache-size"),
		MinFreeSpace:     viper.GetInt64("min-free-space"),
		EvictionInterval: viper.GetDuration("eviction-interval"),
		EvictionStrategy: viper.GetString("eviction-strategy"),
		Upstreams:        viper.GetStringSlice("upstream"),
		CaCertPath:       viper.GetString("ca-cert"),
	}
}

func exitOnError(err error, msg string, args ...any) {
	if err != nil {
		errutil.ReportError(err, msg, args...)
		os.Exit(1)
	}
}
