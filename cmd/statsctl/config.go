package main

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

const envPrefix = "STATSCTL"

type Config struct {
	baseURL     string
	timeout     time.Duration
	store       string
	sessionFile string
	passphrase  string
	redisAddr   string
	redisPrefix string
	profile     string
	sessionTTL  time.Duration
	rateLimit   float64
	logLevel    string
	logFormat   string
	eventLog    string
	metricsFile string
}

func (c *Config) validate() error {
	switch c.store {
	case storeFile, storeRedis, storeMemory:
	default:
		return fmt.Errorf("invalid --store %q (must be file, redis or memory)", c.store)
	}
	if c.timeout <= 0 {
		return errors.New("--timeout must be positive")
	}
	if c.rateLimit < 0 {
		return errors.New("--rate-limit must not be negative")
	}
	if strings.TrimSpace(c.profile) == "" {
		return errors.New("--profile must not be empty")
	}
	if c.store == storeRedis && strings.TrimSpace(c.redisAddr) == "" {
		return errors.New("--redis-addr is required with --store=redis")
	}
	switch strings.ToLower(c.logFormat) {
	case "text", "json":
	default:
		return fmt.Errorf("invalid --log-format %q (must be text or json)", c.logFormat)
	}
	return nil
}

// sessionPath returns --session-file or a per-profile file under the user config dir.
func (c *Config) sessionPath() (string, error) {
	if c.sessionFile != "" {
		return c.sessionFile, nil
	}
	dir, err := os.UserConfigDir()
	if err != nil {
		return "", fmt.Errorf("locate config dir (set --session-file): %w", err)
	}
	return filepath.Join(dir, "statsctl", c.profile+".session"), nil
}

func newCmd(cfg *Config) *cobra.Command {
	v := viper.New()
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	cmd := &cobra.Command{
		Use:           "statsctl",
		Short:         "Log in to the game statistics service and query it from the terminal.",
		Args:          cobra.NoArgs,
		SilenceErrors: true,
		Version:       releaseVersion,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return cfg.validate()
		},
	}

	fs := cmd.PersistentFlags()

	fs.SetNormalizeFunc(func(_ *pflag.FlagSet, name string) pflag.NormalizedName {
		return pflag.NormalizedName(strings.ReplaceAll(name, "_", "-"))
	})

	fs.StringVar(&cfg.baseURL, "base-url", "http://localhost:8000", "backend base URL (env: STATSCTL_BASE_URL)")
	fs.DurationVar(&cfg.timeout, "timeout", 10*time.Second, "per-request timeout (env: STATSCTL_TIMEOUT)")
	fs.StringVar(&cfg.store, "store", storeFile, "where the session is kept: file, redis or memory (env: STATSCTL_STORE)")
	fs.StringVar(&cfg.sessionFile, "session-file", "", "session file path, default under the user config dir (env: STATSCTL_SESSION_FILE)")
	fs.StringVar(&cfg.passphrase, "passphrase", "", "seal the session file with this passphrase (env: STATSCTL_PASSPHRASE)")
	fs.StringVar(&cfg.redisAddr, "redis-addr", "localhost:6379", "redis address for --store=redis (env: STATSCTL_REDIS_ADDR)")
	fs.StringVar(&cfg.redisPrefix, "redis-prefix", "statsctl", "redis key prefix (env: STATSCTL_REDIS_PREFIX)")
	fs.StringVarP(&cfg.profile, "profile", "P", "default", "session profile name (env: STATSCTL_PROFILE)")
	fs.DurationVar(&cfg.sessionTTL, "session-ttl", 0, "expire a redis session after this much inactivity, 0 keeps it (env: STATSCTL_SESSION_TTL)")
	fs.Float64Var(&cfg.rateLimit, "rate-limit", 0, "max requests per second, 0 disables pacing (env: STATSCTL_RATE_LIMIT)")
	fs.StringVar(&cfg.logLevel, "log-level", "warn", "log level: debug, info, warn or error (env: STATSCTL_LOG_LEVEL)")
	fs.StringVar(&cfg.logFormat, "log-format", "text", "log format: text or json (env: STATSCTL_LOG_FORMAT)")
	fs.StringVar(&cfg.eventLog, "event-log", "", "append session events as JSON lines to this file (env: STATSCTL_EVENT_LOG)")
	fs.StringVar(&cfg.metricsFile, "metrics-file", "", "write Prometheus metrics to this file on exit (env: STATSCTL_METRICS_FILE)")

	bindEnv(v, fs)

	cmd.AddCommand(
		newLoginCmd(cfg, v),
		newRegisterCmd(cfg, v),
		newLogoutCmd(cfg),
		newStatusCmd(cfg),
		newStatsCmd(cfg),
		newWhoamiCmd(cfg),
		newAdminCmd(cfg),
		newSQLCmd(cfg),
	)

	cmd.CompletionOptions.HiddenDefaultCmd = true
	cmd.SetHelpCommand(&cobra.Command{Hidden: true})
	cmd.SetVersionTemplate("statsctl v{{.Version}}\n")

	cmd.SilenceErrors = true
	cmd.SilenceUsage = true

	return cmd
}

// bindEnv lets STATSCTL_* variables supply any flag not given on the command line.
func bindEnv(v *viper.Viper, fs *pflag.FlagSet) {
	fs.VisitAll(func(f *pflag.Flag) {
		_ = v.BindPFlag(f.Name, f)
		_ = v.BindEnv(f.Name)
		if !f.Changed && v.IsSet(f.Name) {
			_ = fs.Set(f.Name, fmt.Sprintf("%v", v.Get(f.Name)))
		}
	})
}
