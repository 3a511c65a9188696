package config

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

const (
	DefaultUserName         = "sddish"
	DefaultDatabaseLocation = "sqlite:///chess_game_archive.sqlite"
	DefaultAPIBaseURL       = "https://api.chess.com"
	DefaultUserAgent        = "chessarchive/0.1"

	envPrefix = "CHESSARCHIVE"
)

// Config holds the settings of one ingestion run.
type Config struct {
	UserName         string        `mapstructure:"user-name"`
	DatabaseLocation string        `mapstructure:"database-location"`
	APIBaseURL       string        `mapstructure:"api-base-url"`
	HTTPTimeout      time.Duration `mapstructure:"http-timeout"`
	MaxRetries       int           `mapstructure:"max-retries"`
	BatchSize        int           `mapstructure:"batch-size"`
	UserAgent        string        `mapstructure:"user-agent"`
	Debug            bool          `mapstructure:"debug"`
}

// ErrHelp is returned by Load when -h or --help was requested.
var ErrHelp = pflag.ErrHelp

var userNameRe = regexp.MustCompile(`^[A-Za-z0-9_-]+$`)

// NewFlagSet declares the command line flags.
func NewFlagSet(name string) *pflag.FlagSet {
	fs := pflag.NewFlagSet(name, pflag.ContinueOnError)
	fs.String("user-name", DefaultUserName, "chess.com username")
	fs.String("database-location", DefaultDatabaseLocation, "database location (sqlite:///<path> or postgres://...)")
	fs.String("api-base-url", DefaultAPIBaseURL, "base URL of the public game archive API")
	fs.Duration("http-timeout", 30*time.Second, "timeout of a single HTTP request")
	fs.Int("max-retries", 0, "retries for rate limited (429) or failed (5xx) requests")
	fs.Int("batch-size", 50, "rows written per database transaction")
	fs.String("user-agent", DefaultUserAgent, "User-Agent header sent to the API")
	fs.Bool("debug", false, "enable debug logging")
	fs.String("env-file", "", "optional dotenv file loaded before reading the environment")
	return fs
}

// Load builds the configuration from, in increasing priority, defaults,
// .env files, CHESSARCHIVE_* environment variables and the command line.
func Load(fs *pflag.FlagSet, args []string) (*Config, error) {
	if err := fs.Parse(args); err != nil {
		return nil, err
	}

	envFile, _ := fs.GetString("env-file")
	loadEnv(envFile)

	v := viper.New()
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	var bindErr error
	fs.VisitAll(func(f *pflag.Flag) {
		if f.Name == "env-file" {
			return
		}
		bindErr = errors.Join(bindErr, v.BindPFlag(f.Name, f), v.BindEnv(f.Name))
	})
	if bindErr != nil {
		return nil, fmt.Errorf("failed to bind flags: %w", bindErr)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks the values Load cannot default.
func (c *Config) Validate() error {
	if strings.TrimSpace(c.UserName) == "" {
		return errors.New("user name must be non-empty")
	}
	if !userNameRe.MatchString(c.UserName) {
		return fmt.Errorf("invalid user name %q", c.UserName)
	}
	if strings.TrimSpace(c.DatabaseLocation) == "" {
		return errors.New("database location must be non-empty")
	}
	if c.BatchSize <= 0 {
		return fmt.Errorf("batch size must be positive, got %d", c.BatchSize)
	}
	if c.MaxRetries < 0 {
		return fmt.Errorf("max retries must not be negative, got %d", c.MaxRetries)
	}
	if c.HTTPTimeout <= 0 {
		return fmt.Errorf("http timeout must be positive, got %s", c.HTTPTimeout)
	}
	return nil
}

// loadEnv loads .env then the optional extra file. Existing environment
// variables are never overridden.
func loadEnv(extra string) {
	_ = godotenv.Load(".env")
	if extra != "" {
		_ = godotenv.Load(extra)
	}
}
