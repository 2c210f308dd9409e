package cliparse

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/pflag"
	"gopkg.in/yaml.v3"

	"github.com/danielhkuo/council/models"
)

// Database types
const (
	DatabaseFile     = "file"
	DatabaseSQLite   = "sqlite"
	DatabasePostgres = "postgres"
)

const (
	defaultPort      = 3318
	defaultSQLiteURL = "council.db"
	defaultFileURL   = "data/state.json"
	defaultLogLevel  = "info"
)

type Config struct {
	Port           int
	DatabaseType   string
	DatabaseURL    string
	ConfigFile     string
	AdminName      string
	LogLevel       string
	AllowedOrigins []string
	Settings       models.Settings // seed for a brand new state document
}

// fileConfig is the optional YAML config file
type fileConfig struct {
	Port     int `yaml:"port"`
	Database struct {
		Type string `yaml:"type"`
		URL  string `yaml:"url"`
	} `yaml:"database"`
	AdminName      string   `yaml:"admin_name"`
	LogLevel       string   `yaml:"log_level"`
	AllowedOrigins []string `yaml:"allowed_origins"`
	Settings       struct {
		RequiredMembers   *int `yaml:"required_members"`
		CountdownSeconds  *int `yaml:"countdown_seconds"`
		InterludeSeconds  *int `yaml:"interlude_seconds"`
		PreSessionSeconds *int `yaml:"pre_session_seconds"`
	} `yaml:"settings"`
}

// LoadDotEnv loads variables from the given files (default .env) without
// overriding the real environment. Missing files are skipped.
func LoadDotEnv(paths ...string) error {
	if len(paths) == 0 {
		paths = []string{".env"}
	}
	for _, path := range paths {
		if _, err := os.Stat(path); errors.Is(err, fs.ErrNotExist) {
			continue
		}
		if err := godotenv.Load(path); err != nil {
			return fmt.Errorf("failed to load %s: %w", path, err)
		}
	}
	return nil
}

// ParseFlags builds the config. Each value comes from the first source that
// sets it: flag, environment, config file, built-in default.
func ParseFlags(args []string) (Config, error) {
	var (
		cfg     Config
		origins string
		patch   models.SettingsPatch
	)

	flags := pflag.NewFlagSet("council", pflag.ContinueOnError)

	flags.IntVarP(&cfg.Port, "port", "p", 0, "Server port")
	flags.StringVarP(&cfg.DatabaseURL, "database-url", "d", "", "Database URL or file path")
	flags.StringVarP(&cfg.DatabaseType, "database-type", "t", "", "Database type (file, sqlite or postgres)")
	flags.StringVarP(&cfg.ConfigFile, "config", "c", "", "YAML config file")
	flags.StringVar(&cfg.AdminName, "admin-name", "", "Name of the administrator")
	flags.StringVar(&cfg.LogLevel, "log-level", "", "Log level (debug, info, warn, error)")
	flags.StringVar(&origins, "allowed-origins", "", "Comma-separated browser origins allowed to connect")

	requiredMembers := flags.Int("required-members", 0, "Live members needed to start a session (new state only)")
	countdown := flags.Int("countdown-seconds", 0, "Voting round length in seconds (new state only)")
	interlude := flags.Int("interlude-seconds", 0, "Pause between proposals in seconds (new state only)")
	preSession := flags.Int("pre-session-seconds", 0, "Countdown before the first round in seconds (new state only)")

	if err := flags.Parse(args); err != nil {
		return Config{}, err
	}
	if extra := flags.Args(); len(extra) > 0 {
		return Config{}, fmt.Errorf("unexpected argument: %s", extra[0])
	}

	// Fall back to environment variables
	if cfg.Port == 0 {
		if portStr := os.Getenv("PORT"); portStr != "" {
			port, err := strconv.Atoi(portStr)
			if err != nil {
				return Config{}, errors.New("invalid PORT env variable")
			}
			cfg.Port = port
		}
	}
	cfg.DatabaseURL = orEnv(cfg.DatabaseURL, "DATABASE_URL")
	cfg.DatabaseType = orEnv(cfg.DatabaseType, "DATABASE_TYPE")
	cfg.ConfigFile = orEnv(cfg.ConfigFile, "COUNCIL_CONFIG")
	cfg.AdminName = orEnv(cfg.AdminName, "ADMIN_NAME")
	cfg.LogLevel = orEnv(cfg.LogLevel, "LOG_LEVEL")
	origins = orEnv(origins, "ALLOWED_ORIGINS")

	// Then the config file
	var file fileConfig
	if cfg.ConfigFile != "" {
		data, err := os.ReadFile(cfg.ConfigFile)
		if err != nil {
			return Config{}, fmt.Errorf("failed to read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, &file); err != nil {
			return Config{}, fmt.Errorf("failed to parse config file %s: %w", cfg.ConfigFile, err)
		}
	}
	if cfg.Port == 0 {
		cfg.Port = file.Port
	}
	cfg.DatabaseType = orValue(cfg.DatabaseType, file.Database.Type)
	cfg.DatabaseURL = orValue(cfg.DatabaseURL, file.Database.URL)
	cfg.AdminName = orValue(cfg.AdminName, file.AdminName)
	cfg.LogLevel = orValue(cfg.LogLevel, file.LogLevel)
	if origins != "" {
		cfg.AllowedOrigins = splitList(origins)
	} else {
		cfg.AllowedOrigins = file.AllowedOrigins
	}

	patch.RequiredMembers = flagOr(flags, "required-members", requiredMembers, file.Settings.RequiredMembers)
	patch.CountdownSeconds = flagOr(flags, "countdown-seconds", countdown, file.Settings.CountdownSeconds)
	patch.InterludeSeconds = flagOr(flags, "interlude-seconds", interlude, file.Settings.InterludeSeconds)
	patch.PreSessionSeconds = flagOr(flags, "pre-session-seconds", preSession, file.Settings.PreSessionSeconds)
	cfg.Settings = models.DefaultSettings().Apply(patch)

	// Finally the defaults
	if cfg.Port == 0 {
		cfg.Port = defaultPort
	}
	if cfg.Port < 1 || cfg.Port > 65535 {
		return Config{}, fmt.Errorf("invalid port %d", cfg.Port)
	}
	if cfg.LogLevel == "" {
		cfg.LogLevel = defaultLogLevel
	}
	if _, err := parseLevel(cfg.LogLevel); err != nil {
		return Config{}, err
	}
	if len(cfg.AllowedOrigins) == 0 {
		cfg.AllowedOrigins = []string{"*"}
	}

	cfg.DatabaseType = strings.ToLower(cfg.DatabaseType)
	switch cfg.DatabaseType {
	case "", DatabaseSQLite:
		cfg.DatabaseType = DatabaseSQLite
		cfg.DatabaseURL = orValue(cfg.DatabaseURL, defaultSQLiteURL)
	case DatabaseFile:
		cfg.DatabaseURL = orValue(cfg.DatabaseURL, defaultFileURL)
	case DatabasePostgres:
		if cfg.DatabaseURL == "" {
			return Config{}, errors.New("database URL required for postgres (use -d or DATABASE_URL env)")
		}
	default:
		return Config{}, fmt.Errorf("unknown database type %q (want file, sqlite or postgres)", cfg.DatabaseType)
	}

	return cfg, nil
}

// SlogLevel returns the configured log level
func (c Config) SlogLevel() slog.Level {
	level, _ := parseLevel(c.LogLevel)
	return level
}

func parseLevel(s string) (slog.Level, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(s)); err != nil {
		return slog.LevelInfo, fmt.Errorf("invalid log level %q", s)
	}
	return level, nil
}

func orEnv(v, key string) string {
	if v != "" {
		return v
	}
	return os.Getenv(key)
}

func orValue(v, fallback string) string {
	if v != "" {
		return v
	}
	return fallback
}

func flagOr(flags *pflag.FlagSet, name string, flagValue, fileValue *int) *int {
	if flags.Changed(name) {
		return flagValue
	}
	return fileValue
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
