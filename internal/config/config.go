// Package config loads folio-chat settings from an optional YAML file,
// a .env file and FOLIO_* environment variables.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"net/url"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

type ChatBackend string

const (
	BackendREST   ChatBackend = "rest"
	BackendGemini ChatBackend = "gemini"
	BackendMock   ChatBackend = "mock"
)

type DispatchLogBackend string

const (
	DispatchLogNone      DispatchLogBackend = "none"
	DispatchLogMemory    DispatchLogBackend = "memory"
	DispatchLogSQLite    DispatchLogBackend = "sqlite"
	DispatchLogPostgres  DispatchLogBackend = "postgres"
	DispatchLogFirestore DispatchLogBackend = "firestore"
)

type Config struct {
	Server      ServerConfig      `mapstructure:"server" yaml:"server"`
	Chat        ChatConfig        `mapstructure:"chat" yaml:"chat"`
	Gemini      GeminiConfig      `mapstructure:"gemini" yaml:"gemini"`
	DispatchLog DispatchLogConfig `mapstructure:"dispatch_log" yaml:"dispatch_log"`
	GitHub      GitHubConfig      `mapstructure:"github" yaml:"github"`
	Feed        FeedConfig        `mapstructure:"feed" yaml:"feed"`
	Log         LogConfig         `mapstructure:"log" yaml:"log"`
}

type ServerConfig struct {
	Port        string   `mapstructure:"port" yaml:"port"`
	CORSOrigins []string `mapstructure:"cors_origins" yaml:"cors_origins"`
}

type ChatConfig struct {
	Backend ChatBackend `mapstructure:"backend" yaml:"backend"`
	BaseURL string      `mapstructure:"base_url" yaml:"base_url"`
	Path    string      `mapstructure:"path" yaml:"path"`
	// Timeout bounds one dispatch; 0 waits forever.
	Timeout       time.Duration `mapstructure:"timeout" yaml:"timeout"`
	MaxInputRunes int           `mapstructure:"max_input_runes" yaml:"max_input_runes"`
	// SessionTTL ends sessions idle for longer; 0 keeps them until deleted.
	SessionTTL  time.Duration `mapstructure:"session_ttl" yaml:"session_ttl"`
	MaxSessions int           `mapstructure:"max_sessions" yaml:"max_sessions"`
	// Greeting is appended as the first assistant message of new sessions
	// when non-empty.
	Greeting string `mapstructure:"greeting" yaml:"greeting"`
}

type GeminiConfig struct {
	Project     string `mapstructure:"project" yaml:"project"`
	Location    string `mapstructure:"location" yaml:"location"`
	APIKey      string `mapstructure:"api_key" yaml:"api_key"`
	Model       string `mapstructure:"model" yaml:"model"`
	Owner       string `mapstructure:"owner" yaml:"owner"`
	ContextFile string `mapstructure:"context_file" yaml:"context_file"`
}

type DispatchLogConfig struct {
	Backend          DispatchLogBackend `mapstructure:"backend" yaml:"backend"`
	Capacity         int                `mapstructure:"capacity" yaml:"capacity"`
	SQLitePath       string             `mapstructure:"sqlite_path" yaml:"sqlite_path"`
	PostgresDSN      string             `mapstructure:"postgres_dsn" yaml:"postgres_dsn"`
	FirestoreProject string             `mapstructure:"firestore_project" yaml:"firestore_project"`
}

type GitHubConfig struct {
	Username        string   `mapstructure:"username" yaml:"username"`
	Token           string   `mapstructure:"token" yaml:"token"`
	BaseURL         string   `mapstructure:"base_url" yaml:"base_url"`
	Mode            string   `mapstructure:"mode" yaml:"mode"` // automatic | manual
	SortBy          string   `mapstructure:"sort_by" yaml:"sort_by"`
	Limit           int      `mapstructure:"limit" yaml:"limit"`
	ExcludeForks    bool     `mapstructure:"exclude_forks" yaml:"exclude_forks"`
	ExcludeProjects []string `mapstructure:"exclude_projects" yaml:"exclude_projects"`
	ManualProjects  []string `mapstructure:"manual_projects" yaml:"manual_projects"`
}

type FeedConfig struct {
	BridgeURL string `mapstructure:"bridge_url" yaml:"bridge_url"`
	RSSURL    string `mapstructure:"rss_url" yaml:"rss_url"`
	Limit     int    `mapstructure:"limit" yaml:"limit"`
}

type LogConfig struct {
	Level  string `mapstructure:"level" yaml:"level"`
	Format string `mapstructure:"format" yaml:"format"` // json | console
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", "8080")
	v.SetDefault("server.cors_origins", []string{"http://localhost:5173"})

	v.SetDefault("chat.backend", string(BackendREST))
	v.SetDefault("chat.base_url", "http://localhost:8000")
	v.SetDefault("chat.path", "/api/chat")
	v.SetDefault("chat.timeout", 30*time.Second)
	v.SetDefault("chat.max_input_runes", 1000)
	v.SetDefault("chat.session_ttl", 30*time.Minute)
	v.SetDefault("chat.max_sessions", 10000)
	v.SetDefault("chat.greeting", "Hi! I am the portfolio assistant. Ask me anything about skills or experience.")

	v.SetDefault("gemini.project", "")
	v.SetDefault("gemini.location", "us-central1")
	v.SetDefault("gemini.api_key", "")
	v.SetDefault("gemini.model", "gemini-2.5-flash")
	v.SetDefault("gemini.owner", "")
	v.SetDefault("gemini.context_file", "")

	v.SetDefault("dispatch_log.backend", string(DispatchLogMemory))
	v.SetDefault("dispatch_log.capacity", 500)
	v.SetDefault("dispatch_log.sqlite_path", "folio-dispatches.db")
	v.SetDefault("dispatch_log.postgres_dsn", "")
	v.SetDefault("dispatch_log.firestore_project", "")

	v.SetDefault("github.username", "")
	v.SetDefault("github.token", "")
	v.SetDefault("github.base_url", "https://api.github.com")
	v.SetDefault("github.mode", "automatic")
	v.SetDefault("github.sort_by", "stars")
	v.SetDefault("github.limit", 8)
	v.SetDefault("github.exclude_forks", true)
	v.SetDefault("github.exclude_projects", []string{})
	v.SetDefault("github.manual_projects", []string{})

	v.SetDefault("feed.bridge_url", "https://api.rss2json.com/v1/api.json")
	v.SetDefault("feed.rss_url", "")
	v.SetDefault("feed.limit", 4)

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
}

// Load reads the configuration. path may be empty, in which case an
// optional folio.yaml is looked up in . and ./config.
func Load(path string) (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}

	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix("FOLIO")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	// VITE_API_URL is what the web widgets were deployed with.
	if err := v.BindEnv("chat.base_url", "FOLIO_CHAT_BASE_URL", "VITE_API_URL"); err != nil {
		return nil, fmt.Errorf("bind chat.base_url: %w", err)
	}

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("folio")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("./config")
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if path != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate reports every invalid setting at once.
func (c *Config) Validate() error {
	var errs []error

	switch c.Chat.Backend {
	case BackendREST:
		if u, err := url.Parse(c.Chat.BaseURL); err != nil || u.Scheme == "" || u.Host == "" {
			errs = append(errs, fmt.Errorf("chat.base_url %q is not an absolute URL", c.Chat.BaseURL))
		}
	case BackendGemini:
		if c.Gemini.Project == "" && c.Gemini.APIKey == "" {
			errs = append(errs, errors.New("gemini backend needs gemini.project or gemini.api_key"))
		}
	case BackendMock:
	default:
		errs = append(errs, fmt.Errorf("unknown chat.backend %q", c.Chat.Backend))
	}

	if c.Chat.Timeout < 0 {
		errs = append(errs, errors.New("chat.timeout must not be negative"))
	}
	if c.Chat.MaxInputRunes < 0 {
		errs = append(errs, errors.New("chat.max_input_runes must not be negative"))
	}
	if c.Chat.SessionTTL < 0 {
		errs = append(errs, errors.New("chat.session_ttl must not be negative"))
	}
	if c.Chat.MaxSessions < 0 {
		errs = append(errs, errors.New("chat.max_sessions must not be negative"))
	}

	switch c.DispatchLog.Backend {
	case DispatchLogNone, DispatchLogMemory:
	case DispatchLogSQLite:
		if c.DispatchLog.SQLitePath == "" {
			errs = append(errs, errors.New("dispatch_log.sqlite_path is required for the sqlite backend"))
		}
	case DispatchLogPostgres:
		if c.DispatchLog.PostgresDSN == "" {
			errs = append(errs, errors.New("dispatch_log.postgres_dsn is required for the postgres backend"))
		}
	case DispatchLogFirestore:
		if c.DispatchLog.FirestoreProject == "" {
			errs = append(errs, errors.New("dispatch_log.firestore_project is required for the firestore backend"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown dispatch_log.backend %q", c.DispatchLog.Backend))
	}

	switch c.GitHub.Mode {
	case "automatic", "manual":
	default:
		errs = append(errs, fmt.Errorf("github.mode must be automatic or manual, got %q", c.GitHub.Mode))
	}

	return errors.Join(errs...)
}

// Redacted returns a copy with secrets masked, for printing.
func (c Config) Redacted() Config {
	mask := func(s string) string {
		if s == "" {
			return ""
		}
		return "********"
	}
	c.GitHub.Token = mask(c.GitHub.Token)
	c.Gemini.APIKey = mask(c.Gemini.APIKey)
	c.DispatchLog.PostgresDSN = mask(c.DispatchLog.PostgresDSN)
	return c
}
