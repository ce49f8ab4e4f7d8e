package shared

import (
	_ "embed"
	"fmt"
	"net"
	"os"
	"strconv"
	"time"

	"github.com/BurntSushi/toml"
)

//go:embed config.example.toml
var exampleConf []byte

// Config represents the application configuration loaded from a TOML file.
type Config struct {
	Server   ServerConfig   `toml:"server"`
	Database DatabaseConfig `toml:"database"`
	TMDB     TMDBConfig     `toml:"tmdb"`
	Session  SessionConfig  `toml:"session"`
	Security SecurityConfig `toml:"security"`
	Compat   CompatConfig   `toml:"compat"`
	Log      LogConfig      `toml:"log"`
}

// ServerConfig contains HTTP server settings.
type ServerConfig struct {
	Host            string   `toml:"host"`
	Port            int      `toml:"port"`
	ShutdownTimeout Duration `toml:"shutdown_timeout"`
	LoginRateLimit  int      `toml:"login_rate_limit"`
}

// Addr returns the host:port listen address.
func (s ServerConfig) Addr() string {
	return net.JoinHostPort(s.Host, strconv.Itoa(s.Port))
}

// DatabaseConfig contains database connection settings.
type DatabaseConfig struct {
	Path         string `toml:"path"`
	MaxOpenConns int    `toml:"max_open_conns"`
	MaxIdleConns int    `toml:"max_idle_conns"`
}

// TMDBConfig contains credentials and client policy for the TMDB gateway.
type TMDBConfig struct {
	APIKey          string   `toml:"api_key"`
	ReadAccessToken string   `toml:"read_access_token"`
	BaseURL         string   `toml:"base_url"`
	Language        string   `toml:"language"`
	Timeout         Duration `toml:"timeout"`
	MaxRetries      int      `toml:"max_retries"`
	RateLimit       float64  `toml:"rate_limit"`
}

// SessionConfig contains cookie and lifetime settings for server-held sessions.
type SessionConfig struct {
	CookieName    string   `toml:"cookie_name"`
	TTL           Duration `toml:"ttl"`
	Secure        bool     `toml:"secure"`
	PurgeInterval Duration `toml:"purge_interval"`
}

// SecurityConfig contains password hashing settings.
type SecurityConfig struct {
	BcryptCost int    `toml:"bcrypt_cost"`
	LegacySalt string `toml:"legacy_salt"`
}

// CompatConfig toggles behaviour kept only for compatibility with older clients.
type CompatConfig struct {
	NotFoundAsBadRequest bool `toml:"not_found_as_bad_request"`
}

// LogConfig contains logger settings.
type LogConfig struct {
	Level string `toml:"level"`
}

// Duration is a [time.Duration] that decodes from TOML strings such as "3h" or "15m".
type Duration struct {
	time.Duration
}

// UnmarshalText implements [encoding.TextUnmarshaler].
func (d *Duration) UnmarshalText(text []byte) error {
	parsed, err := time.ParseDuration(string(text))
	if err != nil {
		return fmt.Errorf("%w: duration %q: %v", ErrInvalidConfig, string(text), err)
	}
	d.Duration = parsed
	return nil
}

// MarshalText implements [encoding.TextMarshaler].
func (d Duration) MarshalText() ([]byte, error) {
	return []byte(d.String()), nil
}

// LoadConfig reads and parses a TOML configuration file from the specified path.
//
// Values missing from the file keep the defaults of the embedded example config.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	config := DefaultConfig()
	if err := toml.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	if err := config.Validate(); err != nil {
		return nil, err
	}

	return config, nil
}

// DefaultConfig returns a Config with sensible defaults loaded from the embedded example config.
func DefaultConfig() *Config {
	var config Config
	if err := toml.Unmarshal(exampleConf, &config); err != nil {
		panic(fmt.Sprintf("failed to parse embedded default config: %v", err))
	}
	return &config
}

// Validate reports the first configuration value that cannot be served.
func (c *Config) Validate() error {
	switch {
	case c.Server.Port <= 0 || c.Server.Port > 65535:
		return fmt.Errorf("%w: server.port %d out of range", ErrInvalidConfig, c.Server.Port)
	case c.Database.Path == "":
		return fmt.Errorf("%w: database.path is empty", ErrInvalidConfig)
	case c.TMDB.BaseURL == "":
		return fmt.Errorf("%w: tmdb.base_url is empty", ErrInvalidConfig)
	case c.TMDB.MaxRetries < 0:
		return fmt.Errorf("%w: tmdb.max_retries must not be negative", ErrInvalidConfig)
	case c.Session.CookieName == "":
		return fmt.Errorf("%w: session.cookie_name is empty", ErrInvalidConfig)
	case c.Session.TTL.Duration <= 0:
		return fmt.Errorf("%w: session.ttl must be positive", ErrInvalidConfig)
	}
	return nil
}

// CreateConfigFile creates a config.toml file at the specified path using the embedded example config.
func CreateConfigFile(path string) error {
	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("config file already exists at %s", path)
	}

	if err := os.WriteFile(path, exampleConf, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}
