package shared

import (
	_ "embed"
	"fmt"
	"net"
	"os"
	"strconv"
	"strings"

	"github.com/BurntSushi/toml"
)

//go:embed config.example.toml
var exampleConf []byte

// Config represents the application configuration loaded from a TOML file.
type Config struct {
	Credentials CredentialsConfig `toml:"credentials"`
	Aggregator  AggregatorConfig  `toml:"aggregator"`
	Database    DatabaseConfig    `toml:"database"`
	Server      ServerConfig      `toml:"server"`
}

// CredentialsConfig contains service-specific credentials.
type CredentialsConfig struct {
	Spotify SpotifyConfig `toml:"spotify"`
}

// SpotifyConfig contains the OAuth client triple and the playlist owner.
type SpotifyConfig struct {
	ClientID     string   `toml:"client_id"`
	ClientSecret string   `toml:"client_secret"`
	RedirectURI  string   `toml:"redirect_uri"`
	UserID       string   `toml:"user_id"`
	Scopes       []string `toml:"scopes"`
}

// AggregatorConfig tunes the release collection pipeline.
type AggregatorConfig struct {
	Market            string  `toml:"market"`
	WindowDays        int     `toml:"window_days"`
	IncludeGroups     string  `toml:"include_groups"`
	PageLimit         int     `toml:"page_limit"`
	RequestsPerSecond float64 `toml:"requests_per_second"`
	PlaylistPublic    bool    `toml:"playlist_public"`
}

// DatabaseConfig contains database connection settings.
type DatabaseConfig struct {
	Path         string `toml:"path"`
	MaxOpenConns int    `toml:"max_open_conns"`
	MaxIdleConns int    `toml:"max_idle_conns"`
}

// ServerConfig contains HTTP server settings.
type ServerConfig struct {
	Host        string `toml:"host"`
	Port        int    `toml:"port"`
	OpenBrowser bool   `toml:"open_browser"`
}

// Addr joins host and port into a listen address.
func (s ServerConfig) Addr() string {
	return net.JoinHostPort(s.Host, strconv.Itoa(s.Port))
}

// LoadConfig reads and parses a TOML configuration file from the specified path.
//
// Values missing from the file keep the embedded defaults.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	config := DefaultConfig()
	if err := toml.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
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

// ApplyEnv overrides Spotify credentials with SPOTIFY_CLIENT_ID, SPOTIFY_CLIENT_SECRET,
// SPOTIFY_REDIRECT_URI and SPOTIFY_USER_ID when they are set.
func (c *Config) ApplyEnv(getenv func(string) string) {
	if getenv == nil {
		getenv = os.Getenv
	}

	sp := &c.Credentials.Spotify
	for key, dst := range map[string]*string{
		"SPOTIFY_CLIENT_ID":     &sp.ClientID,
		"SPOTIFY_CLIENT_SECRET": &sp.ClientSecret,
		"SPOTIFY_REDIRECT_URI":  &sp.RedirectURI,
		"SPOTIFY_USER_ID":       &sp.UserID,
	} {
		if v := strings.TrimSpace(getenv(key)); v != "" {
			*dst = v
		}
	}
}

// Validate reports configuration that would make a run fail before any request is sent.
func (c *Config) Validate() error {
	sp := c.Credentials.Spotify
	if sp.ClientID == "" || sp.ClientSecret == "" {
		return fmt.Errorf("%w: spotify client_id and client_secret are required", ErrMissingCredentials)
	}
	if sp.RedirectURI == "" {
		return fmt.Errorf("%w: spotify redirect_uri is required", ErrInvalidConfig)
	}
	if c.Aggregator.WindowDays <= 0 {
		return fmt.Errorf("%w: aggregator window_days must be positive", ErrInvalidConfig)
	}
	if c.Aggregator.RequestsPerSecond < 0 {
		return fmt.Errorf("%w: aggregator requests_per_second cannot be negative", ErrInvalidConfig)
	}
	return nil
}
