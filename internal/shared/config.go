package shared

import (
	_ "embed"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
)

//go:embed config.example.toml
var exampleConf []byte

// Config represents the application configuration loaded from a TOML file.
type Config struct {
	MarketsLimit   int `toml:"markets_limit" validate:"gt=0"`
	GenresLimit    int `toml:"genres_limit" validate:"gt=0"`
	TracksPerGenre int `toml:"tracks_per_genre" validate:"gt=0"`
	TopNGenres     int `toml:"top_n_genres" validate:"gt=0"`
	TopNArtists    int `toml:"top_n_artists" validate:"gt=0"`

	Credentials CredentialsConfig `toml:"credentials"`
	Ingest      IngestConfig      `toml:"ingest"`
	Geo         GeoConfig         `toml:"geo"`
	Server      ServerConfig      `toml:"server"`
	Database    DatabaseConfig    `toml:"database"`
}

// CredentialsConfig contains service-specific credentials.
type CredentialsConfig struct {
	Spotify SpotifyConfig `toml:"spotify"`
}

// SpotifyConfig contains Spotify client-credentials.
type SpotifyConfig struct {
	ClientID     string `toml:"client_id"`
	ClientSecret string `toml:"client_secret"`
}

// IngestConfig controls the ingestion run.
type IngestConfig struct {
	Output         string  `toml:"output" validate:"required"`
	APIURL         string  `toml:"api_url" validate:"required,url"`
	TokenURL       string  `toml:"token_url" validate:"required,url"`
	MaxRetries     int     `toml:"max_retries" validate:"gte=0,lte=20"`
	RequestRate    float64 `toml:"request_rate" validate:"gt=0"`
	TimeoutSeconds int     `toml:"timeout_seconds" validate:"gt=0"`
	AllowPartial   bool    `toml:"allow_partial"`
}

// Timeout returns the per-request HTTP timeout.
func (c IngestConfig) Timeout() time.Duration {
	return time.Duration(c.TimeoutSeconds) * time.Second
}

// GeoConfig controls boundary caching and map artifact output.
type GeoConfig struct {
	BoundariesURL     string  `toml:"boundaries_url" validate:"required,url"`
	BoundariesPath    string  `toml:"boundaries_path" validate:"required"`
	MapDir            string  `toml:"map_dir" validate:"required"`
	SimplifyTolerance float64 `toml:"simplify_tolerance" validate:"gte=0"`
}

// ServerConfig contains HTTP server settings.
type ServerConfig struct {
	Host string `toml:"host"`
	Port int    `toml:"port" validate:"gt=0,lte=65535"`
}

// Addr returns the host:port listen address.
func (c ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// DatabaseConfig contains run ledger database settings.
type DatabaseConfig struct {
	Path         string `toml:"path" validate:"required"`
	MaxOpenConns int    `toml:"max_open_conns" validate:"gte=0"`
	MaxIdleConns int    `toml:"max_idle_conns" validate:"gte=0"`
}

// LoadConfig reads a TOML configuration file on top of the embedded defaults,
// applies environment overrides and validates the result.
//
// Keys missing from the file keep their default values.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to read config file: %v", ErrMissingConfig, err)
	}

	config := DefaultConfig()
	if err := toml.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("%w: failed to parse config: %v", ErrInvalidConfig, err)
	}

	config.ApplyEnv()

	if err := config.Validate(); err != nil {
		return nil, err
	}
	return config, nil
}

// DefaultConfig returns a Config with defaults loaded from the embedded example config.
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

	if err := WriteFileAtomic(path, exampleConf, 0o600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}

// Validate checks every limit and path in the configuration.
func (c *Config) Validate() error {
	if err := NewValidator().Validate(c); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}
	return nil
}

// RequireCredentials fails fast when Spotify credentials are absent.
func (c *Config) RequireCredentials() error {
	var missing []string
	if strings.TrimSpace(c.Credentials.Spotify.ClientID) == "" {
		missing = append(missing, "client_id")
	}
	if strings.TrimSpace(c.Credentials.Spotify.ClientSecret) == "" {
		missing = append(missing, "client_secret")
	}
	if len(missing) > 0 {
		return fmt.Errorf("%w: credentials.spotify.%s must be set in the config file or via SPOTIFY_CLIENT_ID/SPOTIFY_CLIENT_SECRET",
			ErrMissingCredentials, strings.Join(missing, ", credentials.spotify."))
	}
	return nil
}

// ApplyEnv overrides credentials from SPOTIFY_CLIENT_ID and SPOTIFY_CLIENT_SECRET.
func (c *Config) ApplyEnv() {
	if v := os.Getenv("SPOTIFY_CLIENT_ID"); v != "" {
		c.Credentials.Spotify.ClientID = v
	}
	if v := os.Getenv("SPOTIFY_CLIENT_SECRET"); v != "" {
		c.Credentials.Spotify.ClientSecret = v
	}
}
