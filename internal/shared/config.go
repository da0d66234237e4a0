package shared

import (
	_ "embed"
	"fmt"
	"os"

	"github.com/BurntSushi/toml"
)

//go:embed config.example.toml
var exampleConf []byte

// Config represents the application configuration loaded from a TOML file.
type Config struct {
	Credentials CredentialsConfig `toml:"credentials"`
	Database    DatabaseConfig    `toml:"database"`
	Pipeline    PipelineConfig    `toml:"pipeline"`
	Server      ServerConfig      `toml:"server"`
}

// CredentialsConfig contains service-specific credentials.
type CredentialsConfig struct {
	Spotify SpotifyConfig `toml:"spotify"`
	Tidal   TidalConfig   `toml:"tidal"`
	Qobuz   QobuzConfig   `toml:"qobuz"`
	YTMusic YTMusicConfig `toml:"ytmusic"`
}

// SpotifyConfig contains Spotify API credentials.
type SpotifyConfig struct {
	ClientID     string `toml:"client_id"`
	ClientSecret string `toml:"client_secret"`
	RedirectURI  string `toml:"redirect_uri"`
}

// TidalConfig contains TIDAL API credentials.
type TidalConfig struct {
	ClientID     string `toml:"client_id"`
	ClientSecret string `toml:"client_secret"`
	RedirectURI  string `toml:"redirect_uri"`
	CountryCode  string `toml:"country_code"`
}

// QobuzConfig contains Qobuz application settings.
type QobuzConfig struct {
	AppID   string `toml:"app_id"`
	BaseURL string `toml:"base_url"`
}

// YTMusicConfig contains YouTube Music proxy settings.
type YTMusicConfig struct {
	ProxyURL    string `toml:"proxy_url"`
	HeadersPath string `toml:"headers_path"`
}

// DatabaseConfig contains database connection settings.
type DatabaseConfig struct {
	Path         string `toml:"path"`
	MaxOpenConns int    `toml:"max_open_conns"`
	MaxIdleConns int    `toml:"max_idle_conns"`
}

// PipelineConfig contains tuning knobs for the import pipeline.
//
// Zero values fall back to the embedded defaults via [PipelineConfig.Normalize].
type PipelineConfig struct {
	BatchSize       int     `toml:"batch_size"`            // Insert batch size for the playlist writer
	SleepSecs       float64 `toml:"sleep_secs"`            // Pause between insert chunks and split halves
	PostCreateSleep float64 `toml:"post_create_sleep"`     // Pause after playlist creation before the first insert
	SearchWorkers   int     `toml:"search_workers"`        // Concurrent track searches per job
	QPS             float64 `toml:"qps"`                   // Outbound catalog requests per second
	SearchLimit     int     `toml:"search_limit"`          // Candidates requested per search
	JobWorkers      int     `toml:"job_workers"`           // Background job workers
	QueueSize       int     `toml:"queue_size"`            // Pending job queue capacity
}

// ServerConfig contains HTTP server settings.
type ServerConfig struct {
	Host      string `toml:"host"`
	Port      int    `toml:"port"`
	SecretKey string `toml:"secret_key"`
}

// Normalize fills unset pipeline knobs with their defaults.
func (p PipelineConfig) Normalize() PipelineConfig {
	if p.BatchSize <= 0 {
		p.BatchSize = 60
	}
	if p.SleepSecs <= 0 {
		p.SleepSecs = 0.3
	}
	if p.PostCreateSleep <= 0 {
		p.PostCreateSleep = 1.0
	}
	if p.SearchWorkers <= 0 {
		p.SearchWorkers = 8
	}
	if p.QPS <= 0 {
		p.QPS = 5.0
	}
	if p.SearchLimit <= 0 {
		p.SearchLimit = 7
	}
	if p.JobWorkers <= 0 {
		p.JobWorkers = 2
	}
	if p.QueueSize <= 0 {
		p.QueueSize = 64
	}
	return p
}

// LoadConfig reads and parses a TOML configuration file from the specified path.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var config Config
	if err := toml.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	return &config, nil
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
		return fmt.Errorf("config file already exists at %s: %w", path, os.ErrExist)
	}

	// Write the embedded example config to the file
	if err := os.WriteFile(path, exampleConf, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}
