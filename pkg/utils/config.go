package utils

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config is the full runtime configuration. Secrets (API keys, image host
// credentials) are only ever read from the config file or TAFARRAJ_* env vars.
type Config struct {
	Database   DatabaseConfig `mapstructure:"database"`
	Log        LogConfig      `mapstructure:"log"`
	HTTP       ClientConfig   `mapstructure:"http"`
	TMDB       ClientConfig   `mapstructure:"tmdb"`
	Translator ClientConfig   `mapstructure:"translator"`
	Images     ImagesConfig   `mapstructure:"images"`
	Links      LinksConfig    `mapstructure:"links"`
	Ingest     IngestConfig   `mapstructure:"ingest"`
	Server     ServerConfig   `mapstructure:"server"`
}

type DatabaseConfig struct {
	Path string `mapstructure:"path"`
}

type LogConfig struct {
	Level      string `mapstructure:"level"`
	Format     string `mapstructure:"format"` // text or json
	File       string `mapstructure:"file"`
	MaxSize    int    `mapstructure:"max_size"` // megabytes
	MaxBackups int    `mapstructure:"max_backups"`
	MaxAge     int    `mapstructure:"max_age"` // days
	Compress   bool   `mapstructure:"compress"`
}

// ClientConfig holds the options every outbound HTTP collaborator accepts.
type ClientConfig struct {
	BaseURL        string        `mapstructure:"base_url"`
	APIKey         string        `mapstructure:"api_key"`
	Timeout        time.Duration `mapstructure:"timeout"`
	RateLimitDelay time.Duration `mapstructure:"rate_limit_delay"`
	UserAgent      string        `mapstructure:"user_agent"`
	Language       string        `mapstructure:"language"`
	ImageBaseURL   string        `mapstructure:"image_base_url"`
}

type ImagesConfig struct {
	Backend    string           `mapstructure:"backend"` // cloudinary, local or none
	Folder     string           `mapstructure:"folder"`
	Attempts   uint             `mapstructure:"attempts"`
	RetryDelay time.Duration    `mapstructure:"retry_delay"`
	Cloudinary CloudinaryConfig `mapstructure:"cloudinary"`
	Local      LocalImages      `mapstructure:"local"`
}

type CloudinaryConfig struct {
	CloudName string `mapstructure:"cloud_name"`
	APIKey    string `mapstructure:"api_key"`
	APISecret string `mapstructure:"api_secret"`
}

type LocalImages struct {
	Dir           string `mapstructure:"dir"`
	PublicBaseURL string `mapstructure:"public_base_url"`
}

type LinksConfig struct {
	SitesFile      string        `mapstructure:"sites_file"`
	MinCandidates  int           `mapstructure:"min_candidates"`
	MaxCandidates  int           `mapstructure:"max_candidates"`
	MaxValidations int           `mapstructure:"max_validations"`
	MinScore       int           `mapstructure:"min_score"`
	SiteDelay      time.Duration `mapstructure:"site_delay"`
}

type IngestConfig struct {
	ItemDelay time.Duration `mapstructure:"item_delay"`
}

type ServerConfig struct {
	Addr     string `mapstructure:"addr"`
	PageSize int    `mapstructure:"page_size"`
}

// SetDefaults registers every default on v.
func SetDefaults(v *viper.Viper) {
	home, err := os.UserHomeDir()
	if err != nil || home == "" {
		home = "."
	}
	dataDir := filepath.Join(home, ".tafarraj")

	v.SetDefault("database.path", filepath.Join(dataDir, "catalog.db"))

	v.SetDefault("log.level", "info")
	v.SetDefault("log.file", "")
	v.SetDefault("log.format", "text")
	v.SetDefault("log.max_size", 10)
	v.SetDefault("log.max_backups", 3)
	v.SetDefault("log.max_age", 28)

	v.SetDefault("http.timeout", 10*time.Second)
	v.SetDefault("http.rate_limit_delay", 500*time.Millisecond)
	v.SetDefault("http.user_agent", "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36")
	v.SetDefault("http.language", "ar,en-US;q=0.9,en;q=0.8")

	v.SetDefault("tmdb.api_key", "")
	v.SetDefault("tmdb.base_url", "https://api.themoviedb.org/3")
	v.SetDefault("tmdb.image_base_url", "https://image.tmdb.org/t/p/w500")
	v.SetDefault("tmdb.language", "en-US")
	v.SetDefault("tmdb.timeout", 15*time.Second)
	v.SetDefault("tmdb.rate_limit_delay", 300*time.Millisecond)

	v.SetDefault("translator.api_key", "")
	v.SetDefault("translator.base_url", "https://translate.googleapis.com")
	v.SetDefault("translator.language", "ar")
	v.SetDefault("translator.timeout", 10*time.Second)
	v.SetDefault("translator.rate_limit_delay", 200*time.Millisecond)

	v.SetDefault("images.backend", "none")
	v.SetDefault("images.folder", "tafarraj_posters")
	v.SetDefault("images.attempts", 3)
	v.SetDefault("images.retry_delay", 5*time.Second)
	v.SetDefault("images.cloudinary.cloud_name", "")
	v.SetDefault("images.cloudinary.api_key", "")
	v.SetDefault("images.cloudinary.api_secret", "")
	v.SetDefault("images.local.dir", filepath.Join(dataDir, "posters"))
	v.SetDefault("images.local.public_base_url", "/media/posters")

	v.SetDefault("links.sites_file", "sites.yaml")
	v.SetDefault("links.min_candidates", 5)
	v.SetDefault("links.max_candidates", 10)
	v.SetDefault("links.max_validations", 10)
	v.SetDefault("links.min_score", 3)
	v.SetDefault("links.site_delay", time.Second)

	v.SetDefault("ingest.item_delay", 500*time.Millisecond)

	v.SetDefault("server.addr", ":8080")
	v.SetDefault("server.page_size", 20)
}

// NewViper returns a viper instance with defaults, env binding (TAFARRAJ_*)
// and, when found, the config file loaded. cfgFile may be empty.
func NewViper(cfgFile string) (*viper.Viper, error) {
	v := viper.New()
	SetDefaults(v)

	v.SetEnvPrefix("TAFARRAJ")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
	} else {
		v.SetConfigName("tafarraj")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		if home, err := os.UserHomeDir(); err == nil {
			v.AddConfigPath(filepath.Join(home, ".tafarraj"))
		}
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if cfgFile != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}
	return v, nil
}

// LoadConfig decodes v into a Config.
func LoadConfig(v *viper.Viper) (Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("decode config: %w", err)
	}
	return cfg, nil
}

// Resolve applies the shared http section to a collaborator's section:
// zero values inherit from base.
func (c ClientConfig) Resolve(base ClientConfig) ClientConfig {
	if c.Timeout <= 0 {
		c.Timeout = base.Timeout
	}
	if c.RateLimitDelay <= 0 {
		c.RateLimitDelay = base.RateLimitDelay
	}
	if c.UserAgent == "" {
		c.UserAgent = base.UserAgent
	}
	return c
}
