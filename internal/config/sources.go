package config

import (
	"errors"
	"strings"
	"sync/atomic"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"
	"go.uber.org/zap"
)

// SourcesConfig describes the three opinion feeds.
type SourcesConfig struct {
	CSV      CSVSourceConfig      `mapstructure:"csv"`
	Database DatabaseSourceConfig `mapstructure:"database"`
	API      APISourceConfig      `mapstructure:"api"`
}

type CSVSourceConfig struct {
	Enabled     bool   `mapstructure:"enabled"`
	FolderPath  string `mapstructure:"folderPath"`
	FilePattern string `mapstructure:"filePattern"`
}

type DatabaseSourceConfig struct {
	Enabled bool `mapstructure:"enabled"`
	// Query must select id_review, id_cliente, id_producto, fecha, comentario, rating and is_verified
	// and may reference the @StartDate parameter.
	Query    string        `mapstructure:"query"`
	Lookback time.Duration `mapstructure:"lookback"`
	Timeout  time.Duration `mapstructure:"timeout"`
}

type APISourceConfig struct {
	Enabled         bool              `mapstructure:"enabled"`
	BaseURL         string            `mapstructure:"baseUrl"`
	Endpoint        string            `mapstructure:"endpoint"`
	APIKey          string            `mapstructure:"apiKey"`
	QueryParameters map[string]string `mapstructure:"queryParameters"`
	Timeout         time.Duration     `mapstructure:"timeout"`
}

const DefaultWebReviewsQuery = `SELECT id_review, id_cliente, id_producto, fecha, comentario, rating, is_verified
FROM web_reviews
WHERE fecha >= @StartDate`

func DefaultSourcesConfig() SourcesConfig {
	return SourcesConfig{
		CSV: CSVSourceConfig{
			Enabled:     true,
			FolderPath:  "./data",
			FilePattern: "surveys*.csv",
		},
		Database: DatabaseSourceConfig{
			Enabled:  true,
			Query:    DefaultWebReviewsQuery,
			Lookback: 365 * 24 * time.Hour,
			Timeout:  60 * time.Second,
		},
		API: APISourceConfig{
			Enabled:  true,
			Endpoint: "/api/comments",
			Timeout:  30 * time.Second,
		},
	}
}

// SourcesHolder keeps the latest valid sources config. Readers call Get on every run.
type SourcesHolder struct {
	current atomic.Value // holds SourcesConfig
}

// NewStaticSourcesHolder wraps a fixed config, mostly for tests and one-off commands.
func NewStaticSourcesHolder(cfg SourcesConfig) *SourcesHolder {
	holder := &SourcesHolder{}
	holder.current.Store(cfg)
	return holder
}

func NewSourcesHolder(log *zap.Logger) (*SourcesHolder, error) {
	v := viper.New()

	v.SetConfigName("sources")
	v.SetConfigType("yml")
	v.AddConfigPath("/etc/opinionetl") // System config
	v.AddConfigPath("./config")
	v.AddConfigPath(".") // Current directory (dev mode)

	return watchSources(log, v)
}

// NewSourcesHolderFromFile reads an explicit sources file instead of searching the default paths.
func NewSourcesHolderFromFile(log *zap.Logger, path string) (*SourcesHolder, error) {
	v := viper.New()
	v.SetConfigFile(path)
	return watchSources(log, v)
}

func watchSources(log *zap.Logger, v *viper.Viper) (*SourcesHolder, error) {
	if log == nil {
		log = zap.NewNop()
	}
	log = log.Named("config.sources")

	v.SetEnvPrefix("OPINIONETL")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setSourceDefaults(v, DefaultSourcesConfig())

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, err
		}
		log.Info("sources config file not found, using defaults")
	}

	cfg, err := decodeSources(v)
	if err != nil {
		return nil, err
	}

	holder := &SourcesHolder{}
	holder.current.Store(cfg)

	if v.ConfigFileUsed() == "" {
		return holder, nil
	}

	v.OnConfigChange(func(e fsnotify.Event) {
		updated, err := decodeSources(v)
		if err != nil {
			log.Warn("sources config reload rejected", zap.String("file", e.Name), zap.Error(err))
			return
		}
		holder.current.Store(updated)
		log.Info("sources config reloaded", zap.String("file", e.Name))
	})
	v.WatchConfig()

	return holder, nil
}

func (h *SourcesHolder) Get() SourcesConfig {
	return h.current.Load().(SourcesConfig)
}

func setSourceDefaults(v *viper.Viper, defaults SourcesConfig) {
	v.SetDefault("etl.csv.enabled", defaults.CSV.Enabled)
	v.SetDefault("etl.csv.folderPath", defaults.CSV.FolderPath)
	v.SetDefault("etl.csv.filePattern", defaults.CSV.FilePattern)
	v.SetDefault("etl.database.enabled", defaults.Database.Enabled)
	v.SetDefault("etl.database.query", defaults.Database.Query)
	v.SetDefault("etl.database.lookback", defaults.Database.Lookback)
	v.SetDefault("etl.database.timeout", defaults.Database.Timeout)
	v.SetDefault("etl.api.enabled", defaults.API.Enabled)
	v.SetDefault("etl.api.baseUrl", defaults.API.BaseURL)
	v.SetDefault("etl.api.endpoint", defaults.API.Endpoint)
	v.SetDefault("etl.api.apiKey", defaults.API.APIKey)
	v.SetDefault("etl.api.timeout", defaults.API.Timeout)
}

func decodeSources(v *viper.Viper) (SourcesConfig, error) {
	// Unmarshal merges defaults key by key, UnmarshalKey on a partial file would not.
	var wrapper struct {
		ETL SourcesConfig `mapstructure:"etl"`
	}
	if err := v.Unmarshal(&wrapper); err != nil {
		return SourcesConfig{}, err
	}
	if err := ValidateSources(wrapper.ETL); err != nil {
		return SourcesConfig{}, err
	}
	return wrapper.ETL, nil
}

func ValidateSources(cfg SourcesConfig) error {
	var errs []error
	if cfg.CSV.Enabled && strings.TrimSpace(cfg.CSV.FilePattern) == "" {
		errs = append(errs, errors.New("etl.csv.filePattern cannot be empty"))
	}
	if cfg.Database.Enabled && strings.TrimSpace(cfg.Database.Query) == "" {
		errs = append(errs, errors.New("etl.database.query cannot be empty"))
	}
	if cfg.Database.Lookback < 0 || cfg.Database.Timeout < 0 {
		errs = append(errs, errors.New("etl.database durations cannot be negative"))
	}
	if cfg.API.Timeout < 0 {
		errs = append(errs, errors.New("etl.api.timeout cannot be negative"))
	}
	return errors.Join(errs...)
}
