// Package config loads database connection settings and opens the
// configured driver.
//
// Settings come from, in increasing priority: defaults, an optional
// bongo.yaml in the given directory, and BONGO_* environment variables
// (BONGO_DRIVER, BONGO_URI, BONGO_DATABASE, BONGO_PATH, BONGO_VERBOSE).
// When no Mongo URI is set, DB_IP and DB_PORT are used to build one.
package config

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/spf13/viper"

	"github.com/andreyvit/bongo/boltdb"
	"github.com/andreyvit/bongo/driver"
	"github.com/andreyvit/bongo/memdb"
	"github.com/andreyvit/bongo/mongodb"
)

const (
	configFileName = "bongo"
	configFileType = "yaml"

	cfgKeyDriver   = "driver"
	cfgKeyURI      = "uri"
	cfgKeyDatabase = "database"
	cfgKeyPath     = "path"
	cfgKeyVerbose  = "verbose"
	cfgKeyDBIP     = "db_ip"
	cfgKeyDBPort   = "db_port"

	defaultDatabase = "bongo"
	defaultPath     = "bongo.db"
	defaultDBPort   = "27017"
)

const (
	DriverMemory = "memory"
	DriverBolt   = "bolt"
	DriverMongo  = "mongodb"
)

var ErrInvalidConfig = errors.New("invalid configuration")

type Config struct {
	Driver   string
	URI      string
	Database string
	Path     string
	Verbose  bool
}

// Load reads the configuration. dir is searched for bongo.yaml; pass an
// empty string to rely on defaults and the environment only. A missing
// config file is not an error.
func Load(dir string) (*Config, error) {
	v := viper.New()
	v.SetDefault(cfgKeyDriver, DriverMemory)
	v.SetDefault(cfgKeyURI, "")
	v.SetDefault(cfgKeyDatabase, defaultDatabase)
	v.SetDefault(cfgKeyPath, defaultPath)
	v.SetDefault(cfgKeyVerbose, false)
	v.SetEnvPrefix("BONGO")
	v.AutomaticEnv()
	if err := v.BindEnv(cfgKeyDBIP, "DB_IP"); err != nil {
		return nil, fmt.Errorf("bind env: %w", err)
	}
	if err := v.BindEnv(cfgKeyDBPort, "DB_PORT"); err != nil {
		return nil, fmt.Errorf("bind env: %w", err)
	}

	if dir != "" {
		v.SetConfigName(configFileName)
		v.SetConfigType(configFileType)
		v.AddConfigPath(dir)
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) {
				return nil, fmt.Errorf("read config: %w", err)
			}
		}
	}

	cfg := &Config{
		Driver:   v.GetString(cfgKeyDriver),
		URI:      v.GetString(cfgKeyURI),
		Database: v.GetString(cfgKeyDatabase),
		Path:     v.GetString(cfgKeyPath),
		Verbose:  v.GetBool(cfgKeyVerbose),
	}
	if cfg.URI == "" {
		if ip := v.GetString(cfgKeyDBIP); ip != "" {
			port := v.GetString(cfgKeyDBPort)
			if port == "" {
				port = defaultDBPort
			}
			cfg.URI = fmt.Sprintf("mongodb://%s:%s", ip, port)
		}
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (cfg *Config) Validate() error {
	switch cfg.Driver {
	case DriverMemory:
	case DriverBolt:
		if cfg.Path == "" {
			return fmt.Errorf("%w: bolt driver needs a path", ErrInvalidConfig)
		}
	case DriverMongo:
		if cfg.URI == "" {
			return fmt.Errorf("%w: mongodb driver needs a URI", ErrInvalidConfig)
		}
		if cfg.Database == "" {
			return fmt.Errorf("%w: mongodb driver needs a database name", ErrInvalidConfig)
		}
	default:
		return fmt.Errorf("%w: unknown driver %q", ErrInvalidConfig, cfg.Driver)
	}
	return nil
}

// Connect opens the configured database.
func Connect(ctx context.Context, cfg *Config, logger *slog.Logger) (driver.Database, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if logger == nil {
		logger = slog.Default()
	}
	logger.LogAttrs(ctx, slog.LevelInfo, "bongo.connect", slog.String("driver", cfg.Driver), slog.String("database", cfg.Database))
	switch cfg.Driver {
	case DriverBolt:
		db, err := boltdb.Open(cfg.Path, boltdb.Options{
			Name:    cfg.Database,
			Logger:  logger,
			Verbose: cfg.Verbose,
		})
		if err != nil {
			return nil, err
		}
		return db, nil
	case DriverMongo:
		db, err := mongodb.Open(ctx, cfg.URI, cfg.Database, mongodb.Options{
			Logger:  logger,
			Verbose: cfg.Verbose,
		})
		if err != nil {
			return nil, err
		}
		return db, nil
	default:
		return memdb.New(memdb.Options{
			Name:    cfg.Database,
			Logger:  logger,
			Verbose: cfg.Verbose,
		}), nil
	}
}
