// Package config loads the transcoder settings. Sources apply in order:
// defaults, an optional YAML or TOML file, then ENZYMEML_* environment
// variables. The result is validated before use.
package config

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"enzymeml/internal/blob"
	"enzymeml/internal/catalog"
)

const envPrefix = "ENZYMEML_"

// Log configures the process logger. Verbose lists every consistency
// warning instead of a summary.
type Log struct {
	Level       string `yaml:"level" toml:"level" validate:"oneof=debug info warn error"`
	Development bool   `yaml:"development" toml:"development"`
	Verbose     bool   `yaml:"verbose" toml:"verbose"`
}

// Blob selects the archive store. Root applies to fs, the remaining fields
// to s3.
type Blob struct {
	Driver    string `yaml:"driver" toml:"driver" validate:"oneof=fs s3 memory"`
	Root      string `yaml:"root" toml:"root" validate:"required_if=Driver fs"`
	Bucket    string `yaml:"bucket" toml:"bucket" validate:"required_if=Driver s3"`
	Region    string `yaml:"region" toml:"region"`
	Endpoint  string `yaml:"endpoint" toml:"endpoint" validate:"omitempty,url"`
	PathStyle bool   `yaml:"path_style" toml:"path_style"`
}

// Catalog selects the run catalog. DSN is a file path for sqlite and a
// connection string for postgres.
type Catalog struct {
	Driver string `yaml:"driver" toml:"driver" validate:"oneof=memory sqlite postgres"`
	DSN    string `yaml:"dsn" toml:"dsn" validate:"required_unless=Driver memory"`
}

// Worker sizes the background export queue.
type Worker struct {
	QueueSize int `yaml:"queue_size" toml:"queue_size" validate:"gte=1,lte=10000"`
	Workers   int `yaml:"workers" toml:"workers" validate:"gte=1,lte=64"`
}

// Metrics names the Prometheus namespace of the run metrics.
type Metrics struct {
	Namespace string `yaml:"namespace" toml:"namespace" validate:"required"`
}

// Config is the complete settings tree.
type Config struct {
	Log     Log     `yaml:"log" toml:"log"`
	Blob    Blob    `yaml:"blob" toml:"blob"`
	Catalog Catalog `yaml:"catalog" toml:"catalog"`
	Worker  Worker  `yaml:"worker" toml:"worker"`
	Metrics Metrics `yaml:"metrics" toml:"metrics"`

	// Sources lists where values came from, lowest priority first.
	Sources []string `yaml:"-" toml:"-"`
}

// Default returns the built-in settings: filesystem archives under
// ./archives and an in-memory catalog.
func Default() *Config {
	return &Config{
		Log:     Log{Level: "info"},
		Blob:    Blob{Driver: string(blob.DriverFilesystem), Root: "./archives", Region: "us-east-1"},
		Catalog: Catalog{Driver: string(catalog.DriverMemory)},
		Worker:  Worker{QueueSize: 64, Workers: 2},
		Metrics: Metrics{Namespace: "enzymeml"},
		Sources: []string{"defaults"},
	}
}

// Load reads path (skipped when empty) and the process environment.
func Load(path string) (*Config, error) {
	return LoadWith(path, os.LookupEnv)
}

// LoadWith is Load with an explicit environment lookup.
func LoadWith(path string, lookup func(string) (string, bool)) (*Config, error) {
	cfg := Default()
	if path != "" {
		if err := cfg.loadFile(path); err != nil {
			return nil, err
		}
		cfg.Sources = append(cfg.Sources, path)
	}
	if err := cfg.loadEnv(lookup); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}
	return cfg, nil
}

func (c *Config) loadFile(path string) error {
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".yaml", ".yml":
		f, err := os.Open(path)
		if err != nil {
			return err
		}
		defer func() { _ = f.Close() }()
		dec := yaml.NewDecoder(f)
		dec.KnownFields(true)
		if err := dec.Decode(c); err != nil && !errors.Is(err, io.EOF) {
			return fmt.Errorf("parse %s: %w", path, err)
		}
	case ".toml":
		meta, err := toml.DecodeFile(path, c)
		if err != nil {
			return fmt.Errorf("parse %s: %w", path, err)
		}
		if undecoded := meta.Undecoded(); len(undecoded) > 0 {
			return fmt.Errorf("parse %s: unknown key %q", path, undecoded[0].String())
		}
	default:
		return fmt.Errorf("unsupported config format %q", ext)
	}
	return nil
}

func (c *Config) loadEnv(lookup func(string) (string, bool)) error {
	str := func(key string, dst *string) {
		if v, ok := lookup(envPrefix + key); ok && v != "" {
			*dst = v
		}
	}
	var errs []error
	boolean := func(key string, dst *bool) {
		if v, ok := lookup(envPrefix + key); ok && v != "" {
			b, err := strconv.ParseBool(v)
			if err != nil {
				errs = append(errs, fmt.Errorf("%s%s: %w", envPrefix, key, err))
				return
			}
			*dst = b
		}
	}
	integer := func(key string, dst *int) {
		if v, ok := lookup(envPrefix + key); ok && v != "" {
			n, err := strconv.Atoi(v)
			if err != nil {
				errs = append(errs, fmt.Errorf("%s%s: %w", envPrefix, key, err))
				return
			}
			*dst = n
		}
	}

	before := *c
	str("LOG_LEVEL", &c.Log.Level)
	boolean("LOG_DEVELOPMENT", &c.Log.Development)
	boolean("VERBOSE", &c.Log.Verbose)
	str("BLOB_DRIVER", &c.Blob.Driver)
	str("BLOB_FS_ROOT", &c.Blob.Root)
	str("BLOB_S3_BUCKET", &c.Blob.Bucket)
	str("BLOB_S3_REGION", &c.Blob.Region)
	str("BLOB_S3_ENDPOINT", &c.Blob.Endpoint)
	boolean("BLOB_S3_PATH_STYLE", &c.Blob.PathStyle)
	str("CATALOG_DRIVER", &c.Catalog.Driver)
	str("CATALOG_DSN", &c.Catalog.DSN)
	integer("WORKER_QUEUE_SIZE", &c.Worker.QueueSize)
	integer("WORKER_COUNT", &c.Worker.Workers)
	str("METRICS_NAMESPACE", &c.Metrics.Namespace)
	if err := errors.Join(errs...); err != nil {
		return err
	}
	if before.Log != c.Log || before.Blob != c.Blob || before.Catalog != c.Catalog ||
		before.Worker != c.Worker || before.Metrics != c.Metrics {
		c.Sources = append(c.Sources, "environment")
	}
	return nil
}

var validate = validator.New(validator.WithRequiredStructEnabled())

// Validate checks every section against its constraints.
func (c *Config) Validate() error {
	return validate.Struct(c)
}

// BlobConfig maps the blob section onto the store options.
func (c *Config) BlobConfig() blob.Config {
	return blob.Config{
		Driver: blob.Driver(c.Blob.Driver),
		Root:   c.Blob.Root,
		S3: blob.S3Config{
			Region:    c.Blob.Region,
			Bucket:    c.Blob.Bucket,
			Endpoint:  c.Blob.Endpoint,
			PathStyle: c.Blob.PathStyle,
		},
	}
}

// CatalogConfig maps the catalog section onto the store options.
func (c *Config) CatalogConfig() catalog.Config {
	return catalog.Config{Driver: catalog.Driver(c.Catalog.Driver), DSN: c.Catalog.DSN}
}
