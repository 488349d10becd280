package main

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/hupe1980/vamana"
	"github.com/hupe1980/vamana/distance"
	"github.com/hupe1980/vamana/resource"
	"github.com/hupe1980/vamana/snapshot"
)

// Config is the on-disk CLI configuration.
type Config struct {
	// Dir holds the region files.
	Dir    string          `yaml:"dir"`
	Metric distance.Metric `yaml:"metric"`
	Index  vamana.Options  `yaml:"index"`

	Data      DataConfig      `yaml:"data"`
	Snapshot  SnapshotConfig  `yaml:"snapshot"`
	Resources ResourceConfig  `yaml:"resources"`
	Log       LogConfig       `yaml:"log"`
	BlobStore BlobStoreConfig `yaml:"blobstore"`
}

// DataConfig points at the .fvecs file the graph is built over.
type DataConfig struct {
	Path string `yaml:"path"`
	// Limit caps the number of vectors read. 0 reads all.
	Limit int `yaml:"limit"`
	// Half stores the dataset as float16 in memory.
	Half bool `yaml:"half"`
}

// SnapshotConfig controls snapshot push.
type SnapshotConfig struct {
	Codec snapshot.Codec `yaml:"codec"`
	Level int            `yaml:"level"`
}

// ResourceConfig mirrors resource.Config.
type ResourceConfig struct {
	MemoryLimitBytes    int64 `yaml:"memory_limit_bytes"`
	MaxConcurrentBuilds int64 `yaml:"max_concurrent_builds"`
	IOLimitBytesPerSec  int64 `yaml:"io_limit_bytes_per_sec"`
}

// LogConfig selects the log handler.
type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// BlobStoreConfig selects where snapshots go.
type BlobStoreConfig struct {
	// Kind is one of local, s3, minio.
	Kind   string `yaml:"kind"`
	Path   string `yaml:"path"`
	Bucket string `yaml:"bucket"`
	Prefix string `yaml:"prefix"`
	Region string `yaml:"region"`
	// Endpoint overrides the S3 endpoint or names the MinIO server.
	Endpoint  string `yaml:"endpoint"`
	AccessKey string `yaml:"access_key"`
	SecretKey string `yaml:"secret_key"`
	UseSSL    bool   `yaml:"use_ssl"`
	// DynamoDBTable enables conditional CURRENT commits on S3.
	DynamoDBTable string `yaml:"dynamodb_table"`
}

// DefaultConfig returns the configuration used for absent keys.
func DefaultConfig() Config {
	return Config{
		Dir:      "data",
		Metric:   distance.MetricL2,
		Index:    vamana.DefaultOptions(),
		Snapshot: SnapshotConfig{Codec: snapshot.CodecLZ4},
		Log:      LogConfig{Level: "info", Format: "text"},
		BlobStore: BlobStoreConfig{
			Kind: "local",
			Path: "snapshots",
		},
	}
}

// LoadConfig reads path over DefaultConfig. A missing file yields the
// defaults; unknown keys are rejected.
func LoadConfig(path string) (Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return cfg, nil
		}
		return Config{}, fmt.Errorf("read config: %w", err)
	}

	if err := decodeConfig(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("parse config %s: %w", path, err)
	}
	return cfg, nil
}

func decodeConfig(data []byte, cfg *Config) error {
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return err
	}
	return cfg.Validate()
}

// Validate checks the fields the commands depend on.
func (c Config) Validate() error {
	if c.Dir == "" {
		return errors.New("dir is required")
	}
	if err := c.Index.Validate(); err != nil {
		return err
	}
	if _, err := distance.Provider(c.Metric); err != nil {
		return err
	}
	if c.Data.Limit < 0 {
		return fmt.Errorf("data.limit must be >= 0, got %d", c.Data.Limit)
	}
	if _, err := parseLevel(c.Log.Level); err != nil {
		return err
	}
	switch c.Log.Format {
	case "text", "json":
	default:
		return fmt.Errorf("log.format must be text or json, got %q", c.Log.Format)
	}
	switch c.BlobStore.Kind {
	case "local":
		if c.BlobStore.Path == "" {
			return errors.New("blobstore.path is required for local")
		}
	case "s3":
		if c.BlobStore.Bucket == "" {
			return errors.New("blobstore.bucket is required for s3")
		}
	case "minio":
		if c.BlobStore.Bucket == "" || c.BlobStore.Endpoint == "" {
			return errors.New("blobstore.bucket and blobstore.endpoint are required for minio")
		}
	default:
		return fmt.Errorf("unknown blobstore.kind %q", c.BlobStore.Kind)
	}
	return nil
}

func (c Config) resourceConfig() resource.Config {
	return resource.Config{
		MemoryLimitBytes:    c.Resources.MemoryLimitBytes,
		MaxConcurrentBuilds: c.Resources.MaxConcurrentBuilds,
		IOLimitBytesPerSec:  c.Resources.IOLimitBytesPerSec,
	}
}

func parseLevel(s string) (slog.Level, error) {
	var l slog.Level
	if err := l.UnmarshalText([]byte(strings.ToUpper(s))); err != nil {
		return 0, fmt.Errorf("log.level: %w", err)
	}
	return l, nil
}

func (c Config) logger(w io.Writer) *vamana.Logger {
	level, _ := parseLevel(c.Log.Level)
	opts := &slog.HandlerOptions{Level: level}
	if c.Log.Format == "json" {
		return vamana.NewLogger(slog.NewJSONHandler(w, opts))
	}
	return vamana.NewLogger(slog.NewTextHandler(w, opts))
}
