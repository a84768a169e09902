// Package config builds configured transformation nodes from defaults,
// programmatic options, and environment overrides.
package config

import (
	"errors"
	"fmt"
	"log/slog"

	"github.com/tendant/simple-transform/pkg/simpletransform"
	"github.com/tendant/simple-transform/pkg/simpletransform/digest"
	"github.com/tendant/simple-transform/pkg/simpletransform/ffmpeg"
	fsstorage "github.com/tendant/simple-transform/pkg/simpletransform/storage/fs"
	memorystorage "github.com/tendant/simple-transform/pkg/simpletransform/storage/memory"
	s3storage "github.com/tendant/simple-transform/pkg/simpletransform/storage/s3"
	"github.com/tendant/simple-transform/pkg/simpletransform/tempfile"
)

// Worker variant names.
const (
	WorkerDigest = "digest"
	WorkerFFmpeg = "ffmpeg"
)

// Option applies configuration to a NodeConfig instance.
type Option func(*NodeConfig) error

// Load constructs a NodeConfig by applying the supplied options on top of
// library defaults.
func Load(opts ...Option) (*NodeConfig, error) {
	cfg := defaults()

	for _, opt := range opts {
		if opt == nil {
			continue
		}
		if err := opt(&cfg); err != nil {
			return nil, err
		}
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func defaults() NodeConfig {
	return NodeConfig{
		Environment: "development",
		Worker:      WorkerDigest,
		Storage: StorageConfig{
			Type:   "memory",
			Config: map[string]string{},
		},
	}
}

// NodeConfig represents configuration for one transformation node process
type NodeConfig struct {
	Environment string // development, production, testing

	// TempDir overrides the OS temp root; empty selects the system default
	TempDir string

	// Worker selects the transformer variant ("digest", "ffmpeg")
	Worker string

	// FFmpegBinary overrides the ffmpeg binary name
	FFmpegBinary string

	// Storage configures the reference handler shared by source and target
	Storage StorageConfig
}

// StorageConfig represents configuration for a storage backend
type StorageConfig struct {
	Type   string            // "memory", "fs", "s3"
	Config map[string]string // backend-specific settings
}

// Validate validates the node configuration
func (c *NodeConfig) Validate() error {
	switch c.Worker {
	case WorkerDigest, WorkerFFmpeg:
	default:
		return fmt.Errorf("unknown worker variant %q (use %q or %q)", c.Worker, WorkerDigest, WorkerFFmpeg)
	}

	switch c.Storage.Type {
	case "memory", "fs", "s3":
	default:
		return fmt.Errorf("unknown storage type %q (use 'memory', 'fs', or 's3')", c.Storage.Type)
	}

	if c.Storage.Type == "fs" && c.Storage.Config["base_dir"] == "" {
		return errors.New("base_dir is required for fs storage")
	}
	if c.Storage.Type == "s3" && c.Storage.Config["bucket"] == "" {
		return errors.New("bucket is required for s3 storage")
	}

	return nil
}

// BuildHandler creates the configured reference handler.
func (c *NodeConfig) BuildHandler() (simpletransform.ReferenceHandler, error) {
	switch c.Storage.Type {
	case "memory":
		return memorystorage.New(), nil
	case "fs":
		return fsstorage.New(fsstorage.Config{
			BaseDir: c.Storage.Config["base_dir"],
		})
	case "s3":
		return s3storage.New(s3storage.Config{
			Bucket:                 c.Storage.Config["bucket"],
			Region:                 c.Storage.Config["region"],
			AccessKeyID:            c.Storage.Config["access_key_id"],
			SecretAccessKey:        c.Storage.Config["secret_access_key"],
			Endpoint:               c.Storage.Config["endpoint"],
			UsePathStyle:           c.Storage.Config["use_path_style"] == "true",
			PoolSize:               atoiOrZero(c.Storage.Config["pool_size"]),
			CreateBucketIfNotExist: c.Storage.Config["create_bucket"] == "true",
		})
	default:
		return nil, fmt.Errorf("unknown storage type %q", c.Storage.Type)
	}
}

// BuildNode creates a ready transformation node emitting replies through
// the given producer.
func (c *NodeConfig) BuildNode(producer simpletransform.MessageProducer, logger *slog.Logger) (*simpletransform.TransformationNode, error) {
	handler, err := c.BuildHandler()
	if err != nil {
		return nil, fmt.Errorf("build storage handler: %w", err)
	}

	worker, err := c.buildWorker(handler)
	if err != nil {
		return nil, fmt.Errorf("build worker: %w", err)
	}

	return simpletransform.NewTransformationNode(worker, producer, simpletransform.WithLogger(logger))
}

func (c *NodeConfig) buildWorker(handler simpletransform.ReferenceHandler) (simpletransform.Transformer, error) {
	switch c.Worker {
	case WorkerDigest:
		return digest.NewWorker(handler, handler)
	case WorkerFFmpeg:
		provider, err := tempfile.New(c.TempDir)
		if err != nil {
			return nil, err
		}
		return ffmpeg.NewWorker(handler, handler, provider, ffmpeg.WithBinary(c.FFmpegBinary))
	default:
		return nil, fmt.Errorf("unknown worker variant %q", c.Worker)
	}
}
