package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
)

// WithEnv applies environment variable overrides using the provided prefix.
//
// Environment variable mapping:
//
//	ENVIRONMENT - Runtime environment (default: "development")
//	TEMP_DIR    - Temp root override (default: OS temp directory)
//	WORKER      - Transformer variant: "digest" or "ffmpeg"
//	FFMPEG_BIN  - ffmpeg binary override
//
// Storage:
//
//	STORAGE_URL - Storage connection string (one of):
//	              - "memory://" - In-memory storage (default)
//	              - "file:///path/to/data" - Filesystem storage
//	              - "s3://bucket" - S3 storage (credentials from
//	                AWS_ACCESS_KEY_ID / AWS_SECRET_ACCESS_KEY / AWS_REGION,
//	                endpoint from AWS_S3_ENDPOINT, pool size from
//	                S3_POOL_SIZE)
func WithEnv(prefix string) Option {
	return func(c *NodeConfig) error {
		if v, ok := lookupEnv(prefix, "ENVIRONMENT"); ok && v != "" {
			c.Environment = v
		}
		if v, ok := lookupEnv(prefix, "TEMP_DIR"); ok && v != "" {
			c.TempDir = v
		}
		if v, ok := lookupEnv(prefix, "WORKER"); ok && v != "" {
			c.Worker = v
		}
		if v, ok := lookupEnv(prefix, "FFMPEG_BIN"); ok && v != "" {
			c.FFmpegBinary = v
		}

		return applyStorageEnv(prefix, c)
	}
}

// applyStorageEnv applies storage configuration from environment
func applyStorageEnv(prefix string, c *NodeConfig) error {
	storageURL, hasURL := lookupEnv(prefix, "STORAGE_URL")

	if !hasURL || storageURL == "" || storageURL == "memory" || storageURL == "memory://" {
		c.Storage = StorageConfig{Type: "memory", Config: map[string]string{}}
		return nil
	}

	if path, ok := strings.CutPrefix(storageURL, "file://"); ok {
		if path == "" {
			return fmt.Errorf("filesystem path cannot be empty in STORAGE_URL")
		}
		c.Storage = StorageConfig{
			Type:   "fs",
			Config: map[string]string{"base_dir": path},
		}
		return nil
	}

	if rest, ok := strings.CutPrefix(storageURL, "s3://"); ok {
		bucket, _, _ := strings.Cut(rest, "?")
		if bucket == "" {
			return fmt.Errorf("S3 bucket name cannot be empty in STORAGE_URL")
		}

		cfg := map[string]string{
			"bucket": bucket,
			"region": "us-east-1",
		}
		if v, ok := os.LookupEnv("AWS_ACCESS_KEY_ID"); ok && v != "" {
			cfg["access_key_id"] = v
		}
		if v, ok := os.LookupEnv("AWS_SECRET_ACCESS_KEY"); ok && v != "" {
			cfg["secret_access_key"] = v
		}
		if v, ok := os.LookupEnv("AWS_REGION"); ok && v != "" {
			cfg["region"] = v
		}
		if v, ok := os.LookupEnv("AWS_S3_ENDPOINT"); ok && v != "" {
			cfg["endpoint"] = v
			cfg["use_path_style"] = "true"
		}
		if v, ok := lookupEnv(prefix, "S3_POOL_SIZE"); ok && v != "" {
			if _, err := strconv.Atoi(v); err != nil {
				return fmt.Errorf("invalid integer for %sS3_POOL_SIZE: %w", prefix, err)
			}
			cfg["pool_size"] = v
		}

		c.Storage = StorageConfig{Type: "s3", Config: cfg}
		return nil
	}

	return fmt.Errorf("unsupported STORAGE_URL format: %s (use 'memory://', 'file://...', or 's3://...')", storageURL)
}

func lookupEnv(prefix, key string) (string, bool) {
	return os.LookupEnv(prefix + key)
}

func atoiOrZero(value string) int {
	n, err := strconv.Atoi(value)
	if err != nil {
		return 0
	}
	return n
}
