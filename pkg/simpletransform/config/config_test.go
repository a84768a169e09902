package config

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "development", cfg.Environment)
	assert.Equal(t, WorkerDigest, cfg.Worker)
	assert.Equal(t, "memory", cfg.Storage.Type)
}

func TestLoad_Options(t *testing.T) {
	cfg, err := Load(
		WithEnvironment("production"),
		WithWorker(WorkerFFmpeg),
		WithTempDir("/var/tmp/transform"),
		WithFFmpegBinary("/usr/local/bin/ffmpeg"),
		WithStorage(StorageConfig{
			Type:   "fs",
			Config: map[string]string{"base_dir": "/srv/content"},
		}),
	)
	require.NoError(t, err)
	assert.Equal(t, "production", cfg.Environment)
	assert.Equal(t, WorkerFFmpeg, cfg.Worker)
	assert.Equal(t, "/var/tmp/transform", cfg.TempDir)
	assert.Equal(t, "/usr/local/bin/ffmpeg", cfg.FFmpegBinary)
	assert.Equal(t, "fs", cfg.Storage.Type)
}

func TestLoad_Validation(t *testing.T) {
	tests := []struct {
		name    string
		options []Option
		wantErr string
	}{
		{
			name:    "unknown worker",
			options: []Option{WithWorker("imagemagick")},
			wantErr: "unknown worker",
		},
		{
			name:    "unknown storage type",
			options: []Option{WithStorage(StorageConfig{Type: "ftp"})},
			wantErr: "unknown storage type",
		},
		{
			name:    "fs without base dir",
			options: []Option{WithStorage(StorageConfig{Type: "fs"})},
			wantErr: "base_dir is required",
		},
		{
			name:    "s3 without bucket",
			options: []Option{WithStorage(StorageConfig{Type: "s3"})},
			wantErr: "bucket is required",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(tt.options...)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestWithEnv_StorageURL(t *testing.T) {
	t.Run("memory default", func(t *testing.T) {
		cfg, err := Load(WithEnv("TEST_NOPREFIX_"))
		require.NoError(t, err)
		assert.Equal(t, "memory", cfg.Storage.Type)
	})

	t.Run("file url", func(t *testing.T) {
		t.Setenv("TT_STORAGE_URL", "file:///srv/data")
		cfg, err := Load(WithEnv("TT_"))
		require.NoError(t, err)
		assert.Equal(t, "fs", cfg.Storage.Type)
		assert.Equal(t, "/srv/data", cfg.Storage.Config["base_dir"])
	})

	t.Run("s3 url", func(t *testing.T) {
		t.Setenv("TT_STORAGE_URL", "s3://my-bucket")
		t.Setenv("AWS_ACCESS_KEY_ID", "key")
		t.Setenv("AWS_SECRET_ACCESS_KEY", "secret")
		t.Setenv("AWS_REGION", "eu-west-1")
		t.Setenv("TT_S3_POOL_SIZE", "32")
		cfg, err := Load(WithEnv("TT_"))
		require.NoError(t, err)
		assert.Equal(t, "s3", cfg.Storage.Type)
		assert.Equal(t, "my-bucket", cfg.Storage.Config["bucket"])
		assert.Equal(t, "eu-west-1", cfg.Storage.Config["region"])
		assert.Equal(t, "32", cfg.Storage.Config["pool_size"])
	})

	t.Run("invalid pool size", func(t *testing.T) {
		t.Setenv("TT_STORAGE_URL", "s3://my-bucket")
		t.Setenv("TT_S3_POOL_SIZE", "many")
		_, err := Load(WithEnv("TT_"))
		require.Error(t, err)
		assert.Contains(t, err.Error(), "S3_POOL_SIZE")
	})

	t.Run("unsupported scheme", func(t *testing.T) {
		t.Setenv("TT_STORAGE_URL", "ftp://host/path")
		_, err := Load(WithEnv("TT_"))
		require.Error(t, err)
		assert.Contains(t, err.Error(), "unsupported STORAGE_URL")
	})

	t.Run("worker and temp dir", func(t *testing.T) {
		t.Setenv("TT_WORKER", "ffmpeg")
		t.Setenv("TT_TEMP_DIR", "/var/tmp/x")
		cfg, err := Load(WithEnv("TT_"))
		require.NoError(t, err)
		assert.Equal(t, WorkerFFmpeg, cfg.Worker)
		assert.Equal(t, "/var/tmp/x", cfg.TempDir)
	})
}

func TestBuildNode_MemoryDigest(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	producer := &nullProducer{}
	node, err := cfg.BuildNode(producer, nil)
	require.NoError(t, err)
	require.NotNil(t, node)
}

func TestBuildNode_FSWorker(t *testing.T) {
	cfg, err := Load(
		WithWorker(WorkerFFmpeg),
		WithTempDir(t.TempDir()),
		WithStorage(StorageConfig{
			Type:   "fs",
			Config: map[string]string{"base_dir": t.TempDir()},
		}),
	)
	require.NoError(t, err)

	node, err := cfg.BuildNode(&nullProducer{}, nil)
	require.NoError(t, err)
	require.NotNil(t, node)
}

type nullProducer struct{}

func (nullProducer) Send(ctx context.Context, message any) error { return nil }
