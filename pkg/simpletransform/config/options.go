package config

// WithEnvironment sets the runtime environment name.
func WithEnvironment(environment string) Option {
	return func(c *NodeConfig) error {
		if environment != "" {
			c.Environment = environment
		}
		return nil
	}
}

// WithTempDir overrides the temp root used for transformation scratch
// space.
func WithTempDir(dir string) Option {
	return func(c *NodeConfig) error {
		c.TempDir = dir
		return nil
	}
}

// WithWorker selects the transformer variant.
func WithWorker(worker string) Option {
	return func(c *NodeConfig) error {
		if worker != "" {
			c.Worker = worker
		}
		return nil
	}
}

// WithFFmpegBinary overrides the ffmpeg binary name.
func WithFFmpegBinary(binary string) Option {
	return func(c *NodeConfig) error {
		c.FFmpegBinary = binary
		return nil
	}
}

// WithStorage sets the storage backend configuration.
func WithStorage(storage StorageConfig) Option {
	return func(c *NodeConfig) error {
		if storage.Config == nil {
			storage.Config = map[string]string{}
		}
		c.Storage = storage
		return nil
	}
}
