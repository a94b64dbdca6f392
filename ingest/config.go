package ingest

// Config controls the ingest endpoint.
type Config struct {
	// ProgressEvery logs a progress line every N frames. 0 means the
	// default; -1 disables progress logging.
	ProgressEvery int `yaml:"progress_every" mapstructure:"progress_every" validate:"gte=-1"`
	// Exclusive rejects a second producer while one stream is active.
	Exclusive bool `yaml:"exclusive" mapstructure:"exclusive"`
}

const defaultProgressEvery = 100

// ApplyDefaults fills unset fields.
func (c *Config) ApplyDefaults() {
	if c.ProgressEvery == 0 {
		c.ProgressEvery = defaultProgressEvery
	}
}
