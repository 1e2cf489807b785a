package config

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/BurntSushi/toml"
	"github.com/gookit/validate"
)

// Config represents the main configuration for genstudio.
type Config struct {
	InstallationID string           `toml:"installation_id" validate:"required"`
	User           string           `toml:"user"`
	BaseDir        string           `toml:"base_dir" validate:"required"`
	LogDir         string           `toml:"log_dir" validate:"required"`
	Database       DatabaseConfig   `toml:"database"`
	KV             KVConfig         `toml:"kv"`
	Media          MediaConfig      `toml:"media"`
	Encryption     EncryptionConfig `toml:"encryption"`
	Generator      GeneratorConfig  `toml:"generator"`
}

// DatabaseConfig represents configuration for the structured record backend.
// This uses a tagged union pattern - the Type field determines which other fields are relevant.
type DatabaseConfig struct {
	Type    string `toml:"type" validate:"required|in:sqlite,memory"`
	DataDir string `toml:"data_dir,omitempty"` // only used for type=sqlite
}

// KVConfig represents configuration for the simple key/value backend.
type KVConfig struct {
	Type     string `toml:"type" validate:"required|in:badger,memory"`
	Dir      string `toml:"dir,omitempty"` // only used for type=badger
	Compress bool   `toml:"compress"`      // zstd-compress stored blobs
}

// MediaConfig represents configuration for the media vault holding image payloads.
// This uses a tagged union pattern - the Type field determines which other fields are relevant.
type MediaConfig struct {
	Type    string `toml:"type" validate:"required|in:memory,filesystem,s3"`
	Name    string `toml:"name" validate:"required"`
	CacheMB int    `toml:"cache_mb" validate:"min:0"` // read cache size; 0 disables it

	// S3-specific fields (only used when Type == "s3")
	S3Bucket   string `toml:"s3_bucket,omitempty"`
	S3Prefix   string `toml:"s3_prefix,omitempty"`
	S3Region   string `toml:"s3_region,omitempty"`
	S3Endpoint string `toml:"s3_endpoint,omitempty"`

	// FileSystem-specific fields (only used when Type == "filesystem")
	FSRoot string `toml:"fs_root,omitempty"`
}

// EncryptionConfig selects how media is protected at rest.
type EncryptionConfig struct {
	Type           string `toml:"type" validate:"required|in:none,age,test"`
	PublicKeyPath  string `toml:"public_key_path,omitempty"`
	PrivateKeyPath string `toml:"private_key_path,omitempty"`
}

// GeneratorConfig configures the external image generation endpoint.
type GeneratorConfig struct {
	BaseURL        string `toml:"base_url" validate:"required|fullUrl"`
	Model          string `toml:"model" validate:"required"`
	APIKeyEnv      string `toml:"api_key_env" validate:"required"` // environment variable holding the API key
	TimeoutSeconds int    `toml:"timeout_seconds" validate:"min:0"`
}

const (
	DefaultGeneratorURL   = "https://generativelanguage.googleapis.com"
	DefaultGeneratorModel = "gemini-2.5-flash-image"
	DefaultAPIKeyEnv      = "GEMINI_API_KEY"
)

// NewConfig creates a new Config with the provided values and defaults for
// everything else: sqlite records, badger key/value store, filesystem media,
// no encryption.
func NewConfig(installationID, baseDir string) *Config {
	return &Config{
		InstallationID: installationID,
		User:           "guest",
		BaseDir:        baseDir,
		LogDir:         filepath.Join(baseDir, "log"),
		Database: DatabaseConfig{
			Type:    "sqlite",
			DataDir: filepath.Join(baseDir, "db"),
		},
		KV: KVConfig{
			Type:     "badger",
			Dir:      filepath.Join(baseDir, "kv"),
			Compress: true,
		},
		Media: MediaConfig{
			Type:    "filesystem",
			Name:    "local",
			CacheMB: 32,
			FSRoot:  filepath.Join(baseDir, "media"),
		},
		Encryption: EncryptionConfig{
			Type:           "none",
			PublicKeyPath:  filepath.Join(baseDir, "keys", "genstudio.pub"),
			PrivateKeyPath: filepath.Join(baseDir, "keys", "genstudio.key"),
		},
		Generator: GeneratorConfig{
			BaseURL:        DefaultGeneratorURL,
			Model:          DefaultGeneratorModel,
			APIKeyEnv:      DefaultAPIKeyEnv,
			TimeoutSeconds: 120,
		},
	}
}

// Validate checks field rules and the fields each backend type requires.
func (c *Config) Validate() error {
	for _, section := range []any{c, &c.Database, &c.KV, &c.Media, &c.Encryption, &c.Generator} {
		v := validate.Struct(section)
		if !v.Validate() {
			return fmt.Errorf("invalid config: %w", v.Errors)
		}
	}

	switch {
	case c.Database.Type == "sqlite" && c.Database.DataDir == "":
		return fmt.Errorf("invalid config: database.data_dir required for sqlite database")
	case c.KV.Type == "badger" && c.KV.Dir == "":
		return fmt.Errorf("invalid config: kv.dir required for badger store")
	case c.Media.Type == "filesystem" && c.Media.FSRoot == "":
		return fmt.Errorf("invalid config: media.fs_root required for filesystem media")
	case c.Media.Type == "s3" && (c.Media.S3Bucket == "" || c.Media.S3Region == ""):
		return fmt.Errorf("invalid config: media.s3_bucket and media.s3_region required for s3 media")
	case c.Encryption.Type == "age" && (c.Encryption.PublicKeyPath == "" || c.Encryption.PrivateKeyPath == ""):
		return fmt.Errorf("invalid config: encryption key paths required for age encryption")
	}
	return nil
}

// Manager handles reading and writing configuration.
type Manager struct{}

// Read decodes a Config from the provided reader.
func (m *Manager) Read(r io.Reader) (*Config, error) {
	var cfg Config
	if _, err := toml.NewDecoder(r).Decode(&cfg); err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}
	return &cfg, nil
}

// Write encodes a Config to the provided writer.
func (m *Manager) Write(w io.Writer, cfg *Config) error {
	if err := toml.NewEncoder(w).Encode(cfg); err != nil {
		return fmt.Errorf("failed to encode config: %w", err)
	}
	return nil
}

// ReadFromFile reads and validates a Config from the specified file path.
func ReadFromFile(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open config file: %w", err)
	}
	defer f.Close()

	m := &Manager{}
	cfg, err := m.Read(f)
	if err != nil {
		return nil, fmt.Errorf("reading config from %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("reading config from %s: %w", path, err)
	}
	return cfg, nil
}

func writeToFile(path string, cfg *Config) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create config file: %w", err)
	}
	defer f.Close()

	m := &Manager{}
	if err := m.Write(f, cfg); err != nil {
		return fmt.Errorf("writing config to %s: %w", path, err)
	}
	return nil
}

// Init initializes a new config file at the specified path with the provided Config.
func Init(path string, cfg *Config) error {
	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("config file already exists at %s", path)
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("initializing config: %w", err)
	}

	if err := writeToFile(path, cfg); err != nil {
		return fmt.Errorf("initializing config: %w", err)
	}
	return nil
}
