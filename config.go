package treereplace

import (
	"os"

	"gopkg.in/yaml.v3"
)

type Config struct {
	AllowedSuffixes []string `yaml:"allowed_suffixes"`
	ExcludeDirs     []string `yaml:"exclude_dirs"`
	BackupPrefix    string   `yaml:"backup_prefix"`
	ListenAddr      string   `yaml:"listen_addr"`
	MaxUploadBytes  int64    `yaml:"max_upload_bytes"`
}

func DefaultConfig() *Config {
	return &Config{
		AllowedSuffixes: []string{".json", ".log", ".lock"},
		ExcludeDirs:     []string{".git"},
		BackupPrefix:    "backup",
		ListenAddr:      ":8080",
		MaxUploadBytes:  256 << 20,
	}
}

func LoadConfig(path string) (*Config, error) {
	if path == "" {
		return DefaultConfig(), nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	config := DefaultConfig()
	if err := yaml.Unmarshal(data, config); err != nil {
		return nil, err
	}

	return config, nil
}

// suffixAllowed reports whether ext (including the leading dot) is in the
// content-scan allow-list.
func (c *Config) suffixAllowed(ext string) bool {
	for _, s := range c.AllowedSuffixes {
		if s == ext {
			return true
		}
	}
	return false
}
