package treereplace

import (
	"fmt"
	"os"
	"strings"
)

type Validator interface {
	ValidatePath(path string) error
	ValidateParams(params ReplaceParams) error
	ValidateConfig(config *Config) error
}

type DefaultValidator struct {
	config *Config
}

func NewDefaultValidator(config *Config) *DefaultValidator {
	return &DefaultValidator{
		config: config,
	}
}

func (v *DefaultValidator) ValidatePath(path string) error {
	if path == "" {
		return fmt.Errorf("path cannot be empty")
	}

	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return fmt.Errorf("root path not found: %s", path)
		}
		return fmt.Errorf("cannot access path %s: %w", path, err)
	}

	if !info.IsDir() {
		return fmt.Errorf("root must be a directory: %s", path)
	}

	return nil
}

func (v *DefaultValidator) ValidateParams(params ReplaceParams) error {
	if params.Old == "" {
		return fmt.Errorf("search substring cannot be empty")
	}
	return nil
}

func (v *DefaultValidator) ValidateConfig(config *Config) error {
	if len(config.AllowedSuffixes) == 0 {
		return fmt.Errorf("allowed_suffixes cannot be empty")
	}

	for _, suffix := range config.AllowedSuffixes {
		if !strings.HasPrefix(suffix, ".") {
			return fmt.Errorf("suffix must start with a dot: %q", suffix)
		}
	}

	if config.MaxUploadBytes <= 0 {
		return fmt.Errorf("max_upload_bytes must be positive")
	}

	return nil
}
