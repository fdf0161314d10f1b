package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/dustin/go-humanize"
	"golang.org/x/crypto/bcrypt"
)

// ValidationError represents a configuration validation error.
type ValidationError struct {
	Field   string
	Message string
}

// Error implements the error interface.
func (e ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// ValidateConfig validates the configuration and returns a list of validation errors.
// An empty slice indicates the configuration is valid.
func ValidateConfig(config *Config) []error {
	var errs []error

	errs = append(errs, validateStorageConfig(&config.Storage)...)
	errs = append(errs, validateLogConfig(&config.Logging)...)
	errs = append(errs, validateSchemaConfig(&config.Schema)...)
	errs = append(errs, validateACLConfig(&config.ACL)...)
	errs = append(errs, validatePasswordConfig(&config.Password)...)

	return errs
}

func validateStorageConfig(config *StorageConfig) []error {
	var errs []error

	switch strings.ToLower(config.Backend) {
	case "memory":
	case "badger", "sqlite":
		if config.Path == "" {
			errs = append(errs, ValidationError{
				Field:   "storage.path",
				Message: fmt.Sprintf("required for the %s backend", config.Backend),
			})
		}
	default:
		errs = append(errs, ValidationError{
			Field:   "storage.backend",
			Message: "must be memory, badger, or sqlite",
		})
	}

	if config.CacheSize != "" {
		if _, err := humanize.ParseBytes(config.CacheSize); err != nil {
			errs = append(errs, ValidationError{
				Field:   "storage.cacheSize",
				Message: err.Error(),
			})
		}
	}

	return errs
}

func validateLogConfig(config *LogConfig) []error {
	var errs []error

	validLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if config.Level != "" && !validLevels[strings.ToLower(config.Level)] {
		errs = append(errs, ValidationError{
			Field:   "logging.level",
			Message: "must be debug, info, warn, or error",
		})
	}

	validFormats := map[string]bool{"text": true, "json": true}
	if config.Format != "" && !validFormats[strings.ToLower(config.Format)] {
		errs = append(errs, ValidationError{
			Field:   "logging.format",
			Message: "must be text or json",
		})
	}

	if config.Output != "" && config.Output != "stdout" && config.Output != "stderr" {
		dir := filepath.Dir(config.Output)
		if !filepath.IsAbs(config.Output) {
			errs = append(errs, ValidationError{
				Field:   "logging.output",
				Message: "must be stdout, stderr, or an absolute file path",
			})
		} else if _, err := os.Stat(dir); os.IsNotExist(err) {
			errs = append(errs, ValidationError{
				Field:   "logging.output",
				Message: fmt.Sprintf("directory %s does not exist", dir),
			})
		}
	}

	return errs
}

func validateSchemaConfig(config *SchemaConfig) []error {
	if config.File == "" {
		return nil
	}
	if _, err := os.Stat(config.File); err != nil {
		return []error{ValidationError{Field: "schema.file", Message: err.Error()}}
	}
	return nil
}

func validateACLConfig(config *ACLConfig) []error {
	var errs []error

	policy := strings.ToLower(config.DefaultPolicy)
	if policy != "" && policy != "allow" && policy != "deny" {
		errs = append(errs, ValidationError{
			Field:   "acl.defaultPolicy",
			Message: "must be allow or deny",
		})
	}

	if config.File != "" {
		if _, err := os.Stat(config.File); err != nil {
			errs = append(errs, ValidationError{Field: "acl.file", Message: err.Error()})
		}
	}

	return errs
}

func validatePasswordConfig(config *PasswordConfig) []error {
	var errs []error
	p := &config.Policy

	if p.Enabled {
		if p.MinLength < 1 {
			errs = append(errs, ValidationError{
				Field:   "password.policy.minLength",
				Message: "must be at least 1 when password policy is enabled",
			})
		}
		if p.MaxLength != 0 && p.MaxLength < p.MinLength {
			errs = append(errs, ValidationError{
				Field:   "password.policy.maxLength",
				Message: "must not be less than minLength",
			})
		}
	}

	if p.HistoryCount < 0 {
		errs = append(errs, ValidationError{
			Field:   "password.policy.historyCount",
			Message: "must be non-negative",
		})
	}

	if config.BcryptCost != 0 && (config.BcryptCost < bcrypt.MinCost || config.BcryptCost > bcrypt.MaxCost) {
		errs = append(errs, ValidationError{
			Field:   "password.bcryptCost",
			Message: fmt.Sprintf("must be between %d and %d", bcrypt.MinCost, bcrypt.MaxCost),
		})
	}

	return errs
}
