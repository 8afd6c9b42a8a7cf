// Package config provides YAML-based configuration loading with environment variable expansion.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"

	"gopkg.in/yaml.v3"
)

// Validator is an interface for configuration validation.
type Validator interface {
	Validate() error
}

// Decode reads a YAML file into target after expanding $VAR and ${VAR}
// references against the environment. Keys unknown to target are an error.
// Fields absent from the file keep the value target already holds, so
// defaults can be set before calling. A missing file yields an error
// matching fs.ErrNotExist.
func Decode[T any](filename string, target *T) error {
	data, err := os.ReadFile(filename)
	if err != nil {
		return fmt.Errorf("failed to read config file %s: %w", filename, err)
	}

	dec := yaml.NewDecoder(bytes.NewBufferString(os.ExpandEnv(string(data))))
	dec.KnownFields(true)
	if err := dec.Decode(target); err != nil && !errors.Is(err, io.EOF) {
		return fmt.Errorf("failed to parse config file %s: %w", filename, err)
	}
	return nil
}

// Validate runs target's Validate method when it has one.
func Validate(target any) error {
	if validator, ok := target.(Validator); ok {
		if err := validator.Validate(); err != nil {
			return fmt.Errorf("config validation failed: %w", err)
		}
	}
	return nil
}

// Load decodes and validates configuration from a YAML file.
func Load[T any](filename string, target *T) error {
	if err := Decode(filename, target); err != nil {
		return err
	}
	return Validate(target)
}

// LoadWithDefaults is Load, except that a missing file leaves target at the
// defaults it already holds. It reports whether the file was read.
func LoadWithDefaults[T any](filename string, target *T) (bool, error) {
	err := Decode(filename, target)
	if errors.Is(err, fs.ErrNotExist) {
		return false, Validate(target)
	}
	if err != nil {
		return false, err
	}
	return true, Validate(target)
}
