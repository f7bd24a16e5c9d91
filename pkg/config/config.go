// Package config loads named authentication targets from a YAML file.
//
//	targets:
//	  uaa-api:
//	    strategy: uaa-oauth2-cached
//	    parameters:
//	      clientId: scanner
//	      clientSecret: ${UAA_CLIENT_SECRET}
//	      tokenUrl: https://uaa.example.com/oauth/token
//	    retry:
//	      attempts: 3
//	      initialBackoff: 200ms
//
// Parameter and credential values have ${VAR} references expanded from the
// environment, which LoadEnv can populate from a .env file. Any other $ is
// left as written.
package config

import (
	"errors"
	"fmt"
	"os"
	"regexp"
	"slices"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

var (
	// ErrInvalidConfig indicates the file could not be read or fails validation.
	ErrInvalidConfig = errors.New("config: invalid configuration")
	// ErrTargetNotFound indicates a requested target is not defined.
	ErrTargetNotFound = errors.New("config: target not found")
)

// File is the top-level configuration document.
type File struct {
	// HTTP tunes the client used for token requests.
	HTTP HTTPConfig `yaml:"http"`

	// Targets maps a target name to its strategy configuration.
	Targets map[string]Target `yaml:"targets"`
}

// HTTPConfig tunes the token endpoint client.
type HTTPConfig struct {
	// Timeout bounds each token request. Zero uses the library default.
	Timeout time.Duration `yaml:"timeout"`

	// InsecureSkipVerify disables TLS certificate verification (not recommended).
	InsecureSkipVerify bool `yaml:"insecureSkipVerify"`
}

// Target describes how to authenticate against one system.
type Target struct {
	Strategy          string            `yaml:"strategy"`
	Parameters        map[string]string `yaml:"parameters"`
	Credentials       map[string]string `yaml:"credentials"`
	ContinueOnFailure bool              `yaml:"continueOnFailure"`
	Retry             *RetryConfig      `yaml:"retry,omitempty"`
}

// RetryConfig enables retries of transient token request failures.
type RetryConfig struct {
	Attempts       int           `yaml:"attempts"`
	InitialBackoff time.Duration `yaml:"initialBackoff"`
}

// Load reads, expands and validates the configuration at path.
func Load(path string) (*File, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}

	file, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("%w (%s)", err, path)
	}
	return file, nil
}

// Parse decodes, expands and validates a configuration document.
func Parse(data []byte) (*File, error) {
	var file File
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}

	file.expand(os.Getenv)

	if err := file.Validate(); err != nil {
		return nil, err
	}
	return &file, nil
}

// Validate checks that every target names a strategy.
func (f *File) Validate() error {
	if f == nil || len(f.Targets) == 0 {
		return fmt.Errorf("%w: no targets defined", ErrInvalidConfig)
	}
	if f.HTTP.Timeout < 0 {
		return fmt.Errorf("%w: http.timeout must not be negative", ErrInvalidConfig)
	}

	for _, name := range f.TargetNames() {
		target := f.Targets[name]
		if strings.TrimSpace(target.Strategy) == "" {
			return fmt.Errorf("%w: target %q has no strategy", ErrInvalidConfig, name)
		}
		if target.Retry != nil && target.Retry.Attempts < 0 {
			return fmt.Errorf("%w: target %q retry.attempts must not be negative", ErrInvalidConfig, name)
		}
	}
	return nil
}

// Target returns the named target.
func (f *File) Target(name string) (Target, error) {
	target, ok := f.Targets[name]
	if !ok {
		return Target{}, fmt.Errorf("%w: %q", ErrTargetNotFound, name)
	}
	return target, nil
}

// TargetNames returns the target names in lexical order.
func (f *File) TargetNames() []string {
	names := make([]string, 0, len(f.Targets))
	for name := range f.Targets {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}

func (f *File) expand(getenv func(string) string) {
	for name, target := range f.Targets {
		target.Parameters = expandValues(target.Parameters, getenv)
		target.Credentials = expandValues(target.Credentials, getenv)
		f.Targets[name] = target
	}
}

// envRef matches ${NAME}. A bare $ is kept literally so that secrets
// containing one survive loading.
var envRef = regexp.MustCompile(`\$\{([A-Za-z_][A-Za-z0-9_]*)\}`)

func expandValues(values map[string]string, getenv func(string) string) map[string]string {
	expanded := make(map[string]string, len(values))
	for k, v := range values {
		expanded[k] = envRef.ReplaceAllStringFunc(v, func(ref string) string {
			return getenv(ref[2 : len(ref)-1])
		})
	}
	return expanded
}

// LoadEnv loads environment variables from the given .env files. Variables
// already set in the environment take precedence. With no paths it loads
// ./.env if present.
func LoadEnv(paths ...string) error {
	if len(paths) == 0 {
		if _, err := os.Stat(".env"); errors.Is(err, os.ErrNotExist) {
			return nil
		}
	}
	if err := godotenv.Load(paths...); err != nil {
		return fmt.Errorf("%w: load env: %w", ErrInvalidConfig, err)
	}
	return nil
}
