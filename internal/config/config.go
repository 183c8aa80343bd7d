package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

const (
	DefaultConfigFile = "config.yaml"
	DefaultEnvFile    = ".env"

	EnvConfigFile            = "DETECTOR_CONFIG"
	EnvServerHost            = "DETECTOR_HOST"
	EnvServerPort            = "DETECTOR_PORT"
	EnvServerReadTimeout     = "DETECTOR_READ_TIMEOUT"
	EnvServerWriteTimeout    = "DETECTOR_WRITE_TIMEOUT"
	EnvServerShutdownTimeout = "DETECTOR_SHUTDOWN_TIMEOUT"
	EnvLogLevel              = "DETECTOR_LOG_LEVEL"
	EnvLogFormat             = "DETECTOR_LOG_FORMAT"
	EnvClassifierDelay       = "DETECTOR_CLASSIFIER_DELAY"
	EnvClassifierPolicy      = "DETECTOR_CLASSIFIER_POLICY"
	EnvClassifierSeed        = "DETECTOR_CLASSIFIER_SEED"
	EnvUploadMaxBytes        = "DETECTOR_UPLOAD_MAX_BYTES"
)

const (
	defaultUploadMaxBytes     = 10 << 20
	defaultClassifierDelay    = "2s"
	defaultServerReadTimeout  = "15s"
	defaultServerWriteTimeout = "30s"

	defaultServerShutdownTimeout = "15s"
)

// Classifier policies understood by the mock classifier.
const (
	PolicyDeterministic = "deterministic"
	PolicyRandom        = "random"
)

// Config is the root configuration for the detector service.
type Config struct {
	Server     ServerConfig     `yaml:"server"`
	Log        LogConfig        `yaml:"log"`
	Classifier ClassifierConfig `yaml:"classifier"`
	Upload     UploadConfig     `yaml:"upload"`
}

// ServerConfig holds HTTP server parameters.
type ServerConfig struct {
	Host            string `yaml:"host"`
	Port            int    `yaml:"port"`
	ReadTimeout     string `yaml:"read_timeout"`
	WriteTimeout    string `yaml:"write_timeout"`
	ShutdownTimeout string `yaml:"shutdown_timeout"`
}

// LogConfig selects the zap level and encoder.
type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// ClassifierConfig tunes the mock classifier.
type ClassifierConfig struct {
	Delay  string `yaml:"delay"`
	Policy string `yaml:"policy"`
	Seed   uint64 `yaml:"seed"`
}

// UploadConfig bounds accepted uploads.
type UploadConfig struct {
	MaxBytes int64 `yaml:"max_bytes"`
}

// Addr returns the listen address in host:port form.
func (s ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

// ReadTimeoutDuration returns ReadTimeout as a time.Duration.
func (s ServerConfig) ReadTimeoutDuration() time.Duration {
	d, _ := time.ParseDuration(s.ReadTimeout)
	return d
}

// WriteTimeoutDuration returns WriteTimeout as a time.Duration.
func (s ServerConfig) WriteTimeoutDuration() time.Duration {
	d, _ := time.ParseDuration(s.WriteTimeout)
	return d
}

// ShutdownTimeoutDuration returns ShutdownTimeout as a time.Duration.
func (s ServerConfig) ShutdownTimeoutDuration() time.Duration {
	d, _ := time.ParseDuration(s.ShutdownTimeout)
	return d
}

// DelayDuration returns the simulated inference delay.
func (c ClassifierConfig) DelayDuration() time.Duration {
	d, _ := time.ParseDuration(c.Delay)
	return d
}

// Load reads .env and the YAML config from the working directory. The config
// path may be overridden with DETECTOR_CONFIG.
func Load() (*Config, error) {
	path := DefaultConfigFile
	if v := os.Getenv(EnvConfigFile); v != "" {
		path = v
	}
	return LoadFrom(path, DefaultEnvFile)
}

// LoadFrom applies defaults, then the YAML file at configPath, then variables
// from envPath and the process environment. Missing files are skipped.
// Variables already set in the environment win over those in envPath.
func LoadFrom(configPath, envPath string) (*Config, error) {
	if envPath != "" {
		if err := godotenv.Load(envPath); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("load env file %s: %w", envPath, err)
		}
	}

	cfg := &Config{}
	if configPath != "" {
		data, err := os.ReadFile(configPath)
		switch {
		case err == nil:
			if err := yaml.Unmarshal(data, cfg); err != nil {
				return nil, fmt.Errorf("parse config %s: %w", configPath, err)
			}
		case errors.Is(err, fs.ErrNotExist):
		default:
			return nil, fmt.Errorf("read config %s: %w", configPath, err)
		}
	}

	if err := cfg.finalize(); err != nil {
		return nil, fmt.Errorf("finalize config: %w", err)
	}
	return cfg, nil
}

func (c *Config) finalize() error {
	c.loadDefaults()
	if err := c.loadEnv(); err != nil {
		return err
	}
	return c.validate()
}

func (c *Config) loadDefaults() {
	if c.Server.Host == "" {
		c.Server.Host = "127.0.0.1"
	}
	if c.Server.Port == 0 {
		c.Server.Port = 8080
	}
	if c.Server.ReadTimeout == "" {
		c.Server.ReadTimeout = defaultServerReadTimeout
	}
	if c.Server.WriteTimeout == "" {
		c.Server.WriteTimeout = defaultServerWriteTimeout
	}
	if c.Server.ShutdownTimeout == "" {
		c.Server.ShutdownTimeout = defaultServerShutdownTimeout
	}
	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
	if c.Log.Format == "" {
		c.Log.Format = "json"
	}
	if c.Classifier.Delay == "" {
		c.Classifier.Delay = defaultClassifierDelay
	}
	if c.Classifier.Policy == "" {
		c.Classifier.Policy = PolicyDeterministic
	}
	if c.Upload.MaxBytes == 0 {
		c.Upload.MaxBytes = defaultUploadMaxBytes
	}
}

func (c *Config) loadEnv() error {
	if v := os.Getenv(EnvServerHost); v != "" {
		c.Server.Host = v
	}
	if v := os.Getenv(EnvServerPort); v != "" {
		port, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("%s: %w", EnvServerPort, err)
		}
		c.Server.Port = port
	}
	if v := os.Getenv(EnvServerReadTimeout); v != "" {
		c.Server.ReadTimeout = v
	}
	if v := os.Getenv(EnvServerWriteTimeout); v != "" {
		c.Server.WriteTimeout = v
	}
	if v := os.Getenv(EnvServerShutdownTimeout); v != "" {
		c.Server.ShutdownTimeout = v
	}
	if v := os.Getenv(EnvLogLevel); v != "" {
		c.Log.Level = v
	}
	if v := os.Getenv(EnvLogFormat); v != "" {
		c.Log.Format = v
	}
	if v := os.Getenv(EnvClassifierDelay); v != "" {
		c.Classifier.Delay = v
	}
	if v := os.Getenv(EnvClassifierPolicy); v != "" {
		c.Classifier.Policy = v
	}
	if v := os.Getenv(EnvClassifierSeed); v != "" {
		seed, err := strconv.ParseUint(v, 10, 64)
		if err != nil {
			return fmt.Errorf("%s: %w", EnvClassifierSeed, err)
		}
		c.Classifier.Seed = seed
	}
	if v := os.Getenv(EnvUploadMaxBytes); v != "" {
		n, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return fmt.Errorf("%s: %w", EnvUploadMaxBytes, err)
		}
		c.Upload.MaxBytes = n
	}
	return nil
}

func (c *Config) validate() error {
	if c.Server.Port < 0 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server port %d", c.Server.Port)
	}
	durations := map[string]string{
		"server.read_timeout":     c.Server.ReadTimeout,
		"server.write_timeout":    c.Server.WriteTimeout,
		"server.shutdown_timeout": c.Server.ShutdownTimeout,
		"classifier.delay":        c.Classifier.Delay,
	}
	for name, value := range durations {
		d, err := time.ParseDuration(value)
		if err != nil {
			return fmt.Errorf("invalid %s: %w", name, err)
		}
		if d < 0 {
			return fmt.Errorf("invalid %s: must not be negative", name)
		}
	}
	switch strings.ToLower(c.Classifier.Policy) {
	case PolicyDeterministic, PolicyRandom:
		c.Classifier.Policy = strings.ToLower(c.Classifier.Policy)
	default:
		return fmt.Errorf("unknown classifier policy %q", c.Classifier.Policy)
	}
	switch c.Log.Format {
	case "json", "console":
	default:
		return fmt.Errorf("unknown log format %q", c.Log.Format)
	}
	if c.Upload.MaxBytes <= 0 {
		return errors.New("upload.max_bytes must be positive")
	}
	return nil
}
