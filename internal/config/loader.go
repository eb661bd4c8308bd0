package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	toml "github.com/pelletier/go-toml/v2"
	"gopkg.in/yaml.v3"
)

// Defaults applied by ApplyDefaults.
const (
	DefaultAddr         = ":8001"
	DefaultServiceToken = "dev-token"
)

// Config holds runtime parameters for the service.
// Zero values mean "unspecified" and will be replaced by defaults in main.
type Config struct {
	Addr         string `json:"addr" yaml:"addr" toml:"addr"`
	ServiceToken string `json:"service_token" yaml:"service_token" toml:"service_token"`

	ModelID        string `json:"model_id" yaml:"model_id" toml:"model_id"`
	Backend        string `json:"backend" yaml:"backend" toml:"backend"`
	MaxNewTokens   int    `json:"max_new_tokens" yaml:"max_new_tokens" toml:"max_new_tokens"`
	ModelDir       string `json:"model_dir" yaml:"model_dir" toml:"model_dir"`
	OnnxRuntimeLib string `json:"onnxruntime_lib" yaml:"onnxruntime_lib" toml:"onnxruntime_lib"`
	IntraOpThreads int    `json:"intra_op_threads" yaml:"intra_op_threads" toml:"intra_op_threads"`

	RemoteURL            string `json:"remote_url" yaml:"remote_url" toml:"remote_url"`
	RemoteToken          string `json:"remote_token" yaml:"remote_token" toml:"remote_token"`
	RemoteFormat         string `json:"remote_format" yaml:"remote_format" toml:"remote_format"`
	RemoteTimeoutSeconds int    `json:"remote_timeout_seconds" yaml:"remote_timeout_seconds" toml:"remote_timeout_seconds"`

	MaxUploadBytes      int64 `json:"max_upload_bytes" yaml:"max_upload_bytes" toml:"max_upload_bytes"`
	InferTimeoutSeconds int64 `json:"infer_timeout_seconds" yaml:"infer_timeout_seconds" toml:"infer_timeout_seconds"`

	LogLevel   string `json:"log_level" yaml:"log_level" toml:"log_level"`
	RequestLog string `json:"request_log" yaml:"request_log" toml:"request_log"`

	CORSEnabled        bool     `json:"cors_enabled" yaml:"cors_enabled" toml:"cors_enabled"`
	CORSAllowedOrigins []string `json:"cors_allowed_origins" yaml:"cors_allowed_origins" toml:"cors_allowed_origins"`
	CORSAllowedMethods []string `json:"cors_allowed_methods" yaml:"cors_allowed_methods" toml:"cors_allowed_methods"`
	CORSAllowedHeaders []string `json:"cors_allowed_headers" yaml:"cors_allowed_headers" toml:"cors_allowed_headers"`
}

// Load reads a configuration file based on its extension.
// Supports: .yaml/.yml, .json, .toml
func Load(path string) (Config, error) {
	var cfg Config
	if path == "" {
		return cfg, fmt.Errorf("empty config path")
	}
	b, err := os.ReadFile(path)
	if err != nil {
		return cfg, err
	}
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(b, &cfg); err != nil {
			return cfg, err
		}
	case ".json":
		if err := json.Unmarshal(b, &cfg); err != nil {
			return cfg, err
		}
	case ".toml":
		if err := toml.Unmarshal(b, &cfg); err != nil {
			return cfg, err
		}
	default:
		return cfg, fmt.Errorf("unsupported config extension: %s", ext)
	}
	return cfg, nil
}

// FromEnv overlays non-blank environment variables onto cfg. Secrets are
// taken exactly as set; only an unset or empty value leaves them alone.
// lookup is os.LookupEnv in production; tests pass a map-backed func.
func FromEnv(cfg Config, lookup func(string) (string, bool)) (Config, error) {
	if lookup == nil {
		lookup = os.LookupEnv
	}
	str := func(key string, dst *string) {
		if v, ok := lookup(key); ok && strings.TrimSpace(v) != "" {
			*dst = v
		}
	}
	secret := func(key string, dst *string) {
		if v, ok := lookup(key); ok && v != "" {
			*dst = v
		}
	}
	str("CAPTIOND_ADDR", &cfg.Addr)
	secret("SERVICE_TOKEN", &cfg.ServiceToken)
	str("CAPTIOND_MODEL_ID", &cfg.ModelID)
	str("CAPTIOND_BACKEND", &cfg.Backend)
	str("CAPTIOND_MODEL_DIR", &cfg.ModelDir)
	str("ONNXRUNTIME_LIB", &cfg.OnnxRuntimeLib)
	str("CAPTIOND_REMOTE_URL", &cfg.RemoteURL)
	secret("CAPTIOND_REMOTE_TOKEN", &cfg.RemoteToken)
	str("CAPTIOND_REMOTE_FORMAT", &cfg.RemoteFormat)
	str("CAPTIOND_LOG_LEVEL", &cfg.LogLevel)
	str("CAPTIOND_REQUEST_LOG", &cfg.RequestLog)

	if v, ok := lookup("CAPTIOND_MAX_NEW_TOKENS"); ok && strings.TrimSpace(v) != "" {
		n, err := strconv.Atoi(strings.TrimSpace(v))
		if err != nil {
			return cfg, fmt.Errorf("CAPTIOND_MAX_NEW_TOKENS: %w", err)
		}
		cfg.MaxNewTokens = n
	}
	if v, ok := lookup("CAPTIOND_INFER_TIMEOUT_SECONDS"); ok && strings.TrimSpace(v) != "" {
		n, err := strconv.ParseInt(strings.TrimSpace(v), 10, 64)
		if err != nil {
			return cfg, fmt.Errorf("CAPTIOND_INFER_TIMEOUT_SECONDS: %w", err)
		}
		cfg.InferTimeoutSeconds = n
	}
	return cfg, nil
}

// ApplyDefaults fills the fields that main cannot leave empty.
// Model and backend defaults belong to the captioner package.
func (c Config) ApplyDefaults() Config {
	if strings.TrimSpace(c.Addr) == "" {
		c.Addr = DefaultAddr
	}
	if c.ServiceToken == "" {
		c.ServiceToken = DefaultServiceToken
	}
	return c
}
