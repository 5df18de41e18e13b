package gateway

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// Config points the console at its two remote collaborators: the ANTLR
// parsing server (upload + parse) and the graph/conversion backend
// (understanding, convert, delete-all, alarms).
type Config struct {
	ParserEndpoint  string
	BackendEndpoint string

	// Timeout bounds plain request/response calls. Streaming calls
	// deliberately carry no overall deadline; a stalled stream is only
	// detected through transport errors, matching the origin behavior.
	Timeout time.Duration

	AcceptLanguage string

	HTTPMaxIdleConns    int
	HTTPMaxIdlePerHost  int
	HTTPMaxConnsPerHost int
	HTTPIdleConnTimeout time.Duration
}

// DefaultConfig returns the local-development defaults.
func DefaultConfig() Config {
	return Config{
		ParserEndpoint:      "http://localhost:8077",
		BackendEndpoint:     "http://localhost:8088",
		Timeout:             120 * time.Second,
		HTTPMaxIdleConns:    16,
		HTTPMaxIdlePerHost:  8,
		HTTPMaxConnsPerHost: 16,
		HTTPIdleConnTimeout: 90 * time.Second,
	}
}

// Merge overlays non-zero override fields onto the base configuration.
func (c Config) Merge(override Config) Config {
	result := c
	if trimmed := strings.TrimSpace(override.ParserEndpoint); trimmed != "" {
		result.ParserEndpoint = trimmed
	}
	if trimmed := strings.TrimSpace(override.BackendEndpoint); trimmed != "" {
		result.BackendEndpoint = trimmed
	}
	if override.Timeout > 0 {
		result.Timeout = override.Timeout
	}
	if trimmed := strings.TrimSpace(override.AcceptLanguage); trimmed != "" {
		result.AcceptLanguage = trimmed
	}
	if override.HTTPMaxIdleConns > 0 {
		result.HTTPMaxIdleConns = override.HTTPMaxIdleConns
	}
	if override.HTTPMaxIdlePerHost > 0 {
		result.HTTPMaxIdlePerHost = override.HTTPMaxIdlePerHost
	}
	if override.HTTPMaxConnsPerHost > 0 {
		result.HTTPMaxConnsPerHost = override.HTTPMaxConnsPerHost
	}
	if override.HTTPIdleConnTimeout > 0 {
		result.HTTPIdleConnTimeout = override.HTTPIdleConnTimeout
	}
	return result
}

// LoadConfig reads configuration from the environment and applies defaults.
func LoadConfig() (Config, error) {
	cfg := Config{}
	if endpoint := strings.TrimSpace(os.Getenv("ROBO_PARSER_URL")); endpoint != "" {
		cfg.ParserEndpoint = endpoint
	}
	if endpoint := strings.TrimSpace(os.Getenv("ROBO_BACKEND_URL")); endpoint != "" {
		cfg.BackendEndpoint = endpoint
	}
	if timeout := strings.TrimSpace(os.Getenv("ROBO_GATEWAY_TIMEOUT")); timeout != "" {
		parsed, err := time.ParseDuration(timeout)
		if err != nil {
			return Config{}, err
		}
		cfg.Timeout = parsed
	}
	if lang := strings.TrimSpace(os.Getenv("ROBO_ACCEPT_LANGUAGE")); lang != "" {
		cfg.AcceptLanguage = lang
	}
	if conns := strings.TrimSpace(os.Getenv("ROBO_GATEWAY_MAX_IDLE_CONNS")); conns != "" {
		if value, err := strconv.Atoi(conns); err == nil && value > 0 {
			cfg.HTTPMaxIdleConns = value
		}
	}
	return DefaultConfig().Merge(cfg), nil
}
