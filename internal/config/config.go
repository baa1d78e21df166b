// Package config loads and validates the engine's JSON configuration
// file (§6). Unlike the bespoke flux validator, this is a plain
// struct-tag schema over go-playground/validator/v10 — the config shape
// is fixed and flat enough that a generic tag-driven pass is the right
// tool (see DESIGN.md).
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"regexp"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"
)

// CORSConfig mirrors §6's `server.cors` object. Origin may be a bool, a
// single string, or a list of strings, so it stays untyped here and is
// narrowed by the CORS middleware at request time.
type CORSConfig struct {
	Origin         any      `json:"origin,omitempty"`
	Credentials    bool     `json:"credentials,omitempty"`
	Methods        []string `json:"methods,omitempty"`
	AllowedHeaders []string `json:"allowedHeaders,omitempty"`
	ExposedHeaders []string `json:"exposedHeaders,omitempty"`
	MaxAge         int      `json:"maxAge,omitempty"`
}

// ServerConfig mirrors §6's `server` object.
type ServerConfig struct {
	Port        int              `json:"port" validate:"required,min=1,max=65535"`
	Host        string           `json:"host,omitempty"`
	CORS        *CORSConfig      `json:"cors,omitempty"`
	DebugRoutes bool             `json:"debugRoutes,omitempty"`
	RateLimit   *RateLimitConfig `json:"rateLimit,omitempty"`
}

// RateLimitConfig gates the Redis-backed rate limiter middleware. It
// only takes effect when a `cache`/`redis` plugin is also configured;
// router.New logs and skips it otherwise.
type RateLimitConfig struct {
	Requests      int `json:"requests" validate:"required,min=1"`
	WindowSeconds int `json:"windowSeconds" validate:"required,min=1"`
}

// SwaggerConfig mirrors §6's top-level `swagger` object gating the
// introspection route tree (§4.7).
type SwaggerConfig struct {
	Enabled bool `json:"enabled,omitempty"`
}

// PathsConfig mirrors §6's `paths` object: the loader's two roots.
type PathsConfig struct {
	Actions string `json:"actions" validate:"required"`
	Flux    string `json:"flux" validate:"required"`
}

// LoggingConfig mirrors §6's `logging` object.
type LoggingConfig struct {
	Level string `json:"level" validate:"required,oneof=debug info warn error"`
}

// PluginEntry is one mapping entry under `plugins`: a type discriminator
// plus arbitrary adapter-specific options.
type PluginEntry struct {
	Type    string         `json:"type" validate:"required"`
	Options map[string]any `json:"-"`
}

// UnmarshalJSON captures the "type" field into Type and everything else
// into Options, since each plugin adapter defines its own option shape.
func (p *PluginEntry) UnmarshalJSON(data []byte) error {
	var raw map[string]any
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	if t, ok := raw["type"].(string); ok {
		p.Type = t
	}
	delete(raw, "type")
	p.Options = raw
	return nil
}

// LoaderConfig carries the optional cron-scheduled reload setting
// (§9 Design Notes, "Hot reload").
type LoaderConfig struct {
	ReloadCron string `json:"reloadCron,omitempty"`
}

// Config is the fully resolved, validated engine configuration.
type Config struct {
	Server  ServerConfig           `json:"server" validate:"required"`
	Paths   PathsConfig            `json:"paths" validate:"required"`
	Logging LoggingConfig          `json:"logging" validate:"required"`
	Plugins map[string]PluginEntry `json:"plugins,omitempty"`
	Loader  LoaderConfig           `json:"loader,omitempty"`
	Swagger SwaggerConfig          `json:"swagger,omitempty"`
}

var structValidate = validator.New()

var (
	fullEnvPattern = regexp.MustCompile(`^\$\{([^}]+)\}$`)
	anyEnvPattern  = regexp.MustCompile(`\$\{([^}]+)\}`)
)

// Load reads a JSON config file from path, substitutes `${VAR}`
// placeholders from the process environment (§6 "Environment
// interpolation"), and validates the result.
func Load(path string) (*Config, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: read %s: %w", path, err)
	}

	var generic any
	if err := json.Unmarshal(raw, &generic); err != nil {
		return nil, fmt.Errorf("config: parse %s: %w", path, err)
	}

	resolved := resolveEnv(generic)

	resolvedJSON, err := json.Marshal(resolved)
	if err != nil {
		return nil, fmt.Errorf("config: re-encode after env substitution: %w", err)
	}

	var cfg Config
	if err := json.Unmarshal(resolvedJSON, &cfg); err != nil {
		return nil, fmt.Errorf("config: decode into typed config: %w", err)
	}

	if err := structValidate.Struct(&cfg); err != nil {
		return nil, fmt.Errorf("config: validation failed: %w", err)
	}

	return &cfg, nil
}

// resolveEnv recursively walks a generic JSON value substituting `${VAR}`
// placeholders from the environment, following the same value-mode /
// string-mode split as the interpolator package: a string that is
// *entirely* one placeholder preserves the substituted value's inferred
// type (number, bool, string); a placeholder embedded in a larger string
// is substituted as text.
func resolveEnv(v any) any {
	switch t := v.(type) {
	case string:
		return resolveEnvString(t)
	case []any:
		out := make([]any, len(t))
		for i, item := range t {
			out[i] = resolveEnv(item)
		}
		return out
	case map[string]any:
		out := make(map[string]any, len(t))
		for k, item := range t {
			out[k] = resolveEnv(item)
		}
		return out
	default:
		return v
	}
}

func resolveEnvString(s string) any {
	if !strings.Contains(s, "${") {
		return s
	}
	if m := fullEnvPattern.FindStringSubmatch(s); m != nil {
		val, ok := os.LookupEnv(m[1])
		if !ok {
			return s
		}
		return coerce(val)
	}
	return anyEnvPattern.ReplaceAllStringFunc(s, func(match string) string {
		name := match[2 : len(match)-1]
		val, _ := os.LookupEnv(name)
		return val
	})
}

func coerce(val string) any {
	if b, err := strconv.ParseBool(val); err == nil {
		return b
	}
	if f, err := strconv.ParseFloat(val, 64); err == nil {
		return f
	}
	return val
}
