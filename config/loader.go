// Unified configuration loading: YAML file + environment overrides.
//
// Usage:
//
//	cfg, err := config.NewLoader().
//	    WithConfigPath("config.yaml").
//	    WithEnvPrefix("COUNCILFLOW").
//	    Load()
//
// Precedence: defaults, then YAML file, then environment variables.

package config

import (
	"fmt"
	"os"
	"reflect"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/BaSui01/councilflow/conversation"
	"github.com/BaSui01/councilflow/llm/factory"
)

// Config is the complete CouncilFlow configuration.
type Config struct {
	// Server holds the HTTP server settings.
	Server ServerConfig `yaml:"server" env:"SERVER"`

	// Council holds the deliberation roster and per-call limits.
	Council CouncilConfig `yaml:"council" env:"COUNCIL"`

	// LLM holds provider credentials and gateway settings.
	LLM LLMConfig `yaml:"llm" env:"LLM"`

	// Conversation holds the persistence settings.
	Conversation ConversationConfig `yaml:"conversation" env:"CONVERSATION"`

	// Auth holds API authentication settings.
	Auth AuthConfig `yaml:"auth" env:"AUTH"`

	// Log holds logging settings.
	Log LogConfig `yaml:"log" env:"LOG"`

	// Telemetry holds tracing settings.
	Telemetry TelemetryConfig `yaml:"telemetry" env:"TELEMETRY"`
}

// ServerConfig holds the HTTP server settings.
type ServerConfig struct {
	// HTTP port
	HTTPPort int `yaml:"http_port" env:"HTTP_PORT"`
	// Metrics / admin port
	MetricsPort int `yaml:"metrics_port" env:"METRICS_PORT"`
	// Read timeout
	ReadTimeout time.Duration `yaml:"read_timeout" env:"READ_TIMEOUT"`
	// Write timeout. SSE and WebSocket round streams run until the
	// deliberation finishes, so this applies to the plain JSON endpoints only.
	WriteTimeout time.Duration `yaml:"write_timeout" env:"WRITE_TIMEOUT"`
	// Graceful shutdown timeout
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout" env:"SHUTDOWN_TIMEOUT"`
	// Sustained requests per second allowed per client
	RateLimitRPS float64 `yaml:"rate_limit_rps" env:"RATE_LIMIT_RPS"`
	// Burst size for the rate limiter
	RateLimitBurst int `yaml:"rate_limit_burst" env:"RATE_LIMIT_BURST"`
	// Allowed CORS origins, "*" for any
	CORSOrigins []string `yaml:"cors_origins" env:"CORS_ORIGINS"`
}

// CouncilConfig holds the deliberation roster.
type CouncilConfig struct {
	// Members are the council model identifiers, "provider/model" form.
	Members []string `yaml:"members" env:"MEMBERS"`
	// Chairman is the synthesis model. Empty selects the first usable member.
	Chairman string `yaml:"chairman" env:"CHAIRMAN"`
	// TitleModel names conversation titles. Empty selects a cheap default.
	TitleModel string `yaml:"title_model" env:"TITLE_MODEL"`
	// PerCallTimeout bounds each individual model call.
	PerCallTimeout time.Duration `yaml:"per_call_timeout" env:"PER_CALL_TIMEOUT"`
}

// LLMConfig holds provider credentials and gateway settings.
type LLMConfig struct {
	// Default provider name
	Default string `yaml:"default" env:"DEFAULT"`
	// Providers maps provider name to its connection settings. API keys are
	// normally injected from the environment, see ApplyProviderKeyEnv.
	Providers map[string]factory.ProviderConfig `yaml:"providers" env:"-"`
	// Request timeout per model call attempt
	Timeout time.Duration `yaml:"timeout" env:"TIMEOUT"`
	// Maximum retries for retryable upstream errors
	MaxRetries int `yaml:"max_retries" env:"MAX_RETRIES"`
	// Completion token cap, 0 for provider default
	MaxTokens int `yaml:"max_tokens" env:"MAX_TOKENS"`
	// Sampling temperature
	Temperature float64 `yaml:"temperature" env:"TEMPERATURE"`
}

// Registry returns the provider registry configuration consumed by
// factory.NewRegistryFromConfig.
func (l *LLMConfig) Registry() factory.RegistryConfig {
	return factory.RegistryConfig{
		Default:   l.Default,
		Providers: l.Providers,
	}
}

// ConversationConfig holds the persistence settings.
type ConversationConfig struct {
	// Store selects and configures the conversation backend.
	Store conversation.StoreConfig `yaml:"store" env:"STORE"`
}

// AuthConfig holds API authentication settings.
type AuthConfig struct {
	// Enabled turns authentication on for the public API.
	Enabled bool `yaml:"enabled" env:"ENABLED"`
	// JWTSecret signs and verifies bearer tokens.
	JWTSecret string `yaml:"jwt_secret" env:"JWT_SECRET"`
	// APIKey guards the admin endpoints. Empty disables the check.
	APIKey string `yaml:"api_key" env:"API_KEY"`
	// TokenTTL is the issued token lifetime.
	TokenTTL time.Duration `yaml:"token_ttl" env:"TOKEN_TTL"`
}

// LogConfig holds logging settings.
type LogConfig struct {
	// Level: debug, info, warn, error
	Level string `yaml:"level" env:"LEVEL"`
	// Format: json, console
	Format string `yaml:"format" env:"FORMAT"`
	// Output paths
	OutputPaths []string `yaml:"output_paths" env:"OUTPUT_PATHS"`
	// Include caller information
	EnableCaller bool `yaml:"enable_caller" env:"ENABLE_CALLER"`
	// Include stack traces on error
	EnableStacktrace bool `yaml:"enable_stacktrace" env:"ENABLE_STACKTRACE"`
}

// TelemetryConfig holds tracing settings.
type TelemetryConfig struct {
	// Enabled turns OTLP trace export on.
	Enabled bool `yaml:"enabled" env:"ENABLED"`
	// OTLP gRPC endpoint
	OTLPEndpoint string `yaml:"otlp_endpoint" env:"OTLP_ENDPOINT"`
	// Reported service name
	ServiceName string `yaml:"service_name" env:"SERVICE_NAME"`
	// Trace sample rate, 0 to 1
	SampleRate float64 `yaml:"sample_rate" env:"SAMPLE_RATE"`
}

// Loader loads configuration, builder style.
type Loader struct {
	configPath string
	envPrefix  string
	validators []func(*Config) error
}

// NewLoader creates a configuration loader.
func NewLoader() *Loader {
	return &Loader{
		envPrefix:  "COUNCILFLOW",
		validators: make([]func(*Config) error, 0),
	}
}

// WithConfigPath sets the YAML file path.
func (l *Loader) WithConfigPath(path string) *Loader {
	l.configPath = path
	return l
}

// WithEnvPrefix sets the environment variable prefix.
func (l *Loader) WithEnvPrefix(prefix string) *Loader {
	l.envPrefix = prefix
	return l
}

// WithValidator adds a validation function run after loading.
func (l *Loader) WithValidator(v func(*Config) error) *Loader {
	l.validators = append(l.validators, v)
	return l
}

// Load loads the configuration.
// Precedence: defaults, then YAML file, then environment variables.
func (l *Loader) Load() (*Config, error) {
	// 1. Start from defaults
	cfg := DefaultConfig()

	// 2. Overlay the YAML file when one is configured
	if l.configPath != "" {
		if err := l.loadFromFile(cfg); err != nil {
			return nil, fmt.Errorf("failed to load config from file: %w", err)
		}
	}

	// 3. Overlay environment variables
	if err := l.loadFromEnv(cfg); err != nil {
		return nil, fmt.Errorf("failed to load config from env: %w", err)
	}

	// 4. Overlay well-known provider API key variables
	cfg.ApplyProviderKeyEnv()

	// 5. Run validators
	for _, v := range l.validators {
		if err := v(cfg); err != nil {
			return nil, fmt.Errorf("config validation failed: %w", err)
		}
	}

	return cfg, nil
}

// loadFromFile overlays the YAML file. A missing file is not an error.
func (l *Loader) loadFromFile(cfg *Config) error {
	data, err := os.ReadFile(l.configPath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("failed to read config file: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("failed to parse config file: %w", err)
	}

	return nil
}

// loadFromEnv overlays environment variables.
func (l *Loader) loadFromEnv(cfg *Config) error {
	return l.setFieldsFromEnv(reflect.ValueOf(cfg).Elem(), l.envPrefix)
}

// setFieldsFromEnv walks struct fields recursively, matching env tags.
func (l *Loader) setFieldsFromEnv(v reflect.Value, prefix string) error {
	t := v.Type()

	for i := 0; i < v.NumField(); i++ {
		field := v.Field(i)
		fieldType := t.Field(i)

		envTag := fieldType.Tag.Get("env")
		if envTag == "" || envTag == "-" {
			continue
		}

		envKey := prefix + "_" + envTag

		if field.Kind() == reflect.Struct && field.Type() != reflect.TypeOf(time.Time{}) {
			if err := l.setFieldsFromEnv(field, envKey); err != nil {
				return err
			}
			continue
		}

		envValue := os.Getenv(envKey)
		if envValue == "" {
			continue
		}

		if err := setFieldValue(field, envValue); err != nil {
			return fmt.Errorf("failed to set %s: %w", envKey, err)
		}
	}

	return nil
}

// setFieldValue assigns a string environment value to a config field.
func setFieldValue(field reflect.Value, value string) error {
	if !field.CanSet() {
		return nil
	}

	switch field.Kind() {
	case reflect.String:
		field.SetString(value)

	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		// time.Duration fields take "90s" style values
		if field.Type() == reflect.TypeOf(time.Duration(0)) {
			d, err := time.ParseDuration(value)
			if err != nil {
				return err
			}
			field.SetInt(int64(d))
		} else {
			i, err := strconv.ParseInt(value, 10, 64)
			if err != nil {
				return err
			}
			field.SetInt(i)
		}

	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		u, err := strconv.ParseUint(value, 10, 64)
		if err != nil {
			return err
		}
		field.SetUint(u)

	case reflect.Float32, reflect.Float64:
		f, err := strconv.ParseFloat(value, 64)
		if err != nil {
			return err
		}
		field.SetFloat(f)

	case reflect.Bool:
		b, err := strconv.ParseBool(value)
		if err != nil {
			return err
		}
		field.SetBool(b)

	case reflect.Slice:
		// comma-separated string slices
		if field.Type().Elem().Kind() == reflect.String {
			parts := strings.Split(value, ",")
			for i := range parts {
				parts[i] = strings.TrimSpace(parts[i])
			}
			field.Set(reflect.ValueOf(parts))
		}
	}

	return nil
}

// MustLoad loads the configuration and panics on failure.
func MustLoad(path string) *Config {
	cfg, err := NewLoader().WithConfigPath(path).Load()
	if err != nil {
		panic(fmt.Sprintf("failed to load config: %v", err))
	}
	return cfg
}

// LoadFromEnv loads the configuration from environment variables only.
func LoadFromEnv() (*Config, error) {
	return NewLoader().Load()
}

// Validate checks the configuration for consistency.
func (c *Config) Validate() error {
	var errs []string

	if c.Server.HTTPPort <= 0 || c.Server.HTTPPort > 65535 {
		errs = append(errs, "invalid HTTP port")
	}
	if c.Server.MetricsPort <= 0 || c.Server.MetricsPort > 65535 {
		errs = append(errs, "invalid metrics port")
	}

	if c.Council.PerCallTimeout <= 0 {
		errs = append(errs, "per_call_timeout must be positive")
	}

	if c.LLM.MaxRetries < 0 {
		errs = append(errs, "max_retries must not be negative")
	}
	if c.LLM.Temperature < 0 || c.LLM.Temperature > 2 {
		errs = append(errs, "temperature must be between 0 and 2")
	}

	if c.Auth.Enabled && c.Auth.APIKey == "" && c.Auth.JWTSecret == "" {
		errs = append(errs, "auth is enabled but neither api_key nor jwt_secret is set")
	}

	if c.Telemetry.SampleRate < 0 || c.Telemetry.SampleRate > 1 {
		errs = append(errs, "sample_rate must be between 0 and 1")
	}

	if len(errs) > 0 {
		return fmt.Errorf("config validation errors: %s", strings.Join(errs, "; "))
	}

	return nil
}
