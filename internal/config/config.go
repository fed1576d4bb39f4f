package config

import (
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds all application configuration
// Secret precedence order:
// 1. Vault (if configured) - Highest priority
// 2. Config File values
// 3. Environment Variables (RESUMEFORM_ANALYSIS_AUTHTOKEN, etc.)
// 4. Default values - Lowest priority
type Config struct {
	Analysis      AnalysisConfig      `mapstructure:"analysis"`
	Server        ServerConfig        `mapstructure:"server"`
	App           AppConfig           `mapstructure:"app"`
	Vault         VaultConfig         `mapstructure:"vault"`
	Observability ObservabilityConfig `mapstructure:"observability"`
}

// AnalysisConfig describes the remote resume analysis endpoint
type AnalysisConfig struct {
	Endpoint        string               `mapstructure:"endpoint"`
	AuthToken       string               `mapstructure:"authToken"`
	Timeout         time.Duration        `mapstructure:"timeout"` // 0 waits for the service indefinitely
	MaxResponseSize int64                `mapstructure:"maxResponseSize"`
	CircuitBreaker  CircuitBreakerConfig `mapstructure:"circuitBreaker"`
}

// CircuitBreakerConfig represents circuit breaker configuration
type CircuitBreakerConfig struct {
	Enabled          bool          `mapstructure:"enabled"`
	MaxRequests      uint32        `mapstructure:"maxRequests"`      // Max requests allowed when half-open
	Interval         time.Duration `mapstructure:"interval"`         // Interval to clear counts
	Timeout          time.Duration `mapstructure:"timeout"`          // Timeout for half-open to open
	MinRequests      uint32        `mapstructure:"minRequests"`      // Minimum requests before tripping
	FailureThreshold float64       `mapstructure:"failureThreshold"` // Failure ratio threshold (0.0-1.0)
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Host         string        `mapstructure:"host"`
	Port         string        `mapstructure:"port"`
	ReadTimeout  time.Duration `mapstructure:"readTimeout"`
	WriteTimeout time.Duration `mapstructure:"writeTimeout"`
	IdleTimeout  time.Duration `mapstructure:"idleTimeout"`
	SessionTTL   time.Duration `mapstructure:"sessionTTL"` // Idle browser sessions are evicted after this

	TLS TLSConfig `mapstructure:"tls"`

	APIKeys []string `mapstructure:"apiKeys"` // Valid API keys for /api routes

	RateLimit RateLimitConfig `mapstructure:"rateLimit"`
}

// TLSConfig holds TLS configuration for the server
type TLSConfig struct {
	Mode       string `mapstructure:"mode"`       // "disabled" or "server"
	CertFile   string `mapstructure:"certFile"`   // Server certificate file (PEM)
	KeyFile    string `mapstructure:"keyFile"`    // Server private key file (PEM)
	MinVersion string `mapstructure:"minVersion"` // "1.2" or "1.3"
	AutoReload bool   `mapstructure:"autoReload"` // Reload certFile/keyFile when they change on disk
}

// RateLimitConfig holds rate limiting configuration
type RateLimitConfig struct {
	Enabled        bool `mapstructure:"enabled"`
	RequestsPerMin int  `mapstructure:"requestsPerMin"`
	BurstCapacity  int  `mapstructure:"burstCapacity"`
	ByIP           bool `mapstructure:"byIP"`
	ByAPIKey       bool `mapstructure:"byAPIKey"`
}

// AppConfig holds application-level settings
type AppConfig struct {
	LogLevel         string   `mapstructure:"logLevel"`
	DefaultFormat    string   `mapstructure:"defaultFormat"`
	SupportedFormats []string `mapstructure:"supportedFormats"`
	MaxFileSize      int64    `mapstructure:"maxFileSize"`
}

// ObservabilityConfig holds OpenTelemetry settings
type ObservabilityConfig struct {
	Enabled         bool             `mapstructure:"enabled"`
	ServiceName     string           `mapstructure:"serviceName"`
	ServiceVersion  string           `mapstructure:"serviceVersion"`
	ServiceInstance string           `mapstructure:"serviceInstance"`
	ConsoleOutput   bool             `mapstructure:"consoleOutput"`
	PrettyPrint     bool             `mapstructure:"prettyPrint"`
	SampleRate      float64          `mapstructure:"sampleRate"`
	Metrics         MetricsConfig    `mapstructure:"metrics"`
	Prometheus      PrometheusConfig `mapstructure:"prometheus"`
	OTLP            OTLPConfig       `mapstructure:"otlp"`
}

type MetricsConfig struct {
	CollectionInterval time.Duration `mapstructure:"collectionInterval"`
}

type PrometheusConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	Endpoint string `mapstructure:"endpoint"`
	Port     string `mapstructure:"port"`
}

type OTLPConfig struct {
	Enabled  bool              `mapstructure:"enabled"`
	Endpoint string            `mapstructure:"endpoint"`
	Insecure bool              `mapstructure:"insecure"`
	Headers  map[string]string `mapstructure:"headers"`
}

// Loader reads configuration through a viper instance. Flags bound to the
// same instance override file and environment values.
type Loader struct {
	v        *viper.Viper
	envFiles []string
}

// NewLoader prepares v with defaults, env handling and config search paths
func NewLoader(v *viper.Viper) *Loader {
	setDefaults(v)
	log.Println("[CONFIG] Applied default configuration values")

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	log.Printf("[CONFIG] Configured environment variable handling with prefix '%s'", EnvPrefix)

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath("/etc/resumeform/")
	v.AddConfigPath("$HOME/.resumeform")
	v.AddConfigPath(".")
	log.Println("[CONFIG] Configured config file search paths: /etc/resumeform/, $HOME/.resumeform, .")

	return &Loader{v: v, envFiles: []string{".env"}}
}

// Viper exposes the underlying instance for flag binding
func (l *Loader) Viper() *viper.Viper {
	return l.v
}

// SetConfigFile uses path instead of searching the default locations
func (l *Loader) SetConfigFile(path string) {
	l.v.SetConfigFile(path)
}

// SetEnvFiles replaces the dotenv files read before loading
func (l *Loader) SetEnvFiles(paths ...string) {
	l.envFiles = paths
}

// Load reads .env files, the config file and the environment, then validates the result
func (l *Loader) Load() (*Config, error) {
	log.Println("[CONFIG] Starting configuration loading process")

	if err := loadEnvFiles(l.envFiles...); err != nil {
		return nil, err
	}

	configFileUsed := ""
	if err := l.v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		log.Println("[CONFIG] No config file found, using defaults and environment variables")
	} else {
		configFileUsed = l.v.ConfigFileUsed()
		log.Printf("[CONFIG] Successfully loaded config file: %s", configFileUsed)
	}

	config, err := l.decode()
	if err != nil {
		return nil, err
	}

	config.logConfigurationSources(configFileUsed)

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	log.Println("[CONFIG] Configuration loading completed successfully")
	return config, nil
}

func (l *Loader) decode() (*Config, error) {
	var config Config
	if err := l.v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	config.applyFallbacks()
	return &config, nil
}

// Validate validates the configuration
func (c *Config) Validate() error {
	if c.Analysis.Endpoint == "" {
		return fmt.Errorf("analysis endpoint is required (set %s_ANALYSIS_ENDPOINT)", EnvPrefix)
	}
	if !strings.HasPrefix(c.Analysis.Endpoint, "http://") && !strings.HasPrefix(c.Analysis.Endpoint, "https://") {
		return fmt.Errorf("analysis endpoint must be an absolute http(s) URL: %s", c.Analysis.Endpoint)
	}

	if c.Analysis.Timeout < 0 {
		return fmt.Errorf("analysis timeout must not be negative")
	}

	if c.Analysis.MaxResponseSize <= 0 {
		return fmt.Errorf("analysis maxResponseSize must be positive")
	}

	if cb := c.Analysis.CircuitBreaker; cb.Enabled && (cb.FailureThreshold <= 0 || cb.FailureThreshold > 1) {
		return fmt.Errorf("circuit breaker failureThreshold must be in (0, 1], got %v", cb.FailureThreshold)
	}

	if c.Server.Port == "" {
		return fmt.Errorf("server port is required")
	}

	if c.Server.SessionTTL <= 0 {
		return fmt.Errorf("server sessionTTL must be positive")
	}

	if c.App.MaxFileSize <= 0 {
		return fmt.Errorf("app maxFileSize must be positive")
	}

	validFormats := make(map[string]bool)
	for _, format := range c.App.SupportedFormats {
		validFormats[format] = true
	}
	if !validFormats[c.App.DefaultFormat] {
		return fmt.Errorf("invalid default format: %s", c.App.DefaultFormat)
	}

	if err := c.ValidateTLSConfig(); err != nil {
		return fmt.Errorf("TLS configuration error: %w", err)
	}

	return nil
}
