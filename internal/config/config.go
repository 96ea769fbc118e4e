// File: internal/config/config.go
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds the entire application configuration.
type Config struct {
	Logger       LoggerConfig      `mapstructure:"logger" yaml:"logger"`
	Database     DatabaseConfig    `mapstructure:"database" yaml:"database"`
	Device       DeviceConfig      `mapstructure:"device" yaml:"device"`
	Agent        AgentConfig       `mapstructure:"agent" yaml:"agent"`
	LLM          LLMConfig         `mapstructure:"llm" yaml:"llm"`
	Integrations []IntegrationSeed `mapstructure:"integrations" yaml:"integrations"`
}

// LoggerConfig holds all the configuration for the logger.
type LoggerConfig struct {
	Level       string `mapstructure:"level" yaml:"level"`
	Format      string `mapstructure:"format" yaml:"format"`
	AddSource   bool   `mapstructure:"add_source" yaml:"add_source"`
	ServiceName string `mapstructure:"service_name" yaml:"service_name"`
	LogFile     string `mapstructure:"log_file" yaml:"log_file"`
	MaxSize     int    `mapstructure:"max_size" yaml:"max_size"`
	MaxBackups  int    `mapstructure:"max_backups" yaml:"max_backups"`
	MaxAge      int    `mapstructure:"max_age" yaml:"max_age"`
	Compress    bool   `mapstructure:"compress" yaml:"compress"`
}

// DatabaseConfig holds the connection details for the integration store.
// When URL is empty the in-memory store seeded from Integrations is used.
type DatabaseConfig struct {
	URL string `mapstructure:"url" yaml:"url"`
}

// DeviceConfig describes how to reach the device under automation.
type DeviceConfig struct {
	// ServerAddr is the ADB server socket, normally 127.0.0.1:5037.
	ServerAddr string `mapstructure:"server_addr" yaml:"server_addr"`
	// Serial identifies the device, e.g. "10.0.3.2:5555" for a TCP device.
	Serial         string        `mapstructure:"serial" yaml:"serial"`
	ConnectTimeout time.Duration `mapstructure:"connect_timeout" yaml:"connect_timeout"`
	ShellTimeout   time.Duration `mapstructure:"shell_timeout" yaml:"shell_timeout"`
}

// AgentConfig tunes the task execution loop. The stuck-detection values are
// product heuristics carried over as defaults, not derived constants.
type AgentConfig struct {
	MaxSteps            int           `mapstructure:"max_steps" yaml:"max_steps"`
	StepDelay           time.Duration `mapstructure:"step_delay" yaml:"step_delay"`
	StuckThreshold      int           `mapstructure:"stuck_threshold" yaml:"stuck_threshold"`
	MaxRecoveryAttempts int           `mapstructure:"max_recovery_attempts" yaml:"max_recovery_attempts"`
	StepBuffer          int           `mapstructure:"step_buffer" yaml:"step_buffer"`
}

// LLMConfig tunes integration resolution and the provider clients.
type LLMConfig struct {
	Purpose    string        `mapstructure:"purpose" yaml:"purpose"`
	CacheTTL   time.Duration `mapstructure:"cache_ttl" yaml:"cache_ttl"`
	APITimeout time.Duration `mapstructure:"api_timeout" yaml:"api_timeout"`
}

// IntegrationSeed declares one integration in the config file, for running
// without a database. Field meanings match the integrations table.
type IntegrationSeed struct {
	ID                 string  `mapstructure:"id" yaml:"id"`
	Name               string  `mapstructure:"name" yaml:"name"`
	Purpose            string  `mapstructure:"purpose" yaml:"purpose"`
	Provider           string  `mapstructure:"provider" yaml:"provider"`
	Model              string  `mapstructure:"model" yaml:"model"`
	APIKey             string  `mapstructure:"api_key" yaml:"-"`
	BaseURL            string  `mapstructure:"base_url" yaml:"base_url"`
	MaxTokens          int     `mapstructure:"max_tokens" yaml:"max_tokens"`
	Temperature        float64 `mapstructure:"temperature" yaml:"temperature"`
	Priority           int     `mapstructure:"priority" yaml:"priority"`
	Default            bool    `mapstructure:"default" yaml:"default"`
	FallbackID         string  `mapstructure:"fallback_id" yaml:"fallback_id"`
	MaxRequestsPerHour int     `mapstructure:"max_requests_per_hour" yaml:"max_requests_per_hour"`
}

// setDefaults registers the default value for every key so a bare config file
// (or none at all) still yields a runnable configuration.
func setDefaults(v *viper.Viper) {
	v.SetDefault("logger.level", "info")
	v.SetDefault("logger.format", "console")
	v.SetDefault("logger.service_name", "mobiledroid")
	v.SetDefault("logger.max_size", 100)
	v.SetDefault("logger.max_backups", 3)
	v.SetDefault("logger.max_age", 28)

	v.SetDefault("device.server_addr", "127.0.0.1:5037")
	v.SetDefault("device.connect_timeout", 10*time.Second)
	v.SetDefault("device.shell_timeout", 30*time.Second)

	v.SetDefault("agent.max_steps", 50)
	v.SetDefault("agent.step_delay", time.Second)
	v.SetDefault("agent.stuck_threshold", 3)
	v.SetDefault("agent.max_recovery_attempts", 2)
	v.SetDefault("agent.step_buffer", 16)

	v.SetDefault("llm.purpose", "automation")
	v.SetDefault("llm.cache_ttl", 5*time.Minute)
	v.SetDefault("llm.api_timeout", 90*time.Second)
}

// Load reads the configuration from the given file (or the default search
// path when empty), merges environment variables with the MOBILEDROID prefix
// and returns the validated result.
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.AddConfigPath(".")
		v.SetConfigName("config")
		v.SetConfigType("yaml")
	}

	v.SetEnvPrefix("MOBILEDROID")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
		// No config file; defaults and env vars apply.
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate rejects configurations the engine cannot run with.
func (c *Config) Validate() error {
	if c.Agent.MaxSteps <= 0 {
		return fmt.Errorf("agent.max_steps must be positive, got %d", c.Agent.MaxSteps)
	}
	if c.Agent.StuckThreshold < 2 {
		return fmt.Errorf("agent.stuck_threshold must be at least 2, got %d", c.Agent.StuckThreshold)
	}
	if c.Agent.MaxRecoveryAttempts < 0 {
		return fmt.Errorf("agent.max_recovery_attempts must not be negative, got %d", c.Agent.MaxRecoveryAttempts)
	}
	if c.LLM.CacheTTL < 0 {
		return fmt.Errorf("llm.cache_ttl must not be negative, got %s", c.LLM.CacheTTL)
	}
	for i, seed := range c.Integrations {
		if seed.Provider == "" || seed.Model == "" {
			return fmt.Errorf("integrations[%d]: provider and model are required", i)
		}
	}
	return nil
}
