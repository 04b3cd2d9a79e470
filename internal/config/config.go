// Package config provides configuration management for livecanvas using
// Viper for loading from files, LIVECANVAS_ environment variables and
// command-line flags.
//
// It covers the preview pipeline (template name, debounce interval), the
// message bridge (bind host, origin allow-list, optional idle reaper), the
// display server, the relayed console output and the diagnostic log.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Defaults: a 300ms debounce and template.html beside the source.
const (
	DefaultTemplate        = "template.html"
	DefaultDebounce        = 300 * time.Millisecond
	DefaultBridgeHost      = "127.0.0.1"
	DefaultDisplayHost     = "127.0.0.1"
	DefaultMaxMessageBytes = 1 << 20
)

type Config struct {
	Preview     PreviewConfig `yaml:"preview" json:"preview" mapstructure:"preview"`
	Bridge      BridgeConfig  `yaml:"bridge" json:"bridge" mapstructure:"bridge"`
	Display     DisplayConfig `yaml:"display" json:"display" mapstructure:"display"`
	Console     ConsoleConfig `yaml:"console" json:"console" mapstructure:"console"`
	Log         LogConfig     `yaml:"log" json:"log" mapstructure:"log"`
	TargetFiles []string      `yaml:"-" json:"-" mapstructure:"-"` // CLI arguments, not from config file
}

type PreviewConfig struct {
	Template string        `yaml:"template" json:"template" mapstructure:"template"`
	Debounce time.Duration `yaml:"debounce" json:"debounce" mapstructure:"debounce"`
}

type BridgeConfig struct {
	Host            string        `yaml:"host" json:"host" mapstructure:"host"`
	AllowedOrigins  []string      `yaml:"allowed_origins" json:"allowed_origins" mapstructure:"allowed_origins"`
	IdleTimeout     time.Duration `yaml:"idle_timeout" json:"idle_timeout" mapstructure:"idle_timeout"`
	MaxMessageBytes int64         `yaml:"max_message_bytes" json:"max_message_bytes" mapstructure:"max_message_bytes"`
}

type DisplayConfig struct {
	Host string `yaml:"host" json:"host" mapstructure:"host"`
	Port int    `yaml:"port" json:"port" mapstructure:"port"`
	Open bool   `yaml:"open" json:"open" mapstructure:"open"`
}

type ConsoleConfig struct {
	// Output is a file path; empty or "-" means stdout.
	Output string `yaml:"output" json:"output" mapstructure:"output"`
}

type LogConfig struct {
	Level  string `yaml:"level" json:"level" mapstructure:"level"`
	Format string `yaml:"format" json:"format" mapstructure:"format"`
}

// Default returns a configuration with every default applied.
func Default() *Config {
	return &Config{
		Preview: PreviewConfig{
			Template: DefaultTemplate,
			Debounce: DefaultDebounce,
		},
		Bridge: BridgeConfig{
			Host:            DefaultBridgeHost,
			AllowedOrigins:  []string{"127.0.0.1:*", "localhost:*"},
			MaxMessageBytes: DefaultMaxMessageBytes,
		},
		Display: DisplayConfig{
			Host: DefaultDisplayHost,
			Port: 0,
			Open: true,
		},
		Log: LogConfig{
			Level:  "info",
			Format: "text",
		},
	}
}

// Load resolves the configuration from the global viper instance.
func Load() (*Config, error) {
	return LoadFrom(viper.GetViper())
}

// LoadFrom resolves the configuration from v, applying defaults for every
// unset key and validating the result.
func LoadFrom(v *viper.Viper) (*Config, error) {
	setDefaults(v)

	config := Default()
	if err := v.Unmarshal(config); err != nil {
		return nil, err
	}

	if v.GetBool("display.no-open") {
		config.Display.Open = false
	}

	// Handle allowed_origins set via env (workaround for viper slice handling)
	if v.IsSet("bridge.allowed_origins") && len(config.Bridge.AllowedOrigins) == 0 {
		config.Bridge.AllowedOrigins = v.GetStringSlice("bridge.allowed_origins")
	}

	if config.Preview.Template == "" {
		config.Preview.Template = DefaultTemplate
	}
	if config.Bridge.Host == "" {
		config.Bridge.Host = DefaultBridgeHost
	}
	if config.Bridge.MaxMessageBytes == 0 {
		config.Bridge.MaxMessageBytes = DefaultMaxMessageBytes
	}
	if config.Display.Host == "" {
		config.Display.Host = DefaultDisplayHost
	}
	if config.Log.Level == "" {
		config.Log.Level = "info"
	}
	if config.Log.Format == "" {
		config.Log.Format = "text"
	}

	if err := Validate(config); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return config, nil
}

// setDefaults registers every key with v. AutomaticEnv only consults the
// environment for keys viper already knows about.
func setDefaults(v *viper.Viper) {
	d := Default()
	v.SetDefault("preview.template", d.Preview.Template)
	v.SetDefault("preview.debounce", d.Preview.Debounce)
	v.SetDefault("bridge.host", d.Bridge.Host)
	v.SetDefault("bridge.allowed_origins", d.Bridge.AllowedOrigins)
	v.SetDefault("bridge.idle_timeout", d.Bridge.IdleTimeout)
	v.SetDefault("bridge.max_message_bytes", d.Bridge.MaxMessageBytes)
	v.SetDefault("display.host", d.Display.Host)
	v.SetDefault("display.port", d.Display.Port)
	v.SetDefault("display.open", d.Display.Open)
	v.SetDefault("console.output", d.Console.Output)
	v.SetDefault("log.level", d.Log.Level)
	v.SetDefault("log.format", d.Log.Format)
}

// Validate checks configuration values for correctness.
func Validate(config *Config) error {
	if err := validatePreviewConfig(&config.Preview); err != nil {
		return fmt.Errorf("preview config: %w", err)
	}
	if err := validateBridgeConfig(&config.Bridge); err != nil {
		return fmt.Errorf("bridge config: %w", err)
	}
	if err := validateDisplayConfig(&config.Display); err != nil {
		return fmt.Errorf("display config: %w", err)
	}
	switch config.Log.Format {
	case "text", "json":
	default:
		return fmt.Errorf("log config: unsupported format %q (supported: text, json)", config.Log.Format)
	}
	return nil
}

func validatePreviewConfig(config *PreviewConfig) error {
	// Zero is allowed: every edit re-renders on the next tick.
	if config.Debounce < 0 {
		return fmt.Errorf("debounce %s must not be negative", config.Debounce)
	}
	// The template is always read beside the previewed file.
	if strings.ContainsAny(config.Template, `/\`) {
		return fmt.Errorf("template %q must be a file name, not a path", config.Template)
	}
	return nil
}

func validateBridgeConfig(config *BridgeConfig) error {
	if err := validateHost(config.Host); err != nil {
		return err
	}
	if config.IdleTimeout < 0 {
		return fmt.Errorf("idle_timeout %s must not be negative", config.IdleTimeout)
	}
	if config.MaxMessageBytes < 0 {
		return fmt.Errorf("max_message_bytes %d must not be negative", config.MaxMessageBytes)
	}
	return nil
}

func validateDisplayConfig(config *DisplayConfig) error {
	// Allow 0 for system-assigned ports
	if config.Port < 0 || config.Port > 65535 {
		return fmt.Errorf("port %d is not in valid range 0-65535", config.Port)
	}
	return validateHost(config.Host)
}

func validateHost(host string) error {
	dangerousChars := []string{";", "&", "|", "$", "`", "(", ")", "<", ">", "\"", "'", "\\", " ", "/"}
	for _, char := range dangerousChars {
		if strings.Contains(host, char) {
			return fmt.Errorf("host contains dangerous character: %q", char)
		}
	}
	return nil
}
