// Package cmd provides the command-line interface for livecanvas with
// configuration management supporting multiple configuration sources.
//
// Configuration System:
//
//	Values are resolved with the following precedence:
//	1. Command-line flags (--port, --debounce, etc.) - highest priority
//	2. Individual environment variables (LIVECANVAS_PREVIEW_DEBOUNCE, etc.)
//	3. Configuration file: --config, LIVECANVAS_CONFIG_FILE or .livecanvas.yml
//	4. Built-in defaults - lowest priority
//
// Environment Variables:
//
//	LIVECANVAS_CONFIG_FILE: Path to custom configuration file
//	LIVECANVAS_PREVIEW_TEMPLATE: Template file name looked up beside the source
//	LIVECANVAS_BRIDGE_IDLE_TIMEOUT: Close preview connections idle this long
//	And the rest following the LIVECANVAS_<SECTION>_<OPTION> pattern
package cmd

import (
	"fmt"
	"os"
	"strings"

	"github.com/conneroisu/livecanvas/internal/config"
	"github.com/conneroisu/livecanvas/internal/logging"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

var cfgFile string

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "livecanvas",
	Short: "Live, auto-refreshing previews of canvas sketches",
	Long: `livecanvas renders a live preview of a source file while you edit it.

The file is materialized into an HTML template found beside it (template.html
by default) and shown in the browser. Every save re-renders the preview after a
short debounce. Text the preview sends over its websocket channel is relayed
to this terminal.

Template placeholders:
  ${code}       the current source text
  ${url}        the websocket address of the message channel
  ${tmplpath}   the directory of the source file

Quick Start:
  livecanvas preview sketch.js         Preview and watch sketch.js
  livecanvas render sketch.js --url ws://127.0.0.1:9000
                                       Print the materialized document`,
	SilenceUsage: true,
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	cobra.OnInitialize(initConfig)
	rootCmd.SetGlobalNormalizationFunc(normalizeFlagName)

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is .livecanvas.yml, can also use LIVECANVAS_CONFIG_FILE env var)")
	rootCmd.PersistentFlags().StringP("log-level", "l", "info", "log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().String("log-format", "text", "log format (text, json)")

	viper.BindPFlag("log.level", rootCmd.PersistentFlags().Lookup("log-level"))
	viper.BindPFlag("log.format", rootCmd.PersistentFlags().Lookup("log-format"))
}

// normalizeFlagName lets --no_open and --log_level match their dashed forms,
// mirroring the underscore spelling of the configuration keys.
func normalizeFlagName(_ *pflag.FlagSet, name string) pflag.NormalizedName {
	return pflag.NormalizedName(strings.ReplaceAll(name, "_", "-"))
}

// initConfig points viper at the configuration file and the LIVECANVAS_
// environment.
func initConfig() {
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else if envConfigFile := os.Getenv("LIVECANVAS_CONFIG_FILE"); envConfigFile != "" {
		viper.SetConfigFile(envConfigFile)
	} else {
		viper.AddConfigPath(".")
		viper.SetConfigType("yaml")
		viper.SetConfigName(".livecanvas")
	}

	// e.g. LIVECANVAS_DISPLAY_PORT, LIVECANVAS_BRIDGE_MAX_MESSAGE_BYTES
	viper.SetEnvPrefix("LIVECANVAS")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	viper.AutomaticEnv()

	// A missing config file is not an error; defaults apply.
	if err := viper.ReadInConfig(); err == nil {
		fmt.Fprintln(os.Stderr, "Using config file:", viper.ConfigFileUsed())
	}
}

// newLogger builds the diagnostic logger described by cfg. Diagnostics go to
// stderr so stdout stays free for relayed preview output.
func newLogger(cfg *config.Config) (logging.Logger, error) {
	level, err := logging.ParseLevel(cfg.Log.Level)
	if err != nil {
		return nil, err
	}
	return logging.NewLogger(&logging.LoggerConfig{
		Level:  level,
		Format: cfg.Log.Format,
		Output: os.Stderr,
	}), nil
}
