package main

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/tturner/labcheck/internal/config"
	"github.com/tturner/labcheck/internal/logging"
)

// commonFlags are shared by every command that reads the configuration.
type commonFlags struct {
	configPath string
	secret     string
	verbose    bool
	debug      bool
	logLevel   string
}

func (f *commonFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVar(&f.configPath, "config", config.DefaultConfigFile, "Configuration file (defaults apply when missing)")
	cmd.Flags().StringVar(&f.secret, "secret", "", "HMAC secret (default: the environment variable named by secret_env)")
	cmd.Flags().BoolVar(&f.verbose, "verbose", false, "Print warnings, metrics and per-check log lines")
	cmd.Flags().BoolVar(&f.debug, "debug", false, "Enable debug logging")
	cmd.Flags().StringVar(&f.logLevel, "log-level", "", "Log level: silent, error, info, verbose, debug")
}

func (f *commonFlags) loadConfig() (*config.Config, error) {
	return config.Load(f.configPath, false)
}

// levelOverride maps --debug, --verbose and --log-level onto a level name.
func (f *commonFlags) levelOverride() string {
	switch {
	case f.logLevel != "":
		return f.logLevel
	case f.debug:
		return "debug"
	case f.verbose:
		return "verbose"
	}
	return ""
}

func (f *commonFlags) newLogger(cfg *config.Config) (*logging.Logger, error) {
	return cfg.NewLogger(f.levelOverride())
}

// resolveSecret prefers --secret over the configured environment variable.
func (f *commonFlags) resolveSecret(cfg *config.Config) []byte {
	if f.secret != "" {
		return []byte(f.secret)
	}
	return cfg.Secret()
}

// configPathForLog hides the default path when no file was read.
func (f *commonFlags) configPathForLog() string {
	if _, err := os.Stat(f.configPath); err != nil {
		return ""
	}
	return f.configPath
}
