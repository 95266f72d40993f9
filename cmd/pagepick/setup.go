package main

import (
	"fmt"
	"os"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/standardbeagle/pagepick/internal/config"
	"github.com/standardbeagle/pagepick/internal/logging"
	"github.com/standardbeagle/pagepick/internal/respond"
)

// loadConfig resolves the effective configuration for cmd. Precedence, lowest
// first: defaults, config file, .env files, environment, command-line flags.
func loadConfig(cmd *cobra.Command) (*config.Config, string, error) {
	flags := cmd.Flags()

	envFiles, _ := flags.GetStringSlice("env-file")
	if err := config.LoadDotEnv(envFiles...); err != nil {
		return nil, "", fmt.Errorf("load env: %w", err)
	}

	path, _ := flags.GetString("config")
	cfg, source, err := config.Load(path)
	if err != nil {
		return nil, "", err
	}
	if err := cfg.ApplyEnv(os.LookupEnv); err != nil {
		return nil, "", err
	}

	applyFlags(cmd, cfg)
	if err := cfg.Validate(); err != nil {
		return nil, "", err
	}
	return cfg, source, nil
}

// applyFlags copies explicitly set flags onto cfg. Flags that a command does
// not define are skipped.
func applyFlags(cmd *cobra.Command, cfg *config.Config) {
	flags := cmd.Flags()
	str := func(name string, dst *string) {
		if flags.Lookup(name) != nil && flags.Changed(name) {
			*dst, _ = flags.GetString(name)
		}
	}

	str("log-level", &cfg.Log.Level)
	str("log-format", &cfg.Log.Format)
	str("listen", &cfg.Server.Listen)
	str("provider", &cfg.LLM.Provider)
	str("ollama-url", &cfg.LLM.BaseURL)
	str("model", &cfg.LLM.Model)

	if flags.Lookup("rate-limit") != nil && flags.Changed("rate-limit") {
		cfg.Server.RateLimit, _ = flags.GetFloat64("rate-limit")
	}
	if flags.Lookup("strip-scripts") != nil && flags.Changed("strip-scripts") {
		cfg.Proxy.StripScripts, _ = flags.GetBool("strip-scripts")
	}
	if flags.Lookup("trust-proxy") != nil && flags.Changed("trust-proxy") {
		cfg.Server.TrustProxy, _ = flags.GetBool("trust-proxy")
	}
	if flags.Lookup("allow-host") != nil && flags.Changed("allow-host") {
		cfg.Proxy.AllowedHosts, _ = flags.GetStringSlice("allow-host")
	}
}

// setup loads the configuration and builds the logger. Logs always go to
// stderr so stdout stays free for command output and the MCP transport.
func setup(cmd *cobra.Command) (*config.Config, *logrus.Logger, error) {
	cfg, source, err := loadConfig(cmd)
	if err != nil {
		return nil, nil, err
	}
	log, err := logging.New(cfg.Log, os.Stderr)
	if err != nil {
		return nil, nil, err
	}
	respond.SetLogger(log)
	if source != "" {
		log.WithField("path", source).Debug("loaded config file")
	}
	return cfg, log, nil
}
