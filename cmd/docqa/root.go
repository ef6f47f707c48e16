package main

import (
	"os"

	"github.com/spf13/cobra"

	"docqa/internal/config"
	"docqa/internal/helper"
)

var (
	cfgFile  string
	logLevel string
)

var rootCmd = &cobra.Command{
	Use:   "docqa",
	Short: "Ask questions about your PDF and TXT documents",
	Long: `docqa indexes PDF and TXT files into a vector store and answers
questions grounded in their content, citing the passages it used.`,
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", config.DefaultPath, "path to the YAML config file")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "override the configured log level")
}

// loadConfig reads the config file and sets up logging on stderr.
func loadConfig() (*config.Config, error) {
	cfg, err := config.LoadConfig(cfgFile)
	if err != nil {
		return nil, err
	}
	if logLevel != "" {
		cfg.App.LogLevel = logLevel
	}
	helper.SetupLogger(cfg.App.LogLevel, cfg.App.LogFormat, os.Stderr)
	return cfg, nil
}
