package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/acurast/acurast-cli/internal/config"
)

var (
	projectsFile string
	envFile      string
	logLevel     string
	logFormat    string

	appEnv config.Env
)

var rootCmd = &cobra.Command{
	Use:   "acurast",
	Short: "Deploy workloads to the Acurast network",
	Long:  "acurast turns project descriptions into job registrations, submits them and follows every deployment until its jobs are finalized",
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load(envFile)
		if err != nil {
			return fmt.Errorf("failed to load environment: %w", err)
		}
		if cmd.Flags().Changed("log-level") {
			cfg.LogLevel = logLevel
		}
		if cmd.Flags().Changed("log-format") {
			cfg.LogFormat = logFormat
		}
		cfg.Sanitize()

		config.InitLogger(os.Stderr, cfg.LogLevel, cfg.LogFormat)
		appEnv = cfg
		return nil
	},
}

func init() {
	rootCmd.SilenceUsage = true
	rootCmd.PersistentFlags().StringVarP(&projectsFile, "config", "c", "acurast.json", "Projects file (json or yaml)")
	rootCmd.PersistentFlags().StringVar(&envFile, "env-file", ".env", "Environment file loaded before the process environment")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "info", "Log level (debug/info/warn/error)")
	rootCmd.PersistentFlags().StringVar(&logFormat, "log-format", "text", "Log format (text/json)")

	registerInitCommand(rootCmd)
	registerValidateCommand(rootCmd)
	registerConvertCommand(rootCmd)
	registerDeployCommand(rootCmd)
	registerDeploymentsCommand(rootCmd)
}
