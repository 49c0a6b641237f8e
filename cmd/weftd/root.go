package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// Exit codes spec.md §6 assigns to `weftd kernel start`.
const (
	exitClean        = 0
	exitBindFailure  = 1
	exitConfigError  = 2
	exitInternalError = 3
)

var cfgFile string

var rootCmd = &cobra.Command{
	Use:   "weftd",
	Short: "weft kernel host",
	Long:  "weftd runs and manages weft kernels: a scriptable LLM-agent runtime exposing the Jupyter v5.3 wire protocol.",
}

// Execute runs the root command, exiting with exitInternalError on any
// cobra-level failure (subcommands set their own more specific exit codes
// via os.Exit before returning to cobra).
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(exitInternalError)
	}
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default: $HOME/.weftd/weftd.yaml)")
	rootCmd.PersistentFlags().String("log-level", "info", "log level (info, debug)")
	rootCmd.PersistentFlags().String("tracing-endpoint", "", "OTLP/HTTP tracing collector endpoint (empty disables tracing)")
	rootCmd.PersistentFlags().String("data-dir", "", "directory for persisted kernel/vector state")
	rootCmd.PersistentFlags().Int("executor-workers", 4, "global I/O executor worker count")

	_ = viper.BindPFlag("log_level", rootCmd.PersistentFlags().Lookup("log-level"))
	_ = viper.BindPFlag("tracing_endpoint", rootCmd.PersistentFlags().Lookup("tracing-endpoint"))
	_ = viper.BindPFlag("data_dir", rootCmd.PersistentFlags().Lookup("data-dir"))
	_ = viper.BindPFlag("executor_workers", rootCmd.PersistentFlags().Lookup("executor-workers"))

	rootCmd.AddCommand(kernelCmd)
}

func initConfig() {
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		home, err := os.UserHomeDir()
		if err == nil {
			viper.AddConfigPath(home + "/.weftd")
		}
		viper.SetConfigName("weftd")
		viper.SetConfigType("yaml")
	}
	viper.SetEnvPrefix("WEFTD")
	viper.AutomaticEnv()
	_ = viper.ReadInConfig()
}
