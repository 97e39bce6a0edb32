// Command formulaengine loads a workbook snapshot, applies mutations, and
// prints or streams the results.
package main

import (
	"fmt"
	"os"

	"github.com/cellwright/formulaengine"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var cfgFile string

var rootCmd = &cobra.Command{
	Use:   "formulaengine",
	Short: "Evaluate and serve spreadsheet formula workbooks",
	Long: `formulaengine loads a workbook snapshot (JSON) and either evaluates a
batch of cells once ("eval") or applies a stream of mutations and reports
the resulting events as they fire ("serve-events").`,
}

// Execute runs the root command; main's sole job is to call this and map
// any error to a process exit code.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default $HOME/.formulaengine.yaml)")
	rootCmd.PersistentFlags().String("workbook", "", "path to a workbook snapshot JSON file")
	rootCmd.PersistentFlags().String("log-level", "info", "log level: debug, info, warn, error")

	_ = viper.BindPFlag("workbook", rootCmd.PersistentFlags().Lookup("workbook"))
	_ = viper.BindPFlag("log-level", rootCmd.PersistentFlags().Lookup("log-level"))
}

func initConfig() {
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		home, err := os.UserHomeDir()
		cobra.CheckErr(err)
		viper.AddConfigPath(home)
		viper.SetConfigType("yaml")
		viper.SetConfigName(".formulaengine")
	}

	viper.SetEnvPrefix("FORMULAENGINE")
	viper.AutomaticEnv()
	_ = viper.ReadInConfig() // absent config file is fine; flags/env still apply
}

func newLogger() zerolog.Logger {
	level, err := zerolog.ParseLevel(viper.GetString("log-level"))
	if err != nil {
		level = zerolog.InfoLevel
	}
	return zerolog.New(os.Stderr).Level(level).With().Timestamp().Logger()
}

// loadEngine constructs an Engine wired to the configured logger and, if a
// workbook path is set, preloads it from a snapshot file.
func loadEngine() (*formulaengine.Engine, error) {
	engine := formulaengine.NewEngine(formulaengine.WithLogger(newLogger()))

	path := viper.GetString("workbook")
	if path == "" {
		return engine, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read workbook %q: %w", path, err)
	}
	sheets, err := formulaengine.DecodeSnapshot(data)
	if err != nil {
		return nil, err
	}
	if err := engine.ApplySnapshot(sheets); err != nil {
		return nil, fmt.Errorf("apply workbook %q: %w", path, err)
	}
	return engine, nil
}
