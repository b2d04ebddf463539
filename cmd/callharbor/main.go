package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/ks2178o2/callharbor/internal/app"
	"github.com/ks2178o2/callharbor/internal/common"
)

var (
	// Version is set at build time
	Version = "dev"

	cfgFile string

	rootCmd = &cobra.Command{
		Use:   "callharbor",
		Short: "Call-center audio import and analysis backend",
		Long: `callharbor ingests remote call recordings in bulk, hands them off for
transcription, analyzes transcripts for categorization and objections, and
resolves RAG feature inheritance across the organization tree.`,
		Version: Version,
	}
)

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is ./callharbor.yaml)")
	rootCmd.PersistentFlags().String("db-url", "", "database connection string")
	rootCmd.PersistentFlags().BoolP("verbose", "v", false, "verbose output")

	_ = viper.BindPFlag("db_url", rootCmd.PersistentFlags().Lookup("db-url"))
	_ = viper.BindPFlag("verbose", rootCmd.PersistentFlags().Lookup("verbose"))
}

func initConfig() {
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.AddConfigPath(".")
		viper.SetConfigName("callharbor")
		viper.SetConfigType("yaml")
	}

	viper.SetEnvPrefix("CALLHARBOR")
	viper.AutomaticEnv()

	_ = viper.ReadInConfig()
}

// loadConfig layers viper values over the environment-driven defaults.
func loadConfig() *common.Config {
	cfg := common.LoadConfig()
	if dsn := viper.GetString("db_url"); dsn != "" {
		cfg.Database.DSN = dsn
	}
	return cfg
}

func newLogger() *slog.Logger {
	level := slog.LevelInfo
	if viper.GetBool("verbose") {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(logger)
	return logger
}

func openApp(ctx context.Context) (*app.App, error) {
	cfg := loadConfig()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return app.New(ctx, cfg, newLogger())
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
