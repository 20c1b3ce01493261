package cmd

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/zjrosen/ledgerkit/internal/app"
	"github.com/zjrosen/ledgerkit/internal/config"
	"github.com/zjrosen/ledgerkit/internal/log"
	"github.com/zjrosen/ledgerkit/internal/tracing"
)

var (
	version = "dev"
	cfgFile string
	debug   bool
	cfg     config.Config
	cfgErr  error

	provider *tracing.Provider
	closeLog func()
)

var rootCmd = &cobra.Command{
	Use:   "ledgerkit",
	Short: "Transactional, undoable ledger documents",
	Long: `ledgerkit keeps a chart of accounts and its transactions in a sqlite
document. Every change goes through a transaction that can be committed,
abandoned or undone, and views of the same document stay in sync.`,
	Version:            version,
	SilenceUsage:       true,
	PersistentPreRunE:  setup,
	PersistentPostRunE: teardown,
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "",
		"config file (default: .ledgerkit/config.yaml)")
	rootCmd.PersistentFlags().StringP("document", "d", "",
		"path to the ledger document")
	rootCmd.PersistentFlags().BoolVar(&debug, "debug", false,
		"log at debug level to stderr")

	_ = viper.BindPFlag("document", rootCmd.PersistentFlags().Lookup("document"))
}

// findConfig returns the first existing config file. Lookup order:
// 1. .ledgerkit/config.yaml (current directory)
// 2. ~/.config/ledgerkit/config.yaml (user config)
// When neither exists the project path is returned so a default gets
// written there.
func findConfig() string {
	if _, err := os.Stat(config.DefaultConfigPath); err == nil {
		return config.DefaultConfigPath
	}
	if home, err := os.UserHomeDir(); err == nil {
		user := filepath.Join(home, ".config", "ledgerkit", "config.yaml")
		if _, err := os.Stat(user); err == nil {
			return user
		}
	}
	return config.DefaultConfigPath
}

func initConfig() {
	v := viper.GetViper()
	config.SetDefaults(v)

	path := cfgFile
	if path == "" {
		path = findConfig()
	}
	if _, err := os.Stat(path); os.IsNotExist(err) {
		// If the write fails we continue with defaults.
		if err := config.WriteDefaultConfig(path); err != nil {
			cfg, cfgErr = config.Load(v)
			return
		}
	}

	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil {
		cfgErr = fmt.Errorf("reading config %s: %w", path, err)
		return
	}
	cfg, cfgErr = config.Load(v)
}

func setup(cmd *cobra.Command, _ []string) error {
	if cfgErr != nil {
		return cfgErr
	}

	switch {
	case debug:
		closeLog = log.InitWriter(cmd.ErrOrStderr())
	case cfg.Log.Enabled:
		cleanup, err := log.Init(cfg.Log.Path)
		if err != nil {
			return err
		}
		closeLog = cleanup
		log.SetMinLevel(log.ParseLevel(cfg.Log.Level))
	}

	p, err := tracing.NewProvider(cfg.Tracing)
	if err != nil {
		return fmt.Errorf("starting tracing: %w", err)
	}
	provider = p
	return nil
}

func teardown(cmd *cobra.Command, _ []string) error {
	var err error
	if provider != nil {
		err = provider.Shutdown(cmd.Context())
		provider = nil
	}
	if closeLog != nil {
		closeLog()
		closeLog = nil
	}
	return err
}

// openDocument opens the configured document with tracing wired in.
func openDocument(cmd *cobra.Command) (*app.Document, error) {
	var opts []app.Option
	if provider != nil {
		opts = append(opts, app.WithTracer(provider.Tracer()))
	}
	doc, err := app.Open(cmd.Context(), cfg, opts...)
	if err != nil {
		return nil, fmt.Errorf("opening %s: %w", cfg.Document, err)
	}
	return doc, nil
}

// Execute runs the root command
func Execute() error {
	return rootCmd.Execute()
}

// SetVersion sets the version string (called from main with ldflags)
func SetVersion(v string) {
	version = v
	rootCmd.Version = v
}
