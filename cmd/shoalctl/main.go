// Package main implements shoalctl, the operator CLI for the shoalcore
// quarantine tracking store.
package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"shoalcore/internal/blob"
	"shoalcore/internal/config"
	"shoalcore/internal/core"
	"shoalcore/internal/infra/logging"
	"shoalcore/internal/infra/persistence/memory"
	"shoalcore/internal/infra/persistence/postgres"
	"shoalcore/internal/infra/persistence/sqlite"
	"shoalcore/internal/knowledge"
)

var (
	configPath string
	verbose    bool
)

var rootCmd = &cobra.Command{
	Use:   "shoalctl",
	Short: "Operate the shoalcore quarantine tracking store",
	Long: `shoalctl reads the configured shoalcore store and reports the daily
treatment checklist, supplier performance, and per-(species, source)
historical context.`,
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "shoalcore.yaml", "path to the configuration file")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")

	rootCmd.AddCommand(tasksCmd)
	rootCmd.AddCommand(suppliersCmd)
	rootCmd.AddCommand(contextCmd)
}

// openService builds the service over the configured store and blob archive.
func openService() (*core.Service, *config.Config, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, nil, err
	}
	level := cfg.Logging.Level
	if verbose {
		level = "debug"
	}
	logger, err := logging.New(level)
	if err != nil {
		return nil, nil, err
	}

	engine := core.NewDefaultRulesEngine()
	store, err := openStore(cfg, engine)
	if err != nil {
		return nil, nil, err
	}

	opts := []core.Option{core.WithLogger(logger)}
	if archive, err := openBlob(cfg); err == nil && archive != nil {
		opts = append(opts, core.WithArchiver(knowledge.NewArchiver(archive, nil)))
	} else if err != nil {
		logger.Warn("blob archive unavailable", "error", err)
	}

	return core.NewService(store, opts...), cfg, nil
}

func openStore(cfg *config.Config, engine *core.RulesEngine) (core.PersistentStore, error) {
	switch core.StorageDriver(cfg.Storage.Driver) {
	case core.StorageMemory:
		return memory.NewStore(engine), nil
	case core.StorageSQLite:
		return sqlite.NewStore(cfg.Storage.SQLitePath, engine)
	case core.StoragePostgres:
		return postgres.NewStore(cfg.Storage.PostgresDSN, engine)
	default:
		return nil, fmt.Errorf("unknown storage driver %q", cfg.Storage.Driver)
	}
}

func openBlob(cfg *config.Config) (blob.Store, error) {
	switch cfg.Blob.Driver {
	case "", "fs":
		return blob.NewFilesystem(cfg.Blob.FSRoot)
	case "s3":
		return blob.NewS3(context.Background(), blob.S3Config{
			Bucket:    cfg.Blob.S3.Bucket,
			Region:    cfg.Blob.S3.Region,
			Endpoint:  cfg.Blob.S3.Endpoint,
			PathStyle: cfg.Blob.S3.PathStyle,
		})
	case "memory":
		return blob.NewMemory(), nil
	default:
		return nil, fmt.Errorf("unknown blob driver %q", cfg.Blob.Driver)
	}
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
