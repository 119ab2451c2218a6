package main

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"statuscore/internal/archive"
	"statuscore/internal/config"
	"statuscore/internal/infra/blob"
	"statuscore/internal/infra/blob/core"
	"statuscore/internal/status"
)

// app holds the wired engine shared by all subcommands.
type app struct {
	cfg      config.Config
	engine   *status.Store
	search   *status.SearchEngine
	exporter *archive.Exporter
	logger   *zapLogger
}

func newRootCommand() *cobra.Command {
	a := &app{}
	var configPath string

	root := &cobra.Command{
		Use:           "statusctl",
		Short:         "Manage status tracking records",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load(configPath)
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			a.cfg = cfg

			logger, err := newZapLogger(cfg.Logging.Level)
			if err != nil {
				return fmt.Errorf("init logger: %w", err)
			}
			a.logger = logger

			records, err := status.OpenRecordStore(cmd.Context(), status.StorageConfig{
				Driver:      status.StorageDriver(cfg.Storage.Driver),
				SQLitePath:  cfg.Storage.SQLitePath,
				PostgresDSN: cfg.Storage.PostgresDSN,
			})
			if err != nil {
				return fmt.Errorf("open storage: %w", err)
			}

			a.engine = status.New(records,
				status.WithLogger(logger),
				status.WithMetrics(status.NewExpvarMetricsRecorder("statusctl")),
			)
			a.search = status.NewSearchEngine(a.engine)
			return nil
		},
		PersistentPostRun: func(*cobra.Command, []string) {
			if a.logger != nil {
				a.logger.Sync()
			}
		},
	}

	root.PersistentFlags().StringVar(&configPath, "config", "", "directory containing config.yaml")

	root.AddCommand(
		newCreateCommand(a),
		newGetCommand(a),
		newUpdateCommand(a),
		newListCommand(a),
		newSearchCommand(a),
		newHistoryCommand(a),
		newExportCommand(a),
	)
	return root
}

// openBlobStore is deferred to export time so the other subcommands never
// touch blob configuration.
func (a *app) openBlobStore(cmd *cobra.Command) (core.Store, error) {
	return blob.Open(cmd.Context(), blob.Config{
		Driver:      core.Driver(a.cfg.Blob.Driver),
		FSRoot:      a.cfg.Blob.FSRoot,
		S3Bucket:    a.cfg.Blob.S3Bucket,
		S3Region:    a.cfg.Blob.S3Region,
		S3Endpoint:  a.cfg.Blob.S3Endpoint,
		S3PathStyle: a.cfg.Blob.S3PathStyle,
	})
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
