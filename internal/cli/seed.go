package cli

import (
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"sciquest/internal/seed"
)

// NewSeedCmd upserts profiles and topics from a YAML file into Postgres.
func NewSeedCmd(configPath *string) *cobra.Command {
	var file string
	cmd := &cobra.Command{
		Use:   "seed",
		Short: "Load profiles and topics from a YAML file",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			cfg, err := loadConfig(*configPath)
			if err != nil {
				return err
			}
			logger := newLogger(cfg)
			defer logger.Sync()

			if file == "" {
				file = cfg.Seed.File
			}
			if file == "" {
				return fmt.Errorf("no seed file given (use --file or seed.file)")
			}
			if cfg.Postgres.URL == "" {
				return fmt.Errorf("postgres url not configured; the in-memory store loads seed.file on start")
			}
			data, err := seed.Load(file)
			if err != nil {
				return err
			}
			if err := runMigrations(ctx, cfg, logger); err != nil {
				return err
			}

			b, err := openBackend(ctx, cfg, logger)
			if err != nil {
				return err
			}
			defer b.close()
			if err := seed.Apply(ctx, b.seedTarget, b.topics, data); err != nil {
				return err
			}
			logger.Info("seed applied",
				zap.String("file", file),
				zap.Int("profiles", len(data.Profiles)),
				zap.Int("topics", len(data.Topics)),
			)
			return nil
		},
	}
	cmd.Flags().StringVar(&file, "file", "", "seed YAML file (defaults to seed.file from config)")
	return cmd
}
