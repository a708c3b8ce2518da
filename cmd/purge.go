package cmd

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/restosync/pos-agent/internal/buffer"
	"github.com/restosync/pos-agent/internal/config"
	"github.com/restosync/pos-agent/internal/logger"
)

var purgeOlderThan time.Duration

var purgeCmd = &cobra.Command{
	Use:   "purge",
	Short: "Manually purge buffer rows older than the given age",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load(cfgPath)
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}
		logger.Init(cfg.Log.Level)

		age := purgeOlderThan
		if age <= 0 {
			age = cfg.Sync.Retention
		}

		q, err := buffer.Open(cfg.Buffer.Path)
		if err != nil {
			return fmt.Errorf("open sync buffer: %w", err)
		}
		defer q.Close()

		deleted, err := q.PurgeOlderThan(context.Background(), age)
		if err != nil {
			return fmt.Errorf("purge: %w", err)
		}

		fmt.Printf("Purged %d row(s) older than %s.\n", deleted, age)
		return nil
	},
}

func init() {
	purgeCmd.Flags().DurationVar(&purgeOlderThan, "older-than", 0, "age threshold (default: configured retention)")
}
