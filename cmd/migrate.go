package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/restosync/pos-agent/internal/buffer"
	"github.com/restosync/pos-agent/internal/config"
	"github.com/restosync/pos-agent/internal/logger"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Initialize the sync buffer database",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load(cfgPath)
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}
		logger.Init(cfg.Log.Level)

		// Open applies the embedded schema; migrate just makes that
		// an explicit install step.
		q, err := buffer.Open(cfg.Buffer.Path)
		if err != nil {
			return fmt.Errorf("open sync buffer: %w", err)
		}
		defer q.Close()

		fmt.Printf("Sync buffer ready at %s.\n", cfg.Buffer.Path)
		return nil
	},
}
