package cmd

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/spf13/cobra"

	"github.com/restosync/pos-agent/internal/agent"
	"github.com/restosync/pos-agent/internal/buffer"
	"github.com/restosync/pos-agent/internal/config"
	"github.com/restosync/pos-agent/internal/delivery"
	"github.com/restosync/pos-agent/internal/logger"
	"github.com/restosync/pos-agent/internal/model"
	"github.com/restosync/pos-agent/internal/source"
)

var doctorCmd = &cobra.Command{
	Use:   "doctor",
	Short: "Check config, buffer, source connectivity, and endpoint reachability",
	RunE: func(cmd *cobra.Command, args []string) error {
		failures := 0
		section := func(title string) {
			fmt.Println()
			fmt.Println("============================================================")
			fmt.Println(" " + title)
			fmt.Println("============================================================")
		}

		// 1. configuration
		section("1. CONFIGURATION")
		cfg, err := config.Load(cfgPath)
		if err != nil {
			fmt.Printf("FAIL  load %s: %v\n", cfgPath, err)
			return fmt.Errorf("cannot continue without config")
		}
		logger.Init("error") // keep doctor output readable
		if err := cfg.Validate(); err != nil {
			fmt.Printf("FAIL  %v\n", err)
			failures++
		} else {
			fmt.Printf("OK    store_id=%s\n", cfg.StoreID)
			fmt.Printf("OK    endpoint=%s\n", cfg.Endpoint.URL)
			fmt.Printf("OK    buffer=%s\n", cfg.Buffer.Path)
		}

		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		// 2. sync buffer
		section("2. SYNC BUFFER")
		q, err := buffer.Open(cfg.Buffer.Path)
		if err != nil {
			fmt.Printf("FAIL  open buffer: %v\n", err)
			failures++
		} else {
			defer q.Close()
			snap, err := q.Stats(ctx, cfg.Sync.RetryCeiling)
			if err != nil {
				fmt.Printf("FAIL  stats: %v\n", err)
				failures++
			} else {
				fmt.Printf("OK    pending=%d batches (%d records), abandoned=%d, synced_24h=%d records\n",
					snap.PendingBatches, snap.PendingRecords,
					snap.AbandonedBatches, snap.Synced24hRecords)
			}
		}

		// 3. POS source
		section("3. POS SOURCE")
		if len(cfg.Source.Strategies) == 0 {
			fmt.Println("FAIL  no source strategies configured")
			failures++
		} else {
			src := source.NewSQL(cfg.Source, logger.Log)
			defer src.Close()
			reachable := false
			for _, st := range src.Probe(ctx) {
				if st.Err != nil {
					fmt.Printf("FAIL  strategy %s: %v\n", st.Name, st.Err)
					continue
				}
				fmt.Printf("OK    strategy %s connected\n", st.Name)
				reachable = true
			}
			if !reachable {
				failures++
			}
		}

		// 4. endpoint
		section("4. ENDPOINT")
		hbURL, err := agent.HeartbeatURL(cfg.Endpoint)
		if err != nil {
			fmt.Printf("FAIL  heartbeat url: %v\n", err)
			failures++
		} else {
			hb := model.Heartbeat{
				StoreID:      cfg.StoreID,
				AgentVersion: agent.Version,
				Timestamp:    time.Now().Format(time.RFC3339),
				Status:       "healthy",
			}
			transport := delivery.NewHTTPTransport()
			code, _, err := transport.Post(ctx, hbURL, hb, cfg.Endpoint.HeartbeatTimeout)
			switch {
			case err != nil:
				fmt.Printf("FAIL  post %s: %v\n", hbURL, err)
				failures++
			case code != http.StatusOK:
				fmt.Printf("FAIL  post %s: HTTP %d\n", hbURL, code)
				failures++
			default:
				fmt.Printf("OK    heartbeat accepted by %s\n", hbURL)
			}
		}

		fmt.Println()
		if failures > 0 {
			return fmt.Errorf("doctor found %d problem(s)", failures)
		}
		fmt.Println("All checks passed.")
		return nil
	},
}
