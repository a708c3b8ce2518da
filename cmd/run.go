package cmd

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/restosync/pos-agent/internal/agent"
	"github.com/restosync/pos-agent/internal/diag"
	"github.com/restosync/pos-agent/internal/logger"
	"github.com/restosync/pos-agent/internal/metrics"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the agent loop (sync cycles, heartbeats, housekeeping)",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := buildApp()
		if err != nil {
			return err
		}
		defer a.close()

		metrics.MustRegister(prometheus.DefaultRegisterer)

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		var diagSrv *diag.Server
		if a.cfg.Diag.Enabled {
			diagSrv = diag.NewServer(a.queue, a.cfg.Sync.RetryCeiling)
			go func() {
				logger.Log.Info("diag listening", zap.String("addr", a.cfg.Diag.Addr))
				if err := diagSrv.Start(a.cfg.Diag.Addr); err != nil {
					logger.Log.Warn("diag server exited", zap.Error(err))
				}
			}()
		}

		sched := agent.NewScheduler(a.coord, a.cfg, logger.Log)
		err = sched.Run(ctx)

		if diagSrv != nil {
			shutCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = diagSrv.Shutdown(shutCtx)
		}

		logger.Log.Info("agent stopped")
		return err
	},
}
