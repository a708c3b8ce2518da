package cmd

import (
	"fmt"

	"github.com/restosync/pos-agent/internal/agent"
	"github.com/restosync/pos-agent/internal/buffer"
	"github.com/restosync/pos-agent/internal/config"
	"github.com/restosync/pos-agent/internal/delivery"
	"github.com/restosync/pos-agent/internal/logger"
	"github.com/restosync/pos-agent/internal/source"
)

// app bundles everything a syncing command needs.
type app struct {
	cfg   config.Config
	queue *buffer.Queue
	src   *source.SQLSource
	coord *agent.Coordinator
}

// buildApp loads config, initializes logging, opens the buffer, and
// wires the coordinator. A buffer that cannot be opened is fatal:
// durability is the agent's core contract.
func buildApp() (*app, error) {
	cfg, err := config.Load(cfgPath)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	logger.Init(cfg.Log.Level)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	queue, err := buffer.Open(cfg.Buffer.Path)
	if err != nil {
		return nil, fmt.Errorf("open sync buffer: %w", err)
	}

	src := source.NewSQL(cfg.Source, logger.Log)
	transport := delivery.NewHTTPTransport()
	engine := delivery.New(transport, delivery.Config{
		URL:         cfg.Endpoint.URL,
		MaxAttempts: cfg.Sync.RetryAttempts,
		BaseDelay:   cfg.Sync.RetryDelay,
		Jitter:      cfg.Sync.RetryJitter,
		Timeout:     cfg.Endpoint.Timeout,
	}, logger.Log)

	coord := agent.NewCoordinator(cfg, queue, engine, transport, src, logger.Log)

	return &app{cfg: cfg, queue: queue, src: src, coord: coord}, nil
}

func (a *app) close() {
	_ = a.src.Close()
	_ = a.queue.Close()
	logger.Sync()
}
