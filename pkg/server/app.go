package server

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"PairTrader/internal/domain/repository"
	"PairTrader/internal/usecase"
	"PairTrader/pkg/config"
	xhttp "PairTrader/pkg/http"
	applogger "PairTrader/pkg/logger"
)

// App encapsulates the entire application lifecycle: the trading loop,
// the ops HTTP server and the optional external sinks.
type App struct {
	cfg         *config.Config
	log         *applogger.Logger
	orch        *usecase.Orchestrator
	httpHandler xhttp.Handler
	httpServer  *xhttp.Server

	primary repository.BrokerSession
	events  repository.TradeEvents
	sink    repository.ProfitSink
}

// New creates the App. events and sink may be nil when disabled.
func New(
	cfg *config.Config,
	log *applogger.Logger,
	orch *usecase.Orchestrator,
	httpHandler xhttp.Handler,
	primary repository.BrokerSession,
	events repository.TradeEvents,
	sink repository.ProfitSink,
) *App {
	return &App{
		cfg:         cfg,
		log:         log,
		orch:        orch,
		httpHandler: httpHandler,
		primary:     primary,
		events:      events,
		sink:        sink,
	}
}

// Run starts the engine and blocks until interrupted. On a shutdown
// signal no new iterations start; the one in flight finishes its order
// work before resources are torn down.
func (a *App) Run() error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	a.httpServer = xhttp.NewServer(a.httpHandler,
		xhttp.WithPort(a.cfg.Server.Port),
		xhttp.WithTimeouts(a.cfg.Server.ReadTimeout, a.cfg.Server.WriteTimeout, a.cfg.Server.ShutdownTimeout),
		xhttp.WithMetricsLogging(a.log, 2*time.Second),
	)
	if err := a.httpServer.Start(); err != nil {
		a.log.Error("http server start error", applogger.Error(err))
		return err
	}

	orchDone := make(chan struct{})
	go func() {
		defer close(orchDone)
		a.orch.Run(ctx)
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	<-sigCh

	a.log.Info("shutdown signal received")
	cancel()
	<-orchDone

	return a.shutdown()
}

// shutdown tears resources down after the trading loop has stopped.
func (a *App) shutdown() error {
	shutdownCtx, cancel := context.WithTimeout(context.Background(), a.cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := a.httpServer.Stop(shutdownCtx); err != nil {
		a.log.Error("http shutdown error", applogger.Error(err))
	}

	if a.primary != nil {
		a.primary.Disconnect()
	}
	if a.events != nil {
		if err := a.events.Close(); err != nil {
			a.log.Warn("event publisher close error", applogger.Error(err))
		}
	}
	if a.sink != nil {
		if err := a.sink.Close(); err != nil {
			a.log.Warn("profit sink close error", applogger.Error(err))
		}
	}

	a.log.Info("shutdown complete")
	return nil
}
