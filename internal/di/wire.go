//go:build wireinject
// +build wireinject

package di

import (
	"PairTrader/pkg/config"
	"PairTrader/pkg/server"

	"github.com/google/wire"
)

// InitializeApp wires up all dependencies and returns the application.
// Wire will generate the implementation of this function.
func InitializeApp(cfg *config.Config) (*server.App, error) {
	wire.Build(
		// Ambient
		ProvideLogger,
		ProvideMetrics,

		// Infrastructure clients
		ProvideMarketData,
		ProvideBrokerDialer,
		ProvidePrimarySession,
		ProvideCooldowns,
		ProvideTradeStore,
		ProvideTradeEvents,
		ProvideProfitSink,

		// Strategy inputs
		ProvidePairs,

		// Execution engine
		ProvideExitProtocol,
		ProvideSessionFactory,
		ProvideScheduler,
		ProvideOrchestrator,

		// Ops surface and application server
		ProvideStatusHandler,
		ProvideApp,
	)
	return &server.App{}, nil
}
