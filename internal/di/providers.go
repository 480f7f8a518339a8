package di

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"PairTrader/internal/domain/models"
	"PairTrader/internal/domain/repository"
	"PairTrader/internal/handler/api"
	internalrepo "PairTrader/internal/repository"
	"PairTrader/internal/service/broker"
	"PairTrader/internal/service/cooldown"
	"PairTrader/internal/service/marketdata"
	"PairTrader/internal/usecase"
	pkgch "PairTrader/pkg/clickhouse"
	"PairTrader/pkg/config"
	xhttp "PairTrader/pkg/http"
	pkgkafka "PairTrader/pkg/kafka"
	applogger "PairTrader/pkg/logger"
	"PairTrader/pkg/metrics"
	"PairTrader/pkg/server"
)

// ProvideLogger creates the application logger with the ops log
// collector attached.
func ProvideLogger(cfg *config.Config) (*applogger.Logger, error) {
	l, err := applogger.New(&applogger.Config{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
		Output: cfg.Logging.Output,
	})
	if err != nil {
		return nil, fmt.Errorf("logger: %w", err)
	}
	l.AddCollector(nil)
	return l, nil
}

// ProvideMetrics creates a Prometheus metrics recorder.
func ProvideMetrics() repository.Metrics {
	return metrics.New()
}

// ProvideMarketData creates the market data vendor client.
func ProvideMarketData(cfg *config.Config, log *applogger.Logger) repository.MarketData {
	return marketdata.New(marketdata.Config{
		BaseURL:      cfg.MarketData.BaseURL,
		APIKey:       cfg.MarketData.APIKey,
		LookbackDays: cfg.MarketData.LookbackDays,
		IntervalMin:  cfg.MarketData.IntervalMin,
		MinSamples:   cfg.MarketData.MinSamples,
		Fanout:       cfg.MarketData.Fanout,
		RateLimitRPS: cfg.MarketData.RateLimitRPS,
		Timeout:      cfg.MarketData.Timeout,
	}, log)
}

// ProvideBrokerDialer creates the execution gateway dialer.
func ProvideBrokerDialer(cfg *config.Config, log *applogger.Logger) repository.BrokerDialer {
	return broker.NewDialer(broker.Config{
		URL:         cfg.Broker.URL,
		DialTimeout: cfg.Broker.DialTimeout,
	}, log)
}

// ProvidePrimarySession dials the exit-monitoring session. A venue that
// is unreachable at startup is a fatal configuration problem.
func ProvidePrimarySession(cfg *config.Config, dialer repository.BrokerDialer) (repository.BrokerSession, error) {
	session := dialer.Session()

	ctx, cancel := context.WithTimeout(context.Background(), cfg.Broker.DialTimeout)
	defer cancel()
	if err := session.Connect(ctx, cfg.Broker.ClientIDBase-1); err != nil {
		return nil, fmt.Errorf("primary broker session: %w", err)
	}
	return session, nil
}

// ProvideCooldowns creates the cooldown registry for the configured
// backend.
func ProvideCooldowns(cfg *config.Config, log *applogger.Logger) (repository.Cooldowns, error) {
	if cfg.Cooldowns.Backend != "redis" {
		return cooldown.NewRegistry(), nil
	}

	cli := redis.NewClient(&redis.Options{
		Addr:     cfg.Cooldowns.Redis.Addr,
		Password: cfg.Cooldowns.Redis.Password,
		DB:       cfg.Cooldowns.Redis.DB,
	})
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := cli.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("cooldown redis ping: %w", err)
	}
	return cooldown.NewRedisRegistry(cli, log), nil
}

// ProvideTradeStore creates the JSON file store.
func ProvideTradeStore(cfg *config.Config, log *applogger.Logger) repository.TradeStore {
	return internalrepo.NewFileStore(cfg.Store.TradesFile, cfg.Store.ProfitsFile, log)
}

// ProvideTradeEvents creates the Kafka event publisher, nil when the
// sink is disabled.
func ProvideTradeEvents(cfg *config.Config) (repository.TradeEvents, error) {
	if !cfg.Sinks.Kafka.Enabled {
		return nil, nil
	}

	producer, err := pkgkafka.NewProducer(
		pkgkafka.WithBrokers(cfg.Sinks.Kafka.Brokers),
		pkgkafka.WithHashByKey(true),
	)
	if err != nil {
		return nil, fmt.Errorf("kafka producer: %w", err)
	}
	return internalrepo.NewKafkaTradeEvents(producer, cfg.Sinks.Kafka.Topic), nil
}

// ProvideProfitSink creates the ClickHouse ledger, nil when the sink is
// disabled.
func ProvideProfitSink(cfg *config.Config) (repository.ProfitSink, error) {
	if !cfg.Sinks.ClickHouse.Enabled {
		return nil, nil
	}

	client, err := pkgch.NewClient(
		pkgch.WithHost(cfg.Sinks.ClickHouse.Host),
		pkgch.WithPort(cfg.Sinks.ClickHouse.Port),
		pkgch.WithDatabase(cfg.Sinks.ClickHouse.Database),
		pkgch.WithCredentials(cfg.Sinks.ClickHouse.User, cfg.Sinks.ClickHouse.Password),
		pkgch.WithTimeouts(cfg.Sinks.ClickHouse.DialTimeout, 10*time.Second, 10*time.Second),
	)
	if err != nil {
		return nil, fmt.Errorf("clickhouse client: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	ledger, err := internalrepo.NewClickHouseLedger(ctx, client)
	if err != nil {
		_ = client.Close()
		return nil, err
	}
	return ledger, nil
}

// ProvidePairs loads the candidate pair universe. A missing pair file
// is fatal.
func ProvidePairs(cfg *config.Config, log *applogger.Logger) ([]models.Pair, error) {
	return usecase.LoadPairs(cfg.Strategy.PairFile, log)
}

// ProvideExitProtocol creates the order protocol the orchestrator uses
// for exits, bound to the primary session.
func ProvideExitProtocol(
	primary repository.BrokerSession,
	feed repository.MarketData,
	cfg *config.Config,
	log *applogger.Logger,
	m repository.Metrics,
) *usecase.OrderProtocol {
	return usecase.NewOrderProtocol(primary, feed, protocolConfig(cfg), log, m)
}

// ProvideSessionFactory creates the factory the scheduler uses to build
// one session per batch, each with its own protocol over its own
// connection.
func ProvideSessionFactory(
	feed repository.MarketData,
	cfg *config.Config,
	log *applogger.Logger,
	m repository.Metrics,
) usecase.SessionFactory {
	sessionCfg := usecase.SessionConfig{
		CapitalPerTrade: cfg.Strategy.CapitalPerTrade,
		EnterShort:      cfg.Strategy.EnterShort,
		EnterLong:       cfg.Strategy.EnterLong,
		ZScoreWindow:    cfg.Strategy.ZScoreWindow,
	}
	protoCfg := protocolConfig(cfg)

	return func(b repository.BrokerSession) *usecase.Session {
		protocol := usecase.NewOrderProtocol(b, feed, protoCfg, log, m)
		return usecase.NewSession(feed, b, protocol, sessionCfg, log, m)
	}
}

// ProvideScheduler creates the batch scheduler.
func ProvideScheduler(
	dialer repository.BrokerDialer,
	factory usecase.SessionFactory,
	cfg *config.Config,
	log *applogger.Logger,
	m repository.Metrics,
) *usecase.Scheduler {
	return usecase.NewScheduler(dialer, factory, usecase.SchedulerConfig{
		BatchSize:    cfg.Scheduler.BatchSize,
		MaxParallel:  cfg.Scheduler.MaxParallel,
		Stagger:      cfg.Scheduler.Stagger,
		ClientIDBase: cfg.Broker.ClientIDBase,
	}, log, m)
}

// ProvideOrchestrator creates the trading loop.
func ProvideOrchestrator(
	cfg *config.Config,
	pairs []models.Pair,
	sched *usecase.Scheduler,
	feed repository.MarketData,
	store repository.TradeStore,
	cooldowns repository.Cooldowns,
	exits *usecase.OrderProtocol,
	events repository.TradeEvents,
	sink repository.ProfitSink,
	log *applogger.Logger,
	m repository.Metrics,
) *usecase.Orchestrator {
	return usecase.NewOrchestrator(usecase.OrchestratorConfig{
		Pairs:        pairs,
		PollSleep:    cfg.Strategy.PollSleep,
		Cooldown:     cfg.Strategy.Cooldown,
		ExitLow:      cfg.Strategy.ExitLow,
		ExitHigh:     cfg.Strategy.ExitHigh,
		ZScoreWindow: cfg.Strategy.ZScoreWindow,
	}, sched, feed, store, cooldowns, exits, events, sink, log, m)
}

// ProvideStatusHandler creates the ops API handler.
func ProvideStatusHandler(
	log *applogger.Logger,
	store repository.TradeStore,
	cooldowns repository.Cooldowns,
) xhttp.Handler {
	return api.NewStatusHandler(log, store, cooldowns)
}

// ProvideApp assembles the application.
func ProvideApp(
	cfg *config.Config,
	log *applogger.Logger,
	orch *usecase.Orchestrator,
	handler xhttp.Handler,
	primary repository.BrokerSession,
	events repository.TradeEvents,
	sink repository.ProfitSink,
) *server.App {
	return server.New(cfg, log, orch, handler, primary, events, sink)
}

func protocolConfig(cfg *config.Config) usecase.ProtocolConfig {
	return usecase.ProtocolConfig{
		TickSize:        cfg.Execution.TickSize,
		PollInterval:    cfg.Execution.OrderPollInterval,
		Entry:           cfg.Execution.Entry,
		Exit:            cfg.Execution.Exit,
		MarketEntryWait: cfg.Execution.MarketEntryWait,
	}
}
