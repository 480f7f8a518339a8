package repository

import (
	"context"
	"fmt"

	"PairTrader/internal/domain/models"
	"PairTrader/pkg/clickhouse"
)

const profitsTable = "pair_trades"

var profitsSchema = []string{
	`CREATE TABLE IF NOT EXISTS ` + profitsTable + ` (
		pair_key        String,
		leg1_symbol     String,
		leg1_side       String,
		leg1_quantity   Int32,
		leg1_entry      Float64,
		leg1_exit       Float64,
		leg1_profit     Float64,
		leg2_symbol     String,
		leg2_side       String,
		leg2_quantity   Int32,
		leg2_entry      Float64,
		leg2_exit       Float64,
		leg2_profit     Float64,
		net_profit      Float64,
		entry_time      DateTime64(3, 'UTC'),
		exit_time       DateTime64(3, 'UTC')
	) ENGINE = MergeTree()
	PARTITION BY toYYYYMM(exit_time)
	ORDER BY (pair_key, exit_time)`,
}

// ClickHouseLedger mirrors closed trades into ClickHouse for analysis.
// Implements domain repository.ProfitSink.
type ClickHouseLedger struct {
	client *clickhouse.Client
}

// NewClickHouseLedger ensures the table exists and returns the sink.
func NewClickHouseLedger(ctx context.Context, client *clickhouse.Client) (*ClickHouseLedger, error) {
	if err := client.InitSchema(ctx, profitsSchema); err != nil {
		return nil, fmt.Errorf("ledger schema: %w", err)
	}
	return &ClickHouseLedger{client: client}, nil
}

func (l *ClickHouseLedger) Append(ctx context.Context, rec models.ProfitRecord) error {
	const stmt = `INSERT INTO ` + profitsTable + ` (
		pair_key,
		leg1_symbol, leg1_side, leg1_quantity, leg1_entry, leg1_exit, leg1_profit,
		leg2_symbol, leg2_side, leg2_quantity, leg2_entry, leg2_exit, leg2_profit,
		net_profit, entry_time, exit_time
	) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

	_, err := l.client.DB().ExecContext(ctx, stmt,
		rec.PairKey,
		rec.Leg1.Symbol, string(rec.Leg1.Side), int32(rec.Leg1.Quantity),
		rec.Leg1.EntryPrice, rec.Leg1.ExitPrice, rec.Leg1.Profit,
		rec.Leg2.Symbol, string(rec.Leg2.Side), int32(rec.Leg2.Quantity),
		rec.Leg2.EntryPrice, rec.Leg2.ExitPrice, rec.Leg2.Profit,
		rec.NetProfit, rec.EntryTime, rec.ExitTime,
	)
	if err != nil {
		return fmt.Errorf("ledger insert %s: %w", rec.PairKey, err)
	}
	return nil
}

func (l *ClickHouseLedger) Close() error {
	return l.client.Close()
}
