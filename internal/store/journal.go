// Package store provides the SQLite trade journal.
package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"signal-trader/internal/events"
	"signal-trader/internal/models"
)

// Journal persists orders, fills, rule executions and closed positions to
// SQLite for later review.
type Journal struct {
	db *sql.DB
}

// NewJournal opens (creating if necessary) a journal database at dbPath.
func NewJournal(dbPath string) (*Journal, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(time.Hour)

	j := &Journal{db: db}
	if err := j.initSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}
	return j, nil
}

func (j *Journal) initSchema() error {
	schema := `
	CREATE TABLE IF NOT EXISTS orders (
		id TEXT PRIMARY KEY,
		symbol TEXT NOT NULL,
		quantity INTEGER NOT NULL,
		order_type TEXT NOT NULL,
		limit_price REAL,
		stop_price REAL,
		status TEXT NOT NULL,
		filled_qty INTEGER NOT NULL DEFAULT 0,
		avg_fill_price REAL,
		tag TEXT,
		placed_at DATETIME NOT NULL,
		updated_at DATETIME DEFAULT CURRENT_TIMESTAMP
	);
	CREATE INDEX IF NOT EXISTS idx_orders_symbol ON orders(symbol);

	CREATE TABLE IF NOT EXISTS fills (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		order_id TEXT NOT NULL,
		symbol TEXT NOT NULL,
		quantity INTEGER NOT NULL,
		price REAL NOT NULL,
		cumulative_qty INTEGER NOT NULL,
		remaining_qty INTEGER NOT NULL,
		timestamp DATETIME NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_fills_order ON fills(order_id);

	CREATE TABLE IF NOT EXISTS rule_executions (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		rule_id TEXT NOT NULL,
		rule_name TEXT NOT NULL,
		symbol TEXT,
		executed_at DATETIME NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_executions_rule ON rule_executions(rule_id);

	CREATE TABLE IF NOT EXISTS closed_positions (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		symbol TEXT NOT NULL,
		side TEXT NOT NULL,
		quantity INTEGER NOT NULL,
		entry_price REAL NOT NULL,
		reason TEXT,
		opened_at DATETIME,
		closed_at DATETIME NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_closed_symbol ON closed_positions(symbol);
	`
	if _, err := j.db.Exec(schema); err != nil {
		return fmt.Errorf("failed to create tables: %w", err)
	}
	return nil
}

// Close closes the underlying database.
func (j *Journal) Close() error {
	return j.db.Close()
}

// RecordOrder upserts an order row with its latest status.
func (j *Journal) RecordOrder(ctx context.Context, o models.Order) error {
	_, err := j.db.ExecContext(ctx, `
		INSERT INTO orders (id, symbol, quantity, order_type, limit_price, stop_price,
			status, filled_qty, avg_fill_price, tag, placed_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, CURRENT_TIMESTAMP)
		ON CONFLICT(id) DO UPDATE SET
			status = excluded.status,
			filled_qty = excluded.filled_qty,
			avg_fill_price = excluded.avg_fill_price,
			updated_at = CURRENT_TIMESTAMP`,
		o.ID, o.Symbol, o.Quantity, string(o.Type), o.LimitPrice, o.StopPrice,
		string(o.Status), o.FilledQty, o.AvgFillPrice, o.Tag, o.PlacedAt)
	if err != nil {
		return fmt.Errorf("failed to record order: %w", err)
	}
	return nil
}

// RecordFill appends a fill row.
func (j *Journal) RecordFill(ctx context.Context, f models.Fill) error {
	_, err := j.db.ExecContext(ctx, `
		INSERT INTO fills (order_id, symbol, quantity, price, cumulative_qty, remaining_qty, timestamp)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		f.OrderID, f.Symbol, f.Quantity, f.Price, f.CumulativeQty, f.RemainingQty, f.Timestamp)
	if err != nil {
		return fmt.Errorf("failed to record fill: %w", err)
	}
	return nil
}

// RecordExecution appends a rule execution row.
func (j *Journal) RecordExecution(ctx context.Context, ruleID, ruleName, symbol string, at time.Time) error {
	_, err := j.db.ExecContext(ctx, `
		INSERT INTO rule_executions (rule_id, rule_name, symbol, executed_at)
		VALUES (?, ?, ?, ?)`,
		ruleID, ruleName, symbol, at)
	if err != nil {
		return fmt.Errorf("failed to record execution: %w", err)
	}
	return nil
}

// RecordClosedPosition appends a closed position row.
func (j *Journal) RecordClosedPosition(ctx context.Context, g *models.OrderGroup, reason string) error {
	_, err := j.db.ExecContext(ctx, `
		INSERT INTO closed_positions (symbol, side, quantity, entry_price, reason, opened_at, closed_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		g.Symbol, string(g.Side), g.Quantity, g.EntryPrice, reason, g.OpenedAt, g.ClosedAt)
	if err != nil {
		return fmt.Errorf("failed to record closed position: %w", err)
	}
	return nil
}

// ExecutionCount returns the number of recorded executions for a rule on a
// given day.
func (j *Journal) ExecutionCount(ctx context.Context, ruleID string, day time.Time) (int, error) {
	start := time.Date(day.Year(), day.Month(), day.Day(), 0, 0, 0, 0, day.Location())
	end := start.Add(24 * time.Hour)

	var n int
	err := j.db.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM rule_executions
		WHERE rule_id = ? AND executed_at >= ? AND executed_at < ?`,
		ruleID, start, end).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("failed to count executions: %w", err)
	}
	return n, nil
}

// ClosedPositionSummary is one row of the closed positions report.
type ClosedPositionSummary struct {
	Symbol     string
	Side       models.OrderSide
	Quantity   int
	EntryPrice float64
	Reason     string
	ClosedAt   time.Time
}

// ClosedPositions returns recorded closures, newest first.
func (j *Journal) ClosedPositions(ctx context.Context, limit int) ([]ClosedPositionSummary, error) {
	rows, err := j.db.QueryContext(ctx, `
		SELECT symbol, side, quantity, entry_price, COALESCE(reason, ''), closed_at
		FROM closed_positions ORDER BY closed_at DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query closed positions: %w", err)
	}
	defer rows.Close()

	var out []ClosedPositionSummary
	for rows.Next() {
		var c ClosedPositionSummary
		var side string
		if err := rows.Scan(&c.Symbol, &side, &c.Quantity, &c.EntryPrice, &c.Reason, &c.ClosedAt); err != nil {
			return nil, fmt.Errorf("failed to scan closed position: %w", err)
		}
		c.Side = models.OrderSide(side)
		out = append(out, c)
	}
	return out, rows.Err()
}

// Attach subscribes the journal to order status and fill events so every
// update is persisted as it happens. Write failures never propagate back
// into trading.
func (j *Journal) Attach(bus *events.Bus) {
	bus.Subscribe(events.KindOrderStatus, func(ev events.Event) {
		if e, ok := ev.(events.OrderStatusEvent); ok {
			_ = j.RecordOrder(context.Background(), e.Order)
		}
	})
	bus.Subscribe(events.KindFill, func(ev events.Event) {
		if e, ok := ev.(events.FillEvent); ok {
			_ = j.RecordFill(context.Background(), e.Fill)
		}
	})
}
