package repository

import (
	"context"
	"database/sql"
	"fmt"
	"regexp"
	"time"

	"DataPull/internal/domain/models"
	pkgch "DataPull/pkg/clickhouse"
	applogger "DataPull/pkg/logger"
)

var identRe = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*(\.[A-Za-z_][A-Za-z0-9_]*)?$`)

// CHTickReader reads stored ticks from a ClickHouse table with columns
// (ts DateTime64, symbol String, price Float64, volume Float64).
type CHTickReader struct {
	db    *sql.DB
	table string
	l     *applogger.Logger
}

func NewCHTickReader(ch *pkgch.Client, table string) (*CHTickReader, error) {
	return newCHTickReader(ch.DB(), table)
}

func newCHTickReader(db *sql.DB, table string) (*CHTickReader, error) {
	if !identRe.MatchString(table) {
		return nil, fmt.Errorf("invalid table name %q", table)
	}
	return &CHTickReader{db: db, table: table, l: applogger.Nop()}, nil
}

// SetLogger injects a structured logger.
func (r *CHTickReader) SetLogger(l *applogger.Logger) { r.l = l }

// TickQuery selects one page of ticks: rows at or after From, up to and
// including End when set, in (ts, symbol, price, volume) order with the
// first Skip rows dropped. Skip counts rows sharing From that earlier
// pages already returned.
type TickQuery struct {
	Symbols []string
	From    time.Time
	Skip    int
	End     time.Time
	Limit   int
}

func (r *CHTickReader) ReadTicks(ctx context.Context, q TickQuery) ([]models.Record, error) {
	start := time.Now()
	const qtpl = `
        SELECT ts, symbol, price, volume
        FROM %s
        WHERE has(?, symbol) AND ts >= ?%s
        ORDER BY ts ASC, symbol ASC, price ASC, volume ASC
        LIMIT ? OFFSET ?
    `
	args := []any{q.Symbols, q.From}
	bound := ""
	if !q.End.IsZero() {
		bound = " AND ts <= ?"
		args = append(args, q.End)
	}
	args = append(args, q.Limit, q.Skip)
	rows, err := r.db.QueryContext(ctx, fmt.Sprintf(qtpl, r.table, bound), args...)
	if err != nil {
		r.l.Error("clickhouse read_ticks query error",
			applogger.String("table", r.table),
			applogger.Strings("symbols", q.Symbols),
			applogger.Error(err),
		)
		return nil, fmt.Errorf("read ticks: %w", err)
	}
	defer rows.Close()

	out := make([]models.Record, 0, q.Limit)
	for rows.Next() {
		var (
			ts            time.Time
			symbol        string
			price, volume float64
		)
		if err := rows.Scan(&ts, &symbol, &price, &volume); err != nil {
			return nil, fmt.Errorf("scan tick: %w", err)
		}
		out = append(out, models.Record{"ts": ts.UTC(), "symbol": symbol, "price": price, "volume": volume})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows: %w", err)
	}
	r.l.Debug("clickhouse read_ticks ok",
		applogger.String("table", r.table),
		applogger.Int("rows", len(out)),
		applogger.Duration("duration_ms", time.Since(start)),
	)
	return out, nil
}

// Symbols lists every symbol stored in the table.
func (r *CHTickReader) Symbols(ctx context.Context) ([]string, error) {
	rows, err := r.db.QueryContext(ctx, fmt.Sprintf("SELECT DISTINCT symbol FROM %s ORDER BY symbol", r.table))
	if err != nil {
		return nil, fmt.Errorf("list symbols: %w", err)
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var s string
		if err := rows.Scan(&s); err != nil {
			return nil, fmt.Errorf("scan symbol: %w", err)
		}
		out = append(out, s)
	}
	return out, rows.Err()
}
