package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"FinCast/internal/domain/models"
	pkgch "FinCast/pkg/clickhouse"
	applogger "FinCast/pkg/logger"
)

const (
	barsTable      = "fincast.daily_bars"
	forecastsTable = "fincast.forecasts"
)

// SchemaStatements creates the database and tables used by the ClickHouse stores.
var SchemaStatements = []string{
	`CREATE DATABASE IF NOT EXISTS fincast`,
	`CREATE TABLE IF NOT EXISTS ` + barsTable + ` (
        symbol     LowCardinality(String),
        day        Date,
        open       Float64,
        high       Float64,
        low        Float64,
        close      Float64,
        volume     Float64,
        updated_at DateTime64(3) DEFAULT now64(3)
    ) ENGINE = ReplacingMergeTree(updated_at)
    ORDER BY (symbol, day)`,
	`CREATE TABLE IF NOT EXISTS ` + forecastsTable + ` (
        symbol            LowCardinality(String),
        applicable_date   Date,
        predicted_close   Float64,
        reference_close   Float64,
        percentage_change Float64,
        accuracy_mape     Float64,
        session_open      UInt8,
        generated_at      DateTime64(3)
    ) ENGINE = MergeTree
    ORDER BY (symbol, generated_at)`,
}

// CHPriceStore persists daily bars and served forecasts in ClickHouse.
type CHPriceStore struct {
	db *sql.DB
	l  *applogger.Logger
}

func NewCHPriceStore(ch *pkgch.Client) *CHPriceStore {
	return &CHPriceStore{db: ch.DB()}
}

// NewCHPriceStoreDB wraps an existing connection pool.
func NewCHPriceStoreDB(db *sql.DB) *CHPriceStore {
	return &CHPriceStore{db: db}
}

// SetLogger injects a structured logger.
func (s *CHPriceStore) SetLogger(l *applogger.Logger) { s.l = l }

func (s *CHPriceStore) History(ctx context.Context, symbol string, from, to time.Time) (models.PriceSeries, error) {
	start := time.Now()
	const q = `
        SELECT day, open, high, low, close, volume
        FROM ` + barsTable + ` FINAL
        WHERE symbol = ? AND day >= ? AND day <= ?
        ORDER BY day ASC
    `
	series := models.PriceSeries{Symbol: symbol}
	rows, err := s.db.QueryContext(ctx, q, symbol, dayOf(from), dayOf(to))
	if err != nil {
		s.logErr("clickhouse history query error", symbol, err)
		return series, fmt.Errorf("history %s: %w", symbol, err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			day time.Time
			b   models.PriceBar
		)
		if err := rows.Scan(&day, &b.Open, &b.High, &b.Low, &b.Close, &b.Volume); err != nil {
			s.logErr("clickhouse history scan error", symbol, err)
			return series, fmt.Errorf("scan bar: %w", err)
		}
		b.Date = models.DateOf(day.UTC())
		series.Bars = append(series.Bars, b)
	}
	if err := rows.Err(); err != nil {
		s.logErr("clickhouse history rows error", symbol, err)
		return series, fmt.Errorf("rows: %w", err)
	}
	if s.l != nil {
		s.l.Debug("clickhouse history ok",
			applogger.String("symbol", symbol),
			applogger.Int("rows", series.Len()),
			applogger.Duration("duration_ms", time.Since(start)),
		)
	}
	return series, nil
}

// SaveBars upserts bars; ReplacingMergeTree keeps the newest row per (symbol, day).
func (s *CHPriceStore) SaveBars(ctx context.Context, series models.PriceSeries) error {
	if series.Empty() {
		return nil
	}
	const chunkSize = 2000
	for start := 0; start < len(series.Bars); start += chunkSize {
		end := min(start+chunkSize, len(series.Bars))
		values := make([]string, 0, end-start)
		args := make([]interface{}, 0, (end-start)*7)
		for _, b := range series.Bars[start:end] {
			values = append(values, "(?, ?, ?, ?, ?, ?, ?)")
			args = append(args, series.Symbol, b.Date.Time(time.UTC), b.Open, b.High, b.Low, b.Close, b.Volume)
		}
		q := fmt.Sprintf("INSERT INTO %s (symbol, day, open, high, low, close, volume) VALUES %s", barsTable, strings.Join(values, ","))
		if _, err := s.db.ExecContext(ctx, q, args...); err != nil {
			s.logErr("clickhouse save_bars error", series.Symbol, err)
			return fmt.Errorf("save bars %s: %w", series.Symbol, err)
		}
	}
	return nil
}

func (s *CHPriceStore) SaveForecast(ctx context.Context, rec models.ForecastRecord) error {
	q := fmt.Sprintf(`INSERT INTO %s (symbol, applicable_date, predicted_close, reference_close,
        percentage_change, accuracy_mape, session_open, generated_at) VALUES (?, ?, ?, ?, ?, ?, ?, ?)`, forecastsTable)
	var open uint8
	if rec.SessionOpen {
		open = 1
	}
	_, err := s.db.ExecContext(ctx, q,
		rec.Instrument,
		rec.ApplicableDate.Time(time.UTC),
		rec.PredictedClose,
		rec.ReferenceClose,
		rec.PercentageChange,
		rec.AccuracyMAPE,
		open,
		rec.GeneratedAt,
	)
	if err != nil {
		s.logErr("clickhouse save_forecast error", rec.Instrument, err)
		return fmt.Errorf("save forecast %s: %w", rec.Instrument, err)
	}
	return nil
}

func (s *CHPriceStore) logErr(msg, symbol string, err error) {
	if s.l == nil {
		return
	}
	s.l.Error(msg, applogger.String("symbol", symbol), applogger.Error(err))
}

func dayOf(t time.Time) time.Time {
	return models.DateOf(t).Time(time.UTC)
}
