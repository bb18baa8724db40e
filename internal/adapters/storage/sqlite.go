package storage

// sqlite.go: persistencia del portfolio y del log de decisiones.
//
// Estrategia:
//   - `portfolio`: UNA fila (id=1) con el estado escalar del portfolio.
//   - `positions`: el set completo de posiciones abiertas; se reemplaza
//     entero en cada save. Son pocas filas (cap de posiciones) y así el
//     snapshot en disco siempre es exactamente el snapshot en memoria.
//   - `trades`: historia cerrada, reemplazada junto al snapshot con su
//     orden original (seq).
//   - `decisions`: log append-only de cada decisión evaluada, aceptada o no.
//     Prune automático al arrancar (> 30 días).
//
// Los timestamps se guardan como RFC3339Nano en UTC para que el round-trip
// sea exacto campo a campo.

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/alejandrodnm/signalbot/internal/domain"
	_ "modernc.org/sqlite"
)

const schema = `
-- Estado escalar del portfolio, siempre una fila
CREATE TABLE IF NOT EXISTS portfolio (
    id                 INTEGER PRIMARY KEY CHECK (id = 1),
    balance            REAL    NOT NULL,
    initial_balance    REAL    NOT NULL,
    created_at         TEXT    NOT NULL,
    max_open_positions INTEGER NOT NULL,
    max_position_pct   REAL    NOT NULL,
    saved_at           TEXT    NOT NULL
);

-- Posiciones abiertas: como máximo una por mercado
CREATE TABLE IF NOT EXISTS positions (
    id          TEXT PRIMARY KEY,
    market_id   TEXT NOT NULL UNIQUE,
    direction   TEXT NOT NULL,
    shares      REAL NOT NULL,
    entry_price REAL NOT NULL,
    entry_time  TEXT NOT NULL,
    signal_id   TEXT NOT NULL,
    confidence  REAL NOT NULL
);

-- Historia de trades cerrados, en el orden en que se cerraron
CREATE TABLE IF NOT EXISTS trades (
    seq         INTEGER PRIMARY KEY,
    id          TEXT NOT NULL,
    market_id   TEXT NOT NULL,
    direction   TEXT NOT NULL,
    shares      REAL NOT NULL,
    entry_price REAL NOT NULL,
    exit_price  REAL NOT NULL,
    entry_time  TEXT NOT NULL,
    exit_time   TEXT NOT NULL,
    signal_id   TEXT NOT NULL,
    confidence  REAL NOT NULL,
    pnl         REAL NOT NULL,
    return_pct  REAL NOT NULL,
    reason      TEXT NOT NULL
);

-- Log de decisiones evaluadas (aceptadas y rechazadas)
CREATE TABLE IF NOT EXISTS decisions (
    id              INTEGER PRIMARY KEY AUTOINCREMENT,
    market_id       TEXT NOT NULL,
    event_id        TEXT NOT NULL,
    direction       TEXT NOT NULL,
    confidence      REAL NOT NULL,
    current_price   REAL NOT NULL,
    expected_price  REAL NOT NULL,
    should_trade    INTEGER NOT NULL,
    position_size   REAL NOT NULL,
    risk_score      REAL NOT NULL,
    expected_return REAL NOT NULL,
    reasoning       TEXT NOT NULL,
    evaluated_at    TEXT NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_trades_market    ON trades(market_id);
CREATE INDEX IF NOT EXISTS idx_decisions_at     ON decisions(evaluated_at DESC);
CREATE INDEX IF NOT EXISTS idx_decisions_market ON decisions(market_id);
`

const retentionDecisions = 30 * 24 * time.Hour

// SQLiteStorage implementa ports.Storage usando SQLite (pure Go, sin CGo).
type SQLiteStorage struct {
	db *sql.DB
}

// NewSQLiteStorage abre (o crea) la base de datos en la ruta dada.
// Aplica el schema y limpia decisiones antiguas.
func NewSQLiteStorage(path string) (*SQLiteStorage, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("storage.NewSQLiteStorage: open %q: %w", path, err)
	}
	db.SetMaxOpenConns(1) // SQLite es single-writer
	db.SetMaxIdleConns(1)

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("storage.NewSQLiteStorage: apply schema: %w", err)
	}

	s := &SQLiteStorage{db: db}
	s.pruneOld(context.Background())
	return s, nil
}

// SavePortfolio reemplaza el snapshot persistido por el dado, de forma
// atómica: o se escribe entero o no se escribe nada.
func (s *SQLiteStorage) SavePortfolio(ctx context.Context, snap domain.Snapshot) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("storage.SavePortfolio: begin tx: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `
		INSERT INTO portfolio (id, balance, initial_balance, created_at, max_open_positions, max_position_pct, saved_at)
		VALUES (1, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			balance            = excluded.balance,
			initial_balance    = excluded.initial_balance,
			created_at         = excluded.created_at,
			max_open_positions = excluded.max_open_positions,
			max_position_pct   = excluded.max_position_pct,
			saved_at           = excluded.saved_at
	`,
		snap.Balance,
		snap.InitialBalance,
		encodeTime(snap.CreatedAt),
		snap.Limits.MaxOpenPositions,
		snap.Limits.MaxPositionPct,
		encodeTime(time.Now()),
	); err != nil {
		return fmt.Errorf("storage.SavePortfolio: upsert portfolio: %w", err)
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM positions`); err != nil {
		return fmt.Errorf("storage.SavePortfolio: clear positions: %w", err)
	}
	for _, pos := range snap.Positions {
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO positions (id, market_id, direction, shares, entry_price, entry_time, signal_id, confidence)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		`,
			pos.ID, pos.MarketID, string(pos.Direction), pos.Shares,
			pos.EntryPrice, encodeTime(pos.EntryTime), pos.SignalID, pos.Confidence,
		); err != nil {
			return fmt.Errorf("storage.SavePortfolio: insert position %s: %w", pos.MarketID, err)
		}
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM trades`); err != nil {
		return fmt.Errorf("storage.SavePortfolio: clear trades: %w", err)
	}
	for i, rec := range snap.History {
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO trades (seq, id, market_id, direction, shares, entry_price, exit_price,
			                    entry_time, exit_time, signal_id, confidence, pnl, return_pct, reason)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		`,
			i, rec.ID, rec.MarketID, string(rec.Direction), rec.Shares,
			rec.EntryPrice, rec.ExitPrice, encodeTime(rec.EntryTime), encodeTime(rec.ExitTime),
			rec.SignalID, rec.Confidence, rec.PnL, rec.ReturnPct, string(rec.Reason),
		); err != nil {
			return fmt.Errorf("storage.SavePortfolio: insert trade %s: %w", rec.ID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("storage.SavePortfolio: commit: %w", err)
	}
	return nil
}

// LoadPortfolio reconstruye el último snapshot guardado.
// ok=false si nunca se guardó ninguno.
func (s *SQLiteStorage) LoadPortfolio(ctx context.Context) (domain.Snapshot, bool, error) {
	var snap domain.Snapshot
	var createdAt string

	err := s.db.QueryRowContext(ctx, `
		SELECT balance, initial_balance, created_at, max_open_positions, max_position_pct
		FROM portfolio WHERE id = 1
	`).Scan(&snap.Balance, &snap.InitialBalance, &createdAt,
		&snap.Limits.MaxOpenPositions, &snap.Limits.MaxPositionPct)
	if err == sql.ErrNoRows {
		return domain.Snapshot{}, false, nil
	}
	if err != nil {
		return domain.Snapshot{}, false, fmt.Errorf("storage.LoadPortfolio: query portfolio: %w", err)
	}
	if snap.CreatedAt, err = decodeTime(createdAt); err != nil {
		return domain.Snapshot{}, false, fmt.Errorf("storage.LoadPortfolio: created_at: %w", err)
	}

	if snap.Positions, err = s.loadPositions(ctx); err != nil {
		return domain.Snapshot{}, false, err
	}
	if snap.History, err = s.loadTrades(ctx); err != nil {
		return domain.Snapshot{}, false, err
	}
	return snap, true, nil
}

func (s *SQLiteStorage) loadPositions(ctx context.Context) ([]domain.Position, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, market_id, direction, shares, entry_price, entry_time, signal_id, confidence
		FROM positions ORDER BY market_id
	`)
	if err != nil {
		return nil, fmt.Errorf("storage.loadPositions: query: %w", err)
	}
	defer rows.Close()

	var positions []domain.Position
	for rows.Next() {
		var pos domain.Position
		var direction, entryTime string
		if err := rows.Scan(&pos.ID, &pos.MarketID, &direction, &pos.Shares,
			&pos.EntryPrice, &entryTime, &pos.SignalID, &pos.Confidence); err != nil {
			return nil, fmt.Errorf("storage.loadPositions: scan: %w", err)
		}
		pos.Direction = domain.Direction(direction)
		if pos.EntryTime, err = decodeTime(entryTime); err != nil {
			return nil, fmt.Errorf("storage.loadPositions: entry_time: %w", err)
		}
		positions = append(positions, pos)
	}
	return positions, rows.Err()
}

func (s *SQLiteStorage) loadTrades(ctx context.Context) ([]domain.TradeRecord, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, market_id, direction, shares, entry_price, exit_price,
		       entry_time, exit_time, signal_id, confidence, pnl, return_pct, reason
		FROM trades ORDER BY seq
	`)
	if err != nil {
		return nil, fmt.Errorf("storage.loadTrades: query: %w", err)
	}
	defer rows.Close()

	var trades []domain.TradeRecord
	for rows.Next() {
		var rec domain.TradeRecord
		var direction, entryTime, exitTime, reason string
		if err := rows.Scan(&rec.ID, &rec.MarketID, &direction, &rec.Shares,
			&rec.EntryPrice, &rec.ExitPrice, &entryTime, &exitTime,
			&rec.SignalID, &rec.Confidence, &rec.PnL, &rec.ReturnPct, &reason); err != nil {
			return nil, fmt.Errorf("storage.loadTrades: scan: %w", err)
		}
		rec.Direction = domain.Direction(direction)
		rec.Reason = domain.CloseReason(reason)
		if rec.EntryTime, err = decodeTime(entryTime); err != nil {
			return nil, fmt.Errorf("storage.loadTrades: entry_time: %w", err)
		}
		if rec.ExitTime, err = decodeTime(exitTime); err != nil {
			return nil, fmt.Errorf("storage.loadTrades: exit_time: %w", err)
		}
		trades = append(trades, rec)
	}
	return trades, rows.Err()
}

// LogDecision registra una decisión evaluada en el log append-only.
func (s *SQLiteStorage) LogDecision(ctx context.Context, dec domain.TradingDecision) error {
	shouldTrade := 0
	if dec.ShouldTrade {
		shouldTrade = 1
	}
	if _, err := s.db.ExecContext(ctx, `
		INSERT INTO decisions (market_id, event_id, direction, confidence, current_price,
		                       expected_price, should_trade, position_size, risk_score,
		                       expected_return, reasoning, evaluated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		dec.Signal.MarketID, dec.Signal.EventID, string(dec.Signal.Direction),
		dec.Signal.Confidence, dec.Signal.CurrentPrice, dec.Signal.ExpectedPrice,
		shouldTrade, dec.PositionSize, dec.RiskScore, dec.ExpectedReturn,
		dec.Reasoning, encodeTime(dec.EvaluatedAt),
	); err != nil {
		return fmt.Errorf("storage.LogDecision: insert: %w", err)
	}
	return nil
}

// Close cierra la conexión a la base de datos.
func (s *SQLiteStorage) Close() error {
	return s.db.Close()
}

// pruneOld elimina decisiones antiguas para mantener la DB ligera.
func (s *SQLiteStorage) pruneOld(ctx context.Context) {
	cutoff := time.Now().UTC().Add(-retentionDecisions)
	s.db.ExecContext(ctx, `DELETE FROM decisions WHERE evaluated_at < ?`, encodeTime(cutoff))
}

func encodeTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

func decodeTime(s string) (time.Time, error) {
	return time.Parse(time.RFC3339Nano, s)
}
