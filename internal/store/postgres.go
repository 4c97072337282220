package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/stockplay/trade-engine/internal/ledger"
	"github.com/stockplay/trade-engine/internal/model"
)

// Compile-time interface check.
var _ Store = (*PostgresStore)(nil)

// PostgresStore implements Store using PostgreSQL as the source of truth.
// All monetary values are stored as NUMERIC for exact decimal precision.
//
// Expected schema:
//
//	wallets   (id SMALLINT PRIMARY KEY, balance NUMERIC, initial_balance NUMERIC,
//	           total_deposited NUMERIC, total_withdrawn NUMERIC, updated_at TIMESTAMPTZ)
//	positions (stock_name TEXT PRIMARY KEY, symbol TEXT, quantity BIGINT,
//	           total_cost NUMERIC, average_cost NUMERIC, current_price NUMERIC,
//	           market_value NUMERIC, unrealized_pl NUMERIC,
//	           unrealized_pl_percent NUMERIC, realized_pl NUMERIC,
//	           created_at TIMESTAMPTZ, updated_at TIMESTAMPTZ)
//	trades    (id UUID PRIMARY KEY, stock_name TEXT, side TEXT, quantity BIGINT,
//	           price NUMERIC, amount NUMERIC, realized_pl NUMERIC, executed_at TIMESTAMPTZ)
//	watchlist (symbol TEXT PRIMARY KEY, stock_name TEXT, price NUMERIC,
//	           change NUMERIC, created_at TIMESTAMPTZ)
type PostgresStore struct {
	pool    *pgxpool.Pool
	initial decimal.Decimal
}

// walletID pins the singleton wallet row.
const walletID = 1

// NewPostgresStore creates a new PostgreSQL-backed store whose wallet
// initializes at the given baseline.
func NewPostgresStore(pool *pgxpool.Pool, initial decimal.Decimal) *PostgresStore {
	return &PostgresStore{pool: pool, initial: initial}
}

func (s *PostgresStore) GetWallet(ctx context.Context) (*model.Wallet, error) {
	// Lazy creation: insert the baseline row if absent, then read back.
	_, err := s.pool.Exec(ctx,
		`INSERT INTO wallets (id, balance, initial_balance, total_deposited, total_withdrawn, updated_at)
		 VALUES ($1, $2::NUMERIC, $2::NUMERIC, $2::NUMERIC, 0, NOW())
		 ON CONFLICT (id) DO NOTHING`,
		walletID, s.initial.String())
	if err != nil {
		return nil, fmt.Errorf("init wallet: %w", err)
	}

	var w model.Wallet
	var balance, initial, deposited, withdrawn string
	err = s.pool.QueryRow(ctx,
		`SELECT balance::TEXT, initial_balance::TEXT, total_deposited::TEXT,
		        total_withdrawn::TEXT, updated_at
		 FROM wallets WHERE id = $1`, walletID).
		Scan(&balance, &initial, &deposited, &withdrawn, &w.UpdatedAt)
	if err != nil {
		return nil, fmt.Errorf("get wallet: %w", err)
	}

	w.Balance, _ = decimal.NewFromString(balance)
	w.InitialBalance, _ = decimal.NewFromString(initial)
	w.TotalDeposited, _ = decimal.NewFromString(deposited)
	w.TotalWithdrawn, _ = decimal.NewFromString(withdrawn)

	return &w, nil
}

const positionColumns = `stock_name, symbol, quantity,
       total_cost::TEXT, average_cost::TEXT, current_price::TEXT,
       market_value::TEXT, unrealized_pl::TEXT, unrealized_pl_percent::TEXT,
       realized_pl::TEXT, created_at, updated_at`

func (s *PostgresStore) GetPosition(ctx context.Context, stockName string) (*model.Position, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT `+positionColumns+` FROM positions WHERE stock_name = $1`, stockName)

	p, err := scanPosition(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ledger.ErrPositionNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get position %s: %w", stockName, err)
	}
	return p, nil
}

func (s *PostgresStore) ListPositions(ctx context.Context) ([]model.Position, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT `+positionColumns+` FROM positions ORDER BY stock_name`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var positions []model.Position
	for rows.Next() {
		p, err := scanPosition(rows)
		if err != nil {
			return nil, err
		}
		positions = append(positions, *p)
	}
	return positions, rows.Err()
}

// ApplyTrade commits the wallet update, position upsert, and trade record
// in a single transaction so a failure in any write rolls back all three.
func (s *PostgresStore) ApplyTrade(ctx context.Context, wallet *model.Wallet, position *model.Position, record *model.TradeRecord) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin trade tx: %w", err)
	}
	defer tx.Rollback(ctx)

	_, err = tx.Exec(ctx,
		`UPDATE wallets
		 SET balance = $2::NUMERIC, total_deposited = $3::NUMERIC,
		     total_withdrawn = $4::NUMERIC, updated_at = $5
		 WHERE id = $1`,
		walletID, wallet.Balance.String(), wallet.TotalDeposited.String(),
		wallet.TotalWithdrawn.String(), wallet.UpdatedAt)
	if err != nil {
		return fmt.Errorf("update wallet: %w", err)
	}

	_, err = tx.Exec(ctx,
		`INSERT INTO positions (stock_name, symbol, quantity, total_cost, average_cost,
		                        current_price, market_value, unrealized_pl,
		                        unrealized_pl_percent, realized_pl, created_at, updated_at)
		 VALUES ($1, $2, $3, $4::NUMERIC, $5::NUMERIC, $6::NUMERIC, $7::NUMERIC,
		         $8::NUMERIC, $9::NUMERIC, $10::NUMERIC, $11, $12)
		 ON CONFLICT (stock_name) DO UPDATE SET
		     symbol = EXCLUDED.symbol,
		     quantity = EXCLUDED.quantity,
		     total_cost = EXCLUDED.total_cost,
		     average_cost = EXCLUDED.average_cost,
		     current_price = EXCLUDED.current_price,
		     market_value = EXCLUDED.market_value,
		     unrealized_pl = EXCLUDED.unrealized_pl,
		     unrealized_pl_percent = EXCLUDED.unrealized_pl_percent,
		     realized_pl = EXCLUDED.realized_pl,
		     updated_at = EXCLUDED.updated_at`,
		position.StockName, position.Symbol, position.Quantity,
		position.TotalCost.String(), position.AverageCost.String(),
		position.CurrentPrice.String(), position.MarketValue.String(),
		position.UnrealizedPL.String(), position.UnrealizedPLPercent.String(),
		position.RealizedPL.String(), position.CreatedAt, position.UpdatedAt)
	if err != nil {
		return fmt.Errorf("upsert position: %w", err)
	}

	_, err = tx.Exec(ctx,
		`INSERT INTO trades (id, stock_name, side, quantity, price, amount, realized_pl, executed_at)
		 VALUES ($1, $2, $3, $4, $5::NUMERIC, $6::NUMERIC, $7::NUMERIC, $8)`,
		record.ID, record.StockName, record.Side, record.Quantity,
		record.Price.String(), record.Amount.String(),
		record.RealizedPL.String(), record.ExecutedAt)
	if err != nil {
		return fmt.Errorf("insert trade record: %w", err)
	}

	return tx.Commit(ctx)
}

func (s *PostgresStore) ListTrades(ctx context.Context, limit int) ([]model.TradeRecord, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, stock_name, side, quantity, price::TEXT, amount::TEXT,
		        realized_pl::TEXT, executed_at
		 FROM trades ORDER BY executed_at DESC LIMIT $1`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var records []model.TradeRecord
	for rows.Next() {
		var r model.TradeRecord
		var price, amount, realized string
		if err := rows.Scan(&r.ID, &r.StockName, &r.Side, &r.Quantity,
			&price, &amount, &realized, &r.ExecutedAt); err != nil {
			return nil, err
		}
		r.Price, _ = decimal.NewFromString(price)
		r.Amount, _ = decimal.NewFromString(amount)
		r.RealizedPL, _ = decimal.NewFromString(realized)
		records = append(records, r)
	}
	return records, rows.Err()
}

func (s *PostgresStore) Reset(ctx context.Context, wallet *model.Wallet) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin reset tx: %w", err)
	}
	defer tx.Rollback(ctx)

	for _, stmt := range []string{
		`DELETE FROM trades`,
		`DELETE FROM positions`,
		`DELETE FROM wallets`,
	} {
		if _, err := tx.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("reset: %w", err)
		}
	}

	_, err = tx.Exec(ctx,
		`INSERT INTO wallets (id, balance, initial_balance, total_deposited, total_withdrawn, updated_at)
		 VALUES ($1, $2::NUMERIC, $3::NUMERIC, $4::NUMERIC, $5::NUMERIC, $6)`,
		walletID, wallet.Balance.String(), wallet.InitialBalance.String(),
		wallet.TotalDeposited.String(), wallet.TotalWithdrawn.String(), wallet.UpdatedAt)
	if err != nil {
		return fmt.Errorf("reset wallet: %w", err)
	}

	return tx.Commit(ctx)
}

func (s *PostgresStore) ListWatchlist(ctx context.Context) ([]model.WatchlistEntry, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT symbol, stock_name, price::TEXT, change::TEXT, created_at
		 FROM watchlist ORDER BY created_at`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var entries []model.WatchlistEntry
	for rows.Next() {
		var e model.WatchlistEntry
		var price, change string
		if err := rows.Scan(&e.Symbol, &e.StockName, &price, &change, &e.CreatedAt); err != nil {
			return nil, err
		}
		e.Price, _ = decimal.NewFromString(price)
		e.Change, _ = decimal.NewFromString(change)
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

func (s *PostgresStore) AddWatchlistEntry(ctx context.Context, entry *model.WatchlistEntry) (bool, error) {
	tag, err := s.pool.Exec(ctx,
		`INSERT INTO watchlist (symbol, stock_name, price, change, created_at)
		 VALUES ($1, $2, $3::NUMERIC, $4::NUMERIC, $5)
		 ON CONFLICT (symbol) DO NOTHING`,
		entry.Symbol, entry.StockName, entry.Price.String(),
		entry.Change.String(), entry.CreatedAt)
	if err != nil {
		return false, fmt.Errorf("add watchlist entry: %w", err)
	}
	return tag.RowsAffected() > 0, nil
}

func (s *PostgresStore) RemoveWatchlistEntry(ctx context.Context, sym string) (bool, error) {
	tag, err := s.pool.Exec(ctx, `DELETE FROM watchlist WHERE symbol = $1`, sym)
	if err != nil {
		return false, fmt.Errorf("remove watchlist entry: %w", err)
	}
	return tag.RowsAffected() > 0, nil
}

func (s *PostgresStore) HasWatchlistEntry(ctx context.Context, nameOrSymbol string) (bool, error) {
	var present bool
	err := s.pool.QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM watchlist WHERE symbol = $1 OR stock_name = $1)`,
		nameOrSymbol).Scan(&present)
	if err != nil {
		return false, fmt.Errorf("check watchlist entry: %w", err)
	}
	return present, nil
}

// pgxRow abstracts QueryRow results and Query rows for position scanning.
type pgxRow interface {
	Scan(dest ...interface{}) error
}

func scanPosition(row pgxRow) (*model.Position, error) {
	var p model.Position
	var totalCost, avgCost, price, marketValue, unrealized, unrealizedPct, realized string

	if err := row.Scan(&p.StockName, &p.Symbol, &p.Quantity,
		&totalCost, &avgCost, &price, &marketValue, &unrealized,
		&unrealizedPct, &realized, &p.CreatedAt, &p.UpdatedAt); err != nil {
		return nil, err
	}

	p.TotalCost, _ = decimal.NewFromString(totalCost)
	p.AverageCost, _ = decimal.NewFromString(avgCost)
	p.CurrentPrice, _ = decimal.NewFromString(price)
	p.MarketValue, _ = decimal.NewFromString(marketValue)
	p.UnrealizedPL, _ = decimal.NewFromString(unrealized)
	p.UnrealizedPLPercent, _ = decimal.NewFromString(unrealizedPct)
	p.RealizedPL, _ = decimal.NewFromString(realized)

	return &p, nil
}
