package storage

import (
	"context"
	"time"

	"stocklab/internal/model"
	"stocklab/internal/types"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Journal persists ledger state to Postgres. The in-memory ledger stays
// authoritative at runtime; the journal exists so a restart can restore
// balances, positions and trade history.
type Journal struct {
	pool *pgxpool.Pool
}

func NewJournal(pool *pgxpool.Pool) *Journal {
	return &Journal{pool: pool}
}

func (j *Journal) EnsureSchema(ctx context.Context) error {
	_, err := j.pool.Exec(ctx, Schema)
	return err
}

// RecordTrade writes one trade attempt and, when the trade settled, the
// account and position snapshots, in a single transaction.
func (j *Journal) RecordTrade(ctx context.Context, t model.Trade, acct *model.Account, pos *model.Position) error {
	tx, err := j.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	_, err = tx.Exec(ctx,
		`insert into trades (id, user_id, symbol, side, quantity, fill_price, total_amount, order_type, status, rejection_reason, created_at)
		 values ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11)`,
		t.ID, t.UserID, t.Symbol, string(t.Side), t.Quantity, t.FillPrice, t.TotalAmount,
		string(t.OrderType), string(t.Status), t.RejectionReason, t.Timestamp)
	if err != nil {
		return err
	}
	if acct != nil {
		_, err = tx.Exec(ctx,
			`insert into accounts (user_id, cash_balance, updated_at) values ($1,$2,$3)
			 on conflict (user_id) do update set cash_balance = excluded.cash_balance, updated_at = excluded.updated_at`,
			acct.UserID, acct.CashBalance, time.Now().UTC())
		if err != nil {
			return err
		}
	}
	if pos != nil {
		_, err = tx.Exec(ctx,
			`insert into positions (user_id, symbol, quantity, average_cost, updated_at) values ($1,$2,$3,$4,$5)
			 on conflict (user_id, symbol) do update set quantity = excluded.quantity, average_cost = excluded.average_cost, updated_at = excluded.updated_at`,
			pos.UserID, pos.Symbol, pos.Quantity, pos.AverageCost, time.Now().UTC())
		if err != nil {
			return err
		}
	}
	return tx.Commit(ctx)
}

func (j *Journal) LoadAccounts(ctx context.Context) ([]model.Account, error) {
	rows, err := j.pool.Query(ctx, "select user_id, cash_balance from accounts")
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []model.Account
	for rows.Next() {
		var a model.Account
		if err := rows.Scan(&a.UserID, &a.CashBalance); err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

func (j *Journal) LoadPositions(ctx context.Context) ([]model.Position, error) {
	rows, err := j.pool.Query(ctx, "select user_id, symbol, quantity, average_cost, updated_at from positions where quantity > 0")
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []model.Position
	for rows.Next() {
		var p model.Position
		if err := rows.Scan(&p.UserID, &p.Symbol, &p.Quantity, &p.AverageCost, &p.UpdatedAt); err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

// LoadTrades returns trades at or after the cutoff, oldest first, so they
// can be replayed into the in-memory log in append order.
func (j *Journal) LoadTrades(ctx context.Context, cutoff time.Time) ([]model.Trade, error) {
	rows, err := j.pool.Query(ctx,
		`select id, user_id, symbol, side, quantity, fill_price, total_amount, order_type, status, rejection_reason, created_at
		 from trades where created_at >= $1 order by created_at asc`, cutoff)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []model.Trade
	for rows.Next() {
		var t model.Trade
		var side, orderType, status string
		if err := rows.Scan(&t.ID, &t.UserID, &t.Symbol, &side, &t.Quantity, &t.FillPrice, &t.TotalAmount, &orderType, &status, &t.RejectionReason, &t.Timestamp); err != nil {
			return nil, err
		}
		t.Side = types.TradeSide(side)
		t.OrderType = types.OrderType(orderType)
		t.Status = types.TradeStatus(status)
		out = append(out, t)
	}
	return out, rows.Err()
}
