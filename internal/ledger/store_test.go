package ledger

import (
	"context"
	"sync"
	"testing"
	"time"

	"stocklab/internal/types"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func dec(s string) decimal.Decimal {
	d, err := decimal.NewFromString(s)
	if err != nil {
		panic(err)
	}
	return d
}

func TestOpeningBalanceOnFirstTouch(t *testing.T) {
	s := NewStore(dec("100000"))
	assert.True(t, s.GetBalance("u1").Equal(dec("100000")))

	p := s.GetPosition("u1", "000001")
	assert.Zero(t, p.Quantity)
	assert.True(t, p.AverageCost.IsZero())
	assert.Empty(t, s.Positions("u1"))
}

func TestDebitCreditWithinTxn(t *testing.T) {
	s := NewStore(dec("1000"))
	ctx := context.Background()

	err := s.WithUser(ctx, "u1", func(tx *Txn) error {
		if err := tx.Debit(dec("400")); err != nil {
			return err
		}
		return tx.Credit(dec("150"))
	})
	require.NoError(t, err)
	assert.True(t, s.GetBalance("u1").Equal(dec("750")))

	err = s.WithUser(ctx, "u1", func(tx *Txn) error { return tx.Debit(dec("751")) })
	assert.ErrorIs(t, err, ErrInsufficientFunds)
	assert.True(t, s.GetBalance("u1").Equal(dec("750")))

	err = s.WithUser(ctx, "u1", func(tx *Txn) error { return tx.Debit(decimal.Zero) })
	assert.ErrorIs(t, err, ErrInvalidAmount)
}

func TestFailedTxnCommitsNothing(t *testing.T) {
	s := NewStore(dec("1000"))
	ctx := context.Background()

	err := s.WithUser(ctx, "u1", func(tx *Txn) error {
		require.NoError(t, tx.Debit(dec("600")))
		if _, err := tx.AdjustPosition("000001", 10, dec("60"), types.TradeSideBuy); err != nil {
			return err
		}
		// A later step fails: the debit and buy above must evaporate.
		_, err := tx.AdjustPosition("600519", 1, dec("10"), types.TradeSideSell)
		return err
	})
	assert.ErrorIs(t, err, ErrInsufficientShares)
	assert.True(t, s.GetBalance("u1").Equal(dec("1000")))
	assert.Zero(t, s.GetPosition("u1", "000001").Quantity)
}

func TestAverageCostLaw(t *testing.T) {
	s := NewStore(dec("100000"))
	ctx := context.Background()

	buy := func(qty int64, price string) {
		t.Helper()
		require.NoError(t, s.WithUser(ctx, "u1", func(tx *Txn) error {
			_, err := tx.AdjustPosition("000001", qty, dec(price), types.TradeSideBuy)
			return err
		}))
	}
	buy(10, "100")
	buy(10, "120")

	p := s.GetPosition("u1", "000001")
	assert.EqualValues(t, 20, p.Quantity)
	assert.True(t, p.AverageCost.Equal(dec("110")), "averageCost = %s", p.AverageCost)

	// Selling does not touch the average cost.
	require.NoError(t, s.WithUser(ctx, "u1", func(tx *Txn) error {
		_, err := tx.AdjustPosition("000001", 5, dec("300"), types.TradeSideSell)
		return err
	}))
	p = s.GetPosition("u1", "000001")
	assert.EqualValues(t, 15, p.Quantity)
	assert.True(t, p.AverageCost.Equal(dec("110")))
}

func TestOversellRejectedAtomically(t *testing.T) {
	s := NewStore(dec("1000"))
	ctx := context.Background()
	require.NoError(t, s.WithUser(ctx, "u1", func(tx *Txn) error {
		_, err := tx.AdjustPosition("000001", 5, dec("10"), types.TradeSideBuy)
		return err
	}))

	err := s.WithUser(ctx, "u1", func(tx *Txn) error {
		if _, err := tx.AdjustPosition("000001", 6, dec("10"), types.TradeSideSell); err != nil {
			return err
		}
		return tx.Credit(dec("60"))
	})
	assert.ErrorIs(t, err, ErrInsufficientShares)
	assert.EqualValues(t, 5, s.GetPosition("u1", "000001").Quantity)
	assert.True(t, s.GetBalance("u1").Equal(dec("1000")))
}

func TestWithUserHonorsContextDeadline(t *testing.T) {
	s := NewStore(dec("1000"))
	hold := make(chan struct{})
	held := make(chan struct{})
	go func() {
		_ = s.WithUser(context.Background(), "u1", func(tx *Txn) error {
			close(held)
			<-hold
			return nil
		})
	}()
	<-held

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	err := s.WithUser(ctx, "u1", func(tx *Txn) error { return tx.Debit(dec("1")) })
	assert.ErrorIs(t, err, ErrLockTimeout)
	close(hold)

	// Another user is unaffected by u1's lock.
	require.NoError(t, s.WithUser(context.Background(), "u2", func(tx *Txn) error {
		return tx.Debit(dec("1"))
	}))
}

func TestConcurrentDebitsNeverGoNegative(t *testing.T) {
	s := NewStore(dec("100"))
	ctx := context.Background()

	var wg sync.WaitGroup
	succeeded := make(chan struct{}, 64)
	for i := 0; i < 64; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			err := s.WithUser(ctx, "u1", func(tx *Txn) error { return tx.Debit(dec("10")) })
			if err == nil {
				succeeded <- struct{}{}
			}
		}()
	}
	wg.Wait()
	close(succeeded)

	wins := 0
	for range succeeded {
		wins++
	}
	assert.Equal(t, 10, wins)
	assert.True(t, s.GetBalance("u1").IsZero())
}
