// Package wallet is a reference implementation of the Wallet collaborator
// the Pairing Engine debits on a successful pairing (§4.F step 6). The core
// spec treats wallet storage as an external concern; this package gives the
// Debit collaborator interface (which creates a missing wallet itself) a
// concrete, Postgres-backed shape so the engine has something real to call and tests
// have something real to exercise. Locking granularity mirrors the original
// system's row-level lock: one gem_wallets row per user, debited inside a
// serializable-for-this-row transaction.
package wallet

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
)

// ErrInsufficientFunds is returned by Debit when the wallet balance is
// below the requested amount.
var ErrInsufficientFunds = errors.New("wallet: insufficient funds")

// Wallet is the collaborator interface the Pairing Engine depends on.
// Implementations must debit atomically: either the full amount is taken or
// none is.
type Wallet interface {
	Debit(ctx context.Context, userID int64, amount int) error
}

// Store is the Postgres-backed Wallet implementation.
type Store struct {
	db *sql.DB
}

// NewStore creates a Store backed by the given database handle.
func NewStore(db *sql.DB) *Store {
	return &Store{db: db}
}

// Debit locks the user's wallet row, creating it with a zero balance if
// missing, and subtracts amount. If amount is zero (preferred_gender=any,
// §4.F step 6) the wallet is still created-if-missing but no row lock
// contention matters since nothing is subtracted. Returns
// ErrInsufficientFunds if the balance is too low; the wallet is left
// untouched in that case.
func (s *Store) Debit(ctx context.Context, userID int64, amount int) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("wallet: begin tx: %w", err)
	}
	defer tx.Rollback()

	var balance int
	err = tx.QueryRowContext(ctx,
		`SELECT balance FROM gem_wallets WHERE user_id = $1 FOR UPDATE`, userID,
	).Scan(&balance)

	if err == sql.ErrNoRows {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO gem_wallets (user_id, balance) VALUES ($1, 0)`, userID,
		); err != nil {
			return fmt.Errorf("wallet: create wallet for %d: %w", userID, err)
		}
		balance = 0
	} else if err != nil {
		return fmt.Errorf("wallet: load balance for %d: %w", userID, err)
	}

	if balance < amount {
		return ErrInsufficientFunds
	}

	if amount > 0 {
		if _, err := tx.ExecContext(ctx,
			`UPDATE gem_wallets SET balance = balance - $1 WHERE user_id = $2`, amount, userID,
		); err != nil {
			return fmt.Errorf("wallet: debit %d from %d: %w", amount, userID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("wallet: commit debit for %d: %w", userID, err)
	}
	return nil
}

// Balance returns the user's current balance, or 0 if the user has no
// wallet yet; it never creates a wallet row. Used by admin/monitoring
// surfaces, not by the Pairing Engine itself.
func (s *Store) Balance(ctx context.Context, userID int64) (int, error) {
	var balance int
	err := s.db.QueryRowContext(ctx,
		`SELECT balance FROM gem_wallets WHERE user_id = $1`, userID,
	).Scan(&balance)
	if err == sql.ErrNoRows {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("wallet: balance for %d: %w", userID, err)
	}
	return balance, nil
}
