package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"

	"marketpulse/internal/domain"
	"marketpulse/internal/storage"
)

// WhaleStore implements storage.WhaleStore using PostgreSQL.
type WhaleStore struct {
	pool *Pool
}

// NewWhaleStore creates a new WhaleStore.
func NewWhaleStore(pool *Pool) *WhaleStore {
	return &WhaleStore{pool: pool}
}

// Compile-time interface check.
var _ storage.WhaleStore = (*WhaleStore)(nil)

// Insert adds a new transaction. Returns ErrDuplicateKey if tx_hash exists.
func (s *WhaleStore) Insert(ctx context.Context, tx *domain.WhaleTransaction) error {
	query := `
		INSERT INTO whale_transactions (
			tx_hash, network, token, amount_usd, from_address, to_address,
			action, synthetic, observed_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`

	_, err := s.pool.Exec(ctx, query,
		tx.TxHash,
		string(tx.Network),
		tx.Token,
		tx.AmountUSD.String(),
		tx.FromAddress,
		tx.ToAddress,
		string(tx.Action),
		tx.Synthetic,
		tx.ObservedAt,
	)
	if err != nil {
		if isDuplicateKeyError(err) {
			return storage.ErrDuplicateKey
		}
		return fmt.Errorf("insert whale transaction: %w", err)
	}
	return nil
}

// Exists reports whether tx_hash has already been admitted.
func (s *WhaleStore) Exists(ctx context.Context, txHash string) (bool, error) {
	query := `SELECT EXISTS(SELECT 1 FROM whale_transactions WHERE tx_hash = $1)`

	var exists bool
	if err := s.pool.QueryRow(ctx, query, txHash).Scan(&exists); err != nil {
		return false, fmt.Errorf("check whale transaction exists: %w", err)
	}
	return exists, nil
}

// Latest retrieves up to limit transactions, most recent first.
func (s *WhaleStore) Latest(ctx context.Context, limit int) ([]*domain.WhaleTransaction, error) {
	query := `
		SELECT tx_hash, network, token, amount_usd, from_address, to_address,
		       action, synthetic, observed_at
		FROM whale_transactions
		ORDER BY observed_at DESC, tx_hash DESC
		LIMIT $1
	`

	rows, err := s.pool.Query(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("get latest whale transactions: %w", err)
	}
	defer rows.Close()

	return scanWhaleTransactions(rows)
}

// scanWhaleTransactions scans multiple rows into a slice of WhaleTransaction.
func scanWhaleTransactions(rows pgx.Rows) ([]*domain.WhaleTransaction, error) {
	var txs []*domain.WhaleTransaction

	for rows.Next() {
		var (
			tx        domain.WhaleTransaction
			network   string
			action    string
			amountUSD string
		)

		err := rows.Scan(
			&tx.TxHash,
			&network,
			&tx.Token,
			&amountUSD,
			&tx.FromAddress,
			&tx.ToAddress,
			&action,
			&tx.Synthetic,
			&tx.ObservedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("scan whale transaction row: %w", err)
		}

		amount, err := decimal.NewFromString(amountUSD)
		if err != nil {
			return nil, fmt.Errorf("parse amount_usd %q: %w", amountUSD, err)
		}
		tx.Network = domain.Network(network)
		tx.Action = domain.Action(action)
		tx.AmountUSD = amount

		txs = append(txs, &tx)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate whale transaction rows: %w", err)
	}

	return txs, nil
}
