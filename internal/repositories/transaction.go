package repositories

import (
	"context"
	"strings"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/dkotenko/finance-tracker/internal/logger"
	"github.com/dkotenko/finance-tracker/internal/models"
)

// TransactionReadRepository handles transaction read operations.
type TransactionReadRepository struct {
	db *sqlx.DB
}

func NewTransactionReadRepository(db *sqlx.DB) *TransactionReadRepository {
	return &TransactionReadRepository{db: db}
}

// ListByOwner returns all transactions belonging to ownerID, most recent
// first. Every read is scoped by owner: a user never sees another user's
// records.
func (r *TransactionReadRepository) ListByOwner(ctx context.Context, ownerID uuid.UUID) ([]models.TransactionDB, error) {
	const query = `
		SELECT transaction_id, owner_id, text, amount, file_url, created_at
		FROM transactions
		WHERE owner_id = $1
		ORDER BY created_at DESC, transaction_id
	`

	transactions := []models.TransactionDB{}
	err := r.db.SelectContext(ctx, &transactions, query, ownerID)

	logger.Log.Debugw("transaction list",
		"query", strings.Join(strings.Fields(query), " "),
		"args", []any{ownerID},
		"count", len(transactions),
		"error", err,
	)

	if err != nil {
		return nil, err
	}
	return transactions, nil
}

// TransactionWriteRepository handles transaction write operations.
type TransactionWriteRepository struct {
	db       *sqlx.DB
	txGetter func(ctx context.Context) *sqlx.Tx
}

func NewTransactionWriteRepository(db *sqlx.DB, txGetter func(ctx context.Context) *sqlx.Tx) *TransactionWriteRepository {
	return &TransactionWriteRepository{db: db, txGetter: txGetter}
}

func (r *TransactionWriteRepository) executor(ctx context.Context) sqlx.ExtContext {
	if r.txGetter != nil {
		if tx := r.txGetter(ctx); tx != nil {
			return tx
		}
	}
	return r.db
}

// Save inserts a new transaction and returns it with the server-generated
// identifier and creation timestamp filled in.
func (r *TransactionWriteRepository) Save(ctx context.Context, ownerID uuid.UUID, text string, amount float64, fileURL *string) (*models.TransactionDB, error) {
	const query = `
		INSERT INTO transactions (transaction_id, owner_id, text, amount, file_url, created_at)
		VALUES ($1, $2, $3, $4, $5, NOW())
		RETURNING transaction_id, owner_id, text, amount, file_url, created_at
	`

	var saved models.TransactionDB
	err := sqlx.GetContext(ctx, r.executor(ctx), &saved, query, uuid.New(), ownerID, text, amount, fileURL)

	logger.Log.Debugw("transaction insert",
		"query", strings.Join(strings.Fields(query), " "),
		"args", []any{ownerID, text, amount, fileURL},
		"error", err,
	)

	if err != nil {
		return nil, err
	}
	return &saved, nil
}

// Update replaces text and amount of the transaction matching id and owner.
// The attachment URL is never touched by an edit. Returns the number of
// affected rows so the caller can distinguish a missing record.
func (r *TransactionWriteRepository) Update(ctx context.Context, ownerID, transactionID uuid.UUID, text string, amount float64) (int64, error) {
	const query = `
		UPDATE transactions
		SET text = $3, amount = $4
		WHERE transaction_id = $2 AND owner_id = $1
	`

	res, err := r.executor(ctx).ExecContext(ctx, query, ownerID, transactionID, text, amount)
	var rowsAffected int64
	if res != nil {
		rowsAffected, _ = res.RowsAffected()
	}

	logger.Log.Debugw("transaction update",
		"query", strings.Join(strings.Fields(query), " "),
		"args", []any{ownerID, transactionID, text, amount},
		"rows", rowsAffected,
		"error", err,
	)

	return rowsAffected, err
}

// Delete removes the transaction matching id and owner. Returns the number
// of affected rows.
func (r *TransactionWriteRepository) Delete(ctx context.Context, ownerID, transactionID uuid.UUID) (int64, error) {
	const query = `
		DELETE FROM transactions
		WHERE transaction_id = $2 AND owner_id = $1
	`

	res, err := r.executor(ctx).ExecContext(ctx, query, ownerID, transactionID)
	var rowsAffected int64
	if res != nil {
		rowsAffected, _ = res.RowsAffected()
	}

	logger.Log.Debugw("transaction delete",
		"query", strings.Join(strings.Fields(query), " "),
		"args", []any{ownerID, transactionID},
		"rows", rowsAffected,
		"error", err,
	)

	return rowsAffected, err
}
