package repository

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/joseph-ayodele/receipts-compiler/internal/entity"
)

// ReceiptLookup returns every receipt owned by one of expenseIDs.
type ReceiptLookup interface {
	ReceiptsFor(ctx context.Context, expenseIDs []string) ([]entity.ReceiptRef, error)
}

// RestrictedClient only sees receipts of expenses owned by its user.
type RestrictedClient struct {
	db     *DB
	userID string
	logger *slog.Logger
}

func NewRestrictedClient(db *DB, userID string, logger *slog.Logger) *RestrictedClient {
	if logger == nil {
		logger = slog.Default()
	}
	return &RestrictedClient{db: db, userID: userID, logger: logger}
}

func (c *RestrictedClient) ReceiptsFor(ctx context.Context, expenseIDs []string) ([]entity.ReceiptRef, error) {
	if len(expenseIDs) == 0 {
		return nil, nil
	}
	args := make([]any, 0, len(expenseIDs)+1)
	args = append(args, c.userID)
	for _, id := range expenseIDs {
		args = append(args, id)
	}
	q := `SELECT r.id, r.expense_id, r.storage_path, r.created_at
		FROM receipts r
		JOIN expenses e ON e.id = r.expense_id
		WHERE e.user_id = $1 AND r.expense_id IN (` + placeholders(2, len(expenseIDs)) + `)
		ORDER BY r.expense_id, r.created_at, r.id`
	return queryReceipts(ctx, c.db, c.logger, q, args...)
}

// PrivilegedClient bypasses per-user restrictions. It is scoped to a single
// export subject when subjectID is set.
type PrivilegedClient struct {
	db        *DB
	subjectID string
	logger    *slog.Logger
}

func NewPrivilegedClient(db *DB, subjectID string, logger *slog.Logger) *PrivilegedClient {
	if logger == nil {
		logger = slog.Default()
	}
	return &PrivilegedClient{db: db, subjectID: subjectID, logger: logger}
}

func (c *PrivilegedClient) ReceiptsFor(ctx context.Context, expenseIDs []string) ([]entity.ReceiptRef, error) {
	if len(expenseIDs) == 0 {
		return nil, nil
	}
	args := make([]any, 0, len(expenseIDs)+1)
	for _, id := range expenseIDs {
		args = append(args, id)
	}
	q := `SELECT r.id, r.expense_id, r.storage_path, r.created_at
		FROM receipts r
		JOIN expenses e ON e.id = r.expense_id
		WHERE r.expense_id IN (` + placeholders(1, len(expenseIDs)) + `)`
	if c.subjectID != "" {
		args = append(args, c.subjectID)
		q += fmt.Sprintf(" AND e.user_id = $%d", len(args))
	}
	q += ` ORDER BY r.expense_id, r.created_at, r.id`
	return queryReceipts(ctx, c.db, c.logger, q, args...)
}

func queryReceipts(ctx context.Context, db *DB, logger *slog.Logger, q string, args ...any) ([]entity.ReceiptRef, error) {
	start := time.Now()
	rows, err := db.SQL.QueryContext(ctx, q, args...)
	if err != nil {
		logger.Error("failed to query receipts", "error", err)
		return nil, err
	}
	defer rows.Close()

	var out []entity.ReceiptRef
	for rows.Next() {
		var (
			ref     entity.ReceiptRef
			created dbTime
		)
		if err := rows.Scan(&ref.ID, &ref.ExpenseID, &ref.StoragePath, &created); err != nil {
			logger.Error("failed to scan receipt row", "error", err)
			return nil, err
		}
		ref.CreatedAt = created.Time
		out = append(out, ref)
	}
	if err := rows.Err(); err != nil {
		logger.Error("failed to iterate receipts", "error", err)
		return nil, err
	}
	logger.Debug("receipts queried", "rows", len(out), "elapsed_ms", time.Since(start).Milliseconds())
	return out, nil
}
