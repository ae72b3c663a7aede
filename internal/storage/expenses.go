package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"expense-ledger/internal/models"
)

const expenseColumns = "id, category, amount, date, comment, payment_method, user_id"

type rowScanner interface {
	Scan(dest ...any) error
}

func scanExpense(s rowScanner) (*models.Expense, error) {
	var (
		e             models.Expense
		date          string
		comment       sql.NullString
		paymentMethod sql.NullString
	)
	if err := s.Scan(&e.ID, &e.Category, &e.Amount, &date, &comment, &paymentMethod, &e.UserID); err != nil {
		return nil, err
	}
	d, err := parseStoredDate(date)
	if err != nil {
		return nil, fmt.Errorf("expense %d: %w", e.ID, err)
	}
	e.Date = d
	e.Comment = comment.String
	e.PaymentMethod = paymentMethod.String
	return &e, nil
}

// parseStoredDate accepts both the TEXT dates kept by sqlite and the
// RFC 3339 strings database/sql produces for postgres DATE values.
func parseStoredDate(s string) (time.Time, error) {
	if len(s) < len(models.DateLayout) {
		return time.Time{}, fmt.Errorf("malformed stored date %q", s)
	}
	return time.Parse(models.DateLayout, s[:len(models.DateLayout)])
}

func formatDate(t time.Time) string {
	return t.Format(models.DateLayout)
}

// CreateExpense inserts an expense for an existing user.
func (db *DB) CreateExpense(ctx context.Context, userID int64, in models.ExpenseInput) (*models.Expense, error) {
	tx, err := db.conn.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback()

	var exists int
	err = tx.QueryRowContext(ctx, db.rebind("SELECT 1 FROM users WHERE id = ?"), userID).Scan(&exists)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, models.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("check user %d: %w", userID, err)
	}

	var id int64
	err = tx.QueryRowContext(ctx,
		db.rebind("INSERT INTO expenses (category, amount, date, comment, payment_method, user_id) VALUES (?, ?, ?, ?, ?, ?) RETURNING id"),
		in.Category, in.Amount, formatDate(in.Date), in.Comment, in.PaymentMethod, userID,
	).Scan(&id)
	if err != nil {
		return nil, fmt.Errorf("insert expense: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit: %w", err)
	}

	return &models.Expense{
		ID:            id,
		Category:      in.Category,
		Amount:        in.Amount,
		Date:          in.Date,
		Comment:       in.Comment,
		PaymentMethod: in.PaymentMethod,
		UserID:        userID,
	}, nil
}

// GetExpense retrieves a single expense by ID.
func (db *DB) GetExpense(ctx context.Context, id int64) (*models.Expense, error) {
	row := db.conn.QueryRowContext(ctx,
		db.rebind("SELECT "+expenseColumns+" FROM expenses WHERE id = ?"),
		id,
	)
	e, err := scanExpense(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, models.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get expense %d: %w", id, err)
	}
	return e, nil
}

// UpdateExpense overwrites the editable fields of an expense. The owner never changes.
func (db *DB) UpdateExpense(ctx context.Context, id int64, in models.ExpenseInput) (*models.Expense, error) {
	result, err := db.conn.ExecContext(ctx,
		db.rebind("UPDATE expenses SET category = ?, amount = ?, date = ?, comment = ?, payment_method = ? WHERE id = ?"),
		in.Category, in.Amount, formatDate(in.Date), in.Comment, in.PaymentMethod, id,
	)
	if err != nil {
		return nil, fmt.Errorf("update expense %d: %w", id, err)
	}
	if err := expectAffected(result); err != nil {
		return nil, err
	}
	return db.GetExpense(ctx, id)
}

// DeleteExpense removes an expense and returns what was deleted.
func (db *DB) DeleteExpense(ctx context.Context, id int64) (*models.Expense, error) {
	row := db.conn.QueryRowContext(ctx,
		db.rebind("DELETE FROM expenses WHERE id = ? RETURNING "+expenseColumns),
		id,
	)
	e, err := scanExpense(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, models.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("delete expense %d: %w", id, err)
	}
	return e, nil
}

// ListExpenses returns a user's expenses, newest date first, narrowed by the filter.
// The category filter is a case-insensitive substring match.
// It does not check that the user exists.
func (db *DB) ListExpenses(ctx context.Context, userID int64, f models.ExpenseFilter) ([]models.Expense, error) {
	var b strings.Builder
	b.WriteString("SELECT " + expenseColumns + " FROM expenses WHERE user_id = ?")
	args := []any{userID}

	if f.Date != nil {
		b.WriteString(" AND date = ?")
		args = append(args, formatDate(*f.Date))
	}
	b.WriteString(" ORDER BY date DESC, id ASC")

	rows, err := db.conn.QueryContext(ctx, db.rebind(b.String()), args...)
	if err != nil {
		return nil, fmt.Errorf("list expenses: %w", err)
	}
	defer rows.Close()

	needle := strings.ToLower(f.Category)
	expenses := []models.Expense{}
	for rows.Next() {
		e, err := scanExpense(rows)
		if err != nil {
			return nil, fmt.Errorf("scan expense: %w", err)
		}
		if !matchesCategory(e.Category, needle) {
			continue
		}
		expenses = append(expenses, *e)
	}
	return expenses, rows.Err()
}

// MonthlyTotal sums a user's expenses dated within [start, end], both inclusive.
func (db *DB) MonthlyTotal(ctx context.Context, userID int64, start, end time.Time) (float64, error) {
	var total float64
	err := db.conn.QueryRowContext(ctx,
		db.rebind("SELECT COALESCE(SUM(amount), 0) FROM expenses WHERE user_id = ? AND date >= ? AND date <= ?"),
		userID, formatDate(start), formatDate(end),
	).Scan(&total)
	if err != nil {
		return 0, fmt.Errorf("monthly total for user %d: %w", userID, err)
	}
	return total, nil
}

// ExpenseCount returns the number of expenses across all users.
func (db *DB) ExpenseCount(ctx context.Context) (int, error) {
	var count int
	err := db.conn.QueryRowContext(ctx, "SELECT COUNT(*) FROM expenses").Scan(&count)
	return count, err
}

// matchesCategory reports whether category contains the lowercased needle,
// ignoring case. SQLite's LOWER only folds ASCII, so the comparison is done here
// for every driver.
func matchesCategory(category, needle string) bool {
	return needle == "" || strings.Contains(strings.ToLower(category), needle)
}
