package ledger

import (
	"context"
	"fmt"
	"math"
	"strings"
	"time"
	"unicode"
	"unicode/utf8"

	"expense-ledger/internal/events"
	"expense-ledger/internal/logger"
	"expense-ledger/internal/models"
	"expense-ledger/internal/storage"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// Service holds the ledger operations behind the HTTP handlers.
type Service struct {
	db        *storage.DB
	publisher events.Publisher
	now       func() time.Time
}

// Option configures a Service.
type Option func(*Service)

// WithClock overrides the clock used for the previous-month window.
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// NewService creates a Service. A nil publisher disables change events.
func NewService(db *storage.DB, publisher events.Publisher, opts ...Option) *Service {
	if publisher == nil {
		publisher = events.NopPublisher{}
	}
	s := &Service{db: db, publisher: publisher, now: time.Now}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Ping reports whether the store is reachable.
func (s *Service) Ping(ctx context.Context) error {
	return s.db.Ping(ctx)
}

// CreateUser adds a user. An empty name is a ValidationError.
func (s *Service) CreateUser(ctx context.Context, name string) (*models.User, error) {
	name = clean(name)
	if name == "" {
		return nil, models.NewValidationError("name", "is required")
	}
	if utf8.RuneCountInString(name) > models.MaxUserNameLen {
		return nil, models.NewValidationError("name", fmt.Sprintf("must be at most %d characters", models.MaxUserNameLen))
	}

	u, err := s.db.CreateUser(ctx, name)
	if err != nil {
		return nil, err
	}
	s.publish(ctx, events.New(events.UserCreated, u.ID, 0))
	return u, nil
}

// GetUser returns a user or models.ErrNotFound.
func (s *Service) GetUser(ctx context.Context, id int64) (*models.User, error) {
	return s.db.GetUser(ctx, id)
}

// ListUsers returns every user in creation order.
func (s *Service) ListUsers(ctx context.Context) ([]models.User, error) {
	return s.db.ListUsers(ctx)
}

// DeleteUser removes a user together with all of their expenses.
func (s *Service) DeleteUser(ctx context.Context, id int64) error {
	if err := s.db.DeleteUser(ctx, id); err != nil {
		return err
	}
	s.publish(ctx, events.New(events.UserDeleted, id, 0))
	return nil
}

// MonthlyTotal sums a user's expenses dated within [start, end].
func (s *Service) MonthlyTotal(ctx context.Context, userID int64, start, end time.Time) (float64, error) {
	return s.db.MonthlyTotal(ctx, userID, start, end)
}

// Overview is the index page data: every user with their previous-month total.
type Overview struct {
	Start time.Time
	End   time.Time
	Users []models.UserSummary
}

// UserSummaries pairs each user with their total for the previous calendar month.
func (s *Service) UserSummaries(ctx context.Context) (*Overview, error) {
	start, end := PreviousMonth(s.now())

	users, err := s.db.ListUsers(ctx)
	if err != nil {
		return nil, err
	}

	summaries := make([]models.UserSummary, 0, len(users))
	for _, u := range users {
		total, err := s.db.MonthlyTotal(ctx, u.ID, start, end)
		if err != nil {
			return nil, err
		}
		summaries = append(summaries, models.UserSummary{User: u, Total: total})
	}

	return &Overview{Start: start, End: end, Users: summaries}, nil
}

// CreateExpense records an expense for an existing user.
func (s *Service) CreateExpense(ctx context.Context, userID int64, in models.ExpenseInput) (*models.Expense, error) {
	in, err := validateExpense(in)
	if err != nil {
		return nil, err
	}

	e, err := s.db.CreateExpense(ctx, userID, in)
	if err != nil {
		return nil, err
	}
	s.publish(ctx, events.New(events.ExpenseCreated, userID, e.ID))
	return e, nil
}

// GetExpense returns an expense or models.ErrNotFound.
func (s *Service) GetExpense(ctx context.Context, id int64) (*models.Expense, error) {
	return s.db.GetExpense(ctx, id)
}

// UpdateExpense overwrites an expense's fields, keeping its id and owner.
func (s *Service) UpdateExpense(ctx context.Context, id int64, in models.ExpenseInput) (*models.Expense, error) {
	in, err := validateExpense(in)
	if err != nil {
		return nil, err
	}

	e, err := s.db.UpdateExpense(ctx, id, in)
	if err != nil {
		return nil, err
	}
	s.publish(ctx, events.New(events.ExpenseUpdated, e.UserID, e.ID))
	return e, nil
}

// DeleteExpense removes an expense and returns it so callers know its owner.
func (s *Service) DeleteExpense(ctx context.Context, id int64) (*models.Expense, error) {
	e, err := s.db.DeleteExpense(ctx, id)
	if err != nil {
		return nil, err
	}
	s.publish(ctx, events.New(events.ExpenseDeleted, e.UserID, e.ID))
	return e, nil
}

// ListExpenses returns a user's filtered expenses and their total.
// It fails with models.ErrNotFound when the user does not exist.
func (s *Service) ListExpenses(ctx context.Context, userID int64, f models.ExpenseFilter) (*models.ExpenseListing, error) {
	if _, err := s.db.GetUser(ctx, userID); err != nil {
		return nil, err
	}

	f.Category = strings.TrimSpace(f.Category)
	expenses, err := s.db.ListExpenses(ctx, userID, f)
	if err != nil {
		return nil, err
	}

	total := decimal.Zero
	for _, e := range expenses {
		total = total.Add(decimal.NewFromFloat(e.Amount))
	}

	return &models.ExpenseListing{Expenses: expenses, Total: total.InexactFloat64()}, nil
}

// publish sends a change event. The write has already committed, so failures are only logged.
func (s *Service) publish(ctx context.Context, e events.Event) {
	if err := s.publisher.Publish(ctx, e); err != nil {
		logger.FromContext(ctx).Error("Failed to publish change event",
			zap.String("type", string(e.Type)),
			zap.Int64("user_id", e.UserID),
			zap.Int64("expense_id", e.ExpenseID),
			zap.Error(err))
	}
}

func validateExpense(in models.ExpenseInput) (models.ExpenseInput, error) {
	in.Category = clean(in.Category)
	in.Comment = clean(in.Comment)
	in.PaymentMethod = clean(in.PaymentMethod)

	switch {
	case in.Category == "":
		return in, models.NewValidationError("category", "is required")
	case utf8.RuneCountInString(in.Category) > models.MaxCategoryLen:
		return in, models.NewValidationError("category", fmt.Sprintf("must be at most %d characters", models.MaxCategoryLen))
	case utf8.RuneCountInString(in.Comment) > models.MaxCommentLen:
		return in, models.NewValidationError("comment", fmt.Sprintf("must be at most %d characters", models.MaxCommentLen))
	case utf8.RuneCountInString(in.PaymentMethod) > models.MaxPaymentMethodLen:
		return in, models.NewValidationError("payment_method", fmt.Sprintf("must be at most %d characters", models.MaxPaymentMethodLen))
	case math.IsNaN(in.Amount) || math.IsInf(in.Amount, 0):
		return in, models.NewValidationError("amount", "must be a finite number")
	case in.Date.IsZero():
		return in, models.NewValidationError("date", "is required")
	}
	return in, nil
}

// clean trims surrounding space and drops control characters.
func clean(s string) string {
	s = strings.Map(func(r rune) rune {
		if unicode.IsControl(r) {
			return -1
		}
		return r
	}, s)
	return strings.TrimSpace(s)
}
