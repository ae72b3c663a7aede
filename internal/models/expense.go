package models

import "time"

// DateLayout is the calendar-date format used in forms, query strings and storage.
const DateLayout = "2006-01-02"

// Column limits shared by form validation and the schema.
const (
	MaxUserNameLen      = 100
	MaxCategoryLen      = 50
	MaxCommentLen       = 200
	MaxPaymentMethodLen = 50
)

// Expense represents a single spending record owned by a user.
type Expense struct {
	ID            int64     `json:"id"`
	Category      string    `json:"category"`
	Amount        float64   `json:"amount"`
	Date          time.Time `json:"date"`
	Comment       string    `json:"comment,omitempty"`
	PaymentMethod string    `json:"payment_method,omitempty"`
	UserID        int64     `json:"user_id"`
}

// ExpenseInput holds the user-editable fields of an expense.
type ExpenseInput struct {
	Category      string
	Amount        float64
	Date          time.Time
	Comment       string
	PaymentMethod string
}

// User represents a person whose expenses are tracked.
type User struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
}

// ExpenseFilter narrows a user's expense listing. Zero values mean "no filter".
type ExpenseFilter struct {
	Category string
	Date     *time.Time
}

// ExpenseListing is a filtered set of expenses with the sum of their amounts.
type ExpenseListing struct {
	Expenses []Expense
	Total    float64
}

// UserSummary pairs a user with their total for a period.
type UserSummary struct {
	User  User
	Total float64
}
