package handlers

import (
	"math"
	"net/http"
	"strconv"
	"strings"
	"time"

	"expense-ledger/internal/models"
)

// ParseAmount parses a form amount. Empty, malformed and non-finite values are rejected.
func ParseAmount(s string) (float64, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, models.NewValidationError("amount", "is required")
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, models.NewValidationError("amount", "must be a number")
	}
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, models.NewValidationError("amount", "must be a finite number")
	}
	return v, nil
}

// ParseDate parses a YYYY-MM-DD calendar date.
func ParseDate(field, s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, models.NewValidationError(field, "is required")
	}
	d, err := time.Parse(models.DateLayout, s)
	if err != nil {
		return time.Time{}, models.NewValidationError(field, "must be a date in YYYY-MM-DD format")
	}
	return d, nil
}

// ParseExpenseForm reads the expense fields of a submitted form.
// Length limits and required text are enforced by the ledger service.
func ParseExpenseForm(r *http.Request) (models.ExpenseInput, error) {
	if err := r.ParseForm(); err != nil {
		return models.ExpenseInput{}, models.NewValidationError("", "invalid form submission")
	}

	amount, err := ParseAmount(r.PostFormValue("amount"))
	if err != nil {
		return models.ExpenseInput{}, err
	}
	date, err := ParseDate("date", r.PostFormValue("date"))
	if err != nil {
		return models.ExpenseInput{}, err
	}

	return models.ExpenseInput{
		Category:      r.PostFormValue("category"),
		Amount:        amount,
		Date:          date,
		Comment:       r.PostFormValue("comment"),
		PaymentMethod: r.PostFormValue("payment_method"),
	}, nil
}

// ParseFilter reads the category and date query parameters of the listing page.
func ParseFilter(r *http.Request) (models.ExpenseFilter, error) {
	q := r.URL.Query()
	f := models.ExpenseFilter{Category: strings.TrimSpace(q.Get("category"))}
	if ds := strings.TrimSpace(q.Get("date")); ds != "" {
		d, err := ParseDate("date", ds)
		if err != nil {
			return f, err
		}
		f.Date = &d
	}
	return f, nil
}

// pathID reads a positive integer path value.
func pathID(r *http.Request, name string) (int64, bool) {
	id, err := strconv.ParseInt(r.PathValue(name), 10, 64)
	if err != nil || id <= 0 {
		return 0, false
	}
	return id, true
}
