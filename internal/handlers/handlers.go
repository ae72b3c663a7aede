package handlers

import (
	"bytes"
	"context"
	"errors"
	"expense-ledger/internal/ledger"
	"expense-ledger/internal/logger"
	"expense-ledger/internal/models"
	"fmt"
	"html/template"
	"io/fs"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// Ledger is the set of operations the handlers need. *ledger.Service implements it.
type Ledger interface {
	CreateUser(ctx context.Context, name string) (*models.User, error)
	GetUser(ctx context.Context, id int64) (*models.User, error)
	DeleteUser(ctx context.Context, id int64) error
	UserSummaries(ctx context.Context) (*ledger.Overview, error)
	CreateExpense(ctx context.Context, userID int64, in models.ExpenseInput) (*models.Expense, error)
	GetExpense(ctx context.Context, id int64) (*models.Expense, error)
	UpdateExpense(ctx context.Context, id int64, in models.ExpenseInput) (*models.Expense, error)
	DeleteExpense(ctx context.Context, id int64) (*models.Expense, error)
	ListExpenses(ctx context.Context, userID int64, f models.ExpenseFilter) (*models.ExpenseListing, error)
	Ping(ctx context.Context) error
}

var views = []string{"index.html", "user_expenses.html", "expense_form.html"}

// Handlers holds dependencies for HTTP handlers.
type Handlers struct {
	ledger    Ledger
	templates map[string]*template.Template
	now       func() time.Time
}

// NewHandlers parses every view from templates (a filesystem holding templates/*.html).
func NewHandlers(l Ledger, templates fs.FS) (*Handlers, error) {
	funcs := template.FuncMap{
		"money": formatMoney,
		"date":  func(t time.Time) string { return t.Format(models.DateLayout) },
	}

	parsed := make(map[string]*template.Template, len(views))
	for _, view := range views {
		tmpl, err := template.New("base.html").Funcs(funcs).ParseFS(templates, "templates/base.html", "templates/"+view)
		if err != nil {
			return nil, fmt.Errorf("parse template %s: %w", view, err)
		}
		parsed[view] = tmpl
	}

	return &Handlers{ledger: l, templates: parsed, now: time.Now}, nil
}

// Register wires every route onto mux.
func (h *Handlers) Register(mux *http.ServeMux) {
	mux.HandleFunc("GET /{$}", h.Index)
	mux.HandleFunc("POST /user/add", h.AddUser)
	mux.HandleFunc("GET /user/delete/{userID}", h.DeleteUser)
	mux.HandleFunc("GET /user/{userID}", h.UserExpenses)
	mux.HandleFunc("POST /user/{userID}", h.UserExpenses)
	mux.HandleFunc("GET /expense/add/{userID}", h.CreateExpenseForm)
	mux.HandleFunc("POST /expense/add/{userID}", h.CreateExpense)
	mux.HandleFunc("GET /expense/edit/{expenseID}", h.EditExpenseForm)
	mux.HandleFunc("POST /expense/edit/{expenseID}", h.UpdateExpense)
	mux.HandleFunc("GET /expense/delete/{expenseID}", h.DeleteExpense)
	mux.HandleFunc("GET /healthz", h.Healthz)
	mux.HandleFunc("GET /readyz", h.Readyz)
}

// CategoryDef defines the properties of a suggested category.
type CategoryDef struct {
	ID    string
	Name  string
	Icon  string
	Color string
}

var categories = []CategoryDef{
	{"food", "Food", "🍽️", "#60a5fa"},
	{"transport", "Transport", "🚌", "#a78bfa"},
	{"entertainment", "Entertainment", "🎮", "#f472b6"},
	{"utilities", "Utilities", "💡", "#fbbf24"},
	{"housing", "Housing", "🏠", "#818cf8"},
	{"gifts", "Gifts", "🎁", "#fb7185"},
	{"other", "Other", "📦", "#94a3b8"},
}

// CategoryStyle defines the visual style for a category.
type CategoryStyle struct {
	Icon  string
	Color string
}

// getCategoryStyle styles known categories. Categories are free-form, so anything else gets the default.
func getCategoryStyle(category string) CategoryStyle {
	catLower := strings.ToLower(strings.TrimSpace(category))
	for _, c := range categories {
		if c.ID == catLower {
			return CategoryStyle{Icon: c.Icon, Color: c.Color}
		}
	}
	return CategoryStyle{Icon: "📦", Color: "#94a3b8"}
}

// ExpenseItem represents an expense in the list view.
type ExpenseItem struct {
	models.Expense
	CategoryStyle CategoryStyle
}

// UserExpensesViewModel is the data passed to the user's expense list.
type UserExpensesViewModel struct {
	User     *models.User
	Category string
	Date     string
	Filtered bool
	Total    float64
	Items    []ExpenseItem
}

// FormViewModel is the data passed to the create/edit form template.
type FormViewModel struct {
	User          *models.User
	IsEdit        bool
	Action        string
	Category      string
	Amount        string
	Date          string
	Comment       string
	PaymentMethod string
	Error         string
	Categories    []CategoryDef
}

// AddUser creates a user from the submitted name. An empty name is ignored.
func (h *Handlers) AddUser(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, "Invalid form submission", http.StatusBadRequest)
		return
	}

	_, err := h.ledger.CreateUser(r.Context(), r.PostFormValue("name"))
	if err != nil {
		if !models.IsValidationError(err) {
			h.fail(w, r, err, "User")
			return
		}
		logger.FromContext(r.Context()).Debug("Ignoring user submission", zap.Error(err))
	}
	http.Redirect(w, r, "/", http.StatusFound)
}

// DeleteUser removes a user and all of their expenses.
func (h *Handlers) DeleteUser(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r, "userID")
	if !ok {
		http.NotFound(w, r)
		return
	}
	if err := h.ledger.DeleteUser(r.Context(), id); err != nil {
		h.fail(w, r, err, "User")
		return
	}
	http.Redirect(w, r, "/", http.StatusFound)
}

// UserExpenses renders a user's expenses, filtered by the category and date query parameters.
func (h *Handlers) UserExpenses(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r, "userID")
	if !ok {
		http.NotFound(w, r)
		return
	}

	user, err := h.ledger.GetUser(r.Context(), id)
	if err != nil {
		h.fail(w, r, err, "User")
		return
	}

	filter, err := ParseFilter(r)
	if err != nil {
		h.fail(w, r, err, "User")
		return
	}

	listing, err := h.ledger.ListExpenses(r.Context(), id, filter)
	if err != nil {
		h.fail(w, r, err, "User")
		return
	}

	items := make([]ExpenseItem, 0, len(listing.Expenses))
	for _, e := range listing.Expenses {
		items = append(items, ExpenseItem{Expense: e, CategoryStyle: getCategoryStyle(e.Category)})
	}

	vm := UserExpensesViewModel{
		User:     user,
		Category: filter.Category,
		Filtered: filter.Category != "" || filter.Date != nil,
		Total:    listing.Total,
		Items:    items,
	}
	if filter.Date != nil {
		vm.Date = filter.Date.Format(models.DateLayout)
	}
	h.render(w, r, http.StatusOK, "user_expenses.html", vm)
}

// CreateExpenseForm renders the form to create a new expense.
func (h *Handlers) CreateExpenseForm(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r, "userID")
	if !ok {
		http.NotFound(w, r)
		return
	}
	user, err := h.ledger.GetUser(r.Context(), id)
	if err != nil {
		h.fail(w, r, err, "User")
		return
	}
	h.render(w, r, http.StatusOK, "expense_form.html", FormViewModel{
		User:       user,
		Action:     fmt.Sprintf("/expense/add/%d", user.ID),
		Date:       h.now().Format(models.DateLayout),
		Categories: categories,
	})
}

// CreateExpense handles the creation of a new expense.
func (h *Handlers) CreateExpense(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r, "userID")
	if !ok {
		http.NotFound(w, r)
		return
	}
	user, err := h.ledger.GetUser(r.Context(), id)
	if err != nil {
		h.fail(w, r, err, "User")
		return
	}

	vm := FormViewModel{User: user, Action: fmt.Sprintf("/expense/add/%d", user.ID)}

	in, err := ParseExpenseForm(r)
	if err == nil {
		_, err = h.ledger.CreateExpense(r.Context(), user.ID, in)
	}
	if err != nil {
		if models.IsValidationError(err) {
			h.renderFormError(w, r, vm, err)
			return
		}
		h.fail(w, r, err, "User")
		return
	}

	http.Redirect(w, r, fmt.Sprintf("/user/%d", user.ID), http.StatusFound)
}

// EditExpenseForm renders the form to edit an existing expense.
func (h *Handlers) EditExpenseForm(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r, "expenseID")
	if !ok {
		http.NotFound(w, r)
		return
	}
	expense, err := h.ledger.GetExpense(r.Context(), id)
	if err != nil {
		h.fail(w, r, err, "Expense")
		return
	}
	h.render(w, r, http.StatusOK, "expense_form.html", FormViewModel{
		User:          &models.User{ID: expense.UserID},
		IsEdit:        true,
		Action:        fmt.Sprintf("/expense/edit/%d", expense.ID),
		Category:      expense.Category,
		Amount:        strconv.FormatFloat(expense.Amount, 'f', -1, 64),
		Date:          expense.Date.Format(models.DateLayout),
		Comment:       expense.Comment,
		PaymentMethod: expense.PaymentMethod,
		Categories:    categories,
	})
}

// UpdateExpense handles the update of an existing expense.
func (h *Handlers) UpdateExpense(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r, "expenseID")
	if !ok {
		http.NotFound(w, r)
		return
	}
	expense, err := h.ledger.GetExpense(r.Context(), id)
	if err != nil {
		h.fail(w, r, err, "Expense")
		return
	}

	vm := FormViewModel{
		User:   &models.User{ID: expense.UserID},
		IsEdit: true,
		Action: fmt.Sprintf("/expense/edit/%d", expense.ID),
	}

	in, err := ParseExpenseForm(r)
	if err == nil {
		expense, err = h.ledger.UpdateExpense(r.Context(), id, in)
	}
	if err != nil {
		if models.IsValidationError(err) {
			h.renderFormError(w, r, vm, err)
			return
		}
		h.fail(w, r, err, "Expense")
		return
	}

	http.Redirect(w, r, fmt.Sprintf("/user/%d", expense.UserID), http.StatusFound)
}

// DeleteExpense removes an expense and returns to its owner's list.
func (h *Handlers) DeleteExpense(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r, "expenseID")
	if !ok {
		http.NotFound(w, r)
		return
	}
	expense, err := h.ledger.DeleteExpense(r.Context(), id)
	if err != nil {
		h.fail(w, r, err, "Expense")
		return
	}
	http.Redirect(w, r, fmt.Sprintf("/user/%d", expense.UserID), http.StatusFound)
}

// renderFormError re-renders the form with the submitted values and a 400 status.
func (h *Handlers) renderFormError(w http.ResponseWriter, r *http.Request, vm FormViewModel, err error) {
	vm.Category = r.PostFormValue("category")
	vm.Amount = r.PostFormValue("amount")
	vm.Date = r.PostFormValue("date")
	vm.Comment = r.PostFormValue("comment")
	vm.PaymentMethod = r.PostFormValue("payment_method")
	vm.Error = err.Error()
	vm.Categories = categories
	h.render(w, r, http.StatusBadRequest, "expense_form.html", vm)
}

// fail maps ledger errors onto HTTP responses.
func (h *Handlers) fail(w http.ResponseWriter, r *http.Request, err error, what string) {
	switch {
	case errors.Is(err, models.ErrNotFound):
		http.Error(w, what+" not found", http.StatusNotFound)
	case models.IsValidationError(err):
		http.Error(w, err.Error(), http.StatusBadRequest)
	default:
		logger.FromContext(r.Context()).Error("Request failed",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Error(err))
		http.Error(w, "Internal server error", http.StatusInternalServerError)
	}
}

func (h *Handlers) render(w http.ResponseWriter, r *http.Request, status int, viewName string, data any) {
	tmpl, ok := h.templates[viewName]
	if !ok {
		logger.FromContext(r.Context()).Error("Unknown template", zap.String("view", viewName))
		http.Error(w, "Template error", http.StatusInternalServerError)
		return
	}
	target := "base.html"
	if r.Header.Get("HX-Request") == "true" {
		target = "content"
	}

	var buf bytes.Buffer
	if err := tmpl.ExecuteTemplate(&buf, target, data); err != nil {
		logger.FromContext(r.Context()).Error("Template execution error", zap.String("view", viewName), zap.Error(err))
		http.Error(w, "Template error", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	_, _ = buf.WriteTo(w)
}

func formatMoney(v float64) string {
	return decimal.NewFromFloat(v).StringFixed(2)
}
