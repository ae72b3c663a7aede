package handlers

import (
	"net/http"
	"time"

	"expense-ledger/internal/models"

	"github.com/shopspring/decimal"
)

// UserSummaryItem is one row of the index page.
type UserSummaryItem struct {
	ID    int64
	Name  string
	Total float64
}

// IndexViewModel is the data passed to the index template.
type IndexViewModel struct {
	Start     time.Time
	End       time.Time
	MonthName string
	Total     float64
	Users     []UserSummaryItem
}

// Index lists every user with what they spent in the previous calendar month.
func (h *Handlers) Index(w http.ResponseWriter, r *http.Request) {
	overview, err := h.ledger.UserSummaries(r.Context())
	if err != nil {
		h.fail(w, r, err, "Users")
		return
	}

	items := make([]UserSummaryItem, 0, len(overview.Users))
	for _, s := range overview.Users {
		items = append(items, UserSummaryItem{ID: s.User.ID, Name: s.User.Name, Total: s.Total})
	}

	h.render(w, r, http.StatusOK, "index.html", IndexViewModel{
		Start:     overview.Start,
		End:       overview.End,
		MonthName: overview.Start.Month().String(),
		Total:     grandTotal(overview.Users),
		Users:     items,
	})
}

func grandTotal(summaries []models.UserSummary) float64 {
	total := decimal.Zero
	for _, s := range summaries {
		total = total.Add(decimal.NewFromFloat(s.Total))
	}
	return total.InexactFloat64()
}
