package statement

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/fernbooks/bankrecon/internal/domain"
)

// Summarize derives the statement date range and closing balance from
// normalized transactions. The closing balance is read off the row with
// the latest date; when several rows share the latest date the
// last-iterated one wins, matching statements that list same-day
// transactions in posting order with a running balance. A latest row
// without a balance value leaves the closing balance at zero.
func Summarize(txns []domain.CanonicalTransaction) domain.StatementSummary {
	var summary domain.StatementSummary

	var start, end time.Time
	first := true
	for _, txn := range txns {
		date, err := time.Parse("2006-01-02", txn.Date)
		if err != nil {
			continue
		}

		if first || date.Before(start) {
			start = date
			summary.StartDate = txn.Date
		}

		// >= on purpose: the later row wins a same-date tie.
		if first || !date.Before(end) {
			end = date
			summary.EndDate = txn.Date
			if txn.Balance.Valid {
				summary.ClosingBalance = txn.Balance.Decimal
			} else {
				summary.ClosingBalance = decimal.Zero
			}
		}

		first = false
	}

	return summary
}
