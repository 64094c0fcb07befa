package statement

import (
	"strings"

	"github.com/shopspring/decimal"

	"github.com/fernbooks/bankrecon/internal/domain"
)

// Normalize applies the detected amount format uniformly to every
// extracted row, producing canonical transactions with ISO dates and
// mutually exclusive withdrawal/deposit amounts. Row order is preserved;
// no sorting happens here.
func Normalize(rows []ExtractedRow, cls Classification) []domain.CanonicalTransaction {
	txns := make([]domain.CanonicalTransaction, 0, len(rows))

	for _, row := range rows {
		layout := row.DateLayout
		if layout == "" {
			layout = cls.DateLayout
		}
		date, err := ReformatDate(row.Date, layout)
		if err != nil {
			// The extractor only admits parseable dates; a failure here
			// means the row-level layout guess was wrong. Retry with the
			// statement-wide layout before giving up on the row.
			if date, err = ReformatDate(row.Date, cls.DateLayout); err != nil {
				continue
			}
		}

		withdrawal, deposit := splitAmount(row, cls.AmountFormat)

		txns = append(txns, domain.CanonicalTransaction{
			Date:            date,
			Withdrawal:      withdrawal,
			Deposit:         deposit,
			Balance:         row.Balance,
			Description:     row.Description,
			Reference:       row.Reference,
			TransactionType: row.TransactionType,
		})
	}

	return txns
}

// splitAmount derives the (withdrawal, deposit) pair for one row under
// the statement's amount format.
func splitAmount(row ExtractedRow, format domain.AmountFormat) (decimal.Decimal, decimal.Decimal) {
	zero := decimal.Zero

	switch format {
	case domain.FormatSeparateColumns:
		return row.Withdrawal.Decimal, row.Deposit.Decimal

	case domain.FormatDrCrInAmount:
		amount := row.Amount.Decimal.Abs()
		if strings.Contains(strings.ToLower(row.AmountText), "cr") {
			return zero, amount
		}
		return amount, zero

	case domain.FormatCrDrInType:
		amount := row.Amount.Decimal.Abs()
		if strings.Contains(strings.ToLower(row.TransactionType), "cr") {
			return zero, amount
		}
		return amount, zero

	case domain.FormatDepositWithdrawalInType:
		amount := row.Amount.Decimal.Abs()
		if strings.Contains(strings.ToLower(row.TransactionType), "deposit") {
			return zero, amount
		}
		return amount, zero

	default: // domain.FormatPositiveNegative
		amount := row.Amount.Decimal
		// Zero goes down the deposit branch: non-negative means deposit.
		if amount.IsNegative() {
			return amount.Abs(), zero
		}
		return zero, amount
	}
}
