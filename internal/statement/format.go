package statement

import (
	"strings"

	"github.com/fernbooks/bankrecon/internal/domain"
)

// Classification is the statement-level inference result: the dominant
// date layout and the single amount encoding the statement uses.
type Classification struct {
	DateLayout   string
	AmountFormat domain.AmountFormat
}

// formatSeedOrder fixes the counter seed order so that argmax tie-breaks
// are deterministic: the earliest format in this list wins a tie.
var formatSeedOrder = []domain.AmountFormat{
	domain.FormatSeparateColumns,
	domain.FormatDrCrInAmount,
	domain.FormatPositiveNegative,
	domain.FormatCrDrInType,
	domain.FormatDepositWithdrawalInType,
}

// Classify votes over the extracted rows to decide which amount encoding
// the statement uses, and resolves the statement-wide date layout by
// majority vote.
//
// Counting rules, per row:
//   - a present withdrawal or deposit value increments the separate
//     columns counter and ends that row's vote; the separate-column
//     signal dominates.
//   - otherwise a Cr/Dr marker in the amount text increments the
//     dr_cr_in_amount counter.
//   - a transaction type field is counted independently of the amount
//     text check: Cr/Dr markers and Deposit/Withdrawal words each
//     increment their own counter, so one row can add two votes. The
//     double count is deliberate; it reproduces the upstream counting
//     behavior that downstream thresholds were tuned against.
//   - a row matching none of the above is assumed to carry a signed
//     amount.
//
// A statement with no rows falls back to the signed-amount format; the
// result is a suggestion, not ground truth.
func Classify(rows []ExtractedRow) Classification {
	cls := Classification{
		DateLayout:   DetectDateLayout(rows),
		AmountFormat: domain.FormatPositiveNegative,
	}
	if len(rows) == 0 {
		return cls
	}

	counts := make(map[domain.AmountFormat]int, len(formatSeedOrder))
	for _, f := range formatSeedOrder {
		counts[f] = 0
	}

	for _, row := range rows {
		if row.Withdrawal.Valid || row.Deposit.Valid {
			counts[domain.FormatSeparateColumns]++
			continue
		}

		voted := false

		amountText := strings.ToLower(row.AmountText)
		if strings.Contains(amountText, "cr") || strings.Contains(amountText, "dr") {
			counts[domain.FormatDrCrInAmount]++
			voted = true
		}

		if row.TransactionType != "" {
			txType := strings.ToLower(row.TransactionType)
			if strings.Contains(txType, "cr") || strings.Contains(txType, "dr") {
				counts[domain.FormatCrDrInType]++
				voted = true
			}
			if strings.Contains(txType, "deposit") || strings.Contains(txType, "withdrawal") {
				counts[domain.FormatDepositWithdrawalInType]++
				voted = true
			}
		}

		if !voted {
			counts[domain.FormatPositiveNegative]++
		}
	}

	best := formatSeedOrder[0]
	for _, f := range formatSeedOrder[1:] {
		if counts[f] > counts[best] {
			best = f
		}
	}
	cls.AmountFormat = best
	return cls
}
