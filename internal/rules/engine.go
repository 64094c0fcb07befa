package rules

import (
	"regexp"
	"strings"

	"github.com/fernbooks/bankrecon/internal/domain"
)

// Evaluate runs a transaction through the rules in the order given
// (callers pass them sorted by ascending priority) and returns the ID of
// the first rule whose filters all match. Evaluation is read-only and
// idempotent: re-running it with the same rules yields the same result.
//
// Per rule: the company must match; a withdrawal/deposit type filter
// skips transactions of the other polarity; the amount (withdrawal when
// non-zero, else deposit) must lie within the configured bounds, where a
// zero bound is unset; and the description sub-rules are tried in their
// stored order, matching the rule on the first hit. A matched rule stops
// the scan entirely.
func Evaluate(txn *domain.BankTransaction, ruleDocs []*Rule) (string, bool) {
	for _, rule := range ruleDocs {
		if rule.Company != txn.Company {
			continue
		}

		if rule.TransactionType == FilterWithdrawal && !txn.Withdrawal.IsPositive() {
			continue
		}
		if rule.TransactionType == FilterDeposit && !txn.Deposit.IsPositive() {
			continue
		}

		amount := txn.Amount()
		if !rule.MinAmount.IsZero() && amount.LessThan(rule.MinAmount) {
			continue
		}
		if !rule.MaxAmount.IsZero() && amount.GreaterThan(rule.MaxAmount) {
			continue
		}

		if matchesDescription(rule, txn.Description) {
			return rule.ID, true
		}
	}

	return "", false
}

// matchesDescription ORs the rule's description sub-rules in order,
// returning true on the first hit. Contains/prefix/suffix checks are
// case-insensitive; regex search is unanchored and case-sensitive.
// Rules are validated at save time, so an invalid regex here is treated
// defensively as a non-match rather than an error.
func matchesDescription(rule *Rule, description string) bool {
	lowered := strings.ToLower(description)

	for _, dr := range rule.DescriptionRules {
		switch dr.Check {
		case CheckContains:
			if strings.Contains(lowered, strings.ToLower(dr.Value)) {
				return true
			}
		case CheckStartsWith:
			if strings.HasPrefix(lowered, strings.ToLower(dr.Value)) {
				return true
			}
		case CheckEndsWith:
			if strings.HasSuffix(lowered, strings.ToLower(dr.Value)) {
				return true
			}
		case CheckRegex:
			re, err := regexp.Compile(dr.Value)
			if err != nil {
				continue
			}
			if re.MatchString(description) {
				return true
			}
		}
	}

	return false
}
