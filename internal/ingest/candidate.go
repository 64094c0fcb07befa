// Package ingest provides candidate transaction sources that bypass the
// tabular inference pipeline: machine-extracted rows from scanned
// statements and OFX/QFX downloads. Candidates carry looser typing than
// statement rows and are validated before they become bank transactions.
package ingest

import (
	"context"
	"fmt"
	"io"
	"sort"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/fernbooks/bankrecon/internal/domain"
	"github.com/fernbooks/bankrecon/internal/statement"
)

// Candidate is one extracted transaction awaiting user review. Either
// Amount is set directly, or StringAmount holds the raw extracted text
// ("1,200.00 Cr") to be resolved later.
type Candidate struct {
	Date         string // ISO-8601
	Description  string
	Type         domain.TransactionType
	Amount       decimal.NullDecimal
	StringAmount string
}

// Producer extracts candidates from one source document.
type Producer interface {
	// Name identifies the producer in logs and errors.
	Name() string

	// Produce reads a source document and returns candidates in source
	// order. Produced candidates may still be incomplete; callers run
	// Resolve and Validate before accepting them.
	Produce(ctx context.Context, r io.Reader) ([]Candidate, error)
}

// ParseStringAmount resolves a raw extracted amount like "1,200.00 Cr"
// into a value and polarity. A "cr" marker means money in (deposit);
// anything else, including a bare number, is treated as money out.
func ParseStringAmount(s string) (decimal.Decimal, domain.TransactionType, error) {
	amount := statement.ParseAmountString(s)
	if !amount.Valid {
		return decimal.Decimal{}, "", fmt.Errorf("unparseable amount %q", s)
	}

	txnType := domain.TypeWithdrawal
	if strings.Contains(strings.ToLower(s), "cr") {
		txnType = domain.TypeDeposit
	}
	return amount.Decimal.Abs(), txnType, nil
}

// Resolve fills Amount and Type from StringAmount when they were not
// extracted directly. It is a no-op for candidates that already carry a
// resolved amount.
func (c *Candidate) Resolve() error {
	if c.Amount.Valid {
		return nil
	}
	if c.StringAmount == "" {
		return fmt.Errorf("candidate has neither amount nor raw amount text")
	}

	amount, txnType, err := ParseStringAmount(c.StringAmount)
	if err != nil {
		return err
	}
	c.Amount = decimal.NewNullDecimal(amount)
	if c.Type == "" {
		c.Type = txnType
	}
	return nil
}

// Validate checks a candidate is complete enough to submit: a parseable
// ISO date, a resolved amount, and a known polarity.
func (c *Candidate) Validate() error {
	if _, err := time.Parse("2006-01-02", c.Date); err != nil {
		return fmt.Errorf("invalid candidate date %q: %w", c.Date, err)
	}
	if !c.Amount.Valid {
		return fmt.Errorf("candidate on %s is missing an amount", c.Date)
	}
	if !domain.ValidateTransactionType(c.Type) {
		return fmt.Errorf("candidate on %s has unknown transaction type %q", c.Date, c.Type)
	}
	return nil
}

// Transaction converts a resolved, valid candidate into a draft bank
// transaction.
func (c *Candidate) Transaction(id, company, bankAccount, currency string) (*domain.BankTransaction, error) {
	if err := c.Validate(); err != nil {
		return nil, err
	}

	withdrawal, deposit := decimal.Zero, decimal.Zero
	if c.Type == domain.TypeDeposit {
		deposit = c.Amount.Decimal
	} else {
		withdrawal = c.Amount.Decimal
	}

	txn, err := domain.NewBankTransaction(id, company, bankAccount, c.Date, withdrawal, deposit)
	if err != nil {
		return nil, err
	}
	txn.Description = c.Description
	txn.Currency = currency
	return txn, nil
}

// SortByDate orders candidates chronologically in place. ISO dates sort
// lexicographically, so plain string comparison is enough; the sort is
// stable so same-day candidates keep their extraction order.
func SortByDate(candidates []Candidate) {
	sort.SliceStable(candidates, func(i, j int) bool {
		return candidates[i].Date < candidates[j].Date
	})
}
