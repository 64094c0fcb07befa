package domain

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// TransactionType represents the polarity of a bank transaction.
// Use ValidateTransactionType to ensure validity before use.
type TransactionType string

const (
	TypeDeposit    TransactionType = "Deposit"
	TypeWithdrawal TransactionType = "Withdrawal"
)

// AmountFormat identifies how a statement encodes transaction amounts.
// Exactly one format applies to a whole statement; a single statement
// cannot mix encodings.
type AmountFormat string

const (
	// FormatSeparateColumns: the statement has distinct withdrawal and
	// deposit columns.
	FormatSeparateColumns AmountFormat = "separate_columns_for_withdrawal_and_deposit"
	// FormatDrCrInAmount: a single amount column carrying a Cr/Dr suffix.
	FormatDrCrInAmount AmountFormat = "dr_cr_in_amount"
	// FormatPositiveNegative: a single signed amount column.
	FormatPositiveNegative AmountFormat = "positive_negative_in_amount"
	// FormatCrDrInType: a transaction type column containing Cr/Dr markers.
	FormatCrDrInType AmountFormat = "cr_dr_in_transaction_type"
	// FormatDepositWithdrawalInType: a transaction type column containing
	// the words Deposit/Withdrawal.
	FormatDepositWithdrawalInType AmountFormat = "deposit_withdrawal_in_transaction_type"
)

// TransactionStatus represents the reconciliation status of a bank transaction.
type TransactionStatus string

const (
	StatusUnreconciled TransactionStatus = "Unreconciled"
	StatusReconciled   TransactionStatus = "Reconciled"
	StatusCancelled    TransactionStatus = "Cancelled"
)

var (
	validTransactionTypes = map[TransactionType]struct{}{
		TypeDeposit: {}, TypeWithdrawal: {},
	}

	validAmountFormats = map[AmountFormat]struct{}{
		FormatSeparateColumns: {}, FormatDrCrInAmount: {},
		FormatPositiveNegative: {}, FormatCrDrInType: {},
		FormatDepositWithdrawalInType: {},
	}

	validStatuses = map[TransactionStatus]struct{}{
		StatusUnreconciled: {}, StatusReconciled: {}, StatusCancelled: {},
	}
)

// ValidateTransactionType checks if a transaction type is valid
func ValidateTransactionType(t TransactionType) bool {
	_, ok := validTransactionTypes[t]
	return ok
}

// ValidateAmountFormat checks if an amount format is valid
func ValidateAmountFormat(f AmountFormat) bool {
	_, ok := validAmountFormats[f]
	return ok
}

// ValidateStatus checks if a transaction status is valid
func ValidateStatus(s TransactionStatus) bool {
	_, ok := validStatuses[s]
	return ok
}

// CanonicalTransaction is one fully normalized statement row, ready for
// import. Dates are ISO (YYYY-MM-DD). Exactly one of Withdrawal/Deposit
// is non-zero unless the source row carried a zero amount.
type CanonicalTransaction struct {
	Date            string              `json:"date"`
	Withdrawal      decimal.Decimal     `json:"withdrawal"`
	Deposit         decimal.Decimal     `json:"deposit"`
	Balance         decimal.NullDecimal `json:"balance,omitempty"`
	Description     string              `json:"description"`
	Reference       string              `json:"reference"`
	TransactionType string              `json:"transaction_type"`
}

// Validate checks the canonical invariants: an ISO date, non-negative
// amounts, and withdrawal/deposit mutual exclusivity.
func (c *CanonicalTransaction) Validate() error {
	if _, err := time.Parse("2006-01-02", c.Date); err != nil {
		return fmt.Errorf("invalid date %q (expected YYYY-MM-DD): %w", c.Date, err)
	}
	if c.Withdrawal.IsNegative() {
		return fmt.Errorf("withdrawal cannot be negative, got %s", c.Withdrawal)
	}
	if c.Deposit.IsNegative() {
		return fmt.Errorf("deposit cannot be negative, got %s", c.Deposit)
	}
	if c.Withdrawal.IsPositive() && c.Deposit.IsPositive() {
		return fmt.Errorf("withdrawal (%s) and deposit (%s) cannot both be positive", c.Withdrawal, c.Deposit)
	}
	return nil
}

// Amount returns whichever of withdrawal/deposit is non-zero. Withdrawal
// wins when both are zero.
func (c *CanonicalTransaction) Amount() decimal.Decimal {
	if c.Deposit.IsPositive() {
		return c.Deposit
	}
	return c.Withdrawal
}

// BankTransaction is a persisted, submittable bank transaction document.
// The rule engine's only write against it is the rule-evaluation pair
// (IsRuleEvaluated, MatchedRule).
type BankTransaction struct {
	ID              string
	Company         string
	BankAccount     string
	Date            string // YYYY-MM-DD
	Withdrawal      decimal.Decimal
	Deposit         decimal.Decimal
	Description     string
	ReferenceNumber string
	Currency        string
	Status          TransactionStatus
	Submitted       bool
	IsRuleEvaluated bool
	MatchedRule     string // empty when no rule matched
	CreatedAt       time.Time
}

// NewBankTransaction creates a validated, unreconciled bank transaction.
func NewBankTransaction(id, company, bankAccount, date string, withdrawal, deposit decimal.Decimal) (*BankTransaction, error) {
	if id == "" {
		return nil, fmt.Errorf("transaction ID cannot be empty")
	}
	if bankAccount == "" {
		return nil, fmt.Errorf("bank account cannot be empty")
	}
	if _, err := time.Parse("2006-01-02", date); err != nil {
		return nil, fmt.Errorf("invalid date %q: %w", date, err)
	}
	if withdrawal.IsNegative() || deposit.IsNegative() {
		return nil, fmt.Errorf("amounts cannot be negative (withdrawal=%s deposit=%s)", withdrawal, deposit)
	}
	if withdrawal.IsPositive() && deposit.IsPositive() {
		return nil, fmt.Errorf("withdrawal and deposit cannot both be positive")
	}

	return &BankTransaction{
		ID:          id,
		Company:     company,
		BankAccount: bankAccount,
		Date:        date,
		Withdrawal:  withdrawal,
		Deposit:     deposit,
		Status:      StatusUnreconciled,
		CreatedAt:   time.Now(),
	}, nil
}

// Validate checks the transaction's invariants before it is stored.
func (t *BankTransaction) Validate() error {
	if t.ID == "" {
		return fmt.Errorf("transaction ID cannot be empty")
	}
	if t.BankAccount == "" {
		return fmt.Errorf("bank account cannot be empty")
	}
	if _, err := time.Parse("2006-01-02", t.Date); err != nil {
		return fmt.Errorf("invalid date %q: %w", t.Date, err)
	}
	if t.Withdrawal.IsNegative() || t.Deposit.IsNegative() {
		return fmt.Errorf("amounts cannot be negative (withdrawal=%s deposit=%s)", t.Withdrawal, t.Deposit)
	}
	if t.Withdrawal.IsPositive() && t.Deposit.IsPositive() {
		return fmt.Errorf("withdrawal and deposit cannot both be positive")
	}
	if t.Status != "" && !ValidateStatus(t.Status) {
		return fmt.Errorf("invalid status %q", t.Status)
	}
	return nil
}

// Amount returns the transaction's single amount: the withdrawal when it
// is non-zero, otherwise the deposit.
func (t *BankTransaction) Amount() decimal.Decimal {
	if t.Withdrawal.IsPositive() {
		return t.Withdrawal
	}
	return t.Deposit
}

// Type derives the transaction polarity from the amount fields.
func (t *BankTransaction) Type() TransactionType {
	if t.Withdrawal.IsPositive() {
		return TypeWithdrawal
	}
	return TypeDeposit
}

// StatementSummary describes a parsed statement's date range and closing
// balance.
type StatementSummary struct {
	StartDate      string
	EndDate        string
	ClosingBalance decimal.Decimal
}

// ImportLog records one completed statement import against a bank account.
type ImportLog struct {
	ID             string
	BankAccount    string
	StartDate      string
	EndDate        string
	ClosingBalance decimal.Decimal
	Imported       int
	CreatedAt      time.Time
}
