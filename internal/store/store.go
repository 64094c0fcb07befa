// Package store defines the persistence contracts the reconciliation
// core depends on. Implementations live in subpackages (embedded sqlite)
// and in internal/firestore (hosted backend); the core only ever sees
// these interfaces.
package store

import (
	"context"
	"errors"

	"github.com/fernbooks/bankrecon/internal/domain"
	"github.com/fernbooks/bankrecon/internal/rules"
	"github.com/fernbooks/bankrecon/internal/statement"
)

// ErrNotFound is returned when a requested document does not exist.
var ErrNotFound = errors.New("document not found")

// TransactionStore persists bank transactions through their
// insert/submit/cancel lifecycle and carries the rule engine's
// evaluation write-back.
type TransactionStore interface {
	// Insert stores a new transaction in draft state.
	Insert(ctx context.Context, txn *domain.BankTransaction) error

	// Submit marks a draft transaction as submitted, making it visible
	// to reconciliation and rule evaluation.
	Submit(ctx context.Context, id string) error

	// Cancel marks a submitted transaction as cancelled.
	Cancel(ctx context.Context, id string) error

	// Get fetches a transaction by ID, or ErrNotFound.
	Get(ctx context.Context, id string) (*domain.BankTransaction, error)

	// ListUnreconciled returns up to limit submitted, unreconciled
	// transactions. Unless force is set, transactions already evaluated
	// by the rule engine are excluded.
	ListUnreconciled(ctx context.Context, limit int, force bool) ([]*domain.BankTransaction, error)

	// ListSubmittedInRange returns submitted transactions on a bank
	// account whose date falls within [start, end] inclusive. Used for
	// conflict detection before a statement import.
	ListSubmittedInRange(ctx context.Context, bankAccount, start, end string) ([]*domain.BankTransaction, error)

	// SetRuleEvaluation records the outcome of rule matching for one
	// transaction: the evaluated flag plus the matched rule ID, empty
	// when no rule matched. This is the rule engine's only write.
	SetRuleEvaluation(ctx context.Context, id, matchedRule string) error
}

// RuleStore persists classification rules, maintaining the per-company
// contiguous priority sequence.
type RuleStore interface {
	// CreateRule validates and stores a rule. An unset (zero) priority is
	// auto-assigned max(existing)+1 within the rule's company.
	CreateRule(ctx context.Context, rule *rules.Rule) error

	// DeleteRule removes a rule, clears the matched_rule back-reference
	// on any transaction pointing to it, and compacts the remaining
	// priorities in the same company to a contiguous 1..N sequence.
	DeleteRule(ctx context.Context, id string) error

	// GetRule fetches a rule by ID, or ErrNotFound.
	GetRule(ctx context.Context, id string) (*rules.Rule, error)

	// ListRules returns all rules ordered by ascending priority.
	ListRules(ctx context.Context) ([]*rules.Rule, error)
}

// Template is a remembered statement layout for a bank account, so a
// returning user skips re-detection for a bank whose format is known.
type Template struct {
	BankAccount  string
	HeaderIndex  int
	Mapping      statement.ColumnMapping
	DateLayout   string
	AmountFormat domain.AmountFormat
}

// TemplateStore persists detected statement layouts per bank account.
type TemplateStore interface {
	SaveTemplate(ctx context.Context, tpl *Template) error
	GetTemplate(ctx context.Context, bankAccount string) (*Template, error)
}

// ImportLogStore records completed statement imports.
type ImportLogStore interface {
	CreateImportLog(ctx context.Context, log *domain.ImportLog) error
}

// Store aggregates every persistence concern the core needs. Both the
// sqlite and firestore backends satisfy it.
type Store interface {
	TransactionStore
	RuleStore
	TemplateStore
	ImportLogStore
}
