// Package rules provides priority-ordered classification rules for bank
// transactions and the engine that matches them.
package rules

import (
	"fmt"
	"regexp"
	"sort"

	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"
)

// CheckType defines how a description sub-rule matches against a
// transaction description.
type CheckType string

const (
	CheckContains   CheckType = "contains"
	CheckStartsWith CheckType = "starts_with"
	CheckEndsWith   CheckType = "ends_with"
	CheckRegex      CheckType = "regex"
)

// TypeFilter restricts a rule to one transaction polarity.
type TypeFilter string

const (
	FilterAny        TypeFilter = "any"
	FilterWithdrawal TypeFilter = "withdrawal"
	FilterDeposit    TypeFilter = "deposit"
)

// ClassifyAs is the voucher kind a matched rule classifies a transaction
// into.
type ClassifyAs string

const (
	ClassifyBankEntry    ClassifyAs = "bank_entry"
	ClassifyPaymentEntry ClassifyAs = "payment_entry"
	ClassifyTransfer     ClassifyAs = "transfer"
)

// BankEntryKind distinguishes single- and multi-account bank entry rules.
type BankEntryKind string

const (
	BankEntrySingleAccount    BankEntryKind = "single_account"
	BankEntryMultipleAccounts BankEntryKind = "multiple_accounts"
)

// DescriptionRule is one ordered description predicate. Sub-rules of a
// rule are OR'd: the first hit matches the parent rule.
type DescriptionRule struct {
	Check CheckType `yaml:"check" validate:"required,oneof=contains starts_with ends_with regex"`
	Value string    `yaml:"value" validate:"required"`
}

// RuleAccount is one leg of a multiple-accounts bank entry rule.
type RuleAccount struct {
	Account string          `yaml:"account" validate:"required"`
	Debit   decimal.Decimal `yaml:"debit"`
	Credit  decimal.Decimal `yaml:"credit"`
}

// Rule is a user-defined classification rule. Priority is unique within a
// company; lower numbers are evaluated first. A zero MinAmount/MaxAmount
// means the bound is unset.
//
// Rules are validated at save time (Validate); the matching engine
// assumes pre-validated rules and skips anything it cannot evaluate.
type Rule struct {
	ID               string            `yaml:"id"`
	Name             string            `yaml:"name" validate:"required"`
	Company          string            `yaml:"company" validate:"required"`
	Priority         int               `yaml:"priority" validate:"min=0"`
	TransactionType  TypeFilter        `yaml:"transaction_type" validate:"omitempty,oneof=any withdrawal deposit"`
	MinAmount        decimal.Decimal   `yaml:"min_amount"`
	MaxAmount        decimal.Decimal   `yaml:"max_amount"`
	DescriptionRules []DescriptionRule `yaml:"description_rules" validate:"required,min=1,dive"`

	ClassifyAs    ClassifyAs    `yaml:"classify_as" validate:"required,oneof=bank_entry payment_entry transfer"`
	BankEntryKind BankEntryKind `yaml:"bank_entry_kind" validate:"omitempty,oneof=single_account multiple_accounts"`
	Account       string        `yaml:"account"`
	Accounts      []RuleAccount `yaml:"accounts" validate:"omitempty,dive"`
	PartyType     string        `yaml:"party_type"`
	Party         string        `yaml:"party"`
}

var validate = validator.New()

// Validate checks the rule's invariants. It is called at rule save time;
// a failing rule is rejected before it is ever stored, so the matching
// engine never sees one.
func (r *Rule) Validate() error {
	if err := validate.Struct(r); err != nil {
		return fmt.Errorf("invalid rule %q: %w", r.Name, err)
	}

	if !r.MinAmount.IsZero() && !r.MaxAmount.IsZero() && r.MinAmount.GreaterThan(r.MaxAmount) {
		return fmt.Errorf("invalid rule %q: min amount %s cannot be greater than max amount %s", r.Name, r.MinAmount, r.MaxAmount)
	}
	if r.MinAmount.IsNegative() || r.MaxAmount.IsNegative() {
		return fmt.Errorf("invalid rule %q: amount bounds cannot be negative", r.Name)
	}

	for i, dr := range r.DescriptionRules {
		if dr.Check == CheckRegex {
			if _, err := regexp.Compile(dr.Value); err != nil {
				return fmt.Errorf("invalid rule %q: description rule %d has an invalid regex pattern: %w", r.Name, i, err)
			}
		}
	}

	switch r.ClassifyAs {
	case ClassifyPaymentEntry:
		if r.PartyType == "" {
			return fmt.Errorf("invalid rule %q: party type is required to create a payment entry", r.Name)
		}
		if r.Party == "" {
			return fmt.Errorf("invalid rule %q: party is required to create a payment entry", r.Name)
		}
		if r.Account == "" {
			return fmt.Errorf("invalid rule %q: party account is required to create a payment entry", r.Name)
		}
	case ClassifyBankEntry:
		kind := r.BankEntryKind
		if kind == "" {
			kind = BankEntrySingleAccount
		}
		if kind == BankEntrySingleAccount {
			if r.Account == "" {
				return fmt.Errorf("invalid rule %q: an account is required for a bank entry rule", r.Name)
			}
		} else {
			if len(r.Accounts) == 0 {
				return fmt.Errorf("invalid rule %q: accounts must be configured for a multiple-accounts bank entry rule", r.Name)
			}
			// The last leg is computed from the remainder, so it must not
			// carry explicit amounts.
			last := r.Accounts[len(r.Accounts)-1]
			if !last.Debit.IsZero() || !last.Credit.IsZero() {
				return fmt.Errorf("invalid rule %q: the last account row must not have debit or credit amounts set", r.Name)
			}
		}
	}

	return nil
}

// RuleSet is the top-level YAML structure for file-loaded rules.
type RuleSet struct {
	Rules []*Rule `yaml:"rules"`
}

// LoadRules parses and validates rules from YAML, returning them sorted
// by ascending priority. The sort is stable so rules sharing a priority
// keep their file order.
func LoadRules(data []byte) ([]*Rule, error) {
	var set RuleSet
	if err := yaml.Unmarshal(data, &set); err != nil {
		return nil, fmt.Errorf("failed to parse YAML rules (check syntax, indentation, and field names): %w", err)
	}

	for i, rule := range set.Rules {
		if err := rule.Validate(); err != nil {
			return nil, fmt.Errorf("rule %d: %w", i, err)
		}
	}

	sorted := make([]*Rule, len(set.Rules))
	copy(sorted, set.Rules)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Priority < sorted[j].Priority
	})

	return sorted, nil
}
