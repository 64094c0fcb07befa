package rules

import (
	"strings"
	"testing"

	"github.com/shopspring/decimal"
)

func validRule() *Rule {
	return &Rule{
		ID:      "rule-1",
		Name:    "Salary",
		Company: "Fern Books Inc",
		DescriptionRules: []DescriptionRule{
			{Check: CheckContains, Value: "salary"},
		},
		ClassifyAs: ClassifyPaymentEntry,
		PartyType:  "Employee",
		Party:      "Jane Doe",
		Account:    "Salaries Payable",
	}
}

func TestRuleValidate(t *testing.T) {
	t.Run("valid payment entry rule", func(t *testing.T) {
		if err := validRule().Validate(); err != nil {
			t.Errorf("Validate() unexpected error: %v", err)
		}
	})

	t.Run("missing name", func(t *testing.T) {
		r := validRule()
		r.Name = ""
		if r.Validate() == nil {
			t.Error("Expected error for missing name")
		}
	})

	t.Run("missing company", func(t *testing.T) {
		r := validRule()
		r.Company = ""
		if r.Validate() == nil {
			t.Error("Expected error for missing company")
		}
	})

	t.Run("no description rules", func(t *testing.T) {
		r := validRule()
		r.DescriptionRules = nil
		if r.Validate() == nil {
			t.Error("Expected error for empty description rules")
		}
	})

	t.Run("unknown check type", func(t *testing.T) {
		r := validRule()
		r.DescriptionRules = []DescriptionRule{{Check: "fuzzy", Value: "x"}}
		if r.Validate() == nil {
			t.Error("Expected error for unknown check type")
		}
	})

	t.Run("min greater than max", func(t *testing.T) {
		r := validRule()
		r.MinAmount = decimal.NewFromInt(1000)
		r.MaxAmount = decimal.NewFromInt(500)
		err := r.Validate()
		if err == nil || !strings.Contains(err.Error(), "cannot be greater than") {
			t.Errorf("Validate() = %v, want min/max error", err)
		}
	})

	t.Run("zero bounds mean unset and are fine together", func(t *testing.T) {
		r := validRule()
		r.MinAmount = decimal.NewFromInt(1000)
		// MaxAmount stays zero: unbounded above, not "max of zero".
		if err := r.Validate(); err != nil {
			t.Errorf("Validate() unexpected error: %v", err)
		}
	})

	t.Run("negative bound", func(t *testing.T) {
		r := validRule()
		r.MinAmount = decimal.NewFromInt(-5)
		if r.Validate() == nil {
			t.Error("Expected error for negative bound")
		}
	})

	t.Run("invalid regex", func(t *testing.T) {
		r := validRule()
		r.DescriptionRules = []DescriptionRule{{Check: CheckRegex, Value: "(unclosed"}}
		if r.Validate() == nil {
			t.Error("Expected error for invalid regex")
		}
	})

	t.Run("payment entry requires party fields", func(t *testing.T) {
		r := validRule()
		r.PartyType = ""
		if r.Validate() == nil {
			t.Error("Expected error for payment entry without party type")
		}
	})

	t.Run("single account bank entry requires an account", func(t *testing.T) {
		r := validRule()
		r.ClassifyAs = ClassifyBankEntry
		r.Account = ""
		if r.Validate() == nil {
			t.Error("Expected error for bank entry rule without account")
		}
	})

	t.Run("multiple accounts bank entry", func(t *testing.T) {
		r := validRule()
		r.ClassifyAs = ClassifyBankEntry
		r.BankEntryKind = BankEntryMultipleAccounts
		r.Accounts = []RuleAccount{
			{Account: "Bank Charges", Debit: decimal.NewFromInt(10)},
			{Account: "Suspense"},
		}
		if err := r.Validate(); err != nil {
			t.Errorf("Validate() unexpected error: %v", err)
		}

		// The last leg is the computed remainder; explicit amounts on it
		// are rejected.
		r.Accounts[1].Credit = decimal.NewFromInt(10)
		if r.Validate() == nil {
			t.Error("Expected error for amounts on the last account row")
		}
	})
}

func TestLoadRules(t *testing.T) {
	t.Run("parses, validates and sorts by priority", func(t *testing.T) {
		data := []byte(`
rules:
  - id: rule-b
    name: Bank charges
    company: Fern Books Inc
    priority: 2
    classify_as: bank_entry
    account: Bank Charges
    description_rules:
      - check: contains
        value: chrg
  - id: rule-a
    name: Salary
    company: Fern Books Inc
    priority: 1
    transaction_type: withdrawal
    classify_as: payment_entry
    party_type: Employee
    party: Jane Doe
    account: Salaries Payable
    min_amount: 1000
    description_rules:
      - check: starts_with
        value: "SAL/"
`)

		loaded, err := LoadRules(data)
		if err != nil {
			t.Fatalf("LoadRules() unexpected error: %v", err)
		}
		if len(loaded) != 2 {
			t.Fatalf("Expected 2 rules, got %d", len(loaded))
		}
		if loaded[0].ID != "rule-a" || loaded[1].ID != "rule-b" {
			t.Errorf("order = %s, %s; want rule-a, rule-b", loaded[0].ID, loaded[1].ID)
		}
		if !loaded[0].MinAmount.Equal(decimal.NewFromInt(1000)) {
			t.Errorf("MinAmount = %s, want 1000", loaded[0].MinAmount)
		}
	})

	t.Run("stable order for equal priorities", func(t *testing.T) {
		data := []byte(`
rules:
  - id: first
    name: First
    company: Acme
    priority: 1
    classify_as: bank_entry
    account: A
    description_rules: [{check: contains, value: x}]
  - id: second
    name: Second
    company: Acme
    priority: 1
    classify_as: bank_entry
    account: B
    description_rules: [{check: contains, value: y}]
`)

		loaded, err := LoadRules(data)
		if err != nil {
			t.Fatalf("LoadRules() unexpected error: %v", err)
		}
		if loaded[0].ID != "first" || loaded[1].ID != "second" {
			t.Errorf("order = %s, %s; want file order preserved", loaded[0].ID, loaded[1].ID)
		}
	})

	t.Run("invalid rule rejects the whole file", func(t *testing.T) {
		data := []byte(`
rules:
  - id: bad
    name: Bad
    company: Acme
    classify_as: payment_entry
    description_rules: [{check: contains, value: x}]
`)
		if _, err := LoadRules(data); err == nil {
			t.Error("Expected error for payment entry rule without party fields")
		}
	})

	t.Run("malformed yaml", func(t *testing.T) {
		if _, err := LoadRules([]byte("rules: [ {")); err == nil {
			t.Error("Expected error for malformed YAML")
		}
	})
}
