// Package sqlite implements store.Store on an embedded sqlite database.
// It is the default backend for local, single-user use; no server or
// credentials are needed, the whole store is one file.
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	_ "modernc.org/sqlite"

	"github.com/fernbooks/bankrecon/internal/domain"
	"github.com/fernbooks/bankrecon/internal/rules"
	"github.com/fernbooks/bankrecon/internal/statement"
	"github.com/fernbooks/bankrecon/internal/store"
)

const schema = `
CREATE TABLE IF NOT EXISTS bank_transactions (
	id                TEXT PRIMARY KEY,
	company           TEXT NOT NULL DEFAULT '',
	bank_account      TEXT NOT NULL,
	date              TEXT NOT NULL,
	withdrawal        TEXT NOT NULL,
	deposit           TEXT NOT NULL,
	description       TEXT NOT NULL DEFAULT '',
	reference_number  TEXT NOT NULL DEFAULT '',
	currency          TEXT NOT NULL DEFAULT '',
	status            TEXT NOT NULL,
	submitted         INTEGER NOT NULL DEFAULT 0,
	is_rule_evaluated INTEGER NOT NULL DEFAULT 0,
	matched_rule      TEXT NOT NULL DEFAULT '',
	created_at        TEXT NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_transactions_account_date
	ON bank_transactions (bank_account, date);

CREATE TABLE IF NOT EXISTS rules (
	id                TEXT PRIMARY KEY,
	name              TEXT NOT NULL,
	company           TEXT NOT NULL,
	priority          INTEGER NOT NULL,
	transaction_type  TEXT NOT NULL DEFAULT 'any',
	min_amount        TEXT NOT NULL DEFAULT '0',
	max_amount        TEXT NOT NULL DEFAULT '0',
	description_rules TEXT NOT NULL,
	classify_as       TEXT NOT NULL,
	bank_entry_kind   TEXT NOT NULL DEFAULT '',
	account           TEXT NOT NULL DEFAULT '',
	accounts          TEXT NOT NULL DEFAULT '[]',
	party_type        TEXT NOT NULL DEFAULT '',
	party             TEXT NOT NULL DEFAULT ''
);

CREATE TABLE IF NOT EXISTS statement_templates (
	bank_account  TEXT PRIMARY KEY,
	header_index  INTEGER NOT NULL,
	mapping       TEXT NOT NULL,
	date_layout   TEXT NOT NULL DEFAULT '',
	amount_format TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS import_logs (
	id              TEXT PRIMARY KEY,
	bank_account    TEXT NOT NULL,
	start_date      TEXT NOT NULL,
	end_date        TEXT NOT NULL,
	closing_balance TEXT NOT NULL,
	imported        INTEGER NOT NULL,
	created_at      TEXT NOT NULL
);
`

// Store is the sqlite-backed store.Store implementation.
type Store struct {
	db *sql.DB
}

var _ store.Store = (*Store)(nil)

// Open opens (creating if needed) the database at path and applies the
// schema. Use ":memory:" for an ephemeral store.
func Open(ctx context.Context, path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database %s: %w", path, err)
	}
	// sqlite handles one writer at a time; a larger pool only produces
	// SQLITE_BUSY under concurrent rule evaluation write-backs.
	db.SetMaxOpenConns(1)

	if _, err := db.ExecContext(ctx, schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to apply schema: %w", err)
	}
	return &Store{db: db}, nil
}

// Close releases the underlying database handle.
func (s *Store) Close() error {
	return s.db.Close()
}

// Insert stores a new transaction in draft state.
func (s *Store) Insert(ctx context.Context, txn *domain.BankTransaction) error {
	if err := txn.Validate(); err != nil {
		return err
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO bank_transactions
			(id, company, bank_account, date, withdrawal, deposit,
			 description, reference_number, currency, status, submitted,
			 is_rule_evaluated, matched_rule, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		txn.ID, txn.Company, txn.BankAccount, txn.Date,
		txn.Withdrawal.String(), txn.Deposit.String(),
		txn.Description, txn.ReferenceNumber, txn.Currency,
		string(txn.Status), boolToInt(txn.Submitted),
		boolToInt(txn.IsRuleEvaluated), txn.MatchedRule,
		txn.CreatedAt.UTC().Format(time.RFC3339))
	if err != nil {
		return fmt.Errorf("failed to insert transaction %s: %w", txn.ID, err)
	}
	return nil
}

// Submit marks a draft transaction as submitted.
func (s *Store) Submit(ctx context.Context, id string) error {
	return s.setSubmitted(ctx, id, true, domain.StatusUnreconciled)
}

// Cancel marks a transaction as cancelled and withdraws it from
// reconciliation.
func (s *Store) Cancel(ctx context.Context, id string) error {
	return s.setSubmitted(ctx, id, false, domain.StatusCancelled)
}

func (s *Store) setSubmitted(ctx context.Context, id string, submitted bool, status domain.TransactionStatus) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE bank_transactions SET submitted = ?, status = ? WHERE id = ?`,
		boolToInt(submitted), string(status), id)
	if err != nil {
		return fmt.Errorf("failed to update transaction %s: %w", id, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return store.ErrNotFound
	}
	return nil
}

// Get fetches a transaction by ID.
func (s *Store) Get(ctx context.Context, id string) (*domain.BankTransaction, error) {
	row := s.db.QueryRowContext(ctx, txnSelect+` WHERE id = ?`, id)
	txn, err := scanTransaction(row)
	if err == sql.ErrNoRows {
		return nil, store.ErrNotFound
	}
	return txn, err
}

// ListUnreconciled returns up to limit submitted, unreconciled
// transactions in insertion order. Unless force is set, already
// evaluated transactions are excluded so repeated batch runs only pick
// up new work.
func (s *Store) ListUnreconciled(ctx context.Context, limit int, force bool) ([]*domain.BankTransaction, error) {
	query := txnSelect + ` WHERE submitted = 1 AND status = ?`
	args := []any{string(domain.StatusUnreconciled)}
	if !force {
		query += ` AND is_rule_evaluated = 0`
	}
	query += ` ORDER BY created_at, id LIMIT ?`
	args = append(args, limit)

	return s.queryTransactions(ctx, query, args...)
}

// ListSubmittedInRange returns submitted transactions on bankAccount
// dated within [start, end] inclusive. Dates are ISO-8601 strings, so
// lexicographic comparison is chronological.
func (s *Store) ListSubmittedInRange(ctx context.Context, bankAccount, start, end string) ([]*domain.BankTransaction, error) {
	query := txnSelect + `
		WHERE submitted = 1 AND bank_account = ? AND date >= ? AND date <= ?
		ORDER BY date, id`
	return s.queryTransactions(ctx, query, bankAccount, start, end)
}

func (s *Store) queryTransactions(ctx context.Context, query string, args ...any) ([]*domain.BankTransaction, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list transactions: %w", err)
	}
	defer rows.Close()

	var out []*domain.BankTransaction
	for rows.Next() {
		txn, err := scanTransaction(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, txn)
	}
	return out, rows.Err()
}

// SetRuleEvaluation records the rule engine's outcome for one
// transaction. An empty matchedRule means evaluation completed with no
// match.
func (s *Store) SetRuleEvaluation(ctx context.Context, id, matchedRule string) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE bank_transactions SET is_rule_evaluated = 1, matched_rule = ? WHERE id = ?`,
		matchedRule, id)
	if err != nil {
		return fmt.Errorf("failed to record rule evaluation for %s: %w", id, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return store.ErrNotFound
	}
	return nil
}

// CreateRule validates and stores a rule. A zero priority is
// auto-assigned max(existing)+1 within the rule's company.
func (s *Store) CreateRule(ctx context.Context, rule *rules.Rule) error {
	if err := rule.Validate(); err != nil {
		return err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if rule.Priority == 0 {
		var max int
		err := tx.QueryRowContext(ctx,
			`SELECT COALESCE(MAX(priority), 0) FROM rules WHERE company = ?`,
			rule.Company).Scan(&max)
		if err != nil {
			return fmt.Errorf("failed to determine next priority: %w", err)
		}
		rule.Priority = max + 1
	}

	descRules, err := json.Marshal(rule.DescriptionRules)
	if err != nil {
		return fmt.Errorf("failed to encode description rules: %w", err)
	}
	accounts, err := json.Marshal(rule.Accounts)
	if err != nil {
		return fmt.Errorf("failed to encode accounts: %w", err)
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO rules
			(id, name, company, priority, transaction_type, min_amount,
			 max_amount, description_rules, classify_as, bank_entry_kind,
			 account, accounts, party_type, party)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		rule.ID, rule.Name, rule.Company, rule.Priority,
		string(rule.TransactionType), rule.MinAmount.String(),
		rule.MaxAmount.String(), string(descRules), string(rule.ClassifyAs),
		string(rule.BankEntryKind), rule.Account, string(accounts),
		rule.PartyType, rule.Party)
	if err != nil {
		return fmt.Errorf("failed to insert rule %q: %w", rule.Name, err)
	}

	return tx.Commit()
}

// DeleteRule removes a rule, clears the matched_rule back-reference on
// any transaction pointing to it, and renumbers the remaining rules in
// the same company to a contiguous 1..N priority sequence.
func (s *Store) DeleteRule(ctx context.Context, id string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	var company string
	err = tx.QueryRowContext(ctx, `SELECT company FROM rules WHERE id = ?`, id).Scan(&company)
	if err == sql.ErrNoRows {
		return store.ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("failed to look up rule %s: %w", id, err)
	}

	if _, err := tx.ExecContext(ctx,
		`UPDATE bank_transactions SET matched_rule = '' WHERE matched_rule = ?`, id); err != nil {
		return fmt.Errorf("failed to clear matched rule references: %w", err)
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM rules WHERE id = ?`, id); err != nil {
		return fmt.Errorf("failed to delete rule %s: %w", id, err)
	}

	// Renumber the survivors so priorities stay contiguous. Row count per
	// company is small, so a read-then-write loop is fine here.
	rows, err := tx.QueryContext(ctx,
		`SELECT id FROM rules WHERE company = ? ORDER BY priority`, company)
	if err != nil {
		return fmt.Errorf("failed to list remaining rules: %w", err)
	}
	var ids []string
	for rows.Next() {
		var rid string
		if err := rows.Scan(&rid); err != nil {
			rows.Close()
			return err
		}
		ids = append(ids, rid)
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return err
	}
	rows.Close()

	for i, rid := range ids {
		if _, err := tx.ExecContext(ctx,
			`UPDATE rules SET priority = ? WHERE id = ?`, i+1, rid); err != nil {
			return fmt.Errorf("failed to renumber rule %s: %w", rid, err)
		}
	}

	return tx.Commit()
}

// GetRule fetches a rule by ID.
func (s *Store) GetRule(ctx context.Context, id string) (*rules.Rule, error) {
	row := s.db.QueryRowContext(ctx, ruleSelect+` WHERE id = ?`, id)
	rule, err := scanRule(row)
	if err == sql.ErrNoRows {
		return nil, store.ErrNotFound
	}
	return rule, err
}

// ListRules returns all rules ordered by ascending priority, the order
// the matching engine evaluates them in.
func (s *Store) ListRules(ctx context.Context) ([]*rules.Rule, error) {
	rows, err := s.db.QueryContext(ctx, ruleSelect+` ORDER BY priority, company`)
	if err != nil {
		return nil, fmt.Errorf("failed to list rules: %w", err)
	}
	defer rows.Close()

	var out []*rules.Rule
	for rows.Next() {
		rule, err := scanRule(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, rule)
	}
	return out, rows.Err()
}

// SaveTemplate stores (or replaces) the remembered layout for a bank
// account.
func (s *Store) SaveTemplate(ctx context.Context, tpl *store.Template) error {
	mapping, err := json.Marshal(tpl.Mapping)
	if err != nil {
		return fmt.Errorf("failed to encode column mapping: %w", err)
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO statement_templates
			(bank_account, header_index, mapping, date_layout, amount_format)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT (bank_account) DO UPDATE SET
			header_index = excluded.header_index,
			mapping = excluded.mapping,
			date_layout = excluded.date_layout,
			amount_format = excluded.amount_format`,
		tpl.BankAccount, tpl.HeaderIndex, string(mapping),
		tpl.DateLayout, string(tpl.AmountFormat))
	if err != nil {
		return fmt.Errorf("failed to save template for %s: %w", tpl.BankAccount, err)
	}
	return nil
}

// GetTemplate fetches the remembered layout for a bank account.
func (s *Store) GetTemplate(ctx context.Context, bankAccount string) (*store.Template, error) {
	var (
		tpl     store.Template
		mapping string
		format  string
	)
	err := s.db.QueryRowContext(ctx, `
		SELECT bank_account, header_index, mapping, date_layout, amount_format
		FROM statement_templates WHERE bank_account = ?`, bankAccount).
		Scan(&tpl.BankAccount, &tpl.HeaderIndex, &mapping, &tpl.DateLayout, &format)
	if err == sql.ErrNoRows {
		return nil, store.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load template for %s: %w", bankAccount, err)
	}
	tpl.Mapping = statement.ColumnMapping{}
	if err := json.Unmarshal([]byte(mapping), &tpl.Mapping); err != nil {
		return nil, fmt.Errorf("failed to decode column mapping for %s: %w", bankAccount, err)
	}
	tpl.AmountFormat = domain.AmountFormat(format)
	return &tpl, nil
}

// CreateImportLog records one completed statement import.
func (s *Store) CreateImportLog(ctx context.Context, log *domain.ImportLog) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO import_logs
			(id, bank_account, start_date, end_date, closing_balance, imported, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		log.ID, log.BankAccount, log.StartDate, log.EndDate,
		log.ClosingBalance.String(), log.Imported,
		log.CreatedAt.UTC().Format(time.RFC3339))
	if err != nil {
		return fmt.Errorf("failed to record import log %s: %w", log.ID, err)
	}
	return nil
}

const txnSelect = `
	SELECT id, company, bank_account, date, withdrawal, deposit,
	       description, reference_number, currency, status, submitted,
	       is_rule_evaluated, matched_rule, created_at
	FROM bank_transactions`

const ruleSelect = `
	SELECT id, name, company, priority, transaction_type, min_amount,
	       max_amount, description_rules, classify_as, bank_entry_kind,
	       account, accounts, party_type, party
	FROM rules`

// scanner covers both *sql.Row and *sql.Rows.
type scanner interface {
	Scan(dest ...any) error
}

func scanTransaction(row scanner) (*domain.BankTransaction, error) {
	var (
		txn                             domain.BankTransaction
		withdrawal, deposit, status, ts string
		submitted, evaluated            int
	)
	err := row.Scan(&txn.ID, &txn.Company, &txn.BankAccount, &txn.Date,
		&withdrawal, &deposit, &txn.Description, &txn.ReferenceNumber,
		&txn.Currency, &status, &submitted, &evaluated, &txn.MatchedRule, &ts)
	if err != nil {
		return nil, err
	}

	if txn.Withdrawal, err = decimal.NewFromString(withdrawal); err != nil {
		return nil, fmt.Errorf("corrupt withdrawal amount for %s: %w", txn.ID, err)
	}
	if txn.Deposit, err = decimal.NewFromString(deposit); err != nil {
		return nil, fmt.Errorf("corrupt deposit amount for %s: %w", txn.ID, err)
	}
	txn.Status = domain.TransactionStatus(status)
	txn.Submitted = submitted != 0
	txn.IsRuleEvaluated = evaluated != 0
	if txn.CreatedAt, err = time.Parse(time.RFC3339, ts); err != nil {
		return nil, fmt.Errorf("corrupt created_at for %s: %w", txn.ID, err)
	}
	return &txn, nil
}

func scanRule(row scanner) (*rules.Rule, error) {
	var (
		rule                        rules.Rule
		typeFilter, minAmt, maxAmt  string
		descRules, classifyAs, kind string
		accounts                    string
	)
	err := row.Scan(&rule.ID, &rule.Name, &rule.Company, &rule.Priority,
		&typeFilter, &minAmt, &maxAmt, &descRules, &classifyAs, &kind,
		&rule.Account, &accounts, &rule.PartyType, &rule.Party)
	if err != nil {
		return nil, err
	}

	rule.TransactionType = rules.TypeFilter(typeFilter)
	rule.ClassifyAs = rules.ClassifyAs(classifyAs)
	rule.BankEntryKind = rules.BankEntryKind(kind)
	if rule.MinAmount, err = decimal.NewFromString(minAmt); err != nil {
		return nil, fmt.Errorf("corrupt min amount for rule %s: %w", rule.ID, err)
	}
	if rule.MaxAmount, err = decimal.NewFromString(maxAmt); err != nil {
		return nil, fmt.Errorf("corrupt max amount for rule %s: %w", rule.ID, err)
	}
	if err := json.Unmarshal([]byte(descRules), &rule.DescriptionRules); err != nil {
		return nil, fmt.Errorf("corrupt description rules for rule %s: %w", rule.ID, err)
	}
	if err := json.Unmarshal([]byte(accounts), &rule.Accounts); err != nil {
		return nil, fmt.Errorf("corrupt accounts for rule %s: %w", rule.ID, err)
	}
	return &rule, nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
