// Package firestore implements store.Store on Cloud Firestore for
// hosted, multi-user deployments. Documents mirror the sqlite schema;
// decimal amounts are stored as strings so no precision is lost to
// float64 round-tripping.
package firestore

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"cloud.google.com/go/firestore"
	firebase "firebase.google.com/go/v4"
	"firebase.google.com/go/v4/auth"
	"github.com/shopspring/decimal"
	"google.golang.org/api/iterator"
	"google.golang.org/api/option"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/fernbooks/bankrecon/internal/domain"
	"github.com/fernbooks/bankrecon/internal/rules"
	"github.com/fernbooks/bankrecon/internal/statement"
	"github.com/fernbooks/bankrecon/internal/store"
)

const (
	transactionsCollection = "bank-transactions"
	rulesCollection        = "classification-rules"
	templatesCollection    = "statement-templates"
	importLogsCollection   = "import-logs"
)

// Client wraps the Firestore client with reconciliation-specific
// operations.
type Client struct {
	Firestore *firestore.Client
	Auth      *auth.Client
	projectID string
}

var _ store.Store = (*Client)(nil)

// NewClient creates a new Firestore client using Application Default
// Credentials, or the credentials file at credsPath when given.
func NewClient(ctx context.Context, projectID, credsPath string) (*Client, error) {
	conf := &firebase.Config{ProjectID: projectID}

	var opts []option.ClientOption
	if credsPath != "" {
		opts = append(opts, option.WithCredentialsFile(credsPath))
	}

	app, err := firebase.NewApp(ctx, conf, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize Firebase app: %w", err)
	}

	firestoreClient, err := app.Firestore(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to create Firestore client: %w", err)
	}

	authClient, err := app.Auth(ctx)
	if err != nil {
		firestoreClient.Close()
		return nil, fmt.Errorf("failed to create Auth client: %w", err)
	}

	return &Client{
		Firestore: firestoreClient,
		Auth:      authClient,
		projectID: projectID,
	}, nil
}

// Close closes the Firestore client
func (c *Client) Close() error {
	return c.Firestore.Close()
}

// transactionDoc is the Firestore shape of a bank transaction.
type transactionDoc struct {
	ID              string    `firestore:"id"`
	Company         string    `firestore:"company"`
	BankAccount     string    `firestore:"bankAccount"`
	Date            string    `firestore:"date"`
	Withdrawal      string    `firestore:"withdrawal"`
	Deposit         string    `firestore:"deposit"`
	Description     string    `firestore:"description"`
	ReferenceNumber string    `firestore:"referenceNumber"`
	Currency        string    `firestore:"currency"`
	Status          string    `firestore:"status"`
	Submitted       bool      `firestore:"submitted"`
	IsRuleEvaluated bool      `firestore:"isRuleEvaluated"`
	MatchedRule     string    `firestore:"matchedRule"`
	CreatedAt       time.Time `firestore:"createdAt"`
}

func toTransactionDoc(txn *domain.BankTransaction) *transactionDoc {
	return &transactionDoc{
		ID:              txn.ID,
		Company:         txn.Company,
		BankAccount:     txn.BankAccount,
		Date:            txn.Date,
		Withdrawal:      txn.Withdrawal.String(),
		Deposit:         txn.Deposit.String(),
		Description:     txn.Description,
		ReferenceNumber: txn.ReferenceNumber,
		Currency:        txn.Currency,
		Status:          string(txn.Status),
		Submitted:       txn.Submitted,
		IsRuleEvaluated: txn.IsRuleEvaluated,
		MatchedRule:     txn.MatchedRule,
		CreatedAt:       txn.CreatedAt,
	}
}

func (d *transactionDoc) toDomain() (*domain.BankTransaction, error) {
	withdrawal, err := decimal.NewFromString(d.Withdrawal)
	if err != nil {
		return nil, fmt.Errorf("corrupt withdrawal amount for %s: %w", d.ID, err)
	}
	deposit, err := decimal.NewFromString(d.Deposit)
	if err != nil {
		return nil, fmt.Errorf("corrupt deposit amount for %s: %w", d.ID, err)
	}
	return &domain.BankTransaction{
		ID:              d.ID,
		Company:         d.Company,
		BankAccount:     d.BankAccount,
		Date:            d.Date,
		Withdrawal:      withdrawal,
		Deposit:         deposit,
		Description:     d.Description,
		ReferenceNumber: d.ReferenceNumber,
		Currency:        d.Currency,
		Status:          domain.TransactionStatus(d.Status),
		Submitted:       d.Submitted,
		IsRuleEvaluated: d.IsRuleEvaluated,
		MatchedRule:     d.MatchedRule,
		CreatedAt:       d.CreatedAt,
	}, nil
}

// Insert stores a new transaction in draft state.
func (c *Client) Insert(ctx context.Context, txn *domain.BankTransaction) error {
	if err := txn.Validate(); err != nil {
		return fmt.Errorf("invalid transaction: %w", err)
	}
	_, err := c.Firestore.Collection(transactionsCollection).Doc(txn.ID).Set(ctx, toTransactionDoc(txn))
	return err
}

// Submit marks a draft transaction as submitted.
func (c *Client) Submit(ctx context.Context, id string) error {
	return c.setSubmitted(ctx, id, true, domain.StatusUnreconciled)
}

// Cancel marks a transaction as cancelled.
func (c *Client) Cancel(ctx context.Context, id string) error {
	return c.setSubmitted(ctx, id, false, domain.StatusCancelled)
}

func (c *Client) setSubmitted(ctx context.Context, id string, submitted bool, txnStatus domain.TransactionStatus) error {
	_, err := c.Firestore.Collection(transactionsCollection).Doc(id).Update(ctx, []firestore.Update{
		{Path: "submitted", Value: submitted},
		{Path: "status", Value: string(txnStatus)},
	})
	if status.Code(err) == codes.NotFound {
		return store.ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("failed to update transaction %s: %w", id, err)
	}
	return nil
}

// Get fetches a transaction by ID.
func (c *Client) Get(ctx context.Context, id string) (*domain.BankTransaction, error) {
	doc, err := c.Firestore.Collection(transactionsCollection).Doc(id).Get(ctx)
	if status.Code(err) == codes.NotFound {
		return nil, store.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to fetch transaction %s: %w", id, err)
	}

	var d transactionDoc
	if err := doc.DataTo(&d); err != nil {
		return nil, fmt.Errorf("failed to parse transaction: %w", err)
	}
	return d.toDomain()
}

// ListUnreconciled returns up to limit submitted, unreconciled
// transactions, excluding already evaluated ones unless force is set.
func (c *Client) ListUnreconciled(ctx context.Context, limit int, force bool) ([]*domain.BankTransaction, error) {
	query := c.Firestore.Collection(transactionsCollection).
		Where("submitted", "==", true).
		Where("status", "==", string(domain.StatusUnreconciled))
	if !force {
		query = query.Where("isRuleEvaluated", "==", false)
	}
	return c.queryTransactions(ctx, query.OrderBy("createdAt", firestore.Asc).Limit(limit))
}

// ListSubmittedInRange returns submitted transactions on bankAccount
// dated within [start, end] inclusive.
func (c *Client) ListSubmittedInRange(ctx context.Context, bankAccount, start, end string) ([]*domain.BankTransaction, error) {
	query := c.Firestore.Collection(transactionsCollection).
		Where("submitted", "==", true).
		Where("bankAccount", "==", bankAccount).
		Where("date", ">=", start).
		Where("date", "<=", end).
		OrderBy("date", firestore.Asc)
	return c.queryTransactions(ctx, query)
}

func (c *Client) queryTransactions(ctx context.Context, query firestore.Query) ([]*domain.BankTransaction, error) {
	iter := query.Documents(ctx)
	defer iter.Stop()

	var transactions []*domain.BankTransaction
	for {
		doc, err := iter.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to iterate transactions: %w", err)
		}

		var d transactionDoc
		if err := doc.DataTo(&d); err != nil {
			return nil, fmt.Errorf("failed to parse transaction: %w", err)
		}
		txn, err := d.toDomain()
		if err != nil {
			return nil, err
		}
		transactions = append(transactions, txn)
	}
	return transactions, nil
}

// SetRuleEvaluation records the rule engine's outcome for one
// transaction.
func (c *Client) SetRuleEvaluation(ctx context.Context, id, matchedRule string) error {
	_, err := c.Firestore.Collection(transactionsCollection).Doc(id).Update(ctx, []firestore.Update{
		{Path: "isRuleEvaluated", Value: true},
		{Path: "matchedRule", Value: matchedRule},
	})
	if status.Code(err) == codes.NotFound {
		return store.ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("failed to record rule evaluation for %s: %w", id, err)
	}
	return nil
}

// ruleDoc is the Firestore shape of a classification rule. Description
// sub-rules and account legs are stored as JSON strings to keep the
// document flat.
type ruleDoc struct {
	ID               string `firestore:"id"`
	Name             string `firestore:"name"`
	Company          string `firestore:"company"`
	Priority         int    `firestore:"priority"`
	TransactionType  string `firestore:"transactionType"`
	MinAmount        string `firestore:"minAmount"`
	MaxAmount        string `firestore:"maxAmount"`
	DescriptionRules string `firestore:"descriptionRules"`
	ClassifyAs       string `firestore:"classifyAs"`
	BankEntryKind    string `firestore:"bankEntryKind"`
	Account          string `firestore:"account"`
	Accounts         string `firestore:"accounts"`
	PartyType        string `firestore:"partyType"`
	Party            string `firestore:"party"`
}

func toRuleDoc(rule *rules.Rule) (*ruleDoc, error) {
	descRules, err := json.Marshal(rule.DescriptionRules)
	if err != nil {
		return nil, fmt.Errorf("failed to encode description rules: %w", err)
	}
	accounts, err := json.Marshal(rule.Accounts)
	if err != nil {
		return nil, fmt.Errorf("failed to encode accounts: %w", err)
	}
	return &ruleDoc{
		ID:               rule.ID,
		Name:             rule.Name,
		Company:          rule.Company,
		Priority:         rule.Priority,
		TransactionType:  string(rule.TransactionType),
		MinAmount:        rule.MinAmount.String(),
		MaxAmount:        rule.MaxAmount.String(),
		DescriptionRules: string(descRules),
		ClassifyAs:       string(rule.ClassifyAs),
		BankEntryKind:    string(rule.BankEntryKind),
		Account:          rule.Account,
		Accounts:         string(accounts),
		PartyType:        rule.PartyType,
		Party:            rule.Party,
	}, nil
}

func (d *ruleDoc) toDomain() (*rules.Rule, error) {
	minAmount, err := decimal.NewFromString(d.MinAmount)
	if err != nil {
		return nil, fmt.Errorf("corrupt min amount for rule %s: %w", d.ID, err)
	}
	maxAmount, err := decimal.NewFromString(d.MaxAmount)
	if err != nil {
		return nil, fmt.Errorf("corrupt max amount for rule %s: %w", d.ID, err)
	}
	rule := &rules.Rule{
		ID:              d.ID,
		Name:            d.Name,
		Company:         d.Company,
		Priority:        d.Priority,
		TransactionType: rules.TypeFilter(d.TransactionType),
		MinAmount:       minAmount,
		MaxAmount:       maxAmount,
		ClassifyAs:      rules.ClassifyAs(d.ClassifyAs),
		BankEntryKind:   rules.BankEntryKind(d.BankEntryKind),
		Account:         d.Account,
		PartyType:       d.PartyType,
		Party:           d.Party,
	}
	if err := json.Unmarshal([]byte(d.DescriptionRules), &rule.DescriptionRules); err != nil {
		return nil, fmt.Errorf("corrupt description rules for rule %s: %w", d.ID, err)
	}
	if err := json.Unmarshal([]byte(d.Accounts), &rule.Accounts); err != nil {
		return nil, fmt.Errorf("corrupt accounts for rule %s: %w", d.ID, err)
	}
	return rule, nil
}

// CreateRule validates and stores a rule, auto-assigning a zero
// priority to max(existing)+1 within the rule's company.
func (c *Client) CreateRule(ctx context.Context, rule *rules.Rule) error {
	if err := rule.Validate(); err != nil {
		return err
	}

	return c.Firestore.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		if rule.Priority == 0 {
			iter := tx.Documents(c.Firestore.Collection(rulesCollection).
				Where("company", "==", rule.Company).
				OrderBy("priority", firestore.Desc).
				Limit(1))
			doc, err := iter.Next()
			switch {
			case err == iterator.Done:
				rule.Priority = 1
			case err != nil:
				return fmt.Errorf("failed to determine next priority: %w", err)
			default:
				var d ruleDoc
				if err := doc.DataTo(&d); err != nil {
					return fmt.Errorf("failed to parse rule: %w", err)
				}
				rule.Priority = d.Priority + 1
			}
		}

		doc, err := toRuleDoc(rule)
		if err != nil {
			return err
		}
		return tx.Set(c.Firestore.Collection(rulesCollection).Doc(rule.ID), doc)
	})
}

// DeleteRule removes a rule, clears matched-rule back-references, and
// renumbers the company's surviving rules to a contiguous 1..N
// sequence.
func (c *Client) DeleteRule(ctx context.Context, id string) error {
	ruleRef := c.Firestore.Collection(rulesCollection).Doc(id)

	return c.Firestore.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		doc, err := tx.Get(ruleRef)
		if status.Code(err) == codes.NotFound {
			return store.ErrNotFound
		}
		if err != nil {
			return fmt.Errorf("failed to look up rule %s: %w", id, err)
		}
		var deleted ruleDoc
		if err := doc.DataTo(&deleted); err != nil {
			return fmt.Errorf("failed to parse rule: %w", err)
		}

		// All reads before any write inside a Firestore transaction.
		referencing, err := tx.Documents(c.Firestore.Collection(transactionsCollection).
			Where("matchedRule", "==", id)).GetAll()
		if err != nil {
			return fmt.Errorf("failed to find referencing transactions: %w", err)
		}
		survivors, err := tx.Documents(c.Firestore.Collection(rulesCollection).
			Where("company", "==", deleted.Company).
			OrderBy("priority", firestore.Asc)).GetAll()
		if err != nil {
			return fmt.Errorf("failed to list remaining rules: %w", err)
		}

		for _, ref := range referencing {
			if err := tx.Update(ref.Ref, []firestore.Update{
				{Path: "matchedRule", Value: ""},
			}); err != nil {
				return fmt.Errorf("failed to clear matched rule reference: %w", err)
			}
		}

		if err := tx.Delete(ruleRef); err != nil {
			return fmt.Errorf("failed to delete rule %s: %w", id, err)
		}

		next := 1
		for _, snap := range survivors {
			if snap.Ref.ID == id {
				continue
			}
			if err := tx.Update(snap.Ref, []firestore.Update{
				{Path: "priority", Value: next},
			}); err != nil {
				return fmt.Errorf("failed to renumber rule %s: %w", snap.Ref.ID, err)
			}
			next++
		}
		return nil
	})
}

// GetRule fetches a rule by ID.
func (c *Client) GetRule(ctx context.Context, id string) (*rules.Rule, error) {
	doc, err := c.Firestore.Collection(rulesCollection).Doc(id).Get(ctx)
	if status.Code(err) == codes.NotFound {
		return nil, store.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to fetch rule %s: %w", id, err)
	}

	var d ruleDoc
	if err := doc.DataTo(&d); err != nil {
		return nil, fmt.Errorf("failed to parse rule: %w", err)
	}
	return d.toDomain()
}

// ListRules returns all rules ordered by ascending priority.
func (c *Client) ListRules(ctx context.Context) ([]*rules.Rule, error) {
	iter := c.Firestore.Collection(rulesCollection).
		OrderBy("priority", firestore.Asc).
		Documents(ctx)
	defer iter.Stop()

	var out []*rules.Rule
	for {
		doc, err := iter.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to iterate rules: %w", err)
		}

		var d ruleDoc
		if err := doc.DataTo(&d); err != nil {
			return nil, fmt.Errorf("failed to parse rule: %w", err)
		}
		rule, err := d.toDomain()
		if err != nil {
			return nil, err
		}
		out = append(out, rule)
	}
	return out, nil
}

// templateDoc is the Firestore shape of a remembered statement layout.
type templateDoc struct {
	BankAccount  string `firestore:"bankAccount"`
	HeaderIndex  int    `firestore:"headerIndex"`
	Mapping      string `firestore:"mapping"`
	DateLayout   string `firestore:"dateLayout"`
	AmountFormat string `firestore:"amountFormat"`
}

// SaveTemplate stores (or replaces) the remembered layout for a bank
// account.
func (c *Client) SaveTemplate(ctx context.Context, tpl *store.Template) error {
	mapping, err := json.Marshal(tpl.Mapping)
	if err != nil {
		return fmt.Errorf("failed to encode column mapping: %w", err)
	}
	_, err = c.Firestore.Collection(templatesCollection).Doc(tpl.BankAccount).Set(ctx, &templateDoc{
		BankAccount:  tpl.BankAccount,
		HeaderIndex:  tpl.HeaderIndex,
		Mapping:      string(mapping),
		DateLayout:   tpl.DateLayout,
		AmountFormat: string(tpl.AmountFormat),
	})
	return err
}

// GetTemplate fetches the remembered layout for a bank account.
func (c *Client) GetTemplate(ctx context.Context, bankAccount string) (*store.Template, error) {
	doc, err := c.Firestore.Collection(templatesCollection).Doc(bankAccount).Get(ctx)
	if status.Code(err) == codes.NotFound {
		return nil, store.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to fetch template for %s: %w", bankAccount, err)
	}

	var d templateDoc
	if err := doc.DataTo(&d); err != nil {
		return nil, fmt.Errorf("failed to parse template: %w", err)
	}
	tpl := &store.Template{
		BankAccount:  d.BankAccount,
		HeaderIndex:  d.HeaderIndex,
		Mapping:      statement.ColumnMapping{},
		DateLayout:   d.DateLayout,
		AmountFormat: domain.AmountFormat(d.AmountFormat),
	}
	if err := json.Unmarshal([]byte(d.Mapping), &tpl.Mapping); err != nil {
		return nil, fmt.Errorf("failed to decode column mapping for %s: %w", bankAccount, err)
	}
	return tpl, nil
}

// importLogDoc is the Firestore shape of one completed import.
type importLogDoc struct {
	ID             string    `firestore:"id"`
	BankAccount    string    `firestore:"bankAccount"`
	StartDate      string    `firestore:"startDate"`
	EndDate        string    `firestore:"endDate"`
	ClosingBalance string    `firestore:"closingBalance"`
	Imported       int       `firestore:"imported"`
	CreatedAt      time.Time `firestore:"createdAt"`
}

// CreateImportLog records one completed statement import.
func (c *Client) CreateImportLog(ctx context.Context, log *domain.ImportLog) error {
	_, err := c.Firestore.Collection(importLogsCollection).Doc(log.ID).Set(ctx, &importLogDoc{
		ID:             log.ID,
		BankAccount:    log.BankAccount,
		StartDate:      log.StartDate,
		EndDate:        log.EndDate,
		ClosingBalance: log.ClosingBalance.String(),
		Imported:       log.Imported,
		CreatedAt:      log.CreatedAt,
	})
	return err
}
