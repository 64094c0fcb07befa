package ingest

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/aclindsa/ofxgo"
	"github.com/shopspring/decimal"

	"github.com/fernbooks/bankrecon/internal/domain"
)

// OFX produces candidates from OFX/QFX downloads. The struct is
// stateless and safe for concurrent use.
type OFX struct{}

var _ Producer = OFX{}

// Name identifies the producer.
func (OFX) Name() string {
	return "ofx"
}

// CanProduce reports whether the content looks like an OFX document,
// checking for the v1 SGML and v2 XML header markers.
func (OFX) CanProduce(header []byte) bool {
	h := strings.ToUpper(string(header))
	return strings.Contains(h, "OFXHEADER") ||
		strings.Contains(h, "<?OFX") ||
		strings.Contains(h, "<OFX>")
}

// Produce parses an OFX/QFX document and returns one candidate per
// statement transaction, sorted by date. Bank and credit card
// statements are supported; both carry the same transaction list shape.
func (OFX) Produce(ctx context.Context, r io.Reader) ([]Candidate, error) {
	content, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("failed to read OFX content: %w", err)
	}

	// ofxgo.ParseResponse does not take a context, so cancellation is
	// only observed between the read and the parse.
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	default:
	}

	resp, err := ofxgo.ParseResponse(bytes.NewReader(content))
	if err != nil {
		return nil, fmt.Errorf("failed to parse OFX document (%d bytes): %w", len(content), err)
	}

	var tranList *ofxgo.TransactionList
	switch {
	case len(resp.Bank) > 0:
		stmt, ok := resp.Bank[0].(*ofxgo.StatementResponse)
		if !ok {
			return nil, fmt.Errorf("unexpected bank statement type %T", resp.Bank[0])
		}
		tranList = stmt.BankTranList
	case len(resp.CreditCard) > 0:
		stmt, ok := resp.CreditCard[0].(*ofxgo.CCStatementResponse)
		if !ok {
			return nil, fmt.Errorf("unexpected credit card statement type %T", resp.CreditCard[0])
		}
		tranList = stmt.BankTranList
	default:
		return nil, fmt.Errorf("no bank or credit card statement found in OFX document")
	}
	if tranList == nil {
		return nil, fmt.Errorf("statement has no transaction list")
	}

	candidates := make([]Candidate, 0, len(tranList.Transactions))
	for i, txn := range tranList.Transactions {
		c, err := ofxCandidate(txn)
		if err != nil {
			return nil, fmt.Errorf("failed to convert transaction at index %d: %w", i, err)
		}
		candidates = append(candidates, c)
	}

	SortByDate(candidates)
	return candidates, nil
}

func ofxCandidate(txn ofxgo.Transaction) (Candidate, error) {
	date := txn.DtPosted.Time
	if date.IsZero() {
		date = txn.DtUser.Time
	}
	if date.IsZero() {
		return Candidate{}, fmt.Errorf("transaction %s has neither posted nor user date", txn.FiTID)
	}

	description := strings.TrimSpace(txn.Name.String())
	if description == "" {
		description = strings.TrimSpace(txn.Memo.String())
	}

	// OFX amounts are signed rationals; the sign carries the polarity.
	amount, err := decimal.NewFromString(txn.TrnAmt.String())
	if err != nil {
		return Candidate{}, fmt.Errorf("transaction %s has unparseable amount %q: %w", txn.FiTID, txn.TrnAmt, err)
	}
	txnType := domain.TypeDeposit
	if amount.IsNegative() {
		txnType = domain.TypeWithdrawal
	}

	return Candidate{
		Date:        date.Format("2006-01-02"),
		Description: description,
		Type:        txnType,
		Amount:      decimal.NewNullDecimal(amount.Abs()),
	}, nil
}
