package importer

import (
	"context"
	"io"
	"strings"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fernbooks/bankrecon/internal/domain"
	"github.com/fernbooks/bankrecon/internal/ingest"
	"github.com/fernbooks/bankrecon/internal/statement"
	"github.com/fernbooks/bankrecon/internal/store/sqlite"
)

var statementCSV = []byte("Date,Description,Withdrawal,Deposit,Balance\n" +
	"01/01/2024,Opening deposit,,40000,40000\n" +
	"02/01/2024,Rent payment,5000,,35000\n")

func setup(t *testing.T) (*Importer, *sqlite.Store) {
	t.Helper()
	s, err := sqlite.Open(context.Background(), ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return New(s), s
}

func TestPreview(t *testing.T) {
	ctx := context.Background()
	im, _ := setup(t)

	preview, err := im.Preview(ctx, statementCSV, ".csv", "HDFC Current")
	require.NoError(t, err)

	det := preview.Detection
	assert.Equal(t, 0, det.HeaderIndex)
	require.Len(t, det.Transactions, 2)
	assert.Equal(t, "2024-01-01", det.Summary.StartDate)
	assert.Equal(t, "2024-01-02", det.Summary.EndDate)
	assert.True(t, det.Summary.ClosingBalance.Equal(decimal.NewFromInt(35000)))
	assert.Empty(t, preview.Conflicts, "fresh store should have no conflicts")
}

func TestPreviewUnsupportedFile(t *testing.T) {
	ctx := context.Background()
	im, _ := setup(t)

	_, err := im.Preview(ctx, []byte("%PDF-1.4"), ".pdf", "HDFC Current")
	assert.Error(t, err)
}

func TestCommitAndConflictDetection(t *testing.T) {
	ctx := context.Background()
	im, s := setup(t)

	preview, err := im.Preview(ctx, statementCSV, ".csv", "HDFC Current")
	require.NoError(t, err)

	result, err := im.Commit(ctx, preview.Detection, CommitRequest{
		Company:     "Acme",
		BankAccount: "HDFC Current",
		Currency:    "INR",
	})
	require.NoError(t, err)
	assert.Equal(t, 2, result.Imported)
	assert.Equal(t, 2, result.Total)
	assert.NotEmpty(t, result.LogID)

	t.Run("committed rows are submitted", func(t *testing.T) {
		txns, err := s.ListSubmittedInRange(ctx, "HDFC Current", "2024-01-01", "2024-01-02")
		require.NoError(t, err)
		assert.Len(t, txns, 2)
		for _, txn := range txns {
			assert.True(t, txn.Submitted)
			assert.Equal(t, "Acme", txn.Company)
			assert.Equal(t, "INR", txn.Currency)
		}
	})

	t.Run("re-previewing the same statement reports conflicts", func(t *testing.T) {
		again, err := im.Preview(ctx, statementCSV, ".csv", "HDFC Current")
		require.NoError(t, err)
		assert.Len(t, again.Conflicts, 2)
	})

	t.Run("other accounts are unaffected", func(t *testing.T) {
		other, err := im.Preview(ctx, statementCSV, ".csv", "ICICI Savings")
		require.NoError(t, err)
		assert.Empty(t, other.Conflicts)
	})
}

func TestCommitPartialCompletion(t *testing.T) {
	ctx := context.Background()
	im, s := setup(t)

	// The second row is unimportable; the commit stops there, leaving
	// the first row stored and submitted.
	det := &statement.Detection{
		Transactions: []domain.CanonicalTransaction{
			{Date: "2024-01-01", Deposit: decimal.NewFromInt(100)},
			{Date: "bad-date", Withdrawal: decimal.NewFromInt(50)},
			{Date: "2024-01-03", Withdrawal: decimal.NewFromInt(25)},
		},
		Summary: domain.StatementSummary{StartDate: "2024-01-01", EndDate: "2024-01-03"},
	}

	result, err := im.Commit(ctx, det, CommitRequest{BankAccount: "HDFC Current"})
	require.Error(t, err)
	assert.Equal(t, 1, result.Imported)
	assert.Equal(t, 3, result.Total)

	stored, listErr := s.ListSubmittedInRange(ctx, "HDFC Current", "2024-01-01", "2024-01-03")
	require.NoError(t, listErr)
	assert.Len(t, stored, 1, "rows before the failure stay imported")
}

func TestCommitRemembersLayout(t *testing.T) {
	ctx := context.Background()
	im, s := setup(t)

	preview, err := im.Preview(ctx, statementCSV, ".csv", "HDFC Current")
	require.NoError(t, err)

	_, err = im.Commit(ctx, preview.Detection, CommitRequest{
		BankAccount:    "HDFC Current",
		RememberLayout: true,
	})
	require.NoError(t, err)

	tpl, err := s.GetTemplate(ctx, "HDFC Current")
	require.NoError(t, err)
	assert.Equal(t, preview.Detection.HeaderIndex, tpl.HeaderIndex)
	assert.Equal(t, preview.Detection.Mapping, tpl.Mapping)
	assert.Equal(t, domain.FormatSeparateColumns, tpl.AmountFormat)

	t.Run("saved layout drives the next preview", func(t *testing.T) {
		again, err := im.Preview(ctx, statementCSV, ".csv", "HDFC Current")
		require.NoError(t, err)
		assert.Equal(t, tpl.HeaderIndex, again.Detection.HeaderIndex)
		assert.Len(t, again.Detection.Transactions, 2)
	})
}

type stubProducer struct {
	candidates []ingest.Candidate
	err        error
}

func (p stubProducer) Name() string { return "stub" }

func (p stubProducer) Produce(context.Context, io.Reader) ([]ingest.Candidate, error) {
	return p.candidates, p.err
}

func TestCommitCandidates(t *testing.T) {
	ctx := context.Background()
	im, s := setup(t)

	// File-ordered out of date order; the second carries only raw amount
	// text and resolves during the commit.
	producer := stubProducer{candidates: []ingest.Candidate{
		{Date: "2024-02-10", Description: "Rent", Type: domain.TypeWithdrawal,
			Amount: decimal.NewNullDecimal(decimal.NewFromInt(5000))},
		{Date: "2024-02-01", Description: "Salary", StringAmount: "40,000.00 Cr"},
	}}

	result, err := im.CommitCandidates(ctx, producer, strings.NewReader(""), CommitRequest{
		Company:     "Acme",
		BankAccount: "HDFC Current",
		Currency:    "INR",
	})
	require.NoError(t, err)
	assert.Equal(t, 2, result.Imported)
	assert.Equal(t, 2, result.Total)
	assert.NotEmpty(t, result.LogID)

	stored, err := s.ListSubmittedInRange(ctx, "HDFC Current", "2024-02-01", "2024-02-10")
	require.NoError(t, err)
	require.Len(t, stored, 2)

	salary := stored[0]
	if salary.Description != "Salary" {
		salary = stored[1]
	}
	assert.True(t, salary.Submitted)
	assert.Equal(t, "2024-02-01", salary.Date)
	assert.Equal(t, domain.TypeDeposit, salary.Type())
	assert.True(t, salary.Deposit.Equal(decimal.NewFromInt(40000)))
	assert.Equal(t, "Acme", salary.Company)
	assert.Equal(t, "INR", salary.Currency)
}

func TestCommitCandidatesFromOFX(t *testing.T) {
	ctx := context.Background()
	im, s := setup(t)

	result, err := im.CommitCandidates(ctx, ingest.OFX{}, strings.NewReader(bankDownloadOFX), CommitRequest{
		BankAccount: "Checking 9876",
		Currency:    "USD",
	})
	require.NoError(t, err)
	assert.Equal(t, 2, result.Imported)
	assert.NotEmpty(t, result.LogID)

	stored, err := s.ListSubmittedInRange(ctx, "Checking 9876", "2024-01-05", "2024-01-15")
	require.NoError(t, err)
	assert.Len(t, stored, 2)
}

func TestCommitCandidatesRejectsIncomplete(t *testing.T) {
	ctx := context.Background()
	im, s := setup(t)

	producer := stubProducer{candidates: []ingest.Candidate{
		{Date: "2024-02-01", Description: "Complete", Type: domain.TypeDeposit,
			Amount: decimal.NewNullDecimal(decimal.NewFromInt(100))},
		{Date: "2024-02-02", Description: "No amount at all"},
	}}

	result, err := im.CommitCandidates(ctx, producer, strings.NewReader(""), CommitRequest{
		BankAccount: "HDFC Current",
	})
	require.Error(t, err)
	assert.Equal(t, 0, result.Imported, "a bad candidate rejects the batch before any write")

	stored, listErr := s.ListSubmittedInRange(ctx, "HDFC Current", "2024-01-01", "2024-12-31")
	require.NoError(t, listErr)
	assert.Empty(t, stored)
}

func TestCommitCandidatesProducerFailure(t *testing.T) {
	ctx := context.Background()
	im, _ := setup(t)

	_, err := im.CommitCandidates(ctx, ingest.OFX{}, strings.NewReader("not an ofx document"), CommitRequest{
		BankAccount: "Checking 9876",
	})
	assert.Error(t, err)
}

const bankDownloadOFX = `OFXHEADER:100
DATA:OFXSGML
VERSION:102
SECURITY:NONE
ENCODING:USASCII
CHARSET:1252
COMPRESSION:NONE
OLDFILEUID:NONE
NEWFILEUID:NONE

<OFX>
<SIGNONMSGSRSV1>
<SONRS>
<STATUS>
<CODE>0
<SEVERITY>INFO
</STATUS>
<DTSERVER>20240101120000
<LANGUAGE>ENG
<FI>
<ORG>TESTBANK
<FID>12345
</FI>
</SONRS>
</SIGNONMSGSRSV1>
<BANKMSGSRSV1>
<STMTTRNRS>
<TRNUID>1
<STATUS>
<CODE>0
<SEVERITY>INFO
</STATUS>
<STMTRS>
<CURDEF>USD
<BANKACCTFROM>
<BANKID>123456789
<ACCTID>9876543210
<ACCTTYPE>CHECKING
</BANKACCTFROM>
<BANKTRANLIST>
<DTSTART>20240101000000
<DTEND>20240131235959
<STMTTRN>
<TRNTYPE>CREDIT
<DTPOSTED>20240115120000
<TRNAMT>1000.00
<FITID>TXN002
<NAME>Paycheck
</STMTTRN>
<STMTTRN>
<TRNTYPE>DEBIT
<DTPOSTED>20240105120000
<TRNAMT>-50.00
<FITID>TXN001
<NAME>Card payment
</STMTTRN>
</BANKTRANLIST>
<LEDGERBAL>
<BALAMT>2000.00
<DTASOF>20240131235959
</LEDGERBAL>
</STMTRS>
</STMTTRNRS>
</BANKMSGSRSV1>
</OFX>`
