package ingest

import (
	"context"
	"strings"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fernbooks/bankrecon/internal/domain"
)

const syntheticBankOFX = `OFXHEADER:100
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
<NAME>Test Transaction 1
<MEMO>Coffee Shop
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

func TestOFXProduce(t *testing.T) {
	candidates, err := OFX{}.Produce(context.Background(), strings.NewReader(syntheticBankOFX))
	require.NoError(t, err)
	require.Len(t, candidates, 2)

	// Candidates come back date-sorted, not file-ordered.
	first := candidates[0]
	assert.Equal(t, "2024-01-05", first.Date)
	assert.Equal(t, "Test Transaction 1", first.Description)
	assert.Equal(t, domain.TypeWithdrawal, first.Type)
	require.True(t, first.Amount.Valid)
	assert.True(t, first.Amount.Decimal.Equal(decimal.NewFromInt(50)))

	second := candidates[1]
	assert.Equal(t, "2024-01-15", second.Date)
	assert.Equal(t, domain.TypeDeposit, second.Type)
	assert.True(t, second.Amount.Decimal.Equal(decimal.NewFromInt(1000)))

	// Produced candidates are ready to submit as-is.
	for _, c := range candidates {
		assert.NoError(t, c.Validate())
	}
}

func TestOFXProduceInvalidContent(t *testing.T) {
	_, err := OFX{}.Produce(context.Background(), strings.NewReader("not an ofx document"))
	assert.Error(t, err)
}

func TestOFXProduceCancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := OFX{}.Produce(ctx, strings.NewReader(syntheticBankOFX))
	assert.ErrorIs(t, err, context.Canceled)
}

func TestOFXCanProduce(t *testing.T) {
	tests := []struct {
		name   string
		header string
		want   bool
	}{
		{"v1 SGML header", "OFXHEADER:100\nDATA:OFXSGML\n", true},
		{"v2 XML header", "<?xml version=\"1.0\"?><?OFX OFXHEADER=\"200\"?>\n", true},
		{"bare OFX tag", "<OFX><SIGNONMSGSRSV1>", true},
		{"not OFX", "Date,Description,Amount\n", false},
		{"empty", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, OFX{}.CanProduce([]byte(tt.header)))
		})
	}
}
