package statement

import (
	"testing"

	"github.com/shopspring/decimal"

	"github.com/fernbooks/bankrecon/internal/domain"
	"github.com/fernbooks/bankrecon/internal/grid"
)

func TestAnalyzeFullPipeline(t *testing.T) {
	g := grid.Grid{
		{grid.Text("Date"), grid.Text("Description"), grid.Text("Withdrawal"), grid.Text("Deposit"), grid.Text("Balance")},
		{grid.Text("01/01/2024"), grid.Text("Opening deposit"), grid.Empty(), grid.Text("40000"), grid.Text("40000")},
		{grid.Text("02/01/2024"), grid.Text("Rent payment"), grid.Text("5000"), grid.Empty(), grid.Text("35000")},
	}

	det := Analyze(g)

	if det.HeaderIndex != 0 {
		t.Errorf("HeaderIndex = %d, want 0", det.HeaderIndex)
	}

	wantMapping := ColumnMapping{
		RoleDate:        0,
		RoleDescription: 1,
		RoleWithdrawal:  2,
		RoleDeposit:     3,
		RoleBalance:     4,
	}
	for role, idx := range wantMapping {
		if got, ok := det.Mapping.Index(role); !ok || got != idx {
			t.Errorf("Mapping[%s] = %d (%v), want %d", role, got, ok, idx)
		}
	}

	if det.StartIndex != 1 || det.EndIndex != 2 {
		t.Errorf("span = [%d, %d], want [1, 2]", det.StartIndex, det.EndIndex)
	}
	if det.Classification.AmountFormat != domain.FormatSeparateColumns {
		t.Errorf("AmountFormat = %s, want %s", det.Classification.AmountFormat, domain.FormatSeparateColumns)
	}

	if len(det.Transactions) != 2 {
		t.Fatalf("Expected 2 transactions, got %d", len(det.Transactions))
	}
	// Ambiguous day/month dates resolve day-first: 02/01 is January 2nd.
	if det.Transactions[0].Date != "2024-01-01" || det.Transactions[1].Date != "2024-01-02" {
		t.Errorf("dates = %s, %s", det.Transactions[0].Date, det.Transactions[1].Date)
	}
	if !det.Transactions[1].Withdrawal.Equal(decimal.NewFromInt(5000)) {
		t.Errorf("Transactions[1].Withdrawal = %s, want 5000", det.Transactions[1].Withdrawal)
	}

	if det.Summary.StartDate != "2024-01-01" || det.Summary.EndDate != "2024-01-02" {
		t.Errorf("summary range = [%s, %s]", det.Summary.StartDate, det.Summary.EndDate)
	}
	if !det.Summary.ClosingBalance.Equal(decimal.NewFromInt(35000)) {
		t.Errorf("ClosingBalance = %s, want 35000", det.Summary.ClosingBalance)
	}
}

func TestAnalyzeFromCSV(t *testing.T) {
	content := []byte("Acme Bank Statement\n" +
		"\n" +
		"Txn Date,Narration,Cr/Dr,Amount,Balance\n" +
		"15/01/2024,Salary credit,Cr,\"50,000.00\",\"50,000.00\"\n" +
		"16/01/2024,ATM withdrawal,Dr,\"2,000.00\",\"48,000.00\"\n")

	g, err := grid.Load(content, ".csv")
	if err != nil {
		t.Fatalf("Load() unexpected error: %v", err)
	}

	det := Analyze(g)

	if det.HeaderIndex != 2 {
		t.Fatalf("HeaderIndex = %d, want 2", det.HeaderIndex)
	}
	if det.Classification.AmountFormat != domain.FormatCrDrInType {
		t.Errorf("AmountFormat = %s, want %s", det.Classification.AmountFormat, domain.FormatCrDrInType)
	}

	if len(det.Transactions) != 2 {
		t.Fatalf("Expected 2 transactions, got %d", len(det.Transactions))
	}
	if !det.Transactions[0].Deposit.Equal(decimal.NewFromInt(50000)) {
		t.Errorf("Cr row deposit = %s, want 50000", det.Transactions[0].Deposit)
	}
	if !det.Transactions[1].Withdrawal.Equal(decimal.NewFromInt(2000)) {
		t.Errorf("Dr row withdrawal = %s, want 2000", det.Transactions[1].Withdrawal)
	}
	if !det.Summary.ClosingBalance.Equal(decimal.NewFromInt(48000)) {
		t.Errorf("ClosingBalance = %s, want 48000", det.Summary.ClosingBalance)
	}
}

func TestAnalyzeWithLayout(t *testing.T) {
	// An unheadered export: the caller supplies the layout a template
	// remembered, including the degenerate header index 0 with data
	// starting right below it.
	g := grid.Grid{
		{grid.Text("Date"), grid.Text("Amount"), grid.Text("Description")},
		{grid.Text("2024-03-01"), grid.Text("-250.00"), grid.Text("Card payment")},
		{grid.Text("2024-03-02"), grid.Text("1000.00"), grid.Text("Refund")},
	}
	mapping := ColumnMapping{RoleDate: 0, RoleAmount: 1, RoleDescription: 2}

	det := AnalyzeWithLayout(g, 0, mapping)

	if len(det.Transactions) != 2 {
		t.Fatalf("Expected 2 transactions, got %d", len(det.Transactions))
	}
	if det.Classification.AmountFormat != domain.FormatPositiveNegative {
		t.Errorf("AmountFormat = %s", det.Classification.AmountFormat)
	}
	if !det.Transactions[0].Withdrawal.Equal(decimal.NewFromInt(250)) {
		t.Errorf("negative amount should normalize to a withdrawal, got %s", det.Transactions[0].Withdrawal)
	}
	if len(det.Columns) != 3 {
		t.Errorf("len(Columns) = %d, want 3", len(det.Columns))
	}
}
