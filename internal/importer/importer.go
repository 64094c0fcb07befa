// Package importer turns an uploaded statement file into stored bank
// transactions: preview (inference plus conflict check, nothing
// written) and commit (sequential insert and submit per row).
package importer

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/google/uuid"

	"github.com/fernbooks/bankrecon/internal/domain"
	"github.com/fernbooks/bankrecon/internal/grid"
	"github.com/fernbooks/bankrecon/internal/ingest"
	"github.com/fernbooks/bankrecon/internal/statement"
	"github.com/fernbooks/bankrecon/internal/store"
)

// Importer runs statement imports against a store.
type Importer struct {
	store store.Store
}

// New creates an importer over the given store.
func New(s store.Store) *Importer {
	return &Importer{store: s}
}

// Preview is everything the user reviews before committing an import:
// the full inference result and any submitted transactions already in
// the statement's date range.
type Preview struct {
	Detection *statement.Detection

	// Conflicts are submitted transactions on the same bank account
	// whose date falls inside the statement period, inclusive. A
	// non-empty list usually means the statement overlaps an earlier
	// import.
	Conflicts []*domain.BankTransaction
}

// Preview loads a statement file, runs inference, and checks for
// date-range conflicts on the bank account. Nothing is written. When a
// saved template exists for the bank account, its layout overrides the
// detected header and column mapping.
func (im *Importer) Preview(ctx context.Context, content []byte, ext, bankAccount string) (*Preview, error) {
	g, err := grid.Load(content, ext)
	if err != nil {
		return nil, err
	}

	det := im.analyze(ctx, g, bankAccount)

	preview := &Preview{Detection: det}
	if det.Summary.StartDate != "" {
		conflicts, err := im.store.ListSubmittedInRange(ctx, bankAccount, det.Summary.StartDate, det.Summary.EndDate)
		if err != nil {
			return nil, fmt.Errorf("failed to check for conflicting transactions: %w", err)
		}
		preview.Conflicts = conflicts
	}
	return preview, nil
}

// analyze runs inference, preferring a saved template's layout when one
// exists for the bank account.
func (im *Importer) analyze(ctx context.Context, g grid.Grid, bankAccount string) *statement.Detection {
	tpl, err := im.store.GetTemplate(ctx, bankAccount)
	if err != nil {
		// No template (or an unreadable one) falls back to detection.
		return statement.Analyze(g)
	}
	return statement.AnalyzeWithLayout(g, tpl.HeaderIndex, tpl.Mapping)
}

// CommitRequest identifies where committed transactions land.
type CommitRequest struct {
	Company     string
	BankAccount string
	Currency    string

	// RememberLayout saves the detection's layout as the bank account's
	// template after a fully successful commit.
	RememberLayout bool
}

// CommitResult reports how far a commit got.
type CommitResult struct {
	Imported int
	Total    int
	LogID    string
}

// Commit stores one bank transaction per canonical row, inserting and
// submitting sequentially in row order. An error partway through leaves
// the earlier rows imported and submitted: the result reports how many
// made it, and the caller re-previews to resume (already imported rows
// then show up as conflicts). A fully successful commit writes an
// import log.
func (im *Importer) Commit(ctx context.Context, det *statement.Detection, req CommitRequest) (*CommitResult, error) {
	result := &CommitResult{Total: len(det.Transactions)}

	for i, row := range det.Transactions {
		txn, err := domain.NewBankTransaction(
			uuid.NewString(), req.Company, req.BankAccount, row.Date,
			row.Withdrawal, row.Deposit)
		if err != nil {
			return result, fmt.Errorf("row %d is not importable: %w", i, err)
		}
		txn.Description = row.Description
		txn.ReferenceNumber = row.Reference
		txn.Currency = req.Currency

		if err := im.store.Insert(ctx, txn); err != nil {
			return result, fmt.Errorf("failed to import row %d of %d: %w", i+1, result.Total, err)
		}
		if err := im.store.Submit(ctx, txn.ID); err != nil {
			return result, fmt.Errorf("failed to submit row %d of %d: %w", i+1, result.Total, err)
		}
		result.Imported++
	}

	logEntry := &domain.ImportLog{
		ID:             uuid.NewString(),
		BankAccount:    req.BankAccount,
		StartDate:      det.Summary.StartDate,
		EndDate:        det.Summary.EndDate,
		ClosingBalance: det.Summary.ClosingBalance,
		Imported:       result.Imported,
		CreatedAt:      time.Now(),
	}
	if err := im.store.CreateImportLog(ctx, logEntry); err != nil {
		return result, fmt.Errorf("import succeeded but logging failed: %w", err)
	}
	result.LogID = logEntry.ID

	if req.RememberLayout {
		tpl := &store.Template{
			BankAccount:  req.BankAccount,
			HeaderIndex:  det.HeaderIndex,
			Mapping:      det.Mapping,
			DateLayout:   det.Classification.DateLayout,
			AmountFormat: det.Classification.AmountFormat,
		}
		if err := im.store.SaveTemplate(ctx, tpl); err != nil {
			return result, fmt.Errorf("import succeeded but saving the layout template failed: %w", err)
		}
	}

	return result, nil
}

// CommitCandidates imports transactions from a candidate producer (an
// OFX download, a machine-extracted scan) instead of a tabular grid.
// Candidates are resolved and validated up front, then sorted by date
// and committed with the same sequential insert-and-submit semantics as
// Commit, partial completion included. RememberLayout has no effect:
// candidate sources carry no statement layout. A fully successful commit
// writes an import log spanning the candidates' date range.
func (im *Importer) CommitCandidates(ctx context.Context, p ingest.Producer, r io.Reader, req CommitRequest) (*CommitResult, error) {
	candidates, err := p.Produce(ctx, r)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", p.Name(), err)
	}

	result := &CommitResult{Total: len(candidates)}
	// Resolve and validate everything before the first write, so a
	// malformed candidate rejects the whole batch rather than part of it.
	for i := range candidates {
		if err := candidates[i].Resolve(); err != nil {
			return result, fmt.Errorf("candidate %d of %d: %w", i+1, result.Total, err)
		}
		if err := candidates[i].Validate(); err != nil {
			return result, fmt.Errorf("candidate %d of %d: %w", i+1, result.Total, err)
		}
	}
	ingest.SortByDate(candidates)

	for i, c := range candidates {
		txn, err := c.Transaction(uuid.NewString(), req.Company, req.BankAccount, req.Currency)
		if err != nil {
			return result, fmt.Errorf("candidate %d of %d is not importable: %w", i+1, result.Total, err)
		}
		if err := im.store.Insert(ctx, txn); err != nil {
			return result, fmt.Errorf("failed to import candidate %d of %d: %w", i+1, result.Total, err)
		}
		if err := im.store.Submit(ctx, txn.ID); err != nil {
			return result, fmt.Errorf("failed to submit candidate %d of %d: %w", i+1, result.Total, err)
		}
		result.Imported++
	}

	if len(candidates) > 0 {
		logEntry := &domain.ImportLog{
			ID:          uuid.NewString(),
			BankAccount: req.BankAccount,
			StartDate:   candidates[0].Date,
			EndDate:     candidates[len(candidates)-1].Date,
			Imported:    result.Imported,
			CreatedAt:   time.Now(),
		}
		if err := im.store.CreateImportLog(ctx, logEntry); err != nil {
			return result, fmt.Errorf("import succeeded but logging failed: %w", err)
		}
		result.LogID = logEntry.ID
	}

	return result, nil
}
