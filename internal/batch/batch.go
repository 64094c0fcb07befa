// Package batch drives rule evaluation over submitted transactions the
// way a scheduler tick would: one page at a time, each transaction
// evaluated independently.
package batch

import (
	"context"
	"fmt"
	"log"
	"sync"
	"sync/atomic"

	"github.com/fernbooks/bankrecon/internal/rules"
	"github.com/fernbooks/bankrecon/internal/store"
)

// DefaultPageSize is how many transactions one run picks up.
const DefaultPageSize = 50

// Evaluator matches classification rules against pending transactions
// and writes the outcome back to the store.
type Evaluator struct {
	store    store.Store
	pageSize int
}

// NewEvaluator creates an evaluator over the given store.
func NewEvaluator(s store.Store) *Evaluator {
	return &Evaluator{store: s, pageSize: DefaultPageSize}
}

// Result summarizes one evaluation run.
type Result struct {
	Evaluated int
	Matched   int
	Failed    int
}

// Run evaluates one page of submitted, unreconciled transactions. Rules
// are loaded once per run: every transaction in the page sees the same
// rule snapshot regardless of concurrent rule edits. With force set,
// already evaluated transactions are re-evaluated.
//
// Transactions are independent, so evaluation fans out across
// goroutines. A write-back failure on one transaction never aborts the
// others; it is logged and counted.
func (e *Evaluator) Run(ctx context.Context, force bool) (Result, error) {
	ruleDocs, err := e.store.ListRules(ctx)
	if err != nil {
		return Result{}, fmt.Errorf("failed to load rules: %w", err)
	}

	txns, err := e.store.ListUnreconciled(ctx, e.pageSize, force)
	if err != nil {
		return Result{}, fmt.Errorf("failed to list pending transactions: %w", err)
	}

	var matched, failed int64
	var wg sync.WaitGroup
	for _, txn := range txns {
		txn := txn
		wg.Add(1)
		go func() {
			defer wg.Done()

			matchedRule, ok := rules.Evaluate(txn, ruleDocs)
			if err := e.store.SetRuleEvaluation(ctx, txn.ID, matchedRule); err != nil {
				log.Printf("rule evaluation write-back failed for transaction %s: %v", txn.ID, err)
				atomic.AddInt64(&failed, 1)
				return
			}
			if ok {
				atomic.AddInt64(&matched, 1)
			}
		}()
	}
	wg.Wait()

	return Result{
		Evaluated: len(txns),
		Matched:   int(matched),
		Failed:    int(failed),
	}, nil
}
