/*
Ledger append and derived reads.

PURPOSE:

	Ledger is the only write path into the entry history. It validates
	every entry before handing the batch to the store, so malformed
	records can never reach persistence (fail closed: one bad entry
	rejects the whole batch).

RULES:
  - Amount must be strictly positive for both kinds
  - Kind must be PAGAMENTO or DESCONTO
  - Date must be a real calendar date
  - The referenced installment must exist
*/
package settlement

import (
	"context"
	"fmt"

	"github.com/edifica/obra-engine/finance"
)

type Ledger struct {
	store Store
}

func NewLedger(store Store) *Ledger {
	return &Ledger{store: store}
}

// AppendBatch validates and atomically persists a batch of entries.
func (l *Ledger) AppendBatch(ctx context.Context, entries []LedgerEntry) error {
	if len(entries) == 0 {
		return fmt.Errorf("%w: empty batch", finance.ErrInvalidAmount)
	}
	for i, e := range entries {
		if err := l.validate(ctx, e); err != nil {
			return fmt.Errorf("entry %d: %w", i, err)
		}
	}
	return l.store.AppendEntries(ctx, entries)
}

func (l *Ledger) validate(ctx context.Context, e LedgerEntry) error {
	if !e.Kind.Valid() {
		return fmt.Errorf("%w: unknown entry kind %q", finance.ErrInvalidAmount, e.Kind)
	}
	if !e.Amount.IsPositive() {
		return fmt.Errorf("%w: %s of %s", finance.ErrInvalidAmount, e.Kind, e.Amount)
	}
	if e.Date.IsZero() {
		return finance.ErrInvalidDate
	}
	if e.InstallmentID == "" {
		return fmt.Errorf("%w: entry without installment", finance.ErrNotFound)
	}
	inst, err := l.store.Installment(ctx, e.InstallmentID)
	if err != nil {
		return err
	}
	if inst.UnitID != e.UnitID {
		return fmt.Errorf("%w: entry unit %q does not match installment unit %q",
			finance.ErrInvalidAmount, e.UnitID, inst.UnitID)
	}
	return nil
}

// Entries returns the full history of one installment, oldest first.
func (l *Ledger) Entries(ctx context.Context, installmentID string) ([]LedgerEntry, error) {
	return l.store.EntriesByInstallment(ctx, installmentID)
}

// Status loads an installment and derives its current state.
func (l *Ledger) Status(ctx context.Context, installmentID string) (Status, error) {
	inst, err := l.store.Installment(ctx, installmentID)
	if err != nil {
		return Status{}, err
	}
	entries, err := l.store.EntriesByInstallment(ctx, installmentID)
	if err != nil {
		return Status{}, err
	}
	return Derive(inst.Expected, entries), nil
}

// UnitStatuses derives the status of every installment of a unit,
// keyed by installment ID.
func (l *Ledger) UnitStatuses(ctx context.Context, unitID string) (map[string]Status, error) {
	installments, err := l.store.InstallmentsByUnit(ctx, unitID)
	if err != nil {
		return nil, err
	}
	entries, err := l.store.EntriesByUnit(ctx, unitID)
	if err != nil {
		return nil, err
	}
	byInstallment := make(map[string][]LedgerEntry)
	for _, e := range entries {
		byInstallment[e.InstallmentID] = append(byInstallment[e.InstallmentID], e)
	}
	statuses := make(map[string]Status, len(installments))
	for _, inst := range installments {
		statuses[inst.ID] = Derive(inst.Expected, byInstallment[inst.ID])
	}
	return statuses, nil
}
