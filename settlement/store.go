package settlement

import "context"

// =============================================================================
// STORE - persistence contract for schedules and the ledger
// =============================================================================

// Store persists installments and ledger entries. Implementations must
// honor two contracts the engine depends on:
//
//   - AppendEntries is atomic: either every entry in the slice becomes
//     visible or none does. The ledger is append-only; implementations
//     must never expose update or delete.
//   - InstallmentsByUnit returns installments in insertion order, so
//     the orchestrator's due-date sort stays deterministic on ties.
type Store interface {
	// SaveInstallments replaces a unit's schedule. Rejected once the
	// unit has any ledger entry.
	SaveInstallments(ctx context.Context, unitID string, installments []Installment) error
	Installment(ctx context.Context, id string) (*Installment, error)
	InstallmentsByUnit(ctx context.Context, unitID string) ([]Installment, error)
	AllInstallments(ctx context.Context) ([]Installment, error)

	AppendEntries(ctx context.Context, entries []LedgerEntry) error
	EntriesByInstallment(ctx context.Context, installmentID string) ([]LedgerEntry, error)
	EntriesByUnit(ctx context.Context, unitID string) ([]LedgerEntry, error)
	AllEntries(ctx context.Context) ([]LedgerEntry, error)
}
