/*
Package settlement manages installment schedules and their append-only
payment ledger.

PURPOSE:

	Each unit of a development carries a schedule of installments
	(entrada, mensais, semestrais, anuais, ...). Money received against
	an installment is never stored as mutable state: every payment and
	every discount is an immutable LedgerEntry, and the installment's
	status (ABERTA, PARCIAL, QUITADA) is derived from the entry history
	on every read.

KEY CONCEPTS IN THIS FILE (types.go):
  - InstallmentType: the schedule category an installment belongs to
  - Installment: an expected receivable with a due date
  - LedgerEntry: an immutable PAGAMENTO or DESCONTO record
  - Batch: the set of entries produced by one orchestrator call

DESIGN PRINCIPLES:
 1. Append-only: entries are written once and never updated or deleted
 2. Derived state: status is a pure function of expected amount + entries
 3. Atomicity: a batch commits as a whole or not at all
 4. Centavo precision: amounts are finance.Money (int64 centavos)

SEE ALSO:
  - status.go: status derivation from the ledger
  - ledger.go: validated append and per-installment reads
  - orchestrator.go: the three settlement strategies
  - plan.go: schedule generation
*/
package settlement

import (
	"time"

	"github.com/edifica/obra-engine/finance"
)

// =============================================================================
// INSTALLMENT - an expected receivable
// =============================================================================

type InstallmentType string

const (
	TypeEntrada       InstallmentType = "Entrada"
	TypeMensal        InstallmentType = "Mensal"
	TypeSemestral     InstallmentType = "Semestral"
	TypeAnual         InstallmentType = "Anual"
	TypeUnica         InstallmentType = "Única"
	TypeFinanciamento InstallmentType = "Financiamento"
	TypeOutras        InstallmentType = "Outras"
)

// InstallmentTypes lists every valid type, in display order.
var InstallmentTypes = []InstallmentType{
	TypeEntrada, TypeMensal, TypeSemestral, TypeAnual,
	TypeUnica, TypeFinanciamento, TypeOutras,
}

func (t InstallmentType) Valid() bool {
	for _, known := range InstallmentTypes {
		if t == known {
			return true
		}
	}
	return false
}

// Installment is an expected receivable for a unit. Expected is fixed at
// creation; what has actually been received lives in the ledger.
type Installment struct {
	ID        string
	ProjectID string
	UnitID    string
	Type      InstallmentType
	Sequence  int // position within the unit's schedule, insertion order
	Expected  finance.Money
	DueDate   finance.Date

	CreatedAt time.Time
}

// =============================================================================
// LEDGER ENTRY - an immutable payment or discount record
// =============================================================================

type EntryKind string

const (
	KindPagamento EntryKind = "PAGAMENTO"
	KindDesconto  EntryKind = "DESCONTO"
)

func (k EntryKind) Valid() bool { return k == KindPagamento || k == KindDesconto }

// LedgerEntry records money received (PAGAMENTO) or receivable forgiven
// (DESCONTO) against one installment. Amount is always positive; the
// kind carries the sign of the business meaning.
type LedgerEntry struct {
	ID            string
	InstallmentID string
	UnitID        string
	Kind          EntryKind
	Amount        finance.Money
	Date          finance.Date // the business date of the payment
	BatchID       string       // shared by all entries of one orchestrator call

	CreatedAt time.Time
}

// =============================================================================
// BATCH - the outcome of one orchestrator call
// =============================================================================

// Mode identifies which settlement strategy produced a batch.
type Mode string

const (
	ModeIndividual Mode = "INDIVIDUAL"
	ModeLot        Mode = "LOTE"
	ModeUnit       Mode = "QUITAR"
)

// Batch is the committed result of a settlement call: every entry it
// wrote, plus totals for reporting back to the caller.
type Batch struct {
	ID      string
	Mode    Mode
	UnitID  string
	Entries []LedgerEntry

	// Settled lists the installment IDs whose status reached QUITADA
	// as a consequence of this batch.
	Settled []string
}

// Received sums the batch's PAGAMENTO entries.
func (b Batch) Received() finance.Money {
	var sum finance.Money
	for _, e := range b.Entries {
		if e.Kind == KindPagamento {
			sum = sum.Add(e.Amount)
		}
	}
	return sum
}

// Discounted sums the batch's DESCONTO entries.
func (b Batch) Discounted() finance.Money {
	var sum finance.Money
	for _, e := range b.Entries {
		if e.Kind == KindDesconto {
			sum = sum.Add(e.Amount)
		}
	}
	return sum
}
