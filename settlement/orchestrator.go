/*
Settlement strategies.

PURPOSE:

	The Orchestrator turns a settlement request into a validated batch of
	ledger entries and commits it atomically. Three strategies exist:

	- SettleOne: a payment (optionally closed with a discount) against a
	  single installment.
	- SettleLot: a lump sum applied to a unit's installments of one type,
	  in due-date order. Normal mode only settles installments it can pay
	  in full; discount mode settles an exact count, discounting whatever
	  the money does not cover.
	- SettleUnit: discount-mode settlement of every open installment of a
	  unit, regardless of type. Irreversible in spirit, so it demands a
	  double confirmation.

RULES:
  - All entries of one call share a single batch ID
  - Surplus money is never returned: it lands as an extra PAGAMENTO on
    the last settled installment
  - Planning happens against a snapshot; the write is all-or-nothing

SEE ALSO:
  - status.go: how entries roll up into installment state
  - ledger.go: entry validation on the write path
*/
package settlement

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/edifica/obra-engine/events"
	"github.com/edifica/obra-engine/finance"
)

type Orchestrator struct {
	store     Store
	ledger    *Ledger
	publisher events.Publisher

	// Clock and NewID exist so tests can pin time and IDs.
	Clock func() time.Time
	NewID func() string
}

func NewOrchestrator(store Store, publisher events.Publisher) *Orchestrator {
	if publisher == nil {
		publisher = events.Noop{}
	}
	return &Orchestrator{
		store:     store,
		ledger:    NewLedger(store),
		publisher: publisher,
		Clock:     time.Now,
		NewID:     uuid.NewString,
	}
}

// =============================================================================
// SETTLE ONE - single installment
// =============================================================================

type SettleOneInput struct {
	InstallmentID string
	Amount        finance.Money
	Date          finance.Date

	// WithDiscount closes the installment: whatever the payment leaves
	// outstanding becomes a DESCONTO entry in the same batch.
	WithDiscount bool

	// ConfirmResettle allows paying into an installment that is already
	// QUITADA (an overpayment). Without it the call is rejected.
	ConfirmResettle bool
}

func (o *Orchestrator) SettleOne(ctx context.Context, in SettleOneInput) (*Batch, error) {
	if !in.Amount.IsPositive() {
		return nil, fmt.Errorf("%w: payment of %s", finance.ErrInvalidAmount, in.Amount)
	}
	if in.Date.IsZero() {
		return nil, finance.ErrInvalidDate
	}
	inst, err := o.store.Installment(ctx, in.InstallmentID)
	if err != nil {
		return nil, err
	}
	entries, err := o.store.EntriesByInstallment(ctx, in.InstallmentID)
	if err != nil {
		return nil, err
	}
	before := Derive(inst.Expected, entries)
	if before.State == StateQuitada && !in.ConfirmResettle {
		return nil, fmt.Errorf("%w: installment %s", finance.ErrAlreadySettled, inst.ID)
	}

	batch := o.newBatch(ModeIndividual, inst.UnitID, "PAG-")
	o.appendEntry(batch, inst, KindPagamento, in.Amount, in.Date)
	if in.WithDiscount {
		falta := inst.Expected.Sub(before.Quitacao.Add(in.Amount))
		if falta.IsPositive() {
			o.appendEntry(batch, inst, KindDesconto, falta, in.Date)
		}
	}

	after := Derive(inst.Expected, append(entries, batch.Entries...))
	if before.State != StateQuitada && after.State == StateQuitada {
		batch.Settled = append(batch.Settled, inst.ID)
	}
	return o.commit(ctx, batch)
}

// =============================================================================
// SETTLE LOT - one installment type, due-date order
// =============================================================================

type SettleLotInput struct {
	UnitID string
	Type   InstallmentType
	Amount finance.Money
	Date   finance.Date

	// Discount switches to discount mode: exactly RequiredCount
	// installments are settled, the uncovered remainder discounted.
	Discount      bool
	RequiredCount int
}

func (o *Orchestrator) SettleLot(ctx context.Context, in SettleLotInput) (*Batch, error) {
	if !in.Amount.IsPositive() {
		return nil, fmt.Errorf("%w: payment of %s", finance.ErrInvalidAmount, in.Amount)
	}
	if in.Date.IsZero() {
		return nil, finance.ErrInvalidDate
	}
	if !in.Type.Valid() {
		return nil, fmt.Errorf("%w: unknown installment type %q", finance.ErrNotFound, in.Type)
	}

	candidates, err := o.openCandidates(ctx, in.UnitID, func(i Installment) bool {
		return i.Type == in.Type
	})
	if err != nil {
		return nil, err
	}

	batch := o.newBatch(ModeLot, in.UnitID, "LOTE-")
	if in.Discount {
		if in.RequiredCount <= 0 {
			return nil, fmt.Errorf("%w: required count must be positive", finance.ErrInsufficientCandidates)
		}
		if len(candidates) < in.RequiredCount {
			return nil, &finance.InsufficientCandidatesError{
				Required:  in.RequiredCount,
				Available: len(candidates),
			}
		}
		o.planDiscount(batch, candidates[:in.RequiredCount], in.Amount, in.Date)
	} else {
		if err := o.planNormal(batch, candidates, in.Amount, in.Date); err != nil {
			return nil, err
		}
	}
	return o.commit(ctx, batch)
}

// =============================================================================
// SETTLE UNIT - every open installment, any type
// =============================================================================

type SettleUnitInput struct {
	UnitID string
	Amount finance.Money
	Date   finance.Date

	// Both confirmations are required: discounting a whole unit's
	// outstanding balance cannot be undone.
	Confirm       bool
	ConfirmListed bool
}

func (o *Orchestrator) SettleUnit(ctx context.Context, in SettleUnitInput) (*Batch, error) {
	if !in.Confirm || !in.ConfirmListed {
		return nil, fmt.Errorf("%w: whole-unit settlement", finance.ErrConfirmationRequired)
	}
	if !in.Amount.IsPositive() {
		return nil, fmt.Errorf("%w: payment of %s", finance.ErrInvalidAmount, in.Amount)
	}
	if in.Date.IsZero() {
		return nil, finance.ErrInvalidDate
	}

	candidates, err := o.openCandidates(ctx, in.UnitID, func(Installment) bool { return true })
	if err != nil {
		return nil, err
	}
	if len(candidates) == 0 {
		return nil, &finance.InsufficientCandidatesError{Required: 1, Available: 0}
	}

	batch := o.newBatch(ModeUnit, in.UnitID, "QUITAR-")
	o.planDiscount(batch, candidates, in.Amount, in.Date)
	return o.commit(ctx, batch)
}

// =============================================================================
// PLANNING - pure over the snapshot taken at call time
// =============================================================================

// candidate pairs an installment with its derived state at snapshot time.
type candidate struct {
	inst   Installment
	status Status
}

// openCandidates snapshots a unit's ABERTA and PARCIAL installments
// matching the filter, ordered by due date. Ties keep schedule order,
// so repeated calls settle in the same sequence.
func (o *Orchestrator) openCandidates(ctx context.Context, unitID string, match func(Installment) bool) ([]candidate, error) {
	installments, err := o.store.InstallmentsByUnit(ctx, unitID)
	if err != nil {
		return nil, err
	}
	statuses, err := o.ledger.UnitStatuses(ctx, unitID)
	if err != nil {
		return nil, err
	}
	var out []candidate
	for _, inst := range installments {
		if !match(inst) {
			continue
		}
		st := statuses[inst.ID]
		if st.State == StateQuitada {
			continue
		}
		out = append(out, candidate{inst: inst, status: st})
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].inst.DueDate.Before(out[j].inst.DueDate)
	})
	return out, nil
}

// planNormal walks candidates in order and settles each one the money
// fully covers, stopping at the first it cannot. Surplus lands on the
// last settled installment as an extra PAGAMENTO.
func (o *Orchestrator) planNormal(batch *Batch, candidates []candidate, amount finance.Money, date finance.Date) error {
	remaining := amount
	var last *Installment
	for _, c := range candidates {
		falta := c.status.Outstanding(c.inst.Expected)
		if !falta.IsPositive() {
			continue
		}
		if remaining < falta {
			break
		}
		inst := c.inst
		o.appendEntry(batch, &inst, KindPagamento, falta, date)
		batch.Settled = append(batch.Settled, inst.ID)
		remaining = remaining.Sub(falta)
		last = &inst
	}
	if last == nil {
		return fmt.Errorf("%w: %s does not cover any open installment in full",
			finance.ErrNoSettlableInstallment, amount)
	}
	if remaining.IsPositive() {
		o.appendEntry(batch, last, KindPagamento, remaining, date)
	}
	return nil
}

// planDiscount settles every candidate: payments as far as the money
// goes, discounts for the rest. Surplus lands on the last candidate.
func (o *Orchestrator) planDiscount(batch *Batch, candidates []candidate, amount finance.Money, date finance.Date) {
	remaining := amount
	var last *Installment
	for _, c := range candidates {
		inst := c.inst
		falta := c.status.Outstanding(inst.Expected)
		if falta.IsPositive() {
			pago := remaining.Min(falta)
			if pago.IsPositive() {
				o.appendEntry(batch, &inst, KindPagamento, pago, date)
				remaining = remaining.Sub(pago)
			}
			if desc := falta.Sub(pago); desc.IsPositive() {
				o.appendEntry(batch, &inst, KindDesconto, desc, date)
			}
		}
		batch.Settled = append(batch.Settled, inst.ID)
		last = &inst
	}
	if remaining.IsPositive() && last != nil {
		o.appendEntry(batch, last, KindPagamento, remaining, date)
	}
}

// =============================================================================
// COMMIT - atomic write, then best-effort event
// =============================================================================

func (o *Orchestrator) newBatch(mode Mode, unitID, prefix string) *Batch {
	return &Batch{ID: prefix + o.NewID(), Mode: mode, UnitID: unitID}
}

func (o *Orchestrator) appendEntry(batch *Batch, inst *Installment, kind EntryKind, amount finance.Money, date finance.Date) {
	batch.Entries = append(batch.Entries, LedgerEntry{
		ID:            o.NewID(),
		InstallmentID: inst.ID,
		UnitID:        inst.UnitID,
		Kind:          kind,
		Amount:        amount,
		Date:          date,
		BatchID:       batch.ID,
		CreatedAt:     o.Clock(),
	})
}

func (o *Orchestrator) commit(ctx context.Context, batch *Batch) (*Batch, error) {
	if err := o.ledger.AppendBatch(ctx, batch.Entries); err != nil {
		return nil, err
	}
	// The batch is committed; a publish failure must not surface as a
	// settlement failure.
	_ = o.publisher.Publish(events.TopicSettlementRecorded, events.SettlementRecorded{
		BatchID:    batch.ID,
		UnitID:     batch.UnitID,
		Mode:       string(batch.Mode),
		Entries:    len(batch.Entries),
		Received:   batch.Received().Decimal(),
		Discounted: batch.Discounted().Decimal(),
		OccurredAt: o.Clock(),
	})
	return batch, nil
}
