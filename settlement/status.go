package settlement

import "github.com/edifica/obra-engine/finance"

// =============================================================================
// STATUS DERIVATION - pure function of expected amount + ledger history
// =============================================================================

type State string

const (
	StateAberta  State = "ABERTA"
	StateParcial State = "PARCIAL"
	StateQuitada State = "QUITADA"
)

// Status is the derived view of one installment. Quitacao is the sum
// that counts toward settlement: payments plus discounts. Variance is
// only meaningful once the installment is QUITADA; it captures how far
// actual receipts landed from the expected amount (overpayment positive,
// discounted shortfall negative).
type Status struct {
	State    State
	Received finance.Money
	Discount finance.Money
	Quitacao finance.Money
	Variance finance.Money
}

// Outstanding is what would still need to be paid or discounted to
// reach QUITADA. Never negative.
func (s Status) Outstanding(expected finance.Money) finance.Money {
	falta := expected.Sub(s.Quitacao)
	if falta.IsNegative() {
		return 0
	}
	return falta
}

// Derive computes an installment's status from its full entry history.
// The derivation is order-independent: entries only ever accumulate.
func Derive(expected finance.Money, entries []LedgerEntry) Status {
	var st Status
	for _, e := range entries {
		switch e.Kind {
		case KindPagamento:
			st.Received = st.Received.Add(e.Amount)
		case KindDesconto:
			st.Discount = st.Discount.Add(e.Amount)
		}
	}
	st.Quitacao = st.Received.Add(st.Discount)

	switch {
	case st.Quitacao.IsZero() || st.Quitacao.IsNegative():
		st.State = StateAberta
	case expected.IsPositive() && st.Quitacao >= expected:
		st.State = StateQuitada
	default:
		st.State = StateParcial
	}

	if st.State == StateQuitada {
		st.Variance = st.Received.Sub(expected)
	}
	return st
}
