/*
Package report builds the monthly receipts report (PIS/COFINS basis).

PURPOSE:

	For one competency (calendar month), the report shows every
	installment that had ledger movement in the month, how much of that
	movement was recognized against the expected amount (previsto), how
	much was discounted, and how much money actually arrived. Rows roll
	up per unit, per project, and into a grand total.

RULES:

  - Only installments with at least one entry dated inside the
    competency produce a row

  - previsto is capped at what was still outstanding when the month
    began: money received beyond that shows up as variacao, never as
    previsto

  - descontos are reported as non-positive values

  - at every level, previsto + variacao + descontos == recebido, to the
    exact centavo

    Everything is recomputed from the entry history on each call; the
    report never trusts a stored status flag.
*/
package report

import (
	"context"
	"sort"

	"github.com/edifica/obra-engine/finance"
	"github.com/edifica/obra-engine/settlement"
)

// =============================================================================
// ROW SHAPES
// =============================================================================

// Totals is the previsto/variacao/desconto/recebido quadruple every
// level of the report carries.
type Totals struct {
	Previsto finance.Money
	Variacao finance.Money
	Desconto finance.Money
	Recebido finance.Money
}

func (t Totals) add(o Totals) Totals {
	return Totals{
		Previsto: t.Previsto.Add(o.Previsto),
		Variacao: t.Variacao.Add(o.Variacao),
		Desconto: t.Desconto.Add(o.Desconto),
		Recebido: t.Recebido.Add(o.Recebido),
	}
}

// Balanced reports whether the quadruple satisfies the report identity.
func (t Totals) Balanced() bool {
	return t.Previsto.Add(t.Variacao).Add(t.Desconto) == t.Recebido
}

// Row is one installment's movement inside the competency.
type Row struct {
	ProjectID     string
	UnitID        string
	InstallmentID string
	Type          settlement.InstallmentType
	DueDate       finance.Date
	Totals
}

type UnitSubtotal struct {
	ProjectID string
	UnitID    string
	Totals
}

type ProjectSubtotal struct {
	ProjectID string
	Totals
}

// Report is the full competency rollup.
type Report struct {
	Competency finance.Competency
	Rows       []Row
	Units      []UnitSubtotal
	Projects   []ProjectSubtotal
	Total      Totals
}

// =============================================================================
// AGGREGATOR
// =============================================================================

type Aggregator struct {
	store settlement.Store
}

func NewAggregator(store settlement.Store) *Aggregator {
	return &Aggregator{store: store}
}

// Build assembles the report for one competency. Rows are ordered by
// project, unit, due date and schedule position, so repeated calls over
// the same ledger produce identical output.
func (a *Aggregator) Build(ctx context.Context, competency finance.Competency) (*Report, error) {
	installments, err := a.store.AllInstallments(ctx)
	if err != nil {
		return nil, err
	}
	entries, err := a.store.AllEntries(ctx)
	if err != nil {
		return nil, err
	}
	byInstallment := make(map[string][]settlement.LedgerEntry)
	for _, e := range entries {
		byInstallment[e.InstallmentID] = append(byInstallment[e.InstallmentID], e)
	}

	report := &Report{Competency: competency}
	for _, inst := range installments {
		row, ok := buildRow(inst, byInstallment[inst.ID], competency)
		if ok {
			report.Rows = append(report.Rows, row)
		}
	}
	sort.SliceStable(report.Rows, func(i, j int) bool {
		a, b := report.Rows[i], report.Rows[j]
		if a.ProjectID != b.ProjectID {
			return a.ProjectID < b.ProjectID
		}
		if a.UnitID != b.UnitID {
			return a.UnitID < b.UnitID
		}
		if !a.DueDate.Equal(b.DueDate) {
			return a.DueDate.Before(b.DueDate)
		}
		return a.InstallmentID < b.InstallmentID
	})

	rollup(report)
	return report, nil
}

// buildRow applies the competency window to one installment's history.
// The second return is false when the installment had no movement in
// the month.
func buildRow(inst settlement.Installment, history []settlement.LedgerEntry, competency finance.Competency) (Row, bool) {
	start := competency.Start()
	var quitAntes, pagoMes, descMes finance.Money
	for _, e := range history {
		switch {
		case e.Date.Before(start):
			quitAntes = quitAntes.Add(e.Amount)
		case competency.Contains(e.Date):
			if e.Kind == settlement.KindPagamento {
				pagoMes = pagoMes.Add(e.Amount)
			} else {
				descMes = descMes.Add(e.Amount)
			}
		}
	}
	if pagoMes.IsZero() && descMes.IsZero() {
		return Row{}, false
	}

	faltaAntes := inst.Expected.Sub(quitAntes).Max(0)
	quitMes := pagoMes.Add(descMes)

	// Recognition is capped at what was still outstanding when the
	// month began; anything beyond that is variacao.
	previsto := faltaAntes.Min(quitMes)
	desconto := descMes.Neg()
	recebido := pagoMes
	variacao := recebido.Sub(previsto).Sub(desconto)

	return Row{
		ProjectID:     inst.ProjectID,
		UnitID:        inst.UnitID,
		InstallmentID: inst.ID,
		Type:          inst.Type,
		DueDate:       inst.DueDate,
		Totals: Totals{
			Previsto: previsto,
			Variacao: variacao,
			Desconto: desconto,
			Recebido: recebido,
		},
	}, true
}

// rollup fills the unit, project and grand-total levels from the
// already-sorted rows.
func rollup(report *Report) {
	for _, row := range report.Rows {
		report.Total = report.Total.add(row.Totals)

		n := len(report.Units)
		if n == 0 || report.Units[n-1].UnitID != row.UnitID || report.Units[n-1].ProjectID != row.ProjectID {
			report.Units = append(report.Units, UnitSubtotal{ProjectID: row.ProjectID, UnitID: row.UnitID})
			n++
		}
		report.Units[n-1].Totals = report.Units[n-1].Totals.add(row.Totals)

		p := len(report.Projects)
		if p == 0 || report.Projects[p-1].ProjectID != row.ProjectID {
			report.Projects = append(report.Projects, ProjectSubtotal{ProjectID: row.ProjectID})
			p++
		}
		report.Projects[p-1].Totals = report.Projects[p-1].Totals.add(row.Totals)
	}
}
