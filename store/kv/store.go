package kv

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"

	"github.com/edifica/obra-engine/allocation"
	"github.com/edifica/obra-engine/finance"
	"github.com/edifica/obra-engine/settlement"
)

// =============================================================================
// TYPED STORE - settlement.Store and allocation.TableStore over a KV
// =============================================================================

// Store keeps whole-record JSON documents in a KV. Writes that span
// multiple keys (AppendEntries across units) snapshot the affected
// records first and restore them if any Put fails, so a batch is never
// half-visible.
type Store struct {
	kv KV
}

func New(kv KV) *Store {
	return &Store{kv: kv}
}

const (
	keyUnits  = "units"
	keyTables = "tables"
)

func keyInstallments(unitID string) string { return "unit/" + unitID + "/installments" }
func keyLedger(unitID string) string       { return "unit/" + unitID + "/ledger" }
func keyTable(projectID string) string     { return "table/" + projectID }

func (s *Store) getJSON(ctx context.Context, key string, out any) (bool, error) {
	raw, ok, err := s.kv.Get(ctx, key)
	if err != nil || !ok {
		return ok, err
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return true, fmt.Errorf("decode record %s: %w", key, err)
	}
	return true, nil
}

func (s *Store) putJSON(ctx context.Context, key string, v any) error {
	raw, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encode record %s: %w", key, err)
	}
	return s.kv.Put(ctx, key, raw)
}

func (s *Store) index(ctx context.Context, key string) ([]string, error) {
	var ids []string
	if _, err := s.getJSON(ctx, key, &ids); err != nil {
		return nil, err
	}
	return ids, nil
}

func (s *Store) addToIndex(ctx context.Context, key, id string) error {
	ids, err := s.index(ctx, key)
	if err != nil {
		return err
	}
	for _, existing := range ids {
		if existing == id {
			return nil
		}
	}
	ids = append(ids, id)
	sort.Strings(ids)
	return s.putJSON(ctx, key, ids)
}

// =============================================================================
// INSTALLMENTS
// =============================================================================

func (s *Store) SaveInstallments(ctx context.Context, unitID string, installments []settlement.Installment) error {
	entries, err := s.EntriesByUnit(ctx, unitID)
	if err != nil {
		return err
	}
	if len(entries) > 0 {
		return fmt.Errorf("%w: unit %s already has ledger entries", finance.ErrAlreadySettled, unitID)
	}
	if err := s.putJSON(ctx, keyInstallments(unitID), installments); err != nil {
		return err
	}
	return s.addToIndex(ctx, keyUnits, unitID)
}

func (s *Store) InstallmentsByUnit(ctx context.Context, unitID string) ([]settlement.Installment, error) {
	var out []settlement.Installment
	if _, err := s.getJSON(ctx, keyInstallments(unitID), &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (s *Store) Installment(ctx context.Context, id string) (*settlement.Installment, error) {
	units, err := s.index(ctx, keyUnits)
	if err != nil {
		return nil, err
	}
	for _, unitID := range units {
		installments, err := s.InstallmentsByUnit(ctx, unitID)
		if err != nil {
			return nil, err
		}
		for i := range installments {
			if installments[i].ID == id {
				return &installments[i], nil
			}
		}
	}
	return nil, fmt.Errorf("%w: installment %s", finance.ErrNotFound, id)
}

func (s *Store) AllInstallments(ctx context.Context) ([]settlement.Installment, error) {
	units, err := s.index(ctx, keyUnits)
	if err != nil {
		return nil, err
	}
	var out []settlement.Installment
	for _, unitID := range units {
		installments, err := s.InstallmentsByUnit(ctx, unitID)
		if err != nil {
			return nil, err
		}
		out = append(out, installments...)
	}
	return out, nil
}

// =============================================================================
// LEDGER - append-only
// =============================================================================

func (s *Store) AppendEntries(ctx context.Context, entries []settlement.LedgerEntry) error {
	if len(entries) == 0 {
		return nil
	}
	// Group by unit so each ledger record is rewritten once.
	byUnit := make(map[string][]settlement.LedgerEntry)
	var unitOrder []string
	for _, e := range entries {
		if _, seen := byUnit[e.UnitID]; !seen {
			unitOrder = append(unitOrder, e.UnitID)
		}
		byUnit[e.UnitID] = append(byUnit[e.UnitID], e)
	}

	// Snapshot the records this batch touches; restore on any failure.
	type saved struct {
		key     string
		raw     []byte
		existed bool
	}
	var snapshots []saved
	for _, unitID := range unitOrder {
		key := keyLedger(unitID)
		raw, ok, err := s.kv.Get(ctx, key)
		if err != nil {
			return err
		}
		snapshots = append(snapshots, saved{key: key, raw: raw, existed: ok})
	}
	rollback := func() {
		for _, snap := range snapshots {
			if snap.existed {
				_ = s.kv.Put(ctx, snap.key, snap.raw)
			} else {
				_ = s.kv.Put(ctx, snap.key, []byte("[]"))
			}
		}
	}

	for _, unitID := range unitOrder {
		existing, err := s.EntriesByUnit(ctx, unitID)
		if err != nil {
			rollback()
			return err
		}
		if err := s.putJSON(ctx, keyLedger(unitID), append(existing, byUnit[unitID]...)); err != nil {
			rollback()
			return err
		}
	}
	return nil
}

func (s *Store) EntriesByUnit(ctx context.Context, unitID string) ([]settlement.LedgerEntry, error) {
	var out []settlement.LedgerEntry
	if _, err := s.getJSON(ctx, keyLedger(unitID), &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (s *Store) EntriesByInstallment(ctx context.Context, installmentID string) ([]settlement.LedgerEntry, error) {
	inst, err := s.Installment(ctx, installmentID)
	if err != nil {
		return nil, err
	}
	all, err := s.EntriesByUnit(ctx, inst.UnitID)
	if err != nil {
		return nil, err
	}
	var out []settlement.LedgerEntry
	for _, e := range all {
		if e.InstallmentID == installmentID {
			out = append(out, e)
		}
	}
	return out, nil
}

func (s *Store) AllEntries(ctx context.Context) ([]settlement.LedgerEntry, error) {
	units, err := s.index(ctx, keyUnits)
	if err != nil {
		return nil, err
	}
	var out []settlement.LedgerEntry
	for _, unitID := range units {
		entries, err := s.EntriesByUnit(ctx, unitID)
		if err != nil {
			return nil, err
		}
		out = append(out, entries...)
	}
	return out, nil
}

// =============================================================================
// COST TABLES
// =============================================================================

func (s *Store) SaveTable(ctx context.Context, table *allocation.CostTable) error {
	if err := s.putJSON(ctx, keyTable(table.ProjectID), table); err != nil {
		return err
	}
	return s.addToIndex(ctx, keyTables, table.ProjectID)
}

func (s *Store) Table(ctx context.Context, projectID string) (*allocation.CostTable, error) {
	var table allocation.CostTable
	ok, err := s.getJSON(ctx, keyTable(projectID), &table)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, fmt.Errorf("%w: cost table for project %s", finance.ErrNotFound, projectID)
	}
	return &table, nil
}

// Projects lists every project with a saved cost table.
func (s *Store) Projects(ctx context.Context) ([]string, error) {
	return s.index(ctx, keyTables)
}

// Units lists every unit with a saved schedule.
func (s *Store) Units(ctx context.Context) ([]string, error) {
	return s.index(ctx, keyUnits)
}

// Reset deletes every record. Scenario loading starts from here.
func (s *Store) Reset(ctx context.Context) error {
	keys, err := s.kv.Keys(ctx, "")
	if err != nil {
		return err
	}
	for _, k := range keys {
		if err := s.kv.Delete(ctx, k); err != nil {
			return err
		}
	}
	return nil
}
