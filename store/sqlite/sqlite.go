/*
Package sqlite provides a SQLite-backed implementation of the storage interfaces.

PURPOSE:

	Implements the persistence interfaces (settlement.Store,
	allocation.TableStore) using SQLite. In production the same patterns
	apply to PostgreSQL - only minor SQL dialect differences.

APPEND-ONLY ENFORCEMENT:

	The ledger is append-only:
	- No UPDATE statements on ledger_entries
	- No DELETE statements on ledger_entries
	- Corrections happen through new entries, never edits

KEY TABLES:

	installments:  expected receivables per unit (replaced until ledgered)
	ledger_entries: immutable PAGAMENTO/DESCONTO history
	cost_tables:   one JSON document per project (shares + costs)

AMOUNTS:

	Money columns are INTEGER centavos; weight values travel inside the
	cost-table JSON as fixed-point integers. No REAL column ever touches
	a monetary value.

CONCURRENCY:

	Uses sync.RWMutex for thread-safety. In production with PostgreSQL,
	database-level concurrency control handles this instead.

WAL MODE:

	SQLite is opened with WAL (Write-Ahead Logging) for better concurrency:
	- Multiple readers don't block
	- Single writer at a time
	- Better crash recovery

USAGE:

	store, err := sqlite.New("./data/obra.db")
	if err != nil {
	    log.Fatal(err)
	}
	defer store.Close()

	orch := settlement.NewOrchestrator(store, publisher)

MIGRATION:

	Schema is auto-migrated on New(). For production, use a proper
	migration tool (golang-migrate, goose) with versioned migrations.

SEE ALSO:
  - settlement/store.go: interface definition and contracts
  - store/kv: the keyed-record alternative used in tests
*/
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/edifica/obra-engine/allocation"
	"github.com/edifica/obra-engine/finance"
	"github.com/edifica/obra-engine/settlement"
)

// Store implements settlement.Store and allocation.TableStore.
type Store struct {
	db *sql.DB
	mu sync.RWMutex
}

// New creates a new SQLite store with the given database path.
// Use ":memory:" for an in-memory database.
func New(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_foreign_keys=on&_journal_mode=WAL")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	store := &Store{db: db}
	if err := store.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	return store, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) migrate() error {
	schema := `
	-- Installments (expected receivables)
	CREATE TABLE IF NOT EXISTS installments (
		id TEXT PRIMARY KEY,
		project_id TEXT NOT NULL DEFAULT '',
		unit_id TEXT NOT NULL,
		type TEXT NOT NULL,
		seq INTEGER NOT NULL,
		expected_centavos INTEGER NOT NULL,
		due_date TEXT NOT NULL,
		created_at TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_installments_unit
		ON installments(unit_id, seq);
	CREATE INDEX IF NOT EXISTS idx_installments_unit_type_due
		ON installments(unit_id, type, due_date);

	-- Ledger entries (append-only)
	CREATE TABLE IF NOT EXISTS ledger_entries (
		id TEXT PRIMARY KEY,
		installment_id TEXT NOT NULL,
		unit_id TEXT NOT NULL,
		kind TEXT NOT NULL CHECK (kind IN ('PAGAMENTO', 'DESCONTO')),
		amount_centavos INTEGER NOT NULL CHECK (amount_centavos > 0),
		entry_date TEXT NOT NULL,
		batch_id TEXT,
		created_at TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_entries_installment
		ON ledger_entries(installment_id);
	CREATE INDEX IF NOT EXISTS idx_entries_unit
		ON ledger_entries(unit_id);
	CREATE INDEX IF NOT EXISTS idx_entries_date
		ON ledger_entries(entry_date);
	CREATE INDEX IF NOT EXISTS idx_entries_batch
		ON ledger_entries(batch_id) WHERE batch_id IS NOT NULL;

	-- Cost allocation tables (one JSON document per project)
	CREATE TABLE IF NOT EXISTS cost_tables (
		project_id TEXT PRIMARY KEY,
		table_json TEXT NOT NULL,
		version INTEGER NOT NULL DEFAULT 1,
		updated_at TEXT NOT NULL
	);
	`

	_, err := s.db.Exec(schema)
	return err
}

// =============================================================================
// INSTALLMENTS (settlement.Store)
// =============================================================================

func (s *Store) SaveInstallments(ctx context.Context, unitID string, installments []settlement.Installment) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	var ledgered int
	if err := s.db.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM ledger_entries WHERE unit_id = ?", unitID,
	).Scan(&ledgered); err != nil {
		return err
	}
	if ledgered > 0 {
		return fmt.Errorf("%w: unit %s already has ledger entries", finance.ErrAlreadySettled, unitID)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, "DELETE FROM installments WHERE unit_id = ?", unitID); err != nil {
		return err
	}
	for _, inst := range installments {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO installments (id, project_id, unit_id, type, seq, expected_centavos, due_date, created_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
			inst.ID, inst.ProjectID, inst.UnitID, string(inst.Type), inst.Sequence,
			int64(inst.Expected), inst.DueDate.String(),
			inst.CreatedAt.UTC().Format(time.RFC3339),
		)
		if err != nil {
			return fmt.Errorf("failed to insert installment %s: %w", inst.ID, err)
		}
	}
	return tx.Commit()
}

const installmentColumns = "id, project_id, unit_id, type, seq, expected_centavos, due_date, created_at"

func (s *Store) Installment(ctx context.Context, id string) (*settlement.Installment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	row := s.db.QueryRowContext(ctx,
		"SELECT "+installmentColumns+" FROM installments WHERE id = ?", id)
	inst, err := scanInstallment(row)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("%w: installment %s", finance.ErrNotFound, id)
	}
	if err != nil {
		return nil, err
	}
	return inst, nil
}

func (s *Store) InstallmentsByUnit(ctx context.Context, unitID string) ([]settlement.Installment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.queryInstallments(ctx,
		"SELECT "+installmentColumns+" FROM installments WHERE unit_id = ? ORDER BY seq ASC", unitID)
}

func (s *Store) AllInstallments(ctx context.Context) ([]settlement.Installment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.queryInstallments(ctx,
		"SELECT "+installmentColumns+" FROM installments ORDER BY unit_id ASC, seq ASC")
}

func (s *Store) queryInstallments(ctx context.Context, query string, args ...any) ([]settlement.Installment, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query installments: %w", err)
	}
	defer rows.Close()

	var out []settlement.Installment
	for rows.Next() {
		inst, err := scanInstallment(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *inst)
	}
	return out, rows.Err()
}

type rowScanner interface{ Scan(dest ...any) error }

func scanInstallment(row rowScanner) (*settlement.Installment, error) {
	var (
		inst      settlement.Installment
		typ       string
		expected  int64
		dueDate   string
		createdAt string
	)
	err := row.Scan(&inst.ID, &inst.ProjectID, &inst.UnitID, &typ, &inst.Sequence,
		&expected, &dueDate, &createdAt)
	if err != nil {
		return nil, err
	}
	inst.Type = settlement.InstallmentType(typ)
	inst.Expected = finance.Money(expected)
	inst.DueDate, _ = finance.ParseDate(dueDate)
	inst.CreatedAt, _ = time.Parse(time.RFC3339, createdAt)
	return &inst, nil
}

// =============================================================================
// LEDGER (settlement.Store) - append-only
// =============================================================================

// AppendEntries persists a batch inside one database transaction.
func (s *Store) AppendEntries(ctx context.Context, entries []settlement.LedgerEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	for _, e := range entries {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO ledger_entries (id, installment_id, unit_id, kind, amount_centavos, entry_date, batch_id, created_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
			e.ID, e.InstallmentID, e.UnitID, string(e.Kind),
			int64(e.Amount), e.Date.String(), nullString(e.BatchID),
			e.CreatedAt.UTC().Format(time.RFC3339),
		)
		if err != nil {
			return fmt.Errorf("failed to append entry %s: %w", e.ID, err)
		}
	}
	return tx.Commit()
}

const entryColumns = "id, installment_id, unit_id, kind, amount_centavos, entry_date, batch_id, created_at"

func (s *Store) EntriesByInstallment(ctx context.Context, installmentID string) ([]settlement.LedgerEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.queryEntries(ctx,
		"SELECT "+entryColumns+" FROM ledger_entries WHERE installment_id = ? ORDER BY rowid ASC", installmentID)
}

func (s *Store) EntriesByUnit(ctx context.Context, unitID string) ([]settlement.LedgerEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.queryEntries(ctx,
		"SELECT "+entryColumns+" FROM ledger_entries WHERE unit_id = ? ORDER BY rowid ASC", unitID)
}

func (s *Store) AllEntries(ctx context.Context) ([]settlement.LedgerEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.queryEntries(ctx,
		"SELECT "+entryColumns+" FROM ledger_entries ORDER BY rowid ASC")
}

// EntriesByBatch returns every entry of one settlement call.
func (s *Store) EntriesByBatch(ctx context.Context, batchID string) ([]settlement.LedgerEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.queryEntries(ctx,
		"SELECT "+entryColumns+" FROM ledger_entries WHERE batch_id = ? ORDER BY rowid ASC", batchID)
}

func (s *Store) queryEntries(ctx context.Context, query string, args ...any) ([]settlement.LedgerEntry, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query ledger entries: %w", err)
	}
	defer rows.Close()

	var out []settlement.LedgerEntry
	for rows.Next() {
		var (
			e         settlement.LedgerEntry
			kind      string
			amount    int64
			entryDate string
			batchID   sql.NullString
			createdAt string
		)
		if err := rows.Scan(&e.ID, &e.InstallmentID, &e.UnitID, &kind, &amount,
			&entryDate, &batchID, &createdAt); err != nil {
			return nil, fmt.Errorf("failed to scan ledger entry: %w", err)
		}
		e.Kind = settlement.EntryKind(kind)
		e.Amount = finance.Money(amount)
		e.Date, _ = finance.ParseDate(entryDate)
		e.BatchID = batchID.String
		e.CreatedAt, _ = time.Parse(time.RFC3339, createdAt)
		out = append(out, e)
	}
	return out, rows.Err()
}

// =============================================================================
// COST TABLES (allocation.TableStore)
// =============================================================================

func (s *Store) SaveTable(ctx context.Context, table *allocation.CostTable) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	raw, err := json.Marshal(table)
	if err != nil {
		return fmt.Errorf("failed to encode cost table: %w", err)
	}

	query := `
		INSERT INTO cost_tables (project_id, table_json, version, updated_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(project_id) DO UPDATE SET
			table_json = excluded.table_json,
			version = cost_tables.version + 1,
			updated_at = excluded.updated_at
	`
	_, err = s.db.ExecContext(ctx, query,
		table.ProjectID, string(raw), table.Version,
		time.Now().UTC().Format(time.RFC3339),
	)
	return err
}

func (s *Store) Table(ctx context.Context, projectID string) (*allocation.CostTable, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var raw string
	err := s.db.QueryRowContext(ctx,
		"SELECT table_json FROM cost_tables WHERE project_id = ?", projectID,
	).Scan(&raw)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("%w: cost table for project %s", finance.ErrNotFound, projectID)
	}
	if err != nil {
		return nil, err
	}

	var table allocation.CostTable
	if err := json.Unmarshal([]byte(raw), &table); err != nil {
		return nil, fmt.Errorf("failed to decode cost table %s: %w", projectID, err)
	}
	return &table, nil
}

// Projects lists every project with a saved cost table.
func (s *Store) Projects(ctx context.Context) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx, "SELECT project_id FROM cost_tables ORDER BY project_id")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		out = append(out, id)
	}
	return out, rows.Err()
}

// Units lists every unit with a saved schedule.
func (s *Store) Units(ctx context.Context) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx, "SELECT DISTINCT unit_id FROM installments ORDER BY unit_id")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		out = append(out, id)
	}
	return out, rows.Err()
}

// Reset clears all data (for testing/demo).
func (s *Store) Reset(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, table := range []string{"ledger_entries", "installments", "cost_tables"} {
		if _, err := s.db.ExecContext(ctx, "DELETE FROM "+table); err != nil {
			return err
		}
	}
	return nil
}

func nullString(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}
