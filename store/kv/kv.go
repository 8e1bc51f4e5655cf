/*
Package kv persists engine state as plain records behind a narrow keyed
read/write abstraction.

PURPOSE:

	The engine never assumes a storage technology: everything it keeps is
	a record addressable by a stable key (a unit's schedule, a unit's
	ledger, a project's cost table). Any backend that can read, write,
	delete and enumerate bytes by key can carry the whole system; Memory
	is the in-process implementation used by tests and single-node
	deployments.

KEY LAYOUT:

	units                       -> JSON list of known unit IDs
	unit/{id}/installments      -> JSON list of the unit's installments
	unit/{id}/ledger            -> JSON list of the unit's ledger entries
	tables                      -> JSON list of known project IDs
	table/{projectID}           -> JSON cost allocation table

SEE ALSO:
  - store.go: the typed Store built on top of KV
  - ../sqlite: the relational alternative for durable deployments
*/
package kv

import (
	"context"
	"strings"
	"sync"
)

// KV is the byte-level contract. Get reports absence through the bool,
// never through an error. Keys lists every key with the given prefix,
// in no particular order.
type KV interface {
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Put(ctx context.Context, key string, value []byte) error
	Delete(ctx context.Context, key string) error
	Keys(ctx context.Context, prefix string) ([]string, error)
}

// =============================================================================
// MEMORY KV - in-process implementation (tests, dev)
// =============================================================================

type Memory struct {
	mu   sync.RWMutex
	data map[string][]byte
}

func NewMemory() *Memory {
	return &Memory{data: make(map[string][]byte)}
}

func (m *Memory) Get(_ context.Context, key string) ([]byte, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	v, ok := m.data[key]
	if !ok {
		return nil, false, nil
	}
	out := make([]byte, len(v))
	copy(out, v)
	return out, true, nil
}

func (m *Memory) Put(_ context.Context, key string, value []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	v := make([]byte, len(value))
	copy(v, value)
	m.data[key] = v
	return nil
}

func (m *Memory) Delete(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.data, key)
	return nil
}

func (m *Memory) Keys(_ context.Context, prefix string) ([]string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []string
	for k := range m.data {
		if strings.HasPrefix(k, prefix) {
			out = append(out, k)
		}
	}
	return out, nil
}
