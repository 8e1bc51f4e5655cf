// Package events publishes settlement notifications to downstream
// consumers (accounting exports, dashboards). Publishing is best-effort
// and happens strictly after the ledger write commits: a publish
// failure is logged by the caller, never rolled back into the ledger.
package events

import (
	"time"

	"github.com/shopspring/decimal"
)

// SettlementRecorded is emitted once per orchestrator batch.
type SettlementRecorded struct {
	BatchID    string          `json:"batch_id"`
	UnitID     string          `json:"unit_id"`
	Mode       string          `json:"mode"`
	Entries    int             `json:"entries"`
	Received   decimal.Decimal `json:"received"`
	Discounted decimal.Decimal `json:"discounted"`
	OccurredAt time.Time       `json:"occurred_at"`
}

// Publisher delivers events to a topic.
type Publisher interface {
	Publish(topic string, event any) error
}

// Topic names.
const TopicSettlementRecorded = "settlement_recorded"

// Noop discards all events. Used in tests and when no broker is
// configured.
type Noop struct{}

func (Noop) Publish(string, any) error { return nil }
