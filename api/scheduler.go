/*
scheduler.go - Background overdue-installment monitor

PURPOSE:

	Periodically scans every schedule for installments past their due
	date that are not yet QUITADA, and publishes the count and the
	outstanding balance as prometheus gauges.

DESIGN:
  - Runs a background goroutine with configurable check interval
  - Status is derived from the ledger on every sweep, never cached
  - Overdue means due date strictly before today and state != QUITADA

CONFIGURATION:
  - CheckInterval: How often to check (default: 1 hour)
  - Enabled: Whether the monitor is active (default: true)

USAGE:

	monitor := NewOverdueMonitor(store, metrics)
	monitor.Start()
	// ... later
	monitor.Stop()

SEE ALSO:
  - metrics.go: Gauge definitions
  - settlement/status.go: Status derivation
*/
package api

import (
	"context"
	"log"
	"sync"
	"time"

	"github.com/edifica/obra-engine/finance"
	"github.com/edifica/obra-engine/settlement"
)

// OverdueMonitor sweeps schedules for overdue installments.
type OverdueMonitor struct {
	Store         Storage
	Metrics       *Metrics
	CheckInterval time.Duration
	Enabled       bool

	ledger *settlement.Ledger
	ticker *time.Ticker
	stop   chan bool
	wg     sync.WaitGroup
	mu     sync.Mutex
}

// NewOverdueMonitor creates a new monitor.
func NewOverdueMonitor(store Storage, metrics *Metrics) *OverdueMonitor {
	return &OverdueMonitor{
		Store:         store,
		Metrics:       metrics,
		CheckInterval: 1 * time.Hour,
		Enabled:       true,
		ledger:        settlement.NewLedger(store),
		stop:          make(chan bool),
	}
}

// Start begins the monitor.
func (om *OverdueMonitor) Start() {
	om.mu.Lock()
	defer om.mu.Unlock()

	if !om.Enabled {
		log.Println("[Monitor] Disabled, not starting")
		return
	}

	om.ticker = time.NewTicker(om.CheckInterval)
	om.wg.Add(1)

	go om.run()

	log.Printf("[Monitor] Started with check interval: %v", om.CheckInterval)
}

// Stop stops the monitor.
func (om *OverdueMonitor) Stop() {
	om.mu.Lock()
	defer om.mu.Unlock()

	if om.ticker != nil {
		om.ticker.Stop()
		close(om.stop)
		om.wg.Wait()
		log.Println("[Monitor] Stopped")
	}
}

func (om *OverdueMonitor) run() {
	defer om.wg.Done()

	// Run immediately on start
	om.sweep()

	for {
		select {
		case <-om.ticker.C:
			om.sweep()
		case <-om.stop:
			return
		}
	}
}

func (om *OverdueMonitor) sweep() {
	ctx := context.Background()
	today := finance.Today()

	installments, err := om.Store.AllInstallments(ctx)
	if err != nil {
		log.Printf("[Monitor] Error listing installments: %v", err)
		return
	}

	count := 0
	var outstanding finance.Money
	statuses := make(map[string]map[string]settlement.Status)

	for _, inst := range installments {
		if !inst.DueDate.Before(today) {
			continue
		}
		unitStatuses, ok := statuses[inst.UnitID]
		if !ok {
			unitStatuses, err = om.ledger.UnitStatuses(ctx, inst.UnitID)
			if err != nil {
				log.Printf("[Monitor] Error deriving statuses for %s: %v", inst.UnitID, err)
				continue
			}
			statuses[inst.UnitID] = unitStatuses
		}
		status := unitStatuses[inst.ID]
		if status.State == settlement.StateQuitada {
			continue
		}
		count++
		outstanding = outstanding.Add(status.Outstanding(inst.Expected))
	}

	om.Metrics.SetOverdue(count, outstanding.Float64())
	log.Printf("[Monitor] Sweep complete: %d overdue, %s outstanding", count, outstanding)
}
