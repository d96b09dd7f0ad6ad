package ledger

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/khurramrashidd/BharatVotes/internal/alert"
)

// Monitor re-verifies the chain on a fixed interval while the service is
// running and raises an alert on the first violation it sees.
type Monitor struct {
	ledger   *Ledger
	interval time.Duration
	alerts   *alert.Manager

	stopCh chan struct{}
	wg     sync.WaitGroup
}

func NewMonitor(l *Ledger, interval time.Duration, alerts *alert.Manager) *Monitor {
	return &Monitor{
		ledger:   l,
		interval: interval,
		alerts:   alerts,
		stopCh:   make(chan struct{}),
	}
}

func (m *Monitor) Start(ctx context.Context) {
	m.wg.Add(1)
	go m.run(ctx)
}

func (m *Monitor) Stop() {
	close(m.stopCh)
	m.wg.Wait()
}

func (m *Monitor) run(ctx context.Context) {
	defer m.wg.Done()

	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()

	for {
		select {
		case <-m.stopCh:
			return
		case <-ctx.Done():
			return
		case <-ticker.C:
			m.verifyOnce()
		}
	}
}

func (m *Monitor) verifyOnce() {
	report, err := m.ledger.VerifyIntegrity()
	if err != nil {
		slog.Error("periodic verification failed", "error", err)
		return
	}

	if report.Valid {
		slog.Debug("periodic verification passed", "chain_length", report.ChainLength)
		return
	}

	slog.Error("TAMPERING DETECTED in vote ledger",
		"reason", report.Reason,
		"chain_length", report.ChainLength,
	)

	if m.alerts != nil {
		if err := m.alerts.SendIntegrityAlert(report.Reason, report.ChainLength, report.LastBlockHash); err != nil {
			slog.Error("failed to send integrity alert", "error", err)
		}
	}
}
