package payment

import (
	"context"
	"fmt"
	"sync"

	"examledger/pkg/domain"
)

// MemoryLedger is an in-memory Rail. It backs tests and the single-process
// deployment; production deployments substitute a real rail behind the same
// interface.
type MemoryLedger struct {
	mu       sync.Mutex
	balances map[domain.Address]Amount
	unit     Amount
}

// MemoryLedgerOption configures a MemoryLedger.
type MemoryLedgerOption func(*MemoryLedger)

// WithUnit sets the fixed-point scaling factor. Defaults to 1.
func WithUnit(unit Amount) MemoryLedgerOption {
	return func(l *MemoryLedger) {
		if unit > 0 {
			l.unit = unit
		}
	}
}

func NewMemoryLedger(opts ...MemoryLedgerOption) *MemoryLedger {
	l := &MemoryLedger{
		balances: make(map[domain.Address]Amount),
		unit:     1,
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Credit seeds a balance. Test and bootstrap hook; a real rail has its own
// issuance path.
func (l *MemoryLedger) Credit(addr domain.Address, amount Amount) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.balances[addr] += amount
}

func (l *MemoryLedger) TransferFrom(ctx context.Context, from, to domain.Address, amount Amount) error {
	return l.move(from, to, amount)
}

func (l *MemoryLedger) Transfer(ctx context.Context, from, to domain.Address, amount Amount) error {
	return l.move(from, to, amount)
}

func (l *MemoryLedger) move(from, to domain.Address, amount Amount) error {
	if from.IsZero() || to.IsZero() {
		return fmt.Errorf("%w: missing address", ErrTransferRejected)
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.balances[from] < amount {
		return fmt.Errorf("%w: insufficient balance", ErrTransferRejected)
	}
	l.balances[from] -= amount
	l.balances[to] += amount
	return nil
}

func (l *MemoryLedger) BalanceOf(ctx context.Context, addr domain.Address) Amount {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.balances[addr]
}

func (l *MemoryLedger) Unit() Amount { return l.unit }
