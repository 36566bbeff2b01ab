package infra

import (
	"context"

	"posterminal/internal/dto"
)

// DocumentPrinter is the device side of receipt printing.
type DocumentPrinter interface {
	PrintReceipt(ctx context.Context, r *dto.Receipt) error
	PrintCancellation(ctx context.Context, r *dto.CancellationReceipt) error
	PrintZReport(ctx context.Context, z *dto.ZReport) error
}

// GuardedPrinter routes every print through a circuit breaker.
type GuardedPrinter struct {
	next DocumentPrinter
	cb   *CircuitBreaker
}

func NewGuardedPrinter(next DocumentPrinter, cb *CircuitBreaker) *GuardedPrinter {
	return &GuardedPrinter{next: next, cb: cb}
}

func (g *GuardedPrinter) Breaker() *CircuitBreaker { return g.cb }

func (g *GuardedPrinter) PrintReceipt(ctx context.Context, r *dto.Receipt) error {
	return g.cb.Execute(func() error { return g.next.PrintReceipt(ctx, r) })
}

func (g *GuardedPrinter) PrintCancellation(ctx context.Context, r *dto.CancellationReceipt) error {
	return g.cb.Execute(func() error { return g.next.PrintCancellation(ctx, r) })
}

func (g *GuardedPrinter) PrintZReport(ctx context.Context, z *dto.ZReport) error {
	return g.cb.Execute(func() error { return g.next.PrintZReport(ctx, z) })
}
