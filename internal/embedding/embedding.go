// Package embedding implements the Embedding Client (spec §4.B): mapping
// a query string to a fixed-dimension vector via an external provider.
package embedding

import (
	"context"
	"fmt"
)

// Client is the contract the Vector Engine depends on: embed(text) → a
// vector of exactly Dimension() length. Implementations are stateless and
// safe for concurrent calls.
type Client interface {
	Embed(ctx context.Context, text string) ([]float32, error)
	Dimension() int
}

// ErrDimensionMismatch is returned when a provider's response vector does
// not match the configured dimension. Per spec §4.B this is fatal for the
// request that triggered it — callers do not retry or pad/truncate.
type ErrDimensionMismatch struct {
	Expected int
	Got      int
}

func (e *ErrDimensionMismatch) Error() string {
	return fmt.Sprintf("embedding: expected dimension %d, got %d", e.Expected, e.Got)
}
