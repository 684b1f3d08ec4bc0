package ledger

import (
	"context"

	"github.com/smartdevs17/ayutrace/internal/models"
)

// Anchor mirrors committed ledger entries to an external ledger. Anchoring is
// best effort: the local chain is authoritative and an anchor error never
// undoes or fails an append.
type Anchor interface {
	// Anchor publishes one committed entry
	Anchor(ctx context.Context, entry *models.LedgerEntry) error

	// Name identifies the anchor in logs and metrics
	Name() string

	// Close flushes and releases resources
	Close() error
}

// NoopAnchor discards every entry
type NoopAnchor struct{}

// Anchor does nothing
func (NoopAnchor) Anchor(context.Context, *models.LedgerEntry) error { return nil }

// Name returns "none"
func (NoopAnchor) Name() string { return "none" }

// Close does nothing
func (NoopAnchor) Close() error { return nil }

var _ Anchor = NoopAnchor{}
