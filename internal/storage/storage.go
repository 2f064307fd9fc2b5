// Package storage persists completed-task summaries. Write-only: the
// engine records outcomes, it never reads them back.
package storage

import (
	"context"

	"github.com/crossvenue/predictarb/pkg/types"
)

// Store receives one summary per finished task.
type Store interface {
	SaveSummary(ctx context.Context, snap *types.TaskSnapshot) error
	Close() error
}
