// Package research defines the optional web-research data source. It
// mirrors the fetcher's read-only contract so a real implementation
// can be dropped in later without touching the scoring engine, which
// already treats absent research as a normal missing-data case.
package research

import (
	"context"
	"errors"

	"github.com/defilens/defilens/internal/model"
)

// ErrNoData means the source has nothing for this protocol. Callers
// degrade to a limitation entry, never a failed report.
var ErrNoData = errors.New("research: no data available")

// Source fetches research signals for a protocol by display name.
type Source interface {
	Signals(ctx context.Context, protocolName string) (*model.ResearchSignals, error)
}

// Unavailable is the placeholder source used until a real retrieval
// implementation exists.
type Unavailable struct{}

func (Unavailable) Signals(context.Context, string) (*model.ResearchSignals, error) {
	return nil, ErrNoData
}
