package source

import (
	"context"

	"github.com/yankesswang/PE-valuation/pkg/pev/types"
)

// Catalog loads the industry/ticker catalog from a specification (e.g., filepath, DSN).
type Catalog interface {
	Load(ctx context.Context, spec any) ([]types.Industry, error)
}
