// Package sources contains the per-source normalization boundary: each
// upstream API is wrapped in a client that maps its known response variants
// to the canonical token record at the edge. The aggregation core never sees
// raw upstream shapes.
package sources

import (
	"context"

	"token-pulse/internal/domain"
)

// TokenSource provides normalized token records from one external source.
type TokenSource interface {
	// Name returns the source identifier recorded in Token.Sources.
	Name() string
	// Fetch returns normalized records for the source's configured query.
	// Records missing an address are filtered downstream, not here.
	Fetch(ctx context.Context) ([]*domain.Token, error)
}
