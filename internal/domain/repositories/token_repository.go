package repositories

import (
	"context"

	"github.com/bimakw/token-radar/internal/domain/entities"
)

// TokenRepository defines the interface for the discovered token registry
type TokenRepository interface {
	// Merge folds a candidate into the record for its address and returns the result.
	// Merge is commutative and idempotent per address.
	Merge(ctx context.Context, candidate entities.TokenRecord) (entities.TokenRecord, error)

	// Get retrieves a record by address
	Get(ctx context.Context, address string) (*entities.TokenRecord, error)

	// Has reports whether an address has been recorded
	Has(ctx context.Context, address string) bool

	// List returns a snapshot sorted by first_seen_at descending
	List(ctx context.Context) ([]entities.TokenRecord, error)

	// Stats computes aggregate counts over the current records
	Stats(ctx context.Context) (*entities.RegistryStats, error)
}
