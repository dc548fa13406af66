package workers

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"

	"github.com/bimakw/token-radar/internal/infrastructure/cache"
	"github.com/bimakw/token-radar/internal/infrastructure/ethereum"
)

// ErrNotToken marks an address that did not answer the token read-calls
var ErrNotToken = errors.New("address does not look like a token")

const metadataKeyPrefix = "token:meta:"

// TokenInfoReader reads ERC-20 metadata from chain
type TokenInfoReader interface {
	ReadTokenInfo(ctx context.Context, token common.Address) (*ethereum.TokenInfo, error)
}

// verification is the cached outcome of a metadata read
type verification struct {
	Info     *ethereum.TokenInfo `json:"info,omitempty"`
	NotToken bool                `json:"not_token,omitempty"`
}

// Verifier checks whether an address looks like a token, caching answers
type Verifier struct {
	reader      TokenInfoReader
	cache       *cache.Cache
	positiveTTL time.Duration
	negativeTTL time.Duration
	logger      *zap.Logger
}

// NewVerifier creates a new verifier
func NewVerifier(reader TokenInfoReader, c *cache.Cache, positiveTTL, negativeTTL time.Duration, logger *zap.Logger) *Verifier {
	return &Verifier{
		reader:      reader,
		cache:       c,
		positiveTTL: positiveTTL,
		negativeTTL: negativeTTL,
		logger:      logger,
	}
}

// Verify returns the token metadata for address, ErrNotToken when the
// contract does not answer like a token, or a transient error. Transient
// failures are never cached.
func (v *Verifier) Verify(ctx context.Context, address string) (*ethereum.TokenInfo, error) {
	address = strings.ToLower(address)
	if !common.IsHexAddress(address) {
		return nil, ErrNotToken
	}

	result, err := cache.GetOrLoad(ctx, v.cache, metadataKeyPrefix+address, v.ttl,
		func(ctx context.Context) (verification, error) {
			info, err := v.reader.ReadTokenInfo(ctx, common.HexToAddress(address))
			switch {
			case err == nil:
				return verification{Info: info}, nil
			case ethereum.IsNotToken(err):
				v.logger.Debug("Address is not a token",
					zap.String("address", address),
					zap.Error(err),
				)
				return verification{NotToken: true}, nil
			default:
				return verification{}, err
			}
		})
	if err != nil {
		return nil, err
	}

	if result.NotToken || result.Info == nil {
		return nil, ErrNotToken
	}
	return result.Info, nil
}

func (v *Verifier) ttl(result verification) time.Duration {
	if result.NotToken {
		return v.negativeTTL
	}
	return v.positiveTTL
}
