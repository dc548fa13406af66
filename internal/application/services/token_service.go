package services

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/bimakw/token-radar/internal/domain/entities"
	"github.com/bimakw/token-radar/internal/domain/repositories"
	"github.com/bimakw/token-radar/internal/infrastructure/cache"
)

// TokenService provides read access to the registry for the HTTP API
type TokenService struct {
	tokenRepo repositories.TokenRepository
	cache     *cache.Cache
	cacheTTL  time.Duration
	logger    *zap.Logger
}

// NewTokenService creates a new token service. cache may be nil.
func NewTokenService(
	tokenRepo repositories.TokenRepository,
	cache *cache.Cache,
	cacheTTL time.Duration,
	logger *zap.Logger,
) *TokenService {
	return &TokenService{
		tokenRepo: tokenRepo,
		cache:     cache,
		cacheTTL:  cacheTTL,
		logger:    logger,
	}
}

// TokenDTO is the API representation of a discovered token
type TokenDTO struct {
	Address              string                 `json:"address"`
	Name                 string                 `json:"name"`
	Symbol               string                 `json:"symbol"`
	Decimals             uint8                  `json:"decimals"`
	TotalSupply          string                 `json:"total_supply"`
	TotalSupplyFormatted string                 `json:"total_supply_formatted,omitempty"`
	Creator              string                 `json:"creator"`
	DiscoveryMethod      string                 `json:"discovery_method"`
	DiscoveryTx          string                 `json:"discovery_tx,omitempty"`
	FirstSeenBlock       uint64                 `json:"first_seen_block,string"`
	FirstSeenAt          string                 `json:"first_seen_at"`
	Metadata             entities.TokenMetadata `json:"metadata"`
	Market               entities.MarketData    `json:"market"`
}

// TokenListResponse is the API response for token list queries
type TokenListResponse struct {
	Data       []TokenDTO         `json:"data"`
	Pagination PaginationResponse `json:"pagination"`
}

// TokenResponse is the API response for single token queries
type TokenResponse struct {
	Data TokenDTO `json:"data"`
}

// PaginationResponse contains pagination metadata
type PaginationResponse struct {
	Total  int `json:"total"`
	Limit  int `json:"limit"`
	Offset int `json:"offset"`
}

// StatsDTO is the API representation of registry statistics
type StatsDTO struct {
	Total         int            `json:"total"`
	ByMethod      map[string]int `json:"by_method"`
	WithLiquidity int            `json:"with_liquidity"`
	LastUpdate    string         `json:"last_update"`
}

// StatsResponse is the API response for registry statistics
type StatsResponse struct {
	Data StatsDTO `json:"data"`
}

// List returns a page of tokens, newest first
func (s *TokenService) List(ctx context.Context, limit, offset int) (*TokenListResponse, error) {
	cacheKey := fmt.Sprintf("tokens:list:%d:%d", limit, offset)

	var cached TokenListResponse
	if s.cache != nil && s.cache.Get(ctx, cacheKey, &cached) {
		s.logger.Debug("Cache hit", zap.String("key", cacheKey))
		return &cached, nil
	}

	records, err := s.tokenRepo.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list tokens: %w", err)
	}

	page := paginate(records, limit, offset)
	dtos := make([]TokenDTO, len(page))
	for i, r := range page {
		dtos[i] = recordToDTO(r)
	}

	response := &TokenListResponse{
		Data: dtos,
		Pagination: PaginationResponse{
			Total:  len(records),
			Limit:  limit,
			Offset: offset,
		},
	}

	if s.cache != nil {
		s.cache.Set(ctx, cacheKey, response, s.cacheTTL)
	}

	return response, nil
}

// Get returns a single token, nil if the address was never discovered
func (s *TokenService) Get(ctx context.Context, address string) (*TokenResponse, error) {
	address = strings.ToLower(address)

	record, err := s.tokenRepo.Get(ctx, address)
	if err != nil {
		return nil, fmt.Errorf("failed to get token: %w", err)
	}
	if record == nil {
		return nil, nil
	}

	return &TokenResponse{Data: recordToDTO(*record)}, nil
}

// Stats returns aggregate registry counts
func (s *TokenService) Stats(ctx context.Context) (*StatsResponse, error) {
	stats, err := s.tokenRepo.Stats(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get stats: %w", err)
	}

	byMethod := make(map[string]int, len(entities.DiscoveryMethods))
	for _, m := range entities.DiscoveryMethods {
		byMethod[string(m)] = stats.ByMethod[m]
	}

	return &StatsResponse{
		Data: StatsDTO{
			Total:         stats.Total,
			ByMethod:      byMethod,
			WithLiquidity: stats.WithLiquidity,
			LastUpdate:    stats.GeneratedAt.UTC().Format(time.RFC3339),
		},
	}, nil
}

func paginate(records []entities.TokenRecord, limit, offset int) []entities.TokenRecord {
	if offset >= len(records) {
		return nil
	}
	end := len(records)
	if limit > 0 && offset+limit < end {
		end = offset + limit
	}
	return records[offset:end]
}

// recordToDTO converts a registry record to a DTO. Market data stays empty
// until a priced source exists.
func recordToDTO(r entities.TokenRecord) TokenDTO {
	return TokenDTO{
		Address:              r.Address,
		Name:                 r.Name,
		Symbol:               r.Symbol,
		Decimals:             r.Decimals,
		TotalSupply:          r.TotalSupply,
		TotalSupplyFormatted: r.TotalSupplyFormatted,
		Creator:              r.Creator,
		DiscoveryMethod:      string(r.DiscoveryMethod),
		DiscoveryTx:          r.DiscoveryTx,
		FirstSeenBlock:       r.FirstSeenBlock,
		FirstSeenAt:          r.FirstSeenAt.UTC().Format(time.RFC3339),
		Metadata:             r.Metadata,
	}
}
