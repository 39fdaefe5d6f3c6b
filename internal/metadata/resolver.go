// Package metadata resolves human-readable token metadata for a mint.
//
// Resolution tries the on-chain Metaplex account first and falls back to the
// static registry when no usable image was found. Failures never reach the
// caller: an empty TokenMetadata means nothing could be resolved.
package metadata

import (
	"context"
	"errors"
	"net/http"

	"go.uber.org/zap"

	"solana-rent-reclaim/internal/domain"
	"solana-rent-reclaim/internal/observability"
	"solana-rent-reclaim/internal/solana"
)

// Resolver resolves metadata for a mint.
type Resolver interface {
	Resolve(ctx context.Context, mint string) domain.TokenMetadata
}

// Service resolves metadata from the chain and the static registry.
type Service struct {
	onchain  *OnChainSource
	registry *Registry
	logger   *zap.Logger
}

// Options contains configuration for creating a Service.
type Options struct {
	RPC        solana.RPCClient
	HTTPClient *http.Client // used for off-chain URI documents
	Registry   *Registry    // may be nil
	Logger     *zap.Logger
}

// NewService creates a new metadata resolver.
func NewService(opts Options) *Service {
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	var onchain *OnChainSource
	if opts.RPC != nil {
		onchain = NewOnChainSource(opts.RPC, opts.HTTPClient)
	}

	return &Service{
		onchain:  onchain,
		registry: opts.Registry,
		logger:   logger,
	}
}

// Resolve returns the best metadata available for mint.
func (s *Service) Resolve(ctx context.Context, mint string) domain.TokenMetadata {
	var meta domain.TokenMetadata

	if s.onchain != nil {
		m, err := s.onchain.Lookup(ctx, mint)
		switch {
		case err == nil:
			meta = m
		case errors.Is(err, domain.ErrNotFound):
			s.logger.Debug("no on-chain metadata", zap.String("mint", mint))
		default:
			s.logger.Warn("on-chain metadata lookup failed", zap.String("mint", mint), zap.Error(err))
		}
	}

	if meta.ImageURL != "" {
		observability.RecordMetadataLookup(string(domain.MetadataSourceOnChain))
		return meta
	}

	entry, err := s.registry.Lookup(mint)
	if err != nil {
		if meta.Empty() {
			observability.RecordMetadataLookup("none")
		} else {
			observability.RecordMetadataLookup(string(meta.Source))
		}
		return meta
	}

	// The registry supplies the image; on-chain name and symbol take precedence.
	reg := entry.Metadata()
	if meta.Name != "" {
		reg.Name = meta.Name
	}
	if meta.Symbol != "" {
		reg.Symbol = meta.Symbol
	}
	reg.IconURI = meta.IconURI

	observability.RecordMetadataLookup(string(domain.MetadataSourceRegistry))
	return reg
}

// Registry returns the static registry, which may be nil.
func (s *Service) Registry() *Registry {
	return s.registry
}

var _ Resolver = (*Service)(nil)
