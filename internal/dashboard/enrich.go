package dashboard

import (
	"context"
	"fmt"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"solana-rent-reclaim/internal/domain"
)

// DefaultConcurrency bounds in-flight resolver calls per session.
const DefaultConcurrency = 8

// enrich resolves metadata and price for every record of one generation.
// Tasks run on a bounded pool and report over a completion channel; the
// calling goroutine is the only one that dispatches their results.
func (s *Session) enrich(ctx context.Context, epoch uint64, accounts []domain.RawTokenAccount) {
	results := make(chan Event, s.concurrency)

	go func() {
		defer close(results)

		var g errgroup.Group
		g.SetLimit(s.concurrency)

		for i, acc := range accounts {
			if ctx.Err() != nil {
				break
			}
			i, acc := i, acc

			g.Go(func() error {
				defer s.recoverTask("metadata", acc.MintAddress)
				meta := s.metadata.Resolve(ctx, acc.MintAddress)
				results <- MetadataResolved{Epoch: epoch, Index: i, Account: acc.AccountAddress, Metadata: meta}
				return nil
			})
			g.Go(func() error {
				defer s.recoverTask("price", acc.MintAddress)
				p := s.prices.Resolve(ctx, acc.MintAddress)
				results <- PriceResolved{Epoch: epoch, Index: i, Account: acc.AccountAddress, Price: p}
				return nil
			})
		}

		_ = g.Wait()
	}()

	for ev := range results {
		s.dispatch(ev)
	}
}

// recoverTask contains a panicking resolver to its own record.
func (s *Session) recoverTask(kind, mint string) {
	if r := recover(); r != nil {
		s.logger.Error("enrichment task panicked",
			zap.String("kind", kind),
			zap.String("mint", mint),
			zap.Error(fmt.Errorf("%v", r)))
	}
}
