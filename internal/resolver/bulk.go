package resolver

import (
	"context"
	"sync"

	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"

	"github.com/wonny/finmetric/internal/contracts"
)

// KeyResult is the outcome for one encoded key. Value 가 nil 이면 absent.
type KeyResult struct {
	Value *decimal.Decimal `json:"value"`
	Error string           `json:"error,omitempty"`
}

// ResolveMany resolves every key concurrently and always returns an entry
// per distinct input key. key 단위 실패는 Error 로 표시되고 batch 는 계속된다.
func (r *Resolver) ResolveMany(ctx context.Context, keys []string, opts Options) (map[string]KeyResult, error) {
	results := make(map[string]KeyResult, len(keys))
	var mu sync.Mutex

	set := func(k string, res KeyResult) {
		mu.Lock()
		results[k] = res
		mu.Unlock()
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(r.workers)

	seen := make(map[string]struct{}, len(keys))
	for _, encoded := range keys {
		if _, dup := seen[encoded]; dup {
			continue
		}
		seen[encoded] = struct{}{}

		g.Go(func() error {
			key, err := contracts.ParseResolutionKey(encoded)
			if err != nil {
				set(encoded, KeyResult{Error: err.Error()})
				return nil
			}

			v, err := r.Resolve(gctx, key, opts)
			if err != nil {
				if ctx.Err() != nil {
					return ctx.Err()
				}
				set(encoded, KeyResult{Error: err.Error()})
				return nil
			}
			set(encoded, KeyResult{Value: v})
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}

	r.logger.WithFields(map[string]interface{}{
		"keys":  len(results),
		"force": opts.ForceUpdate,
		"wait":  opts.Wait,
	}).Info("Bulk resolution finished")

	return results, nil
}
