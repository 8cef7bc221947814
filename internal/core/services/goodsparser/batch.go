package goodsparser

import (
	"context"
	"runtime"

	"golang.org/x/sync/errgroup"
)

// ParseBatch parses inputs on up to workers goroutines.
// results[i] always corresponds to inputs[i], whatever order the work completes in.
// The only error returned is the context's.
func (p *Parser) ParseBatch(ctx context.Context, inputs []Input, workers int) ([]ParsedRecord, error) {
	if workers <= 0 {
		workers = runtime.NumCPU()
	}

	results := make([]ParsedRecord, len(inputs))
	if len(inputs) == 0 {
		return results, nil
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)

	for i := range inputs {
		if err := gctx.Err(); err != nil {
			break
		}
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			results[i] = p.Parse(inputs[i].Description, inputs[i].Category)
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	return results, nil
}
