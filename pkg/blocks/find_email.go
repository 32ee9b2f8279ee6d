package blocks

import (
	"context"

	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"

	"github.com/dukex/leadflow/pkg/dataset"
	"github.com/dukex/leadflow/pkg/models"
)

// FoundEmailColumn is the column added by a find_email block.
const FoundEmailColumn = "found_email"

// runFindEmail looks up an email per row, bounded by the shared concurrency
// limit, and adds a single found_email column (nil where the response carries
// no email). Unlike enrich, nil cells are passed through in the lead record.
// Any individual lookup failure fails the block.
func (r *Runner) runFindEmail(ctx context.Context, params models.FindEmailParams, ds *dataset.Dataset) (*dataset.Dataset, error) {
	group, ctx := errgroup.WithContext(ctx)
	sem := semaphore.NewWeighted(r.maxConcurrent)
	emails := make([]any, ds.Len())

	for i := 0; i < ds.Len(); i++ {
		lead := ds.Row(i)

		group.Go(func() error {
			if err := sem.Acquire(ctx, 1); err != nil {
				return err
			}
			defer sem.Release(1)

			response, err := r.client.FindEmail(ctx, lead, string(params.Mode))
			if err != nil {
				return err
			}

			emails[i] = scalarValue(response["email"])

			return nil
		})
	}

	if err := group.Wait(); err != nil {
		return nil, err
	}

	return ds.WithColumn(FoundEmailColumn, emails)
}
