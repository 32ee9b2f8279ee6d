package blocks

import (
	"context"
	"sort"
	"strings"

	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"

	"github.com/dukex/leadflow/pkg/dataset"
	"github.com/dukex/leadflow/pkg/models"
)

// runEnrichLead submits one enrichment task per row and polls each to
// completion. The semaphore bounds concurrent submissions; polling runs
// unbounded because status checks are cheap. Results are re-joined to rows by
// index, never by completion order, and merged as new columns named after the
// struct keys. A missing field in one row's result is a nil cell, not an
// error; any transport failure fails the whole block.
func (r *Runner) runEnrichLead(ctx context.Context, params models.EnrichLeadParams, ds *dataset.Dataset) (*dataset.Dataset, error) {
	group, ctx := errgroup.WithContext(ctx)
	sem := semaphore.NewWeighted(r.maxConcurrent)
	results := make([]map[string]any, ds.Len())

	for i := 0; i < ds.Len(); i++ {
		lead := enrichLeadInfo(ds.Row(i))

		group.Go(func() error {
			if err := sem.Acquire(ctx, 1); err != nil {
				return err
			}

			taskID, err := r.client.EnrichLead(ctx, lead, params.Struct, params.ResearchPlan)

			sem.Release(1)

			if err != nil {
				return err
			}

			result, err := r.client.PollTask(ctx, taskID)
			if err != nil {
				return err
			}

			results[i] = result

			return nil
		})
	}

	if err := group.Wait(); err != nil {
		return nil, err
	}

	enriched := ds

	for _, key := range sortedKeys(params.Struct) {
		values := make([]any, len(results))
		for i, result := range results {
			values[i] = extractField(result, key, params.Struct[key])
		}

		withColumn, err := enriched.WithColumn(key, values)
		if err != nil {
			return nil, err
		}

		enriched = withColumn
	}

	return enriched, nil
}

// enrichLeadInfo builds the lead record from a row, dropping nil and
// empty-string cells. List cells collapse to their first element.
func enrichLeadInfo(row map[string]any) map[string]any {
	lead := make(map[string]any, len(row))

	for column, value := range row {
		value = scalarValue(value)
		if value == nil {
			continue
		}

		if s, ok := value.(string); ok && s == "" {
			continue
		}

		lead[column] = value
	}

	return lead
}

// extractField pulls a struct key out of one row's result. The service may
// answer with the column key, the description text, or a different casing of
// the key; list values collapse to their first element.
func extractField(result map[string]any, key, description string) any {
	if result == nil {
		return nil
	}

	value, ok := result[key]

	if (!ok || value == nil) && strings.TrimSpace(description) != "" {
		value = result[description]
	}

	if value == nil {
		for k, v := range result {
			if strings.EqualFold(strings.TrimSpace(k), strings.TrimSpace(key)) {
				value = v

				break
			}
		}
	}

	return scalarValue(value)
}

func scalarValue(value any) any {
	if list, ok := value.([]any); ok {
		if len(list) == 0 {
			return nil
		}

		return list[0]
	}

	return value
}

func sortedKeys(m map[string]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}

	sort.Strings(keys)

	return keys
}
