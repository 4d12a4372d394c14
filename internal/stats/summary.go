package stats

import (
	"fmt"
	"sync"

	"golang.org/x/sync/errgroup"
)

// StatsField selects which scalar to extract from a single-run Vector when
// building a summary sample (spec §4.8 level 2).
type StatsField struct {
	// Name is one of "count", "sum", "average", "stddev", "median". Ignored
	// when UseTile is set.
	Name string
	// Tile selects a percentile tile (0..TileCount-1) when UseTile is set.
	Tile int
	UseTile bool
}

// Extract pulls the configured scalar out of v.
func (f StatsField) Extract(v Vector) (float64, error) {
	if f.UseTile {
		if f.Tile < 0 || f.Tile >= TileCount {
			return 0, fmt.Errorf("stats: tile index %d out of range", f.Tile)
		}
		return v.Tiles[f.Tile], nil
	}
	switch f.Name {
	case "count":
		return float64(v.Count), nil
	case "sum":
		return v.Sum, nil
	case "average", "mean":
		return v.Mean, nil
	case "stddev":
		return v.Stddev, nil
	case "median":
		return v.Median, nil
	default:
		return 0, fmt.Errorf("stats: unknown field %q", f.Name)
	}
}

// Summarize builds a Table[Summary] from k sibling Table[SingleRun]s: for
// each (path_key, field) bucket present in any run, the summary sample is
// the k-vector of field.Extract(run's vector), and the same descriptive
// operator (Compute) is applied to that sample.
//
// Buckets are computed concurrently across independent path keys (spec §5:
// "may use data-parallel execution... no ordering is observable
// externally"); the returned table is still deterministically ordered by
// path key via SortedPathKeys.
func Summarize(runs []*Table[SingleRun], field StatsField) (*Table[Summary], error) {
	pathKeys := unionPathKeys(runs)
	fieldKeys := unionFieldKeys(runs)

	summary := NewTable[Summary]()
	var mu sync.Mutex

	g := new(errgroup.Group)
	for _, pathKey := range pathKeys {
		pathKey := pathKey
		for _, fieldKey := range fieldKeys {
			fieldKey := fieldKey
			g.Go(func() error {
				sample, unit, err := collectSample(runs, pathKey, fieldKey, field)
				if err != nil {
					return err
				}
				if len(sample) == 0 {
					return nil
				}
				v := Compute(unit, sample)

				mu.Lock()
				summary.Set(pathKey, fieldKey, v)
				mu.Unlock()
				return nil
			})
		}
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	return summary, nil
}

func collectSample(runs []*Table[SingleRun], pathKey string, fieldKey FieldKey, field StatsField) ([]float64, Unit, error) {
	sample := make([]float64, 0, len(runs))
	unit := UnitNanoseconds
	haveUnit := false
	for _, run := range runs {
		bucket, ok := run.Buckets[pathKey]
		if !ok {
			continue
		}
		v, ok := bucket[fieldKey]
		if !ok {
			continue
		}
		if haveUnit && v.Unit != unit {
			return nil, unit, fmt.Errorf("stats: %s/%v mixes units %s and %s", pathKey, fieldKey, unit, v.Unit)
		}
		unit = v.Unit
		haveUnit = true
		scalar, err := field.Extract(v)
		if err != nil {
			return nil, unit, err
		}
		sample = append(sample, scalar)
	}
	return sample, unit, nil
}

func unionPathKeys(runs []*Table[SingleRun]) []string {
	seen := make(map[string]struct{})
	var keys []string
	for _, run := range runs {
		for _, k := range run.SortedPathKeys() {
			if _, ok := seen[k]; !ok {
				seen[k] = struct{}{}
				keys = append(keys, k)
			}
		}
	}
	return keys
}

func unionFieldKeys(runs []*Table[SingleRun]) []FieldKey {
	seen := make(map[FieldKey]struct{})
	var keys []FieldKey
	for _, run := range runs {
		for _, bucket := range run.Buckets {
			for k := range bucket {
				if _, ok := seen[k]; !ok {
					seen[k] = struct{}{}
					keys = append(keys, k)
				}
			}
		}
	}
	return keys
}
