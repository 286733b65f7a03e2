// Package algebra implements the interval canonicalization engine: join_into
// and subtract_from, the continuity test, and the weekly decomposition,
// written once against a small Bag interface so the same logic runs
// against the persistent store or an in-memory working set (the two modes
// the schedule materializer and the validation engine each need).
package algebra

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/rcalendar/msa-rcalendar/internal/domain/calendar"
)

// Bag is the collection an algebra operation mutates. FetchSimilar scopes
// the candidate set to the caller's span; Add/Remove/Update apply the
// resulting mutation. persistentBag talks to calendar.IntervalRepository;
// memoryBag mutates a plain slice held by the schedule materializer while
// it projects a weekly template.
type Bag interface {
	FetchSimilar(ctx context.Context, probe calendar.Interval, start, end time.Time) ([]calendar.Interval, error)
	Add(ctx context.Context, i calendar.Interval) (calendar.Interval, error)
	Remove(ctx context.Context, i calendar.Interval) error
	Update(ctx context.Context, i calendar.Interval) (calendar.Interval, error)
}

// persistentBag is the database-backed Bag used outside the schedule
// materializer: every add/remove/update round-trips the repository.
type persistentBag struct {
	repo calendar.IntervalRepository
}

// NewPersistentBag wraps a repository as a Bag for join_into/subtract_from
// calls operating directly against the store.
func NewPersistentBag(repo calendar.IntervalRepository) Bag {
	return &persistentBag{repo: repo}
}

func (b *persistentBag) FetchSimilar(ctx context.Context, probe calendar.Interval, start, end time.Time) ([]calendar.Interval, error) {
	return b.repo.Similar(ctx, probe, start, end)
}

func (b *persistentBag) Add(ctx context.Context, i calendar.Interval) (calendar.Interval, error) {
	return b.repo.Create(ctx, i)
}

func (b *persistentBag) Remove(ctx context.Context, i calendar.Interval) error {
	return b.repo.Delete(ctx, i.ID)
}

func (b *persistentBag) Update(ctx context.Context, i calendar.Interval) (calendar.Interval, error) {
	return b.repo.Update(ctx, i)
}

// memoryBag is the in-memory working-set Bag the schedule materializer
// uses while projecting a weekly template: no entity has an ID yet, so Add
// assigns a throwaway synthetic one (never written to the store — the
// persistent Create call below always gets a real id back from the
// database), purely so later Update/Remove calls on the same item have a
// stable handle to match against once its span has changed.
type memoryBag struct {
	items *[]calendar.Interval
	seq   int
}

// NewMemoryBag wraps a pointer to a slice as a Bag. The slice is mutated
// in place by every Add/Remove/Update call.
func NewMemoryBag(items *[]calendar.Interval) Bag {
	return &memoryBag{items: items}
}

func (b *memoryBag) FetchSimilar(_ context.Context, probe calendar.Interval, start, end time.Time) ([]calendar.Interval, error) {
	var out []calendar.Interval
	for _, candidate := range *b.items {
		if !candidate.SameIdentity(probe) {
			continue
		}
		if probe.ID != "" && candidate.ID == probe.ID {
			// the probe itself is never its own similar, as in
			// IntervalRepository.Similar
			continue
		}
		if candidate.End.Before(start) || candidate.Start.After(end) {
			continue
		}
		out = append(out, candidate)
	}
	return out, nil
}

func (b *memoryBag) Add(_ context.Context, i calendar.Interval) (calendar.Interval, error) {
	if i.ID == "" {
		b.seq++
		i.ID = fmt.Sprintf("mem-%d", b.seq)
	}
	*b.items = append(*b.items, i)
	return i, nil
}

func (b *memoryBag) Remove(_ context.Context, i calendar.Interval) error {
	items := *b.items
	for idx, candidate := range items {
		if identical(candidate, i) {
			*b.items = append(items[:idx], items[idx+1:]...)
			return nil
		}
	}
	return nil
}

func (b *memoryBag) Update(_ context.Context, i calendar.Interval) (calendar.Interval, error) {
	items := *b.items
	for idx, candidate := range items {
		if identical(candidate, i) {
			items[idx] = i
			return i, nil
		}
	}
	return i, nil
}

// identical compares by ID when both carry one (persisted rows echoed into
// memory mode), else by value (freshly-built in-memory intervals have no
// ID yet).
func identical(a, b calendar.Interval) bool {
	if a.ID != "" || b.ID != "" {
		return a.ID == b.ID
	}
	return a.ResourceID == b.ResourceID && a.Kind == b.Kind && a.Start.Equal(b.Start) && a.End.Equal(b.End)
}

// sortByStart orders items by start. Nothing calls it at present: the
// schedule materializer sorts its own working set with sort.Slice before
// re-merging with persisted neighbors (§4E.8).
func sortByStart(items []calendar.Interval) {
	sort.Slice(items, func(i, j int) bool { return items[i].Start.Before(items[j].Start) })
}
