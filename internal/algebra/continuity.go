package algebra

import (
	"context"
	"time"

	"github.com/rcalendar/msa-rcalendar/internal/domain/calendar"
)

// IsContinuous reports whether qs's union covers [start,end] without gap.
// Per spec §4C.3: fold each interval into an in-memory accumulator with
// join_into(tol=0) — which widens the interval to absorb any accumulator
// member it overlaps or touches, removing those members — then append the
// (possibly widened) interval to the accumulator. The set is continuous
// over [start,end] iff the accumulator collapsed to exactly one interval
// spanning it.
func IsContinuous(ctx context.Context, qs []calendar.Interval, start, end time.Time) (bool, error) {
	var accumulator []calendar.Interval
	bag := NewMemoryBag(&accumulator)

	for _, i := range qs {
		widened, _, err := JoinInto(ctx, bag, i, 0)
		if err != nil {
			return false, err
		}
		if _, err := bag.Add(ctx, widened); err != nil {
			return false, err
		}
	}

	if len(accumulator) != 1 {
		return false, nil
	}
	only := accumulator[0]
	return !only.Start.After(start) && !only.End.Before(end), nil
}
