package algebra

import (
	"context"
	"time"

	"github.com/rcalendar/msa-rcalendar/internal/domain/calendar"
)

// JoinInto canonicalizes self ∪ W, where W is bag.FetchSimilar(self) within
// [self.Start-tol, self.End+tol], fetched again around the widened span
// after every pass that absorbed something. After the call self covers
// every member of W that overlapped or touched it within tol, including
// members that only came within reach once self had grown, and those
// members have been removed from the bag. Returns the (possibly widened)
// interval and whether any widening occurred.
func JoinInto(ctx context.Context, bag Bag, self calendar.Interval, tol time.Duration) (calendar.Interval, bool, error) {
	similar, err := bag.FetchSimilar(ctx, self, self.Start.Add(-tol), self.End.Add(tol))
	if err != nil {
		return self, false, err
	}

	changed := false
	for {
		absorbedAny := false
		for _, other := range similar {
			if absorbs(self, other, tol) {
				self = widen(self, other)
				if err := bag.Remove(ctx, other); err != nil {
					return self, changed, err
				}
				changed = true
				absorbedAny = true
			}
		}
		if !absorbedAny {
			break
		}
		similar, err = bag.FetchSimilar(ctx, self, self.Start.Add(-tol), self.End.Add(tol))
		if err != nil {
			return self, changed, err
		}
	}

	if changed {
		updated, err := bag.Update(ctx, self)
		if err != nil {
			return self, changed, err
		}
		self = updated
	}
	return self, changed, nil
}

// absorbs reports whether other overlaps or touches self within tol, on
// either side, or is fully contained by or fully containing self.
func absorbs(self, other calendar.Interval, tol time.Duration) bool {
	switch {
	case !other.Start.Before(self.Start) && !other.End.After(self.End):
		// other ⊆ self
		return true
	case !self.Start.Before(other.Start) && !self.End.After(other.End):
		// other ⊇ self
		return true
	case touchesLeft(self, other, tol):
		return true
	case touchesRight(self, other, tol):
		return true
	default:
		return false
	}
}

// touchesLeft matches spec §4C.1's left case: other overlaps self's start,
// or ends close enough before self's start to be within tol.
func touchesLeft(self, other calendar.Interval, tol time.Duration) bool {
	if other.Start.Before(self.Start) && other.End.After(self.Start) {
		return true
	}
	if self.Start.After(other.End) && self.Start.Sub(other.End) < tol {
		return true
	}
	return false
}

// touchesRight is the mirror of touchesLeft on self's end.
func touchesRight(self, other calendar.Interval, tol time.Duration) bool {
	if other.End.After(self.End) && other.Start.Before(self.End) {
		return true
	}
	if other.Start.After(self.End) && other.Start.Sub(self.End) < tol {
		return true
	}
	return false
}

// widen returns self extended to cover other's span, leaving every other
// field (identity, kind, comment) untouched.
func widen(self, other calendar.Interval) calendar.Interval {
	if other.Start.Before(self.Start) {
		self.Start = other.Start
	}
	if other.End.After(self.End) {
		self.End = other.End
	}
	return self
}
