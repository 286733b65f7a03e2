package algebra

import (
	"context"

	"github.com/rcalendar/msa-rcalendar/internal/domain/calendar"
)

// SubtractFrom removes self's span from every interval similar to self
// (same identity class) found via bag.FetchSimilar, per spec §4C.2:
//
//   - O strictly contains self: split into a left remainder [O.Start,
//     self.Start] (O is shortened) and a right remainder [self.End, O.End]
//     (a new interval is created, inheriting O's identity — organization,
//     manager, comment — never self's).
//   - O overlaps self on the left: O is shortened to end at self.Start.
//   - O overlaps self on the right: O is shortened to start at self.End.
//   - O ⊆ self: O is deleted.
func SubtractFrom(ctx context.Context, bag Bag, self calendar.Interval) ([]calendar.Interval, error) {
	similar, err := bag.FetchSimilar(ctx, self, self.Start, self.End)
	if err != nil {
		return nil, err
	}

	var affected []calendar.Interval
	for _, other := range similar {
		switch {
		case other.Start.Before(self.Start) && other.End.After(self.End):
			left := other
			left.End = self.Start
			if _, err := bag.Update(ctx, left); err != nil {
				return affected, err
			}

			right := other
			right.ID = ""
			right.Start = self.End
			right.End = other.End
			created, err := bag.Add(ctx, right)
			if err != nil {
				return affected, err
			}
			affected = append(affected, left, created)

		case !other.Start.Before(self.Start) && !other.End.After(self.End):
			if err := bag.Remove(ctx, other); err != nil {
				return affected, err
			}

		case other.Start.Before(self.Start):
			// overlaps self on the left edge only
			shortened := other
			shortened.End = self.Start
			if _, err := bag.Update(ctx, shortened); err != nil {
				return affected, err
			}
			affected = append(affected, shortened)

		default:
			// overlaps self on the right edge only
			shortened := other
			shortened.Start = self.End
			if _, err := bag.Update(ctx, shortened); err != nil {
				return affected, err
			}
			affected = append(affected, shortened)
		}
	}
	return affected, nil
}
