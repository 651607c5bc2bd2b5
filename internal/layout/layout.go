// Package layout holds chart ordering and grid sizes per page scope.
// Default sizes are versioned: bumping CurrentSizesVersion resets stored sizes
// once while keeping the user's positions.
package layout

import (
	"errors"
	"fmt"
	"slices"

	"finboard/internal/aggregate"
)

// CurrentSizesVersion is the version of defaultSizes.
const CurrentSizesVersion = 3

// Grid bounds.
const (
	GridColumns = 12
	MaxHeight   = 12
)

// Entry is a chart's grid cell. X and Y are user positions and survive a
// defaults reset.
type Entry struct {
	W int  `json:"w"`
	H int  `json:"h"`
	X *int `json:"x,omitempty"`
	Y *int `json:"y,omitempty"`
}

// State is the persisted layout of one page.
type State struct {
	SizesVersion int              `json:"sizesVersion"`
	Order        []string         `json:"order"`
	Charts       map[string]Entry `json:"charts"`
}

var defaultOrder = []string{
	aggregate.ChartKPIs,
	aggregate.ChartRings,
	aggregate.ChartSankey,
	aggregate.ChartCashFlow,
	aggregate.ChartCategorySpending,
	aggregate.ChartDailySpending,
	aggregate.ChartCategoryTrends,
	aggregate.ChartNeedsWants,
	aggregate.ChartTreemap,
	aggregate.ChartStreamgraph,
	aggregate.ChartCategoryFlow,
	aggregate.ChartPolarBar,
	aggregate.ChartSpendingFunnel,
	aggregate.ChartMonthlyByCategory,
	aggregate.ChartDayOfWeek,
	aggregate.ChartTransactionHistory,
}

var defaultSizes = map[string]Entry{
	aggregate.ChartKPIs:               {W: 12, H: 2},
	aggregate.ChartRings:              {W: 4, H: 4},
	aggregate.ChartSankey:             {W: 8, H: 5},
	aggregate.ChartCashFlow:           {W: 6, H: 4},
	aggregate.ChartCategorySpending:   {W: 6, H: 4},
	aggregate.ChartDailySpending:      {W: 6, H: 3},
	aggregate.ChartCategoryTrends:     {W: 6, H: 4},
	aggregate.ChartNeedsWants:         {W: 4, H: 3},
	aggregate.ChartTreemap:            {W: 8, H: 5},
	aggregate.ChartStreamgraph:        {W: 6, H: 4},
	aggregate.ChartCategoryFlow:       {W: 6, H: 4},
	aggregate.ChartPolarBar:           {W: 4, H: 4},
	aggregate.ChartSpendingFunnel:     {W: 4, H: 4},
	aggregate.ChartMonthlyByCategory:  {W: 6, H: 4},
	aggregate.ChartDayOfWeek:          {W: 6, H: 3},
	aggregate.ChartTransactionHistory: {W: 12, H: 3},
}

// Default returns the layout for a user with nothing stored.
func Default() State {
	s := State{
		SizesVersion: CurrentSizesVersion,
		Order:        slices.Clone(defaultOrder),
		Charts:       make(map[string]Entry, len(defaultSizes)),
	}
	for id, e := range defaultSizes {
		s.Charts[id] = e
	}
	return s
}

// DefaultEntry returns the default cell for a chart id.
func DefaultEntry(chartID string) (Entry, bool) {
	e, ok := defaultSizes[chartID]
	return e, ok
}

// Apply brings a stored layout up to date. Unknown ids are dropped and
// missing ones appended in default order. An outdated SizesVersion takes
// default sizes while keeping stored positions.
func Apply(stored State) State {
	reset := stored.SizesVersion < CurrentSizesVersion
	out := State{
		SizesVersion: CurrentSizesVersion,
		Order:        make([]string, 0, len(defaultOrder)),
		Charts:       make(map[string]Entry, len(defaultSizes)),
	}

	seen := make(map[string]bool, len(defaultOrder))
	for _, id := range stored.Order {
		if _, known := defaultSizes[id]; known && !seen[id] {
			seen[id] = true
			out.Order = append(out.Order, id)
		}
	}
	for _, id := range defaultOrder {
		if !seen[id] {
			out.Order = append(out.Order, id)
		}
	}

	for id, def := range defaultSizes {
		cur, ok := stored.Charts[id]
		switch {
		case !ok:
			out.Charts[id] = def
		case reset:
			out.Charts[id] = Entry{W: def.W, H: def.H, X: cur.X, Y: cur.Y}
		default:
			out.Charts[id] = clamp(cur, def)
		}
	}
	return out
}

func clamp(e, def Entry) Entry {
	if e.W < 1 || e.W > GridColumns {
		e.W = def.W
	}
	if e.H < 1 || e.H > MaxHeight {
		e.H = def.H
	}
	return e
}

var ErrInvalidLayout = errors.New("invalid layout")

// Validate rejects layouts a client should not be able to save.
func Validate(s State) error {
	var errs []error
	for id, e := range s.Charts {
		if _, known := defaultSizes[id]; !known {
			errs = append(errs, fmt.Errorf("unknown chart %q", id))
			continue
		}
		if e.W < 1 || e.W > GridColumns {
			errs = append(errs, fmt.Errorf("chart %q: width %d outside 1..%d", id, e.W, GridColumns))
		}
		if e.H < 1 || e.H > MaxHeight {
			errs = append(errs, fmt.Errorf("chart %q: height %d outside 1..%d", id, e.H, MaxHeight))
		}
		if (e.X != nil && *e.X < 0) || (e.Y != nil && *e.Y < 0) {
			errs = append(errs, fmt.Errorf("chart %q: negative position", id))
		}
	}
	if len(errs) > 0 {
		return fmt.Errorf("%w: %w", ErrInvalidLayout, errors.Join(errs...))
	}
	return nil
}
