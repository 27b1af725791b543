// Package rank maps trophy counts to named tiers.
package rank

import (
	"fmt"

	"github.com/okian/raceledger/internal/domain/apperr"
)

// Tier is a named rank with the minimum trophy count required to hold it.
type Tier struct {
	MinTrophies int    `json:"min_trophies"`
	Label       string `json:"label"`
}

// Table is an ordered, immutable set of tiers.
type Table struct {
	tiers []Tier
	index map[string]int
}

// NewTable validates tiers and builds a Table. Thresholds must start at 0 and
// strictly increase, labels must be unique.
func NewTable(tiers []Tier) (*Table, error) {
	const op = "rank.new_table"
	if len(tiers) == 0 {
		return nil, apperr.New(apperr.InvalidArgument, op, "rank table is empty")
	}
	if tiers[0].MinTrophies != 0 {
		return nil, apperr.Newf(apperr.InvalidArgument, op, "first tier %q must start at 0", tiers[0].Label)
	}

	t := &Table{
		tiers: make([]Tier, len(tiers)),
		index: make(map[string]int, len(tiers)),
	}
	copy(t.tiers, tiers)

	for i, tier := range t.tiers {
		if tier.Label == "" {
			return nil, apperr.Newf(apperr.InvalidArgument, op, "tier %d has no label", i)
		}
		if _, dup := t.index[tier.Label]; dup {
			return nil, apperr.Newf(apperr.InvalidArgument, op, "duplicate tier label %q", tier.Label)
		}
		if i > 0 && tier.MinTrophies <= t.tiers[i-1].MinTrophies {
			return nil, apperr.Newf(apperr.InvalidArgument, op, "tier %q threshold %d not above %d",
				tier.Label, tier.MinTrophies, t.tiers[i-1].MinTrophies)
		}
		t.index[tier.Label] = i
	}
	return t, nil
}

// MustNewTable is NewTable for package-level tables known to be valid.
func MustNewTable(tiers []Tier) *Table {
	t, err := NewTable(tiers)
	if err != nil {
		panic(fmt.Sprintf("rank: %v", err))
	}
	return t
}

// Resolve returns the highest tier whose threshold is <= trophies. Negative
// counts resolve to the lowest tier.
func (t *Table) Resolve(trophies int) Tier {
	for i := len(t.tiers) - 1; i >= 0; i-- {
		if trophies >= t.tiers[i].MinTrophies {
			return t.tiers[i]
		}
	}
	return t.tiers[0]
}

// Label is Resolve(trophies).Label.
func (t *Table) Label(trophies int) string {
	return t.Resolve(trophies).Label
}

// ResolveIndex returns the position of Resolve(trophies) in the table.
func (t *Table) ResolveIndex(trophies int) int {
	return t.index[t.Label(trophies)]
}

// Index returns the position of label in the table.
func (t *Table) Index(label string) (int, bool) {
	i, ok := t.index[label]
	return i, ok
}

// At returns the tier at position i.
func (t *Table) At(i int) Tier { return t.tiers[i] }

// Len returns the number of tiers.
func (t *Table) Len() int { return len(t.tiers) }

// Tiers returns a copy of the tiers in ascending order.
func (t *Table) Tiers() []Tier {
	out := make([]Tier, len(t.tiers))
	copy(out, t.tiers)
	return out
}

// Labels returns the tier labels in ascending order.
func (t *Table) Labels() []string {
	out := make([]string, len(t.tiers))
	for i, tier := range t.tiers {
		out[i] = tier.Label
	}
	return out
}
