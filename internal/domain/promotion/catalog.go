// Package promotion tracks one-time rewards for reaching a new rank.
//
// Each adjacent rank-up has a reward key. A key's flag on the profile moves
// 0 (not reached) -> 1 (claimable) on the first promotion across it, and
// 1 -> 2 (claimed) on claim. It never moves backwards.
package promotion

import (
	"strings"
	"unicode"

	"github.com/okian/raceledger/internal/domain/apperr"
	"github.com/okian/raceledger/internal/domain/rank"
)

// ItemKind distinguishes crates from keys.
type ItemKind string

const (
	Crate ItemKind = "Crate"
	Key   ItemKind = "Key"
)

// Item is an inventory grant such as one "Rare Key".
type Item struct {
	Rarity string   `json:"rarity"`
	Kind   ItemKind `json:"kind"`
}

// Name is the inventory key, e.g. "Rare Key".
func (i Item) Name() string { return i.Rarity + " " + string(i.Kind) }

// Reward is what one promotion grants: gems, an item, or both.
type Reward struct {
	Key  string `json:"key"`
	From string `json:"from"`
	To   string `json:"to"`
	Gems int    `json:"gems,omitempty"`
	Item *Item  `json:"item,omitempty"`
}

// Catalog indexes rewards by key and by rank transition.
type Catalog struct {
	byKey  map[string]Reward
	byStep map[int]Reward // keyed by the index of the rank being left
	ranks  *rank.Table
}

// Grant is the payload for one rank-up.
type Grant struct {
	Gems int
	Item *Item
}

// NewCatalog binds grants to the adjacent transitions of ranks. grants[i] is
// the reward for tier i -> i+1; a short list leaves the top steps without
// rewards.
func NewCatalog(ranks *rank.Table, grants []Grant) (*Catalog, error) {
	const op = "promotion.new_catalog"
	if ranks == nil {
		return nil, apperr.New(apperr.InvalidArgument, op, "rank table is required")
	}
	if len(grants) > ranks.Len()-1 {
		return nil, apperr.Newf(apperr.InvalidArgument, op, "%d grants for %d transitions", len(grants), ranks.Len()-1)
	}
	c := &Catalog{
		byKey:  make(map[string]Reward, len(grants)),
		byStep: make(map[int]Reward, len(grants)),
		ranks:  ranks,
	}
	for i, g := range grants {
		from, to := ranks.At(i).Label, ranks.At(i+1).Label
		r := Reward{Key: TransitionKey(from, to), From: from, To: to, Gems: g.Gems, Item: g.Item}
		c.byKey[r.Key] = r
		c.byStep[i] = r
	}
	return c, nil
}

// DefaultCatalog binds DefaultGrants to the default rank table.
func DefaultCatalog() *Catalog {
	c, err := NewCatalog(rank.Default(), DefaultGrants)
	if err != nil {
		panic(err)
	}
	return c
}

// ByKey finds a reward by its key.
func (c *Catalog) ByKey(key string) (Reward, bool) {
	r, ok := c.byKey[key]
	return r, ok
}

// Crossed lists the rewards for every adjacent transition between two rank
// labels, lowest first. Empty unless to is above from.
func (c *Catalog) Crossed(from, to string) []Reward {
	fi, ok1 := c.ranks.Index(from)
	ti, ok2 := c.ranks.Index(to)
	if !ok1 || !ok2 || ti <= fi {
		return nil
	}
	out := make([]Reward, 0, ti-fi)
	for i := fi; i < ti; i++ {
		if r, ok := c.byStep[i]; ok {
			out = append(out, r)
		}
	}
	return out
}

// Rewards lists every reward in ladder order.
func (c *Catalog) Rewards() []Reward {
	out := make([]Reward, 0, len(c.byStep))
	for i := 0; i < c.ranks.Len()-1; i++ {
		if r, ok := c.byStep[i]; ok {
			out = append(out, r)
		}
	}
	return out
}

// TransitionKey builds the client-facing key, e.g. "Bronze III" -> "Silver I"
// becomes "bronzeIIIToSilverI".
func TransitionKey(from, to string) string {
	f := compact(from)
	if f != "" {
		r := []rune(f)
		r[0] = unicode.ToLower(r[0])
		f = string(r)
	}
	return f + "To" + compact(to)
}

func compact(label string) string {
	return strings.Join(strings.Fields(label), "")
}

func item(rarity string, kind ItemKind) *Item { return &Item{Rarity: rarity, Kind: kind} }

// DefaultGrants follows the default ladder from Unranked upwards.
var DefaultGrants = []Grant{
	{Gems: 100, Item: item("Common", Key)},
	{Item: item("Common", Crate)},
	{Gems: 100, Item: item("Common", Key)},
	{Item: item("Common", Crate)},
	{Gems: 150, Item: item("Rare", Key)},
	{Item: item("Rare", Crate)},
	{Gems: 150, Item: item("Rare", Key)},
	{Item: item("Rare", Crate)},
	{Gems: 200, Item: item("Exotic", Key)},
	{Item: item("Exotic", Crate)},
	{Gems: 200, Item: item("Exotic", Key)},
	{Item: item("Exotic", Crate)},
	{Gems: 300, Item: item("Legendary", Key)},
	{Item: item("Legendary", Crate)},
	{Gems: 300, Item: item("Legendary", Key)},
	{Item: item("Legendary", Crate)},
	{Gems: 350, Item: item("Legendary", Key)},
	{Item: item("Legendary", Crate)},
	{Gems: 400, Item: item("Legendary", Key)},
	{Item: item("Legendary", Crate)},
	{Gems: 450, Item: item("Mythical", Key)},
	{Item: item("Mythical", Crate)},
	{Gems: 500, Item: item("Legendary", Key)},
	{Item: item("Legendary", Crate)},
	{Gems: 500, Item: item("Mythical", Key)},
	{Item: item("Mythical", Crate)},
	{Gems: 750, Item: item("Mythical", Crate)},
}
