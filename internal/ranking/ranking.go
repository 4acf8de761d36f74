// Package ranking groups flat records by entity, sums a measure per group
// and selects a top-N in a direction chosen by the caller's role.
package ranking

import (
	"sort"

	"github.com/shopspring/decimal"

	"github.com/energysys/dashboard/internal/access"
)

// Direction orders aggregates by total.
type Direction int

const (
	Ascending Direction = iota
	Descending
)

func (d Direction) String() string {
	if d == Descending {
		return "desc"
	}
	return "asc"
}

// Aggregate is the summed measure of one entity.
type Aggregate struct {
	Key   string          `json:"key"`
	Total decimal.Decimal `json:"total"`
}

// Group sums measure per key. Groups are returned in the order their key
// was first encountered; a null measure contributes zero.
func Group[T any](records []T, key func(T) string, measure func(T) decimal.NullDecimal) []Aggregate {
	pos := make(map[string]int)
	var groups []Aggregate
	for _, r := range records {
		k := key(r)
		i, ok := pos[k]
		if !ok {
			i = len(groups)
			pos[k] = i
			groups = append(groups, Aggregate{Key: k, Total: decimal.Zero})
		}
		if m := measure(r); m.Valid {
			groups[i].Total = groups[i].Total.Add(m.Decimal)
		}
	}
	return groups
}

// Rank returns the first topN groups ordered by total in dir. Equal totals
// keep their input order. groups is not modified.
func Rank(groups []Aggregate, dir Direction, topN int) []Aggregate {
	if topN <= 0 {
		return []Aggregate{}
	}
	sorted := make([]Aggregate, len(groups))
	copy(sorted, groups)
	sort.SliceStable(sorted, func(i, j int) bool {
		if dir == Descending {
			return sorted[i].Total.GreaterThan(sorted[j].Total)
		}
		return sorted[i].Total.LessThan(sorted[j].Total)
	})
	if len(sorted) > topN {
		sorted = sorted[:topN]
	}
	return sorted
}

// AggregateAndRank groups records and ranks the groups.
func AggregateAndRank[T any](records []T, key func(T) string, measure func(T) decimal.NullDecimal, dir Direction, topN int) []Aggregate {
	return Rank(Group(records, key, measure), dir, topN)
}

// Policy maps a caller role to the ranking direction it sees. Roles missing
// from Directions get Fallback.
type Policy struct {
	Directions map[access.Role]Direction
	Fallback   Direction
}

// DefaultPolicy shows super admins the weakest performers first and every
// other role the strongest.
var DefaultPolicy = Policy{
	Directions: map[access.Role]Direction{
		access.RoleSuperAdmin: Ascending,
		access.RoleAdmin:      Descending,
		access.RoleAnalyst:    Descending,
	},
	Fallback: Descending,
}

// Direction returns the direction for role.
func (p Policy) Direction(role access.Role) Direction {
	if d, ok := p.Directions[role]; ok {
		return d
	}
	return p.Fallback
}

// Label names what a ranking for role shows.
func (p Policy) Label(role access.Role) string {
	if p.Direction(role) == Ascending {
		return "lowest"
	}
	return "highest"
}
