// Package group implements the minimal external group/rank-list collaborator
// the original's crt_group API describes: membership lists, sort, dup, and
// the sorted-set membership test used by the CoRPC excluded-rank check. It
// deliberately does not implement a discovery protocol.
package group

import "sort"

// Rank identifies a member within a Group.
type Rank uint32

// Group is the external collaborator: a directory of member ranks for a
// service group, queried by the RPC/CoRPC layers but populated and
// maintained elsewhere (out of scope here).
type Group interface {
	// ID names the group for logging/lookup; arbitrary but stable.
	ID() string
	// Members returns the group's membership list. Implementations must
	// return it pre-sorted by Rank, since CoRPC fans out in membership list
	// order.
	Members() []Rank
	// Size is len(Members()); broken out because collective-info stores
	// child_count = group membership size at creation time.
	Size() int
}

// static is the concrete, in-memory Group used by tests and the demo CLI.
// Production group membership (discovery, liveness, rebalancing) is outside
// the scope of this package.
type static struct {
	id      string
	members []Rank
}

// NewStatic builds a Group from an unsorted rank list, sorting it once.
func NewStatic(id string, members []Rank) Group {
	cp := append([]Rank(nil), members...)
	sort.Slice(cp, func(i, j int) bool { return cp[i] < cp[j] })
	return &static{id: id, members: cp}
}

func (g *static) ID() string      { return g.id }
func (g *static) Members() []Rank { return g.members }
func (g *static) Size() int       { return len(g.members) }

// Dup returns a freshly-allocated copy of a group's membership list
// (crt_rank_list_dup in original_source).
func Dup(g Group) []Rank {
	src := g.Members()
	return append([]Rank(nil), src...)
}

// Sort sorts ranks ascending in place (crt_rank_list_sort).
func Sort(ranks []Rank) {
	sort.Slice(ranks, func(i, j int) bool { return ranks[i] < ranks[j] })
}

// InList does a binary-search membership test against a list that must
// already be sorted ascending (crt_rank_in_rank_list). The excluded-rank set
// passed to CoRPC fan-out must be sorted for this to be correct and
// efficient.
func InList(sorted []Rank, r Rank) bool {
	i := sort.Search(len(sorted), func(i int) bool { return sorted[i] >= r })
	return i < len(sorted) && sorted[i] == r
}
