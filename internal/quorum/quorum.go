// Package quorum implements the vote-counting algebra shared by the proposer
// and its sync-quorum tracker: a small tree of All/Majority/Joint nodes that
// decides whether a set of votes satisfies a (possibly joint) configuration.
package quorum

import "sort"

// Quorum is a node in the quorum tree. Exactly one of the typed fields is set,
// selected by Kind.
type Quorum struct {
	Kind   Kind
	Set    map[string]struct{} // All / Majority leaf
	Left   *Quorum              // Joint
	Right  *Quorum              // Joint
}

// Kind selects the quorum node's evaluation rule.
type Kind int

// Quorum node kinds.
const (
	KindAll Kind = iota
	KindMajority
	KindJoint
)

// All builds a leaf requiring every member of members to have voted.
func All(members ...string) *Quorum {
	return &Quorum{Kind: KindAll, Set: toSet(members)}
}

// Majority builds a leaf requiring strictly more than half of members to have voted.
func Majority(members ...string) *Quorum {
	return &Quorum{Kind: KindMajority, Set: toSet(members)}
}

// Joint builds a node satisfied only when both children are satisfied.
func Joint(left, right *Quorum) *Quorum {
	return &Quorum{Kind: KindJoint, Left: left, Right: right}
}

func toSet(members []string) map[string]struct{} {
	set := make(map[string]struct{}, len(members))
	for _, m := range members {
		set[m] = struct{}{}
	}
	return set
}

// Peers returns the union of every node set appearing anywhere in q, sorted
// for deterministic iteration by callers.
func Peers(q *Quorum) []string {
	seen := map[string]struct{}{}
	collectPeers(q, seen)
	out := make([]string, 0, len(seen))
	for p := range seen {
		out = append(out, p)
	}
	sort.Strings(out)
	return out
}

func collectPeers(q *Quorum, into map[string]struct{}) {
	if q == nil {
		return
	}
	switch q.Kind {
	case KindAll, KindMajority:
		for p := range q.Set {
			into[p] = struct{}{}
		}
	case KindJoint:
		collectPeers(q.Left, into)
		collectPeers(q.Right, into)
	}
}

// HaveQuorum reports whether votes satisfies q.
func HaveQuorum(votes map[string]struct{}, q *Quorum) bool {
	if q == nil {
		return false
	}
	switch q.Kind {
	case KindAll:
		for p := range q.Set {
			if _, ok := votes[p]; !ok {
				return false
			}
		}
		return true
	case KindMajority:
		count := 0
		for p := range q.Set {
			if _, ok := votes[p]; ok {
				count++
			}
		}
		return count*2 > len(q.Set)
	case KindJoint:
		return HaveQuorum(votes, q.Left) && HaveQuorum(votes, q.Right)
	default:
		return false
	}
}

// Feasible reports whether q can still be satisfied given the full peer set
// allPeers minus the peers already known to have failed (failedVotes).
func Feasible(allPeers []string, failedVotes map[string]struct{}, q *Quorum) bool {
	remaining := make(map[string]struct{}, len(allPeers))
	for _, p := range allPeers {
		if _, failed := failedVotes[p]; failed {
			continue
		}
		remaining[p] = struct{}{}
	}
	return HaveQuorum(remaining, q)
}

// SetOf builds a vote/failed-vote set from a slice, convenience for callers
// that accumulate peers incrementally.
func SetOf(members ...string) map[string]struct{} {
	return toSet(members)
}
