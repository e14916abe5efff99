package qintersection

import (
	"math/rand"

	"github.com/bosagora/agora/bitset"
	"github.com/bosagora/agora/ids"
	"github.com/bosagora/agora/util"
)

// Stats are the operability counters spec.md §4.6 calls for: not part
// of the correctness contract, but expected of a checker meant to be
// run and monitored at paper scale.
type Stats struct {
	CallsStarted   int
	Terminations   int
	EarlyExit1s    int
	EarlyExit21s   int
	EarlyExit22s   int
	EarlyExit31s   int
	EarlyExit32s   int
	MaxQuorumsSeen int
	MinQuorumsSeen int
}

// Checker runs the quorum-intersection analysis of spec.md §4.6 over a
// fixed Graph. Its PRNG is seeded once at construction, so a given seed
// and graph always retrace the same search (spec.md §9: "any
// deterministic PRNG seeded per checker instance suffices, provided
// test vectors are stable under a fixed seed").
type Checker struct {
	graph  *Graph
	rng    *rand.Rand
	logger util.Logger

	stats          Stats
	minimalQuorums []*bitset.Set
	splitA, splitB *bitset.Set
}

// NewChecker constructs a Checker over g, seeded by seed. A nil logger
// is replaced with util.NopLogger{}.
func NewChecker(g *Graph, seed int64, logger util.Logger) *Checker {
	if logger == nil {
		logger = util.NopLogger{}
	}
	return &Checker{graph: g, rng: rand.New(rand.NewSource(seed)), logger: logger}
}

// Stats returns the search's operability counters, valid after Check.
func (c *Checker) Stats() Stats { return c.stats }

// Result is the outcome of a quorum-intersection check.
type Result struct {
	EnjoysIntersection bool
	MinimalQuorums     [][]ids.NodeID
	SplitA, SplitB     []ids.NodeID
}

// Check runs the full spec.md §4.6 algorithm: SCC decomposition,
// cross-SCC disjoint-quorum short-circuit, then minimal-quorum
// enumeration within the largest SCC.
func (c *Checker) Check() Result {
	sccs := c.graph.SCCs()
	if len(sccs) == 0 {
		return Result{EnjoysIntersection: false}
	}

	maxIdx := 0
	for i, s := range sccs {
		if s.Count() > sccs[maxIdx].Count() {
			maxIdx = i
		}
	}
	maxSCC := sccs[maxIdx]

	for i, s := range sccs {
		if i == maxIdx {
			continue
		}
		if q := c.graph.ContractToMaximalQuorum(s); q.Any() {
			c.logger.Logf("qintersection", "scc", "early exit: a non-dominant SCC still contains a quorum, no intersection possible")
			return Result{
				EnjoysIntersection: false,
				SplitA:             c.witness(q),
				SplitB:             c.witness(c.graph.ContractToMaximalQuorum(maxSCC)),
			}
		}
	}

	committed := bitset.New(uint(c.graph.Len()))
	c.enumerate(maxSCC, committed, maxSCC.Clone())

	if c.splitA != nil {
		return Result{
			EnjoysIntersection: false,
			MinimalQuorums:     c.witnessAll(),
			SplitA:             c.witness(c.splitA),
			SplitB:             c.witness(c.splitB),
		}
	}
	return Result{
		EnjoysIntersection: len(c.minimalQuorums) > 0,
		MinimalQuorums:     c.witnessAll(),
	}
}

func (c *Checker) witness(s *bitset.Set) []ids.NodeID {
	var out []ids.NodeID
	s.ForEach(func(i uint) { out = append(out, c.graph.Nodes[i]) })
	return out
}

func (c *Checker) witnessAll() [][]ids.NodeID {
	out := make([][]ids.NodeID, len(c.minimalQuorums))
	for i, q := range c.minimalQuorums {
		out[i] = c.witness(q)
	}
	return out
}

// NetworkEnjoysQuorumIntersection is the package's top-level entry
// point: build the graph and run the checker with a fixed seed.
func NetworkEnjoysQuorumIntersection(qm QuorumMap) Result {
	return NewChecker(BuildGraph(qm), 1, nil).Check()
}
