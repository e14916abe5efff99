package qintersection

import "github.com/bosagora/agora/bitset"

// SCCs returns the graph's strongly connected components (edges
// `i -> j` iff `j ∈ successors(i)`), each as a bitset over node indices.
// Computed with an explicit work-stack rather than function recursion,
// per spec.md §9's note that recursive Tarjan risks stack exhaustion on
// deep graphs.
func (g *Graph) SCCs() []*bitset.Set {
	n := g.Len()
	index := make([]int, n)
	lowlink := make([]int, n)
	onStack := make([]bool, n)
	for i := range index {
		index[i] = -1
	}
	var tarjanStack []int
	var sccs []*bitset.Set
	next := 0

	type frame struct {
		node  int
		succs []uint
		pos   int
	}

	for start := 0; start < n; start++ {
		if index[start] != -1 {
			continue
		}

		var work []frame
		push := func(v int) {
			index[v] = next
			lowlink[v] = next
			next++
			tarjanStack = append(tarjanStack, v)
			onStack[v] = true
			work = append(work, frame{node: v, succs: g.Successors(uint(v)).Slice()})
		}
		push(start)

		for len(work) > 0 {
			top := &work[len(work)-1]
			if top.pos < len(top.succs) {
				w := int(top.succs[top.pos])
				top.pos++
				switch {
				case index[w] == -1:
					push(w)
				case onStack[w]:
					if index[w] < lowlink[top.node] {
						lowlink[top.node] = index[w]
					}
				}
				continue
			}

			v := top.node
			work = work[:len(work)-1]
			if len(work) > 0 {
				parent := &work[len(work)-1]
				if lowlink[v] < lowlink[parent.node] {
					lowlink[parent.node] = lowlink[v]
				}
			}
			if lowlink[v] == index[v] {
				scc := bitset.New(uint(n))
				for {
					w := tarjanStack[len(tarjanStack)-1]
					tarjanStack = tarjanStack[:len(tarjanStack)-1]
					onStack[w] = false
					scc.Add(uint(w))
					if w == v {
						break
					}
				}
				sccs = append(sccs, scc)
			}
		}
	}
	return sccs
}
