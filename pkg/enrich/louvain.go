package enrich

import (
	"sort"

	"github.com/dan-solli/commviz/pkg/graph"
)

// Options configures community detection.
type Options struct {
	// Resolution scales the null-model term of the modularity gain.
	// Values above 1 favour smaller communities (default: 1.0).
	Resolution float64

	// MaxPasses bounds the local-moving passes per level (default: 100).
	MaxPasses int
}

func (o *Options) applyDefaults() {
	if o.Resolution <= 0 {
		o.Resolution = 1.0
	}
	if o.MaxPasses <= 0 {
		o.MaxPasses = 100
	}
}

// neighbor is one weighted adjacency entry of the undirected projection.
type neighbor struct {
	node   int
	weight float64
}

// level is one (possibly aggregated) undirected weighted graph.
// adj lists are sorted by node index and never contain self loops;
// self holds the loop weight of each node.
type level struct {
	adj    [][]neighbor
	self   []float64
	degree []float64
	total  float64 // sum of degrees (2m)
}

func newLevel(adj []map[int]float64, self []float64) *level {
	l := &level{
		adj:    make([][]neighbor, len(adj)),
		self:   self,
		degree: make([]float64, len(adj)),
	}
	for i, m := range adj {
		list := make([]neighbor, 0, len(m))
		for j, w := range m {
			list = append(list, neighbor{node: j, weight: w})
		}
		sort.Slice(list, func(a, b int) bool { return list[a].node < list[b].node })
		l.adj[i] = list

		d := 2 * self[i]
		for _, nb := range list {
			d += nb.weight
		}
		l.degree[i] = d
		l.total += d
	}
	return l
}

// projection builds the undirected weighted view of g: every directed edge adds
// weight 1 between its endpoints. Node indices follow g's iteration order.
func projection(g *graph.Graph) ([]string, *level) {
	ids := g.Nodes()
	index := make(map[string]int, len(ids))
	for i, id := range ids {
		index[id] = i
	}

	adj := make([]map[int]float64, len(ids))
	for i := range adj {
		adj[i] = make(map[int]float64)
	}
	self := make([]float64, len(ids))

	for _, e := range g.Edges() {
		s, t := index[e.Source], index[e.Target]
		if s == t {
			self[s]++
			continue
		}
		adj[s][t]++
		adj[t][s]++
	}

	return ids, newLevel(adj, self)
}

// DetectCommunities runs multi-level Louvain modularity optimisation over the
// undirected projection of g and returns a community id per node.
//
// The result is deterministic: nodes are visited in iteration order, candidate
// communities in ascending order, a move needs strictly positive gain and ties
// keep the lower community. Ids are renumbered 0..k-1 by first appearance in
// node iteration order.
func DetectCommunities(g *graph.Graph, opts Options) map[string]int {
	opts.applyDefaults()

	ids, lvl := projection(g)

	// membership[i] is the community of original node i at the current level
	membership := make([]int, len(ids))
	for i := range membership {
		membership[i] = i
	}

	if lvl.total > 0 {
		for {
			assign, moved := localMoving(lvl, opts)
			if !moved {
				break
			}
			assign, count := renumber(assign)
			for i := range membership {
				membership[i] = assign[membership[i]]
			}
			if count == len(lvl.adj) {
				break
			}
			lvl = aggregate(lvl, assign, count)
		}
	}

	final, _ := renumber(membership)
	result := make(map[string]int, len(ids))
	for i, id := range ids {
		result[id] = final[i]
	}
	return result
}

// localMoving is phase one of Louvain: greedily move single nodes to the
// neighbouring community with the best modularity gain until no move helps.
func localMoving(l *level, opts Options) ([]int, bool) {
	n := len(l.adj)
	community := make([]int, n)
	tot := make([]float64, n)
	for i := 0; i < n; i++ {
		community[i] = i
		tot[i] = l.degree[i]
	}

	linkWeights := make(map[int]float64)
	var candidates []int
	movedAny := false

	for pass := 0; pass < opts.MaxPasses; pass++ {
		moved := false

		for i := 0; i < n; i++ {
			current := community[i]
			ki := l.degree[i]

			// Weight from i to each neighbouring community
			for k := range linkWeights {
				delete(linkWeights, k)
			}
			candidates = candidates[:0]
			for _, nb := range l.adj[i] {
				c := community[nb.node]
				if _, seen := linkWeights[c]; !seen {
					candidates = append(candidates, c)
				}
				linkWeights[c] += nb.weight
			}
			if _, seen := linkWeights[current]; !seen {
				candidates = append(candidates, current)
			}
			sort.Ints(candidates)

			// Take i out of its community
			tot[current] -= ki

			// Staying wins ties; among moves the lowest community wins ties
			best := current
			bestGain := gain(linkWeights[current], tot[current], ki, l.total, opts.Resolution)
			for _, c := range candidates {
				if c == current {
					continue
				}
				if g := gain(linkWeights[c], tot[c], ki, l.total, opts.Resolution); g > bestGain {
					best = c
					bestGain = g
				}
			}

			tot[best] += ki
			if best != current {
				community[i] = best
				moved = true
				movedAny = true
			}
		}

		if !moved {
			break
		}
	}

	return community, movedAny
}

// gain is the modularity change (scaled by m) of inserting an isolated node
// with degree ki into a community with internal link weight kin and total degree tot.
func gain(kin, tot, ki, total, resolution float64) float64 {
	return kin - resolution*tot*ki/total
}

// renumber maps community labels to 0..k-1 in order of first appearance.
func renumber(labels []int) ([]int, int) {
	mapping := make(map[int]int)
	out := make([]int, len(labels))
	for i, c := range labels {
		id, ok := mapping[c]
		if !ok {
			id = len(mapping)
			mapping[c] = id
		}
		out[i] = id
	}
	return out, len(mapping)
}

// aggregate is phase two of Louvain: collapse each community into one node.
func aggregate(l *level, assign []int, count int) *level {
	adj := make([]map[int]float64, count)
	for i := range adj {
		adj[i] = make(map[int]float64)
	}
	self := make([]float64, count)

	for i, list := range l.adj {
		ci := assign[i]
		self[ci] += l.self[i]
		for _, nb := range list {
			cj := assign[nb.node]
			if ci == cj {
				// Each internal edge is seen from both ends
				self[ci] += nb.weight / 2
				continue
			}
			adj[ci][cj] += nb.weight
		}
	}

	return newLevel(adj, self)
}
