package lattice

import (
	"fmt"
	"iter"
	"slices"

	"gonum.org/v1/gonum/graph/multi"
)

// siteNode is a graph node carrying its spin as an attribute.
type siteNode struct {
	id   int64
	spin Spin
}

func (n *siteNode) ID() int64 { return n.id }

// Graph is a periodic d-dimensional grid graph. Bonds are lines of an
// undirected multigraph so that N = 2 keeps both the forward and the
// backward bond along every axis.
type Graph struct {
	grid
	g     *multi.UndirectedGraph
	nodes []*siteNode
	src   Source
}

// NewGraph assigns every node ±0.5 uniformly and stores it canonically.
func NewGraph(n, dim int, src Source) (*Graph, error) {
	total, err := validateGraph(n, dim)
	if err != nil {
		return nil, err
	}
	spins := make([]Spin, total)
	for i := range spins {
		half := []float64{-0.5, 0.5}[src.IntN(2)]
		s, err := FromHalf(half)
		if err != nil {
			return nil, err
		}
		spins[i] = s
	}
	return newGraph(n, dim, total, spins, src), nil
}

// NewGraphFrom builds a grid graph from an explicit row-major configuration.
func NewGraphFrom(n, dim int, spins []Spin, src Source) (*Graph, error) {
	total, err := validateGraph(n, dim)
	if err != nil {
		return nil, err
	}
	if err := checkSpins(spins, total); err != nil {
		return nil, err
	}
	return newGraph(n, dim, total, spins, src), nil
}

func validateGraph(n, dim int) (int, error) {
	total, err := validate(n, dim)
	if err != nil {
		return 0, err
	}
	// A single node per axis would need self-loops.
	if n < 2 {
		return 0, fmt.Errorf("%w: grid graph size must be at least 2, got %d", ErrConfiguration, n)
	}
	return total, nil
}

func newGraph(n, dim, total int, spins []Spin, src Source) *Graph {
	gl := &Graph{
		grid:  newGrid(n, dim, total),
		g:     multi.NewUndirectedGraph(),
		nodes: make([]*siteNode, total),
		src:   src,
	}
	for i := 0; i < total; i++ {
		node := &siteNode{id: int64(i), spin: spins[i]}
		gl.nodes[i] = node
		gl.g.AddNode(node)
	}
	// One forward bond per axis per site covers every periodic bond once.
	for i := 0; i < total; i++ {
		for axis := 0; axis < dim; axis++ {
			fwd := gl.shift(Site(i), axis, 1)
			gl.g.SetLine(gl.g.NewLine(gl.nodes[i], gl.nodes[fwd]))
		}
	}
	return gl
}

func (gl *Graph) Size() int     { return gl.n }
func (gl *Graph) Dim() int      { return gl.dim }
func (gl *Graph) NumSites() int { return gl.total }

func (gl *Graph) node(site Site) *siteNode {
	return gl.g.Node(int64(site)).(*siteNode)
}

func (gl *Graph) Spin(site Site) Spin { return gl.node(site).spin }

func (gl *Graph) SetSpin(site Site, s Spin) { gl.node(site).spin = s }

// Neighbors enumerates adjacency with line multiplicity, in ascending order.
func (gl *Graph) Neighbors(site Site) []Site {
	id := int64(site)
	nbs := make([]Site, 0, 2*gl.dim)
	it := gl.g.From(id)
	for it.Next() {
		v := it.Node().ID()
		for k := gl.g.Lines(id, v).Len(); k > 0; k-- {
			nbs = append(nbs, Site(v))
		}
	}
	slices.Sort(nbs)
	return nbs
}

func (gl *Graph) Sites() iter.Seq[Site] { return gl.sites() }

func (gl *Graph) Spins() []Spin {
	out := make([]Spin, gl.total)
	for i, node := range gl.nodes {
		out[i] = node.spin
	}
	return out
}

func (gl *Graph) Coords(site Site) []int { return gl.coords(site) }

func (gl *Graph) RandomSite() Site { return Site(gl.src.IntN(gl.total)) }

// Degree returns the number of bonds incident to site.
func (gl *Graph) Degree(site Site) int { return len(gl.Neighbors(site)) }
