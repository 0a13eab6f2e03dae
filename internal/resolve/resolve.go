// Package resolve orders tables so that every foreign key target is created
// before the tables that reference it.
package resolve

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/sadopc/sqlayout/internal/schema"
)

// ErrCyclicDependency is matched by every *CycleError.
var ErrCyclicDependency = errors.New("cyclic dependency")

// CycleError reports a set of tables that reference each other through
// non-deferrable foreign keys. Tables are listed in declaration order.
type CycleError struct {
	Tables []string
}

func (e *CycleError) Error() string {
	return fmt.Sprintf("cyclic dependency between tables %s", strings.Join(e.Tables, ", "))
}

// Is reports whether target is ErrCyclicDependency.
func (e *CycleError) Is(target error) bool { return target == ErrCyclicDependency }

// DeferredCycles decides what happens to a cycle made only of deferrable
// foreign keys.
type DeferredCycles int

const (
	// AllowDeferredCycles accepts such cycles. The deferrable references
	// are checked at commit time, so any creation order works.
	AllowDeferredCycles DeferredCycles = iota
	// RejectDeferredCycles treats every foreign key as ordering-relevant.
	RejectDeferredCycles
)

func (d DeferredCycles) String() string {
	switch d {
	case AllowDeferredCycles:
		return "allow"
	case RejectDeferredCycles:
		return "reject"
	default:
		return fmt.Sprintf("DeferredCycles(%d)", int(d))
	}
}

// ParseDeferredCycles parses "allow" or "reject".
func ParseDeferredCycles(s string) (DeferredCycles, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "allow":
		return AllowDeferredCycles, nil
	case "reject":
		return RejectDeferredCycles, nil
	}
	return 0, fmt.Errorf("unknown deferred cycle policy %q", s)
}

// Option configures resolution.
type Option func(*options)

type options struct {
	deferred DeferredCycles
}

// WithDeferredCycles sets the policy for cycles of deferrable references.
func WithDeferredCycles(p DeferredCycles) Option {
	return func(o *options) { o.deferred = p }
}

// Edge is a foreign key reference from one table to another.
type Edge struct {
	From string
	To   string
}

// Plan is the creation order of a schema.
type Plan struct {
	Tables []schema.Table
	Views  []schema.View
	// Forward lists the deferrable references whose target is created
	// after the referring table.
	Forward []Edge
}

// Order resolves the tables of s. Views keep their declared order and
// always follow the tables.
func Order(s *schema.Schema, opts ...Option) (*Plan, error) {
	tables, forward, err := resolve(s.Tables, opts)
	if err != nil {
		return nil, err
	}
	return &Plan{
		Tables:  tables,
		Views:   append([]schema.View(nil), s.Views...),
		Forward: forward,
	}, nil
}

// Resolve returns tables in creation order. Tables without an ordering
// constraint between them keep their declared order. References to the
// table itself and to tables outside the slice are ignored.
func Resolve(tables []schema.Table, opts ...Option) ([]schema.Table, error) {
	out, _, err := resolve(tables, opts)
	return out, err
}

func resolve(tables []schema.Table, opts []Option) ([]schema.Table, []Edge, error) {
	var o options
	for _, opt := range opts {
		opt(&o)
	}

	g := newGraph(tables, o.deferred == RejectDeferredCycles)
	if cycle := g.firstCycle(); cycle != nil {
		names := make([]string, len(cycle))
		for i, n := range cycle {
			names[i] = string(tables[n].Name)
		}
		return nil, nil, &CycleError{Tables: names}
	}

	order := g.sort()
	position := make([]int, len(order))
	out := make([]schema.Table, len(order))
	for i, n := range order {
		out[i] = tables[n]
		position[n] = i
	}

	var forward []Edge
	for _, n := range order {
		for _, d := range g.deps[n] {
			if position[d.to] > position[n] {
				forward = append(forward, Edge{From: string(tables[n].Name), To: string(tables[d.to].Name)})
			}
		}
	}
	return out, forward, nil
}

// ---------------------------------------------------------------------------
// graph
// ---------------------------------------------------------------------------

type dep struct {
	to   int
	hard bool
}

// graph holds one node per table, numbered by declaration index. deps[i]
// are the tables i references and dependents[j] the tables referencing j.
type graph struct {
	deps       [][]dep
	dependents [][]dep
}

func newGraph(tables []schema.Table, allHard bool) *graph {
	index := make(map[string]int, len(tables))
	for i, t := range tables {
		if _, ok := index[t.Name.Key()]; !ok {
			index[t.Name.Key()] = i
		}
	}

	g := &graph{
		deps:       make([][]dep, len(tables)),
		dependents: make([][]dep, len(tables)),
	}
	for i, t := range tables {
		// One edge per referenced table; any non-deferrable reference
		// makes it hard.
		slot := make(map[int]int)
		for _, fk := range t.References() {
			j, ok := index[fk.Table.Key()]
			if !ok || j == i {
				continue
			}
			hard := allHard || !fk.Deferrable
			if k, seen := slot[j]; seen {
				g.deps[i][k].hard = g.deps[i][k].hard || hard
				continue
			}
			slot[j] = len(g.deps[i])
			g.deps[i] = append(g.deps[i], dep{to: j, hard: hard})
		}
		for _, d := range g.deps[i] {
			g.dependents[d.to] = append(g.dependents[d.to], dep{to: i, hard: d.hard})
		}
	}
	return g
}

// firstCycle returns the strongly connected component of hard edges with
// two or more nodes that contains the earliest-declared table, sorted by
// declaration index, or nil when the hard edges are acyclic.
func (g *graph) firstCycle() []int {
	var cycles [][]int
	for _, c := range g.components() {
		if len(c) > 1 {
			sort.Ints(c)
			cycles = append(cycles, c)
		}
	}
	if len(cycles) == 0 {
		return nil
	}
	sort.Slice(cycles, func(a, b int) bool { return cycles[a][0] < cycles[b][0] })
	return cycles[0]
}

// components runs Tarjan's algorithm over the hard edges.
func (g *graph) components() [][]int {
	n := len(g.deps)
	index := make([]int, n)
	low := make([]int, n)
	onStack := make([]bool, n)
	for i := range index {
		index[i] = -1
	}

	var (
		stack  []int
		out    [][]int
		next   int
		strong func(v int)
	)
	strong = func(v int) {
		index[v] = next
		low[v] = next
		next++
		stack = append(stack, v)
		onStack[v] = true

		for _, d := range g.deps[v] {
			if !d.hard {
				continue
			}
			w := d.to
			if index[w] < 0 {
				strong(w)
				low[v] = min(low[v], low[w])
			} else if onStack[w] {
				low[v] = min(low[v], index[w])
			}
		}

		if low[v] == index[v] {
			var comp []int
			for {
				w := stack[len(stack)-1]
				stack = stack[:len(stack)-1]
				onStack[w] = false
				comp = append(comp, w)
				if w == v {
					break
				}
			}
			out = append(out, comp)
		}
	}

	for v := 0; v < n; v++ {
		if index[v] < 0 {
			strong(v)
		}
	}
	return out
}

// sort runs Kahn's algorithm, always taking the earliest-declared ready
// table. When every remaining table still waits on something, only soft
// edges can be blocking, and the earliest table with no hard dependency
// left goes next.
func (g *graph) sort() []int {
	n := len(g.deps)
	pending := make([]int, n)
	hardPending := make([]int, n)
	for i, ds := range g.deps {
		pending[i] = len(ds)
		for _, d := range ds {
			if d.hard {
				hardPending[i]++
			}
		}
	}

	done := make([]bool, n)
	order := make([]int, 0, n)
	for len(order) < n {
		pick := -1
		for i := 0; i < n; i++ {
			if !done[i] && pending[i] == 0 {
				pick = i
				break
			}
		}
		if pick < 0 {
			for i := 0; i < n; i++ {
				if !done[i] && hardPending[i] == 0 {
					pick = i
					break
				}
			}
		}
		if pick < 0 {
			// Unreachable once firstCycle has passed.
			panic("resolve: no table can be placed")
		}

		done[pick] = true
		order = append(order, pick)
		for _, d := range g.dependents[pick] {
			pending[d.to]--
			if d.hard {
				hardPending[d.to]--
			}
		}
	}
	return order
}
