package graph

import (
	"errors"
	"fmt"

	"github.com/danthegoodman1/joinplanner/gologger"
	"github.com/danthegoodman1/joinplanner/types"
	"github.com/danthegoodman1/joinplanner/utils"
)

var (
	logger = gologger.NewComponentLogger("graph")

	ErrDuplicateName = errors.New("node name already used in plan")
	ErrForeignNode   = errors.New("node belongs to a different plan")
	ErrNilInput      = errors.New("node input is nil")
	ErrNilType       = errors.New("record type is nil")
)

type (
	NodeKind string

	// Node is a vertex of the logical dataflow graph.
	Node interface {
		ID() string
		Name() string
		Kind() NodeKind
		OutputType() *types.RecordType
		Inputs() []Node
	}

	// Estimates are optional size hints for the cost model, zero means unknown.
	Estimates struct {
		Rows  int64
		Bytes int64
	}

	// Plan is the logical graph of one program. It is built from a single
	// goroutine and treated as read-only once handed to the compiler.
	Plan struct {
		ID    string
		Name  string
		nodes []Node
		names map[string]Node
	}
)

const (
	KindSource  NodeKind = "SOURCE"
	KindJoin    NodeKind = "JOIN"
	KindCoGroup NodeKind = "COGROUP"
	KindSink    NodeKind = "SINK"
)

func NewPlan(name string) *Plan {
	return &Plan{
		ID:    utils.GenKSortedID("prog_"),
		Name:  name,
		names: make(map[string]Node),
	}
}

// Nodes returns the nodes in insertion order, inputs always come before the
// nodes consuming them.
func (p *Plan) Nodes() []Node {
	return append([]Node(nil), p.nodes...)
}

func (p *Plan) Node(name string) (Node, bool) {
	n, ok := p.names[name]
	return n, ok
}

func (p *Plan) Sinks() []*SinkNode {
	var sinks []*SinkNode
	for _, n := range p.nodes {
		if s, ok := n.(*SinkNode); ok {
			sinks = append(sinks, s)
		}
	}
	return sinks
}

// TwoInputNodes returns every join and cogroup of the plan.
func (p *Plan) TwoInputNodes() []*JoinNode {
	var joins []*JoinNode
	for _, n := range p.nodes {
		if j, ok := n.(*JoinNode); ok {
			joins = append(joins, j)
		}
	}
	return joins
}

func (p *Plan) add(n Node) {
	p.nodes = append(p.nodes, n)
	p.names[n.Name()] = n
	logger.Debug().Str("plan", p.Name).Str("node", n.Name()).Str("kind", string(n.Kind())).Msg("added node")
}

func (p *Plan) checkName(name string) error {
	if _, exists := p.names[name]; exists {
		return fmt.Errorf("%w: %s", ErrDuplicateName, name)
	}
	return nil
}

func (p *Plan) checkInput(n Node) error {
	if isNil(n) {
		return ErrNilInput
	}
	if owned, ok := p.names[n.Name()]; !ok || owned != n {
		return fmt.Errorf("%w: %s", ErrForeignNode, n.Name())
	}
	return nil
}

// isNil also catches typed nil pointers stored in the interface.
func isNil(n Node) bool {
	switch v := n.(type) {
	case nil:
		return true
	case *SourceNode:
		return v == nil
	case *JoinNode:
		return v == nil
	case *SinkNode:
		return v == nil
	}
	return false
}

func newNodeID() string {
	return utils.GenRandomID("n_")
}
