package optimizer

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/danthegoodman1/joinplanner/gologger"
	"github.com/danthegoodman1/joinplanner/graph"
	"github.com/danthegoodman1/joinplanner/keys"
	"github.com/danthegoodman1/joinplanner/utils"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"
)

var (
	logger = gologger.NewComponentLogger("optimizer")

	ErrEmptyPlan          = errors.New("plan has no nodes")
	ErrNoSinks            = errors.New("plan has no sinks")
	ErrInvalidParallelism = errors.New("parallelism must be positive")
)

type (
	Compiler struct {
		Enumerator  Enumerator
		Parallelism int
		Model       CostModel
		// MaxConcurrency bounds how many two-input nodes are compiled at once, <= 0 is unbounded.
		MaxConcurrency int
	}

	CompilerOption func(*Compiler)
)

func WithEnumerator(e Enumerator) CompilerOption {
	return func(c *Compiler) {
		c.Enumerator = e
	}
}

func WithParallelism(p int) CompilerOption {
	return func(c *Compiler) {
		c.Parallelism = p
	}
}

func WithCostModel(m CostModel) CompilerOption {
	return func(c *Compiler) {
		c.Model = m
	}
}

func WithMaxConcurrency(n int) CompilerOption {
	return func(c *Compiler) {
		c.MaxConcurrency = n
	}
}

func NewCompiler(opts ...CompilerOption) *Compiler {
	c := &Compiler{
		Parallelism: int(utils.DEFAULT_PARALLELISM),
		Model:       DefaultCostModel(),
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.Enumerator == nil {
		c.Enumerator = NewCostEnumerator(c.Model)
	}
	return c
}

// Compile turns the logical plan into a physical plan. Two-input nodes only
// read their own logical node and write their own plan node, so they are
// compiled concurrently.
func (c *Compiler) Compile(ctx context.Context, p *graph.Plan) (*OptimizedPlan, error) {
	logger := zerolog.Ctx(ctx)
	if c.Parallelism <= 0 {
		return nil, fmt.Errorf("%w: %d", ErrInvalidParallelism, c.Parallelism)
	}
	nodes := p.Nodes()
	if len(nodes) == 0 {
		return nil, ErrEmptyPlan
	}
	if len(p.Sinks()) == 0 {
		return nil, ErrNoSinks
	}

	s := time.Now()
	estimates := estimate(nodes)
	planNodes := make([]*PlanNode, len(nodes))

	g, gctx := errgroup.WithContext(ctx)
	if c.MaxConcurrency > 0 {
		g.SetLimit(c.MaxConcurrency)
	}
	for i, n := range nodes {
		i, n := i, n
		switch node := n.(type) {
		case *graph.JoinNode:
			g.Go(func() error {
				pn, err := c.compileTwoInput(gctx, node, estimates)
				if err != nil {
					return fmt.Errorf("error compiling %s: %w", node.Name(), err)
				}
				planNodes[i] = pn
				return nil
			})
		default:
			planNodes[i] = c.compileSingle(n, estimates)
		}
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	op := &OptimizedPlan{
		ID:          utils.GenKSortedID("plan_"),
		Name:        p.Name,
		Parallelism: c.Parallelism,
		Nodes:       planNodes,
		byName:      make(map[string]*PlanNode, len(planNodes)),
	}
	for _, pn := range planNodes {
		op.byName[pn.Node.Name()] = pn
	}

	logger.Debug().Str("plan", p.Name).Str("planID", op.ID).Int("nodes", len(planNodes)).Float64("cost", op.TotalCosts().Total()).Str("duration", time.Since(s).String()).Msg("compiled plan")
	return op, nil
}

func (c *Compiler) compileTwoInput(ctx context.Context, j *graph.JoinNode, estimates map[graph.Node]graph.Estimates) (*PlanNode, error) {
	if pn, ok := rewriteCustomPartitioning(j, c.Parallelism, estimates); ok {
		logger.Debug().Str("node", j.Name()).Str("partitioner", j.Partitioner().Name).Msg("custom partitioning overrides enumeration")
		return pn, nil
	}

	left, right := estimates[j.Left()], estimates[j.Right()]
	cand, err := c.Enumerator.Enumerate(ctx, j, EnumerationInput{Left: left, Right: right, Parallelism: c.Parallelism})
	if err != nil {
		return nil, fmt.Errorf("error in Enumerate: %w", err)
	}
	return &PlanNode{
		Node: j,
		Inputs: []*Channel{
			newChannel(j.Left(), j, cand.Left, j.LeftKey(), c.Parallelism),
			newChannel(j.Right(), j, cand.Right, j.RightKey(), c.Parallelism),
		},
		LocalStrategy: cand.Local,
		Estimates:     estimates[j],
		Costs:         cand.Costs,
	}, nil
}

// rewriteCustomPartitioning forces both inputs of a join with an attached
// partitioner onto that partitioner. Any asymmetric choice would break key
// co-location, so cost is not consulted.
func rewriteCustomPartitioning(j *graph.JoinNode, parallelism int, estimates map[graph.Node]graph.Estimates) (*PlanNode, bool) {
	p := j.Partitioner()
	if p == nil {
		return nil, false
	}
	left := newChannel(j.Left(), j, ShipPartitionCustom, j.LeftKey(), parallelism)
	right := newChannel(j.Right(), j, ShipPartitionCustom, j.RightKey(), parallelism)
	left.Partitioner = p
	right.Partitioner = p

	local := LocalHybridHashBuildFirst
	if j.Kind() == graph.KindCoGroup {
		local = LocalSortMerge
	} else if j.Hint() == graph.HintRepartitionHashSecond || j.Hint() == graph.HintBroadcastHashSecond {
		local = LocalHybridHashBuildSecond
	}
	return &PlanNode{
		Node:          j,
		Inputs:        []*Channel{left, right},
		LocalStrategy: local,
		Estimates:     estimates[j],
	}, true
}

func (c *Compiler) compileSingle(n graph.Node, estimates map[graph.Node]graph.Estimates) *PlanNode {
	pn := &PlanNode{
		Node:          n,
		LocalStrategy: LocalNone,
		Estimates:     estimates[n],
	}
	for _, in := range n.Inputs() {
		pn.Inputs = append(pn.Inputs, newChannel(in, n, ShipForward, keys.Spec{}, c.Parallelism))
	}
	return pn
}

func newChannel(source, target graph.Node, s ShipStrategy, key keys.Spec, parallelism int) *Channel {
	ch := &Channel{
		Source:       source,
		Target:       target,
		ShipStrategy: s,
		Parallelism:  parallelism,
	}
	if s == ShipPartitionHash || s == ShipPartitionCustom {
		ch.Keys = key
	}
	return ch
}

// estimate walks nodes in order, inputs come first so their estimates exist.
func estimate(nodes []graph.Node) map[graph.Node]graph.Estimates {
	est := make(map[graph.Node]graph.Estimates, len(nodes))
	for _, n := range nodes {
		switch node := n.(type) {
		case *graph.SourceNode:
			est[n] = node.Estimates
		case *graph.JoinNode:
			est[n] = joinOutputEstimates(est[node.Left()], est[node.Right()])
		case *graph.SinkNode:
			est[n] = est[node.Input()]
		}
	}
	return est
}
