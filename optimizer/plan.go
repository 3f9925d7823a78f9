package optimizer

import (
	"errors"
	"fmt"

	"github.com/danthegoodman1/joinplanner/graph"
	"github.com/danthegoodman1/joinplanner/keys"
	"github.com/danthegoodman1/joinplanner/partitioner"
)

type (
	// ShipStrategy is how records travel over one input edge.
	ShipStrategy string

	// LocalStrategy is how a two-input node processes its inputs once they arrived.
	LocalStrategy string

	// Channel is a physical edge. Partitioner is set iff ShipStrategy is
	// ShipPartitionCustom and is the same pointer attached to the logical node.
	Channel struct {
		Source       graph.Node
		Target       graph.Node
		ShipStrategy ShipStrategy
		Keys         keys.Spec
		Partitioner  *partitioner.Partitioner
		Parallelism  int
	}

	PlanNode struct {
		Node          graph.Node
		Inputs        []*Channel
		LocalStrategy LocalStrategy
		Estimates     graph.Estimates
		Costs         Costs
	}

	// OptimizedPlan is the physical plan, immutable once returned by Compile.
	OptimizedPlan struct {
		ID          string
		Name        string
		Parallelism int
		Nodes       []*PlanNode
		byName      map[string]*PlanNode
	}
)

const (
	ShipForward         ShipStrategy = "FORWARD"
	ShipPartitionHash   ShipStrategy = "PARTITION_HASH"
	ShipBroadcast       ShipStrategy = "BROADCAST"
	ShipPartitionCustom ShipStrategy = "PARTITION_CUSTOM"

	LocalNone                  LocalStrategy = "NONE"
	LocalHybridHashBuildFirst  LocalStrategy = "HYBRIDHASH_BUILD_FIRST"
	LocalHybridHashBuildSecond LocalStrategy = "HYBRIDHASH_BUILD_SECOND"
	LocalSortMerge             LocalStrategy = "SORT_MERGE"
)

var ErrNotCustomChannel = errors.New("channel is not custom partitioned")

// Route picks the target partition of a key on a custom partitioned channel.
func (c *Channel) Route(key any) (int, error) {
	if c.ShipStrategy != ShipPartitionCustom || c.Partitioner == nil {
		return 0, fmt.Errorf("%w: %s -> %s is %s", ErrNotCustomChannel, c.Source.Name(), c.Target.Name(), c.ShipStrategy)
	}
	return c.Partitioner.Partition(key, c.Parallelism)
}

func (pn *PlanNode) Input1() *Channel {
	if len(pn.Inputs) < 1 {
		return nil
	}
	return pn.Inputs[0]
}

func (pn *PlanNode) Input2() *Channel {
	if len(pn.Inputs) < 2 {
		return nil
	}
	return pn.Inputs[1]
}

func (op *OptimizedPlan) Node(name string) (*PlanNode, bool) {
	pn, ok := op.byName[name]
	return pn, ok
}

func (op *OptimizedPlan) Sinks() []*PlanNode {
	var sinks []*PlanNode
	for _, pn := range op.Nodes {
		if pn.Node.Kind() == graph.KindSink {
			sinks = append(sinks, pn)
		}
	}
	return sinks
}

// TotalCosts sums the costs of every node.
func (op *OptimizedPlan) TotalCosts() Costs {
	var total Costs
	for _, pn := range op.Nodes {
		total = total.Add(pn.Costs)
	}
	return total
}
