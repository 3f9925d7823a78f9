package optimizer

import (
	"context"
	"errors"
	"fmt"

	"github.com/danthegoodman1/joinplanner/graph"
)

type (
	EnumerationInput struct {
		Left        graph.Estimates
		Right       graph.Estimates
		Parallelism int
	}

	// Candidate is one physical alternative for a two-input node.
	Candidate struct {
		Left  ShipStrategy
		Right ShipStrategy
		Local LocalStrategy
		Costs Costs
	}

	// Enumerator chooses shipping strategies for joins without a custom
	// partitioner. It always returns a genuine least-cost choice among real
	// alternatives and never sees custom partitioned joins.
	Enumerator interface {
		Enumerate(ctx context.Context, j *graph.JoinNode, in EnumerationInput) (Candidate, error)
	}

	CostEnumerator struct {
		Model CostModel
	}
)

var ErrNoCandidate = errors.New("no physical candidate for node")

func NewCostEnumerator(model CostModel) *CostEnumerator {
	return &CostEnumerator{Model: model}
}

func (ce *CostEnumerator) Enumerate(ctx context.Context, j *graph.JoinNode, in EnumerationInput) (Candidate, error) {
	if err := ctx.Err(); err != nil {
		return Candidate{}, err
	}

	var best *Candidate
	for _, c := range candidates(j) {
		c := c
		c.Costs = ce.cost(c, in)
		if best == nil || c.Costs.Total() < best.Costs.Total() {
			best = &c
		}
	}
	if best == nil {
		return Candidate{}, fmt.Errorf("%w: %s with hint %s", ErrNoCandidate, j.Name(), j.Hint())
	}
	return *best, nil
}

func (ce *CostEnumerator) cost(c Candidate, in EnumerationInput) Costs {
	buildReplicas := 1
	if (c.Local == LocalHybridHashBuildFirst && c.Left == ShipBroadcast) ||
		(c.Local == LocalHybridHashBuildSecond && c.Right == ShipBroadcast) {
		buildReplicas = in.Parallelism
	}
	return Costs{
		Network: ce.Model.shipCost(c.Left, in.Left, in.Parallelism) + ce.Model.shipCost(c.Right, in.Right, in.Parallelism),
		CPU:     ce.Model.localCost(c.Local, in.Left, in.Right, buildReplicas),
	}
}

// candidates lists the alternatives allowed by the node kind and hint, in tie
// break order.
func candidates(j *graph.JoinNode) []Candidate {
	if j.Kind() == graph.KindCoGroup {
		return []Candidate{{Left: ShipPartitionHash, Right: ShipPartitionHash, Local: LocalSortMerge}}
	}

	hashFirst := Candidate{Left: ShipPartitionHash, Right: ShipPartitionHash, Local: LocalHybridHashBuildFirst}
	hashSecond := Candidate{Left: ShipPartitionHash, Right: ShipPartitionHash, Local: LocalHybridHashBuildSecond}
	broadcastFirst := Candidate{Left: ShipBroadcast, Right: ShipForward, Local: LocalHybridHashBuildFirst}
	broadcastSecond := Candidate{Left: ShipForward, Right: ShipBroadcast, Local: LocalHybridHashBuildSecond}

	switch j.Hint() {
	case graph.HintRepartitionHashFirst:
		return []Candidate{hashFirst}
	case graph.HintRepartitionHashSecond:
		return []Candidate{hashSecond}
	case graph.HintBroadcastHashFirst:
		return []Candidate{broadcastFirst}
	case graph.HintBroadcastHashSecond:
		return []Candidate{broadcastSecond}
	case graph.HintOptimizerChooses:
		return []Candidate{hashFirst, hashSecond, broadcastFirst, broadcastSecond}
	default:
		return nil
	}
}
