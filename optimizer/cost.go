package optimizer

import (
	"github.com/danthegoodman1/joinplanner/graph"
)

type (
	Costs struct {
		Network float64
		CPU     float64
	}

	// CostModel turns byte estimates into costs. Inputs without statistics are
	// assumed to be UnknownBytes large.
	CostModel struct {
		NetworkCostPerByte float64
		CPUCostPerByte     float64
		UnknownBytes       int64
	}
)

func DefaultCostModel() CostModel {
	return CostModel{
		NetworkCostPerByte: 1.0,
		CPUCostPerByte:     0.1,
		UnknownBytes:       1 << 30,
	}
}

func (c Costs) Total() float64 {
	return c.Network + c.CPU
}

func (c Costs) Add(o Costs) Costs {
	return Costs{Network: c.Network + o.Network, CPU: c.CPU + o.CPU}
}

func (m CostModel) bytes(e graph.Estimates) float64 {
	if e.Bytes <= 0 {
		return float64(m.UnknownBytes)
	}
	return float64(e.Bytes)
}

// shipCost is the network cost of moving an input with the given strategy.
func (m CostModel) shipCost(s ShipStrategy, e graph.Estimates, parallelism int) float64 {
	b := m.bytes(e)
	switch s {
	case ShipForward:
		return 0
	case ShipBroadcast:
		return b * float64(parallelism) * m.NetworkCostPerByte
	default:
		return b * m.NetworkCostPerByte
	}
}

// localCost is the cpu cost of the local strategy, the build side of a hash
// join is paid per receiving instance when broadcast.
func (m CostModel) localCost(l LocalStrategy, left, right graph.Estimates, buildReplicas int) float64 {
	lb, rb := m.bytes(left), m.bytes(right)
	switch l {
	case LocalHybridHashBuildFirst:
		return (lb*2*float64(buildReplicas) + rb) * m.CPUCostPerByte
	case LocalHybridHashBuildSecond:
		return (rb*2*float64(buildReplicas) + lb) * m.CPUCostPerByte
	case LocalSortMerge:
		return (lb + rb) * 3 * m.CPUCostPerByte
	default:
		return 0
	}
}

// joinOutputEstimates is a coarse guess used to feed downstream joins.
func joinOutputEstimates(left, right graph.Estimates) graph.Estimates {
	if left.Bytes <= 0 || right.Bytes <= 0 {
		return graph.Estimates{}
	}
	rows := left.Rows
	if right.Rows > rows {
		rows = right.Rows
	}
	return graph.Estimates{Rows: rows, Bytes: left.Bytes + right.Bytes}
}
