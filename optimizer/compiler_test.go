package optimizer_test

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/danthegoodman1/joinplanner/graph"
	"github.com/danthegoodman1/joinplanner/keys"
	"github.com/danthegoodman1/joinplanner/optimizer"
	"github.com/danthegoodman1/joinplanner/partitioner"
	"github.com/danthegoodman1/joinplanner/types"
)

var (
	pojo2 = types.Struct("Pojo2", types.F("a", types.Int32), types.F("b", types.Int32))
	pojo3 = types.Struct("Pojo3", types.F("a", types.Int32), types.F("b", types.Int32), types.F("c", types.Int32))

	pojo2Selector = keys.NewExtractor("pojo2A", pojo2, types.Int32, func(record any) (any, error) {
		return record.(map[string]any)["a"], nil
	})
	pojo3Selector = keys.NewExtractor("pojo3B", pojo3, types.Int32, func(record any) (any, error) {
		return record.(map[string]any)["b"], nil
	})
)

func newTestPartitionerInt() *partitioner.Partitioner {
	return partitioner.New("testInt", types.Int32, func(key any, n int) (int, error) { return 0, nil })
}

func newTestPartitionerLong() *partitioner.Partitioner {
	return partitioner.New("testLong", types.Int64, func(key any, n int) (int, error) { return 0, nil })
}

// spyEnumerator records every join it is asked about.
type spyEnumerator struct {
	mu    sync.Mutex
	seen  []string
	inner optimizer.Enumerator
}

func (s *spyEnumerator) Enumerate(ctx context.Context, j *graph.JoinNode, in optimizer.EnumerationInput) (optimizer.Candidate, error) {
	s.mu.Lock()
	s.seen = append(s.seen, j.Name())
	s.mu.Unlock()
	return s.inner.Enumerate(ctx, j, in)
}

type joinSetup struct {
	name       string
	leftType   *types.RecordType
	rightType  *types.RecordType
	leftKey    keys.Spec
	rightKey   keys.Spec
	good       func() *partitioner.Partitioner
	wrong      func() *partitioner.Partitioner
	leftStats  graph.Estimates
	rightStats graph.Estimates
}

var setups = []joinSetup{
	{
		name:      "tuples",
		leftType:  types.Tuple(types.Int64, types.Int64),
		rightType: types.Tuple(types.Int64, types.Int64, types.Int64),
		leftKey:   keys.Positions(1),
		rightKey:  keys.Positions(0),
		good:      newTestPartitionerLong,
		wrong:     newTestPartitionerInt,
	},
	{
		name:      "pojos",
		leftType:  pojo2,
		rightType: pojo3,
		leftKey:   keys.Fields("b"),
		rightKey:  keys.Fields("a"),
		good:      newTestPartitionerInt,
		wrong:     newTestPartitionerLong,
	},
	{
		name:      "key selectors",
		leftType:  pojo2,
		rightType: pojo3,
		leftKey:   keys.Selector(pojo2Selector),
		rightKey:  keys.Selector(pojo3Selector),
		good:      newTestPartitionerInt,
		wrong:     newTestPartitionerLong,
	},
	{
		name:       "tiny left input",
		leftType:   types.Tuple(types.String, types.Int64),
		rightType:  types.Struct("Fact", types.F("dim", types.String), types.F("v", types.Float64)),
		leftKey:    keys.Positions(0),
		rightKey:   keys.Fields("dim"),
		good:       func() *partitioner.Partitioner { return partitioner.New("str", types.String, nil) },
		wrong:      newTestPartitionerLong,
		leftStats:  graph.Estimates{Rows: 10, Bytes: 1_000},
		rightStats: graph.Estimates{Rows: 1_000_000_000, Bytes: 1 << 40},
	},
}

func buildJoin(t *testing.T, s joinSetup) (*graph.Plan, *graph.JoinNode) {
	t.Helper()
	p := graph.NewPlan(s.name)
	in1, err := p.Source("input1", s.leftType, graph.WithEstimates(s.leftStats.Rows, s.leftStats.Bytes))
	if err != nil {
		t.Fatal(err)
	}
	in2, err := p.Source("input2", s.rightType, graph.WithEstimates(s.rightStats.Rows, s.rightStats.Bytes))
	if err != nil {
		t.Fatal(err)
	}
	j, err := p.Join("join", in1, in2, s.leftKey, s.rightKey)
	if err != nil {
		t.Fatal(err)
	}
	if _, err = p.Sink("print", j); err != nil {
		t.Fatal(err)
	}
	return p, j
}

func compile(t *testing.T, p *graph.Plan, opts ...optimizer.CompilerOption) *optimizer.OptimizedPlan {
	t.Helper()
	opts = append([]optimizer.CompilerOption{optimizer.WithParallelism(4)}, opts...)
	op, err := optimizer.NewCompiler(opts...).Compile(context.Background(), p)
	if err != nil {
		t.Fatal(err)
	}
	return op
}

func TestCustomPartitionedJoin(t *testing.T) {
	for _, s := range setups {
		t.Run(s.name, func(t *testing.T) {
			p, j := buildJoin(t, s)
			part := s.good()
			if err := j.WithPartitioner(part); err != nil {
				t.Fatal(err)
			}

			spy := &spyEnumerator{inner: optimizer.NewCostEnumerator(optimizer.DefaultCostModel())}
			op := compile(t, p, optimizer.WithEnumerator(spy))

			sink := op.Sinks()[0]
			join, ok := op.Node(sink.Input1().Source.Name())
			if !ok {
				t.Fatal("join not found behind the sink")
			}
			for i, ch := range []*optimizer.Channel{join.Input1(), join.Input2()} {
				if ch.ShipStrategy != optimizer.ShipPartitionCustom {
					t.Fatalf("input %d: expected PARTITION_CUSTOM, got %s", i+1, ch.ShipStrategy)
				}
				if ch.Partitioner != part {
					t.Fatalf("input %d: channel does not carry the attached partitioner", i+1)
				}
			}
			if join.Input1().Partitioner != join.Input2().Partitioner {
				t.Fatal("both inputs must share one partitioner instance")
			}
			if len(spy.seen) != 0 {
				t.Fatalf("enumerator must not see custom partitioned joins, saw %v", spy.seen)
			}
		})
	}
}

func TestCustomPartitionedJoinWrongType(t *testing.T) {
	for _, s := range setups {
		t.Run(s.name, func(t *testing.T) {
			p, j := buildJoin(t, s)
			err := j.WithPartitioner(s.wrong())
			if !errors.Is(err, &partitioner.InvalidProgramError{Reason: partitioner.PartitionerTypeMismatch}) {
				t.Fatalf("expected PartitionerTypeMismatch, got %v", err)
			}
			if j.Partitioner() != nil {
				t.Fatal("rejected partitioner must not be attached")
			}

			spy := &spyEnumerator{inner: optimizer.NewCostEnumerator(optimizer.DefaultCostModel())}
			op := compile(t, p, optimizer.WithEnumerator(spy))
			join, _ := op.Node("join")
			for _, ch := range join.Inputs {
				if ch.ShipStrategy == optimizer.ShipPartitionCustom || ch.Partitioner != nil {
					t.Fatal("failed attachment leaked into the physical plan")
				}
			}
			if len(spy.seen) != 1 || spy.seen[0] != "join" {
				t.Fatalf("enumerator should have planned the join, saw %v", spy.seen)
			}
		})
	}
}

func TestOverrideIgnoresCost(t *testing.T) {
	s := setups[3]

	p, _ := buildJoin(t, s)
	op := compile(t, p)
	join, _ := op.Node("join")
	if join.Input1().ShipStrategy != optimizer.ShipBroadcast || join.Input2().ShipStrategy != optimizer.ShipForward {
		t.Fatalf("without a partitioner the tiny side should be broadcast, got %s/%s", join.Input1().ShipStrategy, join.Input2().ShipStrategy)
	}

	p, j := buildJoin(t, s)
	if err := j.WithPartitioner(s.good()); err != nil {
		t.Fatal(err)
	}
	op = compile(t, p)
	join, _ = op.Node("join")
	for _, ch := range join.Inputs {
		if ch.ShipStrategy != optimizer.ShipPartitionCustom {
			t.Fatalf("expected PARTITION_CUSTOM regardless of cost, got %s", ch.ShipStrategy)
		}
	}
}

func TestEnumeratorChoices(t *testing.T) {
	tests := []struct {
		name        string
		hint        graph.JoinHint
		left, right graph.Estimates
		expectLeft  optimizer.ShipStrategy
		expectRight optimizer.ShipStrategy
		expectLocal optimizer.LocalStrategy
	}{
		{name: "no statistics", hint: graph.HintOptimizerChooses, expectLeft: optimizer.ShipPartitionHash, expectRight: optimizer.ShipPartitionHash, expectLocal: optimizer.LocalHybridHashBuildFirst},
		{name: "small right", hint: graph.HintOptimizerChooses, left: graph.Estimates{Bytes: 1 << 40}, right: graph.Estimates{Bytes: 1 << 10}, expectLeft: optimizer.ShipForward, expectRight: optimizer.ShipBroadcast, expectLocal: optimizer.LocalHybridHashBuildSecond},
		{name: "comparable sizes", hint: graph.HintOptimizerChooses, left: graph.Estimates{Bytes: 4 << 18}, right: graph.Estimates{Bytes: 5 << 18}, expectLeft: optimizer.ShipPartitionHash, expectRight: optimizer.ShipPartitionHash, expectLocal: optimizer.LocalHybridHashBuildFirst},
		{name: "hint repartition second", hint: graph.HintRepartitionHashSecond, left: graph.Estimates{Bytes: 1 << 40}, right: graph.Estimates{Bytes: 1 << 10}, expectLeft: optimizer.ShipPartitionHash, expectRight: optimizer.ShipPartitionHash, expectLocal: optimizer.LocalHybridHashBuildSecond},
		{name: "hint broadcast first", hint: graph.HintBroadcastHashFirst, expectLeft: optimizer.ShipBroadcast, expectRight: optimizer.ShipForward, expectLocal: optimizer.LocalHybridHashBuildFirst},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := graph.NewPlan(tt.name)
			in1, _ := p.Source("in1", types.Tuple(types.Int64), graph.WithEstimates(0, tt.left.Bytes))
			in2, _ := p.Source("in2", types.Tuple(types.Int64), graph.WithEstimates(0, tt.right.Bytes))
			j, err := p.Join("join", in1, in2, keys.Positions(0), keys.Positions(0), graph.WithHint(tt.hint))
			if err != nil {
				t.Fatal(err)
			}
			_, _ = p.Sink("out", j)

			op := compile(t, p)
			join, _ := op.Node("join")
			if join.Input1().ShipStrategy != tt.expectLeft || join.Input2().ShipStrategy != tt.expectRight {
				t.Fatalf("expected %s/%s, got %s/%s", tt.expectLeft, tt.expectRight, join.Input1().ShipStrategy, join.Input2().ShipStrategy)
			}
			if join.LocalStrategy != tt.expectLocal {
				t.Fatalf("expected %s, got %s", tt.expectLocal, join.LocalStrategy)
			}
			if join.Input1().Partitioner != nil || join.Input2().Partitioner != nil {
				t.Fatal("non custom channels must not carry a partitioner")
			}
		})
	}
}

func TestCoGroupCustomPartitioning(t *testing.T) {
	p := graph.NewPlan("cogroup")
	in1, _ := p.Source("in1", pojo2)
	in2, _ := p.Source("in2", pojo3)
	cg, err := p.CoGroup("cg", in1, in2, keys.Fields("a"), keys.Selector(pojo3Selector))
	if err != nil {
		t.Fatal(err)
	}
	_, _ = p.Sink("out", cg)

	op := compile(t, p)
	node, _ := op.Node("cg")
	if node.Input1().ShipStrategy != optimizer.ShipPartitionHash || node.LocalStrategy != optimizer.LocalSortMerge {
		t.Fatalf("unexpected cogroup plan %s %s", node.Input1().ShipStrategy, node.LocalStrategy)
	}

	part := newTestPartitionerInt()
	if err = cg.WithPartitioner(part); err != nil {
		t.Fatal(err)
	}
	op = compile(t, p)
	node, _ = op.Node("cg")
	if node.Input1().Partitioner != part || node.Input2().Partitioner != part {
		t.Fatal("cogroup inputs must share the partitioner")
	}
	if node.LocalStrategy != optimizer.LocalSortMerge {
		t.Fatalf("expected sort merge, got %s", node.LocalStrategy)
	}
}

func TestConcurrentCompileIsDeterministic(t *testing.T) {
	p := graph.NewPlan("many")
	long := newTestPartitionerLong()
	for i := 0; i < 32; i++ {
		in1, _ := p.Source(fmt.Sprintf("l%d", i), types.Tuple(types.Int64, types.String), graph.WithEstimates(int64(i), int64(i*1024)))
		in2, _ := p.Source(fmt.Sprintf("r%d", i), types.Tuple(types.Int64), graph.WithEstimates(int64(i), int64((32-i)*1024)))
		j, err := p.Join(fmt.Sprintf("j%d", i), in1, in2, keys.Positions(0), keys.Positions(0))
		if err != nil {
			t.Fatal(err)
		}
		if i%3 == 0 {
			if err = j.WithPartitioner(long); err != nil {
				t.Fatal(err)
			}
		}
		_, _ = p.Sink(fmt.Sprintf("s%d", i), j)
	}

	sequential := compile(t, p, optimizer.WithMaxConcurrency(1)).Describe()
	parallel := compile(t, p).Describe()
	if len(sequential.Nodes) != len(parallel.Nodes) {
		t.Fatal("node count differs")
	}
	for i := range sequential.Nodes {
		a, b := sequential.Nodes[i], parallel.Nodes[i]
		if a.Name != b.Name || a.LocalStrategy != b.LocalStrategy || len(a.Inputs) != len(b.Inputs) {
			t.Fatalf("node %d differs: %+v vs %+v", i, a, b)
		}
		for k := range a.Inputs {
			if a.Inputs[k] != b.Inputs[k] {
				t.Fatalf("node %s input %d differs: %+v vs %+v", a.Name, k, a.Inputs[k], b.Inputs[k])
			}
		}
	}
}

func TestRoute(t *testing.T) {
	s := setups[0]
	p, j := buildJoin(t, s)
	part := partitioner.New("mod", types.Int64, func(key any, n int) (int, error) {
		return int(key.(int64) % int64(n)), nil
	})
	if err := j.WithPartitioner(part); err != nil {
		t.Fatal(err)
	}
	op := compile(t, p)
	join, _ := op.Node("join")

	idx, err := join.Input1().Route(int64(6))
	if err != nil {
		t.Fatal(err)
	}
	if idx != 2 {
		t.Fatalf("expected partition 2, got %d", idx)
	}

	sink := op.Sinks()[0]
	if _, err = sink.Input1().Route(int64(6)); !errors.Is(err, optimizer.ErrNotCustomChannel) {
		t.Fatalf("expected not custom, got %v", err)
	}
}

func TestCompileErrors(t *testing.T) {
	if _, err := optimizer.NewCompiler(optimizer.WithParallelism(2)).Compile(context.Background(), graph.NewPlan("empty")); !errors.Is(err, optimizer.ErrEmptyPlan) {
		t.Fatalf("expected empty plan, got %v", err)
	}

	p := graph.NewPlan("nosink")
	_, _ = p.Source("in", types.Tuple(types.Int64))
	if _, err := optimizer.NewCompiler(optimizer.WithParallelism(2)).Compile(context.Background(), p); !errors.Is(err, optimizer.ErrNoSinks) {
		t.Fatalf("expected no sinks, got %v", err)
	}

	if _, err := optimizer.NewCompiler(optimizer.WithParallelism(0)).Compile(context.Background(), p); !errors.Is(err, optimizer.ErrInvalidParallelism) {
		t.Fatalf("expected invalid parallelism, got %v", err)
	}
}

func TestDescribe(t *testing.T) {
	p, j := buildJoin(t, setups[1])
	if err := j.WithPartitioner(newTestPartitionerInt()); err != nil {
		t.Fatal(err)
	}
	d := compile(t, p).Describe()
	if d.Name != "pojos" || d.Parallelism != 4 || len(d.Nodes) != 4 {
		t.Fatalf("unexpected description %+v", d)
	}
	join := d.Nodes[2]
	if join.Kind != string(graph.KindJoin) || len(join.Inputs) != 2 {
		t.Fatalf("unexpected join description %+v", join)
	}
	if join.Inputs[0].Partitioner != "testInt(int32)" || join.Inputs[0].Keys != "fields(b)" || join.Inputs[1].Keys != "fields(a)" {
		t.Fatalf("unexpected channel description %+v", join.Inputs)
	}
}
