package graph

import (
	"errors"
	"testing"

	"github.com/danthegoodman1/joinplanner/keys"
	"github.com/danthegoodman1/joinplanner/partitioner"
	"github.com/danthegoodman1/joinplanner/types"
)

func tupleJoin(t *testing.T) (*Plan, *JoinNode) {
	t.Helper()
	p := NewPlan("tuples")
	in1, err := p.Source("input1", types.Tuple(types.Int64, types.Int64))
	if err != nil {
		t.Fatal(err)
	}
	in2, err := p.Source("input2", types.Tuple(types.Int64, types.Int64, types.Int64))
	if err != nil {
		t.Fatal(err)
	}
	j, err := p.Join("join", in1, in2, keys.Positions(1), keys.Positions(0), WithHint(HintRepartitionHashFirst))
	if err != nil {
		t.Fatal(err)
	}
	return p, j
}

func TestWithPartitioner(t *testing.T) {
	_, j := tupleJoin(t)
	if j.PartitioningState() != PartitioningUnset {
		t.Fatal("new join should be unset")
	}

	long := partitioner.New("long", types.Int64, nil)
	if err := j.WithPartitioner(long); err != nil {
		t.Fatal(err)
	}
	if j.Partitioner() != long {
		t.Fatal("partitioner not attached")
	}
	if j.PartitioningState() != PartitioningAttached {
		t.Fatal("join should be attached")
	}

	if err := j.WithPartitioner(partitioner.New("other", types.Int64, nil)); !errors.Is(err, ErrPartitionerAlreadySet) {
		t.Fatalf("expected already set, got %v", err)
	}
	if j.Partitioner() != long {
		t.Fatal("second attachment must not replace the first")
	}
}

func TestWithPartitionerLeavesNodeUnchanged(t *testing.T) {
	_, j := tupleJoin(t)

	err := j.WithPartitioner(partitioner.New("int", types.Int32, nil))
	if !errors.Is(err, &partitioner.InvalidProgramError{Reason: partitioner.PartitionerTypeMismatch}) {
		t.Fatalf("expected type mismatch, got %v", err)
	}
	if j.Partitioner() != nil || j.PartitioningState() != PartitioningUnset {
		t.Fatal("failed attachment must leave the node unset")
	}

	err = j.WithPartitioner(nil)
	if !errors.Is(err, partitioner.ErrInvalidProgram) {
		t.Fatalf("expected invalid program for nil partitioner, got %v", err)
	}
	if j.Partitioner() != nil {
		t.Fatal("nil attachment must leave the node unset")
	}

	// a failed attempt does not block a later valid one
	if err = j.WithPartitioner(partitioner.New("long", types.Int64, nil)); err != nil {
		t.Fatal(err)
	}
}

func TestWithPartitionerCompositeKey(t *testing.T) {
	p := NewPlan("selectors")
	pojo2 := types.Struct("Pojo2", types.F("a", types.Int32), types.F("b", types.Int32))
	pojo3 := types.Struct("Pojo3", types.F("a", types.Int32), types.F("b", types.Int32), types.F("c", types.Int32))
	in1, _ := p.Source("in1", pojo2)
	in2, _ := p.Source("in2", pojo3)

	j, err := p.Join("join", in1, in2, keys.Fields("a", "b"), keys.Fields("a", "b"))
	if err != nil {
		t.Fatal(err)
	}
	err = j.WithPartitioner(partitioner.New("int", types.Int32, nil))
	if !errors.Is(err, &partitioner.InvalidProgramError{Reason: partitioner.KeyArityUnsupported}) {
		t.Fatalf("expected arity error, got %v", err)
	}
	if j.Partitioner() != nil {
		t.Fatal("node must stay unset")
	}
}

func TestJoinValidation(t *testing.T) {
	p := NewPlan("validation")
	in1, _ := p.Source("in1", types.Tuple(types.Int64, types.String))
	in2, _ := p.Source("in2", types.Tuple(types.Int32))

	if _, err := p.Join("bad", in1, in2, keys.Positions(0), keys.Positions(0)); !errors.Is(err, keys.ErrKeyTypeMismatch) {
		t.Fatalf("expected key type mismatch, got %v", err)
	}
	if _, err := p.Join("bad", in1, in2, keys.Positions(5), keys.Positions(0)); !errors.Is(err, keys.ErrKeyResolution) {
		t.Fatalf("expected key resolution, got %v", err)
	}
	if _, err := p.Join("bad", in1, in2, keys.Positions(1), keys.Positions(0), WithHint("FASTEST")); !errors.Is(err, ErrUnknownHint) {
		t.Fatalf("expected unknown hint, got %v", err)
	}
	if _, ok := p.Node("bad"); ok {
		t.Fatal("failed joins must not be added")
	}

	if _, err := p.Source("in1", types.Tuple(types.Int64)); !errors.Is(err, ErrDuplicateName) {
		t.Fatalf("expected duplicate name, got %v", err)
	}

	other := NewPlan("other")
	foreign, _ := other.Source("foreign", types.Tuple(types.Int64))
	if _, err := p.Join("j", in1, foreign, keys.Positions(0), keys.Positions(0)); !errors.Is(err, ErrForeignNode) {
		t.Fatalf("expected foreign node, got %v", err)
	}

	if _, err := p.Join("j", in1, (*SourceNode)(nil), keys.Positions(0), keys.Positions(0)); !errors.Is(err, ErrNilInput) {
		t.Fatalf("expected nil input for a typed nil node, got %v", err)
	}
	if _, err := p.Join("j", nil, in1, keys.Positions(0), keys.Positions(0)); !errors.Is(err, ErrNilInput) {
		t.Fatalf("expected nil input, got %v", err)
	}
	if _, err := p.Sink("s", (*JoinNode)(nil)); !errors.Is(err, ErrNilInput) {
		t.Fatalf("expected nil input for a typed nil join, got %v", err)
	}

	if _, err := p.CoGroup("cg", in1, in1, keys.Positions(0), keys.Positions(0), WithHint(HintBroadcastHashFirst)); !errors.Is(err, ErrHintNotApplicable) {
		t.Fatalf("expected hint not applicable, got %v", err)
	}
}

func TestChainedJoinOutputType(t *testing.T) {
	p := NewPlan("chained")
	users := types.Struct("User", types.F("id", types.Int64), types.F("name", types.String))
	orders := types.Struct("Order", types.F("user", types.Int64), types.F("amount", types.Float64))
	in1, _ := p.Source("users", users)
	in2, _ := p.Source("orders", orders)
	in3, _ := p.Source("payments", types.Tuple(types.Int64, types.Float64))

	j1, err := p.Join("users_orders", in1, in2, keys.Fields("id"), keys.Fields("user"))
	if err != nil {
		t.Fatal(err)
	}
	if !j1.OutputType().Equal(types.Tuple(types.RecordOf(users), types.RecordOf(orders))) {
		t.Fatalf("unexpected output type %s", j1.OutputType())
	}

	j2, err := p.Join("with_payments", j1, in3, keys.Fields("f0.id"), keys.Positions(0))
	if err != nil {
		t.Fatal(err)
	}
	if err = j2.WithPartitioner(partitioner.New("long", types.Int64, nil)); err != nil {
		t.Fatal(err)
	}

	if _, err = p.Sink("print", j2); err != nil {
		t.Fatal(err)
	}
	if len(p.TwoInputNodes()) != 2 || len(p.Sinks()) != 1 || len(p.Nodes()) != 6 {
		t.Fatal("unexpected plan shape")
	}
}

func TestParseHint(t *testing.T) {
	h, err := ParseHint("")
	if err != nil || h != HintOptimizerChooses {
		t.Fatalf("empty hint should default, got %s %v", h, err)
	}
	if _, err = ParseHint("REPARTITION_HASH_FIRST"); err != nil {
		t.Fatal(err)
	}
	if _, err = ParseHint("nope"); !errors.Is(err, ErrUnknownHint) {
		t.Fatalf("expected unknown hint, got %v", err)
	}
}
