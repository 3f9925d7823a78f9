package graph

import (
	"errors"
	"fmt"

	"github.com/danthegoodman1/joinplanner/keys"
	"github.com/danthegoodman1/joinplanner/partitioner"
	"github.com/danthegoodman1/joinplanner/types"
)

type (
	// JoinHint narrows the shipping strategies the optimizer may consider.
	JoinHint string

	// PartitioningState of a two-input node, Unset -> Attached and never back.
	PartitioningState uint8

	// JoinNode is a two-input operator (join or cogroup) matching records of
	// both inputs on equal keys.
	JoinNode struct {
		id       string
		name     string
		kind     NodeKind
		left     Node
		right    Node
		leftKey  keys.Spec
		rightKey keys.Spec
		hint     JoinHint
		output   *types.RecordType

		partitioner *partitioner.Partitioner
	}

	JoinOption func(*JoinNode)
)

const (
	HintOptimizerChooses      JoinHint = "OPTIMIZER_CHOOSES"
	HintRepartitionHashFirst  JoinHint = "REPARTITION_HASH_FIRST"
	HintRepartitionHashSecond JoinHint = "REPARTITION_HASH_SECOND"
	HintBroadcastHashFirst    JoinHint = "BROADCAST_HASH_FIRST"
	HintBroadcastHashSecond   JoinHint = "BROADCAST_HASH_SECOND"
)

const (
	PartitioningUnset PartitioningState = iota
	PartitioningAttached
)

var (
	ErrPartitionerAlreadySet = errors.New("a custom partitioner is already attached")
	ErrUnknownHint           = errors.New("unknown join hint")
	ErrHintNotApplicable     = errors.New("join hint does not apply")
)

var hints = map[JoinHint]bool{
	HintOptimizerChooses:      true,
	HintRepartitionHashFirst:  true,
	HintRepartitionHashSecond: true,
	HintBroadcastHashFirst:    true,
	HintBroadcastHashSecond:   true,
}

func ParseHint(s string) (JoinHint, error) {
	if s == "" {
		return HintOptimizerChooses, nil
	}
	h := JoinHint(s)
	if !hints[h] {
		return "", fmt.Errorf("%w: %s", ErrUnknownHint, s)
	}
	return h, nil
}

func WithHint(h JoinHint) JoinOption {
	return func(j *JoinNode) {
		j.hint = h
	}
}

// Join adds a join of left and right on leftKey == rightKey. Both keys are
// resolved immediately and must have compatible types.
func (p *Plan) Join(name string, left, right Node, leftKey, rightKey keys.Spec, opts ...JoinOption) (*JoinNode, error) {
	return p.twoInput(KindJoin, name, left, right, leftKey, rightKey, opts)
}

// CoGroup adds a cogroup of left and right. It shares the key and custom
// partitioning rules of Join.
func (p *Plan) CoGroup(name string, left, right Node, leftKey, rightKey keys.Spec, opts ...JoinOption) (*JoinNode, error) {
	return p.twoInput(KindCoGroup, name, left, right, leftKey, rightKey, opts)
}

func (p *Plan) twoInput(kind NodeKind, name string, left, right Node, leftKey, rightKey keys.Spec, opts []JoinOption) (*JoinNode, error) {
	if err := p.checkName(name); err != nil {
		return nil, err
	}
	if err := p.checkInput(left); err != nil {
		return nil, fmt.Errorf("left input: %w", err)
	}
	if err := p.checkInput(right); err != nil {
		return nil, fmt.Errorf("right input: %w", err)
	}
	j := &JoinNode{
		id:       newNodeID(),
		name:     name,
		kind:     kind,
		left:     left,
		right:    right,
		leftKey:  leftKey,
		rightKey: rightKey,
		hint:     HintOptimizerChooses,
		output:   types.Tuple(types.RecordOf(left.OutputType()), types.RecordOf(right.OutputType())),
	}
	for _, opt := range opts {
		opt(j)
	}
	if !hints[j.hint] {
		return nil, fmt.Errorf("%w: %s", ErrUnknownHint, j.hint)
	}
	if kind == KindCoGroup && j.hint != HintOptimizerChooses {
		return nil, fmt.Errorf("%w: %s on cogroup %s", ErrHintNotApplicable, j.hint, name)
	}
	if _, _, err := j.resolveKeys(); err != nil {
		return nil, err
	}
	p.add(j)
	return j, nil
}

func (j *JoinNode) resolveKeys() (keys.KeyType, keys.KeyType, error) {
	leftType, err := keys.Resolve(j.leftKey, j.left.OutputType())
	if err != nil {
		return nil, nil, fmt.Errorf("%s left key: %w", j.name, err)
	}
	rightType, err := keys.Resolve(j.rightKey, j.right.OutputType())
	if err != nil {
		return nil, nil, fmt.Errorf("%s right key: %w", j.name, err)
	}
	if err = keys.CheckCompatible(leftType, rightType); err != nil {
		return nil, nil, fmt.Errorf("%s: %w", j.name, err)
	}
	return leftType, rightType, nil
}

// WithPartitioner attaches a custom partitioner shared by both inputs. It
// validates the partitioner against the resolved key type of each side. A
// failed call leaves the node unchanged.
func (j *JoinNode) WithPartitioner(p *partitioner.Partitioner) error {
	if j.partitioner != nil {
		return fmt.Errorf("%w: %s on %s", ErrPartitionerAlreadySet, j.partitioner.Name, j.name)
	}
	leftType, rightType, err := j.resolveKeys()
	if err != nil {
		return err
	}
	if err = partitioner.CheckCompatible(p, leftType); err != nil {
		return fmt.Errorf("%s left input: %w", j.name, err)
	}
	if err = partitioner.CheckCompatible(p, rightType); err != nil {
		return fmt.Errorf("%s right input: %w", j.name, err)
	}

	j.partitioner = p
	logger.Debug().Str("node", j.name).Str("partitioner", p.Name).Msg("attached custom partitioner")
	return nil
}

func (j *JoinNode) ID() string                    { return j.id }
func (j *JoinNode) Name() string                  { return j.name }
func (j *JoinNode) Kind() NodeKind                { return j.kind }
func (j *JoinNode) OutputType() *types.RecordType { return j.output }
func (j *JoinNode) Inputs() []Node                { return []Node{j.left, j.right} }

func (j *JoinNode) Left() Node          { return j.left }
func (j *JoinNode) Right() Node         { return j.right }
func (j *JoinNode) LeftKey() keys.Spec  { return j.leftKey }
func (j *JoinNode) RightKey() keys.Spec { return j.rightKey }
func (j *JoinNode) Hint() JoinHint      { return j.hint }

// Partitioner is nil unless one was attached.
func (j *JoinNode) Partitioner() *partitioner.Partitioner {
	return j.partitioner
}

func (j *JoinNode) PartitioningState() PartitioningState {
	if j.partitioner == nil {
		return PartitioningUnset
	}
	return PartitioningAttached
}
