package program

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/danthegoodman1/joinplanner/graph"
	"github.com/danthegoodman1/joinplanner/keys"
	"github.com/danthegoodman1/joinplanner/partitioner"
	"github.com/danthegoodman1/joinplanner/schema"
	"github.com/danthegoodman1/joinplanner/types"
	"github.com/danthegoodman1/joinplanner/utils"
	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"
)

type (
	// Program is the JSON description of a logical plan. Joins may only
	// reference sources and joins declared before them.
	Program struct {
		Name        string   `json:"name" validate:"required"`
		Parallelism int      `json:"parallelism" validate:"gte=0"`
		Sources     []Source `json:"sources" validate:"required,min=1,dive"`
		Joins       []Join   `json:"joins" validate:"dive"`
		Sinks       []Sink   `json:"sinks" validate:"required,min=1,dive"`
	}

	// Source declares its record type with Type, with the footer of the parquet
	// file at Location, or by inference over Sample rows, in that order.
	Source struct {
		Name     string            `json:"name" validate:"required"`
		Type     *TypeSpec         `json:"type" validate:"required_without_all=Location Sample"`
		Location string            `json:"location" validate:"required_without_all=Type Sample"`
		Sample   []json.RawMessage `json:"sample" validate:"required_without_all=Type Location"`
		Rows     int64             `json:"rows" validate:"gte=0"`
		Bytes    int64             `json:"bytes" validate:"gte=0"`
	}

	Join struct {
		Name     string  `json:"name" validate:"required"`
		Kind     string  `json:"kind" validate:"omitempty,oneof=join cogroup"`
		Left     string  `json:"left" validate:"required"`
		Right    string  `json:"right" validate:"required"`
		LeftKey  KeySpec `json:"left_key"`
		RightKey KeySpec `json:"right_key"`
		Hint     string  `json:"hint"`
		// Partitioner names a registered partition function.
		Partitioner string `json:"partitioner"`
	}

	// KeySpec sets exactly one of its fields.
	KeySpec struct {
		Positions []int    `json:"positions,omitempty"`
		Fields    []string `json:"fields,omitempty"`
		Extractor string   `json:"extractor,omitempty"`
	}

	Sink struct {
		Name  string `json:"name" validate:"required"`
		Input string `json:"input" validate:"required"`
	}

	// Error is a user error in a program, the node is empty for program level problems.
	Error struct {
		Node string
		Err  error
	}
)

var (
	ErrInvalidKeySpec = utils.PermError("key spec must set exactly one of positions, fields, extractor")
	ErrUnknownNode    = utils.PermError("unknown node")

	validate = validator.New()
)

func (e *Error) Error() string {
	if e.Node == "" {
		return "invalid program: " + e.Err.Error()
	}
	return fmt.Sprintf("invalid program at %s: %s", e.Node, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

func (e *Error) IsPermanent() bool {
	return true
}

func (p *Program) Validate() error {
	if err := validate.Struct(p); err != nil {
		return &Error{Err: err}
	}
	return nil
}

// Build validates the program and builds the logical plan it describes.
func (p *Program) Build(ctx context.Context) (*graph.Plan, error) {
	logger := zerolog.Ctx(ctx)
	if err := p.Validate(); err != nil {
		return nil, err
	}

	plan := graph.NewPlan(p.Name)
	for _, src := range p.Sources {
		rt, err := src.recordType(ctx)
		if err != nil && !utils.IsPermanent(err) {
			return nil, fmt.Errorf("error reading record type of source %s: %w", src.Name, err)
		}
		if err != nil {
			return nil, &Error{Node: src.Name, Err: err}
		}
		opts := []graph.SourceOption{graph.WithEstimates(src.Rows, src.Bytes)}
		if src.Location != "" {
			opts = append(opts, graph.WithLocation(src.Location))
		}
		if _, err = plan.Source(src.Name, rt, opts...); err != nil {
			return nil, &Error{Node: src.Name, Err: err}
		}
	}

	for _, j := range p.Joins {
		if err := j.add(plan); err != nil {
			return nil, &Error{Node: j.Name, Err: err}
		}
	}

	for _, s := range p.Sinks {
		input, ok := plan.Node(s.Input)
		if !ok {
			return nil, &Error{Node: s.Name, Err: fmt.Errorf("%w: %s", ErrUnknownNode, s.Input)}
		}
		if _, err := plan.Sink(s.Name, input); err != nil {
			return nil, &Error{Node: s.Name, Err: err}
		}
	}

	logger.Debug().Str("program", p.Name).Int("nodes", len(plan.Nodes())).Msg("built plan")
	return plan, nil
}

// recordType only returns non permanent errors when the storage holding
// Location could not be read.
func (s Source) recordType(ctx context.Context) (*types.RecordType, error) {
	if s.Type == nil && s.Location != "" {
		return schema.ReadParquetRecordType(ctx, s.Location)
	}
	if s.Type == nil {
		return schema.InferRecordType(s.Name, s.Sample)
	}
	ft, err := s.Type.FieldType()
	if err != nil {
		return nil, err
	}
	if !ft.IsRecord() {
		return nil, fmt.Errorf("%w: source type must be a record, got %s", ErrInvalidTypeSpec, ft)
	}
	if ft.Record.Name == "" && !ft.Record.Tuple {
		ft.Record.Name = s.Name
	}
	return ft.Record, nil
}

func (j Join) add(plan *graph.Plan) error {
	left, ok := plan.Node(j.Left)
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownNode, j.Left)
	}
	right, ok := plan.Node(j.Right)
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownNode, j.Right)
	}
	leftKey, err := j.LeftKey.Spec()
	if err != nil {
		return fmt.Errorf("left key: %w", err)
	}
	rightKey, err := j.RightKey.Spec()
	if err != nil {
		return fmt.Errorf("right key: %w", err)
	}
	hint, err := graph.ParseHint(strings.ToUpper(j.Hint))
	if err != nil {
		return err
	}

	var node *graph.JoinNode
	if j.Kind == "cogroup" {
		node, err = plan.CoGroup(j.Name, left, right, leftKey, rightKey, graph.WithHint(hint))
	} else {
		node, err = plan.Join(j.Name, left, right, leftKey, rightKey, graph.WithHint(hint))
	}
	if err != nil {
		return err
	}

	if j.Partitioner == "" {
		return nil
	}
	p, err := partitioner.Get(j.Partitioner)
	if err != nil {
		return err
	}
	return node.WithPartitioner(p)
}

// Spec converts the wire form into a key specification.
func (k KeySpec) Spec() (keys.Spec, error) {
	set := 0
	if len(k.Positions) > 0 {
		set++
	}
	if len(k.Fields) > 0 {
		set++
	}
	if k.Extractor != "" {
		set++
	}
	if set != 1 {
		return keys.Spec{}, ErrInvalidKeySpec
	}

	switch {
	case len(k.Positions) > 0:
		return keys.Positions(k.Positions...), nil
	case len(k.Fields) > 0:
		return keys.Fields(k.Fields...), nil
	default:
		e, err := keys.GetExtractor(k.Extractor)
		if err != nil {
			return keys.Spec{}, err
		}
		return keys.Selector(e), nil
	}
}

// IsProgramError reports whether err was caused by the submitted program
// rather than by the system compiling it.
func IsProgramError(err error) bool {
	var pe *Error
	return errors.As(err, &pe) || utils.IsPermanent(err)
}
