package graph

import (
	"github.com/danthegoodman1/joinplanner/types"
)

type (
	SourceNode struct {
		id         string
		name       string
		recordType *types.RecordType
		Estimates  Estimates
		// Location is informational, e.g. the parquet file the type was read from.
		Location string
	}

	SinkNode struct {
		id    string
		name  string
		input Node
	}

	SourceOption func(*SourceNode)
)

func WithEstimates(rows, bytes int64) SourceOption {
	return func(s *SourceNode) {
		s.Estimates = Estimates{Rows: rows, Bytes: bytes}
	}
}

func WithLocation(loc string) SourceOption {
	return func(s *SourceNode) {
		s.Location = loc
	}
}

// Source adds a data source producing records of type rt.
func (p *Plan) Source(name string, rt *types.RecordType, opts ...SourceOption) (*SourceNode, error) {
	if rt == nil {
		return nil, ErrNilType
	}
	if err := p.checkName(name); err != nil {
		return nil, err
	}
	s := &SourceNode{id: newNodeID(), name: name, recordType: rt}
	for _, opt := range opts {
		opt(s)
	}
	p.add(s)
	return s, nil
}

// Sink adds a terminal node consuming input.
func (p *Plan) Sink(name string, input Node) (*SinkNode, error) {
	if err := p.checkName(name); err != nil {
		return nil, err
	}
	if err := p.checkInput(input); err != nil {
		return nil, err
	}
	s := &SinkNode{id: newNodeID(), name: name, input: input}
	p.add(s)
	return s, nil
}

func (s *SourceNode) ID() string                    { return s.id }
func (s *SourceNode) Name() string                  { return s.name }
func (s *SourceNode) Kind() NodeKind                { return KindSource }
func (s *SourceNode) OutputType() *types.RecordType { return s.recordType }
func (s *SourceNode) Inputs() []Node                { return nil }

func (s *SinkNode) ID() string                    { return s.id }
func (s *SinkNode) Name() string                  { return s.name }
func (s *SinkNode) Kind() NodeKind                { return KindSink }
func (s *SinkNode) OutputType() *types.RecordType { return s.input.OutputType() }
func (s *SinkNode) Inputs() []Node                { return []Node{s.input} }
func (s *SinkNode) Input() Node                   { return s.input }
