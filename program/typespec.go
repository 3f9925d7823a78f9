package program

import (
	"fmt"

	"github.com/danthegoodman1/joinplanner/types"
	"github.com/danthegoodman1/joinplanner/utils"
)

type (
	// TypeSpec is the wire form of a field type. A tuple sets Tuple, a named
	// record sets Fields (and optionally Name), a scalar sets Kind.
	TypeSpec struct {
		Kind   string      `json:"kind,omitempty"`
		Name   string      `json:"name,omitempty"`
		Tuple  []TypeSpec  `json:"tuple,omitempty"`
		Fields []FieldSpec `json:"fields,omitempty"`
	}

	FieldSpec struct {
		Name string   `json:"name"`
		Type TypeSpec `json:"type"`
	}
)

var ErrInvalidTypeSpec = utils.PermError("invalid type spec")

func (ts TypeSpec) FieldType() (types.FieldType, error) {
	switch {
	case len(ts.Tuple) > 0 && len(ts.Fields) > 0:
		return types.FieldType{}, fmt.Errorf("%w: both tuple and fields set", ErrInvalidTypeSpec)
	case len(ts.Tuple) > 0:
		elems := make([]types.FieldType, len(ts.Tuple))
		for i, e := range ts.Tuple {
			ft, err := e.FieldType()
			if err != nil {
				return types.FieldType{}, fmt.Errorf("tuple element %d: %w", i, err)
			}
			elems[i] = ft
		}
		rt := types.Tuple(elems...)
		rt.Name = ts.Name
		return types.RecordOf(rt), nil
	case len(ts.Fields) > 0:
		fields := make([]types.Field, len(ts.Fields))
		seen := make(map[string]bool, len(ts.Fields))
		for i, f := range ts.Fields {
			if f.Name == "" || seen[f.Name] {
				return types.FieldType{}, fmt.Errorf("%w: empty or duplicate field name %q", ErrInvalidTypeSpec, f.Name)
			}
			seen[f.Name] = true
			ft, err := f.Type.FieldType()
			if err != nil {
				return types.FieldType{}, fmt.Errorf("field %s: %w", f.Name, err)
			}
			fields[i] = types.F(f.Name, ft)
		}
		return types.RecordOf(types.Struct(ts.Name, fields...)), nil
	}

	kind, err := types.ParseKind(ts.Kind)
	if err != nil {
		return types.FieldType{}, fmt.Errorf("%w: %s", ErrInvalidTypeSpec, err)
	}
	if kind == types.KindRecord {
		return types.FieldType{}, fmt.Errorf("%w: record without fields", ErrInvalidTypeSpec)
	}
	return types.FieldType{Kind: kind}, nil
}
