package types

import (
	"errors"
	"fmt"
)

var ErrValueType = errors.New("value does not match field type")

// CheckValue verifies that a Go value carries the given field type. Tuples are
// []any in position order, named records are map[string]any.
func CheckValue(t FieldType, v any) error {
	ok := false
	switch t.Kind {
	case KindBool:
		_, ok = v.(bool)
	case KindInt32:
		_, ok = v.(int32)
	case KindInt64:
		_, ok = v.(int64)
	case KindFloat32:
		_, ok = v.(float32)
	case KindFloat64:
		_, ok = v.(float64)
	case KindString:
		_, ok = v.(string)
	case KindBytes:
		_, ok = v.([]byte)
	case KindRecord:
		return checkRecord(t.Record, v)
	}
	if !ok {
		return fmt.Errorf("%w: want %s, got %T", ErrValueType, t, v)
	}
	return nil
}

func checkRecord(rt *RecordType, v any) error {
	if rt == nil {
		return fmt.Errorf("%w: nil record type", ErrValueType)
	}
	if rt.Tuple {
		elems, ok := v.([]any)
		if !ok || len(elems) != len(rt.Fields) {
			return fmt.Errorf("%w: want %s, got %T", ErrValueType, rt, v)
		}
		for i, f := range rt.Fields {
			if err := CheckValue(f.Type, elems[i]); err != nil {
				return fmt.Errorf("position %d: %w", i, err)
			}
		}
		return nil
	}
	m, ok := v.(map[string]any)
	if !ok {
		return fmt.Errorf("%w: want %s, got %T", ErrValueType, rt, v)
	}
	for _, f := range rt.Fields {
		fv, exists := m[f.Name]
		if !exists {
			return fmt.Errorf("%w: missing field %q", ErrValueType, f.Name)
		}
		if err := CheckValue(f.Type, fv); err != nil {
			return fmt.Errorf("field %q: %w", f.Name, err)
		}
	}
	return nil
}
